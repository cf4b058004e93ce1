// Package agency builds the slug-keyed agency dimension from the eCFR
// directory payload, including parent/child relationships.
package agency

import (
	"sort"

	"github.com/regwatch/ecfr-ingest/internal/ecfr"
)

// Agency is one organizational unit tracked by the pipeline. The parent link
// is a weak reference by slug; child sets are always derived, never stored.
type Agency struct {
	Slug          string
	Name          string
	ShortName     string
	ParentSlug    string
	CFRReferences []ecfr.CFRReference
}

// Resolve builds the agency table from the directory payload.
//
// Records without a slug are skipped. A declared parent that does not exist
// in the payload is cleared, so every remaining parent link is resolvable.
// If the payload declares a parent cycle the back-edge that closes it is
// dropped deterministically, keeping the graph a forest.
func Resolve(records []ecfr.AgencyRecord) map[string]*Agency {
	agencies := make(map[string]*Agency, len(records))
	for _, rec := range records {
		if rec.Slug == "" {
			continue
		}
		agencies[rec.Slug] = &Agency{
			Slug:          rec.Slug,
			Name:          rec.Name,
			ShortName:     rec.ShortName,
			ParentSlug:    rec.ParentSlug,
			CFRReferences: append([]ecfr.CFRReference(nil), rec.CFRReferences...),
		}
	}

	for _, a := range agencies {
		if a.ParentSlug == "" {
			continue
		}
		if _, ok := agencies[a.ParentSlug]; !ok {
			a.ParentSlug = ""
		}
	}

	breakCycles(agencies)
	return agencies
}

// breakCycles walks every parent chain and clears the edge that would close
// a cycle. Chains are walked in sorted slug order so the same payload always
// loses the same edge.
func breakCycles(agencies map[string]*Agency) {
	slugs := make([]string, 0, len(agencies))
	for slug := range agencies {
		slugs = append(slugs, slug)
	}
	sort.Strings(slugs)

	// acyclic marks agencies whose chain is already known to terminate.
	acyclic := make(map[string]bool, len(agencies))
	for _, slug := range slugs {
		seen := map[string]bool{}
		cur := agencies[slug]
		for cur != nil && cur.ParentSlug != "" && !acyclic[cur.Slug] {
			if seen[cur.Slug] {
				cur.ParentSlug = ""
				break
			}
			seen[cur.Slug] = true
			cur = agencies[cur.ParentSlug]
		}
		for visited := range seen {
			acyclic[visited] = true
		}
	}
}

// Children returns the agencies whose parent is the given slug, in sorted
// slug order.
func Children(agencies map[string]*Agency, slug string) []*Agency {
	var out []*Agency
	for _, a := range agencies {
		if a.ParentSlug == slug && a.Slug != slug {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slug < out[j].Slug })
	return out
}

// WithCFRReferences filters the directory records to those that regulate at
// least one CFR title, preserving payload order, capped at limit (<=0 means
// no cap).
func WithCFRReferences(records []ecfr.AgencyRecord, limit int) []ecfr.AgencyRecord {
	var out []ecfr.AgencyRecord
	for _, rec := range records {
		if rec.Slug == "" || len(rec.CFRReferences) == 0 {
			continue
		}
		out = append(out, rec)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}
