// Package ecfr implements a rate-limited client for the public eCFR API.
package ecfr

// AgencyRecord is one entry in the eCFR agency directory payload.
type AgencyRecord struct {
	Name          string         `json:"name"`
	ShortName     string         `json:"short_name"`
	Slug          string         `json:"slug"`
	ParentSlug    string         `json:"parent_slug"`
	CFRReferences []CFRReference `json:"cfr_references"`
}

// CFRReference points an agency at a CFR title, optionally narrowed to a
// single chapter.
type CFRReference struct {
	Title   int    `json:"title"`
	Chapter string `json:"chapter,omitempty"`
}

// directoryResponse mirrors the /admin/v1/agencies.json envelope.
type directoryResponse struct {
	Agencies []AgencyRecord `json:"agencies"`
}

// TitleVersion is one entry in a title's version history.
type TitleVersion struct {
	Date       string `json:"date"`
	Identifier string `json:"identifier"`
	Name       string `json:"name"`
	Part       string `json:"part"`
	Type       string `json:"type"`
}

// versionsResponse mirrors the /versioner/v1/versions/title-N.json envelope.
type versionsResponse struct {
	ContentVersions []TitleVersion `json:"content_versions"`
}
