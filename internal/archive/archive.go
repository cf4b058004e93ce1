// Package archive defines the sink used to retain raw title XML per run.
// Archiving is optional; the pipeline works identically with the no-op sink.
package archive

import "context"

// Sink stores one raw document under a path and returns its URI.
type Sink interface {
	Put(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// NoopSink discards everything.
type NoopSink struct{}

// Put discards the document and returns an empty URI.
func (NoopSink) Put(_ context.Context, _ string, _ string, _ []byte) (string, error) {
	return "", nil
}
