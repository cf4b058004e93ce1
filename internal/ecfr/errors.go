package ecfr

import "fmt"

// FetchError reports a failed document request after retries are exhausted
// or a non-retryable response was received.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// ResolutionError reports a malformed or unreachable agency directory.
// It is fatal to an ingestion run.
type ResolutionError struct {
	Err error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolve agency directory: %v", e.Err)
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}
