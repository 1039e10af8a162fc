package bundle

import (
	"errors"
	"fmt"
)

var (
	// ErrNetwork matches any *NetworkError.
	ErrNetwork = errors.New("bundle: network error")

	// ErrExtraction matches any *ExtractionError.
	ErrExtraction = errors.New("bundle: extraction error")

	// ErrUnsafePath is the cause when an archive entry would land outside
	// the target directory.
	ErrUnsafePath = errors.New("entry escapes target directory")

	// ErrEntryTooLarge is the cause when an entry exceeds the size limit.
	ErrEntryTooLarge = errors.New("entry exceeds size limit")
)

// NetworkError reports a failed bundle download. StatusCode is zero when no
// response was received.
type NetworkError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("bundle: GET %s: unexpected status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("bundle: GET %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

func (e *NetworkError) Is(target error) bool { return target == ErrNetwork }

// ExtractionError reports a corrupt archive or an entry that could not be
// written. Entry is empty when the archive itself could not be opened.
type ExtractionError struct {
	Archive string
	Entry   string
	Err     error
}

func (e *ExtractionError) Error() string {
	if e.Entry == "" {
		return fmt.Sprintf("bundle: extract %s: %v", e.Archive, e.Err)
	}
	return fmt.Sprintf("bundle: extract %s: entry %s: %v", e.Archive, e.Entry, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

func (e *ExtractionError) Is(target error) bool { return target == ErrExtraction }
