package zipmap

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedArchive is returned when the upload cannot be opened as a zip
	// container or its entry table is unusable.
	ErrMalformedArchive = errors.New("malformed archive")

	// ErrMissingInfoDocument is returned when no Info.dat entry exists.
	ErrMissingInfoDocument = errors.New("missing info document")

	// ErrAmbiguousInfoDocument is returned when more than one Info.dat entry
	// sits at the shallowest matching depth.
	ErrAmbiguousInfoDocument = errors.New("ambiguous info document")

	// ErrSizeLimitExceeded is returned when an entry grows past its byte ceiling.
	ErrSizeLimitExceeded = errors.New("size limit exceeded")

	// ErrEntryNotFound is returned when a referenced entry is not in the container.
	ErrEntryNotFound = errors.New("entry not found")

	// ErrNoValidDifficulties is returned by Extract when every declared
	// difficulty was excluded.
	ErrNoValidDifficulties = errors.New("no valid difficulties")
)

// InvalidDocumentError names a container entry that could not be decoded or
// failed structural validation.
type InvalidDocumentError struct {
	Path string
	Err  error
}

func (e *InvalidDocumentError) Error() string {
	return fmt.Sprintf("invalid document %s: %v", e.Path, e.Err)
}

func (e *InvalidDocumentError) Unwrap() error {
	return e.Err
}

func invalidDocument(path string, err error) error {
	return &InvalidDocumentError{Path: path, Err: err}
}
