package ingest

import "fmt"

// Rejection reasons for an upload. These are client errors and are reported
// before anything is written or classified.
var (
	ErrMissingFile         = &RejectionError{Reason: "No file part"}
	ErrEmptyFilename       = &RejectionError{Reason: "No selected file"}
	ErrDisallowedExtension = &RejectionError{Reason: "File type not allowed"}
)

// RejectionError is a validation failure of an uploaded file.
type RejectionError struct {
	Reason string
}

func (e *RejectionError) Error() string { return e.Reason }

// DecodeError reports a stored image that could not be read or decoded.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
