package processor

import "errors"

var (
	// ErrUnexpectedStatus is returned when a document download does not answer 200.
	ErrUnexpectedStatus = errors.New("unexpected status code")

	// ErrEmptyDocument is returned when a download has no body.
	ErrEmptyDocument = errors.New("empty document")

	// ErrContentMismatch is returned when the downloaded bytes are not of the
	// classified type, e.g. an HTML error page served for a PDF link.
	ErrContentMismatch = errors.New("content does not match classified type")

	// ErrUnreadablePDF is returned when the PDF reader cannot open a document
	// or decode its pages.
	ErrUnreadablePDF = errors.New("unreadable PDF")

	// ErrNoContent is returned when neither text nor metadata could be extracted.
	ErrNoContent = errors.New("no content extracted")
)
