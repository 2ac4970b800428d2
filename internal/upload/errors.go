package upload

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when the source file or directory does not
	// exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidArgument is returned when the source path has the wrong type
	// or the pattern is malformed.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrConflict marks a write refused because the destination already
	// exists and overwriting was disabled. It is reported as a skipped result,
	// never as an error result.
	ErrConflict = errors.New("blob already exists")

	// ErrTransport wraps every failure returned by the storage client.
	ErrTransport = errors.New("storage request failed")
)

// ErrorKind classifies the error carried by an error result.
type ErrorKind string

const (
	KindNotFound        ErrorKind = "not_found"
	KindInvalidArgument ErrorKind = "invalid_argument"
	KindTransport       ErrorKind = "transport"
	KindCanceled        ErrorKind = "canceled"
	KindLocal           ErrorKind = "local_io"
)

// Classify maps an error returned by UploadFile onto an ErrorKind.
// Cancellation wins over transport because the storage client wraps the
// context error.
func Classify(err error) ErrorKind {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrInvalidArgument):
		return KindInvalidArgument
	case errors.Is(err, ErrTransport):
		return KindTransport
	default:
		return KindLocal
	}
}
