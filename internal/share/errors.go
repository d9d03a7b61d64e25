package share

import (
	"errors"

	"github.com/marianozunino/ezyshare/internal/gateway"
)

var (
	// Local validation, raised before any backend call.
	ErrSizeExceeded = errors.New("file exceeds the maximum allowed size")
	ErrEmptyInput   = errors.New("nothing to share")
	ErrMalformedPin = errors.New("PIN must be exactly 6 digits")

	// Producer side backend failures. ErrUploadFailed wraps one of the other two.
	ErrStorageFailure  = gateway.ErrStorageFailure
	ErrMetadataFailure = gateway.ErrMetadataFailure
	ErrUploadFailed    = errors.New("upload failed, please try again")

	// Consumer side.
	ErrNotFound        = gateway.ErrNotFound
	ErrInvalidPin      = errors.New("invalid PIN")
	ErrTooManyAttempts = errors.New("too many failed PIN attempts, try again later")
)

// errInvalidState is returned when an operation is called in a state that
// does not allow it.
type errInvalidState struct {
	op    string
	state string
}

func (e *errInvalidState) Error() string {
	return e.op + " is not allowed while " + e.state
}
