package perrors

import (
	"fmt"

	"github.com/google/uuid"
	gerrors "github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

type ErrorCode int

const (
	InternalError = iota
	InvalidArgument
	LineageError
	AllocationFailure
	TypeMismatch
	InvalidConfiguration
	UnknownAlgorithm
)

func NewInternalError(ref string) DTError {
	return NewDTErrorf(InternalError, "Internal error - reference %s please consult logs for details", ref)
}

func NewInvalidArgumentError(msg string) DTError {
	return NewDTErrorf(InvalidArgument, "Invalid argument: %s", msg)
}

func NewLineageError(msg string) DTError {
	return NewDTErrorf(LineageError, "Lineage error: %s", msg)
}

func NewAllocationFailureError(requested int64, inUse int64, limit int64) DTError {
	return NewDTErrorf(AllocationFailure, "Cannot allocate %d bytes, %d of %d bytes in use", requested, inUse, limit)
}

func NewTypeMismatchError(msg string) DTError {
	return NewDTErrorf(TypeMismatch, "Type mismatch: %s", msg)
}

func NewInvalidConfigurationError(msg string) DTError {
	return NewDTErrorf(InvalidConfiguration, "Invalid configuration: %s", msg)
}

func NewUnknownAlgorithmError(name string) DTError {
	return NewDTErrorf(UnknownAlgorithm, "Unknown algorithm %s", name)
}

func NewDTErrorf(errorCode ErrorCode, msgFormat string, args ...interface{}) DTError {
	msg := fmt.Sprintf(fmt.Sprintf("DT%04d - %s", errorCode, msgFormat), args...)
	return DTError{Code: errorCode, Msg: msg}
}

func NewDTError(errorCode ErrorCode, msg string) DTError {
	return DTError{Code: errorCode, Msg: msg}
}

// DTError is any kind of error that is exposed to the caller of the engine or the shell user
type DTError struct {
	Code ErrorCode
	Msg  string
}

func (u DTError) Error() string {
	return u.Msg
}

// HasCode returns true if err, or any error it wraps, is a DTError with the given code.
func HasCode(err error, code ErrorCode) bool {
	var dtErr DTError
	if !gerrors.As(err, &dtErr) {
		return false
	}
	return dtErr.Code == code
}

func MaybeAddStack(err error) error {
	_, ok := err.(DTError)
	if !ok {
		return gerrors.WithStack(err)
	}
	return err
}

// LogInternalError logs an unexpected error together with a random reference and returns an InternalError which
// carries only the reference, so implementation details don't leak to the user
func LogInternalError(err error) DTError {
	id, err2 := uuid.NewRandom()
	var errRef string
	if err2 != nil {
		log.Errorf("failed to generate uuid %v", err2)
		errRef = ""
	} else {
		errRef = id.String()
	}
	log.Errorf("internal error occurred with reference %s\n%+v", errRef, err)
	return NewInternalError(errRef)
}
