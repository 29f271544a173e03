package database

import (
	"errors"
	"fmt"
)

// Set of reasons a block can be rejected by the chain.
var (
	ErrBadIndex     = errors.New("bad index")
	ErrBadLinkage   = errors.New("bad linkage")
	ErrFailedPuzzle = errors.New("failed puzzle")
)

// ErrNotFound is returned when a block is requested that isn't in the chain.
var ErrNotFound = errors.New("block not found")

// RejectedError is returned when a block fails validation on insert. The
// chain is never modified when this error is returned.
type RejectedError struct {
	Index  uint64 // Index of the rejected block.
	Reason error  // One of ErrBadIndex, ErrBadLinkage or ErrFailedPuzzle.
	Detail string
	Err    error // Underlying cause, if any.
}

func newRejected(index uint64, reason error, err error, format string, args ...any) *RejectedError {
	return &RejectedError{
		Index:  index,
		Reason: reason,
		Detail: fmt.Sprintf(format, args...),
		Err:    err,
	}
}

// Error implements the error interface.
func (re *RejectedError) Error() string {
	msg := fmt.Sprintf("blk[%d] rejected: %s: %s", re.Index, re.Reason, re.Detail)
	if re.Err != nil {
		msg += ": " + re.Err.Error()
	}

	return msg
}

// Unwrap provides support for errors.Is and errors.As against both the
// reason and the underlying cause.
func (re *RejectedError) Unwrap() []error {
	if re.Err == nil {
		return []error{re.Reason}
	}

	return []error{re.Reason, re.Err}
}

// IsRejected checks if an error of type RejectedError exists.
func IsRejected(err error) bool {
	var re *RejectedError
	return errors.As(err, &re)
}

// GetRejected returns a copy of the RejectedError pointer.
func GetRejected(err error) *RejectedError {
	var re *RejectedError
	if !errors.As(err, &re) {
		return nil
	}

	return re
}
