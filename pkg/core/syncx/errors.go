package syncx

import "errors"

var (
	// ErrNotOwner is returned when a lock is released by an owner that does not hold it.
	ErrNotOwner = errors.New("syncx: caller does not own the lock")

	// ErrStateOverflow is returned when a release or reentry would push the
	// state past the int32 range. The state is left unchanged.
	ErrStateOverflow = errors.New("syncx: state overflow")
)
