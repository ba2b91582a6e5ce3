package store

import (
	"errors"
	"fmt"
)

// CorruptStateError means the persisted state exists but cannot be read back
// into a CatalogState. Callers decide whether to start empty or stop.
type CorruptStateError struct {
	Location string
	Err      error
}

func (e *CorruptStateError) Error() string {
	return fmt.Sprintf("catalog state at %s is unreadable: %v", e.Location, e.Err)
}

func (e *CorruptStateError) Unwrap() error { return e.Err }

// IsCorruptState reports whether err is a CorruptStateError.
func IsCorruptState(err error) bool {
	var e *CorruptStateError
	return errors.As(err, &e)
}

// IOWriteError means a save did not reach disk. The previously persisted
// state is untouched.
type IOWriteError struct {
	Location string
	Op       string
	Err      error
}

func (e *IOWriteError) Error() string {
	return fmt.Sprintf("saving catalog state to %s failed (%s): %v", e.Location, e.Op, e.Err)
}

func (e *IOWriteError) Unwrap() error { return e.Err }

// IsIOWrite reports whether err is an IOWriteError.
func IsIOWrite(err error) bool {
	var e *IOWriteError
	return errors.As(err, &e)
}
