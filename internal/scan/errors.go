package scan

import (
	"errors"
	"fmt"
)

// PathNotFoundError means the scan root does not exist or is not a directory.
type PathNotFoundError struct {
	Path   string
	Reason string
	Err    error
}

func (e *PathNotFoundError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("scan root %q: %s", e.Path, e.Reason)
	}
	return fmt.Sprintf("scan root %q not found", e.Path)
}

func (e *PathNotFoundError) Unwrap() error { return e.Err }

func IsPathNotFound(err error) bool {
	var e *PathNotFoundError
	return errors.As(err, &e)
}

// PermissionError means the scan root exists but cannot be read.
type PermissionError struct {
	Path string
	Err  error
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("scan root %q is not readable: %v", e.Path, e.Err)
}

func (e *PermissionError) Unwrap() error { return e.Err }

func IsPermission(err error) bool {
	var e *PermissionError
	return errors.As(err, &e)
}
