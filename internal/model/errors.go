package model

import (
	"errors"
	"fmt"
)

// Error categories. Every error returned by the bookmark core wraps exactly one
// of these so callers can branch with errors.Is.
var (
	ErrInvalidInput  = errors.New("invalid input")
	ErrNotFound      = errors.New("not found")
	ErrCycleDetected = errors.New("cycle detected")
	ErrNetwork       = errors.New("network error")
	ErrCorruptData   = errors.New("corrupt data")
)

// Specific errors, each wrapping its category.
var (
	ErrInvalidParent = fmt.Errorf("%w: parent is not a folder", ErrInvalidInput)
	ErrInvalidURL    = fmt.Errorf("%w: url must be absolute", ErrInvalidInput)
	ErrInvalidScope  = fmt.Errorf("%w: search scope is not a folder", ErrInvalidInput)
	ErrCorruptBackup = fmt.Errorf("%w: backup cannot be parsed", ErrCorruptData)
)
