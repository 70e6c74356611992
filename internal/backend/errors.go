package backend

import (
	"errors"
	"fmt"
)

var (
	ErrDeviceNotFound         = errors.New("device not found")
	ErrMachineNotFound        = errors.New("machine not found")
	ErrMachinePortIDIncorrect = errors.New("machine port id incorrect")
	ErrDeviceList             = errors.New("failed to list devices")
	ErrPowerOn                = errors.New("failed to power on")
	ErrPowerOff               = errors.New("failed to power off")
)

// Error carries one of the package sentinels as Kind, the identifier the
// failure is about as Detail, and the underlying cause if any.
type Error struct {
	Kind   error
	Detail string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%v (%s): %v", e.Kind, e.Detail, e.Err)
	}
	return fmt.Sprintf("%v (%s)", e.Kind, e.Detail)
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newError(kind error, detail string, cause error) *Error {
	return &Error{Kind: kind, Detail: detail, Err: cause}
}
