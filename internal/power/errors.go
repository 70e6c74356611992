package power

import (
	"errors"
	"fmt"

	"github.com/ArthurVardevanyan/poe-shim/internal/backend"
	"github.com/ArthurVardevanyan/poe-shim/internal/unifi"
)

// Kind is the stable, transport-independent name of a failure.
type Kind string

const (
	KindMissingSystemID        Kind = "missing_system_id"
	KindDeviceNotFound         Kind = "device_not_found"
	KindMachineNotFound        Kind = "machine_not_found"
	KindMachinePortIDIncorrect Kind = "machine_port_id_incorrect"
	KindDeviceList             Kind = "device_list_error"
	KindFailedToConstructURL   Kind = "failed_to_construct_url"
	KindFailedToPowerOn        Kind = "failed_to_power_on"
	KindFailedToPowerOff       Kind = "failed_to_power_off"
	KindAuth                   Kind = "auth_error"
	KindInternal               Kind = "internal"
)

// Error is a classified failure with a message safe to show to callers.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Err }

// ErrMissingSystemID is returned when a request carries no system ID.
var ErrMissingSystemID = &Error{
	Kind:    KindMissingSystemID,
	Message: "System ID was not found in request.",
}

// Translate classifies err. Errors that are already *Error pass through.
func Translate(err error) *Error {
	if err == nil {
		return nil
	}
	var pe *Error
	if errors.As(err, &pe) {
		return pe
	}

	var detail string
	var be *backend.Error
	if errors.As(err, &be) {
		detail = be.Detail
	}

	switch {
	case errors.Is(err, backend.ErrMachineNotFound):
		return &Error{Kind: KindMachineNotFound, Message: fmt.Sprintf("Machine with system id %s was not found!", detail), Err: err}
	case errors.Is(err, backend.ErrMachinePortIDIncorrect):
		return &Error{Kind: KindMachinePortIDIncorrect, Message: fmt.Sprintf("Found no machine on port %s!", detail), Err: err}
	case errors.Is(err, backend.ErrDeviceNotFound):
		return &Error{Kind: KindDeviceNotFound, Message: fmt.Sprintf("Device with mac address %s was not found!", detail), Err: err}
	case errors.Is(err, backend.ErrDeviceList):
		return &Error{Kind: KindDeviceList, Message: fmt.Sprintf("Failed to list devices, error: %s", detail), Err: err}
	case errors.Is(err, backend.ErrPowerOn):
		return &Error{Kind: KindFailedToPowerOn, Message: fmt.Sprintf("Failed to power on a port on the device %s!", detail), Err: err}
	case errors.Is(err, backend.ErrPowerOff):
		return &Error{Kind: KindFailedToPowerOff, Message: fmt.Sprintf("Failed to power off a port on the device %s!", detail), Err: err}
	case errors.Is(err, unifi.ErrInvalidBaseURL):
		return &Error{Kind: KindFailedToConstructURL, Message: err.Error(), Err: err}
	case errors.Is(err, unifi.ErrAuth):
		return &Error{Kind: KindAuth, Message: fmt.Sprintf("Failed to log in to the controller, error: %v", err), Err: err}
	default:
		return &Error{Kind: KindInternal, Message: err.Error(), Err: err}
	}
}
