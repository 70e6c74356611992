// Package unifi talks to a self-hosted UniFi network controller: it logs in,
// lists switches with their port tables and writes PoE port overrides.
package unifi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Controller is the subset of the controller API the shim needs. Client is the
// live implementation; Fake serves tests and dry runs.
type Controller interface {
	Login(ctx context.Context, username, password string) error
	Devices(ctx context.Context) ([]Device, error)
	SetPoEMode(ctx context.Context, deviceID string, port int, mode PoEMode) error
}

var (
	// ErrInvalidBaseURL is returned when the controller URL cannot be used to build request URLs.
	ErrInvalidBaseURL = errors.New("invalid controller url")
	// ErrAuth is returned when the controller rejects the login.
	ErrAuth = errors.New("controller login failed")
	// ErrUnauthorized marks a request rejected because the session is no longer valid.
	ErrUnauthorized = errors.New("controller session rejected")
)

// StatusError reports a non-2xx response from the controller.
type StatusError struct {
	Op   string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unifi %s: http %d", e.Op, e.Code)
}

// Unwrap lets errors.Is(err, ErrUnauthorized) match 401 responses.
func (e *StatusError) Unwrap() error {
	if e.Code == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	return nil
}

func isUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}
