package backend

import "context"

// PowerState is the power state reported to the provisioner.
type PowerState string

const (
	PowerStateRunning PowerState = "running"
	PowerStateStopped PowerState = "stopped"
)

// Backend powers machines addressed by their provisioner system ID.
type Backend interface {
	PowerStatus(ctx context.Context, systemID string) (PowerState, error)
	PowerOn(ctx context.Context, systemID string) error
	PowerOff(ctx context.Context, systemID string) error
}

// HealthChecker is an optional interface that backends can implement
// to report whether their upstream is reachable.
type HealthChecker interface {
	Ping(ctx context.Context) error
}
