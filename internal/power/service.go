// Package power is the entry point the HTTP layer calls to query and change
// machine power. It turns backend failures into classified errors.
package power

import (
	"context"

	"go.uber.org/zap"

	"github.com/ArthurVardevanyan/poe-shim/internal/backend"
	"github.com/ArthurVardevanyan/poe-shim/internal/metrics"
)

// Status is the power status payload returned to callers.
type Status struct {
	Status backend.PowerState `json:"status"`
}

// Service is safe for concurrent use; it holds no per-request state.
type Service struct {
	backend backend.Backend
	logger  *zap.Logger
	metrics *metrics.Metrics
}

func NewService(b backend.Backend, logger *zap.Logger, m *metrics.Metrics) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{backend: b, logger: logger.Named("power"), metrics: m}
}

// PowerStatus reports whether the machine is running or stopped.
func (s *Service) PowerStatus(ctx context.Context, systemID string) (Status, error) {
	if systemID == "" {
		s.observe("power_status", ErrMissingSystemID)
		return Status{}, ErrMissingSystemID
	}
	state, err := s.backend.PowerStatus(ctx, systemID)
	if err != nil {
		return Status{}, s.fail("power_status", systemID, err)
	}
	s.observe("power_status", nil)
	return Status{Status: state}, nil
}

// PowerOn powers the machine's port. Success means the controller accepted the change.
func (s *Service) PowerOn(ctx context.Context, systemID string) error {
	return s.change(ctx, "power_on", systemID, s.backend.PowerOn)
}

// PowerOff cuts power to the machine's port.
func (s *Service) PowerOff(ctx context.Context, systemID string) error {
	return s.change(ctx, "power_off", systemID, s.backend.PowerOff)
}

// Ready checks the backend's upstream when the backend supports it.
func (s *Service) Ready(ctx context.Context) error {
	hc, ok := s.backend.(backend.HealthChecker)
	if !ok {
		return nil
	}
	if err := hc.Ping(ctx); err != nil {
		return Translate(err)
	}
	return nil
}

func (s *Service) change(ctx context.Context, op, systemID string, fn func(context.Context, string) error) error {
	if systemID == "" {
		s.observe(op, ErrMissingSystemID)
		return ErrMissingSystemID
	}
	if err := fn(ctx, systemID); err != nil {
		return s.fail(op, systemID, err)
	}
	s.observe(op, nil)
	return nil
}

func (s *Service) fail(op, systemID string, err error) *Error {
	pe := Translate(err)
	s.logger.Warn("power operation failed",
		zap.String("operation", op),
		zap.String("system_id", systemID),
		zap.String("kind", string(pe.Kind)),
		zap.Error(err),
	)
	s.observe(op, pe)
	return pe
}

func (s *Service) observe(op string, pe *Error) {
	result := "ok"
	if pe != nil {
		result = string(pe.Kind)
	}
	s.metrics.ObservePower(op, result)
}
