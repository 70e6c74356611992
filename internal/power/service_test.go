package power

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ArthurVardevanyan/poe-shim/internal/backend"
	"github.com/ArthurVardevanyan/poe-shim/internal/fleet"
	"github.com/ArthurVardevanyan/poe-shim/internal/metrics"
	"github.com/ArthurVardevanyan/poe-shim/internal/unifi"
)

func newTestService(ctrl *unifi.Fake) *Service {
	f := fleet.New([]fleet.Device{{
		MAC:      "00:00:00:00:00:00",
		Machines: []fleet.Machine{{SystemID: "system-id", Port: 1}},
	}})
	return NewService(backend.NewUniFi(f, ctrl, zap.NewNop()), zap.NewNop(), metrics.New(prometheus.NewRegistry()))
}

func runningSwitch() unifi.Device {
	return unifi.Device{
		MAC:       "00:00:00:00:00:00",
		DeviceID:  "device-id",
		PortTable: []unifi.Port{{PortIdx: 1, PoEMode: unifi.Mode(unifi.PoEModeAuto)}},
	}
}

func requireKind(t *testing.T, err error, kind Kind) *Error {
	t.Helper()
	var pe *Error
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, kind, pe.Kind)
	return pe
}

func TestPowerStatusRunning(t *testing.T) {
	s := newTestService(unifi.NewFake(runningSwitch()))

	got, err := s.PowerStatus(context.Background(), "system-id")
	require.NoError(t, err)
	assert.Equal(t, Status{Status: backend.PowerStateRunning}, got)
}

func TestPowerStatusControllerTimeout(t *testing.T) {
	ctrl := unifi.NewFake(runningSwitch())
	ctrl.DevicesErr = context.DeadlineExceeded
	s := newTestService(ctrl)

	_, err := s.PowerStatus(context.Background(), "system-id")
	pe := requireKind(t, err, KindDeviceList)
	assert.Equal(t, "Failed to list devices, error: context deadline exceeded", pe.Message)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPowerStatusErrors(t *testing.T) {
	tests := []struct {
		name     string
		systemID string
		device   unifi.Device
		kind     Kind
		message  string
	}{
		{
			name:     "missing system id",
			systemID: "",
			device:   runningSwitch(),
			kind:     KindMissingSystemID,
			message:  "System ID was not found in request.",
		},
		{
			name:     "unknown system id",
			systemID: "unknown-id",
			device:   runningSwitch(),
			kind:     KindDeviceNotFound,
			message:  "Device with mac address unknown-id was not found!",
		},
		{
			name:     "wrong port",
			systemID: "system-id",
			device: unifi.Device{
				MAC:       "00:00:00:00:00:00",
				DeviceID:  "device-id",
				PortTable: []unifi.Port{{PortIdx: 2, PoEMode: unifi.Mode(unifi.PoEModeAuto)}},
			},
			kind:    KindMachinePortIDIncorrect,
			message: "Found no machine on port 1!",
		},
		{
			name:     "switch unknown to controller",
			systemID: "system-id",
			device:   unifi.Device{MAC: "11:11:11:11:11:11", DeviceID: "other"},
			kind:     KindDeviceNotFound,
			message:  "Device with mac address 00:00:00:00:00:00 was not found!",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestService(unifi.NewFake(tt.device))

			_, err := s.PowerStatus(context.Background(), tt.systemID)
			pe := requireKind(t, err, tt.kind)
			assert.Equal(t, tt.message, pe.Message)
		})
	}
}

func TestPowerOnUnknownMachine(t *testing.T) {
	ctrl := unifi.NewFake(runningSwitch())
	s := newTestService(ctrl)

	err := s.PowerOn(context.Background(), "unknown-id")
	pe := requireKind(t, err, KindMachineNotFound)
	assert.Equal(t, "Machine with system id unknown-id was not found!", pe.Message)
	assert.Zero(t, ctrl.Lists())
	assert.Empty(t, ctrl.Writes())
}

func TestPowerOnAndOff(t *testing.T) {
	ctrl := unifi.NewFake(runningSwitch())
	s := newTestService(ctrl)

	require.NoError(t, s.PowerOff(context.Background(), "system-id"))
	got, err := s.PowerStatus(context.Background(), "system-id")
	require.NoError(t, err)
	assert.Equal(t, backend.PowerStateStopped, got.Status)

	require.NoError(t, s.PowerOn(context.Background(), "system-id"))
	got, err = s.PowerStatus(context.Background(), "system-id")
	require.NoError(t, err)
	assert.Equal(t, backend.PowerStateRunning, got.Status)

	assert.Equal(t, []unifi.Write{
		{DeviceID: "device-id", Port: 1, Mode: unifi.PoEModeOff},
		{DeviceID: "device-id", Port: 1, Mode: unifi.PoEModeAuto},
	}, ctrl.Writes())
}

func TestPowerOnMissingSystemID(t *testing.T) {
	ctrl := unifi.NewFake(runningSwitch())
	s := newTestService(ctrl)

	requireKind(t, s.PowerOn(context.Background(), ""), KindMissingSystemID)
	assert.Zero(t, ctrl.Lists())
}

func TestPowerOnRejected(t *testing.T) {
	ctrl := unifi.NewFake(runningSwitch())
	ctrl.SetErr = &unifi.StatusError{Op: "update device device-id", Code: 500}
	s := newTestService(ctrl)

	err := s.PowerOn(context.Background(), "system-id")
	pe := requireKind(t, err, KindFailedToPowerOn)
	assert.Equal(t, "Failed to power on a port on the device device-id!", pe.Message)
	var se *unifi.StatusError
	require.ErrorAs(t, pe, &se)
	assert.Equal(t, 500, se.Code)

	err = s.PowerOff(context.Background(), "system-id")
	pe = requireKind(t, err, KindFailedToPowerOff)
	assert.Equal(t, "Failed to power off a port on the device device-id!", pe.Message)
}

func TestReady(t *testing.T) {
	ctrl := unifi.NewFake(runningSwitch())
	s := newTestService(ctrl)
	require.NoError(t, s.Ready(context.Background()))

	ctrl.DevicesErr = errors.New("connection refused")
	requireKind(t, s.Ready(context.Background()), KindDeviceList)
}

func TestTranslate(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind Kind
	}{
		{name: "invalid url", err: fmt.Errorf("%w: missing host", unifi.ErrInvalidBaseURL), kind: KindFailedToConstructURL},
		{name: "auth", err: fmt.Errorf("%w: %w", unifi.ErrAuth, &unifi.StatusError{Op: "login", Code: 400}), kind: KindAuth},
		{name: "unclassified", err: errors.New("boom"), kind: KindInternal},
		{name: "already classified", err: ErrMissingSystemID, kind: KindMissingSystemID},
		{name: "bare sentinel", err: backend.ErrPowerOn, kind: KindFailedToPowerOn},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, Translate(tt.err).Kind)
		})
	}

	assert.Nil(t, Translate(nil))
}
