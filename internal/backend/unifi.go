package backend

import (
	"context"
	"strconv"

	"go.uber.org/zap"

	"github.com/ArthurVardevanyan/poe-shim/internal/fleet"
	"github.com/ArthurVardevanyan/poe-shim/internal/unifi"
)

// UniFi powers machines by toggling PoE on the switch port they are plugged
// into. The fleet maps system IDs to a switch MAC and port; the controller
// maps the MAC to its own device ID.
type UniFi struct {
	fleet      *fleet.Fleet
	controller unifi.Controller
	logger     *zap.Logger
}

func NewUniFi(f *fleet.Fleet, c unifi.Controller, logger *zap.Logger) *UniFi {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UniFi{fleet: f, controller: c, logger: logger.Named("backend")}
}

// PowerStatus reads the PoE mode of the machine's port. Every step fails with
// the most specific error; an unknown mode is never reported as a state.
// Modes other than auto and off (pasv24, passthrough) decode cleanly and are
// reported as ErrDeviceNotFound with an empty detail, the same as a port with
// no PoE mode, rather than failing the whole device list.
func (u *UniFi) PowerStatus(ctx context.Context, systemID string) (PowerState, error) {
	mac, ok := u.fleet.OwningDevice(systemID)
	if !ok {
		return "", newError(ErrDeviceNotFound, systemID, nil)
	}
	machine, ok := u.fleet.Machine(systemID)
	if !ok {
		return "", newError(ErrMachineNotFound, systemID, nil)
	}
	deviceID, err := u.DeviceID(ctx, mac)
	if err != nil {
		return "", err
	}
	device, err := u.Device(ctx, deviceID)
	if err != nil {
		return "", err
	}
	port, ok := device.Port(machine.Port)
	if !ok {
		return "", newError(ErrMachinePortIDIncorrect, strconv.Itoa(machine.Port), nil)
	}
	if port.PoEMode == nil {
		// No PoE data on the port is reported as a missing device with no detail.
		return "", newError(ErrDeviceNotFound, "", nil)
	}
	switch *port.PoEMode {
	case unifi.PoEModeAuto:
		return PowerStateRunning, nil
	case unifi.PoEModeOff:
		return PowerStateStopped, nil
	default:
		u.logger.Warn("unsupported poe mode",
			zap.String("system_id", systemID),
			zap.String("device_id", deviceID),
			zap.Int("port", machine.Port),
			zap.String("poe_mode", string(*port.PoEMode)),
		)
		return "", newError(ErrDeviceNotFound, "", nil)
	}
}

// PowerOn sets the machine's port to PoE auto.
func (u *UniFi) PowerOn(ctx context.Context, systemID string) error {
	return u.setPower(ctx, systemID, unifi.PoEModeAuto, ErrPowerOn)
}

// PowerOff sets the machine's port to PoE off.
func (u *UniFi) PowerOff(ctx context.Context, systemID string) error {
	return u.setPower(ctx, systemID, unifi.PoEModeOff, ErrPowerOff)
}

func (u *UniFi) setPower(ctx context.Context, systemID string, mode unifi.PoEMode, kind error) error {
	machine, ok := u.fleet.Machine(systemID)
	if !ok {
		return newError(ErrMachineNotFound, systemID, nil)
	}
	mac, ok := u.fleet.OwningDevice(systemID)
	if !ok {
		return newError(ErrDeviceNotFound, systemID, nil)
	}
	deviceID, err := u.DeviceID(ctx, mac)
	if err != nil {
		return err
	}
	if err := u.controller.SetPoEMode(ctx, deviceID, machine.Port, mode); err != nil {
		return newError(kind, deviceID, err)
	}
	u.logger.Info("port power changed",
		zap.String("system_id", systemID),
		zap.String("device_id", deviceID),
		zap.Int("port", machine.Port),
		zap.String("poe_mode", string(mode)),
	)
	return nil
}

// DeviceID returns the controller's ID for the switch with the given MAC.
func (u *UniFi) DeviceID(ctx context.Context, mac fleet.Address) (string, error) {
	devices, err := u.controller.Devices(ctx)
	if err != nil {
		return "", newError(ErrDeviceList, err.Error(), err)
	}
	for _, d := range devices {
		if mac.Matches(d.MAC) {
			return d.DeviceID, nil
		}
	}
	return "", newError(ErrDeviceNotFound, mac.String(), nil)
}

// Device fetches a fresh copy of the device with the given controller ID.
func (u *UniFi) Device(ctx context.Context, deviceID string) (unifi.Device, error) {
	devices, err := u.controller.Devices(ctx)
	if err != nil {
		return unifi.Device{}, newError(ErrDeviceList, err.Error(), err)
	}
	for _, d := range devices {
		if d.DeviceID == deviceID {
			return d, nil
		}
	}
	return unifi.Device{}, newError(ErrDeviceNotFound, deviceID, nil)
}

// Ping lists devices to check that the controller answers with a valid session.
func (u *UniFi) Ping(ctx context.Context) error {
	if _, err := u.controller.Devices(ctx); err != nil {
		return newError(ErrDeviceList, err.Error(), err)
	}
	return nil
}
