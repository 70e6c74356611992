package unifi

import (
	"context"
	"sync"
)

// Fake is an in-memory Controller. Port overrides it accepts are applied to
// its device table, so a later Devices call reports the new PoE mode.
type Fake struct {
	mu      sync.Mutex
	devices []Device
	writes  []Write
	lists   int
	logins  int

	// Error hooks; a non-nil value is returned by the matching call.
	LoginErr   error
	DevicesErr error
	SetErr     error
}

// Write records one SetPoEMode call accepted or rejected by a Fake.
type Write struct {
	DeviceID string
	Port     int
	Mode     PoEMode
}

// NewFake returns a Fake serving devices.
func NewFake(devices ...Device) *Fake {
	f := &Fake{}
	for _, d := range devices {
		f.devices = append(f.devices, cloneDevice(d))
	}
	return f
}

func (f *Fake) Login(ctx context.Context, username, password string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logins++
	return f.LoginErr
}

func (f *Fake) Devices(ctx context.Context) ([]Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists++
	if f.DevicesErr != nil {
		return nil, f.DevicesErr
	}
	out := make([]Device, len(f.devices))
	for i, d := range f.devices {
		out[i] = cloneDevice(d)
	}
	return out, nil
}

func (f *Fake) SetPoEMode(ctx context.Context, deviceID string, port int, mode PoEMode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, Write{DeviceID: deviceID, Port: port, Mode: mode})
	if f.SetErr != nil {
		return f.SetErr
	}
	for i := range f.devices {
		if f.devices[i].DeviceID != deviceID {
			continue
		}
		for j := range f.devices[i].PortTable {
			if f.devices[i].PortTable[j].PortIdx == port {
				m := mode
				f.devices[i].PortTable[j].PoEMode = &m
			}
		}
	}
	return nil
}

// Writes returns the SetPoEMode calls seen so far.
func (f *Fake) Writes() []Write {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Write(nil), f.writes...)
}

// Lists returns how many times Devices was called.
func (f *Fake) Lists() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lists
}

// Logins returns how many times Login was called.
func (f *Fake) Logins() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.logins
}

func cloneDevice(d Device) Device {
	ports := make([]Port, len(d.PortTable))
	for i, p := range d.PortTable {
		ports[i] = Port{PortIdx: p.PortIdx}
		if p.PoEMode != nil {
			m := *p.PoEMode
			ports[i].PoEMode = &m
		}
	}
	d.PortTable = ports
	return d
}

// Mode returns a pointer to m, for building port tables.
func Mode(m PoEMode) *PoEMode { return &m }
