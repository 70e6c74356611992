package unifi

// PoEMode is the per-port PoE setting reported and accepted by the controller.
type PoEMode string

const (
	PoEModeAuto PoEMode = "auto"
	PoEModeOff  PoEMode = "off"
)

// Meta is the status block the controller wraps every response in.
type Meta struct {
	RC  string `json:"rc"`
	Msg string `json:"msg,omitempty"`
}

// Response is the controller's `{meta, data}` envelope.
type Response[T any] struct {
	Meta Meta `json:"meta"`
	Data T    `json:"data"`
}

// Device is a switch as listed by stat/device. Only the fields needed to
// locate a port and read its PoE mode are decoded.
type Device struct {
	MAC       string `json:"mac"`
	DeviceID  string `json:"device_id"`
	PortTable []Port `json:"port_table"`
}

// Port returns the port table entry with index idx.
func (d Device) Port(idx int) (Port, bool) {
	for _, p := range d.PortTable {
		if p.PortIdx == idx {
			return p, true
		}
	}
	return Port{}, false
}

// Port is one row of a device's port table. PoEMode is nil for ports without
// PoE support or when the controller reports null.
type Port struct {
	PortIdx int      `json:"port_idx"`
	PoEMode *PoEMode `json:"poe_mode"`
}

// PortOverride is one entry of a device update's port_overrides list.
type PortOverride struct {
	PortIdx int     `json:"port_idx"`
	PoEMode PoEMode `json:"poe_mode"`
}

type deviceUpdate struct {
	PortOverrides []PortOverride `json:"port_overrides"`
}

type authRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}
