package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ArthurVardevanyan/poe-shim/internal/fleet"
	"github.com/ArthurVardevanyan/poe-shim/internal/unifi"
)

func TestFakeControllerMirrorsFleet(t *testing.T) {
	f := fleet.New([]fleet.Device{
		{MAC: "00:00:00:00:00:01", Machines: []fleet.Machine{{SystemID: "a", Port: 2}}},
		{MAC: "00:00:00:00:00:02", Machines: []fleet.Machine{{SystemID: "b", Port: 5}, {SystemID: "c", Port: 6}}},
	})

	devices, err := fakeController(f).Devices(context.Background())
	require.NoError(t, err)
	require.Len(t, devices, 2)

	assert.Equal(t, "00:00:00:00:00:01", devices[0].DeviceID)
	p, ok := devices[0].Port(2)
	require.True(t, ok)
	assert.Equal(t, unifi.PoEModeOff, *p.PoEMode)

	require.Len(t, devices[1].PortTable, 1)
	assert.Equal(t, 5, devices[1].PortTable[0].PortIdx)
}
