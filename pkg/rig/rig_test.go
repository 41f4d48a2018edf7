package rig

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/gasmox/pkg/config"
)

func TestOpen_Mock(t *testing.T) {
	cfg := config.Default()
	cfg.Bus.Kind = "mock"

	r, err := Open(cfg)
	require.NoError(t, err)
	defer r.Close()

	require.Len(t, r.Sensors, 2)
	assert.Equal(t, uint8(0x76), r.Sensors[0].Addr)
	assert.Equal(t, uint8(0x77), r.Sensors[1].Addr)
	assert.NotSame(t, r.Sensors[0].Driver, r.Sensors[1].Driver)

	// Open leaves every sensor initialized and configured, so a
	// measurement round works right away.
	drv := r.Sensors[0].Driver
	require.NoError(t, drv.SetHeater(300, 0))
	require.NoError(t, drv.Trigger())
	meas, err := drv.Read()
	require.NoError(t, err)
	assert.Greater(t, meas.GasOhm, 0.0)
}

func TestOpen_UnknownKind(t *testing.T) {
	cfg := config.Default()
	cfg.Bus.Kind = "bogus"

	_, err := Open(cfg)
	assert.Error(t, err)
}

func TestClose_Idempotent(t *testing.T) {
	cfg := config.Default()
	cfg.Bus.Kind = "mock"

	r, err := Open(cfg)
	require.NoError(t, err)

	assert.NoError(t, r.Close())
	assert.NoError(t, r.Close())
}
