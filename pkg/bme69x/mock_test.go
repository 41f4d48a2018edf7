package bme69x

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/gasmox/pkg/config"
)

// mockClock returns a clock that advances by step on every call.
func mockClock(step time.Duration) func() time.Time {
	base := time.Unix(0, 0)
	n := 0
	return func() time.Time {
		n++
		return base.Add(time.Duration(n) * step)
	}
}

func TestNewMock_Defaults(t *testing.T) {
	m := NewMock(nil)
	require.NotNil(t, m)
	require.NotNil(t, m.cfg)

	assert.Equal(t, 100000.0, m.cfg.BaselineOhm)
	assert.Equal(t, DefaultConfig(), m.conf)
	assert.NotNil(t, m.rng)
	assert.False(t, m.inited)
}

func TestMock_RequiresInit(t *testing.T) {
	m := NewMock(nil)

	assert.ErrorIs(t, m.Configure(DefaultConfig()), ErrNotConnected)
	assert.ErrorIs(t, m.SetHeater(300, 0), ErrNotConnected)
	assert.ErrorIs(t, m.Trigger(), ErrNotConnected)

	_, err := m.Read()
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestMock_ReadConsumesData(t *testing.T) {
	m := NewMock(nil)
	m.now = mockClock(50 * time.Millisecond)
	require.NoError(t, m.Init())

	// Nothing to read before the first trigger.
	_, err := m.Read()
	assert.ErrorIs(t, err, ErrNoData)

	require.NoError(t, m.Trigger())

	meas, err := m.Read()
	require.NoError(t, err)
	assert.Equal(t, 1, meas.FieldCount)
	assert.EqualValues(t, statusNewData|statusGasValid|statusHeatStab, meas.Status)
	assert.InDelta(t, m.cfg.BaselineOhm, meas.GasOhm, 1000)

	// The new-data flag is consumed by the read.
	_, err = m.Read()
	assert.ErrorIs(t, err, ErrNoData)
}

func TestMock_GasTracksHeater(t *testing.T) {
	cfg := &config.MockConfig{
		BaselineOhm:  100000,
		AmplitudeOhm: 20000,
		NoiseOhm:     0,
		ThermalLag:   300 * time.Millisecond,
		Seed:         1,
	}
	m := NewMock(cfg)
	m.now = mockClock(50 * time.Millisecond)
	require.NoError(t, m.Init())

	// Hot plateau: film resistance settles 14k below baseline.
	require.NoError(t, m.SetHeater(320, 0))
	for i := 0; i < 60; i++ {
		require.NoError(t, m.Trigger())
	}
	hot, err := m.Read()
	require.NoError(t, err)
	assert.InDelta(t, 86000, hot.GasOhm, 500)

	// Cold plateau: resistance recovers above baseline.
	require.NoError(t, m.SetHeater(200, 0))
	for i := 0; i < 60; i++ {
		require.NoError(t, m.Trigger())
	}
	cold, err := m.Read()
	require.NoError(t, err)
	assert.InDelta(t, 110000, cold.GasOhm, 500)

	assert.Less(t, hot.GasOhm, cold.GasOhm)
}

func TestMock_FailNext(t *testing.T) {
	m := NewMock(nil)
	m.now = mockClock(50 * time.Millisecond)
	require.NoError(t, m.Init())
	require.NoError(t, m.Trigger())

	m.FailNext(2)

	_, err := m.Read()
	assert.ErrorIs(t, err, ErrNoData)
	_, err = m.Read()
	assert.ErrorIs(t, err, ErrNoData)

	// Recovered: the pending measurement is still there.
	_, err = m.Read()
	assert.NoError(t, err)
}

func TestMock_Close(t *testing.T) {
	m := NewMock(nil)
	require.NoError(t, m.Init())
	require.NoError(t, m.Close())

	assert.ErrorIs(t, m.Trigger(), ErrNotConnected)
}
