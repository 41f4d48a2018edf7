package bme69x

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/itohio/gasmox/pkg/config"
)

// Mock simulates a BME69x for testing and development. The gas response
// follows the programmed heater temperature through a first-order lag,
// so square-wave heater modulation produces the expected periodic
// resistance signal.
type Mock struct {
	cfg *config.MockConfig

	mu       sync.Mutex
	inited   bool
	conf     Config
	rng      *rand.Rand
	now      func() time.Time
	lastStep time.Time

	targetC  float64
	plateC   float64 // hotplate temperature, tracks target with lag
	gasOhm   float64
	hasData  bool
	failNext int
}

// NewMock creates a new mocked sensor instance.
func NewMock(cfg *config.MockConfig) *Mock {
	if cfg == nil {
		cfg = &config.MockConfig{
			BaselineOhm:  100000,
			AmplitudeOhm: 20000,
			NoiseOhm:     200,
			ThermalLag:   300 * time.Millisecond,
			Seed:         1,
		}
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	return &Mock{
		cfg:  cfg,
		conf: DefaultConfig(),
		rng:  rand.New(rand.NewSource(seed)),
		now:  time.Now,
	}
}

// Init simulates probing the sensor.
func (m *Mock) Init() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.inited = true
	m.lastStep = m.now()
	m.targetC = 25
	m.plateC = 25
	m.gasOhm = m.cfg.BaselineOhm
	return nil
}

// Configure stores the measurement configuration.
func (m *Mock) Configure(cfg Config) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.inited {
		return ErrNotConnected
	}
	m.conf = cfg
	return nil
}

// SetHeater sets the simulated heater target.
func (m *Mock) SetHeater(targetC uint16, soak time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.inited {
		return ErrNotConnected
	}
	m.targetC = float64(targetC)
	return nil
}

// Trigger advances the simulation by one measurement.
func (m *Mock) Trigger() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.inited {
		return ErrNotConnected
	}

	now := m.now()
	dt := now.Sub(m.lastStep)
	m.lastStep = now
	if dt <= 0 {
		dt = time.Millisecond
	}

	// The hotplate reaches its plateau quickly; the film resistance lags.
	m.plateC += (m.targetC - m.plateC) * 0.8

	alpha := 1 - math.Exp(-dt.Seconds()/m.cfg.ThermalLag.Seconds())
	target := m.gasTarget(m.plateC)
	m.gasOhm += (target - m.gasOhm) * alpha

	m.hasData = true
	return nil
}

// MeasDuration returns the conversion time for the active configuration.
func (m *Mock) MeasDuration() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return MeasDuration(m.conf)
}

// Read returns the simulated measurement, consuming the new-data flag
// like the real sensor does.
func (m *Mock) Read() (Measurement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.inited {
		return Measurement{}, ErrNotConnected
	}
	if m.failNext > 0 {
		m.failNext--
		return Measurement{}, ErrNoData
	}
	if !m.hasData {
		return Measurement{}, ErrNoData
	}
	m.hasData = false

	noise := (m.rng.Float64()*2 - 1) * m.cfg.NoiseOhm
	gas := m.gasOhm + noise
	if gas < 100 {
		gas = 100
	}

	return Measurement{
		GasOhm:      gas,
		TempC:       25 + (m.plateC-25)*0.02, // die heats slightly with the plate
		HumidityPct: 40 + m.rng.Float64(),
		PressurePa:  101325 + m.rng.Float64()*10,
		Status:      statusNewData | statusGasValid | statusHeatStab,
		FieldCount:  1,
	}, nil
}

// Close disconnects the mock.
func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inited = false
	return nil
}

// FailNext makes the next n reads report no data, for exercising the
// substitution path.
func (m *Mock) FailNext(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext = n
}

// gasTarget maps a hotplate temperature to the steady-state resistance:
// hotter plate, lower resistance, spanning AmplitudeOhm across a 100C
// swing around 250C.
func (m *Mock) gasTarget(plateC float64) float64 {
	return m.cfg.BaselineOhm - m.cfg.AmplitudeOhm*(plateC-250)/100
}
