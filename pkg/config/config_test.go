package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.NotNil(t, cfg)
	assert.Equal(t, "i2c", cfg.Bus.Kind)
	assert.Equal(t, "1", cfg.Bus.I2C)
	assert.Len(t, cfg.Sensors, 2)
	assert.Equal(t, uint8(0x76), cfg.Sensors[0].Addr)
	assert.Equal(t, uint8(0x77), cfg.Sensors[1].Addr)
	assert.Equal(t, "square", cfg.Heater.Mode)
	assert.Equal(t, uint16(275), cfg.Heater.LowC)
	assert.Equal(t, uint16(325), cfg.Heater.HighC)
	assert.Equal(t, 200*time.Millisecond, cfg.Heater.Period)
	assert.Equal(t, 100*time.Millisecond, cfg.Heater.Half)
	assert.Equal(t, 50*time.Millisecond, cfg.Sampling.Period)
	assert.Equal(t, 2, cfg.Sampling.Warmup)
	assert.Equal(t, 40, cfg.Window.Size)
	assert.Equal(t, "fft", cfg.Analysis.Kind)
	assert.Equal(t, 3, cfg.Analysis.Peaks)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_FileNotExists(t *testing.T) {
	cfg, err := Load("nonexistent.yaml")
	require.NoError(t, err)
	assert.NotNil(t, cfg)
	assert.Equal(t, "i2c", cfg.Bus.Kind)
}

func TestLoad_ValidYAML(t *testing.T) {
	tmpfile, err := os.CreateTemp("", "test_config_*.yaml")
	require.NoError(t, err)
	defer os.Remove(tmpfile.Name())

	yamlContent := `
bus:
  kind: serial
  port: "/dev/ttyACM1"
  baud: 230400

sensors:
  - addr: 0x76

heater:
  mode: square
  low_c: 150
  high_c: 320
  period: 200ms
  half: 100ms
  soak: 5ms

sampling:
  period: 25ms
  warmup: 2

analysis:
  kind: ratio
`

	_, err = tmpfile.WriteString(yamlContent)
	require.NoError(t, err)
	require.NoError(t, tmpfile.Close())

	cfg, err := Load(tmpfile.Name())
	require.NoError(t, err)
	assert.NotNil(t, cfg)

	assert.Equal(t, "serial", cfg.Bus.Kind)
	assert.Equal(t, "/dev/ttyACM1", cfg.Bus.Port)
	assert.Equal(t, 230400, cfg.Bus.Baud)
	assert.Len(t, cfg.Sensors, 1)
	assert.Equal(t, uint16(150), cfg.Heater.LowC)
	assert.Equal(t, uint16(320), cfg.Heater.HighC)
	assert.Equal(t, 25*time.Millisecond, cfg.Sampling.Period)
	assert.Equal(t, "ratio", cfg.Analysis.Kind)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpfile, err := os.CreateTemp("", "test_config_*.yaml")
	require.NoError(t, err)
	defer os.Remove(tmpfile.Name())

	_, err = tmpfile.WriteString("invalid: yaml: content: [")
	require.NoError(t, err)
	require.NoError(t, tmpfile.Close())

	cfg, err := Load(tmpfile.Name())
	assert.Error(t, err)
	assert.Nil(t, cfg)
}

func TestLoad_PartialYAML(t *testing.T) {
	tmpfile, err := os.CreateTemp("", "test_config_*.yaml")
	require.NoError(t, err)
	defer os.Remove(tmpfile.Name())

	yamlContent := `
bus:
  kind: mock
`

	_, err = tmpfile.WriteString(yamlContent)
	require.NoError(t, err)
	require.NoError(t, tmpfile.Close())

	cfg, err := Load(tmpfile.Name())
	require.NoError(t, err)
	assert.NotNil(t, cfg)

	// Should use defaults for missing fields
	assert.Equal(t, "mock", cfg.Bus.Kind)
	assert.Equal(t, 50*time.Millisecond, cfg.Sampling.Period) // default
	assert.Equal(t, 40, cfg.Window.Size)                      // default
	assert.Equal(t, "fft", cfg.Analysis.Kind)                 // default
}

func TestSave(t *testing.T) {
	cfg := Default()
	cfg.Bus.Kind = "serial"
	cfg.Heater.LowC = 200

	tmpfile, err := os.CreateTemp("", "test_save_*.yaml")
	require.NoError(t, err)
	defer os.Remove(tmpfile.Name())

	err = cfg.Save(tmpfile.Name())
	require.NoError(t, err)

	// Load it back and verify
	loaded, err := Load(tmpfile.Name())
	require.NoError(t, err)
	assert.Equal(t, "serial", loaded.Bus.Kind)
	assert.Equal(t, uint16(200), loaded.Heater.LowC)
}

func TestApplyPreset(t *testing.T) {
	tests := []struct {
		name       string
		preset     string
		wantKind   string
		wantPeriod time.Duration
	}{
		{
			name:       "fft",
			preset:     "fft",
			wantKind:   "fft",
			wantPeriod: 50 * time.Millisecond,
		},
		{
			name:       "cycle fft",
			preset:     "cycle-fft",
			wantKind:   "cycle-fft",
			wantPeriod: 50 * time.Millisecond,
		},
		{
			name:       "ratio",
			preset:     "ratio",
			wantKind:   "ratio",
			wantPeriod: 25 * time.Millisecond,
		},
		{
			name:       "hysteresis",
			preset:     "hysteresis",
			wantKind:   "hysteresis",
			wantPeriod: 300 * time.Millisecond,
		},
		{
			name:       "raw",
			preset:     "raw",
			wantKind:   "raw",
			wantPeriod: 200 * time.Millisecond,
		},
		{
			name:       "sweep",
			preset:     "sweep",
			wantKind:   "sweep",
			wantPeriod: 10 * time.Millisecond,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			require.NoError(t, cfg.ApplyPreset(tt.preset))
			assert.Equal(t, tt.wantKind, cfg.Analysis.Kind)
			assert.Equal(t, tt.wantPeriod, cfg.Sampling.Period)
			assert.NoError(t, cfg.Validate())
		})
	}
}

func TestApplyPreset_Unknown(t *testing.T) {
	cfg := Default()
	assert.Error(t, cfg.ApplyPreset("bogus"))
}

func TestApplyPreset_CycleFFT(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.ApplyPreset("cycle-fft"))

	assert.Equal(t, "rolling", cfg.Window.Mode)
	assert.Equal(t, 320, cfg.Window.Size)
	assert.Equal(t, 10, cfg.Window.Stride)
	assert.Equal(t, 20, cfg.Window.Subsamples)
	assert.Equal(t, 2*time.Second, cfg.Heater.Period)
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{
			name:   "bad bus kind",
			mutate: func(c *Config) { c.Bus.Kind = "spi" },
		},
		{
			name:   "no sensors",
			mutate: func(c *Config) { c.Sensors = nil },
		},
		{
			name:   "zero sampling period",
			mutate: func(c *Config) { c.Sampling.Period = 0 },
		},
		{
			name:   "half not below period",
			mutate: func(c *Config) { c.Heater.Half = c.Heater.Period },
		},
		{
			name: "profile without steps",
			mutate: func(c *Config) {
				c.Heater.Mode = "profile"
				c.Heater.Steps = nil
			},
		},
		{
			name: "fft without window",
			mutate: func(c *Config) { c.Window.Size = 0 },
		},
		{
			name:   "unknown analysis",
			mutate: func(c *Config) { c.Analysis.Kind = "wavelet" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
