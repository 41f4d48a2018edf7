package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the rig configuration.
type Config struct {
	Bus      BusConfig      `yaml:"bus"`
	Sensors  []SensorConfig `yaml:"sensors"`
	Heater   HeaterConfig   `yaml:"heater"`
	Sampling SamplingConfig `yaml:"sampling"`
	Window   WindowConfig   `yaml:"window"`
	Analysis AnalysisConfig `yaml:"analysis"`
	Output   OutputConfig   `yaml:"output"`
	Sweep    SweepConfig    `yaml:"sweep"`
	Scope    ScopeConfig    `yaml:"scope"`
	Mock     MockConfig     `yaml:"mock"`
}

// BusConfig selects how the sensors are reached.
type BusConfig struct {
	Kind string `yaml:"kind"` // "i2c", "serial" or "mock"
	I2C  string `yaml:"i2c"`  // bus name for periph.io, e.g. "1" or "/dev/i2c-1"
	Port string `yaml:"port"` // serial port of the MCU bridge
	Baud int    `yaml:"baud"`
}

// SensorConfig identifies one sensor on the bus.
type SensorConfig struct {
	Addr uint8 `yaml:"addr"` // 0x76 or 0x77
}

// HeaterConfig describes the heater temperature waveform.
type HeaterConfig struct {
	Mode   string        `yaml:"mode"`    // "square", "profile" or "fixed"
	LowC   uint16        `yaml:"low_c"`   // square wave low plateau (degC)
	HighC  uint16        `yaml:"high_c"`  // square wave high plateau (degC)
	Period time.Duration `yaml:"period"`  // square wave period
	Half   time.Duration `yaml:"half"`    // duration of the low plateau
	Steps  []uint16      `yaml:"steps"`   // profile temperatures, one per sample
	FixedC uint16        `yaml:"fixed_c"` // constant temperature for "fixed"
	Soak   time.Duration `yaml:"soak"`    // heater dwell per forced measurement
}

// SamplingConfig sets the acquisition cadence.
type SamplingConfig struct {
	Period time.Duration `yaml:"period"` // tick period (1/Fs)
	Warmup int           `yaml:"warmup"` // windows/cycles (samples for "raw") discarded before output
}

// WindowConfig sizes the analysis window.
type WindowConfig struct {
	Size       int    `yaml:"size"`       // samples per window (N)
	Mode       string `yaml:"mode"`       // "block" or "rolling"
	Stride     int    `yaml:"stride"`     // rolling: analyze every K-th completed cycle
	Subsamples int    `yaml:"subsamples"` // samples per heater plateau (cycle analyses)
}

// AnalysisConfig selects the per-window analysis.
type AnalysisConfig struct {
	Kind  string `yaml:"kind"`  // "fft", "ratio", "hysteresis", "cycle-fft", "raw" or "sweep"
	Peaks int    `yaml:"peaks"` // spectral peaks to report
}

// OutputConfig selects record sinks.
type OutputConfig struct {
	Path string     `yaml:"path"` // record file, "-" for stdout
	MQTT MQTTConfig `yaml:"mqtt"`
}

// MQTTConfig configures the optional MQTT record sink.
type MQTTConfig struct {
	Enabled bool   `yaml:"enabled"`
	Broker  string `yaml:"broker"` // host:port
	Topic   string `yaml:"topic"`  // topic prefix, record type is appended
	QoS     byte   `yaml:"qos"`
}

// SweepConfig drives the square-wave frequency sweep.
type SweepConfig struct {
	HalfPeriods []time.Duration `yaml:"half_periods"` // one segment per half-period
	Cycles      int             `yaml:"cycles"`       // measured cycles per segment
	Warmup      int             `yaml:"warmup"`       // extra settling cycles per segment
}

// ScopeConfig tunes the live viewer.
type ScopeConfig struct {
	MaxPoints int           `yaml:"max_points"` // trace points kept for display
	Refresh   time.Duration `yaml:"refresh"`    // UI update throttle
}

// MockConfig contains mock sensor configuration.
type MockConfig struct {
	BaselineOhm  float64       `yaml:"baseline_ohm"`  // gas resistance at the low plateau
	AmplitudeOhm float64       `yaml:"amplitude_ohm"` // resistance swing across the heater range
	NoiseOhm     float64       `yaml:"noise_ohm"`     // additive noise
	ThermalLag   time.Duration `yaml:"thermal_lag"`   // first-order lag toward the target
	Seed         int64         `yaml:"seed"`          // 0 picks a time-based seed
}

// Default returns the dual-sensor FFT configuration (the "fft" preset).
func Default() *Config {
	return &Config{
		Bus: BusConfig{
			Kind: "i2c",
			I2C:  "1",
			Port: "/dev/ttyACM0",
			Baud: 115200,
		},
		Sensors: []SensorConfig{
			{Addr: 0x76},
			{Addr: 0x77},
		},
		Heater: HeaterConfig{
			Mode:   "square",
			LowC:   275,
			HighC:  325,
			Period: 200 * time.Millisecond,
			Half:   100 * time.Millisecond,
			FixedC: 250,
			Soak:   10 * time.Millisecond,
		},
		Sampling: SamplingConfig{
			Period: 50 * time.Millisecond, // 20 Hz
			Warmup: 2,
		},
		Window: WindowConfig{
			Size:   40, // 2 seconds at 20 Hz
			Mode:   "block",
			Stride: 1,
		},
		Analysis: AnalysisConfig{
			Kind:  "fft",
			Peaks: 3,
		},
		Output: OutputConfig{
			Path: "-",
			MQTT: MQTTConfig{
				Broker: "localhost:1883",
				Topic:  "gasmox",
			},
		},
		Sweep: SweepConfig{
			HalfPeriods: []time.Duration{
				50 * time.Millisecond, 75 * time.Millisecond,
				100 * time.Millisecond, 125 * time.Millisecond,
				150 * time.Millisecond, 200 * time.Millisecond,
				250 * time.Millisecond, 300 * time.Millisecond,
				400 * time.Millisecond, 500 * time.Millisecond,
			},
			Cycles: 15,
			Warmup: 3,
		},
		Scope: ScopeConfig{
			MaxPoints: 512,
			Refresh:   33 * time.Millisecond,
		},
		Mock: MockConfig{
			BaselineOhm:  100000,
			AmplitudeOhm: 20000,
			NoiseOhm:     200,
			ThermalLag:   300 * time.Millisecond,
			Seed:         1,
		},
	}
}

// ApplyPreset overwrites the heater, sampling, window and analysis sections
// with one of the canonical rig configurations.
func (c *Config) ApplyPreset(name string) error {
	switch name {
	case "fft":
		def := Default()
		c.Heater = def.Heater
		c.Sampling = def.Sampling
		c.Window = def.Window
		c.Analysis = def.Analysis

	case "cycle-fft":
		c.Heater = HeaterConfig{
			Mode:   "square",
			LowC:   200,
			HighC:  320,
			Period: 2 * time.Second,
			Half:   time.Second,
			Soak:   10 * time.Millisecond,
		}
		c.Sampling = SamplingConfig{Period: 50 * time.Millisecond, Warmup: 2}
		c.Window = WindowConfig{
			Size:       320, // 16 cycles of 20 subsamples
			Mode:       "rolling",
			Stride:     10,
			Subsamples: 20,
		}
		c.Analysis = AnalysisConfig{Kind: "cycle-fft", Peaks: 3}

	case "ratio":
		c.Heater = HeaterConfig{
			Mode:   "square",
			LowC:   150,
			HighC:  320,
			Period: 200 * time.Millisecond,
			Half:   100 * time.Millisecond,
			Soak:   5 * time.Millisecond,
		}
		c.Sampling = SamplingConfig{Period: 25 * time.Millisecond, Warmup: 2}
		c.Window = WindowConfig{Mode: "block"}
		c.Analysis = AnalysisConfig{Kind: "ratio"}

	case "hysteresis":
		c.Heater = HeaterConfig{
			Mode:  "profile",
			Steps: []uint16{100, 175, 250, 325, 325, 250, 175, 100},
			Soak:  250 * time.Millisecond,
		}
		c.Sampling = SamplingConfig{Period: 300 * time.Millisecond, Warmup: 2}
		c.Window = WindowConfig{Size: 8, Mode: "block"}
		c.Analysis = AnalysisConfig{Kind: "hysteresis"}

	case "raw":
		c.Heater = HeaterConfig{
			Mode:   "fixed",
			FixedC: 250,
			Soak:   100 * time.Millisecond,
		}
		c.Sampling = SamplingConfig{Period: 200 * time.Millisecond, Warmup: 10}
		c.Window = WindowConfig{Mode: "block"}
		c.Analysis = AnalysisConfig{Kind: "raw"}

	case "sweep":
		c.Heater = HeaterConfig{
			Mode:   "square",
			LowC:   250,
			HighC:  320,
			Period: 100 * time.Millisecond, // nominal, the sweep rebuilds per segment
			Half:   50 * time.Millisecond,
			Soak:   3 * time.Millisecond,
		}
		c.Sampling = SamplingConfig{Period: 10 * time.Millisecond} // 100 Hz
		c.Window = WindowConfig{Mode: "block"}
		c.Analysis = AnalysisConfig{Kind: "sweep"}

	default:
		return fmt.Errorf("unknown preset %q", name)
	}

	return nil
}

// Load loads configuration from a YAML file. If the file doesn't exist or
// fields are missing, it uses default values.
func Load(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			// File doesn't exist, return defaults
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Ensure minimum required fields are set (use defaults if missing)
	cfg.ensureDefaults()

	return cfg, nil
}

// Save saves the configuration to a YAML file.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate reports configuration errors that must abort startup.
func (c *Config) Validate() error {
	switch c.Bus.Kind {
	case "i2c", "serial", "mock":
	default:
		return fmt.Errorf("bus kind must be i2c, serial or mock, got %q", c.Bus.Kind)
	}

	if len(c.Sensors) == 0 {
		return fmt.Errorf("at least one sensor address is required")
	}

	if c.Sampling.Period <= 0 {
		return fmt.Errorf("sampling period must be positive, got %v", c.Sampling.Period)
	}

	switch c.Heater.Mode {
	case "square":
		if c.Heater.Period <= 0 || c.Heater.Half <= 0 || c.Heater.Half >= c.Heater.Period {
			return fmt.Errorf("square wave needs 0 < half < period, got half=%v period=%v",
				c.Heater.Half, c.Heater.Period)
		}
	case "profile":
		if len(c.Heater.Steps) == 0 {
			return fmt.Errorf("profile mode needs at least one step temperature")
		}
	case "fixed":
		if c.Heater.FixedC == 0 {
			return fmt.Errorf("fixed mode needs a target temperature")
		}
	default:
		return fmt.Errorf("heater mode must be square, profile or fixed, got %q", c.Heater.Mode)
	}

	switch c.Analysis.Kind {
	case "fft", "cycle-fft", "hysteresis":
		if c.Window.Size <= 0 {
			return fmt.Errorf("%s analysis needs a window size", c.Analysis.Kind)
		}
	case "ratio", "raw":
	case "sweep":
		if len(c.Sweep.HalfPeriods) == 0 {
			return fmt.Errorf("sweep needs at least one half-period")
		}
	default:
		return fmt.Errorf("unknown analysis kind %q", c.Analysis.Kind)
	}

	return nil
}

// ensureDefaults ensures that all required fields have default values if missing.
func (c *Config) ensureDefaults() {
	def := Default()

	if c.Bus.Kind == "" {
		c.Bus.Kind = def.Bus.Kind
	}
	if c.Bus.I2C == "" {
		c.Bus.I2C = def.Bus.I2C
	}
	if c.Bus.Port == "" {
		c.Bus.Port = def.Bus.Port
	}
	if c.Bus.Baud == 0 {
		c.Bus.Baud = def.Bus.Baud
	}

	if len(c.Sensors) == 0 {
		c.Sensors = def.Sensors
	}

	if c.Heater.Mode == "" {
		c.Heater.Mode = def.Heater.Mode
	}
	if c.Heater.Soak == 0 {
		c.Heater.Soak = def.Heater.Soak
	}

	if c.Sampling.Period == 0 {
		c.Sampling.Period = def.Sampling.Period
	}

	if c.Window.Mode == "" {
		c.Window.Mode = def.Window.Mode
	}
	if c.Window.Stride == 0 {
		c.Window.Stride = def.Window.Stride
	}

	if c.Analysis.Kind == "" {
		c.Analysis.Kind = def.Analysis.Kind
	}
	if c.Analysis.Peaks == 0 {
		c.Analysis.Peaks = def.Analysis.Peaks
	}

	if c.Output.Path == "" {
		c.Output.Path = def.Output.Path
	}
	if c.Output.MQTT.Broker == "" {
		c.Output.MQTT.Broker = def.Output.MQTT.Broker
	}
	if c.Output.MQTT.Topic == "" {
		c.Output.MQTT.Topic = def.Output.MQTT.Topic
	}

	if len(c.Sweep.HalfPeriods) == 0 {
		c.Sweep.HalfPeriods = def.Sweep.HalfPeriods
	}
	if c.Sweep.Cycles == 0 {
		c.Sweep.Cycles = def.Sweep.Cycles
	}
	if c.Sweep.Warmup == 0 {
		c.Sweep.Warmup = def.Sweep.Warmup
	}

	if c.Scope.MaxPoints == 0 {
		c.Scope.MaxPoints = def.Scope.MaxPoints
	}
	if c.Scope.Refresh == 0 {
		c.Scope.Refresh = def.Scope.Refresh
	}

	if c.Mock.BaselineOhm == 0 {
		c.Mock.BaselineOhm = def.Mock.BaselineOhm
	}
	if c.Mock.AmplitudeOhm == 0 {
		c.Mock.AmplitudeOhm = def.Mock.AmplitudeOhm
	}
	if c.Mock.ThermalLag == 0 {
		c.Mock.ThermalLag = def.Mock.ThermalLag
	}
}
