// Package record defines the line-oriented output of the rig. Field
// order and formatting are consumed downstream, so every encoder spells
// both out explicitly.
package record

import (
	"fmt"
	"strings"
	"time"

	"github.com/itohio/gasmox/pkg/spectral"
)

// Record is one output line. Kind is the leading field of the line and
// the subtopic an MQTT sink publishes the record under.
type Record interface {
	fmt.Stringer
	Kind() string
}

var (
	_ Record = FFT{}
	_ Record = Peaks{}
	_ Record = Ratio{}
	_ Record = Cycle{}
	_ Record = Vec{}
	_ Record = Raw{}
	_ Record = Sweep{}
	_ Record = EndSweep{}
)

// FFT is the magnitude spectrum of one completed window.
type FFT struct {
	Elapsed time.Duration // since run start
	Sensor  uint8
	Fs      float64
	Mags    []float64 // bins 0..N/2
}

func (r FFT) Kind() string { return "FFT" }

func (r FFT) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "FFT,%d,0x%02X,%.6f", r.Elapsed.Milliseconds(), r.Sensor, r.Fs)
	for _, m := range r.Mags {
		fmt.Fprintf(&b, ",%.6f", m)
	}
	return b.String()
}

// Peaks reports the strongest non-DC spectral peaks of one window.
type Peaks struct {
	Elapsed time.Duration
	Sensor  uint8
	Top     []spectral.Peak
}

func (r Peaks) Kind() string { return "PEAK" }

func (r Peaks) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "PEAK,%d,0x%02X", r.Elapsed.Milliseconds(), r.Sensor)
	for _, p := range r.Top {
		fmt.Fprintf(&b, ",%.3f,%.6f", p.Freq, p.Mag)
	}
	return b.String()
}

// Ratio is the per-period high/low response ratio of one sensor.
type Ratio struct {
	Elapsed time.Duration
	Sensor  uint8
	Value   float64
}

func (r Ratio) Kind() string { return "RATIO" }

func (r Ratio) String() string {
	return fmt.Sprintf("RATIO,%d,0x%02X,%.6f", r.Elapsed.Milliseconds(), r.Sensor, r.Value)
}

// Cycle is the step-difference vector of one completed heater cycle,
// one value per subsample pair.
type Cycle struct {
	ID   uint64
	Vals []float64
}

func (r Cycle) Kind() string { return "FEATURE_CYCLE" }

func (r Cycle) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "FEATURE_CYCLE,%d", r.ID)
	for _, v := range r.Vals {
		fmt.Fprintf(&b, ",%.6f", v)
	}
	return b.String()
}

// Vec is the hysteresis difference vector of one completed profile
// cycle.
type Vec struct {
	ID   uint64
	Vals []float64
}

func (r Vec) Kind() string { return "FEATURE_VEC" }

func (r Vec) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "FEATURE_VEC,%d", r.ID)
	for _, v := range r.Vals {
		fmt.Fprintf(&b, ",%.6f", v)
	}
	return b.String()
}

// Raw is one valid reading, uninterpreted.
type Raw struct {
	Elapsed     time.Duration
	Sensor      uint8
	GasOhm      float64
	TempC       float64
	HumidityPct float64
	PressurePa  float64
}

func (r Raw) Kind() string { return "RAW" }

func (r Raw) String() string {
	return fmt.Sprintf("RAW,%d,0x%02X,%.2f,%.2f,%.2f,%.2f",
		r.Elapsed.Milliseconds(), r.Sensor, r.GasOhm, r.TempC, r.HumidityPct, r.PressurePa)
}

// Sweep marks the start of one sweep segment: the square-wave
// half-period, the resulting modulation frequency, the number of
// measured cycles and the sampling rate.
type Sweep struct {
	Half   time.Duration
	Cycles int
	Fs     float64
}

func (r Sweep) Kind() string { return "SWEEP" }

func (r Sweep) String() string {
	f := 1 / (2 * r.Half.Seconds())
	return fmt.Sprintf("SWEEP,%d,%.6f,%d,%.2f", r.Half.Milliseconds(), f, r.Cycles, r.Fs)
}

// EndSweep marks the end of one sweep segment.
type EndSweep struct {
	Half time.Duration
}

func (r EndSweep) Kind() string { return "ENDSWEEP" }

func (r EndSweep) String() string {
	return fmt.Sprintf("ENDSWEEP,%d", r.Half.Milliseconds())
}
