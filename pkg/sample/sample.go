// Package sample acquires one forced measurement per sensor per
// scheduler tick. A sensor that produces nothing gets the previously
// recorded value substituted, so downstream windows never have gaps and
// the sampling grid stays uniform.
package sample

import (
	"context"
	"log"
	"time"

	"github.com/itohio/gasmox/pkg/bme69x"
	"github.com/itohio/gasmox/pkg/heater"
	"github.com/itohio/gasmox/pkg/sched"
)

// Sample is one recorded point from one sensor.
type Sample struct {
	Seq     uint64        // acquisition tick number
	Elapsed time.Duration // nominal time since the run started
	Sensor  uint8         // bus address

	GasOhm      float64
	TempC       float64
	HumidityPct float64
	PressurePa  float64
	Status      byte // sensor status flags as read

	TargetC uint16 // commanded heater plateau
	Level   int    // heater level this tick
	Step    int    // heater profile step this tick
	Cycle   uint64 // heater cycle this tick belongs to

	Valid bool // false when the value was held from an earlier tick
}

// Sensor pairs a driver with its bus address.
type Sensor struct {
	Addr   uint8
	Driver bme69x.Driver
}

// Acquirer measures every sensor once per tick, sequentially. The tick
// period must cover heater soak plus conversion time for all sensors.
type Acquirer struct {
	clock   sched.Clock
	sensors []Sensor
	soak    time.Duration
	last    []Sample
}

// NewAcquirer creates an acquirer over the given sensors. A nil clock
// selects the wall clock.
func NewAcquirer(clock sched.Clock, sensors []Sensor, soak time.Duration) *Acquirer {
	if clock == nil {
		clock = sched.WallClock{}
	}
	return &Acquirer{
		clock:   clock,
		sensors: sensors,
		soak:    soak,
		last:    make([]Sample, len(sensors)),
	}
}

// Acquire runs one measurement round for the tick. A sensor that fails
// to deliver gets the last recorded value with Valid cleared; before
// the first success that value is zero. The returned slice has one
// sample per sensor, in configuration order.
func (a *Acquirer) Acquire(ctx context.Context, tick sched.Tick, ph heater.Phase) ([]Sample, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([]Sample, len(a.sensors))
	for i, sn := range a.sensors {
		s := Sample{
			Seq:     tick.Seq,
			Elapsed: tick.Elapsed,
			Sensor:  sn.Addr,
			TargetC: ph.TargetC,
			Level:   ph.Level,
			Step:    ph.Step,
			Cycle:   ph.Cycle,
			Valid:   true,
		}

		meas, err := a.measure(ctx, sn.Driver, ph)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Printf("sensor 0x%02X: %v, holding last value", sn.Addr, err)
			prev := a.last[i]
			s.GasOhm = prev.GasOhm
			s.TempC = prev.TempC
			s.HumidityPct = prev.HumidityPct
			s.PressurePa = prev.PressurePa
			s.Status = prev.Status
			s.Valid = false
		} else {
			s.GasOhm = meas.GasOhm
			s.TempC = meas.TempC
			s.HumidityPct = meas.HumidityPct
			s.PressurePa = meas.PressurePa
			s.Status = meas.Status
		}

		a.last[i] = s
		out[i] = s
	}
	return out, nil
}

// measure runs one forced measurement: program the heater, trigger,
// wait out soak plus conversion, then read.
func (a *Acquirer) measure(ctx context.Context, drv bme69x.Driver, ph heater.Phase) (bme69x.Measurement, error) {
	if err := drv.SetHeater(ph.TargetC, a.soak); err != nil {
		return bme69x.Measurement{}, err
	}
	if err := drv.Trigger(); err != nil {
		return bme69x.Measurement{}, err
	}

	select {
	case <-ctx.Done():
		return bme69x.Measurement{}, ctx.Err()
	case <-a.clock.After(drv.MeasDuration() + a.soak):
	}

	return drv.Read()
}
