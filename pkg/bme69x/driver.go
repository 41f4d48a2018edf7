// Package bme69x drives BME69x gas sensors in forced measurement mode
// over I2C, over a serial MCU bridge, or simulated.
package bme69x

import (
	"errors"
	"time"
)

// Oversampling selects the number of conversion cycles per measurement.
type Oversampling uint8

const (
	OSNone Oversampling = iota
	OS1X
	OS2X
	OS4X
	OS8X
	OS16X
)

// Filter selects the IIR filter length for temperature and pressure.
type Filter uint8

const (
	FilterOff Filter = iota
	FilterSize1
	FilterSize3
	FilterSize7
	FilterSize15
	FilterSize31
	FilterSize63
	FilterSize127
)

// Config holds the measurement configuration shared by all transports.
type Config struct {
	TempOS  Oversampling
	PressOS Oversampling
	HumOS   Oversampling
	Filter  Filter
}

// DefaultConfig returns the fast configuration used for waveform sampling:
// 1x oversampling everywhere and no IIR filtering, so a forced measurement
// completes well inside a 25ms tick.
func DefaultConfig() Config {
	return Config{
		TempOS:  OS1X,
		PressOS: OS1X,
		HumOS:   OS1X,
		Filter:  FilterOff,
	}
}

// Measurement is the result of one forced measurement.
type Measurement struct {
	GasOhm      float64
	TempC       float64
	HumidityPct float64
	PressurePa  float64
	Status      byte // new-data, gas-valid and heater-stable flags
	FieldCount  int  // 0 when the sensor had no new data
}

// Driver is the transport-independent sensor contract. One forced
// measurement is: SetHeater, Trigger, wait MeasDuration plus the heater
// soak, then Read.
type Driver interface {
	Init() error
	Configure(Config) error
	SetHeater(targetC uint16, soak time.Duration) error
	Trigger() error
	MeasDuration() time.Duration
	Read() (Measurement, error)
	Close() error
}

var (
	// ErrNotConnected is returned when the transport is not open.
	ErrNotConnected = errors.New("bme69x: not connected")
	// ErrNoData is returned when a read finds no completed measurement.
	ErrNoData = errors.New("bme69x: no new data")
	// ErrBadChipID is returned when the probed device is not a BME69x.
	ErrBadChipID = errors.New("bme69x: unexpected chip id")
	// ErrTimeout is returned when the bridge does not reply in time.
	ErrTimeout = errors.New("bme69x: reply timeout")
)

// Ensure every transport implements Driver.
var _ Driver = (*I2C)(nil)
var _ Driver = (*Serial)(nil)
var _ Driver = (*Mock)(nil)

// osCycles maps an Oversampling setting to conversion cycles.
var osCycles = [6]uint32{0, 1, 2, 4, 8, 16}

// MeasDuration returns the TPH conversion time for a configuration.
// Constants follow the vendor timing model: 1963us per conversion cycle,
// 477us per TPH switch, 477us times five for the gas measurement and a
// 500us wake-up.
func MeasDuration(c Config) time.Duration {
	cycles := osCycles[c.TempOS] + osCycles[c.PressOS] + osCycles[c.HumOS]
	us := cycles * 1963
	us += 477 * 4
	us += 477 * 5
	us += 500
	return time.Duration(us) * time.Microsecond
}
