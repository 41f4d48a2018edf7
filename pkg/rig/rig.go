// Package rig opens the configured sensor set over the configured bus
// and tears it down again in one place, so the apps share the same
// bring-up sequence.
package rig

import (
	"fmt"
	"io"

	"github.com/itohio/gasmox/pkg/bme69x"
	"github.com/itohio/gasmox/pkg/config"
	"github.com/itohio/gasmox/pkg/sample"
)

// Rig is an open sensor set ready for a pipeline.
type Rig struct {
	Sensors []sample.Sensor

	closers []io.Closer // shared bus resources, closed after the drivers
}

// Open connects the bus named by the configuration, creates one driver
// per configured sensor and brings every sensor up with the default
// measurement settings. On any failure everything opened so far is
// closed again.
func (r *Rig) open(cfg *config.Config) error {
	switch cfg.Bus.Kind {
	case "i2c":
		bus, err := bme69x.OpenBus(cfg.Bus.I2C)
		if err != nil {
			return err
		}
		r.closers = append(r.closers, bus)
		for _, sc := range cfg.Sensors {
			r.Sensors = append(r.Sensors, sample.Sensor{Addr: sc.Addr, Driver: bme69x.NewI2C(bus, sc.Addr)})
		}

	case "serial":
		bridge := bme69x.NewBridge(cfg.Bus.Port, cfg.Bus.Baud)
		if err := bridge.Open(); err != nil {
			return err
		}
		r.closers = append(r.closers, bridge)
		for _, sc := range cfg.Sensors {
			r.Sensors = append(r.Sensors, sample.Sensor{Addr: sc.Addr, Driver: bridge.Sensor(sc.Addr)})
		}

	case "mock":
		for _, sc := range cfg.Sensors {
			r.Sensors = append(r.Sensors, sample.Sensor{Addr: sc.Addr, Driver: bme69x.NewMock(&cfg.Mock)})
		}

	default:
		return fmt.Errorf("unknown bus kind %q", cfg.Bus.Kind)
	}

	for _, sn := range r.Sensors {
		if err := sn.Driver.Init(); err != nil {
			return fmt.Errorf("failed to init sensor 0x%02x: %w", sn.Addr, err)
		}
		if err := sn.Driver.Configure(bme69x.DefaultConfig()); err != nil {
			return fmt.Errorf("failed to configure sensor 0x%02x: %w", sn.Addr, err)
		}
	}
	return nil
}

// Open opens the rig described by the configuration.
func Open(cfg *config.Config) (*Rig, error) {
	r := &Rig{}
	if err := r.open(cfg); err != nil {
		r.Close()
		return nil, err
	}
	return r, nil
}

// Close shuts down every driver, then the shared bus resources in
// reverse open order. The first error wins; teardown continues past it.
func (r *Rig) Close() error {
	var first error
	for _, sn := range r.Sensors {
		if err := sn.Driver.Close(); err != nil && first == nil {
			first = err
		}
	}
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	r.Sensors = nil
	r.closers = nil
	return first
}
