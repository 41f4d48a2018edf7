// Package pipeline runs the acquisition loop: wait for the next tick,
// set the heater phase, measure every sensor, feed the analysis stage
// and fan the resulting records out to the sinks. One goroutine drives
// the whole loop; observers get copies.
package pipeline

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/itohio/gasmox/pkg/config"
	"github.com/itohio/gasmox/pkg/heater"
	"github.com/itohio/gasmox/pkg/record"
	"github.com/itohio/gasmox/pkg/sample"
	"github.com/itohio/gasmox/pkg/sched"
	"github.com/itohio/gasmox/pkg/spectral"
)

// Update is a snapshot of the display state handed to OnUpdate
// callbacks. All slices are copies the callback may keep.
type Update struct {
	Samples [][]sample.Sample   // recent samples per sensor, oldest first
	Spectra []spectral.Spectrum // latest spectrum per sensor
	Phase   heater.Phase        // heater phase of the newest tick
}

// Pipeline owns one acquisition run over a fixed sensor set.
type Pipeline struct {
	cfg    *config.Config
	ticker *sched.Ticker
	ctrl   heater.Controller
	acq    *sample.Acquirer
	stage  stage
	sinks  []record.Sink
	addrs  []uint8

	mu      sync.RWMutex
	trace   [][]sample.Sample
	spectra []spectral.Spectrum
	phase   heater.Phase

	cbMu      sync.RWMutex
	callbacks []func(Update)

	maxPoints int
}

// New assembles a pipeline from the configuration and open drivers.
// A nil clock selects the wall clock.
func New(cfg *config.Config, clock sched.Clock, sensors []sample.Sensor, sinks ...record.Sink) (*Pipeline, error) {
	ctrl, err := heater.New(cfg.Heater)
	if err != nil {
		return nil, err
	}

	addrs := make([]uint8, len(sensors))
	for i, sn := range sensors {
		addrs[i] = sn.Addr
	}

	stage, err := newStage(cfg, addrs)
	if err != nil {
		return nil, err
	}

	return &Pipeline{
		cfg:       cfg,
		ticker:    sched.NewTicker(clock, cfg.Sampling.Period),
		ctrl:      ctrl,
		acq:       sample.NewAcquirer(clock, sensors, cfg.Heater.Soak),
		stage:     stage,
		sinks:     sinks,
		addrs:     addrs,
		trace:     make([][]sample.Sample, len(sensors)),
		spectra:   make([]spectral.Spectrum, len(sensors)),
		maxPoints: cfg.Scope.MaxPoints,
	}, nil
}

// Run drives the acquisition loop until the context is cancelled. The
// sweep kind runs its finite segment schedule instead and returns nil
// when all segments are done.
func (p *Pipeline) Run(ctx context.Context) error {
	if p.cfg.Analysis.Kind == "sweep" {
		return p.runSweep(ctx)
	}

	for {
		tick, err := p.ticker.Wait(ctx)
		if err != nil {
			return err
		}

		ph := p.ctrl.Phase(tick)
		samples, err := p.acq.Acquire(ctx, tick, ph)
		if err != nil {
			return err
		}

		recs := p.stage.process(samples)
		for _, r := range recs {
			p.emit(r)
		}
		p.observe(samples, ph, recs)
	}
}

// runSweep steps through the configured half-periods. Each segment gets
// its own square wave and a fresh tick grid; elapsed stamps keep
// counting across segments.
func (p *Pipeline) runSweep(ctx context.Context) error {
	ts := p.ticker.Period()
	fs := 1 / ts.Seconds()

	var base time.Duration
	for _, half := range p.cfg.Sweep.HalfPeriods {
		period := 2 * half
		ctrl := heater.NewSquareWave(p.cfg.Heater.LowC, p.cfg.Heater.HighC, period, half)
		cycles := p.cfg.Sweep.Warmup + p.cfg.Sweep.Cycles
		ticks := uint64(cycles) * uint64(period/ts)

		p.emit(record.Sweep{Half: half, Cycles: p.cfg.Sweep.Cycles, Fs: fs})

		p.ticker.Reset()
		for i := uint64(0); i < ticks; i++ {
			tick, err := p.ticker.Wait(ctx)
			if err != nil {
				return err
			}

			ph := ctrl.Phase(tick)
			samples, err := p.acq.Acquire(ctx, tick, ph)
			if err != nil {
				return err
			}

			var recs []record.Record
			for si := range samples {
				samples[si].Elapsed += base
				if !samples[si].Valid {
					continue
				}
				smp := samples[si]
				recs = append(recs, record.Raw{
					Elapsed:     smp.Elapsed,
					Sensor:      smp.Sensor,
					GasOhm:      smp.GasOhm,
					TempC:       smp.TempC,
					HumidityPct: smp.HumidityPct,
					PressurePa:  smp.PressurePa,
				})
			}
			for _, r := range recs {
				p.emit(r)
			}
			p.observe(samples, ph, nil)
		}
		base += time.Duration(ticks) * ts

		p.emit(record.EndSweep{Half: half})
	}
	return nil
}

// emit writes one record to every sink. Sink failures are logged and
// never stop acquisition.
func (p *Pipeline) emit(r record.Record) {
	for _, s := range p.sinks {
		if err := s.Write(r); err != nil {
			log.Printf("record sink: %v", err)
		}
	}
}

// observe folds the tick into the display buffers and notifies
// callbacks.
func (p *Pipeline) observe(samples []sample.Sample, ph heater.Phase, recs []record.Record) {
	p.mu.Lock()
	for i, smp := range samples {
		p.trace[i] = append(p.trace[i], smp)
		if p.maxPoints > 0 && len(p.trace[i]) > p.maxPoints {
			p.trace[i] = p.trace[i][1:]
		}
	}
	for _, r := range recs {
		if f, ok := r.(record.FFT); ok {
			if i := p.sensorIndex(f.Sensor); i >= 0 {
				p.spectra[i] = spectral.Spectrum{Fs: f.Fs, N: 2 * (len(f.Mags) - 1), Mag: f.Mags}
			}
		}
	}
	p.phase = ph
	p.mu.Unlock()

	p.notify()
}

func (p *Pipeline) sensorIndex(addr uint8) int {
	for i, a := range p.addrs {
		if a == addr {
			return i
		}
	}
	return -1
}

// OnUpdate registers a callback invoked after every tick with a copy of
// the display state. Callbacks run on the pipeline goroutine and should
// return quickly.
func (p *Pipeline) OnUpdate(callback func(Update)) {
	p.cbMu.Lock()
	defer p.cbMu.Unlock()
	p.callbacks = append(p.callbacks, callback)
}

// Samples returns a copy of the recent samples per sensor.
func (p *Pipeline) Samples() [][]sample.Sample {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.copyTrace()
}

// Spectra returns a copy of the latest spectrum per sensor.
func (p *Pipeline) Spectra() []spectral.Spectrum {
	p.mu.RLock()
	defer p.mu.RUnlock()

	result := make([]spectral.Spectrum, len(p.spectra))
	copy(result, p.spectra)
	return result
}

// Phase returns the heater phase of the newest tick.
func (p *Pipeline) Phase() heater.Phase {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.phase
}

// notify invokes all registered callbacks with the same snapshot.
// Copies are taken under the read lock, callbacks run without it.
func (p *Pipeline) notify() {
	p.cbMu.RLock()
	callbacks := make([]func(Update), len(p.callbacks))
	copy(callbacks, p.callbacks)
	p.cbMu.RUnlock()

	if len(callbacks) == 0 {
		return
	}

	p.mu.RLock()
	u := Update{
		Samples: p.copyTrace(),
		Spectra: make([]spectral.Spectrum, len(p.spectra)),
		Phase:   p.phase,
	}
	copy(u.Spectra, p.spectra)
	p.mu.RUnlock()

	for _, cb := range callbacks {
		if cb != nil {
			cb(u)
		}
	}
}

// copyTrace duplicates the trace buffers. Callers hold p.mu.
func (p *Pipeline) copyTrace() [][]sample.Sample {
	out := make([][]sample.Sample, len(p.trace))
	for i, tr := range p.trace {
		out[i] = make([]sample.Sample, len(tr))
		copy(out[i], tr)
	}
	return out
}
