package pipeline

import (
	"fmt"

	"github.com/itohio/gasmox/pkg/config"
	"github.com/itohio/gasmox/pkg/feature"
	"github.com/itohio/gasmox/pkg/record"
	"github.com/itohio/gasmox/pkg/sample"
	"github.com/itohio/gasmox/pkg/spectral"
	"github.com/itohio/gasmox/pkg/window"
)

// stage consumes one tick's samples and returns the records that tick
// completed, if any. Stages keep their own buffers and warm-up state.
type stage interface {
	process(samples []sample.Sample) []record.Record
}

var (
	_ stage = (*fftStage)(nil)
	_ stage = (*cycleStage)(nil)
	_ stage = (*ratioStage)(nil)
	_ stage = (*hystStage)(nil)
	_ stage = (*rawStage)(nil)
)

// newStage builds the analysis stage for the configured kind. The sweep
// kind has no stage; it drives its own segment loop.
func newStage(cfg *config.Config, addrs []uint8) (stage, error) {
	fs := 1 / cfg.Sampling.Period.Seconds()
	warmup := uint64(cfg.Sampling.Warmup)

	switch cfg.Analysis.Kind {
	case "fft":
		wins := make([]*window.Block, len(addrs))
		for i := range wins {
			wins[i] = window.NewBlock(cfg.Window.Size)
		}
		return &fftStage{fs: fs, warmup: warmup, peaks: cfg.Analysis.Peaks, wins: wins}, nil

	case "cycle-fft":
		stride := uint64(cfg.Window.Stride)
		if stride < 1 {
			stride = 1
		}
		return &cycleStage{
			fs:     fs,
			warmup: warmup,
			stride: stride,
			ring:   window.NewRing(cfg.Window.Size),
		}, nil

	case "ratio":
		return &ratioStage{warmup: warmup, addrs: addrs, acc: feature.NewRatio(len(addrs))}, nil

	case "hysteresis":
		return &hystStage{warmup: warmup, win: window.NewBlock(len(cfg.Heater.Steps))}, nil

	case "raw":
		return &rawStage{warmup: warmup}, nil

	case "sweep":
		return nil, nil

	default:
		return nil, fmt.Errorf("unknown analysis kind %q", cfg.Analysis.Kind)
	}
}

// fftStage runs a block-window DFT per sensor and reports the spectrum
// with its strongest peaks.
type fftStage struct {
	fs     float64
	warmup uint64
	peaks  int
	wins   []*window.Block
}

func (s *fftStage) process(samples []sample.Sample) []record.Record {
	var recs []record.Record
	for i, smp := range samples {
		win, id, ok := s.wins[i].Push(smp.GasOhm)
		if !ok || id <= s.warmup {
			continue
		}

		spec := spectral.Compute(win, s.fs)
		recs = append(recs,
			record.FFT{Elapsed: smp.Elapsed, Sensor: smp.Sensor, Fs: spec.Fs, Mags: spec.Mag},
			record.Peaks{Elapsed: smp.Elapsed, Sensor: smp.Sensor, Top: spec.TopPeaks(s.peaks)},
		)
	}
	return recs
}

// cycleStage collects the first sensor's low and high plateau values of
// each square-wave cycle, emits the per-cycle step-difference vector
// and keeps a rolling ring of those differences for a strided DFT.
type cycleStage struct {
	fs     float64
	warmup uint64
	stride uint64

	cycle uint64
	low   []float64
	high  []float64
	ring  *window.Ring
	snap  []float64
}

func (s *cycleStage) process(samples []sample.Sample) []record.Record {
	smp := samples[0]

	var recs []record.Record
	if smp.Cycle != s.cycle {
		recs = s.finishCycle(smp)
		s.cycle = smp.Cycle
		s.low = s.low[:0]
		s.high = s.high[:0]
	}

	if smp.Level == 0 {
		s.low = append(s.low, smp.GasOhm)
	} else {
		s.high = append(s.high, smp.GasOhm)
	}
	return recs
}

// finishCycle closes the collected cycle. next is the first sample of
// the following cycle and stamps the emitted records.
func (s *cycleStage) finishCycle(next sample.Sample) []record.Record {
	diffs := feature.StepDiff(s.low, s.high)
	for _, d := range diffs {
		s.ring.Push(d)
	}

	id := s.cycle + 1 // completed cycles, counted from 1
	if id <= s.warmup {
		return nil
	}

	recs := []record.Record{record.Cycle{ID: id, Vals: diffs}}
	if s.ring.Filled() && id%s.stride == 0 {
		s.snap = s.ring.Snapshot(s.snap)
		spec := spectral.Compute(s.snap, s.fs)
		recs = append(recs, record.FFT{
			Elapsed: next.Elapsed,
			Sensor:  next.Sensor,
			Fs:      spec.Fs,
			Mags:    spec.Mag,
		})
	}
	return recs
}

// ratioStage accumulates per-sensor plateau means over each heater
// period and reports their high/low ratio at every cycle boundary.
type ratioStage struct {
	warmup uint64
	addrs  []uint8
	acc    *feature.Ratio
	cycle  uint64
}

func (s *ratioStage) process(samples []sample.Sample) []record.Record {
	var recs []record.Record
	if cur := samples[0].Cycle; cur != s.cycle {
		id := s.cycle + 1
		ratios, ok := s.acc.Emit()
		if ok && id > s.warmup {
			for i, r := range ratios {
				recs = append(recs, record.Ratio{
					Elapsed: samples[0].Elapsed,
					Sensor:  s.addrs[i],
					Value:   r,
				})
			}
		}
		s.cycle = cur
	}

	for i, smp := range samples {
		s.acc.Add(i, smp.Level, smp.GasOhm)
	}
	return recs
}

// hystStage emits the first sensor's hysteresis vector once per
// completed profile cycle.
type hystStage struct {
	warmup uint64
	win    *window.Block
}

func (s *hystStage) process(samples []sample.Sample) []record.Record {
	win, id, ok := s.win.Push(samples[0].GasOhm)
	if !ok || id <= s.warmup {
		return nil
	}
	return []record.Record{record.Vec{ID: id, Vals: feature.Hysteresis(win)}}
}

// rawStage passes valid readings through once the warm-up samples are
// spent. Substituted values are not logged; the gaps stay visible.
type rawStage struct {
	warmup uint64
	seen   uint64
}

func (s *rawStage) process(samples []sample.Sample) []record.Record {
	s.seen++
	if s.seen <= s.warmup {
		return nil
	}

	var recs []record.Record
	for _, smp := range samples {
		if !smp.Valid {
			continue
		}
		recs = append(recs, record.Raw{
			Elapsed:     smp.Elapsed,
			Sensor:      smp.Sensor,
			GasOhm:      smp.GasOhm,
			TempC:       smp.TempC,
			HumidityPct: smp.HumidityPct,
			PressurePa:  smp.PressurePa,
		})
	}
	return recs
}
