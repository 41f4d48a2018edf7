// Package scope is a custom Fyne widget that plots the live gas
// resistance traces of a running pipeline oscilloscope-style, with the
// latest magnitude spectra in a panel below.
package scope

import (
	"image/color"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/widget"

	"github.com/itohio/gasmox/pkg/config"
	"github.com/itohio/gasmox/pkg/heater"
	"github.com/itohio/gasmox/pkg/pipeline"
	"github.com/itohio/gasmox/pkg/sample"
	"github.com/itohio/gasmox/pkg/spectral"
)

// Scope displays one resistance trace per sensor over a shared time
// axis. Traces are downsampled for rendering; the full data stays with
// the pipeline.
type Scope struct {
	widget.BaseWidget

	// Data (protected by mu)
	mu      sync.RWMutex
	traces  [][]sample.Sample // downsampled, buffers reused between updates
	spectra []spectral.Spectrum
	phase   heater.Phase

	// Auto-scaling
	yMin, yMax float64
	xMin, xMax time.Duration

	maxPoints int
}

// New creates a scope sized by the display settings.
func New(cfg *config.Config) *Scope {
	s := &Scope{maxPoints: cfg.Scope.MaxPoints}
	if s.maxPoints <= 0 {
		s.maxPoints = 512
	}
	s.ExtendBaseWidget(s)
	// Trigger initial refresh to display the empty scope
	s.Refresh()
	return s
}

// SetData replaces the displayed data with a pipeline snapshot. Call it
// on the Fyne event loop, e.g. wrapped in fyne.Do from an OnUpdate
// callback.
func (s *Scope) SetData(u pipeline.Update) {
	s.mu.Lock()

	if len(s.traces) != len(u.Samples) {
		s.traces = make([][]sample.Sample, len(u.Samples))
	}
	for i, tr := range u.Samples {
		s.traces[i] = sample.Downsample(s.traces[i], tr, s.maxPoints)
	}
	s.spectra = u.Spectra
	s.phase = u.Phase

	s.updateScale()

	s.mu.Unlock()

	// Refresh outside the lock to avoid a deadlock with the renderer
	s.Refresh()
}

// updateScale fits the axes to the current traces with a 10% margin on
// the resistance axis.
func (s *Scope) updateScale() {
	first := true
	for _, tr := range s.traces {
		for _, smp := range tr {
			if first {
				s.yMin, s.yMax = smp.GasOhm, smp.GasOhm
				s.xMin, s.xMax = smp.Elapsed, smp.Elapsed
				first = false
				continue
			}
			if smp.GasOhm < s.yMin {
				s.yMin = smp.GasOhm
			}
			if smp.GasOhm > s.yMax {
				s.yMax = smp.GasOhm
			}
			if smp.Elapsed < s.xMin {
				s.xMin = smp.Elapsed
			}
			if smp.Elapsed > s.xMax {
				s.xMax = smp.Elapsed
			}
		}
	}
	if first {
		s.yMin, s.yMax = 0, 1
		s.xMin, s.xMax = 0, 10*time.Second
		return
	}

	span := s.yMax - s.yMin
	if span == 0 {
		span = 1
	}
	s.yMin -= span * 0.1
	s.yMax += span * 0.1

	if s.xMax == s.xMin {
		s.xMax = s.xMin + time.Second
	}
}

// CreateRenderer creates the widget renderer.
func (s *Scope) CreateRenderer() fyne.WidgetRenderer {
	bg := canvas.NewRectangle(color.RGBA{R: 20, G: 20, B: 20, A: 255})
	return &scopeRenderer{
		scope:   s,
		bg:      bg,
		objects: []fyne.CanvasObject{bg},
	}
}
