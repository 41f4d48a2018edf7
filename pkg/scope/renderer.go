package scope

import (
	"image/color"
	"math"
	"strconv"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"github.com/chewxy/math32"

	"github.com/itohio/gasmox/pkg/sample"
	"github.com/itohio/gasmox/pkg/spectral"
)

// palette assigns one trace color per sensor slot.
var palette = []color.RGBA{
	{R: 255, G: 165, B: 0, A: 255},   // orange
	{R: 100, G: 200, B: 255, A: 255}, // light blue
	{R: 120, G: 220, B: 120, A: 255}, // green
	{R: 230, G: 130, B: 200, A: 255}, // pink
}

var (
	gridColor  = color.RGBA{R: 40, G: 40, B: 40, A: 255}
	labelColor = color.RGBA{R: 150, G: 150, B: 150, A: 255}
)

// scopeRenderer rebuilds its canvas objects from scratch on every
// refresh; only the background rectangle persists.
type scopeRenderer struct {
	scope *Scope

	bg       *canvas.Rectangle
	objects  []fyne.CanvasObject
	lastSize fyne.Size
}

// MinSize returns the minimum size of the widget.
func (r *scopeRenderer) MinSize() fyne.Size {
	return fyne.NewSize(400, 300)
}

// Layout arranges the widget components.
func (r *scopeRenderer) Layout(size fyne.Size) {
	r.bg.Resize(size)

	if r.lastSize != size {
		r.lastSize = size
		// Size changed, redraw with the new plot dimensions
		r.scope.BaseWidget.Refresh()
	}
}

// Refresh updates the widget display.
func (r *scopeRenderer) Refresh() {
	r.scope.mu.RLock()
	traces := r.scope.traces
	spectra := r.scope.spectra
	phase := r.scope.phase
	yMin, yMax := r.scope.yMin, r.scope.yMax
	xMin, xMax := r.scope.xMin, r.scope.xMax
	r.scope.mu.RUnlock()

	size := r.scope.Size()
	if size.Width == 0 || size.Height == 0 {
		return
	}

	// Clear old objects (but keep the background)
	r.objects = []fyne.CanvasObject{r.bg}

	const (
		marginLeft   = float32(60)
		marginRight  = float32(20)
		marginTop    = float32(20)
		marginBottom = float32(40)
	)

	plotX := marginLeft
	plotY := marginTop
	plotW := size.Width - marginLeft - marginRight
	plotH := size.Height - marginTop - marginBottom

	// The spectrum panel takes the lower part of the plot once
	// spectra exist.
	traceH := plotH
	var specY, specH float32
	if hasSpectra(spectra) {
		traceH = plotH * 0.62
		specY = plotY + traceH + 18
		specH = plotY + plotH - specY
	}

	r.drawGrid(plotX, plotY, plotW, traceH, yMin, yMax, xMin, xMax)

	for i, tr := range traces {
		if len(tr) > 1 {
			r.drawTrace(plotX, plotY, plotW, traceH, tr, palette[i%len(palette)], yMin, yMax, xMin, xMax)
		}
	}

	if specH > 0 {
		for i, spec := range spectra {
			r.drawSpectrum(plotX, specY, plotW, specH, i, len(spectra), spec, palette[i%len(palette)])
		}
	}

	r.drawHeaterLabel(plotX, plotY, phase.TargetC)
}

// drawGrid draws the oscilloscope-style grid over the trace area.
func (r *scopeRenderer) drawGrid(plotX, plotY, plotW, plotH float32, yMin, yMax float64, xMin, xMax time.Duration) {
	const numHLines = 8
	for i := 0; i <= numHLines; i++ {
		// Snap 1px lines to whole pixels so they render crisp
		y := math32.Round(plotY + float32(i)*plotH/numHLines)
		line := canvas.NewLine(gridColor)
		line.Position1 = fyne.NewPos(plotX, y)
		line.Position2 = fyne.NewPos(plotX+plotW, y)
		line.StrokeWidth = 1
		r.objects = append(r.objects, line)

		// Y-axis label
		value := yMax - float64(i)*(yMax-yMin)/numHLines
		text := canvas.NewText(formatOhm(value), labelColor)
		text.TextSize = 10
		text.Alignment = fyne.TextAlignTrailing
		text.Move(fyne.NewPos(plotX-5, y-6))
		r.objects = append(r.objects, text)
	}

	const numVLines = 10
	span := xMax - xMin
	for i := 0; i <= numVLines; i++ {
		x := math32.Round(plotX + float32(i)*plotW/numVLines)
		line := canvas.NewLine(gridColor)
		line.Position1 = fyne.NewPos(x, plotY)
		line.Position2 = fyne.NewPos(x, plotY+plotH)
		line.StrokeWidth = 1
		r.objects = append(r.objects, line)

		// X-axis label
		offset := time.Duration(i) * span / numVLines
		text := canvas.NewText(formatSeconds(offset), labelColor)
		text.TextSize = 10
		text.Alignment = fyne.TextAlignCenter
		text.Move(fyne.NewPos(x-20, plotY+plotH+5))
		r.objects = append(r.objects, text)
	}
}

// drawTrace draws one sensor's resistance curve. Held samples are part
// of the line like any other, so sensor hiccups never break the trace.
func (r *scopeRenderer) drawTrace(plotX, plotY, plotW, plotH float32, tr []sample.Sample, col color.RGBA, yMin, yMax float64, xMin, xMax time.Duration) {
	span := (xMax - xMin).Seconds()
	if span <= 0 {
		span = 1
	}
	yRange := yMax - yMin
	if yRange <= 0 {
		yRange = 1
	}

	var prev fyne.Position
	for i, smp := range tr {
		x := plotX + float32((smp.Elapsed-xMin).Seconds()/span)*plotW
		y := plotY + plotH - float32((smp.GasOhm-yMin)/yRange)*plotH
		pos := fyne.NewPos(x, y)
		if i > 0 {
			line := canvas.NewLine(col)
			line.Position1 = prev
			line.Position2 = pos
			line.StrokeWidth = 1.5
			r.objects = append(r.objects, line)
		}
		prev = pos
	}
}

// drawSpectrum draws one sensor's magnitude bins as bars, grouped side
// by side when several sensors share the panel, with a peak frequency
// readout on the right.
func (r *scopeRenderer) drawSpectrum(plotX, plotY, plotW, plotH float32, idx, count int, spec spectral.Spectrum, col color.RGBA) {
	if len(spec.Mag) < 2 {
		return
	}
	bins := spec.Mag[1:] // bin 0 is DC, removed before the transform

	peak, peakBin := 0.0, 0
	for k, m := range bins {
		if m > peak {
			peak, peakBin = m, k
		}
	}
	if peak == 0 {
		return
	}

	slot := plotW / float32(len(bins))
	barW := math32.Max(slot/float32(count), 1)

	for k, m := range bins {
		h := float32(m/peak) * plotH
		if h < 1 {
			continue
		}
		bar := canvas.NewRectangle(col)
		bar.Move(fyne.NewPos(plotX+float32(k)*slot+float32(idx)*barW, plotY+plotH-h))
		bar.Resize(fyne.NewSize(barW, h))
		r.objects = append(r.objects, bar)
	}

	label := canvas.NewText(formatFreq(spec.Freq(peakBin+1)), col)
	label.TextSize = 11
	label.Alignment = fyne.TextAlignTrailing
	label.Move(fyne.NewPos(plotX+plotW-5, plotY+float32(idx)*14))
	r.objects = append(r.objects, label)
}

// drawHeaterLabel shows the commanded plateau of the newest tick.
func (r *scopeRenderer) drawHeaterLabel(plotX, plotY float32, targetC uint16) {
	if targetC == 0 {
		return
	}
	text := canvas.NewText("heater "+strconv.Itoa(int(targetC))+"C", color.RGBA{R: 200, G: 200, B: 200, A: 255})
	text.TextSize = 11
	text.Alignment = fyne.TextAlignLeading
	text.Move(fyne.NewPos(plotX+10, plotY+10))
	r.objects = append(r.objects, text)
}

// Objects returns all canvas objects for rendering.
func (r *scopeRenderer) Objects() []fyne.CanvasObject {
	return r.objects
}

// Destroy cleans up resources.
func (r *scopeRenderer) Destroy() {
	// Cleanup handled by Fyne
}

func hasSpectra(spectra []spectral.Spectrum) bool {
	for _, s := range spectra {
		if len(s.Mag) > 1 {
			return true
		}
	}
	return false
}

// Axis label formatting

func formatOhm(v float64) string {
	switch {
	case math.Abs(v) >= 1e6:
		return strconv.FormatFloat(v/1e6, 'f', 2, 64) + "M"
	case math.Abs(v) >= 1e3:
		return strconv.FormatFloat(v/1e3, 'f', 1, 64) + "k"
	default:
		return strconv.FormatFloat(v, 'f', 0, 64)
	}
}

func formatSeconds(d time.Duration) string {
	if d < time.Second {
		return strconv.FormatFloat(d.Seconds(), 'f', 2, 64) + "s"
	}
	return strconv.FormatFloat(d.Seconds(), 'f', 1, 64) + "s"
}

func formatFreq(f float64) string {
	return strconv.FormatFloat(f, 'f', 2, 64) + "Hz"
}
