// Package feature extracts per-cycle features from the sampled gas
// response: hysteresis difference vectors over symmetric temperature
// profiles, per-subsample step differences between the two phases of a
// square wave, and high/low response ratios.
package feature

// Hysteresis returns the difference vector of one completed profile
// cycle: diff[i] = cycle[L-1-i] - cycle[i] over the first half, pairing
// each ascending-phase value with its mirrored descending one. A
// symmetric profile with no hysteresis yields a zero vector.
func Hysteresis(cycle []float64) []float64 {
	half := len(cycle) / 2
	diff := make([]float64, half)
	for i := 0; i < half; i++ {
		diff[i] = cycle[len(cycle)-1-i] - cycle[i]
	}
	return diff
}

// StepDiff returns the elementwise high minus low response across the
// subsamples of a two-phase cycle. Unequal lengths use the shorter.
func StepDiff(low, high []float64) []float64 {
	n := min(len(low), len(high))
	diff := make([]float64, n)
	for i := 0; i < n; i++ {
		diff[i] = high[i] - low[i]
	}
	return diff
}

// Ratio accumulates per-sensor, per-level sums over one heater period
// and emits mean(high)/mean(low) per sensor. Sums and counts are kept
// per sensor, so one sensor never inherits another's sample count.
type Ratio struct {
	sums   [][2]float64
	counts [][2]int
}

// NewRatio creates an accumulator for n sensors.
func NewRatio(n int) *Ratio {
	return &Ratio{
		sums:   make([][2]float64, n),
		counts: make([][2]int, n),
	}
}

// Add records one sample for a sensor at a heater level (0 low,
// 1 high). Out-of-range arguments are ignored.
func (r *Ratio) Add(sensor, level int, v float64) {
	if sensor < 0 || sensor >= len(r.sums) || level < 0 || level > 1 {
		return
	}
	r.sums[sensor][level] += v
	r.counts[sensor][level]++
}

// Emit returns the per-sensor ratios for the completed period and
// resets the accumulator for the next one. ok is false when any sensor
// missed a level entirely; nothing is emitted then, but the reset still
// happens.
func (r *Ratio) Emit() (ratios []float64, ok bool) {
	ratios = make([]float64, len(r.sums))
	ok = true
	for i := range r.sums {
		lowN, highN := r.counts[i][0], r.counts[i][1]
		if lowN == 0 || highN == 0 {
			ok = false
			continue
		}
		ratios[i] = (r.sums[i][1] / float64(highN)) / (r.sums[i][0] / float64(lowN))
	}
	r.Reset()

	if !ok {
		return nil, false
	}
	return ratios, true
}

// Reset clears all sums and counts.
func (r *Ratio) Reset() {
	for i := range r.sums {
		r.sums[i] = [2]float64{}
		r.counts[i] = [2]int{}
	}
}
