// Package spectral computes magnitude spectra of gas resistance
// windows. The mean is removed first so the huge DC baseline does not
// swamp the modulation peaks the analysis is after.
package spectral

import "math"

// Spectrum holds one-sided magnitudes for bins 0..N/2 of an N sample
// window sampled at Fs.
type Spectrum struct {
	Fs  float64   // sampling frequency in Hz
	N   int       // window length
	Mag []float64 // bin magnitudes, len N/2+1
}

// Peak is one spectral peak.
type Peak struct {
	Freq float64
	Mag  float64
}

// Compute returns the DC-removed spectrum of x sampled at fs. The
// direct transform keeps the window length free of power-of-two
// constraints. An empty window yields an empty spectrum.
func Compute(x []float64, fs float64) Spectrum {
	n := len(x)
	if n == 0 {
		return Spectrum{Fs: fs}
	}

	var mean float64
	for _, v := range x {
		mean += v
	}
	mean /= float64(n)

	half := n / 2
	mag := make([]float64, half+1)
	for k := 0; k <= half; k++ {
		var re, im float64
		for i, v := range x {
			ang := -2 * math.Pi * float64(k) * float64(i) / float64(n)
			d := v - mean
			re += d * math.Cos(ang)
			im += d * math.Sin(ang)
		}
		re /= float64(n)
		im /= float64(n)
		mag[k] = math.Hypot(re, im)
	}

	return Spectrum{Fs: fs, N: n, Mag: mag}
}

// Freq returns the center frequency of a bin.
func (s Spectrum) Freq(bin int) float64 {
	if s.N == 0 {
		return 0
	}
	return float64(bin) * s.Fs / float64(s.N)
}

// TopPeaks returns the count largest bins above DC in descending
// magnitude. Equal magnitudes keep the lower-frequency bin first. When
// fewer bins carry any signal the remaining peaks stay zero, so the
// result always has count entries.
func (s Spectrum) TopPeaks(count int) []Peak {
	if count <= 0 {
		return nil
	}

	peaks := make([]Peak, count)
	if len(s.Mag) == 0 {
		return peaks
	}

	picked := make([]bool, len(s.Mag))
	for p := range peaks {
		best, bestMag := 0, 0.0
		for k := 1; k < len(s.Mag); k++ {
			if !picked[k] && s.Mag[k] > bestMag {
				best, bestMag = k, s.Mag[k]
			}
		}
		if best == 0 {
			break
		}
		picked[best] = true
		peaks[p] = Peak{Freq: s.Freq(best), Mag: bestMag}
	}
	return peaks
}
