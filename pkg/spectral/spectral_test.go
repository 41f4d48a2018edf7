package spectral

import (
	"math"
	"math/cmplx"
	"testing"

	"github.com/mjibson/go-dsp/fft"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompute_SineLandsInItsBin(t *testing.T) {
	// 40 samples at 20Hz: a 2Hz sine is exactly bin 4.
	const (
		n      = 40
		fs     = 20.0
		offset = 100000.0
		amp    = 1000.0
	)

	x := make([]float64, n)
	for i := range x {
		ti := float64(i) / fs
		x[i] = offset + amp*math.Sin(2*math.Pi*2.0*ti)
	}

	s := Compute(x, fs)
	require.Equal(t, n, s.N)
	require.Len(t, s.Mag, n/2+1)

	assert.InDelta(t, amp/2, s.Mag[4], 1e-6)
	assert.Equal(t, 2.0, s.Freq(4))

	// Mean removal leaves nothing at DC, and an integer number of
	// cycles leaks into no other bin.
	for k, m := range s.Mag {
		if k == 4 {
			continue
		}
		assert.Less(t, m, 1e-6, "bin %d", k)
	}
}

func TestCompute_DCOffsetChangesNothing(t *testing.T) {
	const n = 40

	x := make([]float64, n)
	shifted := make([]float64, n)
	for i := range x {
		x[i] = 800*math.Sin(2*math.Pi*3*float64(i)/n) + 50*math.Sin(0.7*float64(i))
		shifted[i] = x[i] + 250000
	}

	a := Compute(x, 20)
	b := Compute(shifted, 20)

	require.Equal(t, len(a.Mag), len(b.Mag))
	for k := range a.Mag {
		assert.InDelta(t, a.Mag[k], b.Mag[k], 1e-6, "bin %d", k)
	}
	assert.InDelta(t, 0, b.Mag[0], 1e-6)
}

func TestCompute_ConstantWindowIsSilent(t *testing.T) {
	x := make([]float64, 40)
	for i := range x {
		x[i] = 123456.78
	}

	s := Compute(x, 20)
	for k, m := range s.Mag {
		assert.InDelta(t, 0, m, 1e-9, "bin %d", k)
	}
}

func TestCompute_MatchesFFT(t *testing.T) {
	const n = 40

	x := make([]float64, n)
	for i := range x {
		// Deterministic, broadband-ish test signal.
		x[i] = 100000 +
			800*math.Sin(2*math.Pi*3*float64(i)/n) +
			300*math.Cos(2*math.Pi*7*float64(i)/n) +
			50*math.Sin(0.7*float64(i))
	}

	var mean float64
	for _, v := range x {
		mean += v
	}
	mean /= n

	detrended := make([]float64, n)
	for i, v := range x {
		detrended[i] = v - mean
	}
	oracle := fft.FFTReal(detrended)

	s := Compute(x, 20)
	require.Len(t, s.Mag, n/2+1)
	for k := range s.Mag {
		assert.InDelta(t, cmplx.Abs(oracle[k])/n, s.Mag[k], 1e-6, "bin %d", k)
	}
}

func TestCompute_EmptyWindow(t *testing.T) {
	s := Compute(nil, 20)
	assert.Equal(t, 20.0, s.Fs)
	assert.Zero(t, s.N)
	assert.Empty(t, s.Mag)
	assert.Zero(t, s.Freq(3))

	peaks := s.TopPeaks(3)
	assert.Equal(t, []Peak{{}, {}, {}}, peaks)
}

func TestSpectrum_Freq(t *testing.T) {
	s := Spectrum{Fs: 20, N: 40}

	assert.Equal(t, 0.0, s.Freq(0))
	assert.Equal(t, 0.5, s.Freq(1))
	assert.Equal(t, 10.0, s.Freq(20)) // Nyquist
}

func TestTopPeaks(t *testing.T) {
	s := Spectrum{Fs: 20, N: 40, Mag: []float64{1000, 3, 9, 3, 9, 1}}

	peaks := s.TopPeaks(3)
	require.Len(t, peaks, 3)

	// DC is excluded even though it dominates; ties resolve to the
	// lower-frequency bin.
	assert.Equal(t, Peak{Freq: 1.0, Mag: 9}, peaks[0])
	assert.Equal(t, Peak{Freq: 2.0, Mag: 9}, peaks[1])
	assert.Equal(t, Peak{Freq: 0.5, Mag: 3}, peaks[2])
}

func TestTopPeaks_PadsWithZeros(t *testing.T) {
	s := Spectrum{Fs: 4, N: 4, Mag: []float64{0, 5, 0}}

	peaks := s.TopPeaks(3)
	require.Len(t, peaks, 3)
	assert.Equal(t, Peak{Freq: 1.0, Mag: 5}, peaks[0])
	assert.Equal(t, Peak{}, peaks[1])
	assert.Equal(t, Peak{}, peaks[2])
}

func TestTopPeaks_ZeroSpectrum(t *testing.T) {
	s := Spectrum{Fs: 20, N: 40, Mag: make([]float64, 21)}

	peaks := s.TopPeaks(3)
	assert.Equal(t, []Peak{{}, {}, {}}, peaks)
}

func TestTopPeaks_NoCount(t *testing.T) {
	s := Spectrum{Fs: 20, N: 40, Mag: []float64{0, 1, 2}}
	assert.Nil(t, s.TopPeaks(0))
}
