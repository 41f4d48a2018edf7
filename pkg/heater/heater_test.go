package heater

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/gasmox/pkg/config"
	"github.com/itohio/gasmox/pkg/sched"
)

func TestSquareWave(t *testing.T) {
	s := NewSquareWave(275, 325, 200*time.Millisecond, 100*time.Millisecond)

	tests := []struct {
		name    string
		elapsed time.Duration
		want    Phase
	}{
		{name: "start of low", elapsed: 0, want: Phase{TargetC: 275, Level: 0, Cycle: 0}},
		{name: "end of low", elapsed: 99 * time.Millisecond, want: Phase{TargetC: 275, Level: 0, Cycle: 0}},
		{name: "start of high", elapsed: 100 * time.Millisecond, want: Phase{TargetC: 325, Level: 1, Cycle: 0}},
		{name: "end of high", elapsed: 199 * time.Millisecond, want: Phase{TargetC: 325, Level: 1, Cycle: 0}},
		{name: "second cycle", elapsed: 200 * time.Millisecond, want: Phase{TargetC: 275, Level: 0, Cycle: 1}},
		{name: "deep into run", elapsed: 1350 * time.Millisecond, want: Phase{TargetC: 325, Level: 1, Cycle: 6}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.Phase(sched.Tick{Elapsed: tt.elapsed}))
		})
	}
}

func TestSquareWave_AsymmetricHalf(t *testing.T) {
	s := NewSquareWave(275, 325, 200*time.Millisecond, 50*time.Millisecond)

	assert.Equal(t, 0, s.Phase(sched.Tick{Elapsed: 49 * time.Millisecond}).Level)
	assert.Equal(t, 1, s.Phase(sched.Tick{Elapsed: 50 * time.Millisecond}).Level)
	assert.Equal(t, 1, s.Phase(sched.Tick{Elapsed: 199 * time.Millisecond}).Level)
}

func TestSquareWave_HalfFallback(t *testing.T) {
	s := NewSquareWave(275, 325, 200*time.Millisecond, 0)
	assert.Equal(t, 100*time.Millisecond, s.half)

	s = NewSquareWave(275, 325, 200*time.Millisecond, 300*time.Millisecond)
	assert.Equal(t, 100*time.Millisecond, s.half)
}

func TestProfile(t *testing.T) {
	p := NewProfile([]uint16{320, 100, 100, 240, 240})
	require.Equal(t, 5, p.Len())

	tests := []struct {
		name string
		seq  uint64
		want Phase
	}{
		{name: "first step", seq: 0, want: Phase{TargetC: 320, Step: 0, Cycle: 0}},
		{name: "last step", seq: 4, want: Phase{TargetC: 240, Step: 4, Cycle: 0}},
		{name: "wrap to second cycle", seq: 5, want: Phase{TargetC: 320, Step: 0, Cycle: 1}},
		{name: "mid third cycle", seq: 12, want: Phase{TargetC: 100, Step: 2, Cycle: 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.Phase(sched.Tick{Seq: tt.seq}))
		})
	}
}

func TestFixed(t *testing.T) {
	f := NewFixed(250)

	assert.Equal(t, Phase{TargetC: 250}, f.Phase(sched.Tick{Seq: 0}))
	assert.Equal(t, Phase{TargetC: 250}, f.Phase(sched.Tick{Seq: 999, Elapsed: time.Hour}))
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.HeaterConfig
		want    any
		wantErr bool
	}{
		{
			name: "square",
			cfg:  config.HeaterConfig{Mode: "square", LowC: 275, HighC: 325, Period: 200 * time.Millisecond, Half: 100 * time.Millisecond},
			want: &SquareWave{},
		},
		{
			name: "profile",
			cfg:  config.HeaterConfig{Mode: "profile", Steps: []uint16{320, 100}},
			want: &Profile{},
		},
		{
			name: "fixed",
			cfg:  config.HeaterConfig{Mode: "fixed", FixedC: 250},
			want: &Fixed{},
		},
		{
			name:    "profile without steps",
			cfg:     config.HeaterConfig{Mode: "profile"},
			wantErr: true,
		},
		{
			name:    "unknown mode",
			cfg:     config.HeaterConfig{Mode: "triangle"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := New(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.want, got)
		})
	}
}
