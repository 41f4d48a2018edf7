package bme69x

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseData(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    Measurement
		wantErr bool
	}{
		{
			name: "valid reply",
			line: "DATA,123456.00,25.13,41.20,101320.50,0xb0,1",
			want: Measurement{
				GasOhm:      123456.00,
				TempC:       25.13,
				HumidityPct: 41.20,
				PressurePa:  101320.50,
				Status:      0xb0,
				FieldCount:  1,
			},
			wantErr: false,
		},
		{
			name: "valid reply - bare hex status",
			line: "DATA,98000.25,24.80,39.00,101300.00,90,1",
			want: Measurement{
				GasOhm:      98000.25,
				TempC:       24.80,
				HumidityPct: 39.00,
				PressurePa:  101300.00,
				Status:      0x90,
				FieldCount:  1,
			},
			wantErr: false,
		},
		{
			name:    "no data fields",
			line:    "DATA,0.00,0.00,0.00,0.00,0x00,0",
			wantErr: true,
		},
		{
			name:    "invalid - wrong prefix",
			line:    "DAT,123456.00,25.13,41.20,101320.50,0xb0,1",
			wantErr: true,
		},
		{
			name:    "invalid - missing fields",
			line:    "DATA,123456.00,25.13,41.20",
			wantErr: true,
		},
		{
			name:    "invalid - extra fields",
			line:    "DATA,123456.00,25.13,41.20,101320.50,0xb0,1,junk",
			wantErr: true,
		},
		{
			name:    "invalid - non-numeric gas",
			line:    "DATA,abc,25.13,41.20,101320.50,0xb0,1",
			wantErr: true,
		},
		{
			name:    "invalid - non-hex status",
			line:    "DATA,123456.00,25.13,41.20,101320.50,0xzz,1",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseData(tt.line)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestParseData_NoDataSentinel(t *testing.T) {
	_, err := parseData("DATA,0.00,0.00,0.00,0.00,0x00,0")
	assert.ErrorIs(t, err, ErrNoData)
}

func TestNewBridge_Defaults(t *testing.T) {
	b := NewBridge("/dev/ttyACM0", 0)
	assert.NotNil(t, b)
	assert.Equal(t, DefaultBaudRate, b.baud)
	assert.Equal(t, "/dev/ttyACM0", b.port)
}

func TestBridge_SensorCommandsRequireOpen(t *testing.T) {
	b := NewBridge("/dev/ttyACM0", 115200)
	s := b.Sensor(0x76)

	assert.ErrorIs(t, s.Init(), ErrNotConnected)
	assert.ErrorIs(t, s.Trigger(), ErrNotConnected)
	assert.ErrorIs(t, s.SetHeater(300, 10*time.Millisecond), ErrNotConnected)

	_, err := s.Read()
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestSerial_MeasDurationMatchesConfig(t *testing.T) {
	b := NewBridge("/dev/ttyACM0", 115200)
	s := b.Sensor(0x76)

	assert.Equal(t, MeasDuration(DefaultConfig()), s.MeasDuration())
}
