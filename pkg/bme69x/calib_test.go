package bme69x

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseCalibration(t *testing.T) {
	buf := make([]byte, lenCoeff1+lenCoeff2+lenCoeff3)

	// Temperature trim.
	buf[0], buf[1] = 0x02, 0x67 // T2
	buf[2] = 0x03               // T3
	buf[31], buf[32] = 0x12, 0x66

	// Pressure trim.
	buf[4], buf[5] = 0x8e, 0x8f // P1
	buf[6], buf[7] = 0xd6, 0xe5 // P2, negative
	buf[8] = 0x58               // P3
	buf[22] = 0x1e              // P10

	// Humidity trim, H1/H2 share the nibble at offset 24.
	buf[23] = 0x3b
	buf[24] = 0x3a
	buf[25] = 0x3f
	buf[26] = 0x09 // H3
	buf[29] = 0x2d // H6

	// Gas heater trim.
	buf[33], buf[34] = 0xb8, 0xca // G2, negative
	buf[35] = 0xd8                // G1, negative
	buf[36] = 0x12                // G3
	buf[37] = 0x2d                // res_heat_val
	buf[39] = 0x10                // res_heat_range<5:4>

	c := parseCalibration(buf)

	assert.Equal(t, uint16(26130), c.T1)
	assert.Equal(t, int16(26370), c.T2)
	assert.Equal(t, int8(3), c.T3)

	assert.Equal(t, uint16(36750), c.P1)
	assert.Equal(t, int16(-6698), c.P2)
	assert.Equal(t, int8(88), c.P3)
	assert.Equal(t, uint8(30), c.P10)

	assert.Equal(t, uint16(1018), c.H1)
	assert.Equal(t, uint16(947), c.H2)
	assert.Equal(t, int8(9), c.H3)
	assert.Equal(t, uint8(45), c.H6)

	assert.Equal(t, int8(-40), c.G1)
	assert.Equal(t, int16(-13640), c.G2)
	assert.Equal(t, int8(18), c.G3)
	assert.Equal(t, int8(45), c.ResHeatVal)
	assert.Equal(t, uint8(1), c.ResHeatRange)
}

func TestTemperature(t *testing.T) {
	c := &Calibration{T1: 26130, T2: 26370, T3: 3}

	// An ADC value of 16*T1 cancels both terms exactly.
	tempC, tfine := c.temperature(16 * 26130)
	assert.Zero(t, tempC)
	assert.Zero(t, tfine)

	tempC, _ = c.temperature(16*26130 + 102400)
	assert.InDelta(t, 32.1957, tempC, 0.0001)

	lo, _ := c.temperature(480000)
	hi, _ := c.temperature(500000)
	assert.Greater(t, hi, lo)
}

func TestHumidity_Clamped(t *testing.T) {
	c := &Calibration{H1: 1018, H2: 947}
	tfine := 25.0 * 5120 // 25C

	assert.Equal(t, 0.0, c.humidity(0, tfine))
	assert.Equal(t, 100.0, c.humidity(65535, tfine))
	assert.InDelta(t, 49.53, c.humidity(30000, tfine), 0.05)
}

func TestPressure_ZeroTrim(t *testing.T) {
	c := &Calibration{}
	assert.Zero(t, c.pressure(400000, 100000))
}

func TestResHeat(t *testing.T) {
	c := &Calibration{G1: -40, G2: -13640, G3: 18, ResHeatVal: 45, ResHeatRange: 1}

	assert.Equal(t, uint8(106), c.resHeat(300, 25))

	// Hotter plateau needs a larger register value.
	assert.Greater(t, c.resHeat(320, 25), c.resHeat(200, 25))

	// Ambient temperature feeds into the estimate.
	assert.Greater(t, c.resHeat(300, 50), c.resHeat(300, 0))

	// Targets above the heater ceiling are clamped.
	assert.Equal(t, c.resHeat(400, 25), c.resHeat(500, 25))
}

func TestGasResistance(t *testing.T) {
	// Mid-scale ADC at range 0 lands exactly on 64MOhm.
	assert.Equal(t, 64_000_000.0, gasResistance(512, 0))

	// Each range step halves the result.
	assert.Equal(t, 32_000_000.0, gasResistance(512, 1))

	assert.InDelta(t, 1421.2116, gasResistance(1023, 15), 0.001)

	// Larger ADC values mean lower resistance.
	assert.Less(t, gasResistance(600, 0), gasResistance(512, 0))
}

func TestEncodeGasWait(t *testing.T) {
	tests := []struct {
		name string
		soak time.Duration
		want uint8
	}{
		{name: "zero", soak: 0, want: 0},
		{name: "direct count", soak: 10 * time.Millisecond, want: 10},
		{name: "top of x1 range", soak: 63 * time.Millisecond, want: 63},
		{name: "x4 multiplier", soak: 64 * time.Millisecond, want: 80},
		{name: "100ms", soak: 100 * time.Millisecond, want: 89},
		{name: "x16 multiplier", soak: time.Second, want: 190},
		{name: "at cap", soak: 4032 * time.Millisecond, want: 0xff},
		{name: "beyond cap", soak: 10 * time.Second, want: 0xff},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, encodeGasWait(tt.soak))
		})
	}
}
