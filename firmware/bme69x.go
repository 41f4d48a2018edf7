package main

import (
	"errors"
	"time"
)

// BME69x register map, matching the desktop driver in pkg/bme69x.
const (
	regField0    = 0x1d
	regResHeat0  = 0x5a
	regGasWait0  = 0x64
	regCtrlGas1  = 0x71
	regCtrlHum   = 0x72
	regCtrlMeas  = 0x74
	regConfig    = 0x75
	regCoeff1    = 0x8a
	regCoeff2    = 0xe1
	regCoeff3    = 0x00
	regSoftReset = 0xe0
	regChipID    = 0xd0

	lenField  = 17
	lenCoeff1 = 23
	lenCoeff2 = 14
	lenCoeff3 = 5

	chipID       = 0x61
	softResetCmd = 0xb6

	modeSleep  = 0x00
	modeForced = 0x01
	runGasBit  = 0x20

	statusNewData  = 0x80
	statusGasValid = 0x20
	statusHeatStab = 0x10
)

var (
	errNotInited = errors.New("sensor not initialized")
	errBadChipID = errors.New("unexpected chip id")
	errI2C       = errors.New("i2c transfer failed")
)

// sensor is one BME69x on the shared I2C bus.
type sensor struct {
	addr   uint16
	inited bool

	calib    calibration
	ctrlMeas byte    // cached oversampling bits for trigger writes
	ambC     float64 // ambient estimate feeding the heater calculation
}

// reading is one compensated measurement.
type reading struct {
	gasOhm  float64
	tempC   float64
	humPct  float64
	pressPa float64
	status  byte
	fields  int
}

// init probes the chip, resets it and reads the calibration coefficients.
func (s *sensor) init() error {
	var id [1]byte
	if err := readRegs(s.addr, regChipID, id[:]); err != nil {
		return err
	}
	if id[0] != chipID {
		return errBadChipID
	}

	if err := writeReg(s.addr, regSoftReset, softResetCmd); err != nil {
		return err
	}
	time.Sleep(SOFT_RESET_DELAY_MS * time.Millisecond)

	var buf [lenCoeff1 + lenCoeff2 + lenCoeff3]byte
	if err := readRegs(s.addr, regCoeff1, buf[:lenCoeff1]); err != nil {
		return err
	}
	if err := readRegs(s.addr, regCoeff2, buf[lenCoeff1:lenCoeff1+lenCoeff2]); err != nil {
		return err
	}
	if err := readRegs(s.addr, regCoeff3, buf[lenCoeff1+lenCoeff2:]); err != nil {
		return err
	}

	s.calib = parseCalibration(buf[:])
	s.ctrlMeas = 1<<5 | 1<<2 // 1x T and P oversampling until a C command arrives
	s.ambC = 25
	s.inited = true
	return nil
}

// configure writes the oversampling and filter settings.
func (s *sensor) configure(tempOS, pressOS, humOS, filter byte) error {
	if !s.inited {
		return errNotInited
	}

	if err := writeReg(s.addr, regCtrlHum, humOS&0x07); err != nil {
		return err
	}
	if err := writeReg(s.addr, regConfig, filter<<2); err != nil {
		return err
	}

	s.ctrlMeas = tempOS<<5 | pressOS<<2
	return writeReg(s.addr, regCtrlMeas, s.ctrlMeas|modeSleep)
}

// setHeater programs the heater plateau and soak time for the next
// forced measurement.
func (s *sensor) setHeater(targetC uint16, soakMs uint32) error {
	if !s.inited {
		return errNotInited
	}

	if err := writeReg(s.addr, regResHeat0, s.calib.resHeat(targetC, s.ambC)); err != nil {
		return err
	}
	if err := writeReg(s.addr, regGasWait0, encodeGasWait(soakMs)); err != nil {
		return err
	}
	return writeReg(s.addr, regCtrlGas1, runGasBit)
}

// trigger starts one forced measurement.
func (s *sensor) trigger() error {
	if !s.inited {
		return errNotInited
	}
	return writeReg(s.addr, regCtrlMeas, s.ctrlMeas|modeForced)
}

// read fetches and compensates the measurement data. A measurement that
// has not completed yet reports zero fields rather than an error.
func (s *sensor) read() (reading, error) {
	if !s.inited {
		return reading{}, errNotInited
	}

	var buf [lenField]byte
	if err := readRegs(s.addr, regField0, buf[:]); err != nil {
		return reading{}, err
	}

	status := buf[0] & statusNewData
	if status == 0 {
		return reading{status: status}, nil
	}
	status |= buf[16] & (statusGasValid | statusHeatStab)

	pressADC := uint32(buf[2])<<12 | uint32(buf[3])<<4 | uint32(buf[4])>>4
	tempADC := uint32(buf[5])<<12 | uint32(buf[6])<<4 | uint32(buf[7])>>4
	humADC := uint16(buf[8])<<8 | uint16(buf[9])
	gasADC := uint16(buf[15])<<2 | uint16(buf[16])>>6
	gasRange := buf[16] & 0x0f

	tempC, tfine := s.calib.temperature(tempADC)
	s.ambC = tempC

	return reading{
		gasOhm:  gasResistance(gasADC, gasRange),
		tempC:   tempC,
		humPct:  s.calib.humidity(humADC, tfine),
		pressPa: s.calib.pressure(pressADC, tfine),
		status:  status,
		fields:  1,
	}, nil
}

func readRegs(addr uint16, reg byte, buf []byte) error {
	if err := bus.Tx(addr, []byte{reg}, buf); err != nil {
		return errI2C
	}
	return nil
}

func writeReg(addr uint16, reg, val byte) error {
	if err := bus.Tx(addr, []byte{reg, val}, nil); err != nil {
		return errI2C
	}
	return nil
}

// calibration holds the factory trim coefficients read at init.
type calibration struct {
	T1 uint16
	T2 int16
	T3 int8

	P1  uint16
	P2  int16
	P3  int8
	P4  int16
	P5  int16
	P6  int8
	P7  int8
	P8  int16
	P9  int16
	P10 uint8

	H1 uint16
	H2 uint16
	H3 int8
	H4 int8
	H5 int8
	H6 uint8
	H7 int8

	G1 int8
	G2 int16
	G3 int8

	ResHeatVal   int8
	ResHeatRange uint8
}

// parseCalibration decodes the three coefficient blocks (0x8a, 0xe1, 0x00)
// concatenated into one buffer, following the factory register layout.
func parseCalibration(buf []byte) calibration {
	u16 := func(msb, lsb byte) uint16 { return uint16(msb)<<8 | uint16(lsb) }

	return calibration{
		T1: u16(buf[32], buf[31]),
		T2: int16(u16(buf[1], buf[0])),
		T3: int8(buf[2]),

		P1:  u16(buf[5], buf[4]),
		P2:  int16(u16(buf[7], buf[6])),
		P3:  int8(buf[8]),
		P4:  int16(u16(buf[11], buf[10])),
		P5:  int16(u16(buf[13], buf[12])),
		P6:  int8(buf[15]),
		P7:  int8(buf[14]),
		P8:  int16(u16(buf[19], buf[18])),
		P9:  int16(u16(buf[21], buf[20])),
		P10: buf[22],

		H1: uint16(buf[25])<<4 | uint16(buf[24])&0x0f,
		H2: uint16(buf[23])<<4 | uint16(buf[24])>>4,
		H3: int8(buf[26]),
		H4: int8(buf[27]),
		H5: int8(buf[28]),
		H6: buf[29],
		H7: int8(buf[30]),

		G1: int8(buf[35]),
		G2: int16(u16(buf[34], buf[33])),
		G3: int8(buf[36]),

		ResHeatVal:   int8(buf[37]),
		ResHeatRange: (buf[39] & 0x30) >> 4,
	}
}

// temperature compensates a raw temperature ADC value.
func (c *calibration) temperature(adc uint32) (tempC, tfine float64) {
	var1 := (float64(adc)/16384.0 - float64(c.T1)/1024.0) * float64(c.T2)
	mid := float64(adc)/131072.0 - float64(c.T1)/8192.0
	var2 := mid * mid * float64(c.T3) * 16.0
	tfine = var1 + var2
	return tfine / 5120.0, tfine
}

// pressure compensates a raw pressure ADC value into Pascal.
func (c *calibration) pressure(adc uint32, tfine float64) float64 {
	var1 := tfine/2.0 - 64000.0
	var2 := var1 * var1 * (float64(c.P6) / 131072.0)
	var2 += var1 * float64(c.P5) * 2.0
	var2 = var2/4.0 + float64(c.P4)*65536.0
	var1 = (float64(c.P3)*var1*var1/16384.0 + float64(c.P2)*var1) / 524288.0
	var1 = (1.0 + var1/32768.0) * float64(c.P1)
	if var1 == 0 {
		return 0
	}

	press := 1048576.0 - float64(adc)
	press = (press - var2/4096.0) * 6250.0 / var1
	var1 = float64(c.P9) * press * press / 2147483648.0
	var2 = press * (float64(c.P8) / 32768.0)
	var3 := (press / 256.0) * (press / 256.0) * (press / 256.0) * (float64(c.P10) / 131072.0)
	return press + (var1+var2+var3+float64(c.P7)*128.0)/16.0
}

// humidity compensates a raw humidity ADC value into percent, clamped
// to the 0..100 range.
func (c *calibration) humidity(adc uint16, tfine float64) float64 {
	tempComp := tfine / 5120.0
	var1 := float64(adc) - (float64(c.H1)*16.0 + float64(c.H3)/2.0*tempComp)
	var2 := var1 * (float64(c.H2) / 262144.0 *
		(1.0 + float64(c.H4)/16384.0*tempComp + float64(c.H5)/1048576.0*tempComp*tempComp))
	var3 := float64(c.H6) / 16384.0
	var4 := float64(c.H7) / 2097152.0
	hum := var2 + (var3+var4*tempComp)*var2*var2

	if hum > 100 {
		hum = 100
	} else if hum < 0 {
		hum = 0
	}
	return hum
}

// resHeat converts a target plateau temperature into the heater
// resistance register value.
func (c *calibration) resHeat(targetC uint16, ambC float64) uint8 {
	t := float64(targetC)
	if t > 400 {
		t = 400 // heater ceiling
	}

	var1 := float64(c.G1)/16.0 + 49.0
	var2 := float64(c.G2)/32768.0*0.0005 + 0.00235
	var3 := float64(c.G3) / 1024.0
	var4 := var1 * (1.0 + var2*t)
	var5 := var4 + var3*ambC
	return uint8(3.4 * (var5*(4.0/(4.0+float64(c.ResHeatRange)))*
		(1.0/(1.0+float64(c.ResHeatVal)*0.002)) - 25.0))
}

// gasResistance converts the gas ADC value and range into ohms.
func gasResistance(adc uint16, gasRange uint8) float64 {
	var1 := uint32(262144) >> gasRange
	var2 := int32(adc) - 512
	var2 *= 3
	var2 += 4096
	return 1000000.0 * float64(var1) / float64(var2)
}

// encodeGasWait packs a heater soak time in milliseconds into the
// gas_wait register format: a 6-bit count with a x1/x4/x16/x64
// multiplier, capped at 0xff.
func encodeGasWait(ms uint32) uint8 {
	if ms >= 0xfc0 {
		return 0xff
	}

	factor := uint8(0)
	for ms > 0x3f {
		ms /= 4
		factor++
	}
	return uint8(ms) + factor*64
}
