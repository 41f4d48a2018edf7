package bme69x

import (
	"fmt"
	"time"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

// OpenBus initializes the host drivers and opens an I2C bus by name
// ("1", "/dev/i2c-1" or empty for the first available bus).
func OpenBus(name string) (i2c.BusCloser, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to init host drivers: %w", err)
	}

	bus, err := i2creg.Open(name)
	if err != nil {
		return nil, fmt.Errorf("failed to open i2c bus %q: %w", name, err)
	}
	return bus, nil
}

// I2C talks to one sensor on a shared bus. Multiple sensors reuse the
// same bus with different addresses; the caller owns the bus lifetime.
type I2C struct {
	dev  i2c.Dev
	addr uint8

	calib    Calibration
	conf     Config
	ctrlMeas byte    // cached oversampling bits for trigger writes
	ambC     float64 // ambient estimate feeding the heater calculation
	inited   bool
}

// NewI2C creates a driver for the sensor at addr (0x76 or 0x77) on bus.
func NewI2C(bus i2c.Bus, addr uint8) *I2C {
	return &I2C{
		dev:  i2c.Dev{Bus: bus, Addr: uint16(addr)},
		addr: addr,
		conf: DefaultConfig(),
		ambC: 25,
	}
}

// Init probes the chip, resets it and reads the calibration coefficients.
func (d *I2C) Init() error {
	id, err := d.readReg(regChipID)
	if err != nil {
		return fmt.Errorf("failed to probe sensor 0x%02x: %w", d.addr, err)
	}
	if id != chipID {
		return fmt.Errorf("%w: got 0x%02x at 0x%02x", ErrBadChipID, id, d.addr)
	}

	if err := d.writeReg(regSoftReset, softResetCmd); err != nil {
		return fmt.Errorf("failed to reset sensor 0x%02x: %w", d.addr, err)
	}
	time.Sleep(10 * time.Millisecond)

	buf := make([]byte, 0, lenCoeff1+lenCoeff2+lenCoeff3)
	for _, blk := range []struct {
		reg byte
		n   int
	}{
		{regCoeff1, lenCoeff1},
		{regCoeff2, lenCoeff2},
		{regCoeff3, lenCoeff3},
	} {
		part := make([]byte, blk.n)
		if err := d.readRegs(blk.reg, part); err != nil {
			return fmt.Errorf("failed to read calibration block 0x%02x: %w", blk.reg, err)
		}
		buf = append(buf, part...)
	}

	d.calib = parseCalibration(buf)
	d.inited = true
	return nil
}

// Configure writes the oversampling and filter settings.
func (d *I2C) Configure(cfg Config) error {
	if !d.inited {
		return ErrNotConnected
	}

	if err := d.writeReg(regCtrlHum, byte(cfg.HumOS)&0x07); err != nil {
		return fmt.Errorf("failed to set humidity oversampling: %w", err)
	}
	if err := d.writeReg(regConfig, byte(cfg.Filter)<<2); err != nil {
		return fmt.Errorf("failed to set filter: %w", err)
	}

	d.ctrlMeas = byte(cfg.TempOS)<<5 | byte(cfg.PressOS)<<2
	if err := d.writeReg(regCtrlMeas, d.ctrlMeas|modeSleep); err != nil {
		return fmt.Errorf("failed to set oversampling: %w", err)
	}

	d.conf = cfg
	return nil
}

// SetHeater programs the heater plateau temperature and soak time for
// the next forced measurement.
func (d *I2C) SetHeater(targetC uint16, soak time.Duration) error {
	if !d.inited {
		return ErrNotConnected
	}

	if err := d.writeReg(regResHeat0, d.calib.resHeat(targetC, d.ambC)); err != nil {
		return fmt.Errorf("failed to set heater target: %w", err)
	}
	if err := d.writeReg(regGasWait0, encodeGasWait(soak)); err != nil {
		return fmt.Errorf("failed to set heater soak: %w", err)
	}
	if err := d.writeReg(regCtrlGas1, runGasBit); err != nil {
		return fmt.Errorf("failed to enable gas measurement: %w", err)
	}
	return nil
}

// Trigger starts one forced measurement.
func (d *I2C) Trigger() error {
	if !d.inited {
		return ErrNotConnected
	}
	if err := d.writeReg(regCtrlMeas, d.ctrlMeas|modeForced); err != nil {
		return fmt.Errorf("failed to trigger measurement: %w", err)
	}
	return nil
}

// MeasDuration returns the conversion time for the active configuration.
func (d *I2C) MeasDuration() time.Duration {
	return MeasDuration(d.conf)
}

// Read fetches and compensates the measurement data.
func (d *I2C) Read() (Measurement, error) {
	if !d.inited {
		return Measurement{}, ErrNotConnected
	}

	buf := make([]byte, lenField)
	if err := d.readRegs(regField0, buf); err != nil {
		return Measurement{}, fmt.Errorf("failed to read data: %w", err)
	}

	status := buf[0] & statusNewData
	if status == 0 {
		return Measurement{}, ErrNoData
	}
	status |= buf[16] & (statusGasValid | statusHeatStab)

	pressADC := uint32(buf[2])<<12 | uint32(buf[3])<<4 | uint32(buf[4])>>4
	tempADC := uint32(buf[5])<<12 | uint32(buf[6])<<4 | uint32(buf[7])>>4
	humADC := uint16(buf[8])<<8 | uint16(buf[9])
	gasADC := uint16(buf[15])<<2 | uint16(buf[16])>>6
	gasRange := buf[16] & 0x0f

	tempC, tfine := d.calib.temperature(tempADC)
	d.ambC = tempC // next heater setpoint compensates for ambient drift

	return Measurement{
		GasOhm:      gasResistance(gasADC, gasRange),
		TempC:       tempC,
		HumidityPct: d.calib.humidity(humADC, tfine),
		PressurePa:  d.calib.pressure(pressADC, tfine),
		Status:      status,
		FieldCount:  1,
	}, nil
}

// Close puts the sensor back to sleep. The bus stays open for the caller.
func (d *I2C) Close() error {
	if !d.inited {
		return nil
	}
	d.inited = false
	if err := d.writeReg(regCtrlMeas, d.ctrlMeas|modeSleep); err != nil {
		return fmt.Errorf("failed to sleep sensor 0x%02x: %w", d.addr, err)
	}
	return nil
}

func (d *I2C) readReg(reg byte) (byte, error) {
	var buf [1]byte
	if err := d.dev.Tx([]byte{reg}, buf[:]); err != nil {
		return 0, err
	}
	return buf[0], nil
}

func (d *I2C) readRegs(reg byte, buf []byte) error {
	return d.dev.Tx([]byte{reg}, buf)
}

func (d *I2C) writeReg(reg, val byte) error {
	return d.dev.Tx([]byte{reg, val}, nil)
}
