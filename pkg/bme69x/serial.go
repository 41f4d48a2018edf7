package bme69x

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"
)

const (
	// DefaultBaudRate is the standard baud rate for the MCU bridge.
	DefaultBaudRate = 115200

	// replyTimeout bounds how long one command waits for its reply.
	replyTimeout = 500 * time.Millisecond
)

// Port represents a serial port.
type Port struct {
	Name        string
	Description string
}

// Ports returns a list of available serial ports.
func Ports() ([]Port, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}

	result := make([]Port, 0, len(ports))
	for _, name := range ports {
		result = append(result, Port{Name: name, Description: name})
	}
	return result, nil
}

// Bridge owns the serial connection to the MCU that fronts the sensors.
// All sensors behind one bridge share the port; commands run in lockstep
// under one mutex, mirroring how a shared I2C bus is used.
type Bridge struct {
	port string
	baud int

	mu   sync.Mutex
	conn serial.Port
}

// NewBridge creates a bridge for the given port and baud rate.
func NewBridge(port string, baud int) *Bridge {
	if baud == 0 {
		baud = DefaultBaudRate
	}
	return &Bridge{port: port, baud: baud}
}

// Open opens the serial port.
func (b *Bridge) Open() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.conn != nil {
		return fmt.Errorf("already connected")
	}

	mode := &serial.Mode{BaudRate: b.baud}
	port, err := serial.Open(b.port, mode)
	if err != nil {
		return fmt.Errorf("failed to open serial port %s: %w", b.port, err)
	}
	if err := port.SetReadTimeout(50 * time.Millisecond); err != nil {
		port.Close()
		return fmt.Errorf("failed to set read timeout: %w", err)
	}

	b.conn = port
	return nil
}

// Close closes the serial port.
func (b *Bridge) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.conn == nil {
		return nil
	}

	err := b.conn.Close()
	b.conn = nil
	if err != nil {
		return fmt.Errorf("failed to close serial port: %w", err)
	}
	return nil
}

// Sensor returns a Driver for the sensor at addr behind this bridge.
func (b *Bridge) Sensor(addr uint8) *Serial {
	return &Serial{bridge: b, addr: addr, conf: DefaultConfig()}
}

// roundTrip sends one command line and returns the reply line.
func (b *Bridge) roundTrip(cmd string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.conn == nil {
		return "", ErrNotConnected
	}

	if _, err := b.conn.Write([]byte(cmd + "\n")); err != nil {
		return "", fmt.Errorf("failed to send %q: %w", cmd, err)
	}

	line, err := b.readLine()
	if err != nil {
		return "", fmt.Errorf("failed reading reply for %q: %w", cmd, err)
	}

	if rest, ok := strings.CutPrefix(line, "ERR,"); ok {
		return "", fmt.Errorf("bridge rejected %q: %s", cmd, rest)
	}
	return line, nil
}

// readLine collects bytes until a newline or the reply timeout. The read
// timeout on the port keeps each Read call short so the deadline is
// checked regularly.
func (b *Bridge) readLine() (string, error) {
	deadline := time.Now().Add(replyTimeout)
	buf := make([]byte, 64)
	var line strings.Builder

	for {
		n, err := b.conn.Read(buf)
		if err != nil {
			return "", err
		}
		for i := 0; i < n; i++ {
			if buf[i] == '\n' {
				return strings.TrimSpace(line.String()), nil
			}
			line.WriteByte(buf[i])
		}
		if n == 0 && time.Now().After(deadline) {
			return "", ErrTimeout
		}
	}
}

// Serial drives one sensor through the MCU bridge. The line protocol
// carries the sensor address on every command so one bridge can route
// to both 0x76 and 0x77:
//
//	I <addr>                          -> OK
//	C <addr> <ost> <osp> <osh> <filt> -> OK
//	H <addr> <targetC> <soak_ms>      -> OK
//	T <addr>                          -> OK
//	R <addr>                          -> DATA,<gas>,<temp>,<hum>,<press>,<status>,<n>
//
// Any command may be answered with ERR,<reason>.
type Serial struct {
	bridge *Bridge
	addr   uint8
	conf   Config
}

// Init probes the sensor through the bridge.
func (s *Serial) Init() error {
	if _, err := s.bridge.roundTrip(fmt.Sprintf("I %02x", s.addr)); err != nil {
		return fmt.Errorf("failed to init sensor 0x%02x: %w", s.addr, err)
	}
	return nil
}

// Configure forwards the oversampling and filter settings.
func (s *Serial) Configure(cfg Config) error {
	cmd := fmt.Sprintf("C %02x %d %d %d %d",
		s.addr, cfg.TempOS, cfg.PressOS, cfg.HumOS, cfg.Filter)
	if _, err := s.bridge.roundTrip(cmd); err != nil {
		return fmt.Errorf("failed to configure sensor 0x%02x: %w", s.addr, err)
	}

	s.conf = cfg
	return nil
}

// SetHeater programs the heater plateau and soak time.
func (s *Serial) SetHeater(targetC uint16, soak time.Duration) error {
	cmd := fmt.Sprintf("H %02x %d %d", s.addr, targetC, soak.Milliseconds())
	if _, err := s.bridge.roundTrip(cmd); err != nil {
		return fmt.Errorf("failed to set heater on 0x%02x: %w", s.addr, err)
	}
	return nil
}

// Trigger starts one forced measurement.
func (s *Serial) Trigger() error {
	if _, err := s.bridge.roundTrip(fmt.Sprintf("T %02x", s.addr)); err != nil {
		return fmt.Errorf("failed to trigger 0x%02x: %w", s.addr, err)
	}
	return nil
}

// MeasDuration returns the conversion time for the active configuration.
func (s *Serial) MeasDuration() time.Duration {
	return MeasDuration(s.conf)
}

// Read fetches the measurement through the bridge.
func (s *Serial) Read() (Measurement, error) {
	line, err := s.bridge.roundTrip(fmt.Sprintf("R %02x", s.addr))
	if err != nil {
		return Measurement{}, fmt.Errorf("failed to read 0x%02x: %w", s.addr, err)
	}
	return parseData(line)
}

// Close is a no-op; the bridge owns the port.
func (s *Serial) Close() error {
	return nil
}

// parseData parses a DATA reply into a Measurement.
// Format: DATA,<gas_ohm>,<temp_C>,<hum_pct>,<press_Pa>,<status_hex>,<n_fields>
// Example: DATA,123456.00,25.13,41.20,101320.50,0xb0,1
func parseData(line string) (Measurement, error) {
	parts := strings.Split(line, ",")
	if len(parts) != 7 || parts[0] != "DATA" {
		return Measurement{}, fmt.Errorf("invalid data reply: expected 7 DATA fields, got %q", line)
	}

	gas, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return Measurement{}, fmt.Errorf("invalid gas resistance: %w", err)
	}
	temp, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return Measurement{}, fmt.Errorf("invalid temperature: %w", err)
	}
	hum, err := strconv.ParseFloat(parts[3], 64)
	if err != nil {
		return Measurement{}, fmt.Errorf("invalid humidity: %w", err)
	}
	press, err := strconv.ParseFloat(parts[4], 64)
	if err != nil {
		return Measurement{}, fmt.Errorf("invalid pressure: %w", err)
	}
	status, err := strconv.ParseUint(strings.TrimPrefix(parts[5], "0x"), 16, 8)
	if err != nil {
		return Measurement{}, fmt.Errorf("invalid status: %w", err)
	}
	n, err := strconv.Atoi(parts[6])
	if err != nil {
		return Measurement{}, fmt.Errorf("invalid field count: %w", err)
	}

	if n == 0 {
		return Measurement{}, ErrNoData
	}

	return Measurement{
		GasOhm:      gas,
		TempC:       temp,
		HumidityPct: hum,
		PressurePa:  press,
		Status:      byte(status),
		FieldCount:  n,
	}, nil
}
