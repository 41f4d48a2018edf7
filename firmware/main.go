//go:generate tinygo flash -target=xiao

package main

import (
	"machine"
	"strconv"
	"strings"
	"time"
)

var (
	// machine.Serial is the USB CDC port on the xiao; commands and
	// replies share it.
	uart = machine.Serial
	bus  = machine.I2C0

	// One slot per routable sensor address
	sensors [2]sensor

	// Serial buffer for reading command lines
	serialBuffer [32]byte
	serialPos    int
	lineTooLong  bool
)

func main() {
	uart.Configure(machine.UARTConfig{
		BaudRate: UART_BAUD_RATE,
	})

	bus.Configure(machine.I2CConfig{
		Frequency: I2C_FREQUENCY,
		SDA:       PIN_SDA,
		SCL:       PIN_SCL,
	})

	sensors[0] = sensor{addr: SENSOR_ADDR1}
	sensors[1] = sensor{addr: SENSOR_ADDR2}

	// Main loop
	for {
		processSerial()

		// Small delay to prevent tight loop
		time.Sleep(100 * time.Microsecond)
	}
}

func processSerial() {
	// Read available bytes from serial
	for uart.Buffered() > 0 {
		data, err := uart.ReadByte()
		if err != nil {
			break
		}

		// Check for newline (end of line)
		if data == '\n' || data == '\r' {
			if lineTooLong {
				reply("ERR,line too long")
			} else if serialPos > 0 {
				handleCommand(string(serialBuffer[:serialPos]))
			}
			serialPos = 0
			lineTooLong = false
			continue
		}

		if serialPos < len(serialBuffer) {
			serialBuffer[serialPos] = data
			serialPos++
		} else {
			// Overlong line, drop it wholesale once the newline arrives
			lineTooLong = true
		}
	}
}

// handleCommand parses and executes one command line. Every command
// carries the sensor address so one bridge can route to both 0x76 and
// 0x77:
//
//	I <addr>                          -> OK
//	C <addr> <ost> <osp> <osh> <filt> -> OK
//	H <addr> <targetC> <soak_ms>      -> OK
//	T <addr>                          -> OK
//	R <addr>                          -> DATA,<gas>,<temp>,<hum>,<press>,<status>,<n>
func handleCommand(line string) {
	parts := strings.Fields(line)
	if len(parts) < 2 {
		reply("ERR,bad command")
		return
	}

	s := findSensor(parts[1])
	if s == nil {
		reply("ERR,unknown address")
		return
	}

	switch parts[0] {
	case "I":
		replyStatus(s.init())

	case "C":
		if len(parts) != 6 {
			reply("ERR,bad command")
			return
		}
		args, ok := parseArgs(parts[2:])
		if !ok {
			reply("ERR,bad argument")
			return
		}
		replyStatus(s.configure(byte(args[0]), byte(args[1]), byte(args[2]), byte(args[3])))

	case "H":
		if len(parts) != 4 {
			reply("ERR,bad command")
			return
		}
		args, ok := parseArgs(parts[2:])
		if !ok {
			reply("ERR,bad argument")
			return
		}
		replyStatus(s.setHeater(uint16(args[0]), args[1]))

	case "T":
		replyStatus(s.trigger())

	case "R":
		r, err := s.read()
		if err != nil {
			reply("ERR," + err.Error())
			return
		}
		sendReading(r)

	default:
		reply("ERR,bad command")
	}
}

// findSensor resolves a two-digit hex address field to a sensor slot.
func findSensor(field string) *sensor {
	addr, err := strconv.ParseUint(field, 16, 8)
	if err != nil {
		return nil
	}
	for i := range sensors {
		if sensors[i].addr == uint16(addr) {
			return &sensors[i]
		}
	}
	return nil
}

// parseArgs converts decimal argument fields to numbers.
func parseArgs(fields []string) ([4]uint32, bool) {
	var args [4]uint32
	for i, f := range fields {
		v, err := strconv.ParseUint(f, 10, 32)
		if err != nil {
			return args, false
		}
		args[i] = uint32(v)
	}
	return args, true
}

func replyStatus(err error) {
	if err != nil {
		reply("ERR," + err.Error())
		return
	}
	reply("OK")
}

// sendReading formats one measurement.
// Example: "DATA,123456.00,25.13,41.20,101320.50,0xb0,1\n"
func sendReading(r reading) {
	line := "DATA," +
		strconv.FormatFloat(r.gasOhm, 'f', 2, 64) + "," +
		strconv.FormatFloat(r.tempC, 'f', 2, 64) + "," +
		strconv.FormatFloat(r.humPct, 'f', 2, 64) + "," +
		strconv.FormatFloat(r.pressPa, 'f', 2, 64) + "," +
		"0x" + strconv.FormatUint(uint64(r.status), 16) + "," +
		strconv.Itoa(r.fields)
	reply(line)
}

func reply(line string) {
	uart.Write([]byte(line))
	uart.WriteByte('\n')
}
