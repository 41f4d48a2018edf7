package main

import "machine"

const (
	// Sensor addresses routable behind the bridge
	SENSOR_ADDR1 = 0x76
	SENSOR_ADDR2 = 0x77

	// I2C configuration
	PIN_SDA       = machine.SDA_PIN
	PIN_SCL       = machine.SCL_PIN
	I2C_FREQUENCY = 400000 // Hz (fast mode; a 17-byte field read takes ~0.4ms)

	// Delay after soft reset before the chip accepts register access
	SOFT_RESET_DELAY_MS = 10

	// Serial configuration
	// Baud rate calculation: one sample is three round trips (H, T, R):
	// ~23 bytes of commands in, ~52 bytes of replies out ("OK\n" twice plus
	// "DATA,123456.00,25.13,41.20,101320.50,0xb0,1\n")
	// Two sensors at 40 samples/sec = 80 * 75 bytes = ~6,000 bytes/sec
	// UART 8N1: 10 bits/byte = 60,000 baud minimum
	// 115200 provides ~1.9x headroom (11,520 bytes/sec max / 6,000 bytes/sec required)
	UART_BAUD_RATE = 115200
)
