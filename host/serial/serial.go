// Package serial provides the host link: a byte stream to the host
// controller, opened over a local UART or USB CDC device.
package serial

import (
	"errors"
	"fmt"
	"io"
)

// Port is an open host link. The bridge reads received bytes from it and
// writes reply lines to it.
type Port interface {
	io.ReadWriteCloser

	// Flush discards data received but not yet read
	Flush() error

	// Device returns the path of the underlying device
	Device() string
}

// Config holds serial port configuration
type Config struct {
	// Device path (e.g., "/dev/ttyUSB0", "COM3"); empty selects the first
	// detected port
	Device string

	// Baud rate of the host link
	Baud int

	// Read timeout in milliseconds (0 = blocking)
	ReadTimeout int
}

// DefaultConfig returns the stock host link settings: 115200 8N1 with a
// 100 ms read timeout so a receive loop can notice cancellation.
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        115200,
		ReadTimeout: 100,
	}
}

// Validate checks the link parameters
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config cannot be nil")
	}
	if c.Baud <= 0 {
		return fmt.Errorf("invalid baud rate: %d", c.Baud)
	}
	if c.ReadTimeout < 0 {
		return fmt.Errorf("invalid read timeout: %dms", c.ReadTimeout)
	}
	return nil
}
