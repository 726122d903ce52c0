package serial

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/tarm/serial"
)

// rawPort is the subset of *serial.Port that NativePort uses
type rawPort interface {
	io.ReadWriteCloser
	Flush() error
}

// NativePort wraps the tarm/serial implementation
type NativePort struct {
	port rawPort
	cfg  *Config
}

// Open opens a native serial port. An empty device is resolved with Detect.
func Open(cfg *Config) (Port, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	device := cfg.Device
	if device == "" {
		detected, err := Detect()
		if err != nil {
			return nil, err
		}
		device = detected
	}

	serialConfig := &serial.Config{
		Name:        device,
		Baud:        cfg.Baud,
		ReadTimeout: time.Duration(cfg.ReadTimeout) * time.Millisecond,
	}

	port, err := serial.OpenPort(serialConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", device, err)
	}

	resolved := *cfg
	resolved.Device = device
	return &NativePort{
		port: port,
		cfg:  &resolved,
	}, nil
}

// Device returns the path of the opened port
func (p *NativePort) Device() string {
	return p.cfg.Device
}

// Read reads data from the serial port. A read timeout with no data is
// reported as (0, nil) rather than io.EOF so callers keep polling.
func (p *NativePort) Read(b []byte) (int, error) {
	n, err := p.port.Read(b)
	if n == 0 && errors.Is(err, io.EOF) && p.cfg.ReadTimeout > 0 {
		return 0, nil
	}
	return n, err
}

// Write writes data to the serial port
func (p *NativePort) Write(b []byte) (int, error) {
	return p.port.Write(b)
}

// Close closes the serial port
func (p *NativePort) Close() error {
	if p.port != nil {
		return p.port.Close()
	}
	return nil
}

// Flush discards unread input held by the driver
func (p *NativePort) Flush() error {
	return p.port.Flush()
}
