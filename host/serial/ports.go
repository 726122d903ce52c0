package serial

import (
	"errors"
	"sort"
	"strings"

	bugserial "go.bug.st/serial"
)

// ErrNoPorts is returned by Detect when no candidate port is present
var ErrNoPorts = errors.New("no serial ports found")

// allow tests to override port enumeration
var getPortsList = bugserial.GetPortsList

// preferred device prefixes for a USB-UART host link, in order
var detectPrefixes = []string{"/dev/ttyUSB", "/dev/ttyACM", "/dev/tty.usbserial", "/dev/cu.usbserial", "COM"}

// ListPorts returns the serial ports present on the system, sorted
func ListPorts() ([]string, error) {
	ports, err := getPortsList()
	if err != nil {
		return nil, err
	}
	sort.Strings(ports)
	return ports, nil
}

// Detect picks the first port matching a known USB-UART device prefix
func Detect() (string, error) {
	ports, err := ListPorts()
	if err != nil {
		return "", err
	}

	for _, prefix := range detectPrefixes {
		for _, p := range ports {
			if strings.HasPrefix(p, prefix) {
				return p, nil
			}
		}
	}
	return "", ErrNoPorts
}
