// Package watchdog backs the gateway watchdog with the systemd service
// watchdog and reads the boot-time override input.
package watchdog

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"loragate/core"
)

// ErrUnavailable is returned by Enable when the service manager does not
// supervise this process.
var ErrUnavailable = errors.New("systemd watchdog not enabled for this service")

// allow tests to replace the service manager
var (
	sdNotify          = daemon.SdNotify
	sdWatchdogEnabled = daemon.SdWatchdogEnabled
)

var _ core.WatchdogHardware = (*Systemd)(nil)

// Systemd implements core.WatchdogHardware with sd_notify keep-alives.
// The prescaler and reload only define the expected timing; the deadline
// itself is WatchdogSec in the unit file.
type Systemd struct {
	prescaler uint8
	reload    uint16
	timebase  uint32
	deadline  time.Duration
}

// NewSystemd creates a systemd watchdog backend for a timebase in Hz
func NewSystemd(timebaseHz uint32) *Systemd {
	return &Systemd{timebase: timebaseHz}
}

func (s *Systemd) SetPrescaler(p uint8) error {
	s.prescaler = p
	return nil
}

func (s *Systemd) SetReload(r uint16) error {
	s.reload = r
	return nil
}

// Enable checks that systemd expects keep-alives at least as often as the
// configured expiry period.
func (s *Systemd) Enable() error {
	deadline, err := sdWatchdogEnabled(false)
	if err != nil {
		return fmt.Errorf("query systemd watchdog: %w", err)
	}
	if deadline == 0 {
		return ErrUnavailable
	}

	cfg := core.WatchdogConfig{Prescaler: s.prescaler, Reload: s.reload, TimebaseHz: s.timebase}
	if expiry := cfg.ExpiryPeriod(); deadline < expiry {
		return fmt.Errorf("systemd WatchdogSec %v is shorter than the %v expiry period", deadline, expiry)
	}
	s.deadline = deadline
	return nil
}

// Reload sends one keep-alive
func (s *Systemd) Reload() error {
	sent, err := sdNotify(false, daemon.SdNotifyWatchdog)
	if err != nil {
		return fmt.Errorf("notify systemd: %w", err)
	}
	if !sent {
		return ErrUnavailable
	}
	return nil
}

// Deadline returns the systemd watchdog timeout seen by Enable
func (s *Systemd) Deadline() time.Duration {
	return s.deadline
}

// NotifyReady tells systemd that startup finished. It reports false when
// not running under systemd.
func NotifyReady() (bool, error) {
	return sdNotify(false, daemon.SdNotifyReady)
}

// NotifyStopping tells systemd that shutdown began
func NotifyStopping() (bool, error) {
	return sdNotify(false, daemon.SdNotifyStopping)
}

var _ core.OverridePin = Static(false)

// Static is an override fixed by configuration
type Static bool

func (s Static) Pressed() (bool, error) {
	return bool(s), nil
}

// FilePin reads an override input exposed as a file, such as a sysfs GPIO
// value. "1" means pressed; a missing file means released.
type FilePin struct {
	Path string
}

func (p FilePin) Pressed() (bool, error) {
	data, err := os.ReadFile(p.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return strings.TrimSpace(string(data)) == "1", nil
}

// AnyPin is pressed when any of its inputs is pressed
type AnyPin []core.OverridePin

func (a AnyPin) Pressed() (bool, error) {
	for _, p := range a {
		pressed, err := p.Pressed()
		if err != nil {
			return false, err
		}
		if pressed {
			return true, nil
		}
	}
	return false, nil
}
