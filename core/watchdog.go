package core

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Default independent watchdog settings: a 12-bit reload counter clocked
// from a 56 kHz timebase through a 2^(prescaler+2) divider.
const (
	DefaultWatchdogPrescaler  = 5
	DefaultWatchdogReload     = 0x0FFF
	DefaultWatchdogTimebaseHz = 56000
	DefaultWatchdogAdjustment = 3
)

// WatchdogConfig describes the hardware watchdog timing
type WatchdogConfig struct {
	Prescaler  uint8
	Reload     uint16
	TimebaseHz uint32
	Adjustment uint32 // seconds taken off the expiry period to get the re-arm interval
}

// DefaultWatchdogConfig returns the stock watchdog timing
func DefaultWatchdogConfig() WatchdogConfig {
	return WatchdogConfig{
		Prescaler:  DefaultWatchdogPrescaler,
		Reload:     DefaultWatchdogReload,
		TimebaseHz: DefaultWatchdogTimebaseHz,
		Adjustment: DefaultWatchdogAdjustment,
	}
}

func (c WatchdogConfig) ticks() uint64 {
	return uint64(c.Reload) << (uint64(c.Prescaler) + 2)
}

// Validate checks that the re-arm interval is positive and shorter than
// the expiry period.
func (c WatchdogConfig) Validate() error {
	if c.TimebaseHz == 0 {
		return errors.New("watchdog timebase must be non-zero")
	}
	if c.Reload == 0 {
		return errors.New("watchdog reload must be non-zero")
	}
	if c.Prescaler > 6 {
		return fmt.Errorf("watchdog prescaler %d out of range 0-6", c.Prescaler)
	}
	if c.ticks()/uint64(c.TimebaseHz) <= uint64(c.Adjustment) {
		return fmt.Errorf("watchdog adjustment %ds leaves no re-arm interval", c.Adjustment)
	}
	return nil
}

// RearmInterval returns reload * 2^(prescaler+2) / timebase - adjustment in
// whole seconds.
func (c WatchdogConfig) RearmInterval() time.Duration {
	secs := c.ticks() / uint64(c.TimebaseHz)
	if secs <= uint64(c.Adjustment) {
		return 0
	}
	return time.Duration(secs-uint64(c.Adjustment)) * time.Second
}

// ExpiryPeriod returns how long the hardware counts down before a reset
func (c WatchdogConfig) ExpiryPeriod() time.Duration {
	return time.Duration(c.ticks() * uint64(time.Second) / uint64(c.TimebaseHz))
}

// WatchdogHardware is the watchdog peripheral
type WatchdogHardware interface {
	SetPrescaler(p uint8) error
	SetReload(r uint16) error
	Reload() error
	Enable() error
}

// OverridePin is the operator input that suppresses the watchdog when held
// at boot.
type OverridePin interface {
	Pressed() (bool, error)
}

// Watchdog arms the hardware watchdog and keeps it fed from a scheduler
// timer. A missed re-arm lets the hardware reset the device.
type Watchdog struct {
	cfg     WatchdogConfig
	hw      WatchdogHardware
	pin     OverridePin
	logger  *zap.Logger
	timer   Timer
	armed   atomic.Bool
	reloads atomic.Uint64
}

// NewWatchdog creates a watchdog. pin may be nil.
func NewWatchdog(cfg WatchdogConfig, hw WatchdogHardware, pin OverridePin, logger *zap.Logger) (*Watchdog, error) {
	if hw == nil {
		return nil, errors.New("watchdog hardware is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watchdog{cfg: cfg, hw: hw, pin: pin, logger: logger}, nil
}

// Config returns the watchdog timing
func (w *Watchdog) Config() WatchdogConfig {
	return w.cfg
}

// Armed reports whether Start enabled the hardware
func (w *Watchdog) Armed() bool {
	return w.armed.Load()
}

// Reloads returns how many times the watchdog has been fed
func (w *Watchdog) Reloads() uint64 {
	return w.reloads.Load()
}

// Start arms the watchdog unless the override pin is pressed, and schedules
// the re-arm timer on sched. It reports whether the watchdog was armed.
func (w *Watchdog) Start(sched *Scheduler, now time.Time) (bool, error) {
	if w.pin != nil {
		pressed, err := w.pin.Pressed()
		if err != nil {
			w.logger.Warn("failed to read watchdog override, arming anyway", zap.Error(err))
		} else if pressed {
			w.logger.Info("watchdog disabled: override held at boot")
			return false, nil
		}
	}

	if err := w.hw.SetPrescaler(w.cfg.Prescaler); err != nil {
		return false, fmt.Errorf("set watchdog prescaler: %w", err)
	}
	if err := w.hw.SetReload(w.cfg.Reload); err != nil {
		return false, fmt.Errorf("set watchdog reload: %w", err)
	}
	if err := w.feed(); err != nil {
		return false, err
	}
	if err := w.hw.Enable(); err != nil {
		return false, fmt.Errorf("enable watchdog: %w", err)
	}

	interval := w.cfg.RearmInterval()
	w.timer = Timer{
		WakeTime: now.Add(interval),
		Handler: func(t *Timer) uint8 {
			if err := w.feed(); err != nil {
				w.logger.Error("watchdog reload failed", zap.Error(err))
			}
			t.WakeTime = t.WakeTime.Add(interval)
			return SF_RESCHEDULE
		},
	}
	sched.Schedule(&w.timer)
	w.armed.Store(true)

	w.logger.Info("watchdog armed",
		zap.Duration("rearm_interval", interval),
		zap.Duration("expiry", w.cfg.ExpiryPeriod()))
	return true, nil
}

func (w *Watchdog) feed() error {
	if err := w.hw.Reload(); err != nil {
		return fmt.Errorf("reload watchdog: %w", err)
	}
	w.reloads.Add(1)
	w.logger.Debug("watchdog reset")
	return nil
}
