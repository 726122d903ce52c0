package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"loragate/bridge"
	"loragate/core"
	"loragate/host/config"
	"loragate/host/serial"
	"loragate/host/status"
	"loragate/host/watchdog"
	"loragate/metrics"
)

var serialListPorts = serial.ListPorts

func run(cmd *cobra.Command, _ []string) error {
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return fmt.Errorf("failed to get config flag: %w", err)
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	level, err := cmd.Flags().GetString("log-level")
	if err != nil {
		return fmt.Errorf("failed to get log-level flag: %w", err)
	}
	if level == "" {
		level = cfg.Logging.Level
	}
	logger, err := initLogger(level, cfg.Logging.Format)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer syncLogger(logger)

	console, err := cmd.Flags().GetBool("console")
	if err != nil {
		return fmt.Errorf("failed to get console flag: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runGateway(ctx, cfg, logger, console, cmd.InOrStdin(), cmd.OutOrStdout())
}

// runGateway wires every component and blocks until ctx is done
func runGateway(ctx context.Context, cfg *config.Config, logger *zap.Logger, console bool, in io.Reader, out io.Writer) error {
	reg := metrics.New()

	id, err := cfg.Identity()
	if err != nil {
		return err
	}
	if id.IsZero() {
		// Nothing can join without an identity; keep health reporting up so
		// the operator can see why.
		logger.Error("gateway is not configured, set gateway.node_id", zap.Error(core.ErrNotConfigured))
		fmt.Fprintln(out, "gateway is not configured, set gateway.node_id")
		return serveUntilDone(ctx, cfg, reg, logger)
	}

	regions, err := core.NewRegionTable(cfg.RegionNames())
	if err != nil {
		return fmt.Errorf("failed to load regions: %w", err)
	}

	var link io.Writer = io.Discard
	closePort := func() {}
	port, err := serial.Open(&serial.Config{
		Device:      cfg.Serial.Device,
		Baud:        cfg.Serial.Baud,
		ReadTimeout: int(cfg.Serial.ReadTimeout / time.Millisecond),
	})
	if err != nil {
		logger.Error("serial link unavailable, host replies are discarded", zap.Error(err))
		port = nil
	} else {
		if err := port.Flush(); err != nil {
			logger.Warn("failed to flush serial input", zap.Error(err))
		}
		logger.Info("serial link open", zap.String("device", port.Device()), zap.Int("baud", cfg.Serial.Baud))
		link = port
		closePort = sync.OnceFunc(func() { port.Close() })
		defer closePort()
	}

	var dispatcher *core.Dispatcher
	b := bridge.New(link,
		bridge.DispatcherFunc(func(line string) error { return dispatcher.Dispatch(line) }),
		bridge.WithLogger(logger.Named("bridge")),
		bridge.WithMetrics(reg),
		bridge.WithIngressCapacity(cfg.Bridge.IngressCapacity),
		bridge.WithReplySlots(cfg.Bridge.ReplySlots),
	)

	gwOpts := []core.GatewayOption{
		core.WithEvents(b),
		core.WithLogger(logger.Named("gateway")),
		core.WithJoinKeyDisplay(cfg.Gateway.DisplayJoinKey),
	}
	if cfg.File() != "" {
		gwOpts = append(gwOpts, core.WithSettingsStore(config.NewStore(cfg.File())))
	} else {
		logger.Warn("no configuration file, settings changes will not persist")
	}

	gw, err := core.NewGateway(id, cfg.Settings(), regions, gwOpts...)
	if err != nil {
		return fmt.Errorf("failed to initialize gateway: %w", err)
	}
	dispatcher = core.NewDispatcher(gw, out)
	reg.RegisterDevices(gw.Devices.Len)

	core.PrintConfig(out, gw)

	sched := core.NewScheduler()
	armed := startWatchdog(cfg, sched, reg, logger)

	var wg sync.WaitGroup
	goRun := func(name string, fn func() error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("component stopped", zap.String("component", name), zap.Error(err))
			}
		}()
	}

	goRun("bridge", func() error { return b.Run(ctx) })
	goRun("scheduler", func() error { return sched.Run(ctx, cfg.Watchdog.Resolution) })
	if port != nil {
		goRun("serial", func() error { return b.Pump(ctx, port) })
	}
	if cfg.Status.Listen != "" {
		srv := status.NewServer(cfg.Status.Listen, gw, reg, armed, logger.Named("status"))
		goRun("status", func() error { return srv.Run(ctx) })
	}
	if console {
		// Not waited for: a read from stdin cannot be interrupted. EOF ends
		// the console without stopping the gateway.
		go func() {
			if err := runConsole(ctx, in, out, dispatcher); err != nil {
				logger.Warn("console stopped", zap.Error(err))
			}
		}()
	}

	if sent, err := watchdog.NotifyReady(); err != nil {
		logger.Warn("failed to notify systemd", zap.Error(err))
	} else if sent {
		logger.Debug("notified systemd readiness")
	}
	logger.Info("gateway running", zap.String("node_id", id.NodeID.String()))

	<-ctx.Done()
	logger.Info("shutting down")
	_, _ = watchdog.NotifyStopping()

	// unblocks a pending serial read
	closePort()
	wg.Wait()
	return nil
}

// startWatchdog arms the service watchdog unless disabled or overridden.
// Failures are logged and the gateway keeps running without it.
func startWatchdog(cfg *config.Config, sched *core.Scheduler, reg *metrics.Registry, logger *zap.Logger) func() bool {
	if !cfg.Watchdog.Enabled {
		logger.Info("watchdog disabled by configuration")
		return nil
	}

	pins := watchdog.AnyPin{watchdog.Static(cfg.Watchdog.Suppress)}
	if cfg.Watchdog.OverridePath != "" {
		pins = append(pins, watchdog.FilePin{Path: cfg.Watchdog.OverridePath})
	}

	timing := cfg.WatchdogTiming()
	wd, err := core.NewWatchdog(timing, watchdog.NewSystemd(timing.TimebaseHz), pins, logger.Named("watchdog"))
	if err != nil {
		logger.Warn("watchdog not started", zap.Error(err))
		return nil
	}
	reg.RegisterWatchdog(wd.Reloads, wd.Armed)

	if _, err := wd.Start(sched, time.Now()); err != nil {
		logger.Warn("watchdog not started", zap.Error(err))
	}
	return wd.Armed
}

func serveUntilDone(ctx context.Context, cfg *config.Config, reg *metrics.Registry, logger *zap.Logger) error {
	if cfg.Status.Listen == "" {
		<-ctx.Done()
		return nil
	}
	err := status.NewServer(cfg.Status.Listen, nil, reg, nil, logger).Run(ctx)
	if err != nil {
		logger.Error("status server stopped", zap.Error(err))
	}
	return err
}
