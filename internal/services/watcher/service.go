// Package watcher runs the monitor, listen and launch cycle of the service.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/fgeck/wakelaunch/internal/models"
	"github.com/fgeck/wakelaunch/internal/services/capture"
	"github.com/fgeck/wakelaunch/internal/services/launcher"
	"github.com/fgeck/wakelaunch/internal/services/netif"
	"github.com/fgeck/wakelaunch/internal/services/process"
	"github.com/fgeck/wakelaunch/internal/services/readiness"
	"github.com/fgeck/wakelaunch/internal/services/shutdown"
	"github.com/fgeck/wakelaunch/internal/services/telegram"
	"github.com/fgeck/wakelaunch/internal/services/wol"
	"github.com/rs/zerolog"
)

// Exit codes reported with the Stopped state.
const (
	ExitSuccess uint32 = 0
	ExitFailure uint32 = 1
)

// DefaultPollInterval is the pause between two process table checks.
const DefaultPollInterval = time.Second

var errShutdown = errors.New("shutdown requested")

type state int

const (
	stateInitializing state = iota
	stateMonitoring
	stateListening
	stateLaunching
	stateStopping
)

func (s state) String() string {
	switch s {
	case stateInitializing:
		return "initializing"
	case stateMonitoring:
		return "monitoring"
	case stateListening:
		return "listening"
	case stateLaunching:
		return "launching"
	case stateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// StatusReporter forwards status records to the OS service manager.
type StatusReporter interface {
	Report(status models.ServiceStatus) error
}

// Services bundles the collaborators of the controller.
type Services struct {
	Interfaces netif.Service
	Processes  process.Service
	Capture    capture.Source
	Launcher   launcher.Service
	Readiness  readiness.Service
	Telegram   telegram.Service
}

// Impl is the service lifecycle controller.
type Impl struct {
	svc          Services
	decode       func(frame []byte) (*wol.Packet, error)
	cfg          models.Config
	filter       net.HardwareAddr
	hostname     string
	pollInterval time.Duration
	logger       zerolog.Logger

	state      state
	checkpoint uint32
}

// New creates a controller wired to the platform implementations.
func New(logger zerolog.Logger, cfg models.Config) *Impl {
	return NewWithServices(logger, cfg, Services{
		Interfaces: netif.New(logger),
		Processes:  process.New(logger),
		Capture:    capture.New(),
		Launcher:   launcher.New(logger),
		Readiness:  readiness.New(logger),
		Telegram:   telegram.New(logger),
	}, DefaultPollInterval)
}

// NewWithServices creates a controller with custom services (for testing).
func NewWithServices(logger zerolog.Logger, cfg models.Config, svc Services, pollInterval time.Duration) *Impl {
	// The address is validated by the config parser.
	filter, _ := net.ParseMAC(cfg.Wake.MACAddress)

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	return &Impl{
		svc:          svc,
		decode:       wol.Decode,
		cfg:          cfg,
		filter:       filter,
		hostname:     hostname,
		pollInterval: pollInterval,
		logger:       logger,
	}
}

// Run drives the controller until stop fires or a fatal precondition fails.
// It returns the exit code to report with the Stopped state.
func (c *Impl) Run(ctx context.Context, stop *shutdown.Listener, reporter StatusReporter) uint32 {
	c.enter(stateInitializing)
	c.report(reporter, models.ServiceStatus{State: models.StateRunning, AcceptStop: true})

	iface, err := c.svc.Interfaces.Locate(c.cfg.Target.HostIPPrefix)
	if err != nil {
		c.logger.Error().Err(err).Msg("cannot select capture interface")
		return c.stop(reporter, ExitFailure)
	}

	c.logger.Info().
		Str("interface", iface.Name).
		Strs("addrs", iface.Addrs).
		Msg("selected capture interface")

	for {
		c.enter(stateMonitoring)
		if stop.Requested() {
			return c.stop(reporter, ExitSuccess)
		}

		running, err := c.svc.Processes.IsRunning(ctx, c.cfg.Target.ProcessName)
		switch {
		case err != nil:
			c.logger.Warn().Err(err).Msg("failed to query process table")
		case !running:
			c.logger.Info().
				Str("process", c.cfg.Target.ProcessName).
				Msg("target not running, waiting for magic packet")

			pkt, err := c.listen(*iface, stop)
			if errors.Is(err, errShutdown) {
				return c.stop(reporter, ExitSuccess)
			}
			if err != nil {
				c.logger.Error().Err(err).Msg("cannot listen for magic packets")
				return c.stop(reporter, ExitFailure)
			}

			c.launch(ctx, stop, *iface, pkt)
		}

		if !c.sleep(stop) {
			return c.stop(reporter, ExitSuccess)
		}
	}
}

func (c *Impl) listen(iface models.Interface, stop *shutdown.Listener) (*wol.Packet, error) {
	c.enter(stateListening)

	h, err := c.svc.Capture.Open(iface, c.cfg.Capture)
	if err != nil {
		return nil, fmt.Errorf("opening capture on %s: %w", iface.Name, err)
	}
	defer func() {
		if err := h.Close(); err != nil {
			c.logger.Warn().Err(err).Msg("failed to close capture handle")
		}
	}()

	for {
		if stop.Requested() {
			return nil, errShutdown
		}

		frame, err := h.ReadFrame()
		if errors.Is(err, capture.ErrTimeout) {
			c.logger.Trace().Msg("capture read timed out")
			continue
		}
		if err != nil {
			c.logger.Warn().Err(err).Msg("failed to read frame")
			continue
		}

		pkt, err := c.decode(frame)
		if errors.Is(err, wol.ErrNotMagicPacket) {
			continue
		}
		if err != nil {
			c.logger.Debug().Err(err).Int("len", len(frame)).Msg("failed to decode magic packet")
			continue
		}

		if !pkt.Matches(c.filter) {
			c.logger.Debug().
				Stringer("target", pkt.Target).
				Msg("ignoring magic packet for another host")
			continue
		}

		c.logger.Info().
			Stringer("target", pkt.Target).
			Stringer("source", pkt.Source).
			Msg("magic packet received")

		return pkt, nil
	}
}

func (c *Impl) launch(ctx context.Context, stop *shutdown.Listener, iface models.Interface, pkt *wol.Packet) {
	c.enter(stateLaunching)

	event := models.WakeEvent{
		Time:       time.Now(),
		Host:       c.hostname,
		Interface:  iface.Name,
		TargetMAC:  pkt.Target.String(),
		LaunchPath: c.cfg.Target.LaunchPath,
	}
	if pkt.Source != nil {
		event.SourceMAC = pkt.Source.String()
	}

	pid, err := c.svc.Launcher.Launch(ctx, c.launchRequest())
	if err != nil {
		c.logger.Error().
			Err(err).
			Str("path", c.cfg.Target.LaunchPath).
			Msg("failed to launch target")
		event.LaunchErr = err
	} else {
		event.PID = pid
		c.logger.Info().
			Str("path", c.cfg.Target.LaunchPath).
			Int("pid", pid).
			Msg("target launched")

		if c.cfg.Launch.Readiness != nil {
			event.Readiness = c.waitReady(ctx, stop, *c.cfg.Launch.Readiness)
		}
	}

	if c.cfg.Telegram != nil {
		c.notify(ctx, *c.cfg.Telegram, event)
	}
}

func (c *Impl) launchRequest() models.LaunchRequest {
	workDir := c.cfg.Launch.WorkDir
	if workDir == "" {
		workDir = filepath.Dir(c.cfg.Target.LaunchPath)
	}

	return models.LaunchRequest{
		Path:    c.cfg.Target.LaunchPath,
		Args:    c.cfg.Launch.Args,
		WorkDir: workDir,
		Visible: c.cfg.Launch.Visible,
	}
}

func (c *Impl) waitReady(ctx context.Context, stop *shutdown.Listener, cfg models.ReadinessConfig) *models.ReadinessResult {
	ctx, cancel := stop.Context(ctx)
	defer cancel()

	result, err := c.svc.Readiness.Wait(ctx, cfg)
	if err != nil {
		c.logger.Warn().Err(err).Msg("readiness check failed")
		return &models.ReadinessResult{Error: err}
	}
	if result.Error != nil {
		c.logger.Warn().
			Err(result.Error).
			Dur("waited", result.WaitDuration).
			Msg("launched application did not become ready")
	}

	return result
}

func (c *Impl) notify(ctx context.Context, cfg models.TelegramConfig, event models.WakeEvent) {
	result, err := c.svc.Telegram.SendNotification(ctx, cfg, event)
	if err != nil {
		c.logger.Error().Err(err).Msg("failed to send Telegram notification")
		return
	}
	if result.Error != nil {
		c.logger.Error().Err(result.Error).Msg("failed to send Telegram notification")
	}
}

// sleep waits one poll interval. It returns false if stop fired meanwhile.
func (c *Impl) sleep(stop *shutdown.Listener) bool {
	t := time.NewTimer(c.pollInterval)
	defer t.Stop()

	select {
	case <-stop.Done():
		return false
	case <-t.C:
		return true
	}
}

func (c *Impl) stop(reporter StatusReporter, exitCode uint32) uint32 {
	c.enter(stateStopping)
	c.report(reporter, models.ServiceStatus{State: models.StateStopping, ExitCode: exitCode})

	c.logger.Info().Uint32("exit_code", exitCode).Msg("controller stopped")
	return exitCode
}

func (c *Impl) enter(s state) {
	if c.state == s {
		return
	}
	c.logger.Debug().
		Stringer("from", c.state).
		Stringer("to", s).
		Msg("state transition")
	c.state = s
}

func (c *Impl) report(reporter StatusReporter, status models.ServiceStatus) {
	c.checkpoint++
	status.Checkpoint = c.checkpoint

	if err := reporter.Report(status); err != nil {
		c.logger.Warn().
			Err(err).
			Stringer("state", status.State).
			Msg("failed to report service status")
	}
}
