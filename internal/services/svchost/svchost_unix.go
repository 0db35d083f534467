//go:build unix

package svchost

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/fgeck/wakelaunch/internal/models"
	"github.com/fgeck/wakelaunch/internal/services/shutdown"
	"github.com/rs/zerolog"
)

// Run hosts body until it returns. SIGINT and SIGTERM request shutdown and
// SIGHUP re-announces the current status.
func Run(name string, logger zerolog.Logger, body Body) (uint32, error) {
	trigger, stop := shutdown.New()
	reporter := newSystemdReporter(logger, daemon.SdNotify)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigs)

	done := make(chan struct{})
	defer close(done)

	c := &control{trigger: trigger, reporter: reporter, logger: logger}
	go func() {
		for {
			select {
			case <-done:
				return
			case sig := <-sigs:
				c.handle(sig)
			}
		}
	}()

	logger.Info().Str("service", name).Msg("service started")

	code := body(stop, reporter)
	_ = reporter.Report(models.ServiceStatus{State: models.StateStopped, ExitCode: code})

	return code, nil
}

// Install is only implemented for the Windows service control manager.
func Install(InstallConfig) error {
	return ErrUnsupported
}

// Uninstall is only implemented for the Windows service control manager.
func Uninstall(string) error {
	return ErrUnsupported
}

type control struct {
	trigger  *shutdown.Trigger
	reporter *systemdReporter
	logger   zerolog.Logger
}

func (c *control) handle(sig os.Signal) {
	switch sig {
	case syscall.SIGHUP:
		c.reporter.announce()
	default:
		c.logger.Warn().Str("signal", sig.String()).Msg("received signal, shutting down")
		c.trigger.Fire()
	}
}

type notifyFunc func(unsetEnvironment bool, state string) (bool, error)

// systemdReporter translates status records into sd_notify messages. Outside
// of systemd the notifications are dropped silently.
type systemdReporter struct {
	mu     sync.Mutex
	last   *models.ServiceStatus
	notify notifyFunc
	logger zerolog.Logger
}

func newSystemdReporter(logger zerolog.Logger, notify notifyFunc) *systemdReporter {
	return &systemdReporter{notify: notify, logger: logger}
}

func (r *systemdReporter) Report(status models.ServiceStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.last = &status
	return r.send(status)
}

func (r *systemdReporter) announce() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.last == nil {
		return
	}
	if err := r.send(*r.last); err != nil {
		r.logger.Warn().Err(err).Msg("failed to re-announce service status")
	}
}

func (r *systemdReporter) send(status models.ServiceStatus) error {
	sent, err := r.notify(false, notifyState(status))
	if err != nil {
		return fmt.Errorf("sd_notify: %w", err)
	}
	if sent {
		r.logger.Trace().Stringer("state", status.State).Msg("reported status to systemd")
	}
	return nil
}

func notifyState(status models.ServiceStatus) string {
	lines := []string{"STATUS=" + status.State.String()}

	switch status.State {
	case models.StateRunning:
		lines = append(lines, daemon.SdNotifyReady)
	case models.StateStopping:
		lines = append(lines, daemon.SdNotifyStopping)
	case models.StateStopped:
		if status.ExitCode != 0 {
			lines = append(lines, fmt.Sprintf("ERRNO=%d", status.ExitCode))
		}
	}

	return strings.Join(lines, "\n")
}
