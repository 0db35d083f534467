//go:build windows

package svchost

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fgeck/wakelaunch/internal/models"
	"github.com/fgeck/wakelaunch/internal/services/shutdown"
	"github.com/rs/zerolog"
	"golang.org/x/sys/windows"
	"golang.org/x/sys/windows/svc"
	"golang.org/x/sys/windows/svc/debug"
	"golang.org/x/sys/windows/svc/mgr"
)

const stopWaitHint = 5 * time.Second

// Run hosts body under the service control manager. When the process was
// started from a console it runs under the debug emulation, where Ctrl+C is
// delivered as a Stop control.
func Run(name string, logger zerolog.Logger, body Body) (uint32, error) {
	isService, err := svc.IsWindowsService()
	if err != nil {
		return 1, fmt.Errorf("detecting service context: %w", err)
	}

	h := &handler{body: body, logger: logger}

	run := debug.Run
	if isService {
		run = svc.Run
	}

	logger.Info().
		Str("service", name).
		Bool("scm", isService).
		Msg("service starting")

	if err := run(name, h); err != nil {
		return 1, fmt.Errorf("running service %s: %w", name, err)
	}

	return h.exitCode, nil
}

type handler struct {
	body     Body
	logger   zerolog.Logger
	exitCode uint32
}

// Execute implements svc.Handler. Returning from it reports Stopped.
func (h *handler) Execute(_ []string, requests <-chan svc.ChangeRequest, changes chan<- svc.Status) (bool, uint32) {
	trigger, stop := shutdown.New()
	reporter := &scmReporter{changes: changes}

	done := make(chan struct{})
	go h.control(requests, trigger, reporter, done)

	code := h.body(stop, reporter)

	reporter.close()
	close(done)

	h.exitCode = code
	return code != 0, code
}

// control is the callback context. It only touches the shutdown trigger and
// the status channel, and never blocks on the body.
func (h *handler) control(requests <-chan svc.ChangeRequest, trigger *shutdown.Trigger, reporter *scmReporter, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case req := <-requests:
			switch req.Cmd {
			case svc.Interrogate:
				reporter.interrogate(req.CurrentStatus)
			case svc.Stop, svc.Shutdown:
				h.logger.Info().Msg("stop requested by service control manager")
				trigger.Fire()
			default:
				h.logger.Warn().Uint32("cmd", uint32(req.Cmd)).Msg("unexpected control request")
			}
		}
	}
}

// scmReporter serializes status updates onto the changes channel and stops
// forwarding once the body has returned.
type scmReporter struct {
	mu      sync.Mutex
	changes chan<- svc.Status
	closed  bool
}

func (r *scmReporter) Report(status models.ServiceStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return errors.New("service handler has returned")
	}
	r.changes <- toSvcStatus(status)
	return nil
}

func (r *scmReporter) interrogate(current svc.Status) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.closed {
		r.changes <- current
	}
}

func (r *scmReporter) close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = true
}

func toSvcStatus(status models.ServiceStatus) svc.Status {
	out := svc.Status{
		Win32ExitCode: status.ExitCode,
	}

	// The SCM only reads checkpoints of pending states.
	switch status.State {
	case models.StateRunning:
		out.State = svc.Running
	case models.StateStopping:
		out.State = svc.StopPending
		out.CheckPoint = status.Checkpoint
		out.WaitHint = uint32(stopWaitHint / time.Millisecond)
	case models.StateStopped:
		out.State = svc.Stopped
	}

	if status.AcceptStop {
		out.Accepts = svc.AcceptStop | svc.AcceptShutdown
	}

	return out
}

// Install registers the service with automatic start.
func Install(cfg InstallConfig) error {
	m, err := mgr.Connect()
	if err != nil {
		return fmt.Errorf("connecting to service manager: %w", err)
	}
	defer func() { _ = m.Disconnect() }()

	if s, err := m.OpenService(cfg.Name); err == nil {
		_ = s.Close()
		return fmt.Errorf("service %s already exists", cfg.Name)
	}

	s, err := m.CreateService(cfg.Name, cfg.ExePath, mgr.Config{
		DisplayName: cfg.DisplayName,
		Description: cfg.Description,
		StartType:   mgr.StartAutomatic,
	}, cfg.Args...)
	if err != nil {
		return fmt.Errorf("creating service %s: %w", cfg.Name, err)
	}
	defer func() { _ = s.Close() }()

	return nil
}

// Uninstall removes the service registration.
func Uninstall(name string) error {
	m, err := mgr.Connect()
	if err != nil {
		return fmt.Errorf("connecting to service manager: %w", err)
	}
	defer func() { _ = m.Disconnect() }()

	s, err := m.OpenService(name)
	if err != nil {
		if errors.Is(err, windows.ERROR_SERVICE_DOES_NOT_EXIST) {
			return fmt.Errorf("service %s is not installed", name)
		}
		return fmt.Errorf("opening service %s: %w", name, err)
	}
	defer func() { _ = s.Close() }()

	if err := s.Delete(); err != nil {
		return fmt.Errorf("deleting service %s: %w", name, err)
	}

	return nil
}
