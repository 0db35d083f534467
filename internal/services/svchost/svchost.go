// Package svchost connects the controller to the OS service manager.
//
// On Windows the body runs under the service control manager, or under a
// console emulation of it when started interactively. Elsewhere SIGINT and
// SIGTERM stand in for the Stop control and status is reported to systemd.
package svchost

import (
	"errors"

	"github.com/fgeck/wakelaunch/internal/models"
	"github.com/fgeck/wakelaunch/internal/services/shutdown"
	"github.com/rs/zerolog"
)

const exitFailure uint32 = 1

// ErrUnsupported is returned by Install and Uninstall where the platform has
// no service registration.
var ErrUnsupported = errors.New("service registration is not supported on this platform")

// Reporter forwards status records to the service manager.
type Reporter interface {
	Report(status models.ServiceStatus) error
}

// Body is the hosted workload. It must return once stop fires, and its return
// value is reported as the exit code of the Stopped state.
type Body func(stop *shutdown.Listener, reporter Reporter) uint32

// InstallConfig describes a service registration.
type InstallConfig struct {
	Name        string
	DisplayName string
	Description string
	ExePath     string
	Args        []string
}

// RunArgs returns the command line the service manager starts the binary with.
func RunArgs(target models.TargetConfig, logLevel string) []string {
	args := []string{"run", target.ProcessName, target.LaunchPath, target.HostIPPrefix}
	if logLevel != "" {
		args = append(args, logLevel)
	}
	return args
}

// Failed returns a body for a service that cannot start, e.g. because its
// configuration is invalid. It reports the failure and returns exit code 1
// without waiting for a stop request.
func Failed(logger zerolog.Logger, cause error) Body {
	return func(_ *shutdown.Listener, reporter Reporter) uint32 {
		logger.Error().Err(cause).Msg("service cannot start")

		status := models.ServiceStatus{State: models.StateStopping, ExitCode: exitFailure}
		if err := reporter.Report(status); err != nil {
			logger.Warn().Err(err).Msg("failed to report service status")
		}

		return exitFailure
	}
}
