//go:build !unix && !windows

package svchost

import (
	"os"
	"os/signal"

	"github.com/fgeck/wakelaunch/internal/models"
	"github.com/fgeck/wakelaunch/internal/services/shutdown"
	"github.com/rs/zerolog"
)

// Run hosts body until it returns. An interrupt requests shutdown.
func Run(name string, logger zerolog.Logger, body Body) (uint32, error) {
	trigger, stop := shutdown.New()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt)
	defer signal.Stop(sigs)

	go func() {
		if _, ok := <-sigs; ok {
			trigger.Fire()
		}
	}()

	logger.Info().Str("service", name).Msg("service started")
	return body(stop, discardReporter{}), nil
}

// Install is not supported on this platform.
func Install(InstallConfig) error {
	return ErrUnsupported
}

// Uninstall is not supported on this platform.
func Uninstall(string) error {
	return ErrUnsupported
}

type discardReporter struct{}

func (discardReporter) Report(models.ServiceStatus) error {
	return nil
}
