package main

import (
	"context"
	"fmt"

	"github.com/fgeck/wakelaunch/internal/config"
	"github.com/fgeck/wakelaunch/internal/models"
	"github.com/fgeck/wakelaunch/internal/services/shutdown"
	"github.com/fgeck/wakelaunch/internal/services/svchost"
	"github.com/fgeck/wakelaunch/internal/services/watcher"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run [process-name launch-path host-ip-prefix [log-level]]",
	Short: "Watch for magic packets and launch the target application",
	Long: `Run the service loop:
1. Select the network interface whose address starts with the host IP prefix
2. Check once per second whether the target process is running
3. While it is not, capture frames on the interface until a magic packet arrives
4. Launch the target in the active desktop session
5. Wait for the application to answer (if ready_url is configured)
6. Send Telegram notification (if configured)

Positional arguments override the values of the config file.`,
	Args: cobra.MaximumNArgs(4),
	RunE: runService,
}

func runService(cmd *cobra.Command, args []string) error {
	cfg, err := startupConfig(args)
	if err != nil {
		if configFile == "" && len(args) == 0 {
			_ = cmd.Help()
		}
		// Still register with the service manager so it sees a stopped
		// service with a failure exit code rather than a vanished process.
		if _, hostErr := svchost.Run(config.DefaultServiceName, log.Logger, svchost.Failed(log.Logger, err)); hostErr != nil {
			log.Error().Err(hostErr).Msg("service host failed")
		}
		return err
	}

	log.Info().
		Str("service", cfg.ServiceName).
		Str("process", cfg.Target.ProcessName).
		Str("launch_path", cfg.Target.LaunchPath).
		Str("prefix", cfg.Target.HostIPPrefix).
		Msg("configuration loaded")

	controller := watcher.New(log.Logger, *cfg)

	code, err := svchost.Run(cfg.ServiceName, log.Logger, func(stop *shutdown.Listener, reporter svchost.Reporter) uint32 {
		return controller.Run(context.Background(), stop, reporter)
	})
	if err != nil {
		log.Error().Err(err).Msg("service host failed")
		return err
	}
	if code != watcher.ExitSuccess {
		return fmt.Errorf("service stopped with exit code %d", code)
	}

	log.Info().Msg("service stopped")
	return nil
}

// startupConfig resolves everything run needs before the controller starts.
func startupConfig(args []string) (*models.Config, error) {
	if startupErr != nil {
		log.Error().Err(startupErr).Msg("failed to configure logging")
		return nil, startupErr
	}

	cfg, err := loadConfig(args)
	if err != nil {
		return nil, err
	}

	if err := applyLogConfig(cfg.Log); err != nil {
		log.Error().Err(err).Msg("failed to configure logging")
		return nil, err
	}

	return cfg, nil
}

// loadConfig merges the config file and positional arguments and validates
// the result.
func loadConfig(args []string) (*models.Config, error) {
	parser := config.NewParser()
	cfg, err := parser.Load(configFile, args)
	if err != nil {
		log.Error().Err(err).Str("file", configFile).Msg("failed to load config")
		return nil, err
	}

	if err := config.Validate(cfg); err != nil {
		log.Error().Err(err).Msg("invalid configuration")
		return nil, err
	}

	return cfg, nil
}
