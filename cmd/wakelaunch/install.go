package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fgeck/wakelaunch/internal/config"
	"github.com/fgeck/wakelaunch/internal/services/svchost"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var installCmd = &cobra.Command{
	Use:   "install [process-name launch-path host-ip-prefix [log-level]]",
	Short: "Register wakelaunch as a service",
	Long: `Register this executable with the Windows service control manager, started
automatically at boot. The service is started with 'run' and the resolved
process name, launch path, host IP prefix and log level.`,
	Args: cobra.MaximumNArgs(4),
	RunE: installService,
}

var uninstallCmd = &cobra.Command{
	Use:   "uninstall [service-name]",
	Short: "Remove the wakelaunch service",
	Args:  cobra.MaximumNArgs(1),
	RunE:  uninstallService,
}

func installService(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolving executable path: %w", err)
	}

	runArgs := svchost.RunArgs(cfg.Target, cfg.Log.Level)
	if configFile != "" {
		abs, err := filepath.Abs(configFile)
		if err != nil {
			return fmt.Errorf("resolving config path: %w", err)
		}
		runArgs = append(runArgs, "--config", abs)
	}
	if logFilePath != "" {
		abs, err := filepath.Abs(logFilePath)
		if err != nil {
			return fmt.Errorf("resolving log file path: %w", err)
		}
		runArgs = append(runArgs, "--log-file", abs)
	}

	err = svchost.Install(svchost.InstallConfig{
		Name:        cfg.ServiceName,
		DisplayName: "WakeLaunch (" + cfg.Target.ProcessName + ")",
		Description: "Starts " + cfg.Target.LaunchPath + " when a Wake-on-LAN packet arrives.",
		ExePath:     exe,
		Args:        runArgs,
	})
	if err != nil {
		log.Error().Err(err).Str("service", cfg.ServiceName).Msg("failed to install service")
		return err
	}

	log.Info().
		Str("service", cfg.ServiceName).
		Str("exe", exe).
		Strs("args", runArgs).
		Msg("service installed")
	return nil
}

func uninstallService(cmd *cobra.Command, args []string) error {
	name := config.DefaultServiceName
	if len(args) > 0 {
		name = args[0]
	} else if configFile != "" {
		cfg, err := loadConfig(nil)
		if err != nil {
			return err
		}
		name = cfg.ServiceName
	}

	if err := svchost.Uninstall(name); err != nil {
		log.Error().Err(err).Str("service", name).Msg("failed to uninstall service")
		return err
	}

	log.Info().Str("service", name).Msg("service uninstalled")
	return nil
}
