package main

import (
	"fmt"
	"strings"

	"github.com/fgeck/wakelaunch/internal/services/netif"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate [process-name launch-path host-ip-prefix [log-level]]",
	Short: "Validate configuration",
	Long:  `Validate the configuration without watching for packets or launching anything.`,
	Args:  cobra.MaximumNArgs(4),
	RunE:  validateConfig,
}

func validateConfig(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}

	// Print configuration summary
	fmt.Println("Configuration is valid!")
	fmt.Println()
	fmt.Println("Summary:")
	fmt.Printf("  Service: %s\n", cfg.ServiceName)
	fmt.Printf("  Process: %s\n", cfg.Target.ProcessName)
	fmt.Printf("  Launch path: %s\n", cfg.Target.LaunchPath)
	fmt.Printf("  Host IP prefix: %s\n", cfg.Target.HostIPPrefix)
	fmt.Printf("  Log level: %s\n", cfg.Log.Level)
	fmt.Println()
	fmt.Println("Launch:")
	fmt.Printf("  Args: %v\n", cfg.Launch.Args)
	if cfg.Launch.WorkDir != "" {
		fmt.Printf("  Working directory: %s\n", cfg.Launch.WorkDir)
	}
	fmt.Printf("  Visible: %v\n", cfg.Launch.Visible)
	fmt.Println()
	fmt.Println("Capture:")
	fmt.Printf("  Snap length: %d\n", cfg.Capture.SnapLen)
	fmt.Printf("  Promiscuous: %v\n", cfg.Capture.Promiscuous)
	if cfg.Capture.ReadTimeout > 0 {
		fmt.Printf("  Read timeout: %s\n", cfg.Capture.ReadTimeout)
	}
	if cfg.Wake.MACAddress != "" {
		fmt.Printf("  Only wake for: %s\n", cfg.Wake.MACAddress)
	}
	fmt.Println()
	fmt.Println("Optional Features:")
	fmt.Printf("  Readiness check: %v\n", cfg.Launch.Readiness != nil)
	fmt.Printf("  Telegram: %v\n", cfg.Telegram != nil)

	if cfg.Launch.Readiness != nil {
		fmt.Println()
		fmt.Println("Readiness Configuration:")
		fmt.Printf("  URL: %s\n", cfg.Launch.Readiness.URL)
		fmt.Printf("  Timeout: %s\n", cfg.Launch.Readiness.Timeout)
		fmt.Printf("  Poll interval: %s\n", cfg.Launch.Readiness.PollInterval)
	}

	if cfg.Telegram != nil {
		fmt.Println()
		fmt.Println("Telegram Configuration:")
		fmt.Printf("  Chat ID: %s\n", cfg.Telegram.ChatID)
		fmt.Printf("  Bot Token: (configured)\n")
	}

	fmt.Println()
	iface, err := netif.New(log.Logger).Locate(cfg.Target.HostIPPrefix)
	if err != nil {
		log.Warn().Err(err).Msg("no capture interface on this machine")
		fmt.Println("Capture interface: (none)")
		return nil
	}
	fmt.Printf("Capture interface: %s (%s)\n", iface.Name, strings.Join(iface.Addrs, ", "))

	return nil
}
