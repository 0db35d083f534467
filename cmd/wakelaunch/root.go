package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fgeck/wakelaunch/internal/models"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	// Version is set at build time.
	Version = "dev"

	// Configuration flags.
	configFile  string
	logFilePath string
	verbose     bool
	quiet       bool
	jsonOutput  bool

	logFile    *os.File
	startupErr error
)

var rootCmd = &cobra.Command{
	Use:   "wakelaunch",
	Short: "Launch an application when a Wake-on-LAN packet arrives",
	Long: `wakelaunch is a background service for machines that never really sleep.
It watches one network interface for Wake-on-LAN magic packets and, if the
target application is not running, starts it in the active desktop session:
  - runs under the Windows service control manager or systemd
  - optional readiness polling of the launched application
  - optional Telegram notifications

Configure it with a YAML file (--config) or with positional arguments:
  wakelaunch run <process-name> <launch-path> <host-ip-prefix> [log-level]`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		err := setupLogging()
		if err != nil && cmd.Name() == "run" {
			// run reports startup failures to the service manager.
			startupErr = err
			return nil
		}
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		closeLogFile()
	},
	Version: Version,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file")
	rootCmd.PersistentFlags().StringVar(&logFilePath, "log-file", "", "append logs to this file instead of stdout")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose (debug) output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "enable quiet mode (errors only)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output logs in JSON format")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(installCmd)
	rootCmd.AddCommand(uninstallCmd)
	rootCmd.AddCommand(interfacesCmd)
}

func setupLogging() error {
	var openErr error
	out := io.Writer(os.Stdout)
	if logFilePath != "" {
		f, err := openLogFile(logFilePath)
		if err != nil {
			openErr = err
		} else {
			out = f
		}
	}

	log.Logger = newLogger(out, jsonOutput, logFile != nil)

	// Set log level
	switch {
	case quiet:
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	case verbose:
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	return openErr
}

// applyLogConfig layers the loaded log settings over the flags. An explicit
// -v or -q keeps precedence over the configured level.
func applyLogConfig(cfg models.LogConfig) error {
	if logFilePath == "" && cfg.File != "" {
		f, err := openLogFile(cfg.File)
		if err != nil {
			return err
		}
		log.Logger = newLogger(f, jsonOutput || cfg.JSON, true)
	} else if cfg.JSON && !jsonOutput {
		w := io.Writer(os.Stdout)
		if logFile != nil {
			w = logFile
		}
		log.Logger = newLogger(w, true, logFile != nil)
	}

	if verbose || quiet {
		return nil
	}

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return fmt.Errorf("parsing log level: %w", err)
	}
	zerolog.SetGlobalLevel(level)

	return nil
}

func newLogger(out io.Writer, jsonFormat, noColor bool) zerolog.Logger {
	if jsonFormat {
		return zerolog.New(out).With().Timestamp().Logger()
	}

	output := zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05", NoColor: noColor}
	output.FormatLevel = func(i interface{}) string {
		if s, ok := i.(string); ok {
			return strings.ToUpper(s)
		}
		return ""
	}
	return zerolog.New(output).With().Timestamp().Logger()
}

func openLogFile(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	closeLogFile()
	logFile = f
	return f, nil
}

func closeLogFile() {
	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
	}
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
