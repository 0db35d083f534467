// Package config provides configuration file and argument parsing.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/fgeck/wakelaunch/internal/models"
	"github.com/spf13/viper"
)

// ErrInsufficientArguments is returned when neither a config file nor the
// three required positional arguments are supplied.
var ErrInsufficientArguments = errors.New("expected <process-name> <launch-path> <host-ip-prefix> [log-level]")

// Defaults.
const (
	DefaultServiceName       = "wakelaunch"
	DefaultLogLevel          = "info"
	DefaultSnapLen           = 65535
	DefaultReadyTimeout      = 2 * time.Minute
	DefaultReadyPollInterval = 2 * time.Second
)

var validLogLevels = map[string]bool{
	"trace": true,
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Parser handles configuration parsing.
type Parser struct {
	v *viper.Viper
}

// NewParser creates a new configuration parser.
func NewParser() *Parser {
	v := viper.New()
	v.SetConfigType("yaml")

	v.SetDefault("service.name", DefaultServiceName)
	v.SetDefault("launch.visible", true)
	v.SetDefault("launch.ready_timeout", DefaultReadyTimeout)
	v.SetDefault("launch.ready_poll_interval", DefaultReadyPollInterval)
	v.SetDefault("capture.snap_len", DefaultSnapLen)
	v.SetDefault("log.level", DefaultLogLevel)

	return &Parser{v: v}
}

// Load reads the optional config file at path and then applies the positional
// arguments on top of it. Without a file at least three arguments are needed.
func (p *Parser) Load(path string, args []string) (*models.Config, error) {
	if path != "" {
		p.v.SetConfigFile(path)
		if err := p.v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	if path == "" || len(args) > 0 {
		if err := p.applyArgs(args); err != nil {
			return nil, err
		}
	}

	return p.parse()
}

// LoadFile loads configuration from a file path.
func (p *Parser) LoadFile(path string) (*models.Config, error) {
	return p.Load(path, nil)
}

// LoadArgs loads configuration from positional arguments only.
func (p *Parser) LoadArgs(args []string) (*models.Config, error) {
	return p.Load("", args)
}

// LoadReader loads configuration from a reader (useful for testing).
func (p *Parser) LoadReader(content string) (*models.Config, error) {
	if err := p.v.ReadConfig(strings.NewReader(content)); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	return p.parse()
}

func (p *Parser) applyArgs(args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("%w: got %d argument(s)", ErrInsufficientArguments, len(args))
	}

	p.v.Set("target.process_name", args[0])
	p.v.Set("target.launch_path", args[1])
	p.v.Set("target.host_ip_prefix", args[2])
	if len(args) > 3 {
		p.v.Set("log.level", args[3])
	}

	return nil
}

func (p *Parser) parse() (*models.Config, error) {
	cfg := &models.Config{
		ServiceName: p.v.GetString("service.name"),
		Target: models.TargetConfig{
			ProcessName:  p.v.GetString("target.process_name"),
			LaunchPath:   p.expandEnv(p.v.GetString("target.launch_path")),
			HostIPPrefix: p.v.GetString("target.host_ip_prefix"),
		},
		Launch: models.LaunchConfig{
			Args:    p.v.GetStringSlice("launch.args"),
			WorkDir: p.expandEnv(p.v.GetString("launch.work_dir")),
			Visible: p.v.GetBool("launch.visible"),
		},
		Capture: models.CaptureSettings{
			SnapLen:     p.v.GetInt("capture.snap_len"),
			Promiscuous: p.v.GetBool("capture.promiscuous"),
			ReadTimeout: p.v.GetDuration("capture.read_timeout"),
		},
		Wake: models.WakeFilter{
			MACAddress: p.v.GetString("wake.mac_address"),
		},
		Log: models.LogConfig{
			Level: strings.ToLower(p.v.GetString("log.level")),
			File:  p.expandEnv(p.v.GetString("log.file")),
			JSON:  p.v.GetBool("log.json"),
		},
	}

	// Parse optional readiness polling.
	if url := p.v.GetString("launch.ready_url"); url != "" {
		cfg.Launch.Readiness = &models.ReadinessConfig{
			URL:          p.expandEnv(url),
			Timeout:      p.v.GetDuration("launch.ready_timeout"),
			PollInterval: p.v.GetDuration("launch.ready_poll_interval"),
		}
	}

	// Parse optional Telegram config.
	if p.v.IsSet("telegram") {
		cfg.Telegram = &models.TelegramConfig{
			BotToken: p.expandEnv(p.v.GetString("telegram.bot_token")),
			ChatID:   p.expandEnv(p.v.GetString("telegram.chat_id")),
		}

		if cfg.Telegram.BotToken == "" {
			return nil, fmt.Errorf("telegram.bot_token is required when telegram is configured")
		}
		if cfg.Telegram.ChatID == "" {
			return nil, fmt.Errorf("telegram.chat_id is required when telegram is configured")
		}
	}

	return cfg, nil
}

// expandEnv expands environment variables in the format ${VAR} or $VAR.
func (p *Parser) expandEnv(s string) string {
	return os.ExpandEnv(s)
}

// Validate performs validation on the loaded configuration.
func Validate(cfg *models.Config) error {
	if cfg == nil {
		return fmt.Errorf("configuration is nil")
	}

	if cfg.ServiceName == "" {
		return fmt.Errorf("service.name is required")
	}
	if cfg.Target.ProcessName == "" {
		return fmt.Errorf("target.process_name is required")
	}
	if cfg.Target.LaunchPath == "" {
		return fmt.Errorf("target.launch_path is required")
	}
	if cfg.Target.HostIPPrefix == "" {
		return fmt.Errorf("target.host_ip_prefix is required")
	}

	if !validLogLevels[cfg.Log.Level] {
		return fmt.Errorf("log.level must be one of: trace, debug, info, warn, error")
	}

	if cfg.Capture.SnapLen <= 0 {
		return fmt.Errorf("capture.snap_len must be positive")
	}
	if cfg.Capture.ReadTimeout < 0 {
		return fmt.Errorf("capture.read_timeout must not be negative")
	}

	if cfg.Wake.MACAddress != "" {
		mac, err := net.ParseMAC(cfg.Wake.MACAddress)
		if err != nil {
			return fmt.Errorf("wake.mac_address: %w", err)
		}
		if len(mac) != 6 {
			return fmt.Errorf("wake.mac_address must be a 6-byte Ethernet address, got %d bytes", len(mac))
		}
	}

	if r := cfg.Launch.Readiness; r != nil {
		if r.Timeout <= 0 {
			return fmt.Errorf("launch.ready_timeout must be positive")
		}
		if r.PollInterval <= 0 {
			return fmt.Errorf("launch.ready_poll_interval must be positive")
		}
	}

	return nil
}
