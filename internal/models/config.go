// Package models contains the data structures used throughout wakelaunch.
package models

import "time"

// Config holds the complete configuration for a wakelaunch daemon.
type Config struct {
	ServiceName string
	Target      TargetConfig
	Launch      LaunchConfig
	Capture     CaptureSettings
	Wake        WakeFilter
	Log         LogConfig
	Telegram    *TelegramConfig // nil if not configured
}

// TargetConfig describes the application that is woken up. It is set once at
// startup and never mutated.
type TargetConfig struct {
	ProcessName  string // executable name looked up in the process table, e.g. "kodi.exe"
	LaunchPath   string // executable started when a magic packet arrives
	HostIPPrefix string // textual prefix used to select the capture interface
}

// LaunchConfig holds options for starting the target in the user session.
type LaunchConfig struct {
	Args      []string
	WorkDir   string           // defaults to the directory of Target.LaunchPath
	Visible   bool             // new visible console instead of a hidden window
	Readiness *ReadinessConfig // nil if not configured
}

// ReadinessConfig controls polling of the launched application.
type ReadinessConfig struct {
	URL          string
	Timeout      time.Duration
	PollInterval time.Duration
}

// CaptureSettings controls the link-layer receive handle.
type CaptureSettings struct {
	SnapLen     int
	Promiscuous bool
	ReadTimeout time.Duration // 0 blocks until a frame or an error arrives
}

// WakeFilter restricts which magic packets trigger a launch.
type WakeFilter struct {
	MACAddress string // empty accepts any target
}

// LogConfig holds log sink settings.
type LogConfig struct {
	Level string
	File  string
	JSON  bool
}
