package models

import (
	"net"
	"time"
)

// Interface is a local network interface as seen by the locator.
type Interface struct {
	Name         string
	Index        int
	HardwareAddr net.HardwareAddr
	Addrs        []string // bound addresses in CIDR text form, e.g. "192.168.1.132/24"
}

// LaunchRequest describes a process to start in the active user session.
type LaunchRequest struct {
	Path    string
	Args    []string
	WorkDir string
	Visible bool
}

// ReadinessResult holds the result of polling a launched application.
type ReadinessResult struct {
	Ready        bool
	WaitDuration time.Duration
	Error        error
}

// WakeEvent records one detected magic packet and what was done about it.
type WakeEvent struct {
	Time       time.Time
	Host       string
	Interface  string
	SourceMAC  string // empty if the frame was not parsable as Ethernet
	TargetMAC  string
	LaunchPath string
	PID        int
	LaunchErr  error
	Readiness  *ReadinessResult // nil if readiness polling is not configured
}

// Launched reports whether the launch succeeded.
func (e WakeEvent) Launched() bool {
	return e.LaunchErr == nil
}
