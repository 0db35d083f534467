// Package capture opens link-layer receive handles on a network interface.
package capture

import (
	"errors"

	"github.com/fgeck/wakelaunch/internal/models"
)

// DefaultSnapLen is the frame buffer size used when none is configured.
const DefaultSnapLen = 65535

var (
	// ErrTimeout is returned by Handle.ReadFrame when a configured read
	// timeout expires before a frame arrives.
	ErrTimeout = errors.New("capture read timeout")

	// ErrUnsupported is returned by Open on platforms without a capture
	// implementation.
	ErrUnsupported = errors.New("link-layer capture is not supported on this platform")
)

// Source opens capture handles.
type Source interface {
	Open(iface models.Interface, settings models.CaptureSettings) (Handle, error)
}

// Handle is a live receive handle. It must not be shared between goroutines.
type Handle interface {
	// ReadFrame blocks until the next frame arrives. The returned slice is
	// only valid until the next call.
	ReadFrame() ([]byte, error)
	Close() error
}

// New returns the capture source for the running platform.
func New() Source {
	return &platformSource{}
}

func snapLen(settings models.CaptureSettings) int {
	if settings.SnapLen <= 0 {
		return DefaultSnapLen
	}
	return settings.SnapLen
}
