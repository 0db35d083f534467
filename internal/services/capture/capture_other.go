//go:build !linux && !windows

package capture

import "github.com/fgeck/wakelaunch/internal/models"

type platformSource struct{}

func (s *platformSource) Open(iface models.Interface, settings models.CaptureSettings) (Handle, error) {
	return nil, ErrUnsupported
}
