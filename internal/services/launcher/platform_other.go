//go:build !windows && !linux

package launcher

import (
	"io"

	"github.com/fgeck/wakelaunch/internal/models"
	"github.com/rs/zerolog"
)

type unsupportedPlatform struct{}

func newPlatform(logger zerolog.Logger) Platform {
	return unsupportedPlatform{}
}

func (unsupportedPlatform) AcquireSessionToken() (io.Closer, error) {
	return nil, ErrUnsupported
}

func (unsupportedPlatform) BuildEnvironment(token io.Closer) (io.Closer, error) {
	return nil, ErrUnsupported
}

func (unsupportedPlatform) CreateProcess(token, env io.Closer, req models.LaunchRequest) (int, error) {
	return 0, ErrUnsupported
}
