// Package launcher starts processes inside the active interactive user
// session from a background service context.
package launcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"syscall"

	"github.com/fgeck/wakelaunch/internal/models"
	"github.com/rs/zerolog"
)

var (
	// ErrNoActiveSession is returned when nobody is logged into the active
	// console session.
	ErrNoActiveSession = errors.New("no user logged into the active console session")

	// ErrUnsupported is returned on platforms without a session launcher.
	ErrUnsupported = errors.New("launching into the user session is not supported on this platform")
)

// LaunchError reports a failed OS call together with its error code.
type LaunchError struct {
	Op   string
	Code int
	Err  error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("%s failed (code %d): %v", e.Op, e.Code, e.Err)
}

func (e *LaunchError) Unwrap() error {
	return e.Err
}

func newLaunchError(op string, err error) *LaunchError {
	le := &LaunchError{Op: op, Code: -1, Err: err}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		le.Code = int(errno)
	}
	return le
}

// Service defines the interface for session process launching.
type Service interface {
	Launch(ctx context.Context, req models.LaunchRequest) (int, error)
}

// Platform is the per-OS capability used by Launch. Every value returned by
// AcquireSessionToken and BuildEnvironment is closed by the caller exactly
// once. CreateProcess releases the process and thread handles it obtains.
type Platform interface {
	AcquireSessionToken() (io.Closer, error)
	BuildEnvironment(token io.Closer) (io.Closer, error)
	CreateProcess(token, env io.Closer, req models.LaunchRequest) (int, error)
}

// Impl implements the launcher Service interface.
type Impl struct {
	platform Platform
	logger   zerolog.Logger
}

// New creates a new launcher for the running platform.
func New(logger zerolog.Logger) *Impl {
	return &Impl{
		platform: newPlatform(logger),
		logger:   logger,
	}
}

// NewWithPlatform creates a new launcher with a custom platform (for testing).
func NewWithPlatform(logger zerolog.Logger, platform Platform) *Impl {
	return &Impl{
		platform: platform,
		logger:   logger,
	}
}

// Launch starts req in the active console session and returns its PID.
func (s *Impl) Launch(ctx context.Context, req models.LaunchRequest) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.logger.Debug().
		Str("path", req.Path).
		Strs("args", req.Args).
		Str("work_dir", req.WorkDir).
		Bool("visible", req.Visible).
		Msg("launching process in active session")

	token, err := s.platform.AcquireSessionToken()
	if err != nil {
		return 0, err
	}
	defer s.release("session token", token)

	env, err := s.platform.BuildEnvironment(token)
	if err != nil {
		return 0, err
	}
	defer s.release("environment block", env)

	pid, err := s.platform.CreateProcess(token, env, req)
	if err != nil {
		return 0, err
	}

	s.logger.Info().
		Str("path", req.Path).
		Int("pid", pid).
		Msg("process started in active session")

	return pid, nil
}

func (s *Impl) release(what string, c io.Closer) {
	if err := c.Close(); err != nil {
		s.logger.Warn().Err(err).Str("resource", what).Msg("failed to release resource")
	}
}
