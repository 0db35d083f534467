//go:build windows

package launcher

import (
	"fmt"
	"io"
	"unsafe"

	"github.com/fgeck/wakelaunch/internal/models"
	"github.com/rs/zerolog"
	"golang.org/x/sys/windows"
)

const (
	noActiveSession    = 0xFFFFFFFF
	interactiveDesktop = `winsta0\default`
)

type sessionToken struct {
	session uint32
	token   windows.Token
}

func (t *sessionToken) Close() error {
	return t.token.Close()
}

type environmentBlock struct {
	block *uint16
}

func (e *environmentBlock) Close() error {
	return windows.DestroyEnvironmentBlock(e.block)
}

type windowsPlatform struct {
	logger zerolog.Logger
}

func newPlatform(logger zerolog.Logger) Platform {
	return &windowsPlatform{logger: logger}
}

func (p *windowsPlatform) AcquireSessionToken() (io.Closer, error) {
	session := windows.WTSGetActiveConsoleSessionId()
	if session == noActiveSession {
		return nil, ErrNoActiveSession
	}

	var token windows.Token
	if err := windows.WTSQueryUserToken(session, &token); err != nil {
		return nil, fmt.Errorf("%w: session %d: %w", ErrNoActiveSession, session, err)
	}

	p.logger.Debug().Uint32("session", session).Msg("acquired session user token")
	return &sessionToken{session: session, token: token}, nil
}

func (p *windowsPlatform) BuildEnvironment(token io.Closer) (io.Closer, error) {
	t, ok := token.(*sessionToken)
	if !ok {
		return nil, fmt.Errorf("unexpected token type %T", token)
	}

	var block *uint16
	if err := windows.CreateEnvironmentBlock(&block, t.token, false); err != nil {
		return nil, newLaunchError("CreateEnvironmentBlock", err)
	}
	return &environmentBlock{block: block}, nil
}

func (p *windowsPlatform) CreateProcess(token, env io.Closer, req models.LaunchRequest) (int, error) {
	t, ok := token.(*sessionToken)
	if !ok {
		return 0, fmt.Errorf("unexpected token type %T", token)
	}
	e, ok := env.(*environmentBlock)
	if !ok {
		return 0, fmt.Errorf("unexpected environment type %T", env)
	}

	appName, err := windows.UTF16PtrFromString(req.Path)
	if err != nil {
		return 0, fmt.Errorf("encoding path: %w", err)
	}
	cmdLine, err := windows.UTF16PtrFromString(windows.ComposeCommandLine(append([]string{req.Path}, req.Args...)))
	if err != nil {
		return 0, fmt.Errorf("encoding command line: %w", err)
	}
	var workDir *uint16
	if req.WorkDir != "" {
		if workDir, err = windows.UTF16PtrFromString(req.WorkDir); err != nil {
			return 0, fmt.Errorf("encoding working directory: %w", err)
		}
	}
	desktop, err := windows.UTF16PtrFromString(interactiveDesktop)
	if err != nil {
		return 0, fmt.Errorf("encoding desktop: %w", err)
	}

	si := windows.StartupInfo{
		Desktop:    desktop,
		Flags:      windows.STARTF_USESHOWWINDOW,
		ShowWindow: windows.SW_HIDE,
	}
	si.Cb = uint32(unsafe.Sizeof(si))

	flags := uint32(windows.CREATE_UNICODE_ENVIRONMENT)
	if req.Visible {
		flags |= windows.CREATE_NEW_CONSOLE
		si.ShowWindow = windows.SW_SHOW
	} else {
		flags |= windows.CREATE_NO_WINDOW
	}

	var pi windows.ProcessInformation
	if err := windows.CreateProcessAsUser(t.token, appName, cmdLine, nil, nil, false, flags, e.block, workDir, &si, &pi); err != nil {
		return 0, newLaunchError("CreateProcessAsUser", err)
	}
	defer func() { _ = windows.CloseHandle(pi.Thread) }()
	defer func() { _ = windows.CloseHandle(pi.Process) }()

	p.logger.Debug().
		Uint32("session", t.session).
		Uint32("pid", pi.ProcessId).
		Uint32("tid", pi.ThreadId).
		Msg("process created as session user")

	return int(pi.ProcessId), nil
}
