//go:build linux

package launcher

import (
	"fmt"
	"io"
	"os/exec"
	"os/user"
	"strconv"
	"syscall"

	"github.com/fgeck/wakelaunch/internal/models"
	"github.com/godbus/dbus/v5"
	"github.com/rs/zerolog"
)

const (
	logindDest    = "org.freedesktop.login1"
	logindSeat    = dbus.ObjectPath("/org/freedesktop/login1/seat/seat0")
	seatIface     = "org.freedesktop.login1.Seat"
	sessionIface  = "org.freedesktop.login1.Session"
	defaultPath   = "/usr/local/sbin:/usr/local/bin:/usr/sbin:/usr/bin:/sbin:/bin"
	waylandSocket = "wayland-0"
)

// session is the logind view of the active graphical session. It holds the
// system bus connection used to resolve it until closed.
type session struct {
	conn     *dbus.Conn
	ID       string
	Type     string // "x11", "wayland", "tty", ...
	Display  string
	UID      uint32
	GID      uint32
	Groups   []uint32
	Username string
	Home     string
}

func (s *session) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

type environment struct {
	vars []string
}

func (e *environment) Close() error {
	return nil
}

type linuxPlatform struct {
	logger zerolog.Logger
}

func newPlatform(logger zerolog.Logger) Platform {
	return &linuxPlatform{logger: logger}
}

// AcquireSessionToken asks systemd-logind for the active session on seat0
// and resolves its owner.
func (p *linuxPlatform) AcquireSessionToken() (_ io.Closer, err error) {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, fmt.Errorf("connecting to system bus: %w", err)
	}
	defer func() {
		if err != nil {
			_ = conn.Close()
		}
	}()

	v, err := conn.Object(logindDest, logindSeat).GetProperty(seatIface + ".ActiveSession")
	if err != nil {
		return nil, fmt.Errorf("querying active session: %w", err)
	}
	id, path, ok := idAndPath(v.Value())
	if !ok || id == "" {
		return nil, ErrNoActiveSession
	}

	obj := conn.Object(logindDest, path)
	v, err = obj.GetProperty(sessionIface + ".User")
	if err != nil {
		return nil, fmt.Errorf("querying session %s user: %w", id, err)
	}
	uid, ok := userID(v.Value())
	if !ok {
		return nil, fmt.Errorf("%w: session %s has no user", ErrNoActiveSession, id)
	}

	s := &session{conn: conn, ID: id, UID: uid}
	if v, err := obj.GetProperty(sessionIface + ".Type"); err == nil {
		s.Type, _ = v.Value().(string)
	}
	if v, err := obj.GetProperty(sessionIface + ".Display"); err == nil {
		s.Display, _ = v.Value().(string)
	}

	if err := s.resolveUser(); err != nil {
		return nil, err
	}

	p.logger.Debug().
		Str("session", s.ID).
		Str("type", s.Type).
		Str("user", s.Username).
		Msg("resolved active session")

	return s, nil
}

func (s *session) resolveUser() error {
	u, err := user.LookupId(strconv.FormatUint(uint64(s.UID), 10))
	if err != nil {
		return fmt.Errorf("looking up uid %d: %w", s.UID, err)
	}
	gid, err := strconv.ParseUint(u.Gid, 10, 32)
	if err != nil {
		return fmt.Errorf("parsing gid of %s: %w", u.Username, err)
	}

	s.Username = u.Username
	s.Home = u.HomeDir
	s.GID = uint32(gid)

	gids, err := u.GroupIds()
	if err != nil {
		return nil //nolint:nilerr // supplementary groups are optional
	}
	for _, g := range gids {
		if n, err := strconv.ParseUint(g, 10, 32); err == nil {
			s.Groups = append(s.Groups, uint32(n))
		}
	}
	return nil
}

func (p *linuxPlatform) BuildEnvironment(token io.Closer) (io.Closer, error) {
	s, ok := token.(*session)
	if !ok {
		return nil, fmt.Errorf("unexpected token type %T", token)
	}
	return &environment{vars: sessionEnv(s)}, nil
}

func (p *linuxPlatform) CreateProcess(token, env io.Closer, req models.LaunchRequest) (int, error) {
	s, ok := token.(*session)
	if !ok {
		return 0, fmt.Errorf("unexpected token type %T", token)
	}
	e, ok := env.(*environment)
	if !ok {
		return 0, fmt.Errorf("unexpected environment type %T", env)
	}

	cmd := exec.Command(req.Path, req.Args...) //nolint:gosec // launch path comes from operator config
	cmd.Dir = req.WorkDir
	cmd.Env = e.vars
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid: true,
		Credential: &syscall.Credential{
			Uid:    s.UID,
			Gid:    s.GID,
			Groups: s.Groups,
		},
	}

	if err := cmd.Start(); err != nil {
		return 0, newLaunchError("start", err)
	}
	pid := cmd.Process.Pid

	// Reap the child so it does not linger as a zombie of the daemon.
	go func() { _ = cmd.Wait() }()

	return pid, nil
}

// sessionEnv builds the environment a process started from the user's
// desktop would see.
func sessionEnv(s *session) []string {
	runtimeDir := fmt.Sprintf("/run/user/%d", s.UID)

	env := []string{
		"HOME=" + s.Home,
		"USER=" + s.Username,
		"LOGNAME=" + s.Username,
		"PATH=" + defaultPath,
		"XDG_RUNTIME_DIR=" + runtimeDir,
		"DBUS_SESSION_BUS_ADDRESS=unix:path=" + runtimeDir + "/bus",
		"XDG_SESSION_ID=" + s.ID,
	}
	if s.Type != "" {
		env = append(env, "XDG_SESSION_TYPE="+s.Type)
	}
	if s.Type == "wayland" {
		env = append(env, "WAYLAND_DISPLAY="+waylandSocket)
	}
	if s.Display != "" {
		env = append(env, "DISPLAY="+s.Display)
	}
	return env
}

// idAndPath decodes a logind "(so)" property.
func idAndPath(v interface{}) (string, dbus.ObjectPath, bool) {
	fields, ok := v.([]interface{})
	if !ok || len(fields) != 2 {
		return "", "", false
	}
	id, ok1 := fields[0].(string)
	path, ok2 := fields[1].(dbus.ObjectPath)
	return id, path, ok1 && ok2
}

// userID decodes a logind "(uo)" property.
func userID(v interface{}) (uint32, bool) {
	fields, ok := v.([]interface{})
	if !ok || len(fields) != 2 {
		return 0, false
	}
	uid, ok := fields[0].(uint32)
	return uid, ok
}
