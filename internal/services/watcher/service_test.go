package watcher

import (
	"bytes"
	"context"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/fgeck/wakelaunch/internal/models"
	"github.com/fgeck/wakelaunch/internal/services/capture"
	"github.com/fgeck/wakelaunch/internal/services/launcher"
	"github.com/fgeck/wakelaunch/internal/services/netif"
	"github.com/fgeck/wakelaunch/internal/services/shutdown"
	"github.com/fgeck/wakelaunch/internal/services/wol"
	mwol "github.com/mdlayher/wol"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Mock implementations.
type mockInterfaces struct {
	locateFunc func(prefix string) (*models.Interface, error)
}

func (m *mockInterfaces) List() ([]models.Interface, error) {
	return nil, nil
}

func (m *mockInterfaces) Locate(prefix string) (*models.Interface, error) {
	if m.locateFunc != nil {
		return m.locateFunc(prefix)
	}
	return &models.Interface{Name: "eth0", Index: 2, Addrs: []string{"192.168.1.132/24"}}, nil
}

type mockProcesses struct {
	calls         int
	isRunningFunc func(call int, name string) (bool, error)
}

func (m *mockProcesses) IsRunning(_ context.Context, name string) (bool, error) {
	m.calls++
	if m.isRunningFunc != nil {
		return m.isRunningFunc(m.calls, name)
	}
	return true, nil
}

type mockHandle struct {
	reads    int
	closed   int
	readFunc func(call int) ([]byte, error)
}

func (m *mockHandle) ReadFrame() ([]byte, error) {
	m.reads++
	if m.readFunc != nil {
		return m.readFunc(m.reads)
	}
	return nil, capture.ErrTimeout
}

func (m *mockHandle) Close() error {
	m.closed++
	return nil
}

type mockSource struct {
	opens    int
	handle   *mockHandle
	openFunc func(iface models.Interface, settings models.CaptureSettings) (capture.Handle, error)
}

func (m *mockSource) Open(iface models.Interface, settings models.CaptureSettings) (capture.Handle, error) {
	m.opens++
	if m.openFunc != nil {
		return m.openFunc(iface, settings)
	}
	return m.handle, nil
}

type mockLauncher struct {
	requests   []models.LaunchRequest
	launchFunc func(req models.LaunchRequest) (int, error)
}

func (m *mockLauncher) Launch(_ context.Context, req models.LaunchRequest) (int, error) {
	m.requests = append(m.requests, req)
	if m.launchFunc != nil {
		return m.launchFunc(req)
	}
	return 4711, nil
}

type mockReadiness struct {
	calls    int
	waitFunc func(ctx context.Context, cfg models.ReadinessConfig) (*models.ReadinessResult, error)
}

func (m *mockReadiness) Wait(ctx context.Context, cfg models.ReadinessConfig) (*models.ReadinessResult, error) {
	m.calls++
	if m.waitFunc != nil {
		return m.waitFunc(ctx, cfg)
	}
	return &models.ReadinessResult{Ready: true, WaitDuration: time.Second}, nil
}

type mockTelegram struct {
	events []models.WakeEvent
}

func (m *mockTelegram) SendNotification(_ context.Context, _ models.TelegramConfig, event models.WakeEvent) (*models.TelegramResult, error) {
	m.events = append(m.events, event)
	return &models.TelegramResult{MessageSent: true}, nil
}

type recordingReporter struct {
	statuses []models.ServiceStatus
	err      error
}

func (r *recordingReporter) Report(status models.ServiceStatus) error {
	r.statuses = append(r.statuses, status)
	return r.err
}

func (r *recordingReporter) states() []models.ServiceState {
	out := make([]models.ServiceState, 0, len(r.statuses))
	for _, s := range r.statuses {
		out = append(out, s.State)
	}
	return out
}

type fixture struct {
	interfaces *mockInterfaces
	processes  *mockProcesses
	source     *mockSource
	handle     *mockHandle
	launcher   *mockLauncher
	readiness  *mockReadiness
	telegram   *mockTelegram
	reporter   *recordingReporter
	trigger    *shutdown.Trigger
	stop       *shutdown.Listener
	decode     func(frame []byte) (*wol.Packet, error)
	logs       bytes.Buffer
}

func newFixture() *fixture {
	trigger, stop := shutdown.New()
	handle := &mockHandle{}
	return &fixture{
		interfaces: &mockInterfaces{},
		processes:  &mockProcesses{},
		source:     &mockSource{handle: handle},
		handle:     handle,
		launcher:   &mockLauncher{},
		readiness:  &mockReadiness{},
		telegram:   &mockTelegram{},
		reporter:   &recordingReporter{},
		trigger:    trigger,
		stop:       stop,
	}
}

func (f *fixture) run(t *testing.T, cfg models.Config) uint32 {
	t.Helper()

	c := NewWithServices(zerolog.New(&f.logs), cfg, Services{
		Interfaces: f.interfaces,
		Processes:  f.processes,
		Capture:    f.source,
		Launcher:   f.launcher,
		Readiness:  f.readiness,
		Telegram:   f.telegram,
	}, time.Millisecond)
	if f.decode != nil {
		c.decode = f.decode
	}

	done := make(chan uint32, 1)
	go func() { done <- c.Run(context.Background(), f.stop, f.reporter) }()

	select {
	case code := <-done:
		return code
	case <-time.After(5 * time.Second):
		t.Fatal("controller did not stop")
		return 0
	}
}

func testConfig() models.Config {
	return models.Config{
		ServiceName: "wakelaunch",
		Target: models.TargetConfig{
			ProcessName:  "kodi.exe",
			LaunchPath:   "/opt/kodi/kodi.exe",
			HostIPPrefix: "192.168.1",
		},
		Launch: models.LaunchConfig{Visible: true},
	}
}

var targetMAC = net.HardwareAddr{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff}

// magicFrame returns six junk bytes followed by a magic packet for mac.
func magicFrame(t *testing.T, mac net.HardwareAddr) []byte {
	t.Helper()
	payload, err := (&mwol.MagicPacket{Target: mac}).MarshalBinary()
	require.NoError(t, err)
	return append([]byte{1, 2, 3, 4, 5, 6}, payload...)
}

// firstNotRunning reports the target absent on the first check and fires
// shutdown on the next one.
func (f *fixture) firstNotRunning() {
	f.processes.isRunningFunc = func(call int, _ string) (bool, error) {
		if call == 1 {
			return false, nil
		}
		f.trigger.Fire()
		return true, nil
	}
}

func TestRun_TargetRunning_NeverOpensCapture(t *testing.T) {
	f := newFixture()
	f.processes.isRunningFunc = func(call int, name string) (bool, error) {
		assert.Equal(t, "kodi.exe", name)
		if call == 3 {
			f.trigger.Fire()
		}
		return true, nil
	}

	code := f.run(t, testConfig())

	assert.Equal(t, ExitSuccess, code)
	assert.Equal(t, 3, f.processes.calls)
	assert.Equal(t, 0, f.source.opens)
	assert.Empty(t, f.launcher.requests)
	assert.Equal(t, []models.ServiceState{models.StateRunning, models.StateStopping}, f.reporter.states())
}

func TestRun_ReadErrorsThenMagicPacket_LaunchesOnce(t *testing.T) {
	f := newFixture()
	f.firstNotRunning()
	f.handle.readFunc = func(call int) ([]byte, error) {
		if call <= 3 {
			return nil, errors.New("device busy")
		}
		return magicFrame(t, targetMAC), nil
	}

	code := f.run(t, testConfig())

	assert.Equal(t, ExitSuccess, code)
	assert.Equal(t, 4, f.handle.reads)
	assert.Equal(t, 1, f.handle.closed)
	require.Len(t, f.launcher.requests, 1)
	assert.Equal(t, "/opt/kodi/kodi.exe", f.launcher.requests[0].Path)
	assert.Equal(t, "/opt/kodi", f.launcher.requests[0].WorkDir)
	assert.True(t, f.launcher.requests[0].Visible)
}

func TestRun_SkipsNonMagicFrames(t *testing.T) {
	f := newFixture()
	f.firstNotRunning()
	f.handle.readFunc = func(call int) ([]byte, error) {
		switch call {
		case 1:
			return []byte{0xde, 0xad, 0xbe, 0xef}, nil
		case 2:
			return nil, capture.ErrTimeout
		default:
			return magicFrame(t, targetMAC), nil
		}
	}

	code := f.run(t, testConfig())

	assert.Equal(t, ExitSuccess, code)
	assert.Equal(t, 3, f.handle.reads)
	assert.Len(t, f.launcher.requests, 1)
}

func TestRun_NoMatchingInterface_ExitsWithFailure(t *testing.T) {
	f := newFixture()
	f.interfaces.locateFunc = func(prefix string) (*models.Interface, error) {
		return nil, netif.ErrNoMatchingInterface
	}

	code := f.run(t, testConfig())

	assert.Equal(t, ExitFailure, code)
	assert.Equal(t, 0, f.processes.calls)
	assert.Equal(t, 0, f.source.opens)
	require.Len(t, f.reporter.statuses, 2)
	assert.Equal(t, models.StateStopping, f.reporter.statuses[1].State)
	assert.Equal(t, ExitFailure, f.reporter.statuses[1].ExitCode)
}

func TestRun_CaptureOpenFailure_ExitsWithFailure(t *testing.T) {
	f := newFixture()
	f.processes.isRunningFunc = func(int, string) (bool, error) { return false, nil }
	f.source.openFunc = func(models.Interface, models.CaptureSettings) (capture.Handle, error) {
		return nil, errors.New("permission denied")
	}

	code := f.run(t, testConfig())

	assert.Equal(t, ExitFailure, code)
	assert.Equal(t, 1, f.source.opens)
	assert.Empty(t, f.launcher.requests)
}

func TestRun_ShutdownWhileListening_DoesNotLaunch(t *testing.T) {
	f := newFixture()
	f.processes.isRunningFunc = func(int, string) (bool, error) { return false, nil }
	f.handle.readFunc = func(int) ([]byte, error) {
		f.trigger.Fire()
		return nil, capture.ErrTimeout
	}

	code := f.run(t, testConfig())

	assert.Equal(t, ExitSuccess, code)
	assert.Equal(t, 1, f.handle.reads)
	assert.Equal(t, 1, f.handle.closed)
	assert.Empty(t, f.launcher.requests)
}

func TestRun_LaunchFailure_ReturnsToMonitoring(t *testing.T) {
	f := newFixture()
	f.firstNotRunning()
	f.handle.readFunc = func(int) ([]byte, error) { return magicFrame(t, targetMAC), nil }
	f.launcher.launchFunc = func(models.LaunchRequest) (int, error) {
		return 0, launcher.ErrNoActiveSession
	}

	cfg := testConfig()
	cfg.Telegram = &models.TelegramConfig{BotToken: "t", ChatID: "c"}
	cfg.Launch.Readiness = &models.ReadinessConfig{URL: "http://localhost:8080"}

	code := f.run(t, cfg)

	assert.Equal(t, ExitSuccess, code)
	assert.Equal(t, 2, f.processes.calls)
	assert.Len(t, f.launcher.requests, 1)
	assert.Equal(t, 0, f.readiness.calls)
	require.Len(t, f.telegram.events, 1)
	assert.ErrorIs(t, f.telegram.events[0].LaunchErr, launcher.ErrNoActiveSession)
	assert.False(t, f.telegram.events[0].Launched())
}

func TestRun_MACFilter_IgnoresForeignTargets(t *testing.T) {
	f := newFixture()
	f.firstNotRunning()
	other := net.HardwareAddr{0x00, 0x11, 0x22, 0x33, 0x44, 0x55}
	f.handle.readFunc = func(call int) ([]byte, error) {
		if call == 1 {
			return magicFrame(t, other), nil
		}
		return magicFrame(t, targetMAC), nil
	}

	cfg := testConfig()
	cfg.Wake.MACAddress = "AA:BB:CC:DD:EE:FF"

	code := f.run(t, cfg)

	assert.Equal(t, ExitSuccess, code)
	assert.Equal(t, 2, f.handle.reads)
	assert.Len(t, f.launcher.requests, 1)
}

func TestRun_ProcessQueryError_SkipsTick(t *testing.T) {
	f := newFixture()
	f.processes.isRunningFunc = func(call int, _ string) (bool, error) {
		if call == 1 {
			return false, errors.New("access denied")
		}
		f.trigger.Fire()
		return true, nil
	}

	code := f.run(t, testConfig())

	assert.Equal(t, ExitSuccess, code)
	assert.Equal(t, 2, f.processes.calls)
	assert.Equal(t, 0, f.source.opens)
}

func TestRun_ReadinessAndNotification(t *testing.T) {
	f := newFixture()
	f.firstNotRunning()
	f.handle.readFunc = func(int) ([]byte, error) { return magicFrame(t, targetMAC), nil }

	cfg := testConfig()
	cfg.Launch.Args = []string{"--standalone"}
	cfg.Launch.WorkDir = "/var/lib/kodi"
	cfg.Launch.Readiness = &models.ReadinessConfig{
		URL:          "http://localhost:8080",
		Timeout:      time.Minute,
		PollInterval: time.Second,
	}
	cfg.Telegram = &models.TelegramConfig{BotToken: "t", ChatID: "c"}

	code := f.run(t, cfg)

	assert.Equal(t, ExitSuccess, code)
	require.Len(t, f.launcher.requests, 1)
	assert.Equal(t, []string{"--standalone"}, f.launcher.requests[0].Args)
	assert.Equal(t, "/var/lib/kodi", f.launcher.requests[0].WorkDir)
	assert.Equal(t, 1, f.readiness.calls)

	require.Len(t, f.telegram.events, 1)
	event := f.telegram.events[0]
	assert.True(t, event.Launched())
	assert.Equal(t, 4711, event.PID)
	assert.Equal(t, "eth0", event.Interface)
	assert.Equal(t, "aa:bb:cc:dd:ee:ff", event.TargetMAC)
	require.NotNil(t, event.Readiness)
	assert.True(t, event.Readiness.Ready)
}

func TestRun_ReadinessObservesShutdown(t *testing.T) {
	f := newFixture()
	f.processes.isRunningFunc = func(int, string) (bool, error) { return false, nil }
	f.handle.readFunc = func(int) ([]byte, error) { return magicFrame(t, targetMAC), nil }
	f.readiness.waitFunc = func(ctx context.Context, _ models.ReadinessConfig) (*models.ReadinessResult, error) {
		f.trigger.Fire()
		<-ctx.Done()
		return &models.ReadinessResult{Error: ctx.Err()}, nil
	}

	cfg := testConfig()
	cfg.Launch.Readiness = &models.ReadinessConfig{URL: "http://localhost:8080", Timeout: time.Hour}

	code := f.run(t, cfg)

	assert.Equal(t, ExitSuccess, code)
	assert.Len(t, f.launcher.requests, 1)
	assert.Equal(t, 1, f.readiness.calls)
}

func TestRun_ReportFailureIsNotFatal(t *testing.T) {
	f := newFixture()
	f.reporter.err = errors.New("service manager unavailable")
	f.processes.isRunningFunc = func(int, string) (bool, error) {
		f.trigger.Fire()
		return true, nil
	}

	code := f.run(t, testConfig())

	assert.Equal(t, ExitSuccess, code)
	require.Len(t, f.reporter.statuses, 2)
	assert.Equal(t, uint32(1), f.reporter.statuses[0].Checkpoint)
	assert.Equal(t, uint32(2), f.reporter.statuses[1].Checkpoint)
	assert.True(t, f.reporter.statuses[0].AcceptStop)
}

func TestRun_DecodeFailureIsLogged(t *testing.T) {
	f := newFixture()
	f.firstNotRunning()
	f.handle.readFunc = func(call int) ([]byte, error) {
		if call == 1 {
			return []byte{0xde, 0xad, 0xbe, 0xef}, nil
		}
		return magicFrame(t, targetMAC), nil
	}

	decodes := 0
	f.decode = func(frame []byte) (*wol.Packet, error) {
		decodes++
		if decodes == 2 {
			return nil, errors.New("truncated payload")
		}
		return wol.Decode(frame)
	}

	code := f.run(t, testConfig())

	assert.Equal(t, ExitSuccess, code)
	assert.Equal(t, 3, decodes)
	assert.Len(t, f.launcher.requests, 1)

	logs := f.logs.String()
	assert.Equal(t, 1, strings.Count(logs, "failed to decode magic packet"))
	assert.Contains(t, logs, "truncated payload")
	assert.NotContains(t, logs, wol.ErrNotMagicPacket.Error())
}
