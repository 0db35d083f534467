package models

// ServiceState is the lifecycle state reported to the OS service manager.
type ServiceState int

// Service states.
const (
	StateRunning ServiceState = iota + 1
	StateStopping
	StateStopped
)

func (s ServiceState) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// ServiceStatus is the status record sent to the OS service manager. It is an
// outbound projection and is never read back by the controller.
type ServiceStatus struct {
	State      ServiceState
	AcceptStop bool
	ExitCode   uint32
	Checkpoint uint32
}
