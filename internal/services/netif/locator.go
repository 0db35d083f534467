// Package netif selects the network interface to watch for magic packets.
package netif

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/fgeck/wakelaunch/internal/models"
	"github.com/rs/zerolog"
)

// ErrNoMatchingInterface is returned when no interface has an address with
// the configured prefix.
var ErrNoMatchingInterface = errors.New("no network interface matches the address prefix")

// Service defines the interface for interface selection.
type Service interface {
	List() ([]models.Interface, error)
	Locate(prefix string) (*models.Interface, error)
}

// Lister allows mocking the OS interface table.
type Lister interface {
	Interfaces() ([]models.Interface, error)
}

// DefaultLister reads interfaces from the net package.
type DefaultLister struct{}

// Interfaces returns all local interfaces with their bound addresses.
func (l *DefaultLister) Interfaces() ([]models.Interface, error) {
	ifis, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("listing interfaces: %w", err)
	}

	out := make([]models.Interface, 0, len(ifis))
	for _, ifi := range ifis {
		addrs, err := ifi.Addrs()
		if err != nil {
			return nil, fmt.Errorf("listing addresses of %s: %w", ifi.Name, err)
		}

		iface := models.Interface{
			Name:         ifi.Name,
			Index:        ifi.Index,
			HardwareAddr: ifi.HardwareAddr,
		}
		for _, a := range addrs {
			iface.Addrs = append(iface.Addrs, a.String())
		}
		out = append(out, iface)
	}

	return out, nil
}

// Impl implements the netif Service interface.
type Impl struct {
	lister Lister
	logger zerolog.Logger
}

// New creates a new interface locator.
func New(logger zerolog.Logger) *Impl {
	return &Impl{
		lister: &DefaultLister{},
		logger: logger,
	}
}

// NewWithLister creates a new interface locator with a custom lister (for testing).
func NewWithLister(logger zerolog.Logger, lister Lister) *Impl {
	return &Impl{
		lister: lister,
		logger: logger,
	}
}

// List returns all local interfaces.
func (s *Impl) List() ([]models.Interface, error) {
	return s.lister.Interfaces()
}

// Locate returns the first interface with a bound address whose text form
// starts with prefix.
func (s *Impl) Locate(prefix string) (*models.Interface, error) {
	ifaces, err := s.lister.Interfaces()
	if err != nil {
		return nil, err
	}

	if iface := Match(ifaces, prefix); iface != nil {
		s.logger.Info().
			Str("interface", iface.Name).
			Strs("addrs", iface.Addrs).
			Str("prefix", prefix).
			Msg("found interface with target IP address")
		return iface, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrNoMatchingInterface, prefix)
}

// Match returns the first interface in ifaces with an address starting with
// prefix, or nil.
func Match(ifaces []models.Interface, prefix string) *models.Interface {
	if prefix == "" {
		return nil
	}
	for i := range ifaces {
		for _, addr := range ifaces[i].Addrs {
			if strings.HasPrefix(addr, prefix) {
				return &ifaces[i]
			}
		}
	}
	return nil
}
