//go:build linux

package capture

import (
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/fgeck/wakelaunch/internal/models"
	"github.com/mdlayher/packet"
	"golang.org/x/sys/unix"
)

type platformSource struct{}

// Open binds an AF_PACKET socket receiving every EtherType on iface.
func (s *platformSource) Open(iface models.Interface, settings models.CaptureSettings) (Handle, error) {
	ifi, err := net.InterfaceByIndex(iface.Index)
	if err != nil {
		return nil, fmt.Errorf("resolving interface %s: %w", iface.Name, err)
	}

	conn, err := packet.Listen(ifi, packet.Raw, unix.ETH_P_ALL, nil)
	if err != nil {
		return nil, fmt.Errorf("opening packet socket on %s: %w", iface.Name, err)
	}

	if settings.Promiscuous {
		if err := conn.SetPromiscuous(true); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("enabling promiscuous mode on %s: %w", iface.Name, err)
		}
	}

	return &packetHandle{
		conn:    conn,
		buf:     make([]byte, snapLen(settings)),
		timeout: settings.ReadTimeout,
	}, nil
}

type packetHandle struct {
	conn    *packet.Conn
	buf     []byte
	timeout time.Duration
}

func (h *packetHandle) ReadFrame() ([]byte, error) {
	if h.timeout > 0 {
		if err := h.conn.SetReadDeadline(time.Now().Add(h.timeout)); err != nil {
			return nil, fmt.Errorf("setting read deadline: %w", err)
		}
	}

	n, _, err := h.conn.ReadFrom(h.buf)
	if err != nil {
		return nil, readError(err)
	}

	return h.buf[:n], nil
}

// readError maps an expired read deadline to ErrTimeout.
func readError(err error) error {
	var nerr net.Error
	if errors.Is(err, os.ErrDeadlineExceeded) || (errors.As(err, &nerr) && nerr.Timeout()) {
		return ErrTimeout
	}
	return err
}

func (h *packetHandle) Close() error {
	return h.conn.Close()
}
