//go:build windows

package capture

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fgeck/wakelaunch/internal/models"
	"github.com/google/gopacket/pcap"
)

type platformSource struct{}

// Open starts an Npcap live capture on the device bound to iface's addresses.
func (s *platformSource) Open(iface models.Interface, settings models.CaptureSettings) (Handle, error) {
	device, err := findDevice(iface)
	if err != nil {
		return nil, err
	}

	timeout := pcap.BlockForever
	if settings.ReadTimeout > 0 {
		timeout = settings.ReadTimeout
	}

	handle, err := pcap.OpenLive(device, int32(snapLen(settings)), settings.Promiscuous, timeout) //nolint:gosec // snap length is bounded by config
	if err != nil {
		return nil, fmt.Errorf("opening capture on %s: %w", iface.Name, err)
	}

	return &pcapHandle{handle: handle}, nil
}

// findDevice maps a net interface to its \Device\NPF_{GUID} name; Npcap and
// the net package name interfaces differently.
func findDevice(iface models.Interface) (string, error) {
	devs, err := pcap.FindAllDevs()
	if err != nil {
		return "", fmt.Errorf("listing capture devices: %w", err)
	}

	if name := matchDevice(devs, iface); name != "" {
		return name, nil
	}

	return "", fmt.Errorf("no capture device for interface %s (is Npcap installed?)", iface.Name)
}

func matchDevice(devs []pcap.Interface, iface models.Interface) string {
	for _, dev := range devs {
		for _, da := range dev.Addresses {
			ip := da.IP.String()
			for _, addr := range iface.Addrs {
				if strings.SplitN(addr, "/", 2)[0] == ip {
					return dev.Name
				}
			}
		}
	}
	return ""
}

type pcapHandle struct {
	handle *pcap.Handle
}

func (h *pcapHandle) ReadFrame() ([]byte, error) {
	data, _, err := h.handle.ZeroCopyReadPacketData()
	if err != nil {
		if errors.Is(err, pcap.NextErrorTimeoutExpired) {
			return nil, ErrTimeout
		}
		return nil, err
	}
	return data, nil
}

func (h *pcapHandle) Close() error {
	h.handle.Close()
	return nil
}
