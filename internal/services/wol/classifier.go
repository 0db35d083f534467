// Package wol detects Wake-on-LAN magic packets in captured link-layer frames.
package wol

import (
	"bytes"
	"errors"
	"fmt"
	"net"

	"github.com/mdlayher/ethernet"
	"github.com/mdlayher/wol"
)

const (
	syncLen     = 6
	macLen      = 6
	repetitions = 16

	// PayloadLen is the size of a magic packet without password.
	PayloadLen = syncLen + repetitions*macLen
)

var syncStream = bytes.Repeat([]byte{0xff}, syncLen)

// ErrNotMagicPacket is returned by Decode for frames IsMagicPacket rejects.
var ErrNotMagicPacket = errors.New("not a wake-on-LAN magic packet")

// Packet is a decoded magic packet.
type Packet struct {
	Target net.HardwareAddr
	Source net.HardwareAddr // nil if the frame did not parse as Ethernet
}

// IsMagicPacket reports whether the trailing PayloadLen bytes of frame are a
// sync stream followed by one MAC address repeated 16 times. Leading bytes are
// ignored and the MAC itself is not checked against anything.
func IsMagicPacket(frame []byte) bool {
	if len(frame) < PayloadLen {
		return false
	}

	payload := frame[len(frame)-PayloadLen:]
	if !bytes.Equal(payload[:syncLen], syncStream) {
		return false
	}

	mac := payload[syncLen : syncLen+macLen]
	for i := 0; i < repetitions; i++ {
		off := syncLen + i*macLen
		if !bytes.Equal(payload[off:off+macLen], mac) {
			return false
		}
	}

	return true
}

// Decode classifies frame and extracts the target and source addresses.
func Decode(frame []byte) (*Packet, error) {
	if !IsMagicPacket(frame) {
		return nil, ErrNotMagicPacket
	}

	var mp wol.MagicPacket
	if err := mp.UnmarshalBinary(frame[len(frame)-PayloadLen:]); err != nil {
		return nil, fmt.Errorf("decoding magic packet: %w", err)
	}

	p := &Packet{Target: mp.Target}

	var f ethernet.Frame
	if err := f.UnmarshalBinary(frame); err == nil {
		p.Source = f.Source
	}

	return p, nil
}

// Matches reports whether p targets mac. An empty mac matches every packet.
func (p *Packet) Matches(mac net.HardwareAddr) bool {
	if len(mac) == 0 {
		return true
	}
	return bytes.Equal(p.Target, mac)
}
