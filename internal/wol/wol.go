package wol

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"strconv"
)

const DefaultPort = 9

// Sender delivers a wake packet for mac towards ip.
type Sender interface {
	Send(ctx context.Context, mac, ip string, port int) error
}

type SenderFunc func(ctx context.Context, mac, ip string, port int) error

func (f SenderFunc) Send(ctx context.Context, mac, ip string, port int) error {
	return f(ctx, mac, ip, port)
}

// MagicPacket builds the 102-byte payload: six 0xFF followed by the hardware
// address sixteen times.
func MagicPacket(mac string) ([]byte, error) {
	hw, err := net.ParseMAC(mac)
	if err != nil {
		return nil, fmt.Errorf("parse mac: %w", err)
	}
	if len(hw) != 6 {
		return nil, fmt.Errorf("parse mac: want 6 bytes, got %d", len(hw))
	}
	var buf bytes.Buffer
	buf.Grow(102)
	buf.Write(bytes.Repeat([]byte{0xFF}, 6))
	for i := 0; i < 16; i++ {
		buf.Write(hw)
	}
	return buf.Bytes(), nil
}

// UDPSender broadcasts magic packets. An empty ip sends to the limited
// broadcast address.
type UDPSender struct{}

func (UDPSender) Send(ctx context.Context, mac, ip string, port int) error {
	pkt, err := MagicPacket(mac)
	if err != nil {
		return err
	}
	if ip == "" {
		ip = "255.255.255.255"
	}
	if port <= 0 {
		port = DefaultPort
	}
	d := net.Dialer{Control: enableBroadcast}
	conn, err := d.DialContext(ctx, "udp", net.JoinHostPort(ip, strconv.Itoa(port)))
	if err != nil {
		return fmt.Errorf("dial %s: %w", ip, err)
	}
	defer conn.Close()
	if _, err := conn.Write(pkt); err != nil {
		return fmt.Errorf("send wake packet: %w", err)
	}
	return nil
}
