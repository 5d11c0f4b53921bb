package wol

import (
	"bytes"
	"context"
	"net"
	"testing"
	"time"
)

func TestMagicPacketLayout(t *testing.T) {
	pkt, err := MagicPacket("aa:bb:cc:dd:ee:ff")
	if err != nil {
		t.Fatalf("magic packet: %v", err)
	}
	if len(pkt) != 102 {
		t.Fatalf("len = %d, want 102", len(pkt))
	}
	if !bytes.Equal(pkt[:6], []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}) {
		t.Fatalf("header = % x", pkt[:6])
	}
	mac := []byte{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff}
	for i := 0; i < 16; i++ {
		off := 6 + i*6
		if !bytes.Equal(pkt[off:off+6], mac) {
			t.Fatalf("repetition %d = % x", i, pkt[off:off+6])
		}
	}
}

func TestMagicPacketRejectsBadMAC(t *testing.T) {
	for _, mac := range []string{"", "zz:zz", "00:00:5e:00:53:01:02:03"} {
		if _, err := MagicPacket(mac); err == nil {
			t.Fatalf("MagicPacket(%q) expected error", mac)
		}
	}
}

func TestUDPSenderDelivers(t *testing.T) {
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer pc.Close()
	port := pc.LocalAddr().(*net.UDPAddr).Port

	if err := (UDPSender{}).Send(context.Background(), "01:23:45:67:89:ab", "127.0.0.1", port); err != nil {
		t.Fatalf("send: %v", err)
	}
	_ = pc.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 256)
	n, _, err := pc.ReadFrom(buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if n != 102 {
		t.Fatalf("received %d bytes", n)
	}
}
