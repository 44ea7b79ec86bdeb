package oam

import (
	"bytes"
	"net"
	"testing"
)

func mustMAC(t *testing.T, s string) net.HardwareAddr {
	t.Helper()
	mac, err := net.ParseMAC(s)
	if err != nil {
		t.Fatalf("ParseMAC(%q): %v", s, err)
	}
	return mac
}

func TestBuildParseEthFrameRoundTrip(t *testing.T) {
	dst := mustMAC(t, "01:80:c2:00:00:30")
	src := mustMAC(t, "02:00:00:00:00:01")
	payload := []byte{0xaa, 0xbb, 0xcc}

	frame, err := BuildEthFrame(dst, src, EtherTypeOAM, payload)
	if err != nil {
		t.Fatalf("BuildEthFrame: %v", err)
	}

	gotDst, gotSrc, etherType, rest, err := ParseEthHeader(frame)
	if err != nil {
		t.Fatalf("ParseEthHeader: %v", err)
	}
	if !bytes.Equal(gotDst, dst) || !bytes.Equal(gotSrc, src) {
		t.Fatalf("address mismatch: dst=%v src=%v", gotDst, gotSrc)
	}
	if etherType != EtherTypeOAM {
		t.Fatalf("ethertype mismatch: got %#x, want %#x", etherType, EtherTypeOAM)
	}
	if !bytes.Equal(rest, payload) {
		t.Fatalf("payload mismatch: got %v, want %v", rest, payload)
	}
}

func TestBuildParseVLANFrameRoundTrip(t *testing.T) {
	dst := mustMAC(t, "01:80:c2:00:00:30")
	src := mustMAC(t, "02:00:00:00:00:01")
	tag := VLANTag{Priority: 5, DropEligible: true, ID: 100}
	payload := []byte{0x01, 0x02}

	frame, err := BuildVLANFrame(dst, src, EtherTypeVLAN, tag, EtherTypeOAM, payload)
	if err != nil {
		t.Fatalf("BuildVLANFrame: %v", err)
	}

	_, _, etherType, rest, err := ParseEthHeader(frame)
	if err != nil {
		t.Fatalf("ParseEthHeader: %v", err)
	}
	if etherType != EtherTypeVLAN {
		t.Fatalf("expected VLAN TPI, got %#x", etherType)
	}
	gotTag, innerType, gotPayload, err := ParseVLANTag(rest)
	if err != nil {
		t.Fatalf("ParseVLANTag: %v", err)
	}
	if gotTag != tag {
		t.Fatalf("tag mismatch: got %+v, want %+v", gotTag, tag)
	}
	if innerType != EtherTypeOAM {
		t.Fatalf("inner ethertype mismatch: got %#x, want %#x", innerType, EtherTypeOAM)
	}
	if !bytes.Equal(gotPayload, payload) {
		t.Fatalf("payload mismatch: got %v, want %v", gotPayload, payload)
	}
}

func TestVLANTagPackingMatchesBitLayout(t *testing.T) {
	tag := VLANTag{Priority: 7, DropEligible: true, ID: 0xfff}
	if got := tag.pack(); got != 0xffff {
		t.Fatalf("expected max packed value 0xffff, got %#x", got)
	}
}
