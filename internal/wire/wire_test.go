package wire_test

import (
	"testing"

	"github.com/dantte-lp/corepf/internal/wire"
)

func TestBitReverse64Involution(t *testing.T) {
	t.Parallel()

	cases := []uint64{0, 1, 0xFFFFFFFFFFFFFFFF, 0x8000000000000002, 0x123456789ABCDEF0}
	for _, v := range cases {
		r := wire.BitReverse64(v)
		if r == v && v != 0 && v != 0xFFFFFFFFFFFFFFFF {
			t.Errorf("BitReverse64(%#x) unexpectedly fixed", v)
		}
		if got := wire.BitReverse64(r); got != v {
			t.Errorf("BitReverse64 is not its own inverse for %#x: got %#x", v, got)
		}
	}
}

func TestBitReverse64Bit(t *testing.T) {
	t.Parallel()

	// Bit 0 set should become bit 63 set.
	if got := wire.BitReverse64(1); got != 1<<63 {
		t.Fatalf("BitReverse64(1) = %#x, want %#x", got, uint64(1)<<63)
	}
}

func TestSwitchHeaderRoundTrip(t *testing.T) {
	t.Parallel()

	h := wire.SwitchHeader{
		LabelBE:      0x0123456789ABCDEF,
		Congestion:   7,
		Sequence:     4242,
	}
	h.SetSuppressErrors(true)

	buf := make([]byte, wire.SwitchHeaderSize)
	n := h.Encode(buf)
	if n != wire.SwitchHeaderSize {
		t.Fatalf("Encode returned %d, want %d", n, wire.SwitchHeaderSize)
	}

	got, err := wire.DecodeSwitchHeader(buf)
	if err != nil {
		t.Fatalf("DecodeSwitchHeader: %v", err)
	}
	if got != h {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, h)
	}
	if !got.SuppressErrors() {
		t.Fatal("SuppressErrors bit lost in round trip")
	}
}

func TestSwitchHeaderDecodeRunt(t *testing.T) {
	t.Parallel()

	_, err := wire.DecodeSwitchHeader(make([]byte, wire.SwitchHeaderSize-1))
	if err == nil {
		t.Fatal("expected error decoding a runt switch header")
	}
}

func TestRouteHeaderRoundTrip(t *testing.T) {
	t.Parallel()

	var h wire.RouteHeader
	h.IP6[0] = 0xfc
	h.IP6[15] = 0x01
	h.Key[0] = 0xAA
	h.Key[31] = 0xBB
	h.Switch = wire.SwitchHeader{LabelBE: 1, Sequence: 9}
	h.VersionBE = 1
	h.Flags = wire.FlagIncoming | wire.FlagPathfinder

	buf := make([]byte, wire.RouteHeaderSize)
	n := h.Encode(buf)
	if n != wire.RouteHeaderSize {
		t.Fatalf("Encode returned %d, want %d", n, wire.RouteHeaderSize)
	}

	got, err := wire.DecodeRouteHeader(buf)
	if err != nil {
		t.Fatalf("DecodeRouteHeader: %v", err)
	}
	if got != h {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, h)
	}
}

func TestRouteHeaderDecodeRunt(t *testing.T) {
	t.Parallel()

	_, err := wire.DecodeRouteHeader(make([]byte, wire.RouteHeaderSize-1))
	if err == nil {
		t.Fatal("expected error decoding a runt route header")
	}
}

func TestDataHeaderRoundTrip(t *testing.T) {
	t.Parallel()

	h := wire.DataHeader{Version: wire.DataHeaderCurrentVersion, ContentType: wire.ContentTypeCJDHT}
	buf := make([]byte, wire.DataHeaderSize)
	h.Encode(buf)

	got, err := wire.DecodeDataHeader(buf)
	if err != nil {
		t.Fatalf("DecodeDataHeader: %v", err)
	}
	if got != h {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, h)
	}
}

func TestDataHeaderVersionMasked(t *testing.T) {
	t.Parallel()

	h := wire.DataHeader{Version: 0xFF, ContentType: wire.ContentTypeCJDHT}
	buf := make([]byte, wire.DataHeaderSize)
	h.Encode(buf)

	got, err := wire.DecodeDataHeader(buf)
	if err != nil {
		t.Fatalf("DecodeDataHeader: %v", err)
	}
	if got.Version != 0x0F {
		t.Fatalf("expected version masked to low nibble, got %#x", got.Version)
	}
}

func TestChecksumDetectsCorruption(t *testing.T) {
	t.Parallel()

	buf := []byte{0x01, 0x02, 0x03, 0x04, 0x05}
	c1 := wire.Checksum(buf)

	corrupt := append([]byte(nil), buf...)
	corrupt[0] ^= 0xFF
	c2 := wire.Checksum(corrupt)

	if c1 == c2 {
		t.Fatal("checksum did not change after corrupting input")
	}
}

func TestFailedDecryptReplyRoundTrip(t *testing.T) {
	t.Parallel()

	var r wire.FailedDecryptReply
	r.Switch = wire.SwitchHeader{LabelBE: 0xDEADBEEF}
	r.Switch.SetSuppressErrors(true)
	r.DecryptError = 7
	r.CryptoState = 3
	copy(r.CiphertextHead[:], []byte("0123456789ABCDEF"))

	buf := wire.Encode(r)
	if len(buf) != wire.FailedDecryptReplySize {
		t.Fatalf("Encode produced %d bytes, want %d", len(buf), wire.FailedDecryptReplySize)
	}

	got, err := wire.DecodeFailedDecryptReply(buf)
	if err != nil {
		t.Fatalf("DecodeFailedDecryptReply: %v", err)
	}
	if got != r {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, r)
	}
	if !got.Switch.SuppressErrors() {
		t.Fatal("SuppressErrors bit lost in failed-decrypt reply")
	}
}

func TestFailedDecryptReplyRejectsCorruption(t *testing.T) {
	t.Parallel()

	var r wire.FailedDecryptReply
	r.Switch = wire.SwitchHeader{LabelBE: 1}
	buf := wire.Encode(r)

	buf[len(buf)-1] ^= 0xFF

	if _, err := wire.DecodeFailedDecryptReply(buf); err == nil {
		t.Fatal("expected checksum mismatch on corrupted failed-decrypt reply")
	}
}

func TestFailedDecryptReplyRejectsMissingSentinel(t *testing.T) {
	t.Parallel()

	var r wire.FailedDecryptReply
	r.Switch = wire.SwitchHeader{LabelBE: 1}
	buf := wire.Encode(r)

	// Corrupt the handle sentinel that immediately follows the switch header.
	buf[wire.SwitchHeaderSize] = 0

	if _, err := wire.DecodeFailedDecryptReply(buf); err == nil {
		t.Fatal("expected error decoding a reply with a corrupted handle sentinel")
	}
}
