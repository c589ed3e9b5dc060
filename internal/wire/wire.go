// Package wire defines the fixed, hand-rolled binary layouts that cross the
// switch and inside interfaces: the switch header, the route header, the
// data header, and the control-frame (failed-decrypt) envelope.
//
// No reflection-based encoding is used anywhere in this package; every
// layout here is normative wire format, not an implementation detail, and
// a struct-tag marshaler would make the byte order harder to audit, not
// easier.
package wire

import (
	"encoding/binary"
	"fmt"

	"github.com/dantte-lp/corepf/internal/address"
)

// SwitchHeaderSize is the size in bytes of SwitchHeader on the wire.
const SwitchHeaderSize = 12

// RouteHeaderSize is the size in bytes of RouteHeader on the wire: IPv6
// address, public key, switch header, version, and flags.
const RouteHeaderSize = address.IP6Size + address.PublicKeySize + SwitchHeaderSize + 4 + 4 // 68

// DataHeaderSize is the size in bytes of DataHeader on the wire.
const DataHeaderSize = 4

// Route header flag bits.
const (
	FlagIncoming   uint32 = 1
	FlagCtrlMsg    uint32 = 2
	FlagPathfinder uint32 = 4
)

// ContentType identifies what a DataHeader's payload carries.
type ContentType uint8

// ContentTypeCJDHT is the reserved content type for DHT traffic; every
// other value is opaque to this layer.
const ContentTypeCJDHT ContentType = 1

// DataHeaderCurrentVersion is the version this implementation writes into
// outgoing DataHeaders.
const DataHeaderCurrentVersion = 1

// SwitchHeaderCurrentVersion is the version this implementation writes
// into outgoing SwitchHeaders.
const SwitchHeaderCurrentVersion = 1

// SwitchHeader is the 12-byte header prepended by the switch fabric: a
// 64-bit source-route label, a version/flags byte, a congestion byte, and a
// 16-bit sequence number.
type SwitchHeader struct {
	LabelBE      uint64
	VersionFlags byte
	Congestion   byte
	Sequence     uint16
}

const suppressErrorsBit = 0x80

// SetSuppressErrors sets or clears the suppress-errors bit carried in the
// version/flags byte, used on failed-decrypt replies so the reply cannot
// itself spawn another error frame.
func (h *SwitchHeader) SetSuppressErrors(v bool) {
	if v {
		h.VersionFlags |= suppressErrorsBit
	} else {
		h.VersionFlags &^= suppressErrorsBit
	}
}

// SuppressErrors reports whether the suppress-errors bit is set.
func (h SwitchHeader) SuppressErrors() bool {
	return h.VersionFlags&suppressErrorsBit != 0
}

// Encode writes the header to buf, which must be at least SwitchHeaderSize
// long, and returns the number of bytes written.
func (h SwitchHeader) Encode(buf []byte) int {
	binary.BigEndian.PutUint64(buf[0:8], h.LabelBE)
	buf[8] = h.VersionFlags
	buf[9] = h.Congestion
	binary.BigEndian.PutUint16(buf[10:12], h.Sequence)
	return SwitchHeaderSize
}

// DecodeSwitchHeader parses a SwitchHeader from the front of buf.
func DecodeSwitchHeader(buf []byte) (SwitchHeader, error) {
	if len(buf) < SwitchHeaderSize {
		return SwitchHeader{}, fmt.Errorf("wire: switch header: %w", ErrRunt)
	}
	return SwitchHeader{
		LabelBE:      binary.BigEndian.Uint64(buf[0:8]),
		VersionFlags: buf[8],
		Congestion:   buf[9],
		Sequence:     binary.BigEndian.Uint16(buf[10:12]),
	}, nil
}

// BitReverse64 reverses the bit order of v. Applied twice it is the
// identity. The switch hands us labels with bits consumed from the low
// end; reversing recovers the source route back to the sender.
func BitReverse64(v uint64) uint64 {
	var out uint64
	for i := range 64 {
		if v&(1<<uint(i)) != 0 {
			out |= 1 << uint(63-i)
		}
	}
	return out
}

// RouteHeader is the 68-byte header synthesized for the inside interface:
// destination IPv6, destination public key, the switch label, the sender's
// protocol version, and flags.
type RouteHeader struct {
	IP6       address.IP6
	Key       address.PublicKey
	Switch    SwitchHeader
	VersionBE uint32
	Flags     uint32
}

// Encode writes the header to buf, which must be at least RouteHeaderSize
// long, and returns the number of bytes written.
func (h RouteHeader) Encode(buf []byte) int {
	off := 0
	copy(buf[off:off+address.IP6Size], h.IP6[:])
	off += address.IP6Size
	copy(buf[off:off+address.PublicKeySize], h.Key[:])
	off += address.PublicKeySize
	off += h.Switch.Encode(buf[off:])
	binary.BigEndian.PutUint32(buf[off:off+4], h.VersionBE)
	off += 4
	binary.BigEndian.PutUint32(buf[off:off+4], h.Flags)
	off += 4
	return off
}

// DecodeRouteHeader parses a RouteHeader from the front of buf.
func DecodeRouteHeader(buf []byte) (RouteHeader, error) {
	if len(buf) < RouteHeaderSize {
		return RouteHeader{}, fmt.Errorf("wire: route header: %w", ErrRunt)
	}
	var h RouteHeader
	off := 0
	copy(h.IP6[:], buf[off:off+address.IP6Size])
	off += address.IP6Size
	copy(h.Key[:], buf[off:off+address.PublicKeySize])
	off += address.PublicKeySize
	sh, err := DecodeSwitchHeader(buf[off:])
	if err != nil {
		return RouteHeader{}, err
	}
	h.Switch = sh
	off += SwitchHeaderSize
	h.VersionBE = binary.BigEndian.Uint32(buf[off : off+4])
	off += 4
	h.Flags = binary.BigEndian.Uint32(buf[off : off+4])
	return h, nil
}

// DataHeader is the 4-byte envelope carried immediately after a
// RouteHeader: a 4-bit version and a content-type byte. The remaining bits
// are reserved and written as zero.
type DataHeader struct {
	Version     uint8 // low nibble
	ContentType ContentType
}

// Encode writes the header to buf, which must be at least DataHeaderSize
// long, and returns the number of bytes written.
func (h DataHeader) Encode(buf []byte) int {
	buf[0] = h.Version & 0x0F
	buf[1] = byte(h.ContentType)
	buf[2] = 0
	buf[3] = 0
	return DataHeaderSize
}

// DecodeDataHeader parses a DataHeader from the front of buf.
func DecodeDataHeader(buf []byte) (DataHeader, error) {
	if len(buf) < DataHeaderSize {
		return DataHeader{}, fmt.Errorf("wire: data header: %w", ErrRunt)
	}
	return DataHeader{
		Version:     buf[0] & 0x0F,
		ContentType: ContentType(buf[1]),
	}, nil
}
