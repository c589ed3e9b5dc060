package pfchan

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/dantte-lp/corepf/internal/address"
	"github.com/dantte-lp/corepf/internal/metric"
	"github.com/dantte-lp/corepf/internal/wire"
)

// ErrRunt indicates a frame body was shorter than the kind it claims.
var ErrRunt = errors.New("pfchan: frame shorter than its kind requires")

// Frame is a complete PFChan message: a kind and its wire-encoded body.
type Frame struct {
	Kind    Kind
	Payload []byte
}

// Encode serializes the frame as a 32-bit big-endian kind followed by the
// payload.
func (f Frame) Encode() []byte {
	buf := make([]byte, 4+len(f.Payload))
	binary.BigEndian.PutUint32(buf[0:4], uint32(f.Kind))
	copy(buf[4:], f.Payload)
	return buf
}

// DecodeFrame parses a Frame from buf.
func DecodeFrame(buf []byte) (Frame, error) {
	if len(buf) < 4 {
		return Frame{}, fmt.Errorf("pfchan: frame: %w", ErrRunt)
	}
	kind := Kind(binary.BigEndian.Uint32(buf[0:4]))
	payload := append([]byte(nil), buf[4:]...)
	return Frame{Kind: kind, Payload: payload}, nil
}

// NodeSize is the wire size of a Node body: path, metric, version, public
// key, and IPv6 address.
const NodeSize = 8 + 4 + 4 + address.PublicKeySize + address.IP6Size

// Node describes a destination: its switch path, routing metric, protocol
// version, public key, and derived IPv6. It is the payload of SESSION,
// DISCOVERED_PATH, PEER, and the Pathfinder→Core NODE event.
type Node struct {
	Path    uint64
	Metric  metric.Metric
	Version uint32
	Key     address.PublicKey
	IP6     address.IP6
}

// Encode serializes n as a Node body.
func (n Node) Encode() []byte {
	buf := make([]byte, NodeSize)
	off := 0
	binary.BigEndian.PutUint64(buf[off:off+8], n.Path)
	off += 8
	binary.BigEndian.PutUint32(buf[off:off+4], uint32(n.Metric))
	off += 4
	binary.BigEndian.PutUint32(buf[off:off+4], n.Version)
	off += 4
	copy(buf[off:off+address.PublicKeySize], n.Key[:])
	off += address.PublicKeySize
	copy(buf[off:off+address.IP6Size], n.IP6[:])
	return buf
}

// DecodeNode parses a Node body.
func DecodeNode(buf []byte) (Node, error) {
	if len(buf) < NodeSize {
		return Node{}, fmt.Errorf("pfchan: node: %w", ErrRunt)
	}
	var n Node
	off := 0
	n.Path = binary.BigEndian.Uint64(buf[off : off+8])
	off += 8
	n.Metric = metric.Metric(binary.BigEndian.Uint32(buf[off : off+4]))
	off += 4
	n.Version = binary.BigEndian.Uint32(buf[off : off+4])
	off += 4
	copy(n.Key[:], buf[off:off+address.PublicKeySize])
	off += address.PublicKeySize
	copy(n.IP6[:], buf[off:off+address.IP6Size])
	return n, nil
}

// UserAgentSize is the fixed width of the user-agent field in a Connect
// body.
const UserAgentSize = 64

// ConnectSize is the wire size of a Connect body.
const ConnectSize = address.PublicKeySize + 4 + 4 + UserAgentSize

// Connect is the payload of the initial CONNECT handshake exchanged
// between core and the pathfinder at startup: our public key, a
// superiority value used to break ties between equally-preferred peers,
// our protocol version, and a free-form user-agent string.
type Connect struct {
	Key         address.PublicKey
	Superiority uint32
	Version     uint32
	UserAgent   [UserAgentSize]byte
}

// Encode serializes c as a Connect body.
func (c Connect) Encode() []byte {
	buf := make([]byte, ConnectSize)
	off := 0
	copy(buf[off:off+address.PublicKeySize], c.Key[:])
	off += address.PublicKeySize
	binary.BigEndian.PutUint32(buf[off:off+4], c.Superiority)
	off += 4
	binary.BigEndian.PutUint32(buf[off:off+4], c.Version)
	off += 4
	copy(buf[off:off+UserAgentSize], c.UserAgent[:])
	return buf
}

// DecodeConnect parses a Connect body.
func DecodeConnect(buf []byte) (Connect, error) {
	if len(buf) < ConnectSize {
		return Connect{}, fmt.Errorf("pfchan: connect: %w", ErrRunt)
	}
	var c Connect
	off := 0
	copy(c.Key[:], buf[off:off+address.PublicKeySize])
	off += address.PublicKeySize
	c.Superiority = binary.BigEndian.Uint32(buf[off : off+4])
	off += 4
	c.Version = binary.BigEndian.Uint32(buf[off : off+4])
	off += 4
	copy(c.UserAgent[:], buf[off:off+UserAgentSize])
	return c, nil
}

// SwitchErrSize is the wire size of a SwitchErr body.
const SwitchErrSize = wire.SwitchHeaderSize + 8 + 4

// SwitchErr reports a switch-level routing failure: the switch header of
// the frame that triggered it, the label of the hop that failed, and the
// switch's error code.
type SwitchErr struct {
	Switch       wire.SwitchHeader
	FailingLabel uint64
	ErrorType    uint32
}

// Encode serializes e as a SwitchErr body.
func (e SwitchErr) Encode() []byte {
	buf := make([]byte, SwitchErrSize)
	off := e.Switch.Encode(buf)
	binary.BigEndian.PutUint64(buf[off:off+8], e.FailingLabel)
	off += 8
	binary.BigEndian.PutUint32(buf[off:off+4], e.ErrorType)
	return buf
}

// DecodeSwitchErr parses a SwitchErr body.
func DecodeSwitchErr(buf []byte) (SwitchErr, error) {
	if len(buf) < SwitchErrSize {
		return SwitchErr{}, fmt.Errorf("pfchan: switch_err: %w", ErrRunt)
	}
	sh, err := wire.DecodeSwitchHeader(buf)
	if err != nil {
		return SwitchErr{}, err
	}
	off := wire.SwitchHeaderSize
	var e SwitchErr
	e.Switch = sh
	e.FailingLabel = binary.BigEndian.Uint64(buf[off : off+8])
	off += 8
	e.ErrorType = binary.BigEndian.Uint32(buf[off : off+4])
	return e, nil
}

// IP6EventSize is the wire size of an IP6Event body.
const IP6EventSize = address.IP6Size

// IP6Event names a destination by IPv6 alone. It is the payload of
// SEARCH_REQ, SESSION_ENDED, and UNSETUP_SESSION.
type IP6Event struct {
	IP6 address.IP6
}

// Encode serializes e as an IP6Event body.
func (e IP6Event) Encode() []byte {
	buf := make([]byte, IP6EventSize)
	copy(buf, e.IP6[:])
	return buf
}

// DecodeIP6Event parses an IP6Event body.
func DecodeIP6Event(buf []byte) (IP6Event, error) {
	if len(buf) < IP6EventSize {
		return IP6Event{}, fmt.Errorf("pfchan: ip6_event: %w", ErrRunt)
	}
	var e IP6Event
	copy(e.IP6[:], buf[:IP6EventSize])
	return e, nil
}

// PeerGoneSize is the wire size of a PeerGone body.
const PeerGoneSize = 8

// PeerGone names the switch path of a peer that has disconnected.
type PeerGone struct {
	Path uint64
}

// Encode serializes e as a PeerGone body.
func (e PeerGone) Encode() []byte {
	buf := make([]byte, PeerGoneSize)
	binary.BigEndian.PutUint64(buf, e.Path)
	return buf
}

// DecodePeerGone parses a PeerGone body.
func DecodePeerGone(buf []byte) (PeerGone, error) {
	if len(buf) < PeerGoneSize {
		return PeerGone{}, fmt.Errorf("pfchan: peer_gone: %w", ErrRunt)
	}
	return PeerGone{Path: binary.BigEndian.Uint64(buf[:PeerGoneSize])}, nil
}

// Msg carries a route header, a data header, and a payload — either a DHT
// message inbound from the switch (MSG) or an outbound reply
// (SENDMSG).
type Msg struct {
	Route   wire.RouteHeader
	Data    wire.DataHeader
	Payload []byte
}

// Encode serializes m as a Msg body.
func (m Msg) Encode() []byte {
	buf := make([]byte, wire.RouteHeaderSize+wire.DataHeaderSize+len(m.Payload))
	off := m.Route.Encode(buf)
	off += m.Data.Encode(buf[off:])
	copy(buf[off:], m.Payload)
	return buf
}

// DecodeMsg parses a Msg body.
func DecodeMsg(buf []byte) (Msg, error) {
	if len(buf) < wire.RouteHeaderSize+wire.DataHeaderSize {
		return Msg{}, fmt.Errorf("pfchan: msg: %w", ErrRunt)
	}
	route, err := wire.DecodeRouteHeader(buf)
	if err != nil {
		return Msg{}, err
	}
	off := wire.RouteHeaderSize
	data, err := wire.DecodeDataHeader(buf[off:])
	if err != nil {
		return Msg{}, err
	}
	off += wire.DataHeaderSize
	return Msg{
		Route:   route,
		Data:    data,
		Payload: append([]byte(nil), buf[off:]...),
	}, nil
}

// Sessions is the payload of the PF_SESSIONS diagnostic event: a snapshot
// of known nodes reported back to the core.
type Sessions struct {
	Nodes []Node
}

// Encode serializes s as a Sessions body: a 32-bit count followed by that
// many Node entries.
func (s Sessions) Encode() []byte {
	buf := make([]byte, 4+len(s.Nodes)*NodeSize)
	binary.BigEndian.PutUint32(buf[0:4], uint32(len(s.Nodes)))
	off := 4
	for _, n := range s.Nodes {
		copy(buf[off:off+NodeSize], n.Encode())
		off += NodeSize
	}
	return buf
}

// DecodeSessions parses a Sessions body.
func DecodeSessions(buf []byte) (Sessions, error) {
	if len(buf) < 4 {
		return Sessions{}, fmt.Errorf("pfchan: sessions: %w", ErrRunt)
	}
	count := binary.BigEndian.Uint32(buf[0:4])
	off := 4
	nodes := make([]Node, 0, count)
	for range count {
		n, err := DecodeNode(buf[off:])
		if err != nil {
			return Sessions{}, err
		}
		nodes = append(nodes, n)
		off += NodeSize
	}
	return Sessions{Nodes: nodes}, nil
}
