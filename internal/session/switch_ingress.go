package session

import (
	"context"
	"encoding/binary"
	"time"

	"github.com/dantte-lp/corepf/internal/address"
	"github.com/dantte-lp/corepf/internal/cryptosession"
	"github.com/dantte-lp/corepf/internal/metric"
	"github.com/dantte-lp/corepf/internal/pfchan"
	"github.com/dantte-lp/corepf/internal/wire"
)

// controlSentinel marks a frame as a switch-directed control frame rather
// than a handle or a handshake nonce (spec §4.3 step 4, §6).
const controlSentinel uint32 = 0xFFFFFFFF

// setupNonceLimit is the exclusive upper bound of the handshake nonce
// space; handles start at it (spec §6: handles 0-3 reserved).
const setupNonceLimit uint32 = 4

// SwitchOutcome classifies the result of IngressFromSwitch.
type SwitchOutcome int

const (
	// OutcomeDropped means the frame was a structural violation and was
	// silently discarded; no further action is needed.
	OutcomeDropped SwitchOutcome = iota
	// OutcomeToInside means a route header and payload should be
	// delivered to the inside interface.
	OutcomeToInside
	// OutcomeToSwitch means a reply frame (a failed-decrypt error) should
	// be sent back out the switch interface.
	OutcomeToSwitch
)

// SwitchIngressResult is the outcome of processing one inbound switch
// frame.
type SwitchIngressResult struct {
	Outcome SwitchOutcome

	// Route and Payload are populated when Outcome == OutcomeToInside.
	Route   wire.RouteHeader
	Payload []byte

	// SwitchFrame is the wire-encoded reply frame when
	// Outcome == OutcomeToSwitch.
	SwitchFrame []byte
}

// IngressFromSwitch processes one raw frame arriving on the switch
// interface: control frames, handshakes, and established-session
// ciphertext, per spec §4.3.
func (t *Table) IngressFromSwitch(ctx context.Context, frame []byte) (SwitchIngressResult, error) {
	if len(frame) < wire.SwitchHeaderSize+4 {
		t.metrics.DroppedFrame("runt")
		return SwitchIngressResult{Outcome: OutcomeDropped}, ErrRunt
	}

	sh, err := wire.DecodeSwitchHeader(frame)
	if err != nil {
		t.metrics.DroppedFrame("bad_switch_header")
		return SwitchIngressResult{Outcome: OutcomeDropped}, err
	}
	sh.LabelBE = wire.BitReverse64(sh.LabelBE)

	rest := frame[wire.SwitchHeaderSize:]
	nonceOrHandle := binary.BigEndian.Uint32(rest[0:4])
	body := rest[4:]

	switch {
	case nonceOrHandle == controlSentinel:
		return t.ingressControlFrame(sh, body), nil
	case nonceOrHandle > 3:
		return t.ingressEstablished(sh, nonceOrHandle, body)
	default:
		return t.ingressHandshake(ctx, sh, body)
	}
}

func (t *Table) ingressControlFrame(sh wire.SwitchHeader, body []byte) SwitchIngressResult {
	route := wire.RouteHeader{
		Switch: sh,
		Flags:  wire.FlagIncoming | wire.FlagCtrlMsg,
	}
	return SwitchIngressResult{Outcome: OutcomeToInside, Route: route, Payload: body}
}

func (t *Table) ingressEstablished(sh wire.SwitchHeader, handle uint32, body []byte) (SwitchIngressResult, error) {
	s, ok := t.byHandle[handle]
	if !ok {
		t.metrics.DroppedFrame("unknown_handle")
		return SwitchIngressResult{Outcome: OutcomeDropped}, ErrUnknownHandle
	}
	if len(body) < 4 {
		t.metrics.DroppedFrame("runt")
		return SwitchIngressResult{Outcome: OutcomeDropped}, ErrRunt
	}
	nonce := binary.BigEndian.Uint32(body[0:4])
	if nonce < setupNonceLimit {
		t.metrics.DroppedFrame("invalid_setup_nonce")
		return SwitchIngressResult{Outcome: OutcomeDropped}, ErrInvalidSetupNonce
	}
	ciphertext := body[4:]

	s.crypto.ResetIfTimeout(time.Now())
	plaintext, err := s.crypto.Decrypt(ciphertext)
	if err != nil {
		t.metrics.FailedDecrypt()
		return t.failedDecrypt(sh, s.crypto, ciphertext), nil
	}
	return t.deliverInside(s, sh, plaintext, false), nil
}

func (t *Table) ingressHandshake(ctx context.Context, sh wire.SwitchHeader, body []byte) (SwitchIngressResult, error) {
	if len(body) < cryptosession.HandshakeHeaderSize {
		t.metrics.DroppedFrame("runt")
		return SwitchIngressResult{Outcome: OutcomeDropped}, ErrRunt
	}

	claimedKey, err := cryptosession.PeekHandshakeKey(body)
	if err != nil {
		t.metrics.DroppedFrame("bad_handshake")
		return SwitchIngressResult{Outcome: OutcomeDropped}, err
	}
	if claimedKey == t.ourPub {
		t.metrics.DroppedFrame("self_handshake")
		return SwitchIngressResult{Outcome: OutcomeDropped}, ErrSelfHandshake
	}
	claimedIP6 := address.ForPublicKey(claimedKey)
	if !address.HasValidPrefix(claimedIP6) {
		t.metrics.DroppedFrame("invalid_prefix")
		return SwitchIngressResult{Outcome: OutcomeDropped}, ErrInvalidPrefix
	}

	s := t.GetOrCreate(ctx, claimedIP6, claimedKey, 0, sh.LabelBE, metric.SMIncoming, false)
	s.crypto.ResetIfTimeout(time.Now())

	plaintext, err := s.crypto.DecryptHandshake(body)
	if err != nil {
		t.metrics.FailedDecrypt()
		return t.failedDecrypt(sh, s.crypto, body), nil
	}

	if len(plaintext) < 4 {
		t.metrics.DroppedFrame("runt")
		return SwitchIngressResult{Outcome: OutcomeDropped}, ErrRunt
	}
	s.sendHandle = binary.BigEndian.Uint32(plaintext[0:4])
	s.haveSendHandle = true
	plaintext = plaintext[4:]

	return t.deliverInside(s, sh, plaintext, true), nil
}

func (t *Table) deliverInside(s *Session, sh wire.SwitchHeader, plaintext []byte, isHandshake bool) SwitchIngressResult {
	now := time.Now()

	if dh, err := wire.DecodeDataHeader(plaintext); err != nil || dh.ContentType != wire.ContentTypeCJDHT {
		s.timeOfLastIn = now
	}
	s.timeOfKeepaliveIn = now
	s.bytesIn += uint64(len(plaintext))

	if sh.LabelBE != s.recvSwitchLabel {
		s.recvSwitchLabel = sh.LabelBE
		t.emitDiscoveredPath(s)
	}

	route := wire.RouteHeader{
		IP6:    s.herIP6,
		Key:    s.herKey,
		Switch: sh,
		Flags:  wire.FlagIncoming,
	}
	if isHandshake {
		t.runFoundKeyCheck(s)
	}
	return SwitchIngressResult{Outcome: OutcomeToInside, Route: route, Payload: plaintext}
}

func (t *Table) emitDiscoveredPath(s *Session) {
	if t.events == nil {
		return
	}
	n := pfchan.Node{
		Path:    s.recvSwitchLabel,
		Metric:  s.metric,
		Version: s.version,
		Key:     s.herKey,
		IP6:     s.herIP6,
	}
	f := pfchan.Frame{Kind: pfchan.CoreDiscoveredPath, Payload: n.Encode()}
	if err := t.events.SendToPathfinder(context.Background(), f); err != nil {
		t.log.Warn("session: failed to emit DISCOVERED_PATH event", "ip6", s.herIP6, "error", err)
	}
}

func (t *Table) failedDecrypt(sh wire.SwitchHeader, crypto *cryptosession.Session, ciphertext []byte) SwitchIngressResult {
	reply := wire.FailedDecryptReply{
		DecryptError: wire.ErrorAuthentication,
		CryptoState:  uint32(crypto.State()),
	}
	reply.Switch = wire.SwitchHeader{LabelBE: sh.LabelBE}
	reply.Switch.SetSuppressErrors(true)
	copy(reply.CiphertextHead[:], ciphertext)

	return SwitchIngressResult{Outcome: OutcomeToSwitch, SwitchFrame: wire.Encode(reply)}
}
