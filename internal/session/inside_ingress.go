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

// InsideOutcome classifies the result of IngressFromInside.
type InsideOutcome int

const (
	// InsideDropped means the payload was a structural violation and was
	// discarded.
	InsideDropped InsideOutcome = iota
	// InsideToSwitch means a wire-encoded frame should be sent out the
	// switch interface.
	InsideToSwitch
	// InsideBuffered means no session was ready; the payload was
	// buffered (or dropped on overflow) and a search was triggered.
	InsideBuffered
)

// InsideIngressResult is the outcome of processing one outbound payload
// arriving on the inside interface.
type InsideIngressResult struct {
	Outcome     InsideOutcome
	SwitchFrame []byte
}

// IngressFromInside processes one outbound payload named by a route
// header and a data header, per spec §4.4.
func (t *Table) IngressFromInside(ctx context.Context, route wire.RouteHeader, data wire.DataHeader, payload []byte) (InsideIngressResult, error) {
	if route.Flags&wire.FlagCtrlMsg != 0 {
		if !route.Key.IsZero() || !route.IP6.IsZero() {
			t.metrics.DroppedFrame("ctrl_msg_destination")
			return InsideIngressResult{Outcome: InsideDropped}, ErrCtrlMsgDestination
		}
		return InsideIngressResult{Outcome: InsideToSwitch, SwitchFrame: encodeControlFrame(route.Switch, payload)}, nil
	}

	s, ok := t.byIP6[route.IP6]
	if !ok {
		if !route.Key.IsZero() && route.VersionBE != 0 {
			maintain := route.Flags&wire.FlagPathfinder == 0
			s = t.GetOrCreate(ctx, route.IP6, route.Key, route.VersionBE, route.Switch.LabelBE, metric.SMSend, maintain)
		} else {
			t.bufferAndSearch(ctx, route.IP6, payload, false)
			return InsideIngressResult{Outcome: InsideBuffered}, ErrNeedsLookup
		}
	}

	if route.VersionBE != 0 {
		s.version = route.VersionBE
	}

	if s.version == 0 {
		t.bufferAndSearch(ctx, route.IP6, payload, false)
		return InsideIngressResult{Outcome: InsideBuffered}, ErrNeedsLookup
	}

	labelFilled := false
	if route.Switch.LabelBE == 0 && s.sendSwitchLabel != 0 {
		route.Switch.LabelBE = s.sendSwitchLabel
		labelFilled = true
	}

	if _, haveHerPub := s.crypto.HerPublicKey(); data.ContentType != wire.ContentTypeCJDHT && !haveHerPub {
		t.bufferAndSearch(ctx, route.IP6, payload, true)
		return InsideIngressResult{Outcome: InsideBuffered}, ErrNeedsLookup
	}

	if labelFilled {
		route.Switch.VersionFlags = wire.SwitchHeaderCurrentVersion
	}

	frame, err := t.encryptAndFrame(s, route.Switch, data, payload)
	if err != nil {
		return InsideIngressResult{Outcome: InsideDropped}, err
	}
	s.timeOfLastOut = time.Now()
	s.bytesOut += uint64(len(payload))
	return InsideIngressResult{Outcome: InsideToSwitch, SwitchFrame: frame}, nil
}

func (t *Table) bufferAndSearch(ctx context.Context, ip6 address.IP6, payload []byte, setupSession bool) {
	if !t.buffers.Put(ip6, payload, setupSession, time.Now()) {
		t.log.Warn("session: buffer table full, dropping payload", "ip6", ip6)
		t.metrics.DroppedFrame("buffer_full")
	}
	t.emitSearchReq(ctx, ip6)
}

func (t *Table) emitSearchReq(ctx context.Context, ip6 address.IP6) {
	if t.events == nil {
		return
	}
	f := pfchan.Frame{Kind: pfchan.CoreSearchReq, Payload: pfchan.IP6Event{IP6: ip6}.Encode()}
	if err := t.events.SendToPathfinder(ctx, f); err != nil {
		t.log.Warn("session: failed to emit SEARCH_REQ event", "ip6", ip6, "error", err)
	}
}

func encodeControlFrame(sh wire.SwitchHeader, payload []byte) []byte {
	buf := make([]byte, wire.SwitchHeaderSize+4+len(payload))
	off := sh.Encode(buf)
	binary.BigEndian.PutUint32(buf[off:off+4], controlSentinel)
	off += 4
	copy(buf[off:], payload)
	return buf
}

// encryptAndFrame encrypts payload for s and builds the complete
// switch-bound frame, choosing the pre- or post-key-exchange wire layout
// per spec §4.4 step 6.
func (t *Table) encryptAndFrame(s *Session, sh wire.SwitchHeader, data wire.DataHeader, payload []byte) ([]byte, error) {
	s.crypto.ResetIfTimeout(time.Now())

	body := make([]byte, 0, wire.DataHeaderSize+len(payload))
	dataHdr := make([]byte, wire.DataHeaderSize)
	data.Encode(dataHdr)
	body = append(body, dataHdr...)
	body = append(body, payload...)

	if s.crypto.State() != cryptosession.Established {
		withHandle := make([]byte, 4, 4+len(body))
		binary.BigEndian.PutUint32(withHandle, s.receiveHandle)
		withHandle = append(withHandle, body...)

		ciphertext, err := s.crypto.EncryptHandshake(withHandle)
		if err != nil {
			return nil, err
		}
		out := make([]byte, wire.SwitchHeaderSize+4+len(ciphertext))
		off := sh.Encode(out)
		binary.BigEndian.PutUint32(out[off:off+4], 0) // handshake nonce slot, nonce space [0,3]
		off += 4
		copy(out[off:], ciphertext)
		return out, nil
	}

	ciphertext, err := s.crypto.Encrypt(body)
	if err != nil {
		return nil, err
	}
	sendHandle, _ := s.SendHandle()
	s.sendNonce++
	if s.sendNonce < setupNonceLimit {
		s.sendNonce = setupNonceLimit
	}
	out := make([]byte, wire.SwitchHeaderSize+8+len(ciphertext))
	off := sh.Encode(out)
	binary.BigEndian.PutUint32(out[off:off+4], sendHandle)
	off += 4
	binary.BigEndian.PutUint32(out[off:off+4], s.sendNonce)
	off += 4
	copy(out[off:], ciphertext)
	return out, nil
}
