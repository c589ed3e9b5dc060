package session

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/dantte-lp/corepf/internal/address"
	"github.com/dantte-lp/corepf/internal/cryptosession"
	"github.com/dantte-lp/corepf/internal/metric"
	"github.com/dantte-lp/corepf/internal/wire"
)

func TestIngressFromSwitchRejectsRuntFrame(t *testing.T) {
	tbl, _ := newTestTable(t)
	res, err := tbl.IngressFromSwitch(context.Background(), make([]byte, 4))
	if err != ErrRunt {
		t.Fatalf("expected ErrRunt, got %v", err)
	}
	if res.Outcome != OutcomeDropped {
		t.Fatalf("expected OutcomeDropped, got %v", res.Outcome)
	}
}

func TestIngressFromSwitchControlFrame(t *testing.T) {
	tbl, _ := newTestTable(t)

	sh := wire.SwitchHeader{LabelBE: wire.BitReverse64(0x42)}
	buf := make([]byte, wire.SwitchHeaderSize+4)
	off := sh.Encode(buf)
	binary.BigEndian.PutUint32(buf[off:off+4], controlSentinel)

	res, err := tbl.IngressFromSwitch(context.Background(), buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Outcome != OutcomeToInside {
		t.Fatalf("expected OutcomeToInside, got %v", res.Outcome)
	}
	if res.Route.Flags&wire.FlagCtrlMsg == 0 {
		t.Fatalf("expected FlagCtrlMsg set on route")
	}
}

func TestIngressFromSwitchUnknownHandle(t *testing.T) {
	tbl, _ := newTestTable(t)

	sh := wire.SwitchHeader{}
	buf := make([]byte, wire.SwitchHeaderSize+8)
	off := sh.Encode(buf)
	binary.BigEndian.PutUint32(buf[off:off+4], 9999)

	res, err := tbl.IngressFromSwitch(context.Background(), buf)
	if err != ErrUnknownHandle {
		t.Fatalf("expected ErrUnknownHandle, got %v", err)
	}
	if res.Outcome != OutcomeDropped {
		t.Fatalf("expected OutcomeDropped, got %v", res.Outcome)
	}
}

func TestIngressFromSwitchHandshakeRejectsSelfKey(t *testing.T) {
	tbl, ourPub := newTestTable(t)

	hello := make([]byte, cryptosession.HandshakeHeaderSize+16)
	copy(hello, ourPub[:])

	sh := wire.SwitchHeader{}
	buf := make([]byte, wire.SwitchHeaderSize+4+len(hello))
	off := sh.Encode(buf)
	binary.BigEndian.PutUint32(buf[off:off+4], 0) // handshake nonce word (< setupNonceLimit)
	off += 4
	copy(buf[off:], hello)

	res, err := tbl.IngressFromSwitch(context.Background(), buf)
	if err != ErrSelfHandshake {
		t.Fatalf("expected ErrSelfHandshake, got %v", err)
	}
	if res.Outcome != OutcomeDropped {
		t.Fatalf("expected OutcomeDropped, got %v", res.Outcome)
	}
}

func TestIngressFromSwitchHandshakeEstablishesSession(t *testing.T) {
	tbl, ourPub := newTestTable(t)

	senderPriv, senderPub, err := cryptosession.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	sender := cryptosession.NewWithPeer(senderPriv, senderPub, ourPub, 0)

	sendHandle := uint32(42)
	handlePrefixed := make([]byte, 4, 4+4)
	binary.BigEndian.PutUint32(handlePrefixed, sendHandle)
	handlePrefixed = append(handlePrefixed, []byte("ping")...)

	hello, err := sender.EncryptHandshake(handlePrefixed)
	if err != nil {
		t.Fatalf("EncryptHandshake: %v", err)
	}

	sh := wire.SwitchHeader{LabelBE: wire.BitReverse64(0x55)}
	buf := make([]byte, wire.SwitchHeaderSize+4+len(hello))
	off := sh.Encode(buf)
	binary.BigEndian.PutUint32(buf[off:off+4], 0) // handshake nonce word (< setupNonceLimit)
	off += 4
	copy(buf[off:], hello)

	res, err := tbl.IngressFromSwitch(context.Background(), buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Outcome != OutcomeToInside {
		t.Fatalf("expected OutcomeToInside, got %v", res.Outcome)
	}
	if string(res.Payload) != "ping" {
		t.Fatalf("expected payload %q, got %q", "ping", res.Payload)
	}

	claimedIP6 := address.ForPublicKey(senderPub)
	s := tbl.SessionForIP6(claimedIP6)
	if s == nil {
		t.Fatalf("expected session created for handshake sender")
	}
	if got, ok := s.SendHandle(); !ok || got != sendHandle {
		t.Fatalf("expected send handle %d, got %d (ok=%v)", sendHandle, got, ok)
	}
	if s.Key() != senderPub {
		t.Fatalf("expected found-key to record sender's public key")
	}
}

func TestIngressFromSwitchEstablishedFailedDecryptRepliesWithError(t *testing.T) {
	tbl, _ := newTestTable(t)
	ctx := context.Background()
	key, ip6 := peerKey(t)

	s := tbl.GetOrCreate(ctx, ip6, key, 1, 0x10, metric.SMSend, false)
	// Feed the session a hello sealed to a different key: DecryptHandshake
	// fails, so the session stays unestablished and the handle-addressed
	// frame below fails to decrypt.
	priv, pub, _ := cryptosession.GenerateKeyPair()
	estSender := cryptosession.NewWithPeer(priv, pub, key, 0)
	hello, _ := estSender.EncryptHandshake([]byte{0, 0, 0, 0})
	_, _ = s.crypto.DecryptHandshake(hello)

	sh := wire.SwitchHeader{}
	buf := make([]byte, wire.SwitchHeaderSize+8+16)
	off := sh.Encode(buf)
	binary.BigEndian.PutUint32(buf[off:off+4], s.ReceiveHandle())
	off += 4
	binary.BigEndian.PutUint32(buf[off:off+4], 10) // valid nonce, garbage ciphertext
	off += 4

	res, err := tbl.IngressFromSwitch(ctx, buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Outcome != OutcomeToSwitch {
		t.Fatalf("expected OutcomeToSwitch, got %v", res.Outcome)
	}
	if len(res.SwitchFrame) == 0 {
		t.Fatalf("expected a non-empty failed-decrypt reply frame")
	}
}
