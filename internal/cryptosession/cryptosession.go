// Package cryptosession adapts golang.org/x/crypto/nacl/box into the
// narrow interface the session table needs from the (out-of-scope)
// CryptoAuth primitive: a per-peer encrypted session that starts
// unkeyed, learns the peer's long-term public key from an inbound
// handshake, and transitions to routine authenticated encryption once
// both sides hold a shared key.
//
// The handshake wire format here is this adapter's own: a fixed header
// carrying the sender's long-term public key and a fresh nonce, followed
// by a NaCl box. It is not a reimplementation of CryptoAuth's Noise-like
// handshake — that negotiation is explicitly out of scope — only a real,
// working stand-in with the same state machine shape the session table
// depends on.
package cryptosession

import (
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/nacl/box"

	"github.com/dantte-lp/corepf/internal/address"
)

// State is the lifecycle stage of a crypto session, snapshotted into
// failed-decrypt replies for the peer's diagnosis.
type State uint32

const (
	// Uninitialized means no handshake has been sent or received; the
	// peer's public key is unknown.
	Uninitialized State = iota
	// SentHello means a handshake was sent but no reply has been
	// decrypted yet.
	SentHello
	// ReceivedKey means the peer's long-term public key has been learned
	// from an inbound handshake; a shared key has been derived. This
	// adapter never enters it: DecryptHandshake moves straight to
	// Established.
	ReceivedKey
	// Established means a handshake from the peer has been decrypted and
	// routine (header-less) encryption is in effect.
	Established
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case SentHello:
		return "sent-hello"
	case ReceivedKey:
		return "received-key"
	case Established:
		return "established"
	default:
		return "unknown"
	}
}

// NonceSize is the width of a NaCl box nonce.
const NonceSize = 24

// HandshakeHeaderSize is the fixed size of the handshake header prepended
// to a hello message: the sender's long-term public key plus the box
// nonce.
const HandshakeHeaderSize = address.PublicKeySize + NonceSize

// ErrNotEstablished is returned by Encrypt/Decrypt when called before a
// handshake has completed.
var ErrNotEstablished = errors.New("cryptosession: session not established")

// ErrAuthentication is returned when a box fails to open, covering both a
// corrupt ciphertext and an unauthenticated sender.
var ErrAuthentication = errors.New("cryptosession: decryption failed")

// ErrRunt is returned when a handshake message is shorter than its header.
var ErrRunt = errors.New("cryptosession: handshake message shorter than its header")

// Session is a single peer's crypto state, owned exclusively by that
// peer's entry in the session table.
type Session struct {
	ourPriv *[32]byte
	ourPub  address.PublicKey

	herPub     address.PublicKey
	haveHerPub bool
	sharedKey  *[32]byte

	state        State
	lastActivity time.Time
	timeout      time.Duration
}

// New creates a crypto session for a peer whose public key is not yet
// known; it starts Uninitialized and learns the key from the first
// inbound handshake it decrypts. Used for the switch-side handshake path
// in spec §4.3 step 6.
func New(ourPriv *[32]byte, ourPub address.PublicKey, timeout time.Duration) *Session {
	return &Session{
		ourPriv:      ourPriv,
		ourPub:       ourPub,
		timeout:      timeout,
		lastActivity: time.Now(),
	}
}

// NewWithPeer creates a crypto session for a peer whose public key is
// already known — the common case for an outbound session created from a
// route header that already names a destination key (spec §4.4 step 2).
// The session can send a handshake immediately, addressed to herPub.
func NewWithPeer(ourPriv *[32]byte, ourPub address.PublicKey, herPub address.PublicKey, timeout time.Duration) *Session {
	return &Session{
		ourPriv:      ourPriv,
		ourPub:       ourPub,
		herPub:       herPub,
		haveHerPub:   true,
		timeout:      timeout,
		lastActivity: time.Now(),
	}
}

// State reports the session's current lifecycle stage.
func (s *Session) State() State {
	return s.state
}

// HerPublicKey returns the peer's long-term public key and whether it has
// been learned yet.
func (s *Session) HerPublicKey() (address.PublicKey, bool) {
	return s.herPub, s.haveHerPub
}

// ResetIfTimeout reverts the session to Uninitialized if it has been idle
// longer than its configured timeout. Call before each encrypt/decrypt
// attempt, per spec §5.
func (s *Session) ResetIfTimeout(now time.Time) {
	if s.timeout <= 0 {
		return
	}
	if now.Sub(s.lastActivity) <= s.timeout {
		return
	}
	s.state = Uninitialized
	s.haveHerPub = false
	s.sharedKey = nil
	var zero address.PublicKey
	s.herPub = zero
}

func (s *Session) touch() {
	s.lastActivity = time.Now()
}

// EncryptHandshake builds a hello message: our long-term public key, a
// fresh nonce, and plaintext sealed in a box between our long-term private
// key and her long-term public key (no ephemeral key), so the recipient
// can derive the shared key from our public key and reply. Used for
// pre-key-exchange traffic per spec §4.4 step 6.
func (s *Session) EncryptHandshake(plaintext []byte) ([]byte, error) {
	var nonce [NonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, fmt.Errorf("cryptosession: generating nonce: %w", err)
	}

	out := make([]byte, 0, HandshakeHeaderSize+len(plaintext)+box.Overhead)
	out = append(out, s.ourPub[:]...)
	out = append(out, nonce[:]...)

	var herPubArr [32]byte
	if s.haveHerPub {
		herPubArr = s.herPub
	}
	sealed := box.Seal(nil, plaintext, &nonce, &herPubArr, s.ourPriv)
	out = append(out, sealed...)

	if s.state == Uninitialized {
		s.state = SentHello
	}
	s.touch()
	return out, nil
}

// PeekHandshakeKey extracts the claimed long-term public key from a
// handshake message's header without attempting to open the sealed
// payload, so the caller can validate it (derived address prefix,
// self-addressed check) before committing to a session, per spec §4.3
// step 6.
func PeekHandshakeKey(buf []byte) (address.PublicKey, error) {
	if len(buf) < HandshakeHeaderSize {
		return address.PublicKey{}, fmt.Errorf("%w", ErrRunt)
	}
	var key address.PublicKey
	copy(key[:], buf[0:address.PublicKeySize])
	return key, nil
}

// DecryptHandshake parses an inbound hello, learns the sender's public
// key, derives the shared key, and opens the sealed payload.
func (s *Session) DecryptHandshake(buf []byte) ([]byte, error) {
	if len(buf) < HandshakeHeaderSize {
		return nil, fmt.Errorf("%w", ErrRunt)
	}

	var herPub address.PublicKey
	copy(herPub[:], buf[0:address.PublicKeySize])
	var nonce [NonceSize]byte
	copy(nonce[:], buf[address.PublicKeySize:HandshakeHeaderSize])

	plaintext, ok := box.Open(nil, buf[HandshakeHeaderSize:], &nonce, (*[32]byte)(&herPub), s.ourPriv)
	if !ok {
		return nil, fmt.Errorf("%w", ErrAuthentication)
	}

	s.herPub = herPub
	s.haveHerPub = true
	s.sharedKey = new([32]byte)
	box.Precompute(s.sharedKey, (*[32]byte)(&herPub), s.ourPriv)

	if s.state == Established {
		// Already established; this is a keep-alive/renegotiation hello.
	} else {
		s.state = Established
	}
	s.touch()
	return plaintext, nil
}

// Encrypt seals plaintext for an Established session using the
// precomputed shared key. Used for routine (post-handshake) traffic.
func (s *Session) Encrypt(plaintext []byte) ([]byte, error) {
	if s.state != Established || s.sharedKey == nil {
		return nil, fmt.Errorf("%w", ErrNotEstablished)
	}
	var nonce [NonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, fmt.Errorf("cryptosession: generating nonce: %w", err)
	}
	out := make([]byte, 0, NonceSize+len(plaintext)+box.Overhead)
	out = append(out, nonce[:]...)
	out = box.SealAfterPrecomputation(out, plaintext, &nonce, s.sharedKey)
	s.touch()
	return out, nil
}

// Decrypt opens a routine (post-handshake) ciphertext.
func (s *Session) Decrypt(buf []byte) ([]byte, error) {
	if s.state != Established || s.sharedKey == nil {
		return nil, fmt.Errorf("%w", ErrNotEstablished)
	}
	if len(buf) < NonceSize {
		return nil, fmt.Errorf("%w", ErrRunt)
	}
	var nonce [NonceSize]byte
	copy(nonce[:], buf[:NonceSize])

	plaintext, ok := box.OpenAfterPrecomputation(nil, buf[NonceSize:], &nonce, s.sharedKey)
	if !ok {
		return nil, fmt.Errorf("%w", ErrAuthentication)
	}
	s.touch()
	return plaintext, nil
}

// GenerateKeyPair produces a fresh X25519 keypair for use as a node's
// long-term identity.
func GenerateKeyPair() (priv *[32]byte, pub address.PublicKey, err error) {
	pubPtr, privPtr, err := box.GenerateKey(rand.Reader)
	if err != nil {
		return nil, address.PublicKey{}, fmt.Errorf("cryptosession: generating keypair: %w", err)
	}
	return privPtr, address.PublicKey(*pubPtr), nil
}
