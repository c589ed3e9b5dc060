// Package session implements the Session Manager: the bidirectional
// datagram pipe that maps each destination IPv6 to an encrypted session
// keyed by a short integer handle, buffers outbound packets addressed to
// unknown nodes, and forwards encrypted frames between the switch-facing
// and application-facing interfaces.
//
// Every exported method on Table runs on the caller's single event-loop
// goroutine (switch ingress, inside ingress, PFChan ingress, and the
// periodic tick are all serialized by the caller, per spec §5); nothing
// here takes a lock, because nothing here is ever called concurrently
// with itself.
package session

import (
	"time"

	"github.com/dantte-lp/corepf/internal/address"
	"github.com/dantte-lp/corepf/internal/cryptosession"
	"github.com/dantte-lp/corepf/internal/metric"
)

// Session is one peer's routing and crypto state, owned exclusively by
// the Table that created it.
type Session struct {
	herIP6 address.IP6
	herKey address.PublicKey

	receiveHandle  uint32
	sendHandle     uint32
	haveSendHandle bool

	sendSwitchLabel uint64
	recvSwitchLabel uint64

	metric  metric.Metric
	version uint32

	// maintainSession is true if the session table should actively keep
	// this session alive (re-search on staleness); false if the
	// pathfinder owns the session's lifecycle instead.
	maintainSession bool

	timeOfLastIn      time.Time
	timeOfKeepaliveIn time.Time
	timeOfLastOut     time.Time
	lastSearchTime    time.Time

	bytesIn  uint64
	bytesOut uint64

	// sendNonce is the per-session outbound anti-replay counter used in
	// the established-frame wire format; it starts at the first value
	// outside the handshake nonce space and increments on every send.
	sendNonce uint32

	crypto *cryptosession.Session

	// foundKey latches true the first time the crypto session's learned
	// public key is checked against herKey; once set, the check is never
	// repeated (spec §3).
	foundKey bool
}

// IP6 returns the session's destination address.
func (s *Session) IP6() address.IP6 { return s.herIP6 }

// Key returns the session's destination public key, which may be the
// zero key if it was created before the peer's key was learned.
func (s *Session) Key() address.PublicKey { return s.herKey }

// ReceiveHandle returns the handle this node expects to see on inbound
// frames from this peer.
func (s *Session) ReceiveHandle() uint32 { return s.receiveHandle }

// SendHandle returns the handle this peer told us to use on outbound
// frames, and whether it has been learned yet.
func (s *Session) SendHandle() (uint32, bool) { return s.sendHandle, s.haveSendHandle }

// Metric returns the session's current routing cost.
func (s *Session) Metric() metric.Metric { return s.metric }

// Version returns the peer's protocol version, or 0 if unknown.
func (s *Session) Version() uint32 { return s.version }

// SendSwitchLabel returns the label used to reach this peer.
func (s *Session) SendSwitchLabel() uint64 { return s.sendSwitchLabel }

// RecvSwitchLabel returns the label this peer's frames last arrived on.
func (s *Session) RecvSwitchLabel() uint64 { return s.recvSwitchLabel }

// MaintainSession reports whether the table should keep searching to
// keep this session alive.
func (s *Session) MaintainSession() bool { return s.maintainSession }

// Crypto returns the session's crypto adapter.
func (s *Session) Crypto() *cryptosession.Session { return s.crypto }

// TimeOfKeepaliveIn returns the last time any frame (including a
// handshake) was received from this peer.
func (s *Session) TimeOfKeepaliveIn() time.Time { return s.timeOfKeepaliveIn }
