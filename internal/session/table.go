package session

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"log/slog"
	"time"

	"github.com/dantte-lp/corepf/internal/address"
	"github.com/dantte-lp/corepf/internal/cryptosession"
	"github.com/dantte-lp/corepf/internal/metric"
	"github.com/dantte-lp/corepf/internal/pfchan"
)

// minFirstHandle and firstHandleSpan bound the randomized base from which
// handles are assigned; handles 0-3 are reserved for the crypto handshake
// nonce space (spec §6).
const (
	minFirstHandle  = 4
	firstHandleSpan = 100_000 - minFirstHandle
)

// Config bounds Table's behavior. Zero values are replaced with the
// documented defaults from spec §6.
type Config struct {
	// SessionTimeout is how long a session may go without a keep-alive
	// before it is destroyed. Default 60s.
	SessionTimeout time.Duration

	// SessionSearchAfter bounds how long a maintained session goes
	// without a search. Default 20s.
	SessionSearchAfter time.Duration

	// MaxBufferedMessages bounds the buffer table's size.
	MaxBufferedMessages int

	// CryptoTimeout bounds how long a crypto session may sit idle before
	// being reset to Uninitialized.
	CryptoTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.SessionTimeout <= 0 {
		c.SessionTimeout = 60 * time.Second
	}
	if c.SessionSearchAfter <= 0 {
		c.SessionSearchAfter = 20 * time.Second
	}
	if c.MaxBufferedMessages <= 0 {
		c.MaxBufferedMessages = 256
	}
	if c.CryptoTimeout <= 0 {
		c.CryptoTimeout = 2 * time.Minute
	}
	return c
}

// Table is the Session Manager's session table: IPv6 to session, handle
// to session, handle allocation, and the periodic maintenance tick. It
// also owns the buffer table for outbound payloads awaiting a session.
type Table struct {
	cfg Config

	byIP6    map[address.IP6]*Session
	byHandle map[uint32]*Session

	firstHandle uint32
	nextSlot    uint32

	ourPriv *[32]byte
	ourPub  address.PublicKey

	buffers *BufferTable

	events *pfchan.Chan

	log     *slog.Logger
	metrics MetricsReporter
}

// NewTable constructs an empty session table with a randomized handle
// base, per spec §6.
func NewTable(ourPriv *[32]byte, ourPub address.PublicKey, events *pfchan.Chan, cfg Config, log *slog.Logger, opts ...TableOption) (*Table, error) {
	if log == nil {
		log = slog.Default()
	}
	cfg = cfg.withDefaults()

	first, err := randomFirstHandle()
	if err != nil {
		return nil, err
	}

	t := &Table{
		cfg:         cfg,
		byIP6:       make(map[address.IP6]*Session),
		byHandle:    make(map[uint32]*Session),
		firstHandle: first,
		ourPriv:     ourPriv,
		ourPub:      ourPub,
		buffers:     NewBufferTable(cfg.MaxBufferedMessages),
		events:      events,
		log:         log,
		metrics:     noopMetrics{},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

func randomFirstHandle() (uint32, error) {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint32(b[:])
	return minFirstHandle + v%firstHandleSpan, nil
}

// SessionForIP6 looks up a session by destination address, running the
// found_key check on hit: the first time the crypto session has learned
// the peer's public key, it is checked against the session's recorded
// key (spec §3's found_key latch, §4.2's session_for_ip6).
func (t *Table) SessionForIP6(ip6 address.IP6) *Session {
	s, ok := t.byIP6[ip6]
	if !ok {
		return nil
	}
	t.runFoundKeyCheck(s)
	return s
}

// SessionForHandle looks up a session by its receive handle.
func (t *Table) SessionForHandle(handle uint32) *Session {
	return t.byHandle[handle]
}

func (t *Table) runFoundKeyCheck(s *Session) {
	if s.foundKey {
		return
	}
	herKey, ok := s.crypto.HerPublicKey()
	if !ok {
		return
	}
	s.foundKey = true
	if !address.Matches(s.herIP6, herKey) {
		panic("session: crypto session learned a key inconsistent with its IPv6 — protocol-internal invariant violated")
	}
	s.herKey = herKey
}

// HandleList returns a snapshot of all live receive handles, for
// diagnostics.
func (t *Table) HandleList() []uint32 {
	out := make([]uint32, 0, len(t.byHandle))
	for h := range t.byHandle {
		out = append(out, h)
	}
	return out
}

// BufferedMessageCount reports how many messages are currently buffered
// awaiting a session, for the metrics gauge callback.
func (t *Table) BufferedMessageCount() int {
	return t.buffers.Len()
}

// GetOrCreate looks up the session for ip6, creating one if none exists.
// On an existing session it applies the metric/label/version update
// rule from spec §4.2.
func (t *Table) GetOrCreate(ctx context.Context, ip6 address.IP6, key address.PublicKey, version uint32, label uint64, m metric.Metric, maintain bool) *Session {
	if existing, ok := t.byIP6[ip6]; ok {
		t.updateExisting(existing, label, m, version, maintain)
		return existing
	}
	return t.create(ctx, ip6, key, version, label, m, maintain)
}

// updateExisting applies the metric update rule from spec §4.2.
func (t *Table) updateExisting(s *Session, label uint64, m metric.Metric, version uint32, maintain bool) {
	if s.version == 0 {
		s.version = version
	}
	switch {
	case m == metric.DeadLink && s.sendSwitchLabel == label:
		if s.sendSwitchLabel == s.recvSwitchLabel {
			s.sendSwitchLabel = 0
			s.metric = metric.DeadLink
		} else {
			s.sendSwitchLabel = s.recvSwitchLabel
			s.metric = metric.SMIncoming
		}
	case m <= s.metric && label != 0:
		s.sendSwitchLabel = label
		s.metric = m
		if version != 0 {
			s.version = version
		}
	}
	if maintain {
		s.maintainSession = true
	}
}

func (t *Table) create(ctx context.Context, ip6 address.IP6, key address.PublicKey, version uint32, label uint64, m metric.Metric, maintain bool) *Session {
	handle := t.firstHandle + t.nextSlot
	t.nextSlot++

	var crypto *cryptosession.Session
	if key.IsZero() {
		crypto = cryptosession.New(t.ourPriv, t.ourPub, t.cfg.CryptoTimeout)
	} else {
		crypto = cryptosession.NewWithPeer(t.ourPriv, t.ourPub, key, t.cfg.CryptoTimeout)
	}

	now := time.Now()
	s := &Session{
		herIP6:            ip6,
		herKey:            key,
		receiveHandle:     handle,
		sendSwitchLabel:   label,
		recvSwitchLabel:   label,
		metric:            m,
		version:           version,
		maintainSession:   maintain,
		timeOfKeepaliveIn: now,
		lastSearchTime:    now,
		crypto:            crypto,
	}

	t.byIP6[ip6] = s
	t.byHandle[handle] = s
	t.metrics.SessionCreated()

	t.emitSession(ctx, s)
	return s
}

func (t *Table) emitSession(ctx context.Context, s *Session) {
	if t.events == nil {
		return
	}
	n := pfchan.Node{
		Path:    s.sendSwitchLabel,
		Metric:  s.metric,
		Version: s.version,
		Key:     s.herKey,
		IP6:     s.herIP6,
	}
	f := pfchan.Frame{Kind: pfchan.CoreSession, Payload: n.Encode()}
	if err := t.events.SendToPathfinder(ctx, f); err != nil {
		t.log.Warn("session: failed to emit SESSION event", "ip6", s.herIP6, "error", err)
	}
}

// destroy removes a session from both indices. Callers must have already
// emitted SESSION_ENDED.
func (t *Table) destroy(s *Session) {
	delete(t.byIP6, s.herIP6)
	delete(t.byHandle, s.receiveHandle)
	t.metrics.SessionEnded()
}
