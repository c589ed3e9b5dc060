package session

import (
	"time"

	"github.com/dantte-lp/corepf/internal/address"
)

// bufferTTL is how long a buffered message may sit before the periodic
// tick drops it (spec §4.5, §5).
const bufferTTL = 10 * time.Second

// bufferedMessage is a payload awaiting a session, keyed by destination
// IPv6 in BufferTable.
type bufferedMessage struct {
	ip6       address.IP6
	payload   []byte
	createdAt time.Time

	// setupSession marks a message buffered because its session has not
	// yet learned the peer's key (as opposed to a missing session or
	// version), per spec §4.4 step 5.
	setupSession bool
}

// BufferTable holds at most one buffered message per destination IPv6,
// bounded by a configured capacity.
type BufferTable struct {
	maxSize int
	byIP6   map[address.IP6]*bufferedMessage
}

// NewBufferTable constructs an empty buffer table with the given
// capacity.
func NewBufferTable(maxSize int) *BufferTable {
	return &BufferTable{
		maxSize: maxSize,
		byIP6:   make(map[address.IP6]*bufferedMessage),
	}
}

// Put buffers payload for ip6. If an entry already exists for ip6, it is
// replaced (most-recent-wins, spec §4.5). If the table is at capacity and
// ip6 is not already present, Put first sweeps expired entries (spec
// §4.5's needsLookup, which runs the stale-entry check before rejecting a
// new message) and only reports false if the table is still full
// afterward.
func (b *BufferTable) Put(ip6 address.IP6, payload []byte, setupSession bool, now time.Time) bool {
	if _, exists := b.byIP6[ip6]; !exists && len(b.byIP6) >= b.maxSize {
		b.GC(now)
		if len(b.byIP6) >= b.maxSize {
			return false
		}
	}
	b.byIP6[ip6] = &bufferedMessage{
		ip6:          ip6,
		payload:      payload,
		createdAt:    now,
		setupSession: setupSession,
	}
	return true
}

// Take removes and returns the buffered message for ip6, if any.
func (b *BufferTable) Take(ip6 address.IP6) ([]byte, bool, bool) {
	m, ok := b.byIP6[ip6]
	if !ok {
		return nil, false, false
	}
	delete(b.byIP6, ip6)
	return m.payload, m.setupSession, true
}

// Len reports how many messages are currently buffered.
func (b *BufferTable) Len() int {
	return len(b.byIP6)
}

// GC drops every buffered message older than bufferTTL relative to now,
// returning how many were dropped.
func (b *BufferTable) GC(now time.Time) int {
	dropped := 0
	for ip6, m := range b.byIP6 {
		if now.Sub(m.createdAt) > bufferTTL {
			delete(b.byIP6, ip6)
			dropped++
		}
	}
	return dropped
}
