package session

import (
	"testing"
	"time"

	"github.com/dantte-lp/corepf/internal/address"
)

func TestBufferTablePutAndTake(t *testing.T) {
	b := NewBufferTable(4)
	var ip6 address.IP6
	ip6[0] = 0xfc

	if !b.Put(ip6, []byte("hello"), false, time.Now()) {
		t.Fatalf("expected Put to succeed")
	}
	payload, setup, ok := b.Take(ip6)
	if !ok {
		t.Fatalf("expected Take to find the buffered message")
	}
	if string(payload) != "hello" {
		t.Fatalf("expected payload %q, got %q", "hello", payload)
	}
	if setup {
		t.Fatalf("expected setupSession false")
	}
	if _, _, ok := b.Take(ip6); ok {
		t.Fatalf("expected second Take to find nothing")
	}
}

func TestBufferTableMostRecentWins(t *testing.T) {
	b := NewBufferTable(4)
	var ip6 address.IP6
	ip6[0] = 0xfc

	b.Put(ip6, []byte("first"), false, time.Now())
	b.Put(ip6, []byte("second"), true, time.Now())

	payload, setup, ok := b.Take(ip6)
	if !ok || string(payload) != "second" {
		t.Fatalf("expected the most recent payload to win, got %q, ok=%v", payload, ok)
	}
	if !setup {
		t.Fatalf("expected setupSession true from the second Put")
	}
	if b.Len() != 0 {
		t.Fatalf("expected buffer table empty after Take, got len %d", b.Len())
	}
}

func TestBufferTableOverflowDropsNewEntries(t *testing.T) {
	b := NewBufferTable(1)
	var a, c address.IP6
	a[0], c[0] = 0xfc, 0xfc
	a[1] = 1
	c[1] = 2

	if !b.Put(a, []byte("a"), false, time.Now()) {
		t.Fatalf("expected first Put into empty table to succeed")
	}
	if b.Put(c, []byte("c"), false, time.Now()) {
		t.Fatalf("expected second Put to be rejected at capacity")
	}
	if b.Len() != 1 {
		t.Fatalf("expected exactly one buffered message, got %d", b.Len())
	}
}

func TestBufferTablePutSweepsStaleEntriesBeforeRejecting(t *testing.T) {
	b := NewBufferTable(1)
	var a, c address.IP6
	a[0], c[0] = 0xfc, 0xfc
	a[1] = 1
	c[1] = 2

	stale := time.Now().Add(-bufferTTL - time.Second)
	if !b.Put(a, []byte("a"), false, stale) {
		t.Fatalf("expected first Put into empty table to succeed")
	}

	now := time.Now()
	if !b.Put(c, []byte("c"), false, now) {
		t.Fatalf("expected Put to evict the stale entry and accept the new one")
	}
	if b.Len() != 1 {
		t.Fatalf("expected exactly one buffered message after the sweep, got %d", b.Len())
	}
	if _, _, ok := b.Take(a); ok {
		t.Fatalf("expected the stale entry to have been evicted")
	}
	payload, _, ok := b.Take(c)
	if !ok || string(payload) != "c" {
		t.Fatalf("expected the new entry to be present, got %q, ok=%v", payload, ok)
	}
}

func TestBufferTableOverflowAllowsReplacingExistingKey(t *testing.T) {
	b := NewBufferTable(1)
	var ip6 address.IP6
	ip6[0] = 0xfc

	b.Put(ip6, []byte("first"), false, time.Now())
	if !b.Put(ip6, []byte("second"), false, time.Now()) {
		t.Fatalf("expected replacing an existing key at capacity to succeed")
	}
}

func TestBufferTableGCDropsStaleEntries(t *testing.T) {
	b := NewBufferTable(4)
	var ip6 address.IP6
	ip6[0] = 0xfc

	old := time.Now().Add(-bufferTTL - time.Second)
	b.Put(ip6, []byte("stale"), false, old)

	dropped := b.GC(time.Now())
	if dropped != 1 {
		t.Fatalf("expected 1 dropped entry, got %d", dropped)
	}
	if b.Len() != 0 {
		t.Fatalf("expected buffer table empty after GC, got len %d", b.Len())
	}
}

func TestBufferTableGCKeepsFreshEntries(t *testing.T) {
	b := NewBufferTable(4)
	var ip6 address.IP6
	ip6[0] = 0xfc

	b.Put(ip6, []byte("fresh"), false, time.Now())

	dropped := b.GC(time.Now())
	if dropped != 0 {
		t.Fatalf("expected 0 dropped entries, got %d", dropped)
	}
	if b.Len() != 1 {
		t.Fatalf("expected the fresh entry to survive GC")
	}
}
