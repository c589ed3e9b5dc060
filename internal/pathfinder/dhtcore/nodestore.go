// Package dhtcore implements the handful of DHT-adjacent operations the
// pathfinder needs to orchestrate node discovery — node store, rumor
// mill, search runner, janitor, router — as small, real, in-memory
// modules. It is not a faithful Kademlia implementation; the DHT
// algorithms' internals are out of scope, and these modules exist only
// to give the pathfinder's event dispatch something real to drive and
// to test against.
package dhtcore

import (
	"time"

	"github.com/dantte-lp/corepf/internal/address"
	"github.com/dantte-lp/corepf/internal/metric"
)

// Node is a known mesh participant: its address, its key, the last
// protocol version it advertised, and the path and metric of the best
// route to it currently on file.
type Node struct {
	IP6      address.IP6
	Key      address.PublicKey
	Version  uint32
	Path     uint64
	Metric   metric.Metric
	Pinned   bool
	LastSeen time.Time
}

// Link is a direct, switch-routable path to a neighbor: the path label
// itself and whether the last word from the switch was that it is
// broken.
type Link struct {
	Path   uint64
	IP6    address.IP6
	Key    address.PublicKey
	Broken bool
}

// NodeStore is the pathfinder's table of known nodes and the direct
// links between them, addressed by IPv6 and by switch path
// respectively.
type NodeStore struct {
	byIP6  map[address.IP6]*Node
	byPath map[uint64]*Link
}

// NewNodeStore constructs an empty node store.
func NewNodeStore() *NodeStore {
	return &NodeStore{
		byIP6:  make(map[address.IP6]*Node),
		byPath: make(map[uint64]*Link),
	}
}

// AddNode inserts or updates a node's record, also upserting the direct
// link to it along n.Path. A zero n.Version keeps the version already
// recorded for the node.
func (s *NodeStore) AddNode(n Node) {
	if n.LastSeen.IsZero() {
		n.LastSeen = time.Now()
	}
	if existing, ok := s.byIP6[n.IP6]; ok {
		n.Pinned = existing.Pinned
		if n.Version == 0 {
			n.Version = existing.Version
		}
	}
	s.byIP6[n.IP6] = &n

	if n.Path != 0 {
		s.byPath[n.Path] = &Link{Path: n.Path, IP6: n.IP6, Key: n.Key}
	}
}

// NodeForAddr looks up a known node by address.
func (s *NodeStore) NodeForAddr(ip6 address.IP6) (Node, bool) {
	n, ok := s.byIP6[ip6]
	if !ok {
		return Node{}, false
	}
	return *n, ok
}

// LinkForPath looks up the direct link along path.
func (s *NodeStore) LinkForPath(path uint64) (Link, bool) {
	l, ok := s.byPath[path]
	if !ok {
		return Link{}, false
	}
	return *l, ok
}

// BrokenLink marks the link along path as broken and reports whether
// such a link was on file.
func (s *NodeStore) BrokenLink(path uint64) bool {
	l, ok := s.byPath[path]
	if !ok {
		return false
	}
	l.Broken = true
	return true
}

// DisconnectedPeer removes the direct link along path entirely, used
// when a peer announces it has gone away.
func (s *NodeStore) DisconnectedPeer(path uint64) {
	delete(s.byPath, path)
}

// PinNode marks a known node as pinned (kept alive by the session
// manager) and reports whether the node was known.
func (s *NodeStore) PinNode(ip6 address.IP6) bool {
	n, ok := s.byIP6[ip6]
	if !ok {
		return false
	}
	n.Pinned = true
	return true
}

// UnpinNode clears a node's pinned flag and reports whether the node
// was known.
func (s *NodeStore) UnpinNode(ip6 address.IP6) bool {
	n, ok := s.byIP6[ip6]
	if !ok {
		return false
	}
	n.Pinned = false
	return true
}

// Len reports how many nodes are on file, for diagnostics.
func (s *NodeStore) Len() int {
	return len(s.byIP6)
}
