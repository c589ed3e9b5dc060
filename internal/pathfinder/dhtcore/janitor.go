package dhtcore

import (
	"time"

	"github.com/dantte-lp/corepf/internal/address"
)

// DefaultLocalInterval and DefaultGlobalInterval are the janitor's two
// maintenance cadences: a fast local pass over pinned nodes and a
// slower global pass over every known node.
const (
	DefaultLocalInterval  = 1000 * time.Millisecond
	DefaultGlobalInterval = 30000 * time.Millisecond
)

// Janitor drives periodic maintenance searches: pinned nodes are
// re-searched often (they matter to a live session), every other known
// node is re-searched on a slower cadence to keep the store fresh.
type Janitor struct {
	store  *NodeStore
	runner *SearchRunner

	localInterval  time.Duration
	globalInterval time.Duration

	lastLocal  time.Time
	lastGlobal time.Time
}

// NewJanitor builds a janitor over store and runner. Non-positive
// intervals fall back to the defaults.
func NewJanitor(store *NodeStore, runner *SearchRunner, localInterval, globalInterval time.Duration) *Janitor {
	if localInterval <= 0 {
		localInterval = DefaultLocalInterval
	}
	if globalInterval <= 0 {
		globalInterval = DefaultGlobalInterval
	}
	return &Janitor{store: store, runner: runner, localInterval: localInterval, globalInterval: globalInterval}
}

// Tick runs whichever maintenance passes are due as of now, and returns
// the addresses it started a search for.
func (j *Janitor) Tick(now time.Time) []address.IP6 {
	var searched []address.IP6

	if now.Sub(j.lastLocal) >= j.localInterval {
		j.lastLocal = now
		for ip6, n := range j.store.byIP6 {
			if n.Pinned {
				j.runner.Search(ip6)
				searched = append(searched, ip6)
			}
		}
	}

	if now.Sub(j.lastGlobal) >= j.globalInterval {
		j.lastGlobal = now
		for ip6 := range j.store.byIP6 {
			j.runner.Search(ip6)
			searched = append(searched, ip6)
		}
	}

	return searched
}
