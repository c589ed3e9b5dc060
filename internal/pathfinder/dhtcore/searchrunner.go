package dhtcore

import "github.com/dantte-lp/corepf/internal/address"

// DefaultBucketSize and DefaultConcurrency are the search parameters
// used for an ordinary SEARCH_REQ-triggered search.
const (
	DefaultBucketSize  = 8
	DefaultConcurrency = 1
)

// RefinedBucketSize and RefinedConcurrency are the wider parameters
// spec §4.6 specifies for a search started in reaction to a broken
// switch link.
const (
	RefinedBucketSize  = 20
	RefinedConcurrency = 3
)

// Result is the outcome of a search: either the target node was
// already on file, or it was not and a real lookup would have to go
// out over the wire — which is out of scope here.
type Result struct {
	Found bool
	Node  Node
}

// SearchRunner resolves searches against the node store it was built
// with. The real DHT walk (iterative FIND_NODE queries against the
// rumor mill's candidates) is out of scope; this stub answers from
// whatever the store already knows, which is what exercises the
// pathfinder's event dispatch end-to-end in tests.
type SearchRunner struct {
	store *NodeStore
}

// NewSearchRunner builds a search runner backed by store.
func NewSearchRunner(store *NodeStore) *SearchRunner {
	return &SearchRunner{store: store}
}

// Search starts an ordinary search for ip6.
func (r *SearchRunner) Search(ip6 address.IP6) Result {
	return r.search(ip6, DefaultBucketSize, DefaultConcurrency)
}

// RefinedSearch starts a wider search for ip6 with explicit bucket size
// and concurrency, used after a broken-link SWITCH_ERR.
func (r *SearchRunner) RefinedSearch(ip6 address.IP6, bucketSize, concurrency int) Result {
	return r.search(ip6, bucketSize, concurrency)
}

func (r *SearchRunner) search(ip6 address.IP6, _, _ int) Result {
	n, ok := r.store.NodeForAddr(ip6)
	if !ok {
		return Result{Found: false}
	}
	return Result{Found: true, Node: n}
}
