package dhtcore

// Router sends the handful of outbound DHT control operations the
// pathfinder needs. The actual get-peers wire message and DHT registry
// are out of scope (spec §9); SendGetPeers stands in for "a query was
// sent" so the PEER handler's decision logic (send vs. ignore) has a
// real call to make and a real result to assert on in tests.
type Router struct {
	sent []uint64
}

// NewRouter constructs an empty router.
func NewRouter() *Router {
	return &Router{}
}

// SendGetPeers records that a get-peers query was sent for path and
// reports success.
func (r *Router) SendGetPeers(path uint64) bool {
	r.sent = append(r.sent, path)
	return true
}

// Sent returns every path a get-peers query has been sent for, in
// order, for diagnostics and tests.
func (r *Router) Sent() []uint64 {
	return append([]uint64(nil), r.sent...)
}
