package session

// MetricsReporter receives session-table lifecycle events for Prometheus
// export. Implementations must be safe to call from the table's
// single event-loop goroutine; no concurrency guarantees are made or
// required beyond that.
type MetricsReporter interface {
	SessionCreated()
	SessionEnded()
	SearchTriggered()
	FailedDecrypt()
	DroppedFrame(reason string)
}

// noopMetrics is the default MetricsReporter: every call is a no-op.
type noopMetrics struct{}

func (noopMetrics) SessionCreated()     {}
func (noopMetrics) SessionEnded()       {}
func (noopMetrics) SearchTriggered()    {}
func (noopMetrics) FailedDecrypt()      {}
func (noopMetrics) DroppedFrame(string) {}

// TableOption configures optional Table behavior at construction time.
type TableOption func(*Table)

// WithTableMetrics attaches a MetricsReporter to the table. If mr is nil,
// WithTableMetrics is a no-op and the table keeps reporting to noopMetrics.
func WithTableMetrics(mr MetricsReporter) TableOption {
	return func(t *Table) {
		if mr != nil {
			t.metrics = mr
		}
	}
}

// SetMetrics attaches a MetricsReporter after construction. It exists
// alongside WithTableMetrics because a Prometheus collector built from
// this table's own gauge callbacks (e.g. HandleList) can only be
// constructed once the table already exists — breaking the
// construction-time-only option's chicken-and-egg ordering. Safe to call
// only before the table's event loop goroutines start.
func (t *Table) SetMetrics(mr MetricsReporter) {
	if mr != nil {
		t.metrics = mr
	}
}
