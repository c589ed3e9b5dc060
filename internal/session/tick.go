package session

import (
	"context"
	"time"

	"github.com/dantte-lp/corepf/internal/pfchan"
)

// tickInterval is how often Tick should be called by the owning event
// loop (spec §4.2, "Periodic tick (every 10s)").
const tickInterval = 10 * time.Second

// Tick runs one round of periodic maintenance: expiring dead sessions,
// re-searching for sessions due for a keep-alive search, flagging
// sessions whose crypto session has not learned the peer's key, and dropping stale
// buffered payloads. Callers should invoke Tick roughly every
// tickInterval from the same event-loop goroutine as every other Table
// method.
func (t *Table) Tick(ctx context.Context) {
	now := time.Now()

	for ip6, s := range t.byIP6 {
		if now.Sub(s.timeOfKeepaliveIn) > t.cfg.SessionTimeout {
			t.emitSessionEnded(ctx, s)
			t.destroy(s)
			continue
		}

		if s.maintainSession && now.Sub(s.lastSearchTime) >= t.cfg.SessionSearchAfter {
			s.lastSearchTime = now
			t.metrics.SearchTriggered()
			t.emitSearchReq(ctx, ip6)
			continue
		}

		if _, haveHerPub := s.crypto.HerPublicKey(); !haveHerPub {
			t.emitUnsetupSession(ctx, s)
		}
	}

	t.buffers.GC(now)
}

func (t *Table) emitSessionEnded(ctx context.Context, s *Session) {
	if t.events == nil {
		return
	}
	f := pfchan.Frame{Kind: pfchan.CoreSessionEnded, Payload: pfchan.IP6Event{IP6: s.herIP6}.Encode()}
	if err := t.events.SendToPathfinder(ctx, f); err != nil {
		t.log.Warn("session: failed to emit SESSION_ENDED event", "ip6", s.herIP6, "error", err)
	}
}

func (t *Table) emitUnsetupSession(ctx context.Context, s *Session) {
	if t.events == nil {
		return
	}
	f := pfchan.Frame{Kind: pfchan.CoreUnsetupSession, Payload: pfchan.IP6Event{IP6: s.herIP6}.Encode()}
	if err := t.events.SendToPathfinder(ctx, f); err != nil {
		t.log.Warn("session: failed to emit UNSETUP_SESSION event", "ip6", s.herIP6, "error", err)
	}
}
