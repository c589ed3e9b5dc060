package session

import (
	"context"
	"fmt"

	"github.com/dantte-lp/corepf/internal/pfchan"
)

// handlePathfinderEvent processes one Pathfinder→Core frame (spec §4.6's
// PF_* kinds). NODE and SENDMSG carry information the switch/inside
// interfaces would act on; since this module's scope ends at those
// interfaces' abstract boundary (no real socket or forwarding engine),
// both are logged for diagnostics rather than driving egress.
func (t *Table) handlePathfinderEvent(ctx context.Context, f pfchan.Frame) error {
	switch f.Kind {
	case pfchan.PFPing:
		return t.events.SendToPathfinder(ctx, pfchan.Frame{Kind: pfchan.CorePong})
	case pfchan.PFPong:
		return nil
	case pfchan.PFNode:
		n, err := pfchan.DecodeNode(f.Payload)
		if err != nil {
			return err
		}
		t.log.Debug("session: pathfinder advertised node", "ip6", n.IP6, "path", n.Path, "version", n.Version)
		return nil
	case pfchan.PFSendMsg:
		m, err := pfchan.DecodeMsg(f.Payload)
		if err != nil {
			return err
		}
		t.log.Debug("session: pathfinder requested DHT message send", "ip6", m.Route.IP6)
		return nil
	case pfchan.PFSessions:
		return nil
	case pfchan.PFConnect:
		return nil
	default:
		return fmt.Errorf("session: unrecognized pathfinder event kind %v", f.Kind)
	}
}

// RunPathfinderEvents drains Pathfinder→Core frames until ctx is
// cancelled. Callers should run this on its own
// goroutine; it only ever touches the Table through the serialized event
// handlers above, same as every other ingress path.
func (t *Table) RunPathfinderEvents(ctx context.Context) error {
	t.log.Info("session: pathfinder event loop starting")
	for {
		f, err := t.events.RecvFromPathfinder(ctx)
		if err != nil {
			t.log.Info("session: pathfinder event loop stopping", "error", err)
			return err
		}
		if err := t.handlePathfinderEvent(ctx, f); err != nil {
			t.log.Warn("session: error handling pathfinder event", "kind", f.Kind, "error", err)
		}
	}
}

// Connect sends the initial CORE_CONNECT handshake to the pathfinder,
// carrying this node's own public key so it can derive its IPv6 and
// construct its DHT subsystems (spec §4.6).
func (t *Table) Connect(ctx context.Context) error {
	if t.events == nil {
		return nil
	}
	c := pfchan.Connect{Key: t.ourPub}
	return t.events.SendToPathfinder(ctx, pfchan.Frame{Kind: pfchan.CoreConnect, Payload: c.Encode()})
}
