// Package pathfinder implements the control-plane event processor that
// drives node discovery: it consumes lifecycle events (peer up/down,
// session start/end, switch errors, discovered paths, DHT traffic) from
// the session manager over a pfchan.Chan and emits path/node
// advertisements back, per spec §4.6.
//
// Like internal/session, Pathfinder runs as a single event-loop
// goroutine; nothing here takes a lock.
package pathfinder

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dantte-lp/corepf/internal/address"
	"github.com/dantte-lp/corepf/internal/pathfinder/dhtcore"
	"github.com/dantte-lp/corepf/internal/pfchan"
	"github.com/dantte-lp/corepf/internal/wire"
)

// State is the pathfinder's lifecycle stage.
type State int

const (
	// StateInitializing accepts only a CONNECT event.
	StateInitializing State = iota
	// StateRunning dispatches every event kind per the table in spec §4.6.
	StateRunning
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateRunning:
		return "running"
	default:
		return "unknown"
	}
}

// Config bounds the DHT subsystems constructed on CONNECT.
type Config struct {
	// RumorMillCapacity bounds the rumor mill. Default 64.
	RumorMillCapacity int

	// JanitorLocalInterval and JanitorGlobalInterval set the janitor's
	// two maintenance cadences. Defaults 1s / 30s.
	JanitorLocalInterval  time.Duration
	JanitorGlobalInterval time.Duration
}

// Pathfinder is the DHT-facing half of the control plane: an event loop
// over a pfchan.Chan plus the dhtcore subsystems it constructs once it
// learns its own identity from the initial CONNECT.
type Pathfinder struct {
	cfg    Config
	events *pfchan.Chan
	log    *slog.Logger

	state  State
	ourIP  address.IP6
	ourKey address.PublicKey

	store   *dhtcore.NodeStore
	mill    *dhtcore.RumorMill
	runner  *dhtcore.SearchRunner
	router  *dhtcore.Router
	janitor *dhtcore.Janitor
}

// New constructs a Pathfinder in the INITIALIZING state. It does not
// construct any DHT subsystem until CONNECT arrives.
func New(events *pfchan.Chan, cfg Config, log *slog.Logger) *Pathfinder {
	if log == nil {
		log = slog.Default()
	}
	return &Pathfinder{
		cfg:    cfg,
		events: events,
		log:    log,
		state:  StateInitializing,
	}
}

// State reports the pathfinder's current lifecycle stage.
func (p *Pathfinder) State() State { return p.state }

// Run consumes events from the channel until ctx is cancelled or a
// protocol violation occurs.
func (p *Pathfinder) Run(ctx context.Context) error {
	p.log.Info("pathfinder: event loop starting")
	for {
		f, err := p.events.RecvFromCore(ctx)
		if err != nil {
			p.log.Info("pathfinder: event loop stopping", "error", err)
			return err
		}
		if err := p.Dispatch(ctx, f); err != nil {
			p.log.Warn("pathfinder: error handling event", "kind", f.Kind, "error", err)
		}
	}
}

// Dispatch processes exactly one event, applying the INITIALIZING /
// RUNNING state rule from spec §4.6.
func (p *Pathfinder) Dispatch(ctx context.Context, f pfchan.Frame) error {
	if p.state == StateInitializing {
		if f.Kind != pfchan.CoreConnect {
			return fmt.Errorf("%w: %v", ErrProtocolViolation, f.Kind)
		}
		return p.handleConnect(f)
	}

	switch f.Kind {
	case pfchan.CoreConnect:
		return ErrAlreadyConnected
	case pfchan.CoreSwitchErr:
		return p.handleSwitchErr(f)
	case pfchan.CoreSearchReq:
		return p.handleSearchReq(f)
	case pfchan.CorePeer:
		return p.handlePeer(f)
	case pfchan.CorePeerGone:
		return p.handlePeerGone(f)
	case pfchan.CoreSession:
		return p.handleSession(f)
	case pfchan.CoreSessionEnded:
		return p.handleSessionEnded(f)
	case pfchan.CoreDiscoveredPath:
		return p.handleDiscoveredPath(f)
	case pfchan.CoreMsg:
		return p.handleMsg(ctx, f)
	case pfchan.CorePing:
		return p.handlePing(ctx)
	case pfchan.CorePong:
		return nil // keep-alive acknowledged, no action
	case pfchan.CoreUnsetupSession:
		return nil // not dispatched to any subsystem, per spec §4.6's table
	default:
		return fmt.Errorf("%w: %v", ErrUnknownKind, f.Kind)
	}
}

func (p *Pathfinder) handleConnect(f pfchan.Frame) error {
	c, err := pfchan.DecodeConnect(f.Payload)
	if err != nil {
		return err
	}
	p.ourKey = c.Key
	p.ourIP = address.ForPublicKey(c.Key)

	p.store = dhtcore.NewNodeStore()
	p.mill = dhtcore.NewRumorMill(p.cfg.RumorMillCapacity)
	p.runner = dhtcore.NewSearchRunner(p.store)
	p.router = dhtcore.NewRouter()
	p.janitor = dhtcore.NewJanitor(p.store, p.runner, p.cfg.JanitorLocalInterval, p.cfg.JanitorGlobalInterval)

	p.state = StateRunning
	p.log.Info("pathfinder: connected", "ip6", p.ourIP)
	return nil
}

func (p *Pathfinder) handleSwitchErr(f pfchan.Frame) error {
	e, err := pfchan.DecodeSwitchErr(f.Payload)
	if err != nil {
		return err
	}
	p.log.Warn("pathfinder: switch error", "label", e.FailingLabel, "error_type", e.ErrorType)

	link, existed := p.store.LinkForPath(e.FailingLabel)
	p.store.BrokenLink(e.FailingLabel)
	if existed {
		p.runner.RefinedSearch(link.IP6, dhtcore.RefinedBucketSize, dhtcore.RefinedConcurrency)
	}
	return nil
}

func (p *Pathfinder) handleSearchReq(f pfchan.Frame) error {
	e, err := pfchan.DecodeIP6Event(f.Payload)
	if err != nil {
		return err
	}
	p.runner.Search(e.IP6)
	return nil
}

func (p *Pathfinder) handlePeer(f pfchan.Frame) error {
	n, err := pfchan.DecodeNode(f.Payload)
	if err != nil {
		return err
	}
	if link, ok := p.store.LinkForPath(n.Path); ok && link.IP6 == n.IP6 {
		return nil // already a direct child with matching label
	}
	p.router.SendGetPeers(n.Path)
	return nil
}

func (p *Pathfinder) handlePeerGone(f pfchan.Frame) error {
	e, err := pfchan.DecodePeerGone(f.Payload)
	if err != nil {
		return err
	}
	p.store.DisconnectedPeer(e.Path)
	return nil
}

func (p *Pathfinder) handleSession(f pfchan.Frame) error {
	n, err := pfchan.DecodeNode(f.Payload)
	if err != nil {
		return err
	}
	if _, known := p.store.NodeForAddr(n.IP6); known {
		p.store.PinNode(n.IP6)
		return nil
	}
	p.runner.Search(n.IP6)
	return nil
}

func (p *Pathfinder) handleSessionEnded(f pfchan.Frame) error {
	e, err := pfchan.DecodeIP6Event(f.Payload)
	if err != nil {
		return err
	}
	p.store.UnpinNode(e.IP6)
	return nil
}

func (p *Pathfinder) handleDiscoveredPath(f pfchan.Frame) error {
	n, err := pfchan.DecodeNode(f.Payload)
	if err != nil {
		return err
	}
	p.mill.Insert(n.IP6)
	p.store.AddNode(dhtcore.Node{
		IP6:     n.IP6,
		Key:     n.Key,
		Version: n.Version,
		Path:    n.Path,
		Metric:  n.Metric,
	})
	return nil
}

// handleMsg parses a DHT message off the wire, hands it to a minimal
// in-process reply loop, and — per spec §4.6 — emits a NODE event if the
// caller's route header carried an unknown version but we now know one
// for that node.
func (p *Pathfinder) handleMsg(ctx context.Context, f pfchan.Frame) error {
	m, err := pfchan.DecodeMsg(f.Payload)
	if err != nil {
		return err
	}

	p.store.AddNode(dhtcore.Node{
		IP6:     m.Route.IP6,
		Key:     m.Route.Key,
		Version: m.Route.VersionBE,
		Path:    wire.BitReverse64(m.Route.Switch.LabelBE),
	})

	if m.Route.VersionBE == 0 {
		if n, ok := p.store.NodeForAddr(m.Route.IP6); ok && n.Version != 0 {
			node := pfchan.Node{Path: n.Path, Metric: n.Metric, Version: n.Version, Key: n.Key, IP6: n.IP6}
			adv := pfchan.Frame{Kind: pfchan.PFNode, Payload: node.Encode()}
			if err := p.events.SendToCore(ctx, adv); err != nil {
				p.log.Warn("pathfinder: failed to emit NODE event", "ip6", n.IP6, "error", err)
			}
		}
	}

	reply := pfchan.Msg{Route: m.Route, Data: m.Data, Payload: m.Payload}
	out := pfchan.Frame{Kind: pfchan.PFSendMsg, Payload: reply.Encode()}
	if err := p.events.SendToCore(ctx, out); err != nil {
		p.log.Warn("pathfinder: failed to emit SENDMSG event", "error", err)
	}
	return nil
}

func (p *Pathfinder) handlePing(ctx context.Context) error {
	return p.events.SendToCore(ctx, pfchan.Frame{Kind: pfchan.PFPong})
}

// Tick runs the janitor's periodic maintenance searches. Callers should
// invoke Tick from the same event-loop goroutine as Dispatch, roughly
// every janitor local interval.
func (p *Pathfinder) Tick(now time.Time) []address.IP6 {
	if p.state != StateRunning {
		return nil
	}
	return p.janitor.Tick(now)
}

// NodeCount reports how many nodes the pathfinder currently has on
// file, for diagnostics.
func (p *Pathfinder) NodeCount() int {
	if p.store == nil {
		return 0
	}
	return p.store.Len()
}
