// Package pfchan implements the in-process event channel connecting the
// session manager ("core") to the pathfinder. Every frame begins with a
// 32-bit big-endian event kind followed by a kind-specific body; the two
// halves exchange frames over an ordered in-process pipe (PING/PONG frames
// are dropped when it is full; every other kind waits for room) that
// never crosses a real network, but is still wire-framed the same way a
// networked protocol would be, so the codec can be fuzzed and audited on
// its own.
package pfchan

import "fmt"

// Kind identifies the shape of a frame's body and which direction it is
// allowed to travel.
type Kind uint32

// Core → Pathfinder kinds.
const (
	CoreConnect Kind = iota + 1
	CoreSwitchErr
	CoreSearchReq
	CorePeer
	CorePeerGone
	CoreSession
	CoreSessionEnded
	CoreDiscoveredPath
	CoreMsg
	CorePing
	CorePong
	CoreUnsetupSession
)

// Pathfinder → Core kinds. Numbered in a disjoint range so a misrouted
// frame decodes to an unrecognized kind rather than a wrong-but-valid one.
const (
	PFConnect Kind = iota + 101
	PFNode
	PFSessions
	PFSendMsg
	PFPing
	PFPong
)

func (k Kind) String() string {
	switch k {
	case CoreConnect:
		return "CORE_CONNECT"
	case CoreSwitchErr:
		return "CORE_SWITCH_ERR"
	case CoreSearchReq:
		return "CORE_SEARCH_REQ"
	case CorePeer:
		return "CORE_PEER"
	case CorePeerGone:
		return "CORE_PEER_GONE"
	case CoreSession:
		return "CORE_SESSION"
	case CoreSessionEnded:
		return "CORE_SESSION_ENDED"
	case CoreDiscoveredPath:
		return "CORE_DISCOVERED_PATH"
	case CoreMsg:
		return "CORE_MSG"
	case CorePing:
		return "CORE_PING"
	case CorePong:
		return "CORE_PONG"
	case CoreUnsetupSession:
		return "CORE_UNSETUP_SESSION"
	case PFConnect:
		return "PF_CONNECT"
	case PFNode:
		return "PF_NODE"
	case PFSessions:
		return "PF_SESSIONS"
	case PFSendMsg:
		return "PF_SENDMSG"
	case PFPing:
		return "PF_PING"
	case PFPong:
		return "PF_PONG"
	default:
		return fmt.Sprintf("KIND(%d)", uint32(k))
	}
}

// FromCore reports whether k is one of the Core → Pathfinder kinds.
func (k Kind) FromCore() bool {
	return k >= CoreConnect && k <= CoreUnsetupSession
}

// FromPathfinder reports whether k is one of the Pathfinder → Core kinds.
func (k Kind) FromPathfinder() bool {
	return k >= PFConnect && k <= PFPong
}
