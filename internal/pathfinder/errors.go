package pathfinder

import "errors"

// Sentinel errors surfaced by Pathfinder.Run's dispatch.
var (
	// ErrProtocolViolation indicates a non-CONNECT event arrived while
	// the pathfinder was still INITIALIZING.
	ErrProtocolViolation = errors.New("pathfinder: event received before CONNECT")

	// ErrAlreadyConnected indicates a second CONNECT event arrived after
	// the pathfinder had already transitioned to RUNNING.
	ErrAlreadyConnected = errors.New("pathfinder: duplicate CONNECT event")

	// ErrUnknownKind indicates a frame carried a kind this dispatch table
	// has no case for.
	ErrUnknownKind = errors.New("pathfinder: unrecognized event kind")
)
