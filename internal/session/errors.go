package session

import "errors"

// Sentinel errors surfaced by Table operations. Most structural
// violations are handled as silent drops per spec §7 and never reach the
// caller as an error; these are reserved for conditions the caller (the
// event loop) needs to observe.
var (
	// ErrRunt indicates a switch frame was too short to contain a switch
	// header and a 32-bit nonce/handle word.
	ErrRunt = errors.New("session: runt switch frame")

	// ErrUnknownHandle indicates an inbound frame named a handle with no
	// live session.
	ErrUnknownHandle = errors.New("session: unknown handle")

	// ErrInvalidSetupNonce indicates a setup nonce (< 4) arrived on a
	// frame that also carried an established handle.
	ErrInvalidSetupNonce = errors.New("session: setup nonce on established handle")

	// ErrSelfHandshake indicates an inbound handshake claimed our own
	// public key.
	ErrSelfHandshake = errors.New("session: handshake claims our own public key")

	// ErrInvalidPrefix indicates a claimed public key does not derive an
	// address with the required 0xfc prefix.
	ErrInvalidPrefix = errors.New("session: public key does not derive a valid address")

	// ErrDecryptFailed indicates decryption failed; the caller should
	// synthesize a failed-decrypt reply.
	ErrDecryptFailed = errors.New("session: decryption failed")

	// ErrCtrlMsgDestination indicates a CTRLMSG-flagged route header
	// named a non-zero destination, which is a structural violation.
	ErrCtrlMsgDestination = errors.New("session: control message with non-zero destination")

	// ErrNeedsLookup indicates the payload was buffered and a search was
	// triggered rather than sent immediately.
	ErrNeedsLookup = errors.New("session: destination needs a path/key lookup")
)
