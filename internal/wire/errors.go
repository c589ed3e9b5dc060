package wire

import "errors"

// ErrRunt indicates a frame was shorter than a header it claims to carry.
var ErrRunt = errors.New("frame shorter than required header")

// ErrNotControlFrame indicates a frame was expected to carry the control
// handle sentinel (0xFFFFFFFF) but didn't.
var ErrNotControlFrame = errors.New("frame is not a control frame")

// ErrUnknownControlType indicates a control frame's type field did not
// match any control type this package understands.
var ErrUnknownControlType = errors.New("unrecognized control frame type")

// ErrChecksumMismatch indicates a control frame's embedded checksum did
// not match the checksum computed over its contents.
var ErrChecksumMismatch = errors.New("control frame checksum mismatch")
