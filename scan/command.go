package scan

import (
	"encoding/binary"
	"fmt"
)

// Command is a scan server opcode, encoded on the wire as a fixed-length
// ASCII tag with no length prefix or delimiter. The command set is closed;
// the physical server recognizes nothing else.
type Command string

// Scan server opcodes.
const (
	// CmdInit starts a session; the server replies with the step count.
	CmdInit Command = "INIT"
	// CmdMove advances the stage to the next scan position.
	CmdMove Command = "MOVE"
	// CmdDone finalizes the session and releases the instrument.
	CmdDone Command = "DONE"
)

// CommandLength is the exact on-wire length of every command tag.
const CommandLength = 4

// StepCountLength is the exact length of the INIT reply: a signed 32-bit
// integer in big-endian byte order.
const StepCountLength = 4

// DefaultMaxReplySize is the default cap on MOVE/DONE reply payloads.
// A reply that reaches the cap is a protocol violation, not a truncation.
const DefaultMaxReplySize = 1024

// Bytes returns the on-wire representation of the command tag.
func (c Command) Bytes() []byte { return []byte(c) }

// String returns the ASCII tag.
func (c Command) String() string { return string(c) }

// Valid reports whether c is one of the recognized opcodes.
func (c Command) Valid() bool {
	switch c {
	case CmdInit, CmdMove, CmdDone:
		return true
	default:
		return false
	}
}

// DecodeStepCount decodes an INIT reply into the total scan step count.
//
// The reply must be exactly 4 bytes. Negative counts are decoded
// faithfully; rejecting them is the controller's responsibility since the
// session must still be finalized when INIT itself succeeded.
func DecodeStepCount(data []byte) (int32, error) {
	if len(data) != StepCountLength {
		return 0, fmt.Errorf("%w: step count reply is %d bytes, want %d",
			ErrMalformedReply, len(data), StepCountLength)
	}

	return int32(binary.BigEndian.Uint32(data)), nil //nolint:gosec
}

// EncodeStepCount encodes a step count as a 4-byte big-endian INIT reply.
// It is the inverse of DecodeStepCount and is used by the passive side.
func EncodeStepCount(count int32) []byte {
	buf := make([]byte, StepCountLength)
	binary.BigEndian.PutUint32(buf, uint32(count)) //nolint:gosec

	return buf
}
