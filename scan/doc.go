// Package scan implements the controller side of the instrument scan-control
// protocol used during photoemission data acquisition.
//
// The protocol is a minimal connection-per-command exchange with a scan
// server that owns the physical motion stage. A session is exactly one
// experiment run:
//
//   - INIT: the server replies with a 4-byte big-endian signed step count N.
//   - MOVE: issued N times, one fresh connection per step, each moving the
//     stage to the next scan position. Any non-empty reply is an ack.
//   - DONE: issued exactly once after the steps, so the server can release
//     the instrument. It is attempted even after a mid-sequence failure.
//
// Command tags are bare 4-byte ASCII frames with no length prefix or
// delimiter; the server is a fixed external collaborator, so the byte
// layout cannot be renegotiated.
//
// The Controller models the session as an explicit state machine
// (Idle → Initializing → Stepping → Finishing → Done, with an Aborted
// terminal) so that best-effort cleanup is structurally guaranteed rather
// than incidentally correct. Sequencing is strictly serial: one in-flight
// command per session, a step's reply fully read before the next MOVE is
// sent.
package scan
