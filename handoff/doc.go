// Package handoff is the single-slot mailbox between a camera's capture
// goroutine and the frame processing goroutine.
//
// Design:
//
//	camera goroutine ── Offer(frame) ──► [ slot ] ──► Take(ctx) ── processing goroutine
//	                        │
//	                        └─ superseded frame ─► Release() (back to its pool)
//
// Semantics:
//   - Offer never blocks. A frame nobody took yet is replaced by the newer
//     one, and the superseded frame is released back to its source.
//   - Take blocks until a frame is available, the mailbox is closed, or the
//     context is done.
//   - At most one frame waits in the slot; the consumer holds at most one
//     more. There is no queue.
//
// The tracking engine only ever wants the latest image, so dropping stale
// frames keeps latency bounded when detection is slower than capture.
package handoff
