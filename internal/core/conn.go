// Package core holds the transport-facing contracts the collab service
// fans out through.
package core

// Frame is an encoded wire payload ready to send.
type Frame []byte

// Conn abstracts one client's outbound transport. Owned by the
// adapter; the adapter must Close() it.
type Conn interface {
	// TrySend enqueues without blocking; a full buffer is an error,
	// never a stall of the caller.
	TrySend(Frame) error
	Close()
}
