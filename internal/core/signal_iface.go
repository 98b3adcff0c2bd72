package core

// Frame is one encoded server message.
type Frame []byte

// Socket abstracts a client transport attached to a Connection.
// Owned by the adapter; TrySend must never block.
type Socket interface {
	TrySend(Frame) error
	IsOpen() bool
	Close()
}
