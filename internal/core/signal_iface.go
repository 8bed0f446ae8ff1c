package core

// Frame is one encoded signaling message, ready to be written as is.
type Frame []byte

// SignalConnection is the outbound half of a participant's connection.
// TrySend never blocks; a full queue is reported as an error so the caller
// can apply its backpressure policy. The adapter that created it closes it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}
