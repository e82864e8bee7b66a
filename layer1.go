package mps

// Layer1 is the raw I/O buffering collaborator the record layer sits
// on top of (spec.md section 1/6): it supplies contiguous buffers of
// whole records and performs flushes. Layer1 is never constructed by
// this package; a caller wires in its own datagram- or stream-buffering
// implementation.
type Layer1 interface {
	// Fetch returns a read-only span of at least minLen contiguous
	// bytes, or ErrWantRead if that much isn't available yet.
	Fetch(minLen int) (buf []byte, err error)
	// Consume releases the span returned by the last Fetch.
	Consume()
	// Write returns a writable span of at least minLen contiguous
	// bytes, or ErrWantWrite if L1 has no room yet.
	Write(minLen int) (buf []byte, err error)
	// Dispatch commits length bytes of the span returned by the last
	// Write.
	Dispatch(length int) error
	// Flush pushes all dispatched bytes to the underlying transport.
	// Returns ErrWantWrite if the transport cannot accept everything
	// yet; the caller retries.
	Flush() error
}
