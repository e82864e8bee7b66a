package mps

// fakeWire is the shared transport two fakeL1 instances read from and
// write into, standing in for whatever real Layer 1 buffering a caller
// would wire in (spec.md section 1/6 explicitly keeps L1 external to
// this package). In datagram mode it is a queue of whole records,
// mirroring UDP's message boundaries; in stream mode it is a single
// growing byte log.
type fakeWire struct {
	mode Mode

	packets [][]byte

	stream    []byte
	streamOff int
}

func newFakeWire(mode Mode) *fakeWire {
	return &fakeWire{mode: mode}
}

// fakeL1 is a minimal in-memory Layer1 for exercising the read/write
// paths end to end without a real socket. Write/Dispatch copy bytes out
// of a reusable scratch buffer so the caller can treat it like any
// buffering layer that returns borrowed spans.
type fakeL1 struct {
	mode Mode
	wire *fakeWire

	writeBuf []byte

	lastFetchLen int
}

func newFakeL1(w *fakeWire) *fakeL1 {
	return &fakeL1{mode: w.mode, wire: w, writeBuf: make([]byte, 4096)}
}

func (f *fakeL1) Fetch(minLen int) ([]byte, error) {
	if f.mode == ModeDatagram {
		if len(f.wire.packets) == 0 {
			return nil, ErrWantRead
		}
		pkt := f.wire.packets[0]
		if len(pkt) < minLen {
			return nil, ErrWantRead
		}
		return pkt, nil
	}
	avail := len(f.wire.stream) - f.wire.streamOff
	if avail < minLen {
		return nil, ErrWantRead
	}
	f.lastFetchLen = minLen
	return f.wire.stream[f.wire.streamOff : f.wire.streamOff+minLen], nil
}

func (f *fakeL1) Consume() {
	if f.mode == ModeDatagram {
		if len(f.wire.packets) > 0 {
			f.wire.packets = f.wire.packets[1:]
		}
		return
	}
	f.wire.streamOff += f.lastFetchLen
	f.lastFetchLen = 0
}

func (f *fakeL1) Write(minLen int) ([]byte, error) {
	if minLen > len(f.writeBuf) {
		f.writeBuf = make([]byte, minLen)
	}
	return f.writeBuf[:minLen], nil
}

func (f *fakeL1) Dispatch(length int) error {
	out := make([]byte, length)
	copy(out, f.writeBuf[:length])
	if f.mode == ModeDatagram {
		f.wire.packets = append(f.wire.packets, out)
	} else {
		f.wire.stream = append(f.wire.stream, out...)
	}
	return nil
}

func (f *fakeL1) Flush() error { return nil }

var _ Layer1 = (*fakeL1)(nil)
