package mps

// Transform is the per-epoch record-protection mechanism: AEAD or
// legacy MAC-then-encrypt. It is an external collaborator (spec.md
// section 1/6); the core never constructs one, only stores and destroys
// the handles it is given.
type Transform interface {
	// Encrypt protects content in place, returning the new length
	// (which may grow the slice's used length up to cap(content)).
	// hdr is the already-serialized record header, bound into the AEAD
	// associated data where the transform uses one.
	Encrypt(seq uint64, hdr []byte, content []byte) (int, error)
	// Decrypt reverses Encrypt. Returns a non-nil error on MAC/AEAD
	// authentication failure; ReadStart wraps it as KindInvalidRecord in
	// stream mode, and in datagram mode drops the record silently until
	// the bad-MAC limit is reached.
	Decrypt(seq uint64, hdr []byte, content []byte) (int, error)
	// Expansion reports the worst-case number of bytes Encrypt adds for
	// a plaintext of length maxPlain.
	Expansion(maxPlain int) int
	// Close destroys the transform's key material. Called when the
	// owning epoch entry is retired.
	Close()
}

// identityTransform is the transform for epoch 0 before any handshake
// has installed keys: ciphertext equals plaintext.
type identityTransform struct{}

func (identityTransform) Encrypt(_ uint64, _ []byte, content []byte) (int, error) {
	return len(content), nil
}

func (identityTransform) Decrypt(_ uint64, _ []byte, content []byte) (int, error) {
	return len(content), nil
}

func (identityTransform) Expansion(int) int { return 0 }
func (identityTransform) Close()            {}

// replayWindow is a 64-bit sliding anti-replay window covering
// [top-63, top], as used by DTLS (RFC 6347 section 4.1.2.6).
type replayWindow struct {
	top     uint64
	bitmask uint64
	active  bool
}

// accept reports whether seq is new (not previously seen and not older
// than the window), without mutating the window; the caller calls
// advance to record acceptance.
func (w *replayWindow) accept(seq uint64) bool {
	if !w.active {
		return true
	}
	if seq > w.top {
		return true
	}
	diff := w.top - seq
	if diff >= 64 {
		return false
	}
	return w.bitmask&(uint64(1)<<diff) == 0
}

// advance records seq as accepted, sliding the window if seq is the new
// top.
func (w *replayWindow) advance(seq uint64) {
	if !w.active {
		w.top = seq
		w.bitmask = 1
		w.active = true
		return
	}
	if seq > w.top {
		shift := seq - w.top
		if shift >= 64 {
			w.bitmask = 1
		} else {
			w.bitmask = (w.bitmask << shift) | 1
		}
		w.top = seq
		return
	}
	diff := w.top - seq
	w.bitmask |= uint64(1) << diff
}

// epochEntry is one live epoch's keying material, counters, and replay
// state (spec.md section 3, "Epoch entry").
type epochEntry struct {
	inUse     bool
	transform Transform
	usage     usageFlags

	// Stream mode.
	outCtr uint64
	inCtr  uint64

	// Datagram mode.
	outSeq   uint64
	lastSeen uint64
	window   replayWindow
}

// EpochTable is a sliding window of WindowSize live epochs, per spec.md
// section 4.C. In stream mode defaultIn/defaultOut select which slot
// reads/writes use; in datagram mode any subset of slots may carry
// READ/WRITE permission simultaneously.
type EpochTable struct {
	mode Mode

	window [WindowSize]epochEntry
	base   Epoch
	next   int

	defaultIn  Epoch
	defaultOut Epoch
}

// NewEpochTable creates an empty table for the given transport mode.
func NewEpochTable(mode Mode) *EpochTable {
	return &EpochTable{
		mode:       mode,
		base:       0,
		defaultIn:  EpochNone,
		defaultOut: EpochNone,
	}
}

func (t *EpochTable) slotIndex(id Epoch) (int, bool) {
	if id < t.base || id >= t.base+Epoch(t.next) {
		return 0, false
	}
	return int(id - t.base), true
}

// Add installs transform at the next free slot, sliding the window
// first if it is full, and returns the new epoch's id. Ownership of
// transform passes to the table: the caller must not touch it again.
func (t *EpochTable) Add(transform Transform) (Epoch, error) {
	if t.next == WindowSize {
		t.slide()
		if t.next == WindowSize {
			return EpochNone, newErr(KindTooManyEpochs, "epoch table: window saturated")
		}
	}
	idx := t.next
	t.window[idx] = epochEntry{inUse: true, transform: transform}
	id := t.base + Epoch(idx)
	t.next++
	logf(logTypeEpoch, "epoch %d added", id)
	return id, nil
}

// Usage sets permission bits on an existing epoch.
func (t *EpochTable) Usage(id Epoch, bits usageFlags) error {
	idx, ok := t.slotIndex(id)
	if !ok {
		return newErr(KindInvalidArgs, "epoch table: invalid_epoch")
	}
	t.window[idx].usage |= bits
	if t.mode == ModeStream {
		if bits&usageRead != 0 {
			t.defaultIn = id
		}
		if bits&usageWrite != 0 {
			t.defaultOut = id
		}
	}
	return nil
}

// Lookup returns a pointer to the live entry for id, or an invalid_epoch
// error. The returned pointer is a borrow: valid only until the next
// Add/slide.
func (t *EpochTable) Lookup(id Epoch) (*epochEntry, error) {
	idx, ok := t.slotIndex(id)
	if !ok {
		return nil, newErr(KindInvalidArgs, "epoch table: invalid_epoch")
	}
	return &t.window[idx], nil
}

// slide advances base past any slot with no permissions that sits below
// the currently selected default slots (stream mode) or below every
// permitted slot (datagram mode), destroying the transforms of retired
// entries.
func (t *EpochTable) slide() {
	for t.next > 0 {
		e := &t.window[0]
		if e.usage != 0 {
			break
		}
		// An unreferenced, permission-less slot at the base is always
		// retirable: it is the lowest id in the window, so it cannot
		// sit below any other permitted or default slot.
		if e.transform != nil {
			e.transform.Close()
		}
		copy(t.window[:t.next-1], t.window[1:t.next])
		t.window[t.next-1] = epochEntry{}
		t.base++
		t.next--
	}
}

// ForceNextOutSeq overrides the next outgoing sequence number for id
// (DTLS-only; required for RFC 6347 HelloVerifyRequest retransmission).
func (t *EpochTable) ForceNextOutSeq(id Epoch, seq uint64) error {
	idx, ok := t.slotIndex(id)
	if !ok {
		return newErr(KindInvalidArgs, "epoch table: invalid_epoch")
	}
	t.window[idx].outSeq = seq
	return nil
}

// LastInSeq returns last_seen for id in datagram mode.
func (t *EpochTable) LastInSeq(id Epoch) (uint64, error) {
	idx, ok := t.slotIndex(id)
	if !ok {
		return 0, newErr(KindInvalidArgs, "epoch table: invalid_epoch")
	}
	return t.window[idx].lastSeen, nil
}

// DefaultIn/DefaultOut expose the stream-mode default slot selection.
func (t *EpochTable) DefaultIn() Epoch  { return t.defaultIn }
func (t *EpochTable) DefaultOut() Epoch { return t.defaultOut }

// Base and Next expose the window bookkeeping for invariant checks and
// tests.
func (t *EpochTable) Base() Epoch { return t.base }
func (t *EpochTable) Next() int   { return t.next }
