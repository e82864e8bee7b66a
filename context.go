package mps

// inSide holds the two-reader permutation and pausing state for the
// read direction (spec.md section 3, "Layer-2 context... in
// substructure"). activeIdx/pausedIdx index into readers and always
// form a permutation of {0,1}; pausedIdx is -1 when nothing is paused.
type inSide struct {
	readers [2]*Reader

	activeIdx int
	pausedIdx int // -1 if nothing paused

	activeType  ContentType
	activeEpoch Epoch
	pausedType  ContentType
	pausedEpoch Epoch

	badMACCounter int
}

func (s *inSide) active() *Reader { return s.readers[s.activeIdx] }
func (s *inSide) paused() *Reader {
	if s.pausedIdx < 0 {
		return nil
	}
	return s.readers[s.pausedIdx]
}

func (s *inSide) swap() {
	s.activeIdx, s.pausedIdx = s.pausedIdx, s.activeIdx
	s.activeType, s.pausedType = s.pausedType, s.activeType
	s.activeEpoch, s.pausedEpoch = s.pausedEpoch, s.activeEpoch
}

// outSide holds the write-direction state machine (spec.md section 3,
// "out substructure"). The record header is serialized directly into
// the front of rawBuf when a record is dispatched.
type outSide struct {
	writer *Writer

	activeType  ContentType
	activeEpoch Epoch

	flush    bool
	clearing bool

	// rawBuf is the whole buffer L1.Write handed back for the record
	// currently under construction, header included; fullContent is
	// the content region within it. Keeping rawBuf lets dispatchRecord
	// address the header span directly instead of trying to recover it
	// from fullContent's backing array.
	rawBuf []byte

	// fullContent is the entire plaintext/work region for the record
	// currently under construction: a slice of rawBuf, with extra
	// backing capacity for the transform's expansion. Its first
	// preloaded bytes are queue backlog drained in ahead of whatever
	// the caller writes through the writer.
	fullContent []byte
	preloaded   int
	maxPlain    int
}

// Context is the Layer-2 record-layer instance for one connection
// direction-pair: one per TLS/DTLS connection (spec.md section 3). It
// owns an epoch table, a pair of readers, and a writer, and drives an
// external Layer1 and the per-epoch Transform handles it holds.
type Context struct {
	cfg    *Config
	epochs *EpochTable
	codec  *codec
	l1     Layer1

	in  inSide
	out outSide

	poisoned bool
}

// NewContext creates a Context bound to l1, with accumulator/queue
// buffers sized by the caller. accSize bounds the largest message this
// context can reassemble across record boundaries; queueSize bounds the
// largest pausable write backlog it can hold between records.
func NewContext(cfg *Config, l1 Layer1, accSize, queueSize int) (*Context, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	epochs := NewEpochTable(cfg.mode)
	c := &Context{
		cfg:    cfg,
		epochs: epochs,
		codec:  newCodec(cfg, epochs),
		l1:     l1,
	}
	c.in.readers[0] = NewReader(make([]byte, accSize))
	c.in.readers[1] = NewReader(make([]byte, accSize))
	c.in.pausedIdx = -1
	c.in.activeEpoch = EpochNone
	c.in.pausedEpoch = EpochNone

	c.out.writer = NewWriter(make([]byte, queueSize))
	c.out.activeEpoch = EpochNone
	return c, nil
}

// Free destroys every owned transform and releases buffers. No other
// method may be called on c afterwards.
func (c *Context) Free() {
	for i := 0; i < WindowSize; i++ {
		e := &c.epochs.window[i]
		if e.inUse && e.transform != nil {
			e.transform.Close()
			e.inUse = false
			e.transform = nil
		}
	}
	c.in.readers[0] = nil
	c.in.readers[1] = nil
	c.out.writer = nil
	c.poisoned = true
}

func (c *Context) checkAlive() error {
	if c.poisoned {
		return newErr(KindUnexpectedOperation, "context: used after a fatal error or Free")
	}
	return nil
}

func (c *Context) poison() {
	c.poisoned = true
}

// EpochAdd installs transform as a new epoch and returns its id.
// Ownership of transform passes to the context.
func (c *Context) EpochAdd(transform Transform) (Epoch, error) {
	if err := c.checkAlive(); err != nil {
		return EpochNone, err
	}
	return c.epochs.Add(transform)
}

// EpochUsage grants read and/or write permission to an existing epoch.
func (c *Context) EpochUsage(id Epoch, read, write bool) error {
	if err := c.checkAlive(); err != nil {
		return err
	}
	var bits usageFlags
	if read {
		bits |= usageRead
	}
	if write {
		bits |= usageWrite
	}
	if read && c.in.badMACCounter != 0 && c.cfg.mode == ModeDatagram {
		// A newly promoted default read epoch must not inherit a
		// stale bad-MAC tally from whatever epoch held that role
		// before it (see SPEC_FULL.md, "bad-MAC counter reset").
		c.in.badMACCounter = 0
	}
	return c.epochs.Usage(id, bits)
}

// ForceNextSequenceNumber overrides the next outgoing sequence number
// for id (DTLS HelloVerifyRequest retransmission, RFC 6347).
func (c *Context) ForceNextSequenceNumber(id Epoch, seq uint64) error {
	if err := c.checkAlive(); err != nil {
		return err
	}
	return c.epochs.ForceNextOutSeq(id, seq)
}

// GetLastSequenceNumber returns the last accepted incoming sequence
// number for id (datagram mode).
func (c *Context) GetLastSequenceNumber(id Epoch) (uint64, error) {
	if err := c.checkAlive(); err != nil {
		return 0, err
	}
	return c.epochs.LastInSeq(id)
}
