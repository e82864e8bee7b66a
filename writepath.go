package mps

// Sizing assumption documented in DESIGN.md: a pausable write's
// carryover backlog is expected to fit entirely ahead of the next
// record's content, so prepareRecord always fully drains it. A backlog
// larger than the context's max plaintext is rejected with
// KindInvalidArgs rather than spread over further records.

// prepareRecord acquires a fresh L1 write buffer sized for the header,
// maxPlain bytes of content, and the epoch's transform expansion, then
// feeds the writer with the portion of that buffer left after preloading
// any queued backlog from a previous record of this type (spec.md 4.F,
// "prepare_record").
func (c *Context) prepareRecord(typ ContentType, epoch Epoch, entry *epochEntry) error {
	expansion := entry.transform.Expansion(c.cfg.maxPlaintext)
	hl := headerLen(c.cfg.mode)
	total := hl + c.cfg.maxPlaintext + expansion

	raw, err := c.l1.Write(total)
	if err != nil {
		return err
	}

	content := raw[hl : hl+c.cfg.maxPlaintext : hl+c.cfg.maxPlaintext+expansion]

	queued := c.out.writer.QueueAvail()
	if queued > len(content) {
		return newErr(KindInvalidArgs, "write_start: pausable backlog exceeds max plaintext size")
	}
	preloaded := c.out.writer.DrainQueue(content[:queued])

	c.out.rawBuf = raw
	c.out.fullContent = content
	c.out.preloaded = preloaded
	c.out.maxPlain = c.cfg.maxPlaintext
	c.out.activeType = typ
	c.out.activeEpoch = epoch

	return c.out.writer.Feed(content[preloaded:])
}

// dispatchRecord encrypts the accumulated content, finalizes the
// header, hands the record to L1, and releases the writer (spec.md
// 4.F, "dispatch_record"). It returns any backlog the writer had to
// spill past this record's capacity (committed bytes beyond maxPlain),
// left for the caller to police against the content type's pause
// policy.
func (c *Context) dispatchRecord() (int, error) {
	entry, err := c.epochs.Lookup(c.out.activeEpoch)
	if err != nil {
		return 0, err
	}

	hl := headerLen(c.cfg.mode)
	bufCap := c.out.maxPlain - c.out.preloaded
	committed := c.out.writer.commitLen()
	if committed > bufCap {
		committed = bufCap
	}
	plainLen := c.out.preloaded + committed
	assert(plainLen <= len(c.out.fullContent))
	content := c.out.fullContent[:plainLen]
	headerBuf := c.out.rawBuf[:hl]

	var seq uint64
	if c.cfg.mode == ModeStream {
		seq = entry.outCtr
	} else {
		seq = entry.outSeq
	}

	// The header is part of the AEAD associated data for most
	// transforms, so its wire bytes must be final before Encrypt runs:
	// the ciphertext length is computable in advance from the plaintext
	// length plus the transform's expansion, so the header is built once
	// with its real length field and handed to Encrypt as-is, matching
	// mint's writeRecordWithPadding (which fills in length before ever
	// building the header it hands to encrypt). Re-serializing with the
	// post-encrypt length would seal under one set of associated data
	// and present another to the peer's Decrypt.
	expectedLen := plainLen + entry.transform.Expansion(c.cfg.maxPlaintext)
	serializeHeader(c.cfg.mode, headerBuf, c.out.activeType, c.negotiatedOrConfiguredVersion(), c.out.activeEpoch, seq, expectedLen)

	newLen, err := entry.transform.Encrypt(seq, headerBuf, content)
	if err != nil {
		return 0, wrapErr(KindInvalidRecord, "dispatch_record: encrypt failed", err)
	}
	assert(newLen == expectedLen)

	if c.cfg.mode == ModeStream {
		entry.outCtr++
	} else {
		entry.outSeq++
	}

	total := hl + newLen
	if err := c.l1.Dispatch(total); err != nil {
		return 0, err
	}

	var queueAvail int
	if err := c.out.writer.Reclaim(&queueAvail); err != nil {
		return 0, err
	}

	c.out.rawBuf = nil
	c.out.fullContent = nil
	c.out.preloaded = 0
	c.out.activeType = ContentTypeNone
	c.out.activeEpoch = EpochNone
	return queueAvail, nil
}

func (c *Context) negotiatedOrConfiguredVersion() uint16 {
	if c.cfg.versionSet {
		return c.cfg.version
	}
	return c.codec.negotiatedVersion
}

// WriteStart returns a Writer the caller can fill with up to the
// configured max plaintext size of content for typ under epoch, merging
// into an already-open record when the type is mergeable and there is
// room, or preloading any pausable backlog ahead of a fresh one.
// Spec.md 4.F.
func (c *Context) WriteStart(typ ContentType, epoch Epoch) (*Writer, error) {
	if err := c.checkAlive(); err != nil {
		return nil, err
	}

	for {
		if c.out.clearing {
			if err := c.l1.Flush(); err != nil {
				return nil, err
			}
			c.out.clearing = false
		}
		if c.out.flush {
			if c.out.writer.State() == writerInternal {
				if _, err := c.dispatchRecord(); err != nil {
					c.poison()
					return nil, err
				}
			}
			c.out.flush = false
			c.out.clearing = true
			continue
		}
		break
	}

	if !c.cfg.typeValid(typ) {
		return nil, newErr(KindInvalidArgs, "write_start: disallowed content type")
	}

	entry, err := c.epochs.Lookup(epoch)
	if err != nil || entry.usage&usageWrite == 0 {
		return nil, newErr(KindInvalidArgs, "write_start: epoch not writable")
	}

	switch c.out.writer.State() {
	case writerExternal:
		return nil, newErr(KindUnexpectedOperation, "write_start: a write is already in progress")

	case writerInternal:
		if c.out.activeType == typ && c.out.activeEpoch == epoch && c.cfg.typeMergeable(typ) {
			remaining := c.out.maxPlain - (c.out.preloaded + c.out.writer.commitLen())
			if remaining > 0 {
				c.out.writer.trackExternal()
				return c.out.writer, nil
			}
		}
		if _, err := c.dispatchRecord(); err != nil {
			c.poison()
			return nil, err
		}
		if err := c.prepareRecord(typ, epoch, entry); err != nil {
			c.poison()
			return nil, err
		}
		c.out.writer.trackExternal()
		return c.out.writer, nil

	default: // writerUnset or writerQueueing
		if err := c.prepareRecord(typ, epoch, entry); err != nil {
			c.poison()
			return nil, err
		}
		c.out.writer.trackExternal()
		return c.out.writer, nil
	}
}

// WriteDone finalizes the bytes the caller wrote through the Writer
// WriteStart returned. If the writer reports a backlog and typ is
// pausable, the backlog is retained for the next WriteStart of the
// same type; otherwise the record is dispatched unless merging keeps
// it open. Spec.md 4.F, "write_done".
func (c *Context) WriteDone() error {
	if err := c.checkAlive(); err != nil {
		return err
	}
	if c.out.writer.State() != writerExternal {
		return newErr(KindUnexpectedOperation, "write_done: no write in progress")
	}

	c.out.writer.Commit()

	if !c.out.flush && c.cfg.typeMergeable(c.out.activeType) &&
		c.out.preloaded+c.out.writer.commitLen() < c.out.maxPlain {
		// Stay internal: a later WriteStart of the same mergeable type
		// can extend this record without dispatching it yet.
		c.out.writer.holdOpen()
		return nil
	}

	// dispatchRecord clears activeType, so capture it for the pause check.
	typ := c.out.activeType
	queueAvail, err := c.dispatchRecord()
	if err != nil {
		c.poison()
		return err
	}
	if queueAvail > 0 && !c.cfg.typePausable(typ) {
		c.poison()
		return newErr(KindInvalidRecord, "write_done: overflow for a non-pausable content type")
	}
	return nil
}

// WriteFlush dispatches any open record and pushes all dispatched bytes
// to L1, retrying cleanly if L1 cannot complete the flush yet.
func (c *Context) WriteFlush() error {
	if err := c.checkAlive(); err != nil {
		return err
	}
	if c.out.writer.State() == writerInternal {
		if _, err := c.dispatchRecord(); err != nil {
			c.poison()
			return err
		}
	}
	c.out.clearing = true
	if err := c.l1.Flush(); err != nil {
		c.out.flush = true
		return err
	}
	c.out.clearing = false
	return nil
}
