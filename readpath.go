package mps

// ReadStart fetches, validates, and decrypts records from l1 until one
// routes successfully into the active reader, then publishes that
// reader to the caller along with the record's content type and epoch.
// Not idempotent while a read is already published: see spec.md 4.E.
func (c *Context) ReadStart() (ContentType, Epoch, *Reader, error) {
	if err := c.checkAlive(); err != nil {
		return 0, 0, nil, err
	}

	if c.in.active().State() == readerExternal {
		return 0, 0, nil, newErr(KindUnexpectedOperation, "read_start: a read is already in progress")
	}
	if c.in.active().State() == readerInternal {
		return c.in.activeType, c.in.activeEpoch, c.in.active(), nil
	}

	for {
		hl := headerLen(c.cfg.mode)
		hdrPeek, err := c.l1.Fetch(hl)
		if err != nil {
			return 0, 0, nil, err
		}
		h, err := parseHeader(c.cfg.mode, hdrPeek)
		if err != nil {
			c.l1.Consume()
			if c.cfg.mode == ModeDatagram {
				continue
			}
			c.poison()
			return 0, 0, nil, err
		}

		full, err := c.l1.Fetch(hl + h.Length)
		if err != nil {
			return 0, 0, nil, err
		}

		header, entry, ciphertext, err := c.codec.parseRecord(full)
		if err != nil {
			c.l1.Consume()
			if c.cfg.mode == ModeDatagram {
				continue
			}
			c.poison()
			return 0, 0, nil, err
		}

		seq := header.Seq
		if c.cfg.mode == ModeStream {
			seq = entry.inCtr
		} else if !entry.window.accept(seq) {
			logf(logTypeIO, "dropping replayed/too-old seq=%d epoch=%d", seq, header.Epoch)
			c.l1.Consume()
			continue
		}

		plainLen, err := entry.transform.Decrypt(seq, full[:hl], ciphertext)
		if err != nil {
			c.l1.Consume()
			if c.cfg.mode == ModeDatagram {
				c.in.badMACCounter++
				if c.cfg.badMACLimit > 0 && c.in.badMACCounter >= c.cfg.badMACLimit {
					c.poison()
					return 0, 0, nil, wrapErr(KindInvalidRecord, "read_start: bad-MAC limit exceeded", err)
				}
				continue
			}
			c.poison()
			return 0, 0, nil, wrapErr(KindInvalidRecord, "read_start: authentication failed", err)
		}
		plaintext := ciphertext[:plainLen]

		if err := c.route(header.Type, header.Epoch, plaintext); err != nil {
			c.poison()
			c.l1.Consume()
			return 0, 0, nil, err
		}

		if c.cfg.mode == ModeStream {
			entry.inCtr++
		} else {
			entry.window.advance(seq)
			entry.lastSeen = seq
		}
		c.l1.Consume()

		c.in.activeType = header.Type
		c.in.activeEpoch = header.Epoch
		return header.Type, header.Epoch, c.in.active(), nil
	}
}

// route feeds plaintext into the paused reader (if its type matches,
// resuming it and swapping it into the active slot) or into the active
// reader (if it is currently unset). Any other combination is a
// collision: two content types can never have unfinished messages
// simultaneously (spec.md 4.E step 6, invariant IN_NO_ACTIVE_PAUSED_NO_OVERLAP).
func (c *Context) route(typ ContentType, epoch Epoch, plaintext []byte) error {
	if p := c.in.paused(); p != nil && c.in.pausedType == typ {
		if err := p.Feed(plaintext); err != nil {
			return err
		}
		c.in.swap()
		c.in.pausedIdx = -1
		return nil
	}
	if c.in.active().State() == readerUnset {
		return c.in.active().Feed(plaintext)
	}
	return newErr(KindInvalidRecord, "read_start: active reader busy with a different content type")
}

// ReadDone releases the currently published reader. If the consumer
// left bytes uncommitted (an incomplete reassembly) and the content
// type is pausable, the reader's backlog is parked and the next
// ReadStart call of the same type will resume it; otherwise leftover
// bytes are an error for non-pausable types.
func (c *Context) ReadDone() error {
	if err := c.checkAlive(); err != nil {
		return err
	}
	if c.in.active().State() != readerExternal {
		return newErr(KindUnexpectedOperation, "read_done: no read in progress")
	}

	var pending int
	if err := c.in.active().Reclaim(&pending); err != nil {
		c.poison()
		return err
	}

	if pending > 0 {
		if !c.cfg.typePausable(c.in.activeType) {
			c.poison()
			return newErr(KindInvalidRecord, "read_done: trailing bytes for a non-pausable content type")
		}
		c.in.pausedType = c.in.activeType
		c.in.pausedEpoch = c.in.activeEpoch
		c.in.pausedIdx = c.in.activeIdx
		// Advance active to the other slot so the next ReadStart gets
		// a reader in the unset state to feed a fresh record into.
		c.in.activeIdx = 1 - c.in.activeIdx
		c.in.activeType = ContentTypeNone
		c.in.activeEpoch = EpochNone
	}
	return nil
}

// PeekContentType drives ReadStart and returns just the resulting
// content type, letting a caller branch on type (e.g. to special-case
// ChangeCipherSpec) before deciding how to consume the reader
// ReadStart already published. Grounded on mint's PeekRecordType, which
// similarly folds "peek" into the normal fetch path via a cached
// record rather than a separate non-consuming lookahead; see
// SPEC_FULL.md "peek-without-consume".
func (c *Context) PeekContentType() (ContentType, error) {
	typ, _, _, err := c.ReadStart()
	return typ, err
}
