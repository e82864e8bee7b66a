package mps

// readerState is the abstract state of a Reader, per section 3 of the
// spec: unset (idle, no fragment), paused (no fragment, accumulator
// holds a backlog awaiting continuation), internal (owns a fragment,
// not yet handed to the consumer), external (fragment handed out).
type readerState uint8

const (
	readerUnset readerState = iota
	readerPaused
	readerInternal
	readerExternal
)

// Reader accumulates bytes arriving in arbitrarily sized fragments and
// serves them back as contiguous spans of caller-chosen length, allowing
// a consumer to roll back an uncommitted read when a fragment ends
// mid-request. Grounded on the reader/accumulator discipline described
// in spec.md section 4.A; the splice-on-cross-boundary behaviour mirrors
// how mint's frameReader accumulates header bytes before a length is
// known, generalized here to an explicit accumulator the caller owns.
//
// A Reader is allocation-free at steady state: frag is borrowed from
// the caller for the lifetime of one read cycle, and acc is sized once
// by the caller to the largest message it expects to reassemble.
type Reader struct {
	state readerState

	frag    []byte
	fragLen int

	// end is the logical read cursor: bytes at logical offsets
	// [0, end) have been returned by Get. commit <= end always.
	end int
	// commit is the logical offset up to which the consumer has
	// confirmed it is done with the data; only bytes at or beyond
	// commit survive a Reclaim.
	commit int

	acc         []byte
	accAvail    int // valid backlog bytes held in acc[0:accAvail]
	fragSpliced int // bytes of frag already copied into acc by Get
}

// NewReader creates a Reader. acc may be nil, in which case the reader
// can never pause (Feed of a second fragment while backlog remains, or
// Reclaim with uncommitted data, fails with KindNeedsAccumulator).
func NewReader(acc []byte) *Reader {
	return &Reader{acc: acc}
}

// Feed attaches frag as the reader's current fragment. The reader must
// be in the unset or paused state.
func (r *Reader) Feed(frag []byte) error {
	if r.state != readerUnset && r.state != readerPaused {
		return newErr(KindUnexpectedOperation, "reader: feed while a fragment is still active")
	}
	if r.accAvail > 0 && r.accAvail+len(frag) > len(r.acc) {
		return newErr(KindNeedsAccumulator, "reader: accumulator too small for backlog plus new fragment")
	}
	r.frag = frag
	r.fragLen = len(frag)
	r.fragSpliced = 0
	r.end = 0
	r.commit = 0
	r.state = readerInternal
	return nil
}

// total returns the number of logical bytes currently available:
// accumulated backlog plus the live fragment, less whatever portion of
// the fragment a straddling Get has already spliced into the
// accumulator (those bytes live in both places at once and must only
// be counted once).
func (r *Reader) total() int {
	return r.accAvail + r.fragLen - r.fragSpliced
}

// Get requests up to desired bytes starting at the reader's current
// read cursor. If outLen is nil the call must yield exactly desired
// bytes or fail with a KindInvalidArgs error whose context reads
// out_of_data. If outLen is non-nil, it yields min(desired, available)
// bytes and reports the actual count via *outLen.
func (r *Reader) Get(desired int, outLen *int) ([]byte, error) {
	if r.state != readerInternal && r.state != readerExternal {
		return nil, newErr(KindUnexpectedOperation, "reader: get without an active fragment")
	}
	avail := r.total() - r.end
	n := desired
	if outLen != nil {
		if desired < avail {
			n = desired
		} else {
			n = avail
		}
		*outLen = n
	} else if desired > avail {
		return nil, newErr(KindInvalidArgs, "reader: out_of_data")
	}

	start := r.end
	endPos := r.end + n

	var span []byte
	switch {
	case endPos <= r.accAvail:
		// Entirely within the accumulated backlog.
		span = r.acc[start:endPos]
	case start >= r.accAvail:
		// Entirely within the live fragment. accAvail may have
		// grown past the fragment's logical start if an earlier
		// straddling Get spliced a prefix of frag into acc
		// (fragSpliced tracks how much); the true frag offset has
		// to account for that splice, not just the distance past
		// the current accAvail.
		fs := start - r.accAvail + r.fragSpliced
		fe := endPos - r.accAvail + r.fragSpliced
		span = r.frag[fs:fe]
	default:
		// Straddles the backlog/fragment boundary: splice the
		// remaining fragment prefix into the accumulator so the
		// caller gets one contiguous span.
		origAccAvail := r.accAvail
		target := endPos - origAccAvail
		if endPos > len(r.acc) {
			return nil, newErr(KindNeedsAccumulator, "reader: accumulator too small to splice request")
		}
		if target > r.fragSpliced {
			copy(r.acc[origAccAvail+r.fragSpliced:endPos], r.frag[r.fragSpliced:target])
			r.fragSpliced = target
			r.accAvail = endPos
		}
		span = r.acc[start:endPos]
	}

	r.state = readerExternal
	r.end = endPos
	return span, nil
}

// Commit marks all bytes returned so far as consumed: the consumer will
// never ask for them again. Bytes before Commit are eligible for
// reclamation; bytes in [commit, end) are retained across a Reclaim so
// a later resumed Get can replay them.
func (r *Reader) Commit() {
	r.commit = r.end
}

// Reclaim releases the current fragment. Bytes in [commit, total) -
// whatever the consumer read but did not commit, plus any untouched
// fragment tail - are copied into the accumulator and retained so a
// subsequent Feed+Get transparently replays them. Reports the number of
// bytes retained via pending, if non-nil.
func (r *Reader) Reclaim(pending *int) error {
	if r.state != readerInternal && r.state != readerExternal {
		return newErr(KindUnexpectedOperation, "reader: reclaim without an active fragment")
	}

	total := r.total()
	backlog := total - r.commit
	if backlog > 0 {
		if r.acc == nil || backlog > len(r.acc) {
			return newErr(KindNeedsAccumulator, "reader: no accumulator to retain uncommitted backlog")
		}
		// Assemble [commit, total) into acc[0:backlog]: first shift
		// the still-uncommitted accumulator tail down (safe to do
		// in place, since the destination only moves left), then
		// append the fragment-derived bytes from the untouched frag
		// buffer.
		if r.commit < r.accAvail {
			copy(r.acc[0:r.accAvail-r.commit], r.acc[r.commit:r.accAvail])
		}
		fragStart := r.commit - r.accAvail
		if fragStart < 0 {
			fragStart = 0
		}
		// fragStart so far measures distance into the logical
		// fragment region past accAvail; the physical frag index also
		// has to skip whatever prefix a prior straddling Get already
		// spliced into acc (fragSpliced), the same correction Get
		// itself applies when reading directly out of frag.
		fragStart += r.fragSpliced
		fragBytes := r.fragLen - fragStart
		if fragBytes > 0 {
			copy(r.acc[backlog-fragBytes:backlog], r.frag[fragStart:r.fragLen])
		}
	}

	r.frag = nil
	r.fragLen = 0
	r.fragSpliced = 0
	r.accAvail = backlog
	r.end = 0
	r.commit = 0

	if pending != nil {
		*pending = backlog
	}
	if backlog > 0 {
		r.state = readerPaused
	} else {
		r.state = readerUnset
	}
	return nil
}

// State reports the reader's current abstract state; exported for the
// read path and for tests, not part of the external consumer contract.
func (r *Reader) State() readerState { return r.state }
