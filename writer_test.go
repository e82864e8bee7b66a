package mps

import "testing"

func TestWriterSimpleGetCommitReclaim(t *testing.T) {
	w := NewWriter(make([]byte, 16))
	assertNotError(t, w.Feed(make([]byte, 10)), "feed")

	var n int
	span, err := w.Get(5, &n)
	assertNotError(t, err, "get")
	assertEquals(t, n, 5, "get n")
	copy(span, []byte("hello"))

	w.Commit()
	assertEquals(t, w.commitLen(), 5, "commit len")

	var queued int
	assertNotError(t, w.Reclaim(&queued), "reclaim")
	assertEquals(t, queued, 0, "no overflow for a fully-in-buf write")
	assertEquals(t, w.State(), writerUnset, "state after reclaim")
}

func TestWriterOverflowsIntoQueue(t *testing.T) {
	w := NewWriter(make([]byte, 16))
	assertNotError(t, w.Feed(make([]byte, 4)), "feed small buf")

	var n int
	span, err := w.Get(10, &n) // only 4 bytes fit in buf, up to 16 more in queue
	assertNotError(t, err, "get with outLen stops at the buf boundary instead of failing")
	assertEquals(t, n, 4, "Get is capped at the buf boundary, never spliced across it")
	assertEquals(t, len(span), 4, "span length matches reported n")

	span2, err := w.Get(6, &n)
	assertNotError(t, err, "second get lands in queue")
	assertEquals(t, n, 6, "queue has room")
	assertEquals(t, len(span2), 6, "span2 length")

	w.Commit()
	var queued int
	assertNotError(t, w.Reclaim(&queued), "reclaim")
	assertEquals(t, queued, 6, "6 bytes spilled past the 4-byte buf")
	assertEquals(t, w.State(), writerQueueing, "state after reclaim with backlog")
}

func TestWriterDrainQueuePreloadsNextRecord(t *testing.T) {
	w := NewWriter(make([]byte, 16))
	assertNotError(t, w.Feed(make([]byte, 4)), "feed")
	_, err := w.Get(4, nil)
	assertNotError(t, err, "fill buf")
	span, err := w.Get(3, nil)
	assertNotError(t, err, "overflow into queue")
	copy(span, []byte{9, 8, 7})
	w.Commit()

	var queued int
	assertNotError(t, w.Reclaim(&queued), "reclaim")
	assertEquals(t, queued, 3, "3 bytes queued")

	dst := make([]byte, 3)
	n := w.DrainQueue(dst)
	assertEquals(t, n, 3, "drained all 3")
	assertByteEquals(t, dst, []byte{9, 8, 7}, "drained bytes match what overflowed")
	assertEquals(t, w.QueueAvail(), 0, "queue empty after full drain")
}

func TestWriterGetWithoutOutLenFailsAtBoundary(t *testing.T) {
	w := NewWriter(make([]byte, 16))
	assertNotError(t, w.Feed(make([]byte, 4)), "feed")
	_, err := w.Get(6, nil) // 6 > 4-byte buf, and outLen is nil so no partial
	assertErrorKind(t, err, KindNeedsAccumulator, "strict get across boundary without outLen")
}

func TestWriterHoldOpenContinuesCursor(t *testing.T) {
	w := NewWriter(make([]byte, 16))
	assertNotError(t, w.Feed(make([]byte, 20)), "feed")

	span, err := w.Get(10, nil)
	assertNotError(t, err, "first get")
	copy(span, []byte("0123456789"))
	w.Commit()
	w.holdOpen()
	assertEquals(t, w.State(), writerInternal, "held open")

	span2, err := w.Get(5, nil)
	assertNotError(t, err, "second get continues from cursor")
	copy(span2, []byte("abcde"))
	w.Commit()
	assertEquals(t, w.commitLen(), 15, "commits accumulate across hold-open")
}
