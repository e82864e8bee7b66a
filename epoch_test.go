package mps

import "testing"

type countingTransform struct{ closed bool }

func (t *countingTransform) Encrypt(_ uint64, _ []byte, c []byte) (int, error) { return len(c), nil }
func (t *countingTransform) Decrypt(_ uint64, _ []byte, c []byte) (int, error) { return len(c), nil }
func (t *countingTransform) Expansion(int) int                                { return 0 }
func (t *countingTransform) Close()                                           { t.closed = true }

func TestEpochTableAddLookupUsage(t *testing.T) {
	tbl := NewEpochTable(ModeDatagram)
	e0, err := tbl.Add(&countingTransform{})
	assertNotError(t, err, "add epoch 0")
	assertEquals(t, e0, Epoch(0), "first epoch id")

	assertNotError(t, tbl.Usage(e0, usageRead|usageWrite), "grant usage")
	entry, err := tbl.Lookup(e0)
	assertNotError(t, err, "lookup")
	assertEquals(t, entry.usage&usageRead != 0, true, "read granted")
	assertEquals(t, entry.usage&usageWrite != 0, true, "write granted")
}

func TestEpochTableSlidesWhenFull(t *testing.T) {
	tbl := NewEpochTable(ModeDatagram)
	xform0 := &countingTransform{}
	e0, err := tbl.Add(xform0)
	assertNotError(t, err, "add 0")
	e1, err := tbl.Add(&countingTransform{})
	assertNotError(t, err, "add 1")
	// e1 already carries write permission (the new epoch taking over),
	// so only the unreferenced e0 is retirable when the table needs
	// room for a third epoch.
	assertNotError(t, tbl.Usage(e1, usageWrite), "e1 takes over writing")
	e2, err := tbl.Add(&countingTransform{})
	assertNotError(t, err, "add 2 forces a slide")
	assertEquals(t, xform0.closed, true, "retired transform closed")
	assertEquals(t, tbl.Base(), Epoch(1), "base advanced past e0")
	assertEquals(t, e2, Epoch(2), "new epoch id continues the sequence")

	_, err = tbl.Lookup(e0)
	assertErrorKind(t, err, KindInvalidArgs, "e0 no longer resolvable")
	_, err = tbl.Lookup(e1)
	assertNotError(t, err, "e1 still resolvable")
}

func TestEpochTableSaturatedWhenPermissionsHeld(t *testing.T) {
	tbl := NewEpochTable(ModeDatagram)
	e0, _ := tbl.Add(&countingTransform{})
	assertNotError(t, tbl.Usage(e0, usageRead), "pin e0 with usage")
	_, _ = tbl.Add(&countingTransform{})
	_, err := tbl.Add(&countingTransform{})
	assertErrorKind(t, err, KindTooManyEpochs, "window saturated, e0 pinned by usage")
}

func TestEpochTableForceNextOutSeq(t *testing.T) {
	tbl := NewEpochTable(ModeDatagram)
	e0, _ := tbl.Add(&countingTransform{})
	assertNotError(t, tbl.ForceNextOutSeq(e0, 42), "force seq")
	entry, _ := tbl.Lookup(e0)
	assertEquals(t, entry.outSeq, uint64(42), "forced seq applied")
}

func TestReplayWindowAcceptsForwardAndRejectsOld(t *testing.T) {
	var w replayWindow
	assertTrue(t, w.accept(5), "first packet always accepted")
	w.advance(5)
	assertTrue(t, w.accept(7), "forward seq accepted")
	w.advance(7)
	assertTrue(t, w.accept(6), "gap-filling seq accepted")
	w.advance(6)
	assertTrue(t, !w.accept(5), "replay of 5 rejected")
	assertTrue(t, !w.accept(6), "replay of 6 rejected")
	assertTrue(t, w.accept(8), "new top still accepted")
}

func TestReplayWindowRejectsFarOld(t *testing.T) {
	var w replayWindow
	w.advance(1000)
	assertTrue(t, !w.accept(900), "900 is more than 64 behind 1000")
}
