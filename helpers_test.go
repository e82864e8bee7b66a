package mps

import (
	"bytes"
	"errors"
	"testing"
)

// assertTrue/assertEquals/... mirror mint's own assert.go test helpers
// (referenced from dh-oprf_test.go as assertTrue(t, cond, msg)).

func assertTrue(t *testing.T, cond bool, msg string) {
	t.Helper()
	if !cond {
		t.Fatalf(msg)
	}
}

func assertEquals(t *testing.T, got, want interface{}, msg string) {
	t.Helper()
	if got != want {
		t.Fatalf("%s: got %v, want %v", msg, got, want)
	}
}

func assertByteEquals(t *testing.T, got, want []byte, msg string) {
	t.Helper()
	if !bytes.Equal(got, want) {
		t.Fatalf("%s: got %x, want %x", msg, got, want)
	}
}

func assertNotError(t *testing.T, err error, msg string) {
	t.Helper()
	if err != nil {
		t.Fatalf("%s: %v", msg, err)
	}
}

func assertError(t *testing.T, err error, msg string) {
	t.Helper()
	if err == nil {
		t.Fatalf("%s: expected an error, got nil", msg)
	}
}

func assertErrorKind(t *testing.T, err error, kind Kind, msg string) {
	t.Helper()
	var e *Error
	if !errors.As(err, &e) {
		t.Fatalf("%s: expected *mps.Error, got %T (%v)", msg, err, err)
	}
	if e.Kind != kind {
		t.Fatalf("%s: got kind %v, want %v", msg, e.Kind, kind)
	}
}
