// Package transformtest provides a concrete mps.Transform for tests: an
// AEAD built on golang.org/x/crypto/chacha20poly1305, keyed by
// golang.org/x/crypto/hkdf the way mint derives its TLS 1.3 traffic
// keys (record-layer.go's labelForKey/labelForIV constants). The core
// record layer never imports this package; it is test-only scaffolding
// standing in for a real handshake's key schedule.
package transformtest

import (
	"crypto/sha256"
	"encoding/binary"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const (
	labelKey = "mps test key"
	labelIV  = "mps test iv"
)

// AEAD is an mps.Transform backed by ChaCha20-Poly1305, with an
// explicit nonce formed by XORing the record sequence number into a
// fixed IV, mirroring mint's per-record nonce construction.
type AEAD struct {
	aead cipher
	iv   []byte
}

// cipher is the subset of cipher.AEAD this package uses; declared
// locally so New can return early, typed errors instead of a bare
// crypto/cipher.AEAD construction failure.
type cipher interface {
	Seal(dst, nonce, plaintext, additionalData []byte) []byte
	Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error)
	Overhead() int
	NonceSize() int
}

// New derives a key and IV from secret via HKDF-Expand (RFC 5869,
// SHA-256) and constructs a ChaCha20-Poly1305 AEAD transform.
func New(secret []byte) (*AEAD, error) {
	key := make([]byte, chacha20poly1305.KeySize)
	if err := expand(secret, labelKey, key); err != nil {
		return nil, err
	}
	iv := make([]byte, chacha20poly1305.NonceSize)
	if err := expand(secret, labelIV, iv); err != nil {
		return nil, err
	}
	a, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	return &AEAD{aead: a, iv: iv}, nil
}

func expand(secret []byte, label string, dst []byte) error {
	r := hkdf.Expand(sha256.New, secret, []byte(label))
	_, err := io.ReadFull(r, dst)
	return err
}

func (t *AEAD) nonce(seq uint64) []byte {
	n := make([]byte, len(t.iv))
	copy(n, t.iv)
	var seqBuf [8]byte
	binary.BigEndian.PutUint64(seqBuf[:], seq)
	off := len(n) - 8
	for i := 0; i < 8; i++ {
		n[off+i] ^= seqBuf[i]
	}
	return n
}

// Encrypt implements mps.Transform.
func (t *AEAD) Encrypt(seq uint64, hdr []byte, content []byte) (int, error) {
	plainLen := len(content)
	sealed := t.aead.Seal(content[:0], t.nonce(seq), content[:plainLen], hdr)
	return len(sealed), nil
}

// Decrypt implements mps.Transform.
func (t *AEAD) Decrypt(seq uint64, hdr []byte, content []byte) (int, error) {
	opened, err := t.aead.Open(content[:0], t.nonce(seq), content, hdr)
	if err != nil {
		return 0, err
	}
	return len(opened), nil
}

// Expansion implements mps.Transform.
func (t *AEAD) Expansion(int) int { return t.aead.Overhead() }

// Close implements mps.Transform; chacha20poly1305 holds no external
// resources, so this only breaks the reference to the derived key.
func (t *AEAD) Close() { t.aead = nil }
