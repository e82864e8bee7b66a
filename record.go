package mps

import "fmt"

// Wire header lengths, matching mint's recordHeaderLenTLS/recordHeaderLenDTLS
// constants (record-layer.go): TLS has no epoch/sequence field in the
// header (it's implicit per direction); DTLS carries a 2-byte epoch and
// a 6-byte sequence number, RFC 6347 section 4.1.
const (
	headerLenTLS  = 5
	headerLenDTLS = 13
	lengthFieldLen = 2
	epochFieldLen  = 2
	seqFieldLen    = 6
)

func headerLen(mode Mode) int {
	if mode == ModeDatagram {
		return headerLenDTLS
	}
	return headerLenTLS
}

// recordHeader is the parsed form of a (D)TLS record header.
type recordHeader struct {
	Type    ContentType
	Version uint16
	Epoch   Epoch
	Seq     uint64 // DTLS: explicit 48-bit counter in the header; TLS: implicit.
	Length  int
}

// codec parses and serializes record headers and ties them to the
// epoch table and configured policy, per spec.md section 4.D. It holds
// no buffers of its own: header/payload storage is supplied by the
// caller (ultimately Layer 1).
type codec struct {
	cfg    *Config
	epochs *EpochTable

	// negotiatedVersion latches the first observed DTLS record version
	// when the configured version is left unspecified (spec.md 4.D,
	// "version_unspecified upgrades to the observed version").
	negotiatedVersion    uint16
	negotiatedVersionSet bool
}

func newCodec(cfg *Config, epochs *EpochTable) *codec {
	return &codec{cfg: cfg, epochs: epochs}
}

// parseHeader decodes the fixed-size header fields from buf, which must
// be at least headerLen(mode) bytes. It does not validate the fields
// against policy; that is parseRecord's job.
func parseHeader(mode Mode, buf []byte) (recordHeader, error) {
	hl := headerLen(mode)
	if len(buf) < hl {
		return recordHeader{}, newErr(KindInvalidRecord, "record: short header")
	}
	h := recordHeader{
		Type:    ContentType(buf[0]),
		Version: uint16(buf[1])<<8 | uint16(buf[2]),
	}
	if mode == ModeDatagram {
		h.Epoch = Epoch(decodeUint(buf[3:5], epochFieldLen))
		h.Seq = decodeUint(buf[5:11], seqFieldLen)
		h.Length = int(decodeUint(buf[11:13], lengthFieldLen))
	} else {
		h.Length = int(decodeUint(buf[3:5], lengthFieldLen))
	}
	return h, nil
}

// parseRecord validates a fully-buffered record (header + ciphertext)
// against configured policy and the epoch table, per spec.md 4.D. The
// returned header's Seq is the explicit sequence field in DTLS and zero
// in TLS, where the caller uses the epoch's implicit counter instead.
func (c *codec) parseRecord(buf []byte) (recordHeader, *epochEntry, []byte, error) {
	h, err := parseHeader(c.cfg.mode, buf)
	if err != nil {
		return recordHeader{}, nil, nil, err
	}
	hl := headerLen(c.cfg.mode)
	ciphertext := buf[hl:]
	if len(ciphertext) != h.Length {
		return recordHeader{}, nil, nil, newErr(KindInvalidRecord, "record: length field does not match buffer")
	}

	if !c.cfg.typeValid(h.Type) {
		return recordHeader{}, nil, nil, newErr(KindInvalidRecord, fmt.Sprintf("record: disallowed content type %d", h.Type))
	}
	if h.Length == 0 && !c.cfg.typeEmptyOK(h.Type) {
		return recordHeader{}, nil, nil, newErr(KindInvalidRecord, "record: empty body not allowed for this type")
	}
	if h.Length > c.cfg.maxCiphertext {
		return recordHeader{}, nil, nil, newErr(KindInvalidRecord, "record: ciphertext too long")
	}

	if c.cfg.mode == ModeDatagram {
		if !c.negotiatedVersionSet && c.cfg.versionSet {
			// Configured version pins from the start; nothing to
			// latch.
			c.negotiatedVersion = c.cfg.version
			c.negotiatedVersionSet = true
		}
		if !c.negotiatedVersionSet {
			c.negotiatedVersion = h.Version
			c.negotiatedVersionSet = true
		} else if h.Version != c.negotiatedVersion {
			return recordHeader{}, nil, nil, newErr(KindInvalidRecord, "record: version mismatch")
		}
	} else if c.cfg.versionSet && h.Version != c.cfg.version {
		return recordHeader{}, nil, nil, newErr(KindInvalidRecord, "record: version mismatch")
	}

	var epochID Epoch
	if c.cfg.mode == ModeDatagram {
		epochID = h.Epoch
	} else {
		epochID = c.epochs.DefaultIn()
	}
	entry, err := c.epochs.Lookup(epochID)
	if err != nil || entry.usage&usageRead == 0 {
		return recordHeader{}, nil, nil, newErr(KindInvalidRecord, "record: epoch not readable")
	}
	h.Epoch = epochID

	maxExpansion := entry.transform.Expansion(c.cfg.maxPlaintext)
	if h.Length > c.cfg.maxPlaintext+maxExpansion {
		return recordHeader{}, nil, nil, newErr(KindInvalidRecord, "record: ciphertext exceeds max plaintext plus expansion")
	}

	return h, entry, ciphertext, nil
}

// serializeHeader writes type/version/[epoch+seq]/length into dst,
// which must be at least headerLen(mode) bytes, and returns the number
// of bytes written.
func serializeHeader(mode Mode, dst []byte, typ ContentType, version uint16, epoch Epoch, seq uint64, length int) int {
	assert(len(dst) >= headerLen(mode))
	dst[0] = byte(typ)
	dst[1] = byte(version >> 8)
	dst[2] = byte(version)
	if mode == ModeDatagram {
		encodeUint(uint64(epoch), epochFieldLen, dst[3:5])
		encodeUint(seq, seqFieldLen, dst[5:11])
		encodeUint(uint64(length), lengthFieldLen, dst[11:13])
		return headerLenDTLS
	}
	encodeUint(uint64(length), lengthFieldLen, dst[3:5])
	return headerLenTLS
}
