package mps

// typeFlags records, per content type, whether it is valid at all and
// which of the pausable/mergeable/empty-allowed behaviours apply.
// pause_flag, merge_flag, empty_flag are each required to be subsets of
// type_flag (spec.md section 8, "type-flag discipline"); WithType
// enforces that by construction, since a type can't carry these flags
// without first being registered as valid.
type typeFlags struct {
	valid     bool
	pausable  bool
	mergeable bool
	emptyOK   bool
}

// Config is the per-content-type policy plus the size limits and the
// bad-MAC limit described in spec.md section 4.G. Datagram anti-replay
// is always on and has no setting here. Built with
// chained setters, mirroring mint's DefaultRecordLayer setter methods
// (SetVersion, SetLabel) rather than a functional-options package.
type Config struct {
	mode Mode

	version    uint16
	versionSet bool

	types [maxContentType + 1]typeFlags

	maxPlaintext int
	maxCiphertext int

	badMACLimit int // datagram only; 0 disables the limit

	// earlyDataUnauthenticated records whether unauthenticated TLS 1.3
	// EarlyData is to be silently discarded or treated as an error;
	// spec.md section 9 flags this as an open question in the source.
	// The read path does not consult it.
	earlyDataUnauthenticated bool

	prng func([]byte) error
}

// NewConfig returns a Config with the spec's default size limits
// (maxFragmentLen = 1<<14, matching both TLS's record size limit and
// the value mint's record-layer.go hard-codes as maxFragmentLen) and no
// content types registered.
func NewConfig(mode Mode) *Config {
	return &Config{
		mode:          mode,
		maxPlaintext:  1 << 14,
		maxCiphertext: (1 << 14) + 256,
	}
}

// WithType registers ct as valid and sets its pausable/mergeable/empty-
// allowed flags. Re-registering an already-valid type is an invalid_args
// error (spec.md section 7, "duplicate type add").
func (c *Config) WithType(ct ContentType, pausable, mergeable, emptyOK bool) (*Config, error) {
	if !ct.valid() {
		return c, newErr(KindInvalidArgs, "config: content type out of range")
	}
	if c.types[ct].valid {
		return c, newErr(KindInvalidArgs, "config: content type already registered")
	}
	c.types[ct] = typeFlags{valid: true, pausable: pausable, mergeable: mergeable, emptyOK: emptyOK}
	return c, nil
}

// WithVersion pins the configured protocol version; records with an
// incompatible version are rejected at parse time.
func (c *Config) WithVersion(v uint16) *Config {
	c.version = v
	c.versionSet = true
	return c
}

// WithBadMACLimit sets the datagram authentication failure count at
// which the context is poisoned: the n-th failure is fatal, the n-1
// before it are dropped silently. 0 (the default) disables the limit.
func (c *Config) WithBadMACLimit(n int) *Config {
	c.badMACLimit = n
	return c
}

// WithMaxPlaintext sets the maximum plaintext payload size accepted or
// produced per record.
func (c *Config) WithMaxPlaintext(n int) *Config {
	c.maxPlaintext = n
	return c
}

// WithMaxCiphertext sets the maximum ciphertext size accepted per
// record on read.
func (c *Config) WithMaxCiphertext(n int) *Config {
	c.maxCiphertext = n
	return c
}

// WithEarlyDataUnauthenticated records whether unauthenticated TLS 1.3
// EarlyData is to be silently discarded (true) rather than rejected
// (false, the default). No code path in this package reads the flag:
// records are never classified as EarlyData.
func (c *Config) WithEarlyDataUnauthenticated(v bool) *Config {
	c.earlyDataUnauthenticated = v
	return c
}

// WithPRNG installs a random byte source. The read and write paths do
// not call it, and no padding is added to records. The core never seeds
// or constructs a PRNG itself (spec.md section 1, non-goals).
func (c *Config) WithPRNG(prng func([]byte) error) *Config {
	c.prng = prng
	return c
}

func (c *Config) typeValid(ct ContentType) bool {
	return ct.valid() && c.types[ct].valid
}

func (c *Config) typePausable(ct ContentType) bool {
	return ct.valid() && c.types[ct].pausable
}

func (c *Config) typeMergeable(ct ContentType) bool {
	return ct.valid() && c.types[ct].mergeable
}

func (c *Config) typeEmptyOK(ct ContentType) bool {
	return ct.valid() && c.types[ct].emptyOK
}

// Validate checks cross-field invariants that chained setters can't
// enforce eagerly (e.g. flag subset discipline, which WithType already
// guarantees by construction, is re-checked here defensively).
func (c *Config) Validate() error {
	for ct := ContentType(0); ct <= maxContentType; ct++ {
		f := c.types[ct]
		if !f.valid && (f.pausable || f.mergeable || f.emptyOK) {
			return newErr(KindInvalidArgs, "config: flag set on unregistered content type")
		}
	}
	if c.maxPlaintext <= 0 || c.maxCiphertext <= 0 {
		return newErr(KindInvalidArgs, "config: non-positive size limit")
	}
	return nil
}
