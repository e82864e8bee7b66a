package mps

// ContentType identifies the kind of data carried by a record, per
// RFC 5246 section 6.2.1 / RFC 6347.
type ContentType uint8

const (
	ContentTypeNone        ContentType = 0
	ContentTypeCCS         ContentType = 20
	ContentTypeAlert       ContentType = 21
	ContentTypeHandshake   ContentType = 22
	ContentTypeApplication ContentType = 23
	ContentTypeAck         ContentType = 25
)

// maxContentType is the highest content type value the wire format can
// express; values above this are always invalid regardless of config.
const maxContentType = 31

func (ct ContentType) valid() bool {
	return ct <= maxContentType
}

// Mode selects the transport this context runs over. Some behaviours
// (replay detection, epoch selection, sequence numbering) differ by mode.
type Mode uint8

const (
	ModeStream Mode = iota
	ModeDatagram
)

// Epoch identifies a generation of connection state: keys, sequence
// counters, replay state. EpochNone is the sentinel used where no epoch
// applies (e.g. an uninitialized paused reader).
type Epoch int32

const EpochNone Epoch = -1

// EpochMax bounds the id space; WindowSize must not exceed it.
const EpochMax = 1 << 16

// WindowSize is the number of epoch slots the table keeps live at once.
// RFC 6347 requires a sending and a receiving implementation to keep at
// least the current and the immediately preceding epoch around during a
// key-change handshake flight, so 2 is the default and minimum useful
// value.
const WindowSize = 2

// usage flags recorded per epoch-table slot.
type usageFlags uint8

const (
	usageRead usageFlags = 1 << iota
	usageWrite
)
