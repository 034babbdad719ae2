package protocol

import "fmt"

// Opcode identifies a request kind. Zero is never sent so that an all-zero
// buffer shows up as a serialization bug.
type Opcode uint32

const (
	OpUnknown Opcode = iota
	OpPatrol
	OpThumbnail
	OpOffer
	OpQuery
	OpConfig
)

func (o Opcode) String() string {
	switch o {
	case OpPatrol:
		return "patrol"
	case OpThumbnail:
		return "thumbnail"
	case OpOffer:
		return "offer"
	case OpQuery:
		return "query"
	case OpConfig:
		return "config"
	default:
		return fmt.Sprintf("opcode(%d)", uint32(o))
	}
}

// Status is the first word of every response.
type Status uint32

const (
	StatusOK            Status = 0
	StatusUnsupported   Status = 0x10 // bad opcode
	StatusUnexpected    Status = 0x11
	StatusInvalidParams Status = 0x12
	StatusNotFound      Status = 0x13
)

// Text returns the fixed description used when a failed response carries no
// message of its own.
func (s Status) Text() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusUnsupported:
		return "Unsupported request"
	case StatusUnexpected:
		return "Unexpected internal error"
	case StatusInvalidParams:
		return "Bad request"
	case StatusNotFound:
		return "No data available"
	default:
		return fmt.Sprintf("Unrecognized status code: %d", uint32(s))
	}
}

const (
	OpcodeSize        = 4
	StatusSize        = 4
	QueryHeaderSize   = OpcodeSize + 4
	SimilarRecordSize = 12

	// PhashAlgorithm is the only similarity algorithm requested.
	PhashAlgorithm = "phash"
)

// Similar is one query match: the stored image at (Group, Index) and its
// perceptual-hash distance from the queried file, 0 meaning identical.
type Similar struct {
	Group uint32
	Index uint32
	Diff  uint32
}

// QueryRequest is the decoded form of a Query frame.
type QueryRequest struct {
	Limit     uint32
	Algorithm string
	Path      string
}
