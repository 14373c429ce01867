package bifaci

// Default maximum frame size (3.5 MB) for stream bridges
const DefaultMaxFrame int = 3_670_016

// Hard limit on frame size (16 MB) - prevents DoS
const MaxFrameHardLimit int = 16_777_216

// Limits bounds what a stream bridge reads and writes
type Limits struct {
	MaxFrame int `cbor:"max_frame" json:"max_frame" yaml:"max_frame"`
}

// DefaultLimits returns the default stream limits
func DefaultLimits() Limits {
	return Limits{MaxFrame: DefaultMaxFrame}
}

// effectiveMaxFrame clamps the configured limit to the hard limit
func (l Limits) effectiveMaxFrame() int {
	if l.MaxFrame <= 0 || l.MaxFrame > MaxFrameHardLimit {
		return MaxFrameHardLimit
	}
	return l.MaxFrame
}
