package bifaci

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/fxamacker/cbor/v2"
)

// StreamFrameVersion is the version tag written into every stream frame.
const StreamFrameVersion uint8 = 1

// CBOR map keys of a stream frame
const (
	keyVersion = 0 // version (u8)
	keyPayload = 1 // payload (tstr, the serialized envelope)
)

// StreamFrame is one length-prefixed CBOR frame on a stream bridge.
type StreamFrame struct {
	Version uint8  `cbor:"0,keyasint"`
	Payload string `cbor:"1,keyasint"`
}

// EncodeStreamFrame encodes a frame to CBOR bytes using integer keys
func EncodeStreamFrame(frame *StreamFrame) ([]byte, error) {
	m := map[int]interface{}{
		keyVersion: frame.Version,
		keyPayload: frame.Payload,
	}
	return cbor.Marshal(m)
}

// DecodeStreamFrame decodes CBOR bytes into a frame
func DecodeStreamFrame(data []byte) (*StreamFrame, error) {
	var frame StreamFrame
	if err := cbor.Unmarshal(data, &frame); err != nil {
		return nil, fmt.Errorf("decode stream frame: %w", err)
	}
	if frame.Version != StreamFrameVersion {
		return nil, fmt.Errorf("unsupported stream frame version %d", frame.Version)
	}
	return &frame, nil
}

// FrameReader reads length-prefixed CBOR frames from a stream
type FrameReader struct {
	reader io.Reader
	limits Limits
}

// NewFrameReader creates a new FrameReader
func NewFrameReader(r io.Reader) *FrameReader {
	return &FrameReader{
		reader: r,
		limits: DefaultLimits(),
	}
}

// SetLimits updates the reader's limits
func (fr *FrameReader) SetLimits(limits Limits) {
	fr.limits = limits
}

// ReadFrame reads a single frame from the stream
func (fr *FrameReader) ReadFrame() (*StreamFrame, error) {
	// Read 4-byte length prefix (big-endian)
	var lengthBuf [4]byte
	if _, err := io.ReadFull(fr.reader, lengthBuf[:]); err != nil {
		return nil, err
	}

	length := binary.BigEndian.Uint32(lengthBuf[:])
	if int(length) > fr.limits.effectiveMaxFrame() {
		return nil, &TransportError{
			Type:    TransportErrorTypeFrameTooLarge,
			Message: fmt.Sprintf("frame size %d exceeds limit %d", length, fr.limits.effectiveMaxFrame()),
		}
	}

	frameBuf := make([]byte, length)
	if _, err := io.ReadFull(fr.reader, frameBuf); err != nil {
		return nil, err
	}
	return DecodeStreamFrame(frameBuf)
}

// FrameWriter writes length-prefixed CBOR frames to a stream
type FrameWriter struct {
	writer io.Writer
	limits Limits
}

// NewFrameWriter creates a new FrameWriter
func NewFrameWriter(w io.Writer) *FrameWriter {
	return &FrameWriter{
		writer: w,
		limits: DefaultLimits(),
	}
}

// SetLimits updates the writer's limits
func (fw *FrameWriter) SetLimits(limits Limits) {
	fw.limits = limits
}

// WriteFrame writes a single frame to the stream
func (fw *FrameWriter) WriteFrame(frame *StreamFrame) error {
	frameBuf, err := EncodeStreamFrame(frame)
	if err != nil {
		return err
	}
	if len(frameBuf) > fw.limits.effectiveMaxFrame() {
		return &TransportError{
			Type:    TransportErrorTypeFrameTooLarge,
			Message: fmt.Sprintf("encoded frame size %d exceeds limit %d", len(frameBuf), fw.limits.effectiveMaxFrame()),
		}
	}

	// Prefix and payload go out in one write so concurrent readers never see a
	// length without its body.
	buf := make([]byte, 4+len(frameBuf))
	binary.BigEndian.PutUint32(buf[:4], uint32(len(frameBuf)))
	copy(buf[4:], frameBuf)
	_, err = fw.writer.Write(buf)
	return err
}

// =========================================================================
// Stream bridge
// =========================================================================

// StreamBridge is a NativeBridge over a pair of byte streams, for native hosts
// that run the page behind pipes instead of a window.
type StreamBridge struct {
	reader *FrameReader
	writer *FrameWriter
	closer io.Closer
	logger *slog.Logger

	wmu sync.Mutex

	mu        sync.RWMutex
	onMessage func([]byte)
}

// NewStreamBridge creates a bridge reading frames from r and writing to w.
// When r is an io.Closer, Run closes it on cancellation.
func NewStreamBridge(r io.Reader, w io.Writer, limits Limits, logger *slog.Logger) *StreamBridge {
	logger = orDiscard(logger)
	reader := NewFrameReader(r)
	writer := NewFrameWriter(w)
	reader.SetLimits(limits)
	writer.SetLimits(limits)
	closer, _ := r.(io.Closer)
	return &StreamBridge{reader: reader, writer: writer, closer: closer, logger: logger}
}

// FramelessPostMessage writes msg as one frame.
func (b *StreamBridge) FramelessPostMessage(msg string) error {
	b.wmu.Lock()
	defer b.wmu.Unlock()
	return b.writer.WriteFrame(&StreamFrame{Version: StreamFrameVersion, Payload: msg})
}

// SetOnNativeMessage installs the inbound callback.
func (b *StreamBridge) SetOnNativeMessage(fn func(data []byte)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onMessage = fn
}

// Run reads frames until the stream ends, delivering each payload to the
// inbound callback. A clean EOF returns nil. Cancelling ctx closes the reader
// when it can be closed, which unblocks a pending read.
func (b *StreamBridge) Run(ctx context.Context) error {
	stop := make(chan struct{})
	defer close(stop)
	if b.closer != nil {
		go func() {
			select {
			case <-ctx.Done():
				_ = b.closer.Close()
			case <-stop:
			}
		}()
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		frame, err := b.reader.ReadFrame()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		b.mu.RLock()
		fn := b.onMessage
		b.mu.RUnlock()
		if fn == nil {
			b.logger.Debug("dropped frame, no native message handler")
			continue
		}
		fn([]byte(frame.Payload))
	}
}
