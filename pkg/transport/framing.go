package transport

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/upnode-go/upnode/pkg/log"
)

const (
	// LengthPrefixSize is the size of the big-endian length prefix.
	LengthPrefixSize = 4

	// DefaultMaxMessageSize bounds a frame payload (64 KB).
	DefaultMaxMessageSize = 65536

	// MaxLogFrameDataSize caps the payload bytes copied into a log event.
	MaxLogFrameDataSize = 4096
)

var (
	// ErrMessageTooLarge indicates a payload above the size limit.
	ErrMessageTooLarge = errors.New("message too large")

	// ErrMessageEmpty indicates a zero-length payload.
	ErrMessageEmpty = errors.New("message is empty")

	// ErrFrameTruncated indicates the stream ended inside a frame.
	ErrFrameTruncated = errors.New("frame truncated")
)

// Framer reads and writes length-prefixed frames on a byte stream. Reads
// must come from a single goroutine; writes may be concurrent.
type Framer struct {
	r   *bufio.Reader
	w   io.Writer
	max uint32

	head [LengthPrefixSize]byte

	wmu   sync.Mutex
	whead [LengthPrefixSize]byte

	logger log.Logger
	connID string
}

// NewFramer creates a framer with DefaultMaxMessageSize.
func NewFramer(rw io.ReadWriter) *Framer {
	return NewFramerWithMaxSize(rw, DefaultMaxMessageSize)
}

// NewFramerWithMaxSize creates a framer that rejects payloads above
// maxSize in both directions. Zero means DefaultMaxMessageSize.
func NewFramerWithMaxSize(rw io.ReadWriter, maxSize uint32) *Framer {
	if maxSize == 0 {
		maxSize = DefaultMaxMessageSize
	}
	return &Framer{
		r:   bufio.NewReader(rw),
		w:   rw,
		max: maxSize,
	}
}

// SetLogger records every frame as a transport event for connID. Nil
// disables it. Call before the framer is used.
func (f *Framer) SetLogger(logger log.Logger, connID string) {
	f.logger = logger
	f.connID = connID
}

// MaxMessageSize returns the payload limit.
func (f *Framer) MaxMessageSize() uint32 {
	return f.max
}

// WriteFrame writes data as one frame. Prefix and payload go out in a
// single vectored write where the writer supports it.
func (f *Framer) WriteFrame(data []byte) error {
	if err := f.check(uint32(len(data))); err != nil {
		return err
	}

	f.wmu.Lock()
	binary.BigEndian.PutUint32(f.whead[:], uint32(len(data)))
	bufs := net.Buffers{f.whead[:], data}
	_, err := bufs.WriteTo(f.w)
	f.wmu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}

	f.log(data, log.DirectionOut)
	return nil
}

// ReadFrame reads the next frame and returns its payload. A clean end of
// stream between frames returns io.EOF.
func (f *Framer) ReadFrame() ([]byte, error) {
	if _, err := io.ReadFull(f.r, f.head[:]); err != nil {
		switch {
		case errors.Is(err, io.EOF):
			return nil, io.EOF
		case errors.Is(err, io.ErrUnexpectedEOF):
			return nil, ErrFrameTruncated
		}
		return nil, fmt.Errorf("failed to read length prefix: %w", err)
	}

	length := binary.BigEndian.Uint32(f.head[:])
	if err := f.check(length); err != nil {
		return nil, err
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(f.r, payload); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrFrameTruncated
		}
		return nil, fmt.Errorf("failed to read payload: %w", err)
	}

	f.log(payload, log.DirectionIn)
	return payload, nil
}

func (f *Framer) check(length uint32) error {
	if length == 0 {
		return ErrMessageEmpty
	}
	if length > f.max {
		return fmt.Errorf("%w: %d > %d", ErrMessageTooLarge, length, f.max)
	}
	return nil
}

func (f *Framer) log(data []byte, direction log.Direction) {
	if f.logger == nil {
		return
	}
	ev := &log.FrameEvent{Size: FrameSize(len(data)), Data: data}
	if len(data) > MaxLogFrameDataSize {
		ev.Data, ev.Truncated = data[:MaxLogFrameDataSize], true
	}
	f.logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: f.connID,
		Direction:    direction,
		Layer:        log.LayerTransport,
		Category:     log.CategoryMessage,
		Frame:        ev,
	})
}

// FrameSize returns the on-wire size of a payload including its prefix.
func FrameSize(payloadSize int) int {
	return LengthPrefixSize + payloadSize
}
