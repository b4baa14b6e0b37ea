package transport

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"net"
	"sync"
	"testing"

	"github.com/upnode-go/upnode/pkg/log"
)

type captureLogger struct {
	mu     sync.Mutex
	events []log.Event
}

func (c *captureLogger) Log(e log.Event) {
	c.mu.Lock()
	c.events = append(c.events, e)
	c.mu.Unlock()
}

func (c *captureLogger) all() []log.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]log.Event(nil), c.events...)
}

// rawFrame builds a frame by hand with an arbitrary length header.
func rawFrame(length uint32, payload []byte) []byte {
	out := make([]byte, LengthPrefixSize, LengthPrefixSize+len(payload))
	binary.BigEndian.PutUint32(out, length)
	return append(out, payload...)
}

func TestFramerRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
	}{
		{"single byte", []byte{0x42}},
		{"text", []byte("hello")},
		{"binary", []byte{0x00, 0xFF, 0x7F, 0x80}},
		{"at limit", bytes.Repeat([]byte("y"), DefaultMaxMessageSize)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := new(bytes.Buffer)
			f := NewFramer(buf)

			if err := f.WriteFrame(tt.payload); err != nil {
				t.Fatalf("WriteFrame failed: %v", err)
			}
			if buf.Len() != FrameSize(len(tt.payload)) {
				t.Errorf("frame size = %d, want %d", buf.Len(), FrameSize(len(tt.payload)))
			}

			got, err := f.ReadFrame()
			if err != nil {
				t.Fatalf("ReadFrame failed: %v", err)
			}
			if !bytes.Equal(got, tt.payload) {
				t.Errorf("payload mismatch: got %d bytes, want %d", len(got), len(tt.payload))
			}
		})
	}
}

func TestFramerWriteRejects(t *testing.T) {
	f := NewFramerWithMaxSize(new(bytes.Buffer), 8)

	if err := f.WriteFrame(nil); !errors.Is(err, ErrMessageEmpty) {
		t.Errorf("empty payload: got %v, want ErrMessageEmpty", err)
	}
	if err := f.WriteFrame(make([]byte, 9)); !errors.Is(err, ErrMessageTooLarge) {
		t.Errorf("oversized payload: got %v, want ErrMessageTooLarge", err)
	}
	if err := f.WriteFrame(make([]byte, 8)); err != nil {
		t.Errorf("payload at limit: %v", err)
	}
}

func TestFramerReadErrors(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
		want  error
	}{
		{"clean end", nil, io.EOF},
		{"zero length", rawFrame(0, nil), ErrMessageEmpty},
		{"over limit", rawFrame(17, make([]byte, 17)), ErrMessageTooLarge},
		{"short prefix", []byte{0x00, 0x00}, ErrFrameTruncated},
		{"short payload", rawFrame(10, []byte("abc")), ErrFrameTruncated},
		{"garbage prefix", []byte{0xff, 0xff, 0xff, 0xff}, ErrMessageTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewFramerWithMaxSize(bytes.NewBuffer(tt.input), 16)
			_, err := f.ReadFrame()
			if !errors.Is(err, tt.want) {
				t.Errorf("ReadFrame() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestFramerDefaultMax(t *testing.T) {
	f := NewFramerWithMaxSize(new(bytes.Buffer), 0)
	if f.MaxMessageSize() != DefaultMaxMessageSize {
		t.Errorf("MaxMessageSize() = %d, want %d", f.MaxMessageSize(), DefaultMaxMessageSize)
	}
}

func TestFramerSequence(t *testing.T) {
	buf := new(bytes.Buffer)
	f := NewFramer(buf)

	msgs := []string{"first", "second", "third"}
	for _, m := range msgs {
		if err := f.WriteFrame([]byte(m)); err != nil {
			t.Fatalf("WriteFrame(%q) failed: %v", m, err)
		}
	}
	for _, want := range msgs {
		got, err := f.ReadFrame()
		if err != nil {
			t.Fatalf("ReadFrame failed: %v", err)
		}
		if string(got) != want {
			t.Errorf("ReadFrame() = %q, want %q", got, want)
		}
	}
	if _, err := f.ReadFrame(); err != io.EOF {
		t.Errorf("after last frame: got %v, want io.EOF", err)
	}
}

func TestFrameSize(t *testing.T) {
	for payload, want := range map[int]int{0: 4, 1: 5, 100: 104, DefaultMaxMessageSize: DefaultMaxMessageSize + 4} {
		if got := FrameSize(payload); got != want {
			t.Errorf("FrameSize(%d) = %d, want %d", payload, got, want)
		}
	}
}

func TestFramerLogging(t *testing.T) {
	buf := new(bytes.Buffer)
	f := NewFramer(buf)
	logger := &captureLogger{}
	f.SetLogger(logger, "conn-1")

	small := []byte{0xa1, 0x01}
	big := bytes.Repeat([]byte{0x55}, MaxLogFrameDataSize+10)
	if err := f.WriteFrame(small); err != nil {
		t.Fatal(err)
	}
	if err := f.WriteFrame(big); err != nil {
		t.Fatal(err)
	}
	if _, err := f.ReadFrame(); err != nil {
		t.Fatal(err)
	}

	events := logger.all()
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}

	out := events[0]
	if out.ConnectionID != "conn-1" || out.Direction != log.DirectionOut {
		t.Errorf("event = %+v, want outgoing conn-1", out)
	}
	if out.Layer != log.LayerTransport || out.Category != log.CategoryMessage {
		t.Errorf("layer/category = %v/%v", out.Layer, out.Category)
	}
	if out.Frame == nil || out.Frame.Size != FrameSize(len(small)) || !bytes.Equal(out.Frame.Data, small) {
		t.Errorf("frame = %+v", out.Frame)
	}

	trunc := events[1].Frame
	if !trunc.Truncated || len(trunc.Data) != MaxLogFrameDataSize || trunc.Size != FrameSize(len(big)) {
		t.Errorf("large frame: truncated=%v data=%d size=%d", trunc.Truncated, len(trunc.Data), trunc.Size)
	}

	if events[2].Direction != log.DirectionIn {
		t.Errorf("read event direction = %v, want IN", events[2].Direction)
	}
}

func TestFramerConcurrentWriters(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	writer := NewFramer(client)
	reader := NewFramer(server)

	const writers, perWriter = 4, 25
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(b byte) {
			defer wg.Done()
			payload := bytes.Repeat([]byte{b}, 100+int(b))
			for i := 0; i < perWriter; i++ {
				if err := writer.WriteFrame(payload); err != nil {
					t.Errorf("WriteFrame failed: %v", err)
					return
				}
			}
		}(byte('a' + w))
	}

	for i := 0; i < writers*perWriter; i++ {
		got, err := reader.ReadFrame()
		if err != nil {
			t.Fatalf("ReadFrame %d failed: %v", i, err)
		}
		// Each frame must carry one writer's bytes only.
		if len(got) != 100+int(got[0]) || !bytes.Equal(got, bytes.Repeat(got[:1], len(got))) {
			t.Fatalf("frame %d interleaved: len=%d first=%q", i, len(got), got[0])
		}
	}
	wg.Wait()
}
