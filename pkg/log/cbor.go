package log

import (
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
)

// A log file is a plain concatenation of CBOR-encoded events with integer
// keys. Timestamps are RFC 3339 strings with nanoseconds so files stay
// readable by generic CBOR tools.
var (
	logEncMode = must(cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
		Time:          cbor.TimeRFC3339Nano,
	}.EncMode())

	// Decoding is lenient so files written by newer versions with extra
	// keys still load.
	logDecMode = must(cbor.DecOptions{
		DupMapKey:   cbor.DupMapKeyQuiet,
		IndefLength: cbor.IndefLengthAllowed,
	}.DecMode())
)

func must[M any](mode M, err error) M {
	if err != nil {
		panic(fmt.Sprintf("log: invalid CBOR mode: %v", err))
	}
	return mode
}

// EncodeEvent encodes one event.
func EncodeEvent(event Event) ([]byte, error) {
	return logEncMode.Marshal(event)
}

// DecodeEvent decodes one event.
func DecodeEvent(data []byte) (Event, error) {
	var event Event
	err := logDecMode.Unmarshal(data, &event)
	return event, err
}

// NewEncoder returns an encoder writing events to w.
func NewEncoder(w io.Writer) *cbor.Encoder {
	return logEncMode.NewEncoder(w)
}

// NewDecoder returns a decoder reading events from r.
func NewDecoder(r io.Reader) *cbor.Decoder {
	return logDecMode.NewDecoder(r)
}
