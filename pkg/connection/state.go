package connection

// State is the supervisor state of a Handle.
type State uint8

const (
	// StateConnecting: opening a transport.
	StateConnecting State = iota

	// StateHandshaking: waiting for the peer's hello.
	StateHandshaking

	// StateReady: a remote peer is available.
	StateReady

	// StateEnding: tearing the channel down.
	StateEnding

	// StateClosed: Close was called. Terminal.
	StateClosed
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "CONNECTING"
	case StateHandshaking:
		return "HANDSHAKING"
	case StateReady:
		return "READY"
	case StateEnding:
		return "ENDING"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}
