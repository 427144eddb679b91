package log

// EventType enumerates the observable events of a client session.
type EventType int

const (
	EventConnectAttempt EventType = iota
	EventConnected
	EventConnectFailed
	EventReceived
	EventSuppressed // structurally equal to the previous message, not dispatched
	EventSent
	EventPhaseStart
	EventPhaseEnd
	EventInputAccepted
	EventDisconnected
	EventProtocolError
)

func (e EventType) String() string {
	switch e {
	case EventConnectAttempt:
		return "ConnectAttempt"
	case EventConnected:
		return "Connected"
	case EventConnectFailed:
		return "ConnectFailed"
	case EventReceived:
		return "Received"
	case EventSuppressed:
		return "Suppressed"
	case EventSent:
		return "Sent"
	case EventPhaseStart:
		return "PhaseStart"
	case EventPhaseEnd:
		return "PhaseEnd"
	case EventInputAccepted:
		return "InputAccepted"
	case EventDisconnected:
		return "Disconnected"
	case EventProtocolError:
		return "ProtocolError"
	default:
		return "Unknown"
	}
}

// SessionEvent represents a single observable event in a session.
type SessionEvent struct {
	Seq     int       // monotonic sequence number
	Type    EventType // event type
	Kind    string    // wire message kind (if applicable)
	Details string    // human-readable detail string
}
