package protocol

// State is a Connection's position in the lifecycle of spec.md §4.2:
// New -> Connecting -> Connected -> (Subscribed or Publishing, which both
// collapse back to Connected) -> Disconnecting -> Closed.
type State int32

const (
	StateNew State = iota
	StateConnecting
	StateConnected
	StateSubscribed
	StatePublishing
	StateDisconnecting
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateSubscribed:
		return "subscribed"
	case StatePublishing:
		return "publishing"
	case StateDisconnecting:
		return "disconnecting"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// transitions enumerates the edges spec.md §4.2 allows. Subscribed and
// Publishing both return to Connected once their operation completes, so
// they're modeled as transient markers rather than sticky states.
var transitions = map[State]map[State]bool{
	StateNew:          {StateConnecting: true},
	StateConnecting:   {StateConnected: true, StateClosed: true},
	StateConnected:    {StateSubscribed: true, StatePublishing: true, StateDisconnecting: true, StateClosed: true},
	StateSubscribed:   {StateConnected: true, StateDisconnecting: true, StateClosed: true},
	StatePublishing:   {StateConnected: true, StateDisconnecting: true, StateClosed: true},
	StateDisconnecting: {StateClosed: true},
	StateClosed:       {},
}

// CanTransition reports whether moving from 'from' to 'to' is a legal edge.
func CanTransition(from, to State) bool {
	return transitions[from][to]
}
