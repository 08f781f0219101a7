package session

// State is the protocol position of a room session.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateSubscribed
	StateReconnecting
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateSubscribed:
		return "subscribed"
	case StateReconnecting:
		return "reconnecting"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// event is a protocol stimulus. Side effects (dialing, backfill,
// presence) happen at the port boundary; the transition itself is pure.
type event int

const (
	eventJoin event = iota
	eventChannelOpen
	eventChannelLost
	eventResume
	eventLeave
)

func (e event) String() string {
	switch e {
	case eventJoin:
		return "join"
	case eventChannelOpen:
		return "channelOpen"
	case eventChannelLost:
		return "channelLost"
	case eventResume:
		return "resume"
	case eventLeave:
		return "leave"
	default:
		return "unknown"
	}
}

// transition is the session protocol core. It reports the next state
// and whether the event is legal in the current one. Closed absorbs
// everything: no transition leaves it.
func transition(s State, e event) (State, bool) {
	if s == StateClosed {
		return StateClosed, false
	}
	if e == eventLeave {
		return StateClosed, true
	}

	switch s {
	case StateIdle:
		if e == eventJoin {
			return StateConnecting, true
		}
	case StateConnecting:
		switch e {
		case eventChannelOpen:
			return StateSubscribed, true
		case eventChannelLost:
			return StateIdle, true
		}
	case StateSubscribed:
		switch e {
		case eventChannelLost, eventResume:
			// A foreground re-entry cannot assume nothing was missed,
			// so it recovers exactly like a reported loss.
			return StateReconnecting, true
		}
	case StateReconnecting:
		switch e {
		case eventChannelOpen:
			return StateSubscribed, true
		case eventChannelLost, eventResume:
			return StateReconnecting, true
		}
	}
	return s, false
}
