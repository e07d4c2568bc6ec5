package player

type State int

const (
	StateIdle State = iota
	StateResolving
	StateBuffering
	StateConnecting
	StatePlaying
	StatePaused
	StateStarving
	StateReconnecting
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateResolving:
		return "Resolving"
	case StateBuffering:
		return "Buffering"
	case StateConnecting:
		return "Connecting"
	case StatePlaying:
		return "Playing"
	case StatePaused:
		return "Paused"
	case StateStarving:
		return "Starving"
	case StateReconnecting:
		return "Reconnecting"
	case StateStopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}

// Active reports whether a session is running or about to be restarted.
func (s State) Active() bool {
	return s != StateIdle && s != StateStopped
}

// StopReason tells a user stop from one caused by an error or the end of
// the stream. Only the latter may reconnect.
type StopReason int

const (
	StopUser StopReason = iota
	StopErrorOrEOF
)

func (r StopReason) String() string {
	if r == StopUser {
		return "user"
	}
	return "error/eof"
}
