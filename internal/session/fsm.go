package session

import "fmt"

type State string

type Trigger string

const (
	// StateIdle: no capture has been requested yet.
	StateIdle State = "idle"
	// StateStarting: a capture session is being opened.
	StateStarting State = "starting"
	// StateListening: the session is live and delivering events.
	StateListening State = "listening"
	// StateRestarting: the session ended without a user stop and a fresh
	// one is being opened in its place.
	StateRestarting State = "restarting"
	// StateStopped: the user stopped capture.
	StateStopped State = "stopped"
	// StateFailed: a terminal error stopped capture; no auto-restart.
	StateFailed State = "failed"
)

const (
	// TriggerStart: user requests capture.
	TriggerStart Trigger = "start"
	// TriggerReady: the session delivered its first event.
	TriggerReady Trigger = "ready"
	// TriggerEnded: the session ended without the user asking.
	TriggerEnded Trigger = "ended"
	// TriggerStop: user requests stop.
	TriggerStop Trigger = "stop"
	// TriggerFail: terminal error.
	TriggerFail Trigger = "fail"
)

// Transition computes the next supervisor state. It is pure; the supervisor
// applies side effects around it.
func Transition(current State, trigger Trigger) (State, error) {
	if trigger == TriggerFail {
		return StateFailed, nil
	}

	switch current {
	case StateIdle, StateStopped:
		switch trigger {
		case TriggerStart:
			return StateStarting, nil
		default:
			return current, invalidTransition(current, trigger)
		}
	case StateStarting:
		switch trigger {
		case TriggerReady:
			return StateListening, nil
		case TriggerStop:
			return StateStopped, nil
		case TriggerEnded:
			// Reopen already in flight; do not stack another.
			return current, invalidTransition(current, trigger)
		default:
			return current, invalidTransition(current, trigger)
		}
	case StateListening:
		switch trigger {
		case TriggerEnded:
			return StateRestarting, nil
		case TriggerStop:
			return StateStopped, nil
		default:
			return current, invalidTransition(current, trigger)
		}
	case StateRestarting:
		switch trigger {
		case TriggerReady:
			return StateListening, nil
		case TriggerStop:
			return StateStopped, nil
		case TriggerEnded:
			return current, invalidTransition(current, trigger)
		default:
			return current, invalidTransition(current, trigger)
		}
	case StateFailed:
		switch trigger {
		case TriggerStart:
			// Manual restart after the user resolved the failure.
			return StateStarting, nil
		default:
			return current, invalidTransition(current, trigger)
		}
	default:
		return current, fmt.Errorf("unknown state %q", current)
	}
}

// Active reports whether the state means capture is wanted and running or
// being recovered.
func (s State) Active() bool {
	return s == StateStarting || s == StateListening || s == StateRestarting
}

func invalidTransition(state State, trigger Trigger) error {
	return fmt.Errorf("invalid transition: %s --(%s)--> ?", state, trigger)
}
