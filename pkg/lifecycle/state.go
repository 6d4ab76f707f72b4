// Package lifecycle runs a long-lived process such as the HTTP gateway
// through a validated start/stop state machine and aggregates the health
// of the dependencies it holds open (user database, shared key cache).
//
// The flow for a healthy service is:
//
//	Created → Starting → Running → Stopping → Stopped
//
// Starting and Running may fall into Failed. Stopped and Failed may go
// back to Starting.
package lifecycle

// State is the lifecycle position of a [Service].
type State string

const (
	// StateCreated is the state of a service that has never been started.
	StateCreated State = "created"

	// StateStarting is held while the start hooks run.
	StateStarting State = "starting"

	// StateRunning is the only state in which [Service.Health] runs the
	// dependency checks.
	StateRunning State = "running"

	// StateStopping is held while the stop hooks drain in-flight work.
	StateStopping State = "stopping"

	StateStopped State = "stopped"
	StateFailed  State = "failed"
)

func (s State) String() string {
	return string(s)
}

// Valid reports whether s is a known state. The zero value is not.
func (s State) Valid() bool {
	switch s {
	case StateCreated, StateStarting, StateRunning,
		StateStopping, StateStopped, StateFailed:
		return true
	}
	return false
}

// IsTerminal reports whether s is Stopped or Failed.
func (s State) IsTerminal() bool {
	return s == StateStopped || s == StateFailed
}

//	Created  → Starting, Failed
//	Starting → Running, Stopping, Failed
//	Running  → Stopping, Failed
//	Stopping → Stopped, Failed
//	Stopped  → Starting
//	Failed   → Starting
var validTransitions = map[State][]State{
	StateCreated:  {StateStarting, StateFailed},
	StateStarting: {StateRunning, StateStopping, StateFailed},
	StateRunning:  {StateStopping, StateFailed},
	StateStopping: {StateStopped, StateFailed},
	StateStopped:  {StateStarting},
	StateFailed:   {StateStarting},
}

// ValidTransition reports whether from may move to to. Same-state
// transitions are always rejected.
func ValidTransition(from, to State) bool {
	if from == to {
		return false
	}
	for _, t := range validTransitions[from] {
		if t == to {
			return true
		}
	}
	return false
}
