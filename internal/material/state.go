package material

import "fmt"

// State is a step of a single create/edit/delete request.
//
//	RECEIVED → VALIDATING → {REJECTED | TRANSACTING}
//	TRANSACTING → {COMMITTED → FILE_SWAPPED | ROLLED_BACK}
type State string

const (
	StateReceived    State = "RECEIVED"
	StateValidating  State = "VALIDATING"
	StateRejected    State = "REJECTED"
	StateTransacting State = "TRANSACTING"
	StateCommitted   State = "COMMITTED"
	StateFileSwapped State = "FILE_SWAPPED"
	StateRolledBack  State = "ROLLED_BACK"
)

var transitions = map[State][]State{
	StateReceived:    {StateValidating},
	StateValidating:  {StateRejected, StateTransacting},
	StateTransacting: {StateCommitted, StateRolledBack},
	StateCommitted:   {StateFileSwapped},
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateRejected || s == StateFileSwapped || s == StateRolledBack
}

// run tracks one request through the state machine.
type run struct {
	op    string
	state State
}

func newRun(op string) *run { return &run{op: op, state: StateReceived} }

func (r *run) to(next State) {
	for _, s := range transitions[r.state] {
		if s == next {
			r.state = next
			return
		}
	}
	panic(fmt.Sprintf("material: %s: illegal transition %s -> %s", r.op, r.state, next))
}

func (r *run) fail(kind, cause error) *EditError {
	return &EditError{Op: r.op, State: r.state, Kind: kind, Err: cause}
}
