package pipeline

import (
	"time"

	"github.com/teranos/aisguard/errors"
)

// State is a stage orchestrator state
type State string

const (
	StateIdle             State = "Idle"
	StateLoadedAndCleaned State = "LoadedAndCleaned"
	StateABRunning        State = "A_B_Running"
	StateABJoined         State = "A_B_Joined"
	StateCRunning         State = "C_Running"
	StateDone             State = "Done"
	StateFailed           State = "Failed"
)

// allowed lists the legal successors of each state. Failed is reachable
// from every running state.
var allowed = map[State][]State{
	StateIdle:             {StateLoadedAndCleaned},
	StateLoadedAndCleaned: {StateABRunning, StateFailed},
	StateABRunning:        {StateABJoined, StateFailed},
	StateABJoined:         {StateCRunning, StateFailed},
	StateCRunning:         {StateDone, StateFailed},
}

// Terminal reports whether no transition leaves s
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// Transition records one state change
type Transition struct {
	From State
	To   State
	At   time.Time
}

// machine tracks the state of a single run
type machine struct {
	state State
	log   []Transition
}

func newMachine() *machine {
	return &machine{state: StateIdle}
}

// to moves the machine to next, rejecting transitions the state graph does not allow
func (m *machine) to(next State) error {
	for _, s := range allowed[m.state] {
		if s == next {
			m.log = append(m.log, Transition{From: m.state, To: next, At: time.Now()})
			m.state = next
			return nil
		}
	}
	return errors.AssertionFailedf("illegal transition %s -> %s", m.state, next)
}
