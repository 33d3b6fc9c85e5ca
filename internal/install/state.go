// SPDX-License-Identifier: MPL-2.0

package install

import "fmt"

// State is the progress of one installation.
type State int

const (
	StateInit State = iota
	StateDependenciesFetched
	StateClientFetched
	StateAssetsFetched
	StateDone
	StateFailed
)

// String returns the lowercase name of the state.
func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateDependenciesFetched:
		return "dependencies-fetched"
	case StateClientFetched:
		return "client-fetched"
	case StateAssetsFetched:
		return "assets-fetched"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

func allowedTransition(from, to State) bool {
	if from.Terminal() {
		return false
	}
	if to == StateFailed {
		return true
	}
	return to == from+1
}

// machine tracks the state of one Install call and reports every
// transition to the observer.
type machine struct {
	state    State
	observer func(State)
}

func newMachine(observer func(State)) *machine {
	m := &machine{state: StateInit, observer: observer}
	m.notify()
	return m
}

func (m *machine) advance(to State) error {
	if !allowedTransition(m.state, to) {
		return fmt.Errorf("disallowed transition %s -> %s", m.state, to)
	}
	m.state = to
	m.notify()
	return nil
}

func (m *machine) notify() {
	if m.observer != nil {
		m.observer(m.state)
	}
}
