package imagegen

import (
	"fmt"
	"time"
)

type State int

const (
	StateIdle State = iota
	StateAttempting
	StateSuccess
	StateExhausted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAttempting:
		return "attempting"
	case StateSuccess:
		return "success"
	case StateExhausted:
		return "exhausted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

func (s State) Terminal() bool {
	return s == StateSuccess || s == StateExhausted
}

// machine tracks one slide's progress: Idle -> Attempting(k) ->
// Success | Attempting(k+1) | Exhausted, where k counts failed attempts.
type machine struct {
	backoff  Backoff
	state    State
	failures int
}

func newMachine(b Backoff) *machine {
	return &machine{backoff: b, state: StateIdle}
}

func (m *machine) start() {
	if m.state == StateIdle {
		m.state = StateAttempting
	}
}

// Attempts is the number of attempts started so far.
func (m *machine) Attempts() int {
	switch m.state {
	case StateIdle:
		return 0
	case StateSuccess, StateAttempting:
		return m.failures + 1
	default:
		return m.failures
	}
}

func (m *machine) succeed() {
	if m.state == StateAttempting {
		m.state = StateSuccess
	}
}

// fail records a failed attempt. It returns the delay before the next
// attempt, or ok=false when the retry budget is spent.
func (m *machine) fail() (delay time.Duration, ok bool) {
	if m.state != StateAttempting {
		return 0, false
	}
	m.failures++
	if m.failures >= m.backoff.MaxAttempts() {
		m.state = StateExhausted
		return 0, false
	}
	return m.backoff.Delay(m.failures), true
}

// abort ends the machine early, e.g. when the context is cancelled during
// a backoff wait.
func (m *machine) abort() {
	if !m.state.Terminal() {
		m.state = StateExhausted
	}
}
