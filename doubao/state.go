package doubao

// LifecycleState enumerates the session state machine: IDLE ->
// CONNECTING -> CONNECTED -> SESSION_STARTING -> SESSION_ACTIVE ->
// SESSION_ENDING -> CLOSED.
type LifecycleState int

const (
	StateIdle LifecycleState = iota
	StateConnecting
	StateConnected
	StateSessionStarting
	StateSessionActive
	StateSessionEnding
	StateClosed
)

func (s LifecycleState) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateSessionStarting:
		return "SESSION_STARTING"
	case StateSessionActive:
		return "SESSION_ACTIVE"
	case StateSessionEnding:
		return "SESSION_ENDING"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// transitions lists the only state changes the machine allows.
// Transition refuses any change outside these edges, returning false
// and leaving the state unchanged, rather than forcing it through.
var transitions = map[LifecycleState]map[LifecycleState]bool{
	StateIdle:            {StateConnecting: true},
	StateConnecting:      {StateConnected: true, StateClosed: true},
	StateConnected:       {StateSessionStarting: true, StateSessionActive: true, StateClosed: true},
	StateSessionStarting: {StateSessionActive: true, StateClosed: true},
	StateSessionActive:   {StateSessionEnding: true, StateClosed: true},
	StateSessionEnding:   {StateIdle: true, StateConnected: true, StateClosed: true},
	StateClosed:          {},
}

// CanTransition reports whether moving from `from` to `to` is a legal
// edge of the state machine.
func CanTransition(from, to LifecycleState) bool {
	return transitions[from][to]
}

// StateMachine tracks the current lifecycle state for a Session and
// gates frame emission accordingly. Like Session, it is only ever
// touched from the owning Bridge's single select loop.
type StateMachine struct {
	current LifecycleState
}

// NewStateMachine starts a machine in StateIdle.
func NewStateMachine() *StateMachine {
	return &StateMachine{current: StateIdle}
}

// Current returns the machine's current state.
func (m *StateMachine) Current() LifecycleState {
	return m.current
}

// Transition attempts to move to `to`, returning false (and leaving
// the state unchanged) if the edge isn't legal.
func (m *StateMachine) Transition(to LifecycleState) bool {
	if !CanTransition(m.current, to) {
		return false
	}
	m.current = to
	return true
}

// CanSendAudio reports whether the session gate is open: audio frames
// may only be forwarded upstream once SESSION_ACTIVE.
func (m *StateMachine) CanSendAudio() bool {
	return m.current == StateSessionActive
}

// CanSendTaskRequest mirrors CanSendAudio for text turns; both are
// TASK_REQUEST-shaped and gated identically.
func (m *StateMachine) CanSendTaskRequest() bool {
	return m.current == StateSessionActive
}

// CanStartSession reports whether the connection gate is open: a
// START_SESSION frame may only be sent once CONNECTED.
func (m *StateMachine) CanStartSession() bool {
	return m.current == StateConnected || m.current == StateSessionStarting
}

// IsTerminal reports whether the session has reached CLOSED and the
// Bridge should stop processing entirely.
func (m *StateMachine) IsTerminal() bool {
	return m.current == StateClosed
}
