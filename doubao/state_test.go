package doubao

import "testing"

func TestStateMachineHappyPath(t *testing.T) {
	m := NewStateMachine()

	steps := []LifecycleState{
		StateConnecting,
		StateConnected,
		StateSessionStarting,
		StateSessionActive,
		StateSessionEnding,
		StateConnected,
	}
	for _, next := range steps {
		if !m.Transition(next) {
			t.Fatalf("transition to %v should be legal from %v", next, m.Current())
		}
	}
}

func TestStateMachineRejectsIllegalEdge(t *testing.T) {
	m := NewStateMachine()
	if m.Transition(StateSessionActive) {
		t.Fatal("IDLE -> SESSION_ACTIVE should be rejected")
	}
	if m.Current() != StateIdle {
		t.Errorf("Current() = %v, want IDLE after a rejected transition", m.Current())
	}
}

func TestCanSendAudioOnlyWhenSessionActive(t *testing.T) {
	m := NewStateMachine()
	if m.CanSendAudio() {
		t.Fatal("CanSendAudio should be false in IDLE")
	}
	m.Transition(StateConnecting)
	m.Transition(StateConnected)
	if m.CanSendAudio() {
		t.Fatal("CanSendAudio should be false in CONNECTED")
	}
	m.Transition(StateSessionStarting)
	m.Transition(StateSessionActive)
	if !m.CanSendAudio() {
		t.Fatal("CanSendAudio should be true in SESSION_ACTIVE")
	}
}

func TestCanStartSessionWindow(t *testing.T) {
	m := NewStateMachine()
	m.Transition(StateConnecting)
	m.Transition(StateConnected)
	if !m.CanStartSession() {
		t.Fatal("CanStartSession should be true in CONNECTED")
	}
	m.Transition(StateSessionStarting)
	if !m.CanStartSession() {
		t.Fatal("CanStartSession should still be true in SESSION_STARTING")
	}
	m.Transition(StateSessionActive)
	if m.CanStartSession() {
		t.Fatal("CanStartSession should be false once SESSION_ACTIVE")
	}
}

func TestClosedIsTerminal(t *testing.T) {
	m := NewStateMachine()
	m.Transition(StateConnecting)
	m.Transition(StateClosed)
	if !m.IsTerminal() {
		t.Fatal("IsTerminal should be true once CLOSED")
	}
	if m.Transition(StateConnecting) {
		t.Fatal("no transition out of CLOSED should be legal")
	}
}
