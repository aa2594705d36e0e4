package deploy

import "testing"

func TestState_CanTransition(t *testing.T) {
	tests := []struct {
		from, to State
		want     bool
	}{
		{StateIdle, StateArchitectureSelected, true},
		{StateIdle, StateInstalled, false},
		{StateArchitectureSelected, StateLaunched, true},
		{StateInstalled, StateCommandLineOnly, true},
		{StateInstalled, StateLaunched, false},
		{StateStaged, StateLaunched, true},
		{StateLaunched, StateSuccess, true},
		{StateMonitoring, StateTimeout, true},
		{StateMonitoring, StateError, true},
		{StateSuccess, StateError, false},
		{StateError, StateError, false},
		{StateTimeout, StateLaunched, false},
	}

	for _, tt := range tests {
		if got := tt.from.CanTransition(tt.to); got != tt.want {
			t.Errorf("%s -> %s = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestMachine_AdvanceKeepsStateOnError(t *testing.T) {
	m := newMachine("@R58M", nopLogger{})
	if err := m.advance(StateArchitectureSelected); err != nil {
		t.Fatalf("advance() error = %v", err)
	}
	if err := m.advance(StateStaged); err == nil {
		t.Fatal("advance(staged) from architecture-selected succeeded")
	}
	if m.state != StateArchitectureSelected || len(m.states()) != 2 {
		t.Errorf("state = %s, history = %v", m.state, m.states())
	}
}
