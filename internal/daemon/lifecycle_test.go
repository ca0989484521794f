package daemon

import (
	"sync"
	"testing"
	"time"
)

// mockEmitter tracks state change events for testing.
type mockEmitter struct {
	mu     sync.Mutex
	events []stateChangeEvent
}

type stateChangeEvent struct {
	previous State
	current  State
	reason   string
}

func (m *mockEmitter) OnStateChange(previous, current State, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, stateChangeEvent{previous, current, reason})
}

func (m *mockEmitter) Events() []stateChangeEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]stateChangeEvent{}, m.events...)
}

func TestNewLifecycle(t *testing.T) {
	l := NewLifecycle(nil, nil)

	if l == nil {
		t.Fatal("NewLifecycle returned nil")
	}
	if l.State() != StateStopped {
		t.Errorf("initial state = %v, want StateStopped", l.State())
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateStopped, "Stopped"},
		{StateStarting, "Starting"},
		{StateRunning, "Running"},
		{StateStopping, "Stopping"},
		{StateCrashed, "Crashed"},
		{State(99), "Unknown"},
	}

	for _, tt := range tests {
		got := tt.state.String()
		if got != tt.want {
			t.Errorf("State(%d).String() = %s, want %s", tt.state, got, tt.want)
		}
	}
}

func TestLifecycle_TransitionTo(t *testing.T) {
	tests := []struct {
		name    string
		from    State
		to      State
		wantErr bool
	}{
		{"stopped to starting", StateStopped, StateStarting, false},
		{"starting to running", StateStarting, StateRunning, false},
		{"starting to stopping", StateStarting, StateStopping, false},
		{"starting to crashed", StateStarting, StateCrashed, false},
		{"running to stopping", StateRunning, StateStopping, false},
		{"running to crashed", StateRunning, StateCrashed, false},
		{"stopping to stopped", StateStopping, StateStopped, false},
		{"stopping to crashed", StateStopping, StateCrashed, false},
		{"crashed to starting", StateCrashed, StateStarting, false},
		{"stopped to running", StateStopped, StateRunning, true},
		{"stopped to stopping", StateStopped, StateStopping, true},
		{"running to starting", StateRunning, StateStarting, true},
		{"starting to stopped", StateStarting, StateStopped, true},
		{"crashed to running", StateCrashed, StateRunning, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewLifecycle(nil, nil)
			l.state = tt.from

			err := l.TransitionTo(tt.to, "test")
			if (err != nil) != tt.wantErr {
				t.Errorf("TransitionTo(%v) from %v: err = %v, wantErr %v", tt.to, tt.from, err, tt.wantErr)
			}
			if !tt.wantErr && l.State() != tt.to {
				t.Errorf("state after transition = %v, want %v", l.State(), tt.to)
			}
			if tt.wantErr && l.State() != tt.from {
				t.Errorf("state after rejected transition = %v, want %v", l.State(), tt.from)
			}
		})
	}
}

func TestLifecycle_EmitsEvents(t *testing.T) {
	emitter := &mockEmitter{}
	l := NewLifecycle(nil, emitter)

	if err := l.TransitionTo(StateStarting, "test start"); err != nil {
		t.Fatalf("TransitionTo(StateStarting) error = %v", err)
	}
	if err := l.TransitionTo(StateRunning, "test run"); err != nil {
		t.Fatalf("TransitionTo(StateRunning) error = %v", err)
	}

	events := emitter.Events()
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].previous != StateStopped || events[0].current != StateStarting {
		t.Errorf("event 0 = %v -> %v, want Stopped -> Starting", events[0].previous, events[0].current)
	}
	if events[1].reason != "test run" {
		t.Errorf("event 1 reason = %q, want %q", events[1].reason, "test run")
	}
}

func TestLifecycle_WaitWithTimeout(t *testing.T) {
	l := NewLifecycle(nil, nil)

	l.AddWorker()
	go func() {
		time.Sleep(10 * time.Millisecond)
		l.WorkerDone()
	}()
	if err := l.WaitWithTimeout(5 * time.Second); err != nil {
		t.Errorf("WaitWithTimeout() error = %v, want nil", err)
	}

	l.AddWorker()
	defer l.WorkerDone()
	if err := l.WaitWithTimeout(20 * time.Millisecond); err != ErrShutdownTimeout {
		t.Errorf("WaitWithTimeout() error = %v, want ErrShutdownTimeout", err)
	}
}
