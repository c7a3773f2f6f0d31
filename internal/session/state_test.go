package session

import "testing"

func TestCanTransitionAllowsSpecDiagramEdges(t *testing.T) {
	edges := []struct {
		from, to State
	}{
		{StateInitializing, StateReady},
		{StateReady, StateActive},
		{StateActive, StateDraining},
		{StateActive, StateReady}, // the diagram's "fail" loop back to Ready
		{StateReady, StateDraining},
		{StateInitializing, StateDraining},
		{StateDraining, StateTerminated},
	}
	for _, e := range edges {
		if !canTransition(e.from, e.to) {
			t.Errorf("expected %s -> %s to be allowed", e.from, e.to)
		}
	}
}

func TestCanTransitionRejectsInvalidEdges(t *testing.T) {
	edges := []struct {
		from, to State
	}{
		{StateInitializing, StateActive},
		{StateTerminated, StateReady},
		{StateDraining, StateActive},
		{StateReady, StateInitializing},
		{StateActive, StateTerminated},
	}
	for _, e := range edges {
		if canTransition(e.from, e.to) {
			t.Errorf("expected %s -> %s to be rejected", e.from, e.to)
		}
	}
}

func TestStateStringCoversAllValues(t *testing.T) {
	states := []State{StateInitializing, StateReady, StateActive, StateDraining, StateTerminated}
	for _, s := range states {
		if s.String() == "unknown" {
			t.Errorf("state %d missing a String() case", s)
		}
	}
}

func TestControllerTransitionRejectsInvalidMove(t *testing.T) {
	c := NewController(Config{SessionID: "s1"}, nil, nil, nil, nil)
	if err := c.transition(StateActive); err == nil {
		t.Fatal("expected Initializing -> Active to be rejected")
	}
	if c.State() != StateInitializing {
		t.Fatalf("rejected transition must not change state, got %s", c.State())
	}
}

func TestControllerTransitionAppliesValidMove(t *testing.T) {
	c := NewController(Config{SessionID: "s1"}, nil, nil, nil, nil)
	if err := c.transition(StateReady); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.State() != StateReady {
		t.Fatalf("expected state Ready, got %s", c.State())
	}
}
