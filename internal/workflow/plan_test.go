package workflow

import "testing"

func TestRoute_FirstIncomplete(t *testing.T) {
	p := &Plan{ExecutionOrder: []NodeID{NodeResumeAnalyst, NodeJobResearcher, NodeJobMatcher}}
	if got := Route(p, nil); got != NodeResumeAnalyst {
		t.Fatalf("Route: %v", got)
	}
	if got := Route(p, []NodeID{NodeResumeAnalyst}); got != NodeJobResearcher {
		t.Fatalf("Route after one completed: %v", got)
	}
	if got := Route(p, []NodeID{NodeResumeAnalyst, NodeJobResearcher, NodeJobMatcher}); got != NodeTerminal {
		t.Fatalf("Route all completed: %v", got)
	}
}

func TestRoute_Idempotent(t *testing.T) {
	p := &Plan{ExecutionOrder: []NodeID{NodeResumeAnalyst, NodeCVCreator}}
	completed := []NodeID{NodeResumeAnalyst}
	first := Route(p, completed)
	for i := 0; i < 5; i++ {
		if got := Route(p, completed); got != first {
			t.Fatalf("Route not idempotent: %v != %v", got, first)
		}
	}
}

func TestRoute_NilOrEmptyPlan(t *testing.T) {
	if got := Route(nil, nil); got != NodeTerminal {
		t.Fatalf("Route(nil): %v", got)
	}
	if got := Route(&Plan{}, nil); got != NodeTerminal {
		t.Fatalf("Route(empty): %v", got)
	}
}

func TestPlan_Validate(t *testing.T) {
	ok := &Plan{ExecutionOrder: []NodeID{NodeResumeAnalyst, NodeJobMatcher}}
	if err := ok.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	unknown := &Plan{ExecutionOrder: []NodeID{NodeResumeAnalyst, NodeID("stylist")}}
	if err := unknown.Validate(); err == nil {
		t.Fatal("expected error for unknown specialist")
	}
	coord := &Plan{ExecutionOrder: []NodeID{NodeCoordinator}}
	if err := coord.Validate(); err == nil {
		t.Fatal("expected error for coordinator in execution_order")
	}
	dup := &Plan{ExecutionOrder: []NodeID{NodeResumeAnalyst, NodeResumeAnalyst}}
	if err := dup.Validate(); err == nil {
		t.Fatal("expected error for duplicate specialist")
	}
}
