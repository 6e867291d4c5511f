package dispatch

import (
	"testing"

	"lead-manager-backend/internal/agents"
)

func TestEligibleFiltersByWindowAndActive(t *testing.T) {
	pool := []agents.Agent{
		{ID: "a", Name: "Ana", StartHour: 8, EndHour: 18, Active: true},
		{ID: "b", Name: "Bruno", StartHour: 14, EndHour: 22, Active: true},
		{ID: "c", Name: "Carla", StartHour: 8, EndHour: 18, Active: false},
		{ID: "d", Name: "Davi", StartHour: 18, EndHour: 23, Active: true},
	}

	got := Eligible(pool, 10)
	if len(got) != 1 || got[0].ID != "a" {
		t.Fatalf("Eligible at hour 10 = %v, want only agent a", ids(got))
	}

	got = Eligible(pool, 15)
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "b" {
		t.Fatalf("Eligible at hour 15 = %v, want [a b] in pool order", ids(got))
	}

	// End hour is exclusive.
	got = Eligible(pool, 18)
	if len(got) != 2 || got[0].ID != "b" || got[1].ID != "d" {
		t.Fatalf("Eligible at hour 18 = %v, want [b d]", ids(got))
	}

	if got := Eligible(pool, 3); len(got) != 0 {
		t.Fatalf("Eligible at hour 3 = %v, want empty", ids(got))
	}
}

func TestAllocatorRoundRobin(t *testing.T) {
	eligible := []agents.Agent{
		{ID: "a", Name: "Ana"},
		{ID: "b", Name: "Bruno"},
		{ID: "c", Name: "Carla"},
	}
	alloc := NewAllocator(eligible)

	want := []string{"a", "b", "c", "a", "b", "c", "a"}
	for i, id := range want {
		if got := alloc.Next(); got.ID != id {
			t.Fatalf("Next() call %d = %s, want %s", i, got.ID, id)
		}
	}
}

func TestAllocatorSingleAgent(t *testing.T) {
	alloc := NewAllocator([]agents.Agent{{ID: "only"}})
	for i := 0; i < 5; i++ {
		if got := alloc.Next(); got.ID != "only" {
			t.Fatalf("Next() call %d = %s, want only", i, got.ID)
		}
	}
}

func ids(list []agents.Agent) []string {
	out := make([]string, 0, len(list))
	for _, a := range list {
		out = append(out, a.ID)
	}
	return out
}
