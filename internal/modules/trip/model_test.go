// README: Transition table tests.
package trip

import "testing"

var allStatuses = []Status{
	StatusDraft, StatusScheduled, StatusBoarding, StatusDeparted,
	StatusInTransit, StatusArrived, StatusCompleted, StatusCancelled,
}

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		{StatusDraft, StatusScheduled, true},
		{StatusScheduled, StatusBoarding, true},
		{StatusBoarding, StatusDeparted, true},
		{StatusDeparted, StatusInTransit, true},
		{StatusInTransit, StatusArrived, true},
		{StatusArrived, StatusCompleted, true},
		// cancels from every pre-arrival state
		{StatusDraft, StatusCancelled, true},
		{StatusScheduled, StatusCancelled, true},
		{StatusBoarding, StatusCancelled, true},
		{StatusDeparted, StatusCancelled, true},
		{StatusInTransit, StatusCancelled, true},
		// invalid: arrived trips only complete
		{StatusArrived, StatusCancelled, false},
		// invalid: terminal states
		{StatusCompleted, StatusScheduled, false},
		{StatusCancelled, StatusScheduled, false},
		{StatusCompleted, StatusCancelled, false},
		// invalid: skipping or going back
		{StatusDraft, StatusBoarding, false},
		{StatusScheduled, StatusDeparted, false},
		{StatusBoarding, StatusScheduled, false},
		{StatusInTransit, StatusDeparted, false},
		// invalid: self loops and unknown states
		{StatusBoarding, StatusBoarding, false},
		{Status("PARKED"), StatusScheduled, false},
		{StatusDraft, Status("PARKED"), false},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestNextStatusesReturnsCopy(t *testing.T) {
	next := NextStatuses(StatusDraft)
	next[0] = StatusCompleted
	if !CanTransition(StatusDraft, StatusScheduled) {
		t.Fatalf("mutating NextStatuses result leaked into the table")
	}
	if CanTransition(StatusDraft, StatusCompleted) {
		t.Fatalf("table gained an edge through a returned slice")
	}
}

func TestTerminalStatuses(t *testing.T) {
	for _, s := range allStatuses {
		want := s == StatusCompleted || s == StatusCancelled
		if got := s.Terminal(); got != want {
			t.Errorf("%s.Terminal() = %v, want %v", s, got, want)
		}
	}
	if Status("PARKED").Valid() {
		t.Fatalf("unknown status reported valid")
	}
}

// Every status must be reachable from DRAFT.
func TestAllStatusesReachable(t *testing.T) {
	seen := map[Status]bool{StatusDraft: true}
	queue := []Status{StatusDraft}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, n := range NextStatuses(cur) {
			if !seen[n] {
				seen[n] = true
				queue = append(queue, n)
			}
		}
	}
	for _, s := range allStatuses {
		if !seen[s] {
			t.Errorf("%s is not reachable from DRAFT", s)
		}
	}
}
