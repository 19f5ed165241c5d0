package realtime

import (
	"testing"

	"github.com/google/uuid"

	types "github.com/gitscout/gitscout-backend/internal/domain"
	searchdomain "github.com/gitscout/gitscout-backend/internal/domain/search"
)

func collectPublisher(t *testing.T) (*ProgressPublisher, *[]Event) {
	t.Helper()
	var events []Event
	p := NewProgressPublisher(testLogger(t), func(ev Event) {
		events = append(events, ev)
	})
	return p, &events
}

func TestProgressPublisherOrderedSteps(t *testing.T) {
	p, events := collectPublisher(t)
	id := uuid.New()

	for _, step := range searchdomain.StepOrder {
		p.Step(id, step)
	}
	// Regression below the high-water mark is dropped.
	p.Step(id, types.StepInfo{Step: searchdomain.StepParsingJobDescription, Progress: 5})

	if len(*events) != len(searchdomain.StepOrder) {
		t.Fatalf("events = %d, want regressed step dropped", len(*events))
	}
	for i, want := range searchdomain.StepOrder {
		got := (*events)[i].Data.(StepPayload)
		if got.Step != want.Step || got.Progress != want.Progress {
			t.Fatalf("event %d = %+v, want %+v", i, got, want)
		}
	}
}

func TestProgressPublisherEvictsTerminalHistory(t *testing.T) {
	p, _ := collectPublisher(t)

	first := uuid.New()
	p.Error(first, "failed")
	for i := 0; i < terminalHistory; i++ {
		p.Error(uuid.New(), "failed")
	}

	p.mu.Lock()
	size := len(p.done)
	_, firstRemembered := p.done[ProgressChannel(first)]
	p.mu.Unlock()

	if size > terminalHistory {
		t.Fatalf("done entries = %d, want at most %d", size, terminalHistory)
	}
	if firstRemembered {
		t.Fatal("oldest terminal entry should have been evicted")
	}
}

func TestProgressPublisherSingleTerminal(t *testing.T) {
	p, events := collectPublisher(t)
	id := uuid.New()

	p.Step(id, types.StepInfo{Step: "ranking_results", Progress: 90})
	p.Complete(id, uuid.New(), 12)
	p.Error(id, "late failure")
	p.Complete(id, uuid.New(), 99)
	p.Step(id, types.StepInfo{Step: "ranking_results", Progress: 95})

	if len(*events) != 2 {
		t.Fatalf("events = %d, want step plus one terminal", len(*events))
	}
	last := (*events)[1]
	if last.Type != EventComplete {
		t.Fatalf("terminal type = %q, want %q", last.Type, EventComplete)
	}
	if last.Data.(CompletePayload).TotalFound != 12 {
		t.Fatal("first terminal payload must win")
	}
}

func TestProgressPublisherErrorTerminal(t *testing.T) {
	p, events := collectPublisher(t)
	id := uuid.New()

	p.Error(id, "upstream failed")
	p.Step(id, types.StepInfo{Step: "searching_github", Progress: 45})

	if len(*events) != 1 {
		t.Fatalf("events = %d, want just the error", len(*events))
	}
	if (*events)[0].Type != EventError {
		t.Fatalf("type = %q, want %q", (*events)[0].Type, EventError)
	}
}

func TestProgressPublisherIndependentStreams(t *testing.T) {
	p, events := collectPublisher(t)
	a, b := uuid.New(), uuid.New()

	p.Complete(a, uuid.New(), 1)
	p.Step(b, types.StepInfo{Step: "parsing_job_description", Progress: 10})

	if len(*events) != 2 {
		t.Fatalf("events = %d, terminating one stream must not affect another", len(*events))
	}
}

func TestProgressChannelNaming(t *testing.T) {
	id := uuid.New()
	want := "search:" + id.String()
	if got := ProgressChannel(id); got != want {
		t.Fatalf("ProgressChannel = %q, want %q", got, want)
	}
}
