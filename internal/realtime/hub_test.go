package realtime

import (
	"testing"

	"github.com/gitscout/gitscout-backend/internal/platform/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("init logger: %v", err)
	}
	return log
}

func TestHubBroadcastReachesSubscribers(t *testing.T) {
	h := NewHub(testLogger(t))

	a := h.Subscribe("search:1")
	b := h.Subscribe("search:1")
	other := h.Subscribe("search:2")
	defer h.Unsubscribe(a)
	defer h.Unsubscribe(b)
	defer h.Unsubscribe(other)

	h.Broadcast(Event{Channel: "search:1", Type: EventStep})

	for _, c := range []*Client{a, b} {
		select {
		case ev := <-c.Outbound:
			if ev.Type != EventStep {
				t.Fatalf("event type = %q, want %q", ev.Type, EventStep)
			}
		default:
			t.Fatal("subscriber did not receive the event")
		}
	}
	select {
	case <-other.Outbound:
		t.Fatal("event leaked to another channel")
	default:
	}
}

func TestHubDropsWhenBufferFull(t *testing.T) {
	h := NewHub(testLogger(t))
	c := h.Subscribe("search:1")
	defer h.Unsubscribe(c)

	for i := 0; i < cap(c.Outbound)+5; i++ {
		h.Broadcast(Event{Channel: "search:1", Type: EventStep})
	}

	if got := len(c.Outbound); got != cap(c.Outbound) {
		t.Fatalf("buffered events = %d, want %d with overflow dropped", got, cap(c.Outbound))
	}
}

func TestHubUnsubscribeStopsDelivery(t *testing.T) {
	h := NewHub(testLogger(t))
	c := h.Subscribe("search:1")

	h.Unsubscribe(c)
	h.Broadcast(Event{Channel: "search:1", Type: EventStep})

	select {
	case <-c.Outbound:
		t.Fatal("unsubscribed client received an event")
	default:
	}
	select {
	case <-c.done:
	default:
		t.Fatal("done channel should be closed on unsubscribe")
	}
}

func TestEventIsTerminal(t *testing.T) {
	tests := []struct {
		typ  string
		want bool
	}{
		{EventStep, false},
		{EventComplete, true},
		{EventError, true},
	}
	for _, tt := range tests {
		if got := (Event{Type: tt.typ}).IsTerminal(); got != tt.want {
			t.Fatalf("IsTerminal(%s) = %v, want %v", tt.typ, got, tt.want)
		}
	}
}
