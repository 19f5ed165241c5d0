package realtime

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	types "github.com/gitscout/gitscout-backend/internal/domain"
	"github.com/gitscout/gitscout-backend/internal/platform/logger"
)

type StepPayload struct {
	Step     string `json:"step"`
	Message  string `json:"message"`
	Progress int    `json:"progress"`
}

type CompletePayload struct {
	SessionID  uuid.UUID `json:"session_id"`
	TotalFound int       `json:"total_found"`
	Progress   int       `json:"progress"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

// ProgressPublisher emits one ordered, single-producer stream per
// discovery request: step events with non-decreasing progress, then
// exactly one terminal event. Anything after the terminal event is
// dropped.
type ProgressPublisher struct {
	log  *logger.Logger
	sink func(Event)

	mu        sync.Mutex
	last      map[string]int
	done      map[string]bool
	doneOrder []string
}

// terminalHistory bounds how many finished streams the publisher
// remembers for late-event suppression.
const terminalHistory = 1024

func NewProgressPublisher(log *logger.Logger, sink func(Event)) *ProgressPublisher {
	return &ProgressPublisher{
		log:  log.With("component", "ProgressPublisher"),
		sink: sink,
		last: make(map[string]int),
		done: make(map[string]bool),
	}
}

func ProgressChannel(searchID uuid.UUID) string {
	return fmt.Sprintf("search:%s", searchID)
}

func (p *ProgressPublisher) Step(searchID uuid.UUID, info types.StepInfo) {
	ch := ProgressChannel(searchID)

	p.mu.Lock()
	if p.done[ch] || info.Progress < p.last[ch] {
		p.mu.Unlock()
		p.log.Warn("dropping out-of-order progress event", "channel", ch, "step", info.Step)
		return
	}
	p.last[ch] = info.Progress
	p.mu.Unlock()

	p.sink(Event{
		Channel: ch,
		Type:    EventStep,
		Data:    StepPayload{Step: info.Step, Message: info.Message, Progress: info.Progress},
	})
}

func (p *ProgressPublisher) Complete(searchID, sessionID uuid.UUID, totalFound int) {
	ch := ProgressChannel(searchID)
	if !p.terminate(ch) {
		return
	}
	p.sink(Event{
		Channel: ch,
		Type:    EventComplete,
		Data:    CompletePayload{SessionID: sessionID, TotalFound: totalFound, Progress: 100},
	})
}

func (p *ProgressPublisher) Error(searchID uuid.UUID, message string) {
	ch := ProgressChannel(searchID)
	if !p.terminate(ch) {
		return
	}
	p.sink(Event{
		Channel: ch,
		Type:    EventError,
		Data:    ErrorPayload{Message: message},
	})
}

// terminate marks the stream finished exactly once and releases its
// ordering state.
func (p *ProgressPublisher) terminate(ch string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done[ch] {
		p.log.Warn("dropping event after terminal", "channel", ch)
		return false
	}
	p.done[ch] = true
	p.doneOrder = append(p.doneOrder, ch)
	delete(p.last, ch)
	if len(p.doneOrder) > terminalHistory {
		oldest := p.doneOrder[0]
		p.doneOrder = p.doneOrder[1:]
		delete(p.done, oldest)
	}
	return true
}
