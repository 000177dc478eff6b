package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/ludo-technologies/astsim/domain"
	"github.com/ludo-technologies/astsim/internal/constants"
)

// Event types delivered to subscribers
const (
	EventConnected = "connected"
	EventProgress  = "progress"
	EventCompleted = "completed"
)

// Event is one notification about a batch group
type Event struct {
	Type      string               `json:"type"`
	GroupID   string               `json:"groupId"`
	Processed int                  `json:"processed,omitempty"`
	Total     int                  `json:"total,omitempty"`
	Message   *domain.BatchMessage `json:"message,omitempty"`
	At        time.Time            `json:"at"`
}

// EventHub fans events out to the subscribers of each group id. Delivery is
// best effort: a subscriber whose buffer is full misses the event, and late
// subscribers receive nothing retroactively.
type EventHub struct {
	mu     sync.Mutex
	subs   map[string]map[chan Event]struct{}
	buffer int
}

// NewEventHub creates a hub whose subscriber channels hold buffer events
func NewEventHub(buffer int) *EventHub {
	if buffer < 1 {
		buffer = 16
	}
	return &EventHub{
		subs:   make(map[string]map[chan Event]struct{}),
		buffer: buffer,
	}
}

// Subscribe registers for the events of groupID. The returned cancel
// function unsubscribes and closes the channel.
func (h *EventHub) Subscribe(groupID string) (<-chan Event, func()) {
	ch := make(chan Event, h.buffer)

	h.mu.Lock()
	if h.subs[groupID] == nil {
		h.subs[groupID] = make(map[chan Event]struct{})
	}
	h.subs[groupID][ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subs[groupID], ch)
			if len(h.subs[groupID]) == 0 {
				delete(h.subs, groupID)
			}
			close(ch)
		})
	}
	return ch, cancel
}

// Subscribers returns the number of subscribers of groupID
func (h *EventHub) Subscribers(groupID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[groupID])
}

func (h *EventHub) publish(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs[ev.GroupID] {
		select {
		case ch <- ev:
		default:
		}
	}
}

// PublishProgress implements domain.EventPublisher
func (h *EventHub) PublishProgress(ctx context.Context, groupID string, processed, total int) error {
	h.publish(Event{Type: EventProgress, GroupID: groupID, Processed: processed, Total: total, At: time.Now().UTC()})
	return nil
}

// PublishCompleted implements domain.EventPublisher
func (h *EventHub) PublishCompleted(ctx context.Context, msg domain.BatchMessage) error {
	h.publish(Event{Type: EventCompleted, GroupID: msg.GroupID, Total: len(msg.SubmissionIDs), Message: &msg, At: time.Now().UTC()})
	return nil
}

// LogPublisher writes events to a structured logger
type LogPublisher struct {
	logger *slog.Logger
}

// NewLogPublisher creates a publisher that logs through logger
func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogPublisher{logger: logger}
}

// PublishProgress implements domain.EventPublisher
func (p *LogPublisher) PublishProgress(ctx context.Context, groupID string, processed, total int) error {
	p.logger.DebugContext(ctx, "batch progress",
		slog.String("group_id", groupID),
		slog.Int("processed", processed),
		slog.Int("total", total))
	return nil
}

// PublishCompleted implements domain.EventPublisher
func (p *LogPublisher) PublishCompleted(ctx context.Context, msg domain.BatchMessage) error {
	p.logger.InfoContext(ctx, "similarity completed",
		slog.String("exchange", constants.ExchangeName),
		slog.String("routing_key", constants.CompletionRoutingKey),
		slog.String("message_type", string(msg.MessageType)),
		slog.String("group_id", msg.GroupID),
		slog.Int64("assignment_id", msg.AssignmentID),
		slog.Int("submissions", len(msg.SubmissionIDs)))
	return nil
}

// MultiPublisher forwards every event to all of its publishers
type MultiPublisher []domain.EventPublisher

// PublishProgress implements domain.EventPublisher
func (m MultiPublisher) PublishProgress(ctx context.Context, groupID string, processed, total int) error {
	var errs []error
	for _, p := range m {
		errs = append(errs, p.PublishProgress(ctx, groupID, processed, total))
	}
	return errors.Join(errs...)
}

// PublishCompleted implements domain.EventPublisher
func (m MultiPublisher) PublishCompleted(ctx context.Context, msg domain.BatchMessage) error {
	var errs []error
	for _, p := range m {
		errs = append(errs, p.PublishCompleted(ctx, msg))
	}
	return errors.Join(errs...)
}
