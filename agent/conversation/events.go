package conversation

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// EventType names a conversation lifecycle event.
type EventType string

const (
	EventConversationStarted   EventType = "conversation_started"
	EventMessageAppended       EventType = "message_appended"
	EventParticipantAdded      EventType = "participant_added"
	EventTurnSkipped           EventType = "turn_skipped"
	EventConversationCompleted EventType = "conversation_completed"
	EventConversationAborted   EventType = "conversation_aborted"
)

// Event is emitted to presentation and reporting collaborators. Only the
// field matching Type is set.
type Event struct {
	Type           EventType    `json:"type"`
	ConversationID string       `json:"conversation_id"`
	Timestamp      time.Time    `json:"timestamp"`
	Message        *Message     `json:"message,omitempty"`
	Participant    *Participant `json:"participant,omitempty"`
	Round          int          `json:"round"`
	Reason         string       `json:"reason,omitempty"`
}

// EventBus fans events out to buffered subscriber channels. Publish never
// blocks; a subscriber whose buffer is full misses the event.
type EventBus struct {
	mu      sync.RWMutex
	subs    map[int64]chan Event
	closed  bool
	nextID  atomic.Int64
	dropped atomic.Int64
	logger  *zap.Logger
}

// NewEventBus creates an event bus with no subscribers.
func NewEventBus(logger *zap.Logger) *EventBus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventBus{
		subs:   make(map[int64]chan Event),
		logger: logger.With(zap.String("component", "event_bus")),
	}
}

// Subscribe returns a channel receiving every subsequent event and a
// function that unsubscribes and closes it.
func (b *EventBus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Event, buffer)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := b.nextID.Add(1)
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if c, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(c)
			}
		})
	}
}

// Publish delivers ev to every subscriber without blocking.
func (b *EventBus) Publish(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for id, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			b.dropped.Add(1)
			b.logger.Warn("subscriber buffer full, event dropped",
				zap.Int64("subscription", id),
				zap.String("event", string(ev.Type)),
			)
		}
	}
}

// Dropped returns the number of undelivered events.
func (b *EventBus) Dropped() int64 {
	return b.dropped.Load()
}

// Close closes every subscriber channel. Later publishes are no-ops.
func (b *EventBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
