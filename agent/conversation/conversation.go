package conversation

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/BaSui01/agentforum/agent/conversation/command"
	"github.com/BaSui01/agentforum/llm/retry"
	"github.com/BaSui01/agentforum/types"
)

// Status is the conversation lifecycle state.
type Status string

const (
	StatusInitialized Status = "Initialized"
	StatusRunning     Status = "Running"
	StatusCompleted   Status = "Completed"
	StatusAborted     Status = "Aborted"
)

// Turn outcomes reported to the metrics recorder.
const (
	TurnOK      = "ok"
	TurnSkipped = "skipped"
	TurnEmpty   = "empty"
	TurnError   = "error"
)

// Seed describes a participant present when the conversation starts.
type Seed struct {
	Label    string
	ModelRef string
	Prompt   string
}

// Snapshot is a point-in-time view of the conversation.
type Snapshot struct {
	ID           string        `json:"id"`
	Status       Status        `json:"status"`
	Mode         Mode          `json:"mode"`
	TurnIndex    int           `json:"turn_index"`
	MaxTurns     int           `json:"max_turns"`
	AbortReason  string        `json:"abort_reason,omitempty"`
	Participants []Participant `json:"participants"`
	Messages     int           `json:"messages"`
	Tokens       int           `json:"tokens"`
	StartedAt    time.Time     `json:"started_at,omitempty"`
	EndedAt      time.Time     `json:"ended_at,omitempty"`
}

// Conversation drives rounds over the participant registry. Turns run
// strictly one after another.
type Conversation struct {
	id       string
	opts     options
	registry *Registry
	log      *Log
	executor *Executor
	bus      *EventBus
	retryer  *retry.Retryer
	logger   *zap.Logger

	mu          sync.RWMutex
	status      Status
	turnIndex   int
	abortReason string
	startedAt   time.Time
	endedAt     time.Time

	cancelled    atomic.Bool
	cancelReason atomic.Value
	human        chan string
	done         chan struct{}
}

// New creates a conversation seeded with the given participants.
func New(seeds []Seed, opts ...Option) (*Conversation, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if err := o.settings.Validate(); err != nil {
		return nil, types.WrapError(err, types.ErrInvalidArgument, "invalid settings")
	}
	if o.gateway == nil {
		return nil, types.NewError(types.ErrInvalidArgument, "model gateway is required")
	}
	if len(seeds) == 0 {
		return nil, types.NewError(types.ErrInvalidArgument, "at least one participant is required")
	}
	if o.id == "" {
		o.id = uuid.NewString()
	}
	if o.bus == nil {
		o.bus = NewEventBus(o.logger)
	}

	logger := o.logger.With(
		zap.String("component", "conversation"),
		zap.String("conversation_id", o.id),
	)
	registry := NewRegistry(
		WithParticipantLimit(o.settings.MaxParticipants),
		WithDefaultTemperature(o.settings.DefaultTemperature),
		WithRegistryLogger(o.logger),
	)
	for _, s := range seeds {
		if _, err := registry.Add(s.Label, s.ModelRef, s.Prompt); err != nil {
			return nil, err
		}
	}

	emptyPolicy := retry.ImmediateRetryPolicy(1, types.ErrEmptyResponse)
	emptyPolicy.OnRetry = func(int, error, time.Duration) { o.metrics.RecordEmptyRetry() }

	queue := o.settings.HumanQueue
	if queue < 1 {
		queue = 1
	}

	c := &Conversation{
		id:       o.id,
		opts:     o,
		registry: registry,
		log:      NewLog(o.counter),
		executor: newExecutor(registry, o),
		bus:      o.bus,
		retryer:  retry.New(emptyPolicy, o.logger),
		logger:   logger,
		status:   StatusInitialized,
		human:    make(chan string, queue),
		done:     make(chan struct{}),
	}
	o.metrics.SetActiveParticipants(registry.Len())
	return c, nil
}

// ID returns the conversation id.
func (c *Conversation) ID() string { return c.id }

// Registry returns the participant registry. Callers outside the engine
// must only read from it.
func (c *Conversation) Registry() *Registry { return c.registry }

// Log returns the conversation log.
func (c *Conversation) Log() *Log { return c.log }

// Events returns the event bus.
func (c *Conversation) Events() *EventBus { return c.bus }

// Status returns the current status.
func (c *Conversation) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

// Snapshot returns a copy of the conversation state.
func (c *Conversation) Snapshot() Snapshot {
	c.mu.RLock()
	s := Snapshot{
		ID:          c.id,
		Status:      c.status,
		Mode:        c.opts.settings.Mode,
		TurnIndex:   c.turnIndex,
		MaxTurns:    c.opts.settings.MaxTurns,
		AbortReason: c.abortReason,
		StartedAt:   c.startedAt,
		EndedAt:     c.endedAt,
	}
	c.mu.RUnlock()
	s.Participants = c.registry.Active()
	s.Messages = c.log.Len()
	s.Tokens = c.log.TokenCount()
	return s
}

// Cancel requests cooperative cancellation. It takes effect after the turn
// in flight completes.
func (c *Conversation) Cancel(reason string) {
	if reason == "" {
		reason = "cancelled"
	}
	if c.cancelled.CompareAndSwap(false, true) {
		c.cancelReason.Store(reason)
		c.logger.Info("cancellation requested", zap.String("reason", reason))
	}
}

// Inject queues a human message. It is appended at the next turn boundary.
func (c *Conversation) Inject(text string) error {
	if c.opts.settings.Mode != ModeHumanAI {
		return types.NewError(types.ErrInvalidState, "human messages require human-ai mode")
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return types.NewError(types.ErrMissingArgument, "message is empty")
	}
	// finish flips status under c.mu and drains once more afterwards.
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.status {
	case StatusCompleted, StatusAborted:
		return types.NewError(types.ErrInvalidState, "conversation has finished")
	}
	select {
	case c.human <- text:
		return nil
	default:
		return types.NewError(types.ErrRateLimited, "human message queue is full").WithRetryable(true)
	}
}

// Start runs the conversation on its own goroutine.
func (c *Conversation) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.status != StatusInitialized {
		c.mu.Unlock()
		return types.Errorf(types.ErrInvalidState, "conversation is %s", c.status)
	}
	c.status = StatusRunning
	c.mu.Unlock()

	go c.run(ctx)
	return nil
}

// Wait blocks until the run finishes or ctx is done.
func (c *Conversation) Wait(ctx context.Context) error {
	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed when the run finishes.
func (c *Conversation) Done() <-chan struct{} { return c.done }

// Run runs the conversation to completion or cancellation.
func (c *Conversation) Run(ctx context.Context) error {
	if err := c.Start(ctx); err != nil {
		return err
	}
	<-c.done
	return nil
}

func (c *Conversation) run(ctx context.Context) {
	defer close(c.done)

	c.mu.Lock()
	c.startedAt = time.Now()
	c.mu.Unlock()

	maxTurns := c.opts.settings.MaxTurns
	ctx = types.WithConversationID(ctx, c.id)
	ctx, span := c.opts.tracer.Start(ctx, "conversation.run", trace.WithAttributes(
		attribute.String("conversation.id", c.id),
		attribute.Int("conversation.max_turns", maxTurns),
		attribute.String("conversation.mode", string(c.opts.settings.Mode)),
	))
	defer span.End()

	c.logger.Info("conversation started",
		zap.Int("participants", c.registry.Len()),
		zap.Int("max_turns", maxTurns),
		zap.String("mode", string(c.opts.settings.Mode)),
	)
	c.bus.Publish(Event{Type: EventConversationStarted, ConversationID: c.id})

	for {
		round := c.turnIndexValue()
		if round >= maxTurns {
			c.finish(StatusCompleted, "")
			span.SetStatus(codes.Ok, "completed")
			return
		}
		if reason, stop := c.shouldStop(ctx); stop {
			c.finish(StatusAborted, reason)
			span.SetAttributes(attribute.String("conversation.abort_reason", reason))
			return
		}
		if reason, aborted := c.runRound(ctx, round); aborted {
			c.finish(StatusAborted, reason)
			span.SetAttributes(attribute.String("conversation.abort_reason", reason))
			return
		}

		c.mu.Lock()
		c.turnIndex++
		c.mu.Unlock()
		c.logger.Debug("round completed", zap.Int("round", round))
	}
}

// runRound runs one pass over the participants active at round start.
func (c *Conversation) runRound(ctx context.Context, round int) (string, bool) {
	snapshot := c.registry.Active()
	c.drainHuman(round)

	for _, p := range snapshot {
		c.turn(ctx, round, p)
		c.drainHuman(round)

		if reason, stop := c.shouldStop(ctx); stop {
			return reason, true
		}
	}
	return "", false
}

func (c *Conversation) turn(ctx context.Context, round int, p Participant) {
	logger := c.logger.With(
		zap.String("participant_id", p.ID),
		zap.String("label", p.Label),
		zap.Int("round", round),
	)

	if c.registry.ConsumeMute(p.ID) {
		logger.Info("turn skipped, participant muted")
		c.opts.metrics.RecordTurn(TurnSkipped)
		pp := p
		c.bus.Publish(Event{
			Type:           EventTurnSkipped,
			ConversationID: c.id,
			Participant:    &pp,
			Round:          round,
		})
		return
	}

	ctx = types.WithParticipantID(types.WithRound(ctx, round), p.ID)
	ctx, span := c.opts.tracer.Start(ctx, "conversation.turn", trace.WithAttributes(
		attribute.String("participant.id", p.ID),
		attribute.String("participant.label", p.Label),
		attribute.Int("conversation.round", round),
	))
	defer span.End()

	current, ok := c.registry.Get(p.ID)
	if !ok {
		current = p
	}
	req := CompletionRequest{
		ModelRef:     current.ModelRef,
		SystemPrompt: current.SystemPrompt,
		Temperature:  current.Temperature,
		History:      c.history(),
		SpeakerID:    current.ID,
		SpeakerLabel: current.Label,
	}

	msg := Message{
		SpeakerID:    p.ID,
		SpeakerLabel: p.Label,
		Kind:         MessageParticipant,
		Round:        round,
	}

	text, err := c.complete(ctx, req)
	outcome := TurnOK
	switch {
	case types.IsErrorCode(err, types.ErrEmptyResponse):
		outcome = TurnEmpty
		msg.Effects = []Effect{{
			Kind:    EffectEmptyResponse,
			Outcome: OutcomeRejected,
			Reason:  types.ErrEmptyResponse,
		}}
		logger.Warn("empty response after retry")
	case err != nil:
		outcome = TurnError
		code := types.CodeOf(err)
		if code == "" {
			code = types.ErrUpstreamError
		}
		msg.Effects = []Effect{{
			Kind:    EffectGatewayError,
			Outcome: OutcomeRejected,
			Reason:  code,
		}}
		span.RecordError(err)
		span.SetStatus(codes.Error, string(code))
		logger.Warn("model gateway failed", zap.String("code", string(code)), zap.Error(err))
	default:
		parsed := command.Parse(text)
		msg.RawText = text
		msg.DisplayText = parsed.DisplayText
		msg.Effects = c.executor.Execute(ctx, p.ID, parsed.Directives)
		if len(parsed.Unknown) > 0 {
			logger.Debug("unknown directives left in text", zap.Strings("names", parsed.Unknown))
		}
	}

	stored := c.log.Append(msg)
	c.opts.metrics.RecordTurn(outcome)
	span.SetAttributes(attribute.Int("message.sequence", stored.Sequence))
	logger.Debug("turn completed",
		zap.Int("sequence", stored.Sequence),
		zap.Int("effects", len(stored.Effects)),
		zap.String("outcome", outcome),
	)
	c.bus.Publish(Event{
		Type:           EventMessageAppended,
		ConversationID: c.id,
		Message:        &stored,
		Round:          round,
	})
}

// complete invokes the gateway, retrying once on an empty reply.
func (c *Conversation) complete(ctx context.Context, req CompletionRequest) (string, error) {
	return retry.Do(c.retryer, ctx, func() (string, error) {
		text, err := c.opts.gateway.Complete(ctx, req)
		if err != nil {
			return "", err
		}
		if strings.TrimSpace(text) == "" {
			return "", types.NewError(types.ErrEmptyResponse, "model returned no content")
		}
		return text, nil
	})
}

// history returns the visible conversation so far. Turns that produced no
// text are omitted.
func (c *Conversation) history() []HistoryEntry {
	msgs := c.log.Snapshot()
	out := make([]HistoryEntry, 0, len(msgs))
	for _, m := range msgs {
		text := m.DisplayText
		if text == "" {
			continue
		}
		out = append(out, HistoryEntry{
			SpeakerID:    m.SpeakerID,
			SpeakerLabel: m.SpeakerLabel,
			Kind:         m.Kind,
			Text:         text,
		})
	}
	return out
}

func (c *Conversation) drainHuman(round int) {
	for {
		select {
		case text := <-c.human:
			stored := c.log.Append(Message{
				SpeakerID:    HumanSpeakerID,
				SpeakerLabel: HumanLabel,
				Kind:         MessageHuman,
				RawText:      text,
				DisplayText:  text,
				Round:        round,
			})
			c.bus.Publish(Event{
				Type:           EventMessageAppended,
				ConversationID: c.id,
				Message:        &stored,
				Round:          round,
			})
		default:
			return
		}
	}
}

func (c *Conversation) shouldStop(ctx context.Context) (string, bool) {
	if c.cancelled.Load() {
		reason, _ := c.cancelReason.Load().(string)
		return reason, true
	}
	if err := ctx.Err(); err != nil {
		return err.Error(), true
	}
	return "", false
}

func (c *Conversation) finish(status Status, reason string) {
	c.mu.Lock()
	c.status = status
	c.abortReason = reason
	c.endedAt = time.Now()
	rounds := c.turnIndex
	c.mu.Unlock()

	last := rounds
	if status == StatusCompleted && last > 0 {
		last--
	}
	c.drainHuman(last)

	ev := Event{ConversationID: c.id, Round: rounds, Reason: reason}
	if status == StatusCompleted {
		ev.Type = EventConversationCompleted
		c.logger.Info("conversation completed",
			zap.Int("rounds", rounds),
			zap.Int("messages", c.log.Len()),
			zap.Int("tokens", c.log.TokenCount()),
		)
	} else {
		ev.Type = EventConversationAborted
		c.logger.Info("conversation aborted",
			zap.String("reason", reason),
			zap.Int("rounds", rounds),
			zap.Int("messages", c.log.Len()),
		)
	}
	c.bus.Publish(ev)
}

func (c *Conversation) turnIndexValue() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.turnIndex
}
