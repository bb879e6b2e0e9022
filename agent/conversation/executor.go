package conversation

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/BaSui01/agentforum/agent/conversation/command"
	"github.com/BaSui01/agentforum/types"
)

// Executor applies parsed directives on behalf of the participant that
// issued them.
type Executor struct {
	registry       *Registry
	opts           options
	conversationID string
	logger         *zap.Logger
}

// NewExecutor creates an executor bound to registry.
func NewExecutor(registry *Registry, opts ...Option) *Executor {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return newExecutor(registry, o)
}

func newExecutor(registry *Registry, o options) *Executor {
	return &Executor{
		registry:       registry,
		opts:           o,
		conversationID: o.id,
		logger:         o.logger.With(zap.String("component", "command_executor")),
	}
}

// Execute applies directives in textual order and returns one effect per
// directive. A failing directive never prevents the following ones.
func (e *Executor) Execute(ctx context.Context, issuerID string, directives []command.Directive) []Effect {
	if len(directives) == 0 {
		return nil
	}
	effects := make([]Effect, 0, len(directives))
	for _, d := range directives {
		eff := e.apply(ctx, issuerID, d)
		e.opts.metrics.RecordDirective(string(eff.Kind), string(eff.Outcome))
		e.logger.Debug("directive executed",
			zap.String("participant_id", issuerID),
			zap.String("kind", string(eff.Kind)),
			zap.String("outcome", string(eff.Outcome)),
			zap.String("reason", string(eff.Reason)),
		)
		effects = append(effects, eff)
	}
	return effects
}

func (e *Executor) apply(ctx context.Context, issuerID string, d command.Directive) (eff Effect) {
	eff = Effect{Kind: d.Kind, Args: append([]string(nil), d.Args...)}

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("directive panicked",
				zap.String("kind", string(d.Kind)),
				zap.Any("recover", r),
			)
			eff = rejected(eff, types.ErrDirectivePanic)
		}
	}()

	if d.Err != nil {
		return rejected(eff, d.Err.Code)
	}
	if d.Kind == command.KindUnparseable {
		return rejected(eff, types.ErrParseError)
	}

	issuer, ok := e.registry.Get(issuerID)
	if !ok || !issuer.Active {
		return rejected(eff, types.ErrParticipantNotFound)
	}

	switch d.Kind {
	case command.KindAddParticipant:
		return e.addParticipant(eff, issuer, d)

	case command.KindGenerateImage:
		if !e.opts.settings.Features.Images || e.opts.images == nil {
			return rejected(eff, types.ErrFeatureDisabled)
		}
		if !e.opts.settings.Features.AutoImage {
			// recorded only, no image is generated
			eff.Outcome = OutcomeDeferred
			return eff
		}
		ref, err := e.opts.images.GenerateImage(ctx, d.Arg(0))
		if err != nil {
			return e.failed(eff, err)
		}
		eff.Outcome, eff.Result = OutcomeApplied, ref
		return eff

	case command.KindGenerateVideo:
		if !e.opts.settings.Features.Videos || e.opts.videos == nil {
			return rejected(eff, types.ErrFeatureDisabled)
		}
		job, err := e.opts.videos.GenerateVideo(ctx, d.Arg(0))
		if err != nil {
			return e.failed(eff, err)
		}
		eff.Result = job.Ref
		eff.Outcome = OutcomeApplied
		if job.Pending {
			eff.Outcome = OutcomeDeferred
		}
		return eff

	case command.KindSearch:
		if !e.opts.settings.Features.Search || e.opts.searcher == nil {
			return rejected(eff, types.ErrFeatureDisabled)
		}
		text, err := e.opts.searcher.Search(ctx, d.Arg(0))
		if err != nil {
			return e.failed(eff, err)
		}
		eff.Outcome, eff.Result = OutcomeApplied, text
		return eff

	case command.KindSetPrompt:
		if err := e.registry.SetPrompt(issuer.ID, d.Arg(0)); err != nil {
			return e.failed(eff, err)
		}
		eff.Outcome = OutcomeApplied
		return eff

	case command.KindSetTemperature:
		v, err := e.registry.SetTemperature(issuer.ID, d.Value)
		if err != nil {
			return e.failed(eff, err)
		}
		eff.Outcome, eff.Result = OutcomeApplied, strconv.FormatFloat(v, 'f', -1, 64)
		return eff

	case command.KindMuteSelf:
		if err := e.registry.MuteNextTurn(issuer.ID); err != nil {
			return e.failed(eff, err)
		}
		eff.Outcome = OutcomeApplied
		return eff
	}

	return rejected(eff, types.ErrInvalidArgument)
}

func (e *Executor) addParticipant(eff Effect, issuer Participant, d command.Directive) Effect {
	if e.registry.Len() >= e.registry.Limit() {
		return rejected(eff, types.ErrParticipantLimitExceeded)
	}

	persona := d.Arg(1)
	if persona == "" {
		persona = e.opts.settings.InvitePrompt
	}

	modelRef := issuer.ModelRef
	if len(e.opts.catalog) > 0 {
		ref, err := e.opts.catalog.Pick(e.opts.settings.InviteTier, e.registry.ModelsInUse(), e.opts.settings.AllowDuplicateModels)
		if err != nil {
			return e.failed(eff, err)
		}
		modelRef = ref
	}

	p, err := e.registry.Invite(issuer.ID, d.Arg(0), modelRef, persona)
	if err != nil {
		return e.failed(eff, err)
	}

	e.logger.Info("participant invited",
		zap.String("conversation_id", e.conversationID),
		zap.String("inviter", issuer.Label),
		zap.String("label", p.Label),
		zap.String("model", p.ModelRef),
	)
	e.opts.metrics.SetActiveParticipants(e.registry.Len())
	if e.opts.bus != nil {
		e.opts.bus.Publish(Event{
			Type:           EventParticipantAdded,
			ConversationID: e.conversationID,
			Participant:    &p,
		})
	}
	eff.Outcome, eff.Result = OutcomeApplied, p.ID
	return eff
}

func (e *Executor) failed(eff Effect, err error) Effect {
	code := types.CodeOf(err)
	if code == "" {
		code = types.ErrUpstreamError
	}
	e.logger.Warn("directive failed",
		zap.String("kind", string(eff.Kind)),
		zap.String("code", string(code)),
		zap.Error(err),
	)
	return rejected(eff, code)
}

func rejected(eff Effect, code types.ErrorCode) Effect {
	eff.Outcome = OutcomeRejected
	eff.Reason = code
	eff.Result = ""
	return eff
}

// String renders the effect for transcripts.
func (e Effect) String() string {
	if e.Outcome == OutcomeRejected {
		return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Outcome, e.Reason)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Outcome)
}
