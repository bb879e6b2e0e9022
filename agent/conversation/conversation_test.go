package conversation

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/BaSui01/agentforum/types"
)

func seeds(n int) []Seed {
	out := make([]Seed, n)
	for i := range out {
		out[i] = Seed{
			Label:    fmt.Sprintf("AI-%d", i+1),
			ModelRef: "openai/gpt-4o-mini",
			Prompt:   fmt.Sprintf("You are participant %d.", i+1),
		}
	}
	return out
}

func newTestConversation(t *testing.T, n, turns int, gw ModelGateway, opts ...Option) *Conversation {
	t.Helper()
	s := DefaultSettings()
	s.MaxTurns = turns
	all := append([]Option{
		WithSettings(s),
		WithGateway(gw),
		WithLogger(zaptest.NewLogger(t)),
	}, opts...)
	c, err := New(seeds(n), all...)
	require.NoError(t, err)
	return c
}

func labels(msgs []Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.SpeakerLabel
	}
	return out
}

func TestNew_Validation(t *testing.T) {
	gw := newScriptedGateway("hi")

	_, err := New(seeds(1))
	assert.True(t, types.IsErrorCode(err, types.ErrInvalidArgument), "gateway required")

	_, err = New(nil, WithGateway(gw))
	assert.True(t, types.IsErrorCode(err, types.ErrInvalidArgument), "participants required")

	s := DefaultSettings()
	s.MaxTurns = 0
	_, err = New(seeds(1), WithGateway(gw), WithSettings(s))
	assert.Error(t, err)

	_, err = New(seeds(6), WithGateway(gw))
	assert.True(t, types.IsErrorCode(err, types.ErrParticipantLimitExceeded))

	dup := []Seed{{Label: "A"}, {Label: "A"}}
	_, err = New(dup, WithGateway(gw))
	assert.True(t, types.IsErrorCode(err, types.ErrDuplicateLabel))
}

func TestRun_RoundRobinCompletes(t *testing.T) {
	gw := newScriptedGateway("Hello.")
	c := newTestConversation(t, 3, 2, gw)

	require.NoError(t, c.Run(context.Background()))

	assert.Equal(t, StatusCompleted, c.Status())
	msgs := c.Log().Snapshot()
	assert.Equal(t, []string{"AI-1", "AI-2", "AI-3", "AI-1", "AI-2", "AI-3"}, labels(msgs))
	for i, m := range msgs {
		assert.Equal(t, i, m.Sequence)
		assert.Equal(t, i/3, m.Round)
		assert.Equal(t, "Hello.", m.DisplayText)
	}
	snap := c.Snapshot()
	assert.Equal(t, 2, snap.TurnIndex)
	assert.False(t, snap.EndedAt.IsZero())
}

func TestRun_CannotRunTwice(t *testing.T) {
	c := newTestConversation(t, 1, 1, newScriptedGateway("hi"))
	require.NoError(t, c.Run(context.Background()))

	err := c.Run(context.Background())
	assert.True(t, types.IsErrorCode(err, types.ErrInvalidState))
	assert.Equal(t, StatusCompleted, c.Status())
}

func TestRun_HistoryAndPromptFlow(t *testing.T) {
	gw := newScriptedGateway("ok").
		script("AI-1", "First thoughts.\n!prompt \"Be brief.\"\n!temperature 0.2")
	c := newTestConversation(t, 2, 2, gw)

	require.NoError(t, c.Run(context.Background()))

	first := gw.callsFor("AI-1")
	require.Len(t, first, 2)
	assert.Equal(t, "You are participant 1.", first[0].SystemPrompt)
	assert.Empty(t, first[0].History)
	assert.Equal(t, DefaultTemperature, first[0].Temperature)

	// 指令在下一次调用时生效
	assert.Equal(t, "Be brief.", first[1].SystemPrompt)
	assert.Equal(t, 0.2, first[1].Temperature)
	require.Len(t, first[1].History, 2)
	assert.Equal(t, "First thoughts.", first[1].History[0].Text)

	second := gw.callsFor("AI-2")
	require.Len(t, second[0].History, 1)
	assert.Equal(t, "AI-1", second[0].History[0].SpeakerLabel)
}

func TestRun_EmptyResponseRetriedOnce(t *testing.T) {
	gw := newScriptedGateway("fine").script("AI-1", "", "   \n")
	rec := newCountingRecorder()
	c := newTestConversation(t, 2, 1, gw, WithMetrics(rec))

	require.NoError(t, c.Run(context.Background()))

	assert.Len(t, gw.callsFor("AI-1"), 2, "exactly one retry")
	assert.Len(t, gw.callsFor("AI-2"), 1)

	msgs := c.Log().Snapshot()
	require.Len(t, msgs, 2)
	assert.Equal(t, "", msgs[0].DisplayText)
	assert.True(t, msgs[0].HasEffect(EffectEmptyResponse))
	assert.Equal(t, types.ErrEmptyResponse, msgs[0].Effects[0].Reason)
	assert.Equal(t, "fine", msgs[1].DisplayText)
	assert.Equal(t, StatusCompleted, c.Status())

	assert.Equal(t, 1, rec.retries)
	assert.Equal(t, 1, rec.turns[TurnEmpty])
	assert.Equal(t, 1, rec.turns[TurnOK])
}

func TestRun_EmptyThenContentUsesRetry(t *testing.T) {
	gw := newScriptedGateway("x").script("AI-1", "", "second try")
	c := newTestConversation(t, 1, 1, gw)

	require.NoError(t, c.Run(context.Background()))

	msgs := c.Log().Snapshot()
	require.Len(t, msgs, 1)
	assert.Equal(t, "second try", msgs[0].DisplayText)
	assert.Empty(t, msgs[0].Effects)
}

func TestRun_GatewayErrorIsNotFatal(t *testing.T) {
	gw := newScriptedGateway("ok").fail("AI-1", errNetwork)
	c := newTestConversation(t, 2, 1, gw)

	require.NoError(t, c.Run(context.Background()))

	assert.Len(t, gw.callsFor("AI-1"), 1, "gateway errors are not retried by the engine")
	msgs := c.Log().Snapshot()
	require.Len(t, msgs, 2)
	require.True(t, msgs[0].HasEffect(EffectGatewayError))
	assert.Equal(t, types.ErrNetwork, msgs[0].Effects[0].Reason)
	assert.Equal(t, "ok", msgs[1].DisplayText)
	assert.Equal(t, StatusCompleted, c.Status())
}

func TestRun_MuteSkipsExactlyOneTurn(t *testing.T) {
	gw := newScriptedGateway("talking").script("AI-1", "I'll sit out.\n!mute_self")
	bus := NewEventBus(nil)
	events, cancel := bus.Subscribe(64)
	defer cancel()
	c := newTestConversation(t, 2, 3, gw, WithEventBus(bus))

	require.NoError(t, c.Run(context.Background()))

	assert.Equal(t,
		[]string{"AI-1", "AI-2", "AI-2", "AI-1", "AI-2"},
		labels(c.Log().Snapshot()),
	)
	assert.Len(t, gw.callsFor("AI-1"), 2)

	skipped := 0
	for len(events) > 0 {
		if ev := <-events; ev.Type == EventTurnSkipped {
			skipped++
			assert.Equal(t, "AI-1", ev.Participant.Label)
			assert.Equal(t, 1, ev.Round)
		}
	}
	assert.Equal(t, 1, skipped)
}

func TestRun_NewParticipantSpeaksFromNextRound(t *testing.T) {
	gw := newScriptedGateway("hello").script("AI-1", "We need a critic.\n!add_ai \"Critic\" \"Find flaws.\"")
	c := newTestConversation(t, 2, 2, gw)

	require.NoError(t, c.Run(context.Background()))

	assert.Equal(t,
		[]string{"AI-1", "AI-2", "AI-1", "AI-2", "Critic"},
		labels(c.Log().Snapshot()),
	)
	critic := gw.callsFor("Critic")
	require.Len(t, critic, 1)
	assert.Equal(t, "Find flaws.", critic[0].SystemPrompt)
	assert.Equal(t, 3, c.Registry().Len())
}

func TestRun_AddAtLimitKeepsFive(t *testing.T) {
	gw := newScriptedGateway("hi").script("AI-1", `!add_ai "X" "persona"`)
	c := newTestConversation(t, 5, 1, gw)

	require.NoError(t, c.Run(context.Background()))

	first := c.Log().Snapshot()[0]
	require.Len(t, first.Effects, 1)
	assert.Equal(t, OutcomeRejected, first.Effects[0].Outcome)
	assert.Equal(t, types.ErrParticipantLimitExceeded, first.Effects[0].Reason)
	assert.Equal(t, 5, c.Registry().Len())
}

func TestRun_CancelBetweenTurnsPreservesPartialRound(t *testing.T) {
	gw := newScriptedGateway("hi")
	var c *Conversation
	gw.onCall = func(req CompletionRequest) {
		if req.SpeakerLabel == "AI-2" {
			c.Cancel("user stop")
		}
	}
	bus := NewEventBus(nil)
	events, cancel := bus.Subscribe(64)
	defer cancel()
	c = newTestConversation(t, 3, 5, gw, WithEventBus(bus))

	require.NoError(t, c.Run(context.Background()))

	assert.Equal(t, StatusAborted, c.Status())
	assert.Equal(t, []string{"AI-1", "AI-2"}, labels(c.Log().Snapshot()), "turn in flight completes")
	snap := c.Snapshot()
	assert.Equal(t, "user stop", snap.AbortReason)
	assert.Equal(t, 0, snap.TurnIndex)

	var last Event
	for len(events) > 0 {
		last = <-events
	}
	assert.Equal(t, EventConversationAborted, last.Type)
	assert.Equal(t, "user stop", last.Reason)
}

func TestRun_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	gw := newScriptedGateway("hi")
	gw.onCall = func(CompletionRequest) { cancel() }
	c := newTestConversation(t, 2, 3, gw)

	require.NoError(t, c.Run(ctx))
	assert.Equal(t, StatusAborted, c.Status())
	assert.Equal(t, 1, c.Log().Len())
	assert.Equal(t, context.Canceled.Error(), c.Snapshot().AbortReason)
}

func TestRun_CancelBeforeStart(t *testing.T) {
	gw := newScriptedGateway("hi")
	c := newTestConversation(t, 2, 3, gw)
	c.Cancel("")

	require.NoError(t, c.Run(context.Background()))
	assert.Equal(t, StatusAborted, c.Status())
	assert.Zero(t, gw.totalCalls())
	assert.Equal(t, "cancelled", c.Snapshot().AbortReason)
}

func TestRun_SequenceNumbersContiguous(t *testing.T) {
	gw := newScriptedGateway("text").
		script("AI-2", "", "").
		fail("AI-3", errNetwork).
		script("AI-1", "!add_ai \"Late\"\n!mute_self")
	c := newTestConversation(t, 3, 4, gw)

	require.NoError(t, c.Run(context.Background()))

	msgs := c.Log().Snapshot()
	require.NotEmpty(t, msgs)
	for i, m := range msgs {
		assert.Equal(t, i, m.Sequence)
	}
}

func TestStart_AsyncWithEvents(t *testing.T) {
	bus := NewEventBus(nil)
	events, cancel := bus.Subscribe(32)
	defer cancel()
	c := newTestConversation(t, 2, 1, newScriptedGateway("hey"), WithEventBus(bus))

	require.NoError(t, c.Start(context.Background()))
	ctx, done := context.WithTimeout(context.Background(), 5*time.Second)
	defer done()
	require.NoError(t, c.Wait(ctx))

	var got []EventType
	for len(events) > 0 {
		got = append(got, (<-events).Type)
	}
	assert.Equal(t, []EventType{
		EventConversationStarted,
		EventMessageAppended,
		EventMessageAppended,
		EventConversationCompleted,
	}, got)

	assert.Equal(t, StatusCompleted, c.Status())
}

func TestInject_HumanAIMode(t *testing.T) {
	gw := newScriptedGateway("reply")
	s := DefaultSettings()
	s.Mode = ModeHumanAI
	s.MaxTurns = 1

	c, err := New(seeds(2), WithGateway(gw), WithSettings(s))
	require.NoError(t, err)

	gw.onCall = func(req CompletionRequest) {
		if req.SpeakerLabel == "AI-1" {
			assert.NoError(t, c.Inject("What about costs?"))
		}
	}
	require.NoError(t, c.Inject("Hello everyone"))
	require.NoError(t, c.Run(context.Background()))

	msgs := c.Log().Snapshot()
	assert.Equal(t, []string{"Human", "AI-1", "Human", "AI-2"}, labels(msgs))
	assert.Equal(t, MessageHuman, msgs[0].Kind)

	hist := gw.callsFor("AI-2")[0].History
	require.Len(t, hist, 3)
	assert.Equal(t, MessageHuman, hist[2].Kind)
	assert.Equal(t, "What about costs?", hist[2].Text)

	assert.True(t, types.IsErrorCode(c.Inject("late"), types.ErrInvalidState))
}

func TestInject_BeforeFinishIsLogged(t *testing.T) {
	s := DefaultSettings()
	s.Mode = ModeHumanAI
	s.MaxTurns = 1
	c, err := New(seeds(1), WithGateway(newScriptedGateway("reply")), WithSettings(s))
	require.NoError(t, err)
	events, unsubscribe := c.Events().Subscribe(8)
	defer unsubscribe()

	// 消息在最后一次轮内 drain 之后、状态切换之前入队
	c.mu.Lock()
	c.status = StatusRunning
	c.turnIndex = 1
	c.mu.Unlock()
	require.NoError(t, c.Inject("one more thing"))
	c.finish(StatusCompleted, "")

	msgs := c.Log().Snapshot()
	require.Len(t, msgs, 1)
	assert.Equal(t, MessageHuman, msgs[0].Kind)
	assert.Equal(t, "one more thing", msgs[0].DisplayText)
	assert.Equal(t, 0, msgs[0].Round)

	assert.Equal(t, EventMessageAppended, (<-events).Type)
	assert.Equal(t, EventConversationCompleted, (<-events).Type)
	assert.True(t, types.IsErrorCode(c.Inject("too late"), types.ErrInvalidState))
}

func TestInject_RequiresHumanMode(t *testing.T) {
	c := newTestConversation(t, 1, 1, newScriptedGateway("x"))
	assert.True(t, types.IsErrorCode(c.Inject("hi"), types.ErrInvalidState))
}

func TestRun_AutoImage(t *testing.T) {
	reply := "Here is my take on the topic.\n!image \"a cat\""
	tests := []struct {
		name    string
		auto    bool
		outcome Outcome
		calls   []string
	}{
		{name: "generates directive image", auto: true, outcome: OutcomeApplied, calls: []string{"a cat"}},
		{name: "defers directive image", auto: false, outcome: OutcomeDeferred},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultSettings()
			s.MaxTurns = 1
			s.Features = Features{Images: true, AutoImage: tt.auto}
			images := &fakeImages{}

			c, err := New(seeds(1), WithGateway(newScriptedGateway(reply)), WithSettings(s), WithImageGenerator(images))
			require.NoError(t, err)
			require.NoError(t, c.Run(context.Background()))

			msg := c.Log().Snapshot()[0]
			assert.Equal(t, "Here is my take on the topic.", msg.DisplayText)
			require.Len(t, msg.Effects, 1, "one effect per directive, none for plain text")
			assert.Equal(t, tt.outcome, msg.Effects[0].Outcome)
			assert.Equal(t, tt.calls, images.calls)
		})
	}
}
