package types

import "context"

// contextKey is used for storing values in context.Context.
type contextKey string

const (
	keyTraceID        contextKey = "trace_id"
	keyConversationID contextKey = "conversation_id"
	keyParticipantID  contextKey = "participant_id"
	keyRound          contextKey = "round"
)

// WithTraceID adds trace ID to context.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, keyTraceID, traceID)
}

// TraceID extracts trace ID from context.
func TraceID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(keyTraceID).(string)
	return v, ok && v != ""
}

// WithConversationID adds conversation ID to context.
func WithConversationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, keyConversationID, id)
}

// ConversationID extracts conversation ID from context.
func ConversationID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(keyConversationID).(string)
	return v, ok && v != ""
}

// WithParticipantID adds the speaking participant's ID to context.
func WithParticipantID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, keyParticipantID, id)
}

// ParticipantID extracts the speaking participant's ID from context.
func ParticipantID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(keyParticipantID).(string)
	return v, ok && v != ""
}

// WithRound adds the current round index to context.
func WithRound(ctx context.Context, round int) context.Context {
	return context.WithValue(ctx, keyRound, round)
}

// Round extracts the current round index from context.
func Round(ctx context.Context) (int, bool) {
	v, ok := ctx.Value(keyRound).(int)
	return v, ok
}
