package conversation

import (
	"context"
)

// HistoryEntry is one prior message as seen by the model gateway.
type HistoryEntry struct {
	SpeakerID    string      `json:"speaker_id"`
	SpeakerLabel string      `json:"speaker_label"`
	Kind         MessageKind `json:"kind"`
	Text         string      `json:"text"`
}

// CompletionRequest is a single text completion call for one participant.
type CompletionRequest struct {
	ModelRef     string
	SystemPrompt string
	Temperature  float64
	History      []HistoryEntry
	// Speaker identifies the participant being invoked so the gateway can
	// render its own prior turns as assistant messages.
	SpeakerID    string
	SpeakerLabel string
}

// ModelGateway produces a participant's reply. Failures are *types.Error
// with NETWORK_ERROR, RATE_LIMITED or UPSTREAM_ERROR codes.
type ModelGateway interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// ImageGenerator creates an image and returns an artifact reference.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, description string) (string, error)
}

// VideoJob is the result of a video request. Pending jobs carry the job id
// in Ref.
type VideoJob struct {
	Ref     string
	Pending bool
}

// VideoGenerator creates a video.
type VideoGenerator interface {
	GenerateVideo(ctx context.Context, description string) (VideoJob, error)
}

// Searcher runs a web search and returns display text.
type Searcher interface {
	Search(ctx context.Context, query string) (string, error)
}

// MetricsRecorder receives engine measurements. A nil recorder is allowed.
type MetricsRecorder interface {
	RecordTurn(outcome string)
	RecordDirective(kind, outcome string)
	RecordEmptyRetry()
	SetActiveParticipants(n int)
}

type nopRecorder struct{}

func (nopRecorder) RecordTurn(string)              {}
func (nopRecorder) RecordDirective(string, string) {}
func (nopRecorder) RecordEmptyRetry()              {}
func (nopRecorder) SetActiveParticipants(int)      {}
