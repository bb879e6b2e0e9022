package conversation

import (
	"context"
	"sync"

	"github.com/BaSui01/agentforum/types"
)

// scriptedGateway replies per participant label from a queue. Once a
// label's queue is empty it falls back to fallback.
type scriptedGateway struct {
	mu       sync.Mutex
	replies  map[string][]reply
	fallback string
	calls    []CompletionRequest
	onCall   func(req CompletionRequest)
}

type reply struct {
	text string
	err  error
}

func newScriptedGateway(fallback string) *scriptedGateway {
	return &scriptedGateway{replies: map[string][]reply{}, fallback: fallback}
}

func (g *scriptedGateway) script(label string, texts ...string) *scriptedGateway {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, t := range texts {
		g.replies[label] = append(g.replies[label], reply{text: t})
	}
	return g
}

func (g *scriptedGateway) fail(label string, err error) *scriptedGateway {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.replies[label] = append(g.replies[label], reply{err: err})
	return g
}

func (g *scriptedGateway) Complete(_ context.Context, req CompletionRequest) (string, error) {
	g.mu.Lock()
	g.calls = append(g.calls, req)
	cb := g.onCall
	var r reply
	if q := g.replies[req.SpeakerLabel]; len(q) > 0 {
		r = q[0]
		g.replies[req.SpeakerLabel] = q[1:]
	} else {
		r = reply{text: g.fallback}
	}
	g.mu.Unlock()

	if cb != nil {
		cb(req)
	}
	return r.text, r.err
}

func (g *scriptedGateway) callsFor(label string) []CompletionRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []CompletionRequest
	for _, c := range g.calls {
		if c.SpeakerLabel == label {
			out = append(out, c)
		}
	}
	return out
}

func (g *scriptedGateway) totalCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

type fakeImages struct {
	calls []string
	err   error
}

func (f *fakeImages) GenerateImage(_ context.Context, description string) (string, error) {
	f.calls = append(f.calls, description)
	if f.err != nil {
		return "", f.err
	}
	return "https://images.example/" + description, nil
}

type fakeVideos struct {
	pending bool
	calls   int
}

func (f *fakeVideos) GenerateVideo(_ context.Context, _ string) (VideoJob, error) {
	f.calls++
	if f.pending {
		return VideoJob{Ref: "task-1", Pending: true}, nil
	}
	return VideoJob{Ref: "https://videos.example/1.mp4"}, nil
}

type fakeSearcher struct {
	calls int
	err   error
}

func (f *fakeSearcher) Search(_ context.Context, query string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return "1. Result for " + query, nil
}

type countingRecorder struct {
	mu         sync.Mutex
	turns      map[string]int
	directives map[string]int
	retries    int
	active     int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{turns: map[string]int{}, directives: map[string]int{}}
}

func (r *countingRecorder) RecordTurn(outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.turns[outcome]++
}

func (r *countingRecorder) RecordDirective(kind, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.directives[kind+"/"+outcome]++
}

func (r *countingRecorder) RecordEmptyRetry() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.retries++
}

func (r *countingRecorder) SetActiveParticipants(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active = n
}

var errNetwork = types.NewError(types.ErrNetwork, "connection reset").WithRetryable(true)
