package conversation

import (
	"sync"
	"time"
	"unicode/utf8"

	"github.com/BaSui01/agentforum/agent/conversation/command"
	"github.com/BaSui01/agentforum/types"
)

// Outcome is the result of applying one directive.
type Outcome string

const (
	OutcomeApplied  Outcome = "Applied"
	OutcomeRejected Outcome = "Rejected"
	OutcomeDeferred Outcome = "Deferred"
)

// Turn-level effect kinds recorded alongside directive kinds.
const (
	EffectEmptyResponse command.Kind = "EmptyResponse"
	EffectGatewayError  command.Kind = "GatewayError"
)

// Effect records one executed directive, or a turn-level condition.
type Effect struct {
	Kind    command.Kind    `json:"kind"`
	Args    []string        `json:"args,omitempty"`
	Outcome Outcome         `json:"outcome"`
	Reason  types.ErrorCode `json:"reason,omitempty"`
	// Result carries an artifact reference, search text, or deferred job id.
	Result string `json:"result,omitempty"`
}

// MessageKind distinguishes participant output from injected human input.
type MessageKind string

const (
	MessageParticipant MessageKind = "participant"
	MessageHuman       MessageKind = "human"
)

// Speaker id and label used for injected human messages.
const (
	HumanSpeakerID = "human"
	HumanLabel     = "Human"
)

// Message is one immutable log entry.
type Message struct {
	Sequence     int         `json:"sequence"`
	SpeakerID    string      `json:"speaker_id"`
	SpeakerLabel string      `json:"speaker_label"`
	Kind         MessageKind `json:"kind"`
	RawText      string      `json:"raw_text"`
	DisplayText  string      `json:"display_text"`
	Effects      []Effect    `json:"effects,omitempty"`
	Round        int         `json:"round"`
	Tokens       int         `json:"tokens"`
	CreatedAt    time.Time   `json:"created_at"`
}

// HasEffect reports whether the message carries an effect of kind k.
func (m Message) HasEffect(k command.Kind) bool {
	for _, e := range m.Effects {
		if e.Kind == k {
			return true
		}
	}
	return false
}

// TokenCounter counts tokens in text.
type TokenCounter interface {
	CountTokens(text string) (int, error)
}

// Log is the append-only conversation history.
type Log struct {
	mu       sync.RWMutex
	messages []Message
	tokens   int
	counter  TokenCounter
}

// NewLog creates an empty log. A nil counter falls back to a four
// characters per token estimate.
func NewLog(counter TokenCounter) *Log {
	return &Log{counter: counter}
}

// Append stores msg, assigning the next sequence number, and returns the
// stored copy.
func (l *Log) Append(msg Message) Message {
	msg.Effects = append([]Effect(nil), msg.Effects...)
	if msg.Kind == "" {
		msg.Kind = MessageParticipant
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	msg.Tokens = l.count(msg.RawText)

	l.mu.Lock()
	defer l.mu.Unlock()
	msg.Sequence = len(l.messages)
	l.messages = append(l.messages, msg)
	l.tokens += msg.Tokens
	return cloneMessage(msg)
}

// Snapshot returns a copy of every message in order.
func (l *Log) Snapshot() []Message {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Message, len(l.messages))
	for i, m := range l.messages {
		out[i] = cloneMessage(m)
	}
	return out
}

// Since returns copies of the messages with Sequence >= seq.
func (l *Log) Since(seq int) []Message {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if seq < 0 {
		seq = 0
	}
	if seq >= len(l.messages) {
		return nil
	}
	out := make([]Message, 0, len(l.messages)-seq)
	for _, m := range l.messages[seq:] {
		out = append(out, cloneMessage(m))
	}
	return out
}

// Len returns the number of messages.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.messages)
}

// TokenCount returns the approximate token total of all raw texts.
func (l *Log) TokenCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.tokens
}

func (l *Log) count(text string) int {
	if text == "" {
		return 0
	}
	if l.counter != nil {
		if n, err := l.counter.CountTokens(text); err == nil {
			return n
		}
	}
	return utf8.RuneCountInString(text) / 4
}

func cloneMessage(m Message) Message {
	if m.Effects != nil {
		effects := make([]Effect, len(m.Effects))
		for i, e := range m.Effects {
			e.Args = append([]string(nil), e.Args...)
			effects[i] = e
		}
		m.Effects = effects
	}
	return m
}
