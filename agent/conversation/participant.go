package conversation

import (
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BaSui01/agentforum/types"
)

const (
	// HardParticipantLimit is the maximum number of simultaneously active participants.
	HardParticipantLimit = 5

	MinTemperature     = 0.0
	MaxTemperature     = 2.0
	DefaultTemperature = 1.0
)

// Participant is one AI speaker and its mutable per-participant state.
type Participant struct {
	ID               string    `json:"id"`
	Label            string    `json:"label"`
	ModelRef         string    `json:"model_ref"`
	SystemPrompt     string    `json:"system_prompt"`
	Temperature      float64   `json:"temperature"`
	MutedForNextTurn bool      `json:"muted_for_next_turn"`
	Active           bool      `json:"active"`
	InvitedBy        string    `json:"invited_by,omitempty"`
	JoinedAt         time.Time `json:"joined_at"`
}

// Registry owns the ordered participant set. Insertion order is turn order.
type Registry struct {
	mu           sync.RWMutex
	participants []*Participant
	byID         map[string]*Participant
	limit        int
	defaultTemp  float64
	logger       *zap.Logger
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithParticipantLimit lowers the active participant limit. Values outside
// 1..HardParticipantLimit are ignored.
func WithParticipantLimit(n int) RegistryOption {
	return func(r *Registry) {
		if n >= 1 && n <= HardParticipantLimit {
			r.limit = n
		}
	}
}

// WithDefaultTemperature sets the temperature assigned to new participants.
func WithDefaultTemperature(t float64) RegistryOption {
	return func(r *Registry) {
		r.defaultTemp = ClampTemperature(t)
	}
}

// WithRegistryLogger sets the registry logger.
func WithRegistryLogger(logger *zap.Logger) RegistryOption {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		byID:        make(map[string]*Participant),
		limit:       HardParticipantLimit,
		defaultTemp: DefaultTemperature,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With(zap.String("component", "participant_registry"))
	return r
}

// Add appends a new active participant.
func (r *Registry) Add(label, modelRef, prompt string) (Participant, error) {
	return r.add(label, modelRef, prompt, "")
}

// Invite appends a participant on behalf of inviterID.
func (r *Registry) Invite(inviterID, label, modelRef, prompt string) (Participant, error) {
	return r.add(label, modelRef, prompt, inviterID)
}

func (r *Registry) add(label, modelRef, prompt, inviter string) (Participant, error) {
	if strings.TrimSpace(label) == "" {
		return Participant{}, types.NewError(types.ErrInvalidArgument, "participant label is empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	active := 0
	for _, p := range r.participants {
		if !p.Active {
			continue
		}
		active++
		if p.Label == label {
			return Participant{}, types.Errorf(types.ErrDuplicateLabel, "label %q is already in use", label)
		}
	}
	if active >= r.limit {
		return Participant{}, types.Errorf(types.ErrParticipantLimitExceeded,
			"participant limit of %d reached", r.limit)
	}

	p := &Participant{
		ID:           uuid.NewString(),
		Label:        label,
		ModelRef:     modelRef,
		SystemPrompt: prompt,
		Temperature:  r.defaultTemp,
		Active:       true,
		InvitedBy:    inviter,
		JoinedAt:     time.Now(),
	}
	r.participants = append(r.participants, p)
	r.byID[p.ID] = p

	r.logger.Debug("participant added",
		zap.String("participant_id", p.ID),
		zap.String("label", label),
		zap.String("model", modelRef),
		zap.Int("active", active+1),
	)
	return *p, nil
}

// SetPrompt replaces the participant's system prompt. It applies from the
// participant's next invocation.
func (r *Registry) SetPrompt(id, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, err := r.lookup(id)
	if err != nil {
		return err
	}
	p.SystemPrompt = text
	return nil
}

// SetTemperature stores the value clamped to [0, 2] and returns it.
func (r *Registry) SetTemperature(id string, value float64) (float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, err := r.lookup(id)
	if err != nil {
		return 0, err
	}
	p.Temperature = ClampTemperature(value)
	return p.Temperature, nil
}

// MuteNextTurn makes the participant sit out its next turn. Idempotent.
func (r *Registry) MuteNextTurn(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, err := r.lookup(id)
	if err != nil {
		return err
	}
	p.MutedForNextTurn = true
	return nil
}

// ConsumeMute reports whether the participant must skip this turn and
// clears the flag.
func (r *Registry) ConsumeMute(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[id]
	if !ok || !p.MutedForNextTurn {
		return false
	}
	p.MutedForNextTurn = false
	return true
}

// Get returns a copy of the participant.
func (r *Registry) Get(id string) (Participant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byID[id]
	if !ok {
		return Participant{}, false
	}
	return *p, true
}

// Active returns the active participants in turn order.
func (r *Registry) Active() []Participant {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Participant, 0, len(r.participants))
	for _, p := range r.participants {
		if p.Active {
			out = append(out, *p)
		}
	}
	return out
}

// Len returns the number of active participants.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, p := range r.participants {
		if p.Active {
			n++
		}
	}
	return n
}

// Limit returns the configured active participant limit.
func (r *Registry) Limit() int {
	return r.limit
}

// ModelsInUse returns the model refs of active participants.
func (r *Registry) ModelsInUse() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.participants))
	for _, p := range r.participants {
		if p.Active {
			out = append(out, p.ModelRef)
		}
	}
	return out
}

func (r *Registry) lookup(id string) (*Participant, error) {
	p, ok := r.byID[id]
	if !ok || !p.Active {
		return nil, types.Errorf(types.ErrParticipantNotFound, "participant %s not found", id)
	}
	return p, nil
}

// ClampTemperature limits t to [0, 2]. NaN maps to the default.
func ClampTemperature(t float64) float64 {
	switch {
	case math.IsNaN(t):
		return DefaultTemperature
	case t < MinTemperature:
		return MinTemperature
	case t > MaxTemperature:
		return MaxTemperature
	}
	return t
}
