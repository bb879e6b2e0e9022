package conversation

import (
	"fmt"
	"slices"
)

// Mode selects who takes part in the conversation.
type Mode string

const (
	// ModeAIAI lets only AI participants speak.
	ModeAIAI Mode = "ai-ai"
	// ModeHumanAI additionally accepts injected human messages between turns.
	ModeHumanAI Mode = "human-ai"
)

// InviteTier restricts which catalog models !add_ai may pick.
type InviteTier string

const (
	TierFree InviteTier = "free"
	TierPaid InviteTier = "paid"
	TierBoth InviteTier = "both"
)

// IterationPresets are the round counts offered by the CLI.
var IterationPresets = []int{1, 2, 4, 6, 12, 100}

// Features gates side-effect directives.
type Features struct {
	Images bool `json:"images" yaml:"images"`
	Videos bool `json:"videos" yaml:"videos"`
	Search bool `json:"search" yaml:"search"`
	// AutoImage runs !image directives immediately. When unset an enabled
	// !image is recorded as Deferred and no image is generated.
	AutoImage bool `json:"auto_image" yaml:"auto_image"`
}

// Settings configures one conversation run.
type Settings struct {
	Mode                 Mode       `json:"mode"`
	MaxTurns             int        `json:"max_turns"`
	MaxParticipants      int        `json:"max_participants"`
	AllowDuplicateModels bool       `json:"allow_duplicate_models"`
	InviteTier           InviteTier `json:"invite_tier"`
	Features             Features   `json:"features"`
	DefaultTemperature   float64    `json:"default_temperature"`
	// InvitePrompt is the persona used when !add_ai omits one.
	InvitePrompt string `json:"invite_prompt"`
	// HumanQueue sizes the queue of injected human messages.
	HumanQueue int `json:"human_queue"`
}

// DefaultSettings returns default settings.
func DefaultSettings() Settings {
	return Settings{
		Mode:               ModeAIAI,
		MaxTurns:           4,
		MaxParticipants:    HardParticipantLimit,
		InviteTier:         TierFree,
		DefaultTemperature: DefaultTemperature,
		InvitePrompt:       "You are a new participant invited into an ongoing discussion. Contribute your own perspective.",
		HumanQueue:         16,
	}
}

// Validate checks the settings.
func (s Settings) Validate() error {
	switch s.Mode {
	case ModeAIAI, ModeHumanAI:
	default:
		return fmt.Errorf("unknown mode %q", s.Mode)
	}
	switch s.InviteTier {
	case TierFree, TierPaid, TierBoth:
	default:
		return fmt.Errorf("unknown invite tier %q", s.InviteTier)
	}
	if s.MaxTurns <= 0 {
		return fmt.Errorf("max_turns must be positive, got %d", s.MaxTurns)
	}
	if s.MaxParticipants < 1 || s.MaxParticipants > HardParticipantLimit {
		return fmt.Errorf("max_participants must be between 1 and %d, got %d", HardParticipantLimit, s.MaxParticipants)
	}
	if s.DefaultTemperature < MinTemperature || s.DefaultTemperature > MaxTemperature {
		return fmt.Errorf("default_temperature must be between 0 and 2, got %v", s.DefaultTemperature)
	}
	return nil
}

// IsPreset reports whether n is one of IterationPresets.
func IsPreset(n int) bool {
	return slices.Contains(IterationPresets, n)
}
