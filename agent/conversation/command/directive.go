package command

import (
	"strings"

	"github.com/BaSui01/agentforum/types"
)

// Kind identifies a recognized directive.
type Kind string

const (
	KindAddParticipant Kind = "AddParticipant"
	KindGenerateImage  Kind = "GenerateImage"
	KindGenerateVideo  Kind = "GenerateVideo"
	KindSearch         Kind = "Search"
	KindSetPrompt      Kind = "SetPrompt"
	KindSetTemperature Kind = "SetTemperature"
	KindMuteSelf       Kind = "MuteSelf"
	KindUnparseable    Kind = "Unparseable"
)

// directiveNames maps the lower-cased token after "!" to its kind.
var directiveNames = map[string]Kind{
	"add_ai":      KindAddParticipant,
	"image":       KindGenerateImage,
	"video":       KindGenerateVideo,
	"search":      KindSearch,
	"prompt":      KindSetPrompt,
	"temperature": KindSetTemperature,
	"mute_self":   KindMuteSelf,
}

// Lookup returns the kind registered for name (case-insensitive).
func Lookup(name string) (Kind, bool) {
	k, ok := directiveNames[strings.ToLower(name)]
	return k, ok
}

// Directive is one command extracted from a participant's output.
type Directive struct {
	Kind Kind     `json:"kind"`
	Name string   `json:"name"`
	Args []string `json:"args,omitempty"`
	// Raw is the source text the directive was parsed from.
	Raw string `json:"raw"`
	// Line is the zero-based line on which the directive starts.
	Line int `json:"line"`
	// Value holds the parsed number for SetTemperature.
	Value float64 `json:"value,omitempty"`
	// Err is non-nil when the directive was recognized but cannot be executed.
	Err *types.Error `json:"error,omitempty"`
}

// Valid reports whether the directive may be executed.
func (d Directive) Valid() bool {
	return d.Err == nil && d.Kind != KindUnparseable
}

// Arg returns the i-th argument or "".
func (d Directive) Arg(i int) string {
	if i < 0 || i >= len(d.Args) {
		return ""
	}
	return d.Args[i]
}

// Result is the output of Parse.
type Result struct {
	Directives  []Directive `json:"directives"`
	DisplayText string      `json:"display_text"`
	// Unknown lists "!name" tokens that were left in DisplayText verbatim.
	Unknown []string `json:"unknown,omitempty"`
}
