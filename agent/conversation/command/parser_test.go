package command

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/agentforum/types"
)

func TestParse_PlainText(t *testing.T) {
	res := Parse("Hello there.\nNo commands here!")
	assert.Empty(t, res.Directives)
	assert.Empty(t, res.Unknown)
	assert.Equal(t, "Hello there.\nNo commands here!", res.DisplayText)
}

func TestParse_Empty(t *testing.T) {
	res := Parse("")
	assert.Empty(t, res.Directives)
	assert.Equal(t, "", res.DisplayText)
}

func TestParse_Directives(t *testing.T) {
	tests := []struct {
		name  string
		input string
		kind  Kind
		args  []string
	}{
		{"add_ai with persona", `!add_ai "Skeptic" "You doubt everything."`, KindAddParticipant, []string{"Skeptic", "You doubt everything."}},
		{"add_ai label only", `!add_ai "Skeptic"`, KindAddParticipant, []string{"Skeptic"}},
		{"image", `!image "a red fox in snow"`, KindGenerateImage, []string{"a red fox in snow"}},
		{"video", `!video "waves at dusk"`, KindGenerateVideo, []string{"waves at dusk"}},
		{"search bare", `!search golang generics`, KindSearch, []string{"golang generics"}},
		{"prompt", `!prompt "Be concise."`, KindSetPrompt, []string{"Be concise."}},
		{"temperature", `!temperature 0.4`, KindSetTemperature, []string{"0.4"}},
		{"mute_self", `!mute_self`, KindMuteSelf, nil},
		{"upper case name", `!IMAGE "owl"`, KindGenerateImage, []string{"owl"}},
		{"leading blanks", "   !search \"x\"", KindSearch, []string{"x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Parse(tt.input)
			require.Len(t, res.Directives, 1)
			d := res.Directives[0]
			assert.Equal(t, tt.kind, d.Kind)
			assert.Equal(t, tt.args, d.Args)
			assert.True(t, d.Valid(), "unexpected error: %v", d.Err)
			assert.Equal(t, "", res.DisplayText)
		})
	}
}

func TestParse_StripsDirectiveLinesFromDisplay(t *testing.T) {
	input := "I think we need help.\n!add_ai \"Critic\" \"Find flaws.\"\n\n\n\nLet's continue.\n!temperature 0.2"
	res := Parse(input)

	require.Len(t, res.Directives, 2)
	assert.Equal(t, KindAddParticipant, res.Directives[0].Kind)
	assert.Equal(t, 1, res.Directives[0].Line)
	assert.Equal(t, KindSetTemperature, res.Directives[1].Kind)
	assert.Equal(t, 6, res.Directives[1].Line)
	assert.Equal(t, "I think we need help.\n\nLet's continue.", res.DisplayText)
}

func TestParse_EscapedQuotes(t *testing.T) {
	res := Parse(`!prompt "Say \"hi\" and use a \\ slash"`)
	require.Len(t, res.Directives, 1)
	assert.Equal(t, `Say "hi" and use a \ slash`, res.Directives[0].Arg(0))
}

func TestParse_MultilineQuotedArgument(t *testing.T) {
	res := Parse("!prompt \"Line one.\nLine two.\"\nAfter.")
	require.Len(t, res.Directives, 1)
	assert.Equal(t, "Line one.\nLine two.", res.Directives[0].Arg(0))
	assert.Equal(t, "After.", res.DisplayText)
}

func TestParse_QuotedArgumentContinuesPastUnknownBang(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"unknown name", "!prompt \"Be bold.\n!Important: keep it short.\"\nbye", "Be bold.\n!Important: keep it short."},
		{"directive prefix", "!prompt \"Draw.\n!imagery matters\"\nbye", "Draw.\n!imagery matters"},
		{"bare bang", "!prompt \"Wow.\n! really\"\nbye", "Wow.\n! really"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Parse(tt.in)
			require.Len(t, res.Directives, 1)
			d := res.Directives[0]
			assert.Equal(t, KindSetPrompt, d.Kind)
			assert.True(t, d.Valid())
			assert.Equal(t, tt.want, d.Arg(0))
			assert.Equal(t, "bye", res.DisplayText)
			assert.Empty(t, res.Unknown)
		})
	}
}

func TestParse_UnterminatedQuote(t *testing.T) {
	res := Parse(`!image "sunset over`)

	require.Len(t, res.Directives, 1)
	d := res.Directives[0]
	assert.Equal(t, KindUnparseable, d.Kind)
	assert.Equal(t, "image", d.Name)
	require.NotNil(t, d.Err)
	assert.Equal(t, types.ErrParseError, d.Err.Code)
	assert.False(t, d.Valid())
	assert.Equal(t, `!image "sunset over`, res.DisplayText)
}

func TestParse_UnterminatedQuoteDoesNotSwallowLaterDirectives(t *testing.T) {
	res := Parse("!image \"sunset over\nthe sea\n!mute_self\nbye")

	require.Len(t, res.Directives, 2)
	assert.Equal(t, KindUnparseable, res.Directives[0].Kind)
	assert.Equal(t, KindMuteSelf, res.Directives[1].Kind)
	assert.Equal(t, 2, res.Directives[1].Line)
	assert.Equal(t, "!image \"sunset over\nthe sea\nbye", res.DisplayText)
}

func TestParse_UnknownNameFailsOpen(t *testing.T) {
	res := Parse("!dance \"wildly\"\nok")
	assert.Empty(t, res.Directives)
	assert.Equal(t, []string{"dance"}, res.Unknown)
	assert.Equal(t, "!dance \"wildly\"\nok", res.DisplayText)
}

func TestParse_NotADirective(t *testing.T) {
	for _, in := range []string{"Wow!image", "!!image \"x\"", "! image \"x\"", "!image-like text", "say !image \"x\""} {
		res := Parse(in)
		assert.Empty(t, res.Directives, in)
		assert.Equal(t, in, res.DisplayText)
	}
}

func TestParse_TemperatureValidation(t *testing.T) {
	tests := []struct {
		input string
		code  types.ErrorCode
		value float64
	}{
		{"!temperature 3.5", "", 3.5},
		{"!temperature -1", "", -1},
		{`!temperature "0.9"`, "", 0.9},
		{"!temperature warm", types.ErrInvalidArgument, 0},
		{"!temperature NaN", types.ErrInvalidArgument, 0},
		{"!temperature Inf", types.ErrInvalidArgument, 0},
		{"!temperature 0.5 please", types.ErrInvalidArgument, 0},
		{"!temperature", types.ErrMissingArgument, 0},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			res := Parse(tt.input)
			require.Len(t, res.Directives, 1)
			d := res.Directives[0]
			assert.Equal(t, KindSetTemperature, d.Kind)
			if tt.code == "" {
				assert.Nil(t, d.Err)
				assert.InDelta(t, tt.value, d.Value, 1e-9)
				return
			}
			require.NotNil(t, d.Err)
			assert.Equal(t, tt.code, d.Err.Code)
		})
	}
}

func TestParse_MissingArgument(t *testing.T) {
	for _, in := range []string{"!add_ai", `!image ""`, "!search", "!prompt   "} {
		res := Parse(in)
		require.Len(t, res.Directives, 1, in)
		require.NotNil(t, res.Directives[0].Err, in)
		assert.Equal(t, types.ErrMissingArgument, res.Directives[0].Err.Code, in)
	}
}

func TestParse_PreservesTextualOrder(t *testing.T) {
	res := Parse("!prompt \"new\"\n!temperature 1.5\n!mute_self")
	require.Len(t, res.Directives, 3)
	assert.Equal(t, KindSetPrompt, res.Directives[0].Kind)
	assert.Equal(t, KindSetTemperature, res.Directives[1].Kind)
	assert.Equal(t, KindMuteSelf, res.Directives[2].Kind)
}

func TestParse_CRLF(t *testing.T) {
	res := Parse("hello\r\n!mute_self\r\nworld")
	require.Len(t, res.Directives, 1)
	assert.Equal(t, "hello\nworld", res.DisplayText)
}

func TestLookup(t *testing.T) {
	k, ok := Lookup("Add_AI")
	assert.True(t, ok)
	assert.Equal(t, KindAddParticipant, k)

	_, ok = Lookup("remove_ai")
	assert.False(t, ok)
}
