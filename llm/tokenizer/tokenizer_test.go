package tokenizer

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type wordTokenizer struct{ err error }

func (w wordTokenizer) CountTokens(text string) (int, error) {
	if w.err != nil {
		return 0, w.err
	}
	return len(text), nil
}
func (w wordTokenizer) CountMessages(ms []Message) (int, error) { return len(ms), w.err }
func (wordTokenizer) MaxTokens() int                            { return 100 }
func (wordTokenizer) Name() string                              { return "word" }

func TestEstimator_CountTokens(t *testing.T) {
	e := NewEstimatorTokenizer("m", 0)
	assert.Equal(t, 8192, e.MaxTokens())

	tests := []struct {
		text string
		want int
	}{
		{"", 0},
		{"a", 1},
		{"abcdefgh", 2},
		{"你好世界", 2},
		{"你好 abcd", 2},
	}
	for _, tt := range tests {
		n, err := e.CountTokens(tt.text)
		require.NoError(t, err)
		assert.Equal(t, tt.want, n, tt.text)
	}
}

func TestEstimator_CountMessages(t *testing.T) {
	e := NewEstimatorTokenizer("m", 0)
	n, err := e.CountMessages([]Message{{Role: "user", Content: "abcdefgh"}})
	require.NoError(t, err)
	assert.Equal(t, 2+messageOverhead+conversationOverhead, n)
}

func TestRegistry_LongestPrefixWins(t *testing.T) {
	short := NewEstimatorTokenizer("short", 1)
	long := NewEstimatorTokenizer("long", 2)
	RegisterTokenizer("test-model", short)
	RegisterTokenizer("test-model-mini", long)

	got, err := GetTokenizer("openai/test-model-mini-2025")
	require.NoError(t, err)
	assert.Equal(t, 2, got.MaxTokens())

	got, err = GetTokenizer("test-model-x")
	require.NoError(t, err)
	assert.Equal(t, 1, got.MaxTokens())

	_, err = GetTokenizer("unknown-zzz")
	assert.Error(t, err)
	assert.Equal(t, "estimator", GetTokenizerOrEstimator("unknown-zzz").Name())
}

func TestStripProvider(t *testing.T) {
	assert.Equal(t, "gpt-4o", StripProvider("openai/gpt-4o"))
	assert.Equal(t, "gpt-4o", StripProvider("gpt-4o"))
}

func TestNewTiktokenTokenizer_Encoding(t *testing.T) {
	assert.Equal(t, "tiktoken[o200k_base]", NewTiktokenTokenizer("openai/gpt-4o-mini").Name())
	assert.Equal(t, "tiktoken[o200k_base]", NewTiktokenTokenizer("gpt-4o-2024-08-06").Name())
	assert.Equal(t, "tiktoken[cl100k_base]", NewTiktokenTokenizer("some-model").Name())
	assert.Equal(t, 16385, NewTiktokenTokenizer("gpt-3.5-turbo").MaxTokens())
}

func TestFallback(t *testing.T) {
	f := NewFallback(wordTokenizer{err: errors.New("offline")})
	n, err := f.CountTokens("abcdefgh")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, "word+estimator", f.Name())

	ok := NewFallback(wordTokenizer{})
	n, err = ok.CountTokens("abcdefgh")
	require.NoError(t, err)
	assert.Equal(t, 8, n)
}

func TestFitWindow(t *testing.T) {
	tok := wordTokenizer{}
	msgs := make([]Message, 5)
	for i := range msgs {
		msgs[i] = Message{Role: "user", Content: fmt.Sprintf("%05d", i)} // 5 tokens + 4 overhead
	}

	t.Run("no budget", func(t *testing.T) {
		got, dropped, err := FitWindow(tok, "sys", msgs, 0)
		require.NoError(t, err)
		assert.Len(t, got, 5)
		assert.Zero(t, dropped)
	})

	t.Run("drops oldest", func(t *testing.T) {
		// fixed = 3 + (3+4) = 10, each message 9
		got, dropped, err := FitWindow(tok, "sys", msgs, 10+2*9)
		require.NoError(t, err)
		assert.Equal(t, 3, dropped)
		require.Len(t, got, 2)
		assert.Equal(t, "00003", got[0].Content)
	})

	t.Run("keeps last message", func(t *testing.T) {
		got, dropped, err := FitWindow(tok, "sys", msgs, 1)
		require.NoError(t, err)
		assert.Equal(t, 4, dropped)
		assert.Len(t, got, 1)
	})

	t.Run("counter error", func(t *testing.T) {
		_, _, err := FitWindow(wordTokenizer{err: errors.New("x")}, "", msgs, 10)
		assert.Error(t, err)
	})
}
