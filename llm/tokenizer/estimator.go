package tokenizer

import (
	"unicode"
	"unicode/utf8"
)

// EstimatorTokenizer 基于字符数估算 token，区分 CJK 与其他字符。
// 不依赖任何词表，适用于没有 tiktoken 编码的模型（如 Claude）。
type EstimatorTokenizer struct {
	model     string
	maxTokens int
	// asciiPerToken 非 CJK 字符每 token 的字符数
	asciiPerToken float64
	// cjkPerToken CJK 字符每 token 的字符数
	cjkPerToken float64
}

// NewEstimatorTokenizer creates a generic estimator.
func NewEstimatorTokenizer(model string, maxTokens int) *EstimatorTokenizer {
	if maxTokens <= 0 {
		maxTokens = 8192
	}
	return &EstimatorTokenizer{
		model:         model,
		maxTokens:     maxTokens,
		asciiPerToken: 4.0,
		cjkPerToken:   1.5,
	}
}

// WithCharsPerToken overrides the ratio used for non-CJK text.
func (e *EstimatorTokenizer) WithCharsPerToken(ratio float64) *EstimatorTokenizer {
	if ratio > 0 {
		e.asciiPerToken = ratio
	}
	return e
}

func (e *EstimatorTokenizer) CountTokens(text string) (int, error) {
	if text == "" {
		return 0, nil
	}

	total := utf8.RuneCountInString(text)
	cjk := 0
	for _, r := range text {
		if isCJK(r) {
			cjk++
		}
	}

	estimated := int(float64(cjk)/e.cjkPerToken + float64(total-cjk)/e.asciiPerToken)
	if estimated == 0 {
		estimated = 1
	}
	return estimated, nil
}

func (e *EstimatorTokenizer) CountMessages(messages []Message) (int, error) {
	total := conversationOverhead
	for _, msg := range messages {
		n, err := e.CountTokens(msg.Content)
		if err != nil {
			return 0, err
		}
		total += n + messageOverhead
	}
	return total, nil
}

func (e *EstimatorTokenizer) MaxTokens() int { return e.maxTokens }

func (e *EstimatorTokenizer) Name() string { return "estimator" }

// isCJK 判断是否为中日韩字符或全角标点
func isCJK(r rune) bool {
	return unicode.Is(unicode.Han, r) ||
		unicode.Is(unicode.Hiragana, r) ||
		unicode.Is(unicode.Katakana, r) ||
		unicode.Is(unicode.Hangul, r) ||
		(r >= 0x3000 && r <= 0x303F) || // CJK Symbols and Punctuation
		(r >= 0xFF00 && r <= 0xFFEF) // Halfwidth and Fullwidth Forms
}
