package tokenizer

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// TiktokenTokenizer 为 OpenAI 系列模型提供精确计数.
type TiktokenTokenizer struct {
	model     string
	encoding  string
	maxTokens int

	once    sync.Once
	enc     *tiktoken.Tiktoken
	initErr error
}

type encodingInfo struct {
	encoding  string
	maxTokens int
}

// modelEncodings 将模型名称映射到其 tiktoken 编码和上下文大小。
var modelEncodings = map[string]encodingInfo{
	"gpt-4o":        {encoding: "o200k_base", maxTokens: 128000},
	"gpt-4o-mini":   {encoding: "o200k_base", maxTokens: 128000},
	"gpt-4.1":       {encoding: "o200k_base", maxTokens: 1047576},
	"gpt-4.1-mini":  {encoding: "o200k_base", maxTokens: 1047576},
	"gpt-4-turbo":   {encoding: "cl100k_base", maxTokens: 128000},
	"gpt-4":         {encoding: "cl100k_base", maxTokens: 8192},
	"gpt-3.5-turbo": {encoding: "cl100k_base", maxTokens: 16385},
}

var defaultEncoding = encodingInfo{encoding: "cl100k_base", maxTokens: 8192}

// NewTiktokenTokenizer 为给定模型创建分词器。未知模型使用 cl100k_base.
func NewTiktokenTokenizer(model string) *TiktokenTokenizer {
	model = StripProvider(model)
	info, ok := modelEncodings[model]
	if !ok {
		bestLen := 0
		info = defaultEncoding
		for prefix, i := range modelEncodings {
			if strings.HasPrefix(model, prefix) && len(prefix) > bestLen {
				info, bestLen = i, len(prefix)
			}
		}
	}
	return &TiktokenTokenizer{
		model:     model,
		encoding:  info.encoding,
		maxTokens: info.maxTokens,
	}
}

// init 懒加载编码表（首次使用时可能需要下载 BPE 数据）.
func (t *TiktokenTokenizer) init() error {
	t.once.Do(func() {
		enc, err := tiktoken.GetEncoding(t.encoding)
		if err != nil {
			t.initErr = fmt.Errorf("init tiktoken encoding %s: %w", t.encoding, err)
			return
		}
		t.enc = enc
	})
	return t.initErr
}

func (t *TiktokenTokenizer) CountTokens(text string) (int, error) {
	if text == "" {
		return 0, nil
	}
	if err := t.init(); err != nil {
		return 0, err
	}
	return len(t.enc.Encode(text, nil, nil)), nil
}

func (t *TiktokenTokenizer) CountMessages(messages []Message) (int, error) {
	if err := t.init(); err != nil {
		return 0, err
	}
	total := conversationOverhead
	for _, msg := range messages {
		total += messageOverhead
		total += len(t.enc.Encode(msg.Content, nil, nil))
		total += len(t.enc.Encode(msg.Role, nil, nil))
	}
	return total, nil
}

func (t *TiktokenTokenizer) MaxTokens() int { return t.maxTokens }

func (t *TiktokenTokenizer) Name() string {
	return fmt.Sprintf("tiktoken[%s]", t.encoding)
}

// RegisterOpenAITokenizers 为所有已知的 OpenAI 模型注册分词器。
func RegisterOpenAITokenizers() {
	for model := range modelEncodings {
		RegisterTokenizer(model, NewTiktokenTokenizer(model))
	}
}

// Fallback 包装一个分词器，出错时退回估算器。
// tiktoken 在离线环境下无法下载词表时仍能计数。
type Fallback struct {
	Primary  Tokenizer
	Estimate *EstimatorTokenizer
}

// NewFallback 创建带估算兜底的分词器.
func NewFallback(primary Tokenizer) *Fallback {
	name := ""
	limit := 0
	if primary != nil {
		name, limit = primary.Name(), primary.MaxTokens()
	}
	return &Fallback{Primary: primary, Estimate: NewEstimatorTokenizer(name, limit)}
}

func (f *Fallback) CountTokens(text string) (int, error) {
	if f.Primary != nil {
		if n, err := f.Primary.CountTokens(text); err == nil {
			return n, nil
		}
	}
	return f.Estimate.CountTokens(text)
}

func (f *Fallback) CountMessages(messages []Message) (int, error) {
	if f.Primary != nil {
		if n, err := f.Primary.CountMessages(messages); err == nil {
			return n, nil
		}
	}
	return f.Estimate.CountMessages(messages)
}

func (f *Fallback) MaxTokens() int { return f.Estimate.MaxTokens() }

func (f *Fallback) Name() string {
	if f.Primary != nil {
		return f.Primary.Name() + "+estimator"
	}
	return f.Estimate.Name()
}
