package tokenizer

import (
	"fmt"
	"strings"
	"sync"
)

// Tokenizer是统一的代号计数界面.
type Tokenizer interface {
	// CountTokens 返回给定文本的 token 数.
	CountTokens(text string) (int, error)

	// CountMessages 返回消息列表的总 token 数,
	// 包括每条消息的开销（角色标记、分隔符等）。
	CountMessages(messages []Message) (int, error)

	// MaxTokens 返回模型的最大上下文长度.
	MaxTokens() int

	// Name 返回分词器的名称.
	Name() string
}

// Message 是一个轻量级消息结构, 由 tokenizer 包使用
// 以避免与 llm 包的循环依赖。
type Message struct {
	Role    string
	Content string
}

// 每条消息的固定开销与对话结尾开销
const (
	messageOverhead      = 4
	conversationOverhead = 3
)

// 全局分词器注册表.
var (
	modelTokenizers   = make(map[string]Tokenizer)
	modelTokenizersMu sync.RWMutex
)

// RegisterTokenizer 为给定的模型名称注册分词器.
func RegisterTokenizer(model string, t Tokenizer) {
	modelTokenizersMu.Lock()
	defer modelTokenizersMu.Unlock()
	modelTokenizers[model] = t
}

// GetTokenizer 返回为给定模型注册的分词器。
// 精确匹配失败时取最长的前缀匹配（"gpt-4o-mini" 优先于 "gpt-4o"）。
func GetTokenizer(model string) (Tokenizer, error) {
	model = StripProvider(model)

	modelTokenizersMu.RLock()
	defer modelTokenizersMu.RUnlock()

	if t, ok := modelTokenizers[model]; ok {
		return t, nil
	}
	var best Tokenizer
	bestLen := 0
	for prefix, t := range modelTokenizers {
		if strings.HasPrefix(model, prefix) && len(prefix) > bestLen {
			best, bestLen = t, len(prefix)
		}
	}
	if best != nil {
		return best, nil
	}
	return nil, fmt.Errorf("no tokenizer registered for model: %s", model)
}

// GetTokenizerOrEstimator 返回该模型的注册分词器,
// 如果没有登记,则回到一般估计器。
func GetTokenizerOrEstimator(model string) Tokenizer {
	t, err := GetTokenizer(model)
	if err != nil {
		return NewEstimatorTokenizer(StripProvider(model), 0)
	}
	return t
}

// StripProvider 去掉 "provider/model" 形式中的 provider 前缀。
func StripProvider(modelRef string) string {
	if i := strings.IndexByte(modelRef, '/'); i >= 0 {
		return modelRef[i+1:]
	}
	return modelRef
}

// FitWindow 从最早的消息开始丢弃，直到 system 与剩余消息的 token 数
// 不超过 budget。最后一条消息总是保留。budget <= 0 时不裁剪。
// 返回保留的消息与丢弃的条数。
func FitWindow(t Tokenizer, system string, messages []Message, budget int) ([]Message, int, error) {
	if budget <= 0 || len(messages) == 0 {
		return messages, 0, nil
	}

	fixed := conversationOverhead
	if system != "" {
		n, err := t.CountTokens(system)
		if err != nil {
			return nil, 0, err
		}
		fixed += n + messageOverhead
	}

	costs := make([]int, len(messages))
	total := fixed
	for i, m := range messages {
		n, err := t.CountTokens(m.Content)
		if err != nil {
			return nil, 0, err
		}
		costs[i] = n + messageOverhead
		total += costs[i]
	}

	start := 0
	for total > budget && start < len(messages)-1 {
		total -= costs[start]
		start++
	}
	return messages[start:], start, nil
}
