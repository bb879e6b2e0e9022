// Package fixtures 提供对话测试使用的样例数据。
package fixtures

import (
	"fmt"

	"github.com/BaSui01/agentforum/agent/conversation"
)

// Seeds 返回 n 个参与者种子，标签为 AI-1..AI-n，模型引用为 mock/model-i。
func Seeds(n int) []conversation.Seed {
	out := make([]conversation.Seed, n)
	for i := range out {
		out[i] = conversation.Seed{
			Label:    fmt.Sprintf("AI-%d", i+1),
			ModelRef: fmt.Sprintf("mock/model-%d", i+1),
			Prompt:   fmt.Sprintf("You are participant %d in a roundtable.", i+1),
		}
	}
	return out
}

// History 构造一段交替发言的历史
func History(speakers ...string) []conversation.HistoryEntry {
	out := make([]conversation.HistoryEntry, len(speakers))
	for i, s := range speakers {
		kind := conversation.MessageParticipant
		id := "id-" + s
		if s == conversation.HumanLabel {
			kind = conversation.MessageHuman
			id = conversation.HumanSpeakerID
		}
		out[i] = conversation.HistoryEntry{
			SpeakerID:    id,
			SpeakerLabel: s,
			Kind:         kind,
			Text:         fmt.Sprintf("message %d from %s", i, s),
		}
	}
	return out
}

// ScenarioYAML 是包含两个场景的样例 YAML 文档
const ScenarioYAML = `
scenarios:
  - name: Philosophy Debate
    invite_prompt: You are a guest philosopher who challenges assumptions.
    prompts:
      AI-1: You are Socrates. Ask probing questions.
      AI-2: You are Nietzsche. Be provocative.
      AI-3: You are Simone de Beauvoir. Focus on freedom.
      AI-4: You are Confucius. Speak of harmony.
      AI-5: You are Hannah Arendt. Discuss power.
  - name: Startup Pitch
    prompts:
      AI-1: You are a founder pitching a product.
      AI-2: You are a skeptical investor.
      AI-3: You are a customer.
      AI-4: You are a regulator.
      AI-5: You are a journalist.
`
