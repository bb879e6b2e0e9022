package scenario

import (
	"context"
	"strings"

	"github.com/BaSui01/agentforum/agent/conversation"
	"github.com/BaSui01/agentforum/types"
)

// Slots 是每个场景必须提供提示词的槽位，按发言顺序排列。
var Slots = []string{"AI-1", "AI-2", "AI-3", "AI-4", "AI-5"}

// Scenario 为每个槽位提供一段角色提示词。
type Scenario struct {
	Name    string            `json:"name" yaml:"name"`
	Prompts map[string]string `json:"prompts" yaml:"prompts"`
	// InvitePrompt 是 !add_ai 省略角色时使用的默认提示词
	InvitePrompt string `json:"invite_prompt,omitempty" yaml:"invite_prompt,omitempty"`
}

// Source 提供场景，只读。
type Source interface {
	Load(ctx context.Context, name string) (*Scenario, error)
	List(ctx context.Context) ([]string, error)
}

// Validate 校验场景：名称非空且不能同时包含单引号与双引号，
// 五个槽位都必须存在。
func (s *Scenario) Validate() error {
	name := strings.TrimSpace(s.Name)
	if name == "" {
		return types.NewError(types.ErrScenarioInvalid, "scenario name cannot be empty")
	}
	if strings.Contains(name, "'") && strings.Contains(name, `"`) {
		return types.Errorf(types.ErrScenarioInvalid, "scenario %s: name cannot contain both single and double quotes", name)
	}
	var missing []string
	for _, slot := range Slots {
		if _, ok := s.Prompts[slot]; !ok {
			missing = append(missing, slot)
		}
	}
	if len(missing) > 0 {
		return types.Errorf(types.ErrScenarioInvalid, "scenario %q: missing required slots: %s", name, strings.Join(missing, ", "))
	}
	return nil
}

// ValidateSeeded 在 Validate 的基础上要求前 n 个槽位的提示词非空。
func (s *Scenario) ValidateSeeded(n int) error {
	if err := s.Validate(); err != nil {
		return err
	}
	if n < 1 || n > len(Slots) {
		return types.Errorf(types.ErrInvalidArgument, "participant count %d outside 1-%d", n, len(Slots))
	}
	for _, slot := range Slots[:n] {
		if strings.TrimSpace(s.Prompts[slot]) == "" {
			return types.Errorf(types.ErrScenarioInvalid, "scenario %q: prompt for %s is empty", s.Name, slot)
		}
	}
	return nil
}

// Seeds 为前 n 个槽位构造参与者种子，模型引用取自 models[i]，
// 缺省时使用 defaultModel。
func (s *Scenario) Seeds(n int, models []string, defaultModel string) ([]conversation.Seed, error) {
	if err := s.ValidateSeeded(n); err != nil {
		return nil, err
	}
	seeds := make([]conversation.Seed, n)
	for i := 0; i < n; i++ {
		ref := defaultModel
		if i < len(models) && strings.TrimSpace(models[i]) != "" {
			ref = models[i]
		}
		seeds[i] = conversation.Seed{
			Label:    Slots[i],
			ModelRef: ref,
			Prompt:   s.Prompts[Slots[i]],
		}
	}
	return seeds, nil
}

// ValidateAll 校验场景集合：至少一个场景、名称不重复、每个场景均有效。
func ValidateAll(scenarios []Scenario) error {
	if len(scenarios) == 0 {
		return types.NewError(types.ErrScenarioInvalid, "must have at least one scenario")
	}
	seen := make(map[string]struct{}, len(scenarios))
	for i := range scenarios {
		if err := scenarios[i].Validate(); err != nil {
			return err
		}
		name := strings.TrimSpace(scenarios[i].Name)
		if _, dup := seen[name]; dup {
			return types.Errorf(types.ErrScenarioInvalid, "duplicate scenario name %q", name)
		}
		seen[name] = struct{}{}
	}
	return nil
}

func notFound(name string) error {
	return types.Errorf(types.ErrScenarioNotFound, "scenario %q not found", name)
}
