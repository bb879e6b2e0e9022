package scenario

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/BaSui01/agentforum/types"
)

// File 是场景 YAML 文件的顶层结构。
type File struct {
	Scenarios []Scenario `yaml:"scenarios"`
}

// YAMLSource 从 YAML 文档读取场景，构造时完成校验。
type YAMLSource struct {
	byName map[string]*Scenario
	order  []string
}

var _ Source = (*YAMLSource)(nil)

// LoadYAMLFile 读取并校验场景文件。
func LoadYAMLFile(path string) (*YAMLSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario file: %w", err)
	}
	return ParseYAML(data)
}

// ParseYAML 解析并校验场景文档。
func ParseYAML(data []byte) (*YAMLSource, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, types.WrapError(err, types.ErrScenarioInvalid, "failed to parse scenario YAML")
	}
	if err := ValidateAll(f.Scenarios); err != nil {
		return nil, err
	}
	src := &YAMLSource{byName: make(map[string]*Scenario, len(f.Scenarios))}
	for i := range f.Scenarios {
		sc := f.Scenarios[i]
		sc.Name = strings.TrimSpace(sc.Name)
		src.byName[sc.Name] = &sc
		src.order = append(src.order, sc.Name)
	}
	return src, nil
}

// Load 返回场景副本
func (s *YAMLSource) Load(_ context.Context, name string) (*Scenario, error) {
	sc, ok := s.byName[strings.TrimSpace(name)]
	if !ok {
		return nil, notFound(name)
	}
	return clone(sc), nil
}

// List 按文件中的顺序返回场景名称
func (s *YAMLSource) List(_ context.Context) ([]string, error) {
	return append([]string(nil), s.order...), nil
}

// All 返回全部场景，用于 migrate --seed
func (s *YAMLSource) All() []Scenario {
	out := make([]Scenario, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, *clone(s.byName[name]))
	}
	return out
}

func clone(sc *Scenario) *Scenario {
	c := *sc
	c.Prompts = make(map[string]string, len(sc.Prompts))
	for k, v := range sc.Prompts {
		c.Prompts[k] = v
	}
	return &c
}
