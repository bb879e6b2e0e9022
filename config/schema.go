package config

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// Schema 返回 Config 的 JSON Schema，字段名取自 yaml 标签，供编辑器校验配置文件
func Schema() ([]byte, error) {
	r := &jsonschema.Reflector{
		ExpandedStruct: true,
		FieldNameTag:   "yaml",
	}
	s := r.Reflect(&Config{})
	s.Title = "AgentForum Configuration"
	s.Description = "Configuration file for the agentforum command."
	// 所有字段都有默认值
	s.Required = nil
	return json.MarshalIndent(s, "", "  ")
}
