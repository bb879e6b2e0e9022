// 包 image 提供图像生成提供者接口与 OpenAI 图像实现.
package image

import (
	"context"
	"time"
)

// GenerateRequest 代表图像生成请求。
type GenerateRequest struct {
	Prompt         string `json:"prompt"`
	Model          string `json:"model,omitempty"`
	N              int    `json:"n,omitempty"`
	Size           string `json:"size,omitempty"`            // 1024x1024, 1792x1024, etc.
	Quality        string `json:"quality,omitempty"`         // standard, hd
	Style          string `json:"style,omitempty"`           // vivid, natural
	ResponseFormat string `json:"response_format,omitempty"` // url, b64_json
}

// GenerateResponse 代表图像生成的响应.
type GenerateResponse struct {
	Provider  string      `json:"provider"`
	Model     string      `json:"model"`
	Images    []ImageData `json:"images"`
	CreatedAt time.Time   `json:"created_at"`
}

// ImageData 代表生成的图像.
type ImageData struct {
	URL           string `json:"url,omitempty"`
	B64JSON       string `json:"b64_json,omitempty"`
	RevisedPrompt string `json:"revised_prompt,omitempty"`
}

// Ref 返回可展示的图像引用：优先 URL，其次 data URI。
func (d ImageData) Ref() string {
	if d.URL != "" {
		return d.URL
	}
	if d.B64JSON != "" {
		return "data:image/png;base64," + d.B64JSON
	}
	return ""
}

// Provider 定义了图像生成提供者接口.
type Provider interface {
	// Generate 从文本提示生成图像。
	Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error)

	// Name 返回提供者名称。
	Name() string
}
