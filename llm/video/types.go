// Package video provides video generation provider interfaces.
package video

import (
	"context"
	"time"
)

// TaskStatus is the state of an asynchronous generation task.
type TaskStatus string

const (
	TaskPending   TaskStatus = "PENDING"
	TaskRunning   TaskStatus = "RUNNING"
	TaskSucceeded TaskStatus = "SUCCEEDED"
	TaskFailed    TaskStatus = "FAILED"
)

// GenerateRequest represents a video generation request.
type GenerateRequest struct {
	Prompt      string  `json:"prompt"`
	Model       string  `json:"model,omitempty"`
	Duration    float64 `json:"duration,omitempty"`     // Duration in seconds
	AspectRatio string  `json:"aspect_ratio,omitempty"` // 16:9, 9:16, 1:1
	Seed        int64   `json:"seed,omitempty"`
	ImageURL    string  `json:"image_url,omitempty"` // Image-to-video URL
}

// GenerateResponse represents the response from video generation. When the
// task has not finished within the provider's wait window, Pending is set
// and Videos is empty; TaskID can be polled with Status.
type GenerateResponse struct {
	Provider  string      `json:"provider"`
	Model     string      `json:"model"`
	TaskID    string      `json:"task_id"`
	Pending   bool        `json:"pending"`
	Videos    []VideoData `json:"videos"`
	CreatedAt time.Time   `json:"created_at"`
}

// VideoData represents a generated video.
type VideoData struct {
	URL      string  `json:"url,omitempty"`
	Duration float64 `json:"duration,omitempty"`
}

// Provider defines the video generation provider interface.
type Provider interface {
	// Generate submits a generation task and waits for it up to the
	// provider's wait window.
	Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error)

	// Status polls a previously submitted task once.
	Status(ctx context.Context, taskID string) (*GenerateResponse, error)

	// Name returns the provider name.
	Name() string
}
