// =============================================================================
// 🧪 测试辅助函数
// =============================================================================
// 提供通用的测试辅助函数和断言
//
// 使用方法:
//
//	testutil.AssertLabels(t, []string{"AI-1", "AI-2"}, conv.Log().Snapshot())
//	testutil.AssertEventuallyTrue(t, func() bool { return condition }, 5*time.Second)
//
// =============================================================================
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/BaSui01/agentforum/agent/conversation"
	"github.com/BaSui01/agentforum/types"
)

// =============================================================================
// 🎯 上下文辅助
// =============================================================================

// TestContext 返回带超时的测试上下文
func TestContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// TestContextWithTimeout 返回带自定义超时的测试上下文
func TestContextWithTimeout(t *testing.T, timeout time.Duration) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	t.Cleanup(cancel)
	return ctx
}

// =============================================================================
// 🔍 断言辅助
// =============================================================================

// AssertLabels 断言日志中的发言者顺序
func AssertLabels(t *testing.T, expected []string, msgs []conversation.Message) {
	t.Helper()

	if len(expected) != len(msgs) {
		t.Errorf("message count mismatch: expected %d, got %d", len(expected), len(msgs))
		return
	}
	for i := range expected {
		if expected[i] != msgs[i].SpeakerLabel {
			t.Errorf("message[%d] speaker mismatch: expected %q, got %q", i, expected[i], msgs[i].SpeakerLabel)
		}
	}
}

// AssertErrorCode 断言错误携带给定错误码
func AssertErrorCode(t *testing.T, err error, code types.ErrorCode) {
	t.Helper()
	if err == nil {
		t.Errorf("expected error with code %s but got nil", code)
		return
	}
	if got := types.CodeOf(err); got != code {
		t.Errorf("error code mismatch: expected %s, got %q (%v)", code, got, err)
	}
}

// AssertEventuallyTrue 每 10ms 检查一次条件，超时后报告失败
func AssertEventuallyTrue(t *testing.T, condition func() bool, timeout time.Duration) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}

	t.Errorf("condition did not become true within %v", timeout)
}

// =============================================================================
// ⏱️ 时间辅助
// =============================================================================

// WaitForEvent 从订阅通道中等待指定类型的事件，跳过其他事件。
// 通道关闭或超时返回 false。
func WaitForEvent(ch <-chan conversation.Event, typ conversation.EventType, timeout time.Duration) (conversation.Event, bool) {
	deadline := time.After(timeout)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return conversation.Event{}, false
			}
			if ev.Type == typ {
				return ev, true
			}
		case <-deadline:
			return conversation.Event{}, false
		}
	}
}
