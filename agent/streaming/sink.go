package streaming

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/agentforum/agent/conversation"
)

// Sink 接收对话事件。Handle 由单个转发协程顺序调用。
type Sink interface {
	Handle(ctx context.Context, ev conversation.Event) error
}

// Attach 订阅 bus 并在后台把事件逐个交给 sink。
// 返回的 stop 取消订阅并等待转发协程退出；bus 关闭时转发也会结束。
func Attach(bus *conversation.EventBus, sink Sink, buffer int, timeout time.Duration, logger *zap.Logger) (stop func()) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ch, unsubscribe := bus.Subscribe(buffer)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)
		for ev := range ch {
			hctx, hcancel := context.WithTimeout(ctx, timeout)
			if err := sink.Handle(hctx, ev); err != nil {
				logger.Warn("event sink failed",
					zap.String("event", string(ev.Type)),
					zap.Error(err))
			}
			hcancel()
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			unsubscribe()
			<-done
		})
	}
}
