package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/BaSui01/agentforum/agent/conversation"
	"github.com/BaSui01/agentforum/config"
)

// =============================================================================
// ▶️ run 命令
// =============================================================================

// commonFlags 是 run 与 serve 共享的参数。
type commonFlags struct {
	configPath string
	scenario   string
	turns      int
}

func (f *commonFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&f.configPath, "config", "", "Path to config file")
	fs.StringVar(&f.scenario, "scenario", "", "Scenario name (overrides conversation.scenario)")
	fs.IntVar(&f.turns, "turns", 0, "Number of rounds (overrides conversation.max_turns)")
}

// load 加载配置并应用命令行覆盖，覆盖后重新校验。
func (f *commonFlags) load() (*config.Config, error) {
	cfg, err := loadConfig(f.configPath)
	if err != nil {
		return nil, err
	}
	if f.scenario != "" {
		cfg.Conversation.Scenario = f.scenario
	}
	if f.turns > 0 {
		cfg.Conversation.MaxTurns = f.turns
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func runConversation(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	var flags commonFlags
	flags.register(fs)
	fs.Parse(args)

	cfg, err := flags.load()
	if err != nil {
		return err
	}

	logger, _ := initLogger(cfg.Log)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eng, err := newEngine(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer eng.Close(context.Background())

	return runForeground(ctx, eng.conv, os.Stdout, logger)
}

// runForeground 运行对话并把消息逐条写入 out。ctx 结束时请求协作式取消，
// 当前回合完成后返回。
func runForeground(ctx context.Context, conv *conversation.Conversation, out io.Writer, logger *zap.Logger) error {
	events, unsubscribe := conv.Events().Subscribe(256)
	defer unsubscribe()

	if err := conv.Start(context.WithoutCancel(ctx)); err != nil {
		return err
	}

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				<-conv.Done()
				return nil
			}
			if printEvent(out, ev) {
				<-conv.Done()
				return nil
			}
		case <-ctx.Done():
			logger.Info("interrupt received, finishing current turn")
			conv.Cancel("interrupted")
			ctx = context.Background()
		case <-conv.Done():
			// 先输出已缓冲的事件；终止事件可能因缓冲区满被丢弃，此时以快照为准
			if drainEvents(out, events) {
				return nil
			}
			snap := conv.Snapshot()
			fmt.Fprintf(out, "-- conversation %s %s\n", strings.ToLower(string(snap.Status)), snap.AbortReason)
			return nil
		}
	}
}

// drainEvents 非阻塞地输出缓冲中的事件，输出了终止事件时返回 true。
func drainEvents(out io.Writer, events <-chan conversation.Event) bool {
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return false
			}
			if printEvent(out, ev) {
				return true
			}
		default:
			return false
		}
	}
}

// printEvent 以纯文本输出对话事件，遇到终止事件时返回 true。
func printEvent(out io.Writer, ev conversation.Event) bool {
	switch ev.Type {
	case conversation.EventConversationStarted:
		fmt.Fprintf(out, "-- conversation %s started\n", ev.ConversationID)
	case conversation.EventMessageAppended:
		if ev.Message == nil {
			return false
		}
		fmt.Fprintf(out, "[%d] %s: %s\n", ev.Message.Sequence, ev.Message.SpeakerLabel, ev.Message.DisplayText)
		for _, eff := range ev.Message.Effects {
			fmt.Fprintf(out, "    %s\n", eff.String())
		}
	case conversation.EventParticipantAdded:
		if ev.Participant != nil {
			fmt.Fprintf(out, "-- %s joined (%s)\n", ev.Participant.Label, ev.Participant.ModelRef)
		}
	case conversation.EventTurnSkipped:
		if ev.Participant != nil {
			fmt.Fprintf(out, "-- %s is muted this turn\n", ev.Participant.Label)
		}
	case conversation.EventConversationCompleted:
		fmt.Fprintf(out, "-- conversation completed after %d rounds\n", ev.Round)
		return true
	case conversation.EventConversationAborted:
		fmt.Fprintf(out, "-- conversation aborted: %s\n", ev.Reason)
		return true
	}
	return false
}
