package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap/zaptest"

	"github.com/BaSui01/agentforum/config"
)

// restoreGlobals 在测试结束时还原全局 provider
func restoreGlobals(t *testing.T) {
	t.Helper()
	tp := otel.GetTracerProvider()
	mp := otel.GetMeterProvider()
	t.Cleanup(func() {
		otel.SetTracerProvider(tp)
		otel.SetMeterProvider(mp)
	})
}

func enabledConfig(insecure bool) config.TelemetryConfig {
	return config.TelemetryConfig{
		Enabled:      true,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "agentforum-test",
		SampleRate:   1.0,
		Insecure:     insecure,
	}
}

func shutdown(t *testing.T, p *Providers) {
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = p.Shutdown(ctx)
	})
}

func TestInit_Disabled(t *testing.T) {
	restoreGlobals(t)

	p, err := Init(context.Background(), config.TelemetryConfig{}, Service{Version: "v0.1.0"}, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.False(t, p.Enabled())

	_, span := p.Tracer(TracerConversation).Start(context.Background(), "conversation.turn")
	assert.False(t, span.IsRecording())
	span.End()
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestInit_Enabled(t *testing.T) {
	for _, insecure := range []bool{true, false} {
		restoreGlobals(t)

		p, err := Init(context.Background(), enabledConfig(insecure), Service{Scenario: "Philosophy Debate", Mode: "ai-ai"}, nil)
		require.NoError(t, err)
		shutdown(t, p)

		assert.True(t, p.Enabled())
		_, tpIsSDK := otel.GetTracerProvider().(*sdktrace.TracerProvider)
		_, mpIsSDK := otel.GetMeterProvider().(*sdkmetric.MeterProvider)
		assert.True(t, tpIsSDK)
		assert.True(t, mpIsSDK)

		_, span := p.Tracer(TracerGateway).Start(context.Background(), "gateway.complete")
		assert.True(t, span.IsRecording())
		span.End()
	}
}

func TestService_Attributes(t *testing.T) {
	attrs := Service{Version: "v1.2.3", Scenario: "Startup Pitch", Mode: "human-ai"}.attributes("agentforum")
	set := attribute.NewSet(attrs...)

	v, ok := set.Value("service.name")
	require.True(t, ok)
	assert.Equal(t, "agentforum", v.AsString())
	v, _ = set.Value("service.version")
	assert.Equal(t, "v1.2.3", v.AsString())
	v, _ = set.Value("agentforum.scenario")
	assert.Equal(t, "Startup Pitch", v.AsString())
	v, _ = set.Value("agentforum.mode")
	assert.Equal(t, "human-ai", v.AsString())

	bare := attribute.NewSet(Service{}.attributes("x")...)
	v, _ = bare.Value("service.version")
	assert.Equal(t, "dev", v.AsString())
	_, ok = bare.Value("agentforum.scenario")
	assert.False(t, ok)
}

func TestProviders_NilReceiver(t *testing.T) {
	var p *Providers
	assert.NoError(t, p.Shutdown(context.Background()))
	assert.False(t, p.Enabled())
	assert.NotNil(t, p.Tracer(TracerHTTP))
}
