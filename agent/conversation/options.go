package conversation

import (
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

type options struct {
	settings Settings
	catalog  Catalog
	gateway  ModelGateway
	images   ImageGenerator
	videos   VideoGenerator
	searcher Searcher
	bus      *EventBus
	metrics  MetricsRecorder
	tracer   trace.Tracer
	counter  TokenCounter
	logger   *zap.Logger
	id       string
}

func defaultOptions() options {
	return options{
		settings: DefaultSettings(),
		metrics:  nopRecorder{},
		tracer:   noop.NewTracerProvider().Tracer("agentforum/conversation"),
		logger:   zap.NewNop(),
	}
}

// Option configures a Conversation or an Executor.
type Option func(*options)

// WithSettings sets the run settings.
func WithSettings(s Settings) Option {
	return func(o *options) { o.settings = s }
}

// WithCatalog sets the models available to !add_ai.
func WithCatalog(c Catalog) Option {
	return func(o *options) { o.catalog = c }
}

// WithGateway sets the text completion collaborator.
func WithGateway(g ModelGateway) Option {
	return func(o *options) { o.gateway = g }
}

// WithImageGenerator sets the image collaborator.
func WithImageGenerator(g ImageGenerator) Option {
	return func(o *options) { o.images = g }
}

// WithVideoGenerator sets the video collaborator.
func WithVideoGenerator(g VideoGenerator) Option {
	return func(o *options) { o.videos = g }
}

// WithSearcher sets the search collaborator.
func WithSearcher(s Searcher) Option {
	return func(o *options) { o.searcher = s }
}

// WithEventBus sets the bus events are published on.
func WithEventBus(b *EventBus) Option {
	return func(o *options) { o.bus = b }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m MetricsRecorder) Option {
	return func(o *options) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithTracer sets the tracer used for run and turn spans.
func WithTracer(t trace.Tracer) Option {
	return func(o *options) {
		if t != nil {
			o.tracer = t
		}
	}
}

// WithTokenCounter sets the counter used for message token accounting.
func WithTokenCounter(c TokenCounter) Option {
	return func(o *options) { o.counter = c }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithID overrides the generated conversation id.
func WithID(id string) Option {
	return func(o *options) { o.id = id }
}
