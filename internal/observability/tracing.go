// Package observability wires OTLP trace export into the Genkit tracer.
package observability

import (
	"context"
	"time"

	"github.com/firebase/genkit/go/core/tracing"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/docentlabs/docent/internal/log"
)

// Config controls trace export. Traces go to a local collector agent over
// OTLP HTTP; the agent owns authentication and forwarding.
type Config struct {
	Enabled     bool
	AgentHost   string // host:port of the OTLP HTTP receiver
	ServiceName string
	Environment string
}

const shutdownTimeout = 5 * time.Second

// Setup registers an OTLP span processor on Genkit's tracer provider and
// returns a shutdown function. Call Setup before genkit.Init so spans from
// the first requests are captured. Export failures disable tracing rather
// than failing startup.
func Setup(ctx context.Context, cfg Config, logger log.Logger) func() {
	if logger == nil {
		logger = log.NewNop()
	}
	if !cfg.Enabled {
		return func() {}
	}

	agentHost := cfg.AgentHost
	if agentHost == "" {
		agentHost = "localhost:4318"
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(agentHost),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		logger.Warn("creating trace exporter, tracing disabled", "error", err)
		return func() {}
	}

	processor := sdktrace.NewBatchSpanProcessor(exporter)
	tracing.TracerProvider().RegisterSpanProcessor(processor)

	logger.Debug("tracing enabled",
		"agent", agentHost,
		"service", cfg.ServiceName,
		"environment", cfg.Environment)

	shutdown := tracing.TracerProvider().Shutdown
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			logger.Warn("shutting down tracer provider", "error", err)
		}
	}
}
