package observability

import (
	"context"
	"errors"
	"time"

	"llmgate/internal/llm"
	"llmgate/internal/models"
	"llmgate/internal/quota"
	"llmgate/internal/ratelimit"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Generator is the guarded generation surface the transports call.
type Generator interface {
	Generate(ctx context.Context, req llm.GenerateRequest) (*models.GenerateResponse, error)
	BatchGenerate(ctx context.Context, prompts []string, systemPrompt string) *models.BatchGenerateResponse
}

// InstrumentedCaller wraps a Generator with OpenTelemetry tracing and
// metrics: call latency, error counts, pre-flight rejections by reason, and
// token consumption.
type InstrumentedCaller struct {
	inner      Generator
	tracer     trace.Tracer
	duration   metric.Float64Histogram
	errorsC    metric.Int64Counter
	rejections metric.Int64Counter
	tokens     metric.Int64Counter
}

// NewInstrumentedCaller creates a Generator wrapper that records trace spans
// and metrics for every generation call.
func NewInstrumentedCaller(inner Generator) (*InstrumentedCaller, error) {
	tracer := otel.Tracer("llmgate/llm")
	meter := otel.Meter("llmgate/llm")

	duration, err := meter.Float64Histogram(
		"llm.call.duration",
		metric.WithDescription("Duration of guarded provider calls in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	errCounter, err := meter.Int64Counter(
		"llm.call.errors",
		metric.WithDescription("Number of failed provider calls"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	rejections, err := meter.Int64Counter(
		"llm.call.rejections",
		metric.WithDescription("Number of calls rejected before reaching the provider"),
		metric.WithUnit("{rejection}"),
	)
	if err != nil {
		return nil, err
	}

	tokens, err := meter.Int64Counter(
		"llm.tokens.used",
		metric.WithDescription("Token consumption reported by the provider"),
		metric.WithUnit("{token}"),
	)
	if err != nil {
		return nil, err
	}

	return &InstrumentedCaller{
		inner:      inner,
		tracer:     tracer,
		duration:   duration,
		errorsC:    errCounter,
		rejections: rejections,
		tokens:     tokens,
	}, nil
}

// Generate runs one guarded call, recording a span and metrics.
func (c *InstrumentedCaller) Generate(ctx context.Context, req llm.GenerateRequest) (*models.GenerateResponse, error) {
	ctx, span := c.tracer.Start(ctx, "llm.Generate",
		trace.WithAttributes(attribute.String("llm.model", req.Model)),
	)
	start := time.Now()

	resp, err := c.inner.Generate(ctx, req)

	attrs := metric.WithAttributes(attribute.String("model", modelAttr(req.Model, resp)))
	c.duration.Record(ctx, time.Since(start).Seconds(), attrs)

	if err != nil {
		if reason, ok := rejectionReason(err); ok {
			c.rejections.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
		} else {
			c.errorsC.Add(ctx, 1, attrs)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.End()
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("llm.attempts", resp.Attempts),
		attribute.Int("llm.prompt_tokens", resp.PromptTokens),
		attribute.Int("llm.completion_tokens", resp.CompletionTokens),
	)
	c.tokens.Add(ctx, int64(resp.PromptTokens),
		metric.WithAttributes(attribute.String("kind", "prompt")))
	c.tokens.Add(ctx, int64(resp.CompletionTokens),
		metric.WithAttributes(attribute.String("kind", "completion")))
	span.SetStatus(codes.Ok, "")
	span.End()

	return resp, nil
}

// BatchGenerate runs a batch under one span; per-item outcomes are visible in
// the underlying Generate spans.
func (c *InstrumentedCaller) BatchGenerate(ctx context.Context, prompts []string, systemPrompt string) *models.BatchGenerateResponse {
	ctx, span := c.tracer.Start(ctx, "llm.BatchGenerate",
		trace.WithAttributes(attribute.Int("llm.batch_size", len(prompts))),
	)
	defer span.End()

	resp := c.inner.BatchGenerate(ctx, prompts, systemPrompt)

	failed := 0
	for _, r := range resp.Results {
		if r.Error != "" {
			failed++
		}
	}
	span.SetAttributes(attribute.Int("llm.batch_failed", failed))
	return resp
}

// rejectionReason labels pre-flight rejections; other errors are provider or
// transport failures.
func rejectionReason(err error) (string, bool) {
	var rlErr *ratelimit.Error
	if errors.As(err, &rlErr) {
		return "rate_limit", true
	}
	var qErr *quota.Error
	if errors.As(err, &qErr) {
		return "quota_" + qErr.Scope, true
	}
	return "", false
}

func modelAttr(requested string, resp *models.GenerateResponse) string {
	if resp != nil && resp.Model != "" {
		return resp.Model
	}
	if requested != "" {
		return requested
	}
	return "default"
}
