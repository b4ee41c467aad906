package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	domain "nyein/internal/core/errors"
	"nyein/internal/shared/observability"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Stage is a pipeline state. A run starts pending and ends done or failed.
type Stage string

const (
	StagePending    Stage = "pending"
	StageValidating Stage = "validating"
	StageStripping  Stage = "stripping"
	StageResolving  Stage = "resolving"
	StageAssembling Stage = "assembling"
	StageEmitting   Stage = "emitting"
	StageDone       Stage = "done"
	StageFailed     Stage = "failed"
)

func IsTerminal(s Stage) bool {
	return s == StageDone || s == StageFailed
}

// isAllowedTransition encodes the linear stage order. Any running stage may
// fail; assembling may finish directly when nothing is emitted.
func isAllowedTransition(from, to Stage) bool {
	if to == StageFailed {
		return !IsTerminal(from)
	}
	switch from {
	case StagePending:
		return to == StageValidating
	case StageValidating:
		return to == StageStripping
	case StageStripping:
		return to == StageResolving
	case StageResolving:
		return to == StageAssembling
	case StageAssembling:
		return to == StageEmitting || to == StageDone
	case StageEmitting:
		return to == StageDone
	default:
		return false
	}
}

// Pipeline tracks one run through the stages. Every transition is logged,
// timed into the stage histogram, and recorded as a span.
type Pipeline struct {
	entry   string
	stage   Stage
	reason  string
	started time.Time
	ctx     context.Context
	span    trace.Span
	history []Stage
}

func newPipeline(ctx context.Context, operation, entry string) *Pipeline {
	ctx, span := observability.Tracer.Start(ctx, "pipeline "+operation,
		trace.WithAttributes(attribute.String("entry", entry)))
	return &Pipeline{
		entry:   entry,
		stage:   StagePending,
		started: time.Now(),
		ctx:     ctx,
		span:    span,
		history: []Stage{StagePending},
	}
}

func (p *Pipeline) Stage() Stage {
	return p.stage
}

// Reason is the failure message once the run has failed.
func (p *Pipeline) Reason() string {
	return p.reason
}

// Stages lists every state the run passed through, in order.
func (p *Pipeline) Stages() []Stage {
	return append([]Stage(nil), p.history...)
}

// Context carries the pipeline span for child operations.
func (p *Pipeline) Context() context.Context {
	return p.ctx
}

func (p *Pipeline) Transition(to Stage) error {
	if !isAllowedTransition(p.stage, to) {
		return domain.Newf(domain.CodeInternal, "disallowed pipeline transition %s -> %s", p.stage, to)
	}
	if p.stage != StagePending {
		observability.StageDuration.WithLabelValues(string(p.stage)).Observe(time.Since(p.started).Seconds())
	}
	slog.Debug("pipeline stage", "entry", p.entry, "from", p.stage, "stage", to, "duration", time.Since(p.started))
	p.span.AddEvent(string(to))
	p.stage = to
	p.started = time.Now()
	p.history = append(p.history, to)
	if IsTerminal(to) {
		p.span.End()
	}
	return nil
}

// advance moves to the next stage, failing the run if the move is illegal.
func (p *Pipeline) advance(to Stage) error {
	if err := p.Transition(to); err != nil {
		return p.Fail(err)
	}
	return nil
}

// Fail records err as the failure reason and returns it annotated with the
// stage it happened in. Failing a terminal run returns err unchanged.
func (p *Pipeline) Fail(err error) error {
	if err == nil || IsTerminal(p.stage) {
		return err
	}
	stage := p.stage
	err = domain.AddContext(err, domain.CtxStage, string(stage))
	p.reason = err.Error()
	p.span.RecordError(err)
	p.span.SetStatus(codes.Error, fmt.Sprintf("%s failed", stage))
	slog.Debug("pipeline failed", "entry", p.entry, "stage", stage, "error", err)
	_ = p.Transition(StageFailed)
	return err
}
