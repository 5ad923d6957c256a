package pipeline

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrWong99/voxgate/internal/observe"
)

// recognize runs one recognizer call under the configured timeout and
// reports the outcome. A failure is logged, counted, emitted and returned;
// the processing loop ignores it and keeps listening.
func (p *Processor) recognize(ctx context.Context, u utterance) error {
	audioSec := p.seconds(len(u.samples))
	ctx, span := observe.StartSpan(ctx, "pipeline.recognize",
		trace.WithAttributes(
			attribute.String("utterance.id", u.id.String()),
			attribute.String("stt.provider", p.recName),
			attribute.Int("audio.samples", len(u.samples)),
			attribute.Bool("utterance.forced", u.forced),
		),
	)
	defer span.End()

	rctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	tr, err := p.rec.Transcribe(rctx, u.samples)
	latency := time.Since(start)
	p.metrics.RecordRecognition(ctx, p.recName, latency.Seconds(), err)

	if err != nil {
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			observe.Logger(ctx).Debug("pipeline: recognition cancelled", "utterance_id", u.id)
			p.metrics.RecordUtterance(ctx, observe.OutcomeDiscarded, audioSec)
			return err
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		p.failures.Add(1)
		p.metrics.RecordUtterance(ctx, observe.OutcomeFailed, audioSec)
		p.emit(Event{
			Kind:           KindError,
			UtteranceID:    u.id,
			Samples:        len(u.samples),
			AudioSeconds:   audioSec,
			Forced:         u.forced,
			Provider:       p.recName,
			Latency:        latency,
			LatencySeconds: latency.Seconds(),
			Err:            err.Error(),
		})
		return err
	}

	e := Event{
		Kind:           KindResult,
		UtteranceID:    u.id,
		Samples:        len(u.samples),
		AudioSeconds:   audioSec,
		Forced:         u.forced,
		Provider:       p.recName,
		Latency:        latency,
		LatencySeconds: latency.Seconds(),
	}
	if c := p.corrector.Load(); c != nil {
		tr, e.Corrections = c.Correct(tr)
	}
	e.Text = tr.Text
	e.Confidence = tr.Confidence
	e.Language = tr.Language

	outcome := observe.OutcomeTranscribed
	if tr.Empty() {
		outcome = observe.OutcomeEmpty
	}
	span.SetAttributes(
		attribute.String("utterance.outcome", outcome),
		attribute.Int("transcript.corrections", len(e.Corrections)),
	)
	p.metrics.RecordUtterance(ctx, outcome, audioSec)
	p.emit(e)
	return nil
}
