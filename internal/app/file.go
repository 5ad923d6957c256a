package app

import (
	"context"
	"fmt"
	"io"

	"github.com/MrWong99/voxgate/internal/config"
	"github.com/MrWong99/voxgate/internal/observe"
	"github.com/MrWong99/voxgate/internal/pipeline"
	"github.com/MrWong99/voxgate/internal/segment"
	"github.com/MrWong99/voxgate/pkg/audio"
	"github.com/MrWong99/voxgate/pkg/provider/stt"
)

// FileJob describes one offline transcription of a WAV stream.
type FileJob struct {
	// Recognizer transcribes the audio. Required.
	Recognizer stt.Recognizer

	// Config supplies segmentation, hot word and timeout settings.
	Config *config.Config

	// Sink receives the pipeline events.
	Sink pipeline.Sink

	// Metrics defaults to [observe.DefaultMetrics].
	Metrics *observe.Metrics

	// Segment splits the file into utterances with the segmenter. Otherwise
	// the whole file is sent to the recognizer as one utterance.
	Segment bool
}

// TranscribeWAV decodes r and runs it through the pipeline. It returns the
// recognition error of a whole-file job; segmented jobs report per-utterance
// failures through the sink only.
func TranscribeWAV(ctx context.Context, r io.Reader, job FileJob) error {
	clip, err := audio.DecodeWAV(r)
	if err != nil {
		return fmt.Errorf("app: %w", err)
	}
	cfg := job.Config
	if cfg == nil {
		cfg = config.Default()
	}

	rate := job.Recognizer.SampleRate()
	seg := cfg.Segmenter.Segment(rate, clip.Format.Channels)
	// A file decodes far faster than real time, so silence is counted in
	// samples whatever the configured policy.
	seg.Policy = segment.PolicySamples

	p, err := pipeline.New(pipeline.Config{
		Format:     clip.Format,
		Recognizer: job.Recognizer,
		Segment:    seg,
		Sink:       job.Sink,
		Corrector:  newCorrector(cfg.Hotwords),
		Metrics:    job.Metrics,
		Timeout:    cfg.Recognition.Timeout,
	})
	if err != nil {
		return fmt.Errorf("app: %w", err)
	}

	if job.Segment {
		return p.Process(ctx, audio.NewSliceSignal(clip.Samples))
	}
	samples, err := audio.Resample(clip.Samples, clip.Format.SampleRate, rate, clip.Format.Channels)
	if err != nil {
		return fmt.Errorf("app: %w", err)
	}
	return p.Transcribe(ctx, samples)
}
