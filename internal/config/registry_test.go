package config_test

import (
	"errors"
	"slices"
	"testing"

	"github.com/MrWong99/voxgate/internal/config"
	"github.com/MrWong99/voxgate/pkg/audio"
	audiomock "github.com/MrWong99/voxgate/pkg/audio/mock"
	"github.com/MrWong99/voxgate/pkg/provider/stt"
	sttmock "github.com/MrWong99/voxgate/pkg/provider/stt/mock"
)

func TestRegistry_CreateRecognizer(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()

	var gotEntry config.ProviderEntry
	var gotKeywords []stt.KeywordBoost
	reg.RegisterRecognizer("mock", func(e config.ProviderEntry, kw []stt.KeywordBoost) (stt.Recognizer, error) {
		gotEntry, gotKeywords = e, kw
		return &sttmock.Recognizer{RecognizerName: e.Model}, nil
	})

	kw := []stt.KeywordBoost{{Keyword: "Grafana", Boost: 1}}
	rec, err := reg.CreateRecognizer(config.ProviderEntry{Name: "mock", Model: "tiny"}, kw)
	if err != nil {
		t.Fatalf("CreateRecognizer: %v", err)
	}
	if stt.NameOf(rec) != "tiny" || gotEntry.Model != "tiny" || len(gotKeywords) != 1 {
		t.Errorf("factory saw entry=%+v keywords=%v", gotEntry, gotKeywords)
	}
}

func TestRegistry_NotRegistered(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()
	if _, err := reg.CreateRecognizer(config.ProviderEntry{Name: "nope"}, nil); !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("recognizer err = %v", err)
	}
	if _, err := reg.CreateSource(config.CaptureConfig{Source: "nope"}); !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("source err = %v", err)
	}
}

func TestRegistry_FactoryErrorWrapped(t *testing.T) {
	t.Parallel()
	errBoom := errors.New("model file missing")
	reg := config.NewRegistry()
	reg.RegisterRecognizer("whisper-native", func(config.ProviderEntry, []stt.KeywordBoost) (stt.Recognizer, error) {
		return nil, errBoom
	})
	_, err := reg.CreateRecognizer(config.ProviderEntry{Name: "whisper-native"}, nil)
	if !errors.Is(err, errBoom) {
		t.Fatalf("err = %v, want wrapped factory error", err)
	}
}

func TestRegistry_SourcesAndNames(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()
	reg.RegisterSource("mock", func(c config.CaptureConfig) (audio.Source, error) {
		return &audiomock.Source{SourceFormat: audio.Format{SampleRate: c.SampleRate, Channels: c.Channels}}, nil
	})
	reg.RegisterRecognizer("b", nil)
	reg.RegisterRecognizer("a", nil)

	src, err := reg.CreateSource(config.CaptureConfig{Source: "mock", SampleRate: 44100, Channels: 2})
	if err != nil {
		t.Fatalf("CreateSource: %v", err)
	}
	if f := src.Format(); f.SampleRate != 44100 || f.Channels != 2 {
		t.Errorf("Format = %+v", f)
	}
	if got := reg.RecognizerNames(); !slices.Equal(got, []string{"a", "b"}) {
		t.Errorf("RecognizerNames = %v", got)
	}
	if got := reg.SourceNames(); !slices.Equal(got, []string{"mock"}) {
		t.Errorf("SourceNames = %v", got)
	}
}
