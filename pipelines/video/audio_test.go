package video

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"slide_video_studio/common"
)

type fakeSpeaker struct {
	mu    sync.Mutex
	calls []string
	speak func(call int, text string) ([]byte, error)
}

func (f *fakeSpeaker) Speak(ctx context.Context, text string) ([]byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, text)
	n := len(f.calls)
	f.mu.Unlock()
	return f.speak(n, text)
}

func testAudioConfig() common.AudioConfig {
	cfg := common.DefaultConfig().Audio
	cfg.RetryDelay = 0
	cfg.RateLimitDelay = 0
	return cfg
}

func TestSynthesizeMeasuresDuration(t *testing.T) {
	wav := toneWAV(t, 1.5, 22050)
	speaker := &fakeSpeaker{speak: func(int, string) ([]byte, error) { return wav, nil }}
	sink := NewMemorySink()

	asset, err := NewAudioSynthesizer(speaker, testAudioConfig()).Synthesize(context.Background(), common.Scene{ID: 3, Narration: "Hello there."}, sink)
	if err != nil {
		t.Fatal(err)
	}
	if asset.SceneID != 3 || asset.Placeholder {
		t.Errorf("asset = %+v", asset)
	}
	if asset.DurationSeconds != 1.5 {
		t.Errorf("duration = %v, want 1.5", asset.DurationSeconds)
	}
	if asset.Ref != "mem:audio_2.wav" {
		t.Errorf("ref = %q", asset.Ref)
	}
	if stored, ok := sink.Get(asset.Ref); !ok || len(stored) != len(wav) {
		t.Error("payload not stored")
	}
}

func TestSynthesizeRetriesSmallPayloads(t *testing.T) {
	wav := toneWAV(t, 1, 22050)
	speaker := &fakeSpeaker{speak: func(call int, _ string) ([]byte, error) {
		switch call {
		case 1:
			return nil, errors.New("503")
		case 2:
			return wav[:100], nil
		}
		return wav, nil
	}}

	asset, err := NewAudioSynthesizer(speaker, testAudioConfig()).Synthesize(context.Background(), common.Scene{ID: 1, Narration: "Hi."}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(speaker.calls) != 3 || asset.DurationSeconds != 1 {
		t.Errorf("calls = %d, duration = %v", len(speaker.calls), asset.DurationSeconds)
	}
}

func TestSynthesizeDoesNotRetryUnspeakableText(t *testing.T) {
	speaker := &fakeSpeaker{speak: func(int, string) ([]byte, error) { return nil, ErrNothingToSpeak }}
	cfg := testAudioConfig()
	cfg.RetryDelay = time.Hour

	asset, err := NewAudioSynthesizer(speaker, cfg).Synthesize(context.Background(), common.Scene{ID: 2, Narration: "🚀🚀"}, nil)
	if err == nil || !errors.Is(err, ErrNothingToSpeak) {
		t.Fatalf("err = %v", err)
	}
	if len(speaker.calls) != 1 {
		t.Errorf("calls = %d, want 1", len(speaker.calls))
	}
	if !asset.Placeholder {
		t.Errorf("asset = %+v", asset)
	}
}

func TestSynthesizeFallsBackToPlaceholder(t *testing.T) {
	speaker := &fakeSpeaker{speak: func(int, string) ([]byte, error) { return nil, errors.New("down") }}
	cfg := testAudioConfig()

	asset, err := NewAudioSynthesizer(speaker, cfg).Synthesize(context.Background(), common.Scene{ID: 4, Narration: "Hi."}, NewMemorySink())
	if err == nil || err.SceneID != 4 {
		t.Fatalf("err = %v", err)
	}
	if !asset.Placeholder || asset.DurationSeconds != cfg.PlaceholderSeconds || asset.Ref != "" {
		t.Errorf("asset = %+v", asset)
	}
	if len(speaker.calls) != cfg.MaxAttempts {
		t.Errorf("calls = %d, want %d", len(speaker.calls), cfg.MaxAttempts)
	}
}

func TestSynthesizeEmptyNarration(t *testing.T) {
	speaker := &fakeSpeaker{speak: func(int, string) ([]byte, error) { t.Error("speaker called"); return nil, nil }}
	asset, err := NewAudioSynthesizer(speaker, testAudioConfig()).Synthesize(context.Background(), common.Scene{ID: 1, Narration: "  "}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if asset.Placeholder || asset.DurationSeconds != 3 {
		t.Errorf("asset = %+v", asset)
	}
}

func TestSynthesizeBatchKeepsOrder(t *testing.T) {
	short, long := toneWAV(t, 0.5, 22050), toneWAV(t, 2, 22050)
	speaker := &fakeSpeaker{speak: func(call int, text string) ([]byte, error) {
		if text == "fail." {
			return nil, errors.New("nope")
		}
		if call%2 == 0 {
			return long, nil
		}
		return short, nil
	}}
	scenes := makeScenes(5)
	scenes[2].Narration = "fail."

	cfg := testAudioConfig()
	cfg.MaxAttempts = 1
	batch, err := NewAudioSynthesizer(speaker, cfg).SynthesizeBatch(context.Background(), scenes, NewMemorySink())
	if err != nil {
		t.Fatal(err)
	}
	if len(batch.Assets) != 5 {
		t.Fatalf("assets = %d", len(batch.Assets))
	}
	for i, a := range batch.Assets {
		if a.SceneID != scenes[i].ID {
			t.Errorf("asset %d belongs to scene %d", i, a.SceneID)
		}
	}
	if len(batch.Failures) != 1 || batch.Failures[0].SceneID != 3 {
		t.Errorf("failures = %v", batch.Failures)
	}
	if !batch.Assets[2].Placeholder {
		t.Error("failed scene should be a placeholder")
	}
}

func TestSynthesizeBatchWithoutSpeaker(t *testing.T) {
	batch, err := NewAudioSynthesizer(nil, testAudioConfig()).SynthesizeBatch(context.Background(), makeScenes(3), nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(batch.Assets) != 3 || len(batch.Failures) != 3 {
		t.Errorf("assets = %d, failures = %d", len(batch.Assets), len(batch.Failures))
	}
}

func TestSynthesizeBatchCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	speaker := &fakeSpeaker{speak: func(int, string) ([]byte, error) { return nil, nil }}
	if _, err := NewAudioSynthesizer(speaker, testAudioConfig()).SynthesizeBatch(ctx, makeScenes(3), nil); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v", err)
	}
}
