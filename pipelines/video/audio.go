package video

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"slide_video_studio/common"
)

// Speaker turns text into a WAV payload.
type Speaker interface {
	Speak(ctx context.Context, text string) ([]byte, error)
}

// AudioAsset is a scene's narration. DurationSeconds comes from the sample data,
// except for placeholders which carry the configured default.
type AudioAsset struct {
	SceneID         int
	RawSamples      []byte
	SampleRate      int
	Channels        int
	BitsPerSample   int
	DurationSeconds float64
	Ref             string
	Placeholder     bool
}

// PCM returns the asset's samples decoded back into integers.
func (a AudioAsset) PCM() *PCM {
	p := &PCM{SampleRate: a.SampleRate, Channels: a.Channels, BitDepth: a.BitsPerSample}
	width := a.BitsPerSample / 8
	if width == 0 {
		return p
	}
	n := len(a.RawSamples) / width
	p.Samples = make([]int, n)
	for i := 0; i < n; i++ {
		var v uint32
		for b := 0; b < width; b++ {
			v |= uint32(a.RawSamples[i*width+b]) << (8 * b)
		}
		if width == 1 {
			p.Samples[i] = int(v)
			continue
		}
		// sign-extend
		shift := 32 - 8*width
		p.Samples[i] = int(int32(v<<shift) >> shift)
	}
	return p
}

// BatchAudio is the ordered result of a batch; Failures are the scenes that fell
// back to silence.
type BatchAudio struct {
	Assets   []AudioAsset
	Failures []*SynthesisError
}

// AudioSynthesizer produces measured narration for scenes.
type AudioSynthesizer struct {
	speaker Speaker
	cfg     common.AudioConfig
}

func NewAudioSynthesizer(speaker Speaker, cfg common.AudioConfig) *AudioSynthesizer {
	return &AudioSynthesizer{speaker: speaker, cfg: cfg}
}

func (a *AudioSynthesizer) placeholder(sceneID int, failed bool) AudioAsset {
	return AudioAsset{
		SceneID:         sceneID,
		DurationSeconds: a.cfg.PlaceholderSeconds,
		Placeholder:     failed,
	}
}

// Synthesize narrates one scene and stores the result in sink. It always returns
// an asset; a non-nil SynthesisError means the asset is a silent placeholder.
func (a *AudioSynthesizer) Synthesize(ctx context.Context, scene common.Scene, sink AudioSink) (AudioAsset, *SynthesisError) {
	if strings.TrimSpace(scene.Narration) == "" {
		return a.placeholder(scene.ID, false), nil
	}
	if a.speaker == nil {
		return a.placeholder(scene.ID, true), &SynthesisError{SceneID: scene.ID, Err: errors.New("no speech synthesizer configured")}
	}

	var pcm *PCM
	var payload []byte
	policy := common.RetryPolicy{
		MaxAttempts: a.cfg.MaxAttempts,
		Delay:       a.cfg.RetryDelay,
		IsRetryable: func(err error) bool { return !errors.Is(err, ErrNothingToSpeak) },
		Tag:         fmt.Sprintf("TTS scene %d", scene.ID),
	}
	err := common.Retry(ctx, policy, func(ctx context.Context, attempt int) error {
		wav, err := a.speaker.Speak(ctx, scene.Narration)
		if err != nil {
			return err
		}
		if len(wav) < a.cfg.MinPayloadBytes {
			return fmt.Errorf("audio payload too small: %d bytes (minimum %d)", len(wav), a.cfg.MinPayloadBytes)
		}
		p, err := DecodeWAV(wav)
		if err != nil {
			return err
		}
		pcm, payload = p, wav
		return nil
	})
	if err != nil {
		log.Printf("[TTS] scene %d: using %.1fs silent placeholder: %v", scene.ID, a.cfg.PlaceholderSeconds, err)
		return a.placeholder(scene.ID, true), &SynthesisError{SceneID: scene.ID, Err: err}
	}

	raw := pcm.Bytes()
	asset := AudioAsset{
		SceneID:         scene.ID,
		RawSamples:      raw,
		SampleRate:      pcm.SampleRate,
		Channels:        pcm.Channels,
		BitsPerSample:   pcm.BitDepth,
		DurationSeconds: PCMDuration(len(raw), pcm.SampleRate, pcm.Channels, pcm.BytesPerSample()),
	}
	if sink != nil {
		ref, err := sink.Store(scene.ID-1, payload)
		if err != nil {
			return a.placeholder(scene.ID, true), &SynthesisError{SceneID: scene.ID, Err: err}
		}
		asset.Ref = ref
	}
	return asset, nil
}

// SynthesizeBatch narrates scenes in order, one external call at a time with a
// fixed pause between calls. Only cancellation aborts the batch.
func (a *AudioSynthesizer) SynthesizeBatch(ctx context.Context, scenes []common.Scene, sink AudioSink) (*BatchAudio, error) {
	out := &BatchAudio{Assets: make([]AudioAsset, 0, len(scenes))}
	called := false
	for _, scene := range scenes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		external := strings.TrimSpace(scene.Narration) != "" && a.speaker != nil
		if external && called {
			if err := common.Sleep(ctx, a.cfg.RateLimitDelay); err != nil {
				return nil, err
			}
		}
		called = called || external

		asset, synthErr := a.Synthesize(ctx, scene, sink)
		if synthErr != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			out.Failures = append(out.Failures, synthErr)
		} else {
			log.Printf("[TTS] scene %d: %.2fs of narration", scene.ID, asset.DurationSeconds)
		}
		out.Assets = append(out.Assets, asset)
	}
	return out, nil
}
