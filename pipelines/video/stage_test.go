package video

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestStagingLifecycle(t *testing.T) {
	root := t.TempDir()
	s, err := NewStaging(root)
	if err != nil {
		t.Fatal(err)
	}

	scenes := makeScenes(3)
	images := []ImageAsset{{SceneID: 1, PixelData: []byte("a")}, {SceneID: 2, PixelData: []byte("b")}, {SceneID: 3, PixelData: []byte("c")}}
	if err := s.WriteImages(images); err != nil {
		t.Fatal(err)
	}
	for i := range images {
		if _, err := os.Stat(filepath.Join(s.ImagesDir, ImageFileName(i))); err != nil {
			t.Errorf("image %d not staged: %v", i, err)
		}
	}

	tl, err := NewTimingCalculator(testTiming()).Compute(scenes, assetsWithDurations(scenes, 1, 2, 3))
	if err != nil {
		t.Fatal(err)
	}
	path, err := s.WriteTimeline(tl)
	if err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil || decoded["totalFrames"] != float64(tl.TotalFrames) {
		t.Errorf("timeline file = %s", data)
	}

	ref, err := s.Sink().Store(0, []byte("RIFF"))
	if err != nil || ref != "audio_0.wav" {
		t.Errorf("ref = %q, %v", ref, err)
	}
	if _, err := os.Stat(filepath.Join(s.Dir, ref)); err != nil {
		t.Errorf("audio ref does not resolve next to the timeline: %v", err)
	}

	if err := s.Cleanup(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(s.Dir); !os.IsNotExist(err) {
		t.Errorf("staging dir survived cleanup: %v", err)
	}
}

func TestBuildNarrationTrack(t *testing.T) {
	scenes := makeScenes(3)
	tone, err := DecodeWAV(toneWAV(t, 1, 8000))
	if err != nil {
		t.Fatal(err)
	}
	narrated := AudioAsset{SceneID: 2, RawSamples: tone.Bytes(), SampleRate: 8000, Channels: 1, BitsPerSample: 16, DurationSeconds: 1}
	assets := []AudioAsset{
		{SceneID: 1, DurationSeconds: 3, Placeholder: true},
		narrated,
		{SceneID: 3, RawSamples: []byte{1, 0, 2, 0}, SampleRate: 16000, Channels: 1, BitsPerSample: 16, DurationSeconds: 3},
	}
	tl, err := NewTimingCalculator(testTiming()).Compute(scenes, assets)
	if err != nil {
		t.Fatal(err)
	}

	track := BuildNarrationTrack(tl, assets)
	if track == nil {
		t.Fatal("no track")
	}
	wantLen := tl.TotalFrames * 8000 / 30
	if len(track.Samples) != wantLen {
		t.Fatalf("samples = %d, want %d", len(track.Samples), wantLen)
	}
	start := tl.Entries[1].StartFrame * 8000 / 30
	for i, s := range tone.Samples {
		if track.Samples[start+i] != s {
			t.Fatalf("sample %d = %d, want %d", i, track.Samples[start+i], s)
		}
	}
	for i := 0; i < start; i++ {
		if track.Samples[i] != 0 {
			t.Fatalf("placeholder scene is not silent at %d", i)
		}
	}
	// Scene 3 is 16 kHz and stays silent on an 8 kHz track.
	for i := tl.Entries[2].StartFrame * 8000 / 30; i < len(track.Samples); i++ {
		if track.Samples[i] != 0 {
			t.Fatalf("mismatched scene was mixed in at %d", i)
		}
	}

	if BuildNarrationTrack(tl, []AudioAsset{{SceneID: 1}, {SceneID: 2}, {SceneID: 3}}) != nil {
		t.Error("silent attempt should have no track")
	}
}
