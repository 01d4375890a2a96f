package video

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
)

// Staging is the scratch directory of one attempt's render hand-off: timeline,
// narration files and images. Everything in it is removed by Cleanup.
type Staging struct {
	Dir       string
	ImagesDir string
}

// NewStaging creates <root>/stage and its images directory.
func NewStaging(root string) (*Staging, error) {
	s := &Staging{Dir: filepath.Join(root, "stage")}
	s.ImagesDir = filepath.Join(s.Dir, "images")
	if err := os.MkdirAll(s.ImagesDir, 0755); err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}
	return s, nil
}

// Sink stores narration next to the timeline so audio refs resolve relative to it.
func (s *Staging) Sink() AudioSink {
	return DirSink{Dir: s.Dir}
}

func (s *Staging) WriteImages(images []ImageAsset) error {
	for i, img := range images {
		path := filepath.Join(s.ImagesDir, ImageFileName(i))
		if err := os.WriteFile(path, img.PixelData, 0644); err != nil {
			return fmt.Errorf("stage image for scene %d: %w", img.SceneID, err)
		}
	}
	return nil
}

func (s *Staging) WriteTimeline(tl *Timeline) (string, error) {
	data, err := json.MarshalIndent(tl, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal timeline: %w", err)
	}
	path := filepath.Join(s.Dir, "timeline.json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write timeline: %w", err)
	}
	return path, nil
}

// WriteNarrationTrack writes narration.wav with every scene's audio placed at its
// start frame and silence elsewhere. It returns "" when no scene has audio.
func (s *Staging) WriteNarrationTrack(tl *Timeline, assets []AudioAsset) (string, error) {
	track := BuildNarrationTrack(tl, assets)
	if track == nil {
		return "", nil
	}
	data, err := EncodeWAV(track)
	if err != nil {
		return "", err
	}
	path := filepath.Join(s.Dir, "narration.wav")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write narration track: %w", err)
	}
	return path, nil
}

// BuildNarrationTrack lays scene audio out along the timeline. The format of the
// first narrated scene wins; scenes in another format are left silent.
func BuildNarrationTrack(tl *Timeline, assets []AudioAsset) *PCM {
	var format *PCM
	for _, a := range assets {
		if len(a.RawSamples) > 0 {
			format = &PCM{SampleRate: a.SampleRate, Channels: a.Channels, BitDepth: a.BitsPerSample}
			break
		}
	}
	if format == nil || tl.FPS <= 0 {
		return nil
	}

	frameToSample := func(frame int) int {
		return int(int64(frame) * int64(format.SampleRate) / int64(tl.FPS))
	}
	total := frameToSample(tl.TotalFrames) * format.Channels
	track := &PCM{
		Samples:    make([]int, total),
		SampleRate: format.SampleRate,
		Channels:   format.Channels,
		BitDepth:   format.BitDepth,
	}
	if quiet := track.silence(); quiet != 0 {
		for i := range track.Samples {
			track.Samples[i] = quiet
		}
	}

	for i, e := range tl.Entries {
		if i >= len(assets) || len(assets[i].RawSamples) == 0 {
			continue
		}
		pcm := assets[i].PCM()
		if !pcm.SameFormat(track) {
			log.Printf("[VIDEO] scene %d audio is %d Hz/%d ch/%d bit, track is %d Hz/%d ch/%d bit; leaving it silent",
				e.SceneID, pcm.SampleRate, pcm.Channels, pcm.BitDepth, track.SampleRate, track.Channels, track.BitDepth)
			continue
		}
		from := frameToSample(e.StartFrame) * track.Channels
		to := frameToSample(e.EndFrame) * track.Channels
		n := copy(track.Samples[from:to], pcm.Samples)
		if n < len(pcm.Samples) {
			log.Printf("[VIDEO] scene %d narration cut at %.1fs", e.SceneID, e.DurationSeconds)
		}
	}
	return track
}

func (s *Staging) Cleanup() error {
	return os.RemoveAll(s.Dir)
}
