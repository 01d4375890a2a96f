package video

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strings"
	"unicode/utf8"

	"slide_video_studio/common"
)

// SubtitleSegment is a span of narration shown on screen.
type SubtitleSegment struct {
	Text       string
	StartFrame int
	EndFrame   int
}

// TimelineEntry is one scene's place in the video.
type TimelineEntry struct {
	SceneIndex      int
	SceneID         int
	Heading         string
	StartFrame      int
	EndFrame        int
	DurationSeconds float64
	AudioRef        string
	Subtitles       []SubtitleSegment
}

// Frames is the entry's length in frames.
func (e TimelineEntry) Frames() int { return e.EndFrame - e.StartFrame }

// Timeline is the frame-accurate schedule handed to the renderer.
type Timeline struct {
	FPS         int
	TotalFrames int
	Entries     []TimelineEntry
}

// DurationSeconds is the total running time.
func (t *Timeline) DurationSeconds() float64 {
	if t.FPS == 0 {
		return 0
	}
	return float64(t.TotalFrames) / float64(t.FPS)
}

// Valid reports whether entries tile [0, TotalFrames) without gaps or overlaps.
func (t *Timeline) Valid() bool {
	next := 0
	for _, e := range t.Entries {
		if e.StartFrame != next || e.EndFrame < e.StartFrame {
			return false
		}
		next = e.EndFrame
	}
	return next == t.TotalFrames
}

type timelineFile struct {
	FPS         int         `json:"fps"`
	TotalFrames int         `json:"totalFrames"`
	Slides      []slideFile `json:"slides"`
}

type slideFile struct {
	Index      int            `json:"index"`
	SceneID    int            `json:"sceneId"`
	Heading    string         `json:"heading"`
	Image      string         `json:"image"`
	StartFrame int            `json:"startFrame"`
	EndFrame   int            `json:"endFrame"`
	Duration   float64        `json:"duration"`
	AudioRef   string         `json:"audioRef"`
	Subtitles  []subtitleFile `json:"subtitles"`
}

type subtitleFile struct {
	Text       string `json:"text"`
	StartFrame int    `json:"startFrame"`
	EndFrame   int    `json:"endFrame"`
}

// MarshalJSON writes the renderer's timeline format.
func (t *Timeline) MarshalJSON() ([]byte, error) {
	f := timelineFile{FPS: t.FPS, TotalFrames: t.TotalFrames, Slides: make([]slideFile, 0, len(t.Entries))}
	for _, e := range t.Entries {
		s := slideFile{
			Index:      e.SceneIndex,
			SceneID:    e.SceneID,
			Heading:    e.Heading,
			Image:      ImageFileName(e.SceneIndex),
			StartFrame: e.StartFrame,
			EndFrame:   e.EndFrame,
			Duration:   e.DurationSeconds,
			AudioRef:   e.AudioRef,
			Subtitles:  make([]subtitleFile, 0, len(e.Subtitles)),
		}
		for _, sub := range e.Subtitles {
			s.Subtitles = append(s.Subtitles, subtitleFile{Text: sub.Text, StartFrame: sub.StartFrame, EndFrame: sub.EndFrame})
		}
		f.Slides = append(f.Slides, s)
	}
	return json.Marshal(f)
}

// TimingCalculator turns measured narration into a Timeline.
type TimingCalculator struct {
	cfg common.TimingConfig
}

func NewTimingCalculator(cfg common.TimingConfig) *TimingCalculator {
	return &TimingCalculator{cfg: cfg}
}

// SceneFrames is the frame count for a narration of the given length.
func (c *TimingCalculator) SceneFrames(audioSeconds float64) (clamped float64, frames int) {
	raw := audioSeconds + c.cfg.AudioPaddingSeconds
	clamped = math.Min(math.Max(raw, c.cfg.MinSceneSeconds), c.cfg.MaxSceneSeconds)
	frames = int(math.Round(clamped * float64(c.cfg.FPS)))
	return clamped, frames
}

// Compute lays scenes end to end. audio[i] must belong to scenes[i].
func (c *TimingCalculator) Compute(scenes []common.Scene, audio []AudioAsset) (*Timeline, error) {
	if len(scenes) != len(audio) {
		return nil, fmt.Errorf("timing: %d audio assets for %d scenes", len(audio), len(scenes))
	}
	tl := &Timeline{FPS: c.cfg.FPS, Entries: make([]TimelineEntry, 0, len(scenes))}
	start := 0
	for i, scene := range scenes {
		if audio[i].SceneID != scene.ID {
			return nil, fmt.Errorf("timing: audio at position %d belongs to scene %d, want %d", i, audio[i].SceneID, scene.ID)
		}
		clamped, frames := c.SceneFrames(audio[i].DurationSeconds)
		end := start + frames
		tl.Entries = append(tl.Entries, TimelineEntry{
			SceneIndex:      i,
			SceneID:         scene.ID,
			Heading:         scene.Heading,
			StartFrame:      start,
			EndFrame:        end,
			DurationSeconds: clamped,
			AudioRef:        audio[i].Ref,
			Subtitles:       c.subtitles(scene.Narration, start, end),
		})
		start = end
	}
	tl.TotalFrames = start
	return tl, nil
}

var (
	cjkSentenceEnd   = regexp.MustCompile(`[。！？]+`)
	latinSentenceEnd = regexp.MustCompile(`[.!?]+(\s+|$)|[!?]+`)
)

// SplitSentences splits narration into trimmed, non-empty sentences. Text without
// a sentence end is a single sentence.
func SplitSentences(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	var out []string
	for _, part := range cjkSentenceEnd.Split(text, -1) {
		for _, s := range latinSentenceEnd.Split(part, -1) {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	}
	if len(out) == 0 {
		return []string{text}
	}
	return out
}

func (c *TimingCalculator) subtitles(narration string, start, end int) []SubtitleSegment {
	sentences := SplitSentences(narration)
	if len(sentences) == 0 {
		return nil
	}
	span := end - start
	per := span / len(sentences)
	segs := make([]SubtitleSegment, len(sentences))
	cur := start
	for i, s := range sentences {
		segEnd := cur + per
		if i == len(sentences)-1 {
			segEnd = end
		}
		segs[i] = SubtitleSegment{Text: truncateDisplay(s, c.cfg.SubtitleMaxChars), StartFrame: cur, EndFrame: segEnd}
		cur = segEnd
	}
	return segs
}

func truncateDisplay(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit]) + "..."
}
