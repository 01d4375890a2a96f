package common

import (
	"fmt"
	"strings"
)

// SceneKind is the role a scene plays in the video.
type SceneKind string

const (
	KindTitle   SceneKind = "title"
	KindContent SceneKind = "content"
	KindEnding  SceneKind = "ending"
)

// MaxBulletPoints is the most bullet points a single slide may carry.
const MaxBulletPoints = 5

// Scene is one slide of the video: what is shown and what is said over it.
// Scenes are produced by a scene source and are not mutated afterwards.
type Scene struct {
	ID               int       `json:"id"`
	Kind             SceneKind `json:"kind"`
	Heading          string    `json:"heading"`
	Subheading       string    `json:"subheading,omitempty"`
	BulletPoints     []string  `json:"bullet_points"`
	Narration        string    `json:"narration"`
	ImageDescription string    `json:"image_description"`
}

// SlideText is the text rendered on the slide itself (heading, subheading, bullets).
func (s Scene) SlideText() string {
	parts := []string{s.Heading}
	if s.Subheading != "" {
		parts = append(parts, s.Subheading)
	}
	parts = append(parts, s.BulletPoints...)
	return strings.Join(parts, "\n")
}

// Topic selects the colour palette and narrator voice of a video.
type Topic string

const (
	TopicPsychology         Topic = "psychology"
	TopicEducation          Topic = "education"
	TopicStartup            Topic = "startup"
	TopicInvestment         Topic = "investment"
	TopicAITools            Topic = "ai_tools"
	TopicInclusiveEducation Topic = "inclusive_education"
	TopicWeeklySummary      Topic = "weekly_summary"
)

// DefaultTopic is used when no topic is given.
const DefaultTopic = TopicAITools

// Topics lists every known topic in a stable order.
func Topics() []Topic {
	return []Topic{
		TopicPsychology, TopicEducation, TopicStartup, TopicInvestment,
		TopicAITools, TopicInclusiveEducation, TopicWeeklySummary,
	}
}

// ParseTopic maps a user supplied name onto a Topic. Empty input yields DefaultTopic.
func ParseTopic(s string) (Topic, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return DefaultTopic, nil
	}
	for _, t := range Topics() {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown topic %q", s)
}

// PipelineConfig holds the per-run parameters of a single video job.
type PipelineConfig struct {
	SourcePath string // pdf, md or txt
	ScenesPath string // optional pre-made scene list (JSON), skips generation
	OutputDir  string
	Title      string
	Topic      Topic
	GeminiKey  string
	SarvamKey  string
	OpenAIKey  string // Optional
}
