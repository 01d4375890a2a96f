package common

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"
)

// TopicStyle is the look and voice assigned to a topic.
type TopicStyle struct {
	Primary     string `yaml:"primary"`
	Secondary   string `yaml:"secondary"`
	Background  string `yaml:"background"`
	Background2 string `yaml:"background_secondary"`
	Voice       string `yaml:"voice"`
}

// Voice presets and the speaker each maps to per TTS provider.
const (
	VoiceDefault = "default"
	VoiceBright  = "bright"
	VoiceCalm    = "calm"
	VoiceWarm    = "warm"
)

// DefaultTopicStyles returns a fresh copy of the built-in palette table.
func DefaultTopicStyles() map[Topic]TopicStyle {
	return map[Topic]TopicStyle{
		TopicPsychology:         {Primary: "#00b4d8", Secondary: "#90e0ef", Background: "#1a1a2e", Background2: "#16213e", Voice: VoiceDefault},
		TopicEducation:          {Primary: "#10b981", Secondary: "#6ee7b7", Background: "#1a1a2e", Background2: "#1e3a3a", Voice: VoiceDefault},
		TopicStartup:            {Primary: "#f59e0b", Secondary: "#fcd34d", Background: "#1a1a2e", Background2: "#2d2a1e", Voice: VoiceBright},
		TopicInvestment:         {Primary: "#14b8a6", Secondary: "#5eead4", Background: "#1a1a2e", Background2: "#1a2e2e", Voice: VoiceDefault},
		TopicAITools:            {Primary: "#3b82f6", Secondary: "#93c5fd", Background: "#1a1a2e", Background2: "#1e293b", Voice: VoiceBright},
		TopicInclusiveEducation: {Primary: "#06b6d4", Secondary: "#67e8f9", Background: "#1a1a2e", Background2: "#164e63", Voice: VoiceCalm},
		TopicWeeklySummary:      {Primary: "#0ea5e9", Secondary: "#7dd3fc", Background: "#1a1a2e", Background2: "#0c4a6e", Voice: VoiceWarm},
	}
}

// SarvamSpeakers maps voice presets onto Sarvam bulbul speakers.
func SarvamSpeakers() map[string]string {
	return map[string]string{
		VoiceDefault: "anushka",
		VoiceBright:  "manisha",
		VoiceCalm:    "abhilash",
		VoiceWarm:    "vidya",
	}
}

// ParseHexColor parses "#rrggbb" or "#rgb".
func ParseHexColor(s string) (color.RGBA, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) == 3 {
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	}
	if len(s) != 6 {
		return color.RGBA{}, fmt.Errorf("invalid hex color %q", s)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid hex color %q: %w", s, err)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
}
