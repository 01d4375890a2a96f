package common

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestBuildScenePrompt(t *testing.T) {
	p := BuildScenePrompt(SceneRequest{Title: "Spaced Repetition", Topic: TopicEducation, SourceText: "body", SceneCount: 13})
	if p.System != SceneSystemPrompt {
		t.Error("system prompt changed")
	}
	for _, want := range []string{"exactly 13 scenes", "Video title: Spaced Repetition", "Topic: education", "Article:\nbody"} {
		if !strings.Contains(p.User, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestBuildScenePromptTruncatesSource(t *testing.T) {
	long := strings.Repeat("語", maxPromptSourceChars+100)
	p := BuildScenePrompt(SceneRequest{SourceText: long, SceneCount: 10})
	article := p.User[strings.Index(p.User, "Article:\n")+len("Article:\n"):]
	if n := utf8.RuneCountInString(article); n != maxPromptSourceChars {
		t.Errorf("article runes = %d, want %d", n, maxPromptSourceChars)
	}
}

func TestDecodeScenes(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want int
	}{
		{"envelope", `{"scenes":[{"id":1,"kind":"title","heading":"A"},{"id":2,"kind":"ending","heading":"B"}]}`, 2},
		{"array", `[{"id":1,"kind":"title","heading":"A"}]`, 1},
		{"fenced", "```json\n{\"scenes\":[{\"id\":1,\"kind\":\"title\",\"heading\":\"A\"}]}\n```", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scenes, err := DecodeScenes(tt.raw)
			if err != nil {
				t.Fatal(err)
			}
			if len(scenes) != tt.want {
				t.Errorf("scenes = %d, want %d", len(scenes), tt.want)
			}
			if scenes[0].Kind != KindTitle || scenes[0].Heading != "A" {
				t.Errorf("first scene = %+v", scenes[0])
			}
		})
	}

	for _, bad := range []string{"", "```json\n```", "not json", "[{"} {
		_, err := DecodeScenes(bad)
		var sve *ScriptValidationError
		if !errors.As(err, &sve) {
			t.Errorf("DecodeScenes(%q) = %v, want *ScriptValidationError", bad, err)
		}
	}
}

func TestSlideText(t *testing.T) {
	s := Scene{Heading: "H", Subheading: "S", BulletPoints: []string{"a", "b"}}
	if got := s.SlideText(); got != "H\nS\na\nb" {
		t.Errorf("slide text = %q", got)
	}
}
