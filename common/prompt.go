package common

import (
	"encoding/json"
	"fmt"
	"strings"
)

// SceneRequest asks a text model for a scene list.
type SceneRequest struct {
	Title      string
	Topic      Topic
	SourceText string
	SceneCount int
}

// maxPromptSourceChars keeps prompts within the model context.
const maxPromptSourceChars = 30000

// SceneSystemPrompt is the fixed instruction every scene writer runs under.
const SceneSystemPrompt = `You write scripts for educational slide videos. Reply with JSON only: {"scenes": [...]} where every scene has id, kind, heading, subheading, bullet_points, narration, image_description.`

// ScenePrompt is the system/user message pair sent to a scene writer.
type ScenePrompt struct {
	System string
	User   string
}

// BuildScenePrompt builds the prompt shared by every scene writer.
func BuildScenePrompt(req SceneRequest) ScenePrompt {
	source := req.SourceText
	if r := []rune(source); len(r) > maxPromptSourceChars {
		source = string(r[:maxPromptSourceChars])
	}

	var sb strings.Builder
	sb.WriteString("Turn the article below into a narrated slide video.\n")
	sb.WriteString(fmt.Sprintf("- Produce exactly %d scenes.\n", req.SceneCount))
	sb.WriteString("- Scene ids start at 1 and increase by one.\n")
	sb.WriteString(`- The first scene has kind "title", the last has kind "ending", every other scene has kind "content".` + "\n")
	sb.WriteString(fmt.Sprintf("- At most %d bullet_points per scene, each under 40 characters.\n", MaxBulletPoints))
	sb.WriteString("- narration is the spoken script for the scene, 2 to 4 sentences, no markdown.\n")
	sb.WriteString("- image_description describes a background illustration with no text in it.\n")
	sb.WriteString("- Do not use emoji.\n")
	if req.Title != "" {
		sb.WriteString(fmt.Sprintf("\nVideo title: %s\n", req.Title))
	}
	if req.Topic != "" {
		sb.WriteString(fmt.Sprintf("Topic: %s\n", req.Topic))
	}
	sb.WriteString("\nArticle:\n")
	sb.WriteString(source)

	return ScenePrompt{System: SceneSystemPrompt, User: sb.String()}
}

// SceneList is the JSON envelope scene writers reply with.
type SceneList struct {
	Scenes []Scene `json:"scenes" jsonschema_description:"Ordered scenes of the video"`
}

// DecodeScenes parses a model reply. Both the envelope and a bare array are accepted,
// optionally wrapped in a markdown code fence. A reply that does not decode is a
// *ScriptValidationError.
func DecodeScenes(raw string) ([]Scene, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, &ScriptValidationError{Reason: "empty scene reply"}
	}

	if strings.HasPrefix(raw, "[") {
		var scenes []Scene
		if err := json.Unmarshal([]byte(raw), &scenes); err != nil {
			return nil, &ScriptValidationError{Reason: fmt.Sprintf("decode scene array: %v", err)}
		}
		return scenes, nil
	}
	var list SceneList
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		return nil, &ScriptValidationError{Reason: fmt.Sprintf("decode scene list: %v", err)}
	}
	return list.Scenes, nil
}
