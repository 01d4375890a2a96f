package video

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"slide_video_studio/common"
)

// SceneSource produces the scene list for an attempt.
type SceneSource interface {
	GenerateScenes(ctx context.Context, req common.SceneRequest) ([]common.Scene, error)
}

// FixedSceneSource is implemented by sources that return the same scenes on
// every call. Retrying with a larger scene count cannot change their output.
type FixedSceneSource interface {
	FixedScenes() bool
}

// FileSceneSource serves a pre-made scene list from a JSON file. The requested
// scene count is ignored.
type FileSceneSource struct {
	Path string
}

func (FileSceneSource) FixedScenes() bool { return true }

func (f FileSceneSource) GenerateScenes(ctx context.Context, req common.SceneRequest) ([]common.Scene, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("read scenes: %w", err)
	}
	return ParseScenes(data)
}

// ParseScenes decodes a JSON scene array and validates it.
func ParseScenes(data []byte) ([]common.Scene, error) {
	var scenes []common.Scene
	if err := json.Unmarshal(data, &scenes); err != nil {
		return nil, &ScriptValidationError{Reason: fmt.Sprintf("not a JSON scene array: %v", err)}
	}
	if err := ValidateScenes(scenes); err != nil {
		return nil, err
	}
	return scenes, nil
}

// ValidateScenes checks id contiguity, the first and last kinds and per-scene shape.
func ValidateScenes(scenes []common.Scene) error {
	if len(scenes) < 2 {
		return &ScriptValidationError{Reason: fmt.Sprintf("need at least a title and an ending scene, got %d scene(s)", len(scenes))}
	}
	for i, s := range scenes {
		if s.ID != i+1 {
			return &ScriptValidationError{SceneID: s.ID, Reason: fmt.Sprintf("expected id %d at position %d", i+1, i)}
		}
		switch s.Kind {
		case common.KindTitle, common.KindContent, common.KindEnding:
		default:
			return &ScriptValidationError{SceneID: s.ID, Reason: fmt.Sprintf("unknown kind %q", s.Kind)}
		}
		if strings.TrimSpace(s.Heading) == "" {
			return &ScriptValidationError{SceneID: s.ID, Reason: "empty heading"}
		}
		if len(s.BulletPoints) > common.MaxBulletPoints {
			return &ScriptValidationError{SceneID: s.ID, Reason: fmt.Sprintf("%d bullet points, at most %d allowed", len(s.BulletPoints), common.MaxBulletPoints)}
		}
	}
	if first := scenes[0]; first.Kind != common.KindTitle {
		return &ScriptValidationError{SceneID: first.ID, Reason: fmt.Sprintf("first scene must be %q, got %q", common.KindTitle, first.Kind)}
	}
	if last := scenes[len(scenes)-1]; last.Kind != common.KindEnding {
		return &ScriptValidationError{SceneID: last.ID, Reason: fmt.Sprintf("last scene must be %q, got %q", common.KindEnding, last.Kind)}
	}
	return nil
}
