package video

import (
	"sync"
	"time"

	"slide_video_studio/common"
)

// AttemptSummary records how one attempt ended.
type AttemptSummary struct {
	Attempt           int      `json:"attempt"`
	SceneCount        int      `json:"scene_count"`
	OverallPercentage float64  `json:"overall_percentage"`
	Passed            bool     `json:"passed"`
	HardFloorViolated bool     `json:"hard_floor_violated"`
	Issues            []string `json:"issues,omitempty"`
}

// RunState is the persisted progress of a pipeline run.
type RunState struct {
	mu   sync.Mutex
	path string

	RunID     string           `json:"run_id"`
	Title     string           `json:"title"`
	Topic     common.Topic     `json:"topic"`
	Stage     Stage            `json:"stage"`
	Attempt   int              `json:"attempt"`
	Scenes    int              `json:"requested_scenes"`
	Attempts  []AttemptSummary `json:"attempts"`
	VideoPath string           `json:"video_path,omitempty"`
	Error     string           `json:"error,omitempty"`
	StartedAt time.Time        `json:"started_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

func newRunState(path, runID, title string, topic common.Topic) *RunState {
	now := time.Now()
	return &RunState{path: path, RunID: runID, Title: title, Topic: topic, StartedAt: now, UpdatedAt: now}
}

// update applies fn and saves the state. Save errors are returned but the run
// does not depend on them.
func (s *RunState) update(fn func(*RunState)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s)
	s.UpdatedAt = time.Now()
	if s.path == "" {
		return nil
	}
	return common.WriteJSON(s.path, s)
}

func summarize(attempt, scenes int, r *QualityReport) AttemptSummary {
	return AttemptSummary{
		Attempt:           attempt,
		SceneCount:        scenes,
		OverallPercentage: r.OverallPercentage,
		Passed:            r.Passed,
		HardFloorViolated: r.HardFloorViolated,
		Issues:            r.AllIssues(),
	}
}
