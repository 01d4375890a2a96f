package video

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"slide_video_studio/common"
)

type fakeSceneSource struct {
	mu       sync.Mutex
	requests []common.SceneRequest
	generate func(req common.SceneRequest) ([]common.Scene, error)
}

func (f *fakeSceneSource) GenerateScenes(ctx context.Context, req common.SceneRequest) ([]common.Scene, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if f.generate != nil {
		return f.generate(req)
	}
	return makeScenes(req.SceneCount), nil
}

type fakeRenderer struct {
	jobs   []RenderJob
	staged []string
	err    error
}

func (f *fakeRenderer) Render(ctx context.Context, job RenderJob) error {
	f.jobs = append(f.jobs, job)
	entries, _ := os.ReadDir(job.ImagesDir)
	for _, e := range entries {
		f.staged = append(f.staged, e.Name())
	}
	if f.err != nil {
		return f.err
	}
	return os.WriteFile(job.OutputPath, []byte("mp4"), 0644)
}

type fakeProber struct{}

func (fakeProber) Probe(ctx context.Context, path string) (VideoMetrics, error) {
	return VideoMetrics{
		Exists: true, RenderOK: true, Width: 64, Height: 36, HasAudio: true,
		DurationSeconds: 60, SizeBytes: 10 << 20, BitrateBps: 2_000_000,
	}, nil
}

func testConfig(threshold float64) *common.Config {
	cfg := common.DefaultConfig()
	cfg.Quality.PassThreshold = threshold
	cfg.Quality.HardFloorChars = 0
	cfg.Audio.RetryDelay = 0
	cfg.Audio.RateLimitDelay = 0
	cfg.Images.Width, cfg.Images.Height = 64, 36
	cfg.Images.Backoff = 0
	cfg.Images.RateLimitDelay = 0
	return cfg
}

func testInput(t *testing.T) Input {
	return Input{
		Source:    common.ParseSource([]byte("# Title\n\nSome article text.\n\n## Part\n\nMore text."), "x"),
		Title:     "Title",
		Topic:     common.TopicEducation,
		OutputDir: t.TempDir(),
	}
}

func recordStages(p *Pipeline) *[]Stage {
	var stages []Stage
	p.OnTransition(func(tr Transition) { stages = append(stages, tr.To) })
	return &stages
}

func assertNoAttemptDirs(t *testing.T, dir string) {
	t.Helper()
	matches, _ := filepath.Glob(filepath.Join(dir, "attempt_*"))
	for _, m := range matches {
		if info, err := os.Stat(m); err == nil && info.IsDir() {
			t.Errorf("attempt directory %s was not removed", m)
		}
	}
}

func TestPipelinePassesFirstAttempt(t *testing.T) {
	wav := toneWAV(t, 1, 22050)
	speaker := &fakeSpeaker{speak: func(int, string) ([]byte, error) { return wav, nil }}
	renderer := &fakeRenderer{}
	p := NewPipeline(testConfig(0), Dependencies{
		Scenes:   &fakeSceneSource{},
		Speaker:  speaker,
		Images:   &fakeImageGen{generate: func(string, int, int) ([]byte, error) { return nil, errors.New("down") }},
		Renderer: renderer,
		Prober:   fakeProber{},
	})
	stages := recordStages(p)

	in := testInput(t)
	res, err := p.Run(context.Background(), in)
	if err != nil {
		t.Fatal(err)
	}

	want := []Stage{StageScripting, StageSynthesizing, StageTiming, StageImaging, StageRendering, StageEvaluating, StageDone}
	if fmt.Sprint(*stages) != fmt.Sprint(want) {
		t.Errorf("stages = %v", *stages)
	}
	if res.Attempts != 1 || len(res.Scenes) != 12 || res.RunID == "" {
		t.Errorf("result = %+v", res)
	}
	if res.VideoPath != filepath.Join(in.OutputDir, FinalVideoName) {
		t.Errorf("video path = %s", res.VideoPath)
	}
	if _, err := os.Stat(res.VideoPath); err != nil {
		t.Errorf("final video missing: %v", err)
	}
	if len(renderer.staged) != 12 || renderer.jobs[0].AudioPath == "" {
		t.Errorf("staged %d images, audio %q", len(renderer.staged), renderer.jobs[0].AudioPath)
	}
	if !res.Timeline.Valid() {
		t.Error("timeline invalid")
	}
	assertNoAttemptDirs(t, in.OutputDir)

	data, err := os.ReadFile(filepath.Join(in.OutputDir, "pipeline_state.json"))
	if err != nil {
		t.Fatal(err)
	}
	var state struct {
		Stage     Stage `json:"stage"`
		Attempts  []AttemptSummary `json:"attempts"`
	}
	json.Unmarshal(data, &state)
	if state.Stage != StageDone || len(state.Attempts) != 1 {
		t.Errorf("state = %s", data)
	}
	if _, err := os.Stat(filepath.Join(in.OutputDir, "attempt_1_report.json")); err != nil {
		t.Errorf("report missing: %v", err)
	}
}

func TestPipelineImagesAlwaysFailStillRenders(t *testing.T) {
	renderer := &fakeRenderer{}
	p := NewPipeline(testConfig(0), Dependencies{
		Scenes:   &fakeSceneSource{},
		Images:   &fakeImageGen{generate: func(string, int, int) ([]byte, error) { return nil, errors.New("quota") }},
		Renderer: renderer,
		Prober:   fakeProber{},
	})
	stages := recordStages(p)

	res, err := p.Run(context.Background(), testInput(t))
	if err != nil {
		t.Fatal(err)
	}
	reached := false
	for _, s := range *stages {
		if s == StageRendering {
			reached = true
		}
	}
	if !reached {
		t.Errorf("never reached Rendering: %v", *stages)
	}
	if len(renderer.staged) != len(res.Scenes) {
		t.Errorf("staged %d images for %d scenes", len(renderer.staged), len(res.Scenes))
	}
	scenes := res.Report.CategoryScores[CategoryScenes]
	if len(scenes.Issues) == 0 {
		t.Error("fallback images should be reported as issues")
	}
}

func TestPipelineRetriesWithMoreScenes(t *testing.T) {
	source := &fakeSceneSource{}
	renderer := &fakeRenderer{}
	p := NewPipeline(testConfig(100), Dependencies{Scenes: source, Renderer: renderer, Prober: fakeProber{}})

	in := testInput(t)
	_, err := p.Run(context.Background(), in)
	var failure *PipelineFailure
	if !errors.As(err, &failure) {
		t.Fatalf("err = %v", err)
	}
	if !errors.Is(err, ErrQualityThresholdNotMet) || failure.Attempts != 3 || failure.LastReport == nil {
		t.Errorf("failure = %+v", failure)
	}
	if len(failure.Issues()) == 0 || len(failure.Recommendations()) == 0 {
		t.Error("failure should carry the last report's issues")
	}

	var counts []int
	for _, r := range source.requests {
		counts = append(counts, r.SceneCount)
	}
	if fmt.Sprint(counts) != "[12 13 14]" {
		t.Errorf("scene counts = %v", counts)
	}
	if len(renderer.jobs) != 3 {
		t.Errorf("renders = %d", len(renderer.jobs))
	}
	for i := 1; i <= 3; i++ {
		if _, err := os.Stat(filepath.Join(in.OutputDir, fmt.Sprintf("attempt_%d_report.json", i))); err != nil {
			t.Errorf("report %d missing", i)
		}
	}
	if _, err := os.Stat(filepath.Join(in.OutputDir, FinalVideoName)); !os.IsNotExist(err) {
		t.Error("a failing run must not leave a final video")
	}
	assertNoAttemptDirs(t, in.OutputDir)
}

func TestPipelineSceneCountCapped(t *testing.T) {
	cfg := testConfig(100)
	cfg.Quality.MaxAttempts = 5
	cfg.Script.InitialScenes = 14
	source := &fakeSceneSource{}
	p := NewPipeline(cfg, Dependencies{Scenes: source, Renderer: &fakeRenderer{}, Prober: fakeProber{}})
	p.Run(context.Background(), testInput(t))

	var counts []int
	for _, r := range source.requests {
		counts = append(counts, r.SceneCount)
	}
	if fmt.Sprint(counts) != "[14 15 15 15 15]" {
		t.Errorf("scene counts = %v", counts)
	}
}

func TestPipelineHardFloorFailsEveryAttempt(t *testing.T) {
	cfg := testConfig(0)
	cfg.Quality.HardFloorChars = 1_000_000
	p := NewPipeline(cfg, Dependencies{Scenes: &fakeSceneSource{}, Renderer: &fakeRenderer{}, Prober: fakeProber{}})

	_, err := p.Run(context.Background(), testInput(t))
	var failure *PipelineFailure
	if !errors.As(err, &failure) || !failure.LastReport.HardFloorViolated {
		t.Fatalf("err = %v", err)
	}
	if failure.Attempts != cfg.Quality.MaxAttempts {
		t.Errorf("attempts = %d", failure.Attempts)
	}
}

func TestPipelineRenderErrorIsFatal(t *testing.T) {
	source := &fakeSceneSource{}
	p := NewPipeline(testConfig(0), Dependencies{
		Scenes:   source,
		Renderer: &fakeRenderer{err: &RenderError{ExitCode: 1, Stderr: "boom"}},
		Prober:   fakeProber{},
	})
	stages := recordStages(p)

	in := testInput(t)
	_, err := p.Run(context.Background(), in)
	var failure *PipelineFailure
	if !errors.As(err, &failure) {
		t.Fatalf("err = %v", err)
	}
	var rerr *RenderError
	if !errors.As(err, &rerr) || failure.State != StageRendering || failure.Attempts != 1 {
		t.Errorf("failure = %v", failure)
	}
	if len(source.requests) != 1 {
		t.Errorf("render failure was retried: %d scene requests", len(source.requests))
	}
	if last := (*stages)[len(*stages)-1]; last != StageFailed {
		t.Errorf("last stage = %s", last)
	}
	assertNoAttemptDirs(t, in.OutputDir)
}

func TestPipelineRejectsInvalidScenes(t *testing.T) {
	source := &fakeSceneSource{generate: func(req common.SceneRequest) ([]common.Scene, error) {
		s := makeScenes(req.SceneCount)
		s[0].Kind = common.KindContent
		return s, nil
	}}
	renderer := &fakeRenderer{}
	p := NewPipeline(testConfig(0), Dependencies{Scenes: source, Renderer: renderer})

	_, err := p.Run(context.Background(), testInput(t))
	var sve *ScriptValidationError
	if !errors.As(err, &sve) {
		t.Fatalf("err = %v", err)
	}
	if len(source.requests) != 1 || len(renderer.jobs) != 0 {
		t.Errorf("requests %d, renders %d", len(source.requests), len(renderer.jobs))
	}
}

func TestPipelineCancellationCleansUp(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	speaker := &fakeSpeaker{speak: func(int, string) ([]byte, error) {
		cancel()
		return nil, context.Canceled
	}}
	renderer := &fakeRenderer{}
	p := NewPipeline(testConfig(0), Dependencies{Scenes: &fakeSceneSource{}, Speaker: speaker, Renderer: renderer})

	in := testInput(t)
	_, err := p.Run(ctx, in)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
	if len(renderer.jobs) != 0 {
		t.Error("cancelled run reached the renderer")
	}
	assertNoAttemptDirs(t, in.OutputDir)
}

func TestPipelineNeedsCollaborators(t *testing.T) {
	_, err := NewPipeline(testConfig(0), Dependencies{}).Run(context.Background(), testInput(t))
	if err == nil || !strings.Contains(err.Error(), "scene source") {
		t.Errorf("err = %v", err)
	}
}

func TestPipelineMalformedReplyIsNotRetried(t *testing.T) {
	source := &fakeSceneSource{generate: func(req common.SceneRequest) ([]common.Scene, error) {
		return common.DecodeScenes("Sure! Here are your scenes:")
	}}
	renderer := &fakeRenderer{}
	p := NewPipeline(testConfig(0), Dependencies{Scenes: source, Renderer: renderer})

	_, err := p.Run(context.Background(), testInput(t))
	var sve *ScriptValidationError
	if !errors.As(err, &sve) {
		t.Fatalf("err = %v", err)
	}
	if len(source.requests) != 1 || len(renderer.jobs) != 0 {
		t.Errorf("requests %d, renders %d", len(source.requests), len(renderer.jobs))
	}
}

func TestPipelineSceneFileWithoutSource(t *testing.T) {
	data, err := json.Marshal(makeScenes(4))
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "scenes.json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	cfg := testConfig(0)
	cfg.Quality.HardFloorChars = common.DefaultConfig().Quality.HardFloorChars
	p := NewPipeline(cfg, Dependencies{Scenes: FileSceneSource{Path: path}, Renderer: &fakeRenderer{}, Prober: fakeProber{}})

	in := testInput(t)
	in.Source = nil
	res, err := p.Run(context.Background(), in)
	if err != nil {
		t.Fatal(err)
	}
	if res.Attempts != 1 || len(res.Scenes) != 4 {
		t.Errorf("result = %+v", res)
	}
	report := res.Report
	if !report.ArticleSkipped || report.HardFloorViolated {
		t.Errorf("article skipped = %t, hard floor = %t", report.ArticleSkipped, report.HardFloorViolated)
	}
	if _, ok := report.CategoryScores[CategoryArticle]; ok {
		t.Error("article category scored without a source")
	}
}

type fixedSceneSource struct {
	*fakeSceneSource
}

func (fixedSceneSource) FixedScenes() bool { return true }

func TestPipelineFixedScenesNotRetried(t *testing.T) {
	source := &fakeSceneSource{}
	renderer := &fakeRenderer{}
	p := NewPipeline(testConfig(100), Dependencies{Scenes: fixedSceneSource{source}, Renderer: renderer, Prober: fakeProber{}})

	_, err := p.Run(context.Background(), testInput(t))
	var failure *PipelineFailure
	if !errors.As(err, &failure) || !errors.Is(err, ErrQualityThresholdNotMet) {
		t.Fatalf("err = %v", err)
	}
	if failure.Attempts != 1 || len(source.requests) != 1 || len(renderer.jobs) != 1 {
		t.Errorf("attempts %d, requests %d, renders %d", failure.Attempts, len(source.requests), len(renderer.jobs))
	}
}
