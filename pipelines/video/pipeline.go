package video

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"slide_video_studio/common"
)

// Stage is a state of the pipeline state machine.
type Stage string

const (
	StageScripting    Stage = "Scripting"
	StageSynthesizing Stage = "Synthesizing"
	StageTiming       Stage = "Timing"
	StageImaging      Stage = "Imaging"
	StageRendering    Stage = "Rendering"
	StageEvaluating   Stage = "Evaluating"
	StageDone         Stage = "Done"
	StageFailed       Stage = "Failed"
)

// FinalVideoName is the file a passing attempt's video is moved to.
const FinalVideoName = "final_video.mp4"

// Transition is reported to observers on every state change.
type Transition struct {
	RunID   string
	Attempt int
	From    Stage
	To      Stage
	At      time.Time
}

// Dependencies are the external collaborators of a run. Speaker and Images may
// be nil, in which case every scene gets a placeholder or a fallback.
type Dependencies struct {
	Scenes   SceneSource
	Speaker  Speaker
	Images   ImageGenerator
	Renderer Renderer
	Prober   VideoProber
}

// Input is one run's source material and destination.
type Input struct {
	Source    *common.SourceDocument
	Title     string
	Topic     common.Topic
	OutputDir string
}

// Result describes a passing run.
type Result struct {
	RunID     string
	VideoPath string
	Attempts  int
	Report    *QualityReport
	Timeline  *Timeline
	Scenes    []common.Scene
}

// Pipeline drives Scripting through Evaluating and retries failed evaluations.
type Pipeline struct {
	cfg          *common.Config
	deps         Dependencies
	timing       *TimingCalculator
	evaluator    *QualityEvaluator
	onTransition func(Transition)
}

func NewPipeline(cfg *common.Config, deps Dependencies) *Pipeline {
	return &Pipeline{
		cfg:       cfg,
		deps:      deps,
		timing:    NewTimingCalculator(cfg.Timing),
		evaluator: NewQualityEvaluator(RubricFromConfig(cfg)),
	}
}

// OnTransition registers an observer for state changes.
func (p *Pipeline) OnTransition(fn func(Transition)) {
	p.onTransition = fn
}

type run struct {
	id      string
	attempt int
	stage   Stage
	state   *RunState
	article ArticleMetrics
	in      Input
}

func (r *run) saveState(fn func(*RunState)) {
	if err := r.state.update(fn); err != nil {
		log.Printf("[VIDEO] could not save run state: %v", err)
	}
}

func (p *Pipeline) enter(r *run, to Stage) {
	from := r.stage
	r.stage = to
	log.Printf("[VIDEO] run %s attempt %d: %s -> %s", r.id, r.attempt, from, to)
	r.saveState(func(s *RunState) { s.Stage = to; s.Attempt = r.attempt })
	if p.onTransition != nil {
		p.onTransition(Transition{RunID: r.id, Attempt: r.attempt, From: from, To: to, At: time.Now()})
	}
}

// Run executes the pipeline. On failure the error is a *PipelineFailure.
func (p *Pipeline) Run(ctx context.Context, in Input) (*Result, error) {
	if p.deps.Scenes == nil || p.deps.Renderer == nil {
		return nil, errors.New("pipeline needs a scene source and a renderer")
	}
	if err := os.MkdirAll(in.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}
	if in.Topic == "" {
		in.Topic = common.DefaultTopic
	}

	r := &run{id: uuid.NewString(), in: in, article: ArticleMetricsFrom(in.Source)}
	r.state = newRunState(filepath.Join(in.OutputDir, "pipeline_state.json"), r.id, in.Title, in.Topic)
	log.Printf("[VIDEO] run %s: %q (%s) -> %s", r.id, in.Title, in.Topic, in.OutputDir)
	if in.Source == nil {
		log.Printf("[QUALITY] run %s has no source article; scoring scenes and video only, hard floor not applied", r.id)
	}
	fixed := false
	if f, ok := p.deps.Scenes.(FixedSceneSource); ok && f.FixedScenes() {
		fixed = true
		log.Printf("[VIDEO] run %s uses a fixed scene list; a failed evaluation is not retried", r.id)
	}

	q := p.cfg.Quality
	sceneCount := p.cfg.Script.InitialScenes
	if sceneCount < q.MinScenes {
		sceneCount = q.MinScenes
	}
	if sceneCount > q.MaxScenes {
		sceneCount = q.MaxScenes
	}

	var last *QualityReport
	for attempt := 1; attempt <= q.MaxAttempts; attempt++ {
		r.attempt = attempt
		r.saveState(func(s *RunState) { s.Scenes = sceneCount })

		res, err := p.attempt(ctx, r, sceneCount)
		if err != nil {
			return nil, p.fail(r, last, err)
		}
		last = res.Report
		r.saveState(func(s *RunState) {
			s.Attempts = append(s.Attempts, summarize(attempt, len(res.Scenes), res.Report))
		})

		if res.Report.HardFloorViolated {
			log.Printf("[QUALITY] hard floor override: article has %d characters, minimum %d", r.article.CharCount, p.cfg.Quality.HardFloorChars)
		}
		if res.Report.Passed {
			res.RunID = r.id
			res.Attempts = attempt
			p.enter(r, StageDone)
			r.saveState(func(s *RunState) { s.VideoPath = res.VideoPath })
			log.Printf("[VIDEO] run %s complete: %s (%.1f%%)", r.id, res.VideoPath, res.Report.OverallPercentage)
			return res, nil
		}

		log.Printf("[QUALITY] attempt %d scored %.1f%% (threshold %.1f%%)", attempt, res.Report.OverallPercentage, res.Report.Threshold)
		if fixed {
			break
		}
		if attempt < q.MaxAttempts {
			if sceneCount < q.MaxScenes {
				sceneCount++
			}
			p.enter(r, StageScripting)
		}
	}
	return nil, p.fail(r, last, ErrQualityThresholdNotMet)
}

func (p *Pipeline) fail(r *run, last *QualityReport, err error) error {
	failure := &PipelineFailure{Attempts: r.attempt, State: r.stage, LastReport: last, Err: err}
	p.enter(r, StageFailed)
	r.saveState(func(s *RunState) { s.Error = failure.Error() })
	log.Printf("[VIDEO] run %s failed: %v", r.id, failure)
	return failure
}

// attempt runs one pass. Any returned error is fatal to the run. Everything the
// attempt wrote under its directory is removed before it returns, except a
// passing video which is moved to the output directory first.
func (p *Pipeline) attempt(ctx context.Context, r *run, sceneCount int) (res *Result, err error) {
	attemptDir := filepath.Join(r.in.OutputDir, fmt.Sprintf("attempt_%02d", r.attempt))
	defer func() {
		if rmErr := os.RemoveAll(attemptDir); rmErr != nil {
			log.Printf("[VIDEO] cleanup of %s failed: %v", attemptDir, rmErr)
		}
	}()

	// Scripting
	if r.stage != StageScripting {
		p.enter(r, StageScripting)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	scenes, err := p.deps.Scenes.GenerateScenes(ctx, common.SceneRequest{
		Title:      r.in.Title,
		Topic:      r.in.Topic,
		SourceText: sourceText(r.in.Source),
		SceneCount: sceneCount,
	})
	if err != nil {
		var sve *ScriptValidationError
		if errors.As(err, &sve) {
			return nil, err
		}
		return nil, fmt.Errorf("scene generation failed: %w", err)
	}
	if err := ValidateScenes(scenes); err != nil {
		return nil, err
	}

	staging, err := NewStaging(attemptDir)
	if err != nil {
		return nil, err
	}
	defer staging.Cleanup()

	// Synthesizing
	p.enter(r, StageSynthesizing)
	audio, err := NewAudioSynthesizer(p.deps.Speaker, p.cfg.Audio).SynthesizeBatch(ctx, scenes, staging.Sink())
	if err != nil {
		return nil, err
	}

	// Timing
	p.enter(r, StageTiming)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tl, err := p.timing.Compute(scenes, audio.Assets)
	if err != nil {
		return nil, err
	}

	// Imaging
	p.enter(r, StageImaging)
	provider := NewImageProvider(p.deps.Images, p.cfg.Images, p.cfg.Style(r.in.Topic))
	images, err := provider.AcquireAll(ctx, scenes)
	if err != nil {
		return nil, err
	}

	// Rendering
	p.enter(r, StageRendering)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := staging.WriteImages(images.Images); err != nil {
		return nil, err
	}
	timelinePath, err := staging.WriteTimeline(tl)
	if err != nil {
		return nil, err
	}
	narrationPath, err := staging.WriteNarrationTrack(tl, audio.Assets)
	if err != nil {
		return nil, err
	}
	videoPath := filepath.Join(attemptDir, "video.mp4")
	if err := p.deps.Renderer.Render(ctx, RenderJob{
		TimelinePath: timelinePath,
		ImagesDir:    staging.ImagesDir,
		AudioPath:    narrationPath,
		OutputPath:   videoPath,
		WorkDir:      staging.Dir,
		Timeline:     tl,
	}); err != nil {
		return nil, err
	}
	// The render consumed the staged inputs.
	if err := staging.Cleanup(); err != nil {
		log.Printf("[VIDEO] staging cleanup failed: %v", err)
	}

	// Evaluating
	p.enter(r, StageEvaluating)
	vm := p.probe(ctx, videoPath)
	vm.ExpectedSeconds = tl.DurationSeconds()
	sm := SceneMetricsFrom(scenes, audio, images, tl, RubricFromConfig(p.cfg).SlideTextLimit)
	var report *QualityReport
	if r.in.Source == nil {
		report = p.evaluator.EvaluateWithoutArticle(sm, vm)
	} else {
		report = p.evaluator.Evaluate(r.article, sm, vm)
	}
	if err := common.WriteJSON(filepath.Join(r.in.OutputDir, fmt.Sprintf("attempt_%d_report.json", r.attempt)), report); err != nil {
		log.Printf("[QUALITY] could not save report: %v", err)
	}

	res = &Result{Report: report, Timeline: tl, Scenes: scenes}
	if report.Passed {
		final := filepath.Join(r.in.OutputDir, FinalVideoName)
		if err := os.Rename(videoPath, final); err != nil {
			return nil, fmt.Errorf("move final video: %w", err)
		}
		res.VideoPath = final
	}
	return res, nil
}

func (p *Pipeline) probe(ctx context.Context, path string) VideoMetrics {
	vm := VideoMetrics{RenderOK: true}
	if info, err := os.Stat(path); err == nil {
		vm.Exists = info.Size() > 0
		vm.SizeBytes = info.Size()
	}
	if p.deps.Prober == nil {
		return vm
	}
	probed, err := p.deps.Prober.Probe(ctx, path)
	if err != nil {
		log.Printf("[VIDEO] probe failed: %v", err)
		vm.ProbeError = err.Error()
		return vm
	}
	probed.RenderOK = true
	return probed
}

func sourceText(doc *common.SourceDocument) string {
	if doc == nil {
		return ""
	}
	return doc.Text
}
