package video

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"slide_video_studio/common"
)

// RenderJob is everything a renderer needs for one attempt.
type RenderJob struct {
	TimelinePath string
	ImagesDir    string // slide_<index>.png
	AudioPath    string // narration track, empty for a silent video
	OutputPath   string
	WorkDir      string // scratch space for engine inputs
	Timeline     *Timeline
}

// Renderer turns a staged timeline into a video file.
type Renderer interface {
	Render(ctx context.Context, job RenderJob) error
}

// ProcessRenderer renders with an external engine.
type ProcessRenderer struct {
	runner ProcessRunner
	cfg    common.RenderConfig
	width  int
	height int
}

func NewProcessRenderer(runner ProcessRunner, cfg common.RenderConfig, width, height int) *ProcessRenderer {
	return &ProcessRenderer{runner: runner, cfg: cfg, width: width, height: height}
}

// Command builds the engine invocation for a job.
func (r *ProcessRenderer) Command(job RenderJob) (Command, error) {
	switch r.cfg.Engine {
	case "remotion":
		return r.remotionCommand(job), nil
	case "ffmpeg", "":
		return r.ffmpegCommand(job)
	default:
		return Command{}, fmt.Errorf("unknown render engine %q", r.cfg.Engine)
	}
}

func (r *ProcessRenderer) remotionCommand(job RenderJob) Command {
	name := r.cfg.Command
	if name == "" {
		name = "node"
	}
	args := append(append([]string(nil), r.cfg.Args...), job.TimelinePath, job.ImagesDir, job.OutputPath)
	env := []string{"SLIDE_IMAGES_DIR=" + job.ImagesDir}
	if job.AudioPath != "" {
		env = append(env, "SLIDE_NARRATION="+job.AudioPath)
	}
	return Command{Name: name, Args: args, Dir: r.cfg.WorkDir, Env: env, Timeout: r.cfg.Timeout}
}

// ffmpegCommand writes a concat demuxer list with one image per timeline entry
// and encodes it against the narration track.
func (r *ProcessRenderer) ffmpegCommand(job RenderJob) (Command, error) {
	tl := job.Timeline
	if tl == nil || len(tl.Entries) == 0 {
		return Command{}, errors.New("ffmpeg render needs a non-empty timeline")
	}

	var sb strings.Builder
	var last string
	for _, e := range tl.Entries {
		img, err := filepath.Abs(filepath.Join(job.ImagesDir, ImageFileName(e.SceneIndex)))
		if err != nil {
			return Command{}, err
		}
		sb.WriteString(fmt.Sprintf("file '%s'\n", img))
		sb.WriteString(fmt.Sprintf("duration %.6f\n", float64(e.Frames())/float64(tl.FPS)))
		last = img
	}
	// The concat demuxer ignores the last duration unless the file is repeated.
	sb.WriteString(fmt.Sprintf("file '%s'\n", last))

	listPath := filepath.Join(job.WorkDir, "concat.txt")
	if err := os.WriteFile(listPath, []byte(sb.String()), 0644); err != nil {
		return Command{}, fmt.Errorf("write concat list: %w", err)
	}

	name := r.cfg.Command
	if name == "" {
		name = "ffmpeg"
	}
	args := []string{"-y", "-f", "concat", "-safe", "0", "-i", listPath}
	if job.AudioPath != "" {
		args = append(args, "-i", job.AudioPath)
	}
	args = append(args,
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		"-r", fmt.Sprint(tl.FPS),
		"-vf", fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2", r.width, r.height, r.width, r.height),
	)
	if job.AudioPath != "" {
		args = append(args, "-c:a", "aac", "-b:a", "192k")
	}
	args = append(args, "-t", fmt.Sprintf("%.3f", tl.DurationSeconds()))
	args = append(args, r.cfg.Args...)
	args = append(args, job.OutputPath)
	return Command{Name: name, Args: args, Dir: r.cfg.WorkDir, Timeout: r.cfg.Timeout}, nil
}

// Render runs the engine and checks it left a non-empty output behind.
func (r *ProcessRenderer) Render(ctx context.Context, job RenderJob) error {
	cmd, err := r.Command(job)
	if err != nil {
		return &RenderError{Err: err}
	}
	log.Printf("[RENDER] %s (timeout %s)", cmd.Name, cmd.Timeout)

	res, err := r.runner.Run(ctx, cmd)
	if err != nil {
		rerr := &RenderError{Err: err, TimedOut: errors.Is(err, ErrProcessTimeout)}
		if res != nil {
			rerr.Stderr = res.Stderr
		}
		return rerr
	}
	if res.ExitCode != 0 {
		return &RenderError{ExitCode: res.ExitCode, Stderr: res.Stderr}
	}

	info, err := os.Stat(job.OutputPath)
	if err != nil {
		return &RenderError{Err: fmt.Errorf("output missing: %w", err), Stderr: res.Stderr}
	}
	if info.Size() == 0 {
		return &RenderError{Err: fmt.Errorf("output %s is empty", job.OutputPath), Stderr: res.Stderr}
	}
	log.Printf("[RENDER] wrote %s (%d bytes) in %s", job.OutputPath, info.Size(), res.Duration.Round(time.Millisecond))
	return nil
}
