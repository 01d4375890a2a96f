package video

import (
	"errors"
	"fmt"
	"strings"

	"slide_video_studio/common"
)

var (
	// ErrQualityThresholdNotMet ends a run whose every attempt scored below the gate.
	ErrQualityThresholdNotMet = errors.New("quality threshold not met")
	// ErrImageCoverage means image collection did not yield one asset per scene in order.
	ErrImageCoverage = errors.New("image coverage violated")
	// ErrNothingToSpeak means narration cleaned down to no speakable text.
	ErrNothingToSpeak = errors.New("empty text after cleaning")
)

// ScriptValidationError is shared with the scene writers in common.
type ScriptValidationError = common.ScriptValidationError

// SynthesisError is a per-scene narration failure absorbed by a silent placeholder.
type SynthesisError struct {
	SceneID int
	Err     error
}

func (e *SynthesisError) Error() string {
	return fmt.Sprintf("scene %d: narration synthesis failed: %v", e.SceneID, e.Err)
}

func (e *SynthesisError) Unwrap() error { return e.Err }

// ImageAcquisitionError is a per-scene image failure absorbed by a fallback image.
type ImageAcquisitionError struct {
	SceneID int
	Err     error
}

func (e *ImageAcquisitionError) Error() string {
	return fmt.Sprintf("scene %d: image generation failed, fallback used: %v", e.SceneID, e.Err)
}

func (e *ImageAcquisitionError) Unwrap() error { return e.Err }

// RenderError reports a failed renderer process.
type RenderError struct {
	ExitCode int
	TimedOut bool
	Stderr   string
	Err      error
}

func (e *RenderError) Error() string {
	var sb strings.Builder
	switch {
	case e.TimedOut:
		sb.WriteString("render timed out")
	case e.ExitCode != 0:
		sb.WriteString(fmt.Sprintf("render exited with code %d", e.ExitCode))
	default:
		sb.WriteString("render failed")
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	if tail := tailLines(e.Stderr, 5); tail != "" {
		sb.WriteString("\n")
		sb.WriteString(tail)
	}
	return sb.String()
}

func (e *RenderError) Unwrap() error { return e.Err }

// PipelineFailure is what a failed run returns: how far it got and the last
// quality report, if any attempt reached evaluation.
type PipelineFailure struct {
	Attempts   int
	State      Stage
	LastReport *QualityReport
	Err        error
}

func (e *PipelineFailure) Error() string {
	msg := fmt.Sprintf("pipeline failed in %s after %d attempt(s): %v", e.State, e.Attempts, e.Err)
	if e.LastReport != nil {
		msg += fmt.Sprintf(" (last score %.1f%%)", e.LastReport.OverallPercentage)
	}
	return msg
}

func (e *PipelineFailure) Unwrap() error { return e.Err }

// Issues returns the itemised issues of the last report.
func (e *PipelineFailure) Issues() []string {
	if e.LastReport == nil {
		return nil
	}
	return e.LastReport.AllIssues()
}

// Recommendations returns the recommendations of the last report.
func (e *PipelineFailure) Recommendations() []string {
	if e.LastReport == nil {
		return nil
	}
	return e.LastReport.AllRecommendations()
}

func tailLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
