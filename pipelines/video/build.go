package video

import (
	"context"
	"fmt"
	"log"
	"os"

	"slide_video_studio/common"
)

// ProcessVideoPipeline wires the configured providers for one job and runs it.
func ProcessVideoPipeline(ctx context.Context, cfg *common.Config, job common.PipelineConfig, observe func(Transition)) (*Result, error) {
	var doc *common.SourceDocument
	if job.SourcePath != "" {
		var err error
		doc, err = common.LoadSource(job.SourcePath)
		if err != nil {
			return nil, err
		}
		log.Printf("[VIDEO] extracted %d chars from %s", doc.CharCount(), job.SourcePath)
	}
	if doc == nil && job.ScenesPath == "" {
		return nil, fmt.Errorf("need a source document or a scene file")
	}

	title := job.Title
	if title == "" && doc != nil {
		title = doc.Title
	}
	style := cfg.Style(job.Topic)

	deps := Dependencies{
		Renderer: NewProcessRenderer(ExecRunner{}, cfg.Render, cfg.Images.Width, cfg.Images.Height),
		Prober:   FFProbe{Runner: ExecRunner{}, Binary: cfg.Render.ProbeBinary},
	}

	var gemini *common.GeminiClient
	needGemini := (job.ScenesPath == "" && cfg.Script.Provider == "gemini") || cfg.Images.Provider == "gemini"
	if needGemini {
		if job.GeminiKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY is required for the gemini provider")
		}
		imageModel := ""
		if cfg.Images.Provider == "gemini" {
			imageModel = cfg.Images.Model
		}
		var err error
		gemini, err = common.NewGeminiClient(ctx, job.GeminiKey, cfg.Script, imageModel)
		if err != nil {
			return nil, fmt.Errorf("gemini init failed: %w", err)
		}
		defer gemini.Close()
	}

	switch {
	case job.ScenesPath != "":
		deps.Scenes = FileSceneSource{Path: job.ScenesPath}
	case cfg.Script.Provider == "openai":
		if job.OpenAIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required for the openai provider")
		}
		deps.Scenes = common.NewOpenAIClient(job.OpenAIKey, os.Getenv("OPENAI_BASE_URL"), cfg.Script)
	default:
		deps.Scenes = gemini
	}

	switch cfg.Images.Provider {
	case "gemini":
		deps.Images = GeminiImageGenerator{Client: gemini}
	case "pollinations":
		deps.Images = NewPollinationsGenerator(cfg.Images.Model)
	}

	if job.SarvamKey != "" {
		deps.Speaker = NewSarvamClient(job.SarvamKey, cfg.Audio, style)
	} else {
		log.Println("[TTS] SARVAM_API_KEY not set; every scene will use a silent placeholder")
	}

	p := NewPipeline(cfg, deps)
	if observe != nil {
		p.OnTransition(observe)
	}
	return p.Run(ctx, Input{Source: doc, Title: title, Topic: job.Topic, OutputDir: job.OutputDir})
}
