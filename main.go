package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"slide_video_studio/common"
	"slide_video_studio/pipelines/video"
)

func main() {
	configPath := flag.String("config", "", "YAML config file (defaults are used when empty)")
	scenesPath := flag.String("scenes", "", "Pre-made scene list (JSON); skips scene generation")
	title := flag.String("title", "", "Video title (defaults to the source's first heading)")
	topicName := flag.String("topic", "", "Topic palette and voice: psychology, education, startup, investment, ai_tools, inclusive_education, weekly_summary")
	outputDir := flag.String("output", "", "Output directory (defaults to ./output/output_<timestamp>)")
	serverMode := flag.Bool("server", false, "Run as HTTP server")
	port := flag.String("port", ":8080", "Server port (only with --server)")
	workers := flag.Int("workers", 2, "Number of concurrent pipeline runs (only with --server)")
	flag.Parse()

	if err := common.LoadEnv(".env"); err != nil {
		log.Printf("Could not read .env: %v", err)
	}

	cfg, err := common.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}

	if *serverMode {
		StartServer(*port, *workers, cfg)
		return
	}

	args := flag.Args()
	if len(args) < 1 && *scenesPath == "" {
		log.Fatal("Usage: go run . [--config=cfg.yaml] [--topic=ai_tools] [--scenes=scenes.json] <source.pdf|.md|.txt>\n       go run . --server [--port=:8080] [--workers=2]")
	}

	topic, err := common.ParseTopic(*topicName)
	if err != nil {
		log.Fatal(err)
	}

	out := *outputDir
	if out == "" {
		out = filepath.Join("output", "output_"+time.Now().Format("20060102_150405"))
	}

	job := common.PipelineConfig{
		ScenesPath: *scenesPath,
		OutputDir:  out,
		Title:      *title,
		Topic:      topic,
		GeminiKey:  os.Getenv("GEMINI_API_KEY"),
		SarvamKey:  os.Getenv("SARVAM_API_KEY"),
		OpenAIKey:  os.Getenv("OPENAI_API_KEY"),
	}
	if len(args) > 0 {
		job.SourcePath = args[0]
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Println("Running Video Pipeline...")
	res, err := video.ProcessVideoPipeline(ctx, cfg, job, nil)
	if err != nil {
		var failure *video.PipelineFailure
		if errors.As(err, &failure) {
			for _, issue := range failure.Issues() {
				log.Printf("  issue: %s", issue)
			}
			for _, rec := range failure.Recommendations() {
				log.Printf("  recommendation: %s", rec)
			}
		}
		log.Fatalf("Pipeline failed: %v", err)
	}

	log.Printf("Pipeline completed successfully! Video: %s (%.1f%% after %d attempt(s))", res.VideoPath, res.Report.OverallPercentage, res.Attempts)
}
