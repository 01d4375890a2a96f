package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"slide_video_studio/common"
	"slide_video_studio/pipelines/video"
)

type JobStatus struct {
	ID              string     `json:"id"`
	Status          string     `json:"status"`
	Stage           string     `json:"stage,omitempty"`
	Attempt         int        `json:"attempt,omitempty"`
	Topic           string     `json:"topic"`
	OutputDir       string     `json:"output_dir,omitempty"`
	VideoPath       string     `json:"video_path,omitempty"`
	Score           float64    `json:"score,omitempty"`
	Issues          []string   `json:"issues,omitempty"`
	Recommendations []string   `json:"recommendations,omitempty"`
	Error           string     `json:"error,omitempty"`
	StartedAt       time.Time  `json:"started_at"`
	DoneAt          *time.Time `json:"done_at,omitempty"`
}

type Job struct {
	ID     string
	Config common.PipelineConfig
}

// JobRunner executes one job and reports stage changes through observe.
type JobRunner func(ctx context.Context, job *Job, observe func(video.Transition)) (*video.Result, error)

type WorkerPool struct {
	jobs       chan *Job
	results    map[string]*JobStatus
	mu         sync.RWMutex
	wg         sync.WaitGroup
	numWorkers int
	run        JobRunner
	ctx        context.Context
	cancel     context.CancelFunc
}

func NewWorkerPool(numWorkers int, bufferSize int, run JobRunner) *WorkerPool {
	ctx, cancel := context.WithCancel(context.Background())
	pool := &WorkerPool{
		jobs:       make(chan *Job, bufferSize),
		results:    make(map[string]*JobStatus),
		numWorkers: numWorkers,
		run:        run,
		ctx:        ctx,
		cancel:     cancel,
	}
	pool.Start()
	return pool
}

func (p *WorkerPool) Start() {
	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	log.Printf("[SERVER] started %d workers", p.numWorkers)
}

func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()
	for job := range p.jobs {
		log.Printf("[Worker %d] Processing job %s", id, job.ID)
		p.processJob(job)
	}
	log.Printf("[Worker %d] Shutting down", id)
}

func (p *WorkerPool) processJob(job *Job) {
	p.update(job.ID, func(s *JobStatus) { s.Status = "processing" })

	observe := func(t video.Transition) {
		p.update(job.ID, func(s *JobStatus) {
			s.Stage = string(t.To)
			s.Attempt = t.Attempt
		})
	}
	res, err := p.run(p.ctx, job, observe)

	now := time.Now()
	if err != nil {
		p.update(job.ID, func(s *JobStatus) {
			s.Status = "failed"
			s.Error = err.Error()
			s.DoneAt = &now
			var failure *video.PipelineFailure
			if errors.As(err, &failure) {
				s.Issues = failure.Issues()
				s.Recommendations = failure.Recommendations()
				if failure.LastReport != nil {
					s.Score = failure.LastReport.OverallPercentage
				}
			}
		})
		log.Printf("[Job %s] Failed: %v", job.ID, err)
		return
	}
	p.update(job.ID, func(s *JobStatus) {
		s.Status = "completed"
		s.VideoPath = res.VideoPath
		s.Attempt = res.Attempts
		if res.Report != nil {
			s.Score = res.Report.OverallPercentage
			s.Issues = res.Report.AllIssues()
		}
		s.DoneAt = &now
	})
	log.Printf("[Job %s] Completed successfully", job.ID)
}

func (p *WorkerPool) update(jobID string, fn func(*JobStatus)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if status, exists := p.results[jobID]; exists {
		fn(status)
	}
}

func (p *WorkerPool) Submit(job *Job) {
	p.mu.Lock()
	p.results[job.ID] = &JobStatus{
		ID:        job.ID,
		Status:    "queued",
		Topic:     string(job.Config.Topic),
		OutputDir: job.Config.OutputDir,
		StartedAt: time.Now(),
	}
	p.mu.Unlock()

	p.jobs <- job
}

// GetStatus returns a copy of the job's status.
func (p *WorkerPool) GetStatus(jobID string) (JobStatus, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	status, ok := p.results[jobID]
	if !ok {
		return JobStatus{}, false
	}
	return *status, true
}

// Shutdown stops accepting jobs, cancels running ones and waits for workers.
func (p *WorkerPool) Shutdown() {
	close(p.jobs)
	p.cancel()
	p.wg.Wait()
}

type Server struct {
	pool      *WorkerPool
	uploadDir string
	outputDir string
}

func NewServer(numWorkers int, cfg *common.Config) *Server {
	geminiKey := os.Getenv("GEMINI_API_KEY")
	if geminiKey == "" && cfg.Script.Provider == "gemini" {
		log.Fatal("GEMINI_API_KEY not set")
	}

	uploadDir := "./uploads"
	os.MkdirAll(uploadDir, 0755)

	run := func(ctx context.Context, job *Job, observe func(video.Transition)) (*video.Result, error) {
		return video.ProcessVideoPipeline(ctx, cfg, job.Config, observe)
	}
	return newServer(NewWorkerPool(numWorkers, 100, run), uploadDir, "./output")
}

func newServer(pool *WorkerPool, uploadDir, outputDir string) *Server {
	return &Server{pool: pool, uploadDir: uploadDir, outputDir: outputDir}
}

var allowedSourceExt = map[string]bool{".pdf": true, ".md": true, ".markdown": true, ".txt": true}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseMultipartForm(100 << 20); err != nil {
		http.Error(w, "Invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}

	topic, err := common.ParseTopic(r.FormValue("topic"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("source")
	if err != nil {
		http.Error(w, "Failed to get source file: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !allowedSourceExt[ext] {
		http.Error(w, "Only .pdf, .md and .txt sources are accepted", http.StatusBadRequest)
		return
	}

	jobID := uuid.NewString()
	sourcePath := filepath.Join(s.uploadDir, jobID+ext)
	outputDir := filepath.Join(s.outputDir, "output_"+jobID)

	if err := os.MkdirAll(s.uploadDir, 0755); err != nil {
		http.Error(w, "Failed to save file: "+err.Error(), http.StatusInternalServerError)
		return
	}
	dst, err := os.Create(sourcePath)
	if err != nil {
		http.Error(w, "Failed to save file: "+err.Error(), http.StatusInternalServerError)
		return
	}
	defer dst.Close()

	if _, err := io.Copy(dst, file); err != nil {
		http.Error(w, "Failed to save file: "+err.Error(), http.StatusInternalServerError)
		return
	}

	s.pool.Submit(&Job{
		ID: jobID,
		Config: common.PipelineConfig{
			SourcePath: sourcePath,
			OutputDir:  outputDir,
			Title:      r.FormValue("title"),
			Topic:      topic,
			GeminiKey:  os.Getenv("GEMINI_API_KEY"),
			SarvamKey:  os.Getenv("SARVAM_API_KEY"),
			OpenAIKey:  os.Getenv("OPENAI_API_KEY"),
		},
	})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{
		"job_id":  jobID,
		"status":  "queued",
		"message": "Source uploaded and queued for processing",
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	jobID := r.URL.Query().Get("id")
	if jobID == "" {
		http.Error(w, "Missing job id", http.StatusBadRequest)
		return
	}

	status, ok := s.pool.GetStatus(jobID)
	if !ok {
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(status)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":      "ok",
		"workers":     s.pool.numWorkers,
		"goroutines":  runtime.NumGoroutine(),
		"queued_jobs": len(s.pool.jobs),
	})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"message": "Slide Video Server",
		"usage":   "POST /jobs with a 'source' file (.pdf, .md, .txt) and optional 'title' and 'topic' fields",
		"status":  "GET /status?id=<job_id>",
		"health":  "GET /health",
	})
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/jobs", s.handleUpload)
	mux.HandleFunc("/", s.handleIndex)
	return mux
}

func (s *Server) Shutdown(ctx context.Context) {
	s.pool.Shutdown()
}

func StartServer(addr string, numWorkers int, cfg *common.Config) {
	server := NewServer(numWorkers, cfg)

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      server.routes(),
		ReadTimeout:  5 * time.Minute,
		WriteTimeout: 5 * time.Minute,
	}

	log.Printf("[SERVER] starting on %s with %d workers", addr, numWorkers)
	log.Printf("[SERVER] POST /jobs with a 'source' form field to process")

	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Server failed: %v", err)
	}
	server.Shutdown(context.Background())
}
