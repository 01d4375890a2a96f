package common

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// TimingConfig controls how narration length becomes frames.
type TimingConfig struct {
	FPS                 int     `yaml:"fps"`
	AudioPaddingSeconds float64 `yaml:"audio_padding_seconds"`
	MinSceneSeconds     float64 `yaml:"min_scene_seconds"`
	MaxSceneSeconds     float64 `yaml:"max_scene_seconds"`
	SubtitleMaxChars    int     `yaml:"subtitle_max_chars"`
}

// QualityConfig holds the acceptance gate.
type QualityConfig struct {
	PassThreshold  float64 `yaml:"pass_threshold"`
	MaxAttempts    int     `yaml:"max_attempts"`
	MinScenes      int     `yaml:"min_scenes"`
	MaxScenes      int     `yaml:"max_scenes"`
	TargetChars    int     `yaml:"target_chars"`
	HardFloorChars int     `yaml:"hard_floor_chars"`
}

type AudioConfig struct {
	Provider           string        `yaml:"provider"` // sarvam
	Language           string        `yaml:"language"`
	Model              string        `yaml:"model"`
	PlaceholderSeconds float64       `yaml:"placeholder_seconds"`
	MinPayloadBytes    int           `yaml:"min_payload_bytes"`
	MaxAttempts        int           `yaml:"max_attempts"`
	RetryDelay         time.Duration `yaml:"retry_delay"`
	RateLimitDelay     time.Duration `yaml:"rate_limit_delay"`
	ChunkChars         int           `yaml:"chunk_chars"`
}

type ImageConfig struct {
	Provider        string        `yaml:"provider"` // gemini, pollinations or none
	Model           string        `yaml:"model"`
	Width           int           `yaml:"width"`
	Height          int           `yaml:"height"`
	MinPayloadBytes int           `yaml:"min_payload_bytes"`
	MaxAttempts     int           `yaml:"max_attempts"`
	Backoff         time.Duration `yaml:"backoff"`
	RateLimitDelay  time.Duration `yaml:"rate_limit_delay"`
}

type ScriptConfig struct {
	Provider      string  `yaml:"provider"` // gemini or openai
	Model         string  `yaml:"model"`
	InitialScenes int     `yaml:"initial_scenes"`
	Temperature   float32 `yaml:"temperature"`
}

type RenderConfig struct {
	Engine      string        `yaml:"engine"` // ffmpeg or remotion
	Command     string        `yaml:"command"`
	Args        []string      `yaml:"args"`
	WorkDir     string        `yaml:"workdir"`
	Timeout     time.Duration `yaml:"timeout"`
	ProbeBinary string        `yaml:"probe_binary"`
}

// Config is the full set of recognised options. Unset fields in a YAML file keep
// the values from DefaultConfig.
type Config struct {
	Timing  TimingConfig         `yaml:"timing"`
	Quality QualityConfig        `yaml:"quality"`
	Audio   AudioConfig          `yaml:"audio"`
	Images  ImageConfig          `yaml:"images"`
	Script  ScriptConfig         `yaml:"script"`
	Render  RenderConfig         `yaml:"render"`
	Topics  map[Topic]TopicStyle `yaml:"topics"`
}

func DefaultConfig() *Config {
	return &Config{
		Timing: TimingConfig{
			FPS:                 30,
			AudioPaddingSeconds: 0.5,
			MinSceneSeconds:     3.0,
			MaxSceneSeconds:     30.0,
			SubtitleMaxChars:    30,
		},
		Quality: QualityConfig{
			PassThreshold:  97,
			MaxAttempts:    3,
			MinScenes:      10,
			MaxScenes:      15,
			TargetChars:    20000,
			HardFloorChars: 15000,
		},
		Audio: AudioConfig{
			Provider:           "sarvam",
			Language:           "en-IN",
			Model:              "bulbul:v2",
			PlaceholderSeconds: 3.0,
			MinPayloadBytes:    10000,
			MaxAttempts:        3,
			RetryDelay:         2 * time.Second,
			RateLimitDelay:     time.Second,
			ChunkChars:         500,
		},
		Images: ImageConfig{
			Provider:        "pollinations",
			Model:           "flux",
			Width:           1920,
			Height:          1080,
			MinPayloadBytes: 100,
			MaxAttempts:     3,
			Backoff:         2 * time.Second,
			RateLimitDelay:  2 * time.Second,
		},
		Script: ScriptConfig{
			Provider:      "gemini",
			Model:         "gemini-3-flash-preview",
			InitialScenes: 12,
			Temperature:   0.7,
		},
		Render: RenderConfig{
			Engine:      "ffmpeg",
			Command:     "ffmpeg",
			Timeout:     600 * time.Second,
			ProbeBinary: "ffprobe",
		},
		Topics: DefaultTopicStyles(),
	}
}

// LoadConfig reads a YAML file over the defaults. An empty path returns the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	// A partial topics section only overrides the topics it names.
	if cfg.Topics == nil {
		cfg.Topics = make(map[Topic]TopicStyle)
	}
	for t, style := range DefaultTopicStyles() {
		if _, ok := cfg.Topics[t]; !ok {
			cfg.Topics[t] = style
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects option combinations the pipeline cannot run with.
func (c *Config) Validate() error {
	var errs []error
	t := c.Timing
	if t.FPS <= 0 {
		errs = append(errs, fmt.Errorf("timing.fps must be positive, got %d", t.FPS))
	}
	if t.AudioPaddingSeconds < 0 {
		errs = append(errs, errors.New("timing.audio_padding_seconds must not be negative"))
	}
	if t.MinSceneSeconds <= 0 || t.MinSceneSeconds > t.MaxSceneSeconds {
		errs = append(errs, fmt.Errorf("timing: need 0 < min_scene_seconds (%v) <= max_scene_seconds (%v)", t.MinSceneSeconds, t.MaxSceneSeconds))
	}
	if t.SubtitleMaxChars <= 0 {
		errs = append(errs, errors.New("timing.subtitle_max_chars must be positive"))
	}

	q := c.Quality
	if q.PassThreshold < 0 || q.PassThreshold > 100 {
		errs = append(errs, fmt.Errorf("quality.pass_threshold must be within 0..100, got %v", q.PassThreshold))
	}
	if q.MaxAttempts < 1 {
		errs = append(errs, errors.New("quality.max_attempts must be at least 1"))
	}
	if q.MinScenes < 2 || q.MinScenes > q.MaxScenes {
		errs = append(errs, fmt.Errorf("quality: need 2 <= min_scenes (%d) <= max_scenes (%d)", q.MinScenes, q.MaxScenes))
	}
	if q.TargetChars <= 0 || q.HardFloorChars < 0 {
		errs = append(errs, errors.New("quality: target_chars must be positive and hard_floor_chars not negative"))
	}

	if c.Audio.MaxAttempts < 1 || c.Images.MaxAttempts < 1 {
		errs = append(errs, errors.New("audio.max_attempts and images.max_attempts must be at least 1"))
	}
	if c.Images.Width <= 0 || c.Images.Height <= 0 {
		errs = append(errs, errors.New("images: width and height must be positive"))
	}

	switch c.Images.Provider {
	case "gemini", "pollinations", "none":
	default:
		errs = append(errs, fmt.Errorf("images.provider %q is not one of gemini, pollinations, none", c.Images.Provider))
	}
	switch c.Script.Provider {
	case "gemini", "openai":
	default:
		errs = append(errs, fmt.Errorf("script.provider %q is not one of gemini, openai", c.Script.Provider))
	}
	switch c.Render.Engine {
	case "ffmpeg", "remotion":
	default:
		errs = append(errs, fmt.Errorf("render.engine %q is not one of ffmpeg, remotion", c.Render.Engine))
	}
	if c.Render.Timeout <= 0 {
		errs = append(errs, errors.New("render.timeout must be positive"))
	}
	if c.Audio.Provider != "sarvam" {
		errs = append(errs, fmt.Errorf("audio.provider %q is not supported", c.Audio.Provider))
	}
	return errors.Join(errs...)
}

// Style returns the palette for a topic, falling back to the default topic.
func (c *Config) Style(t Topic) TopicStyle {
	if s, ok := c.Topics[t]; ok {
		return s
	}
	if s, ok := c.Topics[DefaultTopic]; ok {
		return s
	}
	return DefaultTopicStyles()[DefaultTopic]
}

// LoadEnv loads a .env file if present. A missing file is not an error.
func LoadEnv(filename string) error {
	if _, err := os.Stat(filename); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(filename); err != nil {
		return fmt.Errorf("load %s: %w", filename, err)
	}
	return nil
}
