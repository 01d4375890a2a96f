package video

import (
	"bytes"
	"context"
	"fmt"
	"hash/fnv"
	"image"
	"image/draw"
	_ "image/jpeg"
	"image/png"
	"io"
	"log"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"slide_video_studio/common"
)

const (
	// aspectTolerance is the relative aspect-ratio deviation accepted from a generator.
	aspectTolerance = 0.02
	// maxImagePixels caps the decoded size of a generated image.
	maxImagePixels = 8192 * 8192
)

// ImageGenerator renders a prompt into an encoded raster image.
type ImageGenerator interface {
	Generate(ctx context.Context, prompt string, width, height int) ([]byte, error)
}

// ImageAsset is a scene's PNG. Generated is false for a local fallback.
type ImageAsset struct {
	SceneID   int
	PixelData []byte
	Generated bool
}

// ImageFileName is the file name the renderer expects for the scene at index.
func ImageFileName(index int) string {
	return fmt.Sprintf("slide_%d.png", index)
}

type BatchImages struct {
	Images   []ImageAsset
	Failures []*ImageAcquisitionError
}

// ImageProvider acquires one image per scene, falling back to a local gradient.
type ImageProvider struct {
	gen   ImageGenerator
	cfg   common.ImageConfig
	style common.TopicStyle
}

// NewImageProvider builds a provider; gen may be nil to always use fallbacks.
func NewImageProvider(gen ImageGenerator, cfg common.ImageConfig, style common.TopicStyle) *ImageProvider {
	return &ImageProvider{gen: gen, cfg: cfg, style: style}
}

// EnhancePrompt adds the framing every slide background needs.
func EnhancePrompt(description string, width, height int) string {
	return fmt.Sprintf("%s, 16:9 aspect ratio, %dx%d, professional presentation style, clean composition, no text",
		strings.TrimSpace(description), width, height)
}

// Acquire returns an image for the scene. It never fails: when generation is
// exhausted the fallback is returned together with the reason.
func (p *ImageProvider) Acquire(ctx context.Context, scene common.Scene) (ImageAsset, *ImageAcquisitionError) {
	if p.gen == nil {
		return p.fallback(scene), nil
	}

	desc := scene.ImageDescription
	if strings.TrimSpace(desc) == "" {
		desc = scene.Heading
	}
	prompt := EnhancePrompt(desc, p.cfg.Width, p.cfg.Height)

	var pixels []byte
	policy := common.RetryPolicy{
		MaxAttempts: p.cfg.MaxAttempts,
		Delay:       p.cfg.Backoff,
		Multiplier:  2,
		Tag:         fmt.Sprintf("IMAGES scene %d", scene.ID),
	}
	err := common.Retry(ctx, policy, func(ctx context.Context, attempt int) error {
		data, err := p.gen.Generate(ctx, prompt, p.cfg.Width, p.cfg.Height)
		if err != nil {
			return err
		}
		normalized, err := NormalizeImage(data, p.cfg.Width, p.cfg.Height, p.cfg.MinPayloadBytes)
		if err != nil {
			return err
		}
		pixels = normalized
		return nil
	})
	if err != nil {
		log.Printf("[IMAGES] scene %d: generation failed, drawing fallback: %v", scene.ID, err)
		return p.fallback(scene), &ImageAcquisitionError{SceneID: scene.ID, Err: err}
	}
	return ImageAsset{SceneID: scene.ID, PixelData: pixels, Generated: true}, nil
}

func (p *ImageProvider) fallback(scene common.Scene) ImageAsset {
	data, err := FallbackImage(scene.Heading, p.style, p.cfg.Width, p.cfg.Height)
	if err != nil {
		// Only a malformed palette gets here; retry with the built-in one.
		data, _ = FallbackImage(scene.Heading, common.DefaultTopicStyles()[common.DefaultTopic], p.cfg.Width, p.cfg.Height)
	}
	return ImageAsset{SceneID: scene.ID, PixelData: data, Generated: false}
}

// AcquireAll acquires images in scene order with a pause between external calls
// and verifies one image per scene.
func (p *ImageProvider) AcquireAll(ctx context.Context, scenes []common.Scene) (*BatchImages, error) {
	out := &BatchImages{Images: make([]ImageAsset, 0, len(scenes))}
	for i, scene := range scenes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if i > 0 && p.gen != nil {
			if err := common.Sleep(ctx, p.cfg.RateLimitDelay); err != nil {
				return nil, err
			}
		}
		img, acqErr := p.Acquire(ctx, scene)
		if acqErr != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			out.Failures = append(out.Failures, acqErr)
		}
		out.Images = append(out.Images, img)
	}
	if err := CheckImageCoverage(scenes, out.Images); err != nil {
		return nil, err
	}
	return out, nil
}

// CheckImageCoverage verifies images[i] belongs to scenes[i] for every scene.
func CheckImageCoverage(scenes []common.Scene, images []ImageAsset) error {
	if len(images) != len(scenes) {
		return fmt.Errorf("%w: %d images for %d scenes", ErrImageCoverage, len(images), len(scenes))
	}
	for i := range scenes {
		if images[i].SceneID != scenes[i].ID {
			return fmt.Errorf("%w: position %d holds scene %d, want %d", ErrImageCoverage, i, images[i].SceneID, scenes[i].ID)
		}
		if len(images[i].PixelData) == 0 {
			return fmt.Errorf("%w: scene %d has no pixel data", ErrImageCoverage, scenes[i].ID)
		}
	}
	return nil
}

// NormalizeImage checks a generated payload decodes and has the target aspect
// ratio, then returns it as a PNG of exactly width x height.
func NormalizeImage(data []byte, width, height, minBytes int) ([]byte, error) {
	if len(data) < minBytes {
		return nil, fmt.Errorf("image payload too small: %d bytes", len(data))
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("undecodable image: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("empty %s image", format)
	}
	if int64(cfg.Width)*int64(cfg.Height) > maxImagePixels {
		return nil, fmt.Errorf("%s image is %dx%d, larger than %d pixels", format, cfg.Width, cfg.Height, maxImagePixels)
	}
	want := float64(width) / float64(height)
	got := float64(cfg.Width) / float64(cfg.Height)
	if math.Abs(got-want)/want > aspectTolerance {
		return nil, fmt.Errorf("%s image is %dx%d, aspect %.3f does not match %.3f", format, cfg.Width, cfg.Height, got, want)
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("undecodable image: %w", err)
	}
	b := src.Bounds()

	var out image.Image = src
	if b.Dx() != width || b.Dy() != height {
		dst := image.NewRGBA(image.Rect(0, 0, width, height))
		xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
		out = dst
	} else if format == "png" {
		return data, nil
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, out); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	return buf.Bytes(), nil
}

// PollinationsGenerator fetches images from the Pollinations prompt endpoint.
type PollinationsGenerator struct {
	BaseURL string
	Model   string
	HTTP    *http.Client
}

func NewPollinationsGenerator(model string) *PollinationsGenerator {
	return &PollinationsGenerator{
		BaseURL: "https://image.pollinations.ai",
		Model:   model,
		HTTP:    &http.Client{Timeout: 120 * time.Second},
	}
}

func (g *PollinationsGenerator) Generate(ctx context.Context, prompt string, width, height int) ([]byte, error) {
	h := fnv.New32a()
	h.Write([]byte(prompt))
	u := fmt.Sprintf("%s/prompt/%s?width=%d&height=%d&nologo=true&model=%s&seed=%d",
		strings.TrimRight(g.BaseURL, "/"), url.PathEscape(prompt), width, height, url.QueryEscape(g.Model), h.Sum32()%100000)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := g.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pollinations request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("pollinations returned HTTP %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, fmt.Errorf("pollinations read: %w", err)
	}
	return data, nil
}

// GeminiImageGenerator adapts a Gemini client to ImageGenerator.
type GeminiImageGenerator struct {
	Client interface {
		GenerateImage(ctx context.Context, prompt string) ([]byte, error)
	}
}

func (g GeminiImageGenerator) Generate(ctx context.Context, prompt string, width, height int) ([]byte, error) {
	return g.Client.GenerateImage(ctx, prompt)
}
