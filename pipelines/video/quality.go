package video

import (
	"fmt"
	"math"

	"slide_video_studio/common"
)

const (
	CategoryArticle = "article"
	CategoryScenes  = "scenes"
	CategoryVideo   = "video"
)

// categoryOrder fixes iteration order wherever categories are listed.
var categoryOrder = []string{CategoryArticle, CategoryScenes, CategoryVideo}

// ArticleMetrics describe the source article.
type ArticleMetrics struct {
	CharCount         int     `json:"char_count"`
	SectionCount      int     `json:"section_count"`
	HasIntro          bool    `json:"has_intro"`
	HasConclusion     bool    `json:"has_conclusion"`
	SourceCount       int     `json:"source_count"`
	SEOScore          float64 `json:"seo_score"`
	AvgParagraphChars float64 `json:"avg_paragraph_chars"`
	ListCount         int     `json:"list_count"`
	EmojiCount        int     `json:"emoji_count"`
	EngagementSignals int     `json:"engagement_signals"`
}

// SceneMetrics describe the scene set of one attempt.
type SceneMetrics struct {
	SceneCount      int      `json:"scene_count"`
	ContentScenes   int      `json:"content_scenes"`
	HasTitle        bool     `json:"has_title"`
	HasEnding       bool     `json:"has_ending"`
	OverlongScenes  int      `json:"overlong_scenes"`
	ImageCount      int      `json:"image_count"`
	GeneratedImages int      `json:"generated_images"`
	NarratedScenes  int      `json:"narrated_scenes"`
	TimelineValid   bool     `json:"timeline_valid"`
	StageIssues     []string `json:"stage_issues,omitempty"`
}

// VideoMetrics describe the rendered file.
type VideoMetrics struct {
	Exists          bool    `json:"exists"`
	RenderOK        bool    `json:"render_ok"`
	Width           int     `json:"width"`
	Height          int     `json:"height"`
	HasAudio        bool    `json:"has_audio"`
	DurationSeconds float64 `json:"duration_seconds"`
	// ExpectedSeconds is the timeline's running time.
	ExpectedSeconds float64 `json:"expected_seconds"`
	SizeBytes       int64   `json:"size_bytes"`
	BitrateBps      float64 `json:"bitrate_bps"`
	ProbeError      string  `json:"probe_error,omitempty"`
}

// Rubric holds every target the evaluator scores against.
type Rubric struct {
	PassThreshold    float64
	TargetChars      int
	HardFloorChars   int
	MinSections      int
	MinSources       int
	MinSEO           float64
	ParagraphMin     float64
	ParagraphMax     float64
	EngagementTarget int

	MinScenes        int
	MaxScenes        int
	SlideTextLimit   int
	MinContentScenes int

	Width      int
	Height     int
	MinSeconds float64
	MaxSeconds float64
	MinBitrate float64
	MinBytes   int64
	MaxBytes   int64
}

// RubricFromConfig fills the configurable thresholds and the fixed targets.
func RubricFromConfig(cfg *common.Config) Rubric {
	return Rubric{
		PassThreshold:    cfg.Quality.PassThreshold,
		TargetChars:      cfg.Quality.TargetChars,
		HardFloorChars:   cfg.Quality.HardFloorChars,
		MinSections:      12,
		MinSources:       10,
		MinSEO:           85,
		ParagraphMin:     80,
		ParagraphMax:     400,
		EngagementTarget: 4,

		MinScenes:        cfg.Quality.MinScenes,
		MaxScenes:        cfg.Quality.MaxScenes,
		SlideTextLimit:   100,
		MinContentScenes: 5,

		Width:      cfg.Images.Width,
		Height:     cfg.Images.Height,
		MinSeconds: 25,
		MaxSeconds: 120,
		MinBitrate: 500_000,
		MinBytes:   2 << 20,
		MaxBytes:   100 << 20,
	}
}

// CriterionScore is one rubric line.
type CriterionScore struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
	Max   float64 `json:"max"`
}

// CategoryScore is the score of one metric group.
type CategoryScore struct {
	Score           float64          `json:"score"`
	Max             float64          `json:"max"`
	Criteria        []CriterionScore `json:"criteria"`
	Issues          []string         `json:"issues"`
	Recommendations []string         `json:"recommendations"`
}

// add scores a criterion at ratio of its weight; anything short of full marks
// records the issue and recommendation.
func (c *CategoryScore) add(name string, weight, ratio float64, issue, rec string) {
	ratio = clamp01(ratio)
	if ratio > 1-1e-9 {
		ratio = 1
	}
	score := round2(weight * ratio)
	c.Criteria = append(c.Criteria, CriterionScore{Name: name, Score: score, Max: weight})
	c.Score = round2(c.Score + score)
	c.Max += weight
	if ratio < 1 {
		if issue != "" {
			c.Issues = append(c.Issues, issue)
		}
		if rec != "" {
			c.Recommendations = append(c.Recommendations, rec)
		}
	}
}

// QualityReport is the verdict of one attempt.
type QualityReport struct {
	CategoryScores    map[string]CategoryScore `json:"category_scores"`
	OverallPercentage float64                  `json:"overall_percentage"`
	Threshold         float64                  `json:"threshold"`
	Passed            bool                     `json:"passed"`
	HardFloorViolated bool                     `json:"hard_floor_violated"`
	ArticleSkipped    bool                     `json:"article_skipped,omitempty"`
}

// AllIssues lists issues of every category, prefixed with the category.
func (r *QualityReport) AllIssues() []string {
	var out []string
	for _, name := range categoryOrder {
		for _, issue := range r.CategoryScores[name].Issues {
			out = append(out, fmt.Sprintf("[%s] %s", name, issue))
		}
	}
	return out
}

func (r *QualityReport) AllRecommendations() []string {
	var out []string
	for _, name := range categoryOrder {
		for _, rec := range r.CategoryScores[name].Recommendations {
			out = append(out, fmt.Sprintf("[%s] %s", name, rec))
		}
	}
	return out
}

// QualityEvaluator scores an attempt. Evaluate has no side effects.
type QualityEvaluator struct {
	rubric Rubric
}

func NewQualityEvaluator(r Rubric) *QualityEvaluator {
	return &QualityEvaluator{rubric: r}
}

func (q *QualityEvaluator) Evaluate(article ArticleMetrics, scenes SceneMetrics, video VideoMetrics) *QualityReport {
	return q.evaluate(&article, scenes, video)
}

// EvaluateWithoutArticle scores a run that has no source article. The article
// category and the hard floor are left out, so the percentage covers scenes
// and video only.
func (q *QualityEvaluator) EvaluateWithoutArticle(scenes SceneMetrics, video VideoMetrics) *QualityReport {
	return q.evaluate(nil, scenes, video)
}

func (q *QualityEvaluator) evaluate(article *ArticleMetrics, scenes SceneMetrics, video VideoMetrics) *QualityReport {
	r := q.rubric
	cats := map[string]CategoryScore{
		CategoryScenes: q.scoreScenes(scenes),
		CategoryVideo:  q.scoreVideo(video),
	}
	if article != nil {
		cats[CategoryArticle] = q.scoreArticle(*article)
	}

	var total, possible float64
	for _, name := range categoryOrder {
		total += cats[name].Score
		possible += cats[name].Max
	}
	overall := 0.0
	if possible > 0 {
		overall = round2(total / possible * 100)
	}

	report := &QualityReport{
		CategoryScores:    cats,
		OverallPercentage: overall,
		Threshold:         r.PassThreshold,
		Passed:            overall >= r.PassThreshold,
		ArticleSkipped:    article == nil,
	}

	if article != nil && article.CharCount < r.HardFloorChars {
		report.Passed = false
		report.HardFloorViolated = true
		a := cats[CategoryArticle]
		a.Issues = append(a.Issues, fmt.Sprintf("hard floor: article has %d characters, minimum is %d; attempt fails regardless of score", article.CharCount, r.HardFloorChars))
		a.Recommendations = append(a.Recommendations, fmt.Sprintf("expand the source article to at least %d characters", r.HardFloorChars))
		cats[CategoryArticle] = a
	}
	return report
}

func (q *QualityEvaluator) scoreArticle(m ArticleMetrics) CategoryScore {
	r := q.rubric
	var c CategoryScore

	c.add("length", 10, atLeast(float64(m.CharCount), float64(r.TargetChars)),
		fmt.Sprintf("article length %d characters, target %d", m.CharCount, r.TargetChars),
		"add depth to the article: examples, data, explanations")

	structure := 0.6 * atLeast(float64(m.SectionCount), float64(r.MinSections))
	if m.HasIntro {
		structure += 0.2
	}
	if m.HasConclusion {
		structure += 0.2
	}
	c.add("structure", 10, structure,
		fmt.Sprintf("structure: %d sections (target %d), intro %t, conclusion %t", m.SectionCount, r.MinSections, m.HasIntro, m.HasConclusion),
		"organise the article into headed sections with an introduction and a conclusion")

	c.add("sources", 8, atLeast(float64(m.SourceCount), float64(r.MinSources)),
		fmt.Sprintf("%d distinct sources cited, target %d", m.SourceCount, r.MinSources),
		"cite more distinct sources with links")

	c.add("seo", 6, atLeast(m.SEOScore, r.MinSEO),
		fmt.Sprintf("SEO score %.0f, target %.0f", m.SEOScore, r.MinSEO),
		"use a descriptive title, more headed sections and a substantial opening paragraph")

	readability := 0.75 * within(m.AvgParagraphChars, r.ParagraphMin, r.ParagraphMax)
	if m.ListCount > 0 {
		readability += 0.25
	}
	c.add("readability", 8, readability,
		fmt.Sprintf("average paragraph %.0f characters (target %.0f-%.0f), %d list(s)", m.AvgParagraphChars, r.ParagraphMin, r.ParagraphMax, m.ListCount),
		"keep paragraphs moderate in length and use lists for enumerations")

	c.add("no_emoji", 4, 1/float64(1+m.EmojiCount),
		fmt.Sprintf("%d emoji found", m.EmojiCount),
		"remove emoji from the article")

	c.add("engagement", 4, atLeast(float64(m.EngagementSignals), float64(r.EngagementTarget)),
		fmt.Sprintf("%d of %d engagement signals present", m.EngagementSignals, r.EngagementTarget),
		"add questions, concrete numbers, examples and a call to action")
	return c
}

func (q *QualityEvaluator) scoreScenes(m SceneMetrics) CategoryScore {
	r := q.rubric
	var c CategoryScore

	c.add("count", 5, within(float64(m.SceneCount), float64(r.MinScenes), float64(r.MaxScenes)),
		fmt.Sprintf("%d scenes, expected %d-%d", m.SceneCount, r.MinScenes, r.MaxScenes),
		"adjust the number of scenes")

	textRatio := 0.0
	if m.SceneCount > 0 {
		textRatio = 1 - float64(m.OverlongScenes)/float64(m.SceneCount)
	}
	c.add("text_length", 5, textRatio,
		fmt.Sprintf("%d scene(s) carry more than %d characters of slide text", m.OverlongScenes, r.SlideTextLimit),
		"shorten headings and bullet points")

	imageRatio := 0.0
	if m.SceneCount > 0 && m.ImageCount == m.SceneCount {
		imageRatio = float64(m.GeneratedImages) / float64(m.SceneCount)
	}
	c.add("images", 5, imageRatio,
		fmt.Sprintf("%d of %d scenes have generated images (%d images total)", m.GeneratedImages, m.SceneCount, m.ImageCount),
		"check the image generator; fallback gradients were used")

	structure := 0.5 * atLeast(float64(m.ContentScenes), float64(r.MinContentScenes))
	if m.HasTitle {
		structure += 0.25
	}
	if m.HasEnding {
		structure += 0.25
	}
	c.add("structure", 5, structure,
		fmt.Sprintf("title %t, ending %t, %d content scenes (minimum %d)", m.HasTitle, m.HasEnding, m.ContentScenes, r.MinContentScenes),
		"open with a title scene, close with an ending scene and add content scenes")

	audioRatio := 0.0
	if m.SceneCount > 0 {
		audioRatio = float64(m.NarratedScenes) / float64(m.SceneCount)
	}
	c.add("audio", 5, audioRatio,
		fmt.Sprintf("%d of %d scenes narrated", m.NarratedScenes, m.SceneCount),
		"check the speech synthesizer; silent placeholders were used")

	timeline := 0.0
	if m.TimelineValid {
		timeline = 1
	}
	c.add("timeline", 5, timeline, "timeline does not tile the video without gaps", "")

	c.Issues = append(c.Issues, m.StageIssues...)
	return c
}

func (q *QualityEvaluator) scoreVideo(m VideoMetrics) CategoryScore {
	r := q.rubric
	var c CategoryScore
	if !m.Exists {
		for _, name := range []string{"resolution", "audio", "timing", "bitrate", "file_size", "no_errors"} {
			c.add(name, 5, 0, "", "")
		}
		c.Issues = append(c.Issues, "no rendered video")
		c.Recommendations = append(c.Recommendations, "check the renderer output")
		return c
	}

	resolution := 0.0
	if want, got := float64(r.Width*r.Height), float64(m.Width*m.Height); want > 0 && got > 0 {
		resolution = math.Min(want, got) / math.Max(want, got)
	}
	c.add("resolution", 5, resolution,
		fmt.Sprintf("resolution %dx%d, expected %dx%d", m.Width, m.Height, r.Width, r.Height),
		"render at the target resolution")

	audio := 0.0
	if m.HasAudio {
		audio = 1
	}
	c.add("audio", 5, audio, "video has no audio track", "make sure the narration track reaches the renderer")

	maxSeconds := r.MaxSeconds
	if m.ExpectedSeconds*1.2 > maxSeconds {
		maxSeconds = m.ExpectedSeconds * 1.2
	}
	timing := within(m.DurationSeconds, r.MinSeconds, maxSeconds)
	if m.ExpectedSeconds > 0 {
		match := 1 - math.Abs(m.DurationSeconds-m.ExpectedSeconds)/m.ExpectedSeconds
		timing = 0.5*timing + 0.5*clamp01(match)
	}
	c.add("timing", 5, timing,
		fmt.Sprintf("duration %.1fs, timeline %.1fs, accepted range %.0f-%.0fs", m.DurationSeconds, m.ExpectedSeconds, r.MinSeconds, maxSeconds),
		"keep the rendered duration in line with the timeline")

	c.add("bitrate", 5, atLeast(m.BitrateBps, r.MinBitrate),
		fmt.Sprintf("bitrate %.0f bps, minimum %.0f", m.BitrateBps, r.MinBitrate),
		"raise encoder quality")

	c.add("file_size", 5, within(float64(m.SizeBytes), float64(r.MinBytes), float64(r.MaxBytes)),
		fmt.Sprintf("file size %d bytes, expected %d-%d", m.SizeBytes, r.MinBytes, r.MaxBytes),
		"adjust encoder settings or video length")

	clean := 0.0
	switch {
	case m.RenderOK && m.ProbeError == "":
		clean = 1
	case m.RenderOK:
		clean = 0.5
	}
	issue := "render reported errors"
	if m.ProbeError != "" {
		issue = "video could not be probed: " + m.ProbeError
	}
	c.add("no_errors", 5, clean, issue, "inspect renderer and probe logs")
	return c
}

func clamp01(x float64) float64 {
	if math.IsNaN(x) || x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}

func atLeast(actual, target float64) float64 {
	if target <= 0 {
		return 1
	}
	return clamp01(actual / target)
}

func within(actual, lo, hi float64) float64 {
	switch {
	case actual < lo:
		if lo <= 0 {
			return 0
		}
		return clamp01(actual / lo)
	case actual > hi:
		if actual <= 0 {
			return 0
		}
		return clamp01(hi / actual)
	default:
		return 1
	}
}
