package video

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"slide_video_studio/common"
)

var conclusionWords = []string{"conclusion", "summary", "takeaway", "wrap", "final", "まとめ", "結論", "おわりに"}

// ArticleMetricsFrom measures a source document.
func ArticleMetricsFrom(doc *common.SourceDocument) ArticleMetrics {
	if doc == nil {
		return ArticleMetrics{}
	}
	sections := doc.Sections()
	m := ArticleMetrics{
		CharCount:         doc.CharCount(),
		SectionCount:      len(sections),
		HasIntro:          doc.LeadParagraphs > 0,
		SourceCount:       len(doc.Links),
		ListCount:         doc.ListCount,
		EmojiCount:        CountEmoji(doc.Raw),
		EngagementSignals: engagementSignals(doc.Text),
		SEOScore:          seoScore(doc),
	}
	if len(sections) > 0 {
		last := strings.ToLower(sections[len(sections)-1])
		for _, w := range conclusionWords {
			if strings.Contains(last, w) {
				m.HasConclusion = true
				break
			}
		}
	}
	if n := len(doc.Paragraphs); n > 0 {
		total := 0
		for _, p := range doc.Paragraphs {
			total += utf8.RuneCountInString(p)
		}
		m.AvgParagraphChars = float64(total) / float64(n)
	}
	return m
}

// CountEmoji counts pictographic runes.
func CountEmoji(s string) int {
	n := 0
	for _, r := range s {
		switch {
		case r >= 0x1F300 && r <= 0x1FAFF,
			r >= 0x2600 && r <= 0x27BF,
			r >= 0x1F1E6 && r <= 0x1F1FF:
			n++
		}
	}
	return n
}

var (
	ctaRe     = regexp.MustCompile(`(?i)\b(try|start|share|comment|subscribe|follow|let's|sign up)\b|ぜひ|試して`)
	exampleRe = regexp.MustCompile(`(?i)for example|for instance|e\.g\.|such as|例えば|たとえば`)
)

// engagementSignals counts which of question, number, example and call to
// action appear in the text.
func engagementSignals(text string) int {
	n := 0
	if strings.ContainsAny(text, "?？") {
		n++
	}
	if strings.IndexFunc(text, unicode.IsDigit) >= 0 {
		n++
	}
	if exampleRe.MatchString(text) {
		n++
	}
	if ctaRe.MatchString(text) {
		n++
	}
	return n
}

// seoScore is a 0-100 heuristic over title length, sectioning, links and the
// opening paragraph.
func seoScore(doc *common.SourceDocument) float64 {
	score := 0.0
	switch l := utf8.RuneCountInString(doc.Title); {
	case l >= 20 && l <= 70:
		score += 30
	case l > 0:
		score += 15
	}
	score += 25 * atLeast(float64(len(doc.Sections())), 3)
	score += 20 * atLeast(float64(len(doc.Links)), 3)
	if len(doc.Paragraphs) > 0 {
		score += 25 * atLeast(float64(utf8.RuneCountInString(doc.Paragraphs[0])), 100)
	}
	return round2(score)
}

// SceneMetricsFrom measures one attempt's scenes and the assets made for them.
func SceneMetricsFrom(scenes []common.Scene, audio *BatchAudio, images *BatchImages, tl *Timeline, slideTextLimit int) SceneMetrics {
	m := SceneMetrics{SceneCount: len(scenes)}
	for i, s := range scenes {
		switch s.Kind {
		case common.KindContent:
			m.ContentScenes++
		case common.KindTitle:
			if i == 0 {
				m.HasTitle = true
			}
		case common.KindEnding:
			if i == len(scenes)-1 {
				m.HasEnding = true
			}
		}
		if utf8.RuneCountInString(s.SlideText()) > slideTextLimit {
			m.OverlongScenes++
		}
	}
	if audio != nil {
		m.NarratedScenes = len(audio.Assets) - len(audio.Failures)
		for _, f := range audio.Failures {
			m.StageIssues = append(m.StageIssues, f.Error())
		}
	}
	if images != nil {
		m.ImageCount = len(images.Images)
		for _, img := range images.Images {
			if img.Generated {
				m.GeneratedImages++
			}
		}
		for _, f := range images.Failures {
			m.StageIssues = append(m.StageIssues, f.Error())
		}
	}
	m.TimelineValid = tl != nil && tl.Valid() && len(tl.Entries) == len(scenes)
	return m
}
