package transcript

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"call-intel-go/internal/config"
	"call-intel-go/internal/rules"
	"call-intel-go/internal/types"
)

// [HH:MM:SS] Speaker: text, with an optional " - HH:MM:SS" end time inside the brackets.
var lineRe = regexp.MustCompile(`^\[(\d{2}:\d{2}:\d{2})(?:\s*-\s*(\d{2}:\d{2}:\d{2}))?\]\s*([^:]+):\s*(.+)$`)

// Segmenter turns raw bracketed transcript text into annotated segments.
type Segmenter struct {
	catalog *rules.Catalog
	wpm     float64
}

func NewSegmenter(c *rules.Catalog, cfg config.Analysis) *Segmenter {
	wpm := cfg.WordsPerMinute
	if wpm <= 0 {
		wpm = 150
	}
	return &Segmenter{catalog: c, wpm: wpm}
}

// Segment parses raw in source order. Lines that do not match the format are
// skipped. Roles are left Unknown.
func (s *Segmenter) Segment(raw string) []types.TranscriptSegment {
	out := []types.TranscriptSegment{}
	for line := range strings.Lines(raw) {
		m := lineRe.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		text := strings.TrimSpace(m[4])
		speaker := strings.TrimSpace(m[3])
		if text == "" || speaker == "" {
			continue
		}
		start := clockSeconds(m[1])
		words := len(strings.Fields(text))
		end := start + round2(float64(words)/s.wpm*60)
		if m[2] != "" {
			if explicit := clockSeconds(m[2]); explicit > start {
				end = explicit
			}
		}
		seg := types.TranscriptSegment{
			Index:        len(out),
			Timestamp:    m[1],
			SpeakerLabel: speaker,
			Role:         types.RoleUnknown,
			Text:         text,
			StartOffset:  start,
			EndOffset:    end,
			WordCount:    words,
		}
		s.annotate(&seg)
		out = append(out, seg)
	}
	return out
}

func (s *Segmenter) annotate(seg *types.TranscriptSegment) {
	seg.Sentiment = Sentiment(s.catalog, seg.Text)
	seg.Emotions = Emotions(s.catalog, seg.Text)
	seg.KeyPhrases = KeyPhrases(s.catalog, seg.Text)
}

// Sentiment compares positive and negative lexicon hits.
func Sentiment(c *rules.Catalog, text string) types.Sentiment {
	pos, neg := c.Positive.Count(text), c.Negative.Count(text)
	switch {
	case pos > neg:
		return types.SentimentPositive
	case neg > pos:
		return types.SentimentNegative
	default:
		return types.SentimentNeutral
	}
}

func Emotions(c *rules.Catalog, text string) []string {
	out := []string{}
	for _, cue := range c.Emotions {
		if cue.Terms.Any(text) || containsAny(text, cue.Marks) {
			out = append(out, cue.Emotion)
		}
	}
	return out
}

func KeyPhrases(c *rules.Catalog, text string) []string {
	kp := c.KeyPhrases
	out := []string{}
	seen := map[string]bool{}
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\'' && r != '-'
	})
	for _, w := range words {
		w = strings.Trim(w, "'-")
		if len([]rune(w)) < kp.MinLength || kp.Stopwords[w] || seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
		if len(out) == kp.Max {
			break
		}
	}
	return out
}

func containsAny(text string, marks []string) bool {
	for _, m := range marks {
		if m != "" && strings.Contains(text, m) {
			return true
		}
	}
	return false
}

func clockSeconds(hms string) float64 {
	parts := strings.Split(hms, ":")
	if len(parts) != 3 {
		return 0
	}
	h, _ := strconv.Atoi(parts[0])
	m, _ := strconv.Atoi(parts[1])
	sec, _ := strconv.Atoi(parts[2])
	return float64(h*3600 + m*60 + sec)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
