package dynamics

import (
	"math"
	"strings"

	"call-intel-go/internal/config"
	"call-intel-go/internal/rules"
	"call-intel-go/internal/types"
)

const (
	EffectivenessPositive = "positive"
	EffectivenessNeutral  = "neutral"
	EffectivenessNegative = "negative"
)

// Analyzer measures who talked, who interrupted, how the rep asked
// questions, and where the conversation paused.
type Analyzer struct {
	catalog *rules.Catalog
	cfg     config.Analysis
}

func New(c *rules.Catalog, cfg config.Analysis) *Analyzer {
	return &Analyzer{catalog: c, cfg: cfg}
}

func (a *Analyzer) Analyze(segs []types.TranscriptSegment) types.ConversationDynamics {
	flow, dropped := a.emotionalFlow(segs)
	return types.ConversationDynamics{
		TalkTimeRatio:        TalkTime(segs),
		InterruptionCounts:   a.interruptions(segs),
		QuestionTechnique:    a.questions(segs),
		SilenceMoments:       a.silences(segs),
		EmotionalFlow:        flow,
		EmotionalFlowDropped: dropped,
	}
}

// TalkTime rounds the rep share and gives the prospect the remainder so the
// two always sum to 100. No talk time at all is reported as 50/50.
func TalkTime(segs []types.TranscriptSegment) types.TalkTimeRatio {
	var rep, prospect float64
	for _, s := range segs {
		switch s.Role {
		case types.RoleRep:
			rep += s.Duration()
		case types.RoleProspect:
			prospect += s.Duration()
		}
	}
	total := rep + prospect
	if total <= 0 {
		return types.TalkTimeRatio{Rep: 50, Prospect: 50}
	}
	r := int(math.Round(rep / total * 100))
	return types.TalkTimeRatio{Rep: r, Prospect: 100 - r}
}

// interruptions counts a turn as an interruption when the previous speaker's
// turn was cut short and the new speaker came in without a pause.
func (a *Analyzer) interruptions(segs []types.TranscriptSegment) types.InterruptionCounts {
	var out types.InterruptionCounts
	for i := 1; i < len(segs); i++ {
		prev, cur := segs[i-1], segs[i]
		if prev.SpeakerLabel == cur.SpeakerLabel {
			continue
		}
		if prev.WordCount >= a.cfg.InterruptionShortWords {
			continue
		}
		if cur.StartOffset-prev.EndOffset > a.cfg.InterruptionMaxGapSec {
			continue
		}
		switch cur.Role {
		case types.RoleRep:
			out.Rep++
		case types.RoleProspect:
			out.Prospect++
		}
	}
	return out
}

// questions classifies rep questions by their final sentence. Leading
// detection is checked first and is the least precise of the three.
func (a *Analyzer) questions(segs []types.TranscriptSegment) types.QuestionTechnique {
	var out types.QuestionTechnique
	q := a.catalog.Questions
	for _, s := range segs {
		text := strings.TrimSpace(s.Text)
		if s.Role != types.RoleRep || !strings.HasSuffix(text, "?") {
			continue
		}
		last := lastSentence(text)
		switch {
		case q.Leading.Any(last):
			out.Leading++
		case startsWithAny(last, q.Open.Matches(last)):
			out.Open++
		default:
			out.Closed++
		}
	}
	return out
}

func (a *Analyzer) silences(segs []types.TranscriptSegment) []types.SilenceMoment {
	out := []types.SilenceMoment{}
	for i := 1; i < len(segs); i++ {
		prev, cur := segs[i-1], segs[i]
		gap := cur.StartOffset - prev.EndOffset
		if gap < a.cfg.SilenceThresholdSec {
			continue
		}
		eff := EffectivenessNeutral
		switch {
		case prev.Role == types.RoleRep && a.catalog.Profile.PriceTerms.Any(prev.Text):
			eff = EffectivenessPositive
		case cur.Sentiment == types.SentimentNegative:
			eff = EffectivenessNegative
		}
		out = append(out, types.SilenceMoment{
			AfterSegment:  prev.Index,
			Timestamp:     cur.Timestamp,
			DurationSec:   round2(gap),
			Effectiveness: eff,
		})
	}
	return out
}

// emotionalFlow samples at most EmotionSampleCap segments from the start of
// the call and reports how many were left out.
func (a *Analyzer) emotionalFlow(segs []types.TranscriptSegment) ([]types.EmotionSample, int) {
	limit := len(segs)
	if a.cfg.EmotionSampleCap > 0 && limit > a.cfg.EmotionSampleCap {
		limit = a.cfg.EmotionSampleCap
	}
	out := make([]types.EmotionSample, 0, limit)
	for _, s := range segs[:limit] {
		emotion := string(s.Sentiment)
		if len(s.Emotions) > 0 {
			emotion = s.Emotions[0]
		}
		out = append(out, types.EmotionSample{
			SegmentIndex: s.Index,
			Timestamp:    s.Timestamp,
			Role:         s.Role,
			Emotion:      emotion,
			Intensity:    intensity(s),
		})
	}
	return out, len(segs) - limit
}

func intensity(s types.TranscriptSegment) float64 {
	v := 0.3 + 0.2*float64(len(s.Emotions))
	if s.Sentiment != types.SentimentNeutral && s.Sentiment != "" {
		v += 0.2
	}
	return round2(math.Min(v, 1))
}

func lastSentence(text string) string {
	body := strings.TrimRight(text, "?!. ")
	if i := strings.LastIndexAny(body, ".!?"); i >= 0 {
		return strings.TrimSpace(text[i+1:])
	}
	return text
}

func startsWithAny(text string, prefixes []string) bool {
	lower := strings.ToLower(text)
	for _, p := range prefixes {
		if strings.HasPrefix(lower, strings.ToLower(p)) {
			return true
		}
	}
	return false
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
