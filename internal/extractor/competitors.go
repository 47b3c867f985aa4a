package extractor

import (
	"strings"

	"call-intel-go/internal/types"
)

// competitors finds every sentence in seg naming a known competitor.
func (e *Engine) competitors(seg types.TranscriptSegment) []types.CompetitorMention {
	rules := e.catalog.Competitors
	var out []types.CompetitorMention
	for _, sentence := range sentences(seg.Text) {
		for _, comp := range rules.Names {
			if !comp.Aliases.Any(sentence) {
				continue
			}
			sentiment := types.SentimentNeutral
			switch {
			case rules.Positive.Any(sentence):
				sentiment = types.SentimentPositive
			case rules.Negative.Any(sentence):
				sentiment = types.SentimentNegative
			}
			features := rules.Features.Matches(sentence)
			if features == nil {
				features = []string{}
			}
			out = append(out, types.CompetitorMention{
				CompetitorName:    comp.Name,
				Context:           sentence,
				SegmentIndex:      seg.Index,
				Sentiment:         sentiment,
				FeaturesMentioned: features,
				PriceComparison:   rules.Price.Any(sentence),
				SwitchingIntent:   rules.Switch.Any(sentence),
			})
		}
	}
	return out
}

// sentences splits on terminal punctuation, keeping the punctuation. A dot
// followed directly by a letter (monday.com) does not end a sentence.
func sentences(text string) []string {
	var out []string
	var b strings.Builder
	runes := []rune(text)
	for i, r := range runes {
		b.WriteRune(r)
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		if r == '.' && i+1 < len(runes) && runes[i+1] != ' ' {
			continue
		}
		if s := strings.TrimSpace(b.String()); s != "" {
			out = append(out, s)
		}
		b.Reset()
	}
	if s := strings.TrimSpace(b.String()); s != "" {
		out = append(out, s)
	}
	return out
}
