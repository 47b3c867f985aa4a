package insights

import (
	"context"
	"fmt"
	"strings"

	"call-intel-go/internal/actionable"
	"call-intel-go/internal/extractor"
	"call-intel-go/internal/rules"
	"call-intel-go/internal/types"
)

const (
	baseWinProbability = 50
	buyingSignalBonus  = 20
	unhandledPenalty   = 15
	fastDeciderBonus   = 10
)

// Synthesizer turns extracted signals and the prospect profile into sales guidance.
type Synthesizer struct {
	stage rules.TextClassifier
}

// New uses c's stage cascade unless stage is non-nil.
func New(c *rules.Catalog, stage rules.TextClassifier) *Synthesizer {
	if stage == nil {
		stage = c.Stages
	}
	return &Synthesizer{stage: stage}
}

func (s *Synthesizer) Synthesize(ctx context.Context, segs []types.TranscriptSegment, ex extractor.Result, profile types.PsychologicalProfile) (types.SalesInsights, error) {
	stage, err := s.CallStage(ctx, segs)
	if err != nil {
		return types.SalesInsights{}, err
	}

	out := types.SalesInsights{
		CallStage:           stage,
		BuyingSignals:       []types.Insight{},
		Objections:          []types.Insight{},
		CompetitorMentions:  ex.Competitors,
		RecommendedFollowUp: actionable.FollowUpFor(profile),
	}
	if out.CompetitorMentions == nil {
		out.CompetitorMentions = []types.CompetitorMention{}
	}
	for _, in := range ex.Insights {
		switch in.Type {
		case types.InsightBuyingSignal:
			out.BuyingSignals = append(out.BuyingSignals, in)
		case types.InsightObjection:
			out.Objections = append(out.Objections, in)
		}
	}
	out.WinProbability = WinProbability(out.BuyingSignals, out.Objections, profile)
	out.NextBestActions = actionable.Actions(actionable.Generate(stage, ex.Insights, ex.Competitors))
	return out, nil
}

// CallStage runs the stage classifier over the whole transcript.
func (s *Synthesizer) CallStage(ctx context.Context, segs []types.TranscriptSegment) (types.CallStage, error) {
	texts := make([]string, len(segs))
	for i, seg := range segs {
		texts[i] = seg.Text
	}
	label, err := s.stage.Classify(ctx, strings.Join(texts, "\n"))
	if err != nil {
		return "", fmt.Errorf("classify call stage: %w", err)
	}
	return types.CallStage(label), nil
}

func WinProbability(buying, objections []types.Insight, profile types.PsychologicalProfile) int {
	p := baseWinProbability
	if len(buying) > 0 {
		p += buyingSignalBonus
	}
	for _, o := range objections {
		if o.Unhandled() {
			p -= unhandledPenalty
			break
		}
	}
	if profile.DecisionMakingStyle == "fast" {
		p += fastDeciderBonus
	}
	return max(0, min(100, p))
}
