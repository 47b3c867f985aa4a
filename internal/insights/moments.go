package insights

import (
	"cmp"
	"fmt"
	"slices"

	"call-intel-go/internal/types"
)

// controlImpact maps control-moment strength onto the insight impact scale.
var controlImpact = map[types.Level]int{types.LevelHigh: 8, types.LevelMedium: 6, types.LevelLow: 4}

// KeyMoments picks the highest-impact points of the call. Moments at or
// above minImpact are kept, strongest first, ties in call order.
func KeyMoments(ins []types.Insight, power types.PowerAnalysis, minImpact, limit int) []types.KeyMoment {
	var out []types.KeyMoment
	for _, in := range ins {
		if in.ImpactScore < minImpact {
			continue
		}
		out = append(out, types.KeyMoment{
			SegmentIndex:   in.SegmentIndex,
			Timestamp:      in.Timestamp,
			Moment:         describe(in),
			Significance:   significance(in.ImpactScore),
			Recommendation: recommend(in),
			Impact:         in.ImpactScore,
		})
	}
	for _, cm := range power.ControlMoments {
		impact := controlImpact[cm.Impact]
		if impact < minImpact {
			continue
		}
		m := types.KeyMoment{
			SegmentIndex: cm.SegmentIndex,
			Timestamp:    cm.Timestamp,
			Significance: significance(impact),
			Impact:       impact,
		}
		if cm.Direction == types.ShiftToRep {
			m.Moment = fmt.Sprintf("Strong value proposition delivery (%q)", cm.Trigger)
			m.Recommendation = "Use similar approach in future calls"
		} else {
			m.Moment = fmt.Sprintf("Prospect took control (%q)", cm.Trigger)
			m.Recommendation = "Regain control with open discovery questions"
		}
		out = append(out, m)
	}

	slices.SortStableFunc(out, func(a, b types.KeyMoment) int {
		if c := cmp.Compare(b.Impact, a.Impact); c != 0 {
			return c
		}
		return cmp.Compare(a.SegmentIndex, b.SegmentIndex)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	if out == nil {
		out = []types.KeyMoment{}
	}
	return out
}

func significance(impact int) types.Significance {
	switch {
	case impact >= 9:
		return types.SignificanceCritical
	case impact >= 7:
		return types.SignificanceImportant
	default:
		return types.SignificanceNotable
	}
}

func describe(in types.Insight) string {
	switch in.Type {
	case types.InsightObjection:
		return fmt.Sprintf("%s objection raised", in.Category)
	case types.InsightBuyingSignal:
		return fmt.Sprintf("Buying signal: %s", in.Category)
	case types.InsightPainPoint:
		return fmt.Sprintf("Pain point: %s", in.Category)
	case types.InsightCompetitorMention:
		return fmt.Sprintf("Competitor mentioned: %s", in.Category)
	default:
		return fmt.Sprintf("%s: %s", in.Type, in.Category)
	}
}

func recommend(in types.Insight) string {
	switch in.Type {
	case types.InsightObjection:
		if in.SuggestedResponse != "" {
			return in.SuggestedResponse
		}
		return "Prepare stronger ROI justification"
	case types.InsightBuyingSignal:
		return "Follow up with a concrete next step while interest is high"
	case types.InsightPainPoint:
		return "Quantify the pain and tie it to the proposed solution"
	case types.InsightCompetitorMention:
		return fmt.Sprintf("Prepare differentiation against %s", in.Category)
	default:
		return "Confirm this detail in the follow-up"
	}
}
