package actionable

import (
	"fmt"

	"call-intel-go/internal/types"
)

// FollowUpFor picks timing and approach from the prospect profile.
func FollowUpFor(p types.PsychologicalProfile) types.FollowUp {
	f := types.FollowUp{
		Timing:    "Within 3-5 days",
		Approach:  "Relationship-focused",
		KeyPoints: []string{},
	}
	if p.DecisionMakingStyle == "fast" {
		f.Timing = "Within 24 hours"
	}
	if p.PersonalityType == types.PersonalityAnalytical {
		f.Approach = "Data-driven follow-up"
	}
	return f
}

// KeyPoints lists what to prepare before the next conversation.
func KeyPoints(sales types.SalesInsights, q types.QualityScore, improvementThreshold float64) []string {
	var out []string
	var unhandled []types.Insight
	for _, o := range sales.Objections {
		if o.Unhandled() {
			unhandled = append(unhandled, o)
		}
	}
	if len(unhandled) > 0 {
		out = append(out, "Address unhandled objections from previous call")
		for _, o := range unhandled {
			out = append(out, fmt.Sprintf("Prepare response for: %s - %s", o.Category, o.SuggestedResponse))
		}
	}
	if q.Discovery < improvementThreshold {
		out = append(out, "Prepare deeper discovery questions for next call")
	}
	if q.Closing < improvementThreshold {
		out = append(out, "Prepare clear next steps and closing questions")
	}
	if len(sales.CompetitorMentions) > 0 {
		out = append(out, "Prepare competitive differentiation talking points")
		for _, m := range sales.CompetitorMentions {
			if m.SwitchingIntent {
				out = append(out, "Prepare switching cost analysis and migration plan")
			}
		}
	}
	out = append(out, "Send follow-up email within 24 hours", "Update CRM with call notes and next actions")
	return dedupe(out)
}
