package coaching

import (
	"call-intel-go/internal/apperrors"
	"call-intel-go/internal/types"
)

const sessionType = "auto-analysis"

// Trigger decides whether a finished analysis warrants a coaching session.
type Trigger struct {
	// threshold is on the 0-100 quality scale.
	threshold float64
}

func NewTrigger(threshold float64) *Trigger {
	return &Trigger{threshold: threshold}
}

func (t *Trigger) Threshold() float64 { return t.threshold }

// Evaluate returns nil when the call scored at or above the threshold.
// A call with no known rep cannot be coached and yields ErrCoachingGeneration.
func (t *Trigger) Evaluate(a types.CallAnalysis, cc types.CallContext) (*types.CoachingSession, error) {
	if a.Quality.Overall >= t.threshold {
		return nil, nil
	}
	if cc.UserID == "" {
		return nil, apperrors.New(apperrors.ErrCoachingGeneration, "coaching.evaluate", "no rep on record for call %s", a.CallID)
	}

	return &types.CoachingSession{
		ID:               types.CoachingSessionID(a.CallID),
		RepID:            cc.UserID,
		SessionType:      sessionType,
		CallIDs:          []string{a.CallID},
		Strengths:        nonNil(a.Quality.Strengths),
		ImprovementAreas: nonNil(a.Quality.ImprovementAreas),
		ActionItems:      actionItems(a),
		OverallScore:     a.Quality.Overall,
		Status:           types.CoachingPending,
	}, nil
}

func actionItems(a types.CallAnalysis) []string {
	seen := map[string]bool{}
	var out []string
	add := func(s string) {
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	for _, op := range a.CoachingOpportunities {
		if op.Priority != types.LevelLow {
			add(op.Improvement)
		}
	}
	for _, o := range a.Sales.Objections {
		if o.Unhandled() {
			add("Practice the " + o.Category + " objection: " + o.SuggestedResponse)
		}
	}
	if len(out) == 0 {
		add("Review the call recording with your manager")
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return append([]string(nil), s...)
}
