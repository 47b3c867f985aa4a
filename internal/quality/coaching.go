package quality

import (
	"math"

	"call-intel-go/internal/types"
)

// talkTimeCeiling is the rep talk share above which the rep is told to listen more.
const talkTimeCeiling = 70

var areaAdvice = map[string]string{
	"Rapport Building": "Open with personal check-ins and acknowledge the prospect's time",
	"Discovery":        "Ask about current process, goals and who is involved before pitching",
	"Presentation":     "Tie each feature to something the prospect said",
	"Closing":          "End every call with an agreed next step and date",
}

// Opportunities lists coaching areas for the rep, always covering question
// technique, objection handling and talk time, then any weak scoring area.
func (s *Scorer) Opportunities(d types.ConversationDynamics, q types.QualityScore) []types.CoachingOpportunity {
	out := []types.CoachingOpportunity{
		questionTechnique(d.QuestionTechnique),
		objectionHandling(q.ObjectionHandling),
		talkTime(d.TalkTimeRatio),
	}
	for _, a := range s.named(q) {
		if a.name == objectionHandlingArea || a.score >= s.improvement {
			continue
		}
		priority := types.LevelMedium
		if a.score < s.improvement/2 {
			priority = types.LevelHigh
		}
		out = append(out, types.CoachingOpportunity{
			Area:         a.name,
			CurrentLevel: a.score,
			Improvement:  areaAdvice[a.name],
			Priority:     priority,
		})
	}
	return out
}

func questionTechnique(qt types.QuestionTechnique) types.CoachingOpportunity {
	op := types.CoachingOpportunity{Area: "Question Technique"}
	if qt.Total() == 0 {
		op.CurrentLevel = 0
		op.Improvement = "Ask open-ended discovery questions"
		op.Priority = types.LevelHigh
		return op
	}
	op.CurrentLevel = math.Round(float64(qt.Open) / float64(qt.Total()) * 100)
	switch {
	case op.CurrentLevel >= 60:
		op.Improvement = "Good use of open-ended questions"
		op.Priority = types.LevelLow
	case op.CurrentLevel >= 30:
		op.Improvement = "Increase ratio of open-ended questions"
		op.Priority = types.LevelMedium
	default:
		op.Improvement = "Replace closed and leading questions with open ones"
		op.Priority = types.LevelHigh
	}
	return op
}

func objectionHandling(score float64) types.CoachingOpportunity {
	op := types.CoachingOpportunity{Area: objectionHandlingArea, CurrentLevel: score}
	switch {
	case score >= 80:
		op.Improvement = "Excellent objection handling demonstrated"
		op.Priority = types.LevelLow
	case score >= 60:
		op.Improvement = "Back objection responses with proof points"
		op.Priority = types.LevelMedium
	default:
		op.Improvement = "Acknowledge each objection and answer it before moving on"
		op.Priority = types.LevelHigh
	}
	return op
}

func talkTime(r types.TalkTimeRatio) types.CoachingOpportunity {
	if r.Rep > talkTimeCeiling {
		return types.CoachingOpportunity{Area: "Talk Time Balance", CurrentLevel: 60, Improvement: "Listen more, talk less", Priority: types.LevelHigh}
	}
	return types.CoachingOpportunity{Area: "Talk Time Balance", CurrentLevel: 80, Improvement: "Good balance maintained", Priority: types.LevelLow}
}
