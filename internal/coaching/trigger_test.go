package coaching

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"call-intel-go/internal/apperrors"
	"call-intel-go/internal/types"
)

func analysis(overall float64) types.CallAnalysis {
	no := false
	return types.CallAnalysis{
		CallID: "CA100",
		Quality: types.QualityScore{
			Overall:          overall,
			Strengths:        []string{"Strong Discovery (100%)"},
			ImprovementAreas: []string{"Improve Closing (currently 33%)"},
		},
		CoachingOpportunities: []types.CoachingOpportunity{
			{Area: "Talk Time Balance", Improvement: "Listen more, talk less", Priority: types.LevelHigh},
			{Area: "Objection Handling", Improvement: "Excellent objection handling demonstrated", Priority: types.LevelLow},
		},
		Sales: types.SalesInsights{Objections: []types.Insight{
			{Type: types.InsightObjection, Category: "price", SuggestedResponse: "Focus on ROI.", HandledSuccessfully: &no},
		}},
	}
}

func TestEvaluateAboveThreshold(t *testing.T) {
	assert.Equal(t, 70.0, NewTrigger(70).Threshold())
	s, err := NewTrigger(70).Evaluate(analysis(70), types.CallContext{UserID: "rep-1"})
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestEvaluateBelowThreshold(t *testing.T) {
	s, err := NewTrigger(70).Evaluate(analysis(55.5), types.CallContext{UserID: "rep-1"})
	require.NoError(t, err)
	require.NotNil(t, s)

	assert.Equal(t, types.CoachingSessionID("CA100"), s.ID)
	assert.Equal(t, "rep-1", s.RepID)
	assert.Equal(t, "auto-analysis", s.SessionType)
	assert.Equal(t, []string{"CA100"}, s.CallIDs)
	assert.Equal(t, types.CoachingPending, s.Status)
	assert.Equal(t, 55.5, s.OverallScore)
	assert.Equal(t, []string{"Listen more, talk less", "Practice the price objection: Focus on ROI."}, s.ActionItems)
}

func TestEvaluateWithoutRep(t *testing.T) {
	s, err := NewTrigger(70).Evaluate(analysis(10), types.CallContext{})
	assert.Nil(t, s)
	assert.ErrorIs(t, err, apperrors.ErrCoachingGeneration)
}
