package rules

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"call-intel-go/internal/types"
)

func mustDefault(t *testing.T) *Catalog {
	t.Helper()
	c, err := Default()
	require.NoError(t, err)
	return c
}

func TestDefaultCatalogParses(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)
	require.NotNil(t, c)

	assert.Equal(t, []string{"right?"}, c.Questions.Leading.Matches("That works for you, right?"))
	assert.Empty(t, c.Questions.Leading.Matches("turn right at the corner"))
}

func TestDefaultCatalogCompiles(t *testing.T) {
	c := mustDefault(t)

	assert.Len(t, c.Signals, 14)
	assert.Len(t, c.Quality, 4)
	assert.Len(t, c.Competitors.Names, 5)
	assert.Equal(t, []string{"Closing", "ObjectionHandling", "Presentation", "Discovery", "Introduction"}, c.Stages.Labels())
	assert.Equal(t, types.PersonalityAnalytical, c.Profile.Default.PersonalityType)
}

func TestImpactLookupOrder(t *testing.T) {
	c := mustDefault(t)

	assert.Equal(t, 8, c.Impact(types.InsightObjection, "price"))
	assert.Equal(t, 7, c.Impact(types.InsightObjection, "authority"))
	assert.Equal(t, 5, c.Impact(types.InsightObjection, "status_quo"), "no type-level entry for objections")
	assert.Equal(t, 9, c.Impact(types.InsightBuyingSignal, "pricing_interest"))
	assert.Equal(t, 5, c.Impact(types.InsightDecisionCriteria, "stated_criteria"))
}

func TestTermsWordStart(t *testing.T) {
	terms := MustTerms("now", "rep", "?")

	assert.False(t, terms.Any("I know that"))
	assert.True(t, terms.Any("Sales Representative"))
	assert.Equal(t, 3, terms.Count("Now? Right now."))
	assert.Equal(t, []string{"now", "?"}, terms.Matches("why now?"))
}

func TestEmptyTermsNeverMatch(t *testing.T) {
	var nilTerms *Terms
	empty := MustTerms()

	assert.False(t, nilTerms.Any("anything"))
	assert.Zero(t, empty.Count("anything"))
	assert.Zero(t, empty.Len())
}

func TestRuleBasedFirstMatchWins(t *testing.T) {
	c := mustDefault(t)
	ctx := context.Background()

	cases := []struct {
		name string
		text string
		want string
	}{
		{"closing beats discovery", "Tell me about your team. Great, when can we start?", "Closing"},
		{"price with concern", "I'm concerned about the cost", "ObjectionHandling"},
		{"price without concern", "What does it cost", "Introduction"},
		{"presentation", "Let me tell you about our platform", "Presentation"},
		{"discovery", "What are your goals this year", "Discovery"},
		{"nothing", "Hello there", "Introduction"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := c.Stages.Classify(ctx, tc.text)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestCommunicationStyleNeedsBothFormalMarkers(t *testing.T) {
	c := mustDefault(t)
	ctx := context.Background()

	got, _ := c.Profile.CommunicationStyle.Classify(ctx, "Please send it over")
	assert.Equal(t, "direct", got)

	got, _ = c.Profile.CommunicationStyle.Classify(ctx, "Please send it over, thank you")
	assert.Equal(t, "formal", got)
}

func TestNewRuleBasedRejectsBadSets(t *testing.T) {
	_, err := NewRuleBased(RuleSet{Rules: []Rule{{Label: "x", When: Predicate{Any: []string{"a"}}}}})
	assert.Error(t, err, "missing default")

	_, err = NewRuleBased(RuleSet{Default: "d", Rules: []Rule{{Label: "x"}}})
	assert.Error(t, err, "empty predicate")
}

type stubPredictor struct {
	p   Prediction
	err error
}

func (s stubPredictor) Predict(context.Context, string) (Prediction, error) { return s.p, s.err }

func TestModelBackedFallsBack(t *testing.T) {
	c := mustDefault(t)
	ctx := context.Background()
	labels := c.Stages.Labels()

	cases := []struct {
		name string
		pred stubPredictor
		want string
	}{
		{"confident model wins", stubPredictor{p: Prediction{Label: "Presentation", Confidence: 0.9}}, "Presentation"},
		{"low confidence", stubPredictor{p: Prediction{Label: "Presentation", Confidence: 0.2}}, "Closing"},
		{"unknown label", stubPredictor{p: Prediction{Label: "Negotiation", Confidence: 0.99}}, "Closing"},
		{"model error", stubPredictor{err: errors.New("unavailable")}, "Closing"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mb := &ModelBacked{Predictor: tc.pred, Labels: labels, MinConfidence: 0.6, Fallback: c.Stages}
			got, err := mb.Classify(ctx, "when can we start")
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestModelBackedWithoutFallback(t *testing.T) {
	mb := &ModelBacked{Predictor: stubPredictor{err: errors.New("down")}, Labels: []string{"a"}}
	_, err := mb.Classify(context.Background(), "x")
	assert.Error(t, err)
}

func TestParseRejectsBrokenCatalog(t *testing.T) {
	_, err := Parse([]byte(`
signals:
  - name: broken
    type: Objection
    category: price
    confidence: 0.8
    patterns: ["(unclosed"]
`))
	assert.Error(t, err)

	_, err = Parse([]byte("stages: {default: Introduction}"))
	assert.Error(t, err, "profile default is required")
}

func TestMappingDefaults(t *testing.T) {
	c := mustDefault(t)

	assert.Equal(t, []string{"Credibility", "Experience", "Results"}, c.Profile.TrustFactors.Labels("nothing relevant"))
	assert.Equal(t, []string{"Social Proof", "Risk Reduction"}, c.Profile.TrustFactors.Labels("any reviews? is there a guarantee"))
}
