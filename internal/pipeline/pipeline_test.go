package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"call-intel-go/internal/apperrors"
	"call-intel-go/internal/config"
	"call-intel-go/internal/logger"
	"call-intel-go/internal/metrics"
	"call-intel-go/internal/rules"
	"call-intel-go/internal/types"
)

const sampleCall = `[00:00:00] Agent: Hi Dana, thanks for joining. What are the biggest challenges with scheduling today?
[00:00:08] Customer: Honestly we are struggling with double bookings and a manual process for reminders.
[00:00:20] Agent: I understand. Many of our clients saw fewer no-shows in the first month.
[00:00:30] Customer: It sounds good but it seems too expensive for a practice our size.
[00:00:38] Agent: That's fair. Let me explain the return on investment for a practice like yours.
[00:00:50] Customer: We already have Salesforce for some of this. How much does it cost per seat?
[00:01:00] Agent: Our plans start at forty dollars per seat. When can we schedule a demo with your team?`

func newAnalyzer(t *testing.T, opts ...Option) *Analyzer {
	t.Helper()
	c, err := rules.Default()
	require.NoError(t, err)
	opts = append([]Option{WithLogger(logger.Discard())}, opts...)
	return New(c, config.DefaultAnalysis(), opts...)
}

func TestAnalyzeIsDeterministic(t *testing.T) {
	a := newAnalyzer(t)

	first, err := a.Analyze(context.Background(), "call-1", sampleCall)
	require.NoError(t, err)
	second, err := a.Analyze(context.Background(), "call-1", sampleCall)
	require.NoError(t, err)

	b1, err := json.Marshal(first)
	require.NoError(t, err)
	b2, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, string(b1), string(b2))
	assert.Equal(t, types.AnalysisID("call-1"), first.ID)
}

func TestAnalyzeSampleCall(t *testing.T) {
	a := newAnalyzer(t)
	got, err := a.Analyze(context.Background(), "call-1", sampleCall)
	require.NoError(t, err)

	require.Len(t, got.Transcript, 7)
	assert.Equal(t, types.RoleRep, got.Transcript[0].Role)
	assert.Equal(t, types.RoleProspect, got.Transcript[1].Role)

	ratio := got.Dynamics.TalkTimeRatio
	assert.Equal(t, 100, ratio.Rep+ratio.Prospect)

	assert.NotEmpty(t, got.Sales.Objections)
	assert.NotEmpty(t, got.Sales.BuyingSignals)
	require.NotEmpty(t, got.Sales.CompetitorMentions)
	assert.Equal(t, "Salesforce", got.Sales.CompetitorMentions[0].CompetitorName)
	assert.NotEmpty(t, got.Sales.NextBestActions)
	assert.NotEmpty(t, got.Sales.RecommendedFollowUp.KeyPoints)

	assert.GreaterOrEqual(t, got.Sales.WinProbability, 0)
	assert.LessOrEqual(t, got.Sales.WinProbability, 100)
	assert.GreaterOrEqual(t, got.ConfidenceScore, 0.0)
	assert.LessOrEqual(t, got.ConfidenceScore, 1.0)
	for _, v := range []float64{got.Quality.Rapport, got.Quality.Discovery, got.Quality.Presentation, got.Quality.ObjectionHandling, got.Quality.Closing, got.Quality.Overall} {
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 100.0)
	}
	for _, km := range got.KeyMoments {
		assert.GreaterOrEqual(t, km.Impact, config.DefaultAnalysis().KeyMomentMinImpact)
	}
}

func TestAnalyzeEmptyTranscript(t *testing.T) {
	a := newAnalyzer(t)
	got, err := a.Analyze(context.Background(), "call-empty", "no bracketed lines here")
	require.NoError(t, err)

	assert.Empty(t, got.Transcript)
	assert.Empty(t, got.Insights)
	assert.Equal(t, types.SentimentNeutral, got.OverallSentiment)
	assert.Equal(t, 0.0, got.ConfidenceScore)
	assert.Equal(t, 100, got.Dynamics.TalkTimeRatio.Rep+got.Dynamics.TalkTimeRatio.Prospect)
	assert.Empty(t, got.Sales.Objections)
}

func TestAnalyzeRequiresCallID(t *testing.T) {
	a := newAnalyzer(t)
	_, err := a.Analyze(context.Background(), " ", sampleCall)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrValidation))
}

func TestAnalyzeCancelled(t *testing.T) {
	a := newAnalyzer(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := a.Analyze(ctx, "call-1", sampleCall)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrAnalysis))
}

type panickingPower struct{}

func (panickingPower) Analyze([]types.TranscriptSegment) types.PowerAnalysis { panic("boom") }

type failingProfiler struct{ profileStage }

func (failingProfiler) Profile(context.Context, []types.TranscriptSegment) (types.PsychologicalProfile, error) {
	return types.PsychologicalProfile{}, errors.New("model unavailable")
}

func TestAnalyzeSubstitutesStageDefaults(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	a := newAnalyzer(t, WithMetrics(m))
	a.power = panickingPower{}
	a.profiler = failingProfiler{a.profiler}

	got, err := a.Analyze(context.Background(), "call-1", sampleCall)
	require.NoError(t, err)

	assert.Equal(t, types.DynamicBalanced, got.Power.OverallDynamic)
	assert.Empty(t, got.Power.ControlMoments)
	assert.Equal(t, a.profiler.Default(), got.Profile)
	assert.NotEmpty(t, got.Sales.Objections, "other stages still ran")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.StageFallbacks.WithLabelValues(StagePower)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StageFallbacks.WithLabelValues(StageProfile)))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.StageFallbacks.WithLabelValues(StageExtract)))
}

func TestOverallSentiment(t *testing.T) {
	seg := func(s types.Sentiment) types.TranscriptSegment { return types.TranscriptSegment{Sentiment: s} }
	assert.Equal(t, types.SentimentPositive, OverallSentiment([]types.TranscriptSegment{seg(types.SentimentPositive), seg(types.SentimentNeutral)}))
	assert.Equal(t, types.SentimentNegative, OverallSentiment([]types.TranscriptSegment{seg(types.SentimentNegative)}))
	assert.Equal(t, types.SentimentNeutral, OverallSentiment([]types.TranscriptSegment{seg(types.SentimentPositive), seg(types.SentimentNegative)}))
	assert.Equal(t, types.SentimentNeutral, OverallSentiment(nil))
}

func TestConfidenceScore(t *testing.T) {
	assert.Equal(t, 0.0, ConfidenceScore(nil))

	segs := make([]types.TranscriptSegment, 10)
	assert.Equal(t, 0.2, ConfidenceScore(segs))

	segs[0].KeyPhrases = []string{"schedule"}
	assert.Equal(t, 0.22, ConfidenceScore(segs))

	assert.Equal(t, 1.0, ConfidenceScore(make([]types.TranscriptSegment, 80)))
}
