package pipeline

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"call-intel-go/internal/actionable"
	"call-intel-go/internal/apperrors"
	"call-intel-go/internal/config"
	"call-intel-go/internal/dynamics"
	"call-intel-go/internal/extractor"
	"call-intel-go/internal/insights"
	"call-intel-go/internal/logger"
	"call-intel-go/internal/metrics"
	"call-intel-go/internal/power"
	"call-intel-go/internal/profile"
	"call-intel-go/internal/quality"
	"call-intel-go/internal/rules"
	"call-intel-go/internal/transcript"
	"call-intel-go/internal/types"
)

const (
	StageSegment  = "segment"
	StageExtract  = "extract"
	StageProfile  = "profile"
	StageDynamics = "dynamics"
	StagePower    = "power"
	StageSynth    = "synthesize"
	StageQuality  = "quality"
)

type extractStage interface {
	Extract(segs []types.TranscriptSegment) extractor.Result
}

type profileStage interface {
	Profile(ctx context.Context, segs []types.TranscriptSegment) (types.PsychologicalProfile, error)
	Default() types.PsychologicalProfile
}

type dynamicsStage interface {
	Analyze(segs []types.TranscriptSegment) types.ConversationDynamics
}

type powerStage interface {
	Analyze(segs []types.TranscriptSegment) types.PowerAnalysis
}

// Analyzer runs the full analysis for one call. It holds no per-call state,
// so one Analyzer can serve many calls concurrently.
type Analyzer struct {
	segmenter *transcript.Segmenter
	roles     *transcript.RoleClassifier
	extract   extractStage
	profiler  profileStage
	dynamics  dynamicsStage
	power     powerStage
	synth     *insights.Synthesizer
	quality   *quality.Scorer
	cfg       config.Analysis
	metrics   *metrics.Metrics
	log       *logger.Logger
}

type Option func(*analyzerOptions)

type analyzerOptions struct {
	metrics       *metrics.Metrics
	log           *logger.Logger
	stage         rules.TextClassifier
	decision      rules.TextClassifier
	communication rules.TextClassifier
}

func WithMetrics(m *metrics.Metrics) Option { return func(o *analyzerOptions) { o.metrics = m } }

func WithLogger(l *logger.Logger) Option { return func(o *analyzerOptions) { o.log = l } }

// WithStageClassifier swaps the call-stage cascade, for example for a ModelBacked classifier.
func WithStageClassifier(c rules.TextClassifier) Option {
	return func(o *analyzerOptions) { o.stage = c }
}

func WithProfileClassifiers(decision, communication rules.TextClassifier) Option {
	return func(o *analyzerOptions) { o.decision, o.communication = decision, communication }
}

func New(c *rules.Catalog, cfg config.Analysis, opts ...Option) *Analyzer {
	o := analyzerOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = logger.New()
	}
	var profOpts []profile.Option
	if o.decision != nil {
		profOpts = append(profOpts, profile.WithDecisionClassifier(o.decision))
	}
	if o.communication != nil {
		profOpts = append(profOpts, profile.WithCommunicationClassifier(o.communication))
	}
	return &Analyzer{
		segmenter: transcript.NewSegmenter(c, cfg),
		roles:     transcript.NewRoleClassifier(c),
		extract:   extractor.New(c, cfg),
		profiler:  profile.New(c, profOpts...),
		dynamics:  dynamics.New(c, cfg),
		power:     power.New(c, cfg),
		synth:     insights.New(c, o.stage),
		quality:   quality.New(c, cfg),
		cfg:       cfg,
		metrics:   o.metrics,
		log:       o.log.Component("pipeline"),
	}
}

// Analyze segments the transcript, runs extraction, profiling, dynamics and
// power analysis concurrently, then synthesizes and scores the call.
// A failure inside one of the concurrent stages is replaced by that stage's
// default. Failures in synthesis or scoring abort with ErrAnalysis.
func (a *Analyzer) Analyze(ctx context.Context, callID, raw string) (types.CallAnalysis, error) {
	if strings.TrimSpace(callID) == "" {
		return types.CallAnalysis{}, apperrors.New(apperrors.ErrValidation, "pipeline.analyze", "call id is required")
	}
	log := a.log.WithCall(callID)

	start := time.Now()
	segs := a.roles.Classify(a.segmenter.Segment(raw))
	a.metrics.ObserveStage(StageSegment, time.Since(start))

	var (
		wg   sync.WaitGroup
		ex   extractor.Result
		prof types.PsychologicalProfile
		dyn  types.ConversationDynamics
		pow  types.PowerAnalysis
	)
	wg.Add(4)
	go func() {
		defer wg.Done()
		ex = runStage(a, log, StageExtract, extractor.Result{Insights: []types.Insight{}, Competitors: []types.CompetitorMention{}}, func() (extractor.Result, error) {
			return a.extract.Extract(segs), nil
		})
	}()
	go func() {
		defer wg.Done()
		prof = runStage(a, log, StageProfile, a.profiler.Default(), func() (types.PsychologicalProfile, error) {
			return a.profiler.Profile(ctx, segs)
		})
	}()
	go func() {
		defer wg.Done()
		dyn = runStage(a, log, StageDynamics, defaultDynamics(), func() (types.ConversationDynamics, error) {
			return a.dynamics.Analyze(segs), nil
		})
	}()
	go func() {
		defer wg.Done()
		pow = runStage(a, log, StagePower, defaultPower(), func() (types.PowerAnalysis, error) {
			return a.power.Analyze(segs), nil
		})
	}()
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return types.CallAnalysis{}, apperrors.Wrap(apperrors.ErrAnalysis, "pipeline.analyze", err)
	}

	sales, err := critical(a, StageSynth, func() (types.SalesInsights, error) {
		return a.synth.Synthesize(ctx, segs, ex, prof)
	})
	if err != nil {
		return types.CallAnalysis{}, err
	}
	q, err := critical(a, StageQuality, func() (types.QualityScore, error) {
		return a.quality.Score(segs, sales), nil
	})
	if err != nil {
		return types.CallAnalysis{}, err
	}
	sales.RecommendedFollowUp.KeyPoints = actionable.KeyPoints(sales, q, a.cfg.ImprovementThreshold)

	analysis := types.CallAnalysis{
		ID:                    types.AnalysisID(callID),
		CallID:                callID,
		Transcript:            segs,
		OverallSentiment:      OverallSentiment(segs),
		ConfidenceScore:       ConfidenceScore(segs),
		Insights:              ex.Insights,
		Profile:               prof,
		Dynamics:              dyn,
		Power:                 pow,
		Sales:                 sales,
		Quality:               q,
		KeyMoments:            insights.KeyMoments(ex.Insights, pow, a.cfg.KeyMomentMinImpact, a.cfg.MaxKeyMoments),
		CoachingOpportunities: a.quality.Opportunities(dyn, q),
	}

	log.WithFields(logrus.Fields{
		"segments":        len(segs),
		"insights":        len(ex.Insights),
		"call_stage":      sales.CallStage,
		"win_probability": sales.WinProbability,
		"quality":         q.Overall,
		"duration_ms":     time.Since(start).Milliseconds(),
	}).Info("call analyzed")
	return analysis, nil
}

// runStage executes a non-critical stage, substituting fallback on error or panic.
func runStage[T any](a *Analyzer, log *logrus.Entry, name string, fallback T, fn func() (T, error)) (out T) {
	start := time.Now()
	defer func() {
		a.metrics.ObserveStage(name, time.Since(start))
		if r := recover(); r != nil {
			log.WithField("stage", name).WithField("panic", fmt.Sprint(r)).Error("analysis stage panicked, using default")
			a.metrics.StageFallback(name)
			out = fallback
		}
	}()
	v, err := fn()
	if err != nil {
		log.WithField("stage", name).WithField("error", err.Error()).Warn("analysis stage failed, using default")
		a.metrics.StageFallback(name)
		return fallback
	}
	return v
}

// critical executes a stage whose failure aborts the analysis.
func critical[T any](a *Analyzer, name string, fn func() (T, error)) (out T, err error) {
	start := time.Now()
	defer func() {
		a.metrics.ObserveStage(name, time.Since(start))
		if r := recover(); r != nil {
			err = apperrors.New(apperrors.ErrAnalysis, "pipeline."+name, "panic: %v", r)
		}
	}()
	out, err = fn()
	if err != nil {
		return out, apperrors.Wrap(apperrors.ErrAnalysis, "pipeline."+name, err)
	}
	return out, nil
}

func defaultDynamics() types.ConversationDynamics {
	return types.ConversationDynamics{
		TalkTimeRatio:  types.TalkTimeRatio{Rep: 50, Prospect: 50},
		SilenceMoments: []types.SilenceMoment{},
		EmotionalFlow:  []types.EmotionSample{},
	}
}

func defaultPower() types.PowerAnalysis {
	return types.PowerAnalysis{
		OverallDynamic: types.DynamicBalanced,
		ControlMoments: []types.ControlMoment{},
	}
}

// OverallSentiment is the majority of positive versus negative segments.
func OverallSentiment(segs []types.TranscriptSegment) types.Sentiment {
	var pos, neg int
	for _, s := range segs {
		switch s.Sentiment {
		case types.SentimentPositive:
			pos++
		case types.SentimentNegative:
			neg++
		}
	}
	switch {
	case pos > neg:
		return types.SentimentPositive
	case neg > pos:
		return types.SentimentNegative
	default:
		return types.SentimentNeutral
	}
}

// ConfidenceScore grows with transcript length and with the share of
// segments that carried key phrases. It is 0 for an empty transcript and
// never exceeds 1.
func ConfidenceScore(segs []types.TranscriptSegment) float64 {
	if len(segs) == 0 {
		return 0
	}
	keyed := 0
	for _, s := range segs {
		if len(s.KeyPhrases) > 0 {
			keyed++
		}
	}
	raw := float64(len(segs))*2 + float64(keyed)/float64(len(segs))*20
	return math.Round(math.Min(100, raw)) / 100
}
