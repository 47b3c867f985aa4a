package processor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"call-intel-go/internal/apperrors"
	"call-intel-go/internal/coaching"
	"call-intel-go/internal/logger"
	"call-intel-go/internal/metrics"
	"call-intel-go/internal/transcription"
	"call-intel-go/internal/types"
)

// Store is the part of the Analysis Store the workflow writes to.
type Store interface {
	CreateRecording(ctx context.Context, rec types.CallRecording) (types.CallRecording, bool, error)
	AdvanceRecording(ctx context.Context, callID string, next types.RecordingStatus) error
	MarkFailed(ctx context.Context, callID, reason string) error
	LookupContext(ctx context.Context, callID string) (types.CallContext, error)
	SaveContext(ctx context.Context, cc types.CallContext) error
	CommitAnalysis(ctx context.Context, a types.CallAnalysis, repID string, session *types.CoachingSession) error
}

type Analyzer interface {
	Analyze(ctx context.Context, callID, transcript string) (types.CallAnalysis, error)
}

// Result reports what happened to one call.
type Result struct {
	CallID     string                 `json:"call_id"`
	Analysis   *types.CallAnalysis    `json:"analysis,omitempty"`
	Coaching   *types.CoachingSession `json:"coaching,omitempty"`
	Skipped    string                 `json:"skipped,omitempty"`
	DurationMs int64                  `json:"duration_ms"`
	Error      string                 `json:"error,omitempty"`
}

const (
	OutcomeAnalyzed = "analyzed"
	OutcomeFailed   = "failed"
	OutcomeSkipped  = "skipped"
)

type Processor struct {
	store       Store
	analyzer    Analyzer
	transcriber transcription.Transcriber
	trigger     *coaching.Trigger
	metrics     *metrics.Metrics
	log         *logger.Logger
	maxElapsed  time.Duration
	workers     int
}

type Option func(*Processor)

func WithMetrics(m *metrics.Metrics) Option { return func(p *Processor) { p.metrics = m } }

func WithLogger(l *logger.Logger) Option { return func(p *Processor) { p.log = l } }

// WithRetry bounds how long lookups and commits are retried.
func WithRetry(maxElapsed time.Duration) Option {
	return func(p *Processor) { p.maxElapsed = maxElapsed }
}

func WithWorkers(n int) Option { return func(p *Processor) { p.workers = n } }

func New(store Store, analyzer Analyzer, tr transcription.Transcriber, trigger *coaching.Trigger, opts ...Option) *Processor {
	p := &Processor{
		store:       store,
		analyzer:    analyzer,
		transcriber: tr,
		trigger:     trigger,
		maxElapsed:  15 * time.Second,
		workers:     4,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.log == nil {
		p.log = logger.New()
	}
	p.log = p.log.Component("processor")
	if p.workers < 1 {
		p.workers = 1
	}
	return p
}

// MediaURI is where the telephony provider serves a finished recording.
func MediaURI(accountSid, recordingSid string) string {
	return fmt.Sprintf("https://api.twilio.com/2010-04-01/Accounts/%s/Recordings/%s.mp3", accountSid, recordingSid)
}

// HandleEvent runs a "recording completed" event through intake,
// transcription, analysis, coaching and the atomic commit. Redelivered
// events for an analyzed call re-run the analysis and replace it. Events for
// a failed recording are skipped.
func (p *Processor) HandleEvent(ctx context.Context, ev types.RecordingEvent) (Result, error) {
	start := time.Now()
	res := Result{CallID: ev.CallSid}
	p.metrics.EventReceived(ev.RecordingStatus)

	if !ev.Completed() {
		res.Skipped = fmt.Sprintf("recording status %q", ev.RecordingStatus)
		p.metrics.CallProcessed(OutcomeSkipped)
		return res, nil
	}
	if ev.CallSid == "" || ev.RecordingSid == "" {
		err := apperrors.New(apperrors.ErrValidation, "processor.handle_event", "call sid and recording sid are required")
		res.Error = err.Error()
		p.metrics.CallProcessed(OutcomeFailed)
		return res, err
	}
	log := p.log.WithCall(ev.CallSid).WithField("recording_sid", ev.RecordingSid)

	rec, created, err := p.store.CreateRecording(ctx, types.CallRecording{
		CallID:      ev.CallSid,
		RecordingID: ev.RecordingSid,
		MediaURI:    MediaURI(ev.AccountSid, ev.RecordingSid),
		DurationSec: ev.RecordingSeconds,
		Status:      types.StatusPendingDownload,
	})
	if err != nil {
		return p.finish(res, start, err)
	}
	if rec.Status == types.StatusFailed {
		res.Skipped = "recording previously failed"
		p.metrics.CallProcessed(OutcomeSkipped)
		log.Info("skipping failed recording")
		return res, nil
	}
	reprocess := rec.Status == types.StatusAnalyzed
	log.WithFields(logrus.Fields{"created": created, "reprocess": reprocess}).Info("recording accepted")

	cc := p.lookupContext(ctx, log, ev.CallSid)

	if err := p.advance(ctx, rec, types.StatusDownloaded); err != nil {
		return p.finish(res, start, err)
	}
	text, err := p.transcribe(ctx, rec)
	if err != nil {
		return p.fail(ctx, log, res, start, err)
	}
	return p.analyze(ctx, log, res, start, text, cc)
}

func (p *Processor) transcribe(ctx context.Context, rec types.CallRecording) (string, error) {
	job, err := p.transcriber.Submit(ctx, rec.MediaURI)
	if err != nil {
		return "", apperrors.Wrap(apperrors.ErrTranscription, "processor.transcribe", err)
	}
	if err := p.advance(ctx, rec, types.StatusTranscribing); err != nil {
		return "", err
	}
	text, err := p.transcriber.Fetch(ctx, job)
	if err != nil {
		return "", apperrors.Wrap(apperrors.ErrTranscription, "processor.transcribe", err)
	}
	return text, nil
}

// analyze is shared by the event and batch paths once a transcript is in hand.
func (p *Processor) analyze(ctx context.Context, log *logrus.Entry, res Result, start time.Time, text string, cc types.CallContext) (Result, error) {
	a, err := p.analyzer.Analyze(ctx, res.CallID, text)
	if err != nil {
		return p.fail(ctx, log, res, start, err)
	}

	session, err := p.trigger.Evaluate(a, cc)
	switch {
	case err != nil:
		p.metrics.Coaching("error")
		log.WithField("error", err.Error()).Warn("coaching session not generated")
	case session == nil:
		p.metrics.Coaching("not_needed")
	default:
		p.metrics.Coaching("created")
	}

	if err := p.commit(ctx, log, a, cc.UserID, session); err != nil {
		return p.fail(ctx, log, res, start, err)
	}

	res.Analysis = &a
	res.Coaching = session
	res.DurationMs = time.Since(start).Milliseconds()
	p.metrics.CallProcessed(OutcomeAnalyzed)
	log.WithFields(logrus.Fields{
		"quality":     a.Quality.Overall,
		"coaching":    session != nil,
		"duration_ms": res.DurationMs,
	}).Info("call processed")
	return res, nil
}

// lookupContext retries transient store errors. A miss leaves the context empty.
func (p *Processor) lookupContext(ctx context.Context, log *logrus.Entry, callID string) types.CallContext {
	cc := types.CallContext{CallID: callID}
	op := func() error {
		got, err := p.store.LookupContext(ctx, callID)
		if errors.Is(err, apperrors.ErrNotFound) {
			return backoff.Permanent(err)
		}
		if err != nil {
			return err
		}
		cc = got
		return nil
	}
	if err := backoff.Retry(op, p.backoff(ctx)); err != nil {
		log.WithField("error", err.Error()).Info("no call context, continuing without it")
		return types.CallContext{CallID: callID}
	}
	return cc
}

// commit retries persistence failures. Validation errors are permanent.
func (p *Processor) commit(ctx context.Context, log *logrus.Entry, a types.CallAnalysis, repID string, session *types.CoachingSession) error {
	attempt := 0
	op := func() error {
		attempt++
		if attempt > 1 {
			p.metrics.StoreRetry()
		}
		err := p.store.CommitAnalysis(ctx, a, repID, session)
		if err != nil && !errors.Is(err, apperrors.ErrPersistence) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		log.WithField("error", err.Error()).WithField("retry_in", wait.String()).Warn("commit failed, retrying")
	}
	return backoff.RetryNotify(op, p.backoff(ctx), notify)
}

// advance skips the move when the recording is already at or past next, which
// happens on redelivery of an interrupted or analyzed call.
func (p *Processor) advance(ctx context.Context, rec types.CallRecording, next types.RecordingStatus) error {
	if rec.Status.Reached(next) {
		return nil
	}
	return p.store.AdvanceRecording(ctx, rec.CallID, next)
}

// fail marks the recording Failed. A cancelled or expired ctx leaves the
// status alone so a redelivered event can finish the call.
func (p *Processor) fail(ctx context.Context, log *logrus.Entry, res Result, start time.Time, cause error) (Result, error) {
	if interrupted(ctx, cause) {
		log.WithField("error", cause.Error()).Warn("call processing interrupted, left for redelivery")
		return p.finish(res, start, cause)
	}
	if err := p.store.MarkFailed(context.WithoutCancel(ctx), res.CallID, cause.Error()); err != nil {
		log.WithField("error", err.Error()).Error("could not mark recording failed")
	}
	log.WithField("error", cause.Error()).WithField("kind", fmt.Sprint(apperrors.Kind(cause))).Error("call processing failed")
	return p.finish(res, start, cause)
}

func interrupted(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func (p *Processor) finish(res Result, start time.Time, err error) (Result, error) {
	res.Error = err.Error()
	res.DurationMs = time.Since(start).Milliseconds()
	p.metrics.CallProcessed(OutcomeFailed)
	return res, err
}

func (p *Processor) backoff(ctx context.Context) backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 50 * time.Millisecond
	bo.MaxElapsedTime = p.maxElapsed
	return backoff.WithContext(bo, ctx)
}
