package processor

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"call-intel-go/internal/apperrors"
	"call-intel-go/internal/coaching"
	"call-intel-go/internal/config"
	"call-intel-go/internal/logger"
	"call-intel-go/internal/metrics"
	"call-intel-go/internal/pipeline"
	"call-intel-go/internal/rules"
	"call-intel-go/internal/storage"
	"call-intel-go/internal/transcription"
	"call-intel-go/internal/types"
)

const transcript = `[00:00:00] Agent: Thanks for taking the call. What is the biggest problem with your scheduling today?
[00:00:07] Customer: We are struggling with no-shows and it feels too expensive to fix.
[00:00:15] Agent: I understand. Many of our clients cut no-shows in half within a month.`

type fixture struct {
	store   *storage.Store
	metrics *metrics.Metrics
	proc    *Processor
}

func newFixture(t *testing.T, tr transcription.Transcriber, threshold float64, wrap func(*storage.Store) Store) fixture {
	t.Helper()
	s, err := storage.Open(context.Background(), storage.DriverSQLite, filepath.Join(t.TempDir(), "calls.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	c, err := rules.Default()
	require.NoError(t, err)
	m := metrics.New(prometheus.NewRegistry())
	an := pipeline.New(c, config.DefaultAnalysis(), pipeline.WithLogger(logger.Discard()), pipeline.WithMetrics(m))

	var store Store = s
	if wrap != nil {
		store = wrap(s)
	}
	p := New(store, an, tr, coaching.NewTrigger(threshold),
		WithLogger(logger.Discard()),
		WithMetrics(m),
		WithRetry(500*time.Millisecond),
		WithWorkers(2),
	)
	return fixture{store: s, metrics: m, proc: p}
}

func event(callSid string) types.RecordingEvent {
	return types.RecordingEvent{CallSid: callSid, RecordingSid: "RE" + callSid, AccountSid: "AC1", RecordingStatus: "completed", RecordingSeconds: 30}
}

func TestHandleEventIgnoresIncompleteRecordings(t *testing.T) {
	f := newFixture(t, transcription.StaticTranscriber{Text: transcript}, 70, nil)
	ev := event("CA1")
	ev.RecordingStatus = "in-progress"

	res, err := f.proc.HandleEvent(context.Background(), ev)
	require.NoError(t, err)
	assert.NotEmpty(t, res.Skipped)
	_, err = f.store.GetRecording(context.Background(), "CA1")
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestHandleEventRejectsMissingIDs(t *testing.T) {
	f := newFixture(t, transcription.StaticTranscriber{Text: transcript}, 70, nil)
	ev := event("")
	_, err := f.proc.HandleEvent(context.Background(), ev)
	assert.True(t, errors.Is(err, apperrors.ErrValidation))
}

func TestHandleEventEndToEnd(t *testing.T) {
	f := newFixture(t, transcription.StaticTranscriber{Text: transcript}, 101, nil)
	ctx := context.Background()
	require.NoError(t, f.store.SaveContext(ctx, types.CallContext{CallID: "CA1", UserID: "rep-7"}))

	res, err := f.proc.HandleEvent(ctx, event("CA1"))
	require.NoError(t, err)
	require.NotNil(t, res.Analysis)
	require.NotNil(t, res.Coaching)
	assert.Equal(t, "rep-7", res.Coaching.RepID)

	rec, err := f.store.GetRecording(ctx, "CA1")
	require.NoError(t, err)
	assert.Equal(t, types.StatusAnalyzed, rec.Status)
	assert.Equal(t, MediaURI("AC1", "RECA1"), rec.MediaURI)

	got, err := f.store.GetAnalysis(ctx, "CA1")
	require.NoError(t, err)
	assert.Equal(t, res.Analysis.ID, got.ID)

	list, err := f.store.ListAnalysesByRep(ctx, "rep-7", 10)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestHandleEventRedeliveryReplaces(t *testing.T) {
	f := newFixture(t, transcription.StaticTranscriber{Text: transcript}, 101, nil)
	ctx := context.Background()
	require.NoError(t, f.store.SaveContext(ctx, types.CallContext{CallID: "CA1", UserID: "rep-7"}))

	_, err := f.proc.HandleEvent(ctx, event("CA1"))
	require.NoError(t, err)
	_, err = f.proc.HandleEvent(ctx, event("CA1"))
	require.NoError(t, err)

	n, err := f.store.CountAnalyses(ctx, "CA1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	sessions, err := f.store.ListCoachingSessions(ctx, "rep-7", 10)
	require.NoError(t, err)
	assert.Len(t, sessions, 1)
}

func TestHandleEventCoachingFailureIsNotFatal(t *testing.T) {
	f := newFixture(t, transcription.StaticTranscriber{Text: transcript}, 101, nil)
	res, err := f.proc.HandleEvent(context.Background(), event("CA1"))
	require.NoError(t, err, "no context means no rep, which only skips coaching")
	assert.Nil(t, res.Coaching)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.CoachingSessions.WithLabelValues("error")))

	_, err = f.store.GetAnalysis(context.Background(), "CA1")
	require.NoError(t, err)
}

type failingTranscriber struct{ transcription.StaticTranscriber }

func (failingTranscriber) Fetch(context.Context, transcription.Job) (string, error) {
	return "", errors.New("provider unavailable")
}

func TestHandleEventTranscriptionFailureMarksFailed(t *testing.T) {
	f := newFixture(t, failingTranscriber{}, 70, nil)
	ctx := context.Background()

	_, err := f.proc.HandleEvent(ctx, event("CA1"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrTranscription))

	rec, err := f.store.GetRecording(ctx, "CA1")
	require.NoError(t, err)
	assert.Equal(t, types.StatusFailed, rec.Status)
	assert.Contains(t, rec.Error, "provider unavailable")

	res, err := f.proc.HandleEvent(ctx, event("CA1"))
	require.NoError(t, err)
	assert.Equal(t, "recording previously failed", res.Skipped)
	_, err = f.store.GetAnalysis(ctx, "CA1")
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

// stallingTranscriber blocks Fetch until ctx ends while stall is set.
type stallingTranscriber struct {
	transcription.StaticTranscriber
	stall *atomic.Bool
}

func (s stallingTranscriber) Fetch(ctx context.Context, job transcription.Job) (string, error) {
	if s.stall.Load() {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return s.StaticTranscriber.Fetch(ctx, job)
}

func TestHandleEventCancellationLeavesRecordingForRedelivery(t *testing.T) {
	stall := &atomic.Bool{}
	stall.Store(true)
	f := newFixture(t, stallingTranscriber{StaticTranscriber: transcription.StaticTranscriber{Text: transcript}, stall: stall}, 101, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := f.proc.HandleEvent(ctx, event("CA1"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	rec, err := f.store.GetRecording(context.Background(), "CA1")
	require.NoError(t, err)
	assert.Equal(t, types.StatusTranscribing, rec.Status)

	stall.Store(false)
	res, err := f.proc.HandleEvent(context.Background(), event("CA1"))
	require.NoError(t, err)
	assert.Empty(t, res.Skipped)
	require.NotNil(t, res.Analysis)

	rec, err = f.store.GetRecording(context.Background(), "CA1")
	require.NoError(t, err)
	assert.Equal(t, types.StatusAnalyzed, rec.Status)
}

type flakyStore struct {
	*storage.Store
	failures int32
}

func (f *flakyStore) CommitAnalysis(ctx context.Context, a types.CallAnalysis, repID string, s *types.CoachingSession) error {
	if atomic.AddInt32(&f.failures, -1) >= 0 {
		return apperrors.Wrap(apperrors.ErrPersistence, "test", errors.New("database is locked"))
	}
	return f.Store.CommitAnalysis(ctx, a, repID, s)
}

func TestHandleEventRetriesCommit(t *testing.T) {
	f := newFixture(t, transcription.StaticTranscriber{Text: transcript}, 70, func(s *storage.Store) Store {
		return &flakyStore{Store: s, failures: 1}
	})
	_, err := f.proc.HandleEvent(context.Background(), event("CA1"))
	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.StoreRetries))

	rec, err := f.store.GetRecording(context.Background(), "CA1")
	require.NoError(t, err)
	assert.Equal(t, types.StatusAnalyzed, rec.Status)
}

func TestHandleEventPersistenceFailureMarksFailed(t *testing.T) {
	f := newFixture(t, transcription.StaticTranscriber{Text: transcript}, 70, func(s *storage.Store) Store {
		return &flakyStore{Store: s, failures: 1 << 20}
	})
	_, err := f.proc.HandleEvent(context.Background(), event("CA1"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrPersistence))

	rec, err := f.store.GetRecording(context.Background(), "CA1")
	require.NoError(t, err)
	assert.Equal(t, types.StatusFailed, rec.Status)
}

func TestProcessBatch(t *testing.T) {
	f := newFixture(t, transcription.StaticTranscriber{Text: transcript}, 101, nil)
	records := []types.CallRecord{
		{CallID: "B1", RepID: "rep-1", Transcript: transcript},
		{CallID: "", Transcript: transcript},
		{CallID: "B3", RepID: "rep-1", AudioURL: "https://media/B3.mp3"},
		{CallID: "B4"},
	}

	results, err := f.proc.ProcessBatch(context.Background(), records)
	require.NoError(t, err)
	require.Len(t, results, 4)

	assert.Equal(t, "B1", results[0].CallID)
	assert.Empty(t, results[0].Error)
	require.NotNil(t, results[0].Coaching)
	assert.Equal(t, "rep-1", results[0].Coaching.RepID)

	assert.NotEmpty(t, results[1].Error)
	assert.Empty(t, results[2].Error, "audio-only records are transcribed")
	assert.NotEmpty(t, results[3].Error)

	list, err := f.store.ListAnalysesByRep(context.Background(), "rep-1", 10)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	cc, err := f.store.LookupContext(context.Background(), "B1")
	require.NoError(t, err)
	assert.Equal(t, "rep-1", cc.UserID, "dataset rep is kept as call context")
}

func TestMediaURI(t *testing.T) {
	assert.Equal(t, "https://api.twilio.com/2010-04-01/Accounts/AC9/Recordings/RE9.mp3", MediaURI("AC9", "RE9"))
}
