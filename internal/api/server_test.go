package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"call-intel-go/internal/apperrors"
	"call-intel-go/internal/logger"
	"call-intel-go/internal/metrics"
	"call-intel-go/internal/processor"
	"call-intel-go/internal/types"
)

type fakeReader struct {
	analyses map[string]types.CallAnalysis
	byRep    map[string][]types.CallAnalysis
	sessions []types.CoachingSession
	contexts map[string]types.CallContext
}

func (f *fakeReader) GetAnalysis(_ context.Context, callID string) (types.CallAnalysis, error) {
	a, ok := f.analyses[callID]
	if !ok {
		return types.CallAnalysis{}, apperrors.Wrap(apperrors.ErrLookup, "test", apperrors.ErrNotFound)
	}
	return a, nil
}

func (f *fakeReader) ListAnalysesByRep(_ context.Context, repID string, _ int) ([]types.CallAnalysis, error) {
	return f.byRep[repID], nil
}

func (f *fakeReader) ListCoachingSessions(context.Context, string, int) ([]types.CoachingSession, error) {
	return f.sessions, nil
}

func (f *fakeReader) SaveContext(_ context.Context, cc types.CallContext) error {
	if f.contexts == nil {
		f.contexts = map[string]types.CallContext{}
	}
	f.contexts[cc.CallID] = cc
	return nil
}

type fakeEvents struct {
	got types.RecordingEvent
	err error
}

func (f *fakeEvents) HandleEvent(_ context.Context, ev types.RecordingEvent) (processor.Result, error) {
	f.got = ev
	return processor.Result{CallID: ev.CallSid}, f.err
}

func newTestServer(t *testing.T, ev EventHandler) (*httptest.Server, *fakeReader) {
	t.Helper()
	reader := &fakeReader{
		analyses: map[string]types.CallAnalysis{"CA1": {CallID: "CA1", Sales: types.SalesInsights{WinProbability: 65}}},
		byRep: map[string][]types.CallAnalysis{"rep-7": {
			{CallID: "CA1", Quality: types.QualityScore{Overall: 50}, Insights: []types.Insight{{Category: "price"}}},
			{CallID: "CA2", Quality: types.QualityScore{Overall: 70}, Insights: []types.Insight{{Category: "price"}, {Category: "timing"}}},
		}},
		sessions: []types.CoachingSession{{ID: "s1", RepID: "rep-7"}},
	}
	reg := prometheus.NewRegistry()
	metrics.New(reg)
	srv := httptest.NewServer(NewServer(reader, ev, reg, logger.Discard()).Handler())
	t.Cleanup(srv.Close)
	return srv, reader
}

func TestGetAnalysis(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	resp, err := http.Get(srv.URL + "/analyses/CA1")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var a types.CallAnalysis
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&a))
	assert.Equal(t, 65, a.Sales.WinProbability)

	missing, err := http.Get(srv.URL + "/analyses/nope")
	require.NoError(t, err)
	defer missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
}

func TestRepSummary(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	resp, err := http.Get(srv.URL + "/reps/rep-7/summary?limit=1")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var sum types.RepSummary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&sum))
	assert.Equal(t, 2, sum.TotalCalls)
	assert.Equal(t, 60.0, sum.AverageQuality)
	assert.Equal(t, []types.Count{{Label: "price", Count: 2}}, sum.TopTopics)
}

func TestRepCoachingAndHealth(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	resp, err := http.Get(srv.URL + "/reps/rep-7/coaching")
	require.NoError(t, err)
	defer resp.Body.Close()
	var sessions []types.CoachingSession
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&sessions))
	assert.Len(t, sessions, 1)

	health, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer health.Body.Close()
	assert.Equal(t, http.StatusOK, health.StatusCode)

	m, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer m.Body.Close()
	assert.Equal(t, http.StatusOK, m.StatusCode)
}

func TestWebhookRouteOnlyWithHandler(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	resp, err := http.Post(srv.URL+"/events/recording-completed", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRecordingCompletedForm(t *testing.T) {
	ev := &fakeEvents{}
	srv, _ := newTestServer(t, ev)

	form := url.Values{
		"CallSid":           {"CA9"},
		"RecordingSid":      {"RE9"},
		"AccountSid":        {"AC9"},
		"RecordingStatus":   {"completed"},
		"RecordingDuration": {"31"},
	}
	resp, err := http.PostForm(srv.URL+"/events/recording-completed", form)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, types.RecordingEvent{CallSid: "CA9", RecordingSid: "RE9", AccountSid: "AC9", RecordingStatus: "completed", RecordingSeconds: 31}, ev.got)
}

func TestRecordingCompletedJSONErrors(t *testing.T) {
	ev := &fakeEvents{err: apperrors.New(apperrors.ErrValidation, "test", "bad ids")}
	srv, _ := newTestServer(t, ev)

	resp, err := http.Post(srv.URL+"/events/recording-completed", "application/json", strings.NewReader(`{"callSid":"CA1","recordingStatus":"completed"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "CA1", ev.got.CallSid)

	bad, err := http.Post(srv.URL+"/events/recording-completed", "application/json", strings.NewReader(`{`))
	require.NoError(t, err)
	defer bad.Body.Close()
	assert.Equal(t, http.StatusBadRequest, bad.StatusCode)
}

func TestPutContext(t *testing.T) {
	srv, reader := newTestServer(t, nil)

	req, err := http.NewRequest(http.MethodPut, srv.URL+"/calls/CA9/context", strings.NewReader(`{"user_id":"rep-7","contact_id":"c-1","call_id":"ignored"}`))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, types.CallContext{CallID: "CA9", UserID: "rep-7", ContactID: "c-1"}, reader.contexts["CA9"])

	req, err = http.NewRequest(http.MethodPut, srv.URL+"/calls/CA9/context", strings.NewReader(`{not json`))
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
