package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to RecordingStatus
		ok       bool
	}{
		{StatusPendingDownload, StatusDownloaded, true},
		{StatusPendingDownload, StatusTranscribing, true},
		{StatusTranscribing, StatusAnalyzed, true},
		{StatusDownloaded, StatusPendingDownload, false},
		{StatusAnalyzed, StatusTranscribing, false},
		{StatusAnalyzed, StatusAnalyzed, false},
		{StatusTranscribing, StatusFailed, true},
		{StatusAnalyzed, StatusFailed, true},
		{StatusFailed, StatusAnalyzed, false},
		{StatusFailed, StatusFailed, false},
		{StatusDownloaded, RecordingStatus("bogus"), false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.ok, tc.from.CanTransition(tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestStatusReached(t *testing.T) {
	assert.True(t, StatusTranscribing.Reached(StatusDownloaded))
	assert.True(t, StatusTranscribing.Reached(StatusTranscribing))
	assert.True(t, StatusAnalyzed.Reached(StatusTranscribing))
	assert.False(t, StatusDownloaded.Reached(StatusTranscribing))
	assert.False(t, StatusFailed.Reached(StatusDownloaded))
}

func TestDeterministicIDs(t *testing.T) {
	assert.Equal(t, AnalysisID("CA1"), AnalysisID("CA1"))
	assert.NotEqual(t, AnalysisID("CA1"), AnalysisID("CA2"))
	assert.NotEqual(t, AnalysisID("CA1"), CoachingSessionID("CA1"))
}

func TestUnhandled(t *testing.T) {
	yes := true
	assert.True(t, Insight{Type: InsightObjection}.Unhandled())
	assert.False(t, Insight{Type: InsightObjection, HandledSuccessfully: &yes}.Unhandled())
	assert.False(t, Insight{Type: InsightPainPoint}.Unhandled())
}
