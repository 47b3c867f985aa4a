package types

// RecordingStatus tracks a call recording through intake, transcription and analysis.
type RecordingStatus string

const (
	StatusPendingDownload RecordingStatus = "pending_download"
	StatusDownloaded      RecordingStatus = "downloaded"
	StatusTranscribing    RecordingStatus = "transcribing"
	StatusAnalyzed        RecordingStatus = "analyzed"
	StatusFailed          RecordingStatus = "failed"
)

var statusRank = map[RecordingStatus]int{
	StatusPendingDownload: 1,
	StatusDownloaded:      2,
	StatusTranscribing:    3,
	StatusAnalyzed:        4,
}

// Valid reports whether s is a known status.
func (s RecordingStatus) Valid() bool {
	_, ok := statusRank[s]
	return ok || s == StatusFailed
}

// CanTransition reports whether moving from s to next is allowed.
// Transitions only move forward and Failed can be reached from anywhere but never left.
func (s RecordingStatus) CanTransition(next RecordingStatus) bool {
	if s == StatusFailed || !next.Valid() {
		return false
	}
	if next == StatusFailed {
		return true
	}
	return statusRank[next] > statusRank[s]
}

// Reached reports whether s is already at or past next in the forward order.
func (s RecordingStatus) Reached(next RecordingStatus) bool {
	r, ok := statusRank[s]
	return ok && r >= statusRank[next]
}

type CallRecording struct {
	ID          string          `json:"id"`
	CallID      string          `json:"call_id"`
	RecordingID string          `json:"recording_id,omitempty"`
	MediaURI    string          `json:"media_uri"`
	DurationSec int             `json:"duration_sec"`
	Status      RecordingStatus `json:"status"`
	Error       string          `json:"error,omitempty"`
}

// CallContext is what the CRM knows about a call. Empty fields mean unknown.
type CallContext struct {
	CallID     string `json:"call_id"`
	ContactID  string `json:"contact_id,omitempty"`
	PracticeID string `json:"practice_id,omitempty"`
	UserID     string `json:"user_id,omitempty"`
}

// RecordingEvent is the inbound "recording completed" notification.
type RecordingEvent struct {
	CallSid          string `json:"call_sid"`
	RecordingSid     string `json:"recording_sid"`
	AccountSid       string `json:"account_sid"`
	RecordingStatus  string `json:"recording_status"`
	RecordingSeconds int    `json:"recording_duration_seconds"`
}

// Completed reports whether the event should trigger processing.
func (e RecordingEvent) Completed() bool {
	return e.RecordingStatus == "completed"
}

// CallRecord is one row of an offline batch: a call with its transcript already attached.
type CallRecord struct {
	CallID     string `json:"call_id"`
	RepID      string `json:"rep_id,omitempty"`
	AudioURL   string `json:"audio_url,omitempty"`
	Transcript string `json:"transcript,omitempty"`
}
