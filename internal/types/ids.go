package types

import "github.com/google/uuid"

var idNamespace = uuid.MustParse("6f1c2a9e-4b7d-4e2a-9c3f-1d5e8a7b2c40")

// AnalysisID is stable per call so reprocessing overwrites the same record.
func AnalysisID(callID string) string {
	return uuid.NewSHA1(idNamespace, []byte("analysis:"+callID)).String()
}

// CoachingSessionID is stable per call so redelivered events cannot create a second session.
func CoachingSessionID(callID string) string {
	return uuid.NewSHA1(idNamespace, []byte("coaching:"+callID)).String()
}

// RecordingID identifies the recording row for a call.
func RecordingID(callID string) string {
	return uuid.NewSHA1(idNamespace, []byte("recording:"+callID)).String()
}
