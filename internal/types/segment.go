package types

type Role string

const (
	RoleRep      Role = "Rep"
	RoleProspect Role = "Prospect"
	RoleUnknown  Role = "Unknown"
)

type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// TranscriptSegment is one speaker-attributed utterance. Index is its position in the source text.
type TranscriptSegment struct {
	Index        int       `json:"index"`
	Timestamp    string    `json:"timestamp"`
	SpeakerLabel string    `json:"speaker_label"`
	Role         Role      `json:"role"`
	Text         string    `json:"text"`
	StartOffset  float64   `json:"start_offset"`
	EndOffset    float64   `json:"end_offset"`
	WordCount    int       `json:"word_count"`
	Sentiment    Sentiment `json:"sentiment"`
	Emotions     []string  `json:"emotions"`
	KeyPhrases   []string  `json:"key_phrases"`
}

func (s TranscriptSegment) Duration() float64 {
	if s.EndOffset < s.StartOffset {
		return 0
	}
	return s.EndOffset - s.StartOffset
}
