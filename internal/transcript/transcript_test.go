package transcript

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"call-intel-go/internal/config"
	"call-intel-go/internal/rules"
	"call-intel-go/internal/types"
)

func newSegmenter(t *testing.T) (*Segmenter, *rules.Catalog) {
	t.Helper()
	c, err := rules.Default()
	require.NoError(t, err)
	return NewSegmenter(c, config.DefaultAnalysis()), c
}

func TestSegmentParsesAndSkips(t *testing.T) {
	s, _ := newSegmenter(t)
	raw := `[00:00:05] Agent: Hi there, thanks for taking the time today
not a transcript line
[00:00:12 - 00:00:20] Customer: Sure, happy to chat!
[bad] Nobody: ignored
[00:00:30] Agent:`

	segs := s.Segment(raw)
	require.Len(t, segs, 2)

	first := segs[0]
	assert.Equal(t, 0, first.Index)
	assert.Equal(t, "00:00:05", first.Timestamp)
	assert.Equal(t, "Agent", first.SpeakerLabel)
	assert.Equal(t, types.RoleUnknown, first.Role)
	assert.Equal(t, 8, first.WordCount)
	assert.Equal(t, 5.0, first.StartOffset)
	assert.InDelta(t, 5+8.0/150*60, first.EndOffset, 0.01)

	second := segs[1]
	assert.Equal(t, 12.0, second.StartOffset)
	assert.Equal(t, 20.0, second.EndOffset, "explicit end time wins")
	assert.Contains(t, second.Emotions, "excitement")
	assert.Contains(t, second.Emotions, "confidence")
}

func TestSegmentKeepsSourceOrder(t *testing.T) {
	s, _ := newSegmenter(t)
	segs := s.Segment("[00:01:00] A: later\n[00:00:10] B: earlier")
	require.Len(t, segs, 2)
	assert.Equal(t, "later", segs[0].Text)
	assert.Equal(t, "earlier", segs[1].Text)
}

func TestSegmentSurvivesOverlongLine(t *testing.T) {
	s, _ := newSegmenter(t)
	junk := strings.Repeat("x", 2<<20)
	raw := "[00:00:01] Agent: first line\n" + junk + "\r\n[00:00:09] Customer: second line\r\n"

	segs := s.Segment(raw)
	require.Len(t, segs, 2)
	assert.Equal(t, "second line", segs[1].Text)
	assert.Equal(t, 1, segs[1].Index)
}

func TestSegmentEmptyInput(t *testing.T) {
	s, _ := newSegmenter(t)
	segs := s.Segment("")
	assert.NotNil(t, segs)
	assert.Empty(t, segs)
}

func TestSentimentAndKeyPhrases(t *testing.T) {
	_, c := newSegmenter(t)

	assert.Equal(t, types.SentimentPositive, Sentiment(c, "This looks great, I love it"))
	assert.Equal(t, types.SentimentNegative, Sentiment(c, "That was a terrible experience"))
	assert.Equal(t, types.SentimentNeutral, Sentiment(c, "great but terrible"))

	phrases := KeyPhrases(c, "Our reporting workflow is manual, reporting takes hours because spreadsheets break constantly")
	assert.Equal(t, []string{"reporting", "workflow", "manual", "takes", "hours"}, phrases)
}

func TestRoleClassification(t *testing.T) {
	s, c := newSegmenter(t)
	rc := NewRoleClassifier(c)

	cases := []struct {
		name string
		raw  string
		want []types.Role
	}{
		{
			name: "indicator labels",
			raw:  "[00:00:01] Customer: hi\n[00:00:02] Sales Rep: hello",
			want: []types.Role{types.RoleProspect, types.RoleRep},
		},
		{
			name: "first speaker fallback",
			raw:  "[00:00:01] Dana: hi\n[00:00:02] Lee: hello\n[00:00:03] Dana: so",
			want: []types.Role{types.RoleRep, types.RoleProspect, types.RoleRep},
		},
		{
			name: "extra speakers collapse to prospect",
			raw:  "[00:00:01] Dana: hi\n[00:00:02] Lee: hello\n[00:00:03] Kim: hey",
			want: []types.Role{types.RoleRep, types.RoleProspect, types.RoleProspect},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := s.Segment(tc.raw)
			out := rc.Classify(in)
			var got []types.Role
			for _, seg := range out {
				got = append(got, seg.Role)
			}
			assert.Equal(t, tc.want, got)
			for _, seg := range in {
				assert.Equal(t, types.RoleUnknown, seg.Role, "input must stay untouched")
			}
		})
	}
}
