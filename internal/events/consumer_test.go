package events

import (
	"context"
	"errors"
	"testing"

	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"call-intel-go/internal/apperrors"
	"call-intel-go/internal/logger"
	"call-intel-go/internal/types"
)

type recordingAck struct {
	acked   bool
	nacked  bool
	requeue bool
}

func (r *recordingAck) Ack(uint64, bool) error { r.acked = true; return nil }

func (r *recordingAck) Nack(_ uint64, _ bool, requeue bool) error {
	r.nacked, r.requeue = true, requeue
	return nil
}

func (r *recordingAck) Reject(_ uint64, requeue bool) error {
	r.nacked, r.requeue = true, requeue
	return nil
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name string
		body string
		want types.RecordingEvent
	}{
		{
			name: "camel case with numeric duration",
			body: `{"callSid":"CA1","recordingSid":"RE1","accountSid":"AC1","recordingStatus":"completed","recordingDurationSeconds":42}`,
			want: types.RecordingEvent{CallSid: "CA1", RecordingSid: "RE1", AccountSid: "AC1", RecordingStatus: "completed", RecordingSeconds: 42},
		},
		{
			name: "provider casing with string duration",
			body: `{"CallSid":"CA2","RecordingSid":"RE2","AccountSid":"AC1","RecordingStatus":"Completed","RecordingDuration":"17"}`,
			want: types.RecordingEvent{CallSid: "CA2", RecordingSid: "RE2", AccountSid: "AC1", RecordingStatus: "completed", RecordingSeconds: 17},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode([]byte(tt.body))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeRejectsBadInput(t *testing.T) {
	for _, body := range []string{`not json`, `{"recordingSid":"RE1"}`, `{"callSid":"CA1","recordingDuration":"abc"}`} {
		_, err := Decode([]byte(body))
		assert.True(t, errors.Is(err, apperrors.ErrValidation), body)
	}
}

func TestHandleSettlesDeliveries(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		handlerErr  error
		wantAck     bool
		wantRequeue bool
	}{
		{name: "success", body: `{"callSid":"CA1"}`, wantAck: true},
		{name: "undecodable", body: `{`},
		{name: "validation", body: `{"callSid":"CA1"}`, handlerErr: apperrors.New(apperrors.ErrValidation, "test", "bad")},
		{name: "transient", body: `{"callSid":"CA1"}`, handlerErr: apperrors.New(apperrors.ErrPersistence, "test", "locked"), wantRequeue: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got types.RecordingEvent
			c := NewConsumer(Config{URL: "amqp://x", Queue: "q"}, func(_ context.Context, ev types.RecordingEvent) error {
				got = ev
				return tt.handlerErr
			}, logger.Discard())
			ack := &recordingAck{}
			c.handle(context.Background(), amqp.Delivery{Acknowledger: ack, DeliveryTag: 1, Body: []byte(tt.body)})

			assert.Equal(t, tt.wantAck, ack.acked)
			assert.Equal(t, !tt.wantAck, ack.nacked)
			assert.Equal(t, tt.wantRequeue, ack.requeue)
			if tt.wantAck {
				assert.Equal(t, "CA1", got.CallSid)
			}
		})
	}
}

func TestRunRequiresConfig(t *testing.T) {
	c := NewConsumer(Config{}, nil, logger.Discard())
	require.Error(t, c.Run(context.Background()))
}
