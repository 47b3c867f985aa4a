package events

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
	"github.com/streadway/amqp"

	"call-intel-go/internal/apperrors"
	"call-intel-go/internal/logger"
	"call-intel-go/internal/types"
)

// Handler processes one decoded event. Errors of kind ErrValidation drop the
// message; anything else requeues it.
type Handler func(ctx context.Context, ev types.RecordingEvent) error

type Config struct {
	URL         string
	Queue       string
	ConsumerTag string
	Prefetch    int
}

// Consumer reads "recording completed" events from a durable queue with
// manual acknowledgement and reconnects when the broker goes away.
type Consumer struct {
	cfg     Config
	handler Handler
	log     *logger.Logger
}

func NewConsumer(cfg Config, h Handler, log *logger.Logger) *Consumer {
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = 10
	}
	if cfg.ConsumerTag == "" {
		cfg.ConsumerTag = "call-intel"
	}
	if log == nil {
		log = logger.New()
	}
	return &Consumer{cfg: cfg, handler: h, log: log.Component("events")}
}

// Run consumes until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	if c.cfg.URL == "" || c.cfg.Queue == "" {
		return fmt.Errorf("AMQP URL or queue name not configured")
	}
	bo := backoff.NewExponentialBackOff()
	bo.MaxInterval = 30 * time.Second
	bo.MaxElapsedTime = 0

	op := func() error {
		err := c.consume(ctx)
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		if err == nil {
			bo.Reset()
			err = errors.New("delivery channel closed")
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		c.log.WithField("error", err.Error()).WithField("retry_in", wait.String()).Warn("AMQP consumer disconnected, reconnecting")
	}
	err := backoff.RetryNotify(op, backoff.WithContext(bo, ctx), notify)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (c *Consumer) consume(ctx context.Context) error {
	conn, err := amqp.Dial(c.cfg.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to AMQP server: %w", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open AMQP channel: %w", err)
	}
	defer ch.Close()

	if _, err := ch.QueueDeclare(c.cfg.Queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare AMQP queue: %w", err)
	}
	if err := ch.Qos(c.cfg.Prefetch, 0, false); err != nil {
		c.log.WithField("error", err.Error()).Warn("failed to set QoS on AMQP channel, continuing anyway")
	}
	deliveries, err := ch.Consume(c.cfg.Queue, c.cfg.ConsumerTag, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}
	c.log.WithFields(logrus.Fields{"queue": c.cfg.Queue, "prefetch": c.cfg.Prefetch}).Info("consuming recording events")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return nil
			}
			c.handle(ctx, d)
		}
	}
}

// handle decodes, dispatches and settles one delivery.
func (c *Consumer) handle(ctx context.Context, d amqp.Delivery) {
	log := c.log.WithField("delivery_tag", d.DeliveryTag)
	ev, err := Decode(d.Body)
	if err != nil {
		log.WithField("error", err.Error()).Warn("dropping undecodable event")
		if nerr := d.Nack(false, false); nerr != nil {
			log.WithField("error", nerr.Error()).Error("nack failed")
		}
		return
	}
	log = log.WithField("call_id", ev.CallSid)

	if err := c.handler(ctx, ev); err != nil {
		requeue := !errors.Is(err, apperrors.ErrValidation)
		log.WithField("error", err.Error()).WithField("requeue", requeue).Warn("event handling failed")
		if nerr := d.Nack(false, requeue); nerr != nil {
			log.WithField("error", nerr.Error()).Error("nack failed")
		}
		return
	}
	if err := d.Ack(false); err != nil {
		log.WithField("error", err.Error()).Error("ack failed")
	}
}

// flexInt accepts a JSON number or a numeric string.
type flexInt int

func (f *flexInt) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	s := strings.Trim(string(b), `"`)
	if s == "" {
		return nil
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("duration %q is not a number", s)
	}
	*f = flexInt(n)
	return nil
}

type wireEvent struct {
	CallSid                  string  `json:"callSid"`
	RecordingSid             string  `json:"recordingSid"`
	AccountSid               string  `json:"accountSid"`
	RecordingStatus          string  `json:"recordingStatus"`
	RecordingDuration        flexInt `json:"recordingDuration"`
	RecordingDurationSeconds flexInt `json:"recordingDurationSeconds"`
}

// Decode parses a provider status callback. Key matching is
// case-insensitive, so both callSid and CallSid are accepted.
func Decode(body []byte) (types.RecordingEvent, error) {
	var w wireEvent
	if err := json.Unmarshal(body, &w); err != nil {
		return types.RecordingEvent{}, apperrors.Wrap(apperrors.ErrValidation, "events.decode", err)
	}
	ev := types.RecordingEvent{
		CallSid:          strings.TrimSpace(w.CallSid),
		RecordingSid:     strings.TrimSpace(w.RecordingSid),
		AccountSid:       strings.TrimSpace(w.AccountSid),
		RecordingStatus:  strings.ToLower(strings.TrimSpace(w.RecordingStatus)),
		RecordingSeconds: int(w.RecordingDurationSeconds),
	}
	if ev.RecordingSeconds == 0 {
		ev.RecordingSeconds = int(w.RecordingDuration)
	}
	if ev.CallSid == "" {
		return ev, apperrors.New(apperrors.ErrValidation, "events.decode", "callSid is required")
	}
	return ev, nil
}
