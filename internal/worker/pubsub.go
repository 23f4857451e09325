package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"

	"github.com/morningdash/morningdash/internal/weather"
)

// ErrMalformedMessage reports a message body that is not a refresh request.
var ErrMalformedMessage = errors.New("malformed refresh message")

// Refresher forces a weather fetch. Implemented by *weather.Widget.
type Refresher interface {
	Refresh(ctx context.Context) weather.Snapshot
}

// RefreshMessage is the body of a refresh trigger.
type RefreshMessage struct {
	JobType string `json:"job_type"`
}

// RefreshTrigger turns refresh messages into widget refreshes.
type RefreshTrigger struct {
	widget   Refresher
	recorder JobRecorder
	logger   zerolog.Logger
}

// NewRefreshTrigger returns a trigger for widget. A nil recorder is allowed.
func NewRefreshTrigger(widget Refresher, recorder JobRecorder, logger zerolog.Logger) *RefreshTrigger {
	if recorder == nil {
		recorder = nopJobRecorder{}
	}
	return &RefreshTrigger{widget: widget, recorder: recorder, logger: logger}
}

// Handle runs the job named by one message body. Unknown job types are
// ignored. A refresh that ends in the error state is returned as an error.
func (t *RefreshTrigger) Handle(ctx context.Context, data []byte) error {
	var msg RefreshMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if msg.JobType != JobWeatherRefresh {
		t.logger.Warn().Str("job_type", msg.JobType).Msg("ignoring unknown job type")
		return nil
	}

	start := time.Now()
	snap := t.widget.Refresh(ctx)
	elapsed := time.Since(start)

	var err error
	if snap.State == weather.StateError {
		err = fmt.Errorf("weather refresh failed: %s", snap.ErrorMessage)
	}
	t.recorder.JobCompleted(JobWeatherRefresh, elapsed, err)

	t.logger.Info().
		Str("state", string(snap.State)).
		Bool("stale", snap.Stale).
		Dur("duration", elapsed).
		Msg("weather refresh triggered")
	return err
}

// PubSubConfig configures a PubSubHandler.
type PubSubConfig struct {
	ProjectID        string
	SubscriptionName string
	Trigger          *RefreshTrigger
	Logger           zerolog.Logger
}

// PubSubHandler feeds a Pub/Sub subscription into a RefreshTrigger.
type PubSubHandler struct {
	client     *pubsub.Client
	subscriber *pubsub.Subscriber
	trigger    *RefreshTrigger
	logger     zerolog.Logger
}

// NewPubSubHandler connects to the project. Messages are handled one at a
// time.
func NewPubSubHandler(ctx context.Context, cfg PubSubConfig) (*PubSubHandler, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client for %s: %w", cfg.ProjectID, err)
	}

	sub := client.Subscriber(cfg.SubscriptionName)
	sub.ReceiveSettings.MaxOutstandingMessages = 1
	sub.ReceiveSettings.MaxExtension = 2 * time.Minute

	return &PubSubHandler{
		client:     client,
		subscriber: sub,
		trigger:    cfg.Trigger,
		logger:     cfg.Logger.With().Str("subscription", cfg.SubscriptionName).Logger(),
	}, nil
}

// Start receives until ctx is done.
func (h *PubSubHandler) Start(ctx context.Context) error {
	h.logger.Info().Msg("receiving refresh triggers")
	return h.subscriber.Receive(ctx, h.receive)
}

// Close releases the client.
func (h *PubSubHandler) Close() error {
	return h.client.Close()
}

func (h *PubSubHandler) receive(ctx context.Context, msg *pubsub.Message) {
	log := h.logger.With().
		Str("message_id", msg.ID).
		Time("published", msg.PublishTime).
		Logger()

	err := h.trigger.Handle(ctx, msg.Data)
	switch {
	case errors.Is(err, ErrMalformedMessage):
		// Redelivery cannot fix the body.
		log.Error().Err(err).Msg("dropping refresh message")
		msg.Ack()
	case err != nil:
		log.Error().Err(err).Msg("refresh trigger failed")
		msg.Nack()
	default:
		msg.Ack()
	}
}
