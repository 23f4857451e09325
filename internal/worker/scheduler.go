// Package worker runs the dashboard's background jobs: the clock tick, the
// daily quote rollover, and the Pub/Sub weather refresh trigger.
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog"

	"github.com/morningdash/morningdash/internal/clock"
	"github.com/morningdash/morningdash/internal/quote"
	"github.com/morningdash/morningdash/internal/stream"
)

// Job names reported to the JobRecorder.
const (
	JobClockTick      = "clock_tick"
	JobQuoteRollover  = "quote_rollover"
	JobWeatherRefresh = "weather_refresh"
)

const quoteJobTimeout = 10 * time.Second

// Publisher fans events out to stream clients. Implemented by *stream.Hub.
type Publisher interface {
	Publish(topic string, data any)
}

// JobRecorder receives one event per job run. Implemented by *metrics.Metrics.
type JobRecorder interface {
	JobCompleted(job string, d time.Duration, err error)
}

// QuoteSource serves the quote of the day. Implemented by *quote.Service.
type QuoteSource interface {
	Today(ctx context.Context) quote.Quote
	Date() string
}

type nopJobRecorder struct{}

func (nopJobRecorder) JobCompleted(string, time.Duration, error) {}

// SchedulerConfig holds configuration for the Scheduler.
type SchedulerConfig struct {
	Clock     *clock.Clock
	Quotes    QuoteSource
	Publisher Publisher
	Recorder  JobRecorder
	Logger    zerolog.Logger

	// ClockInterval is the clock tick period (default: 1s).
	ClockInterval time.Duration
}

// Scheduler publishes the clock face every tick and the new quote at
// midnight in the clock's location.
type Scheduler struct {
	cron      *gocron.Scheduler
	clock     *clock.Clock
	quotes    QuoteSource
	publisher Publisher
	recorder  JobRecorder
	logger    zerolog.Logger
	interval  time.Duration
}

// NewScheduler creates a scheduler. Jobs are registered by Start.
func NewScheduler(cfg SchedulerConfig) *Scheduler {
	if cfg.Recorder == nil {
		cfg.Recorder = nopJobRecorder{}
	}
	if cfg.ClockInterval <= 0 {
		cfg.ClockInterval = time.Second
	}

	cron := gocron.NewScheduler(cfg.Clock.Location())
	cron.SingletonModeAll()

	return &Scheduler{
		cron:      cron,
		clock:     cfg.Clock,
		quotes:    cfg.Quotes,
		publisher: cfg.Publisher,
		recorder:  cfg.Recorder,
		logger:    cfg.Logger.With().Str("component", "scheduler").Logger(),
		interval:  cfg.ClockInterval,
	}
}

// Start publishes the current clock and quote, registers the jobs and starts
// the scheduler in the background. The first scheduled tick comes one
// interval later.
func (s *Scheduler) Start() error {
	s.TickClock()
	s.RollQuote(context.Background())

	if _, err := s.cron.Every(s.interval).WaitForSchedule().Tag(JobClockTick).Do(s.TickClock); err != nil {
		return fmt.Errorf("scheduling %s: %w", JobClockTick, err)
	}

	rollover := func() {
		ctx, cancel := context.WithTimeout(context.Background(), quoteJobTimeout)
		defer cancel()
		s.RollQuote(ctx)
	}
	if _, err := s.cron.Every(1).Day().At("00:00").Tag(JobQuoteRollover).Do(rollover); err != nil {
		return fmt.Errorf("scheduling %s: %w", JobQuoteRollover, err)
	}

	s.cron.StartAsync()
	s.logger.Info().
		Dur("clock_interval", s.interval).
		Str("timezone", s.clock.Location().String()).
		Msg("scheduler started")
	return nil
}

// Stop stops the scheduler. Running jobs finish first.
func (s *Scheduler) Stop() {
	s.cron.Stop()
}

// Jobs returns the number of registered jobs.
func (s *Scheduler) Jobs() int {
	return s.cron.Len()
}

// TickClock publishes the current clock face.
func (s *Scheduler) TickClock() {
	start := time.Now()
	s.publisher.Publish(stream.TopicClock, s.clock.Face())
	s.recorder.JobCompleted(JobClockTick, time.Since(start), nil)
}

// RollQuote publishes the quote for the current day. The quote service never
// fails; it falls back to a fixed quote.
func (s *Scheduler) RollQuote(ctx context.Context) {
	start := time.Now()
	q := s.quotes.Today(ctx)
	date := s.quotes.Date()
	s.publisher.Publish(stream.TopicQuote, q.On(date))
	s.recorder.JobCompleted(JobQuoteRollover, time.Since(start), nil)

	s.logger.Debug().
		Str("date", date).
		Str("author", q.Author).
		Msg("quote published")
}
