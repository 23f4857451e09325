// Package quote selects the quote of the day and remembers it until the date
// rolls over.
package quote

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/morningdash/morningdash/internal/kvstore"
)

// CacheKey is the store key holding today's quote.
const CacheKey = "quote_cache"

const dateLayout = "2006-01-02"

// Sources reported to the Recorder.
const (
	SourceCache    = "cache"
	SourceRotation = "rotation"
	SourceFallback = "fallback"
)

// Quote is a single quotation.
type Quote struct {
	Text   string `json:"q"`
	Author string `json:"a"`
}

// Dated is a quote together with the day (YYYY-MM-DD) it was served for.
// It is the shape pushed to clients and returned by the API.
type Dated struct {
	Text   string `json:"text"`
	Author string `json:"author"`
	Date   string `json:"date"`
}

// On dates q.
func (q Quote) On(date string) Dated {
	return Dated{Text: q.Text, Author: q.Author, Date: date}
}

// Fallback is shown when no quote can be selected.
var Fallback = Quote{
	Text:   "Start where you are. Use what you have. Do what you can.",
	Author: "Arthur Ashe",
}

// Builtin returns a copy of the default rotation.
func Builtin() []Quote {
	out := make([]Quote, len(builtin))
	copy(out, builtin)
	return out
}

// Select returns the rotation entry for day: index day-of-year modulo length.
func Select(quotes []Quote, day time.Time) Quote {
	if len(quotes) == 0 {
		return Fallback
	}
	return quotes[day.YearDay()%len(quotes)]
}

// Recorder receives one event per served quote.
type Recorder interface {
	QuoteServed(source string)
}

type nopRecorder struct{}

func (nopRecorder) QuoteServed(string) {}

type cacheEntry struct {
	Q    string `json:"q"`
	A    string `json:"a"`
	Date string `json:"date"`
}

// Config holds configuration for the quote service.
type Config struct {
	Store kvstore.Store

	// Quotes is the rotation (default: Builtin()).
	Quotes []Quote

	// Now supplies the current time (default: time.Now).
	Now func() time.Time

	// Location decides where the day rolls over (default: time.Local).
	Location *time.Location

	Logger   zerolog.Logger
	Recorder Recorder
}

// Service serves the quote of the day.
type Service struct {
	store    kvstore.Store
	quotes   []Quote
	now      func() time.Time
	loc      *time.Location
	logger   zerolog.Logger
	recorder Recorder
}

// NewService creates a quote service.
func NewService(cfg Config) *Service {
	s := &Service{
		store:    cfg.Store,
		quotes:   cfg.Quotes,
		now:      cfg.Now,
		loc:      cfg.Location,
		logger:   cfg.Logger,
		recorder: cfg.Recorder,
	}
	if s.quotes == nil {
		s.quotes = Builtin()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.loc == nil {
		s.loc = time.Local
	}
	if s.recorder == nil {
		s.recorder = nopRecorder{}
	}
	return s
}

// Today returns the cached quote when it was stored today, otherwise picks
// from the rotation and stores the pick. It never fails.
func (s *Service) Today(ctx context.Context) (q Quote) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Interface("panic", r).Msg("quote selection failed")
			q = Fallback
			s.recorder.QuoteServed(SourceFallback)
		}
	}()

	now := s.now().In(s.loc)
	today := now.Format(dateLayout)

	if cached, ok := s.readCache(ctx, today); ok {
		s.recorder.QuoteServed(SourceCache)
		return cached
	}

	if len(s.quotes) == 0 {
		s.recorder.QuoteServed(SourceFallback)
		return Fallback
	}

	q = Select(s.quotes, now)
	s.writeCache(ctx, q, today)
	s.recorder.QuoteServed(SourceRotation)
	return q
}

// Date returns the current quote day as YYYY-MM-DD.
func (s *Service) Date() string {
	return s.now().In(s.loc).Format(dateLayout)
}

func (s *Service) readCache(ctx context.Context, today string) (Quote, bool) {
	raw, err := s.store.Get(ctx, CacheKey)
	if err != nil {
		if !errors.Is(err, kvstore.ErrNotFound) {
			s.logger.Warn().Err(err).Str("key", CacheKey).Msg("failed to read quote cache")
		}
		return Quote{}, false
	}

	var entry cacheEntry
	if err := json.Unmarshal(raw, &entry); err != nil || entry.Q == "" {
		s.logger.Warn().Err(err).Str("key", CacheKey).Msg("purging corrupt quote cache")
		if rmErr := s.store.Remove(ctx, CacheKey); rmErr != nil {
			s.logger.Warn().Err(rmErr).Str("key", CacheKey).Msg("failed to purge quote cache")
		}
		return Quote{}, false
	}

	if entry.Date != today {
		return Quote{}, false
	}
	return Quote{Text: entry.Q, Author: entry.A}, true
}

func (s *Service) writeCache(ctx context.Context, q Quote, today string) {
	raw, err := json.Marshal(cacheEntry{Q: q.Text, A: q.Author, Date: today})
	if err == nil {
		err = s.store.Set(ctx, CacheKey, raw)
	}
	if err != nil {
		s.logger.Warn().Err(err).Str("key", CacheKey).Msg("failed to persist quote cache")
	}
}
