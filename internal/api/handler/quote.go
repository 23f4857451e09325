package handler

import (
	"context"
	"net/http"

	"github.com/morningdash/morningdash/internal/api/models"
	"github.com/morningdash/morningdash/internal/api/response"
	"github.com/morningdash/morningdash/internal/clock"
	"github.com/morningdash/morningdash/internal/quote"
)

// QuoteSource serves the quote of the day. Implemented by *quote.Service.
type QuoteSource interface {
	Today(ctx context.Context) quote.Quote
	Date() string
}

// QuoteHandler handles GET /v1/quote.
type QuoteHandler struct {
	quotes QuoteSource
}

// NewQuoteHandler creates a new QuoteHandler.
func NewQuoteHandler(quotes QuoteSource) *QuoteHandler {
	return &QuoteHandler{quotes: quotes}
}

// GetQuote handles GET /v1/quote.
func (h *QuoteHandler) GetQuote(w http.ResponseWriter, r *http.Request) {
	q := h.quotes.Today(r.Context())
	response.JSON(w, r, http.StatusOK, models.NewQuoteResponse(q, h.quotes.Date()))
}

// ClockHandler handles GET /v1/clock.
type ClockHandler struct {
	clock *clock.Clock
}

// NewClockHandler creates a new ClockHandler.
func NewClockHandler(c *clock.Clock) *ClockHandler {
	return &ClockHandler{clock: c}
}

// GetClock handles GET /v1/clock.
func (h *ClockHandler) GetClock(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, h.clock.Face())
}
