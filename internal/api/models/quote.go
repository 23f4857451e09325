package models

import "github.com/morningdash/morningdash/internal/quote"

// QuoteResponse is the quote of the day.
type QuoteResponse = quote.Dated

// NewQuoteResponse converts q served on date (YYYY-MM-DD).
func NewQuoteResponse(q quote.Quote, date string) QuoteResponse {
	return q.On(date)
}
