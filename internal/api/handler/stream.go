package handler

import (
	"errors"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/morningdash/morningdash/internal/api/models"
	"github.com/morningdash/morningdash/internal/api/response"
	"github.com/morningdash/morningdash/internal/stream"
)

// StreamServer upgrades a request and streams a topic. Implemented by
// *stream.Hub.
type StreamServer interface {
	ServeWS(w http.ResponseWriter, r *http.Request, topic string) error
}

var streamTopics = map[string]bool{
	stream.TopicWeather: true,
	stream.TopicClock:   true,
	stream.TopicQuote:   true,
}

// StreamHandler handles GET /v1/stream.
type StreamHandler struct {
	hub    StreamServer
	logger zerolog.Logger
}

// NewStreamHandler creates a new StreamHandler.
func NewStreamHandler(hub StreamServer, logger zerolog.Logger) *StreamHandler {
	return &StreamHandler{hub: hub, logger: logger}
}

// Stream handles GET /v1/stream?topic=weather|clock|quote.
func (h *StreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	topic := r.URL.Query().Get("topic")
	if topic == "" {
		topic = stream.TopicWeather
	}
	if !streamTopics[topic] {
		response.BadRequest(w, r, "unknown stream topic", []models.FieldError{
			{Field: "topic", Message: "must be one of weather, clock, quote", Code: "ONE_OF"},
		})
		return
	}

	if !websocket.IsWebSocketUpgrade(r) {
		response.BadRequest(w, r, "expected a WebSocket upgrade request", nil)
		return
	}

	// After a successful upgrade the connection is no longer HTTP; errors
	// are only logged.
	if err := h.hub.ServeWS(w, r, topic); err != nil && !errors.Is(err, stream.ErrHubClosed) {
		h.logger.Debug().Err(err).Str("topic", topic).Msg("stream upgrade failed")
	}
}
