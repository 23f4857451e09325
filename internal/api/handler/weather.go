package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/morningdash/morningdash/internal/api/models"
	"github.com/morningdash/morningdash/internal/api/response"
	"github.com/morningdash/morningdash/internal/weather"
)

// WeatherWidget is the weather state machine as seen by the API.
// Implemented by *weather.Widget.
type WeatherWidget interface {
	Snapshot() weather.Snapshot
	Activate(ctx context.Context) weather.Snapshot
	SubmitCity(ctx context.Context, city string) (weather.Snapshot, error)
	Retry(ctx context.Context) weather.Snapshot
	Refresh(ctx context.Context) weather.Snapshot
}

// WeatherHandler handles the weather widget endpoints. Every endpoint
// answers 200 with the resulting snapshot; fetch failures are states, not
// HTTP errors.
type WeatherHandler struct {
	widget   WeatherWidget
	now      func() time.Time
	validate *validator.Validate
}

// NewWeatherHandler creates a new WeatherHandler. Nil now means time.Now.
func NewWeatherHandler(widget WeatherWidget, now func() time.Time) *WeatherHandler {
	if now == nil {
		now = time.Now
	}
	return &WeatherHandler{
		widget:   widget,
		now:      now,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// GetWeather handles GET /v1/weather.
func (h *WeatherHandler) GetWeather(w http.ResponseWriter, r *http.Request) {
	h.write(w, r, h.widget.Snapshot())
}

// Activate handles POST /v1/weather/activate.
func (h *WeatherHandler) Activate(w http.ResponseWriter, r *http.Request) {
	h.write(w, r, h.widget.Activate(detach(r)))
}

// SubmitCity handles POST /v1/weather/city.
func (h *WeatherHandler) SubmitCity(w http.ResponseWriter, r *http.Request) {
	var input models.CityRequest
	if err := response.DecodeJSON(w, r, &input); err != nil {
		response.BadRequest(w, r, err.Error(), nil)
		return
	}

	if err := h.validate.Struct(input); err != nil {
		response.BadRequest(w, r, "invalid city", fieldErrors(err))
		return
	}

	snap, err := h.widget.SubmitCity(detach(r), input.City)
	if errors.Is(err, weather.ErrEmptyCity) {
		response.BadRequest(w, r, "invalid city", []models.FieldError{
			{Field: "city", Message: "must not be blank", Code: "REQUIRED"},
		})
		return
	}
	h.write(w, r, snap)
}

// Retry handles POST /v1/weather/retry.
func (h *WeatherHandler) Retry(w http.ResponseWriter, r *http.Request) {
	h.write(w, r, h.widget.Retry(detach(r)))
}

// Refresh handles POST /v1/weather/refresh.
func (h *WeatherHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	h.write(w, r, h.widget.Refresh(detach(r)))
}

func (h *WeatherHandler) write(w http.ResponseWriter, r *http.Request, snap weather.Snapshot) {
	response.JSON(w, r, http.StatusOK, models.NewWeatherSnapshot(snap, h.now()))
}

// detach keeps request values but drops cancellation: a client hanging up
// must not turn a fetch in progress into a failure.
func detach(r *http.Request) context.Context {
	return context.WithoutCancel(r.Context())
}

// fieldErrors converts validator errors to problem field errors.
func fieldErrors(err error) []models.FieldError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}

	out := make([]models.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			out = append(out, models.FieldError{Field: field, Message: "is required", Code: "REQUIRED"})
		case "max":
			out = append(out, models.FieldError{Field: field, Message: "must be at most " + fe.Param() + " characters", Code: "MAX"})
		default:
			out = append(out, models.FieldError{Field: field, Message: "failed " + fe.Tag() + " validation", Code: strings.ToUpper(fe.Tag())})
		}
	}
	return out
}
