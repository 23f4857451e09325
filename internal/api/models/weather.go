package models

import (
	"time"

	"github.com/morningdash/morningdash/internal/weather"
)

// WeatherSnapshot is the weather widget state as served over HTTP and the
// stream.
type WeatherSnapshot struct {
	State         weather.State   `json:"state"`
	Reading       *WeatherReading `json:"reading,omitempty"`
	Stale         bool            `json:"stale"`
	ErrorMessage  string          `json:"errorMessage,omitempty"`
	CityError     string          `json:"cityError,omitempty"`
	NextRefreshAt *Timestamp      `json:"nextRefreshAt,omitempty"`
	Version       uint64          `json:"version"`
}

// WeatherReading is a displayed reading with its cache age.
type WeatherReading struct {
	LocationName string    `json:"locationName"`
	TempC        float64   `json:"tempC"`
	TempF        int       `json:"tempF"`
	Humidity     int       `json:"humidity"`
	WeatherCode  int       `json:"weatherCode"`
	Description  string    `json:"description"`
	Icon         string    `json:"icon"`
	FetchedAt    Timestamp `json:"fetchedAt"`
	SavedAt      Timestamp `json:"savedAt"`
	AgeSeconds   int64     `json:"ageSeconds"`
}

// NewWeatherSnapshot converts a widget snapshot. now is used for the age.
func NewWeatherSnapshot(s weather.Snapshot, now time.Time) WeatherSnapshot {
	out := WeatherSnapshot{
		State:         s.State,
		Stale:         s.Stale,
		ErrorMessage:  s.ErrorMessage,
		CityError:     s.CityError,
		NextRefreshAt: timestampPtr(s.NextRefreshAt),
		Version:       s.Version,
	}

	if env := s.Reading; env != nil {
		age := env.Age(now)
		if age < 0 {
			age = 0
		}
		out.Reading = &WeatherReading{
			LocationName: env.Data.LocationName,
			TempC:        env.Data.TempC,
			TempF:        env.Data.TempF,
			Humidity:     env.Data.Humidity,
			WeatherCode:  env.Data.WeatherCode,
			Description:  env.Data.Description,
			Icon:         env.Data.Icon,
			FetchedAt:    Timestamp(env.Data.FetchedTime().UTC()),
			SavedAt:      Timestamp(env.SavedTime().UTC()),
			AgeSeconds:   int64(age / time.Second),
		}
	}
	return out
}

// CityRequest is the body of POST /v1/weather/city.
type CityRequest struct {
	City string `json:"city" validate:"required,max=100"`
}
