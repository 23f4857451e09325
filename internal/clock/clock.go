// Package clock renders the dashboard clock face.
package clock

import "time"

// Face is the rendered clock.
type Face struct {
	Hours     string    `json:"hours"`
	Minutes   string    `json:"minutes"`
	Seconds   string    `json:"seconds"`
	DayOfWeek string    `json:"dayOfWeek"`
	DateLabel string    `json:"dateLabel"`
	Time      time.Time `json:"time"`
}

// Format renders t in its own location: 24-hour zero-padded fields, the
// English weekday, and a date label such as "February 16, 2026".
func Format(t time.Time) Face {
	return Face{
		Hours:     t.Format("15"),
		Minutes:   t.Format("04"),
		Seconds:   t.Format("05"),
		DayOfWeek: t.Weekday().String(),
		DateLabel: t.Format("January 2, 2006"),
		Time:      t.Truncate(time.Second),
	}
}

// Clock renders the current time in a fixed location.
type Clock struct {
	now func() time.Time
	loc *time.Location
}

// New returns a Clock for loc. Nil loc means time.Local and nil now means
// time.Now.
func New(loc *time.Location, now func() time.Time) *Clock {
	if loc == nil {
		loc = time.Local
	}
	if now == nil {
		now = time.Now
	}
	return &Clock{now: now, loc: loc}
}

// Face returns the current face.
func (c *Clock) Face() Face {
	return Format(c.now().In(c.loc))
}

// Location returns the display location.
func (c *Clock) Location() *time.Location {
	return c.loc
}
