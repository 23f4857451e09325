package weather

import "time"

// Clock supplies the current time and one-shot timers.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a pending AfterFunc call.
type Timer interface {
	// Stop prevents the call if it has not started. It reports whether the
	// call was stopped.
	Stop() bool
}

// SystemClock returns a Clock backed by the time package.
func SystemClock() Clock {
	return systemClock{}
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}

func (systemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Recorder receives cache, fetch and state events for metrics.
type Recorder interface {
	CacheLookup(cache, result string)
	FetchCompleted(endpoint, outcome string)
	StateChanged(from, to string)
	WriteFailed(key string)
	ReadingAge(age time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) CacheLookup(string, string)    {}
func (nopRecorder) FetchCompleted(string, string) {}
func (nopRecorder) StateChanged(string, string)   {}
func (nopRecorder) WriteFailed(string)            {}
func (nopRecorder) ReadingAge(time.Duration)      {}
