package worker_test

import (
	"context"
	"sync"
	"time"

	"github.com/morningdash/morningdash/internal/quote"
	"github.com/morningdash/morningdash/internal/weather"
)

type published struct {
	topic string
	data  any
}

type fakePublisher struct {
	mu     sync.Mutex
	events []published
}

func (p *fakePublisher) Publish(topic string, data any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, published{topic: topic, data: data})
}

func (p *fakePublisher) topics() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.topic)
	}
	return out
}

type jobRun struct {
	job string
	err error
}

type fakeRecorder struct {
	mu   sync.Mutex
	runs []jobRun
}

func (r *fakeRecorder) JobCompleted(job string, _ time.Duration, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, jobRun{job: job, err: err})
}

type fixedQuotes struct{}

func (fixedQuotes) Today(context.Context) quote.Quote {
	return quote.Quote{Text: "The sun is new each day.", Author: "Heraclitus"}
}

func (fixedQuotes) Date() string { return "2026-02-16" }

type fakeRefresher struct {
	snap  weather.Snapshot
	calls int
}

func (f *fakeRefresher) Refresh(context.Context) weather.Snapshot {
	f.calls++
	return f.snap
}
