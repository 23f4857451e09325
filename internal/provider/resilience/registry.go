package resilience

import (
	"sort"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// ProviderHealth is a point-in-time view of one upstream.
type ProviderHealth struct {
	Name         string
	CircuitState gobreaker.State
	Counts       gobreaker.Counts

	// LastSuccessAt and LastFailureAt are nil until the first outcome.
	LastSuccessAt *time.Time
	LastFailureAt *time.Time
	LastError     string
}

// IsHealthy reports a closed breaker.
func (h *ProviderHealth) IsHealthy() bool { return h.CircuitState == gobreaker.StateClosed }

// IsDegraded reports a half-open breaker.
func (h *ProviderHealth) IsDegraded() bool { return h.CircuitState == gobreaker.StateHalfOpen }

// IsUnhealthy reports an open breaker.
func (h *ProviderHealth) IsUnhealthy() bool { return h.CircuitState == gobreaker.StateOpen }

// Overall status values reported by Registry.Status.
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// Registry records the last outcome of every upstream client so the status
// endpoint can report on the forecast, geocoding and IP lookup services.
type Registry struct {
	mu        sync.RWMutex
	upstreams map[string]*upstream
	now       func() time.Time
}

type upstream struct {
	client    *Client
	succeeded *time.Time
	failed    *time.Time
	lastErr   string
}

func (u *upstream) snapshot(name string) *ProviderHealth {
	return &ProviderHealth{
		Name:          name,
		CircuitState:  u.client.CircuitBreakerState(),
		Counts:        u.client.CircuitBreakerCounts(),
		LastSuccessAt: u.succeeded,
		LastFailureAt: u.failed,
		LastError:     u.lastErr,
	}
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{upstreams: make(map[string]*upstream), now: time.Now}
}

// Register tracks client under name, replacing any earlier entry.
func (r *Registry) Register(name string, client *Client) {
	r.mu.Lock()
	r.upstreams[name] = &upstream{client: client}
	r.mu.Unlock()
}

// RecordSuccess stamps the last success time. Unknown names are ignored.
func (r *Registry) RecordSuccess(name string) {
	r.update(name, func(u *upstream, now time.Time) {
		u.succeeded = &now
	})
}

// RecordFailure stamps the last failure time and keeps err's message.
func (r *Registry) RecordFailure(name string, err error) {
	r.update(name, func(u *upstream, now time.Time) {
		u.failed = &now
		if err != nil {
			u.lastErr = err.Error()
		}
	})
}

func (r *Registry) update(name string, fn func(*upstream, time.Time)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.upstreams[name]; ok {
		fn(u, r.now())
	}
}

// GetHealth returns the health of name, or nil when it is not registered.
func (r *Registry) GetHealth(name string) *ProviderHealth {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if u, ok := r.upstreams[name]; ok {
		return u.snapshot(name)
	}
	return nil
}

// GetAllHealth returns every upstream ordered by name.
func (r *Registry) GetAllHealth() []*ProviderHealth {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*ProviderHealth, 0, len(r.upstreams))
	for name, u := range r.upstreams {
		out = append(out, u.snapshot(name))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// GetProviderNames returns the registered names in order.
func (r *Registry) GetProviderNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.upstreams))
	for name := range r.upstreams {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ProviderCount returns the number of registered upstreams.
func (r *Registry) ProviderCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.upstreams)
}

// Status is the worst breaker state across all upstreams.
func (r *Registry) Status() string {
	worst := StatusHealthy
	for _, h := range r.GetAllHealth() {
		if h.IsUnhealthy() {
			return StatusUnhealthy
		}
		if h.IsDegraded() {
			worst = StatusDegraded
		}
	}
	return worst
}
