// Package health keeps the set of backing services the API reports on.
// Services are registered by name at startup; lookups never resolve names dynamically.
package health

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Status values reported per service.
const (
	StatusUp   = "up"
	StatusDown = "down"
)

// Checker probes one backing service.
type Checker interface {
	Check(ctx context.Context) error
}

// CheckerFunc adapts a function to Checker.
type CheckerFunc func(ctx context.Context) error

// Check calls f.
func (f CheckerFunc) Check(ctx context.Context) error {
	return f(ctx)
}

// Result is the outcome of a single probe.
type Result struct {
	Name      string `json:"name"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
}

// Report aggregates every registered probe.
type Report struct {
	Status   string   `json:"status"`
	Services []Result `json:"services"`
}

// Healthy reports whether every service is up.
func (r Report) Healthy() bool {
	return r.Status == StatusUp
}

// Registry maps service names to checkers.
type Registry struct {
	mu       sync.RWMutex
	checkers map[string]Checker
	timeout  time.Duration
}

// NewRegistry creates an empty registry. timeout bounds each probe; zero means no bound.
func NewRegistry(timeout time.Duration) *Registry {
	return &Registry{checkers: make(map[string]Checker), timeout: timeout}
}

// Register adds or replaces the checker for name.
func (r *Registry) Register(name string, checker Checker) {
	if checker == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checkers[name] = checker
}

// Lookup returns the checker registered under name.
func (r *Registry) Lookup(name string) (Checker, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	checker, ok := r.checkers[name]
	return checker, ok
}

// Names lists registered services in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.checkers))
	for name := range r.checkers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CheckAll probes every registered service concurrently.
func (r *Registry) CheckAll(ctx context.Context) Report {
	names := r.Names()
	results := make([]Result, len(names))

	var wg sync.WaitGroup
	for i, name := range names {
		checker, _ := r.Lookup(name)
		wg.Add(1)
		go func(i int, name string, checker Checker) {
			defer wg.Done()
			results[i] = r.probe(ctx, name, checker)
		}(i, name, checker)
	}
	wg.Wait()

	report := Report{Status: StatusUp, Services: results}
	for _, result := range results {
		if result.Status != StatusUp {
			report.Status = StatusDown
			break
		}
	}
	return report
}

func (r *Registry) probe(ctx context.Context, name string, checker Checker) Result {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	started := time.Now()
	err := checker.Check(ctx)
	result := Result{Name: name, Status: StatusUp, LatencyMS: time.Since(started).Milliseconds()}
	if err != nil {
		result.Status = StatusDown
		result.Error = err.Error()
	}
	return result
}

// Database pings the SQL connection behind db.
func Database(db *gorm.DB) Checker {
	return CheckerFunc(func(ctx context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	})
}

// Redis pings the cache.
func Redis(client *redis.Client) Checker {
	return CheckerFunc(func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	})
}

// NATS reports whether the broker connection is established.
func NATS(conn *nats.Conn) Checker {
	return CheckerFunc(func(ctx context.Context) error {
		if conn == nil {
			return errors.New("nats connection not configured")
		}
		if status := conn.Status(); status != nats.CONNECTED {
			return errors.New("nats connection " + status.String())
		}
		return nil
	})
}
