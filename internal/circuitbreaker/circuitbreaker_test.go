package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/onnwee/nodelayout/internal/metrics"
)

var errBackend = errors.New("backend down")

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(name string) (*CircuitBreaker, *clock) {
	c := &clock{t: time.Unix(1000, 0)}
	cb := New(Config{
		Name:             name,
		FailureThreshold: 3,
		SuccessThreshold: 2,
		Timeout:          time.Second,
		Ignore:           func(err error) bool { return errors.Is(err, errNotFound) },
		now:              c.now,
	})
	return cb, c
}

var errNotFound = errors.New("not found")

func fail() error    { return errBackend }
func succeed() error { return nil }

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	cb, _ := newTestBreaker("opens")

	for range 2 {
		_ = cb.Call(fail)
	}
	_ = cb.Call(succeed)
	for range 2 {
		_ = cb.Call(fail)
	}
	if cb.State() != StateClosed {
		t.Fatalf("a success must reset the failure count, state %s", cb.State())
	}

	if err := cb.Call(fail); !errors.Is(err, errBackend) {
		t.Fatalf("third failure returned %v", err)
	}
	if cb.State() != StateOpen {
		t.Fatalf("state %s, want open", cb.State())
	}

	called := false
	err := cb.Call(func() error { called = true; return nil })
	if !errors.Is(err, ErrCircuitOpen) || called {
		t.Errorf("open breaker called through: %v", err)
	}
	if got := testutil.ToFloat64(metrics.StoreBreakerTrips.WithLabelValues("opens")); got != 1 {
		t.Errorf("trips = %v", got)
	}
}

func TestBreakerIgnoresAnswers(t *testing.T) {
	cb, _ := newTestBreaker("ignores")
	for range 10 {
		if err := cb.Call(func() error { return errNotFound }); !errors.Is(err, errNotFound) {
			t.Fatalf("ignored error not returned: %v", err)
		}
	}
	if cb.State() != StateClosed {
		t.Errorf("ignored errors opened the breaker")
	}
}

func TestBreakerHalfOpen(t *testing.T) {
	tests := []struct {
		name   string
		trials []func() error
		want   State
	}{
		{"closes after successes", []func() error{succeed, succeed}, StateClosed},
		{"stays half-open", []func() error{succeed}, StateHalfOpen},
		{"reopens on failure", []func() error{succeed, fail}, StateOpen},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cb, c := newTestBreaker("half-open")
			for range 3 {
				_ = cb.Call(fail)
			}
			c.advance(500 * time.Millisecond)
			if err := cb.Call(succeed); !errors.Is(err, ErrCircuitOpen) {
				t.Fatalf("trial before timeout: %v", err)
			}
			c.advance(time.Second)
			for _, fn := range tt.trials {
				_ = cb.Call(fn)
			}
			if cb.State() != tt.want {
				t.Errorf("state %s, want %s", cb.State(), tt.want)
			}
		})
	}
}

func TestStateString(t *testing.T) {
	if StateHalfOpen.String() != "half-open" || State(9).String() != "unknown" {
		t.Error("state names")
	}
}
