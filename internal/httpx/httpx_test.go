package httpx

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func get(url string) func(context.Context) (*http.Request, error) {
	return func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	}
}

// statusSequence answers with codes in order, repeating the last one.
func statusSequence(t *testing.T, header http.Header, codes ...int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var n atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		i := int(n.Add(1)) - 1
		code := codes[min(i, len(codes)-1)]
		for k, v := range header {
			w.Header()[k] = v
		}
		w.WriteHeader(code)
	}))
	t.Cleanup(ts.Close)
	return ts, &n
}

func TestDo(t *testing.T) {
	tests := []struct {
		name     string
		codes    []int
		attempts int
		want     int
		calls    int32
	}{
		{"success first try", []int{200}, 3, 200, 1},
		{"retries 5xx", []int{500, 503, 200}, 3, 200, 3},
		{"retries 429", []int{429, 204}, 3, 204, 2},
		{"4xx is final", []int{404, 200}, 3, 404, 1},
		{"gives up with last response", []int{502}, 2, 502, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts, calls := statusSequence(t, nil, tt.codes...)
			resp, err := Do(context.Background(), ts.Client(), get(ts.URL), Options{MaxAttempts: tt.attempts, BaseDelay: time.Millisecond})
			if err != nil {
				t.Fatal(err)
			}
			resp.Body.Close()
			if resp.StatusCode != tt.want {
				t.Errorf("status %d, want %d", resp.StatusCode, tt.want)
			}
			if calls.Load() != tt.calls {
				t.Errorf("calls %d, want %d", calls.Load(), tt.calls)
			}
		})
	}
}

func TestDoHonorsRetryAfter(t *testing.T) {
	ts, _ := statusSequence(t, http.Header{"Retry-After": []string{"1"}}, 429, 200)

	var waits []time.Duration
	opts := Options{
		BaseDelay: time.Millisecond,
		MaxWait:   50 * time.Millisecond,
		Observer:  func(info AttemptInfo) { waits = append(waits, info.Wait) },
	}
	resp, err := Do(context.Background(), ts.Client(), get(ts.URL), opts)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if len(waits) != 2 || waits[0] != 50*time.Millisecond || waits[1] != 0 {
		t.Errorf("waits %v, want Retry-After capped at MaxWait then final", waits)
	}
}

func TestDoStopsOnCancel(t *testing.T) {
	ts, calls := statusSequence(t, nil, 503)
	ctx, cancel := context.WithCancel(context.Background())
	opts := Options{
		MaxAttempts: 5,
		BaseDelay:   time.Hour,
		Observer:    func(AttemptInfo) { cancel() },
	}
	_, err := Do(ctx, ts.Client(), get(ts.URL), opts)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error %v, want context.Canceled", err)
	}
	if calls.Load() != 1 {
		t.Errorf("calls %d", calls.Load())
	}
}

func TestDoBuildError(t *testing.T) {
	boom := errors.New("boom")
	_, err := Do(context.Background(), http.DefaultClient, func(context.Context) (*http.Request, error) {
		return nil, boom
	}, Options{})
	if !errors.Is(err, boom) {
		t.Errorf("error %v", err)
	}
}

func TestRetryAfter(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	tests := []struct {
		in   string
		want time.Duration
		ok   bool
	}{
		{"", 0, false},
		{"3", 3 * time.Second, true},
		{"-1", 0, false},
		{now.Add(10 * time.Second).Format(http.TimeFormat), 10 * time.Second, true},
		{now.Add(-time.Minute).Format(http.TimeFormat), 0, true},
		{"soon", 0, false},
	}
	for _, tt := range tests {
		got, ok := retryAfter(tt.in, now)
		if got != tt.want || ok != tt.ok {
			t.Errorf("retryAfter(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}
