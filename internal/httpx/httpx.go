// Package httpx sends requests to layoutd with retries. Overload answers
// (429 and 5xx) are retried, honoring Retry-After when the server sends one.
package httpx

import (
	"context"
	"errors"
	"math/rand/v2"
	"net/http"
	"strconv"
	"time"

	"github.com/onnwee/nodelayout/internal/logger"
)

// AttemptInfo describes a single attempt outcome.
type AttemptInfo struct {
	Attempt int
	Method  string
	URL     string
	Status  int
	Err     error
	Wait    time.Duration
}

// Observer callback to report attempt telemetry.
type Observer func(info AttemptInfo)

// Options tunes the retry loop. Zero values use three attempts and a
// 200ms base delay.
type Options struct {
	MaxAttempts int
	BaseDelay   time.Duration
	// MaxWait caps a server-requested Retry-After.
	MaxWait  time.Duration
	Observer Observer
}

func (o Options) normalized() Options {
	if o.MaxAttempts < 1 {
		o.MaxAttempts = 3
	}
	if o.BaseDelay <= 0 {
		o.BaseDelay = 200 * time.Millisecond
	}
	if o.MaxWait <= 0 {
		o.MaxWait = 30 * time.Second
	}
	return o
}

// Do sends the request build returns, rebuilding it for every attempt. The
// last 429/5xx response is returned as is once attempts run out.
func Do(ctx context.Context, client *http.Client, build func(context.Context) (*http.Request, error), opts Options) (*http.Response, error) {
	opts = opts.normalized()
	report := func(info AttemptInfo) {
		if opts.Observer != nil {
			opts.Observer(info)
		}
	}

	for attempt := 1; ; attempt++ {
		req, err := build(ctx)
		if err != nil {
			return nil, err
		}
		info := AttemptInfo{Attempt: attempt, Method: req.Method, URL: req.URL.String()}

		resp, err := client.Do(req)
		last := attempt == opts.MaxAttempts
		if err != nil {
			info.Err = err
			if last || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				report(info)
				return nil, err
			}
		} else {
			info.Status = resp.StatusCode
			if !retryable(resp.StatusCode) || last {
				report(info)
				return resp, nil
			}
		}

		wait := backoff(opts.BaseDelay, attempt)
		if resp != nil {
			if ra, ok := retryAfter(resp.Header.Get("Retry-After"), time.Now()); ok {
				wait = min(ra, opts.MaxWait)
			}
			resp.Body.Close()
		}
		info.Wait = wait
		report(info)
		logger.Debug("retrying request", "attempt", attempt, "method", info.Method, "url", info.URL,
			"status", info.Status, "error", info.Err, "wait", wait)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

// backoff grows linearly with jitter
func backoff(base time.Duration, attempt int) time.Duration {
	return base*time.Duration(attempt) + time.Duration(rand.IntN(100))*time.Millisecond
}

// retryAfter parses a Retry-After value given in seconds or as an HTTP date.
func retryAfter(v string, now time.Time) (time.Duration, bool) {
	if v == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second, true
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := t.Sub(now); d > 0 {
			return d, true
		}
		return 0, true
	}
	return 0, false
}
