package utils

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"
)

func TestRetry(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), 3, time.Millisecond, func() error {
		calls++
		if calls < 3 {
			return errors.New("not yet")
		}
		return nil
	})
	if err != nil || calls != 3 {
		t.Fatalf("Retry = %v after %d calls", err, calls)
	}

	calls = 0
	boom := errors.New("boom")
	if err := Retry(context.Background(), 2, time.Millisecond, func() error { calls++; return boom }); !errors.Is(err, boom) || calls != 2 {
		t.Errorf("Retry = %v after %d calls", err, calls)
	}
}

func TestRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	err := Retry(ctx, 5, time.Hour, func() error { calls++; return errors.New("down") })
	if !errors.Is(err, context.Canceled) || calls != 1 {
		t.Errorf("Retry = %v after %d calls", err, calls)
	}
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("T_BOOL", "yes")
	t.Setenv("T_INT", "42")
	t.Setenv("T_BAD_INT", "forty")
	t.Setenv("T_FLOAT", "0.25")
	t.Setenv("T_MS", "1500")
	t.Setenv("T_STR", "  value ")
	t.Setenv("T_SLICE", "a, b,,c ")

	if !GetEnvAsBool("T_BOOL", false) {
		t.Error("GetEnvAsBool")
	}
	if GetEnvAsInt("T_INT", 0) != 42 || GetEnvAsInt("T_BAD_INT", 7) != 7 {
		t.Error("GetEnvAsInt")
	}
	if GetEnvAsFloat("T_FLOAT", 0) != 0.25 {
		t.Error("GetEnvAsFloat")
	}
	if GetEnvAsMillis("T_MS", 0) != 1500*time.Millisecond || GetEnvAsMillis("T_UNSET_MS", time.Second) != time.Second {
		t.Error("GetEnvAsMillis")
	}
	if GetEnvAsString("T_STR", "x") != "value" || GetEnvAsString("T_UNSET", "x") != "x" {
		t.Error("GetEnvAsString")
	}
	if got := GetEnvAsSlice("T_SLICE", nil, ","); !slices.Equal(got, []string{"a", "b", "c"}) {
		t.Errorf("GetEnvAsSlice = %q", got)
	}
}
