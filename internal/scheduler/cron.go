package scheduler

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Next returns the first run after base for a schedule expression. Only
// the named schedules (@hourly, @daily, @weekly, @monthly, @yearly) and
// "@every <duration>" are understood; durations may use a "d" suffix.
func Next(expr string, base time.Time) (time.Time, error) {
	expr = strings.TrimSpace(expr)
	switch expr {
	case "@yearly", "@annually":
		return time.Date(base.Year()+1, 1, 1, 0, 0, 0, 0, base.Location()), nil
	case "@monthly":
		return time.Date(base.Year(), base.Month()+1, 1, 0, 0, 0, 0, base.Location()), nil
	case "@weekly":
		return nextSunday(base), nil
	case "@daily":
		return time.Date(base.Year(), base.Month(), base.Day()+1, 0, 0, 0, 0, base.Location()), nil
	case "@hourly":
		return base.Add(time.Hour).Truncate(time.Hour), nil
	}
	if rest, ok := strings.CutPrefix(expr, "@every "); ok {
		d, err := parseEvery(strings.TrimSpace(rest))
		if err != nil {
			return time.Time{}, err
		}
		return base.Add(d), nil
	}
	return time.Time{}, fmt.Errorf("unsupported schedule %q: use @every <duration> or a named schedule", expr)
}

// Validate reports whether expr is a schedule Next understands.
func Validate(expr string) error {
	_, err := Next(expr, time.Now())
	return err
}

func parseEvery(s string) (time.Duration, error) {
	var d time.Duration
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil {
			return 0, fmt.Errorf("invalid duration: %s", s)
		}
		d = time.Duration(n) * 24 * time.Hour
	} else {
		var err error
		if d, err = time.ParseDuration(s); err != nil {
			return 0, fmt.Errorf("invalid duration: %s", s)
		}
	}
	if d <= 0 {
		return 0, fmt.Errorf("duration must be positive: %s", s)
	}
	return d, nil
}

// nextSunday is the coming Sunday midnight, a week ahead on Sundays.
func nextSunday(t time.Time) time.Time {
	days := (7 - int(t.Weekday())) % 7
	if days == 0 {
		days = 7
	}
	return time.Date(t.Year(), t.Month(), t.Day()+days, 0, 0, 0, 0, t.Location())
}
