package model

import (
	"fmt"
	"strings"
	"time"
)

// Timeframe names a preset reporting window. Weeks start on Monday and all
// boundaries are UTC midnights.
type Timeframe string

const (
	TimeframeAll       Timeframe = "all_time"
	TimeframeToday     Timeframe = "today"
	TimeframeYesterday Timeframe = "yesterday"
	TimeframeThisWeek  Timeframe = "this_week"
	TimeframeLastWeek  Timeframe = "last_week"
	TimeframeThisMonth Timeframe = "this_month"
	TimeframeLastMonth Timeframe = "last_month"
)

// ParseTimeframe normalizes a user-supplied preset. "this week" and
// "This_Week" are equivalent; an empty value means all time.
func ParseTimeframe(s string) (Timeframe, error) {
	normalized := strings.ToLower(strings.Join(strings.Fields(s), "_"))
	switch tf := Timeframe(normalized); tf {
	case "":
		return TimeframeAll, nil
	case TimeframeAll, TimeframeToday, TimeframeYesterday, TimeframeThisWeek,
		TimeframeLastWeek, TimeframeThisMonth, TimeframeLastMonth:
		return tf, nil
	default:
		return "", fmt.Errorf("%w: unknown timeframe %q", ErrValidation, s)
	}
}

// Window returns the [from, to) interval of tf relative to now. Both are
// zero for TimeframeAll; to is zero when the window is still open.
func (tf Timeframe) Window(now time.Time) (from, to time.Time) {
	now = now.UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	// time.Weekday counts from Sunday.
	monday := today.AddDate(0, 0, -((int(today.Weekday()) + 6) % 7))
	firstOfMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	switch tf {
	case TimeframeToday:
		return today, time.Time{}
	case TimeframeYesterday:
		return today.AddDate(0, 0, -1), today
	case TimeframeThisWeek:
		return monday, time.Time{}
	case TimeframeLastWeek:
		return monday.AddDate(0, 0, -7), monday
	case TimeframeThisMonth:
		return firstOfMonth, time.Time{}
	case TimeframeLastMonth:
		return firstOfMonth.AddDate(0, -1, 0), firstOfMonth
	default:
		return time.Time{}, time.Time{}
	}
}
