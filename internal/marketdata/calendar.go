package marketdata

import (
	"context"
	"time"
)

// Compile-time interface check.
var _ Calendar = (*WeekdayCalendar)(nil)

// WeekdayCalendar approximates a trading calendar with Monday-Friday dates.
// It is the fallback when no exchange calendar is reachable; holidays simply
// yield empty frames downstream.
type WeekdayCalendar struct{}

// TradingDates returns every weekday within [start, end] as YYYYMMDD strings.
func (WeekdayCalendar) TradingDates(_ context.Context, start, end time.Time) ([]string, error) {
	var dates []string
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		switch d.Weekday() {
		case time.Saturday, time.Sunday:
			continue
		default:
			dates = append(dates, d.Format("20060102"))
		}
	}
	return dates, nil
}
