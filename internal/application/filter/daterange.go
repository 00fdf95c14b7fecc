package filter

import (
	"time"

	"github.com/baechuer/real-time-ressys/client-core/internal/domain"
)

type DateRange string

const (
	RangeToday       DateRange = "today"
	RangeTomorrow    DateRange = "tomorrow"
	RangeThisWeek    DateRange = "thisweek"
	RangeThisWeekend DateRange = "thisweekend"
	RangeNextWeek    DateRange = "nextweek"
	RangeNextWeekend DateRange = "nextweekend"
	RangeThisMonth   DateRange = "thismonth"
)

// Bounds returns the inclusive first and last calendar day of r relative to
// now, at midnight in now's location. Weeks run Monday to Sunday; a weekend
// is the Saturday and Sunday of its week.
func Bounds(r DateRange, now time.Time) (from, to time.Time, ok bool) {
	today := dayOf(now)
	// days since Monday
	offset := (int(today.Weekday()) + 6) % 7
	monday := today.AddDate(0, 0, -offset)

	switch r {
	case RangeToday:
		return today, today, true
	case RangeTomorrow:
		t := today.AddDate(0, 0, 1)
		return t, t, true
	case RangeThisWeek:
		return monday, monday.AddDate(0, 0, 6), true
	case RangeThisWeekend:
		return monday.AddDate(0, 0, 5), monday.AddDate(0, 0, 6), true
	case RangeNextWeek:
		next := monday.AddDate(0, 0, 7)
		return next, next.AddDate(0, 0, 6), true
	case RangeNextWeekend:
		next := monday.AddDate(0, 0, 7)
		return next.AddDate(0, 0, 5), next.AddDate(0, 0, 6), true
	case RangeThisMonth:
		first := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, today.Location())
		return first, first.AddDate(0, 1, -1), true
	default:
		return time.Time{}, time.Time{}, false
	}
}

// ApplyDateRange keeps events whose date falls in r. Unknown ranges and
// undated events match nothing.
func ApplyDateRange(events []*domain.Event, r DateRange, now time.Time) []*domain.Event {
	from, to, ok := Bounds(r, now)
	if !ok {
		return []*domain.Event{}
	}
	return keep(events, func(e *domain.Event) bool {
		d, ok := EventDay(e, now.Location())
		return ok && !d.Before(from) && !d.After(to)
	})
}

// EventDay reads the event's calendar date from the YYYY-MM-DD prefix of
// its date field, as a local date in loc. Time zone suffixes are ignored so
// the day never shifts.
func EventDay(e *domain.Event, loc *time.Location) (time.Time, bool) {
	if e == nil || len(e.Date) < 10 {
		return time.Time{}, false
	}
	d, err := time.ParseInLocation("2006-01-02", e.Date[:10], loc)
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}

func dayOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
