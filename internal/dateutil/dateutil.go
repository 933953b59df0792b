// Package dateutil does the ISO-week math the entity layer needs for
// weekly keyword bucketing (reflection dates are checked by
// internal/validation instead). Standard library time.Time already implements ISO-8601
// week numbering correctly, so this package is a thin, well-named
// wrapper rather than reimplemented calendar arithmetic.
package dateutil

import "time"

// WeekBounds returns the Monday 00:00:00 through the following Monday
// 00:00:00 (exclusive) UTC bounds of ISO year/week, matching
// time.Time.ISOWeek's definition: week 1 is the week containing
// January 4th.
func WeekBounds(year, week int) (start, end time.Time) {
	// Jan 4 is always in ISO week 1 of its year.
	jan4 := time.Date(year, time.January, 4, 0, 0, 0, 0, time.UTC)
	// Back up to that week's Monday.
	offset := int(jan4.Weekday())
	if offset == 0 {
		offset = 7 // Sunday
	}
	week1Monday := jan4.AddDate(0, 0, -(offset - 1))

	start = week1Monday.AddDate(0, 0, (week-1)*7)
	end = start.AddDate(0, 0, 7)
	return start, end
}
