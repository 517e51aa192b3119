package dataprocessing

import (
	"time"
)

// DateID encodes the calendar date of t as a YYYYMMDD integer
func DateID(t time.Time) int64 {
	return int64(t.Year())*10000 + int64(t.Month())*100 + int64(t.Day())
}

// DecodeDateID converts a YYYYMMDD integer back to midnight UTC of that day.
// It returns false for ids that do not name a real calendar day.
func DecodeDateID(id int64) (time.Time, bool) {
	year := int(id / 10000)
	month := time.Month((id / 100) % 100)
	day := int(id % 100)
	d := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if d.Year() != year || d.Month() != month || d.Day() != day {
		return time.Time{}, false
	}
	return d, true
}

// isoWeekday returns the day of the week with Monday as 0
func isoWeekday(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

func quarterOf(t time.Time) int {
	return (int(t.Month())-1)/3 + 1
}

func isWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

