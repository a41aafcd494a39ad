package locale

import (
	"errors"
	"fmt"
	"time"

	ptime "github.com/yaa110/go-persian-calendar"
)

// ErrInvalidDate reports a Jalali date outside the calendar's valid range.
var ErrInvalidDate = errors.New("invalid jalali date")

// JalaliToUTC converts a Jalali civil date and wall-clock time, interpreted in
// the Asia/Tehran zone, into a UTC timestamp with minute precision.
func JalaliToUTC(year, month, day, hour, minute int) (time.Time, error) {
	if month < 1 || month > 12 {
		return time.Time{}, fmt.Errorf("%w: month %d", ErrInvalidDate, month)
	}
	if day < 1 || day > jalaliMonthLen(year, month) {
		return time.Time{}, fmt.Errorf("%w: day %d of month %d", ErrInvalidDate, day, month)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return time.Time{}, fmt.Errorf("%w: time %02d:%02d", ErrInvalidDate, hour, minute)
	}

	pt := ptime.Date(year, ptime.Month(month), day, hour, minute, 0, 0, ptime.Iran())
	return pt.Time().UTC(), nil
}

// jalaliMonthLen returns the number of days in the given Jalali month.
// Months 1-6 have 31 days, 7-11 have 30, and Esfand has 29 (30 in leap years).
func jalaliMonthLen(year, month int) int {
	switch {
	case month <= 6:
		return 31
	case month <= 11:
		return 30
	default:
		if ptime.Date(year, ptime.Farvardin, 1, 0, 0, 0, 0, ptime.Iran()).IsLeap() {
			return 30
		}
		return 29
	}
}
