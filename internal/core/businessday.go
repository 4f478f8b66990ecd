package core

import "time"

// BusinessOffset is the fixed offset of the business calendar. It does not follow
// the device zone or any daylight saving rule.
const BusinessOffset = -4 * time.Hour

// DayLayout is the calendar-day format used on the wire and in local storage.
const DayLayout = "2006-01-02"

// BusinessZone is the fixed UTC-4 zone business days are computed in.
var BusinessZone = time.FixedZone("UTC-4", int(BusinessOffset/time.Second))

// BusinessDay returns the business calendar day containing now.
func BusinessDay(now time.Time) string {
	return now.In(BusinessZone).Format(DayLayout)
}

// Clock supplies wall-clock time.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// SystemClock reads the real wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Today returns the business day for the clock's current time.
func Today(c Clock) string {
	return BusinessDay(c.Now())
}
