package grant

import "time"

// =============================================================================
// DATE - Day-granular point in time
// =============================================================================

// Date is a calendar day in UTC. All quarter math is day-granular:
// the time-of-day never participates in limits or boundaries.
type Date struct {
	Time time.Time
}

// Constructors
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates a timestamp to its UTC calendar day.
func DateOf(t time.Time) Date {
	u := t.UTC()
	return NewDate(u.Year(), u.Month(), u.Day())
}

func Today() Date {
	return DateOf(time.Now())
}

// Comparison
func (d Date) Before(other Date) bool        { return d.normalize().Before(other.normalize()) }
func (d Date) After(other Date) bool         { return d.normalize().After(other.normalize()) }
func (d Date) Equal(other Date) bool         { return d.normalize().Equal(other.normalize()) }
func (d Date) BeforeOrEqual(other Date) bool { return d.Before(other) || d.Equal(other) }
func (d Date) AfterOrEqual(other Date) bool  { return d.After(other) || d.Equal(other) }

func (d Date) normalize() time.Time {
	return time.Date(d.Time.Year(), d.Time.Month(), d.Time.Day(), 0, 0, 0, 0, time.UTC)
}

// Arithmetic
func (d Date) AddDays(n int) Date   { return Date{Time: d.Time.AddDate(0, 0, n)} }
func (d Date) AddMonths(n int) Date { return Date{Time: d.Time.AddDate(0, n, 0)} }

// Properties
func (d Date) Year() int         { return d.Time.Year() }
func (d Date) Month() time.Month { return d.Time.Month() }
func (d Date) Day() int          { return d.Time.Day() }
func (d Date) IsZero() bool      { return d.Time.IsZero() }

func (d Date) String() string { return d.normalize().Format("2006-01-02") }

// DaysUntil returns the number of whole days from d to other.
// Negative if other is in the past.
func DaysUntil(d, other Date) int {
	return int(other.normalize().Sub(d.normalize()).Hours() / 24)
}

// AddBusinessDays advances n working days, skipping weekends.
// Used for expected-completion stamps on withdrawal records.
func (d Date) AddBusinessDays(n int) Date {
	out := d
	for n > 0 {
		out = out.AddDays(1)
		wd := out.Time.Weekday()
		if wd != time.Saturday && wd != time.Sunday {
			n--
		}
	}
	return out
}

// MonthsBetween returns whole months elapsed from start to now, counted by
// year/month only. The day-of-month is deliberately ignored: a grant that
// started January 31 is one month old on February 1.
func MonthsBetween(start, now Date) int {
	return (now.Year()-start.Year())*12 + int(now.Month()) - int(start.Month())
}
