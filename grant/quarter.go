/*
quarter.go - Quarter derivation from a grant's start date

A grant's life is four 3-month windows anchored on its start date, not on
the calendar year. Which window "now" falls into is pure arithmetic:

  monthsElapsed = whole months from start to now (day-of-month ignored)
  index         = monthsElapsed / 3, clamped to [0, 3]

Clamping means dates past month 12 still resolve to Q4 ("spend the rest
by year-end"), and a grant whose start date is in the future resolves to
Q1 (negative elapsed months floor below zero and clamp up).
*/
package grant

import "fmt"

// =============================================================================
// QUARTER - Derived, never stored
// =============================================================================

var quarterLabels = [4]string{"Q1", "Q2", "Q3", "Q4"}

// Quarter locates "now" within a grant's lifecycle.
type Quarter struct {
	Index         int    // 0..3
	Label         string // "Q1".."Q4"
	Period        string // display period, e.g. "Q3-2025"
	Start         Date
	End           Date // last day of the quarter
	DaysRemaining int
	Active        bool // now within [Start, End]
}

// CurrentQuarter maps a grant start date and "now" to the quarter the
// grant is in. No error conditions.
func CurrentQuarter(start, now Date) Quarter {
	index := MonthsBetween(start, now) / 3
	if index < 0 {
		index = 0
	}
	if index > 3 {
		index = 3
	}

	qStart := start.AddMonths(index * 3)
	qEnd := start.AddMonths((index + 1) * 3).AddDays(-1)

	remaining := DaysUntil(now, qEnd)
	if remaining < 0 {
		remaining = 0
	}

	// Period year follows the quarter's first month, not "now".
	periodYear := start.Year() + (int(start.Month())-1+index*3)/12

	return Quarter{
		Index:         index,
		Label:         quarterLabels[index],
		Period:        fmt.Sprintf("%s-%d", quarterLabels[index], periodYear),
		Start:         qStart,
		End:           qEnd,
		DaysRemaining: remaining,
		Active:        now.AfterOrEqual(qStart) && now.BeforeOrEqual(qEnd),
	}
}
