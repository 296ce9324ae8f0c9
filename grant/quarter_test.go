package grant_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/unseaf/grant-engine/grant"
)

// =============================================================================
// QUARTER DERIVATION TESTS
// =============================================================================

func TestCurrentQuarter_IndexByElapsedMonths(t *testing.T) {
	// GIVEN: A grant started January 15, 2025
	// WHEN: Deriving the quarter at increasing distances from the start
	// THEN: The index advances one step every three whole months

	start := grant.NewDate(2025, time.January, 15)

	cases := []struct {
		name  string
		now   grant.Date
		index int
		label string
	}{
		{"start day", grant.NewDate(2025, time.January, 15), 0, "Q1"},
		{"two months in", grant.NewDate(2025, time.March, 31), 0, "Q1"},
		{"three months in", grant.NewDate(2025, time.April, 1), 1, "Q2"},
		{"five months in", grant.NewDate(2025, time.June, 30), 1, "Q2"},
		{"seven months in", grant.NewDate(2025, time.August, 20), 2, "Q3"},
		{"ten months in", grant.NewDate(2025, time.November, 2), 3, "Q4"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			q := grant.CurrentQuarter(start, tc.now)
			assert.Equal(t, tc.index, q.Index)
			assert.Equal(t, tc.label, q.Label)
		})
	}
}

func TestCurrentQuarter_DayOfMonthIgnored(t *testing.T) {
	// GIVEN: A grant started January 31
	// WHEN: Deriving the quarter on April 1 (months differ by 3, days do not)
	// THEN: The grant is already in Q2; elapsed months count year/month only

	start := grant.NewDate(2025, time.January, 31)
	q := grant.CurrentQuarter(start, grant.NewDate(2025, time.April, 1))

	assert.Equal(t, 1, q.Index)
	assert.Equal(t, "Q2", q.Label)
}

func TestCurrentQuarter_ClampsPastMonthTwelve(t *testing.T) {
	// GIVEN: A grant started over two years ago
	// WHEN: Deriving the current quarter
	// THEN: The index clamps at Q4; the grant never leaves its final window

	start := grant.NewDate(2023, time.March, 1)
	q := grant.CurrentQuarter(start, grant.NewDate(2025, time.August, 28))

	assert.Equal(t, 3, q.Index)
	assert.Equal(t, "Q4", q.Label)
	// Now is past the nominal Q4 end, so the window is no longer active
	// and no days remain.
	assert.False(t, q.Active)
	assert.Equal(t, 0, q.DaysRemaining)
}

func TestCurrentQuarter_FutureStartResolvesToQ1(t *testing.T) {
	// GIVEN: A grant whose start date has not arrived yet
	// WHEN: Deriving the current quarter
	// THEN: Negative elapsed months clamp up to Q1

	start := grant.NewDate(2026, time.January, 1)
	q := grant.CurrentQuarter(start, grant.NewDate(2025, time.August, 28))

	assert.Equal(t, 0, q.Index)
	assert.Equal(t, "Q1", q.Label)
	assert.False(t, q.Active, "the window has not opened yet")
}

func TestCurrentQuarter_Boundaries(t *testing.T) {
	// GIVEN: A grant started March 10, 2025, currently in Q2
	// WHEN: Reading the quarter window
	// THEN: Q2 runs June 10 through September 9 inclusive

	start := grant.NewDate(2025, time.March, 10)
	q := grant.CurrentQuarter(start, grant.NewDate(2025, time.July, 1))

	assert.Equal(t, "Q2", q.Label)
	assert.Equal(t, grant.NewDate(2025, time.June, 10), q.Start)
	assert.Equal(t, grant.NewDate(2025, time.September, 9), q.End)
	assert.True(t, q.Active)
}

func TestCurrentQuarter_PeriodFollowsQuarterStartYear(t *testing.T) {
	// GIVEN: A grant started in November 2024
	// WHEN: Deriving Q2, whose window opens in February 2025
	// THEN: The display period carries the quarter's year, not the start's

	start := grant.NewDate(2024, time.November, 1)
	q := grant.CurrentQuarter(start, grant.NewDate(2025, time.March, 15))

	assert.Equal(t, "Q2", q.Label)
	assert.Equal(t, "Q2-2025", q.Period)
}

func TestCurrentQuarter_DaysRemaining(t *testing.T) {
	// GIVEN: A grant in Q1 with ten days left in the window
	// WHEN: Reading DaysRemaining
	// THEN: It counts whole days from now to the window's last day

	start := grant.NewDate(2025, time.June, 1)
	// Q1 ends August 31; ten days out is August 21.
	q := grant.CurrentQuarter(start, grant.NewDate(2025, time.August, 21))

	assert.Equal(t, grant.NewDate(2025, time.August, 31), q.End)
	assert.Equal(t, 10, q.DaysRemaining)
}

// =============================================================================
// DATE ARITHMETIC TESTS
// =============================================================================

func TestAddBusinessDays_SkipsWeekends(t *testing.T) {
	// GIVEN: A Thursday
	// WHEN: Adding 5 business days
	// THEN: Saturday and Sunday do not count

	thursday := grant.NewDate(2025, time.August, 21)
	got := thursday.AddBusinessDays(5)

	// Fri 22, Mon 25, Tue 26, Wed 27, Thu 28.
	assert.Equal(t, grant.NewDate(2025, time.August, 28), got)
}

func TestMonthsBetween_NegativeForFutureStart(t *testing.T) {
	start := grant.NewDate(2025, time.December, 1)
	now := grant.NewDate(2025, time.August, 28)

	assert.Equal(t, -4, grant.MonthsBetween(start, now))
}
