package utils

import "time"

// Clock is the time source of version stamps, receipt quotas and ledger dates.
type Clock interface {
	Now() time.Time
}

// SystemClock reports wall time in UTC, the zone every stored timestamp uses.
type SystemClock struct{}

func (s SystemClock) Now() time.Time {
	return time.Now().UTC()
}

type MockClock struct {
	FixedNow time.Time
}

func (m *MockClock) Now() time.Time {
	return m.FixedNow
}

func (m *MockClock) SetNow(now time.Time) {
	m.FixedNow = now
}

// Advance moves the clock forward, e.g. into the next quota month.
func (m *MockClock) Advance(d time.Duration) {
	m.FixedNow = m.FixedNow.Add(d)
}

// StartOfMonth is midnight of the first day of t's month, in t's location. Receipt quotas
// count from there.
func StartOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

// DateOf keeps the calendar date of t as seen in its own location, at midnight UTC. Ledger
// entries are dated this way so a receipt issued late in the evening keeps its day.
func DateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
