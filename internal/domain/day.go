package domain

import (
	"fmt"
	"time"
)

const dayLayout = "2006-01-02"

// Day is a civil calendar day in YYYY-MM-DD form.
type Day string

// DayOf returns the civil day of t in t's location.
func DayOf(t time.Time) Day {
	return Day(t.Format(dayLayout))
}

// ParseDay validates s as a civil day.
func ParseDay(s string) (Day, error) {
	if _, err := time.Parse(dayLayout, s); err != nil {
		return "", fmt.Errorf("invalid day %q: %w", s, err)
	}
	return Day(s), nil
}

// Prev returns the day before d.
func (d Day) Prev() (Day, error) {
	t, err := time.Parse(dayLayout, string(d))
	if err != nil {
		return "", fmt.Errorf("invalid day %q: %w", string(d), err)
	}
	return DayOf(t.AddDate(0, 0, -1)), nil
}

func (d Day) String() string {
	return string(d)
}
