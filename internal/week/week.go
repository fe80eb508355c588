// Package week resolves the reporting window for a weekly report.
//
// A reporting window is the Monday-Friday business week a report refers to.
// Which week that is depends on when the job runs, so callers choose a Policy
// explicitly instead of relying on a built-in guess.
package week

import (
	"fmt"
	"strings"
	"time"
)

type policyKind int

const (
	kindStrictPrior policyKind = iota
	kindCutoff
)

// Policy decides which Monday starts the reporting window.
type Policy struct {
	kind   policyKind
	cutoff time.Weekday
}

// StrictPriorWeek always targets the week strictly before the one containing today.
func StrictPriorWeek() Policy {
	return Policy{kind: kindStrictPrior}
}

// CurrentOrPriorWithCutoff targets the previous week when today is on or
// before cutoff, and the week containing today otherwise.
func CurrentOrPriorWithCutoff(cutoff time.Weekday) Policy {
	return Policy{kind: kindCutoff, cutoff: cutoff}
}

// Cutoff returns the cutoff weekday and whether the policy uses one.
func (p Policy) Cutoff() (time.Weekday, bool) {
	return p.cutoff, p.kind == kindCutoff
}

func (p Policy) String() string {
	if p.kind == kindCutoff {
		return "cutoff:" + strings.ToLower(p.cutoff.String())
	}
	return "strict"
}

// ParsePolicy parses "strict" or "cutoff:<weekday>" (e.g. "cutoff:tuesday").
func ParsePolicy(s string) (Policy, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" || s == "strict" {
		return StrictPriorWeek(), nil
	}

	name, ok := strings.CutPrefix(s, "cutoff:")
	if !ok {
		return Policy{}, fmt.Errorf("unknown week policy %q", s)
	}

	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.ToLower(d.String()) == name || strings.ToLower(d.String()[:3]) == name {
			return CurrentOrPriorWithCutoff(d), nil
		}
	}
	return Policy{}, fmt.Errorf("unknown cutoff weekday %q", name)
}

// DateContext holds the boundaries of a reporting window and the week before it.
type DateContext struct {
	Reference         time.Time
	WeekStart         time.Time
	WeekEnd           time.Time
	PreviousWeekStart time.Time
	PreviousWeekEnd   time.Time
}

// Resolve computes the reporting window for today under p.
// All returned dates are midnight in today's location.
func Resolve(today time.Time, p Policy) DateContext {
	ref := truncateDay(today)
	wd := mondayIndex(ref.Weekday())

	back := wd + 7
	if p.kind == kindCutoff && wd > mondayIndex(p.cutoff) {
		back = wd
	}

	start := ref.AddDate(0, 0, -back)
	prev := start.AddDate(0, 0, -7)

	return DateContext{
		Reference:         ref,
		WeekStart:         start,
		WeekEnd:           start.AddDate(0, 0, 4),
		PreviousWeekStart: prev,
		PreviousWeekEnd:   prev.AddDate(0, 0, 4),
	}
}

// IsCurrentWeek reports whether the window is the week containing Reference,
// which only a cutoff policy produces.
func (c DateContext) IsCurrentWeek() bool {
	monday := c.Reference.AddDate(0, 0, -mondayIndex(c.Reference.Weekday()))
	return c.WeekStart.Equal(monday)
}

// Key identifies the reporting window; it is the ISO date of WeekStart.
func (c DateContext) Key() string {
	return c.WeekStart.Format(time.DateOnly)
}

func (c DateContext) String() string {
	return fmt.Sprintf("%s..%s (prev %s..%s)",
		c.WeekStart.Format(time.DateOnly), c.WeekEnd.Format(time.DateOnly),
		c.PreviousWeekStart.Format(time.DateOnly), c.PreviousWeekEnd.Format(time.DateOnly))
}

// mondayIndex maps Monday..Sunday to 0..6.
func mondayIndex(d time.Weekday) int {
	return (int(d) + 6) % 7
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
