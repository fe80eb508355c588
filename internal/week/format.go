package week

import "time"

// Format holds the Go time layouts used for display strings.
type Format struct {
	Long  string
	Short string
	ISO   string
}

// DefaultFormat renders dates the way the Japanese report header expects.
var DefaultFormat = Format{
	Long:  "2006年01月02日",
	Short: "01月02日",
	ISO:   time.DateOnly,
}

// Display carries the formatted strings for a DateContext.
type Display struct {
	WeekStartLong          string
	WeekStartShort         string
	WeekEndLong            string
	WeekEndShort           string
	PreviousWeekStartLong  string
	PreviousWeekStartShort string
	PreviousWeekEndLong    string
	PreviousWeekEndShort   string

	WeekStartISO         string
	WeekEndISO           string
	PreviousWeekStartISO string
	PreviousWeekEndISO   string
}

// Display formats the context with f. Empty layouts fall back to DefaultFormat.
func (c DateContext) Display(f Format) Display {
	if f.Long == "" {
		f.Long = DefaultFormat.Long
	}
	if f.Short == "" {
		f.Short = DefaultFormat.Short
	}
	if f.ISO == "" {
		f.ISO = DefaultFormat.ISO
	}

	return Display{
		WeekStartLong:          c.WeekStart.Format(f.Long),
		WeekStartShort:         c.WeekStart.Format(f.Short),
		WeekEndLong:            c.WeekEnd.Format(f.Long),
		WeekEndShort:           c.WeekEnd.Format(f.Short),
		PreviousWeekStartLong:  c.PreviousWeekStart.Format(f.Long),
		PreviousWeekStartShort: c.PreviousWeekStart.Format(f.Short),
		PreviousWeekEndLong:    c.PreviousWeekEnd.Format(f.Long),
		PreviousWeekEndShort:   c.PreviousWeekEnd.Format(f.Short),

		WeekStartISO:         c.WeekStart.Format(f.ISO),
		WeekEndISO:           c.WeekEnd.Format(f.ISO),
		PreviousWeekStartISO: c.PreviousWeekStart.Format(f.ISO),
		PreviousWeekEndISO:   c.PreviousWeekEnd.Format(f.ISO),
	}
}
