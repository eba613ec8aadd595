package mailbox

import "time"

// Range is a half-open time window: Start <= t < End.
// A zero Start or End means unbounded on that side.
type Range struct {
	Start time.Time
	End   time.Time
}

// NewRange builds a Range from explicit, inclusive calendar dates.
// from is normalized to midnight of its day; to is converted from an
// inclusive end date to an exclusive bound at midnight of the next day,
// so membership checks are always Start <= t < End.
// Either argument may be the zero time to leave that side open.
func NewRange(from, to time.Time) Range {
	var r Range
	if !from.IsZero() {
		r.Start = startOfDay(from)
	}
	if !to.IsZero() {
		r.End = startOfDay(to).AddDate(0, 0, 1)
	}
	return r
}

// LastDays returns the window covering the last n days including today.
// For n=1 it covers only today; n<1 yields an unbounded Range.
func LastDays(n int, today time.Time) Range {
	if n < 1 {
		return Range{}
	}
	day := startOfDay(today)
	return Range{
		Start: day.AddDate(0, 0, -(n - 1)),
		End:   day.AddDate(0, 0, 1),
	}
}

// Widest returns the most permissive of the given ranges: the earliest
// start and latest end, with an unbounded side always winning. Used when
// several named windows are requested at once.
func Widest(ranges ...Range) Range {
	if len(ranges) == 0 {
		return Range{}
	}
	out := ranges[0]
	for _, r := range ranges[1:] {
		if r.Start.IsZero() {
			out.Start = time.Time{}
		} else if !out.Start.IsZero() && r.Start.Before(out.Start) {
			out.Start = r.Start
		}
		if r.End.IsZero() {
			out.End = time.Time{}
		} else if !out.End.IsZero() && r.End.After(out.End) {
			out.End = r.End
		}
	}
	return out
}

// IsZero reports whether the range imposes no filtering at all.
func (r Range) IsZero() bool {
	return r.Start.IsZero() && r.End.IsZero()
}

// Contains reports whether t falls inside the window.
func (r Range) Contains(t time.Time) bool {
	if !r.Start.IsZero() && t.Before(r.Start) {
		return false
	}
	if !r.End.IsZero() && !t.Before(r.End) {
		return false
	}
	return true
}

// ContainsMessage applies the range to a message date. Messages with a
// missing or unparsable Date header (hasDate=false) are always kept:
// ambiguity must never silently drop mail.
func (r Range) ContainsMessage(t time.Time, hasDate bool) bool {
	if !hasDate {
		return true
	}
	return r.Contains(t)
}

// IMAPSince returns the Start formatted as an IMAP date token
// (DD-Mon-YYYY, e.g. 05-Dec-2025), or "" when unbounded. SINCE is
// inclusive by protocol definition.
func (r Range) IMAPSince() string {
	if r.Start.IsZero() {
		return ""
	}
	return imapDate(r.Start)
}

// IMAPBefore returns the End as an IMAP date token, or "" when unbounded.
// BEFORE is exclusive by protocol definition, which matches the internal
// exclusive-end convention, so no extra day arithmetic is needed here.
func (r Range) IMAPBefore() string {
	if r.End.IsZero() {
		return ""
	}
	return imapDate(r.End)
}

func imapDate(t time.Time) string {
	return t.Format("02-Jan-2006")
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
