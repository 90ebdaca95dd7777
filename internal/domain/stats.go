package domain

import (
	"math"
	"time"
)

// DueSoonWindow is how far ahead an active ticket's due date counts as due soon.
const DueSoonWindow = 3 * 24 * time.Hour

// StatsWindow fixes the instants every dashboard counter is evaluated against.
type StatsWindow struct {
	Now          time.Time
	WeekStart    time.Time
	DueSoonUntil time.Time
}

// NewStatsWindow anchors a window at now. Weeks start on Monday 00:00 in
// now's location.
func NewStatsWindow(now time.Time) StatsWindow {
	return StatsWindow{
		Now:          now,
		WeekStart:    StartOfWeek(now),
		DueSoonUntil: now.Add(DueSoonWindow),
	}
}

// FreshUntil is the first instant at which counts taken in w can differ
// without any ticket changing: a due date passing, a due date entering the
// due-soon window or the week rolling over.
func (w StatsWindow) FreshUntil(c StatsCounts) time.Time {
	until := w.WeekStart.AddDate(0, 0, 7)
	if !c.NextDueAt.IsZero() && c.NextDueAt.Before(until) {
		until = c.NextDueAt
	}
	if !c.NextDueAfterWindow.IsZero() {
		if enters := c.NextDueAfterWindow.Add(-DueSoonWindow); enters.Before(until) {
			until = enters
		}
	}
	return until
}

// StartOfWeek returns Monday 00:00 of the week containing t.
func StartOfWeek(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7
	y, m, d := t.Date()
	return time.Date(y, m, d-offset, 0, 0, 0, 0, t.Location())
}

// StatsCounts are the raw counters a ticket store reports.
type StatsCounts struct {
	Open             int
	InProgress       int
	Waiting          int
	Resolved         int
	Closed           int
	ResolvedThisWeek int
	Unassigned       int
	DueSoon          int
	PastDue          int
	Active           int
	Reopened         int
	// AvgFirstResponse is the unrounded mean; zero without data.
	AvgFirstResponse float64
	// NextDueAt is the earliest active due date not yet passed; zero when
	// there is none.
	NextDueAt time.Time
	// NextDueAfterWindow is the earliest active due date beyond
	// DueSoonUntil; zero when there is none.
	NextDueAfterWindow time.Time
}

// Stats is the dashboard summary.
type Stats struct {
	Open                    int
	InProgress              int
	Waiting                 int
	Resolved                int
	Closed                  int
	ResolvedThisWeek        int
	Unassigned              int
	DueSoon                 int
	PastDue                 int
	Active                  int
	Reopened                int
	SLABreachRate           int
	AvgFirstResponseMinutes int
}

// Stats derives the rounded dashboard figures.
func (c StatsCounts) Stats() Stats {
	return Stats{
		Open:                    c.Open,
		InProgress:              c.InProgress,
		Waiting:                 c.Waiting,
		Resolved:                c.Resolved,
		Closed:                  c.Closed,
		ResolvedThisWeek:        c.ResolvedThisWeek,
		Unassigned:              c.Unassigned,
		DueSoon:                 c.DueSoon,
		PastDue:                 c.PastDue,
		Active:                  c.Active,
		Reopened:                c.Reopened,
		SLABreachRate:           SLABreachRate(c.PastDue, c.Active),
		AvgFirstResponseMinutes: int(math.Round(c.AvgFirstResponse)),
	}
}

// SLABreachRate is pastDue as a rounded percentage of active, 0 when
// nothing is active.
func SLABreachRate(pastDue, active int) int {
	if active <= 0 {
		return 0
	}
	return int(math.Round(float64(pastDue) / float64(active) * 100))
}

// CountStats evaluates every counter over tickets.
func CountStats(tickets []Ticket, window StatsWindow) StatsCounts {
	var counts StatsCounts
	responseSum, responseN := 0, 0
	for _, t := range tickets {
		switch t.Status {
		case TicketStatusOpen:
			counts.Open++
		case TicketStatusInProgress:
			counts.InProgress++
		case TicketStatusWaiting:
			counts.Waiting++
		case TicketStatusResolved:
			counts.Resolved++
			if t.ResolvedAt != nil && within(*t.ResolvedAt, window.WeekStart, window.Now) {
				counts.ResolvedThisWeek++
			}
		case TicketStatusClosed:
			counts.Closed++
		}
		if t.AssigneeID == nil {
			counts.Unassigned++
		}
		if t.Status.IsActive() {
			counts.Active++
			if t.DueAt != nil {
				if within(*t.DueAt, window.Now, window.DueSoonUntil) {
					counts.DueSoon++
				}
				if t.DueAt.Before(window.Now) {
					counts.PastDue++
				} else {
					counts.NextDueAt = earliest(counts.NextDueAt, *t.DueAt)
				}
				if t.DueAt.After(window.DueSoonUntil) {
					counts.NextDueAfterWindow = earliest(counts.NextDueAfterWindow, *t.DueAt)
				}
			}
		}
		if t.FirstResponseMinutes != nil {
			responseSum += *t.FirstResponseMinutes
			responseN++
		}
		if t.ReopenCount > 0 {
			counts.Reopened++
		}
	}
	if responseN > 0 {
		counts.AvgFirstResponse = float64(responseSum) / float64(responseN)
	}
	return counts
}

// earliest returns the earlier of cur and t, treating a zero cur as unset.
func earliest(cur, t time.Time) time.Time {
	if cur.IsZero() || t.Before(cur) {
		return t
	}
	return cur
}

// within is an inclusive range check.
func within(t, from, to time.Time) bool {
	return !t.Before(from) && !t.After(to)
}
