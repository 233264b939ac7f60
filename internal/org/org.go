// Package org renders calendar events as an org-mode agenda document.
package org

import (
	"sort"
	"strings"
	"time"

	"github.com/tazhate/orgcal/internal/clients/caldav"
)

const (
	dateLayout     = "2006-01-02 Mon"
	dateTimeLayout = "2006-01-02 Mon 15:04"
	timeLayout     = "15:04"
)

// Document renders events as org-mode blocks sorted by ascending start
// time. Events without a start time are dropped. The result depends only
// on the set of events, not their input order.
func Document(events []caldav.Event) string {
	sorted := make([]caldav.Event, 0, len(events))
	for _, e := range events {
		if e.StartTime.IsZero() {
			continue
		}
		sorted = append(sorted, e)
	}

	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].StartTime.Equal(sorted[j].StartTime) {
			return sorted[i].StartTime.Before(sorted[j].StartTime)
		}
		return sorted[i].Summary < sorted[j].Summary
	})

	var sb strings.Builder
	for _, e := range sorted {
		writeEvent(&sb, e)
	}
	return sb.String()
}

func writeEvent(sb *strings.Builder, e caldav.Event) {
	sb.WriteString("* ")
	if e.Calendar != "" {
		sb.WriteString(e.Calendar)
		sb.WriteString(": ")
	}
	sb.WriteString(e.Summary)
	sb.WriteString("\n  ")
	sb.WriteString(Timestamp(e))
	sb.WriteString("\n")
	if e.Location != "" {
		sb.WriteString("  ")
		sb.WriteString(e.Location)
		sb.WriteString("\n")
	}
}

// Timestamp renders the active timestamp for an event:
//
//	<2024-01-02 Tue 09:00-09:15>                      same-day range
//	<2024-01-02 Tue 09:00>--<2024-01-03 Wed 10:00>    spans midnight
//	<2024-01-02 Tue 09:00>                            no end time
//	<2024-01-02 Tue>                                  all-day
func Timestamp(e caldav.Event) string {
	start := e.StartTime

	if e.AllDay {
		// DTEND of an all-day event is exclusive.
		lastDay := e.EndTime.AddDate(0, 0, -1)
		if e.EndTime.IsZero() || !lastDay.After(start) {
			return "<" + start.Format(dateLayout) + ">"
		}
		return "<" + start.Format(dateLayout) + ">--<" + lastDay.Format(dateLayout) + ">"
	}

	if e.EndTime.IsZero() {
		return "<" + start.Format(dateTimeLayout) + ">"
	}

	if sameDay(start, e.EndTime) {
		return "<" + start.Format(dateTimeLayout) + "-" + e.EndTime.Format(timeLayout) + ">"
	}

	return "<" + start.Format(dateTimeLayout) + ">--<" + e.EndTime.Format(dateTimeLayout) + ">"
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}
