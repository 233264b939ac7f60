package org_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/tazhate/orgcal/internal/clients/caldav"
	"github.com/tazhate/orgcal/internal/org"
)

func event(summary string, start, end time.Time) caldav.Event {
	return caldav.Event{Summary: summary, StartTime: start, EndTime: end}
}

func at(day, hour, min int) time.Time {
	return time.Date(2024, 1, day, hour, min, 0, 0, time.UTC)
}

func TestDocumentRoundTrip(t *testing.T) {
	e := event("Standup", at(2, 9, 0), at(2, 9, 15))
	e.Location = "Room A"

	doc := org.Document([]caldav.Event{e})

	assert.Equal(t, "* Standup\n  <2024-01-02 Tue 09:00-09:15>\n  Room A\n", doc)
}

func TestDocumentSortsByStartTime(t *testing.T) {
	events := []caldav.Event{
		event("Later", at(3, 10, 0), at(3, 11, 0)),
		event("Earlier", at(2, 9, 0), at(2, 10, 0)),
		event("Middle", at(2, 15, 0), at(2, 16, 0)),
	}

	doc := org.Document(events)

	assert.Less(t, strings.Index(doc, "* Earlier"), strings.Index(doc, "* Middle"))
	assert.Less(t, strings.Index(doc, "* Middle"), strings.Index(doc, "* Later"))
}

func TestDocumentIsDeterministic(t *testing.T) {
	a := event("A", at(2, 9, 0), at(2, 10, 0))
	b := event("B", at(3, 9, 0), at(3, 10, 0))
	c := event("C", at(4, 9, 0), at(4, 10, 0))

	assert.Equal(t,
		org.Document([]caldav.Event{a, b, c}),
		org.Document([]caldav.Event{c, a, b}),
	)
}

func TestDocumentEmpty(t *testing.T) {
	assert.Equal(t, "", org.Document(nil))
	assert.Equal(t, "", org.Document([]caldav.Event{}))
}

func TestDocumentDropsEventsWithoutStart(t *testing.T) {
	events := []caldav.Event{
		{Summary: "No start"},
		event("Kept", at(2, 9, 0), at(2, 10, 0)),
	}

	doc := org.Document(events)

	assert.NotContains(t, doc, "No start")
	assert.Contains(t, doc, "* Kept")
}

func TestDocumentCalendarPrefix(t *testing.T) {
	e := event("Standup", at(2, 9, 0), at(2, 9, 15))
	e.Calendar = "Division"

	assert.Contains(t, org.Document([]caldav.Event{e}), "* Division: Standup\n")
}

func TestTimestamp(t *testing.T) {
	tests := []struct {
		name  string
		event caldav.Event
		want  string
	}{
		{
			"same-day range",
			event("", at(2, 9, 0), at(2, 9, 15)),
			"<2024-01-02 Tue 09:00-09:15>",
		},
		{
			"no end time",
			event("", at(2, 9, 0), time.Time{}),
			"<2024-01-02 Tue 09:00>",
		},
		{
			"spans midnight",
			event("", at(2, 22, 0), at(3, 2, 0)),
			"<2024-01-02 Tue 22:00>--<2024-01-03 Wed 02:00>",
		},
		{
			"all-day",
			caldav.Event{StartTime: at(2, 0, 0), EndTime: at(3, 0, 0), AllDay: true},
			"<2024-01-02 Tue>",
		},
		{
			"multi-day all-day",
			caldav.Event{StartTime: at(2, 0, 0), EndTime: at(5, 0, 0), AllDay: true},
			"<2024-01-02 Tue>--<2024-01-04 Thu>",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, org.Timestamp(tt.event))
		})
	}
}
