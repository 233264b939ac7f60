package caldav

import "time"

// Calendar is a calendar collection discovered on the server.
type Calendar struct {
	Path string // collection path on the server
	Name string // display name reported by the server
}

// Event is a single calendar event within the queried range.
type Event struct {
	UID         string
	Summary     string
	Description string
	Location    string
	StartTime   time.Time
	EndTime     time.Time
	AllDay      bool
	Calendar    string // display name of the calendar it came from
}
