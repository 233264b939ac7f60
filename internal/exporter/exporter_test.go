package exporter_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tazhate/orgcal/config"
	"github.com/tazhate/orgcal/internal/clients/caldav"
	"github.com/tazhate/orgcal/internal/exporter"
)

// stubSource replays canned calendars and events per calendar path.
type stubSource struct {
	calendars []caldav.Calendar
	events    map[string][]caldav.Event
	err       error
}

func (s *stubSource) DiscoverCalendars(_ context.Context) ([]caldav.Calendar, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.calendars, nil
}

func (s *stubSource) GetEvents(_ context.Context, path string, _, _ time.Time) ([]caldav.Event, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.events[path], nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Username:   "alice",
		Password:   "secret",
		ServerURL:  "https://dav.example.com/",
		Days:       14,
		OutputPath: filepath.Join(t.TempDir(), "cal.org"),
		Timezone:   time.UTC,
	}
}

func upcoming(summary string, inDays int) caldav.Event {
	start := time.Now().UTC().AddDate(0, 0, inDays).Truncate(time.Hour)
	return caldav.Event{
		Summary:   summary,
		StartTime: start,
		EndTime:   start.Add(time.Hour),
	}
}

func TestRunWritesSortedAgenda(t *testing.T) {
	cfg := testConfig(t)

	source := &stubSource{
		calendars: []caldav.Calendar{
			{Path: "/cal/work/", Name: "Work"},
			{Path: "/cal/team/", Name: "Team"},
		},
		events: map[string][]caldav.Event{
			"/cal/work/": {upcoming("Later meeting", 5)},
			"/cal/team/": {upcoming("Earlier meeting", 1)},
		},
	}

	res, err := exporter.New(cfg, source, nil).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, res.Calendars)
	assert.Equal(t, 2, res.Fetched)
	assert.Equal(t, 2, res.Written)
	assert.Equal(t, cfg.OutputPath, res.Output)

	data, err := os.ReadFile(cfg.OutputPath)
	require.NoError(t, err)
	doc := string(data)

	assert.Contains(t, doc, "* Team: Earlier meeting")
	assert.Contains(t, doc, "* Work: Later meeting")
	assert.Less(t,
		strings.Index(doc, "Earlier meeting"),
		strings.Index(doc, "Later meeting"),
		"events must be sorted by start time")
}

func TestRunUsesConfiguredCalendarsAndAliases(t *testing.T) {
	cfg := testConfig(t)
	cfg.Calendars = []config.CalendarRef{
		{Name: "IAS-7 PED simulation", Alias: "Division"},
	}

	source := &stubSource{
		calendars: []caldav.Calendar{
			{Path: "/cal/sim/", Name: "IAS-7 PED simulation"},
			{Path: "/cal/other/", Name: "Other"},
		},
		events: map[string][]caldav.Event{
			"/cal/sim/":   {upcoming("PRO Runde", 2)},
			"/cal/other/": {upcoming("Ignored", 2)},
		},
	}

	res, err := exporter.New(cfg, source, nil).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Calendars)

	data, err := os.ReadFile(cfg.OutputPath)
	require.NoError(t, err)

	assert.Contains(t, string(data), "* Division: PRO Runde")
	assert.NotContains(t, string(data), "Ignored")
}

func TestRunUnknownCalendarName(t *testing.T) {
	cfg := testConfig(t)
	cfg.Calendars = []config.CalendarRef{{Name: "Missing"}}

	source := &stubSource{
		calendars: []caldav.Calendar{{Path: "/cal/work/", Name: "Work"}},
	}

	_, err := exporter.New(cfg, source, nil).Run(context.Background())
	assert.ErrorContains(t, err, `calendar "Missing" not found`)
	assert.NoFileExists(t, cfg.OutputPath)
}

func TestRunFiltersByKeyword(t *testing.T) {
	cfg := testConfig(t)
	cfg.Keywords = []string{"Journal Club", "PhD"}

	source := &stubSource{
		calendars: []caldav.Calendar{{Path: "/cal/work/", Name: "Work"}},
		events: map[string][]caldav.Event{
			"/cal/work/": {
				upcoming("Journal Club: pedestrians", 1),
				upcoming("Coffee break", 2),
				upcoming("PhD workshop", 3),
			},
		},
	}

	res, err := exporter.New(cfg, source, nil).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, res.Fetched)
	assert.Equal(t, 2, res.Written)

	data, err := os.ReadFile(cfg.OutputPath)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "Coffee break")
}

func TestRunEmptyCalendarStillWritesFile(t *testing.T) {
	cfg := testConfig(t)

	source := &stubSource{
		calendars: []caldav.Calendar{{Path: "/cal/work/", Name: "Work"}},
	}

	res, err := exporter.New(cfg, source, nil).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, res.Written)

	data, err := os.ReadFile(cfg.OutputPath)
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestRunFailureLeavesExistingFileUntouched(t *testing.T) {
	cfg := testConfig(t)
	previous := "* Old agenda\n"
	require.NoError(t, os.WriteFile(cfg.OutputPath, []byte(previous), 0644))

	source := &stubSource{err: caldav.ErrConnect}

	_, err := exporter.New(cfg, source, nil).Run(context.Background())
	assert.ErrorIs(t, err, caldav.ErrConnect)

	data, readErr := os.ReadFile(cfg.OutputPath)
	require.NoError(t, readErr)
	assert.Equal(t, previous, string(data))
}

func TestRunWriteErrorWrapsErrWrite(t *testing.T) {
	cfg := testConfig(t)
	cfg.OutputPath = filepath.Join(cfg.OutputPath, "missing-dir", "cal.org")

	source := &stubSource{
		calendars: []caldav.Calendar{{Path: "/cal/work/", Name: "Work"}},
	}

	_, err := exporter.New(cfg, source, nil).Run(context.Background())
	assert.ErrorIs(t, err, exporter.ErrWrite)
}
