// Package exporter runs the fetch → filter → format → write pipeline.
package exporter

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tazhate/orgcal/config"
	"github.com/tazhate/orgcal/internal/clients/caldav"
	"github.com/tazhate/orgcal/internal/org"
	"github.com/tazhate/orgcal/internal/storage"
)

// ErrWrite marks a failure to produce the output file.
var ErrWrite = errors.New("cannot write output file")

// Source is the calendar backend. *caldav.Client implements it.
type Source interface {
	DiscoverCalendars(ctx context.Context) ([]caldav.Calendar, error)
	GetEvents(ctx context.Context, calendarPath string, from, to time.Time) ([]caldav.Event, error)
}

// Exporter fetches upcoming events and writes the org agenda file.
type Exporter struct {
	cfg     *config.Config
	source  Source
	journal *storage.Storage // optional; nil disables the run journal
}

func New(cfg *config.Config, source Source, journal *storage.Storage) *Exporter {
	return &Exporter{
		cfg:     cfg,
		source:  source,
		journal: journal,
	}
}

// Result describes one completed export.
type Result struct {
	Calendars int
	Fetched   int // events returned by the server
	Written   int // events that survived filtering
	Output    string
}

// Run performs a single export and records it in the journal. On any
// error the existing output file is left untouched.
func (e *Exporter) Run(ctx context.Context) (*Result, error) {
	started := time.Now()
	res, err := e.run(ctx)
	e.record(started, res, err)
	return res, err
}

func (e *Exporter) run(ctx context.Context) (*Result, error) {
	calendars, err := e.resolveCalendars(ctx)
	if err != nil {
		return nil, err
	}

	from := time.Now().In(e.cfg.Timezone)
	to := from.AddDate(0, 0, e.cfg.Days)

	var events []caldav.Event
	for _, cal := range calendars {
		log.Printf("Fetching %q (%s .. %s)", cal.DisplayName(),
			from.Format("2006-01-02"), to.Format("2006-01-02"))

		fetched, err := e.source.GetEvents(ctx, cal.Path, from, to)
		if err != nil {
			return nil, err
		}

		for i := range fetched {
			fetched[i].Calendar = cal.DisplayName()
		}
		events = append(events, fetched...)
	}

	kept := e.filter(events)

	if err := writeFile(e.cfg.OutputPath, org.Document(kept)); err != nil {
		return nil, err
	}

	log.Printf("Wrote %d of %d events to %s", len(kept), len(events), e.cfg.OutputPath)

	return &Result{
		Calendars: len(calendars),
		Fetched:   len(events),
		Written:   len(kept),
		Output:    e.cfg.OutputPath,
	}, nil
}

// resolvedCalendar pairs a server calendar with its configured alias.
type resolvedCalendar struct {
	caldav.Calendar
	Alias string
}

func (r resolvedCalendar) DisplayName() string {
	if r.Alias != "" {
		return r.Alias
	}
	return r.Name
}

// resolveCalendars maps the configured calendar names onto server
// calendars, or returns every discovered calendar when none are named.
func (e *Exporter) resolveCalendars(ctx context.Context) ([]resolvedCalendar, error) {
	discovered, err := e.source.DiscoverCalendars(ctx)
	if err != nil {
		return nil, err
	}

	if len(e.cfg.Calendars) == 0 {
		all := make([]resolvedCalendar, 0, len(discovered))
		for _, cal := range discovered {
			all = append(all, resolvedCalendar{Calendar: cal})
		}
		return all, nil
	}

	byName := make(map[string]caldav.Calendar, len(discovered))
	for _, cal := range discovered {
		byName[cal.Name] = cal
	}

	var resolved []resolvedCalendar
	for _, ref := range e.cfg.Calendars {
		cal, ok := byName[ref.Name]
		if !ok {
			return nil, fmt.Errorf("calendar %q not found on server", ref.Name)
		}
		resolved = append(resolved, resolvedCalendar{Calendar: cal, Alias: ref.Alias})
	}

	return resolved, nil
}

// filter drops events without a start time and, when keywords are
// configured, events whose summary matches none of them.
func (e *Exporter) filter(events []caldav.Event) []caldav.Event {
	kept := make([]caldav.Event, 0, len(events))
	for _, ev := range events {
		if ev.StartTime.IsZero() {
			continue
		}
		if !matchesKeywords(ev.Summary, e.cfg.Keywords) {
			continue
		}
		if !ev.AllDay {
			// All-day dates stay as parsed; shifting them across
			// timezones would move them to the wrong day.
			ev.StartTime = ev.StartTime.In(e.cfg.Timezone)
			if !ev.EndTime.IsZero() {
				ev.EndTime = ev.EndTime.In(e.cfg.Timezone)
			}
		}
		kept = append(kept, ev)
	}
	return kept
}

func matchesKeywords(summary string, keywords []string) bool {
	if len(keywords) == 0 {
		return true
	}
	for _, kw := range keywords {
		if strings.Contains(summary, kw) {
			return true
		}
	}
	return false
}

// writeFile writes content atomically: a temp file in the target
// directory is renamed over the output path, so a failed run never
// truncates a previous agenda.
func writeFile(path, content string) error {
	dir := filepath.Dir(path)

	tmp, err := os.CreateTemp(dir, ".orgcal-*.tmp")
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrWrite, path, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: %s: %v", ErrWrite, path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrWrite, path, err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrWrite, path, err)
	}

	return nil
}

// record writes the run to the journal. Journal trouble is logged, never
// fatal: the org file is the artifact of record.
func (e *Exporter) record(started time.Time, res *Result, runErr error) {
	if e.journal == nil {
		return
	}

	run := &storage.Run{
		StartedAt:  started,
		FinishedAt: time.Now(),
		Output:     e.cfg.OutputPath,
		Status:     "ok",
	}
	if res != nil {
		run.Calendars = res.Calendars
		run.Fetched = res.Fetched
		run.Written = res.Written
	}
	if runErr != nil {
		run.Status = "error"
		run.Error = runErr.Error()
	}

	if err := e.journal.RecordRun(run); err != nil {
		log.Printf("Error recording run: %v", err)
	}
}
