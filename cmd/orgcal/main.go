package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/tazhate/orgcal/config"
	"github.com/tazhate/orgcal/internal/clients/caldav"
	"github.com/tazhate/orgcal/internal/exporter"
	"github.com/tazhate/orgcal/internal/scheduler"
	"github.com/tazhate/orgcal/internal/storage"
)

// Exit codes per failure kind.
const (
	exitConfig  = 2
	exitConnect = 3
	exitQuery   = 4
	exitWrite   = 5
)

func main() {
	log.SetFlags(log.LstdFlags)

	app := &cli.App{
		Name:  "orgcal",
		Usage: "export upcoming CalDAV events to an org-mode agenda file",
		Flags: []cli.Flag{
			&cli.PathFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to config.cfg (default: next to the executable)",
			},
		},
		// Invocation with no arguments performs a single export.
		Action: runExport,
		Commands: []*cli.Command{
			{
				Name:  "export",
				Usage: "fetch upcoming events and write the agenda file once",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "days",
						Usage: "override [agenda] days",
					},
					&cli.PathFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "override [agenda] output",
					},
				},
				Action: runExport,
			},
			{
				Name:   "calendars",
				Usage:  "list calendars discovered on the server",
				Action: runCalendars,
			},
			{
				Name:   "watch",
				Usage:  "re-export on the [agenda] refresh cron schedule until interrupted",
				Action: runWatch,
			},
			{
				Name:  "history",
				Usage: "show recent export runs from the journal",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "limit",
						Aliases: []string{"n"},
						Value:   10,
						Usage:   "number of runs to show",
					},
				},
				Action: runHistory,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		// Non-ExitCoder errors (cli usage errors) still exit non-zero.
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// exitErr maps an error to its exit code and a stderr message.
func exitErr(err error) error {
	code := 1
	switch {
	case errors.Is(err, config.ErrConfig):
		code = exitConfig
	case errors.Is(err, caldav.ErrConnect):
		code = exitConnect
	case errors.Is(err, caldav.ErrQuery):
		code = exitQuery
	case errors.Is(err, exporter.ErrWrite):
		code = exitWrite
	}
	return cli.Exit("orgcal: "+err.Error(), code)
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	path := c.Path("config")
	if path == "" {
		var err error
		if path, err = config.DefaultPath(); err != nil {
			return nil, err
		}
	}
	return config.Load(path)
}

// newExporter builds the exporter and its journal. A journal that cannot
// be opened is logged and skipped; it must not block the export.
func newExporter(cfg *config.Config) (*exporter.Exporter, func()) {
	client := caldav.NewClient(cfg.ServerURL, cfg.Username, cfg.Password)

	journal, err := storage.New(cfg.JournalPath)
	if err != nil {
		log.Printf("Run journal disabled: %v", err)
		journal = nil
	}

	cleanup := func() {
		if journal != nil {
			journal.Close()
		}
	}

	return exporter.New(cfg, client, journal), cleanup
}

func runExport(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return exitErr(err)
	}

	if days := c.Int("days"); days > 0 {
		cfg.Days = days
	}
	if output := c.Path("output"); output != "" {
		cfg.OutputPath = output
	}

	exp, cleanup := newExporter(cfg)
	defer cleanup()

	if _, err := exp.Run(c.Context); err != nil {
		return exitErr(err)
	}

	return nil
}

func runCalendars(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return exitErr(err)
	}

	client := caldav.NewClient(cfg.ServerURL, cfg.Username, cfg.Password)

	calendars, err := client.DiscoverCalendars(c.Context)
	if err != nil {
		return exitErr(err)
	}

	for _, cal := range calendars {
		fmt.Printf("%s\t%s\n", cal.Name, cal.Path)
	}

	return nil
}

func runWatch(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return exitErr(err)
	}

	exp, cleanup := newExporter(cfg)
	defer cleanup()

	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("Shutting down...")
		cancel()
	}()

	// A transient failure must not kill the loop; the previous agenda
	// file stays in place until the next successful run.
	job := func() {
		if _, err := exp.Run(ctx); err != nil {
			log.Printf("Export error: %v", err)
		}
	}

	job() // export once on startup

	sched := scheduler.New(cfg.Timezone)
	if err := sched.Start(ctx, cfg.RefreshCron, job); err != nil {
		return exitErr(err)
	}
	sched.Stop()

	return nil
}

func runHistory(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return exitErr(err)
	}

	journal, err := storage.New(cfg.JournalPath)
	if err != nil {
		return exitErr(err)
	}
	defer journal.Close()

	runs, err := journal.ListRecentRuns(c.Int("limit"))
	if err != nil {
		return exitErr(err)
	}

	for _, r := range runs {
		line := fmt.Sprintf("%s  %-5s  %d/%d events -> %s",
			r.StartedAt.Format("2006-01-02 15:04:05"), r.Status,
			r.Written, r.Fetched, r.Output)
		if r.Error != "" {
			line += "  (" + r.Error + ")"
		}
		fmt.Println(line)
	}

	return nil
}
