package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/ini.v1"
)

// ErrConfig marks any failure to locate, read or validate the config file.
var ErrConfig = errors.New("invalid configuration")

// DefaultFileName is looked up next to the executable when no --config
// flag is given, mirroring where the credentials file traditionally lives.
const DefaultFileName = "config.cfg"

// CalendarRef names a remote calendar to fetch, with an optional short
// alias used in the generated agenda.
type CalendarRef struct {
	Name  string
	Alias string
}

// DisplayName returns the alias when set, the server name otherwise.
func (r CalendarRef) DisplayName() string {
	if r.Alias != "" {
		return r.Alias
	}
	return r.Name
}

type Config struct {
	// [calendar]
	Username  string
	Password  string
	ServerURL string
	Calendars []CalendarRef // empty means all calendars on the server

	// [agenda]
	Days        int
	OutputPath  string
	JournalPath string
	Keywords    []string // empty means no summary filtering
	Timezone    *time.Location
	RefreshCron string
}

// DefaultPath returns the config file location next to the executable.
func DefaultPath() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("%w: locate executable: %v", ErrConfig, err)
	}
	return filepath.Join(filepath.Dir(exe), DefaultFileName), nil
}

// Load reads and validates the INI config at path. Required keys live in
// the [calendar] section; everything in [agenda] has a default.
func Load(path string) (*Config, error) {
	file, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrConfig, path, err)
	}

	cal := file.Section("calendar")

	username := strings.TrimSpace(cal.Key("username").String())
	if username == "" {
		return nil, fmt.Errorf("%w: %s: [calendar] username is required", ErrConfig, path)
	}

	password := cal.Key("password").String()
	if password == "" {
		return nil, fmt.Errorf("%w: %s: [calendar] password is required", ErrConfig, path)
	}

	serverURL := strings.TrimSpace(cal.Key("url").String())
	if serverURL == "" {
		return nil, fmt.Errorf("%w: %s: [calendar] url is required", ErrConfig, path)
	}

	calendars, err := parseCalendarList(cal.Key("names").String())
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrConfig, path, err)
	}

	agenda := file.Section("agenda")

	days := agenda.Key("days").MustInt(14)
	if days <= 0 {
		return nil, fmt.Errorf("%w: %s: [agenda] days must be positive, got %d", ErrConfig, path, days)
	}

	tz, err := loadTimezone(agenda.Key("timezone").String())
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrConfig, path, err)
	}

	return &Config{
		Username:    username,
		Password:    password,
		ServerURL:   serverURL,
		Calendars:   calendars,
		Days:        days,
		OutputPath:  agenda.Key("output").MustString("cal.org"),
		JournalPath: agenda.Key("journal").MustString("orgcal.db"),
		Keywords:    splitList(agenda.Key("keywords").String()),
		Timezone:    tz,
		RefreshCron: agenda.Key("refresh").MustString("*/15 * * * *"),
	}, nil
}

// parseCalendarList parses "Name, Other=Alias" into calendar references.
func parseCalendarList(raw string) ([]CalendarRef, error) {
	var refs []CalendarRef
	for _, item := range splitList(raw) {
		name, alias, found := strings.Cut(item, "=")
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, errors.New("empty calendar name in names list")
		}
		ref := CalendarRef{Name: name}
		if found {
			ref.Alias = strings.TrimSpace(alias)
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

func loadTimezone(name string) (*time.Location, error) {
	if name == "" || name == "Local" {
		return time.Local, nil
	}
	tz, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %v", name, err)
	}
	return tz, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
