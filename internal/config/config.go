// Package config loads the pipeline's typed Config from an INI file using
// github.com/go-ini/ini, generalizing the teacher's hand-rolled config.ini
// parser (internal/config in file-maintenance) to the pipeline's section
// layout while keeping the same "one config.ini, fail fast on bad config"
// philosophy.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-ini/ini"
)

// Config is the single typed configuration object constructed once at
// startup and threaded explicitly into internal/app and every stage
// constructor. Treat it as read-only after Load returns.
type Config struct {
	// Per-user directory naming.
	UserRegistrationDirName string
	UserErrorDirName        string

	// Scanner.
	ScannerDirectory string
	ScannerInterval  time.Duration

	// Registration stage.
	RegistrationThreads    int
	RegistrationWorkingDir string
	RegistrationTargetDir  string
	MetadataFileSuffix     string

	// Processing stage.
	ProcessingThreads    int
	ProcessingWorkingDir string
	ProcessingTargetDir  string

	// Evaluation stage.
	EvaluationThreads     int
	EvaluationWorkingDir  string
	EvaluationTargetDirs  []string
	MeasurementIDPattern  string

	// Startup janitor (see SPEC_FULL.md §12.1).
	JanitorGracePeriod time.Duration

	// Log retention, pruned once at startup.
	LogRetentionDays int
}

// Load reads path (an INI file in the teacher's config.ini style) and
// returns a validated Config.
func Load(path string) (*Config, error) {
	f, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{
		UserRegistrationDirName: f.Section("users").Key("registration.directory.name").MustString("registration"),
		UserErrorDirName:        f.Section("users").Key("error.directory.name").MustString("error"),

		ScannerDirectory: f.Section("scanner").Key("directory").String(),
		ScannerInterval:  time.Duration(f.Section("scanner").Key("interval").MustInt(1000)) * time.Millisecond,

		RegistrationThreads:    f.Section("registration").Key("threads").MustInt(2),
		RegistrationWorkingDir: f.Section("registration").Key("working.dir").String(),
		RegistrationTargetDir:  f.Section("registration").Key("target.dir").String(),
		MetadataFileSuffix:     f.Section("registration").Key("metadata.file.suffix").MustString(".metadata.tsv"),

		ProcessingThreads:    f.Section("processing").Key("threads").MustInt(2),
		ProcessingWorkingDir: f.Section("processing").Key("working.dir").String(),
		ProcessingTargetDir:  f.Section("processing").Key("target.dir").String(),

		EvaluationThreads:    f.Section("evaluations").Key("threads").MustInt(2),
		EvaluationWorkingDir: f.Section("evaluations").Key("working.dir").String(),
		EvaluationTargetDirs: splitList(f.Section("evaluations").Key("target.dir").String()),
		MeasurementIDPattern: f.Section("evaluation").Key("measurement-id.pattern").MustString(`^QABCD[0-9]{3}[A-Z0-9]{2}$`),

		JanitorGracePeriod: time.Duration(f.Section("janitor").Key("grace-period-minutes").MustInt(60)) * time.Minute,

		LogRetentionDays: f.Section("logging").Key("retention.days").MustInt(30),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate enforces the configuration invariants called out in the spec:
// a non-positive scan interval is rejected at startup, and every directory
// the pipeline depends on must actually be named.
func (c *Config) Validate() error {
	if c.ScannerInterval <= 0 {
		return fmt.Errorf("scanner.interval must be > 0, got %s", c.ScannerInterval)
	}
	if c.ScannerDirectory == "" {
		return fmt.Errorf("scanner.directory must be set")
	}
	if c.RegistrationWorkingDir == "" || c.RegistrationTargetDir == "" {
		return fmt.Errorf("registration.working.dir and registration.target.dir must be set")
	}
	if c.ProcessingWorkingDir == "" || c.ProcessingTargetDir == "" {
		return fmt.Errorf("processing.working.dir and processing.target.dir must be set")
	}
	if c.EvaluationWorkingDir == "" || len(c.EvaluationTargetDirs) == 0 {
		return fmt.Errorf("evaluations.working.dir and evaluations.target.dir must be set")
	}
	if c.RegistrationThreads <= 0 || c.ProcessingThreads <= 0 || c.EvaluationThreads <= 0 {
		return fmt.Errorf("thread pool sizes must be > 0")
	}
	return nil
}

// splitList parses a comma-separated config value into a trimmed,
// non-empty slice of entries. Used for evaluations.target.dir, which is a
// set of inboxes rather than a single directory.
func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
