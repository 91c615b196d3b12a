package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const sampleINI = `
[users]
registration.directory.name = registration
error.directory.name = error

[scanner]
directory = /data
interval = 2000

[registration]
threads = 3
working.dir = /work/registration
target.dir = /work/processing
metadata.file.suffix = .metadata.tsv

[processing]
threads = 2
working.dir = /work/processing
target.dir = /work/evaluation

[evaluations]
threads = 4
working.dir = /work/evaluation
target.dir = /inboxes/a, /inboxes/b

[evaluation]
measurement-id.pattern = ^QABCD[0-9]{3}[A-Z0-9]{2}$

[janitor]
grace-period-minutes = 30

[logging]
retention.days = 14
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "pipeline.ini")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_ParsesAllSections(t *testing.T) {
	path := writeConfig(t, sampleINI)

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, "registration", cfg.UserRegistrationDirName)
	require.Equal(t, "error", cfg.UserErrorDirName)
	require.Equal(t, "/data", cfg.ScannerDirectory)
	require.Equal(t, 2*time.Second, cfg.ScannerInterval)
	require.Equal(t, 3, cfg.RegistrationThreads)
	require.Equal(t, "/work/registration", cfg.RegistrationWorkingDir)
	require.Equal(t, "/work/processing", cfg.RegistrationTargetDir)
	require.Equal(t, ".metadata.tsv", cfg.MetadataFileSuffix)
	require.Equal(t, 2, cfg.ProcessingThreads)
	require.Equal(t, 4, cfg.EvaluationThreads)
	require.Equal(t, []string{"/inboxes/a", "/inboxes/b"}, cfg.EvaluationTargetDirs)
	require.Equal(t, `^QABCD[0-9]{3}[A-Z0-9]{2}$`, cfg.MeasurementIDPattern)
	require.Equal(t, 30*time.Minute, cfg.JanitorGracePeriod)
	require.Equal(t, 14, cfg.LogRetentionDays)
}

func TestLoad_MissingFileErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.ini"))
	require.Error(t, err)
}

func TestValidate_Table(t *testing.T) {
	base := func() *Config {
		return &Config{
			ScannerInterval:        time.Second,
			ScannerDirectory:       "/data",
			RegistrationWorkingDir: "/work/registration",
			RegistrationTargetDir:  "/work/processing",
			ProcessingWorkingDir:   "/work/processing",
			ProcessingTargetDir:    "/work/evaluation",
			EvaluationWorkingDir:   "/work/evaluation",
			EvaluationTargetDirs:   []string{"/inboxes/a"},
			RegistrationThreads:    1,
			ProcessingThreads:      1,
			EvaluationThreads:      1,
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid config", func(c *Config) {}, false},
		{"zero interval", func(c *Config) { c.ScannerInterval = 0 }, true},
		{"negative interval", func(c *Config) { c.ScannerInterval = -1 }, true},
		{"blank scanner directory", func(c *Config) { c.ScannerDirectory = "" }, true},
		{"blank registration working dir", func(c *Config) { c.RegistrationWorkingDir = "" }, true},
		{"blank evaluation targets", func(c *Config) { c.EvaluationTargetDirs = nil }, true},
		{"zero threads", func(c *Config) { c.RegistrationThreads = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestSplitList(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"empty", "", nil},
		{"blank", "   ", nil},
		{"single", "/a", []string{"/a"}},
		{"multiple with spacing", " /a ,/b,  /c ", []string{"/a", "/b", "/c"}},
		{"trailing comma", "/a,", []string{"/a"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, splitList(tt.raw))
		})
	}
}
