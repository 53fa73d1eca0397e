package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"postharvest/internal/domain"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadCredentials(t *testing.T) {
	path := writeFile(t, "twitter.json", `{"username": "alice", "password": "s3cret", "email": "a@example.com"}`)

	creds, err := LoadCredentials(path)
	require.NoError(t, err)
	require.Equal(t, "alice", creds.Username)
	require.Equal(t, "s3cret", creds.Password)
	require.Equal(t, "a@example.com", creds.Email)
}

func TestLoadCredentialsMissingFields(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
	}{
		{name: "no username", body: `{"password": "x"}`, field: "username"},
		{name: "no password", body: `{"username": "alice"}`, field: "password"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadCredentials(writeFile(t, "twitter.json", tt.body))
			var cerr *domain.ConfigError
			require.ErrorAs(t, err, &cerr)
			require.Equal(t, tt.field, cerr.Field)
		})
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeFile(t, "harvest.yaml", `
filters:
  all_these_words: golang
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, 10, cfg.Crawl.WaitShortSec)
	require.Equal(t, 30, cfg.Crawl.WaitLongSec)
	require.Equal(t, 900, cfg.Crawl.DetectionWaitSec)
	require.Equal(t, 2, cfg.Crawl.MaxEmptyPages)
	require.Equal(t, string(domain.PolicyContinue), cfg.Crawl.OnInterruption)
	require.Equal(t, "csv", cfg.Output.Format)
	require.Equal(t, 15, cfg.Output.AutoSaveInterval)
	require.Equal(t, "Process/"+time.Now().Format(domain.DayFormat), cfg.Output.ProcessDir)
	require.True(t, cfg.Resume())
}

func TestLoadFullConfig(t *testing.T) {
	path := writeFile(t, "harvest.yaml", `
filters:
  this_exact_phrase: "hello world"
  language: English
  links: false
crawl:
  start_date: "2024-03-01"
  end_date: "2024-01-01"
  on_interruption: fail
output:
  format: both
  autosave: true
  autosave_interval: 5
  process_dir: out
  resume: false
  headless: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	f := cfg.Filters.Domain()
	require.Equal(t, "hello world", f.ExactPhrase)
	require.False(t, f.Links)
	require.True(t, f.Replies)

	require.Equal(t, "fail", cfg.Crawl.OnInterruption)
	require.Equal(t, "both", cfg.Output.Format)
	require.True(t, cfg.Output.AutoSave)
	require.Equal(t, 5, cfg.Output.AutoSaveInterval)
	require.False(t, cfg.Resume())
	require.True(t, cfg.Output.Headless)

	start, err := cfg.StartUnix()
	require.NoError(t, err)
	require.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.Local).Unix(), start)

	end, err := cfg.EndUnix()
	require.NoError(t, err)
	require.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.Local).Unix(), end)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
	}{
		{
			name:  "bad format",
			body:  "output:\n  format: xml\n",
			field: "output.format",
		},
		{
			name:  "bad interruption policy",
			body:  "crawl:\n  on_interruption: panic\n",
			field: "crawl.on_interruption",
		},
		{
			name:  "bad start date",
			body:  "crawl:\n  start_date: 03/01/2024\n",
			field: "crawl.start_date",
		},
		{
			name:  "bad end date",
			body:  "crawl:\n  end_date: yesterday\n",
			field: "crawl.end_date",
		},
		{
			name:  "negative empty pages",
			body:  "crawl:\n  max_empty_pages: -1\n",
			field: "crawl.max_empty_pages",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, "harvest.yaml", tt.body))
			var cerr *domain.ConfigError
			require.ErrorAs(t, err, &cerr)
			require.Equal(t, tt.field, cerr.Field)
		})
	}
}

func TestEndUnixDefaultsToLaunchDate(t *testing.T) {
	cfg := &Config{}
	cfg.applyDefaults()

	end, err := cfg.EndUnix()
	require.NoError(t, err)
	require.Equal(t, time.Date(2006, 1, 1, 0, 0, 0, 0, time.Local).Unix(), end)
}
