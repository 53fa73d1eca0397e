// Package config loads and validates credentials and crawl configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"postharvest/internal/domain"
)

// Twitter's launch date, the earliest a crawl can reach.
const earliestDate = "2006-01-01"

// Credentials holds the account used for the interactive login flow.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
	// Email is optional; without it a suspicious-login challenge cannot be
	// answered and becomes fatal.
	Email string `json:"email"`
}

// LoadCredentials reads a credentials JSON file. Missing username or password
// is a fatal configuration error.
func LoadCredentials(path string) (Credentials, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Credentials{}, fmt.Errorf("read credentials: %w", err)
	}

	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return Credentials{}, fmt.Errorf("parse credentials: %w", err)
	}
	if creds.Username == "" {
		return Credentials{}, &domain.ConfigError{Field: "username", Reason: "must not be empty"}
	}
	if creds.Password == "" {
		return Credentials{}, &domain.ConfigError{Field: "password", Reason: "must not be empty"}
	}
	return creds, nil
}

// Filters is the named-filter block of the crawl configuration.
type Filters struct {
	AllWords        string `yaml:"all_these_words"`
	ExactPhrase     string `yaml:"this_exact_phrase"`
	AnyWords        string `yaml:"any_of_these_words"`
	NoneWords       string `yaml:"none_of_these_words"`
	Hashtags        string `yaml:"these_hashtags"`
	FromAccounts    string `yaml:"from_accounts"`
	ToAccounts      string `yaml:"to_accounts"`
	MentionAccounts string `yaml:"mentioning_accounts"`
	Language        string `yaml:"language"`
	MinReplies      string `yaml:"minimum_replies"`
	MinLikes        string `yaml:"minimum_likes"`
	MinReposts      string `yaml:"minimum_retweets"`
	Links           *bool  `yaml:"links"`
	Replies         *bool  `yaml:"replies"`
}

// Domain converts the yaml block into domain filters. Links and Replies
// default to included.
func (f Filters) Domain() domain.Filters {
	return domain.Filters{
		AllWords:        f.AllWords,
		ExactPhrase:     f.ExactPhrase,
		AnyWords:        f.AnyWords,
		NoneWords:       f.NoneWords,
		Hashtags:        f.Hashtags,
		FromAccounts:    f.FromAccounts,
		ToAccounts:      f.ToAccounts,
		MentionAccounts: f.MentionAccounts,
		Language:        f.Language,
		MinReplies:      f.MinReplies,
		MinLikes:        f.MinLikes,
		MinReposts:      f.MinReposts,
		Links:           boolOr(f.Links, true),
		Replies:         boolOr(f.Replies, true),
	}
}

// Crawl is the crawl-parameter block.
type Crawl struct {
	// StartDate is the latest date to harvest (YYYY-MM-DD); empty means now.
	StartDate string `yaml:"start_date"`
	// EndDate is the earliest date to harvest (YYYY-MM-DD); empty means the
	// platform's launch date.
	EndDate          string `yaml:"end_date"`
	WaitShortSec     int    `yaml:"wait_short_sec"`
	WaitLongSec      int    `yaml:"wait_long_sec"`
	DetectionWaitSec int    `yaml:"detection_wait_sec"`
	MaxEmptyPages    int    `yaml:"max_empty_pages"`
	// OnInterruption is "continue" (checkpoint, wait, retry) or "fail"
	// (checkpoint, terminate).
	OnInterruption string `yaml:"on_interruption"`
}

// Output is the persistence block.
type Output struct {
	// Format is csv, json, or both.
	Format           string `yaml:"format"`
	AutoSave         bool   `yaml:"autosave"`
	AutoSaveInterval int    `yaml:"autosave_interval"`
	// ProcessDir is where snapshots are written; empty defaults to
	// Process/<current date>.
	ProcessDir string `yaml:"process_dir"`
	Resume     *bool  `yaml:"resume"`
	// ArchivePath, when set, mirrors the final collection into a sqlite
	// database at this path.
	ArchivePath string `yaml:"archive_path"`
	Headless    bool   `yaml:"headless"`
}

// Config is the full crawl configuration file.
type Config struct {
	Filters Filters `yaml:"filters"`
	Crawl   Crawl   `yaml:"crawl"`
	Output  Output  `yaml:"output"`
}

// Load reads the crawl configuration YAML, applies defaults, and validates.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Crawl.WaitShortSec == 0 {
		c.Crawl.WaitShortSec = 10
	}
	if c.Crawl.WaitLongSec == 0 {
		c.Crawl.WaitLongSec = 30
	}
	if c.Crawl.DetectionWaitSec == 0 {
		c.Crawl.DetectionWaitSec = 900
	}
	if c.Crawl.MaxEmptyPages == 0 {
		c.Crawl.MaxEmptyPages = 2
	}
	if c.Crawl.OnInterruption == "" {
		c.Crawl.OnInterruption = string(domain.PolicyContinue)
	}
	if c.Output.Format == "" {
		c.Output.Format = "csv"
	}
	if c.Output.AutoSaveInterval == 0 {
		c.Output.AutoSaveInterval = 15
	}
	if c.Output.ProcessDir == "" {
		c.Output.ProcessDir = "Process/" + time.Now().Format(domain.DayFormat)
	}
}

func (c *Config) validate() error {
	switch c.Output.Format {
	case "csv", "json", "both":
	default:
		return &domain.ConfigError{Field: "output.format", Reason: fmt.Sprintf("must be csv, json, or both, got %q", c.Output.Format)}
	}

	switch domain.InterruptionPolicy(c.Crawl.OnInterruption) {
	case domain.PolicyContinue, domain.PolicyFail:
	default:
		return &domain.ConfigError{Field: "crawl.on_interruption", Reason: fmt.Sprintf("must be continue or fail, got %q", c.Crawl.OnInterruption)}
	}

	if c.Crawl.MaxEmptyPages < 1 {
		return &domain.ConfigError{Field: "crawl.max_empty_pages", Reason: "must be at least 1"}
	}
	if c.Output.AutoSaveInterval < 1 {
		return &domain.ConfigError{Field: "output.autosave_interval", Reason: "must be at least 1"}
	}

	if c.Crawl.StartDate != "" {
		if _, err := domain.ParseDay(c.Crawl.StartDate); err != nil {
			return &domain.ConfigError{Field: "crawl.start_date", Reason: "must be YYYY-MM-DD"}
		}
	}
	if c.Crawl.EndDate != "" {
		if _, err := domain.ParseDay(c.Crawl.EndDate); err != nil {
			return &domain.ConfigError{Field: "crawl.end_date", Reason: "must be YYYY-MM-DD"}
		}
	}
	return nil
}

// StartUnix resolves the start date; empty means the current time.
func (c *Config) StartUnix() (int64, error) {
	if c.Crawl.StartDate == "" {
		return time.Now().Unix(), nil
	}
	return domain.ParseDay(c.Crawl.StartDate)
}

// EndUnix resolves the end date; empty means the platform's launch date.
func (c *Config) EndUnix() (int64, error) {
	if c.Crawl.EndDate == "" {
		return domain.ParseDay(earliestDate)
	}
	return domain.ParseDay(c.Crawl.EndDate)
}

// Resume reports whether to resume from the latest savepoint (default true).
func (c *Config) Resume() bool {
	return boolOr(c.Output.Resume, true)
}

func boolOr(b *bool, def bool) bool {
	if b == nil {
		return def
	}
	return *b
}
