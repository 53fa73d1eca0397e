// Package checkpoint persists collections as durable snapshots so a crawl can
// resume from an arbitrary stopping point. Intermediate snapshots live under
// <process-dir>/Savepoints/<timestamp>.<ext>; the terminal snapshot is
// <process-dir>/Final.<ext>. The most recent snapshot is selected by file
// modification time, not filename.
package checkpoint

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"postharvest/internal/domain"
)

// Format selects the snapshot file format. FormatBoth writes CSV for
// intermediate snapshots and both CSV and JSON for the final one.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatBoth Format = "both"
)

const (
	savepointDirName  = "Savepoints"
	finalBaseName     = "Final"
	savepointTimeName = "2006-01-02_15-04-05"
)

// columns is the file schema, shared by both formats.
var columns = []string{
	"User", "Date", "post_text", "quotedPost_text",
	"Reply_count", "Repost_count", "Like_count", "View_count",
}

// recordJSON mirrors the file schema for the structured format.
type recordJSON struct {
	User        string `json:"User"`
	Date        string `json:"Date"`
	PostText    string `json:"post_text"`
	QuotedText  string `json:"quotedPost_text"`
	ReplyCount  int    `json:"Reply_count"`
	RepostCount int    `json:"Repost_count"`
	LikeCount   int    `json:"Like_count"`
	ViewCount   int    `json:"View_count"`
}

// Store reads and writes snapshots under one process directory. It implements
// domain.CheckpointStore.
type Store struct {
	dir    string
	format Format
}

// NewStore creates a store rooted at the process directory.
func NewStore(dir string, format Format) (*Store, error) {
	switch format {
	case FormatCSV, FormatJSON, FormatBoth:
	default:
		return nil, &domain.ConfigError{Field: "format", Reason: fmt.Sprintf("must be csv, json, or both, got %q", format)}
	}
	return &Store{dir: dir, format: format}, nil
}

func (s *Store) savepointDir() string {
	return filepath.Join(s.dir, savepointDirName)
}

// LoadLatest returns the collection from the most recently modified snapshot
// in the savepoint directory, or nil when the directory is absent or holds no
// snapshots.
func (s *Store) LoadLatest() (*domain.Collection, error) {
	entries, err := os.ReadDir(s.savepointDir())
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read savepoint dir: %w", err)
	}

	var latest string
	var latestMod time.Time
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		if ext != ".csv" && ext != ".json" {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("stat savepoint %s: %w", e.Name(), err)
		}
		if latest == "" || info.ModTime().After(latestMod) {
			latest = e.Name()
			latestMod = info.ModTime()
		}
	}
	if latest == "" {
		return nil, nil
	}

	path := filepath.Join(s.savepointDir(), latest)
	col, err := readSnapshot(path)
	if err != nil {
		return nil, fmt.Errorf("load savepoint %s: %w", latest, err)
	}
	return col, nil
}

// WriteIntermediate writes a new snapshot named by write time, never
// overwriting a prior one. Returns the path of the (first) file written.
func (s *Store) WriteIntermediate(c *domain.Collection) (string, error) {
	if err := os.MkdirAll(s.savepointDir(), 0o755); err != nil {
		return "", fmt.Errorf("create savepoint dir: %w", err)
	}

	base := s.uniqueBase(time.Now().Format(savepointTimeName))

	// "both" keeps intermediates cheap: CSV only.
	format := s.format
	if format == FormatBoth {
		format = FormatCSV
	}
	return writeSnapshot(c, base, format)
}

// WriteFinal writes the terminal snapshot at <process-dir>/Final.<ext>. The
// caller is responsible for having removed intermediate snapshots first.
func (s *Store) WriteFinal(c *domain.Collection) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create process dir: %w", err)
	}
	return writeSnapshot(c, filepath.Join(s.dir, finalBaseName), s.format)
}

// RemoveIntermediates deletes the savepoint directory and everything in it.
func (s *Store) RemoveIntermediates() error {
	if err := os.RemoveAll(s.savepointDir()); err != nil {
		return fmt.Errorf("remove savepoints: %w", err)
	}
	return nil
}

// uniqueBase suffixes the timestamped base name when two snapshots land in
// the same second.
func (s *Store) uniqueBase(stamp string) string {
	base := filepath.Join(s.savepointDir(), stamp)
	for i := 0; ; i++ {
		candidate := base
		if i > 0 {
			candidate = fmt.Sprintf("%s_%d", base, i)
		}
		if !exists(candidate+".csv") && !exists(candidate+".json") {
			return candidate
		}
	}
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func writeSnapshot(c *domain.Collection, base string, format Format) (string, error) {
	var first string
	if format == FormatCSV || format == FormatBoth {
		path := base + ".csv"
		if err := writeCSV(c, path); err != nil {
			return "", err
		}
		first = path
	}
	if format == FormatJSON || format == FormatBoth {
		path := base + ".json"
		if err := writeJSON(c, path); err != nil {
			return "", err
		}
		if first == "" {
			first = path
		}
	}
	return first, nil
}

func writeCSV(c *domain.Collection, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(columns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, r := range c.Records() {
		row := []string{
			r.User, r.Date, r.PostText, r.QuotedText,
			strconv.Itoa(r.ReplyCount), strconv.Itoa(r.RepostCount),
			strconv.Itoa(r.LikeCount), strconv.Itoa(r.ViewCount),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush %s: %w", path, err)
	}
	return nil
}

// writeJSON writes the structured format: an object keyed by insertion index,
// each value one record in the file schema.
func writeJSON(c *domain.Collection, path string) error {
	indexed := make(map[string]recordJSON, c.Len())
	for i, r := range c.Records() {
		indexed[strconv.Itoa(i)] = recordJSON{
			User:        r.User,
			Date:        r.Date,
			PostText:    r.PostText,
			QuotedText:  r.QuotedText,
			ReplyCount:  r.ReplyCount,
			RepostCount: r.RepostCount,
			LikeCount:   r.LikeCount,
			ViewCount:   r.ViewCount,
		}
	}

	data, err := json.MarshalIndent(indexed, "", "    ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func readSnapshot(path string) (*domain.Collection, error) {
	switch filepath.Ext(path) {
	case ".csv":
		return readCSV(path)
	case ".json":
		return readJSON(path)
	default:
		return nil, fmt.Errorf("unsupported snapshot format: %s", path)
	}
}

func readCSV(path string) (*domain.Collection, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(rows) == 0 {
		return domain.NewCollection(), nil
	}

	header := rows[0]
	if len(header) != len(columns) {
		return nil, fmt.Errorf("unexpected csv header: %v", header)
	}

	col := domain.NewCollection()
	for _, row := range rows[1:] {
		if len(row) != len(columns) {
			return nil, fmt.Errorf("unexpected csv row width: %d", len(row))
		}
		col.Append(domain.Record{
			User:        row[0],
			Date:        row[1],
			PostText:    row[2],
			QuotedText:  row[3],
			ReplyCount:  parseCount(row[4]),
			RepostCount: parseCount(row[5]),
			LikeCount:   parseCount(row[6]),
			ViewCount:   parseCount(row[7]),
		})
	}
	return col, nil
}

func readJSON(path string) (*domain.Collection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	var indexed map[string]recordJSON
	if err := json.Unmarshal(data, &indexed); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}

	// Keys are insertion indexes; restore numeric order.
	indexes := make([]int, 0, len(indexed))
	for k := range indexed {
		i, err := strconv.Atoi(k)
		if err != nil {
			return nil, fmt.Errorf("non-numeric snapshot index %q", k)
		}
		indexes = append(indexes, i)
	}
	sort.Ints(indexes)

	col := domain.NewCollection()
	for _, i := range indexes {
		r := indexed[strconv.Itoa(i)]
		col.Append(domain.Record{
			User:        r.User,
			Date:        r.Date,
			PostText:    r.PostText,
			QuotedText:  r.QuotedText,
			ReplyCount:  r.ReplyCount,
			RepostCount: r.RepostCount,
			LikeCount:   r.LikeCount,
			ViewCount:   r.ViewCount,
		})
	}
	return col, nil
}

// parseCount tolerates malformed counter cells; counters default to 0.
func parseCount(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
