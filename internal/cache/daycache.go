package cache

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/lvnretest/engine/internal/domain/core"
	"github.com/lvnretest/engine/internal/domain/levels"
	"github.com/lvnretest/engine/internal/domain/lvn"
)

// DayData is one trading day's precomputed bars and levels, the unit the
// replay feed and the offline impulse/LVN passes exchange through disk.
type DayData struct {
	Date       string       `json:"date"`
	Bars       []core.Bar   `json:"bars_1s"`
	LvnLevels  []lvn.Level  `json:"lvn_levels"`
	DailyLevel levels.Daily `json:"daily_levels"`
}

// Store is a directory of one zstd-compressed JSON file per trading day.
type Store struct {
	dir string
}

// NewStore creates a Store rooted at dir, creating the directory if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) path(date string) string {
	return filepath.Join(s.dir, date+".json.zst")
}

// Save compresses and writes a day's data, overwriting any existing file.
func (s *Store) Save(data DayData) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal day %s: %w", data.Date, err)
	}

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return fmt.Errorf("create zstd writer: %w", err)
	}
	compressed := enc.EncodeAll(raw, nil)
	if err := enc.Close(); err != nil {
		return fmt.Errorf("close zstd writer: %w", err)
	}

	if err := os.WriteFile(s.path(data.Date), compressed, 0o644); err != nil {
		return fmt.Errorf("write cache file for %s: %w", data.Date, err)
	}
	return nil
}

// Load reads and decompresses a single day's data. ok is false if no cache
// file exists for that date.
func (s *Store) Load(date string) (data DayData, ok bool, err error) {
	compressed, err := os.ReadFile(s.path(date))
	if os.IsNotExist(err) {
		return DayData{}, false, nil
	}
	if err != nil {
		return DayData{}, false, fmt.Errorf("read cache file for %s: %w", date, err)
	}

	dec, err := zstd.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return DayData{}, false, fmt.Errorf("create zstd reader: %w", err)
	}
	defer dec.Close()

	raw, err := io.ReadAll(dec)
	if err != nil {
		return DayData{}, false, fmt.Errorf("decompress cache file for %s: %w", date, err)
	}

	if err := json.Unmarshal(raw, &data); err != nil {
		return DayData{}, false, fmt.Errorf("unmarshal day %s: %w", date, err)
	}
	return data, true, nil
}

// CachedDates lists every date with a cache file present, sorted ascending.
func (s *Store) CachedDates() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list cache dir %s: %w", s.dir, err)
	}

	var dates []string
	for _, e := range entries {
		name := e.Name()
		if strings.HasSuffix(name, ".json.zst") {
			dates = append(dates, strings.TrimSuffix(name, ".json.zst"))
		}
	}
	sort.Strings(dates)
	return dates, nil
}

// LoadAll loads every cached day matching filter:
//   - "" loads every cached day
//   - a bare substring (e.g. "202509") matches dates containing it
//   - "start:end" (e.g. "20250901:20251120") matches dates in the inclusive range
//
// Days that fail to decode are skipped rather than aborting the whole load.
func (s *Store) LoadAll(filter string) ([]DayData, error) {
	dates, err := s.CachedDates()
	if err != nil {
		return nil, err
	}

	selected := SelectDates(dates, filter)

	out := make([]DayData, 0, len(selected))
	for _, date := range selected {
		data, ok, err := s.Load(date)
		if err != nil || !ok {
			continue
		}
		out = append(out, data)
	}
	return out, nil
}

// SelectDates filters dates (assumed sorted) by the same three forms
// LoadAll recognizes: empty (all), a bare substring/prefix, or an inclusive
// "start:end" range.
func SelectDates(dates []string, filter string) []string {
	if filter == "" {
		return dates
	}
	if start, end, ok := strings.Cut(filter, ":"); ok {
		var out []string
		for _, d := range dates {
			if d >= start && d <= end {
				out = append(out, d)
			}
		}
		return out
	}
	var out []string
	for _, d := range dates {
		if strings.Contains(d, filter) {
			out = append(out, d)
		}
	}
	return out
}
