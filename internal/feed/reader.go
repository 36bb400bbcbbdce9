// Package feed loads the external stat feed and selects the rows that back
// the pools for one business day.
package feed

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"statpool/internal/model"
)

// Header columns required by the feed format.
var requiredColumns = []string{
	"Player", "Matches", "Runs", "Wickets", "Fifties", "Centuries",
	"StrikeRate", "Economy", "Category", "Role", "Hash", "Date",
}

// Reader materializes stat rows from a CSV feed file. The feed is small and
// static for a given day, so every load reads the whole file.
type Reader struct {
	path   string
	logger *zap.Logger
}

// NewReader builds a Reader for the feed at path.
func NewReader(path string, logger *zap.Logger) *Reader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reader{path: path, logger: logger}
}

// LoadRows reads and parses the whole feed. Rows with malformed numeric
// fields are dropped with a warning; a missing column is fatal.
func (r *Reader) LoadRows() ([]model.StatRow, error) {
	file, err := os.Open(r.path)
	if err != nil {
		return nil, fmt.Errorf("open feed: %w", err)
	}
	defer file.Close()

	return r.parse(file)
}

func (r *Reader) parse(src io.Reader) ([]model.StatRow, error) {
	reader := csv.NewReader(src)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read feed header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(name)] = i
	}
	for _, name := range requiredColumns {
		if _, ok := index[name]; !ok {
			return nil, fmt.Errorf("feed header missing column %q", name)
		}
	}

	var rows []model.StatRow
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read feed line %d: %w", line, err)
		}

		row, err := parseRow(record, index)
		if err != nil {
			r.logger.Warn("dropping malformed feed row", zap.Int("line", line), zap.Error(err))
			continue
		}
		rows = append(rows, row)
	}

	return rows, nil
}

func parseRow(record []string, index map[string]int) (model.StatRow, error) {
	field := func(name string) string {
		i := index[name]
		if i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	row := model.StatRow{
		Player:   field("Player"),
		Category: field("Category"),
		Role:     field("Role"),
		Image:    field("Hash"),
		Date:     field("Date"),
	}

	var err error
	if row.Matches, err = parseCount(field("Matches")); err != nil {
		return model.StatRow{}, fmt.Errorf("matches: %w", err)
	}
	if row.Runs, err = parseCount(field("Runs")); err != nil {
		return model.StatRow{}, fmt.Errorf("runs: %w", err)
	}
	if row.Wickets, err = parseCount(field("Wickets")); err != nil {
		return model.StatRow{}, fmt.Errorf("wickets: %w", err)
	}
	if row.Fifties, err = parseCount(field("Fifties")); err != nil {
		return model.StatRow{}, fmt.Errorf("fifties: %w", err)
	}
	if row.Centuries, err = parseCount(field("Centuries")); err != nil {
		return model.StatRow{}, fmt.Errorf("centuries: %w", err)
	}
	if row.StrikeRate, err = parseRate(field("StrikeRate")); err != nil {
		return model.StatRow{}, fmt.Errorf("strike rate: %w", err)
	}
	if row.Economy, err = parseRate(field("Economy")); err != nil {
		return model.StatRow{}, fmt.Errorf("economy: %w", err)
	}

	return row, nil
}

func parseCount(value string) (uint64, error) {
	if value == "" {
		return 0, nil
	}
	return strconv.ParseUint(value, 10, 64)
}

func parseRate(value string) (float64, error) {
	if value == "" {
		return 0, nil
	}
	return strconv.ParseFloat(value, 64)
}

// SelectForDate filters rows whose date field equals the formatted date.
func SelectForDate(rows []model.StatRow, date string) []model.StatRow {
	var out []model.StatRow
	for _, row := range rows {
		if row.Date == date {
			out = append(out, row)
		}
	}
	return out
}

// TodayFormatted renders t in the feed-local M/D/YY format, no leading zeros.
func TodayFormatted(t time.Time) string {
	return fmt.Sprintf("%d/%d/%02d", int(t.Month()), t.Day(), t.Year()%100)
}

// Selection is one day's worth of feed rows in pool order: pool ids are
// assigned positionally, 1..len(rows), matching pool creation order.
type Selection struct {
	rows []model.StatRow
}

// NewSelection wraps the rows selected for one date.
func NewSelection(rows []model.StatRow) Selection {
	return Selection{rows: rows}
}

// Row returns the feed row backing poolID, if any.
func (s Selection) Row(poolID uint64) (model.StatRow, bool) {
	if poolID == 0 || poolID > uint64(len(s.rows)) {
		return model.StatRow{}, false
	}
	return s.rows[poolID-1], true
}

// Len returns the number of rows in the selection.
func (s Selection) Len() int {
	return len(s.rows)
}
