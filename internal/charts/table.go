// Package charts shapes analysis tables into the CSV layouts the visualisations
// read, one file per chart.
package charts

import (
	"database/sql"
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"tradeimpact/internal/metrics"
)

// Cell is one formatted CSV field.
type Cell string

// Null is the empty cell written for missing values.
const Null Cell = ""

func Text(s string) Cell { return Cell(s) }

func Int(n int) Cell { return Cell(strconv.Itoa(n)) }

// Number writes v with the shortest exact representation.
func Number(v float64) Cell {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Null
	}
	return Cell(strconv.FormatFloat(v, 'f', -1, 64))
}

// Round writes v rounded half away from zero to places decimals.
func Round(v float64, places int32) Cell {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Null
	}
	return Cell(decimal.NewFromFloat(v).Round(places).String())
}

// WithSuffix writes v rounded to places decimals, always showing them, followed by
// suffix: WithSuffix(12.04, 1, "m") is "12.0m".
func WithSuffix(v float64, places int32, suffix string) Cell {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Null
	}
	return Cell(decimal.NewFromFloat(v).StringFixed(places) + suffix)
}

// Nullable writes v with Number, or Null when it is missing.
func Nullable(v sql.NullFloat64) Cell {
	if !v.Valid {
		return Null
	}
	return Number(v.Float64)
}

// NullableScaled divides v by scale before writing it.
func NullableScaled(v sql.NullFloat64, scale float64) Cell {
	if !v.Valid {
		return Null
	}
	return Number(v.Float64 / scale)
}

// Table is a chart file: a header and rows of the same width.
type Table struct {
	Header []string
	Rows   [][]Cell
}

func (t *Table) Append(cells ...Cell) {
	t.Rows = append(t.Rows, cells)
}

// Write writes table to path as CSV, creating parent directories.
func Write(path string, table Table) error {
	for i, row := range table.Rows {
		if len(row) != len(table.Header) {
			return fmt.Errorf("charts: %s row %d has %d cells, header has %d", filepath.Base(path), i, len(row), len(table.Header))
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.Write(table.Header); err != nil {
		return err
	}
	record := make([]string, len(table.Header))
	for _, row := range table.Rows {
		for i, cell := range row {
			record[i] = string(cell)
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return file.Close()
}

// File names a chart table.
type File struct {
	Name  string
	Table Table
}

// Writer writes chart files into one directory and keeps track of what it wrote.
type Writer struct {
	dir      string
	logger   *zap.Logger
	recorder *metrics.Recorder
	written  []string
}

func NewWriter(dir string, logger *zap.Logger, recorder *metrics.Recorder) *Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{dir: dir, logger: logger, recorder: recorder}
}

// Write writes every file under kind, stopping at the first error.
func (w *Writer) Write(kind string, files ...File) error {
	for _, f := range files {
		path := filepath.Join(w.dir, f.Name)
		if err := Write(path, f.Table); err != nil {
			return fmt.Errorf("write %s: %w", f.Name, err)
		}
		w.written = append(w.written, f.Name)
		w.recorder.FileWritten(kind)
		w.logger.Info("chart written",
			zap.String("kind", kind),
			zap.String("file", f.Name),
			zap.Int("rows", len(f.Table.Rows)),
		)
	}
	return nil
}

// Files lists the names written so far, in order.
func (w *Writer) Files() []string {
	return append([]string(nil), w.written...)
}
