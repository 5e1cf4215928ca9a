package rawdata

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

var ErrEmptyCSV = errors.New("rawdata: empty csv")

// Header maps column names to positions. Lookups are case-insensitive.
type Header struct {
	Names []string
	index map[string]int
}

func NewHeader(names []string) Header {
	return Header{Names: names, index: normalizeHeader(names)}
}

// CSV is a fully read CSV file.
type CSV struct {
	Header
	Records [][]string
}

// ReadCSV reads every record of r.
func ReadCSV(r io.Reader) (*CSV, error) {
	table := &CSV{}
	err := ScanCSV(r, func(header Header, record []string) error {
		table.Records = append(table.Records, record)
		return nil
	}, func(header Header) error {
		table.Header = header
		return nil
	})
	if err != nil {
		return nil, err
	}
	return table, nil
}

// ScanCSV streams r record by record. onHeader, when given, runs once before the
// first record and can reject the file.
func ScanCSV(r io.Reader, fn func(header Header, record []string) error, onHeader ...func(Header) error) error {
	return ScanDelimited(r, ',', fn, onHeader...)
}

// ScanDelimited is ScanCSV for another field separator.
func ScanDelimited(r io.Reader, comma rune, fn func(header Header, record []string) error, onHeader ...func(Header) error) error {
	br := bufio.NewReaderSize(r, 1<<16)
	if prefix, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(prefix, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}

	reader := csv.NewReader(br)
	reader.Comma = comma
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	names, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return ErrEmptyCSV
		}
		return err
	}
	header := NewHeader(names)
	for _, check := range onHeader {
		if err := check(header); err != nil {
			return err
		}
	}

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := fn(header, record); err != nil {
			return err
		}
	}
}

// OpenCSV opens name through opener and reads it.
func OpenCSV(ctx context.Context, opener Opener, name string) (*CSV, error) {
	rc, err := opener.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	table, err := ReadCSV(rc)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", opener.Describe(name), err)
	}
	return table, nil
}

// Require fails when any of the columns is missing.
func (h Header) Require(columns ...string) error {
	missing := make([]string, 0)
	for _, column := range columns {
		if !h.Has(column) {
			missing = append(missing, column)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("rawdata: missing columns %s", strings.Join(missing, ", "))
	}
	return nil
}

func (h Header) Has(column string) bool {
	_, ok := h.index[strings.ToLower(strings.TrimSpace(column))]
	return ok
}

// Get returns the trimmed cell for column, or "" if the column or cell is absent.
func (h Header) Get(record []string, column string) string {
	index, ok := h.index[strings.ToLower(strings.TrimSpace(column))]
	if !ok || index >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[index])
}

// Float parses the cell for column. Blank cells and the na sentinels are reported
// as not ok.
func (h Header) Float(record []string, column string, na ...string) (float64, bool) {
	return ParseFloat(h.Get(record, column), na...)
}

func ParseFloat(value string, na ...string) (float64, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	for _, sentinel := range na {
		if value == sentinel {
			return 0, false
		}
	}
	parsed, err := strconv.ParseFloat(strings.ReplaceAll(value, ",", ""), 64)
	if err != nil {
		return 0, false
	}
	return parsed, true
}

func normalizeHeader(header []string) map[string]int {
	result := make(map[string]int, len(header))
	for i, value := range header {
		key := strings.ToLower(strings.TrimSpace(value))
		if key == "" {
			continue
		}
		if _, exists := result[key]; exists {
			continue
		}
		result[key] = i
	}
	return result
}
