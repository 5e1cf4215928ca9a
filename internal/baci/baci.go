// Package baci converts the CEPII BACI bilateral trade files into columnar
// snapshots and reads them back for analysis.
package baci

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"tradeimpact/internal/codes"
	"tradeimpact/internal/logging"
	"tradeimpact/internal/metrics"
	"tradeimpact/internal/model"
	"tradeimpact/internal/rawdata"
	"tradeimpact/internal/reference"
)

const (
	CountryCodesFile = "country_codes.csv"
	FilePrefix       = "hs17_"
	FullSnapshot     = "baci_full.feather"
)

var (
	ErrInvalidSide      = errors.New("baci: side must be exporter or importer")
	ErrExporterNotFound = errors.New("baci: exporter not in dataset")
)

// RawFile is the name of the raw BACI csv for year.
func RawFile(year int) string {
	return fmt.Sprintf("%s%d.csv", FilePrefix, year)
}

// SnapshotFile is the name of the per-year snapshot for year.
func SnapshotFile(year int) string {
	return fmt.Sprintf("%s%d.feather", FilePrefix, year)
}

type Converter struct {
	opener    rawdata.Opener
	countries *reference.Table
	logger    *zap.Logger
	metrics   *metrics.Recorder
	numeric   map[string]string
}

func NewConverter(opener rawdata.Opener, countries *reference.Table, logger *zap.Logger, recorder *metrics.Recorder) *Converter {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Converter{
		opener:    opener,
		countries: countries,
		logger:    logger,
		metrics:   recorder,
	}
}

// Convert writes the snapshot for one year into dir and returns the row count.
// Rerunning replaces the previous snapshot.
func (c *Converter) Convert(ctx context.Context, year int, dir string) (int, error) {
	w, err := createSnapshot(filepath.Join(dir, SnapshotFile(year)), false)
	if err != nil {
		return 0, err
	}
	if err := c.scanYear(ctx, year, w.Append); err != nil {
		w.Abort()
		return 0, err
	}
	if err := w.Commit(); err != nil {
		return 0, err
	}
	c.metrics.FileWritten("snapshot")
	return w.rows, nil
}

// ConvertFull writes one snapshot with quantities for every year in [from, to].
func (c *Converter) ConvertFull(ctx context.Context, from, to int, dir string) (int, error) {
	if from > to {
		return 0, fmt.Errorf("baci: from year %d after to year %d", from, to)
	}
	w, err := createSnapshot(filepath.Join(dir, FullSnapshot), true)
	if err != nil {
		return 0, err
	}
	for year := from; year <= to; year++ {
		if err := c.scanYear(ctx, year, w.Append); err != nil {
			w.Abort()
			return 0, err
		}
	}
	if err := w.Commit(); err != nil {
		return 0, err
	}
	c.metrics.FileWritten("snapshot")
	return w.rows, nil
}

func (c *Converter) numericCodes(ctx context.Context) (map[string]string, error) {
	if c.numeric != nil {
		return c.numeric, nil
	}
	rc, err := c.opener.Open(ctx, CountryCodesFile)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	numeric, err := reference.LoadNumericCodes(rc)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", c.opener.Describe(CountryCodesFile), err)
	}
	c.numeric = numeric
	return numeric, nil
}

// scanYear streams one raw year file, resolving country codes and continents.
// Rows whose importer does not resolve are dropped; an unresolved exporter is kept
// with an empty code.
func (c *Converter) scanYear(ctx context.Context, year int, emit func(model.TradeRecord) error) error {
	numeric, err := c.numericCodes(ctx)
	if err != nil {
		return err
	}

	stage := fmt.Sprintf("baci_%d", year)
	defer c.metrics.Time(stage)()

	name := RawFile(year)
	rc, err := c.opener.Open(ctx, name)
	if err != nil {
		return err
	}
	defer rc.Close()

	var rowsIn, rowsOut, badImporter, badExporter, badRow int
	err = rawdata.ScanCSV(rc, func(h rawdata.Header, record []string) error {
		rowsIn++
		if rowsIn%100000 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}

		importer := numeric[strings.TrimLeft(h.Get(record, "j"), "0")]
		if importer == "" {
			badImporter++
			return nil
		}
		exporter := numeric[strings.TrimLeft(h.Get(record, "i"), "0")]
		if exporter == "" {
			badExporter++
		}

		t, err := strconv.ParseInt(h.Get(record, "t"), 10, 16)
		if err != nil {
			badRow++
			return nil
		}
		value, ok := h.Float(record, "v", "NA")
		if !ok {
			badRow++
			return nil
		}

		out := model.TradeRecord{
			Year:              int16(t),
			Exporter:          exporter,
			Importer:          importer,
			CommodityCode:     codes.Normalize(h.Get(record, "k")),
			Value:             value,
			ImporterContinent: c.countries.Continent(importer),
			ExporterContinent: c.countries.Continent(exporter),
		}
		if quantity, ok := h.Float(record, "q", "NA"); ok {
			out.Quantity = sql.NullFloat64{Float64: quantity, Valid: true}
		}
		rowsOut++
		return emit(out)
	}, func(h rawdata.Header) error {
		return h.Require("t", "i", "j", "k", "v")
	})
	if err != nil {
		return fmt.Errorf("read %s: %w", c.opener.Describe(name), err)
	}

	c.metrics.RowsRead(stage, rowsIn)
	c.metrics.RowsDropped(stage, "unknown_importer", badImporter)
	c.metrics.RowsDropped(stage, "malformed", badRow)
	logging.DataQuality(c.logger, "baci_importer", "unmapped country code", badImporter)
	logging.DataQuality(c.logger, "baci_exporter", "unmapped country code", badExporter)
	logging.DataQuality(c.logger, "baci_row", "malformed year or value", badRow)
	logging.Stage(c.logger, stage, rowsIn, rowsOut)
	return nil
}

// Read loads the snapshot for one year from dir.
func Read(dir string, year int) ([]model.TradeRecord, error) {
	return ReadFile(filepath.Join(dir, SnapshotFile(year)), nil)
}

// ReadFull loads the snapshot written by ConvertFull.
func ReadFull(dir string) ([]model.TradeRecord, error) {
	return ReadFile(filepath.Join(dir, FullSnapshot), nil)
}

// WorldTrade is the union of the yearly snapshots in [start, end].
func WorldTrade(dir string, start, end int) ([]model.TradeRecord, error) {
	return readYears(dir, start, end, nil)
}

// WorldTradeAfrica is WorldTrade restricted to African importers.
func WorldTradeAfrica(dir string, start, end int) ([]model.TradeRecord, error) {
	return readYears(dir, start, end, func(r model.TradeRecord) bool {
		return r.ImporterContinent == model.ContinentAfrica
	})
}

// RussiaUkraineToAfrica is WorldTradeAfrica restricted to Russian and Ukrainian
// exporters.
func RussiaUkraineToAfrica(dir string, start, end int) ([]model.TradeRecord, error) {
	records, err := WorldTradeAfrica(dir, start, end)
	if err != nil {
		return nil, err
	}
	return FilterExporter(records, "RUS", "UKR")
}

func readYears(dir string, start, end int, keep func(model.TradeRecord) bool) ([]model.TradeRecord, error) {
	if start > end {
		return nil, fmt.Errorf("baci: start year %d after end year %d", start, end)
	}
	out := make([]model.TradeRecord, 0)
	for year := start; year <= end; year++ {
		records, err := ReadFile(filepath.Join(dir, SnapshotFile(year)), keep)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("baci: no snapshot for %d in %s, run collector baci first: %w", year, dir, err)
			}
			return nil, err
		}
		out = append(out, records...)
	}
	return out, nil
}

// ParseSide validates a side name.
func ParseSide(value string) (model.Side, error) {
	switch model.Side(value) {
	case model.SideExporter, model.SideImporter:
		return model.Side(value), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidSide, value)
	}
}

// FilterContinent keeps the rows whose side is on continent.
func FilterContinent(records []model.TradeRecord, side model.Side, continent string) ([]model.TradeRecord, error) {
	if _, err := ParseSide(string(side)); err != nil {
		return nil, err
	}
	out := make([]model.TradeRecord, 0)
	for _, record := range records {
		if record.Continent(side) == continent {
			out = append(out, record)
		}
	}
	return out, nil
}

func FilterAfrica(records []model.TradeRecord, side model.Side) ([]model.TradeRecord, error) {
	return FilterContinent(records, side, model.ContinentAfrica)
}

// FilterExporter keeps rows from the given exporters. It fails when none of them
// appears in records.
func FilterExporter(records []model.TradeRecord, exporters ...string) ([]model.TradeRecord, error) {
	wanted := make(map[string]struct{}, len(exporters))
	for _, iso := range exporters {
		wanted[strings.ToUpper(strings.TrimSpace(iso))] = struct{}{}
	}
	out := make([]model.TradeRecord, 0)
	for _, record := range records {
		if _, ok := wanted[record.Exporter]; ok {
			out = append(out, record)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrExporterNotFound, strings.Join(exporters, ","))
	}
	return out, nil
}

// Codes lists the distinct commodity codes in records, in first-seen order.
func Codes(records []model.TradeRecord) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, record := range records {
		if _, ok := seen[record.CommodityCode]; ok {
			continue
		}
		seen[record.CommodityCode] = struct{}{}
		out = append(out, record.CommodityCode)
	}
	return out
}
