package baci

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/apache/arrow/go/v18/arrow"
	"github.com/apache/arrow/go/v18/arrow/array"
	"github.com/apache/arrow/go/v18/arrow/ipc"
	"github.com/apache/arrow/go/v18/arrow/memory"

	"tradeimpact/internal/model"
)

const batchSize = 64 * 1024

const (
	colYear              = "year"
	colExporter          = "exporter"
	colImporter          = "importer"
	colCommodityCode     = "commodity_code"
	colValue             = "value"
	colQuantity          = "quantity"
	colImporterContinent = "importer_continent"
	colExporterContinent = "exporter_continent"
)

// Schema is the snapshot layout. The full variant adds a nullable quantity column
// after value.
func Schema(withQuantity bool) *arrow.Schema {
	fields := []arrow.Field{
		{Name: colYear, Type: arrow.PrimitiveTypes.Int16},
		{Name: colExporter, Type: arrow.BinaryTypes.String},
		{Name: colImporter, Type: arrow.BinaryTypes.String},
		{Name: colCommodityCode, Type: arrow.BinaryTypes.String},
		{Name: colValue, Type: arrow.PrimitiveTypes.Float64},
	}
	if withQuantity {
		fields = append(fields, arrow.Field{Name: colQuantity, Type: arrow.PrimitiveTypes.Float64, Nullable: true})
	}
	fields = append(fields,
		arrow.Field{Name: colImporterContinent, Type: arrow.BinaryTypes.String},
		arrow.Field{Name: colExporterContinent, Type: arrow.BinaryTypes.String},
	)
	return arrow.NewSchema(fields, nil)
}

// snapshotWriter writes records in batches to a temporary file that replaces the
// target on Commit.
type snapshotWriter struct {
	path     string
	file     *os.File
	writer   *ipc.FileWriter
	builder  *array.RecordBuilder
	quantity bool
	pending  int
	rows     int
}

func createSnapshot(path string, withQuantity bool) (*snapshotWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	file, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return nil, err
	}

	schema := Schema(withQuantity)
	mem := memory.NewGoAllocator()
	writer, err := ipc.NewFileWriter(file, ipc.WithSchema(schema), ipc.WithAllocator(mem))
	if err != nil {
		_ = file.Close()
		_ = os.Remove(file.Name())
		return nil, fmt.Errorf("baci: create arrow writer: %w", err)
	}

	return &snapshotWriter{
		path:     path,
		file:     file,
		writer:   writer,
		builder:  array.NewRecordBuilder(mem, schema),
		quantity: withQuantity,
	}, nil
}

func (w *snapshotWriter) Append(record model.TradeRecord) error {
	i := 0
	next := func() array.Builder {
		b := w.builder.Field(i)
		i++
		return b
	}
	next().(*array.Int16Builder).Append(record.Year)
	next().(*array.StringBuilder).Append(record.Exporter)
	next().(*array.StringBuilder).Append(record.Importer)
	next().(*array.StringBuilder).Append(record.CommodityCode)
	next().(*array.Float64Builder).Append(record.Value)
	if w.quantity {
		quantity := next().(*array.Float64Builder)
		if record.Quantity.Valid {
			quantity.Append(record.Quantity.Float64)
		} else {
			quantity.AppendNull()
		}
	}
	next().(*array.StringBuilder).Append(record.ImporterContinent)
	next().(*array.StringBuilder).Append(record.ExporterContinent)

	w.pending++
	w.rows++
	if w.pending >= batchSize {
		return w.flush()
	}
	return nil
}

func (w *snapshotWriter) flush() error {
	if w.pending == 0 {
		return nil
	}
	rec := w.builder.NewRecord()
	defer rec.Release()
	w.pending = 0
	if err := w.writer.Write(rec); err != nil {
		return fmt.Errorf("baci: write batch: %w", err)
	}
	return nil
}

// Commit flushes the last batch and moves the file into place.
func (w *snapshotWriter) Commit() error {
	defer w.builder.Release()
	if w.file == nil {
		return fmt.Errorf("baci: snapshot %s already closed", w.path)
	}
	if err := w.flush(); err != nil {
		w.discard()
		return err
	}
	if err := w.writer.Close(); err != nil {
		w.discard()
		return fmt.Errorf("baci: close arrow writer: %w", err)
	}
	if err := w.file.Close(); err != nil {
		_ = os.Remove(w.file.Name())
		w.file = nil
		return err
	}
	name := w.file.Name()
	w.file = nil
	return os.Rename(name, w.path)
}

// Abort drops the temporary file. Safe to call after Commit.
func (w *snapshotWriter) Abort() {
	if w.file == nil {
		return
	}
	w.builder.Release()
	w.discard()
}

func (w *snapshotWriter) discard() {
	_ = w.writer.Close()
	_ = w.file.Close()
	_ = os.Remove(w.file.Name())
	w.file = nil
}

// WriteFile writes records as a snapshot at path, replacing any previous file.
func WriteFile(path string, records []model.TradeRecord, withQuantity bool) error {
	w, err := createSnapshot(path, withQuantity)
	if err != nil {
		return err
	}
	for _, record := range records {
		if err := w.Append(record); err != nil {
			w.Abort()
			return err
		}
	}
	return w.Commit()
}

// ReadFile loads a snapshot. keep, when not nil, filters rows while decoding.
func ReadFile(path string, keep func(model.TradeRecord) bool) ([]model.TradeRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader, err := ipc.NewFileReader(file, ipc.WithAllocator(memory.NewGoAllocator()))
	if err != nil {
		return nil, fmt.Errorf("baci: open snapshot %s: %w", path, err)
	}
	defer reader.Close()

	schema := reader.Schema()
	columns := make(map[string]int, schema.NumFields())
	for i, field := range schema.Fields() {
		columns[field.Name] = i
	}
	for _, name := range []string{colYear, colExporter, colImporter, colCommodityCode, colValue, colImporterContinent, colExporterContinent} {
		if _, ok := columns[name]; !ok {
			return nil, fmt.Errorf("baci: snapshot %s has no %s column", path, name)
		}
	}
	quantityIndex, hasQuantity := columns[colQuantity]

	out := make([]model.TradeRecord, 0)
	for i := 0; i < reader.NumRecords(); i++ {
		rec, err := reader.Record(i)
		if err != nil {
			return nil, fmt.Errorf("baci: read batch %d of %s: %w", i, path, err)
		}

		years := rec.Column(columns[colYear]).(*array.Int16)
		exporters := rec.Column(columns[colExporter]).(*array.String)
		importers := rec.Column(columns[colImporter]).(*array.String)
		commodities := rec.Column(columns[colCommodityCode]).(*array.String)
		values := rec.Column(columns[colValue]).(*array.Float64)
		importerContinents := rec.Column(columns[colImporterContinent]).(*array.String)
		exporterContinents := rec.Column(columns[colExporterContinent]).(*array.String)
		var quantities *array.Float64
		if hasQuantity {
			quantities = rec.Column(quantityIndex).(*array.Float64)
		}

		// String values alias the batch buffers, so they are cloned before the
		// reader moves on.
		for row := 0; row < int(rec.NumRows()); row++ {
			record := model.TradeRecord{
				Year:              years.Value(row),
				Exporter:          strings.Clone(exporters.Value(row)),
				Importer:          strings.Clone(importers.Value(row)),
				CommodityCode:     strings.Clone(commodities.Value(row)),
				Value:             values.Value(row),
				ImporterContinent: strings.Clone(importerContinents.Value(row)),
				ExporterContinent: strings.Clone(exporterContinents.Value(row)),
			}
			if quantities != nil && quantities.IsValid(row) {
				record.Quantity = sql.NullFloat64{Float64: quantities.Value(row), Valid: true}
			}
			if keep != nil && !keep(record) {
				continue
			}
			out = append(out, record)
		}
	}
	return out, nil
}
