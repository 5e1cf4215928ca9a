package enrich

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"tradeimpact/internal/memo"
	"tradeimpact/internal/model"
	"tradeimpact/internal/providers/weo"
	"tradeimpact/internal/providers/worldbank"
	"tradeimpact/internal/rawdata"
	"tradeimpact/internal/store"
)

// StoredGDP is the indicator name WEO GDP values are kept under, in billions of
// US dollars as published.
const StoredGDP = "WEO." + weo.SubjectGDP

var ErrNoSource = errors.New("enrich: no source for indicator")

type IndicatorStore interface {
	ListIndicator(ctx context.Context, indicator string) ([]model.IndicatorValue, error)
	ListLabels(ctx context.Context, kind string) ([]model.Label, error)
}

type IndicatorProvider interface {
	Indicator(ctx context.Context, code string) ([]model.IndicatorValue, error)
	IncomeLevels(ctx context.Context) (map[string]string, error)
}

type OutlookProvider interface {
	Records(ctx context.Context) ([]weo.Record, error)
}

// Sources hands out indicator lookups for one run. Each lookup is read from the
// store when it has rows and from the live provider otherwise, then kept for the
// rest of the run.
type Sources struct {
	ctx        context.Context
	store      IndicatorStore
	indicators IndicatorProvider
	outlook    OutlookProvider
	logger     *zap.Logger

	series  *memo.Memo[string, Lookup]
	gdp     *memo.Memo[int, Lookup]
	income  *memo.Once[Labels]
	records *memo.Once[[]weo.Record]
}

// NewSources accepts nil for any collaborator it should not use.
func NewSources(ctx context.Context, st IndicatorStore, indicators IndicatorProvider, outlook OutlookProvider, logger *zap.Logger) *Sources {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Sources{ctx: ctx, store: st, indicators: indicators, outlook: outlook, logger: logger}
	s.series = memo.New(s.loadSeries)
	s.gdp = memo.New(s.loadGDP)
	s.income = memo.NewOnce(s.loadIncome)
	s.records = memo.NewOnce(s.loadRecords)
	return s
}

func (s *Sources) Indicator(code string) (Lookup, error) {
	return s.series.Get(code)
}

func (s *Sources) Population() (Lookup, error) {
	return s.Indicator(worldbank.Population)
}

func (s *Sources) GDP(year int) (Lookup, error) {
	return s.gdp.Get(year)
}

func (s *Sources) IncomeLevels() (Labels, error) {
	return s.income.Get()
}

func (s *Sources) PPPFactors() (PPPFactors, error) {
	fx, err := s.Indicator(worldbank.OfficialExchangeRate)
	if err != nil {
		return PPPFactors{}, err
	}
	conversion, err := s.Indicator(worldbank.PPPConversionFactor)
	if err != nil {
		return PPPFactors{}, err
	}
	return PPPFactors{ExchangeRate: fx, Conversion: conversion}, nil
}

func (s *Sources) loadSeries(code string) (Lookup, error) {
	if s.store != nil {
		values, err := s.store.ListIndicator(s.ctx, code)
		if err != nil {
			return nil, err
		}
		if len(values) > 0 {
			s.logger.Debug("indicator from store", zap.String("indicator", code), zap.Int("countries", len(values)))
			return LookupFrom(values), nil
		}
	}
	if s.indicators == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoSource, code)
	}
	values, err := s.indicators.Indicator(s.ctx, code)
	if err != nil {
		return nil, err
	}
	s.logger.Info("indicator downloaded", zap.String("indicator", code), zap.Int("countries", len(values)))
	return LookupFrom(values), nil
}

func (s *Sources) loadIncome() (Labels, error) {
	if s.store != nil {
		labels, err := s.store.ListLabels(s.ctx, store.LabelIncomeLevel)
		if err != nil {
			return nil, err
		}
		if len(labels) > 0 {
			return LabelsFrom(labels), nil
		}
	}
	if s.indicators == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoSource, store.LabelIncomeLevel)
	}
	levels, err := s.indicators.IncomeLevels(s.ctx)
	if err != nil {
		return nil, err
	}
	out := make(Labels, len(levels))
	for iso, level := range levels {
		out[strings.ToUpper(iso)] = level
	}
	return out, nil
}

func (s *Sources) loadGDP(year int) (Lookup, error) {
	records, err := s.records.Get()
	if err != nil {
		return nil, err
	}
	return GDP(records, year)
}

func (s *Sources) loadRecords() ([]weo.Record, error) {
	if s.store != nil {
		values, err := s.store.ListIndicator(s.ctx, StoredGDP)
		if err != nil {
			return nil, err
		}
		if len(values) > 0 {
			records := make([]weo.Record, 0, len(values))
			for _, value := range values {
				records = append(records, weo.Record{ISO: value.ISO3, Subject: weo.SubjectGDP, Year: value.Year, Value: value.Value})
			}
			return records, nil
		}
	}
	if s.outlook == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoSource, StoredGDP)
	}
	return s.outlook.Records(s.ctx)
}

// GDPValues converts the GDP rows of a WEO release for storage under StoredGDP.
func GDPValues(records []weo.Record) []model.IndicatorValue {
	out := make([]model.IndicatorValue, 0)
	for _, record := range records {
		if record.Subject != weo.SubjectGDP {
			continue
		}
		out = append(out, model.IndicatorValue{Indicator: StoredGDP, ISO3: record.ISO, Year: record.Year, Value: record.Value})
	}
	return out
}

// ValuesCSV reads a two-column key/value extract such as a GDP snapshot with
// iso_code and value columns.
func ValuesCSV(r io.Reader, keyColumn, valueColumn string) (Lookup, error) {
	out := make(Lookup)
	err := rawdata.ScanCSV(r, func(header rawdata.Header, record []string) error {
		key := strings.ToUpper(header.Get(record, keyColumn))
		value, ok := header.Float(record, valueColumn)
		if key == "" || !ok {
			return nil
		}
		out[key] = value
		return nil
	}, func(header rawdata.Header) error {
		return header.Require(keyColumn, valueColumn)
	})
	if err != nil {
		return nil, fmt.Errorf("enrich: %w", err)
	}
	return out, nil
}
