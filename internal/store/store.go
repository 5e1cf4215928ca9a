package store

import (
	"context"

	"tradeimpact/internal/model"
)

// Label kinds kept in the store.
const (
	LabelIncomeLevel = "income_level"
)

type Store interface {
	UpsertPrices(ctx context.Context, points []model.PricePoint) error
	ListPrices(ctx context.Context) ([]model.PricePoint, error)
	UpsertIndicators(ctx context.Context, values []model.IndicatorValue) error
	ListIndicator(ctx context.Context, indicator string) ([]model.IndicatorValue, error)
	UpsertLabels(ctx context.Context, labels []model.Label) error
	ListLabels(ctx context.Context, kind string) ([]model.Label, error)
	RecordRun(ctx context.Context, run model.Run) error
	Close() error
}

// NopStore keeps nothing. Readers fall through to the live providers.
type NopStore struct{}

func (s *NopStore) UpsertPrices(ctx context.Context, points []model.PricePoint) error {
	_ = ctx
	_ = points
	return nil
}

func (s *NopStore) ListPrices(ctx context.Context) ([]model.PricePoint, error) {
	_ = ctx
	return nil, nil
}

func (s *NopStore) UpsertIndicators(ctx context.Context, values []model.IndicatorValue) error {
	_ = ctx
	_ = values
	return nil
}

func (s *NopStore) ListIndicator(ctx context.Context, indicator string) ([]model.IndicatorValue, error) {
	_ = ctx
	_ = indicator
	return nil, nil
}

func (s *NopStore) UpsertLabels(ctx context.Context, labels []model.Label) error {
	_ = ctx
	_ = labels
	return nil
}

func (s *NopStore) ListLabels(ctx context.Context, kind string) ([]model.Label, error) {
	_ = ctx
	_ = kind
	return nil, nil
}

func (s *NopStore) RecordRun(ctx context.Context, run model.Run) error {
	_ = ctx
	_ = run
	return nil
}

func (s *NopStore) Close() error {
	return nil
}
