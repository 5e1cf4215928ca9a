package prices

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"tradeimpact/internal/logging"
	"tradeimpact/internal/memo"
	"tradeimpact/internal/model"
)

// Source produces a price table. Sources return ErrNoData when they have nothing,
// which lets the cache fall through to the next one.
type Source interface {
	Name() string
	Table(ctx context.Context) (*Table, error)
}

type priceLister interface {
	ListPrices(ctx context.Context) ([]model.PricePoint, error)
}

type fetcher interface {
	Fetch(ctx context.Context) (io.ReadCloser, error)
}

// StoreSource reads prices persisted by the collector.
type StoreSource struct {
	Store priceLister
}

func (s StoreSource) Name() string { return "store" }

func (s StoreSource) Table(ctx context.Context) (*Table, error) {
	points, err := s.Store.ListPrices(ctx)
	if err != nil {
		return nil, err
	}
	return FromPoints(points)
}

// FetchSource downloads and parses the workbook.
type FetchSource struct {
	Fetcher fetcher
	Sheet   string
}

func (s FetchSource) Name() string { return "download" }

func (s FetchSource) Table(ctx context.Context) (*Table, error) {
	body, err := s.Fetcher.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	defer body.Close()
	return Parse(body, s.Sheet)
}

// Cache memoizes the price table for one run.
type Cache struct {
	once *memo.Once[*Table]
}

// NewCache tries sources in order on first use. ctx bounds that first load.
func NewCache(ctx context.Context, logger *zap.Logger, sources ...Source) *Cache {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Cache{once: memo.NewOnce(func() (*Table, error) {
		for _, source := range sources {
			table, err := source.Table(ctx)
			if errors.Is(err, ErrNoData) {
				logger.Debug("price source empty", zap.String("source", source.Name()))
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("prices from %s: %w", source.Name(), err)
			}
			logger.Info("prices loaded",
				zap.String("source", source.Name()),
				zap.Int("periods", len(table.Periods)),
				zap.Int("commodities", len(table.Commodities)),
			)
			return table, nil
		}
		return nil, ErrNoData
	})}
}

func (c *Cache) Get() (*Table, error) {
	return c.once.Get()
}
