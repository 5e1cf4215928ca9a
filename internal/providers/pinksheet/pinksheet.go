// Package pinksheet downloads the World Bank monthly commodity price workbook.
package pinksheet

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"tradeimpact/internal/providers"
)

const (
	defaultURL            = "https://thedocs.worldbank.org/en/doc/5d903e848db1d1b83e0ec8f744e55570-0350012021/related/CMO-Historical-Data-Monthly.xlsx"
	defaultTimeoutSeconds = 60
	xlsxMediaType         = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

type Config struct {
	URL     string
	Timeout time.Duration
}

type Provider struct {
	config Config
	client *providers.Client
}

func New() (*Provider, error) {
	return NewWithConfig(Config{})
}

func NewWithConfig(cfg Config) (*Provider, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		cfg.URL = defaultURL
	}
	if !strings.HasPrefix(cfg.URL, "http://") && !strings.HasPrefix(cfg.URL, "https://") {
		return nil, errors.New("pinksheet: url must be absolute")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeoutSeconds * time.Second
	}
	return &Provider{
		config: cfg,
		client: providers.NewClient(providers.Config{Timeout: cfg.Timeout}),
	}, nil
}

func (p *Provider) Name() string {
	return "pinksheet"
}

// Fetch returns the workbook body. The caller closes it.
func (p *Provider) Fetch(ctx context.Context) (io.ReadCloser, error) {
	return p.client.Open(ctx, p.config.URL, nil, xlsxMediaType)
}
