// Package worldbank reads country indicators and income groups from the World Bank
// API (v2).
package worldbank

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"tradeimpact/internal/model"
	"tradeimpact/internal/providers"
)

const (
	defaultBaseURL         = "https://api.worldbank.org/v2/"
	defaultIndicatorPath   = "country/all/indicator/{indicator}"
	defaultCountriesPath   = "country"
	defaultPerPage         = 20000
	defaultRateLimitPerSec = 5
	defaultRateLimitBurst  = 5
	defaultTimeoutSeconds  = 20
	aggregatesRegion       = "Aggregates"
)

// Indicator codes used by the enrichers.
const (
	Population           = "SP.POP.TOTL"
	OfficialExchangeRate = "PA.NUS.FCRF"
	PPPConversionFactor  = "PA.NUS.PPP"
)

var ErrNoRecords = errors.New("worldbank: no records found")

type Config struct {
	BaseURL         string
	IndicatorPath   string
	CountriesPath   string
	PerPage         int
	RateLimitPerSec int
	RateLimitBurst  int
	Timeout         time.Duration
}

type Provider struct {
	config Config
	client *providers.Client

	mu     sync.Mutex
	income map[string]string
}

func New() (*Provider, error) {
	return NewWithConfig(Config{})
}

func NewWithConfig(cfg Config) (*Provider, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("worldbank: bad base url: %w", err)
	}
	if strings.TrimSpace(cfg.IndicatorPath) == "" {
		cfg.IndicatorPath = defaultIndicatorPath
	}
	if strings.TrimSpace(cfg.CountriesPath) == "" {
		cfg.CountriesPath = defaultCountriesPath
	}
	if cfg.PerPage <= 0 {
		cfg.PerPage = defaultPerPage
	}
	if cfg.RateLimitPerSec <= 0 {
		cfg.RateLimitPerSec = defaultRateLimitPerSec
	}
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = defaultRateLimitBurst
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeoutSeconds * time.Second
	}
	return &Provider{
		config: cfg,
		client: providers.NewClient(providers.Config{
			BaseURL:         cfg.BaseURL,
			Timeout:         cfg.Timeout,
			RateLimitPerSec: cfg.RateLimitPerSec,
			RateLimitBurst:  cfg.RateLimitBurst,
		}),
	}, nil
}

func (p *Provider) Name() string {
	return "worldbank"
}

// Close stops the provider's rate limiter.
func (p *Provider) Close() error {
	return p.client.Close()
}

type pageMeta struct {
	Page    json.Number `json:"page"`
	Pages   json.Number `json:"pages"`
	PerPage json.Number `json:"per_page"`
	Total   json.Number `json:"total"`
}

type idValue struct {
	ID    string `json:"id"`
	Value string `json:"value"`
}

type indicatorRow struct {
	Indicator       idValue  `json:"indicator"`
	Country         idValue  `json:"country"`
	CountryISO3Code string   `json:"countryiso3code"`
	Date            string   `json:"date"`
	Value           *float64 `json:"value"`
}

type countryRow struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Region      idValue `json:"region"`
	IncomeLevel idValue `json:"incomeLevel"`
}

type apiMessage struct {
	Message []struct {
		ID    string `json:"id"`
		Key   string `json:"key"`
		Value string `json:"value"`
	} `json:"message"`
}

// Indicator returns the most recent non-empty value of code for every economy.
func (p *Provider) Indicator(ctx context.Context, code string) ([]model.IndicatorValue, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, errors.New("worldbank: indicator code is required")
	}
	path := strings.ReplaceAll(p.config.IndicatorPath, "{indicator}", url.PathEscape(code))

	out := make([]model.IndicatorValue, 0)
	err := p.eachPage(ctx, path, url.Values{"mrnev": []string{"1"}}, func(raw json.RawMessage) error {
		var rows []indicatorRow
		if err := json.Unmarshal(raw, &rows); err != nil {
			return fmt.Errorf("worldbank: decode %s: %w", code, err)
		}
		for _, row := range rows {
			iso := strings.ToUpper(strings.TrimSpace(row.CountryISO3Code))
			if iso == "" || row.Value == nil {
				continue
			}
			year, _ := strconv.Atoi(row.Date)
			out = append(out, model.IndicatorValue{Indicator: code, ISO3: iso, Year: year, Value: *row.Value})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoRecords, code)
	}
	return out, nil
}

// IncomeLevels maps ISO3 codes to income group names. Regional aggregates are
// skipped. The result is cached on the provider.
func (p *Provider) IncomeLevels(ctx context.Context) (map[string]string, error) {
	p.mu.Lock()
	if p.income != nil {
		cached := p.income
		p.mu.Unlock()
		return cached, nil
	}
	p.mu.Unlock()

	levels := make(map[string]string)
	err := p.eachPage(ctx, p.config.CountriesPath, nil, func(raw json.RawMessage) error {
		var rows []countryRow
		if err := json.Unmarshal(raw, &rows); err != nil {
			return fmt.Errorf("worldbank: decode countries: %w", err)
		}
		for _, row := range rows {
			if row.Region.Value == aggregatesRegion || strings.TrimSpace(row.IncomeLevel.Value) == "" {
				continue
			}
			levels[strings.ToUpper(row.ID)] = strings.TrimSpace(row.IncomeLevel.Value)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(levels) == 0 {
		return nil, fmt.Errorf("%w: income levels", ErrNoRecords)
	}

	p.mu.Lock()
	p.income = levels
	p.mu.Unlock()
	return levels, nil
}

// eachPage walks the paged [meta, rows] responses of the v2 API.
func (p *Provider) eachPage(ctx context.Context, path string, params url.Values, fn func(json.RawMessage) error) error {
	for page := 1; ; page++ {
		query := url.Values{}
		for key, values := range params {
			query[key] = values
		}
		query.Set("format", "json")
		query.Set("per_page", strconv.Itoa(p.config.PerPage))
		query.Set("page", strconv.Itoa(page))

		body, err := p.client.Get(ctx, path, query, "application/json")
		if err != nil {
			return err
		}

		meta, rows, err := splitPage(body)
		if err != nil {
			return err
		}
		if err := fn(rows); err != nil {
			return err
		}

		pages, _ := meta.Pages.Int64()
		if int64(page) >= pages {
			return nil
		}
	}
}

func splitPage(body []byte) (pageMeta, json.RawMessage, error) {
	var parts []json.RawMessage
	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.UseNumber()
	if err := decoder.Decode(&parts); err != nil {
		return pageMeta{}, nil, fmt.Errorf("worldbank: decode response: %w", err)
	}
	if len(parts) == 1 {
		var msg apiMessage
		if err := json.Unmarshal(parts[0], &msg); err == nil && len(msg.Message) > 0 {
			return pageMeta{}, nil, fmt.Errorf("%w: worldbank: %s", providers.ErrFetch, msg.Message[0].Value)
		}
	}
	if len(parts) < 2 {
		return pageMeta{}, nil, fmt.Errorf("worldbank: unexpected response shape (%d parts)", len(parts))
	}

	var meta pageMeta
	if err := json.Unmarshal(parts[0], &meta); err != nil {
		return pageMeta{}, nil, fmt.Errorf("worldbank: decode page meta: %w", err)
	}
	if string(parts[1]) == "null" {
		return meta, json.RawMessage("[]"), nil
	}
	return meta, parts[1], nil
}
