// Package weo downloads and parses the IMF World Economic Outlook country file.
//
// The release is a wide tab-separated table, one row per (country, subject) and one
// column per year. IMF publishes it as UTF-16 with a BOM in some vintages and UTF-8
// in others; both are accepted.
package weo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"tradeimpact/internal/providers"
	"tradeimpact/internal/rawdata"
)

const (
	defaultTimeoutSeconds = 60

	// SubjectGDP is nominal GDP in billions of current US dollars.
	SubjectGDP = "NGDPD"
)

var (
	ErrNoRecords = errors.New("weo: no records found")

	naValues = []string{"n/a", "--", "NA"}
)

type Config struct {
	URL     string
	Timeout time.Duration
}

type Provider struct {
	config Config
	client *providers.Client
}

func NewWithConfig(cfg Config) (*Provider, error) {
	if !strings.HasPrefix(cfg.URL, "http://") && !strings.HasPrefix(cfg.URL, "https://") {
		return nil, errors.New("weo: url must be absolute")
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
	return "weo"
}

func (p *Provider) Fetch(ctx context.Context) (io.ReadCloser, error) {
	return p.client.Open(ctx, p.config.URL, nil, "")
}

// Records fetches and parses the release in one step.
func (p *Provider) Records(ctx context.Context) ([]Record, error) {
	body, err := p.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	defer body.Close()
	return Parse(body)
}

// Record is one (country, subject, year) cell of the release.
type Record struct {
	ISO     string
	Subject string
	Year    int
	Value   float64
	Scale   string
}

// Parse melts the wide release into records. Empty and "n/a" cells are skipped, as
// is the trailing source note, which has no ISO code.
func Parse(r io.Reader) ([]Record, error) {
	decoded := transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))

	var years map[int]int
	records := make([]Record, 0)
	err := rawdata.ScanDelimited(decoded, '\t', func(header rawdata.Header, row []string) error {
		iso := strings.ToUpper(header.Get(row, "ISO"))
		subject := header.Get(row, "WEO Subject Code")
		if iso == "" || subject == "" {
			return nil
		}
		scale := header.Get(row, "Scale")
		for year, index := range years {
			if index >= len(row) {
				continue
			}
			value, ok := rawdata.ParseFloat(row[index], naValues...)
			if !ok {
				continue
			}
			records = append(records, Record{ISO: iso, Subject: subject, Year: year, Value: value, Scale: scale})
		}
		return nil
	}, func(header rawdata.Header) error {
		if err := header.Require("ISO", "WEO Subject Code"); err != nil {
			return fmt.Errorf("weo: %w", err)
		}
		years = yearColumns(header.Names)
		if len(years) == 0 {
			return errors.New("weo: no year columns")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrNoRecords
	}
	return records, nil
}

func yearColumns(names []string) map[int]int {
	years := make(map[int]int)
	for i, name := range names {
		name = strings.TrimSpace(name)
		if len(name) != 4 {
			continue
		}
		year, err := strconv.Atoi(name)
		if err != nil {
			continue
		}
		years[year] = i
	}
	return years
}
