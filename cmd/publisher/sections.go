package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"tradeimpact/internal/app"
	"tradeimpact/internal/baci"
	"tradeimpact/internal/charts"
	"tradeimpact/internal/codes"
	"tradeimpact/internal/config"
	"tradeimpact/internal/debt"
	"tradeimpact/internal/enrich"
	"tradeimpact/internal/explorer"
	"tradeimpact/internal/fertiliser"
	"tradeimpact/internal/flows"
	"tradeimpact/internal/impact"
	"tradeimpact/internal/logging"
	"tradeimpact/internal/memo"
	"tradeimpact/internal/model"
	"tradeimpact/internal/prices"
	"tradeimpact/internal/providers/pinksheet"
	"tradeimpact/internal/providers/weo"
	"tradeimpact/internal/providers/worldbank"
	"tradeimpact/internal/rawdata"
	"tradeimpact/internal/reference"
)

// Raw reference files read by the publisher.
const (
	productCodesFile = "product_codes.csv"
	incomeLevelsFile = "income_levels.csv"
	geometriesFile   = "flourish_geometries.csv"
)

// Years of the debt tables merged into the explorer.
const (
	debtServiceYear = 2022
	debtStocksYear  = 2020
)

type section struct {
	name  string
	build func(ctx context.Context, b *builder) ([]charts.File, error)
}

var sections = []section{
	{"story", buildStory},
	{"impact", buildImpact},
	{"fertiliser", buildFertiliser},
	{"debt", buildDebt},
	{"prices", buildPrices},
	{"explorer", buildExplorer},
}

func sectionNames() []string {
	names := make([]string, len(sections))
	for i, s := range sections {
		names[i] = s.name
	}
	return names
}

// selectSections resolves --only. Empty selects every section, in the default order.
func selectSections(only string) ([]section, error) {
	names := config.ParseList(strings.ToLower(only), false)
	if len(names) == 0 {
		return sections, nil
	}
	wanted := make(map[string]bool, len(names))
	for _, name := range names {
		wanted[name] = true
	}
	out := make([]section, 0, len(names))
	for _, s := range sections {
		if wanted[s.name] {
			out = append(out, s)
			delete(wanted, s.name)
		}
	}
	for name := range wanted {
		return nil, fmt.Errorf("%w: unknown section %q (want %s)", config.ErrInvalidConfig, name, strings.Join(sectionNames(), ","))
	}
	return out, nil
}

// builder holds the inputs shared between sections. Each is loaded on first use
// and kept for the run.
type builder struct {
	env       *app.Env
	countries *reference.Table
	sources   *enrich.Sources
	prices    *prices.Cache
	bank      *worldbank.Provider

	africaTrade    *memo.Once[[]model.TradeRecord]
	classification *memo.Once[codes.Classification]
	africa         *memo.Once[[]flows.Row]
	debts          *memo.Memo[string, []debt.Debt]
}

func newBuilder(ctx context.Context, env *app.Env) *builder {
	cfg := env.Config
	b := &builder{env: env, countries: reference.Countries()}

	var indicators enrich.IndicatorProvider
	if bank, err := worldbank.NewWithConfig(worldbank.Config{BaseURL: cfg.WorldBank.BaseURL, Timeout: cfg.WorldBank.Timeout}); err == nil {
		b.bank = bank
		indicators = bank
	} else {
		env.Logger.Warn("world bank provider disabled", zap.Error(err))
	}
	var outlook enrich.OutlookProvider
	if release, err := weo.NewWithConfig(weo.Config{URL: cfg.WEO.URL, Timeout: cfg.WEO.Timeout}); err == nil {
		outlook = release
	} else {
		env.Logger.Warn("weo provider disabled", zap.Error(err))
	}
	b.sources = enrich.NewSources(ctx, env.Store, indicators, outlook, env.Logger)

	priceSources := []prices.Source{prices.StoreSource{Store: env.Store}}
	if sheet, err := pinksheet.NewWithConfig(pinksheet.Config{URL: cfg.Prices.URL, Timeout: cfg.Prices.Timeout}); err == nil {
		priceSources = append(priceSources, prices.FetchSource{Fetcher: sheet, Sheet: cfg.Prices.Sheet})
	}
	b.prices = prices.NewCache(ctx, env.Logger, priceSources...)

	b.africaTrade = memo.NewOnce(func() ([]model.TradeRecord, error) {
		return baci.WorldTradeAfrica(cfg.Paths.Snapshots, cfg.Trade.StartYear, cfg.Trade.EndYear)
	})
	b.classification = memo.NewOnce(func() (codes.Classification, error) {
		var products []codes.Product
		err := b.open(ctx, productCodesFile, func(r io.Reader) error {
			var err error
			products, err = codes.LoadProducts(r)
			return err
		})
		if err != nil {
			return codes.Classification{}, err
		}
		records, err := b.africaTrade.Get()
		if err != nil {
			return codes.Classification{}, err
		}
		return codes.Classify(baci.Codes(records), products), nil
	})
	b.africa = memo.NewOnce(func() ([]flows.Row, error) {
		classification, err := b.classification.Get()
		if err != nil {
			return nil, err
		}
		records, err := b.africaTrade.Get()
		if err != nil {
			return nil, err
		}
		rows := flows.ExportsToAfrica(records, classification, b.env.Config.Trade.DetailedExporters, b.countries)
		logging.Stage(env.Logger, "exports_to_africa", len(records), len(rows))
		return rows, nil
	})
	b.debts = memo.New(func(indicator string) ([]debt.Debt, error) {
		var rows []debt.Row
		err := b.open(ctx, debt.RawFile(indicator), func(r io.Reader) error {
			var err error
			rows, err = debt.Read(r)
			return err
		})
		if err != nil {
			return nil, err
		}
		// The chart keeps the whole window; the explorer picks one year per indicator.
		debts, err := debt.Pipeline(rows, indicator, cfg.Trade.StartYear, debtServiceYear, b.countries)
		if err != nil {
			return nil, err
		}
		logging.Stage(env.Logger, "debt_"+indicator, len(rows), len(debts))
		return debts, nil
	})
	return b
}

// close releases the providers held by the builder.
func (b *builder) close() {
	if b.bank != nil {
		_ = b.bank.Close()
	}
}

// open reads a raw file through the configured opener.
func (b *builder) open(ctx context.Context, name string, read func(io.Reader) error) error {
	rc, err := b.env.Raw.Open(ctx, name)
	if err != nil {
		return err
	}
	defer rc.Close()
	if err := read(rc); err != nil {
		return fmt.Errorf("read %s: %w", b.env.Raw.Describe(name), err)
	}
	return nil
}

func (b *builder) incomeLevels(ctx context.Context) (enrich.Labels, error) {
	levels, err := b.sources.IncomeLevels()
	if err == nil {
		return levels, nil
	}
	b.env.Logger.Warn("income levels unavailable, using raw extract", zap.Error(err))
	err = b.open(ctx, incomeLevelsFile, func(r io.Reader) error {
		var err error
		levels, err = enrich.IncomeLevelsCSV(r)
		return err
	})
	return levels, err
}

func buildStory(ctx context.Context, b *builder) ([]charts.File, error) {
	cfg := b.env.Config
	africa, err := b.africa.Get()
	if err != nil {
		return nil, err
	}
	classification, err := b.classification.Get()
	if err != nil {
		return nil, err
	}
	records, err := baci.WorldTrade(cfg.Paths.Snapshots, cfg.Trade.StartYear, cfg.Trade.EndYear)
	if err != nil {
		return nil, err
	}
	world := flows.ExportsNoIntraEurope(records, classification, cfg.Trade.DetailedExporters, b.countries)
	logging.Stage(b.env.Logger, "world_exports", len(records), len(world))
	return charts.Story(africa, world), nil
}

func buildImpact(ctx context.Context, b *builder) ([]charts.File, error) {
	cfg := b.env.Config

	var study map[string]impact.Commodity
	err := b.open(ctx, impact.StudyFile, func(r io.Reader) error {
		var err error
		study, err = impact.StudyCommodities(r)
		return err
	})
	if err != nil {
		return nil, err
	}
	records, err := baci.ReadFull(cfg.Paths.Snapshots)
	if err != nil {
		return nil, fmt.Errorf("full snapshot, run collector baci --full first: %w", err)
	}
	table, err := b.prices.Get()
	if err != nil {
		return nil, err
	}
	needed := impact.PriceCommodities(study)
	table = table.Select(needed...)
	for _, name := range needed {
		if !table.Has(name) {
			logging.DataQuality(b.env.Logger, "commodity", "no price for "+name, 1)
		}
	}
	snapshots := table.Snapshots(cfg.Prices.ReferenceStart, cfg.Prices.ReferenceEnd)

	net := impact.NetImportsAfrica(records, study, false)
	logging.Stage(b.env.Logger, "net_imports", len(records), len(net))

	population, err := b.sources.Population()
	if err != nil {
		return nil, err
	}
	gdp, err := b.sources.GDP(cfg.WEO.Year)
	if err != nil {
		return nil, err
	}
	income, err := b.incomeLevels(ctx)
	if err != nil {
		return nil, err
	}
	ppp, err := b.sources.PPPFactors()
	if err != nil {
		return nil, err
	}

	analysis := impact.Analysis(impact.Spending(net, snapshots), impact.Enrichment{
		Countries:    b.countries,
		Population:   population,
		GDP:          gdp,
		IncomeLevels: income,
		PPP:          ppp,
	}, b.env.Logger)
	revenue := impact.CrudeRevenue(net, cfg.Trade.CrudeCountries, snapshots, population, b.countries)
	return charts.Impact(analysis, revenue), nil
}

func buildFertiliser(ctx context.Context, b *builder) ([]charts.File, error) {
	cfg := b.env.Config

	readBalances := func(name string) ([]fertiliser.Balance, error) {
		var rows []fertiliser.FAORow
		err := b.open(ctx, name, func(r io.Reader) error {
			var err error
			rows, err = fertiliser.ReadFAO(r)
			return err
		})
		if err != nil {
			return nil, err
		}
		balances := fertiliser.CleanFAO(rows, cfg.Fertiliser.Years, b.countries)
		logging.Stage(b.env.Logger, "fao_"+strings.TrimSuffix(name, ".csv"), len(rows), len(balances))
		return balances, nil
	}

	nutrients, err := readBalances(fertiliser.NutrientsFile)
	if err != nil {
		return nil, err
	}
	products, err := readBalances(fertiliser.ProductsFile)
	if err != nil {
		return nil, err
	}

	var geometries enrich.Labels
	err = b.open(ctx, geometriesFile, func(r io.Reader) error {
		var err error
		geometries, err = enrich.Geometries(r)
		return err
	})
	if errors.Is(err, rawdata.ErrNotExist) {
		b.env.Logger.Warn("no map geometries, dependence maps are written without shapes", zap.String("file", geometriesFile))
	} else if err != nil {
		return nil, err
	}

	table, err := b.prices.Get()
	if err != nil {
		return nil, err
	}

	dependence := fertiliser.Dependence(nutrients)
	scenario := fertiliser.Scenario{
		ExportCut:  cfg.Fertiliser.ExportCut,
		Disrupted:  cfg.Fertiliser.Disrupted,
		Privileged: cfg.Fertiliser.Privileged,
	}
	slope := fertiliser.Slope(products, table.Snapshots(fertiliser.SlopeReferenceStart, fertiliser.SlopeReferenceEnd))

	return charts.Fertiliser(
		fertiliser.PriceChart(table, cfg.Fertiliser.PriceChartStart),
		fertiliser.DependenceMaps(dependence, geometries, b.countries),
		fertiliser.Shortages(nutrients, scenario),
		fertiliser.AfricaSlope(slope, nil),
	), nil
}

func buildDebt(_ context.Context, b *builder) ([]charts.File, error) {
	files := make([]charts.File, 0, 2)
	for _, indicator := range []string{debt.Stocks, debt.Service} {
		debts, err := b.debts.Get(indicator)
		if err != nil {
			return nil, err
		}
		files = append(files, charts.File{Name: charts.DebtFile(indicator), Table: charts.Debt(debts)})
	}
	return files, nil
}

func buildPrices(_ context.Context, b *builder) ([]charts.File, error) {
	cfg := b.env.Config.Prices
	table, err := b.prices.Get()
	if err != nil {
		return nil, err
	}
	out, err := charts.CommodityPrices(table, cfg.Commodities, cfg.ChartStart)
	if err != nil {
		return nil, err
	}
	return []charts.File{{Name: charts.CommodityPricesFile, Table: out}}, nil
}

func buildExplorer(ctx context.Context, b *builder) ([]charts.File, error) {
	africa, err := b.africa.Get()
	if err != nil {
		return nil, err
	}

	var votes map[string]explorer.Vote
	err = b.open(ctx, explorer.VoteFile, func(r io.Reader) error {
		var err error
		votes, err = explorer.ReadVotes(r, explorer.VoteSheet)
		return err
	})
	if err != nil {
		return nil, err
	}

	stocks, err := b.debtTotals(debt.Stocks, debtStocksYear)
	if err != nil {
		return nil, err
	}
	service, err := b.debtTotals(debt.Service, debtServiceYear)
	if err != nil {
		return nil, err
	}
	income, err := b.incomeLevels(ctx)
	if err != nil {
		return nil, err
	}
	gdp, err := b.sources.GDP(b.env.Config.WEO.Year)
	if err != nil {
		return nil, err
	}

	rows, categories := explorer.Build(explorer.Inputs{
		Trade:        flows.CategoriesByCountry(africa),
		Votes:        votes,
		DebtStocks:   stocks,
		DebtService:  service,
		IncomeLevels: income,
		GDP:          gdp,
		Countries:    b.countries,
	})
	return []charts.File{{Name: charts.ExplorerFile, Table: charts.Explorer(rows, categories)}}, nil
}

// debtTotals sums one year of an indicator per debtor.
func (b *builder) debtTotals(indicator string, year int) (map[string]float64, error) {
	debts, err := b.debts.Get(indicator)
	if err != nil {
		return nil, err
	}
	inYear := make([]debt.Debt, 0, len(debts))
	for _, d := range debts {
		if d.Year == year {
			inYear = append(inYear, d)
		}
	}
	return debt.ByCountry(inYear), nil
}
