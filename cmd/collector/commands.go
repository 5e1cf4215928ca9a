package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"tradeimpact/internal/app"
	"tradeimpact/internal/baci"
	"tradeimpact/internal/config"
	"tradeimpact/internal/enrich"
	"tradeimpact/internal/model"
	"tradeimpact/internal/prices"
	"tradeimpact/internal/providers/pinksheet"
	"tradeimpact/internal/providers/weo"
	"tradeimpact/internal/providers/worldbank"
	"tradeimpact/internal/reference"
	"tradeimpact/internal/store"
)

// storedIndicators are the World Bank series the publisher reads back.
var storedIndicators = []string{
	worldbank.Population,
	worldbank.OfficialExchangeRate,
	worldbank.PPPConversionFactor,
}

func baciCmd(v *viper.Viper) *cobra.Command {
	var full bool
	cmd := &cobra.Command{
		Use:   "baci",
		Short: "Convert raw BACI trade CSVs into Arrow snapshots",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWith(cmd, v, func(ctx context.Context, env *app.Env) (int, error) {
				return collectBACI(ctx, env, full)
			})
		},
	}
	cmd.Flags().Int("from", 0, "first year to convert (default: trade.start_year)")
	cmd.Flags().Int("to", 0, "last year to convert (default: trade.end_year)")
	cmd.Flags().BoolVar(&full, "full", false, "also write one snapshot with quantities for the whole range")
	cobra.CheckErr(config.BindFlags(v, cmd.Flags(), map[string]string{
		"from": "trade.start_year",
		"to":   "trade.end_year",
	}))
	return cmd
}

func pricesCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prices",
		Short: "Download the monthly commodity price workbook into the store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWith(cmd, v, func(ctx context.Context, env *app.Env) (int, error) {
				return 0, collectPrices(ctx, env)
			})
		},
	}
	cmd.Flags().String("url", "", "workbook url (default: prices.url)")
	cobra.CheckErr(config.BindFlags(v, cmd.Flags(), map[string]string{"url": "prices.url"}))
	return cmd
}

func indicatorsCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "indicators",
		Short: "Download World Bank indicators, income levels and WEO GDP into the store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWith(cmd, v, func(ctx context.Context, env *app.Env) (int, error) {
				return 0, collectIndicators(ctx, env)
			})
		},
	}
	cmd.Flags().Int("weo-year", 0, "WEO year checked for one GDP value per country (default: weo.year)")
	cobra.CheckErr(config.BindFlags(v, cmd.Flags(), map[string]string{"weo-year": "weo.year"}))
	return cmd
}

func allCmd(v *viper.Viper) *cobra.Command {
	var full bool
	cmd := &cobra.Command{
		Use:   "all",
		Short: "Run baci, prices and indicators in turn",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWith(cmd, v, func(ctx context.Context, env *app.Env) (int, error) {
				files, err := collectBACI(ctx, env, full)
				if err != nil {
					return files, err
				}
				if err := collectPrices(ctx, env); err != nil {
					return files, err
				}
				return files, collectIndicators(ctx, env)
			})
		},
	}
	cmd.Flags().BoolVar(&full, "full", true, "also write the full snapshot with quantities")
	return cmd
}

func collectBACI(ctx context.Context, env *app.Env, full bool) (int, error) {
	cfg := env.Config
	converter := baci.NewConverter(env.Raw, reference.Countries(), env.Logger, env.Metrics)

	files := 0
	for year := cfg.Trade.StartYear; year <= cfg.Trade.EndYear; year++ {
		rows, err := converter.Convert(ctx, year, cfg.Paths.Snapshots)
		if err != nil {
			return files, fmt.Errorf("convert %d: %w", year, err)
		}
		files++
		env.Logger.Info("snapshot written",
			zap.Int("year", year),
			zap.Int("rows", rows),
			zap.String("file", baci.SnapshotFile(year)),
		)
	}
	if !full {
		return files, nil
	}
	rows, err := converter.ConvertFull(ctx, cfg.Trade.StartYear, cfg.Trade.EndYear, cfg.Paths.Snapshots)
	if err != nil {
		return files, fmt.Errorf("convert full range: %w", err)
	}
	env.Logger.Info("snapshot written", zap.Int("rows", rows), zap.String("file", baci.FullSnapshot))
	return files + 1, nil
}

func collectPrices(ctx context.Context, env *app.Env) error {
	cfg := env.Config.Prices
	defer env.Metrics.Time("prices")()

	provider, err := pinksheet.NewWithConfig(pinksheet.Config{URL: cfg.URL, Timeout: cfg.Timeout})
	if err != nil {
		return err
	}
	table, err := prices.FetchSource{Fetcher: provider, Sheet: cfg.Sheet}.Table(ctx)
	if err != nil {
		return fmt.Errorf("prices: %w", err)
	}
	points := table.Long()
	if err := env.Store.UpsertPrices(ctx, points); err != nil {
		return fmt.Errorf("store prices: %w", err)
	}
	env.Metrics.RowsRead("prices", len(points))
	env.Logger.Info("prices stored",
		zap.Int("commodities", len(table.Commodities)),
		zap.Int("periods", len(table.Periods)),
		zap.Int("points", len(points)),
	)
	return nil
}

func collectIndicators(ctx context.Context, env *app.Env) error {
	cfg := env.Config
	defer env.Metrics.Time("indicators")()

	bank, err := worldbank.NewWithConfig(worldbank.Config{BaseURL: cfg.WorldBank.BaseURL, Timeout: cfg.WorldBank.Timeout})
	if err != nil {
		return err
	}
	defer bank.Close()
	for _, code := range storedIndicators {
		values, err := bank.Indicator(ctx, code)
		if errors.Is(err, worldbank.ErrNoRecords) {
			env.Logger.Warn("indicator empty", zap.String("indicator", code))
			continue
		}
		if err != nil {
			return err
		}
		if err := env.Store.UpsertIndicators(ctx, values); err != nil {
			return fmt.Errorf("store %s: %w", code, err)
		}
		env.Metrics.RowsRead("indicator_"+code, len(values))
		env.Logger.Info("indicator stored", zap.String("indicator", code), zap.Int("values", len(values)))
	}

	levels, err := bank.IncomeLevels(ctx)
	if err != nil {
		return err
	}
	labels := make([]model.Label, 0, len(levels))
	for iso, level := range levels {
		labels = append(labels, model.Label{Kind: store.LabelIncomeLevel, ISO3: iso, Value: level})
	}
	if err := env.Store.UpsertLabels(ctx, labels); err != nil {
		return fmt.Errorf("store income levels: %w", err)
	}
	env.Logger.Info("income levels stored", zap.Int("countries", len(labels)))

	outlook, err := weo.NewWithConfig(weo.Config{URL: cfg.WEO.URL, Timeout: cfg.WEO.Timeout})
	if err != nil {
		return err
	}
	records, err := outlook.Records(ctx)
	if err != nil {
		return err
	}
	gdp, err := enrich.GDP(records, cfg.WEO.Year)
	if err != nil {
		return fmt.Errorf("weo %d: %w", cfg.WEO.Year, err)
	}
	values := enrich.GDPValues(records)
	if err := env.Store.UpsertIndicators(ctx, values); err != nil {
		return fmt.Errorf("store gdp: %w", err)
	}
	env.Logger.Info("gdp stored",
		zap.Int("values", len(values)),
		zap.Int("year", cfg.WEO.Year),
		zap.Int("countries_in_year", len(gdp)),
	)
	return nil
}
