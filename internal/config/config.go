// Package config loads the settings shared by the collector and publisher.
//
// Values come from viper, so every key can be set in tradeimpact.yaml, through a
// TRADEIMPACT_ environment variable (dots become underscores) or a bound flag.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"tradeimpact/internal/logging"
)

var ErrInvalidConfig = errors.New("invalid configuration")

const (
	EnvPrefix = "TRADEIMPACT"

	RawSourceFile = "file"
	RawSourceS3   = "s3"

	DefaultPricesURL = "https://thedocs.worldbank.org/en/doc/5d903e848db1d1b83e0ec8f744e55570-" +
		"0350012021/related/CMO-Historical-Data-Monthly.xlsx"
	DefaultWEOURL = "https://www.imf.org/-/media/Files/Publications/WEO/WEO-Database/2022/WEOApr2022all.ashx"
)

type Config struct {
	Paths      Paths
	Raw        RawSource
	Trade      Trade
	Prices     Prices
	WorldBank  WorldBank
	WEO        WEO
	Fertiliser Fertiliser
	Logging    logging.Config
	Metrics    Metrics
}

type Paths struct {
	Raw       string
	Output    string
	DB        string
	Snapshots string
}

type RawSource struct {
	Source string
	S3     S3
}

// S3 locates raw files in a bucket. Static keys are optional; without them the
// default AWS credential chain is used.
type S3 struct {
	Bucket          string
	Prefix          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

type Trade struct {
	StartYear         int
	EndYear           int
	DetailedExporters []string
	CrudeCountries    []string
}

type Prices struct {
	URL            string
	Sheet          string
	ReferenceStart int
	ReferenceEnd   int
	ChartStart     time.Time
	Commodities    []string
	Timeout        time.Duration
}

type WorldBank struct {
	BaseURL string
	Timeout time.Duration
}

type WEO struct {
	URL     string
	Year    int
	Timeout time.Duration
}

type Fertiliser struct {
	Years           []int
	ExportCut       float64
	Disrupted       []string
	Privileged      []string
	PriceChartStart time.Time
}

type Metrics struct {
	Textfile string
}

// SetDefaults registers every key with its default so env lookups work for keys
// that are absent from the config file.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("paths.raw", "raw_data")
	v.SetDefault("paths.output", "output")
	v.SetDefault("paths.db", "tradeimpact.db")
	v.SetDefault("paths.snapshots", "")

	v.SetDefault("raw.source", RawSourceFile)
	v.SetDefault("raw.s3.bucket", "")
	v.SetDefault("raw.s3.prefix", "")
	v.SetDefault("raw.s3.region", "us-east-1")
	v.SetDefault("raw.s3.endpoint", "")
	v.SetDefault("raw.s3.access_key_id", "")
	v.SetDefault("raw.s3.secret_access_key", "")

	v.SetDefault("trade.start_year", 2018)
	v.SetDefault("trade.end_year", 2020)
	v.SetDefault("trade.detailed_exporters", "RUS,UKR")
	v.SetDefault("trade.crude_countries", "NGA,AGO,LBY,DZA,COG,EGY")

	v.SetDefault("prices.url", DefaultPricesURL)
	v.SetDefault("prices.sheet", "Monthly Prices")
	v.SetDefault("prices.reference_start", 2018)
	v.SetDefault("prices.reference_end", 2020)
	v.SetDefault("prices.chart_start", "2018-01-01")
	v.SetDefault("prices.commodities", "Sunflower oil,Maize,Wheat,Palm oil")
	v.SetDefault("prices.timeout_seconds", 60)

	v.SetDefault("worldbank.base_url", "https://api.worldbank.org/v2/")
	v.SetDefault("worldbank.timeout_seconds", 20)

	v.SetDefault("weo.url", DefaultWEOURL)
	v.SetDefault("weo.year", 2022)
	v.SetDefault("weo.timeout_seconds", 60)

	v.SetDefault("fertiliser.years", "2017,2018,2019")
	v.SetDefault("fertiliser.export_cut", 1.0)
	v.SetDefault("fertiliser.disrupted_exporters", "RUS,BLR")
	v.SetDefault("fertiliser.privileged_group",
		"ARG,AUS,BRA,CAN,CHN,FRA,DEU,IND,IDN,ITA,JPN,KOR,MEX,SAU,ZAF,TUR,GBR,USA")
	v.SetDefault("fertiliser.price_chart_start", "2007-05-01")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.output_path", "")

	v.SetDefault("metrics.textfile", "")
}

// Init wires env lookups and reads the config file. A missing file is not an error
// unless it was named explicitly.
func Init(v *viper.Viper, file string) error {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(ExpandPath(file))
	} else {
		v.SetConfigName("tradeimpact")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "tradeimpact"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) && file == "" {
			return nil
		}
		return fmt.Errorf("failed to read config: %w", err)
	}
	return nil
}

// BindFlags binds flags to config keys, keyed by flag name. A flag only overrides
// the config file and environment when it is set on the command line.
func BindFlags(v *viper.Viper, flags *pflag.FlagSet, keys map[string]string) error {
	for name, key := range keys {
		flag := flags.Lookup(name)
		if flag == nil {
			return fmt.Errorf("config: no flag %q to bind to %s", name, key)
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return err
		}
	}
	return nil
}

// Load builds a validated Config from v.
func Load(v *viper.Viper) (Config, error) {
	cfg := Config{
		Paths: Paths{
			Raw:       ExpandPath(v.GetString("paths.raw")),
			Output:    ExpandPath(v.GetString("paths.output")),
			DB:        ExpandPath(v.GetString("paths.db")),
			Snapshots: ExpandPath(v.GetString("paths.snapshots")),
		},
		Raw: RawSource{
			Source: strings.ToLower(strings.TrimSpace(v.GetString("raw.source"))),
			S3: S3{
				Bucket:          v.GetString("raw.s3.bucket"),
				Prefix:          v.GetString("raw.s3.prefix"),
				Region:          v.GetString("raw.s3.region"),
				Endpoint:        v.GetString("raw.s3.endpoint"),
				AccessKeyID:     v.GetString("raw.s3.access_key_id"),
				SecretAccessKey: v.GetString("raw.s3.secret_access_key"),
			},
		},
		Trade: Trade{
			StartYear:         v.GetInt("trade.start_year"),
			EndYear:           v.GetInt("trade.end_year"),
			DetailedExporters: stringList(v, "trade.detailed_exporters", true),
			CrudeCountries:    stringList(v, "trade.crude_countries", true),
		},
		Prices: Prices{
			URL:            v.GetString("prices.url"),
			Sheet:          v.GetString("prices.sheet"),
			ReferenceStart: v.GetInt("prices.reference_start"),
			ReferenceEnd:   v.GetInt("prices.reference_end"),
			Commodities:    stringList(v, "prices.commodities", false),
			Timeout:        time.Duration(v.GetInt("prices.timeout_seconds")) * time.Second,
		},
		WorldBank: WorldBank{
			BaseURL: v.GetString("worldbank.base_url"),
			Timeout: time.Duration(v.GetInt("worldbank.timeout_seconds")) * time.Second,
		},
		WEO: WEO{
			URL:     v.GetString("weo.url"),
			Year:    v.GetInt("weo.year"),
			Timeout: time.Duration(v.GetInt("weo.timeout_seconds")) * time.Second,
		},
		Fertiliser: Fertiliser{
			ExportCut:  v.GetFloat64("fertiliser.export_cut"),
			Disrupted:  stringList(v, "fertiliser.disrupted_exporters", true),
			Privileged: stringList(v, "fertiliser.privileged_group", true),
		},
		Logging: logging.Config{
			Level:      v.GetString("logging.level"),
			Format:     v.GetString("logging.format"),
			OutputPath: v.GetString("logging.output_path"),
		},
		Metrics: Metrics{
			Textfile: ExpandPath(v.GetString("metrics.textfile")),
		},
	}
	if cfg.Paths.Snapshots == "" {
		cfg.Paths.Snapshots = cfg.Paths.Raw
	}

	var err error
	if cfg.Prices.ChartStart, err = parseDate("prices.chart_start", v.GetString("prices.chart_start")); err != nil {
		return Config{}, err
	}
	if cfg.Fertiliser.PriceChartStart, err = parseDate("fertiliser.price_chart_start", v.GetString("fertiliser.price_chart_start")); err != nil {
		return Config{}, err
	}
	if cfg.Fertiliser.Years, err = parseYears(stringList(v, "fertiliser.years", false)); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Trade.StartYear > c.Trade.EndYear {
		return fmt.Errorf("%w: trade.start_year %d after trade.end_year %d", ErrInvalidConfig, c.Trade.StartYear, c.Trade.EndYear)
	}
	if c.Prices.ReferenceStart > c.Prices.ReferenceEnd {
		return fmt.Errorf("%w: prices.reference_start %d after prices.reference_end %d", ErrInvalidConfig, c.Prices.ReferenceStart, c.Prices.ReferenceEnd)
	}
	if c.Fertiliser.ExportCut < 0 || c.Fertiliser.ExportCut > 1 {
		return fmt.Errorf("%w: fertiliser.export_cut must be within [0, 1], got %v", ErrInvalidConfig, c.Fertiliser.ExportCut)
	}
	switch c.Raw.Source {
	case RawSourceFile:
	case RawSourceS3:
		if strings.TrimSpace(c.Raw.S3.Bucket) == "" {
			return fmt.Errorf("%w: raw.s3.bucket is required for the s3 source", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown raw.source %q", ErrInvalidConfig, c.Raw.Source)
	}
	if len(c.Fertiliser.Years) == 0 {
		return fmt.Errorf("%w: fertiliser.years is empty", ErrInvalidConfig)
	}
	return nil
}

// ParseList splits a comma-separated value, dropping blanks. Upper-cases items when
// upper is set, which is what ISO3 lists want.
func ParseList(value string, upper bool) []string {
	return cleanList(strings.Split(value, ","), upper)
}

// stringList reads key as a YAML sequence when it is one, and as a comma-separated
// string otherwise (defaults, env vars and flags). Sequence items are not split.
func stringList(v *viper.Viper, key string, upper bool) []string {
	switch v.Get(key).(type) {
	case []any, []string:
		return cleanList(v.GetStringSlice(key), upper)
	default:
		return ParseList(v.GetString(key), upper)
	}
}

func cleanList(raw []string, upper bool) []string {
	items := make([]string, 0, len(raw))
	for _, item := range raw {
		trimmed := strings.TrimSpace(item)
		if trimmed == "" {
			continue
		}
		if upper {
			trimmed = strings.ToUpper(trimmed)
		}
		items = append(items, trimmed)
	}
	return items
}

// ExpandPath expands a leading ~ and environment variables.
func ExpandPath(path string) string {
	if path == "" {
		return path
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
		}
	}
	return os.ExpandEnv(path)
}

func parseDate(key, value string) (time.Time, error) {
	parsed, err := time.Parse("2006-01-02", strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, key, err)
	}
	return parsed, nil
}

func parseYears(items []string) ([]int, error) {
	years := make([]int, 0, len(items))
	for _, item := range items {
		year, err := strconv.Atoi(item)
		if err != nil {
			return nil, fmt.Errorf("%w: fertiliser.years: %q is not a year", ErrInvalidConfig, item)
		}
		years = append(years, year)
	}
	return years, nil
}
