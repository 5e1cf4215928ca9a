package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"tradeimpact/internal/app"
	"tradeimpact/internal/charts"
	"tradeimpact/internal/config"
)

type metaFile struct {
	GeneratedAt string   `json:"generated_at"`
	RunID       string   `json:"run_id"`
	Files       []string `json:"files"`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd(viper.New()).ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "publisher:", err)
		os.Exit(1)
	}
}

func newRootCmd(v *viper.Viper) *cobra.Command {
	var cfgFile string
	root := &cobra.Command{
		Use:           "publisher",
		Short:         "Build the chart CSVs from snapshots, the store and raw reference files",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return config.Init(v, cfgFile)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default: ./tradeimpact.yaml)")
	flags.String("raw", "", "raw data directory")
	flags.String("snapshots", "", "snapshot directory (default: the raw data directory)")
	flags.String("db", "", "sqlite database path (empty reads everything live)")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.String("log-format", "", "log format (console, json)")
	cobra.CheckErr(config.BindFlags(v, flags, map[string]string{
		"raw":        "paths.raw",
		"snapshots":  "paths.snapshots",
		"db":         "paths.db",
		"log-level":  "logging.level",
		"log-format": "logging.format",
	}))

	root.AddCommand(buildCmd(v))
	return root
}

func buildCmd(v *viper.Viper) *cobra.Command {
	var only string
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Write chart CSVs and meta.json",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			selected, err := selectSections(only)
			if err != nil {
				return err
			}
			return build(cmd.Context(), v, selected)
		},
	}
	cmd.Flags().String("out", "", "output directory (default: paths.output)")
	cmd.Flags().StringVar(&only, "only", "", "comma-separated sections to build ("+strings.Join(sectionNames(), ",")+")")
	cobra.CheckErr(config.BindFlags(v, cmd.Flags(), map[string]string{"out": "paths.output"}))
	return cmd
}

func build(ctx context.Context, v *viper.Viper, selected []section) error {
	env, err := app.New(ctx, v, "publisher build")
	if err != nil {
		return err
	}
	defer env.Close()

	out := env.Config.Paths.Output
	if err := os.MkdirAll(out, 0o755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}

	b := newBuilder(ctx, env)
	defer b.close()
	writer := charts.NewWriter(out, env.Logger, env.Metrics)
	for _, s := range selected {
		done := env.Metrics.Time("charts_" + s.name)
		files, err := s.build(ctx, b)
		done()
		if err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
		if err := writer.Write(s.name, files...); err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
	}

	meta := metaFile{
		GeneratedAt: env.StartedAt().Format(time.RFC3339),
		RunID:       env.RunID(),
		Files:       writer.Files(),
	}
	if err := writeJSON(filepath.Join(out, "meta.json"), meta); err != nil {
		return fmt.Errorf("failed to write meta.json: %w", err)
	}
	env.Logger.Info("publisher build complete", zap.String("out", out), zap.Int("files", len(meta.Files)))
	return env.Finish(ctx, len(meta.Files))
}

func writeJSON(path string, value any) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(value); err != nil {
		return err
	}
	return file.Close()
}
