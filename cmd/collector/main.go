package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"tradeimpact/internal/app"
	"tradeimpact/internal/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd(viper.New()).ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "collector:", err)
		os.Exit(1)
	}
}

func newRootCmd(v *viper.Viper) *cobra.Command {
	var cfgFile string
	root := &cobra.Command{
		Use:           "collector",
		Short:         "Convert raw trade files and collect prices and country indicators",
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
	flags.String("db", "", "sqlite database path (empty disables persistence)")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.String("log-format", "", "log format (console, json)")
	cobra.CheckErr(config.BindFlags(v, flags, map[string]string{
		"raw":        "paths.raw",
		"snapshots":  "paths.snapshots",
		"db":         "paths.db",
		"log-level":  "logging.level",
		"log-format": "logging.format",
	}))

	root.AddCommand(
		baciCmd(v),
		pricesCmd(v),
		indicatorsCmd(v),
		allCmd(v),
	)
	return root
}

// runWith opens an Env for command, runs fn and records the run when fn succeeds.
func runWith(cmd *cobra.Command, v *viper.Viper, fn func(ctx context.Context, env *app.Env) (int, error)) error {
	ctx := cmd.Context()
	env, err := app.New(ctx, v, "collector "+cmd.Name())
	if err != nil {
		return err
	}
	defer env.Close()

	files, err := fn(ctx, env)
	if err != nil {
		return err
	}
	return env.Finish(ctx, files)
}
