// Package app wires config, logging, metrics, the store and the raw file opener
// for one collector or publisher command.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"tradeimpact/internal/config"
	"tradeimpact/internal/logging"
	"tradeimpact/internal/metrics"
	"tradeimpact/internal/model"
	"tradeimpact/internal/rawdata"
	"tradeimpact/internal/store"
	"tradeimpact/internal/store/sqlite"
)

// Env is everything a command needs. Close it when the command returns.
type Env struct {
	Config  config.Config
	Logger  *zap.Logger
	Metrics *metrics.Recorder
	Store   store.Store
	Raw     rawdata.Opener

	run model.Run
}

// New loads the config from v and opens the collaborators it names.
func New(ctx context.Context, v *viper.Viper, command string) (*Env, error) {
	cfg, err := config.Load(v)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	st, err := OpenStore(cfg.Paths.DB)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	raw, err := rawdata.New(ctx, cfg)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	env := &Env{
		Config:  cfg,
		Logger:  logger,
		Metrics: metrics.New(),
		Store:   st,
		Raw:     raw,
		run:     model.Run{ID: uuid.NewString(), Command: command, StartedAt: time.Now().UTC()},
	}
	env.Logger = env.Logger.With(zap.String("run_id", env.run.ID), zap.String("command", command))
	return env, nil
}

// OpenStore opens the sqlite store at path. An empty path disables persistence.
func OpenStore(path string) (store.Store, error) {
	if strings.TrimSpace(path) == "" {
		return &store.NopStore{}, nil
	}
	return sqlite.New(path)
}

func (e *Env) RunID() string {
	return e.run.ID
}

func (e *Env) StartedAt() time.Time {
	return e.run.StartedAt
}

// Finish records the run in the store and flushes metrics. It is called once,
// after the command succeeded.
func (e *Env) Finish(ctx context.Context, files int) error {
	e.run.FinishedAt = time.Now().UTC()
	e.run.Files = files
	var errs []error
	if err := e.Store.RecordRun(ctx, e.run); err != nil {
		errs = append(errs, fmt.Errorf("record run: %w", err))
	}
	if err := e.Metrics.Flush(e.Config.Metrics.Textfile); err != nil {
		errs = append(errs, fmt.Errorf("write metrics: %w", err))
	}
	e.Logger.Info("run complete",
		zap.Int("files", files),
		zap.Duration("elapsed", e.run.FinishedAt.Sub(e.run.StartedAt)),
	)
	return errors.Join(errs...)
}

func (e *Env) Close() error {
	_ = e.Logger.Sync()
	return e.Store.Close()
}
