package cmd

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"gadgetwars.ai/internal/decisions"
	"gadgetwars.ai/internal/game"
	persistlog "gadgetwars.ai/internal/persistence/log"
	"gadgetwars.ai/internal/persistence/store"
	"gadgetwars.ai/internal/sim/catalogs"
	"gadgetwars.ai/internal/sim/engine"
	"gadgetwars.ai/internal/sim/tuning"
)

// config carries every path and address the CLI needs. Values resolve in
// the usual order: flags, then GW_* environment, then gadgetwars.yaml,
// then defaults.
type config struct {
	DataDir     string
	ConfigDir   string
	SchemaDir   string
	TuningPath  string
	SnapshotDir string
	Listen      string
}

func loadConfig() *config {
	v := viper.New()
	v.SetDefault("data_dir", "./data")
	v.SetDefault("config_dir", "./configs")
	v.SetDefault("schema_dir", "./schemas")
	v.SetDefault("tuning_path", "")
	v.SetDefault("snapshot_dir", "")
	v.SetDefault("listen", ":8080")

	v.SetConfigName("gadgetwars")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".gadgetwars"))
	}
	v.SetEnvPrefix("GW")
	v.AutomaticEnv()

	// Missing config file is fine; everything has a default.
	_ = v.ReadInConfig()

	return &config{
		DataDir:     v.GetString("data_dir"),
		ConfigDir:   v.GetString("config_dir"),
		SchemaDir:   v.GetString("schema_dir"),
		TuningPath:  v.GetString("tuning_path"),
		SnapshotDir: v.GetString("snapshot_dir"),
		Listen:      v.GetString("listen"),
	}
}

type app struct {
	store     *store.Store
	engine    *engine.Engine
	validator *decisions.Validator
	runner    *game.Runner
	roundLog  *persistlog.RoundLogger
	log       *log.Logger
}

func wireApp(cfg *config) (*app, error) {
	logger := log.New(os.Stderr, "[gadgetwars] ", log.LstdFlags|log.Lmicroseconds)

	cats, err := catalogs.Load(cfg.ConfigDir)
	if err != nil {
		return nil, fmt.Errorf("load catalogs: %w", err)
	}

	tp := cfg.TuningPath
	if tp == "" {
		tp = filepath.Join(cfg.ConfigDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("load tuning: %w", err)
		}
		tune = tuning.Default()
	}

	eng, err := engine.New(cats, tune)
	if err != nil {
		return nil, fmt.Errorf("build engine: %w", err)
	}

	validator, err := decisions.NewValidator(cfg.SchemaDir)
	if err != nil {
		return nil, fmt.Errorf("compile schemas: %w", err)
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, err
	}
	st, err := store.Open(filepath.Join(cfg.DataDir, "gadgetwars.db"))
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if err := st.UpsertCatalogs(cats, tune); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("index catalogs: %w", err)
	}

	roundLog := persistlog.NewRoundLogger(cfg.DataDir)
	runner := &game.Runner{
		Store:       st,
		Engine:      eng,
		Validator:   validator,
		Log:         logger,
		SnapshotDir: cfg.SnapshotDir,
		RoundLog:    roundLog,
	}

	return &app{store: st, engine: eng, validator: validator, runner: runner, roundLog: roundLog, log: logger}, nil
}

func (a *app) Close() error {
	_ = a.roundLog.Close()
	return a.store.Close()
}
