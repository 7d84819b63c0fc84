package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ShayCichocki/gantry/internal/ai"
	"github.com/ShayCichocki/gantry/internal/config"
	"github.com/ShayCichocki/gantry/internal/engine"
	"github.com/ShayCichocki/gantry/internal/logging"
	"github.com/ShayCichocki/gantry/internal/store"
	"github.com/ShayCichocki/gantry/internal/telemetry"
)

// runtime bundles the wired pieces a command needs: resolved config,
// the task store, the mutation engine, and the optional telemetry and
// debug sinks. Close releases everything.
type runtime struct {
	cfg    *config.Config
	store  *store.FileStore
	eng    *engine.Engine
	tdb    *telemetry.DB
	logger *logging.DebugLogger
}

func loadConfig() (*config.Config, error) {
	if flagConfigPath != "" {
		return config.LoadFromPath(flagConfigPath)
	}
	return config.Load()
}

func projectRoot() string {
	if flagProjectDir == "" {
		return "."
	}
	return flagProjectDir
}

// tasksFilePath resolves the configured store file against the project
// root unless it is already absolute.
func tasksFilePath(cfg *config.Config) string {
	file := cfg.Store.File
	if filepath.IsAbs(file) {
		return file
	}
	return filepath.Join(projectRoot(), file)
}

// newRuntime wires config, store, telemetry, logging, and the engine.
// withAI additionally constructs the provider orchestrator, which
// fails fast when a configured provider has no API key; commands that
// never call a provider pass false so they work without keys.
func newRuntime(withAI bool) (*runtime, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	rt := &runtime{cfg: cfg}

	if cfg.Debug.Enabled {
		rt.logger = logging.NewDebugLoggerForProject(projectRoot())
		engine.SetDebugLogger(rt.logger)
		ai.SetDebugLogger(rt.logger)
	}

	st, err := store.NewFileStore(tasksFilePath(cfg))
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.store = st

	opts := []engine.Option{engine.WithWorkers(cfg.Limits.BatchWorkers)}
	if cfg.Telemetry.Enabled {
		tdb, err := telemetry.OpenProject(projectRoot())
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: telemetry store unavailable: %v\n", err)
		} else {
			rt.tdb = tdb
			opts = append(opts, engine.WithRecorder(tdb))
		}
	}

	var orch *ai.Orchestrator
	if withAI {
		var aiOpts []ai.Option
		if rt.tdb != nil {
			aiOpts = append(aiOpts, ai.WithRecorder(rt.tdb))
		}
		orch, err = ai.New(cfg.AIConfig(), aiOpts...)
		if err != nil {
			rt.Close()
			return nil, err
		}
	}

	rt.eng = engine.New(st, orch, opts...)
	return rt, nil
}

// Close releases the store lock, the telemetry database, and the debug
// log file. Safe on a partially constructed runtime.
func (rt *runtime) Close() {
	if rt.store != nil {
		rt.store.Close()
	}
	if rt.tdb != nil {
		rt.tdb.Close()
	}
	if rt.logger != nil {
		rt.logger.Close()
	}
}

// withInitHint points users at gantry init when the tasks file does
// not exist yet.
func withInitHint(err error) error {
	var nf *store.NotFoundError
	if errors.As(err, &nf) {
		return fmt.Errorf("no tasks file at %s\nRun 'gantry init' to set up this project", nf.Path)
	}
	return err
}
