package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/usherhq/usher/internal/calibration"
	"github.com/usherhq/usher/internal/classifier"
	"github.com/usherhq/usher/internal/config"
	"github.com/usherhq/usher/internal/logging"
	"github.com/usherhq/usher/internal/orchestrator"
	"github.com/usherhq/usher/internal/registry"
	"github.com/usherhq/usher/internal/session"
)

// runtime bundles everything a subcommand needs: the orchestrator plus
// the handles it was built from, so commands can reach past the facade
// for display purposes.
type runtime struct {
	orch   *orchestrator.Orchestrator
	cfg    *config.Config
	store  *session.Store
	db     *registry.DB
	logger *logging.DebugLogger
}

// Close releases the registry connection and flushes the debug log.
func (r *runtime) Close() {
	if r.db != nil {
		r.db.Close()
	}
	if r.logger != nil {
		r.logger.Close()
	}
}

// buildRuntime wires the full decision stack for one session: config,
// session store, calibration engine, task registry, and debug logger.
// maxRetriesOverride, when positive, wins over the configured bound.
//
// The registry is optional: if the database cannot be opened the
// orchestrator runs without the audit trail rather than failing the
// hook. Everything else is required.
func buildRuntime(sessionID string, maxRetriesOverride int) (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger := logging.NopLogger()
	if cfg.Logging.DebugLog != "" {
		if l, lerr := logging.NewDebugLogger(cfg.Logging.DebugLog); lerr == nil {
			logger = l
		}
	} else if projectInitialized() {
		cwd, _ := os.Getwd()
		logger = logging.NewDebugLoggerForRepo(cwd)
	}

	stateDir := cfg.StateDir
	if stateDir == "" {
		stateDir, err = session.GlobalStateDir()
		if err != nil {
			return nil, fmt.Errorf("resolve state directory: %w", err)
		}
	}
	store := session.NewStore(stateDir, logger)

	logPath := calibration.GlobalLogPath()
	if cfg.DataDir != "" {
		logPath = filepath.Join(cfg.DataDir, "calibration.jsonl")
	}
	engine := calibration.NewEngine(calibration.NewLog(logPath))

	catalog := classifier.DefaultCatalog()
	if cfg.CatalogPath != "" {
		catalog, err = classifier.LoadCatalog(cfg.CatalogPath)
		if err != nil {
			return nil, fmt.Errorf("load catalog: %w", err)
		}
	}

	db := openRegistry(cfg, logger)

	maxRetries := cfg.Retry.MaxRetries
	if maxRetriesOverride > 0 {
		maxRetries = maxRetriesOverride
	}

	ocfg := orchestrator.Config{
		SessionID:   sessionID,
		Catalog:     catalog,
		Sessions:    store,
		Calibration: engine,
		Logger:      logger,
		MaxRetries:  maxRetries,
		BaseDelayMs: cfg.Retry.BaseDelayMs,
	}
	if db != nil {
		ocfg.Registry = db
	}

	return &runtime{
		orch:   orchestrator.New(ocfg),
		cfg:    cfg,
		store:  store,
		db:     db,
		logger: logger,
	}, nil
}

// openRegistry opens the task registry, preferring the project-local
// database when a .usher directory exists. Returns nil when the
// database cannot be opened or migrated.
func openRegistry(cfg *config.Config, logger *logging.DebugLogger) *registry.DB {
	var db *registry.DB
	var err error
	switch {
	case cfg.DataDir != "":
		db, err = registry.Open(filepath.Join(cfg.DataDir, "tasks.db"))
	case projectInitialized():
		cwd, _ := os.Getwd()
		db, err = registry.OpenProject(cwd)
	default:
		db, err = registry.OpenGlobal()
	}
	if err != nil {
		logger.Log("open registry: %v", err)
		return nil
	}
	if err := db.Migrate(); err != nil {
		logger.Log("migrate registry %s: %v", db.Path(), err)
		db.Close()
		return nil
	}
	return db
}

// projectInitialized reports whether the working directory carries a
// .usher directory.
func projectInitialized() bool {
	cwd, err := os.Getwd()
	if err != nil {
		return false
	}
	_, err = os.Stat(filepath.Join(cwd, ".usher"))
	return err == nil
}

// printJSON writes v to stdout as JSON, indented when pretty is set.
// Hook commands emit exactly one JSON document so callers can pipe the
// output straight into a parser.
func printJSON(v any, pretty bool) error {
	enc := json.NewEncoder(os.Stdout)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}
