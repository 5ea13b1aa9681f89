package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/ShayCichocki/fulfiller/internal/agent"
	"github.com/ShayCichocki/fulfiller/internal/api"
	"github.com/ShayCichocki/fulfiller/internal/config"
	"github.com/ShayCichocki/fulfiller/internal/notify"
	"github.com/ShayCichocki/fulfiller/internal/orchestrator"
	"github.com/ShayCichocki/fulfiller/internal/state"
)

// projectDirName is the per-project state directory created by init.
const projectDirName = ".fulfiller"

// findProjectRoot walks up from the working directory looking for an
// initialized project, falling back to the working directory itself.
func findProjectRoot() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get working directory: %w", err)
	}

	dir := cwd
	for {
		if info, err := os.Stat(filepath.Join(dir, projectDirName)); err == nil && info.IsDir() {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return cwd, nil
		}
		dir = parent
	}
}

// dbPathFor returns the configured database path or the project default.
func dbPathFor(cfg *config.Config, root string) string {
	if cfg.Store.Path != "" {
		return cfg.Store.Path
	}
	return state.ProjectDBPath(root)
}

// outboxDirFor returns the configured outbox or the project default.
func outboxDirFor(cfg *config.Config, root string) string {
	if cfg.Notifications.OutboxDir != "" {
		return cfg.Notifications.OutboxDir
	}
	return notify.OutboxDir(root)
}

// openStore opens and migrates the record store.
func openStore(cfg *config.Config, root string) (*state.DB, error) {
	db, err := state.OpenWithDriver(cfg.Store.Driver, dbPathFor(cfg, root))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return db, nil
}

// loadInstructions returns the configured instruction overrides, or the
// built-in set when no file is configured.
func loadInstructions(cfg *config.Config, root string) (*agent.Instructions, error) {
	path := cfg.Instructions.Path
	if path == "" {
		return agent.DefaultInstructions(), nil
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(root, path)
	}
	return agent.LoadInstructions(path)
}

// buildNotifier fans notifications out to the outbox and, if enabled, the
// notification table.
func buildNotifier(cfg *config.Config, root string, db *state.DB) (notify.Notifier, error) {
	outbox, err := notify.NewOutboxSink(outboxDirFor(cfg, root))
	if err != nil {
		return nil, err
	}
	sinks := notify.Multi{outbox}
	if cfg.Notifications.Record {
		sinks = append(sinks, notify.NewStoreSink(db))
	}
	return sinks, nil
}

// engine holds everything needed to process orders.
type engine struct {
	cfg     *config.Config
	root    string
	db      *state.DB
	client  *api.Client
	orch    *orchestrator.Orchestrator
	emitter *orchestrator.EventEmitter
	logger  *orchestrator.DebugLogger
}

// openEngine wires config, store, provider, executor, notifier and
// orchestrator together. A non-zero eventBuffer enables orchestrator events.
func openEngine(eventBuffer int) (*engine, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	root, err := findProjectRoot()
	if err != nil {
		return nil, err
	}

	inst, err := loadInstructions(cfg, root)
	if err != nil {
		return nil, err
	}

	client, err := createCompleter(cfg)
	if err != nil {
		return nil, err
	}

	db, err := openStore(cfg, root)
	if err != nil {
		return nil, err
	}

	rt := &engine{
		cfg:    cfg,
		root:   root,
		db:     db,
		client: client,
		logger: orchestrator.NewDebugLoggerForProject(root),
	}
	if eventBuffer > 0 {
		rt.emitter = orchestrator.NewEventEmitter(eventBuffer)
	}

	notifier, err := buildNotifier(cfg, root, db)
	if err != nil {
		rt.Close()
		return nil, err
	}

	executor, err := agent.NewExecutor(agent.ExecutorConfig{
		Store:        db,
		Completer:    client,
		Instructions: inst,
		Retry: agent.RetryPolicy{
			BaseDelay: cfg.Executor.BackoffBase,
			MaxDelay:  cfg.Executor.BackoffMax,
		},
		ProviderTimeout: cfg.Executor.ProviderTimeout,
		DefaultModel:    cfg.Anthropic.Model,
		OnRetry:         rt.emitter.RetryHook(),
	})
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("create executor: %w", err)
	}

	orch, err := orchestrator.New(
		orchestrator.RequiredConfig{Store: db, Executor: executor},
		orchestrator.WithNotifier(notifier),
		orchestrator.WithEventEmitter(rt.emitter),
		orchestrator.WithLogger(rt.logger),
		orchestrator.WithMaxRetries(cfg.Executor.MaxRetries),
	)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("create orchestrator: %w", err)
	}
	rt.orch = orch

	log.Printf("[fulfiller] project %s, database %s (%s)", root, db.Path(), db.Driver())
	return rt, nil
}

// usage summarizes provider token usage for this run.
func (r *engine) usage() string {
	tracker := r.client.Tracker()
	in, out := tracker.Total()
	return fmt.Sprintf("%d provider calls, %d input / %d output tokens (~$%.2f)",
		tracker.Calls(), in, out, tracker.Cost())
}

// Close releases the store, log file and event channel.
func (r *engine) Close() {
	r.emitter.Close()
	if err := r.logger.Close(); err != nil {
		log.Printf("[fulfiller] close debug log: %v", err)
	}
	if err := r.db.Close(); err != nil {
		log.Printf("[fulfiller] close database: %v", err)
	}
}

// openProjectStore opens the store for commands that don't call the provider.
func openProjectStore() (*state.DB, *config.Config, string, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, "", fmt.Errorf("load config: %w", err)
	}
	root, err := findProjectRoot()
	if err != nil {
		return nil, nil, "", err
	}
	db, err := openStore(cfg, root)
	if err != nil {
		return nil, nil, "", err
	}
	return db, cfg, root, nil
}
