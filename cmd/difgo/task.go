package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/nkazin/difgo/internal/catalog"
	"github.com/nkazin/difgo/internal/config"
	"github.com/nkazin/difgo/internal/i18n"
	"github.com/nkazin/difgo/internal/logx"
	"github.com/nkazin/difgo/internal/orchestrator"
)

// openTask loads an existing task file, or returns an error if it's
// missing — every command except `index` expects one to already exist.
func openTask(taskFile string) (*config.Config, error) {
	if _, err := os.Stat(taskFile); err != nil {
		return nil, fmt.Errorf("no task file at %s (run `difgo index` first): %w", taskFile, err)
	}
	return config.Load(taskFile)
}

// openOrchestrator loads cfg's catalog and wires it into an Orchestrator.
// The catalog gets a logrus-backed structured logger for its claim/commit
// telemetry (following the pack's ScannerLogger convention); the
// orchestrator's own phase narration goes to a plain console logger,
// following the teacher's default-console-logger wiring at the CLI
// boundary.
func openOrchestrator(cfg *config.Config) (*orchestrator.Orchestrator, error) {
	consoleLog := logx.NewConsole(logx.INFO)
	storeLog := logx.NewStructured(logx.INFO)
	store, err := catalog.Open(cfg.DBFile, storeLog)
	if err != nil {
		return nil, err
	}
	loc, err := i18n.New("")
	if err != nil {
		return nil, err
	}
	return orchestrator.New(store, cfg, consoleLog, loc), nil
}

func defaultTaskFile(partA string) string {
	return filepath.Join(partA, ".task.yaml")
}
