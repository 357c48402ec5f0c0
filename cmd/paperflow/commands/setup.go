package commands

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/wonny/paperflow/internal/audit"
	"github.com/wonny/paperflow/internal/project"
	"github.com/wonny/paperflow/pkg/config"
	"github.com/wonny/paperflow/pkg/database"
	"github.com/wonny/paperflow/pkg/logger"
)

// app holds what every command needs: config, logger and the resolved project root
type app struct {
	cfg  *config.Config
	log  *logger.Logger
	root string
}

// loadApp loads config, builds the logger and resolves the project root.
// Flags win over environment variables.
func loadApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	if projectRoot != "" {
		cfg.Project.Root = projectRoot
	}
	if stagesFile != "" {
		cfg.Project.StagesFile = stagesFile
	}

	log := logger.New(cfg)

	root, err := project.Resolve(cfg.Project.Root)
	if err != nil {
		return nil, fmt.Errorf("resolve project root: %w", err)
	}

	log.WithFields(map[string]interface{}{
		"root": root,
		"env":  cfg.Env,
	}).Debug("Project resolved")

	return &app{cfg: cfg, log: log, root: root}, nil
}

// path resolves p against the project root unless it is absolute
func (a *app) path(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(a.root, p)
}

// pipeline builds the stage auditor, using the stage map file when configured
func (a *app) pipeline() (*audit.Pipeline, error) {
	opts := []audit.Option{audit.WithLogger(a.log)}

	if a.cfg.Project.StagesFile != "" {
		stages, err := audit.LoadStages(a.path(a.cfg.Project.StagesFile))
		if err != nil {
			return nil, err
		}
		opts = append(opts, audit.WithStages(stages))
	}

	return audit.New(a.root, opts...)
}

// history connects to the audit history store. Close the returned DB when done; it is nil-safe.
func (a *app) history(ctx context.Context) (*audit.Repository, *database.DB, error) {
	db, err := database.New(ctx, a.cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}

	repo := audit.NewRepository(db.Pool)
	if err := repo.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}

	a.log.Info("Connected to database")
	return repo, db, nil
}
