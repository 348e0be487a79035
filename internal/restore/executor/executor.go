// Package executor runs the actual database restore. The service treats it
// as a black box that either succeeds or returns an error.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
)

// Executor restores the database from a backup file at the given path.
type Executor interface {
	Restore(ctx context.Context, path string) error
}

// PSQLExecutor shells out to psql to replay a .sql dump against the
// configured database.
type PSQLExecutor struct {
	databaseURL string
	logger      *slog.Logger
}

func NewPSQL(databaseURL string, logger *slog.Logger) *PSQLExecutor {
	if logger == nil {
		logger = slog.Default()
	}
	return &PSQLExecutor{databaseURL: databaseURL, logger: logger}
}

func (e *PSQLExecutor) Restore(ctx context.Context, path string) error {
	cmd := exec.CommandContext(ctx, "psql", e.databaseURL, "--set", "ON_ERROR_STOP=1", "-f", path)
	output, err := cmd.CombinedOutput()
	if err != nil {
		e.logger.ErrorContext(ctx, "psql restore failed",
			"path", path,
			"output", string(output),
			"error", err,
		)
		return fmt.Errorf("psql restore: %w", err)
	}
	e.logger.InfoContext(ctx, "psql restore finished", "path", path)
	return nil
}
