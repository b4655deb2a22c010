package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/pressly/goose/v3"
)

const (
	DefaultDir = "pkg/migrate/migrations"
	dialect    = "postgres"
)

// Command is one cmd/migrate action.
type Command string

const (
	CommandUp       Command = "up"
	CommandDown     Command = "down"
	CommandStatus   Command = "status"
	CommandVersion  Command = "version"
	CommandCreate   Command = "create"
	CommandValidate Command = "validate"
)

// ParseCommand normalizes a command name and rejects unknown ones.
func ParseCommand(raw string) (Command, error) {
	cmd := Command(strings.ToLower(strings.TrimSpace(raw)))
	switch cmd {
	case CommandUp, CommandDown, CommandStatus, CommandVersion, CommandCreate, CommandValidate:
		return cmd, nil
	}
	return "", fmt.Errorf("unknown migrate command %q", raw)
}

// NeedsDB reports whether the command talks to the database.
func (c Command) NeedsDB() bool {
	return c != CommandCreate && c != CommandValidate
}

// Run executes up, down or status against db.
func Run(ctx context.Context, db *sql.DB, dir string, cmd Command) error {
	if db == nil {
		return fmt.Errorf("db is required")
	}
	if dir == "" {
		return fmt.Errorf("dir is required")
	}
	switch cmd {
	case CommandUp, CommandDown, CommandStatus:
	default:
		return fmt.Errorf("command %q cannot be run directly", cmd)
	}
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	// goose prints status output to stdout
	if err := goose.RunContext(ctx, string(cmd), db, dir); err != nil {
		return fmt.Errorf("goose %s: %w", cmd, err)
	}
	return nil
}

// MigrateToVersion moves the schema up or down until it sits at targetVersion.
func MigrateToVersion(ctx context.Context, db *sql.DB, dir string, targetVersion string) error {
	target, err := ParseVersion(targetVersion)
	if err != nil {
		return err
	}
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}

	current, err := goose.GetDBVersion(db)
	if err != nil {
		return fmt.Errorf("get db version: %w", err)
	}
	switch {
	case current == target:
		return nil
	case current < target:
		if err := goose.UpToContext(ctx, db, dir, target); err != nil {
			return fmt.Errorf("goose up-to %d: %w", target, err)
		}
	default:
		if err := goose.DownToContext(ctx, db, dir, target); err != nil {
			return fmt.Errorf("goose down-to %d: %w", target, err)
		}
	}
	return nil
}

// ParseVersion accepts a YYYYMMDDHHMMSS migration version.
func ParseVersion(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if len(raw) != 14 {
		return 0, fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS)", raw)
	}
	version, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS): %w", raw, err)
	}
	return version, nil
}
