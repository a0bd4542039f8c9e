package store

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

type appliedMigration struct {
	Version string `sql:"version"`
}

// Migrate applies every embedded migration that is not yet recorded in
// schema_migrations. Files run in lexical order, each in its own transaction.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.c.eq.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version VARCHAR(255) PRIMARY KEY,
		applied_at TIMESTAMP NOT NULL
	)`, []any{}, nil); err != nil {
		return fmt.Errorf("create migration tracking table: %w", err)
	}

	files, err := fs.Glob(migrationFS, "migrations/*.sql")
	if err != nil {
		return fmt.Errorf("list migrations: %w", err)
	}
	sort.Strings(files)

	var applied []appliedMigration
	sel := s.c.b().Select("version").From(s.c.table("schema_migrations"))
	if err := s.c.query(ctx, sel, &applied); err != nil {
		return fmt.Errorf("read applied migrations: %w", err)
	}
	done := make(map[string]bool, len(applied))
	for _, m := range applied {
		done[m.Version] = true
	}

	for _, file := range files {
		name := strings.TrimPrefix(file, "migrations/")
		version := strings.Split(name, "_")[0]
		if done[version] {
			continue
		}
		body, err := migrationFS.ReadFile(file)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		err = s.c.withTx(ctx, func(c conn) error {
			for _, stmt := range splitStatements(string(body)) {
				if err := c.eq.Exec(ctx, stmt, []any{}, nil); err != nil {
					return fmt.Errorf("%s: %w", name, err)
				}
			}
			return c.exec(ctx, c.b().Insert("schema_migrations").
				Columns("version", "applied_at").
				Values(version, now()))
		})
		if err != nil {
			return fmt.Errorf("apply migration: %w", err)
		}
		log.Info().Str("migration", name).Msg("Migration applied")
	}
	return nil
}

// splitStatements breaks a migration file into statements on semicolons that
// end a line. Comment-only chunks are dropped.
func splitStatements(body string) []string {
	var out []string
	for _, chunk := range strings.Split(body, ";\n") {
		var lines []string
		for _, line := range strings.Split(chunk, "\n") {
			if t := strings.TrimSpace(line); t == "" || strings.HasPrefix(t, "--") {
				continue
			}
			lines = append(lines, line)
		}
		stmt := strings.TrimSuffix(strings.TrimSpace(strings.Join(lines, "\n")), ";")
		if stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}
