package postgres

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Migrate applies the embedded schema files that have not run yet.
func (s *Store) Migrate(ctx context.Context) error {
	const op = "postgres.Store.Migrate"

	if _, err := s.pool.Exec(ctx,
		`CREATE TABLE IF NOT EXISTS schema_migrations (
			name       TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
	); err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	names, err := fs.Glob(migrations, "migrations/*.sql")
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}
	sort.Strings(names)

	for _, name := range names {
		body, err := migrations.ReadFile(name)
		if err != nil {
			return fmt.Errorf("%s:%w", op, err)
		}

		err = s.RunTx(ctx, nil, func(ctx context.Context, tx DB) error {
			tag, err := tx.Exec(ctx,
				`INSERT INTO schema_migrations(name) VALUES ($1) ON CONFLICT DO NOTHING`,
				name,
			)
			if err != nil {
				return err
			}
			if tag.RowsAffected() == 0 {
				return nil
			}
			_, err = tx.Exec(ctx, string(body))
			return err
		})
		if err != nil {
			return fmt.Errorf("%s: %s: %w", op, name, err)
		}
	}

	return nil
}
