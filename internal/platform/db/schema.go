package db

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema embeds the idempotent DDL files applied at startup.
//
//go:embed schema/*.sql
var Schema embed.FS

// Migrate applies every embedded schema file in name order.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	names, err := fs.Glob(Schema, "schema/*.sql")
	if err != nil {
		return fmt.Errorf("platform/db: list schema: %w", err)
	}
	sort.Strings(names)
	for _, name := range names {
		ddl, err := Schema.ReadFile(name)
		if err != nil {
			return fmt.Errorf("platform/db: read %s: %w", name, err)
		}
		if _, err := pool.Exec(ctx, string(ddl)); err != nil {
			return fmt.Errorf("platform/db: apply %s: %w", name, err)
		}
	}
	return nil
}
