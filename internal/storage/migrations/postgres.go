package migrations

import (
	"context"
	"fmt"

	"trident-trader/internal/storage/postgres"
)

// RunPostgresMigrations applies all embedded SQL files in lexical order.
// Every statement uses IF NOT EXISTS, so reapplying is a no-op.
func RunPostgresMigrations(ctx context.Context, pool *postgres.Pool) error {
	list, err := files(PostgresFS, "postgres")
	if err != nil {
		return err
	}
	for _, m := range list {
		if _, err := pool.Exec(ctx, m.body); err != nil {
			return fmt.Errorf("apply migration %s: %w", m.name, err)
		}
	}
	return nil
}
