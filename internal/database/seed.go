package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ledgerly/backend/internal/models"
)

// SeedPlans upserts the plan catalog keyed by slug.
func SeedPlans(ctx context.Context, db *sql.DB, plans []models.Plan) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, p := range plans {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO plans (id, slug, name, price)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (slug) DO UPDATE SET name = EXCLUDED.name, price = EXCLUDED.price`,
			p.ID, p.Slug, p.Name, p.Price.StringFixed(2))
		if err != nil {
			return fmt.Errorf("seed plan %s: %w", p.Slug, err)
		}
	}

	return tx.Commit()
}
