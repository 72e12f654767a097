package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Migrate creates the families and entities tables with the versioning
// constraints. Safe to run repeatedly.
//
// families.head_id and entities.family_id reference each other, so the
// head_id foreign key is added after both tables exist.
func Migrate(ctx context.Context, pool *pgxpool.Pool, tables *TableNames, tablePrefix string) error {
	if _, err := pool.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS "uuid-ossp"`); err != nil {
		return fmt.Errorf("create uuid extension: %w", err)
	}

	createFamilies := `
		CREATE TABLE IF NOT EXISTS ` + tables.Families + ` (
			id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
			name TEXT,
			description TEXT,
			head_id UUID,
			owner_id TEXT NOT NULL,
			last_allocated_version INTEGER NOT NULL DEFAULT 0 CHECK (last_allocated_version >= 0),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`
	if _, err := pool.Exec(ctx, createFamilies); err != nil {
		return fmt.Errorf("create %s: %w", tables.Families, err)
	}

	createEntities := `
		CREATE TABLE IF NOT EXISTS ` + tables.Entities + ` (
			id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
			kind TEXT NOT NULL,
			owner_id TEXT NOT NULL,
			name TEXT NOT NULL DEFAULT '',
			content TEXT NOT NULL DEFAULT '',
			metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
			family_id UUID REFERENCES ` + tables.Families + `(id) ON DELETE SET NULL,
			version_number INTEGER,
			parent_id UUID REFERENCES ` + tables.Entities + `(id) ON DELETE SET NULL,
			version_message TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT ` + tablePrefix + `entities_version_positive CHECK (version_number IS NULL OR version_number > 0),
			CONSTRAINT ` + tablePrefix + `entities_family_version_paired CHECK ((family_id IS NULL) = (version_number IS NULL))
		)
	`
	if _, err := pool.Exec(ctx, createEntities); err != nil {
		return fmt.Errorf("create %s: %w", tables.Entities, err)
	}

	// ADD CONSTRAINT has no IF NOT EXISTS form
	headFK := `
		DO $$
		BEGIN
			IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = '` + tablePrefix + `families_head_id_fkey') THEN
				ALTER TABLE ` + tables.Families + `
					ADD CONSTRAINT ` + tablePrefix + `families_head_id_fkey
					FOREIGN KEY (head_id) REFERENCES ` + tables.Entities + `(id) ON DELETE SET NULL;
			END IF;
		END $$
	`
	if _, err := pool.Exec(ctx, headFK); err != nil {
		return fmt.Errorf("add head foreign key: %w", err)
	}

	indexes := []string{
		`CREATE UNIQUE INDEX IF NOT EXISTS ` + tables.VersionIndex + ` ON ` + tables.Entities + `(family_id, version_number) WHERE family_id IS NOT NULL`,
		`CREATE INDEX IF NOT EXISTS idx_` + tablePrefix + `entities_parent_id ON ` + tables.Entities + `(parent_id) WHERE parent_id IS NOT NULL`,
		`CREATE INDEX IF NOT EXISTS idx_` + tablePrefix + `entities_owner ON ` + tables.Entities + `(owner_id, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_` + tablePrefix + `families_owner ON ` + tables.Families + `(owner_id, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_` + tablePrefix + `families_head_id ON ` + tables.Families + `(head_id) WHERE head_id IS NOT NULL`,
	}
	for _, idx := range indexes {
		if _, err := pool.Exec(ctx, idx); err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}

	return nil
}

// Drop removes the versioning tables for the given prefix
func Drop(ctx context.Context, pool *pgxpool.Pool, tables *TableNames) error {
	for _, table := range []string{tables.Entities, tables.Families} {
		if _, err := pool.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s CASCADE", table)); err != nil {
			return fmt.Errorf("drop %s: %w", table, err)
		}
	}
	return nil
}
