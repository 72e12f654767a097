package versioning

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Sakenfor/pixsim7-sub004/internal/domain"
	models "github.com/Sakenfor/pixsim7-sub004/internal/domain/models/versioning"
	versionRepo "github.com/Sakenfor/pixsim7-sub004/internal/domain/repositories/versioning"
	"github.com/Sakenfor/pixsim7-sub004/internal/repository/postgres"
)

// PostgresFamilyRepository implements the FamilyRepository interface
type PostgresFamilyRepository struct {
	pool        *pgxpool.Pool
	tables      *postgres.TableNames
	logger      *slog.Logger
	lockTimeout time.Duration
}

// NewFamilyRepository creates a new family repository
func NewFamilyRepository(config *postgres.RepositoryConfig) versionRepo.FamilyRepository {
	return &PostgresFamilyRepository{
		pool:        config.Pool,
		tables:      config.Tables,
		logger:      config.Logger,
		lockTimeout: config.LockTimeout,
	}
}

// Create creates a new family
func (r *PostgresFamilyRepository) Create(ctx context.Context, family *models.Family) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (name, description, head_id, owner_id, last_allocated_version)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`, r.tables.Families)

	executor := postgres.GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query,
		family.Name,
		family.Description,
		family.HeadID,
		family.OwnerID,
		family.LastAllocatedVersion,
	).Scan(&family.ID, &family.CreatedAt, &family.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create family: %w", err)
	}

	return nil
}

// GetByID retrieves a family with derived counts
func (r *PostgresFamilyRepository) GetByID(ctx context.Context, id string) (*models.Family, error) {
	query := fmt.Sprintf(`
		SELECT f.id, f.name, f.description, f.head_id, f.owner_id, f.last_allocated_version,
		       f.created_at, f.updated_at,
		       (SELECT COUNT(*) FROM %[2]s e WHERE e.family_id = f.id),
		       (SELECT MAX(e.version_number) FROM %[2]s e WHERE e.family_id = f.id)
		FROM %[1]s f
		WHERE f.id = $1
	`, r.tables.Families, r.tables.Entities)

	var family models.Family
	executor := postgres.GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query, id).Scan(
		&family.ID,
		&family.Name,
		&family.Description,
		&family.HeadID,
		&family.OwnerID,
		&family.LastAllocatedVersion,
		&family.CreatedAt,
		&family.UpdatedAt,
		&family.VersionCount,
		&family.LatestVersionNumber,
	)
	if err != nil {
		if postgres.IsPgNoRowsError(err) || postgres.IsPgInvalidInputError(err) {
			return nil, fmt.Errorf("family %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get family: %w", err)
	}

	return &family, nil
}

// GetForUpdate locks the family row for the rest of the transaction.
// Derived counts are not computed; callers that need them re-read with GetByID.
func (r *PostgresFamilyRepository) GetForUpdate(ctx context.Context, id string) (*models.Family, error) {
	executor, err := postgres.LockExecutor(ctx, r.lockTimeout)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT id, name, description, head_id, owner_id, last_allocated_version, created_at, updated_at
		FROM %s
		WHERE id = $1
		FOR UPDATE
	`, r.tables.Families)

	var family models.Family
	err = executor.QueryRow(ctx, query, id).Scan(
		&family.ID,
		&family.Name,
		&family.Description,
		&family.HeadID,
		&family.OwnerID,
		&family.LastAllocatedVersion,
		&family.CreatedAt,
		&family.UpdatedAt,
	)
	if err != nil {
		if postgres.IsPgNoRowsError(err) || postgres.IsPgInvalidInputError(err) {
			return nil, fmt.Errorf("family %s: %w", id, domain.ErrNotFound)
		}
		return nil, postgres.ClassifyError(fmt.Errorf("lock family %s: %w", id, err))
	}

	return &family, nil
}

// Update writes name and description
func (r *PostgresFamilyRepository) Update(ctx context.Context, family *models.Family) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET name = $1, description = $2, updated_at = NOW()
		WHERE id = $3
		RETURNING updated_at
	`, r.tables.Families)

	executor := postgres.GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query, family.Name, family.Description, family.ID).Scan(&family.UpdatedAt)
	if err != nil {
		if postgres.IsPgNoRowsError(err) {
			return fmt.Errorf("family %s: %w", family.ID, domain.ErrNotFound)
		}
		return fmt.Errorf("update family: %w", err)
	}

	return nil
}

// SetHead points HEAD at entityID, or clears it when entityID is nil.
// Membership is checked by the service under the family lock.
func (r *PostgresFamilyRepository) SetHead(ctx context.Context, familyID string, entityID *string) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET head_id = $1, updated_at = NOW()
		WHERE id = $2
	`, r.tables.Families)

	executor := postgres.GetExecutor(ctx, r.pool)
	result, err := executor.Exec(ctx, query, entityID, familyID)
	if err != nil {
		if postgres.IsPgForeignKeyError(err) {
			return fmt.Errorf("head entity: %w", domain.ErrNotFound)
		}
		return fmt.Errorf("set head: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("family %s: %w", familyID, domain.ErrNotFound)
	}

	return nil
}

// SetLastAllocated records the allocation high-water mark
func (r *PostgresFamilyRepository) SetLastAllocated(ctx context.Context, familyID string, version int) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET last_allocated_version = GREATEST(last_allocated_version, $1)
		WHERE id = $2
	`, r.tables.Families)

	executor := postgres.GetExecutor(ctx, r.pool)
	result, err := executor.Exec(ctx, query, version, familyID)
	if err != nil {
		return fmt.Errorf("set last allocated version: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("family %s: %w", familyID, domain.ErrNotFound)
	}

	return nil
}

// ListByOwner lists families owned by ownerID, newest first
func (r *PostgresFamilyRepository) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]models.Family, error) {
	query := fmt.Sprintf(`
		SELECT f.id, f.name, f.description, f.head_id, f.owner_id, f.last_allocated_version,
		       f.created_at, f.updated_at,
		       COUNT(e.id), MAX(e.version_number)
		FROM %[1]s f
		LEFT JOIN %[2]s e ON e.family_id = f.id
		WHERE f.owner_id = $1
		GROUP BY f.id
		ORDER BY f.created_at DESC, f.id
		LIMIT $2 OFFSET $3
	`, r.tables.Families, r.tables.Entities)

	executor := postgres.GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, ownerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list families: %w", err)
	}
	defer rows.Close()

	families := make([]models.Family, 0)
	for rows.Next() {
		var f models.Family
		if err := rows.Scan(
			&f.ID,
			&f.Name,
			&f.Description,
			&f.HeadID,
			&f.OwnerID,
			&f.LastAllocatedVersion,
			&f.CreatedAt,
			&f.UpdatedAt,
			&f.VersionCount,
			&f.LatestVersionNumber,
		); err != nil {
			return nil, fmt.Errorf("scan family: %w", err)
		}
		families = append(families, f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate families: %w", err)
	}

	return families, nil
}

// Delete removes the family row
func (r *PostgresFamilyRepository) Delete(ctx context.Context, id string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, r.tables.Families)

	executor := postgres.GetExecutor(ctx, r.pool)
	result, err := executor.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete family: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("family %s: %w", id, domain.ErrNotFound)
	}

	return nil
}
