package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Sakenfor/pixsim7-sub004/internal/domain"
	models "github.com/Sakenfor/pixsim7-sub004/internal/domain/models/versioning"
	versionRepo "github.com/Sakenfor/pixsim7-sub004/internal/domain/repositories/versioning"
)

const familyColumns = `f.id, f.name, f.description, f.head_id, f.owner_id, f.last_allocated_version, f.created_at, f.updated_at`

// FamilyRepository implements versionRepo.FamilyRepository on SQLite
type FamilyRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewFamilyRepository creates a new family repository
func NewFamilyRepository(db *sql.DB, logger *slog.Logger) versionRepo.FamilyRepository {
	return &FamilyRepository{db: db, logger: logger}
}

// Create creates a new family
func (r *FamilyRepository) Create(ctx context.Context, family *models.Family) error {
	now := time.Now().UTC()
	id := uuid.NewString()

	_, err := getExecutor(ctx, r.db).ExecContext(ctx, `
		INSERT INTO families (id, name, description, head_id, owner_id, last_allocated_version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, id, family.Name, family.Description, family.HeadID, family.OwnerID, family.LastAllocatedVersion, now, now)
	if err != nil {
		return classifyError(fmt.Errorf("create family: %w", err))
	}

	family.ID = id
	family.CreatedAt = now
	family.UpdatedAt = now
	return nil
}

// GetByID retrieves a family with derived counts
func (r *FamilyRepository) GetByID(ctx context.Context, id string) (*models.Family, error) {
	row := getExecutor(ctx, r.db).QueryRowContext(ctx, `
		SELECT `+familyColumns+`,
		       (SELECT COUNT(*) FROM entities e WHERE e.family_id = f.id),
		       (SELECT MAX(e.version_number) FROM entities e WHERE e.family_id = f.id)
		FROM families f
		WHERE f.id = ?
	`, id)

	family, err := scanFamily(row, true)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("family %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get family: %w", err)
	}

	return family, nil
}

// GetForUpdate reads the family inside the caller's transaction
func (r *FamilyRepository) GetForUpdate(ctx context.Context, id string) (*models.Family, error) {
	executor, err := lockExecutor(ctx)
	if err != nil {
		return nil, err
	}

	row := executor.QueryRowContext(ctx, `SELECT `+familyColumns+` FROM families f WHERE f.id = ?`, id)
	family, err := scanFamily(row, false)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("family %s: %w", id, domain.ErrNotFound)
		}
		return nil, classifyError(fmt.Errorf("lock family %s: %w", id, err))
	}

	return family, nil
}

// Update writes name and description
func (r *FamilyRepository) Update(ctx context.Context, family *models.Family) error {
	now := time.Now().UTC()
	result, err := getExecutor(ctx, r.db).ExecContext(ctx, `
		UPDATE families SET name = ?, description = ?, updated_at = ? WHERE id = ?
	`, family.Name, family.Description, now, family.ID)
	if err != nil {
		return classifyError(fmt.Errorf("update family: %w", err))
	}
	if err := requireRow(result, "family", family.ID); err != nil {
		return err
	}

	family.UpdatedAt = now
	return nil
}

// SetHead points HEAD at entityID, or clears it when entityID is nil
func (r *FamilyRepository) SetHead(ctx context.Context, familyID string, entityID *string) error {
	result, err := getExecutor(ctx, r.db).ExecContext(ctx, `
		UPDATE families SET head_id = ?, updated_at = ? WHERE id = ?
	`, entityID, time.Now().UTC(), familyID)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("head entity: %w", domain.ErrNotFound)
		}
		return classifyError(fmt.Errorf("set head: %w", err))
	}
	return requireRow(result, "family", familyID)
}

// SetLastAllocated records the allocation high-water mark
func (r *FamilyRepository) SetLastAllocated(ctx context.Context, familyID string, version int) error {
	result, err := getExecutor(ctx, r.db).ExecContext(ctx, `
		UPDATE families SET last_allocated_version = MAX(last_allocated_version, ?) WHERE id = ?
	`, version, familyID)
	if err != nil {
		return classifyError(fmt.Errorf("set last allocated version: %w", err))
	}
	return requireRow(result, "family", familyID)
}

// ListByOwner lists families owned by ownerID, newest first
func (r *FamilyRepository) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]models.Family, error) {
	rows, err := getExecutor(ctx, r.db).QueryContext(ctx, `
		SELECT `+familyColumns+`, COUNT(e.id), MAX(e.version_number)
		FROM families f
		LEFT JOIN entities e ON e.family_id = f.id
		WHERE f.owner_id = ?
		GROUP BY f.id
		ORDER BY f.created_at DESC, f.id
		LIMIT ? OFFSET ?
	`, ownerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list families: %w", err)
	}
	defer rows.Close()

	families := make([]models.Family, 0)
	for rows.Next() {
		f, err := scanFamily(rows, true)
		if err != nil {
			return nil, fmt.Errorf("scan family: %w", err)
		}
		families = append(families, *f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate families: %w", err)
	}

	return families, nil
}

// Delete removes the family row
func (r *FamilyRepository) Delete(ctx context.Context, id string) error {
	result, err := getExecutor(ctx, r.db).ExecContext(ctx, `DELETE FROM families WHERE id = ?`, id)
	if err != nil {
		return classifyError(fmt.Errorf("delete family: %w", err))
	}
	return requireRow(result, "family", id)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFamily(row rowScanner, withCounts bool) (*models.Family, error) {
	var f models.Family
	dest := []any{
		&f.ID,
		&f.Name,
		&f.Description,
		&f.HeadID,
		&f.OwnerID,
		&f.LastAllocatedVersion,
		&f.CreatedAt,
		&f.UpdatedAt,
	}
	if withCounts {
		dest = append(dest, &f.VersionCount, &f.LatestVersionNumber)
	}
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	return &f, nil
}

func requireRow(result sql.Result, resource, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", resource, id, domain.ErrNotFound)
	}
	return nil
}
