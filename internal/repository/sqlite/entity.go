package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Sakenfor/pixsim7-sub004/internal/domain"
	models "github.com/Sakenfor/pixsim7-sub004/internal/domain/models/versioning"
	versionRepo "github.com/Sakenfor/pixsim7-sub004/internal/domain/repositories/versioning"
)

const entityColumns = `e.id, e.kind, e.owner_id, e.name, e.content, e.metadata, e.family_id, e.version_number,
	e.parent_id, e.version_message, e.created_at, e.updated_at`

// EntityRepository implements versionRepo.EntityRepository on SQLite
type EntityRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewEntityRepository creates a new entity repository
func NewEntityRepository(db *sql.DB, logger *slog.Logger) versionRepo.EntityRepository {
	return &EntityRepository{db: db, logger: logger}
}

// Create creates a new entity
func (r *EntityRepository) Create(ctx context.Context, entity *models.Entity) error {
	metadata, err := json.Marshal(entity.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	now := time.Now().UTC()
	id := uuid.NewString()

	_, err = getExecutor(ctx, r.db).ExecContext(ctx, `
		INSERT INTO entities (id, kind, owner_id, name, content, metadata, family_id, version_number,
			parent_id, version_message, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, id, entity.Kind, entity.OwnerID, entity.Name, entity.Content, string(metadata),
		entity.FamilyID, entity.VersionNumber, entity.ParentID, entity.VersionMessage, now, now)
	if err != nil {
		return mapWriteError("create entity", entity.FamilyID, entity.VersionNumber, err)
	}

	entity.ID = id
	entity.CreatedAt = now
	entity.UpdatedAt = now
	return nil
}

// GetByID retrieves an entity by ID
func (r *EntityRepository) GetByID(ctx context.Context, id string) (*models.Entity, error) {
	row := getExecutor(ctx, r.db).QueryRowContext(ctx, `SELECT `+entityColumns+` FROM entities e WHERE e.id = ?`, id)
	entity, err := scanEntity(row)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("entity %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get entity: %w", err)
	}
	return entity, nil
}

// GetForUpdate reads the entity inside the caller's transaction
func (r *EntityRepository) GetForUpdate(ctx context.Context, id string) (*models.Entity, error) {
	executor, err := lockExecutor(ctx)
	if err != nil {
		return nil, err
	}

	entity, err := scanEntity(executor.QueryRowContext(ctx, `SELECT `+entityColumns+` FROM entities e WHERE e.id = ?`, id))
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("entity %s: %w", id, domain.ErrNotFound)
		}
		return nil, classifyError(fmt.Errorf("lock entity %s: %w", id, err))
	}
	return entity, nil
}

// LockMembers only checks for a transaction: the single connection already
// serialises writers
func (r *EntityRepository) LockMembers(ctx context.Context, familyID string) error {
	_, err := lockExecutor(ctx)
	return err
}

// LockChildren only checks for a transaction, like LockMembers
func (r *EntityRepository) LockChildren(ctx context.Context, parentID string) error {
	_, err := lockExecutor(ctx)
	return err
}

// AssignVersion sets family_id, version_number and parent_id of an existing entity
func (r *EntityRepository) AssignVersion(ctx context.Context, id string, vc *models.VersionContext) error {
	result, err := getExecutor(ctx, r.db).ExecContext(ctx, `
		UPDATE entities SET family_id = ?, version_number = ?, parent_id = ?, updated_at = ? WHERE id = ?
	`, vc.FamilyID, vc.VersionNumber, vc.ParentID, time.Now().UTC(), id)
	if err != nil {
		return mapWriteError("assign version", vc.FamilyID, vc.VersionNumber, err)
	}
	return requireRow(result, "entity", id)
}

// UpdateParent sets or clears parent_id
func (r *EntityRepository) UpdateParent(ctx context.Context, id string, parentID *string) error {
	result, err := getExecutor(ctx, r.db).ExecContext(ctx, `
		UPDATE entities SET parent_id = ?, updated_at = ? WHERE id = ?
	`, parentID, time.Now().UTC(), id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("parent entity: %w", domain.ErrNotFound)
		}
		return classifyError(fmt.Errorf("update parent: %w", err))
	}
	return requireRow(result, "entity", id)
}

// Delete removes an entity; foreign keys null out references to it
func (r *EntityRepository) Delete(ctx context.Context, id string) error {
	result, err := getExecutor(ctx, r.db).ExecContext(ctx, `DELETE FROM entities WHERE id = ?`, id)
	if err != nil {
		return classifyError(fmt.Errorf("delete entity: %w", err))
	}
	return requireRow(result, "entity", id)
}

// MaxVersionNumber returns the highest version number in a family, 0 if empty
func (r *EntityRepository) MaxVersionNumber(ctx context.Context, familyID string) (int, error) {
	var max int
	err := getExecutor(ctx, r.db).QueryRowContext(ctx, `
		SELECT COALESCE(MAX(version_number), 0) FROM entities WHERE family_id = ?
	`, familyID).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("max version number: %w", err)
	}
	return max, nil
}

// HighestVersion returns the member with the highest version number
func (r *EntityRepository) HighestVersion(ctx context.Context, familyID string) (*models.Entity, error) {
	row := getExecutor(ctx, r.db).QueryRowContext(ctx, `
		SELECT `+entityColumns+` FROM entities e
		WHERE e.family_id = ?
		ORDER BY e.version_number DESC
		LIMIT 1
	`, familyID)

	entity, err := scanEntity(row)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("family %s has no versions: %w", familyID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("highest version: %w", err)
	}
	return entity, nil
}

// ListByFamily returns members ordered by version number
func (r *EntityRepository) ListByFamily(ctx context.Context, familyID string) ([]models.Entity, error) {
	rows, err := getExecutor(ctx, r.db).QueryContext(ctx, `
		SELECT `+entityColumns+` FROM entities e
		WHERE e.family_id = ?
		ORDER BY e.version_number ASC
	`, familyID)
	if err != nil {
		return nil, fmt.Errorf("list family entities: %w", err)
	}
	return collectEntities(rows)
}

// DetachFamily turns every member of the family back into a standalone entity
func (r *EntityRepository) DetachFamily(ctx context.Context, familyID string) (int64, error) {
	result, err := getExecutor(ctx, r.db).ExecContext(ctx, `
		UPDATE entities SET family_id = NULL, version_number = NULL, updated_at = ? WHERE family_id = ?
	`, time.Now().UTC(), familyID)
	if err != nil {
		return 0, classifyError(fmt.Errorf("detach family members: %w", err))
	}
	return result.RowsAffected()
}

// GetAncestry walks parent_id upwards, nearest parent first
func (r *EntityRepository) GetAncestry(ctx context.Context, id string, maxDepth int) ([]models.Entity, error) {
	rows, err := getExecutor(ctx, r.db).QueryContext(ctx, `
		WITH RECURSIVE ancestry(id, depth) AS (
			SELECT parent_id, 1 FROM entities WHERE id = ? AND parent_id IS NOT NULL
			UNION ALL
			SELECT p.parent_id, a.depth + 1
			FROM entities p
			JOIN ancestry a ON p.id = a.id
			WHERE p.parent_id IS NOT NULL AND a.depth < ?
		)
		SELECT `+entityColumns+`
		FROM entities e
		JOIN ancestry a ON e.id = a.id
		ORDER BY a.depth ASC
	`, id, maxDepth)
	if err != nil {
		return nil, fmt.Errorf("get ancestry: %w", err)
	}
	return collectEntities(rows)
}

// GetDescendants walks parent_id downwards, breadth first
func (r *EntityRepository) GetDescendants(ctx context.Context, id string, maxDepth int) ([]models.Entity, error) {
	rows, err := getExecutor(ctx, r.db).QueryContext(ctx, `
		WITH RECURSIVE descendants(id, depth) AS (
			SELECT id, 1 FROM entities WHERE parent_id = ?
			UNION ALL
			SELECT c.id, d.depth + 1
			FROM entities c
			JOIN descendants d ON c.parent_id = d.id
			WHERE d.depth < ?
		)
		SELECT `+entityColumns+`
		FROM entities e
		JOIN descendants d ON e.id = d.id
		ORDER BY d.depth ASC, e.created_at ASC
	`, id, maxDepth)
	if err != nil {
		return nil, fmt.Errorf("get descendants: %w", err)
	}
	return collectEntities(rows)
}

func mapWriteError(op string, familyID *string, version *int, err error) error {
	switch {
	case isVersionConflict(err):
		conflict := &domain.VersionConflictError{}
		if familyID != nil && version != nil {
			conflict.FamilyID = *familyID
			conflict.VersionNumber = *version
		}
		return conflict
	case isCheckViolation(err):
		return fmt.Errorf("%w: %s violates versioning constraints: %v", domain.ErrValidation, op, err)
	case isForeignKeyViolation(err):
		return fmt.Errorf("%s: referenced family or parent: %w", op, domain.ErrNotFound)
	}
	return classifyError(fmt.Errorf("%s: %w", op, err))
}

func scanEntity(row rowScanner) (*models.Entity, error) {
	var e models.Entity
	var metadata string
	err := row.Scan(
		&e.ID,
		&e.Kind,
		&e.OwnerID,
		&e.Name,
		&e.Content,
		&metadata,
		&e.FamilyID,
		&e.VersionNumber,
		&e.ParentID,
		&e.VersionMessage,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(metadata), &e.Metadata); err != nil {
		return nil, fmt.Errorf("decode metadata of entity %s: %w", e.ID, err)
	}
	return &e, nil
}

func collectEntities(rows *sql.Rows) ([]models.Entity, error) {
	defer rows.Close()

	entities := make([]models.Entity, 0)
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entity: %w", err)
		}
		entities = append(entities, *e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entities: %w", err)
	}

	return entities, nil
}
