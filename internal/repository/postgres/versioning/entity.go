package versioning

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Sakenfor/pixsim7-sub004/internal/domain"
	models "github.com/Sakenfor/pixsim7-sub004/internal/domain/models/versioning"
	versionRepo "github.com/Sakenfor/pixsim7-sub004/internal/domain/repositories/versioning"
	"github.com/Sakenfor/pixsim7-sub004/internal/repository/postgres"
)

const entityColumns = `id, kind, owner_id, name, content, metadata, family_id, version_number,
	parent_id, version_message, created_at, updated_at`

// PostgresEntityRepository implements the EntityRepository interface
type PostgresEntityRepository struct {
	pool        *pgxpool.Pool
	tables      *postgres.TableNames
	logger      *slog.Logger
	lockTimeout time.Duration
}

// NewEntityRepository creates a new entity repository
func NewEntityRepository(config *postgres.RepositoryConfig) versionRepo.EntityRepository {
	return &PostgresEntityRepository{
		pool:        config.Pool,
		tables:      config.Tables,
		logger:      config.Logger,
		lockTimeout: config.LockTimeout,
	}
}

// Create creates a new entity
func (r *PostgresEntityRepository) Create(ctx context.Context, entity *models.Entity) error {
	metadata, err := json.Marshal(entity.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (kind, owner_id, name, content, metadata, family_id, version_number, parent_id, version_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at
	`, r.tables.Entities)

	executor := postgres.GetExecutor(ctx, r.pool)
	err = executor.QueryRow(ctx, query,
		entity.Kind,
		entity.OwnerID,
		entity.Name,
		entity.Content,
		metadata,
		entity.FamilyID,
		entity.VersionNumber,
		entity.ParentID,
		entity.VersionMessage,
	).Scan(&entity.ID, &entity.CreatedAt, &entity.UpdatedAt)
	if err != nil {
		return r.mapWriteError("create entity", entity.FamilyID, entity.VersionNumber, err)
	}

	return nil
}

// GetByID retrieves an entity by ID
func (r *PostgresEntityRepository) GetByID(ctx context.Context, id string) (*models.Entity, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, entityColumns, r.tables.Entities)

	executor := postgres.GetExecutor(ctx, r.pool)
	entity, err := scanEntity(executor.QueryRow(ctx, query, id))
	if err != nil {
		if postgres.IsPgNoRowsError(err) || postgres.IsPgInvalidInputError(err) {
			return nil, fmt.Errorf("entity %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get entity: %w", err)
	}

	return entity, nil
}

// GetForUpdate locks the entity row for the rest of the transaction.
// FOR NO KEY UPDATE serialises writers without blocking the key-share locks
// that foreign key checks take on referenced rows.
func (r *PostgresEntityRepository) GetForUpdate(ctx context.Context, id string) (*models.Entity, error) {
	executor, err := postgres.LockExecutor(ctx, r.lockTimeout)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1 FOR NO KEY UPDATE`, entityColumns, r.tables.Entities)

	entity, err := scanEntity(executor.QueryRow(ctx, query, id))
	if err != nil {
		if postgres.IsPgNoRowsError(err) || postgres.IsPgInvalidInputError(err) {
			return nil, fmt.Errorf("entity %s: %w", id, domain.ErrNotFound)
		}
		return nil, postgres.ClassifyError(fmt.Errorf("lock entity %s: %w", id, err))
	}

	return entity, nil
}

// AssignVersion sets family_id, version_number and parent_id of an existing entity
func (r *PostgresEntityRepository) AssignVersion(ctx context.Context, id string, vc *models.VersionContext) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET family_id = $1, version_number = $2, parent_id = $3, updated_at = NOW()
		WHERE id = $4
	`, r.tables.Entities)

	executor := postgres.GetExecutor(ctx, r.pool)
	result, err := executor.Exec(ctx, query, vc.FamilyID, vc.VersionNumber, vc.ParentID, id)
	if err != nil {
		return r.mapWriteError("assign version", vc.FamilyID, vc.VersionNumber, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("entity %s: %w", id, domain.ErrNotFound)
	}

	return nil
}

// UpdateParent sets or clears parent_id
func (r *PostgresEntityRepository) UpdateParent(ctx context.Context, id string, parentID *string) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET parent_id = $1, updated_at = NOW()
		WHERE id = $2
	`, r.tables.Entities)

	executor := postgres.GetExecutor(ctx, r.pool)
	result, err := executor.Exec(ctx, query, parentID, id)
	if err != nil {
		if postgres.IsPgForeignKeyError(err) {
			return fmt.Errorf("parent entity: %w", domain.ErrNotFound)
		}
		return fmt.Errorf("update parent: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("entity %s: %w", id, domain.ErrNotFound)
	}

	return nil
}

// Delete removes an entity. ON DELETE SET NULL clears children's parent_id
// and a family's head_id.
func (r *PostgresEntityRepository) Delete(ctx context.Context, id string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, r.tables.Entities)

	executor := postgres.GetExecutor(ctx, r.pool)
	result, err := executor.Exec(ctx, query, id)
	if err != nil {
		return postgres.ClassifyError(fmt.Errorf("delete entity: %w", err))
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("entity %s: %w", id, domain.ErrNotFound)
	}

	return nil
}

// MaxVersionNumber returns the highest version number in a family, 0 if empty
func (r *PostgresEntityRepository) MaxVersionNumber(ctx context.Context, familyID string) (int, error) {
	query := fmt.Sprintf(`
		SELECT COALESCE(MAX(version_number), 0)
		FROM %s
		WHERE family_id = $1
	`, r.tables.Entities)

	var max int
	executor := postgres.GetExecutor(ctx, r.pool)
	if err := executor.QueryRow(ctx, query, familyID).Scan(&max); err != nil {
		return 0, fmt.Errorf("max version number: %w", err)
	}

	return max, nil
}

// HighestVersion returns the member with the highest version number
func (r *PostgresEntityRepository) HighestVersion(ctx context.Context, familyID string) (*models.Entity, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE family_id = $1
		ORDER BY version_number DESC
		LIMIT 1
	`, entityColumns, r.tables.Entities)

	executor := postgres.GetExecutor(ctx, r.pool)
	entity, err := scanEntity(executor.QueryRow(ctx, query, familyID))
	if err != nil {
		if postgres.IsPgNoRowsError(err) {
			return nil, fmt.Errorf("family %s has no versions: %w", familyID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("highest version: %w", err)
	}

	return entity, nil
}

// ListByFamily returns members ordered by version number
func (r *PostgresEntityRepository) ListByFamily(ctx context.Context, familyID string) ([]models.Entity, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE family_id = $1
		ORDER BY version_number ASC
	`, entityColumns, r.tables.Entities)

	executor := postgres.GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, familyID)
	if err != nil {
		return nil, fmt.Errorf("list family entities: %w", err)
	}
	return collectEntities(rows)
}

// DetachFamily turns every member of the family back into a standalone entity
func (r *PostgresEntityRepository) DetachFamily(ctx context.Context, familyID string) (int64, error) {
	query := fmt.Sprintf(`
		UPDATE %s
		SET family_id = NULL, version_number = NULL, updated_at = NOW()
		WHERE family_id = $1
	`, r.tables.Entities)

	executor := postgres.GetExecutor(ctx, r.pool)
	result, err := executor.Exec(ctx, query, familyID)
	if err != nil {
		return 0, fmt.Errorf("detach family members: %w", err)
	}

	return result.RowsAffected(), nil
}

// LockMembers locks every member row of the family, in id order
func (r *PostgresEntityRepository) LockMembers(ctx context.Context, familyID string) error {
	return r.lockWhere(ctx, "family_id", familyID)
}

// LockChildren locks every entity whose parent_id is parentID, in id order
func (r *PostgresEntityRepository) LockChildren(ctx context.Context, parentID string) error {
	return r.lockWhere(ctx, "parent_id", parentID)
}

func (r *PostgresEntityRepository) lockWhere(ctx context.Context, column, value string) error {
	executor, err := postgres.LockExecutor(ctx, r.lockTimeout)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`SELECT id FROM %s WHERE %s = $1 ORDER BY id FOR NO KEY UPDATE`, r.tables.Entities, column)

	rows, err := executor.Query(ctx, query, value)
	if err != nil {
		return postgres.ClassifyError(fmt.Errorf("lock entities by %s: %w", column, err))
	}
	defer rows.Close()
	for rows.Next() {
	}
	if err := rows.Err(); err != nil {
		return postgres.ClassifyError(fmt.Errorf("lock entities by %s: %w", column, err))
	}
	return nil
}

// GetAncestry walks parent_id upwards, nearest parent first
func (r *PostgresEntityRepository) GetAncestry(ctx context.Context, id string, maxDepth int) ([]models.Entity, error) {
	query := fmt.Sprintf(`
		WITH RECURSIVE ancestry AS (
			SELECT e.parent_id AS id, 1 AS depth
			FROM %[1]s e
			WHERE e.id = $1 AND e.parent_id IS NOT NULL

			UNION ALL

			SELECT p.parent_id, a.depth + 1
			FROM %[1]s p
			JOIN ancestry a ON p.id = a.id
			WHERE p.parent_id IS NOT NULL AND a.depth < $2
		)
		SELECT %[2]s
		FROM %[1]s
		JOIN ancestry USING (id)
		ORDER BY ancestry.depth ASC
	`, r.tables.Entities, prefixColumns(r.tables.Entities))

	executor := postgres.GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, id, maxDepth)
	if err != nil {
		return nil, fmt.Errorf("get ancestry: %w", err)
	}
	return collectEntities(rows)
}

// GetDescendants walks parent_id downwards, breadth first
func (r *PostgresEntityRepository) GetDescendants(ctx context.Context, id string, maxDepth int) ([]models.Entity, error) {
	query := fmt.Sprintf(`
		WITH RECURSIVE descendants AS (
			SELECT c.id, 1 AS depth
			FROM %[1]s c
			WHERE c.parent_id = $1

			UNION ALL

			SELECT c.id, d.depth + 1
			FROM %[1]s c
			JOIN descendants d ON c.parent_id = d.id
			WHERE d.depth < $2
		)
		SELECT %[2]s
		FROM %[1]s
		JOIN descendants USING (id)
		ORDER BY descendants.depth ASC, %[1]s.created_at ASC
	`, r.tables.Entities, prefixColumns(r.tables.Entities))

	executor := postgres.GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, id, maxDepth)
	if err != nil {
		return nil, fmt.Errorf("get descendants: %w", err)
	}
	return collectEntities(rows)
}

// mapWriteError turns constraint violations into domain errors
func (r *PostgresEntityRepository) mapWriteError(op string, familyID *string, version *int, err error) error {
	switch {
	case postgres.IsConstraintViolation(err, r.tables.VersionIndex):
		conflict := &domain.VersionConflictError{}
		if familyID != nil && version != nil {
			conflict.FamilyID = *familyID
			conflict.VersionNumber = *version
		}
		return conflict
	case postgres.IsPgCheckError(err):
		return fmt.Errorf("%w: %s violates versioning constraints: %v", domain.ErrValidation, op, err)
	case postgres.IsPgForeignKeyError(err):
		return fmt.Errorf("%s: referenced family or parent: %w", op, domain.ErrNotFound)
	}
	return postgres.ClassifyError(fmt.Errorf("%s: %w", op, err))
}

// prefixColumns qualifies entityColumns with a table name so they stay
// unambiguous when joined against a CTE
func prefixColumns(table string) string {
	return fmt.Sprintf(`%[1]s.id, %[1]s.kind, %[1]s.owner_id, %[1]s.name, %[1]s.content, %[1]s.metadata,
		%[1]s.family_id, %[1]s.version_number, %[1]s.parent_id, %[1]s.version_message,
		%[1]s.created_at, %[1]s.updated_at`, table)
}

func scanEntity(row pgx.Row) (*models.Entity, error) {
	var e models.Entity
	var metadata []byte
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
	if err := json.Unmarshal(metadata, &e.Metadata); err != nil {
		return nil, fmt.Errorf("decode metadata of entity %s: %w", e.ID, err)
	}
	return &e, nil
}

func collectEntities(rows pgx.Rows) ([]models.Entity, error) {
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
