package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/robdennis/trappist/internal/storage"
	"github.com/robdennis/trappist/internal/storage/models"
)

// TagRepository provides access to stored tag definitions.
type TagRepository interface {
	// Put inserts or updates a tag by id. Name and icon collisions with
	// other tags surface as constraint violations.
	Put(ctx context.Context, tag *models.Tag) error

	// BulkPut upserts every tag in one transaction. Any failure rolls
	// back the whole batch.
	BulkPut(ctx context.Context, tags []*models.Tag) error

	// Get retrieves a tag by id, nil when absent.
	Get(ctx context.Context, id string) (*models.Tag, error)

	// GetByName retrieves a tag by name, nil when absent.
	GetByName(ctx context.Context, name string) (*models.Tag, error)

	// All returns every tag ordered by name.
	All(ctx context.Context) ([]*models.Tag, error)

	// Delete removes a tag by id.
	Delete(ctx context.Context, id string) error

	// Clear removes every tag.
	Clear(ctx context.Context) error
}

type tagRepository struct {
	db *storage.DB
}

// NewTagRepository creates a tag repository backed by db.
func NewTagRepository(db *storage.DB) TagRepository {
	return &tagRepository{db: db}
}

const tagUpsert = `
	INSERT INTO tags (
		id, name, icon, description, category, type,
		query_field, query_op, query_value, scryfall_query,
		cached_card_names, created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		name = excluded.name,
		icon = excluded.icon,
		description = excluded.description,
		category = excluded.category,
		type = excluded.type,
		query_field = excluded.query_field,
		query_op = excluded.query_op,
		query_value = excluded.query_value,
		scryfall_query = excluded.scryfall_query,
		cached_card_names = excluded.cached_card_names,
		updated_at = excluded.updated_at
`

type tagExecer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func upsertTag(ctx context.Context, execer tagExecer, tag *models.Tag) error {
	cached, err := json.Marshal(tag.CachedCardNames)
	if err != nil {
		return fmt.Errorf("failed to encode tag %q: %w", tag.Name, err)
	}

	var queryField, queryOp, queryValue string
	if tag.Query != nil {
		queryField = tag.Query.Field
		queryOp = tag.Query.Op
		queryValue = tag.Query.Value
	}

	_, err = execer.ExecContext(ctx, tagUpsert,
		tag.ID, tag.Name, tag.Icon, tag.Description, tag.Category, tag.Type,
		queryField, queryOp, queryValue, tag.ScryfallQuery,
		string(cached), tag.CreatedAt, tag.UpdatedAt)
	if err != nil {
		return storage.WrapConstraint("tags", err)
	}
	return nil
}

// Put inserts or updates a tag by id.
func (r *tagRepository) Put(ctx context.Context, tag *models.Tag) error {
	return upsertTag(ctx, r.db.Conn(), tag)
}

// BulkPut upserts every tag atomically.
func (r *tagRepository) BulkPut(ctx context.Context, tags []*models.Tag) error {
	return r.db.WithTransaction(ctx, func(tx *sql.Tx) error {
		for _, tag := range tags {
			if err := upsertTag(ctx, tx, tag); err != nil {
				return err
			}
		}
		return nil
	})
}

const tagColumns = `id, name, icon, description, category, type,
	query_field, query_op, query_value, scryfall_query,
	cached_card_names, created_at, updated_at`

func scanTag(row rowScanner) (*models.Tag, error) {
	tag := &models.Tag{}
	var queryField, queryOp, queryValue, cached string

	err := row.Scan(&tag.ID, &tag.Name, &tag.Icon, &tag.Description,
		&tag.Category, &tag.Type, &queryField, &queryOp, &queryValue,
		&tag.ScryfallQuery, &cached, &tag.CreatedAt, &tag.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if queryField != "" || queryOp != "" {
		tag.Query = &models.TagQuery{Field: queryField, Op: queryOp, Value: queryValue}
	}
	if err := json.Unmarshal([]byte(cached), &tag.CachedCardNames); err != nil {
		return nil, fmt.Errorf("failed to parse cached card names: %w", err)
	}
	return tag, nil
}

func (r *tagRepository) getOne(ctx context.Context, query string, arg interface{}) (*models.Tag, error) {
	tag, err := scanTag(r.db.Conn().QueryRowContext(ctx, query, arg))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tag: %w", err)
	}
	return tag, nil
}

// Get retrieves a tag by id.
func (r *tagRepository) Get(ctx context.Context, id string) (*models.Tag, error) {
	return r.getOne(ctx, "SELECT "+tagColumns+" FROM tags WHERE id = ?", id)
}

// GetByName retrieves a tag by name.
func (r *tagRepository) GetByName(ctx context.Context, name string) (*models.Tag, error) {
	return r.getOne(ctx, "SELECT "+tagColumns+" FROM tags WHERE name = ?", name)
}

// All returns every tag ordered by name.
func (r *tagRepository) All(ctx context.Context) ([]*models.Tag, error) {
	rows, err := r.db.Conn().QueryContext(ctx,
		"SELECT "+tagColumns+" FROM tags ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to query tags: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tags []*models.Tag
	for rows.Next() {
		tag, err := scanTag(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tag: %w", err)
		}
		tags = append(tags, tag)
	}
	return tags, rows.Err()
}

// Delete removes a tag by id.
func (r *tagRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.Conn().ExecContext(ctx, "DELETE FROM tags WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete tag: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete tag: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("tag %s not found", id)
	}
	return nil
}

// Clear removes every tag.
func (r *tagRepository) Clear(ctx context.Context) error {
	if _, err := r.db.Conn().ExecContext(ctx, "DELETE FROM tags"); err != nil {
		return fmt.Errorf("failed to clear tags: %w", err)
	}
	return nil
}
