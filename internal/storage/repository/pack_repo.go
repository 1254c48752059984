package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/robdennis/trappist/internal/storage"
	"github.com/robdennis/trappist/internal/storage/models"
)

// ErrStaleHistory is returned when appending a revision against an
// out-of-date view of a pack's history.
var ErrStaleHistory = errors.New("pack history changed since it was loaded")

// PackRepository provides access to stored pack histories.
type PackRepository interface {
	// Create stores a new pack with its initial revisions in one
	// transaction.
	Create(ctx context.Context, history *models.PackHistory) error

	// Get retrieves a pack and its full revision log by id, nil when
	// absent. Soft-deleted packs are still returned.
	Get(ctx context.Context, id string) (*models.PackHistory, error)

	// GetByName retrieves a non-deleted pack by name, nil when absent.
	GetByName(ctx context.Context, name string) (*models.PackHistory, error)

	// ListActive returns every non-deleted pack with its revision log.
	ListActive(ctx context.Context) ([]*models.PackHistory, error)

	// AppendRevision appends rev to the pack's history, verifying that
	// the history still holds expectedRevisions entries. The pack's
	// current name is updated to the revision's name. Returns
	// ErrStaleHistory when the history moved underneath the caller.
	AppendRevision(ctx context.Context, packID string, expectedRevisions int, rev *models.PackRevision) error

	// SoftDelete marks a pack deleted, freeing its name for reuse.
	SoftDelete(ctx context.Context, id string) error

	// ActiveNameInUse reports whether a non-deleted pack other than
	// excludeID already holds name.
	ActiveNameInUse(ctx context.Context, name, excludeID string) (bool, error)
}

type packRepository struct {
	db *storage.DB
}

// NewPackRepository creates a pack repository backed by db.
func NewPackRepository(db *storage.DB) PackRepository {
	return &packRepository{db: db}
}

const revisionInsert = `
	INSERT INTO pack_revisions (
		pack_id, revision_seq, name, size, card_ids, signpost_card_id,
		created_at, reason, archetype, themes, slots
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

func insertRevision(ctx context.Context, tx *sql.Tx, packID string, rev *models.PackRevision) error {
	cardIDs, err := json.Marshal(rev.CardIDs)
	if err != nil {
		return fmt.Errorf("failed to encode revision cards: %w", err)
	}
	themes, err := json.Marshal(rev.Themes)
	if err != nil {
		return fmt.Errorf("failed to encode revision themes: %w", err)
	}
	slots, err := json.Marshal(rev.Slots)
	if err != nil {
		return fmt.Errorf("failed to encode revision slots: %w", err)
	}

	_, err = tx.ExecContext(ctx, revisionInsert,
		packID, rev.Seq, rev.Name, rev.Size, string(cardIDs), rev.Signpost,
		rev.Timestamp.UTC(), rev.Reason, rev.Archetype, string(themes), string(slots))
	if err != nil {
		return storage.WrapConstraint("pack_revisions", err)
	}
	return nil
}

// Create stores a new pack with its initial revisions.
func (r *packRepository) Create(ctx context.Context, history *models.PackHistory) error {
	return r.db.WithTransaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO packs (id, name, is_deleted) VALUES (?, ?, ?)",
			history.ID, history.Name, history.IsDeleted)
		if err != nil {
			return storage.WrapConstraint("packs", err)
		}

		for i := range history.Revisions {
			if err := insertRevision(ctx, tx, history.ID, &history.Revisions[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *packRepository) loadRevisions(ctx context.Context, packID string) ([]models.PackRevision, error) {
	rows, err := r.db.Conn().QueryContext(ctx, `
		SELECT revision_seq, name, size, card_ids, signpost_card_id,
		       created_at, reason, archetype, themes, slots
		FROM pack_revisions
		WHERE pack_id = ?
		ORDER BY revision_seq`, packID)
	if err != nil {
		return nil, fmt.Errorf("failed to query revisions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var revisions []models.PackRevision
	for rows.Next() {
		var rev models.PackRevision
		var cardIDs, themes, slots string
		var createdAt time.Time

		err := rows.Scan(&rev.Seq, &rev.Name, &rev.Size, &cardIDs, &rev.Signpost,
			&createdAt, &rev.Reason, &rev.Archetype, &themes, &slots)
		if err != nil {
			return nil, fmt.Errorf("failed to scan revision: %w", err)
		}

		rev.PackID = packID
		rev.Timestamp = createdAt
		if err := json.Unmarshal([]byte(cardIDs), &rev.CardIDs); err != nil {
			return nil, fmt.Errorf("failed to parse revision cards: %w", err)
		}
		if err := json.Unmarshal([]byte(themes), &rev.Themes); err != nil {
			return nil, fmt.Errorf("failed to parse revision themes: %w", err)
		}
		if err := json.Unmarshal([]byte(slots), &rev.Slots); err != nil {
			return nil, fmt.Errorf("failed to parse revision slots: %w", err)
		}

		revisions = append(revisions, rev)
	}
	return revisions, rows.Err()
}

func (r *packRepository) getByQuery(ctx context.Context, query string, arg interface{}) (*models.PackHistory, error) {
	history := &models.PackHistory{}
	err := r.db.Conn().QueryRowContext(ctx, query, arg).
		Scan(&history.ID, &history.Name, &history.IsDeleted)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pack: %w", err)
	}

	history.Revisions, err = r.loadRevisions(ctx, history.ID)
	if err != nil {
		return nil, err
	}
	return history, nil
}

// Get retrieves a pack and its full revision log by id.
func (r *packRepository) Get(ctx context.Context, id string) (*models.PackHistory, error) {
	return r.getByQuery(ctx, "SELECT id, name, is_deleted FROM packs WHERE id = ?", id)
}

// GetByName retrieves a non-deleted pack by name.
func (r *packRepository) GetByName(ctx context.Context, name string) (*models.PackHistory, error) {
	return r.getByQuery(ctx,
		"SELECT id, name, is_deleted FROM packs WHERE name = ? AND is_deleted = 0", name)
}

// ListActive returns every non-deleted pack with its revision log.
func (r *packRepository) ListActive(ctx context.Context) ([]*models.PackHistory, error) {
	rows, err := r.db.Conn().QueryContext(ctx,
		"SELECT id, name, is_deleted FROM packs WHERE is_deleted = 0 ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to list packs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var histories []*models.PackHistory
	for rows.Next() {
		history := &models.PackHistory{}
		if err := rows.Scan(&history.ID, &history.Name, &history.IsDeleted); err != nil {
			return nil, fmt.Errorf("failed to scan pack: %w", err)
		}
		histories = append(histories, history)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, history := range histories {
		history.Revisions, err = r.loadRevisions(ctx, history.ID)
		if err != nil {
			return nil, err
		}
	}
	return histories, nil
}

// AppendRevision appends rev after verifying the expected history
// length.
func (r *packRepository) AppendRevision(ctx context.Context, packID string, expectedRevisions int, rev *models.PackRevision) error {
	return r.db.WithTransaction(ctx, func(tx *sql.Tx) error {
		var count int
		err := tx.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM pack_revisions WHERE pack_id = ?", packID).Scan(&count)
		if err != nil {
			return fmt.Errorf("failed to count revisions: %w", err)
		}
		if count != expectedRevisions {
			return ErrStaleHistory
		}

		appended := *rev
		appended.Seq = count + 1
		if err := insertRevision(ctx, tx, packID, &appended); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx,
			"UPDATE packs SET name = ? WHERE id = ?", rev.Name, packID); err != nil {
			return storage.WrapConstraint("packs", err)
		}

		rev.Seq = appended.Seq
		rev.PackID = packID
		return nil
	})
}

// SoftDelete marks a pack deleted.
func (r *packRepository) SoftDelete(ctx context.Context, id string) error {
	result, err := r.db.Conn().ExecContext(ctx,
		"UPDATE packs SET is_deleted = 1 WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete pack: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete pack: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("pack %s not found", id)
	}
	return nil
}

// ActiveNameInUse reports whether another non-deleted pack holds name.
func (r *packRepository) ActiveNameInUse(ctx context.Context, name, excludeID string) (bool, error) {
	var count int
	err := r.db.Conn().QueryRowContext(ctx,
		"SELECT COUNT(*) FROM packs WHERE name = ? AND is_deleted = 0 AND id != ?",
		name, excludeID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check pack name: %w", err)
	}
	return count > 0, nil
}
