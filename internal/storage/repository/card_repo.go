// Package repository provides typed data access for each stored
// collection: cards, pack histories, and tags.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/robdennis/trappist/internal/storage"
	"github.com/robdennis/trappist/internal/storage/models"
)

// CardRepository provides access to the card catalog collection.
type CardRepository interface {
	// Put inserts a single card. Fails with a constraint violation if
	// another card shares its normalized name.
	Put(ctx context.Context, card *models.Card) error

	// Replace clears the collection and bulk-inserts the given cards in
	// one transaction. Callers must pre-deduplicate on normalized name.
	Replace(ctx context.Context, cards []*models.Card) error

	// Get retrieves a card by id, nil when absent.
	Get(ctx context.Context, id string) (*models.Card, error)

	// GetByIDs retrieves cards by id, keyed by id. Missing ids are
	// simply absent from the result.
	GetByIDs(ctx context.Context, ids []string) (map[string]*models.Card, error)

	// GetByNames retrieves cards by exact display name, keyed by name.
	GetByNames(ctx context.Context, names []string) (map[string]*models.Card, error)

	// All returns every stored card.
	All(ctx context.Context) ([]*models.Card, error)

	// Count returns the catalog size.
	Count(ctx context.Context) (int, error)

	// Clear removes every card.
	Clear(ctx context.Context) error

	// SearchByNamePrefix returns cards whose normalized name starts
	// with prefix, in stable store order, up to limit.
	SearchByNamePrefix(ctx context.Context, prefix string, limit int) ([]*models.Card, error)

	// UpdateTags overwrites the tags field of every listed card in one
	// transaction. Unlisted cards are untouched.
	UpdateTags(ctx context.Context, tagsByCardID map[string][]string) error
}

type cardRepository struct {
	db *storage.DB
}

// NewCardRepository creates a card repository backed by db.
func NewCardRepository(db *storage.DB) CardRepository {
	return &cardRepository{db: db}
}

const cardColumns = `id, name, name_lowercase, type_line, mana_cost, cmc, oracle_text,
	colors, color_identity, produced_mana, keywords, card_faces, frame_effects,
	layout, image_uris, tags`

const cardInsert = `
	INSERT INTO cards (
		id, name, name_lowercase, type_line, mana_cost, cmc, oracle_text,
		colors, color_identity, produced_mana, keywords, card_faces, frame_effects,
		layout, image_uris, tags
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

func cardInsertArgs(card *models.Card) ([]interface{}, error) {
	colors, err := json.Marshal(card.Colors)
	if err != nil {
		return nil, err
	}
	identity, err := json.Marshal(card.ColorIdentity)
	if err != nil {
		return nil, err
	}
	produced, err := json.Marshal(card.ProducedMana)
	if err != nil {
		return nil, err
	}
	keywords, err := json.Marshal(card.Keywords)
	if err != nil {
		return nil, err
	}
	faces, err := json.Marshal(card.CardFaces)
	if err != nil {
		return nil, err
	}
	effects, err := json.Marshal(card.FrameEffects)
	if err != nil {
		return nil, err
	}
	tags, err := json.Marshal(card.Tags)
	if err != nil {
		return nil, err
	}

	var imageURIs interface{}
	if card.ImageURIs != nil {
		raw, err := json.Marshal(card.ImageURIs)
		if err != nil {
			return nil, err
		}
		imageURIs = string(raw)
	}

	return []interface{}{
		card.ID, card.Name, card.NameLowercase, card.TypeLine, card.ManaCost,
		card.CMC, card.OracleText, string(colors), string(identity),
		string(produced), string(keywords), string(faces), string(effects),
		card.Layout, imageURIs, string(tags),
	}, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCard(row rowScanner) (*models.Card, error) {
	card := &models.Card{}
	var colors, identity, produced, keywords, faces, effects, tags string
	var imageURIs sql.NullString

	err := row.Scan(
		&card.ID, &card.Name, &card.NameLowercase, &card.TypeLine, &card.ManaCost,
		&card.CMC, &card.OracleText, &colors, &identity, &produced, &keywords,
		&faces, &effects, &card.Layout, &imageURIs, &tags,
	)
	if err != nil {
		return nil, err
	}

	fields := []struct {
		raw  string
		dest interface{}
	}{
		{colors, &card.Colors},
		{identity, &card.ColorIdentity},
		{produced, &card.ProducedMana},
		{keywords, &card.Keywords},
		{faces, &card.CardFaces},
		{effects, &card.FrameEffects},
		{tags, &card.Tags},
	}
	for _, f := range fields {
		if err := json.Unmarshal([]byte(f.raw), f.dest); err != nil {
			return nil, fmt.Errorf("failed to parse card field: %w", err)
		}
	}

	if imageURIs.Valid && imageURIs.String != "" {
		card.ImageURIs = &models.ImageURIs{}
		if err := json.Unmarshal([]byte(imageURIs.String), card.ImageURIs); err != nil {
			return nil, fmt.Errorf("failed to parse card image uris: %w", err)
		}
	}

	return card, nil
}

// Put inserts a single card.
func (r *cardRepository) Put(ctx context.Context, card *models.Card) error {
	args, err := cardInsertArgs(card)
	if err != nil {
		return fmt.Errorf("failed to encode card %q: %w", card.Name, err)
	}

	if _, err := r.db.Conn().ExecContext(ctx, cardInsert, args...); err != nil {
		return storage.WrapConstraint("cards", err)
	}
	return nil
}

// Replace clears the collection and bulk-inserts cards atomically.
func (r *cardRepository) Replace(ctx context.Context, cards []*models.Card) error {
	return r.db.WithTransaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM cards"); err != nil {
			return fmt.Errorf("failed to clear cards: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, cardInsert)
		if err != nil {
			return fmt.Errorf("failed to prepare card insert: %w", err)
		}
		defer func() { _ = stmt.Close() }()

		for _, card := range cards {
			args, err := cardInsertArgs(card)
			if err != nil {
				return fmt.Errorf("failed to encode card %q: %w", card.Name, err)
			}
			if _, err := stmt.ExecContext(ctx, args...); err != nil {
				return storage.WrapConstraint("cards", err)
			}
		}
		return nil
	})
}

// Get retrieves a card by id.
func (r *cardRepository) Get(ctx context.Context, id string) (*models.Card, error) {
	row := r.db.Conn().QueryRowContext(ctx,
		"SELECT "+cardColumns+" FROM cards WHERE id = ?", id)

	card, err := scanCard(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get card: %w", err)
	}
	return card, nil
}

func (r *cardRepository) getByColumn(ctx context.Context, column string, values []string) ([]*models.Card, error) {
	if len(values) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(values))
	args := make([]interface{}, len(values))
	for i, v := range values {
		placeholders[i] = "?"
		args[i] = v
	}

	query := fmt.Sprintf("SELECT %s FROM cards WHERE %s IN (%s)",
		cardColumns, column, strings.Join(placeholders, ","))

	rows, err := r.db.Conn().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query cards by %s: %w", column, err)
	}
	defer func() { _ = rows.Close() }()

	var cards []*models.Card
	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan card: %w", err)
		}
		cards = append(cards, card)
	}
	return cards, rows.Err()
}

// GetByIDs retrieves cards keyed by id.
func (r *cardRepository) GetByIDs(ctx context.Context, ids []string) (map[string]*models.Card, error) {
	cards, err := r.getByColumn(ctx, "id", ids)
	if err != nil {
		return nil, err
	}
	out := make(map[string]*models.Card, len(cards))
	for _, card := range cards {
		out[card.ID] = card
	}
	return out, nil
}

// GetByNames retrieves cards keyed by exact display name.
func (r *cardRepository) GetByNames(ctx context.Context, names []string) (map[string]*models.Card, error) {
	cards, err := r.getByColumn(ctx, "name", names)
	if err != nil {
		return nil, err
	}
	out := make(map[string]*models.Card, len(cards))
	for _, card := range cards {
		out[card.Name] = card
	}
	return out, nil
}

// All returns every stored card.
func (r *cardRepository) All(ctx context.Context) ([]*models.Card, error) {
	rows, err := r.db.Conn().QueryContext(ctx, "SELECT "+cardColumns+" FROM cards")
	if err != nil {
		return nil, fmt.Errorf("failed to query all cards: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var cards []*models.Card
	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan card: %w", err)
		}
		cards = append(cards, card)
	}
	return cards, rows.Err()
}

// Count returns the catalog size.
func (r *cardRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.Conn().QueryRowContext(ctx, "SELECT COUNT(*) FROM cards").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count cards: %w", err)
	}
	return count, nil
}

// Clear removes every card.
func (r *cardRepository) Clear(ctx context.Context) error {
	if _, err := r.db.Conn().ExecContext(ctx, "DELETE FROM cards"); err != nil {
		return fmt.Errorf("failed to clear cards: %w", err)
	}
	return nil
}

// escapeLike escapes LIKE wildcards so prefix characters match
// literally.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}

// SearchByNamePrefix returns cards whose normalized name starts with
// prefix.
func (r *cardRepository) SearchByNamePrefix(ctx context.Context, prefix string, limit int) ([]*models.Card, error) {
	query := "SELECT " + cardColumns + ` FROM cards
		WHERE name_lowercase LIKE ? ESCAPE '\'
		ORDER BY name_lowercase
		LIMIT ?`

	rows, err := r.db.Conn().QueryContext(ctx, query,
		escapeLike(models.NormalizeName(prefix))+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search cards: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var cards []*models.Card
	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan card: %w", err)
		}
		cards = append(cards, card)
	}
	return cards, rows.Err()
}

// UpdateTags overwrites the tags field of the listed cards atomically.
func (r *cardRepository) UpdateTags(ctx context.Context, tagsByCardID map[string][]string) error {
	return r.db.WithTransaction(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, "UPDATE cards SET tags = ? WHERE id = ?")
		if err != nil {
			return fmt.Errorf("failed to prepare tag update: %w", err)
		}
		defer func() { _ = stmt.Close() }()

		for cardID, tags := range tagsByCardID {
			raw, err := json.Marshal(tags)
			if err != nil {
				return fmt.Errorf("failed to encode tags for card %s: %w", cardID, err)
			}
			if _, err := stmt.ExecContext(ctx, string(raw), cardID); err != nil {
				return fmt.Errorf("failed to update tags for card %s: %w", cardID, err)
			}
		}
		return nil
	})
}
