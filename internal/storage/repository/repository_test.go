package repository

import (
	"context"
	"testing"

	"github.com/robdennis/trappist/internal/storage"
)

const testSchema = `
CREATE TABLE cards (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	name_lowercase TEXT NOT NULL,
	type_line TEXT NOT NULL DEFAULT '',
	mana_cost TEXT NOT NULL DEFAULT '',
	cmc REAL NOT NULL DEFAULT 0,
	oracle_text TEXT NOT NULL DEFAULT '',
	colors TEXT NOT NULL DEFAULT '[]',
	color_identity TEXT NOT NULL DEFAULT '[]',
	produced_mana TEXT NOT NULL DEFAULT '[]',
	keywords TEXT NOT NULL DEFAULT '[]',
	card_faces TEXT NOT NULL DEFAULT '[]',
	frame_effects TEXT NOT NULL DEFAULT '[]',
	layout TEXT NOT NULL DEFAULT '',
	image_uris TEXT,
	tags TEXT NOT NULL DEFAULT '[]'
);
CREATE UNIQUE INDEX idx_cards_name_lowercase ON cards(name_lowercase);

CREATE TABLE packs (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	is_deleted INTEGER NOT NULL DEFAULT 0
);
CREATE UNIQUE INDEX idx_packs_active_name ON packs(name) WHERE is_deleted = 0;

CREATE TABLE pack_revisions (
	pack_id TEXT NOT NULL,
	revision_seq INTEGER NOT NULL,
	name TEXT NOT NULL,
	size INTEGER NOT NULL,
	card_ids TEXT NOT NULL DEFAULT '[]',
	signpost_card_id TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL,
	reason TEXT NOT NULL DEFAULT '',
	archetype TEXT NOT NULL DEFAULT '',
	themes TEXT NOT NULL DEFAULT '[]',
	slots TEXT NOT NULL DEFAULT '[]',
	PRIMARY KEY (pack_id, revision_seq),
	FOREIGN KEY (pack_id) REFERENCES packs(id)
);

CREATE TABLE tags (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	icon TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	category TEXT NOT NULL DEFAULT '',
	type TEXT NOT NULL DEFAULT 'local',
	query_field TEXT NOT NULL DEFAULT '',
	query_op TEXT NOT NULL DEFAULT '',
	query_value TEXT NOT NULL DEFAULT '',
	scryfall_query TEXT NOT NULL DEFAULT '',
	cached_card_names TEXT NOT NULL DEFAULT '[]',
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE UNIQUE INDEX idx_tags_name ON tags(name);
CREATE UNIQUE INDEX idx_tags_icon ON tags(icon);
`

func setupTestDB(t *testing.T) *storage.DB {
	t.Helper()

	db, err := storage.Open(storage.DefaultConfig(":memory:"))
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if _, err := db.Conn().ExecContext(context.Background(), testSchema); err != nil {
		t.Fatalf("Failed to create test schema: %v", err)
	}
	return db
}
