package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/robdennis/trappist/internal/storage"
	"github.com/robdennis/trappist/internal/storage/models"
)

func testPack(id, name string) *models.PackHistory {
	return &models.PackHistory{
		ID:   id,
		Name: name,
		Revisions: []models.PackRevision{
			{
				PackID:    id,
				Seq:       1,
				Name:      name,
				Size:      models.DefaultPackSize,
				CardIDs:   emptySlots(models.DefaultPackSize),
				Timestamp: time.Now().UTC(),
				Reason:    "Initial revision",
				Slots:     append([]string(nil), models.DefaultPackSlots[:models.DefaultPackSize]...),
			},
		},
	}
}

func emptySlots(n int) []string {
	return make([]string, n)
}

func TestPackRepositoryCreateAndGet(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPackRepository(db)
	ctx := context.Background()

	pack := testPack("pack-1", "Gruul Aggro")
	pack.Revisions[0].CardIDs[0] = "card-1"
	pack.Revisions[0].Signpost = "card-1"

	if err := repo.Create(ctx, pack); err != nil {
		t.Fatalf("Failed to create pack: %v", err)
	}

	got, err := repo.Get(ctx, "pack-1")
	if err != nil {
		t.Fatalf("Failed to get pack: %v", err)
	}
	if got == nil {
		t.Fatal("Expected pack, got nil")
	}
	if got.Name != "Gruul Aggro" {
		t.Errorf("Expected name 'Gruul Aggro', got %q", got.Name)
	}
	if len(got.Revisions) != 1 {
		t.Fatalf("Expected 1 revision, got %d", len(got.Revisions))
	}

	rev := got.Revisions[0]
	if rev.Seq != 1 {
		t.Errorf("Expected revision seq 1, got %d", rev.Seq)
	}
	if len(rev.CardIDs) != models.DefaultPackSize {
		t.Errorf("Expected %d slots, got %d", models.DefaultPackSize, len(rev.CardIDs))
	}
	if rev.CardIDs[0] != "card-1" {
		t.Errorf("Expected first slot to hold card-1, got %q", rev.CardIDs[0])
	}
	if rev.Signpost != "card-1" {
		t.Errorf("Expected signpost card-1, got %q", rev.Signpost)
	}
	if rev.Reason != "Initial revision" {
		t.Errorf("Expected initial revision reason, got %q", rev.Reason)
	}
}

func TestPackRepositoryActiveNameUnique(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPackRepository(db)
	ctx := context.Background()

	if err := repo.Create(ctx, testPack("pack-1", "Burn")); err != nil {
		t.Fatalf("Failed to create pack: %v", err)
	}

	err := repo.Create(ctx, testPack("pack-2", "Burn"))
	if err == nil {
		t.Fatal("Expected constraint violation for duplicate active name")
	}
	if !storage.IsConstraintViolation(err) {
		t.Errorf("Expected constraint violation error, got %v", err)
	}
}

func TestPackRepositoryNameReusableAfterSoftDelete(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPackRepository(db)
	ctx := context.Background()

	if err := repo.Create(ctx, testPack("pack-1", "Burn")); err != nil {
		t.Fatalf("Failed to create pack: %v", err)
	}
	if err := repo.SoftDelete(ctx, "pack-1"); err != nil {
		t.Fatalf("Failed to delete pack: %v", err)
	}

	if err := repo.Create(ctx, testPack("pack-2", "Burn")); err != nil {
		t.Fatalf("Expected name to be reusable after delete: %v", err)
	}

	deleted, err := repo.Get(ctx, "pack-1")
	if err != nil {
		t.Fatalf("Failed to get deleted pack: %v", err)
	}
	if deleted == nil {
		t.Fatal("Expected soft-deleted pack to remain readable")
	}
	if deleted.IsDeleted != 1 {
		t.Errorf("Expected is_deleted 1, got %d", deleted.IsDeleted)
	}
	if len(deleted.Revisions) != 1 {
		t.Errorf("Expected deleted pack to keep its revisions, got %d", len(deleted.Revisions))
	}
}

func TestPackRepositoryListActive(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPackRepository(db)
	ctx := context.Background()

	for _, p := range []*models.PackHistory{
		testPack("pack-1", "Zoo"),
		testPack("pack-2", "Affinity"),
		testPack("pack-3", "Dredge"),
	} {
		if err := repo.Create(ctx, p); err != nil {
			t.Fatalf("Failed to create pack: %v", err)
		}
	}
	if err := repo.SoftDelete(ctx, "pack-3"); err != nil {
		t.Fatalf("Failed to delete pack: %v", err)
	}

	active, err := repo.ListActive(ctx)
	if err != nil {
		t.Fatalf("Failed to list packs: %v", err)
	}
	if len(active) != 2 {
		t.Fatalf("Expected 2 active packs, got %d", len(active))
	}
	if active[0].Name != "Affinity" || active[1].Name != "Zoo" {
		t.Errorf("Expected packs ordered by name, got %q, %q", active[0].Name, active[1].Name)
	}
	for _, p := range active {
		if len(p.Revisions) == 0 {
			t.Errorf("Expected pack %q to include revisions", p.Name)
		}
	}
}

func TestPackRepositoryAppendRevision(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPackRepository(db)
	ctx := context.Background()

	if err := repo.Create(ctx, testPack("pack-1", "Burn")); err != nil {
		t.Fatalf("Failed to create pack: %v", err)
	}

	rev := &models.PackRevision{
		Name:      "Rakdos Burn",
		Size:      models.DefaultPackSize,
		CardIDs:   emptySlots(models.DefaultPackSize),
		Timestamp: time.Now().UTC(),
		Reason:    `Pack renamed from "Burn" to "Rakdos Burn"`,
		Slots:     append([]string(nil), models.DefaultPackSlots[:models.DefaultPackSize]...),
	}
	if err := repo.AppendRevision(ctx, "pack-1", 1, rev); err != nil {
		t.Fatalf("Failed to append revision: %v", err)
	}
	if rev.Seq != 2 {
		t.Errorf("Expected appended revision seq 2, got %d", rev.Seq)
	}

	got, err := repo.Get(ctx, "pack-1")
	if err != nil {
		t.Fatalf("Failed to get pack: %v", err)
	}
	if got.Name != "Rakdos Burn" {
		t.Errorf("Expected pack name to follow head revision, got %q", got.Name)
	}
	if len(got.Revisions) != 2 {
		t.Fatalf("Expected 2 revisions, got %d", len(got.Revisions))
	}
	if got.Revisions[1].Reason != `Pack renamed from "Burn" to "Rakdos Burn"` {
		t.Errorf("Unexpected revision reason: %q", got.Revisions[1].Reason)
	}
}

func TestPackRepositoryAppendRevisionStale(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPackRepository(db)
	ctx := context.Background()

	if err := repo.Create(ctx, testPack("pack-1", "Burn")); err != nil {
		t.Fatalf("Failed to create pack: %v", err)
	}

	rev := &models.PackRevision{
		Name:      "Burn",
		Size:      models.DefaultPackSize,
		CardIDs:   emptySlots(models.DefaultPackSize),
		Timestamp: time.Now().UTC(),
		Reason:    "Pack updated",
	}
	err := repo.AppendRevision(ctx, "pack-1", 5, rev)
	if !errors.Is(err, ErrStaleHistory) {
		t.Errorf("Expected ErrStaleHistory, got %v", err)
	}

	got, err := repo.Get(ctx, "pack-1")
	if err != nil {
		t.Fatalf("Failed to get pack: %v", err)
	}
	if len(got.Revisions) != 1 {
		t.Errorf("Expected stale append to write nothing, got %d revisions", len(got.Revisions))
	}
}

func TestPackRepositoryHistoryOnlyGrows(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPackRepository(db)
	ctx := context.Background()

	if err := repo.Create(ctx, testPack("pack-1", "Burn")); err != nil {
		t.Fatalf("Failed to create pack: %v", err)
	}

	seen := 1
	for i, name := range []string{"Burn v2", "Burn v3"} {
		rev := &models.PackRevision{
			Name:      name,
			Size:      models.DefaultPackSize,
			CardIDs:   emptySlots(models.DefaultPackSize),
			Timestamp: time.Now().UTC(),
			Reason:    "Pack updated",
		}
		if err := repo.AppendRevision(ctx, "pack-1", i+1, rev); err != nil {
			t.Fatalf("Failed to append revision: %v", err)
		}

		got, err := repo.Get(ctx, "pack-1")
		if err != nil {
			t.Fatalf("Failed to get pack: %v", err)
		}
		if len(got.Revisions) != seen+1 {
			t.Fatalf("Expected %d revisions, got %d", seen+1, len(got.Revisions))
		}
		seen = len(got.Revisions)

		for j, rev := range got.Revisions {
			if rev.Seq != j+1 {
				t.Errorf("Expected revision %d to have seq %d, got %d", j, j+1, rev.Seq)
			}
		}
	}
}

func TestPackRepositoryActiveNameInUse(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPackRepository(db)
	ctx := context.Background()

	if err := repo.Create(ctx, testPack("pack-1", "Burn")); err != nil {
		t.Fatalf("Failed to create pack: %v", err)
	}

	inUse, err := repo.ActiveNameInUse(ctx, "Burn", "pack-2")
	if err != nil {
		t.Fatalf("Failed to check name: %v", err)
	}
	if !inUse {
		t.Error("Expected name to be in use by another pack")
	}

	self, err := repo.ActiveNameInUse(ctx, "Burn", "pack-1")
	if err != nil {
		t.Fatalf("Failed to check name: %v", err)
	}
	if self {
		t.Error("Expected a pack's own name not to count as a collision")
	}
}

func TestPackRepositoryGetByName(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPackRepository(db)
	ctx := context.Background()

	if err := repo.Create(ctx, testPack("pack-1", "Burn")); err != nil {
		t.Fatalf("Failed to create pack: %v", err)
	}
	if err := repo.SoftDelete(ctx, "pack-1"); err != nil {
		t.Fatalf("Failed to delete pack: %v", err)
	}

	got, err := repo.GetByName(ctx, "Burn")
	if err != nil {
		t.Fatalf("Failed to get pack by name: %v", err)
	}
	if got != nil {
		t.Errorf("Expected deleted pack to be invisible by name, got %+v", got)
	}
}
