package catalog

import (
	"context"
	"fmt"
	"testing"

	"github.com/robdennis/trappist/internal/storage/models"
	"github.com/robdennis/trappist/internal/storage/repository"
)

func seedCards(t *testing.T, repo repository.CardRepository, cards ...*models.Card) {
	t.Helper()
	for _, card := range cards {
		card.NameLowercase = models.NormalizeName(card.Name)
		if err := repo.Put(context.Background(), card); err != nil {
			t.Fatalf("Failed to seed card %q: %v", card.Name, err)
		}
	}
}

func TestSearchPrefixMatch(t *testing.T) {
	repo := setupCardRepo(t)
	searcher := NewSearcher(repo)

	seedCards(t, repo,
		&models.Card{ID: "c1", Name: "Lightning Bolt", TypeLine: "Instant"},
		&models.Card{ID: "c2", Name: "Lightning Strike", TypeLine: "Instant"},
		&models.Card{ID: "c3", Name: "Shock", TypeLine: "Instant"},
	)

	results, err := searcher.Search(context.Background(), "LIGHT")
	if err != nil {
		t.Fatalf("Failed to search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(results))
	}
	for _, card := range results {
		if card.Name != "Lightning Bolt" && card.Name != "Lightning Strike" {
			t.Errorf("Unexpected result %q", card.Name)
		}
	}
}

func TestSearchShortInputReturnsNothing(t *testing.T) {
	repo := setupCardRepo(t)
	searcher := NewSearcher(repo)

	seedCards(t, repo, &models.Card{ID: "c1", Name: "Shock", TypeLine: "Instant"})

	for _, input := range []string{"", "s", " s "} {
		results, err := searcher.Search(context.Background(), input)
		if err != nil {
			t.Fatalf("Failed to search %q: %v", input, err)
		}
		if len(results) != 0 {
			t.Errorf("Expected no results for %q, got %d", input, len(results))
		}
	}
}

func TestSearchExcludesTokensAndSchemes(t *testing.T) {
	repo := setupCardRepo(t)
	searcher := NewSearcher(repo)

	seedCards(t, repo,
		&models.Card{ID: "c1", Name: "Soldier", TypeLine: "Creature — Human Soldier"},
		&models.Card{ID: "c2", Name: "Soldier Token", TypeLine: "Token Creature — Soldier"},
		&models.Card{ID: "c3", Name: "Soldier's Plot", TypeLine: "Ongoing Scheme"},
	)

	results, err := searcher.Search(context.Background(), "sold")
	if err != nil {
		t.Fatalf("Failed to search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("Expected 1 result, got %d", len(results))
	}
	if results[0].Name != "Soldier" {
		t.Errorf("Expected only the creature, got %q", results[0].Name)
	}
}

func TestSearchTruncatesToLimit(t *testing.T) {
	repo := setupCardRepo(t)
	searcher := NewSearcher(repo)

	for i := 0; i < 15; i++ {
		seedCards(t, repo, &models.Card{
			ID:       fmt.Sprintf("c%d", i),
			Name:     fmt.Sprintf("Goblin %02d", i),
			TypeLine: "Creature — Goblin",
		})
	}

	results, err := searcher.Search(context.Background(), "goblin")
	if err != nil {
		t.Fatalf("Failed to search: %v", err)
	}
	if len(results) != SearchLimit {
		t.Errorf("Expected %d results, got %d", SearchLimit, len(results))
	}
}

func TestSearchTrimsSurroundingWhitespace(t *testing.T) {
	repo := setupCardRepo(t)
	searcher := NewSearcher(repo)

	seedCards(t, repo, &models.Card{ID: "c1", Name: "Lightning Bolt", TypeLine: "Instant"})

	for _, input := range []string{" light", "light ", "  light  "} {
		results, err := searcher.Search(context.Background(), input)
		if err != nil {
			t.Fatalf("Failed to search %q: %v", input, err)
		}
		if len(results) != 1 || results[0].Name != "Lightning Bolt" {
			t.Errorf("Expected %q to match Lightning Bolt, got %d results", input, len(results))
		}
	}
}
