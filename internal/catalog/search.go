package catalog

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/robdennis/trappist/internal/storage/models"
	"github.com/robdennis/trappist/internal/storage/repository"
)

const (
	// SearchLimit caps how many results a search returns.
	SearchLimit = 10

	// minSearchRunes is the shortest prefix worth hitting the store
	// for.
	minSearchRunes = 2

	// searchScanLimit bounds the candidate fetch before the type-line
	// filter runs.
	searchScanLimit = 200
)

// Searcher serves case-insensitive prefix searches over the catalog.
type Searcher struct {
	cards repository.CardRepository
}

// NewSearcher creates a searcher reading from cards.
func NewSearcher(cards repository.CardRepository) *Searcher {
	return &Searcher{cards: cards}
}

// Search returns up to SearchLimit cards whose name starts with prefix,
// case-insensitively. Tokens and scheme cards are excluded, and inputs
// shorter than two characters return nothing.
func (s *Searcher) Search(ctx context.Context, prefix string) ([]*models.Card, error) {
	prefix = strings.TrimSpace(prefix)
	if utf8.RuneCountInString(prefix) < minSearchRunes {
		return nil, nil
	}

	candidates, err := s.cards.SearchByNamePrefix(ctx, prefix, searchScanLimit)
	if err != nil {
		return nil, err
	}

	var results []*models.Card
	for _, card := range candidates {
		if excludeFromSearch(card) {
			continue
		}
		results = append(results, card)
		if len(results) == SearchLimit {
			break
		}
	}
	return results, nil
}

// excludeFromSearch filters out non-deck-buildable auxiliary pieces.
func excludeFromSearch(card *models.Card) bool {
	typeLine := strings.ToLower(card.TypeLine)
	return strings.HasPrefix(typeLine, "token") || strings.Contains(typeLine, "scheme")
}
