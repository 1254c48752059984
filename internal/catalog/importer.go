// Package catalog ingests bulk card payloads into the local store and
// serves prefix searches over the result.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/google/uuid"

	"github.com/robdennis/trappist/internal/storage/models"
	"github.com/robdennis/trappist/internal/storage/repository"
)

// ErrMalformedCatalog indicates a payload that is neither a card list
// nor a recognizable envelope around one.
var ErrMalformedCatalog = errors.New("unrecognized catalog payload shape")

// Result summarizes a completed import.
type Result struct {
	// CardCount is the new catalog size.
	CardCount int

	// Collisions maps each normalized name that appeared on more than
	// one surviving printing to the number of printings seen. Resolved
	// collisions are reported, never fatal.
	Collisions map[string]int
}

// Importer replaces the card catalog from a bulk payload.
type Importer struct {
	cards  repository.CardRepository
	logger *log.Logger
}

// NewImporter creates an importer writing through cards.
func NewImporter(cards repository.CardRepository, logger *log.Logger) *Importer {
	if logger == nil {
		logger = log.Default()
	}
	return &Importer{cards: cards, logger: logger}
}

// Import parses payload, deduplicates it, and atomically replaces the
// stored catalog with the survivors.
func (imp *Importer) Import(ctx context.Context, payload []byte) (*Result, error) {
	records, err := extractRecords(payload)
	if err != nil {
		return nil, err
	}

	survivors, collisions := Deduplicate(records)

	if err := imp.cards.Replace(ctx, survivors); err != nil {
		return nil, fmt.Errorf("failed to store catalog: %w", err)
	}

	imp.logger.Printf("catalog import complete: %d cards stored, %d name collisions resolved",
		len(survivors), len(collisions))

	return &Result{CardCount: len(survivors), Collisions: collisions}, nil
}

// ImportFromReader reads the full payload from r and imports it.
func (imp *Importer) ImportFromReader(ctx context.Context, r io.Reader) (*Result, error) {
	payload, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog payload: %w", err)
	}
	return imp.Import(ctx, payload)
}

// extractRecords accepts a bare JSON array of cards or an envelope
// object whose first array-valued field holds the cards.
func extractRecords(payload []byte) ([]*models.Card, error) {
	trimmed := bytes.TrimLeft(payload, " \t\r\n")
	if len(trimmed) == 0 {
		return nil, ErrMalformedCatalog
	}

	if trimmed[0] == '[' {
		var records []*models.Card
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedCatalog, err)
		}
		return records, nil
	}

	if trimmed[0] != '{' {
		return nil, ErrMalformedCatalog
	}

	// Walk the envelope's fields in document order and take the first
	// array value. Known providers use "data" or "record" but the key
	// name is not part of the contract.
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedCatalog, err)
	}
	for dec.More() {
		if _, err := dec.Token(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedCatalog, err)
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedCatalog, err)
		}
		if inner := bytes.TrimLeft(value, " \t\r\n"); len(inner) > 0 && inner[0] == '[' {
			var records []*models.Card
			if err := json.Unmarshal(inner, &records); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrMalformedCatalog, err)
			}
			return records, nil
		}
	}

	return nil, ErrMalformedCatalog
}

// Deduplicate applies the import filters and name-collision tie-break,
// returning exactly one card per normalized name plus the collision
// report.
func Deduplicate(records []*models.Card) ([]*models.Card, map[string]int) {
	var survivors []*models.Card
	index := make(map[string]int)
	collisions := make(map[string]int)

	for _, record := range records {
		if record == nil || record.Name == "" {
			continue
		}
		if record.IsDuplicateFacePromo() {
			continue
		}
		if record.Reprint {
			continue
		}
		if record.ID == "" {
			record.ID = uuid.NewString()
		}
		record.NameLowercase = models.NormalizeName(record.Name)

		pos, seen := index[record.NameLowercase]
		if !seen {
			index[record.NameLowercase] = len(survivors)
			survivors = append(survivors, record)
			continue
		}

		collisions[record.NameLowercase]++

		// Prefer the printing without the extended-art frame. When
		// both or neither carry it, the first encountered wins.
		kept := survivors[pos]
		if kept.HasFrameEffect(models.FrameEffectExtendedArt) &&
			!record.HasFrameEffect(models.FrameEffectExtendedArt) {
			survivors[pos] = record
		}
	}

	// Collision counts include the kept printing.
	for name := range collisions {
		collisions[name]++
	}

	return survivors, collisions
}
