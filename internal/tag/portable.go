package tag

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/robdennis/trappist/internal/storage/models"
)

// ImportFormatError indicates a tag import file that failed
// validation. Nothing is written when it is returned.
type ImportFormatError struct {
	Reason string
}

// Error implements the error interface.
func (e *ImportFormatError) Error() string {
	return fmt.Sprintf("invalid tag import file: %s", e.Reason)
}

// ExportJSON serializes every tag, cached name lists included.
func (e *Engine) ExportJSON(ctx context.Context) ([]byte, error) {
	tags, err := e.tags.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load tags: %w", err)
	}
	data, err := json.MarshalIndent(tags, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode tag export: %w", err)
	}
	return data, nil
}

// Import merges a tag export file. The whole file is validated first;
// any validation failure aborts with no partial writes, and the write
// itself is a single transaction.
func (e *Engine) Import(ctx context.Context, payload []byte) (int, error) {
	var tags []*models.Tag
	if err := json.Unmarshal(payload, &tags); err != nil {
		return 0, &ImportFormatError{Reason: "payload is not a tag array"}
	}

	seenNames := make(map[string]string, len(tags))
	seenIcons := make(map[string]string, len(tags))
	for _, tag := range tags {
		if tag == nil || tag.Name == "" {
			return 0, &ImportFormatError{Reason: "tag record is missing a name"}
		}
		if tag.Icon == "" {
			return 0, &ImportFormatError{Reason: fmt.Sprintf("tag %q is missing an icon", tag.Name)}
		}
		if other, dup := seenNames[tag.Name]; dup && other != tag.ID {
			return 0, &ImportFormatError{Reason: fmt.Sprintf("duplicate tag name %q", tag.Name)}
		}
		if other, dup := seenIcons[tag.Icon]; dup && other != tag.ID {
			return 0, &ImportFormatError{Reason: fmt.Sprintf("duplicate tag icon %q", tag.Icon)}
		}
		if tag.ID == "" {
			tag.ID = uuid.NewString()
		}
		seenNames[tag.Name] = tag.ID
		seenIcons[tag.Icon] = tag.ID
	}

	if err := e.tags.BulkPut(ctx, tags); err != nil {
		return 0, err
	}
	return len(tags), nil
}
