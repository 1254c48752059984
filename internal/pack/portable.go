package pack

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/robdennis/trappist/internal/storage/models"
)

// ImportFormatError indicates a pack import file that failed
// validation. Nothing is written when it is returned.
type ImportFormatError struct {
	Reason string
}

// Error implements the error interface.
func (e *ImportFormatError) Error() string {
	return fmt.Sprintf("invalid pack import file: %s", e.Reason)
}

// DirtyDecision is the caller's answer when exporting with provisional
// changes outstanding.
type DirtyDecision int

const (
	// AbortExport cancels the export.
	AbortExport DirtyDecision = iota
	// CommitDirty commits every dirty pack before exporting.
	CommitDirty
	// ExportDirty exports the in-memory drafts as they stand.
	ExportDirty
)

// DirtyPrompt decides what to do with outstanding provisional changes.
// It receives the current names of the dirty packs.
type DirtyPrompt func(dirtyNames []string) DirtyDecision

// CollisionChoice is the caller's answer when an imported pack's name
// is already taken.
type CollisionChoice int

const (
	// SkipPack leaves both the existing and the imported pack alone.
	SkipPack CollisionChoice = iota
	// Overwrite appends the imported content to the existing pack's
	// history.
	Overwrite
	// ImportAsCopy creates a new pack under a disambiguated name.
	ImportAsCopy
)

// CollisionResolver decides how to import a pack whose name collides
// with an existing active pack.
type CollisionResolver func(name string) CollisionChoice

// ErrExportAborted is returned when the dirty prompt declines the
// export.
var ErrExportAborted = &ErrAborted{Operation: "export"}

// Export serializes every loaded pack's current view into portable
// records keyed by card name. When provisional changes exist, prompt
// picks between committing them first, exporting the drafts, or
// aborting.
func (e *Engine) Export(ctx context.Context, prompt DirtyPrompt) ([]models.PortablePack, error) {
	if dirty := e.DirtyIDs(); len(dirty) > 0 {
		names := make([]string, len(dirty))
		for i, id := range dirty {
			names[i] = e.working[id].Draft.Name
		}

		switch prompt(names) {
		case CommitDirty:
			for _, id := range dirty {
				if _, err := e.Commit(ctx, id); err != nil {
					return nil, fmt.Errorf("failed to commit %q before export: %w", e.working[id].Draft.Name, err)
				}
			}
		case ExportDirty:
			// Fall through with the drafts as they stand.
		default:
			return nil, ErrExportAborted
		}
	}

	records := make([]models.PortablePack, 0, len(e.working))
	for _, pack := range e.List() {
		records = append(records, e.toPortable(pack))
	}
	return records, nil
}

// ExportJSON is Export rendered to an indented JSON document.
func (e *Engine) ExportJSON(ctx context.Context, prompt DirtyPrompt) ([]byte, error) {
	records, err := e.Export(ctx, prompt)
	if err != nil {
		return nil, err
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode pack export: %w", err)
	}
	return data, nil
}

func (e *Engine) toPortable(pack *models.Pack) models.PortablePack {
	names := make([]*string, len(pack.Cards))
	for i, card := range pack.Cards {
		if card != nil {
			name := card.Name
			names[i] = &name
		}
	}

	var signpost string
	if pack.Draft.Signpost != "" {
		for i, id := range pack.Draft.CardIDs {
			if id == pack.Draft.Signpost && pack.Cards[i] != nil {
				signpost = pack.Cards[i].Name
				break
			}
		}
	}

	return models.PortablePack{
		Name:             pack.Draft.Name,
		Size:             pack.Draft.Size,
		Archetype:        pack.Draft.Archetype,
		Themes:           append([]string(nil), pack.Draft.Themes...),
		Slots:            append([]string(nil), pack.Draft.Slots...),
		CardNames:        names,
		SignpostCardName: signpost,
	}
}

// ImportResult reports one imported pack.
type ImportResult struct {
	PackID string
	Name   string
	// Copied is true when a name collision was resolved by creating a
	// disambiguated copy.
	Copied bool
	// Unresolved counts referenced card names absent from the current
	// catalog; those slots imported as empty.
	Unresolved int
}

// Import merges a portable pack export into the store. The whole file
// is validated before anything is written; a validation failure aborts
// with ImportFormatError and no partial writes. Name collisions are
// settled per pack by resolve.
func (e *Engine) Import(ctx context.Context, payload []byte, resolve CollisionResolver) ([]ImportResult, error) {
	var records []models.PortablePack
	if err := json.Unmarshal(payload, &records); err != nil {
		return nil, &ImportFormatError{Reason: "payload is not a pack array"}
	}

	for i := range records {
		if err := validatePortable(&records[i]); err != nil {
			return nil, err
		}
	}

	var results []ImportResult
	for i := range records {
		result, err := e.importOne(ctx, &records[i], resolve)
		if err != nil {
			return results, err
		}
		if result != nil {
			results = append(results, *result)
		}
	}
	return results, nil
}

func validatePortable(record *models.PortablePack) error {
	if record.Name == "" {
		return &ImportFormatError{Reason: "pack record is missing a name"}
	}
	if record.Size <= 0 {
		return &ImportFormatError{Reason: fmt.Sprintf("pack %q has no size", record.Name)}
	}
	if len(record.CardNames) != record.Size {
		return &ImportFormatError{Reason: fmt.Sprintf(
			"pack %q lists %d card names for size %d", record.Name, len(record.CardNames), record.Size)}
	}
	if len(record.Slots) != 0 && len(record.Slots) != record.Size {
		return &ImportFormatError{Reason: fmt.Sprintf(
			"pack %q lists %d slot labels for size %d", record.Name, len(record.Slots), record.Size)}
	}
	return nil
}

func (e *Engine) importOne(ctx context.Context, record *models.PortablePack, resolve CollisionResolver) (*ImportResult, error) {
	rev, unresolved, err := e.resolvePortable(ctx, record)
	if err != nil {
		return nil, err
	}

	existing, err := e.packs.GetByName(ctx, record.Name)
	if err != nil {
		return nil, err
	}

	if existing == nil {
		return e.importFresh(ctx, record.Name, rev, unresolved, false)
	}

	switch resolve(record.Name) {
	case Overwrite:
		appended := rev.Clone()
		appended.Name = record.Name
		appended.Reason = "Pack imported"
		if err := e.packs.AppendRevision(ctx, existing.ID, len(existing.Revisions), appended); err != nil {
			return nil, err
		}
		if err := e.reloadOne(ctx, existing.ID); err != nil {
			return nil, err
		}
		return &ImportResult{PackID: existing.ID, Name: record.Name, Unresolved: unresolved}, nil

	case ImportAsCopy:
		name, err := e.freeName(ctx, record.Name)
		if err != nil {
			return nil, err
		}
		return e.importFresh(ctx, name, rev, unresolved, true)

	default:
		return nil, nil
	}
}

func (e *Engine) importFresh(ctx context.Context, name string, rev *models.PackRevision, unresolved int, copied bool) (*ImportResult, error) {
	id := uuid.NewString()
	created := rev.Clone()
	created.PackID = id
	created.Seq = 1
	created.Name = name
	created.Reason = "Initial revision"

	history := &models.PackHistory{ID: id, Name: name, Revisions: []models.PackRevision{*created}}
	if err := e.packs.Create(ctx, history); err != nil {
		return nil, err
	}
	if err := e.reloadOne(ctx, id); err != nil {
		return nil, err
	}
	return &ImportResult{PackID: id, Name: name, Copied: copied, Unresolved: unresolved}, nil
}

// resolvePortable builds a revision from a portable record, resolving
// card names to local ids. Unknown names become empty slots.
func (e *Engine) resolvePortable(ctx context.Context, record *models.PortablePack) (*models.PackRevision, int, error) {
	var names []string
	for _, name := range record.CardNames {
		if name != nil {
			names = append(names, *name)
		}
	}

	byName, err := e.cards.GetByNames(ctx, names)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to resolve imported card names: %w", err)
	}

	cardIDs := make([]string, record.Size)
	unresolved := 0
	var signpost string
	for i, name := range record.CardNames {
		if name == nil {
			continue
		}
		card, ok := byName[*name]
		if !ok {
			unresolved++
			continue
		}
		cardIDs[i] = card.ID
		if record.SignpostCardName != "" && *name == record.SignpostCardName {
			signpost = card.ID
		}
	}

	slots := record.Slots
	if len(slots) == 0 {
		slots = make([]string, record.Size)
	}

	rev := &models.PackRevision{
		Name:      record.Name,
		Size:      record.Size,
		CardIDs:   cardIDs,
		Signpost:  signpost,
		Timestamp: time.Now().UTC(),
		Archetype: record.Archetype,
		Themes:    append([]string(nil), record.Themes...),
		Slots:     append([]string(nil), slots...),
	}
	return rev, unresolved, nil
}

// reloadOne refreshes one pack's working-set view from the store.
func (e *Engine) reloadOne(ctx context.Context, packID string) error {
	history, err := e.packs.Get(ctx, packID)
	if err != nil {
		return err
	}
	if history == nil || history.IsDeleted != 0 {
		delete(e.working, packID)
		delete(e.dirty, packID)
		return nil
	}

	latest := history.Latest()
	if latest == nil {
		return nil
	}
	pack := &models.Pack{PackHistory: *history, Draft: *latest.Clone()}
	if err := e.hydrate(ctx, pack); err != nil {
		return err
	}
	e.working[packID] = pack
	delete(e.dirty, packID)
	return nil
}

// freeName finds the first unused "name (N)" variant.
func (e *Engine) freeName(ctx context.Context, name string) (string, error) {
	for n := 1; ; n++ {
		candidate := fmt.Sprintf("%s (%d)", name, n)
		existing, err := e.packs.GetByName(ctx, candidate)
		if err != nil {
			return "", err
		}
		if existing == nil {
			return candidate, nil
		}
	}
}
