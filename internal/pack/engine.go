// Package pack implements the pack revision engine: an in-memory
// working set of hydrated pack views over an append-only revision log.
package pack

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/robdennis/trappist/internal/storage/models"
	"github.com/robdennis/trappist/internal/storage/repository"
)

// Confirmer gates destructive operations behind an explicit user
// decision.
type Confirmer interface {
	Confirm(message string) bool
}

// ConfirmerFunc adapts a function to the Confirmer interface.
type ConfirmerFunc func(message string) bool

// Confirm implements Confirmer.
func (f ConfirmerFunc) Confirm(message string) bool { return f(message) }

// NameCollisionError indicates a commit whose name is already held by
// another active pack.
type NameCollisionError struct {
	Name string
}

// Error implements the error interface.
func (e *NameCollisionError) Error() string {
	return fmt.Sprintf("an active pack named %q already exists", e.Name)
}

// ErrNotLoaded indicates an operation on a pack id absent from the
// working set.
type ErrNotLoaded struct {
	PackID string
}

// Error implements the error interface.
func (e *ErrNotLoaded) Error() string {
	return fmt.Sprintf("pack %s is not loaded", e.PackID)
}

// ErrAborted is returned when the caller declines a confirmation gate.
type ErrAborted struct {
	Operation string
}

// Error implements the error interface.
func (e *ErrAborted) Error() string {
	return fmt.Sprintf("%s aborted", e.Operation)
}

// Engine owns the in-memory working set of packs and the provisional
// change set. It is not safe for concurrent use; callers serialize
// operations.
type Engine struct {
	packs  repository.PackRepository
	cards  repository.CardRepository
	logger *log.Logger

	working map[string]*models.Pack
	dirty   map[string]struct{}
}

// NewEngine creates an engine over the given repositories.
func NewEngine(packs repository.PackRepository, cards repository.CardRepository, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.Default()
	}
	return &Engine{
		packs:   packs,
		cards:   cards,
		logger:  logger,
		working: make(map[string]*models.Pack),
		dirty:   make(map[string]struct{}),
	}
}

// Load replaces the working set with every active stored pack and
// clears the provisional change set.
func (e *Engine) Load(ctx context.Context) error {
	histories, err := e.packs.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("failed to load packs: %w", err)
	}

	e.working = make(map[string]*models.Pack, len(histories))
	e.dirty = make(map[string]struct{})

	for _, history := range histories {
		latest := history.Latest()
		if latest == nil {
			continue
		}
		pack := &models.Pack{PackHistory: *history, Draft: *latest.Clone()}
		if err := e.hydrate(ctx, pack); err != nil {
			return err
		}
		e.working[pack.ID] = pack
	}
	return nil
}

// Get returns a loaded pack view by id.
func (e *Engine) Get(id string) (*models.Pack, bool) {
	pack, ok := e.working[id]
	return pack, ok
}

// List returns the working set ordered by current name.
func (e *Engine) List() []*models.Pack {
	packs := make([]*models.Pack, 0, len(e.working))
	for _, pack := range e.working {
		packs = append(packs, pack)
	}
	sort.Slice(packs, func(i, j int) bool { return packs[i].Draft.Name < packs[j].Draft.Name })
	return packs
}

// IsDirty reports whether a pack has provisional changes.
func (e *Engine) IsDirty(id string) bool {
	_, ok := e.dirty[id]
	return ok
}

// DirtyIDs returns the provisional change set, sorted for stable
// output.
func (e *Engine) DirtyIDs() []string {
	ids := make([]string, 0, len(e.dirty))
	for id := range e.dirty {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Create adds a new unsaved pack to the working set. It is dirty until
// its first commit; nothing is stored yet.
func (e *Engine) Create(name string, size int, slotLabels []string) *models.Pack {
	if size <= 0 {
		size = models.DefaultPackSize
	}
	labels := make([]string, size)
	for i := 0; i < size; i++ {
		if i < len(slotLabels) {
			labels[i] = slotLabels[i]
		} else if i < len(models.DefaultPackSlots) {
			labels[i] = models.DefaultPackSlots[i]
		}
	}

	id := uuid.NewString()
	pack := &models.Pack{
		PackHistory: models.PackHistory{ID: id, Name: name},
		Draft: models.PackRevision{
			PackID:  id,
			Name:    name,
			Size:    size,
			CardIDs: make([]string, size),
			Slots:   labels,
		},
		Cards: make([]*models.Card, size),
	}

	e.working[id] = pack
	e.dirty[id] = struct{}{}
	return pack
}

// SetSlot assigns a card to a slot, hydrating the card view. Returns
// false without mutating anything when the slot is out of range or the
// card is unknown.
func (e *Engine) SetSlot(ctx context.Context, packID string, slot int, cardID string) (bool, error) {
	pack, ok := e.working[packID]
	if !ok {
		return false, &ErrNotLoaded{PackID: packID}
	}
	if slot < 0 || slot >= pack.Draft.Size {
		return false, nil
	}

	card, err := e.cards.Get(ctx, cardID)
	if err != nil {
		return false, fmt.Errorf("failed to look up card: %w", err)
	}
	if card == nil {
		return false, nil
	}

	pack.Draft.CardIDs[slot] = cardID
	pack.Cards[slot] = card
	e.dirty[packID] = struct{}{}
	return true, nil
}

// ClearSlot empties a slot. Clearing the signpost's only slot clears
// the signpost too.
func (e *Engine) ClearSlot(packID string, slot int) (bool, error) {
	pack, ok := e.working[packID]
	if !ok {
		return false, &ErrNotLoaded{PackID: packID}
	}
	if slot < 0 || slot >= pack.Draft.Size {
		return false, nil
	}

	pack.Draft.CardIDs[slot] = models.EmptySlot
	pack.Cards[slot] = nil
	if pack.Draft.Signpost != "" && !containsCard(pack.Draft.CardIDs, pack.Draft.Signpost) {
		pack.Draft.Signpost = ""
	}
	e.dirty[packID] = struct{}{}
	return true, nil
}

// MoveSlot moves one card from one slot position to another, shifting
// the cards between them. Slot labels stay in place; they describe
// positions, not cards.
func (e *Engine) MoveSlot(packID string, from, to int) (bool, error) {
	pack, ok := e.working[packID]
	if !ok {
		return false, &ErrNotLoaded{PackID: packID}
	}
	size := pack.Draft.Size
	if from < 0 || from >= size || to < 0 || to >= size || from == to {
		return false, nil
	}

	moveString(pack.Draft.CardIDs, from, to)
	moveCard(pack.Cards, from, to)
	e.dirty[packID] = struct{}{}
	return true, nil
}

// SetSlotLabel renames a slot's role label.
func (e *Engine) SetSlotLabel(packID string, slot int, label string) (bool, error) {
	pack, ok := e.working[packID]
	if !ok {
		return false, &ErrNotLoaded{PackID: packID}
	}
	if slot < 0 || slot >= pack.Draft.Size {
		return false, nil
	}

	pack.Draft.Slots[slot] = label
	e.dirty[packID] = struct{}{}
	return true, nil
}

// SetSignpost selects the pack's highlight card. The card must occupy
// a slot; an empty id clears the signpost.
func (e *Engine) SetSignpost(packID, cardID string) (bool, error) {
	pack, ok := e.working[packID]
	if !ok {
		return false, &ErrNotLoaded{PackID: packID}
	}
	if cardID != "" && !containsCard(pack.Draft.CardIDs, cardID) {
		return false, nil
	}

	pack.Draft.Signpost = cardID
	e.dirty[packID] = struct{}{}
	return true, nil
}

// Rename changes the pack's draft name. Collisions surface at commit.
func (e *Engine) Rename(packID, name string) error {
	pack, ok := e.working[packID]
	if !ok {
		return &ErrNotLoaded{PackID: packID}
	}
	pack.Draft.Name = name
	e.dirty[packID] = struct{}{}
	return nil
}

// SetMetadata updates the free-form archetype and theme metadata.
func (e *Engine) SetMetadata(packID, archetype string, themes []string) error {
	pack, ok := e.working[packID]
	if !ok {
		return &ErrNotLoaded{PackID: packID}
	}
	pack.Draft.Archetype = archetype
	pack.Draft.Themes = append([]string(nil), themes...)
	e.dirty[packID] = struct{}{}
	return nil
}

// Commit appends the draft as a new revision. Fails with
// NameCollisionError when another active pack holds the draft name;
// the stored history is untouched in that case.
func (e *Engine) Commit(ctx context.Context, packID string) (*models.PackRevision, error) {
	pack, ok := e.working[packID]
	if !ok {
		return nil, &ErrNotLoaded{PackID: packID}
	}

	inUse, err := e.packs.ActiveNameInUse(ctx, pack.Draft.Name, packID)
	if err != nil {
		return nil, err
	}
	if inUse {
		return nil, &NameCollisionError{Name: pack.Draft.Name}
	}

	rev := pack.Draft.Clone()
	rev.PackID = packID
	rev.Timestamp = time.Now().UTC()
	rev.Reason = commitReason(pack)

	if len(pack.Revisions) == 0 {
		history := &models.PackHistory{ID: packID, Name: rev.Name}
		rev.Seq = 1
		history.Revisions = []models.PackRevision{*rev}
		if err := e.packs.Create(ctx, history); err != nil {
			return nil, err
		}
	} else {
		if err := e.packs.AppendRevision(ctx, packID, len(pack.Revisions), rev); err != nil {
			return nil, err
		}
	}

	pack.Name = rev.Name
	pack.Revisions = append(pack.Revisions, *rev)
	delete(e.dirty, packID)
	e.logger.Printf("pack %s committed revision %d: %s", packID, rev.Seq, rev.Reason)
	return rev, nil
}

// commitReason derives the human-readable change description for the
// next revision.
func commitReason(pack *models.Pack) string {
	latest := pack.Latest()
	if latest == nil {
		return "Initial revision"
	}

	renamed := pack.Draft.Name != latest.Name
	updated := contentChanged(&pack.Draft, latest)

	switch {
	case renamed && updated:
		return fmt.Sprintf("Pack renamed from %q to %q and updated", latest.Name, pack.Draft.Name)
	case renamed:
		return fmt.Sprintf("Pack renamed from %q to %q", latest.Name, pack.Draft.Name)
	default:
		return "Pack updated"
	}
}

func contentChanged(draft, latest *models.PackRevision) bool {
	if draft.Size != latest.Size ||
		draft.Signpost != latest.Signpost ||
		draft.Archetype != latest.Archetype ||
		!equalStrings(draft.CardIDs, latest.CardIDs) ||
		!equalStrings(draft.Slots, latest.Slots) ||
		!equalStrings(draft.Themes, latest.Themes) {
		return true
	}
	return false
}

// Discard drops provisional changes. A never-committed pack is removed
// from the working set entirely; otherwise the draft is re-hydrated
// from the last committed revision.
func (e *Engine) Discard(ctx context.Context, packID string) error {
	pack, ok := e.working[packID]
	if !ok {
		return &ErrNotLoaded{PackID: packID}
	}

	if len(pack.Revisions) == 0 {
		delete(e.working, packID)
		delete(e.dirty, packID)
		return nil
	}

	pack.Draft = *pack.Latest().Clone()
	if err := e.hydrate(ctx, pack); err != nil {
		return err
	}
	delete(e.dirty, packID)
	return nil
}

// Delete soft-deletes a pack after confirmation. The stored history is
// retained but the pack leaves the working set for good.
func (e *Engine) Delete(ctx context.Context, packID string, confirmer Confirmer) error {
	pack, ok := e.working[packID]
	if !ok {
		return &ErrNotLoaded{PackID: packID}
	}

	if !confirmer.Confirm(fmt.Sprintf("Delete pack %q? Its history is kept but the pack disappears from every view.", pack.Draft.Name)) {
		return &ErrAborted{Operation: "delete"}
	}

	if len(pack.Revisions) > 0 {
		if err := e.packs.SoftDelete(ctx, packID); err != nil {
			return err
		}
	}
	delete(e.working, packID)
	delete(e.dirty, packID)
	return nil
}

// Revert appends a new revision copying a historical one's content,
// after confirmation. History only ever grows.
func (e *Engine) Revert(ctx context.Context, packID string, seq int, confirmer Confirmer) (*models.PackRevision, error) {
	pack, ok := e.working[packID]
	if !ok {
		return nil, &ErrNotLoaded{PackID: packID}
	}

	var source *models.PackRevision
	for i := range pack.Revisions {
		if pack.Revisions[i].Seq == seq {
			source = &pack.Revisions[i]
			break
		}
	}
	if source == nil {
		return nil, fmt.Errorf("pack %s has no revision %d", packID, seq)
	}

	if !confirmer.Confirm(fmt.Sprintf("Revert %q to revision %d? A new revision with that content is appended.", pack.Draft.Name, seq)) {
		return nil, &ErrAborted{Operation: "revert"}
	}

	rev := source.Clone()
	rev.Timestamp = time.Now().UTC()
	rev.Reason = fmt.Sprintf("Reverted to revision %d", seq)

	if err := e.packs.AppendRevision(ctx, packID, len(pack.Revisions), rev); err != nil {
		return nil, err
	}

	pack.Name = rev.Name
	pack.Revisions = append(pack.Revisions, *rev)
	pack.Draft = *rev.Clone()
	if err := e.hydrate(ctx, pack); err != nil {
		return nil, err
	}
	delete(e.dirty, packID)
	return rev, nil
}

// hydrate resolves the draft's card ids into full card views,
// preserving slot alignment with nil for empty or unresolvable slots.
func (e *Engine) hydrate(ctx context.Context, pack *models.Pack) error {
	var ids []string
	for _, id := range pack.Draft.CardIDs {
		if id != models.EmptySlot {
			ids = append(ids, id)
		}
	}

	byID, err := e.cards.GetByIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("failed to hydrate pack %s: %w", pack.ID, err)
	}

	pack.Cards = make([]*models.Card, len(pack.Draft.CardIDs))
	for i, id := range pack.Draft.CardIDs {
		if id != models.EmptySlot {
			pack.Cards[i] = byID[id]
		}
	}
	return nil
}

func containsCard(ids []string, cardID string) bool {
	for _, id := range ids {
		if id == cardID {
			return true
		}
	}
	return false
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func moveString(s []string, from, to int) {
	v := s[from]
	if from < to {
		copy(s[from:], s[from+1:to+1])
	} else {
		copy(s[to+1:], s[to:from])
	}
	s[to] = v
}

func moveCard(s []*models.Card, from, to int) {
	v := s[from]
	if from < to {
		copy(s[from:], s[from+1:to+1])
	} else {
		copy(s[to+1:], s[to:from])
	}
	s[to] = v
}
