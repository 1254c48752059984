// Package models contains the persisted data types shared by the
// storage layer and the engines built on top of it.
package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ImageURIs contains URLs for card images.
type ImageURIs struct {
	Normal  string `json:"normal,omitempty"`
	ArtCrop string `json:"art_crop,omitempty"`
}

// CardFace represents one face of a multi-faced card. It is consulted
// when the top-level card fields are absent.
type CardFace struct {
	Name       string     `json:"name"`
	TypeLine   string     `json:"type_line,omitempty"`
	ManaCost   string     `json:"mana_cost,omitempty"`
	OracleText string     `json:"oracle_text,omitempty"`
	ImageURIs  *ImageURIs `json:"image_uris,omitempty"`
}

// Card is a catalog entry. Cards are immutable once stored except for
// Tags, which the tag engine rewrites in bulk.
type Card struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	NameLowercase string     `json:"name_lowercase,omitempty"`
	TypeLine      string     `json:"type_line,omitempty"`
	ManaCost      string     `json:"mana_cost,omitempty"`
	CMC           float64    `json:"cmc,omitempty"`
	OracleText    string     `json:"oracle_text,omitempty"`
	Colors        []string   `json:"colors,omitempty"`
	ColorIdentity []string   `json:"color_identity,omitempty"`
	ProducedMana  []string   `json:"produced_mana,omitempty"`
	Keywords      []string   `json:"keywords,omitempty"`
	Reprint       bool       `json:"reprint,omitempty"`
	CardFaces     []CardFace `json:"card_faces,omitempty"`
	FrameEffects  []string   `json:"frame_effects,omitempty"`
	Layout        string     `json:"layout,omitempty"`
	ImageURIs     *ImageURIs `json:"image_uris,omitempty"`
	Tags          []string   `json:"tags,omitempty"`
}

// FrameEffectExtendedArt marks an extended-art printing, the losing
// side of the import dedup tie-break.
const FrameEffectExtendedArt = "extendedart"

// HasFrameEffect reports whether the printing carries the given frame
// effect tag (e.g. "extendedart").
func (c *Card) HasFrameEffect(effect string) bool {
	for _, fe := range c.FrameEffects {
		if fe == effect {
			return true
		}
	}
	return false
}

// IsDuplicateFacePromo reports whether the card has multiple faces that
// all share one name. Such printings add no information and are dropped
// during catalog import.
func (c *Card) IsDuplicateFacePromo() bool {
	if len(c.CardFaces) < 2 {
		return false
	}
	first := c.CardFaces[0].Name
	for _, face := range c.CardFaces[1:] {
		if face.Name != first {
			return false
		}
	}
	return true
}

// NormalizeName returns the normalized form of a card name used by the
// unique name index.
func NormalizeName(name string) string {
	return strings.ToLower(name)
}

// EmptySlot is the in-memory sentinel for an unoccupied pack slot.
// Portable exports serialize empty slots as JSON null.
const EmptySlot = ""

// PackRevision is one immutable snapshot of a pack's content and
// metadata. Revisions are append-only: a pack's history never shrinks
// and is never reordered.
type PackRevision struct {
	PackID    string    `json:"-"`
	Seq       int       `json:"-"`
	Name      string    `json:"name"`
	Size      int       `json:"size"`
	CardIDs   []string  `json:"cardIds"`
	Signpost  string    `json:"signpostCardId,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Reason    string    `json:"reason,omitempty"`
	Archetype string    `json:"archetype,omitempty"`
	Themes    []string  `json:"themes,omitempty"`
	Slots     []string  `json:"slots,omitempty"`
}

// Clone returns a deep copy of the revision. Used when a new revision
// is seeded from an old one (commit drafts, revert).
func (r *PackRevision) Clone() *PackRevision {
	out := *r
	out.CardIDs = append([]string(nil), r.CardIDs...)
	out.Themes = append([]string(nil), r.Themes...)
	out.Slots = append([]string(nil), r.Slots...)
	return &out
}

// PackHistory owns the ordered revision sequence for one pack.
// Name mirrors the latest revision's name and is unique among
// non-deleted packs. IsDeleted is a soft-delete flag; deleted packs
// keep their full history but are excluded from every listing.
type PackHistory struct {
	ID        string
	Name      string
	IsDeleted int
	Revisions []PackRevision
}

// Latest returns the most recent committed revision, or nil when the
// history holds none.
func (h *PackHistory) Latest() *PackRevision {
	if len(h.Revisions) == 0 {
		return nil
	}
	return &h.Revisions[len(h.Revisions)-1]
}

// Pack is the runtime view of a pack: its stored history plus a
// provisional draft revision and the draft's slots hydrated to full
// cards. Cards is aligned slot-for-slot with Draft.CardIDs, nil for
// empty or unresolvable slots. The draft diverges from the latest
// committed revision while the pack is dirty.
type Pack struct {
	PackHistory
	Draft PackRevision
	Cards []*Card
}

// Tag types.
const (
	TagTypeLocal  = "local"
	TagTypeRemote = "remote"
)

// Predicate operators for local tag queries.
const (
	OpRegex = "regex"
	OpLT    = "lt"
	OpLTE   = "lte"
	OpEQ    = "eq"
	OpGTE   = "gte"
	OpGT    = "gt"
	OpNE    = "ne"
)

// TagQuery is the field-comparison predicate of a local tag.
type TagQuery struct {
	Field string `json:"field"`
	Op    string `json:"op"`
	Value string `json:"value"`
}

// UnmarshalJSON accepts both string and numeric predicate values, since
// exported tag files carry numbers for numeric-field comparisons.
func (q *TagQuery) UnmarshalJSON(data []byte) error {
	var raw struct {
		Field string          `json:"field"`
		Op    string          `json:"op"`
		Value json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	q.Field = raw.Field
	q.Op = raw.Op
	if len(raw.Value) == 0 {
		q.Value = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(raw.Value, &s); err == nil {
		q.Value = s
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(raw.Value, &n); err == nil {
		q.Value = n.String()
		return nil
	}
	return fmt.Errorf("unsupported tag query value: %s", string(raw.Value))
}

// Tag is a named classification rule, either a local field predicate or
// a cached remote query name list.
type Tag struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Icon            string    `json:"icon"`
	Description     string    `json:"description,omitempty"`
	Category        string    `json:"category,omitempty"`
	Type            string    `json:"type"`
	Query           *TagQuery `json:"query,omitempty"`
	ScryfallQuery   string    `json:"scryfall_query,omitempty"`
	CachedCardNames []string  `json:"cached_card_names,omitempty"`
	CreatedAt       int64     `json:"created_at"`
	UpdatedAt       int64     `json:"updated_at"`
}

// PortablePack is the export file record for one pack. Cards are keyed
// by name rather than id so exports survive catalog re-imports.
type PortablePack struct {
	Name             string    `json:"name"`
	Size             int       `json:"size"`
	Archetype        string    `json:"archetype,omitempty"`
	Themes           []string  `json:"themes,omitempty"`
	Slots            []string  `json:"slots,omitempty"`
	CardNames        []*string `json:"cardNames"`
	SignpostCardName string    `json:"signpostCardName,omitempty"`
}

// DefaultPackSize is the slot capacity of a newly created pack.
const DefaultPackSize = 20

// DefaultPackSlots are the per-slot role labels assigned to new packs.
var DefaultPackSlots = []string{
	"Board Advantage", "Board Advantage", "Board Advantage", "Board Advantage",
	"Flex", "Flex",
	"Disenchant",
	"Creature Removal", "Creature Removal",
	"+1/+1 counters",
	"Other Themes", "Other Themes",
	"Tripels Token",
	"Fixing", "Fixing", "Fixing", "Fixing", "Fixing", "Fixing", "Fixing",
	"Fixing Token",
}
