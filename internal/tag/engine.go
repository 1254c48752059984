// Package tag implements the tag classification engine: named rules
// evaluated over the card catalog, with the matching tag icons written
// back onto each card.
package tag

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/robdennis/trappist/internal/storage/models"
	"github.com/robdennis/trappist/internal/storage/repository"
)

// Confirmer gates the full tag rewrite behind an explicit decision.
type Confirmer interface {
	Confirm(message string) bool
}

// ErrAborted is returned when the caller declines the confirmation.
type ErrAborted struct {
	Operation string
}

// Error implements the error interface.
func (e *ErrAborted) Error() string {
	return fmt.Sprintf("%s aborted", e.Operation)
}

// NameSearcher runs a saved remote query and returns matching card
// names.
type NameSearcher interface {
	SearchCardNames(ctx context.Context, query string) ([]string, error)
}

// Progress reports how far a full tag application has come.
type Progress func(done, total int)

// Engine evaluates tag definitions against the catalog.
type Engine struct {
	tags     repository.TagRepository
	cards    repository.CardRepository
	searcher NameSearcher
	logger   *log.Logger
}

// NewEngine creates a tag engine. searcher may be nil when remote tag
// caching is not needed.
func NewEngine(tags repository.TagRepository, cards repository.CardRepository, searcher NameSearcher, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.Default()
	}
	return &Engine{tags: tags, cards: cards, searcher: searcher, logger: logger}
}

// Save persists a tag, stamping timestamps. A missing id is assigned.
func (e *Engine) Save(ctx context.Context, tag *models.Tag) error {
	now := time.Now().UnixMilli()
	if tag.ID == "" {
		tag.ID = uuid.NewString()
	}
	if tag.CreatedAt == 0 {
		tag.CreatedAt = now
	}
	tag.UpdatedAt = now
	return e.tags.Put(ctx, tag)
}

// List returns every tag definition.
func (e *Engine) List(ctx context.Context) ([]*models.Tag, error) {
	return e.tags.All(ctx)
}

// GetByName looks a tag up by its unique name. Returns nil when no tag
// has that name.
func (e *Engine) GetByName(ctx context.Context, name string) (*models.Tag, error) {
	return e.tags.GetByName(ctx, name)
}

// Delete removes a tag definition. Cards keep the icon until the next
// full application.
func (e *Engine) Delete(ctx context.Context, id string) error {
	return e.tags.Delete(ctx, id)
}

// ApplyAllTags recomputes every card's tag set from scratch in one
// full pass and overwrites the stored tags in a single batch. Requires
// confirmation; progress may be nil.
func (e *Engine) ApplyAllTags(ctx context.Context, confirmer Confirmer, progress Progress) (int, error) {
	if !confirmer.Confirm("Recompute tags for every card? Existing card tags are replaced wholesale.") {
		return 0, &ErrAborted{Operation: "apply tags"}
	}

	tags, err := e.tags.All(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load tags: %w", err)
	}
	cards, err := e.cards.All(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load cards: %w", err)
	}

	matchers, err := buildMatchers(tags)
	if err != nil {
		return 0, err
	}

	updates := make(map[string][]string, len(cards))
	for i, card := range cards {
		icons := []string{}
		for _, m := range matchers {
			if m.matches(card) {
				icons = append(icons, m.icon)
			}
		}
		updates[card.ID] = icons
		if progress != nil {
			progress(i+1, len(cards))
		}
	}

	if err := e.cards.UpdateTags(ctx, updates); err != nil {
		return 0, fmt.Errorf("failed to write card tags: %w", err)
	}

	e.logger.Printf("applied %d tags across %d cards", len(tags), len(cards))
	return len(cards), nil
}

// CacheRemoteTag runs a remote tag's saved query and fills the draft's
// cached name list. The store is untouched until the tag is saved.
func (e *Engine) CacheRemoteTag(ctx context.Context, tag *models.Tag) error {
	if tag.Type != models.TagTypeRemote {
		return fmt.Errorf("tag %q is not a remote tag", tag.Name)
	}
	if tag.ScryfallQuery == "" {
		return fmt.Errorf("tag %q has no saved query", tag.Name)
	}
	if e.searcher == nil {
		return fmt.Errorf("no search backend configured")
	}

	names, err := e.searcher.SearchCardNames(ctx, tag.ScryfallQuery)
	if err != nil {
		return fmt.Errorf("failed to cache tag %q: %w", tag.Name, err)
	}
	tag.CachedCardNames = names
	return nil
}

// matcher is one tag definition compiled for evaluation.
type matcher struct {
	icon   string
	local  *models.TagQuery
	regex  *regexp.Regexp
	remote map[string]struct{}
}

func buildMatchers(tags []*models.Tag) ([]matcher, error) {
	matchers := make([]matcher, 0, len(tags))
	for _, tag := range tags {
		m := matcher{icon: tag.Icon}

		switch {
		case tag.Type == models.TagTypeRemote:
			m.remote = make(map[string]struct{}, len(tag.CachedCardNames))
			for _, name := range tag.CachedCardNames {
				m.remote[name] = struct{}{}
			}
		case tag.Query != nil:
			m.local = tag.Query
			if tag.Query.Op == models.OpRegex {
				re, err := regexp.Compile("(?i)" + tag.Query.Value)
				if err != nil {
					return nil, fmt.Errorf("tag %q has an invalid pattern: %w", tag.Name, err)
				}
				m.regex = re
			}
		default:
			// A local tag without a query matches nothing.
			continue
		}
		matchers = append(matchers, m)
	}
	return matchers, nil
}

func (m *matcher) matches(card *models.Card) bool {
	if m.remote != nil {
		_, ok := m.remote[card.Name]
		return ok
	}
	return evalQuery(m.local, m.regex, card)
}

// evalQuery applies a local predicate to a card field. Multi-valued
// fields test membership; numeric fields coerce the rule value.
func evalQuery(q *models.TagQuery, re *regexp.Regexp, card *models.Card) bool {
	if num, ok := numericField(card, q.Field); ok {
		return evalNumeric(q, num)
	}
	if values, ok := multiField(card, q.Field); ok {
		return evalMembership(q, re, values)
	}
	if value, ok := scalarField(card, q.Field); ok {
		return evalScalar(q, re, value)
	}
	return false
}

func numericField(card *models.Card, field string) (float64, bool) {
	if field == "cmc" {
		return card.CMC, true
	}
	return 0, false
}

func multiField(card *models.Card, field string) ([]string, bool) {
	switch field {
	case "colors":
		return card.Colors, true
	case "color_identity":
		return card.ColorIdentity, true
	case "produced_mana":
		return card.ProducedMana, true
	case "keywords":
		return card.Keywords, true
	case "tags":
		return card.Tags, true
	}
	return nil, false
}

func scalarField(card *models.Card, field string) (string, bool) {
	switch field {
	case "name":
		return card.Name, true
	case "name_lowercase":
		return card.NameLowercase, true
	case "type_line":
		return card.TypeLine, true
	case "oracle_text":
		return card.OracleText, true
	case "mana_cost":
		return card.ManaCost, true
	case "layout":
		return card.Layout, true
	}
	return "", false
}

func evalNumeric(q *models.TagQuery, value float64) bool {
	target, err := strconv.ParseFloat(q.Value, 64)
	if err != nil {
		return false
	}
	switch q.Op {
	case models.OpLT:
		return value < target
	case models.OpLTE:
		return value <= target
	case models.OpEQ:
		return value == target
	case models.OpGTE:
		return value >= target
	case models.OpGT:
		return value > target
	case models.OpNE:
		return value != target
	}
	return false
}

func evalScalar(q *models.TagQuery, re *regexp.Regexp, value string) bool {
	switch q.Op {
	case models.OpRegex:
		return re != nil && re.MatchString(value)
	case models.OpEQ:
		return strings.EqualFold(value, q.Value)
	case models.OpNE:
		return !strings.EqualFold(value, q.Value)
	case models.OpLT:
		return value < q.Value
	case models.OpLTE:
		return value <= q.Value
	case models.OpGT:
		return value > q.Value
	case models.OpGTE:
		return value >= q.Value
	}
	return false
}

func evalMembership(q *models.TagQuery, re *regexp.Regexp, values []string) bool {
	switch q.Op {
	case models.OpRegex:
		for _, v := range values {
			if re != nil && re.MatchString(v) {
				return true
			}
		}
		return false
	case models.OpEQ:
		for _, v := range values {
			if strings.EqualFold(v, q.Value) {
				return true
			}
		}
		return false
	case models.OpNE:
		for _, v := range values {
			if strings.EqualFold(v, q.Value) {
				return false
			}
		}
		return true
	}
	return false
}
