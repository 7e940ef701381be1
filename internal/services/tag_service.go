// internal/services/tag_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/javajoker/storefront-backend/internal/database"
	"github.com/javajoker/storefront-backend/internal/models"
)

// TagService turns submitted tag names into persisted tags.
type TagService struct {
	log    *logrus.Logger
	upsert bool
}

type TagOption func(*TagService)

// WithoutUpsert forces the per-name get-or-create path.
func WithoutUpsert() TagOption {
	return func(s *TagService) {
		s.upsert = false
	}
}

func NewTagService(log *logrus.Logger, opts ...TagOption) *TagService {
	s := &TagService{log: log, upsert: true}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var lowerCaser = cases.Lower(language.Und)

// NormalizeTagName trims, NFC-normalizes and lowercases name.
func NormalizeTagName(name string) string {
	return lowerCaser.String(norm.NFC.String(strings.TrimSpace(name)))
}

// NormalizeTagNames normalizes names, dropping empties and duplicates while
// keeping first-seen order.
func NormalizeTagNames(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, name := range names {
		n := NormalizeTagName(name)
		if n == "" {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

// Resolve returns one tag per distinct normalized name, creating missing
// ones inside tx. Tags come back ordered by name.
func (s *TagService) Resolve(ctx context.Context, tx *gorm.DB, names []string) ([]models.Tag, error) {
	normalized := NormalizeTagNames(names)
	if len(normalized) == 0 {
		return []models.Tag{}, nil
	}
	tx = tx.WithContext(ctx)

	if s.upsert && supportsUpsert(tx) {
		return s.resolveBulk(tx, normalized)
	}
	return s.resolveEach(tx, normalized)
}

func supportsUpsert(tx *gorm.DB) bool {
	switch tx.Dialector.Name() {
	case "postgres", "sqlite", "mysql":
		return true
	}
	return false
}

func (s *TagService) resolveBulk(tx *gorm.DB, names []string) ([]models.Tag, error) {
	candidates := make([]models.Tag, len(names))
	for i, name := range names {
		candidates[i] = models.Tag{Name: name}
	}

	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoNothing: true,
	}).Create(&candidates).Error; err != nil {
		return nil, fmt.Errorf("failed to upsert tags: %w", err)
	}

	var tags []models.Tag
	if err := tx.Where("name IN ?", names).Order("name ASC").Find(&tags).Error; err != nil {
		return nil, fmt.Errorf("failed to load tags: %w", err)
	}
	if len(tags) != len(names) {
		return nil, fmt.Errorf("resolved %d of %d tags", len(tags), len(names))
	}
	return tags, nil
}

func (s *TagService) resolveEach(tx *gorm.DB, names []string) ([]models.Tag, error) {
	tags := make([]models.Tag, 0, len(names))
	for _, name := range names {
		tag, err := s.getOrCreate(tx, name)
		if err != nil {
			return nil, err
		}
		tags = append(tags, *tag)
	}
	sortTags(tags)
	return tags, nil
}

// getOrCreate inserts inside a savepoint so a concurrent insert of the same
// name only rolls back the savepoint, after which the winner's row is read.
func (s *TagService) getOrCreate(tx *gorm.DB, name string) (*models.Tag, error) {
	var tag models.Tag
	err := tx.Where("name = ?", name).First(&tag).Error
	if err == nil {
		return &tag, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to load tag %q: %w", name, err)
	}

	tag = models.Tag{Name: name}
	err = tx.Transaction(func(sp *gorm.DB) error {
		return sp.Create(&tag).Error
	})
	if err == nil {
		return &tag, nil
	}
	if !database.IsUniqueViolation(err) {
		return nil, fmt.Errorf("failed to create tag %q: %w", name, err)
	}

	s.log.WithField("tag", name).Debug("Tag created concurrently, re-reading")
	tag = models.Tag{}
	if err := tx.Where("name = ?", name).First(&tag).Error; err != nil {
		return nil, fmt.Errorf("failed to re-read tag %q: %w", name, err)
	}
	return &tag, nil
}

func sortTags(tags []models.Tag) {
	sort.Slice(tags, func(i, j int) bool { return tags[i].Name < tags[j].Name })
}

// DiffTagIDs reports which ids of next are missing from current (added) and
// which ids of current are missing from next (removed).
func DiffTagIDs(current, next []uuid.UUID) (added, removed []uuid.UUID) {
	inCurrent := make(map[uuid.UUID]struct{}, len(current))
	for _, id := range current {
		inCurrent[id] = struct{}{}
	}
	inNext := make(map[uuid.UUID]struct{}, len(next))
	for _, id := range next {
		inNext[id] = struct{}{}
	}

	for _, id := range next {
		if _, ok := inCurrent[id]; !ok {
			added = append(added, id)
		}
	}
	for _, id := range current {
		if _, ok := inNext[id]; !ok {
			removed = append(removed, id)
		}
	}
	return added, removed
}

// TagIDs extracts the ids of tags.
func TagIDs(tags []models.Tag) []uuid.UUID {
	ids := make([]uuid.UUID, len(tags))
	for i, tag := range tags {
		ids[i] = tag.ID
	}
	return ids
}
