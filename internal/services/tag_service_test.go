package services

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"gorm.io/gorm"

	"github.com/javajoker/storefront-backend/internal/database"
	"github.com/javajoker/storefront-backend/internal/models"
	"github.com/javajoker/storefront-backend/internal/testutil"
)

func tagNames(tags []models.Tag) []string {
	names := make([]string, len(tags))
	for i, tag := range tags {
		names[i] = tag.Name
	}
	return names
}

func TestNormalizeTagName(t *testing.T) {
	tests := map[string]string{
		"  Lighting ": "lighting",
		"MODERN":      "modern",
		"Cafe\u0301":  "caf\u00e9",
		"   ":         "",
		"ÉTÉ":         "été",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeTagName(in), "input %q", in)
	}
}

func TestNormalizeTagNamesDedupes(t *testing.T) {
	got := NormalizeTagNames([]string{"Sale", " sale", "", "New", "SALE", "  "})
	assert.Equal(t, []string{"sale", "new"}, got)
}

func TestDiffTagIDs(t *testing.T) {
	lighting, modern, sale := uuid.New(), uuid.New(), uuid.New()

	added, removed := DiffTagIDs([]uuid.UUID{lighting, modern}, []uuid.UUID{modern, sale})
	assert.Equal(t, []uuid.UUID{sale}, added)
	assert.Equal(t, []uuid.UUID{lighting}, removed)

	added, removed = DiffTagIDs(nil, []uuid.UUID{modern})
	assert.Equal(t, []uuid.UUID{modern}, added)
	assert.Empty(t, removed)

	added, removed = DiffTagIDs([]uuid.UUID{modern}, []uuid.UUID{modern})
	assert.Empty(t, added)
	assert.Empty(t, removed)
}

func resolveIn(t *testing.T, db *gorm.DB, svc *TagService, names ...string) []models.Tag {
	t.Helper()
	var tags []models.Tag
	err := database.WithTransaction(db, func(tx *gorm.DB) error {
		var err error
		tags, err = svc.Resolve(context.Background(), tx, names)
		return err
	})
	require.NoError(t, err)
	return tags
}

func TestResolveCreatesAndReuses(t *testing.T) {
	for _, tc := range []struct {
		name string
		svc  *TagService
	}{
		{"upsert", NewTagService(testutil.NewLogger())},
		{"get-or-create", NewTagService(testutil.NewLogger(), WithoutUpsert())},
	} {
		t.Run(tc.name, func(t *testing.T) {
			db := testutil.NewDB(t)

			first := resolveIn(t, db, tc.svc, "Modern", "lighting", " modern ")
			assert.Equal(t, []string{"lighting", "modern"}, tagNames(first))

			second := resolveIn(t, db, tc.svc, "MODERN", "sale")
			assert.Equal(t, []string{"modern", "sale"}, tagNames(second))
			assert.Equal(t, first[1].ID, second[0].ID)

			var count int64
			require.NoError(t, db.Model(&models.Tag{}).Count(&count).Error)
			assert.EqualValues(t, 3, count)
		})
	}
}

func TestResolveEmpty(t *testing.T) {
	db := testutil.NewDB(t)
	svc := NewTagService(testutil.NewLogger())

	tags := resolveIn(t, db, svc, "", "   ")
	assert.Empty(t, tags)
	assert.NotNil(t, tags)
}

func TestResolveConcurrentSameNames(t *testing.T) {
	db := testutil.NewDB(t)
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	svc := NewTagService(testutil.NewLogger())
	const workers = 8

	var wg sync.WaitGroup
	results := make([][]models.Tag, workers)
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = database.WithTransaction(db, func(tx *gorm.DB) error {
				tags, err := svc.Resolve(context.Background(), tx, []string{"Sale", "new"})
				results[i] = tags
				return err
			})
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, TagIDs(results[0]), TagIDs(results[i]))
	}

	var count int64
	require.NoError(t, db.Model(&models.Tag{}).Count(&count).Error)
	assert.EqualValues(t, 2, count)
}

func TestResolveRecoversFromConcurrentInsert(t *testing.T) {
	db := testutil.NewDB(t)
	svc := NewTagService(testutil.NewLogger(), WithoutUpsert())

	// Another writer commits "sale" after the lookup misses and before the insert.
	var outer *gorm.DB
	var winner models.Tag
	inserted := false
	err := db.Callback().Query().After("gorm:query").Register("test:concurrent_tag", func(q *gorm.DB) {
		if inserted || outer == nil || q.Statement.Table != "tags" {
			return
		}
		inserted = true
		winner = models.Tag{Name: "sale"}
		require.NoError(t, outer.Create(&winner).Error)
	})
	require.NoError(t, err)

	var tags []models.Tag
	err = database.WithTransaction(db, func(tx *gorm.DB) error {
		outer = tx
		var err error
		tags, err = svc.Resolve(context.Background(), tx, []string{"Sale"})
		return err
	})
	require.NoError(t, err)
	require.True(t, inserted)

	require.Len(t, tags, 1)
	assert.Equal(t, winner.ID, tags[0].ID)
	assert.Equal(t, "sale", tags[0].Name)

	var count int64
	require.NoError(t, db.Model(&models.Tag{}).Where("name = ?", "sale").Count(&count).Error)
	assert.EqualValues(t, 1, count)
}
