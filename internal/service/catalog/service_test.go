package catalog_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/pulseapp/pulse-engine/internal/app"
	"github.com/pulseapp/pulse-engine/internal/cache"
	"github.com/pulseapp/pulse-engine/internal/config"
	"github.com/pulseapp/pulse-engine/internal/db"
	svcErr "github.com/pulseapp/pulse-engine/internal/errors"
	"github.com/pulseapp/pulse-engine/internal/service/catalog"
)

func setupService(t *testing.T) *catalog.Service {
	t.Helper()

	dbName := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	dbase, err := gorm.Open(sqlite.Open(dbName), &gorm.Config{
		NowFunc:                func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
		SkipDefaultTransaction: true,
		TranslateError:         true,
	})
	require.NoError(t, err)

	sqlDB, err := dbase.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, dbase.AutoMigrate(
		&db.User{}, &db.HankyCode{}, &db.UserHankyCode{},
		&db.Match{}, &db.Message{}, &db.AbuseReport{},
	))
	require.NoError(t, db.SeedMinimalTestData(dbase))

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(func() { mr.Close() })

	cfg := config.New()
	cfg.Redis.Addr = mr.Addr()

	redisCache := cache.NewRedisCache(cfg)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return catalog.NewService(app.New(dbase, redisCache, logger, cfg))
}

func TestListCodes(t *testing.T) {
	ctx := context.Background()
	svc := setupService(t)

	codes, err := svc.ListCodes(ctx, "")
	require.NoError(t, err)
	assert.Len(t, codes, 4)

	classic, err := svc.ListCodes(ctx, "classic")
	require.NoError(t, err)
	assert.Len(t, classic, 4)

	none, err := svc.ListCodes(ctx, "leather")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestGetCode(t *testing.T) {
	ctx := context.Background()
	svc := setupService(t)

	code, err := svc.GetCode(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "navy blue", code.Color)
	assert.Equal(t, "left", code.Position)

	_, err = svc.GetCode(ctx, 999)
	assert.ErrorIs(t, err, svcErr.ErrNotFound)
}

func TestCategories(t *testing.T) {
	ctx := context.Background()
	svc := setupService(t)

	categories, err := svc.Categories(ctx)
	require.NoError(t, err)
	require.Len(t, categories, 1)
	assert.Equal(t, "classic", categories[0].Category)
	assert.Equal(t, int64(4), categories[0].Count)
}

func TestPopularCodes(t *testing.T) {
	ctx := context.Background()
	svc := setupService(t)

	popular, err := svc.PopularCodes(ctx, 2)
	require.NoError(t, err)
	require.Len(t, popular, 2)
	// red-right is worn by user3 at 9, navy-left by user1 at 8; both have one
	// wearer each, so the higher average intensity ranks first
	assert.Equal(t, int64(1), popular[0].UserCount)
}

// TestAssignCodeUpserts: assigning twice replaces the intensity instead of
// erroring, and the position always comes from the catalog entry.
func TestAssignCodeUpserts(t *testing.T) {
	ctx := context.Background()
	svc := setupService(t)

	require.NoError(t, svc.AssignCode(ctx, 2, 4, 3))
	require.NoError(t, svc.AssignCode(ctx, 2, 4, 7))

	codes, err := svc.UserCodes(ctx, 2)
	require.NoError(t, err)
	require.Len(t, codes, 2) // navy-right from the seed plus red-right

	var red bool
	for _, c := range codes {
		if c.CodeID == 4 {
			red = true
			assert.Equal(t, 7, c.Intensity)
			assert.Equal(t, "right", c.Position)
		}
	}
	assert.True(t, red)
}

func TestAssignCodeValidation(t *testing.T) {
	ctx := context.Background()
	svc := setupService(t)

	assert.ErrorIs(t, svc.AssignCode(ctx, 1, 1, 0), svcErr.ErrInvalidInput)
	assert.ErrorIs(t, svc.AssignCode(ctx, 1, 1, 11), svcErr.ErrInvalidInput)
	assert.ErrorIs(t, svc.AssignCode(ctx, 1, 999, 5), svcErr.ErrNotFound)
}

func TestRemoveCode(t *testing.T) {
	ctx := context.Background()
	svc := setupService(t)

	require.NoError(t, svc.RemoveCode(ctx, 1, 1))

	codes, err := svc.UserCodes(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, codes, 1)

	assert.ErrorIs(t, svc.RemoveCode(ctx, 1, 1), svcErr.ErrNotFound)
}
