package trust_test

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
	"github.com/pulseapp/pulse-engine/internal/service/trust"
)

//
// Test helpers
//

// setupService wires a trust Service against an in-memory SQLite DB and a
// miniredis. On top of the minimal seed it adds users 4-6 so the moderation
// thresholds (3 and 5 distinct reporters) can be crossed.
func setupService(t *testing.T) (*trust.Service, *miniredis.Miniredis, *gorm.DB) {
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

	extra := []db.User{
		{ID: 4, Username: "user4", Email: "u4@test.com", PasswordHash: "x", Age: 30, ProfileVisibility: "public"},
		{ID: 5, Username: "user5", Email: "u5@test.com", PasswordHash: "x", Age: 31, ProfileVisibility: "public"},
		{ID: 6, Username: "user6", Email: "u6@test.com", PasswordHash: "x", Age: 33, ProfileVisibility: "public"},
	}
	require.NoError(t, dbase.Create(&extra).Error)

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(func() { mr.Close() })

	cfg := config.New()
	cfg.Redis.Addr = mr.Addr()

	redisCache := cache.NewRedisCache(cfg)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	appCtx := app.New(dbase, redisCache, logger, cfg)
	return trust.NewService(appCtx), mr, dbase
}

//
// Tests
//

func TestReportValidation(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := setupService(t)

	_, err := svc.Report(ctx, 1, 1, "harassment", "reporting myself")
	assert.ErrorIs(t, err, svcErr.ErrInvalidInput)

	_, err = svc.Report(ctx, 1, 2, "nonsense_type", "bad type")
	assert.ErrorIs(t, err, svcErr.ErrInvalidInput)

	_, err = svc.Report(ctx, 1, 2, "harassment", "   ")
	assert.ErrorIs(t, err, svcErr.ErrInvalidInput)

	_, err = svc.Report(ctx, 1, 999, "harassment", "ghost user")
	assert.ErrorIs(t, err, svcErr.ErrNotFound)
}

// TestReportSpamGuard: a reporter may file against the same target at most
// once per 24h; a different target is unaffected.
func TestReportSpamGuard(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := setupService(t)

	_, err := svc.Report(ctx, 1, 2, "harassment", "first report")
	require.NoError(t, err)

	_, err = svc.Report(ctx, 1, 2, "harassment", "second report same day")
	assert.ErrorIs(t, err, svcErr.ErrRateLimited)

	_, err = svc.Report(ctx, 1, 3, "harassment", "different target")
	require.NoError(t, err)
}

// TestFlagThreshold: three distinct reporters within the window flag the
// target without restricting them.
func TestFlagThreshold(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := setupService(t)

	for _, reporter := range []uint64{2, 3, 4} {
		_, err := svc.Report(ctx, reporter, 1, "harassment", "unwanted messages")
		require.NoError(t, err)
	}

	flagged, err := svc.IsFlagged(ctx, 1)
	require.NoError(t, err)
	assert.True(t, flagged)

	restricted, err := svc.IsRestricted(ctx, 1)
	require.NoError(t, err)
	assert.False(t, restricted)
}

// TestRestrictThreshold: five reports restrict the target and leave a
// system-generated audit report behind.
func TestRestrictThreshold(t *testing.T) {
	ctx := context.Background()
	svc, _, gdb := setupService(t)

	for _, reporter := range []uint64{2, 3, 4, 5, 6} {
		_, err := svc.Report(ctx, reporter, 1, "safety_concern", "escalating behavior")
		require.NoError(t, err)
	}

	restricted, err := svc.IsRestricted(ctx, 1)
	require.NoError(t, err)
	assert.True(t, restricted)

	var audit db.AbuseReport
	err = gdb.Where("reporter_id = ? AND reported_user_id = ?", db.SystemReporterID, 1).
		First(&audit).Error
	require.NoError(t, err)
	assert.Equal(t, "system", audit.ReportType)
	assert.Equal(t, db.ReportStatusInvestigating, audit.Status)
}

// TestDismissedReportsDontCount: dismissed rows are excluded from the
// moderation window.
func TestDismissedReportsDontCount(t *testing.T) {
	ctx := context.Background()
	svc, _, gdb := setupService(t)

	for _, reporter := range []uint64{2, 3, 4} {
		_, err := svc.Report(ctx, reporter, 1, "harassment", "noise")
		require.NoError(t, err)
	}
	require.NoError(t, gdb.Model(&db.AbuseReport{}).
		Where("reported_user_id = ?", 1).
		Update("status", db.ReportStatusDismissed).Error)

	// the next report re-derives state from one non-dismissed row
	_, err := svc.Report(ctx, 5, 1, "harassment", "fresh report")
	require.NoError(t, err)

	flagged, err := svc.IsFlagged(ctx, 1)
	require.NoError(t, err)
	// flag key from the earlier evaluation still has its TTL; what matters is
	// that no restriction was triggered by the dismissed rows
	restricted, err2 := svc.IsRestricted(ctx, 1)
	require.NoError(t, err2)
	assert.True(t, flagged)
	assert.False(t, restricted)
}

// TestBlockIsSymmetric: one call hides both directions and forces the match
// row to blocked.
func TestBlockIsSymmetric(t *testing.T) {
	ctx := context.Background()
	svc, _, gdb := setupService(t)

	require.NoError(t, svc.Block(ctx, 1, 2))

	for _, pair := range [][2]uint64{{1, 2}, {2, 1}} {
		blocked, err := svc.IsBlocked(ctx, pair[0], pair[1])
		require.NoError(t, err)
		assert.True(t, blocked)
	}

	var m db.Match
	require.NoError(t, gdb.Where("user_low_id = ? AND user_high_id = ?", 1, 2).First(&m).Error)
	assert.Equal(t, db.MatchStatusBlocked, m.Status)
}

func TestBlockValidation(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := setupService(t)

	assert.ErrorIs(t, svc.Block(ctx, 1, 1), svcErr.ErrInvalidInput)
	assert.ErrorIs(t, svc.Block(ctx, 1, 999), svcErr.ErrNotFound)
}

// TestUnblockLeavesMatchBlocked: unblocking clears the KV keys but never
// reopens the match row.
func TestUnblockLeavesMatchBlocked(t *testing.T) {
	ctx := context.Background()
	svc, _, gdb := setupService(t)

	require.NoError(t, svc.Block(ctx, 1, 2))
	require.NoError(t, svc.Unblock(ctx, 1, 2))

	blocked, err := svc.IsBlocked(ctx, 1, 2)
	require.NoError(t, err)
	assert.False(t, blocked)

	blocked, err = svc.IsBlocked(ctx, 2, 1)
	require.NoError(t, err)
	assert.False(t, blocked)

	var m db.Match
	require.NoError(t, gdb.Where("user_low_id = ? AND user_high_id = ?", 1, 2).First(&m).Error)
	assert.Equal(t, db.MatchStatusBlocked, m.Status)
}

func TestListBlocked(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := setupService(t)

	require.NoError(t, svc.Block(ctx, 1, 2))
	require.NoError(t, svc.Block(ctx, 1, 3))

	ids, err := svc.ListBlocked(ctx, 1)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint64{2, 3}, ids)

	// blocks are mutual, so user2's namespace carries the reverse key
	ids, err = svc.ListBlocked(ctx, 2)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint64{1}, ids)
}

// TestPanicStoresIncident: the incident round-trips through the KV store
// under a 24h TTL.
func TestPanicStoresIncident(t *testing.T) {
	ctx := context.Background()
	svc, mr, _ := setupService(t)

	id, err := svc.Panic(ctx, 1, "Hotel lobby", "Date turned threatening")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	key := "emergency:" + id
	require.True(t, mr.Exists(key))

	payload, err := mr.Get(key)
	require.NoError(t, err)
	assert.Contains(t, payload, "Hotel lobby")
	assert.Contains(t, payload, `"status":"active"`)
}

// TestFlagExpiry: the flag key carries a TTL and lapses on its own.
func TestFlagExpiry(t *testing.T) {
	ctx := context.Background()
	svc, mr, _ := setupService(t)

	for _, reporter := range []uint64{2, 3, 4} {
		_, err := svc.Report(ctx, reporter, 1, "harassment", "unwanted messages")
		require.NoError(t, err)
	}

	flagged, err := svc.IsFlagged(ctx, 1)
	require.NoError(t, err)
	require.True(t, flagged)

	mr.FastForward(3*24*time.Hour + time.Second)

	flagged, err = svc.IsFlagged(ctx, 1)
	require.NoError(t, err)
	assert.False(t, flagged)
}

func TestStatsExcludeSystemReports(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := setupService(t)

	for _, reporter := range []uint64{2, 3, 4, 5, 6} {
		_, err := svc.Report(ctx, reporter, 1, "harassment", "spam DMs")
		require.NoError(t, err)
	}

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	// the auto-moderation audit row must not inflate user-facing counts
	assert.Equal(t, int64(5), stats.TotalReports)
}
