package match_test

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
	"github.com/pulseapp/pulse-engine/internal/service/match"
	"github.com/pulseapp/pulse-engine/internal/service/trust"
)

//
// Test helpers
//

// setupService spins up an in-memory SQLite DB, applies migrations, seeds the
// minimal dataset, starts a miniredis, and wires everything into a match
// Service (plus the trust Service it depends on).
//
// Each test gets its own isolated DB + Redis.
//
// Seed dataset (db.SeedMinimalTestData):
//   - user1 wears navy blue left (8) and red left (5)
//   - user2 wears navy blue right (6)
//   - user3 wears red right (9)
//   - one pending match for the (1,2) pair
func setupService(t *testing.T) (*match.Service, *trust.Service, *gorm.DB) {
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

	appCtx := app.New(dbase, redisCache, logger, cfg)
	trustSvc := trust.NewService(appCtx)
	return match.NewService(appCtx, trustSvc), trustSvc, dbase
}

// seededMatchID returns the id of the (1,2) match created by the seed.
func seededMatchID(t *testing.T, gdb *gorm.DB) uint64 {
	t.Helper()
	var m db.Match
	require.NoError(t, gdb.Where("user_low_id = ? AND user_high_id = ?", 1, 2).First(&m).Error)
	return m.ID
}

//
// Tests
//

// TestProposeCreatesPendingMatch checks the happy path: user1 and user3 share
// the color red on complementary sides, min intensity 5, so the score is
// 1.5*5 normalized by user1's two assignments = 0.375 → 38%.
func TestProposeCreatesPendingMatch(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := setupService(t)

	res, err := svc.Propose(ctx, 1, 3)
	require.NoError(t, err)

	assert.Equal(t, db.MatchStatusPending, res.Status)
	assert.Equal(t, 38, res.CompatibilityPercent)
	assert.Equal(t, []uint64{3}, res.SharedCodeIDs) // user1's red-left code
	assert.NotZero(t, res.MatchID)
}

// TestProposeDuplicatePairConflicts verifies that a second proposal for an
// existing pair fails with a conflict carrying the existing row's status,
// regardless of which side proposes.
func TestProposeDuplicatePairConflicts(t *testing.T) {
	ctx := context.Background()
	svc, _, gdb := setupService(t)

	existingID := seededMatchID(t, gdb)

	for _, pair := range [][2]uint64{{1, 2}, {2, 1}} {
		_, err := svc.Propose(ctx, pair[0], pair[1])
		require.Error(t, err)
		assert.ErrorIs(t, err, svcErr.ErrConflict)

		details := svcErr.Details(err)
		require.NotNil(t, details)
		assert.Equal(t, existingID, details["matchId"])
		assert.Equal(t, db.MatchStatusPending, details["status"])
	}
}

func TestProposeValidation(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := setupService(t)

	_, err := svc.Propose(ctx, 1, 1)
	assert.ErrorIs(t, err, svcErr.ErrInvalidInput)

	_, err = svc.Propose(ctx, 1, 0)
	assert.ErrorIs(t, err, svcErr.ErrInvalidInput)

	_, err = svc.Propose(ctx, 1, 999)
	assert.ErrorIs(t, err, svcErr.ErrNotFound)
}

// TestProposeBlockedPairForbidden ensures a block in either direction stops
// new proposals for the pair.
func TestProposeBlockedPairForbidden(t *testing.T) {
	ctx := context.Background()
	svc, trustSvc, _ := setupService(t)

	require.NoError(t, trustSvc.Block(ctx, 3, 1))

	_, err := svc.Propose(ctx, 1, 3)
	assert.ErrorIs(t, err, svcErr.ErrForbidden)
}

// TestAcceptIsIdempotent: pending → accepted, and a second accept returns the
// match unchanged instead of erroring.
func TestAcceptIsIdempotent(t *testing.T) {
	ctx := context.Background()
	svc, _, gdb := setupService(t)
	matchID := seededMatchID(t, gdb)

	m, err := svc.Accept(ctx, matchID, 2)
	require.NoError(t, err)
	assert.Equal(t, db.MatchStatusAccepted, m.Status)

	m, err = svc.Accept(ctx, matchID, 2)
	require.NoError(t, err)
	assert.Equal(t, db.MatchStatusAccepted, m.Status)
}

func TestAcceptDeclinedMatchForbidden(t *testing.T) {
	ctx := context.Background()
	svc, _, gdb := setupService(t)
	matchID := seededMatchID(t, gdb)

	_, err := svc.Decline(ctx, matchID, 2)
	require.NoError(t, err)

	_, err = svc.Accept(ctx, matchID, 1)
	assert.ErrorIs(t, err, svcErr.ErrForbidden)
}

func TestDecline(t *testing.T) {
	ctx := context.Background()
	svc, _, gdb := setupService(t)
	matchID := seededMatchID(t, gdb)

	m, err := svc.Decline(ctx, matchID, 1)
	require.NoError(t, err)
	assert.Equal(t, db.MatchStatusDeclined, m.Status)

	// declining again is a no-op
	m, err = svc.Decline(ctx, matchID, 1)
	require.NoError(t, err)
	assert.Equal(t, db.MatchStatusDeclined, m.Status)
}

// TestDeclineBlockedMatchForbidden: a blocked match is terminal.
func TestDeclineBlockedMatchForbidden(t *testing.T) {
	ctx := context.Background()
	svc, trustSvc, gdb := setupService(t)
	matchID := seededMatchID(t, gdb)

	require.NoError(t, trustSvc.Block(ctx, 1, 2))

	_, err := svc.Decline(ctx, matchID, 1)
	assert.ErrorIs(t, err, svcErr.ErrForbidden)
}

// TestNonParticipantUnauthorized: user3 has no business with the (1,2) match.
func TestNonParticipantUnauthorized(t *testing.T) {
	ctx := context.Background()
	svc, _, gdb := setupService(t)
	matchID := seededMatchID(t, gdb)

	_, err := svc.Accept(ctx, matchID, 3)
	assert.ErrorIs(t, err, svcErr.ErrUnauthorized)

	_, err = svc.Decline(ctx, matchID, 3)
	assert.ErrorIs(t, err, svcErr.ErrUnauthorized)
}

func TestListWithPartnerInfo(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := setupService(t)

	summaries, err := svc.List(ctx, 1, "")
	require.NoError(t, err)
	require.Len(t, summaries, 1)

	s := summaries[0]
	assert.Equal(t, db.MatchStatusPending, s.Status)
	assert.Equal(t, uint64(2), s.Partner.ID)
	assert.Equal(t, "user2", s.Partner.Username)
	assert.Equal(t, 90, s.CompatibilityPercent)
	assert.Equal(t, []uint64{1}, s.SharedCodeIDs)
	assert.Zero(t, s.UnreadCount)
}

func TestListStatusFilter(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := setupService(t)

	summaries, err := svc.List(ctx, 1, db.MatchStatusAccepted)
	require.NoError(t, err)
	assert.Empty(t, summaries)

	_, err = svc.List(ctx, 1, "bogus")
	assert.ErrorIs(t, err, svcErr.ErrInvalidInput)
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	svc, _, gdb := setupService(t)
	matchID := seededMatchID(t, gdb)

	_, err := svc.Accept(ctx, matchID, 2)
	require.NoError(t, err)

	stats, err := svc.Stats(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalMatches)
	assert.Equal(t, int64(1), stats.AcceptedMatches)
}
