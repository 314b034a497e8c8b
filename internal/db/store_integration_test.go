//go:build testutil
// +build testutil

package db_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Spok95/ecoreport-bot/internal/db"
	"github.com/Spok95/ecoreport-bot/internal/models"
	"github.com/Spok95/ecoreport-bot/internal/moderation"
	"github.com/Spok95/ecoreport-bot/internal/testutil/testdb"
)

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, int64, string) error { return nil }

func startStore(t *testing.T) *db.Store {
	t.Helper()
	h, err := testdb.Start(context.Background())
	require.NoError(t, err)
	t.Cleanup(h.Close)
	return db.New(h.DB)
}

func seedBasic(t *testing.T, st *db.Store) {
	t.Helper()
	seed := &db.Seed{
		Schools: []db.SeedSchool{{
			Name: "Школа №5", Curator: ptr(1001),
			Classes: []db.SeedClass{{Name: "8В", Curator: ptr(2001)}},
		}},
		Users: []db.SeedUser{
			{ChatID: 2001, Role: models.Curator, School: "Школа №5", Class: "8В"},
			{ChatID: 1001, Role: models.SchoolCurator},
		},
	}
	require.NoError(t, st.ApplySeed(context.Background(), seed))
}

func ptr(v int64) *int64 { return &v }

func TestSeed_Idempotent(t *testing.T) {
	st := startStore(t)
	ctx := context.Background()
	seedBasic(t, st)
	seedBasic(t, st)

	schools, err := st.ListSchools(ctx)
	require.NoError(t, err)
	require.Len(t, schools, 1)
	classes, err := st.ListClassesBySchool(ctx, schools[0].ID)
	require.NoError(t, err)
	require.Len(t, classes, 1)
	assert.Equal(t, int64(2001), *classes[0].CuratorChatID)

	cur, err := st.ListUsersByRoles(ctx, models.Curator, models.SchoolCurator)
	require.NoError(t, err)
	assert.Len(t, cur, 2)
}

func TestReportLifecycle(t *testing.T) {
	st := startStore(t)
	ctx := context.Background()
	seedBasic(t, st)

	schools, _ := st.ListSchools(ctx)
	classes, _ := st.ListClassesBySchool(ctx, schools[0].ID)
	u, err := st.EnsureUser(ctx, 500)
	require.NoError(t, err)
	again, err := st.EnsureUser(ctx, 500)
	require.NoError(t, err)
	assert.Equal(t, u.ID, again.ID)
	assert.Equal(t, models.Student, u.Role)

	now := time.Now().UTC().Truncate(time.Millisecond)
	id, err := st.CreateReport(ctx, &models.Report{
		UserID: u.ID, ClassID: classes[0].ID, SchoolID: schools[0].ID, Period: "2026-Q4",
		Status: models.StatusPendingClass, CreatedAt: now,
		Meta: models.ReportMeta{Fractions: []string{"пластик", "бумага"}, Volume: "12.5"},
	}, []models.Media{{FileRef: "file-1", Type: models.MediaPhoto}})
	require.NoError(t, err)

	rep, err := st.GetReport(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPendingClass, rep.Status)
	assert.Equal(t, []string{"пластик", "бумага"}, rep.Meta.Fractions)

	eng := moderation.NewEngine(st, nopNotifier{}, nil)
	_, err = eng.ClassConfirm(ctx, id, 2001)
	require.NoError(t, err)
	rep, err = eng.SchoolAccept(ctx, id, 1001)
	require.NoError(t, err)
	assert.Equal(t, 26, rep.Score)

	_, err = eng.SchoolAccept(ctx, id, 1001)
	assert.True(t, errors.Is(err, models.ErrInvalidTransition))

	audit, err := st.ListAudit(ctx, id)
	require.NoError(t, err)
	require.Len(t, audit, 3)
	assert.Equal(t, models.ActionSubmit, audit[0].Action)
	assert.Equal(t, models.ActionSchoolAccept, audit[2].Action)
	assert.Equal(t, "score=26", audit[2].Note)

	media, err := st.ListMedia(ctx, id)
	require.NoError(t, err)
	require.Len(t, media, 1)

	board, err := st.Leaderboard(ctx, 10)
	require.NoError(t, err)
	require.Len(t, board, 1)
	assert.Equal(t, models.LeaderboardRow{ClassName: "8В", SchoolName: "Школа №5", Total: 26}, board[0])

	total, accepted, err := st.ReportCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, 1, accepted)

	rows, err := st.ExportRows(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, `{"fractions":["пластик","бумага"],"volume":"12.5"}`, rows[0].Meta)
	assert.Equal(t, now.UnixMilli(), rows[0].CreatedAt.UnixMilli())

	n, err := st.CountUserReportsInPeriod(ctx, u.ID, "2026-Q4")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestApplyTransition_Conflict(t *testing.T) {
	st := startStore(t)
	ctx := context.Background()
	seedBasic(t, st)
	schools, _ := st.ListSchools(ctx)
	classes, _ := st.ListClassesBySchool(ctx, schools[0].ID)
	u, _ := st.EnsureUser(ctx, 500)
	cur, _ := st.GetUserByChatID(ctx, 2001)

	id, err := st.CreateReport(ctx, &models.Report{
		UserID: u.ID, ClassID: classes[0].ID, SchoolID: schools[0].ID, Period: "2026-Q4",
		Status: models.StatusPendingClass, CreatedAt: time.Now(),
	}, nil)
	require.NoError(t, err)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		ok, confl int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := st.ApplyTransition(ctx, models.Transition{
				ReportID: id, ActorID: cur.ID, Action: models.ActionClassConfirm,
				From: models.StatusPendingClass, To: models.StatusPendingSchool, At: time.Now(),
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, models.ErrConflict):
				confl++
			default:
				t.Errorf("unexpected: %v", err)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, ok)
	assert.Equal(t, 7, confl)

	audit, _ := st.ListAudit(ctx, id)
	assert.Len(t, audit, 2)
}

func TestSchoolDeletion_KeepsReports(t *testing.T) {
	st := startStore(t)
	ctx := context.Background()
	seedBasic(t, st)
	schools, _ := st.ListSchools(ctx)
	classes, _ := st.ListClassesBySchool(ctx, schools[0].ID)
	u, _ := st.EnsureUser(ctx, 500)
	id, err := st.CreateReport(ctx, &models.Report{
		UserID: u.ID, ClassID: classes[0].ID, SchoolID: schools[0].ID, Period: "2026-Q4",
		Status: models.StatusPendingClass, CreatedAt: time.Now(),
	}, nil)
	require.NoError(t, err)

	_, err = st.DB().ExecContext(ctx, `DELETE FROM schools WHERE id = $1`, schools[0].ID)
	require.NoError(t, err)

	rep, err := st.GetReport(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, rep)
	assert.Zero(t, rep.SchoolID)
	assert.Zero(t, rep.ClassID)

	top, err := st.TopSchools(ctx, 5)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Nil(t, top[0].Name)
}
