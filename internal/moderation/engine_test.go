package moderation

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Spok95/ecoreport-bot/internal/models"
	"github.com/Spok95/ecoreport-bot/internal/testutil/memstore"
)

type sent struct {
	to   int64
	text string
}

type fakeNotifier struct {
	mu   sync.Mutex
	msgs []sent
	err  error
}

func (n *fakeNotifier) Notify(_ context.Context, chatID int64, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, sent{chatID, text})
	return n.err
}

func (n *fakeNotifier) to(chatID int64) []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []string
	for _, m := range n.msgs {
		if m.to == chatID {
			out = append(out, m.text)
		}
	}
	return out
}

func ptr(v int64) *int64 { return &v }

const (
	studentChat       = 1001
	curatorChat       = 2001
	otherCuratorChat  = 2002
	schoolCuratorChat = 3001
)

type fixture struct {
	store    *memstore.Store
	notifier *fakeNotifier
	engine   *Engine
	author   models.User
	class    models.Class
	school   models.School
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := memstore.New()
	n := &fakeNotifier{}
	author := st.AddUser(studentChat, models.Student)
	st.AddUser(curatorChat, models.Curator)
	st.AddUser(otherCuratorChat, models.Curator)
	st.AddUser(schoolCuratorChat, models.SchoolCurator)
	school := st.AddSchool("Школа №1", nil)
	class := st.AddClass(school.ID, "7А", ptr(curatorChat))
	e := NewEngine(st, n, nil).WithClock(func() time.Time {
		return time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	})
	return &fixture{store: st, notifier: n, engine: e, author: author, class: class, school: school}
}

func (f *fixture) report(status models.ReportStatus, meta models.ReportMeta) int64 {
	return f.store.PutReport(models.Report{
		UserID: f.author.ID, ClassID: f.class.ID, SchoolID: f.school.ID,
		Period: "2026-Q4", Status: status, Meta: meta,
	})
}

func TestScore(t *testing.T) {
	cases := []struct {
		name string
		meta models.ReportMeta
		want int
	}{
		{"two_fractions_fractional_volume", models.ReportMeta{Fractions: []string{"plastic", "paper"}, Volume: "12.5"}, 26},
		{"volume_capped", models.ReportMeta{Volume: "999"}, 30},
		{"non_numeric_volume", models.ReportMeta{Fractions: []string{"glass"}, Volume: "много"}, 12},
		{"empty_volume", models.ReportMeta{}, 10},
		{"comma_separator", models.ReportMeta{Volume: "3,7"}, 13},
		{"negative_volume", models.ReportMeta{Volume: "-5"}, 10},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, Score(c.meta))
		})
	}
}

func TestFullChain_Accept(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.report(models.StatusPendingClass, models.ReportMeta{Fractions: []string{"plastic", "paper"}, Volume: "12.5"})

	rep, err := f.engine.ClassConfirm(ctx, id, curatorChat)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPendingSchool, rep.Status)
	// без назначенного куратора школы уведомляются все school_curator
	require.Len(t, f.notifier.to(schoolCuratorChat), 1)
	assert.Contains(t, f.notifier.to(schoolCuratorChat)[0], "/schoolmod_")

	rep, err = f.engine.SchoolAccept(ctx, id, schoolCuratorChat)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAccepted, rep.Status)
	assert.Equal(t, 26, rep.Score)

	stored, _ := f.store.GetReport(ctx, id)
	assert.Equal(t, models.StatusAccepted, stored.Status)
	assert.Equal(t, 26, stored.Score)
	assert.Equal(t, []string{"Ваш отчёт #" + itoa(id) + " принят. Баллы: 26"}, f.notifier.to(studentChat))

	audit, _ := f.store.ListAudit(ctx, id)
	require.Len(t, audit, 2)
	assert.Equal(t, models.ActionClassConfirm, audit[0].Action)
	assert.Equal(t, models.ActionSchoolAccept, audit[1].Action)
	assert.Equal(t, "score=26", audit[1].Note)
}

func TestClassReject_NotifiesAuthor(t *testing.T) {
	f := newFixture(t)
	id := f.report(models.StatusPendingClass, models.ReportMeta{})

	rep, err := f.engine.ClassReject(context.Background(), id, curatorChat)
	require.NoError(t, err)
	assert.Equal(t, models.StatusNeedsFix, rep.Status)
	require.Len(t, f.notifier.to(studentChat), 1)
	assert.Contains(t, f.notifier.to(studentChat)[0], "возвращён на доработку")
}

func TestSchoolReject_ScoreStaysZero(t *testing.T) {
	f := newFixture(t)
	id := f.report(models.StatusPendingSchool, models.ReportMeta{Volume: "15"})

	rep, err := f.engine.SchoolReject(context.Background(), id, schoolCuratorChat)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, rep.Status)
	assert.Equal(t, 0, rep.Score)
}

func TestSchoolAccept_PermissionDenied(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.report(models.StatusPendingSchool, models.ReportMeta{Volume: "5"})

	for _, chatID := range []int64{studentChat, curatorChat, 999999} {
		_, err := f.engine.SchoolAccept(ctx, id, chatID)
		assert.ErrorIs(t, err, models.ErrPermissionDenied)
	}
	stored, _ := f.store.GetReport(ctx, id)
	assert.Equal(t, models.StatusPendingSchool, stored.Status)
	assert.Equal(t, 0, stored.Score)
	assert.Empty(t, f.notifier.msgs)
}

func TestClassConfirm_CuratorOfRecordOnly(t *testing.T) {
	f := newFixture(t)
	id := f.report(models.StatusPendingClass, models.ReportMeta{})

	_, err := f.engine.ClassConfirm(context.Background(), id, otherCuratorChat)
	assert.ErrorIs(t, err, models.ErrPermissionDenied)
}

func TestSchoolCuratorOfRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	const assigned = 3002
	f.store.AddUser(assigned, models.SchoolCurator)
	school := f.store.AddSchool("Гимназия", ptr(assigned))
	class := f.store.AddClass(school.ID, "5Б", ptr(curatorChat))
	id := f.store.PutReport(models.Report{
		UserID: f.author.ID, ClassID: class.ID, SchoolID: school.ID, Status: models.StatusPendingClass,
	})

	_, err := f.engine.ClassConfirm(ctx, id, curatorChat)
	require.NoError(t, err)
	assert.Len(t, f.notifier.to(assigned), 1)
	assert.Empty(t, f.notifier.to(schoolCuratorChat))

	_, err = f.engine.SchoolAccept(ctx, id, schoolCuratorChat)
	assert.ErrorIs(t, err, models.ErrPermissionDenied)
	_, err = f.engine.SchoolAccept(ctx, id, assigned)
	assert.NoError(t, err)
}

func TestNotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.ClassConfirm(context.Background(), 424242, curatorChat)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestStateMachineClosure(t *testing.T) {
	all := []models.ReportStatus{
		models.StatusPendingClass, models.StatusNeedsFix, models.StatusPendingSchool,
		models.StatusAccepted, models.StatusRejected,
	}
	actions := []models.AuditAction{
		models.ActionClassConfirm, models.ActionClassReject,
		models.ActionSchoolAccept, models.ActionSchoolReject,
	}
	reachable := map[models.ReportStatus][]models.ReportStatus{}
	for _, from := range all {
		for _, a := range actions {
			if to, ok := Next(from, a); ok {
				reachable[from] = append(reachable[from], to)
			}
		}
	}
	assert.ElementsMatch(t, []models.ReportStatus{models.StatusPendingSchool, models.StatusNeedsFix}, reachable[models.StatusPendingClass])
	assert.ElementsMatch(t, []models.ReportStatus{models.StatusAccepted, models.StatusRejected}, reachable[models.StatusPendingSchool])
	assert.Empty(t, reachable[models.StatusAccepted])
	assert.Empty(t, reachable[models.StatusRejected])

	_, ok := Next(models.StatusAccepted, models.ActionResubmit)
	assert.False(t, ok)
}

func TestFinalReportsAreImmutable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	accepted := f.report(models.StatusAccepted, models.ReportMeta{})
	rejected := f.report(models.StatusRejected, models.ReportMeta{})

	for _, id := range []int64{accepted, rejected} {
		_, err := f.engine.ClassConfirm(ctx, id, curatorChat)
		assert.ErrorIs(t, err, models.ErrInvalidTransition)
		_, err = f.engine.ClassReject(ctx, id, curatorChat)
		assert.ErrorIs(t, err, models.ErrInvalidTransition)
		_, err = f.engine.SchoolAccept(ctx, id, schoolCuratorChat)
		assert.ErrorIs(t, err, models.ErrInvalidTransition)
		_, err = f.engine.SchoolReject(ctx, id, schoolCuratorChat)
		assert.ErrorIs(t, err, models.ErrInvalidTransition)
		_, err = f.engine.Resubmit(ctx, id, studentChat, models.ReportMeta{}, nil)
		assert.ErrorIs(t, err, models.ErrInvalidTransition)
	}
}

func TestRepeatedConfirm_NoSecondNotification(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.report(models.StatusPendingClass, models.ReportMeta{})

	_, err := f.engine.ClassConfirm(ctx, id, curatorChat)
	require.NoError(t, err)
	_, err = f.engine.ClassConfirm(ctx, id, curatorChat)
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
	assert.Len(t, f.notifier.to(schoolCuratorChat), 1)
}

func TestNotificationFailure_DoesNotRollBack(t *testing.T) {
	f := newFixture(t)
	f.notifier.err = errors.New("telegram: 502 Bad Gateway")
	ctx := context.Background()
	id := f.report(models.StatusPendingSchool, models.ReportMeta{Volume: "1"})

	rep, err := f.engine.SchoolAccept(ctx, id, schoolCuratorChat)
	require.NoError(t, err)
	assert.Equal(t, 11, rep.Score)
	stored, _ := f.store.GetReport(ctx, id)
	assert.Equal(t, models.StatusAccepted, stored.Status)
}

func TestStoreFailure_Propagates(t *testing.T) {
	f := newFixture(t)
	id := f.report(models.StatusPendingClass, models.ReportMeta{})
	boom := errors.New("connection reset")
	f.store.FailWrites = boom

	_, err := f.engine.ClassConfirm(context.Background(), id, curatorChat)
	assert.ErrorIs(t, err, boom)
	assert.False(t, IsUserError(err))
	assert.Empty(t, f.notifier.msgs)
}

func TestConcurrentDecisions_OneWins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.report(models.StatusPendingSchool, models.ReportMeta{Volume: "4"})

	var wg sync.WaitGroup
	errs := make([]error, 20)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				_, errs[i] = f.engine.SchoolAccept(ctx, id, schoolCuratorChat)
			} else {
				_, errs[i] = f.engine.SchoolReject(ctx, id, schoolCuratorChat)
			}
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.True(t, errors.Is(err, models.ErrInvalidTransition) || errors.Is(err, models.ErrConflict), err)
	}
	assert.Equal(t, 1, ok)
	audit, _ := f.store.ListAudit(ctx, id)
	assert.Len(t, audit, 1)
}

func TestResubmit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.report(models.StatusNeedsFix, models.ReportMeta{Fractions: []string{"old"}})

	_, err := f.engine.Resubmit(ctx, id, curatorChat, models.ReportMeta{}, nil)
	assert.ErrorIs(t, err, models.ErrPermissionDenied)

	meta := models.ReportMeta{Fractions: []string{"пластик"}, Volume: "3"}
	rep, err := f.engine.Resubmit(ctx, id, studentChat, meta, []models.Media{{FileRef: "f1", Type: models.MediaPhoto}})
	require.NoError(t, err)
	assert.Equal(t, models.StatusPendingClass, rep.Status)
	assert.Equal(t, meta, rep.Meta)
	assert.Len(t, f.store.Media(id), 1)
	assert.Len(t, f.notifier.to(curatorChat), 1)
}

func TestAuthorize_IgnoresStatus(t *testing.T) {
	f := newFixture(t)
	id := f.report(models.StatusAccepted, models.ReportMeta{})

	rep, err := f.engine.Authorize(context.Background(), models.ActionClassConfirm, id, curatorChat)
	require.NoError(t, err)
	assert.Equal(t, id, rep.ID)

	_, err = f.engine.Authorize(context.Background(), models.ActionSchoolAccept, id, curatorChat)
	assert.ErrorIs(t, err, models.ErrPermissionDenied)
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}
