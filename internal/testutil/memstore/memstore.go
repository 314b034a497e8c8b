// Package memstore — хранилище в памяти с тем же поведением, что internal/db.
// Используется в юнит-тестах вместо Postgres.
package memstore

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/Spok95/ecoreport-bot/internal/models"
)

type Store struct {
	mu      sync.RWMutex
	seq     int64
	users   map[int64]*models.User // by id
	schools map[int64]*models.School
	classes map[int64]*models.Class
	reports map[int64]*models.Report
	media   []models.Media
	audit   []models.Audit

	// FailWrites — если задано, все записи отчётов возвращают эту ошибку.
	FailWrites error
	// Now — часы для created_at.
	Now func() time.Time
}

func New() *Store {
	return &Store{
		users:   map[int64]*models.User{},
		schools: map[int64]*models.School{},
		classes: map[int64]*models.Class{},
		reports: map[int64]*models.Report{},
		Now:     time.Now,
	}
}

func (s *Store) next() int64 {
	s.seq++
	return s.seq
}

// ===== сидинг для тестов =====

func (s *Store) AddUser(chatID int64, role models.Role) models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := &models.User{ID: s.next(), ChatID: chatID, Role: role, CreatedAt: s.Now()}
	s.users[u.ID] = u
	return *u
}

func (s *Store) AddSchool(name string, curatorChatID *int64) models.School {
	s.mu.Lock()
	defer s.mu.Unlock()
	sc := &models.School{ID: s.next(), Name: name, CuratorChatID: curatorChatID}
	s.schools[sc.ID] = sc
	return *sc
}

func (s *Store) AddClass(schoolID int64, name string, curatorChatID *int64) models.Class {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := &models.Class{ID: s.next(), SchoolID: schoolID, Name: name, CuratorChatID: curatorChatID}
	s.classes[c.ID] = c
	return *c
}

// PutReport кладёт отчёт как есть (без audit), возвращает id.
func (s *Store) PutReport(r models.Report) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	r.ID = s.next()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = s.Now()
	}
	s.reports[r.ID] = &r
	return r.ID
}

func (s *Store) Media(reportID int64) []models.Media {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Media
	for _, m := range s.media {
		if m.ReportID == reportID {
			out = append(out, m)
		}
	}
	return out
}

func (s *Store) ReportCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.reports)
}

// ===== users =====

func (s *Store) EnsureUser(_ context.Context, chatID int64) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.ChatID == chatID {
			cp := *u
			return &cp, nil
		}
	}
	u := &models.User{ID: s.next(), ChatID: chatID, Role: models.Student, CreatedAt: s.Now()}
	s.users[u.ID] = u
	cp := *u
	return &cp, nil
}

func (s *Store) GetUserByChatID(_ context.Context, chatID int64) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.ChatID == chatID {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *Store) GetUserByID(_ context.Context, id int64) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if u, ok := s.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (s *Store) ListUsersByRoles(_ context.Context, roles ...models.Role) ([]models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.User
	for _, u := range s.users {
		for _, r := range roles {
			if u.Role == r {
				out = append(out, *u)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ===== schools / classes =====

func (s *Store) ListSchools(_ context.Context) ([]models.School, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.School, 0, len(s.schools))
	for _, sc := range s.schools {
		out = append(out, *sc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) GetSchool(_ context.Context, id int64) (*models.School, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if sc, ok := s.schools[id]; ok {
		cp := *sc
		return &cp, nil
	}
	return nil, nil
}

func (s *Store) ListClassesBySchool(_ context.Context, schoolID int64) ([]models.Class, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Class
	for _, c := range s.classes {
		if c.SchoolID == schoolID {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) GetClass(_ context.Context, id int64) (*models.Class, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if c, ok := s.classes[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, nil
}

// ===== reports =====

func (s *Store) CreateReport(_ context.Context, r *models.Report, media []models.Media) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWrites != nil {
		return 0, s.FailWrites
	}
	cp := *r
	cp.ID = s.next()
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = s.Now()
	}
	cp.UpdatedAt = cp.CreatedAt
	s.reports[cp.ID] = &cp
	for _, m := range media {
		m.ID = s.next()
		m.ReportID = cp.ID
		s.media = append(s.media, m)
	}
	s.audit = append(s.audit, models.Audit{
		ID: s.next(), ReportID: cp.ID, ActorID: cp.UserID, Action: models.ActionSubmit, At: cp.CreatedAt,
	})
	return cp.ID, nil
}

func (s *Store) GetReport(_ context.Context, id int64) (*models.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if r, ok := s.reports[id]; ok {
		cp := *r
		cp.Meta.Fractions = append([]string(nil), r.Meta.Fractions...)
		return &cp, nil
	}
	return nil, nil
}

func (s *Store) ListReportsByUser(_ context.Context, userID int64, limit int) ([]models.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Report
	for _, r := range s.reports {
		if r.UserID == userID {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) CountUserReportsInPeriod(_ context.Context, userID int64, period string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, r := range s.reports {
		if r.UserID == userID && r.Period == period {
			n++
		}
	}
	return n, nil
}

func (s *Store) ApplyTransition(_ context.Context, t models.Transition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWrites != nil {
		return s.FailWrites
	}
	r, ok := s.reports[t.ReportID]
	if !ok || r.Status != t.From {
		return models.ErrConflict
	}
	r.Status = t.To
	if t.Score != nil {
		r.Score = *t.Score
	}
	if t.Meta != nil {
		r.Meta = *t.Meta
	}
	r.UpdatedAt = t.At
	for _, m := range t.Media {
		m.ID = s.next()
		m.ReportID = r.ID
		s.media = append(s.media, m)
	}
	s.audit = append(s.audit, models.Audit{
		ID: s.next(), ReportID: r.ID, ActorID: t.ActorID, Action: t.Action, Note: t.Note, At: t.At,
	})
	return nil
}

func (s *Store) ListAudit(_ context.Context, reportID int64) ([]models.Audit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Audit
	for _, a := range s.audit {
		if a.ReportID == reportID {
			out = append(out, a)
		}
	}
	return out, nil
}

// ===== агрегаты =====

func (s *Store) Leaderboard(_ context.Context, limit int) ([]models.LeaderboardRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	totals := map[int64]int{}
	for _, r := range s.reports {
		if r.Status == models.StatusAccepted {
			totals[r.ClassID] += r.Score
		}
	}
	out := make([]models.LeaderboardRow, 0, len(totals))
	for classID, total := range totals {
		c, ok := s.classes[classID]
		if !ok {
			continue
		}
		row := models.LeaderboardRow{ClassName: c.Name, Total: total}
		if sc, ok := s.schools[c.SchoolID]; ok {
			row.SchoolName = sc.Name
		}
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		return out[i].ClassName < out[j].ClassName
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) ReportCounts(_ context.Context) (int, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	accepted := 0
	for _, r := range s.reports {
		if r.Status == models.StatusAccepted {
			accepted++
		}
	}
	return len(s.reports), accepted, nil
}

func (s *Store) TopSchools(_ context.Context, limit int) ([]models.SchoolSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	type agg struct{ reports, points int }
	by := map[int64]*agg{}
	for _, r := range s.reports {
		key := r.SchoolID
		if _, ok := s.schools[key]; !ok {
			key = 0
		}
		a, ok := by[key]
		if !ok {
			a = &agg{}
			by[key] = a
		}
		a.reports++
		a.points += r.Score
	}
	out := make([]models.SchoolSummary, 0, len(by))
	for id, a := range by {
		row := models.SchoolSummary{Reports: a.reports, Points: a.points}
		if sc, ok := s.schools[id]; ok {
			name := sc.Name
			row.Name = &name
		}
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Points != out[j].Points {
			return out[i].Points > out[j].Points
		}
		return nameOf(out[i].Name) < nameOf(out[j].Name)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func nameOf(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func (s *Store) ExportRows(_ context.Context) ([]models.ExportRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.ExportRow, 0, len(s.reports))
	for _, r := range s.reports {
		meta, err := json.Marshal(r.Meta)
		if err != nil {
			return nil, err
		}
		row := models.ExportRow{
			ID: r.ID, UserID: r.UserID, Period: r.Period, Status: r.Status,
			Score: r.Score, Meta: string(meta), CreatedAt: r.CreatedAt,
		}
		if c, ok := s.classes[r.ClassID]; ok {
			row.ClassName = c.Name
		}
		if sc, ok := s.schools[r.SchoolID]; ok {
			row.SchoolName = sc.Name
		}
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) ListMedia(_ context.Context, reportID int64) ([]models.Media, error) {
	return s.Media(reportID), nil
}
