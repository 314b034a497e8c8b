package submission

import (
	"sync"
	"time"
)

type Step string

const (
	StepChooseSchool    Step = "choose_school"
	StepChooseClass     Step = "choose_class"
	StepChooseFractions Step = "choose_fractions"
	StepAwaitMedia      Step = "await_media"
)

// Draft — собираемый отчёт. ResubmitID != 0 — исправление отчёта needs_fix.
type Draft struct {
	SchoolID   int64
	ClassID    int64
	Fractions  []string
	Volume     string
	ResubmitID int64
}

type Session struct {
	Step      Step
	Draft     Draft
	MessageID int // сообщение с inline-кнопками, которое редактируем
	UpdatedAt time.Time
}

// Sessions — FSM сценария подачи отчёта, по одному на чат. Живут в памяти
// и протухают через ttl бездействия.
type Sessions struct {
	mu  sync.Mutex
	m   map[int64]*Session
	ttl time.Duration
	now func() time.Time
}

func NewSessions(ttl time.Duration) *Sessions {
	return &Sessions{m: make(map[int64]*Session), ttl: ttl, now: time.Now}
}

// Get возвращает копию сессии; протухшая сессия считается отсутствующей.
func (s *Sessions) Get(chatID int64) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.m[chatID]
	if !ok {
		return Session{}, false
	}
	if s.expired(st) {
		delete(s.m, chatID)
		return Session{}, false
	}
	cp := *st
	cp.Draft.Fractions = append([]string(nil), st.Draft.Fractions...)
	return cp, true
}

func (s *Sessions) Put(chatID int64, st Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st.UpdatedAt = s.now()
	s.m[chatID] = &st
}

func (s *Sessions) Clear(chatID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, chatID)
}

// Sweep удаляет протухшие сессии, возвращает сколько удалено.
func (s *Sessions) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, st := range s.m {
		if s.expired(st) {
			delete(s.m, id)
			n++
		}
	}
	return n
}

func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.m)
}

func (s *Sessions) expired(st *Session) bool {
	return s.ttl > 0 && s.now().Sub(st.UpdatedAt) > s.ttl
}

// WithClock подменяет часы (для тестов).
func (s *Sessions) WithClock(now func() time.Time) *Sessions {
	s.now = now
	return s
}
