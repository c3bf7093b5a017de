package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"proctor_backend/internal/model"
	"proctor_backend/internal/realtime"
	"proctor_backend/internal/util"

	"github.com/google/uuid"
)

// memStore 内存版存储，语义与 gorm 实现保持一致（条件更新、唯一约束）
type memStore struct {
	mu            sync.Mutex
	rounds        map[uint]*model.Round
	attempts      map[string]*model.TestAttempt
	answers       map[string]map[uint]*model.Answer
	questions     map[uint][]model.Question
	credentials   []*model.EventCredential
	events        map[uint]*model.Event
	eventAdmins   map[uint][]uint
	users         map[uint]string
	registrations map[uint]*model.Registration

	credentialErrs map[uint]error
	completeCalls  int
}

func newMemStore() *memStore {
	return &memStore{
		rounds:         make(map[uint]*model.Round),
		attempts:       make(map[string]*model.TestAttempt),
		answers:        make(map[string]map[uint]*model.Answer),
		questions:      make(map[uint][]model.Question),
		events:         make(map[uint]*model.Event),
		eventAdmins:    make(map[uint][]uint),
		users:          make(map[uint]string),
		registrations:  make(map[uint]*model.Registration),
		credentialErrs: make(map[uint]error),
	}
}

func (m *memStore) addRound(id, eventID uint, minutes int, status model.RoundStatus) *model.Round {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := &model.Round{EventID: eventID, RoundNumber: int(id), Duration: minutes, Status: status}
	r.ID = id
	m.rounds[id] = r
	return r
}

func (m *memStore) addQuestion(roundID, id uint, qt model.QuestionType, correct string, points int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q := model.Question{RoundID: roundID, QuestionType: qt, CorrectAnswer: correct, Points: points, Content: fmt.Sprintf("q%d", id)}
	q.ID = id
	m.questions[roundID] = append(m.questions[roundID], q)
}

func (m *memStore) addCredential(id, eventID, userID uint, enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := &model.EventCredential{EventID: eventID, UserID: userID, TestEnabled: enabled}
	c.ID = id
	m.credentials = append(m.credentials, c)
}

func (m *memStore) addRegistration(id, eventID, userID uint, status model.RegistrationStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := &model.Registration{EventID: eventID, UserID: userID, Status: status}
	r.ID = id
	m.registrations[id] = r
}

func (m *memStore) addEvent(id uint, end time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := &model.Event{Name: fmt.Sprintf("event %d", id), EndDate: end}
	e.ID = id
	m.events[id] = e
}

func (m *memStore) attemptCount(roundID uint) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, a := range m.attempts {
		if a.RoundID == roundID {
			n++
		}
	}
	return n
}

func (m *memStore) credential(id uint) model.EventCredential {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.credentials {
		if c.ID == id {
			return *c
		}
	}
	return model.EventCredential{}
}

// RoundStore

func (m *memStore) roundByID(id uint) (*model.Round, error) {
	r, ok := m.rounds[id]
	if !ok {
		return nil, fmt.Errorf("round %d: %w", id, util.ErrNotFound)
	}
	cp := *r
	return &cp, nil
}

type roundStore struct{ *memStore }

func (s roundStore) FindByID(ctx context.Context, id uint) (*model.Round, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roundByID(id)
}

func (s roundStore) ListByEvent(ctx context.Context, eventID uint) ([]model.Round, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Round
	for _, r := range s.rounds {
		if r.EventID == eventID {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s roundStore) transition(id uint, from model.RoundStatus, apply func(r *model.Round)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rounds[id]
	if !ok {
		return fmt.Errorf("round %d: %w", id, util.ErrNotFound)
	}
	if r.Status != from {
		return fmt.Errorf("round %d is %s: %w", id, r.Status, util.ErrInvalidState)
	}
	apply(r)
	return nil
}

func (s roundStore) Start(ctx context.Context, id uint, now time.Time) error {
	return s.transition(id, model.RoundNotStarted, func(r *model.Round) {
		r.Status = model.RoundInProgress
		r.StartedAt = &now
		r.EndedAt = nil
	})
}

func (s roundStore) End(ctx context.Context, id uint, now time.Time) error {
	return s.transition(id, model.RoundInProgress, func(r *model.Round) {
		r.Status = model.RoundCompleted
		r.EndedAt = &now
	})
}

func (s roundStore) MarkResultsPublished(ctx context.Context, id uint) error {
	return s.transition(id, model.RoundCompleted, func(r *model.Round) {
		r.ResultsPublished = true
	})
}

func (s roundStore) Reset(ctx context.Context, id uint) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rounds[id]
	if !ok {
		return 0, fmt.Errorf("round %d: %w", id, util.ErrNotFound)
	}
	var deleted int64
	for aid, a := range s.attempts {
		if a.RoundID == id {
			delete(s.attempts, aid)
			delete(s.answers, aid)
			deleted++
		}
	}
	r.Status = model.RoundNotStarted
	r.StartedAt = nil
	r.EndedAt = nil
	r.ResultsPublished = false
	return deleted, nil
}

// AttemptStore

type attemptStore struct{ *memStore }

func (s attemptStore) Create(ctx context.Context, a *model.TestAttempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.attempts {
		if existing.UserID == a.UserID && existing.RoundID == a.RoundID {
			return fmt.Errorf("duplicate attempt: %w", util.ErrConflict)
		}
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	cp := *a
	cp.ViolationLogs = append([]model.ViolationLog(nil), a.ViolationLogs...)
	s.attempts[a.ID] = &cp
	return nil
}

func (s attemptStore) copyOf(a *model.TestAttempt) *model.TestAttempt {
	cp := *a
	cp.ViolationLogs = append([]model.ViolationLog(nil), a.ViolationLogs...)
	return &cp
}

func (s attemptStore) FindByID(ctx context.Context, id string) (*model.TestAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.attempts[id]
	if !ok {
		return nil, fmt.Errorf("attempt %s: %w", id, util.ErrNotFound)
	}
	return s.copyOf(a), nil
}

func (s attemptStore) FindByUserAndRound(ctx context.Context, userID, roundID uint) (*model.TestAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.attempts {
		if a.UserID == userID && a.RoundID == roundID {
			return s.copyOf(a), nil
		}
	}
	return nil, fmt.Errorf("attempt: %w", util.ErrNotFound)
}

func (s attemptStore) list(match func(a *model.TestAttempt) bool) []model.TestAttempt {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.TestAttempt
	for _, a := range s.attempts {
		if match(a) {
			out = append(out, *s.copyOf(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

func (s attemptStore) ListInProgress(ctx context.Context) ([]model.TestAttempt, error) {
	return s.list(func(a *model.TestAttempt) bool { return a.Status == model.AttemptInProgress }), nil
}

func (s attemptStore) ListInProgressByRound(ctx context.Context, roundID uint) ([]model.TestAttempt, error) {
	return s.list(func(a *model.TestAttempt) bool {
		return a.RoundID == roundID && a.Status == model.AttemptInProgress
	}), nil
}

func (s attemptStore) ListCompletedByRounds(ctx context.Context, roundIDs []uint) ([]model.TestAttempt, error) {
	set := make(map[uint]bool, len(roundIDs))
	for _, id := range roundIDs {
		set[id] = true
	}
	return s.list(func(a *model.TestAttempt) bool {
		return set[a.RoundID] && a.Status == model.AttemptCompleted
	}), nil
}

func (s attemptStore) Answers(ctx context.Context, attemptID string) ([]model.Answer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Answer
	for _, a := range s.answers[attemptID] {
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QuestionID < out[j].QuestionID })
	return out, nil
}

func (s attemptStore) inProgress(id string) (*model.TestAttempt, error) {
	a, ok := s.attempts[id]
	if !ok {
		return nil, fmt.Errorf("attempt %s: %w", id, util.ErrNotFound)
	}
	if a.Status != model.AttemptInProgress {
		return nil, fmt.Errorf("attempt %s: %w", id, util.ErrInvalidState)
	}
	return a, nil
}

func (s attemptStore) UpsertAnswer(ctx context.Context, attemptID string, questionID uint, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.inProgress(attemptID); err != nil {
		return err
	}
	if s.answers[attemptID] == nil {
		s.answers[attemptID] = make(map[uint]*model.Answer)
	}
	ans, ok := s.answers[attemptID][questionID]
	if !ok {
		ans = &model.Answer{AttemptID: attemptID, QuestionID: questionID}
		ans.ID = uuid.NewString()
		s.answers[attemptID][questionID] = ans
	}
	ans.Answer = value
	ans.IsCorrect = nil
	ans.PointsAwarded = 0
	return nil
}

func (s attemptStore) AppendViolation(ctx context.Context, attemptID string, entry model.ViolationLog, tabSwitch, refresh bool) (*model.TestAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, err := s.inProgress(attemptID)
	if err != nil {
		return nil, err
	}
	a.ViolationLogs = append(a.ViolationLogs, entry)
	if tabSwitch {
		a.TabSwitchCount++
	}
	if refresh {
		a.RefreshAttemptCount++
	}
	return s.copyOf(a), nil
}

func (s attemptStore) Complete(ctx context.Context, attemptID string, now time.Time, grade func([]model.Answer) ([]model.Answer, int)) (*model.TestAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.attempts[attemptID]
	if !ok {
		return nil, fmt.Errorf("attempt %s: %w", attemptID, util.ErrNotFound)
	}
	if a.Status != model.AttemptInProgress {
		return nil, fmt.Errorf("attempt %s already submitted: %w", attemptID, util.ErrConflict)
	}

	var answers []model.Answer
	for _, ans := range s.answers[attemptID] {
		answers = append(answers, *ans)
	}
	graded, total := grade(answers)
	for _, g := range graded {
		g := g
		s.answers[attemptID][g.QuestionID] = &g
	}

	s.completeCalls++
	a.Status = model.AttemptCompleted
	a.SubmittedAt = &now
	a.TotalScore = total
	return s.copyOf(a), nil
}

// QuestionStore

type questionStore struct{ *memStore }

func (s questionStore) ListByRound(ctx context.Context, roundID uint) ([]model.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Question(nil), s.questions[roundID]...), nil
}

// CredentialStore

type credentialStore struct{ *memStore }

func (s credentialStore) ListByEvent(ctx context.Context, eventID uint) ([]model.EventCredential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.EventCredential
	for _, c := range s.credentials {
		if c.EventID == eventID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (s credentialStore) FindByEventAndUser(ctx context.Context, eventID, userID uint) (*model.EventCredential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.credentials {
		if c.EventID == eventID && c.UserID == userID {
			cp := *c
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("credential: %w", util.ErrNotFound)
}

func (s credentialStore) SetTestEnabled(ctx context.Context, id uint, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.credentialErrs[id]; err != nil {
		return err
	}
	for _, c := range s.credentials {
		if c.ID == id {
			c.TestEnabled = enabled
		}
	}
	return nil
}

// EventStore

type eventStore struct{ *memStore }

func (s eventStore) FindByID(ctx context.Context, id uint) (*model.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[id]
	if !ok {
		return nil, fmt.Errorf("event %d: %w", id, util.ErrNotFound)
	}
	cp := *e
	return &cp, nil
}

func (s eventStore) IsEventAdmin(ctx context.Context, userID, eventID uint) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.eventAdmins[userID] {
		if id == eventID {
			return true, nil
		}
	}
	return false, nil
}

// UserStore

type userStore struct{ *memStore }

func (s userStore) Names(ctx context.Context, ids []uint) (map[uint]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[uint]string, len(ids))
	for _, id := range ids {
		if name, ok := s.users[id]; ok {
			out[id] = name
		}
	}
	return out, nil
}

// RegistrationStore

type registrationStore struct{ *memStore }

func (s registrationStore) FindByID(ctx context.Context, id uint) (*model.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.registrations[id]
	if !ok {
		return nil, fmt.Errorf("registration %d: %w", id, util.ErrNotFound)
	}
	cp := *r
	return &cp, nil
}

func (s registrationStore) FindByEventAndUser(ctx context.Context, eventID, userID uint) (*model.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.registrations {
		if r.EventID == eventID && r.UserID == userID {
			cp := *r
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("registration: %w", util.ErrNotFound)
}

func (s registrationStore) UpdateStatus(ctx context.Context, id uint, status model.RegistrationStatus) (*model.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.registrations[id]
	if !ok {
		return nil, fmt.Errorf("registration %d: %w", id, util.ErrNotFound)
	}
	r.Status = status
	cp := *r
	return &cp, nil
}

func (s registrationStore) Disqualify(ctx context.Context, eventID, userID uint, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.registrations {
		if r.EventID == eventID && r.UserID == userID {
			if !r.Disqualified {
				r.Disqualified = true
				r.DisqualifiedAt = &now
			}
			return nil
		}
	}
	return fmt.Errorf("registration: %w", util.ErrNotFound)
}

// recordingPublisher 记录全部推送事件
type recordingPublisher struct {
	mu     sync.Mutex
	events []realtime.Event
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, ev realtime.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) kinds() []realtime.EventKind {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]realtime.EventKind, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Kind)
	}
	return out
}

func (p *recordingPublisher) byKind(kind realtime.EventKind) []realtime.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []realtime.Event
	for _, ev := range p.events {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}

type countingDisqualifier struct {
	mu    sync.Mutex
	calls []uint
}

func (d *countingDisqualifier) Disqualify(ctx context.Context, eventID, userID uint) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, userID)
	return nil
}

// fakeClock 可手动推进的时钟
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// harness 组装一套使用内存存储的服务
type harness struct {
	store        *memStore
	clock        *fakeClock
	publisher    *recordingPublisher
	disqualifier *countingDisqualifier
	access       *AccessService
	rounds       *RoundService
	attempts     *AttemptService
	leaderboard  *LeaderboardService
	registration *RegistrationService
}

func newHarness() *harness {
	store := newMemStore()
	clock := &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	pub := &recordingPublisher{}
	dq := &countingDisqualifier{}

	access := NewAccessService(eventStore{store}, registrationStore{store}, credentialStore{store})
	attempts := NewAttemptService(attemptStore{store}, roundStore{store}, questionStore{store}, eventStore{store}, access, dq, pub, nil, 4)
	attempts.now = clock.Now
	rounds := NewRoundService(roundStore{store}, attemptStore{store}, credentialStore{store}, pub, nil, attempts, 4)
	rounds.now = clock.Now
	registration := NewRegistrationService(registrationStore{store}, pub)
	registration.now = clock.Now

	return &harness{
		store:        store,
		clock:        clock,
		publisher:    pub,
		disqualifier: dq,
		access:       access,
		rounds:       rounds,
		attempts:     attempts,
		leaderboard:  NewLeaderboardService(roundStore{store}, attemptStore{store}, userStore{store}),
		registration: registration,
	}
}
