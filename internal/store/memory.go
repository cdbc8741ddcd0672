package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemStore is a mutex-guarded in-memory Store. It backs tests and DSN-less
// local runs; the uniqueness guarantees match the SQL schema.
type MemStore struct {
	mu           sync.Mutex
	nextExamID   int64
	nextQID      int64
	exams        map[int64]*Exam
	questions    map[int64]*Question
	participants map[int64][]Participant // keyed by exam id
	answers      map[answerKey]*Answer
	admins       map[int64]*Admin
	groups       map[int64]*Group
}

var _ Store = (*MemStore)(nil)

type answerKey struct {
	userID     int64
	examID     int64
	questionID int64
}

func NewMemStore() *MemStore {
	return &MemStore{
		exams:        make(map[int64]*Exam),
		questions:    make(map[int64]*Question),
		participants: make(map[int64][]Participant),
		answers:      make(map[answerKey]*Answer),
		admins:       make(map[int64]*Admin),
		groups:       make(map[int64]*Group),
	}
}

func (m *MemStore) CreateExam(_ context.Context, e *Exam) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextExamID++
	cp := *e
	cp.ID = m.nextExamID
	if cp.Status == "" {
		cp.Status = StatusPending
	}
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	m.exams[cp.ID] = &cp
	e.ID = cp.ID
	return cp.ID, nil
}

func (m *MemStore) GetExam(_ context.Context, id int64) (*Exam, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.exams[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (m *MemStore) examsWhere(match func(*Exam) bool) []Exam {
	out := make([]Exam, 0)
	for _, e := range m.exams {
		if match(e) {
			out = append(out, *e)
		}
	}
	// Newest first, matching the SQL ordering.
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func (m *MemStore) ListExamsByCreator(_ context.Context, creatorID int64, status ExamStatus) ([]Exam, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.examsWhere(func(e *Exam) bool {
		return e.CreatedBy == creatorID && (status == "" || e.Status == status)
	}), nil
}

func (m *MemStore) ListExamsByStatus(_ context.Context, status ExamStatus) ([]Exam, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.examsWhere(func(e *Exam) bool { return e.Status == status }), nil
}

func (m *MemStore) ListExamsForParticipant(_ context.Context, userID int64, status ExamStatus) ([]Exam, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	joined := make(map[int64]bool)
	for examID, ps := range m.participants {
		for _, p := range ps {
			if p.UserID == userID {
				joined[examID] = true
			}
		}
	}
	return m.examsWhere(func(e *Exam) bool {
		return joined[e.ID] && (status == "" || e.Status == status)
	}), nil
}

func (m *MemStore) SetExamStarted(_ context.Context, id int64, startedAt time.Time, scope TargetScope, groupID *int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.exams[id]
	if !ok {
		return ErrNotFound
	}
	e.Status = StatusActive
	e.StartTime = startedAt
	e.TargetScope = scope
	if groupID != nil {
		gid := *groupID
		e.TargetGroupID = &gid
	} else {
		e.TargetGroupID = nil
	}
	return nil
}

func (m *MemStore) SetExamEnded(_ context.Context, id int64, endedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.exams[id]
	if !ok {
		return ErrNotFound
	}
	e.Status = StatusEnded
	t := endedAt
	e.EndTime = &t
	return nil
}

func (m *MemStore) DeleteExam(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.exams, id)
	delete(m.participants, id)
	for qid, q := range m.questions {
		if q.ExamID == id {
			delete(m.questions, qid)
		}
	}
	for k := range m.answers {
		if k.examID == id {
			delete(m.answers, k)
		}
	}
	return nil
}

func (m *MemStore) CreateQuestion(_ context.Context, q *Question) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextQID++
	cp := *q
	cp.ID = m.nextQID
	cp.Options = append([]string(nil), q.Options...)
	m.questions[cp.ID] = &cp
	q.ID = cp.ID
	return cp.ID, nil
}

func copyQuestion(q *Question) *Question {
	cp := *q
	cp.Options = append([]string(nil), q.Options...)
	return &cp
}

func (m *MemStore) GetQuestion(_ context.Context, id int64) (*Question, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.questions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyQuestion(q), nil
}

func (m *MemStore) GetQuestionByPollID(_ context.Context, pollID string) (*Question, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if pollID == "" {
		return nil, ErrNotFound
	}
	for _, q := range m.questions {
		if q.PollID == pollID {
			return copyQuestion(q), nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemStore) ListQuestions(_ context.Context, examID int64) ([]Question, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Question, 0)
	for _, q := range m.questions {
		if q.ExamID == examID {
			out = append(out, *copyQuestion(q))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemStore) CountQuestions(_ context.Context, examID int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, q := range m.questions {
		if q.ExamID == examID {
			n++
		}
	}
	return n, nil
}

func (m *MemStore) UpdateQuestion(_ context.Context, q *Question) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.questions[q.ID]
	if !ok {
		return ErrNotFound
	}
	cur.Text = q.Text
	cur.Options = append([]string(nil), q.Options...)
	cur.CorrectOption = q.CorrectOption
	cur.Explanation = q.Explanation
	return nil
}

func (m *MemStore) SetQuestionPollID(_ context.Context, id int64, pollID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.questions[id]
	if !ok {
		return ErrNotFound
	}
	q.PollID = pollID
	return nil
}

func (m *MemStore) DeleteQuestion(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.questions, id)
	for k := range m.answers {
		if k.questionID == id {
			delete(m.answers, k)
		}
	}
	return nil
}

func (m *MemStore) AddParticipant(_ context.Context, p *Participant) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.participants[p.ExamID] {
		if existing.UserID == p.UserID {
			return false, nil
		}
	}
	cp := *p
	if cp.JoinedAt.IsZero() {
		cp.JoinedAt = time.Now()
	}
	m.participants[p.ExamID] = append(m.participants[p.ExamID], cp)
	return true, nil
}

func (m *MemStore) ListParticipants(_ context.Context, examID int64) ([]Participant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]Participant(nil), m.participants[examID]...)
	sort.Slice(out, func(i, j int) bool {
		if !out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].JoinedAt.Before(out[j].JoinedAt)
		}
		return out[i].UserID < out[j].UserID
	})
	return out, nil
}

func (m *MemStore) InsertAnswer(_ context.Context, a *Answer) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := answerKey{userID: a.UserID, examID: a.ExamID, questionID: a.QuestionID}
	if _, exists := m.answers[k]; exists {
		return false, nil
	}
	cp := *a
	if cp.AnsweredAt.IsZero() {
		cp.AnsweredAt = time.Now()
	}
	m.answers[k] = &cp
	return true, nil
}

func (m *MemStore) answersWhere(match func(*Answer) bool) []Answer {
	out := make([]Answer, 0)
	for _, a := range m.answers {
		if match(a) {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].QuestionID != out[j].QuestionID {
			return out[i].QuestionID < out[j].QuestionID
		}
		return out[i].AnsweredAt.Before(out[j].AnsweredAt)
	})
	return out
}

func (m *MemStore) ListAnswers(_ context.Context, examID int64) ([]Answer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.answersWhere(func(a *Answer) bool { return a.ExamID == examID }), nil
}

func (m *MemStore) ListUserAnswers(_ context.Context, userID, examID int64) ([]Answer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.answersWhere(func(a *Answer) bool { return a.UserID == userID && a.ExamID == examID }), nil
}

func (m *MemStore) ListQuestionAnswers(_ context.Context, questionID int64) ([]Answer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.answersWhere(func(a *Answer) bool { return a.QuestionID == questionID })
	sort.Slice(out, func(i, j int) bool { return out[i].AnsweredAt.Before(out[j].AnsweredAt) })
	return out, nil
}

func (m *MemStore) AddAdmin(_ context.Context, a *Admin) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.admins[a.UserID]; exists {
		return false, nil
	}
	cp := *a
	if cp.AddedAt.IsZero() {
		cp.AddedAt = time.Now()
	}
	m.admins[a.UserID] = &cp
	return true, nil
}

func (m *MemStore) RemoveAdmin(_ context.Context, userID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.admins[userID]; !exists {
		return false, nil
	}
	delete(m.admins, userID)
	return true, nil
}

func (m *MemStore) IsAdmin(_ context.Context, userID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.admins[userID]
	return ok, nil
}

func (m *MemStore) ListAdmins(_ context.Context) ([]Admin, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Admin, 0, len(m.admins))
	for _, a := range m.admins {
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].AddedAt.Equal(out[j].AddedAt) {
			return out[i].AddedAt.Before(out[j].AddedAt)
		}
		return out[i].UserID < out[j].UserID
	})
	return out, nil
}

func (m *MemStore) AddGroup(_ context.Context, g *Group) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.groups[g.ChatID]; exists {
		return false, nil
	}
	cp := *g
	if cp.AddedAt.IsZero() {
		cp.AddedAt = time.Now()
	}
	m.groups[g.ChatID] = &cp
	return true, nil
}

func (m *MemStore) RemoveGroup(_ context.Context, chatID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.groups[chatID]; !exists {
		return false, nil
	}
	delete(m.groups, chatID)
	return true, nil
}

func (m *MemStore) IsGroupAuthorized(_ context.Context, chatID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.groups[chatID]
	return ok, nil
}

func (m *MemStore) ListGroups(_ context.Context) ([]Group, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Group, 0, len(m.groups))
	for _, g := range m.groups {
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].AddedAt.Equal(out[j].AddedAt) {
			return out[i].AddedAt.Before(out[j].AddedAt)
		}
		return out[i].ChatID < out[j].ChatID
	})
	return out, nil
}
