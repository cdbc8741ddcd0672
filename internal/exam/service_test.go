package exam

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"quizbot/internal/store"
)

// fakeDelivery records notifications and prompts and hands out sequential
// poll tokens. Failures are injected per destination.
type fakeDelivery struct {
	mu            sync.Mutex
	groupNotified []int64
	userNotified  []int64
	prompted      map[int64][]int64 // userID -> question IDs in delivery order
	failGroups    map[int64]bool
	nextToken     int
}

func newFakeDelivery() *fakeDelivery {
	return &fakeDelivery{prompted: map[int64][]int64{}, failGroups: map[int64]bool{}}
}

func (f *fakeDelivery) NotifyGroupExamStarted(_ context.Context, chatID int64, _ *store.Exam) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failGroups[chatID] {
		return errors.New("chat unreachable")
	}
	f.groupNotified = append(f.groupNotified, chatID)
	return nil
}

func (f *fakeDelivery) NotifyParticipantExamEnded(_ context.Context, userID int64, _ *store.Exam) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.userNotified = append(f.userNotified, userID)
	return nil
}

func (f *fakeDelivery) PromptQuestion(_ context.Context, userID int64, q *store.Question) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompted[userID] = append(f.prompted[userID], q.ID)
	f.nextToken++
	return fmt.Sprintf("poll-%d", f.nextToken), nil
}

func newTestService(t *testing.T) (*Service, store.Store, *fakeDelivery) {
	t.Helper()
	st := store.NewMemStore()
	d := newFakeDelivery()
	svc := NewService(st, d, d).WithClock(func() time.Time {
		return time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	})
	return svc, st, d
}

func addQuestion(t *testing.T, st store.Store, examID int64, text string, opts []string, correct int) int64 {
	t.Helper()
	id, err := st.CreateQuestion(context.Background(), &store.Question{
		ExamID: examID, Text: text, Options: opts, CorrectOption: correct,
	})
	if err != nil {
		t.Fatalf("create question: %v", err)
	}
	return id
}

func TestCreateValidation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Create(ctx, "   ", 0, 1); !errors.Is(err, ErrEmptyName) {
		t.Fatalf("blank name: err = %v, want ErrEmptyName", err)
	}
	if _, err := svc.Create(ctx, "Math", -5, 1); !errors.Is(err, ErrInvalidOffset) {
		t.Fatalf("negative offset: err = %v, want ErrInvalidOffset", err)
	}

	e, err := svc.Create(ctx, "Math", 30, 1)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if e.Status != store.StatusPending {
		t.Fatalf("status = %q, want pending", e.Status)
	}
	if want := time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC); !e.StartTime.Equal(want) {
		t.Fatalf("start time = %v, want %v", e.StartTime, want)
	}
}

func TestStartRejectsQuestionlessExam(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	e, _ := svc.Create(ctx, "Empty", 0, 1)
	if err := svc.Start(ctx, e.ID, Target{Scope: store.TargetUnrestricted}); !errors.Is(err, ErrNoQuestions) {
		t.Fatalf("err = %v, want ErrNoQuestions", err)
	}

	got, _ := svc.Get(ctx, e.ID)
	if got.Status != store.StatusPending {
		t.Fatalf("status moved to %q on refused start", got.Status)
	}
}

func TestStartOnlyFromPending(t *testing.T) {
	svc, st, _ := newTestService(t)
	ctx := context.Background()

	e, _ := svc.Create(ctx, "Math", 0, 1)
	addQuestion(t, st, e.ID, "Q", []string{"a", "b"}, 0)

	if err := svc.Start(ctx, e.ID, Target{Scope: store.TargetUnrestricted}); err != nil {
		t.Fatalf("first start: %v", err)
	}
	if err := svc.Start(ctx, e.ID, Target{Scope: store.TargetUnrestricted}); !errors.Is(err, ErrNotPending) {
		t.Fatalf("second start: err = %v, want ErrNotPending", err)
	}
}

func TestStartAllScopeNotifiesEveryGroupDespiteFailures(t *testing.T) {
	svc, st, d := newTestService(t)
	ctx := context.Background()

	for _, chatID := range []int64{-1, -2, -3} {
		if _, err := st.AddGroup(ctx, &store.Group{ChatID: chatID, Title: "g"}); err != nil {
			t.Fatalf("add group: %v", err)
		}
	}
	d.failGroups[-2] = true

	e, _ := svc.Create(ctx, "Math", 0, 1)
	addQuestion(t, st, e.ID, "Q", []string{"a", "b"}, 0)
	if err := svc.Start(ctx, e.ID, Target{Scope: store.TargetAll}); err != nil {
		t.Fatalf("start: %v", err)
	}

	sort.Slice(d.groupNotified, func(i, j int) bool { return d.groupNotified[i] < d.groupNotified[j] })
	if len(d.groupNotified) != 2 || d.groupNotified[0] != -3 || d.groupNotified[1] != -1 {
		t.Fatalf("notified = %v, want the two reachable groups", d.groupNotified)
	}
}

func TestStartGroupScopeRecordsTarget(t *testing.T) {
	svc, st, d := newTestService(t)
	ctx := context.Background()

	e, _ := svc.Create(ctx, "Math", 0, 1)
	addQuestion(t, st, e.ID, "Q", []string{"a", "b"}, 0)
	if err := svc.Start(ctx, e.ID, Target{Scope: store.TargetGroup, GroupID: -42}); err != nil {
		t.Fatalf("start: %v", err)
	}

	got, _ := svc.Get(ctx, e.ID)
	if got.TargetScope != store.TargetGroup || got.TargetGroupID == nil || *got.TargetGroupID != -42 {
		t.Fatalf("target = %q/%v, want group/-42", got.TargetScope, got.TargetGroupID)
	}
	if len(d.groupNotified) != 1 || d.groupNotified[0] != -42 {
		t.Fatalf("notified = %v, want only -42", d.groupNotified)
	}
}

func TestJoinExactlyOnce(t *testing.T) {
	svc, st, d := newTestService(t)
	ctx := context.Background()

	e, _ := svc.Create(ctx, "Math", 0, 1)
	addQuestion(t, st, e.ID, "Q1", []string{"a", "b"}, 0)
	addQuestion(t, st, e.ID, "Q2", []string{"a", "b"}, 1)

	who := Identity{UserID: 7, Username: "ada", FirstName: "Ada"}
	if _, err := svc.Join(ctx, e.ID, who); !errors.Is(err, ErrNotActive) {
		t.Fatalf("join pending exam: err = %v, want ErrNotActive", err)
	}

	if err := svc.Start(ctx, e.ID, Target{Scope: store.TargetUnrestricted}); err != nil {
		t.Fatalf("start: %v", err)
	}
	delivered, err := svc.Join(ctx, e.ID, who)
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if delivered != 2 {
		t.Fatalf("delivered %d prompts, want 2", delivered)
	}
	if len(d.prompted[7]) != 2 {
		t.Fatalf("prompts sent = %v, want both questions", d.prompted[7])
	}

	if _, err := svc.Join(ctx, e.ID, who); !errors.Is(err, ErrAlreadyJoined) {
		t.Fatalf("second join: err = %v, want ErrAlreadyJoined", err)
	}
	if ps, _ := st.ListParticipants(ctx, e.ID); len(ps) != 1 {
		t.Fatalf("participants = %d, want 1", len(ps))
	}
	if len(d.prompted[7]) != 2 {
		t.Fatalf("duplicate join re-sent prompts: %v", d.prompted[7])
	}
}

func TestRecordAnswerDiscards(t *testing.T) {
	svc, st, _ := newTestService(t)
	ctx := context.Background()

	e, _ := svc.Create(ctx, "Math", 0, 1)
	qID := addQuestion(t, st, e.ID, "Q", []string{"a", "b"}, 0)
	_ = svc.Start(ctx, e.ID, Target{Scope: store.TargetUnrestricted})
	if _, err := svc.Join(ctx, e.ID, Identity{UserID: 7}); err != nil {
		t.Fatalf("join: %v", err)
	}
	q, _ := st.GetQuestion(ctx, qID)
	if q.PollID == "" {
		t.Fatalf("join did not record a poll token")
	}

	tests := []struct {
		name  string
		token string
		opts  []int
	}{
		{name: "unknown token", token: "poll-nope", opts: []int{0}},
		{name: "retraction", token: q.PollID, opts: nil},
		{name: "option out of range", token: q.PollID, opts: []int{5}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			recorded, err := svc.RecordAnswer(ctx, tc.token, 7, tc.opts)
			if err != nil {
				t.Fatalf("RecordAnswer() error: %v", err)
			}
			if recorded {
				t.Fatalf("answer was recorded")
			}
		})
	}

	// A response arriving after the exam ends is dropped the same way.
	if err := svc.End(ctx, e.ID); err != nil {
		t.Fatalf("end: %v", err)
	}
	recorded, err := svc.RecordAnswer(ctx, q.PollID, 7, []int{0})
	if err != nil || recorded {
		t.Fatalf("late answer: recorded=%v err=%v, want dropped", recorded, err)
	}
}

func TestRecordAnswerFirstWriteWins(t *testing.T) {
	svc, st, _ := newTestService(t)
	ctx := context.Background()

	e, _ := svc.Create(ctx, "Math", 0, 1)
	qID := addQuestion(t, st, e.ID, "Q", []string{"a", "b"}, 1)
	_ = svc.Start(ctx, e.ID, Target{Scope: store.TargetUnrestricted})
	_, _ = svc.Join(ctx, e.ID, Identity{UserID: 7})
	q, _ := st.GetQuestion(ctx, qID)

	recorded, err := svc.RecordAnswer(ctx, q.PollID, 7, []int{0})
	if err != nil || !recorded {
		t.Fatalf("first answer: recorded=%v err=%v", recorded, err)
	}
	recorded, err = svc.RecordAnswer(ctx, q.PollID, 7, []int{1})
	if err != nil {
		t.Fatalf("second answer: %v", err)
	}
	if recorded {
		t.Fatalf("second answer overwrote the first")
	}

	answers, _ := st.ListUserAnswers(ctx, 7, e.ID)
	if len(answers) != 1 || answers[0].SelectedOption != 0 {
		t.Fatalf("answers = %+v, want single answer with option 0", answers)
	}
}

func TestEndNotifiesParticipantsOnce(t *testing.T) {
	svc, st, d := newTestService(t)
	ctx := context.Background()

	e, _ := svc.Create(ctx, "Math", 0, 1)
	addQuestion(t, st, e.ID, "Q", []string{"a", "b"}, 0)
	_ = svc.Start(ctx, e.ID, Target{Scope: store.TargetUnrestricted})
	_, _ = svc.Join(ctx, e.ID, Identity{UserID: 7})
	_, _ = svc.Join(ctx, e.ID, Identity{UserID: 8})

	if err := svc.End(ctx, e.ID); err != nil {
		t.Fatalf("end: %v", err)
	}
	if err := svc.End(ctx, e.ID); !errors.Is(err, ErrNotActive) {
		t.Fatalf("second end: err = %v, want ErrNotActive", err)
	}
	if err := svc.End(ctx, 404); !errors.Is(err, ErrExamNotFound) {
		t.Fatalf("end missing exam: err = %v, want ErrExamNotFound", err)
	}

	sort.Slice(d.userNotified, func(i, j int) bool { return d.userNotified[i] < d.userNotified[j] })
	if len(d.userNotified) != 2 || d.userNotified[0] != 7 || d.userNotified[1] != 8 {
		t.Fatalf("notified = %v, want both participants once", d.userNotified)
	}

	got, _ := svc.Get(ctx, e.ID)
	if got.Status != store.StatusEnded || got.EndTime == nil {
		t.Fatalf("exam after end = %+v", got)
	}
}

func TestDeleteCascades(t *testing.T) {
	svc, st, _ := newTestService(t)
	ctx := context.Background()

	e, _ := svc.Create(ctx, "Math", 0, 1)
	qID := addQuestion(t, st, e.ID, "Q", []string{"a", "b"}, 0)
	_ = svc.Start(ctx, e.ID, Target{Scope: store.TargetUnrestricted})
	_, _ = svc.Join(ctx, e.ID, Identity{UserID: 7})
	q, _ := st.GetQuestion(ctx, qID)
	_, _ = svc.RecordAnswer(ctx, q.PollID, 7, []int{0})

	if err := svc.Delete(ctx, e.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.Get(ctx, e.ID); !errors.Is(err, ErrExamNotFound) {
		t.Fatalf("exam survived delete: err = %v", err)
	}
	if answers, _ := st.ListAnswers(ctx, e.ID); len(answers) != 0 {
		t.Fatalf("answers survived delete: %+v", answers)
	}
	if ps, _ := st.ListParticipants(ctx, e.ID); len(ps) != 0 {
		t.Fatalf("participants survived delete: %+v", ps)
	}
}

// The whole flow a participant sees: the exam opens, they join, change
// their mind on an answer, and the first submission stands at the end.
func TestLifecycleEndToEnd(t *testing.T) {
	svc, st, _ := newTestService(t)
	ctx := context.Background()

	e, err := svc.Create(ctx, "Math", 0, 1)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	qID := addQuestion(t, st, e.ID, "What is 2+2?", []string{"3", "4", "5"}, 1)

	if err := svc.Start(ctx, e.ID, Target{Scope: store.TargetUnrestricted}); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := svc.Join(ctx, e.ID, Identity{UserID: 7, FirstName: "Ada"}); err != nil {
		t.Fatalf("join: %v", err)
	}

	q, _ := st.GetQuestion(ctx, qID)
	if recorded, _ := svc.RecordAnswer(ctx, q.PollID, 7, []int{2}); !recorded {
		t.Fatalf("first answer not recorded")
	}
	if recorded, _ := svc.RecordAnswer(ctx, q.PollID, 7, []int{1}); recorded {
		t.Fatalf("correction overwrote the first answer")
	}

	if err := svc.End(ctx, e.ID); err != nil {
		t.Fatalf("end: %v", err)
	}

	answers, _ := st.ListUserAnswers(ctx, 7, e.ID)
	if len(answers) != 1 {
		t.Fatalf("answers = %+v, want exactly one", answers)
	}
	if answers[0].SelectedOption != 2 {
		t.Fatalf("retained option = %d, want the first submission (2)", answers[0].SelectedOption)
	}
}
