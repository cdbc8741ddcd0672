package question

import (
	"context"
	"errors"
	"testing"
	"time"

	"quizbot/internal/store"
)

func newFixture(t *testing.T) (*Service, store.Store, int64) {
	t.Helper()
	st := store.NewMemStore()
	examID, err := st.CreateExam(context.Background(), &store.Exam{
		Name:      "Math",
		StartTime: time.Now(),
		CreatedBy: 1,
	})
	if err != nil {
		t.Fatalf("create exam: %v", err)
	}
	return NewService(st), st, examID
}

func TestAddValidation(t *testing.T) {
	svc, _, examID := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		text    string
		options []string
		correct int
		wantErr error
	}{
		{name: "ok", text: "2+2?", options: []string{"3", "4"}, correct: 1},
		{name: "empty text", text: "  ", options: []string{"3", "4"}, correct: 0, wantErr: ErrEmptyText},
		{name: "one option", text: "Q", options: []string{"only"}, correct: 0, wantErr: ErrTooFewOptions},
		{name: "blank options filtered", text: "Q", options: []string{"a", "   ", ""}, correct: 0, wantErr: ErrTooFewOptions},
		{name: "correct out of range", text: "Q", options: []string{"a", "b"}, correct: 2, wantErr: ErrInvalidCorrect},
		{name: "negative correct", text: "Q", options: []string{"a", "b"}, correct: -1, wantErr: ErrInvalidCorrect},
		{
			name: "eleven options", text: "Q", correct: 0, wantErr: ErrTooManyOptions,
			options: []string{"1", "2", "3", "4", "5", "6", "7", "8", "9", "10", "11"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Add(ctx, examID, tc.text, tc.options, tc.correct, "")
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("Add() err = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestAddRejectedOnceExamStarted(t *testing.T) {
	svc, st, examID := newFixture(t)
	ctx := context.Background()

	if _, err := svc.Add(ctx, examID, "Q", []string{"a", "b"}, 0, ""); err != nil {
		t.Fatalf("add while pending: %v", err)
	}
	if err := st.SetExamStarted(ctx, examID, time.Now(), store.TargetUnrestricted, nil); err != nil {
		t.Fatalf("start exam: %v", err)
	}
	if _, err := svc.Add(ctx, examID, "Q2", []string{"a", "b"}, 0, ""); !errors.Is(err, ErrExamNotEditable) {
		t.Fatalf("add while active: err = %v, want ErrExamNotEditable", err)
	}
}

func TestEditOptionsResetsCorrectIndex(t *testing.T) {
	svc, _, examID := newFixture(t)
	ctx := context.Background()

	q, err := svc.Add(ctx, examID, "Q", []string{"a", "b", "c", "d"}, 3, "")
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	reset, err := svc.EditOptions(ctx, q.ID, []string{"x", "y"})
	if err != nil {
		t.Fatalf("edit options: %v", err)
	}
	if !reset {
		t.Fatalf("expected reset warning when correct index 3 shrinks to 2 options")
	}

	got, err := svc.Get(ctx, q.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.CorrectOption != 0 {
		t.Fatalf("correct option = %d, want 0 after reset", got.CorrectOption)
	}

	// Same-size replacement keeps the index and raises no warning.
	reset, err = svc.EditOptions(ctx, q.ID, []string{"p", "q"})
	if err != nil {
		t.Fatalf("edit options again: %v", err)
	}
	if reset {
		t.Fatalf("unexpected reset warning when index stays valid")
	}
}

func TestDeleteCascadesAnswers(t *testing.T) {
	svc, st, examID := newFixture(t)
	ctx := context.Background()

	q, err := svc.Add(ctx, examID, "Q", []string{"a", "b"}, 0, "")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := st.InsertAnswer(ctx, &store.Answer{UserID: 9, ExamID: examID, QuestionID: q.ID, SelectedOption: 1}); err != nil {
		t.Fatalf("insert answer: %v", err)
	}

	if err := svc.Delete(ctx, q.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if answers, _ := st.ListAnswers(ctx, examID); len(answers) != 0 {
		t.Fatalf("answers survived question delete: %+v", answers)
	}
}

func TestImportTallies(t *testing.T) {
	svc, _, examID := newFixture(t)
	ctx := context.Background()

	raw := "1. Good?\nA. a\nB. b\nAns: A\n\n" +
		"2. Broken, no answer\nA. a\nB. b\n\n" +
		"3. Also good?\nA. x\nB. y\nC. z\nAns: C\nExplain: because\n"

	report, err := svc.Import(ctx, examID, raw)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if report.Parsed != 2 || report.Added != 2 || report.Failed != 0 {
		t.Fatalf("report = %+v, want Parsed=2 Added=2 Failed=0", report)
	}

	questions, err := svc.List(ctx, examID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(questions) != 2 {
		t.Fatalf("imported %d questions, want 2", len(questions))
	}
	if questions[1].Explanation != "because" {
		t.Fatalf("explanation not carried: %+v", questions[1])
	}
}

func TestImportIntoMissingExam(t *testing.T) {
	svc := NewService(store.NewMemStore())
	if _, err := svc.Import(context.Background(), 404, "1. Q?\nA. a\nB. b\nAns: A\n"); !errors.Is(err, ErrExamNotFound) {
		t.Fatalf("err = %v, want ErrExamNotFound", err)
	}
}
