package report

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"quizbot/internal/store"
)

type fixture struct {
	svc    *Service
	store  store.Store
	examID int64
	qIDs   []int64
}

// newFixture seeds an exam with three questions whose correct options are
// indexes 1, 0 and 2.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	st := store.NewMemStore()

	examID, err := st.CreateExam(ctx, &store.Exam{Name: "Math", StartTime: time.Now(), CreatedBy: 1})
	if err != nil {
		t.Fatalf("create exam: %v", err)
	}
	f := &fixture{svc: NewService(st), store: st, examID: examID}
	for _, spec := range []struct {
		text    string
		correct int
	}{
		{"Q1", 1}, {"Q2", 0}, {"Q3", 2},
	} {
		id, err := st.CreateQuestion(ctx, &store.Question{
			ExamID: examID, Text: spec.text,
			Options: []string{"a", "b", "c"}, CorrectOption: spec.correct,
		})
		if err != nil {
			t.Fatalf("create question: %v", err)
		}
		f.qIDs = append(f.qIDs, id)
	}
	return f
}

func (f *fixture) join(t *testing.T, userID int64, name, username string) {
	t.Helper()
	if _, err := f.store.AddParticipant(context.Background(), &store.Participant{
		UserID: userID, ExamID: f.examID, FirstName: name, Username: username,
	}); err != nil {
		t.Fatalf("add participant: %v", err)
	}
}

func (f *fixture) answer(t *testing.T, userID int64, question int, option int, at time.Time) {
	t.Helper()
	if _, err := f.store.InsertAnswer(context.Background(), &store.Answer{
		UserID: userID, ExamID: f.examID, QuestionID: f.qIDs[question],
		SelectedOption: option, AnsweredAt: at,
	}); err != nil {
		t.Fatalf("insert answer: %v", err)
	}
}

func ts(sec int) time.Time {
	return time.Date(2025, 3, 1, 10, 0, sec, 0, time.UTC)
}

func TestLeaderboardOrdering(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Scores 3, 3 and 2 with first answers at t=100, t=50 and t=10.
	// Expected order: user 2 (3 correct, earlier), user 1, user 3.
	f.join(t, 1, "One", "one")
	f.answer(t, 1, 0, 1, ts(100))
	f.answer(t, 1, 1, 0, ts(101))
	f.answer(t, 1, 2, 2, ts(102))

	f.join(t, 2, "Two", "two")
	f.answer(t, 2, 0, 1, ts(50))
	f.answer(t, 2, 1, 0, ts(51))
	f.answer(t, 2, 2, 2, ts(52))

	f.join(t, 3, "Three", "three")
	f.answer(t, 3, 0, 1, ts(10))
	f.answer(t, 3, 1, 0, ts(11))
	f.answer(t, 3, 2, 1, ts(12))

	rows, err := f.svc.Leaderboard(ctx, f.examID)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	var order []int64
	for _, r := range rows {
		order = append(order, r.UserID)
	}
	if len(order) != 3 || order[0] != 2 || order[1] != 1 || order[2] != 3 {
		t.Fatalf("order = %v, want [2 1 3]", order)
	}
	if rows[0].Rank != 1 || rows[2].Rank != 3 {
		t.Fatalf("ranks = %d/%d, want 1/3", rows[0].Rank, rows[2].Rank)
	}
	if rows[0].Percentage != "100.0%" {
		t.Fatalf("percentage = %q, want 100.0%%", rows[0].Percentage)
	}
	if rows[2].Percentage != "66.7%" {
		t.Fatalf("percentage = %q, want 66.7%%", rows[2].Percentage)
	}
}

func TestLeaderboardNoAnswerSortsLastInTier(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.join(t, 1, "Silent", "silent")
	f.join(t, 2, "Late", "late")
	f.answer(t, 2, 0, 0, ts(500)) // wrong, but answered

	rows, err := f.svc.Leaderboard(ctx, f.examID)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if rows[0].UserID != 2 || rows[1].UserID != 1 {
		t.Fatalf("order = [%d %d], want answered participant first", rows[0].UserID, rows[1].UserID)
	}
	if rows[1].FirstAnswer != nil {
		t.Fatalf("silent participant has a first answer time")
	}
}

func TestLeaderboardMissingExam(t *testing.T) {
	svc := NewService(store.NewMemStore())
	if _, err := svc.Leaderboard(context.Background(), 404); !errors.Is(err, ErrExamNotFound) {
		t.Fatalf("err = %v, want ErrExamNotFound", err)
	}
}

func TestQuestionAnalytics(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.join(t, 1, "A", "a")
	f.join(t, 2, "B", "b")
	f.answer(t, 1, 0, 1, ts(1)) // correct
	f.answer(t, 2, 0, 0, ts(2)) // wrong

	stats, err := f.svc.QuestionAnalytics(ctx, f.examID)
	if err != nil {
		t.Fatalf("analytics: %v", err)
	}
	if len(stats) != 3 {
		t.Fatalf("stats for %d questions, want 3", len(stats))
	}

	q1 := stats[0]
	if q1.Answers != 2 || q1.Distribution[0] != 1 || q1.Distribution[1] != 1 || q1.Distribution[2] != 0 {
		t.Fatalf("q1 distribution = %v (answers=%d)", q1.Distribution, q1.Answers)
	}
	if q1.CorrectShare != 0.5 {
		t.Fatalf("q1 correct share = %v, want 0.5", q1.CorrectShare)
	}

	// No answers yet reports 0, never divides by zero.
	if stats[1].Answers != 0 || stats[1].CorrectShare != 0 {
		t.Fatalf("unanswered question stats = %+v, want zeros", stats[1])
	}
}

func TestPersonalResultForSilentUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.join(t, 1, "Silent", "silent")

	r, err := f.svc.Personal(ctx, f.examID, 1)
	if err != nil {
		t.Fatalf("personal: %v", err)
	}
	if r.Correct != 0 || r.Total != 3 || r.Percentage != "0.0%" {
		t.Fatalf("result = %+v, want 0/3 0.0%%", r)
	}
	for i, c := range r.Cells {
		if c.Answered {
			t.Fatalf("cell %d marked answered for silent user", i)
		}
	}
}

func TestExportTableShape(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.join(t, 1, "Ada", "") // empty username renders N/A
	f.answer(t, 1, 0, 1, ts(5))

	table, err := f.svc.ExportTable(ctx, f.examID)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if len(table) != 2 {
		t.Fatalf("table has %d rows, want header + 1", len(table))
	}

	header := strings.Join(table[0], ",")
	want := "Name,Username,Q1 Answer,Q1 Status,Q1 Time,Q2 Answer,Q2 Status,Q2 Time," +
		"Q3 Answer,Q3 Status,Q3 Time,Total Correct,Total Questions,Percentage,First Answer Time"
	if header != want {
		t.Fatalf("header = %q\nwant %q", header, want)
	}

	row := table[1]
	if row[0] != "Ada" || row[1] != "N/A" {
		t.Fatalf("identity cells = %q/%q", row[0], row[1])
	}
	if row[2] != "b" || row[3] != "Correct" {
		t.Fatalf("q1 cells = %q/%q, want b/Correct", row[2], row[3])
	}
	if row[5] != "No Answer" || row[6] != "Wrong" || row[7] != "N/A" {
		t.Fatalf("q2 cells = %v, want No Answer/Wrong/N/A", row[5:8])
	}
	if row[11] != "1" || row[12] != "3" || row[13] != "33.3%" {
		t.Fatalf("totals = %v", row[11:14])
	}
	if row[14] != ts(5).Format(timeFormat) {
		t.Fatalf("first answer time = %q", row[14])
	}
}

func TestExportReproducible(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.join(t, 1, "Ada", "ada")
	f.join(t, 2, "Bob", "bob")
	f.answer(t, 1, 0, 1, ts(1))
	f.answer(t, 2, 1, 0, ts(2))

	a, err := f.svc.ExportCSV(ctx, f.examID)
	if err != nil {
		t.Fatalf("first export: %v", err)
	}
	b, err := f.svc.ExportCSV(ctx, f.examID)
	if err != nil {
		t.Fatalf("second export: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Fatalf("csv export is not reproducible")
	}
}

func TestExportXLSXWrites(t *testing.T) {
	f := newFixture(t)
	f.join(t, 1, "Ada", "ada")

	out, err := f.svc.ExportXLSX(context.Background(), f.examID)
	if err != nil {
		t.Fatalf("xlsx export: %v", err)
	}
	// xlsx files are zip archives.
	if len(out) < 4 || out[0] != 'P' || out[1] != 'K' {
		t.Fatalf("output does not look like a workbook")
	}
}
