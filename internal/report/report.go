// Package report aggregates recorded answers into rankings, per-question
// statistics and exportable result tables. It only reads through the store;
// exam and question state is never mutated here.
package report

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"quizbot/internal/store"
)

var ErrExamNotFound = errors.New("exam not found")

const timeFormat = "2006-01-02 15:04:05"

type Service struct {
	store store.Store
}

func NewService(st store.Store) *Service {
	return &Service{store: st}
}

// LeaderboardRow is one ranked participant. FirstAnswer is nil for
// participants who never answered; they rank last within their score tier.
type LeaderboardRow struct {
	Rank        int
	UserID      int64
	Name        string
	Username    string
	Correct     int
	Total       int
	Percentage  string
	FirstAnswer *time.Time
}

// AnswerCell is one (participant, question) slot of a report.
type AnswerCell struct {
	Answered   bool
	OptionText string
	Correct    bool
	AnsweredAt time.Time
}

type ParticipantReport struct {
	Participant store.Participant
	Cells       []AnswerCell
	Correct     int
}

// Detailed is the full per-participant, per-question breakdown in exam
// question order.
type Detailed struct {
	Exam      *store.Exam
	Questions []store.Question
	Rows      []ParticipantReport
}

// QuestionStats carries the option distribution for one question.
// CorrectShare is the fraction of answers that picked the correct option,
// 0 when nobody answered.
type QuestionStats struct {
	Question     store.Question
	Distribution []int
	Answers      int
	CorrectShare float64
}

// PersonalResult is one participant's breakdown with explanations.
type PersonalResult struct {
	Exam       *store.Exam
	Questions  []store.Question
	Cells      []AnswerCell
	Correct    int
	Total      int
	Percentage string
}

func (s *Service) exam(ctx context.Context, examID int64) (*store.Exam, error) {
	e, err := s.store.GetExam(ctx, examID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("load exam: %w", err)
	}
	return e, nil
}

func percentage(correct, total int) string {
	if total == 0 {
		return "0.0%"
	}
	return fmt.Sprintf("%.1f%%", float64(correct)/float64(total)*100)
}

func displayName(v string) string {
	if v == "" {
		return "N/A"
	}
	return v
}

// cells maps a participant's answers onto the exam's question order.
func cells(questions []store.Question, answers []store.Answer) (out []AnswerCell, correct int, first *time.Time) {
	byQuestion := make(map[int64]store.Answer, len(answers))
	for _, a := range answers {
		byQuestion[a.QuestionID] = a
	}

	out = make([]AnswerCell, 0, len(questions))
	for _, q := range questions {
		a, ok := byQuestion[q.ID]
		if !ok || a.SelectedOption >= len(q.Options) {
			out = append(out, AnswerCell{})
			continue
		}
		cell := AnswerCell{
			Answered:   true,
			OptionText: q.Options[a.SelectedOption],
			Correct:    a.SelectedOption == q.CorrectOption,
			AnsweredAt: a.AnsweredAt,
		}
		if cell.Correct {
			correct++
		}
		if first == nil || a.AnsweredAt.Before(*first) {
			t := a.AnsweredAt
			first = &t
		}
		out = append(out, cell)
	}
	return out, correct, first
}

// Leaderboard ranks participants by correct count descending, ties broken
// by earliest first answer. Equal rows keep join order.
func (s *Service) Leaderboard(ctx context.Context, examID int64) ([]LeaderboardRow, error) {
	if _, err := s.exam(ctx, examID); err != nil {
		return nil, err
	}
	questions, err := s.store.ListQuestions(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	participants, err := s.store.ListParticipants(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}

	rows := make([]LeaderboardRow, 0, len(participants))
	for _, p := range participants {
		answers, err := s.store.ListUserAnswers(ctx, p.UserID, examID)
		if err != nil {
			return nil, fmt.Errorf("list answers for %d: %w", p.UserID, err)
		}
		_, correct, first := cells(questions, answers)
		rows = append(rows, LeaderboardRow{
			UserID:      p.UserID,
			Name:        displayName(p.FirstName),
			Username:    displayName(p.Username),
			Correct:     correct,
			Total:       len(questions),
			Percentage:  percentage(correct, len(questions)),
			FirstAnswer: first,
		})
	}

	// Sentinel later than any real timestamp keeps no-answer rows last
	// within their score tier.
	sentinel := time.Unix(1<<62-1, 0)
	at := func(r LeaderboardRow) time.Time {
		if r.FirstAnswer == nil {
			return sentinel
		}
		return *r.FirstAnswer
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Correct != rows[j].Correct {
			return rows[i].Correct > rows[j].Correct
		}
		return at(rows[i]).Before(at(rows[j]))
	})
	for i := range rows {
		rows[i].Rank = i + 1
	}
	return rows, nil
}

// DetailedReport returns every participant's cells in join order.
func (s *Service) DetailedReport(ctx context.Context, examID int64) (*Detailed, error) {
	e, err := s.exam(ctx, examID)
	if err != nil {
		return nil, err
	}
	questions, err := s.store.ListQuestions(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	participants, err := s.store.ListParticipants(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}

	d := &Detailed{Exam: e, Questions: questions}
	for _, p := range participants {
		answers, err := s.store.ListUserAnswers(ctx, p.UserID, examID)
		if err != nil {
			return nil, fmt.Errorf("list answers for %d: %w", p.UserID, err)
		}
		cs, correct, _ := cells(questions, answers)
		d.Rows = append(d.Rows, ParticipantReport{Participant: p, Cells: cs, Correct: correct})
	}
	return d, nil
}

// QuestionAnalytics computes the selected-option distribution per question.
func (s *Service) QuestionAnalytics(ctx context.Context, examID int64) ([]QuestionStats, error) {
	if _, err := s.exam(ctx, examID); err != nil {
		return nil, err
	}
	questions, err := s.store.ListQuestions(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}

	stats := make([]QuestionStats, 0, len(questions))
	for _, q := range questions {
		answers, err := s.store.ListQuestionAnswers(ctx, q.ID)
		if err != nil {
			return nil, fmt.Errorf("list answers for question %d: %w", q.ID, err)
		}
		st := QuestionStats{Question: q, Distribution: make([]int, len(q.Options))}
		correct := 0
		for _, a := range answers {
			if a.SelectedOption < 0 || a.SelectedOption >= len(q.Options) {
				continue
			}
			st.Distribution[a.SelectedOption]++
			st.Answers++
			if a.SelectedOption == q.CorrectOption {
				correct++
			}
		}
		if st.Answers > 0 {
			st.CorrectShare = float64(correct) / float64(st.Answers)
		}
		stats = append(stats, st)
	}
	return stats, nil
}

// Personal returns one participant's breakdown. A user who never answered
// gets an all-unanswered report, not an error.
func (s *Service) Personal(ctx context.Context, examID, userID int64) (*PersonalResult, error) {
	e, err := s.exam(ctx, examID)
	if err != nil {
		return nil, err
	}
	questions, err := s.store.ListQuestions(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	answers, err := s.store.ListUserAnswers(ctx, userID, examID)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}

	cs, correct, _ := cells(questions, answers)
	return &PersonalResult{
		Exam:       e,
		Questions:  questions,
		Cells:      cs,
		Correct:    correct,
		Total:      len(questions),
		Percentage: percentage(correct, len(questions)),
	}, nil
}
