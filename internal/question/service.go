// Package question owns the exam question bank: authoring, editing and
// bulk import from the plaintext upload format.
package question

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"quizbot/internal/store"
)

var (
	ErrExamNotFound     = errors.New("exam not found")
	ErrQuestionNotFound = errors.New("question not found")
	ErrExamNotEditable  = errors.New("exam is not pending")
	ErrTooFewOptions    = errors.New("need at least 2 options")
	ErrTooManyOptions   = errors.New("too many options")
	ErrInvalidCorrect   = errors.New("correct option out of range")
	ErrEmptyText        = errors.New("question text is empty")
)

// MaxOptions is the delivery-medium cap: Telegram polls carry at most ten
// answer options.
const MaxOptions = 10

type Service struct {
	store store.Store
}

func NewService(st store.Store) *Service {
	return &Service{store: st}
}

type ImportReport struct {
	Parsed int
	Added  int
	Failed int
}

// requirePendingExam loads the exam and rejects mutation unless the exam
// is still pending. The question bank is frozen from the moment an exam
// starts.
func (s *Service) requirePendingExam(ctx context.Context, examID int64) (*store.Exam, error) {
	exam, err := s.store.GetExam(ctx, examID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("load exam: %w", err)
	}
	if exam.Status != store.StatusPending {
		return nil, ErrExamNotEditable
	}
	return exam, nil
}

func (s *Service) loadEditable(ctx context.Context, questionID int64) (*store.Question, error) {
	q, err := s.store.GetQuestion(ctx, questionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrQuestionNotFound
		}
		return nil, fmt.Errorf("load question: %w", err)
	}
	if _, err := s.requirePendingExam(ctx, q.ExamID); err != nil {
		return nil, err
	}
	return q, nil
}

func validateOptions(options []string) ([]string, error) {
	clean := make([]string, 0, len(options))
	for _, o := range options {
		o = strings.TrimSpace(o)
		if o != "" {
			clean = append(clean, o)
		}
	}
	if len(clean) < 2 {
		return nil, ErrTooFewOptions
	}
	if len(clean) > MaxOptions {
		return nil, ErrTooManyOptions
	}
	return clean, nil
}

func (s *Service) Add(ctx context.Context, examID int64, text string, options []string, correct int, explanation string) (*store.Question, error) {
	if _, err := s.requirePendingExam(ctx, examID); err != nil {
		return nil, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyText
	}
	clean, err := validateOptions(options)
	if err != nil {
		return nil, err
	}
	if correct < 0 || correct >= len(clean) {
		return nil, ErrInvalidCorrect
	}

	q := &store.Question{
		ExamID:        examID,
		Text:          text,
		Options:       clean,
		CorrectOption: correct,
		Explanation:   strings.TrimSpace(explanation),
	}
	if _, err := s.store.CreateQuestion(ctx, q); err != nil {
		return nil, fmt.Errorf("persist question: %w", err)
	}
	return q, nil
}

func (s *Service) Get(ctx context.Context, questionID int64) (*store.Question, error) {
	q, err := s.store.GetQuestion(ctx, questionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrQuestionNotFound
		}
		return nil, fmt.Errorf("load question: %w", err)
	}
	return q, nil
}

func (s *Service) List(ctx context.Context, examID int64) ([]store.Question, error) {
	return s.store.ListQuestions(ctx, examID)
}

func (s *Service) EditText(ctx context.Context, questionID int64, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyText
	}
	q, err := s.loadEditable(ctx, questionID)
	if err != nil {
		return err
	}
	q.Text = text
	return s.store.UpdateQuestion(ctx, q)
}

// EditOptions replaces the option list. When the new list is shorter than
// the stored correct index the index is reset to 0; the returned flag tells
// the caller to warn the admin.
func (s *Service) EditOptions(ctx context.Context, questionID int64, options []string) (resetCorrect bool, err error) {
	clean, err := validateOptions(options)
	if err != nil {
		return false, err
	}
	q, err := s.loadEditable(ctx, questionID)
	if err != nil {
		return false, err
	}
	q.Options = clean
	if q.CorrectOption >= len(clean) {
		q.CorrectOption = 0
		resetCorrect = true
	}
	if err := s.store.UpdateQuestion(ctx, q); err != nil {
		return false, err
	}
	return resetCorrect, nil
}

func (s *Service) SetCorrect(ctx context.Context, questionID int64, correct int) error {
	q, err := s.loadEditable(ctx, questionID)
	if err != nil {
		return err
	}
	if correct < 0 || correct >= len(q.Options) {
		return ErrInvalidCorrect
	}
	q.CorrectOption = correct
	return s.store.UpdateQuestion(ctx, q)
}

func (s *Service) EditExplanation(ctx context.Context, questionID int64, explanation string) error {
	q, err := s.loadEditable(ctx, questionID)
	if err != nil {
		return err
	}
	q.Explanation = strings.TrimSpace(explanation)
	return s.store.UpdateQuestion(ctx, q)
}

// Delete removes the question; its recorded answers go with it.
func (s *Service) Delete(ctx context.Context, questionID int64) error {
	q, err := s.loadEditable(ctx, questionID)
	if err != nil {
		return err
	}
	return s.store.DeleteQuestion(ctx, q.ID)
}

// Import parses the upload text and persists every valid block under the
// exam. Per-block failures are tallied, never fatal: a garbled file
// degrades to fewer imported questions.
func (s *Service) Import(ctx context.Context, examID int64, raw string) (ImportReport, error) {
	if _, err := s.requirePendingExam(ctx, examID); err != nil {
		return ImportReport{}, err
	}

	parsed := Parse(raw)
	report := ImportReport{Parsed: len(parsed)}
	for _, p := range parsed {
		if len(p.Options) > MaxOptions {
			report.Failed++
			continue
		}
		q := &store.Question{
			ExamID:        examID,
			Text:          p.Text,
			Options:       p.Options,
			CorrectOption: p.CorrectOption,
			Explanation:   p.Explanation,
		}
		if _, err := s.store.CreateQuestion(ctx, q); err != nil {
			report.Failed++
			continue
		}
		report.Added++
	}
	return report, nil
}
