// Package exam owns the exam lifecycle: pending exams move to active when
// started with at least one question, active exams end once, and joins
// deliver the question bank as per-question choice prompts.
package exam

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"quizbot/internal/store"
)

var (
	ErrExamNotFound  = errors.New("exam not found")
	ErrNoQuestions   = errors.New("exam has no questions")
	ErrAlreadyJoined = errors.New("already joined this exam")
	ErrNotPending    = errors.New("exam is not pending")
	ErrNotActive     = errors.New("exam is not active")
	ErrInvalidOffset = errors.New("start offset must be >= 0 minutes")
	ErrEmptyName     = errors.New("exam name is empty")
)

// Notifier pushes exam announcements. Implementations must treat each
// destination independently; a blocked chat never aborts the fan-out.
type Notifier interface {
	NotifyGroupExamStarted(ctx context.Context, chatID int64, exam *store.Exam) error
	NotifyParticipantExamEnded(ctx context.Context, userID int64, exam *store.Exam) error
}

// Prompter delivers one question to a user as a single-choice prompt and
// returns the correlation token the transport will attach to responses.
type Prompter interface {
	PromptQuestion(ctx context.Context, userID int64, q *store.Question) (string, error)
}

// Target is the publish scope chosen when starting an exam.
type Target struct {
	Scope   store.TargetScope
	GroupID int64 // required for store.TargetGroup
}

type Service struct {
	store    store.Store
	notifier Notifier
	prompter Prompter
	now      func() time.Time
}

func NewService(st store.Store, notifier Notifier, prompter Prompter) *Service {
	return &Service{store: st, notifier: notifier, prompter: prompter, now: time.Now}
}

// WithClock overrides the time source. Test use only.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Identity carries the denormalized display fields stored on join.
type Identity struct {
	UserID    int64
	Username  string
	FirstName string
}

func (s *Service) Create(ctx context.Context, name string, startOffsetMinutes int, creatorID int64) (*store.Exam, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyName
	}
	if startOffsetMinutes < 0 {
		return nil, ErrInvalidOffset
	}

	e := &store.Exam{
		Name:      name,
		StartTime: s.now().Add(time.Duration(startOffsetMinutes) * time.Minute),
		Status:    store.StatusPending,
		CreatedBy: creatorID,
		CreatedAt: s.now(),
	}
	if _, err := s.store.CreateExam(ctx, e); err != nil {
		return nil, fmt.Errorf("persist exam: %w", err)
	}
	return e, nil
}

func (s *Service) Get(ctx context.Context, examID int64) (*store.Exam, error) {
	e, err := s.store.GetExam(ctx, examID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("load exam: %w", err)
	}
	return e, nil
}

// ListJoinable returns the active exams open to new participants.
func (s *Service) ListJoinable(ctx context.Context) ([]store.Exam, error) {
	return s.store.ListExamsByStatus(ctx, store.StatusActive)
}

// Start moves a pending exam to active and records the publish target.
// Group and all-scoped targets fan a notification out to the resolved
// authorized groups; unrestricted exams are discovered through listings.
func (s *Service) Start(ctx context.Context, examID int64, target Target) error {
	e, err := s.Get(ctx, examID)
	if err != nil {
		return err
	}
	if e.Status != store.StatusPending {
		return ErrNotPending
	}

	n, err := s.store.CountQuestions(ctx, examID)
	if err != nil {
		return fmt.Errorf("count questions: %w", err)
	}
	if n == 0 {
		return ErrNoQuestions
	}

	var groupID *int64
	if target.Scope == store.TargetGroup {
		gid := target.GroupID
		groupID = &gid
	}
	startedAt := s.now()
	if err := s.store.SetExamStarted(ctx, examID, startedAt, target.Scope, groupID); err != nil {
		return fmt.Errorf("mark exam started: %w", err)
	}

	e.Status = store.StatusActive
	e.StartTime = startedAt
	e.TargetScope = target.Scope
	e.TargetGroupID = groupID

	switch target.Scope {
	case store.TargetGroup:
		if err := s.notifier.NotifyGroupExamStarted(ctx, target.GroupID, e); err != nil {
			log.Printf("exam %d: notify group %d: %v", examID, target.GroupID, err)
		}
	case store.TargetAll:
		s.notifyAllGroups(ctx, e)
	}
	return nil
}

func (s *Service) notifyAllGroups(ctx context.Context, e *store.Exam) {
	groups, err := s.store.ListGroups(ctx)
	if err != nil {
		log.Printf("exam %d: list groups for fan-out: %v", e.ID, err)
		return
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for _, grp := range groups {
		grp := grp
		g.Go(func() error {
			// Delivery failures are per-destination: log and move on.
			if err := s.notifier.NotifyGroupExamStarted(ctx, grp.ChatID, e); err != nil {
				log.Printf("exam %d: notify group %d: %v", e.ID, grp.ChatID, err)
			}
			return nil
		})
	}
	_ = g.Wait()
}

// End moves an active exam to ended and tells every participant. Ending a
// non-active exam is refused; callers surface it as a no-op.
func (s *Service) End(ctx context.Context, examID int64) error {
	e, err := s.Get(ctx, examID)
	if err != nil {
		return err
	}
	if e.Status != store.StatusActive {
		return ErrNotActive
	}

	endedAt := s.now()
	if err := s.store.SetExamEnded(ctx, examID, endedAt); err != nil {
		return fmt.Errorf("mark exam ended: %w", err)
	}
	e.Status = store.StatusEnded
	e.EndTime = &endedAt

	participants, err := s.store.ListParticipants(ctx, examID)
	if err != nil {
		log.Printf("exam %d: list participants for end fan-out: %v", examID, err)
		return nil
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for _, p := range participants {
		p := p
		g.Go(func() error {
			if err := s.notifier.NotifyParticipantExamEnded(ctx, p.UserID, e); err != nil {
				log.Printf("exam %d: notify participant %d: %v", examID, p.UserID, err)
			}
			return nil
		})
	}
	_ = g.Wait()
	return nil
}

// Delete removes the exam in any status, cascading questions, participants
// and answers.
func (s *Service) Delete(ctx context.Context, examID int64) error {
	if _, err := s.Get(ctx, examID); err != nil {
		return err
	}
	return s.store.DeleteExam(ctx, examID)
}

// Join enrolls the user and delivers every question as an independent
// prompt, recording the returned correlation token against the question.
// Enrollment is irrevocable: a second join reports ErrAlreadyJoined.
func (s *Service) Join(ctx context.Context, examID int64, who Identity) (delivered int, err error) {
	e, err := s.Get(ctx, examID)
	if err != nil {
		return 0, err
	}
	if e.Status != store.StatusActive {
		return 0, ErrNotActive
	}

	questions, err := s.store.ListQuestions(ctx, examID)
	if err != nil {
		return 0, fmt.Errorf("list questions: %w", err)
	}
	if len(questions) == 0 {
		return 0, ErrNoQuestions
	}

	inserted, err := s.store.AddParticipant(ctx, &store.Participant{
		UserID:    who.UserID,
		ExamID:    examID,
		Username:  who.Username,
		FirstName: who.FirstName,
		JoinedAt:  s.now(),
	})
	if err != nil {
		return 0, fmt.Errorf("add participant: %w", err)
	}
	if !inserted {
		return 0, ErrAlreadyJoined
	}

	for i := range questions {
		q := &questions[i]
		token, err := s.prompter.PromptQuestion(ctx, who.UserID, q)
		if err != nil {
			log.Printf("exam %d: deliver question %d to %d: %v", examID, q.ID, who.UserID, err)
			continue
		}
		if err := s.store.SetQuestionPollID(ctx, q.ID, token); err != nil {
			log.Printf("exam %d: record poll token for question %d: %v", examID, q.ID, err)
			continue
		}
		delivered++
	}
	return delivered, nil
}
