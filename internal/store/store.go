// Package store is the persistence gateway for exam, question, participant,
// answer, admin and group records. Services depend on the Store interface;
// SQLStore runs on postgres or sqlite, MemStore backs tests and DSN-less
// local runs.
package store

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("record not found")

type ExamStatus string

const (
	StatusPending ExamStatus = "pending"
	StatusActive  ExamStatus = "active"
	StatusEnded   ExamStatus = "ended"
)

// TargetScope is where an exam was published when it started.
type TargetScope string

const (
	// TargetUnrestricted opens the exam to direct participants and every
	// authorized group, with no push notification.
	TargetUnrestricted TargetScope = "unrestricted"
	// TargetGroup restricts the exam to a single authorized group.
	TargetGroup TargetScope = "group"
	// TargetAll is unrestricted plus a notification to every authorized group.
	TargetAll TargetScope = "all"
)

type Exam struct {
	ID            int64
	Name          string
	StartTime     time.Time
	EndTime       *time.Time
	Status        ExamStatus
	CreatedBy     int64
	TargetScope   TargetScope // empty until the exam is started
	TargetGroupID *int64      // set only for TargetGroup
	CreatedAt     time.Time
}

type Question struct {
	ID            int64
	ExamID        int64
	Text          string
	Options       []string
	CorrectOption int
	Explanation   string
	PollID        string // correlation token, empty until delivered
}

type Participant struct {
	UserID    int64
	ExamID    int64
	Username  string
	FirstName string
	JoinedAt  time.Time
}

type Answer struct {
	UserID         int64
	ExamID         int64
	QuestionID     int64
	SelectedOption int
	AnsweredAt     time.Time
}

type Admin struct {
	UserID    int64
	Username  string
	FirstName string
	AddedBy   int64
	AddedAt   time.Time
}

type Group struct {
	ChatID  int64
	Title   string
	AddedBy int64
	AddedAt time.Time
}

// Store is the record gateway. Insert methods that enforce uniqueness
// (AddParticipant, InsertAnswer, AddAdmin, AddGroup) report whether a row
// was actually written, so callers can treat duplicates as no-ops without
// a prior read.
type Store interface {
	CreateExam(ctx context.Context, e *Exam) (int64, error)
	GetExam(ctx context.Context, id int64) (*Exam, error)
	// ListExamsByCreator returns the creator's exams, newest first.
	// An empty status matches all statuses.
	ListExamsByCreator(ctx context.Context, creatorID int64, status ExamStatus) ([]Exam, error)
	ListExamsByStatus(ctx context.Context, status ExamStatus) ([]Exam, error)
	// ListExamsForParticipant returns exams the user joined, filtered by status.
	ListExamsForParticipant(ctx context.Context, userID int64, status ExamStatus) ([]Exam, error)
	SetExamStarted(ctx context.Context, id int64, startedAt time.Time, scope TargetScope, groupID *int64) error
	SetExamEnded(ctx context.Context, id int64, endedAt time.Time) error
	// DeleteExam removes the exam and cascades to its questions,
	// participants and answers.
	DeleteExam(ctx context.Context, id int64) error

	CreateQuestion(ctx context.Context, q *Question) (int64, error)
	GetQuestion(ctx context.Context, id int64) (*Question, error)
	GetQuestionByPollID(ctx context.Context, pollID string) (*Question, error)
	// ListQuestions returns the exam's questions in creation order.
	ListQuestions(ctx context.Context, examID int64) ([]Question, error)
	CountQuestions(ctx context.Context, examID int64) (int, error)
	UpdateQuestion(ctx context.Context, q *Question) error
	SetQuestionPollID(ctx context.Context, id int64, pollID string) error
	// DeleteQuestion removes the question and cascades to its answers.
	DeleteQuestion(ctx context.Context, id int64) error

	AddParticipant(ctx context.Context, p *Participant) (bool, error)
	ListParticipants(ctx context.Context, examID int64) ([]Participant, error)

	InsertAnswer(ctx context.Context, a *Answer) (bool, error)
	ListAnswers(ctx context.Context, examID int64) ([]Answer, error)
	ListUserAnswers(ctx context.Context, userID, examID int64) ([]Answer, error)
	ListQuestionAnswers(ctx context.Context, questionID int64) ([]Answer, error)

	AddAdmin(ctx context.Context, a *Admin) (bool, error)
	RemoveAdmin(ctx context.Context, userID int64) (bool, error)
	IsAdmin(ctx context.Context, userID int64) (bool, error)
	ListAdmins(ctx context.Context) ([]Admin, error)

	AddGroup(ctx context.Context, g *Group) (bool, error)
	RemoveGroup(ctx context.Context, chatID int64) (bool, error)
	IsGroupAuthorized(ctx context.Context, chatID int64) (bool, error)
	ListGroups(ctx context.Context) ([]Group, error)
}
