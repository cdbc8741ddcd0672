package bot

import (
	"context"
	"sync"
)

// Flow and step names for the multi-step authoring dialogs. One flow is
// active per user; starting another silently abandons the previous one.
const (
	FlowCreateExam      = "create_exam"
	FlowAddQuestion     = "add_question"
	FlowEditText        = "edit_question_text"
	FlowEditOptions     = "edit_question_options"
	FlowEditExplanation = "edit_question_explanation"
	FlowUploadQuestions = "upload_questions"
	FlowAddAdmin        = "add_admin"

	StepName      = "name"
	StepStartTime = "start_time"
	StepText      = "text"
	StepOptions   = "options"
	StepCorrect   = "correct"
	StepExplain   = "explanation"
	StepValue     = "value"
	StepFile      = "file"
	StepUserID    = "user_id"
)

// Dialog is the scratch state of one user's active flow.
type Dialog struct {
	Flow       string   `json:"flow"`
	Step       string   `json:"step"`
	ExamID     int64    `json:"exam_id,omitempty"`
	QuestionID int64    `json:"question_id,omitempty"`
	ExamName   string   `json:"exam_name,omitempty"`
	Text       string   `json:"text,omitempty"`
	Options    []string `json:"options,omitempty"`
	Correct    int      `json:"correct,omitempty"`
}

// DialogStore holds per-user dialog state. MemDialogs is process-local and
// lost on restart; RedisDialogs survives restarts via snapshots.
type DialogStore interface {
	Get(ctx context.Context, userID int64) (*Dialog, bool, error)
	Set(ctx context.Context, userID int64, d *Dialog) error
	Clear(ctx context.Context, userID int64) error
}

type MemDialogs struct {
	mu    sync.RWMutex
	users map[int64]*Dialog
}

var _ DialogStore = (*MemDialogs)(nil)

func NewMemDialogs() *MemDialogs {
	return &MemDialogs{users: make(map[int64]*Dialog)}
}

func (m *MemDialogs) Get(_ context.Context, userID int64) (*Dialog, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.users[userID]
	if !ok {
		return nil, false, nil
	}
	cp := *d
	return &cp, true, nil
}

func (m *MemDialogs) Set(_ context.Context, userID int64, d *Dialog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *d
	m.users[userID] = &cp
	return nil
}

func (m *MemDialogs) Clear(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.users, userID)
	return nil
}
