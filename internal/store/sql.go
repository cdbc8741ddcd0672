package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// SQLStore implements Store over database/sql. Queries use $n placeholders,
// which both the pgx stdlib driver and modernc sqlite accept, so one
// implementation serves both backends.
type SQLStore struct {
	db *sql.DB
}

var _ Store = (*SQLStore)(nil)

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

const examColumns = `id, name, start_time, end_time, status, created_by, target_scope, target_group_id, created_at`

func scanExam(row interface{ Scan(...any) error }) (*Exam, error) {
	var (
		e       Exam
		endTime sql.NullTime
		groupID sql.NullInt64
		scope   string
	)
	if err := row.Scan(&e.ID, &e.Name, &e.StartTime, &endTime, &e.Status, &e.CreatedBy, &scope, &groupID, &e.CreatedAt); err != nil {
		return nil, err
	}
	e.TargetScope = TargetScope(scope)
	if endTime.Valid {
		t := endTime.Time
		e.EndTime = &t
	}
	if groupID.Valid {
		id := groupID.Int64
		e.TargetGroupID = &id
	}
	return &e, nil
}

func (s *SQLStore) CreateExam(ctx context.Context, e *Exam) (int64, error) {
	if e.Status == "" {
		e.Status = StatusPending
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO exams (name, start_time, status, created_by, target_scope, created_at)
		VALUES ($1, $2, $3, $4, '', $5)
		RETURNING id
	`, e.Name, e.StartTime, string(e.Status), e.CreatedBy, e.CreatedAt).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert exam: %w", err)
	}
	e.ID = id
	return id, nil
}

func (s *SQLStore) GetExam(ctx context.Context, id int64) (*Exam, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+examColumns+` FROM exams WHERE id = $1`, id)
	e, err := scanExam(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load exam: %w", err)
	}
	return e, nil
}

func (s *SQLStore) listExams(ctx context.Context, query string, args ...any) ([]Exam, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query exams: %w", err)
	}
	defer rows.Close()

	out := make([]Exam, 0)
	for rows.Next() {
		e, err := scanExam(rows)
		if err != nil {
			return nil, fmt.Errorf("scan exam: %w", err)
		}
		out = append(out, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate exams: %w", err)
	}
	return out, nil
}

func (s *SQLStore) ListExamsByCreator(ctx context.Context, creatorID int64, status ExamStatus) ([]Exam, error) {
	if status == "" {
		return s.listExams(ctx, `SELECT `+examColumns+` FROM exams WHERE created_by = $1 ORDER BY created_at DESC, id DESC`, creatorID)
	}
	return s.listExams(ctx, `SELECT `+examColumns+` FROM exams WHERE created_by = $1 AND status = $2 ORDER BY created_at DESC, id DESC`, creatorID, string(status))
}

func (s *SQLStore) ListExamsByStatus(ctx context.Context, status ExamStatus) ([]Exam, error) {
	return s.listExams(ctx, `SELECT `+examColumns+` FROM exams WHERE status = $1 ORDER BY created_at DESC, id DESC`, string(status))
}

func (s *SQLStore) ListExamsForParticipant(ctx context.Context, userID int64, status ExamStatus) ([]Exam, error) {
	q := `SELECT DISTINCT e.id, e.name, e.start_time, e.end_time, e.status, e.created_by, e.target_scope, e.target_group_id, e.created_at
		FROM exams e JOIN participants p ON e.id = p.exam_id
		WHERE p.user_id = $1`
	if status == "" {
		return s.listExams(ctx, q+` ORDER BY e.created_at DESC, e.id DESC`, userID)
	}
	return s.listExams(ctx, q+` AND e.status = $2 ORDER BY e.created_at DESC, e.id DESC`, userID, string(status))
}

func (s *SQLStore) SetExamStarted(ctx context.Context, id int64, startedAt time.Time, scope TargetScope, groupID *int64) error {
	var gid sql.NullInt64
	if groupID != nil {
		gid = sql.NullInt64{Int64: *groupID, Valid: true}
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE exams SET status = $1, start_time = $2, target_scope = $3, target_group_id = $4 WHERE id = $5
	`, string(StatusActive), startedAt, string(scope), gid, id)
	if err != nil {
		return fmt.Errorf("start exam: %w", err)
	}
	return requireRow(res)
}

func (s *SQLStore) SetExamEnded(ctx context.Context, id int64, endedAt time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE exams SET status = $1, end_time = $2 WHERE id = $3
	`, string(StatusEnded), endedAt, id)
	if err != nil {
		return fmt.Errorf("end exam: %w", err)
	}
	return requireRow(res)
}

func (s *SQLStore) DeleteExam(ctx context.Context, id int64) error {
	stmts := []string{
		`DELETE FROM user_answers WHERE exam_id = $1`,
		`DELETE FROM participants WHERE exam_id = $1`,
		`DELETE FROM questions WHERE exam_id = $1`,
		`DELETE FROM exams WHERE id = $1`,
	}
	for _, q := range stmts {
		if _, err := s.db.ExecContext(ctx, q, id); err != nil {
			return fmt.Errorf("delete exam cascade: %w", err)
		}
	}
	return nil
}

func (s *SQLStore) CreateQuestion(ctx context.Context, q *Question) (int64, error) {
	opts, err := json.Marshal(q.Options)
	if err != nil {
		return 0, fmt.Errorf("encode options: %w", err)
	}
	var id int64
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO questions (exam_id, question_text, options, correct_option, explanation, poll_id)
		VALUES ($1, $2, $3, $4, $5, '')
		RETURNING id
	`, q.ExamID, q.Text, string(opts), q.CorrectOption, q.Explanation).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert question: %w", err)
	}
	q.ID = id
	return id, nil
}

const questionColumns = `id, exam_id, question_text, options, correct_option, explanation, poll_id`

func scanQuestion(row interface{ Scan(...any) error }) (*Question, error) {
	var (
		q    Question
		opts string
	)
	if err := row.Scan(&q.ID, &q.ExamID, &q.Text, &opts, &q.CorrectOption, &q.Explanation, &q.PollID); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(opts), &q.Options); err != nil {
		return nil, fmt.Errorf("decode options: %w", err)
	}
	return &q, nil
}

func (s *SQLStore) GetQuestion(ctx context.Context, id int64) (*Question, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+questionColumns+` FROM questions WHERE id = $1`, id)
	q, err := scanQuestion(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load question: %w", err)
	}
	return q, nil
}

func (s *SQLStore) GetQuestionByPollID(ctx context.Context, pollID string) (*Question, error) {
	if pollID == "" {
		return nil, ErrNotFound
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+questionColumns+` FROM questions WHERE poll_id = $1`, pollID)
	q, err := scanQuestion(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load question by poll: %w", err)
	}
	return q, nil
}

func (s *SQLStore) ListQuestions(ctx context.Context, examID int64) ([]Question, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+questionColumns+` FROM questions WHERE exam_id = $1 ORDER BY id ASC`, examID)
	if err != nil {
		return nil, fmt.Errorf("query questions: %w", err)
	}
	defer rows.Close()

	out := make([]Question, 0)
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		out = append(out, *q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate questions: %w", err)
	}
	return out, nil
}

func (s *SQLStore) CountQuestions(ctx context.Context, examID int64) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM questions WHERE exam_id = $1`, examID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count questions: %w", err)
	}
	return n, nil
}

func (s *SQLStore) UpdateQuestion(ctx context.Context, q *Question) error {
	opts, err := json.Marshal(q.Options)
	if err != nil {
		return fmt.Errorf("encode options: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE questions SET question_text = $1, options = $2, correct_option = $3, explanation = $4 WHERE id = $5
	`, q.Text, string(opts), q.CorrectOption, q.Explanation, q.ID)
	if err != nil {
		return fmt.Errorf("update question: %w", err)
	}
	return requireRow(res)
}

func (s *SQLStore) SetQuestionPollID(ctx context.Context, id int64, pollID string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE questions SET poll_id = $1 WHERE id = $2`, pollID, id)
	if err != nil {
		return fmt.Errorf("set poll id: %w", err)
	}
	return requireRow(res)
}

func (s *SQLStore) DeleteQuestion(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM user_answers WHERE question_id = $1`, id); err != nil {
		return fmt.Errorf("delete question answers: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM questions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete question: %w", err)
	}
	return nil
}

func (s *SQLStore) AddParticipant(ctx context.Context, p *Participant) (bool, error) {
	if p.JoinedAt.IsZero() {
		p.JoinedAt = time.Now()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO participants (user_id, exam_id, username, first_name, joined_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, exam_id) DO NOTHING
	`, p.UserID, p.ExamID, p.Username, p.FirstName, p.JoinedAt)
	if err != nil {
		return false, fmt.Errorf("insert participant: %w", err)
	}
	return rowInserted(res)
}

func (s *SQLStore) ListParticipants(ctx context.Context, examID int64) ([]Participant, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, exam_id, username, first_name, joined_at
		FROM participants WHERE exam_id = $1 ORDER BY joined_at ASC, user_id ASC
	`, examID)
	if err != nil {
		return nil, fmt.Errorf("query participants: %w", err)
	}
	defer rows.Close()

	out := make([]Participant, 0)
	for rows.Next() {
		var p Participant
		if err := rows.Scan(&p.UserID, &p.ExamID, &p.Username, &p.FirstName, &p.JoinedAt); err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate participants: %w", err)
	}
	return out, nil
}

// InsertAnswer writes the answer unless one already exists for the
// (user, exam, question) triple. The unique index is the idempotency
// mechanism; concurrent duplicates race to a single stored row.
func (s *SQLStore) InsertAnswer(ctx context.Context, a *Answer) (bool, error) {
	if a.AnsweredAt.IsZero() {
		a.AnsweredAt = time.Now()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO user_answers (user_id, exam_id, question_id, selected_option, answered_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, exam_id, question_id) DO NOTHING
	`, a.UserID, a.ExamID, a.QuestionID, a.SelectedOption, a.AnsweredAt)
	if err != nil {
		return false, fmt.Errorf("insert answer: %w", err)
	}
	return rowInserted(res)
}

func (s *SQLStore) listAnswers(ctx context.Context, query string, args ...any) ([]Answer, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query answers: %w", err)
	}
	defer rows.Close()

	out := make([]Answer, 0)
	for rows.Next() {
		var a Answer
		if err := rows.Scan(&a.UserID, &a.ExamID, &a.QuestionID, &a.SelectedOption, &a.AnsweredAt); err != nil {
			return nil, fmt.Errorf("scan answer: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate answers: %w", err)
	}
	return out, nil
}

const answerColumns = `user_id, exam_id, question_id, selected_option, answered_at`

func (s *SQLStore) ListAnswers(ctx context.Context, examID int64) ([]Answer, error) {
	return s.listAnswers(ctx, `SELECT `+answerColumns+` FROM user_answers WHERE exam_id = $1 ORDER BY question_id ASC, answered_at ASC`, examID)
}

func (s *SQLStore) ListUserAnswers(ctx context.Context, userID, examID int64) ([]Answer, error) {
	return s.listAnswers(ctx, `SELECT `+answerColumns+` FROM user_answers WHERE user_id = $1 AND exam_id = $2 ORDER BY question_id ASC`, userID, examID)
}

func (s *SQLStore) ListQuestionAnswers(ctx context.Context, questionID int64) ([]Answer, error) {
	return s.listAnswers(ctx, `SELECT `+answerColumns+` FROM user_answers WHERE question_id = $1 ORDER BY answered_at ASC`, questionID)
}

func (s *SQLStore) AddAdmin(ctx context.Context, a *Admin) (bool, error) {
	if a.AddedAt.IsZero() {
		a.AddedAt = time.Now()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO admins (user_id, username, first_name, added_by, added_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id) DO NOTHING
	`, a.UserID, a.Username, a.FirstName, a.AddedBy, a.AddedAt)
	if err != nil {
		return false, fmt.Errorf("insert admin: %w", err)
	}
	return rowInserted(res)
}

func (s *SQLStore) RemoveAdmin(ctx context.Context, userID int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM admins WHERE user_id = $1`, userID)
	if err != nil {
		return false, fmt.Errorf("delete admin: %w", err)
	}
	return rowInserted(res)
}

func (s *SQLStore) IsAdmin(ctx context.Context, userID int64) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM admins WHERE user_id = $1`, userID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check admin: %w", err)
	}
	return true, nil
}

func (s *SQLStore) ListAdmins(ctx context.Context) ([]Admin, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT user_id, username, first_name, added_by, added_at FROM admins ORDER BY added_at ASC, user_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query admins: %w", err)
	}
	defer rows.Close()

	out := make([]Admin, 0)
	for rows.Next() {
		var a Admin
		if err := rows.Scan(&a.UserID, &a.Username, &a.FirstName, &a.AddedBy, &a.AddedAt); err != nil {
			return nil, fmt.Errorf("scan admin: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate admins: %w", err)
	}
	return out, nil
}

func (s *SQLStore) AddGroup(ctx context.Context, g *Group) (bool, error) {
	if g.AddedAt.IsZero() {
		g.AddedAt = time.Now()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO authorized_groups (chat_id, title, added_by, added_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (chat_id) DO NOTHING
	`, g.ChatID, g.Title, g.AddedBy, g.AddedAt)
	if err != nil {
		return false, fmt.Errorf("insert group: %w", err)
	}
	return rowInserted(res)
}

func (s *SQLStore) RemoveGroup(ctx context.Context, chatID int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM authorized_groups WHERE chat_id = $1`, chatID)
	if err != nil {
		return false, fmt.Errorf("delete group: %w", err)
	}
	return rowInserted(res)
}

func (s *SQLStore) IsGroupAuthorized(ctx context.Context, chatID int64) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM authorized_groups WHERE chat_id = $1`, chatID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check group: %w", err)
	}
	return true, nil
}

func (s *SQLStore) ListGroups(ctx context.Context) ([]Group, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT chat_id, title, added_by, added_at FROM authorized_groups ORDER BY added_at ASC, chat_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query groups: %w", err)
	}
	defer rows.Close()

	out := make([]Group, 0)
	for rows.Next() {
		var g Group
		if err := rows.Scan(&g.ChatID, &g.Title, &g.AddedBy, &g.AddedAt); err != nil {
			return nil, fmt.Errorf("scan group: %w", err)
		}
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate groups: %w", err)
	}
	return out, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func rowInserted(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}
