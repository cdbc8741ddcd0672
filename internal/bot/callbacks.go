package bot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"quizbot/internal/exam"
	"quizbot/internal/store"
)

// handleCallback dispatches inline button presses. Callback data is
// "<action>_<id>" with an optional second id. Prefixes are matched most
// specific first because several share a stem (edit_q_, edit_q_text_).
func (h *Handler) handleCallback(ctx context.Context, cb *CallbackQuery) {
	if cb.Message == nil {
		return
	}
	userID := cb.From.ID
	chatID := cb.Message.Chat.ID
	data := cb.Data

	ack := func(text string) {
		if err := h.gw.AnswerCallback(ctx, cb.ID, text); err != nil {
			log.Printf("answer callback %s: %v", cb.ID, err)
		}
	}
	ack("")

	if data == "back_to_menu" {
		_ = h.dialogs.Clear(ctx, userID)
		h.sendMenu(ctx, chatID, userID)
		return
	}

	// Participant actions first: open to everyone.
	if id, ok := idAfter(data, "join_exam_"); ok {
		h.doJoin(ctx, chatID, cb.From, id)
		return
	}
	if id, ok := idAfter(data, "my_result_"); ok {
		h.showPersonalResult(ctx, chatID, userID, id)
		return
	}

	if !h.authority.IsAdmin(ctx, userID) {
		h.reply(ctx, chatID, "⛔ This action requires admin rights.")
		return
	}

	switch {
	case has(data, "start_exam_"):
		id, _ := idAfter(data, "start_exam_")
		h.showScopePicker(ctx, chatID, id)
	case has(data, "scope_open_"):
		id, _ := idAfter(data, "scope_open_")
		h.doStart(ctx, chatID, id, exam.Target{Scope: store.TargetUnrestricted})
	case has(data, "scope_all_"):
		id, _ := idAfter(data, "scope_all_")
		h.doStart(ctx, chatID, id, exam.Target{Scope: store.TargetAll})
	case has(data, "scope_group_"):
		examID, groupID, ok := twoIDsAfter(data, "scope_group_")
		if ok {
			h.doStart(ctx, chatID, examID, exam.Target{Scope: store.TargetGroup, GroupID: groupID})
		}
	case has(data, "end_exam_"):
		id, _ := idAfter(data, "end_exam_")
		h.doEnd(ctx, chatID, id)
	case has(data, "results_"):
		id, _ := idAfter(data, "results_")
		h.showLeaderboard(ctx, chatID, id)
	case has(data, "export_csv_"):
		id, _ := idAfter(data, "export_csv_")
		h.doExport(ctx, chatID, id, "csv")
	case has(data, "export_xlsx_"):
		id, _ := idAfter(data, "export_xlsx_")
		h.doExport(ctx, chatID, id, "xlsx")
	case has(data, "analytics_"):
		id, _ := idAfter(data, "analytics_")
		h.showAnalytics(ctx, chatID, id)
	case has(data, "confirm_delete_exam_"):
		id, _ := idAfter(data, "confirm_delete_exam_")
		h.showDeleteConfirm(ctx, chatID, id)
	case has(data, "delete_exam_"):
		id, _ := idAfter(data, "delete_exam_")
		h.doDelete(ctx, chatID, userID, id)
	case has(data, "select_exam_edit_"):
		id, _ := idAfter(data, "select_exam_edit_")
		h.showQuestionPicker(ctx, chatID, id)
	case has(data, "select_exam_upload_"):
		id, _ := idAfter(data, "select_exam_upload_")
		_ = h.dialogs.Set(ctx, userID, &Dialog{Flow: FlowUploadQuestions, Step: StepFile, ExamID: id})
		h.reply(ctx, chatID, renderUploadHelp())
	case has(data, "add_question_"):
		id, _ := idAfter(data, "add_question_")
		_ = h.dialogs.Set(ctx, userID, &Dialog{Flow: FlowAddQuestion, Step: StepText, ExamID: id})
		h.reply(ctx, chatID, "📝 Enter the question text:")
	case has(data, "done_exam_"):
		_ = h.dialogs.Clear(ctx, userID)
		h.sendMenu(ctx, chatID, userID)
	case has(data, "correct_"):
		examID, idx, ok := twoIDsAfter(data, "correct_")
		if ok {
			h.pickCorrectDuringAdd(ctx, chatID, userID, examID, int(idx))
		}
	case has(data, "edit_q_text_"):
		id, _ := idAfter(data, "edit_q_text_")
		_ = h.dialogs.Set(ctx, userID, &Dialog{Flow: FlowEditText, Step: StepValue, QuestionID: id})
		h.reply(ctx, chatID, "✏️ Send the new question text:")
	case has(data, "edit_q_options_"):
		id, _ := idAfter(data, "edit_q_options_")
		_ = h.dialogs.Set(ctx, userID, &Dialog{Flow: FlowEditOptions, Step: StepValue, QuestionID: id})
		h.reply(ctx, chatID, "✏️ Send the new options (one per line, minimum 2):")
	case has(data, "edit_q_correct_"):
		id, _ := idAfter(data, "edit_q_correct_")
		h.showCorrectPickerForEdit(ctx, chatID, id)
	case has(data, "edit_q_explanation_"):
		id, _ := idAfter(data, "edit_q_explanation_")
		_ = h.dialogs.Set(ctx, userID, &Dialog{Flow: FlowEditExplanation, Step: StepValue, QuestionID: id})
		h.reply(ctx, chatID, "✏️ Send the new explanation, or - to clear it:")
	case has(data, "correctpick_"):
		qID, idx, ok := twoIDsAfter(data, "correctpick_")
		if ok {
			h.doSetCorrect(ctx, chatID, qID, int(idx))
		}
	case has(data, "delete_single_q_"):
		id, _ := idAfter(data, "delete_single_q_")
		h.doDeleteQuestion(ctx, chatID, id)
	case has(data, "edit_q_"):
		id, _ := idAfter(data, "edit_q_")
		h.showQuestionEditMenu(ctx, chatID, id)
	case data == "admin_add":
		if !h.authority.IsSuperAdmin(userID) {
			h.reply(ctx, chatID, "⛔ Only the super admin manages admins.")
			return
		}
		_ = h.dialogs.Set(ctx, userID, &Dialog{Flow: FlowAddAdmin, Step: StepUserID})
		h.reply(ctx, chatID, "👮 Send the numeric user ID to grant admin rights:")
	case has(data, "admin_remove_"):
		id, _ := idAfter(data, "admin_remove_")
		h.doRemoveAdmin(ctx, chatID, userID, id)
	case has(data, "group_remove_"):
		id, _ := idAfter(data, "group_remove_")
		h.doRemoveGroup(ctx, chatID, id)
	}
}

func has(data, prefix string) bool { return strings.HasPrefix(data, prefix) }

func idAfter(data, prefix string) (int64, bool) {
	if !strings.HasPrefix(data, prefix) {
		return 0, false
	}
	id, err := strconv.ParseInt(data[len(prefix):], 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

func twoIDsAfter(data, prefix string) (int64, int64, bool) {
	if !strings.HasPrefix(data, prefix) {
		return 0, 0, false
	}
	parts := strings.SplitN(data[len(prefix):], "_", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	a, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, 0, false
	}
	b, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, 0, false
	}
	return a, b, true
}

func (h *Handler) doJoin(ctx context.Context, chatID int64, from User, examID int64) {
	delivered, err := h.exams.Join(ctx, examID, exam.Identity{
		UserID:    from.ID,
		Username:  from.Username,
		FirstName: from.FirstName,
	})
	switch {
	case errors.Is(err, exam.ErrAlreadyJoined):
		h.reply(ctx, chatID, "ℹ️ You already joined this exam.")
	case errors.Is(err, exam.ErrNotActive):
		h.reply(ctx, chatID, "❌ This exam is not accepting participants.")
	case err != nil:
		h.replyErr(ctx, chatID, err)
	default:
		h.reply(ctx, chatID, fmt.Sprintf("✅ You joined! %d question(s) sent. Answer the polls above.", delivered))
	}
}

func (h *Handler) showPersonalResult(ctx context.Context, chatID, userID, examID int64) {
	r, err := h.reports.Personal(ctx, examID, userID)
	if err != nil {
		h.replyErr(ctx, chatID, err)
		return
	}
	h.reply(ctx, chatID, renderPersonalResult(r))
}

func (h *Handler) showScopePicker(ctx context.Context, chatID, examID int64) {
	groups, err := h.store.ListGroups(ctx)
	if err != nil {
		h.replyErr(ctx, chatID, err)
		return
	}
	h.send(ctx, chatID, "📢 Where should this exam be published?", scopePicker(examID, groups))
}

func (h *Handler) doStart(ctx context.Context, chatID, examID int64, target exam.Target) {
	err := h.exams.Start(ctx, examID, target)
	switch {
	case errors.Is(err, exam.ErrNoQuestions):
		h.reply(ctx, chatID, "❌ Add at least one question before starting.")
	case errors.Is(err, exam.ErrNotPending):
		h.reply(ctx, chatID, "ℹ️ This exam was already started.")
	case err != nil:
		h.replyErr(ctx, chatID, err)
	default:
		h.reply(ctx, chatID, "▶️ Exam started!")
	}
}

func (h *Handler) doEnd(ctx context.Context, chatID, examID int64) {
	err := h.exams.End(ctx, examID)
	switch {
	case errors.Is(err, exam.ErrNotActive):
		h.reply(ctx, chatID, "ℹ️ This exam is not running.")
	case err != nil:
		h.replyErr(ctx, chatID, err)
	default:
		h.reply(ctx, chatID, "⏹️ Exam ended. Participants have been notified.")
	}
}

func (h *Handler) showLeaderboard(ctx context.Context, chatID, examID int64) {
	e, err := h.exams.Get(ctx, examID)
	if err != nil {
		h.replyErr(ctx, chatID, err)
		return
	}
	rows, err := h.reports.Leaderboard(ctx, examID)
	if err != nil {
		h.replyErr(ctx, chatID, err)
		return
	}
	h.send(ctx, chatID, renderLeaderboard(e, rows), resultsKeyboard(examID))
}

func (h *Handler) showAnalytics(ctx context.Context, chatID, examID int64) {
	e, err := h.exams.Get(ctx, examID)
	if err != nil {
		h.replyErr(ctx, chatID, err)
		return
	}
	stats, err := h.reports.QuestionAnalytics(ctx, examID)
	if err != nil {
		h.replyErr(ctx, chatID, err)
		return
	}
	h.reply(ctx, chatID, renderAnalytics(e, stats))
}

func (h *Handler) doExport(ctx context.Context, chatID, examID int64, format string) {
	e, err := h.exams.Get(ctx, examID)
	if err != nil {
		h.replyErr(ctx, chatID, err)
		return
	}

	name := strings.ReplaceAll(e.Name, " ", "_")
	stamp := time.Now().Format("20060102")
	var data []byte
	var filename string
	if format == "xlsx" {
		data, err = h.reports.ExportXLSX(ctx, examID)
		filename = fmt.Sprintf("%s_results_%s.xlsx", name, stamp)
	} else {
		data, err = h.reports.ExportCSV(ctx, examID)
		filename = fmt.Sprintf("%s_results_%s.csv", name, stamp)
	}
	if err != nil {
		h.replyErr(ctx, chatID, err)
		return
	}
	if err := h.gw.SendDocument(ctx, chatID, filename, data, "📊 Results: "+e.Name); err != nil {
		log.Printf("send export to %d: %v", chatID, err)
		h.reply(ctx, chatID, "❌ Could not deliver the export file.")
	}
}

func (h *Handler) showDeleteConfirm(ctx context.Context, chatID, examID int64) {
	e, err := h.exams.Get(ctx, examID)
	if err != nil {
		h.replyErr(ctx, chatID, err)
		return
	}
	count, err := h.store.CountQuestions(ctx, examID)
	if err != nil {
		h.replyErr(ctx, chatID, err)
		return
	}
	participants, err := h.store.ListParticipants(ctx, examID)
	if err != nil {
		h.replyErr(ctx, chatID, err)
		return
	}
	h.send(ctx, chatID, renderDeleteConfirm(e, count, len(participants)), deleteConfirmKeyboard(examID))
}

func (h *Handler) doDelete(ctx context.Context, chatID, userID, examID int64) {
	if err := h.exams.Delete(ctx, examID); err != nil {
		h.replyErr(ctx, chatID, err)
		return
	}
	h.reply(ctx, chatID, "🗑️ Exam deleted.")
	h.sendMenu(ctx, chatID, userID)
}

func (h *Handler) showQuestionPicker(ctx context.Context, chatID, examID int64) {
	questions, err := h.questions.List(ctx, examID)
	if err != nil {
		h.replyErr(ctx, chatID, err)
		return
	}
	if len(questions) == 0 {
		h.reply(ctx, chatID, "This exam has no questions yet.")
		return
	}
	h.send(ctx, chatID, "✏️ Pick a question:", questionPicker(questions))
}

func (h *Handler) showQuestionEditMenu(ctx context.Context, chatID, questionID int64) {
	q, err := h.questions.Get(ctx, questionID)
	if err != nil {
		h.replyErr(ctx, chatID, err)
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "❓ %s\n\n", q.Text)
	for i, opt := range q.Options {
		marker := "  "
		if i == q.CorrectOption {
			marker = "✅"
		}
		fmt.Fprintf(&b, "%s %d. %s\n", marker, i+1, opt)
	}
	if q.Explanation != "" {
		fmt.Fprintf(&b, "\n💡 %s\n", q.Explanation)
	}
	h.send(ctx, chatID, b.String(), questionEditKeyboard(q))
}

func (h *Handler) showCorrectPickerForEdit(ctx context.Context, chatID, questionID int64) {
	q, err := h.questions.Get(ctx, questionID)
	if err != nil {
		h.replyErr(ctx, chatID, err)
		return
	}
	var rows [][]InlineKeyboardButton
	for i, opt := range q.Options {
		rows = append(rows, []InlineKeyboardButton{{
			Text:         fmt.Sprintf("%d. %s", i+1, opt),
			CallbackData: fmt.Sprintf("correctpick_%d_%d", q.ID, i),
		}})
	}
	h.send(ctx, chatID, "Select the correct answer:", InlineKeyboardMarkup{InlineKeyboard: rows})
}

func (h *Handler) doSetCorrect(ctx context.Context, chatID, questionID int64, idx int) {
	if err := h.questions.SetCorrect(ctx, questionID, idx); err != nil {
		h.replyErr(ctx, chatID, err)
		return
	}
	h.reply(ctx, chatID, "✅ Correct answer updated!")
	h.showQuestionEditMenu(ctx, chatID, questionID)
}

func (h *Handler) doDeleteQuestion(ctx context.Context, chatID, questionID int64) {
	q, err := h.questions.Get(ctx, questionID)
	if err != nil {
		h.replyErr(ctx, chatID, err)
		return
	}
	if err := h.questions.Delete(ctx, questionID); err != nil {
		h.replyErr(ctx, chatID, err)
		return
	}
	h.reply(ctx, chatID, "🗑️ Question deleted.")
	h.showQuestionPicker(ctx, chatID, q.ExamID)
}

// pickCorrectDuringAdd resumes the add_question flow once the admin picks
// the correct option from the inline keyboard.
func (h *Handler) pickCorrectDuringAdd(ctx context.Context, chatID, userID, examID int64, idx int) {
	d, ok, err := h.dialogs.Get(ctx, userID)
	if err != nil || !ok || d.Flow != FlowAddQuestion || d.Step != StepCorrect || d.ExamID != examID {
		return
	}
	if idx < 0 || idx >= len(d.Options) {
		return
	}
	d.Correct = idx
	d.Step = StepExplain
	if err := h.dialogs.Set(ctx, userID, d); err != nil {
		log.Printf("save dialog for %d: %v", userID, err)
	}
	h.reply(ctx, chatID, "💡 Enter an explanation, or - to skip:")
}

func (h *Handler) doRemoveAdmin(ctx context.Context, chatID, userID, targetID int64) {
	if !h.authority.IsSuperAdmin(userID) {
		h.reply(ctx, chatID, "⛔ Only the super admin manages admins.")
		return
	}
	removed, err := h.authority.Revoke(ctx, targetID)
	if err != nil {
		h.replyErr(ctx, chatID, err)
		return
	}
	if !removed {
		h.reply(ctx, chatID, "ℹ️ That admin cannot be removed.")
		return
	}
	h.reply(ctx, chatID, "✅ Admin removed.")
	h.showAdmins(ctx, chatID, userID)
}

func (h *Handler) doRemoveGroup(ctx context.Context, chatID, groupID int64) {
	removed, err := h.store.RemoveGroup(ctx, groupID)
	if err != nil {
		h.replyErr(ctx, chatID, err)
		return
	}
	if removed {
		h.reply(ctx, chatID, "✅ Group removed.")
	}
	h.showGroups(ctx, chatID)
}
