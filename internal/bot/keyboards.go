package bot

import (
	"fmt"

	"quizbot/internal/store"
)

// Menu button labels. The reply keyboard echoes these back as plain text,
// so the router matches on them verbatim.
const (
	btnCreateExam  = "📝 Create Exam"
	btnMyExams     = "📋 My Exams"
	btnStartExam   = "▶️ Start Exam"
	btnEndExam     = "⏹️ End Exam"
	btnViewResults = "📊 View Results"
	btnEditQs      = "✏️ Edit Questions"
	btnUploadQs    = "📤 Upload Questions"
	btnDeleteExam  = "🗑️ Delete Exam"
	btnAdmins      = "👮 Manage Admins"
	btnGroups      = "👥 Manage Groups"

	btnActiveExams = "📚 Active Exams"
	btnMyResults   = "📈 My Results"
)

func adminMenu() ReplyKeyboardMarkup {
	return ReplyKeyboardMarkup{
		Keyboard: [][]KeyboardButton{
			{{Text: btnCreateExam}, {Text: btnMyExams}},
			{{Text: btnStartExam}, {Text: btnEndExam}},
			{{Text: btnViewResults}, {Text: btnEditQs}},
			{{Text: btnUploadQs}, {Text: btnDeleteExam}},
			{{Text: btnAdmins}, {Text: btnGroups}},
		},
		ResizeKeyboard: true,
	}
}

func participantMenu() ReplyKeyboardMarkup {
	return ReplyKeyboardMarkup{
		Keyboard: [][]KeyboardButton{
			{{Text: btnActiveExams}, {Text: btnMyResults}},
		},
		ResizeKeyboard: true,
	}
}

// examPicker renders one inline button per exam, callback data
// "<action>_<examID>".
func examPicker(exams []store.Exam, action string) InlineKeyboardMarkup {
	var rows [][]InlineKeyboardButton
	for _, e := range exams {
		rows = append(rows, []InlineKeyboardButton{{
			Text:         e.Name,
			CallbackData: fmt.Sprintf("%s_%d", action, e.ID),
		}})
	}
	return InlineKeyboardMarkup{InlineKeyboard: rows}
}

func scopePicker(examID int64, groups []store.Group) InlineKeyboardMarkup {
	rows := [][]InlineKeyboardButton{
		{{Text: "🔓 Open to everyone", CallbackData: fmt.Sprintf("scope_open_%d", examID)}},
		{{Text: "🌐 All groups", CallbackData: fmt.Sprintf("scope_all_%d", examID)}},
	}
	for _, g := range groups {
		rows = append(rows, []InlineKeyboardButton{{
			Text:         "👥 " + g.Title,
			CallbackData: fmt.Sprintf("scope_group_%d_%d", examID, g.ChatID),
		}})
	}
	return InlineKeyboardMarkup{InlineKeyboard: rows}
}

func authoringKeyboard(examID int64) InlineKeyboardMarkup {
	return InlineKeyboardMarkup{InlineKeyboard: [][]InlineKeyboardButton{{
		{Text: "➕ Add Question", CallbackData: fmt.Sprintf("add_question_%d", examID)},
		{Text: "✅ Done", CallbackData: fmt.Sprintf("done_exam_%d", examID)},
	}}}
}

func correctPicker(examID int64, options []string) InlineKeyboardMarkup {
	var rows [][]InlineKeyboardButton
	for i, opt := range options {
		rows = append(rows, []InlineKeyboardButton{{
			Text:         fmt.Sprintf("%d. %s", i+1, opt),
			CallbackData: fmt.Sprintf("correct_%d_%d", examID, i),
		}})
	}
	return InlineKeyboardMarkup{InlineKeyboard: rows}
}

func questionPicker(questions []store.Question) InlineKeyboardMarkup {
	var rows [][]InlineKeyboardButton
	for i, q := range questions {
		text := q.Text
		if len(text) > 40 {
			text = text[:40] + "…"
		}
		rows = append(rows, []InlineKeyboardButton{{
			Text:         fmt.Sprintf("%d. %s", i+1, text),
			CallbackData: fmt.Sprintf("edit_q_%d", q.ID),
		}})
	}
	rows = append(rows, []InlineKeyboardButton{{Text: "« Back", CallbackData: "back_to_menu"}})
	return InlineKeyboardMarkup{InlineKeyboard: rows}
}

func questionEditKeyboard(q *store.Question) InlineKeyboardMarkup {
	return InlineKeyboardMarkup{InlineKeyboard: [][]InlineKeyboardButton{
		{{Text: "✏️ Edit Question Text", CallbackData: fmt.Sprintf("edit_q_text_%d", q.ID)}},
		{{Text: "✏️ Edit Options", CallbackData: fmt.Sprintf("edit_q_options_%d", q.ID)}},
		{{Text: "✏️ Change Correct Answer", CallbackData: fmt.Sprintf("edit_q_correct_%d", q.ID)}},
		{{Text: "✏️ Edit Explanation", CallbackData: fmt.Sprintf("edit_q_explanation_%d", q.ID)}},
		{{Text: "🗑️ Delete Question", CallbackData: fmt.Sprintf("delete_single_q_%d", q.ID)}},
		{{Text: "« Back", CallbackData: fmt.Sprintf("select_exam_edit_%d", q.ExamID)}},
	}}
}

func deleteConfirmKeyboard(examID int64) InlineKeyboardMarkup {
	return InlineKeyboardMarkup{InlineKeyboard: [][]InlineKeyboardButton{{
		{Text: "✅ Yes, Delete", CallbackData: fmt.Sprintf("delete_exam_%d", examID)},
		{Text: "❌ Cancel", CallbackData: "back_to_menu"},
	}}}
}

func resultsKeyboard(examID int64) InlineKeyboardMarkup {
	return InlineKeyboardMarkup{InlineKeyboard: [][]InlineKeyboardButton{
		{
			{Text: "📄 Export CSV", CallbackData: fmt.Sprintf("export_csv_%d", examID)},
			{Text: "📊 Export XLSX", CallbackData: fmt.Sprintf("export_xlsx_%d", examID)},
		},
		{{Text: "📉 Question Analytics", CallbackData: fmt.Sprintf("analytics_%d", examID)}},
	}}
}

func adminListKeyboard(admins []store.Admin) InlineKeyboardMarkup {
	var rows [][]InlineKeyboardButton
	for _, a := range admins {
		rows = append(rows, []InlineKeyboardButton{{
			Text:         fmt.Sprintf("🗑️ Remove %d", a.UserID),
			CallbackData: fmt.Sprintf("admin_remove_%d", a.UserID),
		}})
	}
	rows = append(rows, []InlineKeyboardButton{{Text: "➕ Add Admin", CallbackData: "admin_add"}})
	return InlineKeyboardMarkup{InlineKeyboard: rows}
}

func groupListKeyboard(groups []store.Group) InlineKeyboardMarkup {
	var rows [][]InlineKeyboardButton
	for _, g := range groups {
		rows = append(rows, []InlineKeyboardButton{{
			Text:         fmt.Sprintf("🗑️ Remove %s", g.Title),
			CallbackData: fmt.Sprintf("group_remove_%d", g.ChatID),
		}})
	}
	return InlineKeyboardMarkup{InlineKeyboard: rows}
}

func joinKeyboard(examID int64) InlineKeyboardMarkup {
	return InlineKeyboardMarkup{InlineKeyboard: [][]InlineKeyboardButton{{
		{Text: "✋ Join Exam", CallbackData: fmt.Sprintf("join_exam_%d", examID)},
	}}}
}

func myResultKeyboard(examID int64) InlineKeyboardMarkup {
	return InlineKeyboardMarkup{InlineKeyboard: [][]InlineKeyboardButton{{
		{Text: "📊 View My Results", CallbackData: fmt.Sprintf("my_result_%d", examID)},
	}}}
}
