package bot

import (
	"context"
	"errors"
	"log"
	"strconv"
	"strings"

	"quizbot/internal/question"
)

// handleFlowInput applies one text message to the sender's active flow
// step. Validation failures re-prompt the same step without advancing;
// everything else either advances the flow or completes it.
func (h *Handler) handleFlowInput(ctx context.Context, chatID, userID int64, d *Dialog, text string) {
	switch d.Flow {
	case FlowCreateExam:
		h.flowCreateExam(ctx, chatID, userID, d, text)
	case FlowAddQuestion:
		h.flowAddQuestion(ctx, chatID, userID, d, text)
	case FlowEditText:
		h.flowEditField(ctx, chatID, userID, d, func() error {
			return h.questions.EditText(ctx, d.QuestionID, text)
		}, "✅ Question text updated!")
	case FlowEditOptions:
		h.flowEditOptions(ctx, chatID, userID, d, text)
	case FlowEditExplanation:
		h.flowEditField(ctx, chatID, userID, d, func() error {
			if text == "-" {
				text = ""
			}
			return h.questions.EditExplanation(ctx, d.QuestionID, text)
		}, "✅ Explanation updated!")
	case FlowAddAdmin:
		h.flowAddAdmin(ctx, chatID, userID, text)
	case FlowUploadQuestions:
		// Awaiting a document, not text.
		h.reply(ctx, chatID, renderUploadHelp())
	}
}

func (h *Handler) flowCreateExam(ctx context.Context, chatID, userID int64, d *Dialog, text string) {
	switch d.Step {
	case StepName:
		d.ExamName = text
		d.Step = StepStartTime
		if err := h.dialogs.Set(ctx, userID, d); err != nil {
			log.Printf("save dialog for %d: %v", userID, err)
		}
		h.reply(ctx, chatID, "⏰ Enter start time (minutes from now, or 0 for immediate):")
	case StepStartTime:
		minutes, err := strconv.Atoi(text)
		if err != nil || minutes < 0 {
			h.reply(ctx, chatID, "❌ Invalid time. Enter a number >= 0:")
			return
		}
		e, err := h.exams.Create(ctx, d.ExamName, minutes, userID)
		if err != nil {
			h.replyErr(ctx, chatID, err)
			return
		}
		_ = h.dialogs.Clear(ctx, userID)
		h.send(ctx, chatID, "✅ Exam \""+e.Name+"\" created!\n\nNow add questions.", authoringKeyboard(e.ID))
	}
}

func (h *Handler) flowAddQuestion(ctx context.Context, chatID, userID int64, d *Dialog, text string) {
	switch d.Step {
	case StepText:
		d.Text = text
		d.Step = StepOptions
		if err := h.dialogs.Set(ctx, userID, d); err != nil {
			log.Printf("save dialog for %d: %v", userID, err)
		}
		h.reply(ctx, chatID, "📝 Enter options (one per line, minimum 2):")
	case StepOptions:
		var options []string
		for _, line := range strings.Split(text, "\n") {
			if line = strings.TrimSpace(line); line != "" {
				options = append(options, line)
			}
		}
		if len(options) < 2 {
			h.reply(ctx, chatID, "❌ Need at least 2 options. Try again:")
			return
		}
		if len(options) > question.MaxOptions {
			h.reply(ctx, chatID, "❌ At most 10 options. Try again:")
			return
		}
		d.Options = options
		d.Step = StepCorrect
		if err := h.dialogs.Set(ctx, userID, d); err != nil {
			log.Printf("save dialog for %d: %v", userID, err)
		}
		h.send(ctx, chatID, "Select the correct answer:", correctPicker(d.ExamID, options))
	case StepCorrect:
		h.reply(ctx, chatID, "☝️ Pick the correct answer with the buttons above.")
	case StepExplain:
		explanation := text
		if explanation == "-" {
			explanation = ""
		}
		if _, err := h.questions.Add(ctx, d.ExamID, d.Text, d.Options, d.Correct, explanation); err != nil {
			h.replyErr(ctx, chatID, err)
			return
		}
		_ = h.dialogs.Clear(ctx, userID)
		h.send(ctx, chatID, "✅ Question added!", authoringKeyboard(d.ExamID))
	}
}

func (h *Handler) flowEditOptions(ctx context.Context, chatID, userID int64, d *Dialog, text string) {
	var options []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			options = append(options, line)
		}
	}
	reset, err := h.questions.EditOptions(ctx, d.QuestionID, options)
	if err != nil {
		if errors.Is(err, question.ErrTooFewOptions) {
			h.reply(ctx, chatID, "❌ Need at least 2 options. Try again:")
			return
		}
		h.replyErr(ctx, chatID, err)
		return
	}
	_ = h.dialogs.Clear(ctx, userID)
	msg := "✅ Options updated!"
	if reset {
		msg += "\n⚠️ The correct answer was reset to the first option. Review it."
	}
	h.reply(ctx, chatID, msg)
	h.showQuestionEditMenu(ctx, chatID, d.QuestionID)
}

// flowEditField runs a single-step edit flow and returns to the question
// edit menu.
func (h *Handler) flowEditField(ctx context.Context, chatID, userID int64, d *Dialog, apply func() error, done string) {
	if err := apply(); err != nil {
		h.replyErr(ctx, chatID, err)
		return
	}
	_ = h.dialogs.Clear(ctx, userID)
	h.reply(ctx, chatID, done)
	h.showQuestionEditMenu(ctx, chatID, d.QuestionID)
}

func (h *Handler) flowAddAdmin(ctx context.Context, chatID, userID int64, text string) {
	id, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64)
	if err != nil || id <= 0 {
		h.reply(ctx, chatID, "❌ Send a numeric user ID:")
		return
	}
	granted, err := h.authority.Grant(ctx, id, userID)
	if err != nil {
		h.replyErr(ctx, chatID, err)
		return
	}
	_ = h.dialogs.Clear(ctx, userID)
	if !granted {
		h.reply(ctx, chatID, "ℹ️ That user is already an admin.")
		return
	}
	h.reply(ctx, chatID, "✅ Admin added.")
}

// handleDocument feeds an uploaded file into the upload_questions flow.
func (h *Handler) handleDocument(ctx context.Context, msg *Message) {
	userID := msg.From.ID
	chatID := msg.Chat.ID

	d, ok, err := h.dialogs.Get(ctx, userID)
	if err != nil || !ok || d.Flow != FlowUploadQuestions {
		return
	}

	data, err := h.gw.FetchFile(ctx, msg.Document.FileID)
	if err != nil {
		log.Printf("fetch upload from %d: %v", userID, err)
		h.reply(ctx, chatID, "❌ Could not download the file. Try again.")
		return
	}

	rep, err := h.questions.Import(ctx, d.ExamID, string(data))
	if err != nil {
		h.replyErr(ctx, chatID, err)
		return
	}
	_ = h.dialogs.Clear(ctx, userID)
	h.reply(ctx, chatID, renderImportReport(rep))
}
