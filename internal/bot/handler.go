package bot

import (
	"context"
	"log"
	"strings"

	"quizbot/internal/exam"
	"quizbot/internal/question"
	"quizbot/internal/report"
	"quizbot/internal/store"
)

// Handler routes inbound updates to the domain services. Every update kind
// funnels through HandleUpdate: poll votes to answer ingestion, callbacks
// to their action handlers, messages to commands, menu buttons or the
// sender's active dialog flow.
type Handler struct {
	gw        Gateway
	dialogs   DialogStore
	authority *Authority
	exams     *exam.Service
	questions *question.Service
	reports   *report.Service
	store     store.Store
}

func NewHandler(
	gw Gateway,
	dialogs DialogStore,
	authority *Authority,
	exams *exam.Service,
	questions *question.Service,
	reports *report.Service,
	st store.Store,
) *Handler {
	return &Handler{
		gw:        gw,
		dialogs:   dialogs,
		authority: authority,
		exams:     exams,
		questions: questions,
		reports:   reports,
		store:     st,
	}
}

func (h *Handler) HandleUpdate(ctx context.Context, upd Update) {
	switch {
	case upd.PollAnswer != nil:
		h.handlePollAnswer(ctx, upd.PollAnswer)
	case upd.CallbackQuery != nil:
		h.handleCallback(ctx, upd.CallbackQuery)
	case upd.Message != nil:
		h.handleMessage(ctx, upd.Message)
	}
}

func (h *Handler) handlePollAnswer(ctx context.Context, pa *PollAnswer) {
	recorded, err := h.exams.RecordAnswer(ctx, pa.PollID, pa.User.ID, pa.OptionIDs)
	if err != nil {
		log.Printf("record answer for poll %s user %d: %v", pa.PollID, pa.User.ID, err)
		return
	}
	_ = recorded // duplicates and retractions are silent no-ops
}

func (h *Handler) handleMessage(ctx context.Context, msg *Message) {
	if msg.From == nil {
		return
	}
	if msg.Chat.Type == "group" || msg.Chat.Type == "supergroup" {
		h.handleGroupMessage(ctx, msg)
		return
	}

	userID := msg.From.ID
	chatID := msg.Chat.ID
	text := strings.TrimSpace(msg.Text)

	switch {
	case text == "/start" || strings.HasPrefix(text, "/start "), text == "/menu":
		_ = h.dialogs.Clear(ctx, userID)
		h.sendMenu(ctx, chatID, userID)
		return
	case h.isAdminButton(text):
		if !h.authority.IsAdmin(ctx, userID) {
			h.reply(ctx, chatID, "⛔ This action requires admin rights.")
			return
		}
		h.handleAdminButton(ctx, chatID, userID, text)
		return
	case text == btnActiveExams:
		h.showActiveExams(ctx, chatID)
		return
	case text == btnMyResults:
		h.showMyResults(ctx, chatID, userID)
		return
	}

	if msg.Document != nil {
		h.handleDocument(ctx, msg)
		return
	}
	if text == "" {
		return
	}

	// Anything else is input for the sender's active flow, if any.
	d, ok, err := h.dialogs.Get(ctx, userID)
	if err != nil {
		log.Printf("dialog lookup for %d: %v", userID, err)
		return
	}
	if !ok {
		return
	}
	h.handleFlowInput(ctx, chatID, userID, d, text)
}

// handleGroupMessage covers the group surface: authorization management by
// admins. Everything else in groups is ignored.
func (h *Handler) handleGroupMessage(ctx context.Context, msg *Message) {
	text := strings.TrimSpace(msg.Text)
	cmd := text
	// Commands in groups arrive as /cmd@botname.
	if i := strings.IndexByte(cmd, '@'); i > 0 {
		cmd = cmd[:i]
	}

	switch cmd {
	case "/authorize":
		if !h.authority.IsAdmin(ctx, msg.From.ID) {
			return
		}
		added, err := h.store.AddGroup(ctx, &store.Group{
			ChatID:  msg.Chat.ID,
			Title:   msg.Chat.Title,
			AddedBy: msg.From.ID,
		})
		if err != nil {
			log.Printf("authorize group %d: %v", msg.Chat.ID, err)
			return
		}
		if added {
			h.reply(ctx, msg.Chat.ID, "✅ This group can now receive exams.")
		} else {
			h.reply(ctx, msg.Chat.ID, "ℹ️ This group is already authorized.")
		}
	case "/revoke":
		if !h.authority.IsAdmin(ctx, msg.From.ID) {
			return
		}
		removed, err := h.store.RemoveGroup(ctx, msg.Chat.ID)
		if err != nil {
			log.Printf("revoke group %d: %v", msg.Chat.ID, err)
			return
		}
		if removed {
			h.reply(ctx, msg.Chat.ID, "✅ Group authorization revoked.")
		}
	}
}

func (h *Handler) sendMenu(ctx context.Context, chatID, userID int64) {
	if h.authority.IsAdmin(ctx, userID) {
		h.send(ctx, chatID, "Welcome, admin! Choose an action:", adminMenu())
		return
	}
	h.send(ctx, chatID, "Welcome! Choose an action:", participantMenu())
}

func (h *Handler) isAdminButton(text string) bool {
	switch text {
	case btnCreateExam, btnMyExams, btnStartExam, btnEndExam, btnViewResults,
		btnEditQs, btnUploadQs, btnDeleteExam, btnAdmins, btnGroups:
		return true
	}
	return false
}

func (h *Handler) handleAdminButton(ctx context.Context, chatID, userID int64, text string) {
	switch text {
	case btnCreateExam:
		_ = h.dialogs.Set(ctx, userID, &Dialog{Flow: FlowCreateExam, Step: StepName})
		h.send(ctx, chatID, "📝 Enter exam name:", ReplyKeyboardRemove{RemoveKeyboard: true})
	case btnMyExams:
		exams, err := h.store.ListExamsByCreator(ctx, userID, "")
		if err != nil {
			h.replyErr(ctx, chatID, err)
			return
		}
		h.reply(ctx, chatID, renderExamList(exams))
	case btnStartExam:
		h.pickOwnExam(ctx, chatID, userID, store.StatusPending, "start_exam", "▶️ Pick an exam to start:")
	case btnEndExam:
		h.pickOwnExam(ctx, chatID, userID, store.StatusActive, "end_exam", "⏹️ Pick an exam to end:")
	case btnViewResults:
		h.pickOwnExam(ctx, chatID, userID, "", "results", "📊 Pick an exam:")
	case btnEditQs:
		h.pickOwnExam(ctx, chatID, userID, store.StatusPending, "select_exam_edit", "✏️ Pick an exam to edit:")
	case btnUploadQs:
		h.pickOwnExam(ctx, chatID, userID, store.StatusPending, "select_exam_upload", "📤 Pick an exam to upload into:")
	case btnDeleteExam:
		h.pickOwnExam(ctx, chatID, userID, "", "confirm_delete_exam", "🗑️ Pick an exam to delete:")
	case btnAdmins:
		h.showAdmins(ctx, chatID, userID)
	case btnGroups:
		h.showGroups(ctx, chatID)
	}
}

func (h *Handler) pickOwnExam(ctx context.Context, chatID, userID int64, status store.ExamStatus, action, prompt string) {
	exams, err := h.store.ListExamsByCreator(ctx, userID, status)
	if err != nil {
		h.replyErr(ctx, chatID, err)
		return
	}
	if len(exams) == 0 {
		h.reply(ctx, chatID, "No matching exams.")
		return
	}
	h.send(ctx, chatID, prompt, examPicker(exams, action))
}

func (h *Handler) showActiveExams(ctx context.Context, chatID int64) {
	exams, err := h.exams.ListJoinable(ctx)
	if err != nil {
		h.replyErr(ctx, chatID, err)
		return
	}
	if len(exams) == 0 {
		h.reply(ctx, chatID, "No active exams right now.")
		return
	}
	h.send(ctx, chatID, "📚 Active exams:", examPicker(exams, "join_exam"))
}

func (h *Handler) showMyResults(ctx context.Context, chatID, userID int64) {
	exams, err := h.store.ListExamsForParticipant(ctx, userID, store.StatusEnded)
	if err != nil {
		h.replyErr(ctx, chatID, err)
		return
	}
	if len(exams) == 0 {
		h.reply(ctx, chatID, "You have no finished exams yet.")
		return
	}
	h.send(ctx, chatID, "📈 Pick an exam:", examPicker(exams, "my_result"))
}

func (h *Handler) showAdmins(ctx context.Context, chatID, userID int64) {
	if !h.authority.IsSuperAdmin(userID) {
		h.reply(ctx, chatID, "⛔ Only the super admin manages admins.")
		return
	}
	admins, err := h.store.ListAdmins(ctx)
	if err != nil {
		h.replyErr(ctx, chatID, err)
		return
	}
	h.send(ctx, chatID, "👮 Granted admins:", adminListKeyboard(admins))
}

func (h *Handler) showGroups(ctx context.Context, chatID int64) {
	groups, err := h.store.ListGroups(ctx)
	if err != nil {
		h.replyErr(ctx, chatID, err)
		return
	}
	if len(groups) == 0 {
		h.reply(ctx, chatID, "No authorized groups. Send /authorize inside a group to add it.")
		return
	}
	h.send(ctx, chatID, "👥 Authorized groups:", groupListKeyboard(groups))
}

func (h *Handler) reply(ctx context.Context, chatID int64, text string) {
	h.send(ctx, chatID, text, nil)
}

func (h *Handler) replyErr(ctx context.Context, chatID int64, err error) {
	log.Printf("chat %d: %v", chatID, err)
	h.reply(ctx, chatID, "❌ "+err.Error())
}

func (h *Handler) send(ctx context.Context, chatID int64, text string, markup any) {
	if _, err := h.gw.SendMessage(ctx, chatID, text, markup); err != nil {
		log.Printf("send to %d: %v", chatID, err)
	}
}
