package bot

import (
	"fmt"
	"strings"

	"quizbot/internal/question"
	"quizbot/internal/report"
	"quizbot/internal/store"
)

// Screen text renderers. All of them are pure functions of entity state so
// the same screen can be produced from a command, a callback or a flow
// completion without replaying events.

func statusGlyph(s store.ExamStatus) string {
	switch s {
	case store.StatusPending:
		return "⏸️"
	case store.StatusActive:
		return "▶️"
	case store.StatusEnded:
		return "⏹️"
	default:
		return "❓"
	}
}

func renderExamList(exams []store.Exam) string {
	if len(exams) == 0 {
		return "You have no exams yet."
	}
	var b strings.Builder
	b.WriteString("📋 Your exams:\n\n")
	for _, e := range exams {
		fmt.Fprintf(&b, "%s %s (%s)\n", statusGlyph(e.Status), e.Name, e.Status)
	}
	return b.String()
}

func renderDeleteConfirm(e *store.Exam, questionCount, participantCount int) string {
	return fmt.Sprintf(
		"⚠️ Delete \"%s\"?\n\nThis removes %d question(s), %d participant(s) and all recorded answers. This cannot be undone.",
		e.Name, questionCount, participantCount,
	)
}

func renderLeaderboard(e *store.Exam, rows []report.LeaderboardRow) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📊 Results: %s\n\n", e.Name)
	if len(rows) == 0 {
		b.WriteString("No participants yet.")
		return b.String()
	}
	for _, r := range rows {
		medal := fmt.Sprintf("%d.", r.Rank)
		switch r.Rank {
		case 1:
			medal = "🥇"
		case 2:
			medal = "🥈"
		case 3:
			medal = "🥉"
		}
		fmt.Fprintf(&b, "%s %s (@%s) — %d/%d (%s)\n", medal, r.Name, r.Username, r.Correct, r.Total, r.Percentage)
	}
	return b.String()
}

func renderAnalytics(e *store.Exam, stats []report.QuestionStats) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📉 Question analytics: %s\n\n", e.Name)
	for i, st := range stats {
		fmt.Fprintf(&b, "Q%d. %s\n", i+1, st.Question.Text)
		if st.Answers == 0 {
			b.WriteString("   No answers yet (0.0% correct)\n\n")
			continue
		}
		for j, opt := range st.Question.Options {
			marker := "  "
			if j == st.Question.CorrectOption {
				marker = "✅"
			}
			fmt.Fprintf(&b, " %s %s: %d\n", marker, opt, st.Distribution[j])
		}
		fmt.Fprintf(&b, "   %.1f%% answered correctly\n\n", st.CorrectShare*100)
	}
	return b.String()
}

func renderPersonalResult(r *report.PersonalResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📈 %s — your result: %d/%d (%s)\n\n", r.Exam.Name, r.Correct, r.Total, r.Percentage)
	for i, q := range r.Questions {
		c := r.Cells[i]
		fmt.Fprintf(&b, "Q%d. %s\n", i+1, q.Text)
		switch {
		case !c.Answered:
			b.WriteString("   ❌ Not answered\n")
		case c.Correct:
			fmt.Fprintf(&b, "   ✅ %s\n", c.OptionText)
		default:
			fmt.Fprintf(&b, "   ❌ %s (correct: %s)\n", c.OptionText, q.Options[q.CorrectOption])
		}
		if q.Explanation != "" {
			fmt.Fprintf(&b, "   💡 %s\n", q.Explanation)
		}
	}
	return b.String()
}

func renderImportReport(r question.ImportReport) string {
	if r.Parsed == 0 {
		return "❌ No valid questions found in the file. Check the format and try again."
	}
	msg := fmt.Sprintf("✅ Imported %d question(s).", r.Added)
	if r.Failed > 0 {
		msg += fmt.Sprintf(" %d block(s) could not be saved.", r.Failed)
	}
	return msg
}

func renderUploadHelp() string {
	return strings.Join([]string{
		"📤 Send a .txt file with questions in this format:",
		"",
		"1. What is 2+2?",
		"A. 3",
		"B. 4",
		"C. 5",
		"Ans: B",
		"Explain: Basic addition",
		"",
		"2. Next question...",
		"",
		"Blocks are separated by blank lines. Explain is optional.",
	}, "\n")
}

func renderExamStarted(e *store.Exam) string {
	return fmt.Sprintf("📢 Exam \"%s\" has started! Tap below to join.", e.Name)
}

func renderExamEnded(e *store.Exam) string {
	return fmt.Sprintf("🏁 Exam \"%s\" has ended. Thanks for participating!", e.Name)
}
