package bot

import (
	"context"

	"quizbot/internal/store"
)

// Delivery adapts the Gateway to the notification and prompt hooks the
// exam lifecycle fans out through.
type Delivery struct {
	gw Gateway
}

func NewDelivery(gw Gateway) *Delivery {
	return &Delivery{gw: gw}
}

func (d *Delivery) NotifyGroupExamStarted(ctx context.Context, chatID int64, e *store.Exam) error {
	kb := joinKeyboard(e.ID)
	_, err := d.gw.SendMessage(ctx, chatID, renderExamStarted(e), kb)
	return err
}

func (d *Delivery) NotifyParticipantExamEnded(ctx context.Context, userID int64, e *store.Exam) error {
	kb := myResultKeyboard(e.ID)
	_, err := d.gw.SendMessage(ctx, userID, renderExamEnded(e), kb)
	return err
}

func (d *Delivery) PromptQuestion(ctx context.Context, userID int64, q *store.Question) (string, error) {
	return d.gw.SendPoll(ctx, userID, q.Text, q.Options)
}
