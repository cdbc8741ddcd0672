package exam

import (
	"context"
	"errors"
	"fmt"

	"quizbot/internal/store"
)

// RecordAnswer ingests one poll response identified by the correlation
// token handed out at delivery time. The transport fires these for
// retractions and for chats we never prompted, so everything that cannot
// become a scored answer is discarded without error:
//
//   - unknown token (question deleted, or a poll we did not send)
//   - exam no longer active
//   - retraction (empty option list)
//   - duplicate (first recorded answer wins)
//
// The returned flag reports whether a new answer row was written.
func (s *Service) RecordAnswer(ctx context.Context, pollToken string, userID int64, optionIdxs []int) (bool, error) {
	if pollToken == "" || len(optionIdxs) == 0 {
		return false, nil
	}

	q, err := s.store.GetQuestionByPollID(ctx, pollToken)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("resolve poll token: %w", err)
	}

	e, err := s.store.GetExam(ctx, q.ExamID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("load exam: %w", err)
	}
	if e.Status != store.StatusActive {
		return false, nil
	}

	selected := optionIdxs[0]
	if selected < 0 || selected >= len(q.Options) {
		return false, nil
	}

	inserted, err := s.store.InsertAnswer(ctx, &store.Answer{
		UserID:         userID,
		ExamID:         e.ID,
		QuestionID:     q.ID,
		SelectedOption: selected,
		AnsweredAt:     s.now(),
	})
	if err != nil {
		return false, fmt.Errorf("record answer: %w", err)
	}
	return inserted, nil
}
