package qa

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/emilythestrangee/stackit/backend/internal/auth"
	domainerrors "github.com/emilythestrangee/stackit/backend/internal/domain/errors"
	"github.com/emilythestrangee/stackit/backend/internal/models"
	"github.com/emilythestrangee/stackit/backend/internal/store"
)

// AcceptanceController is the only writer of Answer.IsAccepted.
type AcceptanceController struct {
	store  store.Store
	logger *slog.Logger
}

func NewAcceptanceController(st store.Store, logger *slog.Logger) *AcceptanceController {
	return &AcceptanceController{store: st, logger: ResolveLogger(logger)}
}

// AcceptAnswer marks answerID as the accepted answer of questionID and
// clears the flag on every other answer of that question. The question row
// is locked first so concurrent accepts on it run one after another; the
// last one to commit wins. Re-accepting the accepted answer is a no-op.
func (c *AcceptanceController) AcceptAnswer(ctx context.Context, id *auth.Identity, questionID, answerID int) (models.Answer, error) {
	if id == nil {
		return models.Answer{}, fmt.Errorf("accept answer: %w", domainerrors.ErrUnauthenticated)
	}

	var accepted models.Answer
	err := c.store.Transaction(ctx, func(tx store.Store) error {
		question, err := tx.LockQuestion(ctx, questionID)
		if err != nil {
			return err
		}
		if !auth.CanAcceptAnswer(id, question) {
			return fmt.Errorf("only the author of question %d can accept an answer: %w", questionID, domainerrors.ErrUnauthorized)
		}

		answer, err := tx.GetAnswer(ctx, answerID)
		if err != nil {
			return err
		}
		if answer.QuestionID != questionID {
			return fmt.Errorf("answer %d does not belong to question %d: %w", answerID, questionID, domainerrors.ErrNotFound)
		}

		if _, err := tx.AcceptAnswer(ctx, questionID, answerID); err != nil {
			return err
		}
		answer.IsAccepted = true
		accepted = answer
		return nil
	})
	if err != nil {
		c.logger.Warn("answer not accepted",
			"event", "qa_accept_failed",
			"module", module,
			"user_id", id.UserID,
			"question_id", questionID,
			"answer_id", answerID,
			"error", err.Error(),
		)
		return models.Answer{}, err
	}

	c.logger.Info("answer accepted",
		"event", "qa_answer_accepted",
		"module", module,
		"user_id", id.UserID,
		"question_id", questionID,
		"answer_id", answerID,
	)
	return accepted, nil
}
