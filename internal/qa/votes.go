package qa

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/emilythestrangee/stackit/backend/internal/auth"
	domainerrors "github.com/emilythestrangee/stackit/backend/internal/domain/errors"
	"github.com/emilythestrangee/stackit/backend/internal/models"
	"github.com/emilythestrangee/stackit/backend/internal/store"
)

// VoteLedger keeps at most one vote per user and answer and derives tallies
// from the stored rows on every read.
type VoteLedger struct {
	store  store.Store
	retry  Retry
	logger *slog.Logger
}

func NewVoteLedger(st store.Store, retry Retry, logger *slog.Logger) *VoteLedger {
	return &VoteLedger{store: st, retry: retry, logger: ResolveLogger(logger)}
}

// CastVote records id's vote of value (1 or -1) on an answer. Casting the
// value already held retracts it. Any previous vote is deleted before the
// new one is inserted, both in one transaction; a unique-index collision with
// a concurrent cast reruns the whole transaction once.
//
// An anonymous caller changes nothing and gets ErrUnauthenticated.
func (l *VoteLedger) CastVote(ctx context.Context, id *auth.Identity, answerID, value int) (models.VoteResult, error) {
	if id == nil {
		return models.VoteResult{}, fmt.Errorf("cast vote: %w", domainerrors.ErrUnauthenticated)
	}
	if value != 1 && value != -1 {
		return models.VoteResult{}, fmt.Errorf("%w: vote value must be 1 or -1, got %d", domainerrors.ErrInvalidInput, value)
	}

	userVote, err := l.replace(ctx, id.UserID, answerID, value)
	if errors.Is(err, domainerrors.ErrConstraintViolation) {
		l.logger.Info("concurrent vote collided, retrying",
			"event", "qa_vote_retry",
			"module", module,
			"user_id", id.UserID,
			"answer_id", answerID,
		)
		userVote, err = l.replace(ctx, id.UserID, answerID, value)
	}
	if err != nil {
		l.logger.Warn("vote not recorded",
			"event", "qa_vote_failed",
			"module", module,
			"user_id", id.UserID,
			"answer_id", answerID,
			"error", err.Error(),
		)
		return models.VoteResult{}, err
	}

	tally, err := l.Tally(ctx, answerID)
	if err != nil {
		return models.VoteResult{}, err
	}
	return models.VoteResult{AnswerID: answerID, UserVote: userVote, Votes: tally}, nil
}

func (l *VoteLedger) replace(ctx context.Context, userID, answerID, value int) (int, error) {
	result := value
	err := l.store.Transaction(ctx, func(tx store.Store) error {
		if _, err := tx.GetAnswer(ctx, answerID); err != nil {
			return err
		}

		existing, err := tx.GetVote(ctx, userID, answerID)
		switch {
		case err == nil:
			if _, err := tx.DeleteVote(ctx, userID, answerID); err != nil {
				return fmt.Errorf("remove previous vote: %w", err)
			}
			if existing.Value == value {
				result = 0
				return nil
			}
		case !errors.Is(err, domainerrors.ErrNotFound):
			return err
		}

		vote := models.Vote{UserID: userID, AnswerID: answerID, Value: value}
		if err := tx.InsertVote(ctx, &vote); err != nil {
			return fmt.Errorf("insert vote: %w", err)
		}
		return nil
	})
	return result, err
}

// Tally sums the current votes on an answer.
func (l *VoteLedger) Tally(ctx context.Context, answerID int) (int, error) {
	sums, err := read(ctx, l.retry, l.logger, "tally", func(ctx context.Context) (map[int]int, error) {
		return l.store.SumVotes(ctx, answerID)
	})
	if err != nil {
		return 0, err
	}
	return sums[answerID], nil
}

// UserVote is userID's vote on an answer: -1, 1, or 0 when there is none.
func (l *VoteLedger) UserVote(ctx context.Context, userID, answerID int) (int, error) {
	votes, err := read(ctx, l.retry, l.logger, "user vote", func(ctx context.Context) (map[int]int, error) {
		return l.store.UserVotes(ctx, userID, answerID)
	})
	if err != nil {
		return 0, err
	}
	return votes[answerID], nil
}

// views decorates answers with tallies and, for a signed-in viewer, their own
// votes.
func (l *VoteLedger) views(ctx context.Context, viewer *auth.Identity, answers []models.Answer) ([]models.AnswerView, error) {
	ids := make([]int, len(answers))
	for i, a := range answers {
		ids[i] = a.ID
	}

	sums, err := read(ctx, l.retry, l.logger, "tallies", func(ctx context.Context) (map[int]int, error) {
		return l.store.SumVotes(ctx, ids...)
	})
	if err != nil {
		return nil, err
	}
	mine := map[int]int{}
	if viewer != nil {
		mine, err = read(ctx, l.retry, l.logger, "viewer votes", func(ctx context.Context) (map[int]int, error) {
			return l.store.UserVotes(ctx, viewer.UserID, ids...)
		})
		if err != nil {
			return nil, err
		}
	}

	out := make([]models.AnswerView, len(answers))
	for i, a := range answers {
		out[i] = models.AnswerView{Answer: a, Votes: sums[a.ID], UserVote: mine[a.ID]}
	}
	return out, nil
}
