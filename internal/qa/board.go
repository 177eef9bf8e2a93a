package qa

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/emilythestrangee/stackit/backend/internal/auth"
	domainerrors "github.com/emilythestrangee/stackit/backend/internal/domain/errors"
	"github.com/emilythestrangee/stackit/backend/internal/models"
	"github.com/emilythestrangee/stackit/backend/internal/store"
)

const (
	maxTitleLength   = 300
	maxTags          = 5
	maxCommentLength = 2000
	defaultListLimit = 50
	maxListLimit     = 100

	SortRecent = "recent"
	SortTop    = "top"
)

// emptyDocument is what the rich-text editor submits when nothing was typed.
const emptyDocument = "<p></p>"

// ListQuery selects questions for a listing.
type ListQuery struct {
	Search   string
	Tag      string
	AuthorID int
	Sort     string // SortRecent (default) or SortTop
	Limit    int
}

// Enqueuer accepts answer-posted events without blocking.
type Enqueuer interface {
	Enqueue(ev AnswerPosted) bool
}

// Board serves questions, answers and comments.
type Board struct {
	store  store.Store
	votes  *VoteLedger
	outbox Enqueuer
	retry  Retry
	logger *slog.Logger
}

func NewBoard(st store.Store, votes *VoteLedger, outbox Enqueuer, retry Retry, logger *slog.Logger) *Board {
	return &Board{store: st, votes: votes, outbox: outbox, retry: retry, logger: ResolveLogger(logger)}
}

// Questions

func (b *Board) Ask(ctx context.Context, id *auth.Identity, req models.CreateQuestionRequest) (models.Question, error) {
	if id == nil {
		return models.Question{}, fmt.Errorf("ask question: %w", domainerrors.ErrUnauthenticated)
	}
	title := strings.TrimSpace(req.Title)
	switch {
	case title == "":
		return models.Question{}, fmt.Errorf("%w: title is required", domainerrors.ErrInvalidInput)
	case len([]rune(title)) > maxTitleLength:
		return models.Question{}, fmt.Errorf("%w: title must be at most %d characters", domainerrors.ErrInvalidInput, maxTitleLength)
	}
	tags, err := normalizeTags(req.Tags)
	if err != nil {
		return models.Question{}, err
	}

	question := models.Question{
		Title:       title,
		Description: strings.TrimSpace(req.Description),
		Tags:        tags,
		AuthorID:    id.UserID,
		Author:      id.Username,
	}
	if err := b.store.CreateQuestion(ctx, &question); err != nil {
		return models.Question{}, err
	}
	b.logger.Info("question asked",
		"event", "qa_question_created",
		"module", module,
		"question_id", question.ID,
		"user_id", id.UserID,
	)
	return question, nil
}

func normalizeTags(raw []string) ([]string, error) {
	tags := make([]string, 0, len(raw))
	for _, tag := range raw {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" || slices.Contains(tags, tag) {
			continue
		}
		tags = append(tags, tag)
	}
	if len(tags) > maxTags {
		return nil, fmt.Errorf("%w: at most %d tags", domainerrors.ErrInvalidInput, maxTags)
	}
	return tags, nil
}

// Question returns a question with its summary counts and its answers as
// viewer sees them. viewer may be nil.
func (b *Board) Question(ctx context.Context, viewer *auth.Identity, questionID int) (models.QuestionDetail, error) {
	question, err := read(ctx, b.retry, b.logger, "get question", func(ctx context.Context) (models.Question, error) {
		return b.store.GetQuestion(ctx, questionID)
	})
	if err != nil {
		return models.QuestionDetail{}, err
	}
	summaries, err := b.summarize(ctx, []models.Question{question})
	if err != nil {
		return models.QuestionDetail{}, err
	}
	answers, err := b.answerViews(ctx, viewer, questionID)
	if err != nil {
		return models.QuestionDetail{}, err
	}
	return models.QuestionDetail{QuestionSummary: summaries[0], AnswerViews: answers}, nil
}

func (b *Board) ListQuestions(ctx context.Context, q ListQuery) ([]models.QuestionSummary, error) {
	switch q.Sort {
	case "", SortRecent, SortTop:
	default:
		return nil, fmt.Errorf("%w: unknown sort %q", domainerrors.ErrInvalidInput, q.Sort)
	}
	switch {
	case q.Limit < 0:
		return nil, fmt.Errorf("%w: limit must not be negative", domainerrors.ErrInvalidInput)
	case q.Limit == 0:
		q.Limit = defaultListLimit
	case q.Limit > maxListLimit:
		q.Limit = maxListLimit
	}

	query := store.QuestionQuery{
		Search:   q.Search,
		Tag:      strings.ToLower(strings.TrimSpace(q.Tag)),
		AuthorID: q.AuthorID,
		TopFirst: q.Sort == SortTop,
		Limit:    q.Limit,
	}
	questions, err := read(ctx, b.retry, b.logger, "list questions", func(ctx context.Context) ([]models.Question, error) {
		return b.store.ListQuestions(ctx, query)
	})
	if err != nil {
		return nil, err
	}
	return b.summarize(ctx, questions)
}

func (b *Board) summarize(ctx context.Context, questions []models.Question) ([]models.QuestionSummary, error) {
	ids := make([]int, len(questions))
	for i, q := range questions {
		ids[i] = q.ID
	}
	stats, err := read(ctx, b.retry, b.logger, "question stats", func(ctx context.Context) (map[int]store.QuestionStats, error) {
		return b.store.QuestionStats(ctx, ids...)
	})
	if err != nil {
		return nil, err
	}

	out := make([]models.QuestionSummary, len(questions))
	for i, q := range questions {
		st := stats[q.ID]
		out[i] = models.QuestionSummary{Question: q, Answers: st.Answers, Votes: st.Votes, HasAccepted: st.HasAccepted}
	}
	return out, nil
}

// DeleteQuestion removes a question with all its answers, votes and
// comments. Admins only.
func (b *Board) DeleteQuestion(ctx context.Context, id *auth.Identity, questionID int) error {
	if id == nil {
		return fmt.Errorf("delete question: %w", domainerrors.ErrUnauthenticated)
	}
	err := b.store.Transaction(ctx, func(tx store.Store) error {
		question, err := tx.GetQuestion(ctx, questionID)
		if err != nil {
			return err
		}
		if !auth.CanDeleteQuestion(id, question) {
			return fmt.Errorf("delete question %d: %w", questionID, domainerrors.ErrUnauthorized)
		}
		return tx.DeleteQuestion(ctx, questionID)
	})
	if err != nil {
		return err
	}
	b.logger.Info("question deleted",
		"event", "qa_question_deleted",
		"module", module,
		"question_id", questionID,
		"user_id", id.UserID,
	)
	return nil
}

// Answers

// PostAnswer stores an answer and queues the notification for the question's
// author. The answer stands whatever happens to the notification.
func (b *Board) PostAnswer(ctx context.Context, id *auth.Identity, questionID int, content string) (models.Answer, error) {
	if id == nil {
		return models.Answer{}, fmt.Errorf("post answer: %w", domainerrors.ErrUnauthenticated)
	}
	content = strings.TrimSpace(content)
	if content == "" || content == emptyDocument {
		return models.Answer{}, fmt.Errorf("%w: answer content is required", domainerrors.ErrInvalidInput)
	}

	question, err := b.store.GetQuestion(ctx, questionID)
	if err != nil {
		return models.Answer{}, err
	}
	answer := models.Answer{
		QuestionID: questionID,
		Content:    content,
		AuthorID:   id.UserID,
		Author:     id.Username,
	}
	if err := b.store.CreateAnswer(ctx, &answer); err != nil {
		return models.Answer{}, err
	}
	b.logger.Info("answer posted",
		"event", "qa_answer_created",
		"module", module,
		"answer_id", answer.ID,
		"question_id", questionID,
		"user_id", id.UserID,
	)

	if b.outbox != nil {
		b.outbox.Enqueue(AnswerPosted{Question: question, Answerer: *id})
	}
	return answer, nil
}

// ListAnswers returns the answers of a question, newest first, as viewer
// sees them.
func (b *Board) ListAnswers(ctx context.Context, viewer *auth.Identity, questionID int) ([]models.AnswerView, error) {
	if _, err := read(ctx, b.retry, b.logger, "get question", func(ctx context.Context) (models.Question, error) {
		return b.store.GetQuestion(ctx, questionID)
	}); err != nil {
		return nil, err
	}
	return b.answerViews(ctx, viewer, questionID)
}

func (b *Board) answerViews(ctx context.Context, viewer *auth.Identity, questionID int) ([]models.AnswerView, error) {
	answers, err := read(ctx, b.retry, b.logger, "list answers", func(ctx context.Context) ([]models.Answer, error) {
		return b.store.ListAnswers(ctx, questionID)
	})
	if err != nil {
		return nil, err
	}
	return b.votes.views(ctx, viewer, answers)
}

func (b *Board) DeleteAnswer(ctx context.Context, id *auth.Identity, answerID int) error {
	if id == nil {
		return fmt.Errorf("delete answer: %w", domainerrors.ErrUnauthenticated)
	}
	return b.store.Transaction(ctx, func(tx store.Store) error {
		answer, err := tx.GetAnswer(ctx, answerID)
		if err != nil {
			return err
		}
		if !auth.CanDeleteAnswer(id, answer) {
			return fmt.Errorf("delete answer %d: %w", answerID, domainerrors.ErrUnauthorized)
		}
		return tx.DeleteAnswer(ctx, answerID)
	})
}

// Comments

func (b *Board) AddComment(ctx context.Context, id *auth.Identity, answerID int, content string) (models.Comment, error) {
	if id == nil {
		return models.Comment{}, fmt.Errorf("add comment: %w", domainerrors.ErrUnauthenticated)
	}
	content = strings.TrimSpace(content)
	switch {
	case content == "":
		return models.Comment{}, fmt.Errorf("%w: comment content is required", domainerrors.ErrInvalidInput)
	case len([]rune(content)) > maxCommentLength:
		return models.Comment{}, fmt.Errorf("%w: comment must be at most %d characters", domainerrors.ErrInvalidInput, maxCommentLength)
	}

	if _, err := b.store.GetAnswer(ctx, answerID); err != nil {
		return models.Comment{}, err
	}
	comment := models.Comment{AnswerID: answerID, UserID: id.UserID, Content: content}
	if err := b.store.CreateComment(ctx, &comment); err != nil {
		return models.Comment{}, err
	}
	return comment, nil
}

// ListComments returns an answer's comments, oldest first.
func (b *Board) ListComments(ctx context.Context, answerID int) ([]models.Comment, error) {
	if _, err := read(ctx, b.retry, b.logger, "get answer", func(ctx context.Context) (models.Answer, error) {
		return b.store.GetAnswer(ctx, answerID)
	}); err != nil {
		return nil, err
	}
	return read(ctx, b.retry, b.logger, "list comments", func(ctx context.Context) ([]models.Comment, error) {
		return b.store.ListComments(ctx, answerID)
	})
}

func (b *Board) DeleteComment(ctx context.Context, id *auth.Identity, commentID int) error {
	if id == nil {
		return fmt.Errorf("delete comment: %w", domainerrors.ErrUnauthenticated)
	}
	return b.store.Transaction(ctx, func(tx store.Store) error {
		comment, err := tx.GetComment(ctx, commentID)
		if err != nil {
			return err
		}
		if !auth.CanDeleteComment(id, comment) {
			return fmt.Errorf("delete comment %d: %w", commentID, domainerrors.ErrUnauthorized)
		}
		return tx.DeleteComment(ctx, commentID)
	})
}

// Users

// Profile returns a user's public profile with the questions they asked.
func (b *Board) Profile(ctx context.Context, userID int) (models.UserProfile, error) {
	user, err := read(ctx, b.retry, b.logger, "get user", func(ctx context.Context) (models.User, error) {
		return b.store.GetUser(ctx, userID)
	})
	if err != nil {
		return models.UserProfile{}, err
	}
	questions, err := b.ListQuestions(ctx, ListQuery{AuthorID: userID, Limit: maxListLimit})
	if err != nil {
		return models.UserProfile{}, err
	}
	return models.UserProfile{User: user, Questions: questions}, nil
}
