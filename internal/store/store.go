// Package store defines the persistence port the Q&A services run against.
//
// Adapters translate their driver errors into the sentinels of
// internal/domain/errors: a missing row is ErrNotFound, a unique index
// collision is ErrConstraintViolation and a transient infrastructure failure
// is ErrStoreUnavailable.
package store

import (
	"context"

	"github.com/emilythestrangee/stackit/backend/internal/models"
)

// QuestionQuery filters ListQuestions. Results are newest first, or by
// total answer score when TopFirst is set, with recency breaking ties.
type QuestionQuery struct {
	Search   string // case-insensitive match on title or description
	Tag      string // exact match on one of the question's normalized tags
	AuthorID int
	TopFirst bool
	Limit    int // 0 means no limit
}

// QuestionStats are the per-question aggregates used by listings.
type QuestionStats struct {
	Answers     int
	Votes       int
	HasAccepted bool
}

type Store interface {
	// Transaction runs fn atomically. fn must only use the Store it is given;
	// returning an error rolls every write back.
	Transaction(ctx context.Context, fn func(tx Store) error) error

	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id int) (models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)

	CreateQuestion(ctx context.Context, question *models.Question) error
	GetQuestion(ctx context.Context, id int) (models.Question, error)
	// LockQuestion reads a question and holds a write lock on it until the
	// surrounding transaction ends.
	LockQuestion(ctx context.Context, id int) (models.Question, error)
	ListQuestions(ctx context.Context, query QuestionQuery) ([]models.Question, error)
	QuestionStats(ctx context.Context, questionIDs ...int) (map[int]QuestionStats, error)
	// DeleteQuestion removes the question together with its answers and
	// their votes and comments.
	DeleteQuestion(ctx context.Context, id int) error

	CreateAnswer(ctx context.Context, answer *models.Answer) error
	GetAnswer(ctx context.Context, id int) (models.Answer, error)
	ListAnswers(ctx context.Context, questionID int) ([]models.Answer, error)
	// DeleteAnswer removes the answer with its votes and comments.
	DeleteAnswer(ctx context.Context, id int) error
	// AcceptAnswer clears is_accepted on every other answer of the question
	// and sets it on answerID. It returns the number of rows touched.
	AcceptAnswer(ctx context.Context, questionID, answerID int) (int64, error)

	GetVote(ctx context.Context, userID, answerID int) (models.Vote, error)
	InsertVote(ctx context.Context, vote *models.Vote) error
	DeleteVote(ctx context.Context, userID, answerID int) (int64, error)
	// SumVotes returns the tally per answer; answers without votes are absent.
	SumVotes(ctx context.Context, answerIDs ...int) (map[int]int, error)
	// UserVotes returns userID's vote per answer; answers without one are absent.
	UserVotes(ctx context.Context, userID int, answerIDs ...int) (map[int]int, error)

	CreateComment(ctx context.Context, comment *models.Comment) error
	GetComment(ctx context.Context, id int) (models.Comment, error)
	ListComments(ctx context.Context, answerID int) ([]models.Comment, error)
	DeleteComment(ctx context.Context, id int) error

	CreateNotification(ctx context.Context, notification *models.Notification) error
	GetNotification(ctx context.Context, id int) (models.Notification, error)
	ListNotifications(ctx context.Context, userID, limit int) ([]models.Notification, error)
	CountUnread(ctx context.Context, userID int) (int, error)
	MarkNotificationRead(ctx context.Context, id int) (int64, error)
}
