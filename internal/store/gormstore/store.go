// Package gormstore implements store.Store on gorm, for both the postgres
// and the sqlite dialects.
package gormstore

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	domainerrors "github.com/emilythestrangee/stackit/backend/internal/domain/errors"
	"github.com/emilythestrangee/stackit/backend/internal/models"
	"github.com/emilythestrangee/stackit/backend/internal/store"
)

type Store struct {
	db      *gorm.DB
	timeout time.Duration
	logger  *slog.Logger
}

// New wraps db. timeout bounds every call (and every transaction); zero
// leaves the caller's context untouched.
func New(db *gorm.DB, timeout time.Duration, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, timeout: timeout, logger: logger}
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

func (s *Store) Transaction(ctx context.Context, fn func(tx store.Store) error) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx, timeout: s.timeout, logger: s.logger})
	})
	return s.translate(err, "transaction")
}

// Users

func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.translate(s.db.WithContext(ctx).Create(user).Error, "create user")
}

func (s *Store) GetUser(ctx context.Context, id int) (models.User, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	var user models.User
	err := s.db.WithContext(ctx).First(&user, id).Error
	return user, s.translate(err, "get user", "user_id", id)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&user).Error
	return user, s.translate(err, "get user by email")
}

// Questions

func (s *Store) CreateQuestion(ctx context.Context, question *models.Question) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.translate(s.db.WithContext(ctx).Create(question).Error, "create question")
}

func (s *Store) GetQuestion(ctx context.Context, id int) (models.Question, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	var question models.Question
	err := s.db.WithContext(ctx).First(&question, id).Error
	return question, s.translate(err, "get question", "question_id", id)
}

func (s *Store) LockQuestion(ctx context.Context, id int) (models.Question, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	var question models.Question
	err := s.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&question, id).
		Error
	return question, s.translate(err, "lock question", "question_id", id)
}

func (s *Store) ListQuestions(ctx context.Context, query store.QuestionQuery) ([]models.Question, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	tx := s.db.WithContext(ctx).Model(&models.Question{})
	if search := strings.ToLower(strings.TrimSpace(query.Search)); search != "" {
		pattern := "%" + search + "%"
		tx = tx.Where("LOWER(questions.title) LIKE ? OR LOWER(questions.description) LIKE ?", pattern, pattern)
	}
	if tag := strings.TrimSpace(query.Tag); tag != "" {
		pattern, err := tagPattern(tag)
		if err != nil {
			return nil, fmt.Errorf("%w: tag %q", domainerrors.ErrInvalidInput, tag)
		}
		tx = tx.Where(`questions.tags LIKE ? ESCAPE '\'`, pattern)
	}
	if query.AuthorID != 0 {
		tx = tx.Where("questions.author_id = ?", query.AuthorID)
	}
	if query.TopFirst {
		scores := s.db.Session(&gorm.Session{NewDB: true}).Table("votes").
			Select("answers.question_id AS question_id, SUM(votes.value) AS score").
			Joins("JOIN answers ON answers.id = votes.answer_id").
			Group("answers.question_id")
		tx = tx.Select("questions.*").
			Joins("LEFT JOIN (?) AS scores ON scores.question_id = questions.id", scores).
			Order("COALESCE(scores.score, 0) desc")
	}
	if query.Limit > 0 {
		tx = tx.Limit(query.Limit)
	}

	var questions []models.Question
	err := tx.Order("questions.created_at desc").Order("questions.id desc").Find(&questions).Error
	return questions, s.translate(err, "list questions")
}

// tagPattern matches one element of the JSON array the tags column holds.
func tagPattern(tag string) (string, error) {
	encoded, err := json.Marshal(tag)
	if err != nil {
		return "", err
	}
	escaped := strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`).Replace(string(encoded))
	return "%" + escaped + "%", nil
}

func (s *Store) QuestionStats(ctx context.Context, questionIDs ...int) (map[int]store.QuestionStats, error) {
	stats := make(map[int]store.QuestionStats, len(questionIDs))
	if len(questionIDs) == 0 {
		return stats, nil
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var answerRows []struct {
		QuestionID int
		Answers    int
		Accepted   int
	}
	err := s.db.WithContext(ctx).Model(&models.Answer{}).
		Select("question_id, COUNT(*) AS answers, SUM(CASE WHEN is_accepted THEN 1 ELSE 0 END) AS accepted").
		Where("question_id IN ?", questionIDs).
		Group("question_id").
		Scan(&answerRows).
		Error
	if err != nil {
		return nil, s.translate(err, "question answer stats")
	}

	var voteRows []struct {
		QuestionID int
		Total      int
	}
	err = s.db.WithContext(ctx).Table("votes").
		Select("answers.question_id AS question_id, COALESCE(SUM(votes.value), 0) AS total").
		Joins("JOIN answers ON answers.id = votes.answer_id").
		Where("answers.question_id IN ?", questionIDs).
		Group("answers.question_id").
		Scan(&voteRows).
		Error
	if err != nil {
		return nil, s.translate(err, "question vote stats")
	}

	for _, row := range answerRows {
		stats[row.QuestionID] = store.QuestionStats{Answers: row.Answers, HasAccepted: row.Accepted > 0}
	}
	for _, row := range voteRows {
		st := stats[row.QuestionID]
		st.Votes = row.Total
		stats[row.QuestionID] = st
	}
	return stats, nil
}

func (s *Store) DeleteQuestion(ctx context.Context, id int) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		answerIDs := tx.Model(&models.Answer{}).Select("id").Where("question_id = ?", id)
		if err := tx.Where("answer_id IN (?)", answerIDs).Delete(&models.Vote{}).Error; err != nil {
			return fmt.Errorf("votes: %w", err)
		}
		if err := tx.Where("answer_id IN (?)", answerIDs).Delete(&models.Comment{}).Error; err != nil {
			return fmt.Errorf("comments: %w", err)
		}
		if err := tx.Where("question_id = ?", id).Delete(&models.Answer{}).Error; err != nil {
			return fmt.Errorf("answers: %w", err)
		}
		res := tx.Delete(&models.Question{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("question %d: %w", id, domainerrors.ErrNotFound)
		}
		return nil
	})
	return s.translate(err, "delete question", "question_id", id)
}

// Answers

func (s *Store) CreateAnswer(ctx context.Context, answer *models.Answer) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.translate(s.db.WithContext(ctx).Create(answer).Error, "create answer")
}

func (s *Store) GetAnswer(ctx context.Context, id int) (models.Answer, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	var answer models.Answer
	err := s.db.WithContext(ctx).First(&answer, id).Error
	return answer, s.translate(err, "get answer", "answer_id", id)
}

func (s *Store) ListAnswers(ctx context.Context, questionID int) ([]models.Answer, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	var answers []models.Answer
	err := s.db.WithContext(ctx).
		Where("question_id = ?", questionID).
		Order("created_at desc").Order("id desc").
		Find(&answers).
		Error
	return answers, s.translate(err, "list answers", "question_id", questionID)
}

func (s *Store) DeleteAnswer(ctx context.Context, id int) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("answer_id = ?", id).Delete(&models.Vote{}).Error; err != nil {
			return fmt.Errorf("votes: %w", err)
		}
		if err := tx.Where("answer_id = ?", id).Delete(&models.Comment{}).Error; err != nil {
			return fmt.Errorf("comments: %w", err)
		}
		res := tx.Delete(&models.Answer{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("answer %d: %w", id, domainerrors.ErrNotFound)
		}
		return nil
	})
	return s.translate(err, "delete answer", "answer_id", id)
}

// AcceptAnswer checks the target first, then runs the unset before the set
// so the partial unique index on accepted answers never sees two accepted
// rows for one question. All three statements share one transaction.
func (s *Store) AcceptAnswer(ctx context.Context, questionID, answerID int) (int64, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var touched int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var target int64
		err := tx.Model(&models.Answer{}).
			Where("id = ? AND question_id = ?", answerID, questionID).
			Count(&target).
			Error
		if err != nil {
			return err
		}
		if target == 0 {
			return fmt.Errorf("answer %d of question %d: %w", answerID, questionID, domainerrors.ErrNotFound)
		}

		cleared := tx.Model(&models.Answer{}).
			Where("question_id = ? AND id <> ? AND is_accepted = ?", questionID, answerID, true).
			Update("is_accepted", false)
		if cleared.Error != nil {
			return fmt.Errorf("clear accepted: %w", cleared.Error)
		}
		set := tx.Model(&models.Answer{}).
			Where("id = ?", answerID).
			Update("is_accepted", true)
		if set.Error != nil {
			return set.Error
		}
		touched = cleared.RowsAffected + set.RowsAffected
		return nil
	})
	if err != nil {
		return 0, s.translate(err, "accept answer", "question_id", questionID, "answer_id", answerID)
	}
	return touched, nil
}

// Votes

func (s *Store) GetVote(ctx context.Context, userID, answerID int) (models.Vote, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	var vote models.Vote
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND answer_id = ?", userID, answerID).
		First(&vote).
		Error
	return vote, s.translate(err, "get vote", "user_id", userID, "answer_id", answerID)
}

func (s *Store) InsertVote(ctx context.Context, vote *models.Vote) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	err := s.db.WithContext(ctx).Create(vote).Error
	return s.translate(err, "insert vote", "user_id", vote.UserID, "answer_id", vote.AnswerID)
}

func (s *Store) DeleteVote(ctx context.Context, userID, answerID int) (int64, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	res := s.db.WithContext(ctx).
		Where("user_id = ? AND answer_id = ?", userID, answerID).
		Delete(&models.Vote{})
	return res.RowsAffected, s.translate(res.Error, "delete vote", "user_id", userID, "answer_id", answerID)
}

type answerValue struct {
	AnswerID int
	Total    int
}

func (s *Store) SumVotes(ctx context.Context, answerIDs ...int) (map[int]int, error) {
	tallies := make(map[int]int, len(answerIDs))
	if len(answerIDs) == 0 {
		return tallies, nil
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var rows []answerValue
	err := s.db.WithContext(ctx).Model(&models.Vote{}).
		Select("answer_id, COALESCE(SUM(value), 0) AS total").
		Where("answer_id IN ?", answerIDs).
		Group("answer_id").
		Scan(&rows).
		Error
	if err != nil {
		return nil, s.translate(err, "sum votes")
	}
	for _, row := range rows {
		tallies[row.AnswerID] = row.Total
	}
	return tallies, nil
}

func (s *Store) UserVotes(ctx context.Context, userID int, answerIDs ...int) (map[int]int, error) {
	votes := make(map[int]int, len(answerIDs))
	if len(answerIDs) == 0 {
		return votes, nil
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var rows []models.Vote
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND answer_id IN ?", userID, answerIDs).
		Find(&rows).
		Error
	if err != nil {
		return nil, s.translate(err, "user votes", "user_id", userID)
	}
	for _, row := range rows {
		votes[row.AnswerID] = row.Value
	}
	return votes, nil
}

// Comments

func (s *Store) CreateComment(ctx context.Context, comment *models.Comment) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.translate(s.db.WithContext(ctx).Create(comment).Error, "create comment")
}

func (s *Store) GetComment(ctx context.Context, id int) (models.Comment, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	var comment models.Comment
	err := s.db.WithContext(ctx).First(&comment, id).Error
	return comment, s.translate(err, "get comment", "comment_id", id)
}

func (s *Store) ListComments(ctx context.Context, answerID int) ([]models.Comment, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	var comments []models.Comment
	err := s.db.WithContext(ctx).
		Where("answer_id = ?", answerID).
		Order("created_at asc").Order("id asc").
		Find(&comments).
		Error
	return comments, s.translate(err, "list comments", "answer_id", answerID)
}

func (s *Store) DeleteComment(ctx context.Context, id int) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	res := s.db.WithContext(ctx).Delete(&models.Comment{}, id)
	if res.Error != nil {
		return s.translate(res.Error, "delete comment", "comment_id", id)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("comment %d: %w", id, domainerrors.ErrNotFound)
	}
	return nil
}

// Notifications

func (s *Store) CreateNotification(ctx context.Context, notification *models.Notification) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	err := s.db.WithContext(ctx).Create(notification).Error
	return s.translate(err, "create notification", "user_id", notification.UserID)
}

func (s *Store) GetNotification(ctx context.Context, id int) (models.Notification, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	var notification models.Notification
	err := s.db.WithContext(ctx).First(&notification, id).Error
	return notification, s.translate(err, "get notification", "notification_id", id)
}

func (s *Store) ListNotifications(ctx context.Context, userID, limit int) ([]models.Notification, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	tx := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").Order("id desc")
	if limit > 0 {
		tx = tx.Limit(limit)
	}
	var notifications []models.Notification
	err := tx.Find(&notifications).Error
	return notifications, s.translate(err, "list notifications", "user_id", userID)
}

func (s *Store) CountUnread(ctx context.Context, userID int) (int, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND read = ?", userID, false).
		Count(&count).
		Error
	return int(count), s.translate(err, "count unread", "user_id", userID)
}

func (s *Store) MarkNotificationRead(ctx context.Context, id int) (int64, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	res := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ? AND read = ?", id, false).
		Update("read", true)
	return res.RowsAffected, s.translate(res.Error, "mark notification read", "notification_id", id)
}

// translate maps driver errors onto the domain sentinels and logs anything
// that is not a plain miss.
func (s *Store) translate(err error, op string, attrs ...any) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%s: %w", op, domainerrors.ErrNotFound)
	case errors.Is(err, domainerrors.ErrNotFound),
		errors.Is(err, domainerrors.ErrConstraintViolation),
		errors.Is(err, domainerrors.ErrStoreUnavailable),
		errors.Is(err, domainerrors.ErrUnauthorized),
		errors.Is(err, domainerrors.ErrUnauthenticated),
		errors.Is(err, domainerrors.ErrInvalidInput):
		// already a domain error, typically returned from inside a transaction
		return err
	case isUniqueViolation(err):
		return fmt.Errorf("%s: %w", op, domainerrors.ErrConstraintViolation)
	case isUnavailable(err):
		s.logger.Warn("store call failed transiently",
			append([]any{"event", "store_unavailable", "op", op, "error", err.Error()}, attrs...)...)
		return fmt.Errorf("%s: %w: %v", op, domainerrors.ErrStoreUnavailable, err)
	}
	s.logger.Error("store call failed",
		append([]any{"event", "store_failed", "op", op, "error", err.Error()}, attrs...)...)
	return fmt.Errorf("%s: %w", op, err)
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func isUnavailable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, driver.ErrBadConn) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// connection exceptions, serialization failures, deadlocks, shutdowns
		return strings.HasPrefix(pgErr.Code, "08") ||
			pgErr.Code == "40001" || pgErr.Code == "40P01" ||
			strings.HasPrefix(pgErr.Code, "57P")
	}
	if pgconn.Timeout(err) || pgconn.SafeToRetry(err) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY")
}

var _ store.Store = (*Store)(nil)
