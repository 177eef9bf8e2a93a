// Package memory is an in-process store.Store used by unit tests and local
// experiments. A transaction holds the store's lock for its whole duration
// and restores a snapshot when it fails.
package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	domainerrors "github.com/emilythestrangee/stackit/backend/internal/domain/errors"
	"github.com/emilythestrangee/stackit/backend/internal/models"
	"github.com/emilythestrangee/stackit/backend/internal/store"
)

type voteKey struct {
	userID   int
	answerID int
}

type state struct {
	seq           int
	users         map[int]models.User
	questions     map[int]models.Question
	answers       map[int]models.Answer
	votes         map[voteKey]models.Vote
	comments      map[int]models.Comment
	notifications map[int]models.Notification
	now           func() time.Time
}

func (s *state) clone() *state {
	return &state{
		seq:           s.seq,
		users:         maps.Clone(s.users),
		questions:     maps.Clone(s.questions),
		answers:       maps.Clone(s.answers),
		votes:         maps.Clone(s.votes),
		comments:      maps.Clone(s.comments),
		notifications: maps.Clone(s.notifications),
		now:           s.now,
	}
}

type Store struct {
	mu    sync.Mutex
	state *state
}

func New() *Store {
	return &Store{state: &state{
		users:         make(map[int]models.User),
		questions:     make(map[int]models.Question),
		answers:       make(map[int]models.Answer),
		votes:         make(map[voteKey]models.Vote),
		comments:      make(map[int]models.Comment),
		notifications: make(map[int]models.Notification),
		now:           func() time.Time { return time.Now().UTC() },
	}}
}

// SetClock replaces the timestamp source; tests use it to order rows.
func (m *Store) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.now = now
}

func (m *Store) Transaction(ctx context.Context, fn func(tx store.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (&tx{s: m.state}).Transaction(ctx, fn)
}

func lock[T any](m *Store, fn func(t *tx) (T, error)) (T, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(&tx{s: m.state})
}

func lockErr(m *Store, fn func(t *tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(&tx{s: m.state})
}

func (m *Store) CreateUser(ctx context.Context, user *models.User) error {
	return lockErr(m, func(t *tx) error { return t.CreateUser(ctx, user) })
}

func (m *Store) GetUser(ctx context.Context, id int) (models.User, error) {
	return lock(m, func(t *tx) (models.User, error) { return t.GetUser(ctx, id) })
}

func (m *Store) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	return lock(m, func(t *tx) (models.User, error) { return t.GetUserByEmail(ctx, email) })
}

func (m *Store) CreateQuestion(ctx context.Context, question *models.Question) error {
	return lockErr(m, func(t *tx) error { return t.CreateQuestion(ctx, question) })
}

func (m *Store) GetQuestion(ctx context.Context, id int) (models.Question, error) {
	return lock(m, func(t *tx) (models.Question, error) { return t.GetQuestion(ctx, id) })
}

func (m *Store) LockQuestion(ctx context.Context, id int) (models.Question, error) {
	return lock(m, func(t *tx) (models.Question, error) { return t.LockQuestion(ctx, id) })
}

func (m *Store) ListQuestions(ctx context.Context, query store.QuestionQuery) ([]models.Question, error) {
	return lock(m, func(t *tx) ([]models.Question, error) { return t.ListQuestions(ctx, query) })
}

func (m *Store) QuestionStats(ctx context.Context, questionIDs ...int) (map[int]store.QuestionStats, error) {
	return lock(m, func(t *tx) (map[int]store.QuestionStats, error) { return t.QuestionStats(ctx, questionIDs...) })
}

func (m *Store) DeleteQuestion(ctx context.Context, id int) error {
	return lockErr(m, func(t *tx) error { return t.DeleteQuestion(ctx, id) })
}

func (m *Store) CreateAnswer(ctx context.Context, answer *models.Answer) error {
	return lockErr(m, func(t *tx) error { return t.CreateAnswer(ctx, answer) })
}

func (m *Store) GetAnswer(ctx context.Context, id int) (models.Answer, error) {
	return lock(m, func(t *tx) (models.Answer, error) { return t.GetAnswer(ctx, id) })
}

func (m *Store) ListAnswers(ctx context.Context, questionID int) ([]models.Answer, error) {
	return lock(m, func(t *tx) ([]models.Answer, error) { return t.ListAnswers(ctx, questionID) })
}

func (m *Store) DeleteAnswer(ctx context.Context, id int) error {
	return lockErr(m, func(t *tx) error { return t.DeleteAnswer(ctx, id) })
}

func (m *Store) AcceptAnswer(ctx context.Context, questionID, answerID int) (int64, error) {
	return lock(m, func(t *tx) (int64, error) { return t.AcceptAnswer(ctx, questionID, answerID) })
}

func (m *Store) GetVote(ctx context.Context, userID, answerID int) (models.Vote, error) {
	return lock(m, func(t *tx) (models.Vote, error) { return t.GetVote(ctx, userID, answerID) })
}

func (m *Store) InsertVote(ctx context.Context, vote *models.Vote) error {
	return lockErr(m, func(t *tx) error { return t.InsertVote(ctx, vote) })
}

func (m *Store) DeleteVote(ctx context.Context, userID, answerID int) (int64, error) {
	return lock(m, func(t *tx) (int64, error) { return t.DeleteVote(ctx, userID, answerID) })
}

func (m *Store) SumVotes(ctx context.Context, answerIDs ...int) (map[int]int, error) {
	return lock(m, func(t *tx) (map[int]int, error) { return t.SumVotes(ctx, answerIDs...) })
}

func (m *Store) UserVotes(ctx context.Context, userID int, answerIDs ...int) (map[int]int, error) {
	return lock(m, func(t *tx) (map[int]int, error) { return t.UserVotes(ctx, userID, answerIDs...) })
}

func (m *Store) CreateComment(ctx context.Context, comment *models.Comment) error {
	return lockErr(m, func(t *tx) error { return t.CreateComment(ctx, comment) })
}

func (m *Store) GetComment(ctx context.Context, id int) (models.Comment, error) {
	return lock(m, func(t *tx) (models.Comment, error) { return t.GetComment(ctx, id) })
}

func (m *Store) ListComments(ctx context.Context, answerID int) ([]models.Comment, error) {
	return lock(m, func(t *tx) ([]models.Comment, error) { return t.ListComments(ctx, answerID) })
}

func (m *Store) DeleteComment(ctx context.Context, id int) error {
	return lockErr(m, func(t *tx) error { return t.DeleteComment(ctx, id) })
}

func (m *Store) CreateNotification(ctx context.Context, notification *models.Notification) error {
	return lockErr(m, func(t *tx) error { return t.CreateNotification(ctx, notification) })
}

func (m *Store) GetNotification(ctx context.Context, id int) (models.Notification, error) {
	return lock(m, func(t *tx) (models.Notification, error) { return t.GetNotification(ctx, id) })
}

func (m *Store) ListNotifications(ctx context.Context, userID, limit int) ([]models.Notification, error) {
	return lock(m, func(t *tx) ([]models.Notification, error) { return t.ListNotifications(ctx, userID, limit) })
}

func (m *Store) CountUnread(ctx context.Context, userID int) (int, error) {
	return lock(m, func(t *tx) (int, error) { return t.CountUnread(ctx, userID) })
}

func (m *Store) MarkNotificationRead(ctx context.Context, id int) (int64, error) {
	return lock(m, func(t *tx) (int64, error) { return t.MarkNotificationRead(ctx, id) })
}

// tx operates on the state directly; the caller holds the lock.
type tx struct {
	s *state
}

func (t *tx) Transaction(ctx context.Context, fn func(tx store.Store) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("transaction: %w: %v", domainerrors.ErrStoreUnavailable, err)
	}
	snapshot := t.s.clone()
	if err := fn(t); err != nil {
		*t.s = *snapshot
		return err
	}
	return nil
}

func (t *tx) nextID() int {
	t.s.seq++
	return t.s.seq
}

func notFound(kind string, id int) error {
	return fmt.Errorf("%s %d: %w", kind, id, domainerrors.ErrNotFound)
}

func (t *tx) CreateUser(_ context.Context, user *models.User) error {
	for _, existing := range t.s.users {
		if existing.Email == user.Email || existing.Username == user.Username {
			return fmt.Errorf("create user: %w", domainerrors.ErrConstraintViolation)
		}
	}
	user.ID = t.nextID()
	if user.Role == "" {
		user.Role = models.RoleUser
	}
	user.CreatedAt = t.s.now()
	user.UpdatedAt = user.CreatedAt
	t.s.users[user.ID] = *user
	return nil
}

func (t *tx) GetUser(_ context.Context, id int) (models.User, error) {
	user, ok := t.s.users[id]
	if !ok {
		return models.User{}, notFound("user", id)
	}
	return user, nil
}

func (t *tx) GetUserByEmail(_ context.Context, email string) (models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	for _, user := range t.s.users {
		if user.Email == email {
			return user, nil
		}
	}
	return models.User{}, fmt.Errorf("user %q: %w", email, domainerrors.ErrNotFound)
}

func (t *tx) CreateQuestion(_ context.Context, question *models.Question) error {
	question.ID = t.nextID()
	question.CreatedAt = t.s.now()
	question.UpdatedAt = question.CreatedAt
	t.s.questions[question.ID] = *question
	return nil
}

func (t *tx) GetQuestion(_ context.Context, id int) (models.Question, error) {
	question, ok := t.s.questions[id]
	if !ok {
		return models.Question{}, notFound("question", id)
	}
	return question, nil
}

func (t *tx) LockQuestion(ctx context.Context, id int) (models.Question, error) {
	return t.GetQuestion(ctx, id)
}

func (t *tx) ListQuestions(_ context.Context, query store.QuestionQuery) ([]models.Question, error) {
	search := strings.ToLower(strings.TrimSpace(query.Search))
	tag := strings.TrimSpace(query.Tag)
	var out []models.Question
	for _, q := range t.s.questions {
		if query.AuthorID != 0 && q.AuthorID != query.AuthorID {
			continue
		}
		if tag != "" && !slices.Contains(q.Tags, tag) {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(q.Title), search) &&
			!strings.Contains(strings.ToLower(q.Description), search) {
			continue
		}
		out = append(out, q)
	}

	scores := map[int]int{}
	if query.TopFirst {
		for key, vote := range t.s.votes {
			if a, ok := t.s.answers[key.answerID]; ok {
				scores[a.QuestionID] += vote.Value
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if si, sj := scores[out[i].ID], scores[out[j].ID]; si != sj {
			return si > sj
		}
		return newerFirst(out[i].CreatedAt, out[i].ID, out[j].CreatedAt, out[j].ID)
	})
	if query.Limit > 0 && len(out) > query.Limit {
		out = out[:query.Limit]
	}
	return out, nil
}

func (t *tx) QuestionStats(_ context.Context, questionIDs ...int) (map[int]store.QuestionStats, error) {
	wanted := make(map[int]bool, len(questionIDs))
	for _, id := range questionIDs {
		wanted[id] = true
	}
	stats := make(map[int]store.QuestionStats, len(questionIDs))
	for _, a := range t.s.answers {
		if !wanted[a.QuestionID] {
			continue
		}
		st := stats[a.QuestionID]
		st.Answers++
		st.HasAccepted = st.HasAccepted || a.IsAccepted
		stats[a.QuestionID] = st
	}
	for _, v := range t.s.votes {
		a, ok := t.s.answers[v.AnswerID]
		if !ok || !wanted[a.QuestionID] {
			continue
		}
		st := stats[a.QuestionID]
		st.Votes += v.Value
		stats[a.QuestionID] = st
	}
	return stats, nil
}

func (t *tx) DeleteQuestion(ctx context.Context, id int) error {
	if _, ok := t.s.questions[id]; !ok {
		return notFound("question", id)
	}
	for answerID, a := range t.s.answers {
		if a.QuestionID == id {
			if err := t.DeleteAnswer(ctx, answerID); err != nil {
				return err
			}
		}
	}
	delete(t.s.questions, id)
	return nil
}

func (t *tx) CreateAnswer(_ context.Context, answer *models.Answer) error {
	answer.ID = t.nextID()
	answer.CreatedAt = t.s.now()
	answer.UpdatedAt = answer.CreatedAt
	t.s.answers[answer.ID] = *answer
	return nil
}

func (t *tx) GetAnswer(_ context.Context, id int) (models.Answer, error) {
	answer, ok := t.s.answers[id]
	if !ok {
		return models.Answer{}, notFound("answer", id)
	}
	return answer, nil
}

func (t *tx) ListAnswers(_ context.Context, questionID int) ([]models.Answer, error) {
	var out []models.Answer
	for _, a := range t.s.answers {
		if a.QuestionID == questionID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return newerFirst(out[i].CreatedAt, out[i].ID, out[j].CreatedAt, out[j].ID) })
	return out, nil
}

func (t *tx) DeleteAnswer(_ context.Context, id int) error {
	if _, ok := t.s.answers[id]; !ok {
		return notFound("answer", id)
	}
	for key := range t.s.votes {
		if key.answerID == id {
			delete(t.s.votes, key)
		}
	}
	for commentID, c := range t.s.comments {
		if c.AnswerID == id {
			delete(t.s.comments, commentID)
		}
	}
	delete(t.s.answers, id)
	return nil
}

func (t *tx) AcceptAnswer(_ context.Context, questionID, answerID int) (int64, error) {
	target, ok := t.s.answers[answerID]
	if !ok || target.QuestionID != questionID {
		return 0, fmt.Errorf("answer %d of question %d: %w", answerID, questionID, domainerrors.ErrNotFound)
	}
	var touched int64
	now := t.s.now()
	for id, a := range t.s.answers {
		if a.QuestionID != questionID {
			continue
		}
		switch {
		case id == answerID:
			a.IsAccepted = true
		case a.IsAccepted:
			a.IsAccepted = false
		default:
			continue
		}
		a.UpdatedAt = now
		t.s.answers[id] = a
		touched++
	}
	return touched, nil
}

func (t *tx) GetVote(_ context.Context, userID, answerID int) (models.Vote, error) {
	vote, ok := t.s.votes[voteKey{userID, answerID}]
	if !ok {
		return models.Vote{}, fmt.Errorf("vote of user %d on answer %d: %w", userID, answerID, domainerrors.ErrNotFound)
	}
	return vote, nil
}

func (t *tx) InsertVote(_ context.Context, vote *models.Vote) error {
	key := voteKey{vote.UserID, vote.AnswerID}
	if _, exists := t.s.votes[key]; exists {
		return fmt.Errorf("insert vote: %w", domainerrors.ErrConstraintViolation)
	}
	vote.ID = t.nextID()
	vote.CreatedAt = t.s.now()
	t.s.votes[key] = *vote
	return nil
}

func (t *tx) DeleteVote(_ context.Context, userID, answerID int) (int64, error) {
	key := voteKey{userID, answerID}
	if _, ok := t.s.votes[key]; !ok {
		return 0, nil
	}
	delete(t.s.votes, key)
	return 1, nil
}

func (t *tx) SumVotes(_ context.Context, answerIDs ...int) (map[int]int, error) {
	wanted := make(map[int]bool, len(answerIDs))
	for _, id := range answerIDs {
		wanted[id] = true
	}
	tallies := make(map[int]int, len(answerIDs))
	for key, v := range t.s.votes {
		if wanted[key.answerID] {
			tallies[key.answerID] += v.Value
		}
	}
	return tallies, nil
}

func (t *tx) UserVotes(_ context.Context, userID int, answerIDs ...int) (map[int]int, error) {
	votes := make(map[int]int, len(answerIDs))
	for _, id := range answerIDs {
		if v, ok := t.s.votes[voteKey{userID, id}]; ok {
			votes[id] = v.Value
		}
	}
	return votes, nil
}

func (t *tx) CreateComment(_ context.Context, comment *models.Comment) error {
	comment.ID = t.nextID()
	comment.CreatedAt = t.s.now()
	t.s.comments[comment.ID] = *comment
	return nil
}

func (t *tx) GetComment(_ context.Context, id int) (models.Comment, error) {
	comment, ok := t.s.comments[id]
	if !ok {
		return models.Comment{}, notFound("comment", id)
	}
	return comment, nil
}

func (t *tx) ListComments(_ context.Context, answerID int) ([]models.Comment, error) {
	var out []models.Comment
	for _, c := range t.s.comments {
		if c.AnswerID == answerID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return newerFirst(out[j].CreatedAt, out[j].ID, out[i].CreatedAt, out[i].ID) })
	return out, nil
}

func (t *tx) DeleteComment(_ context.Context, id int) error {
	if _, ok := t.s.comments[id]; !ok {
		return notFound("comment", id)
	}
	delete(t.s.comments, id)
	return nil
}

func (t *tx) CreateNotification(_ context.Context, notification *models.Notification) error {
	notification.ID = t.nextID()
	notification.CreatedAt = t.s.now()
	t.s.notifications[notification.ID] = *notification
	return nil
}

func (t *tx) GetNotification(_ context.Context, id int) (models.Notification, error) {
	n, ok := t.s.notifications[id]
	if !ok {
		return models.Notification{}, notFound("notification", id)
	}
	return n, nil
}

func (t *tx) ListNotifications(_ context.Context, userID, limit int) ([]models.Notification, error) {
	var out []models.Notification
	for _, n := range t.s.notifications {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return newerFirst(out[i].CreatedAt, out[i].ID, out[j].CreatedAt, out[j].ID) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (t *tx) CountUnread(_ context.Context, userID int) (int, error) {
	count := 0
	for _, n := range t.s.notifications {
		if n.UserID == userID && !n.Read {
			count++
		}
	}
	return count, nil
}

func (t *tx) MarkNotificationRead(_ context.Context, id int) (int64, error) {
	n, ok := t.s.notifications[id]
	if !ok || n.Read {
		return 0, nil
	}
	n.Read = true
	t.s.notifications[id] = n
	return 1, nil
}

func newerFirst(at time.Time, id int, bt time.Time, bid int) bool {
	if !at.Equal(bt) {
		return at.After(bt)
	}
	return id > bid
}

var (
	_ store.Store = (*Store)(nil)
	_ store.Store = (*tx)(nil)
)
