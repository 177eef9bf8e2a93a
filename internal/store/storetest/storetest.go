// Package storetest is a conformance suite every store.Store adapter runs.
package storetest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/emilythestrangee/stackit/backend/internal/domain/errors"
	"github.com/emilythestrangee/stackit/backend/internal/models"
	"github.com/emilythestrangee/stackit/backend/internal/store"
)

// Factory returns an empty store; it registers its own cleanup on t.
type Factory func(t *testing.T) store.Store

func Run(t *testing.T, newStore Factory) {
	t.Run("Users", func(t *testing.T) { testUsers(t, newStore(t)) })
	t.Run("QuestionsAndStats", func(t *testing.T) { testQuestions(t, newStore(t)) })
	t.Run("Votes", func(t *testing.T) { testVotes(t, newStore(t)) })
	t.Run("AcceptAnswer", func(t *testing.T) { testAccept(t, newStore(t)) })
	t.Run("CascadeDelete", func(t *testing.T) { testCascade(t, newStore(t)) })
	t.Run("Comments", func(t *testing.T) { testComments(t, newStore(t)) })
	t.Run("Notifications", func(t *testing.T) { testNotifications(t, newStore(t)) })
	t.Run("TransactionRollback", func(t *testing.T) { testRollback(t, newStore(t)) })
}

// Seed creates a user with the given name and an example.com address.
func Seed(t *testing.T, s store.Store, username string) models.User {
	t.Helper()
	user := models.User{Username: username, Email: username + "@example.com", Password: "x", Role: models.RoleUser}
	require.NoError(t, s.CreateUser(context.Background(), &user))
	return user
}

func seedQuestion(t *testing.T, s store.Store, author models.User, title string) models.Question {
	t.Helper()
	q := models.Question{Title: title, Description: "details about " + title, Tags: []string{"go"}, AuthorID: author.ID, Author: author.Username}
	require.NoError(t, s.CreateQuestion(context.Background(), &q))
	return q
}

func seedAnswer(t *testing.T, s store.Store, q models.Question, author models.User) models.Answer {
	t.Helper()
	a := models.Answer{QuestionID: q.ID, Content: "<p>try this</p>", AuthorID: author.ID, Author: author.Username}
	require.NoError(t, s.CreateAnswer(context.Background(), &a))
	return a
}

func testUsers(t *testing.T, s store.Store) {
	ctx := context.Background()
	alice := Seed(t, s, "alice")
	assert.NotZero(t, alice.ID)

	got, err := s.GetUserByEmail(ctx, " alice@example.com ")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, got.ID)

	dup := models.User{Username: "alice2", Email: "alice@example.com", Password: "x", Role: models.RoleUser}
	err = s.CreateUser(ctx, &dup)
	assert.ErrorIs(t, err, domainerrors.ErrConstraintViolation)

	_, err = s.GetUser(ctx, alice.ID+1000)
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)

	// usernames are unique as stored, not case-folded
	shouty := models.User{Username: "ALICE", Email: "shouty@example.com", Password: "x", Role: models.RoleUser}
	require.NoError(t, s.CreateUser(ctx, &shouty))
}

func testQuestions(t *testing.T, s store.Store) {
	ctx := context.Background()
	alice := Seed(t, s, "alice")
	bob := Seed(t, s, "bob")

	q1 := seedQuestion(t, s, alice, "Goroutine leak in worker pool")
	q2 := seedQuestion(t, s, bob, "How do I embed files")

	got, err := s.GetQuestion(ctx, q1.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"go"}, got.Tags)

	all, err := s.ListQuestions(ctx, store.QuestionQuery{})
	require.NoError(t, err)
	require.Len(t, all, 2)

	found, err := s.ListQuestions(ctx, store.QuestionQuery{Search: "GOROUTINE"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, q1.ID, found[0].ID)

	mine, err := s.ListQuestions(ctx, store.QuestionQuery{AuthorID: bob.ID})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, q2.ID, mine[0].ID)

	tagged, err := s.ListQuestions(ctx, store.QuestionQuery{Tag: "go", Limit: 1})
	require.NoError(t, err)
	require.Len(t, tagged, 1)
	none, err := s.ListQuestions(ctx, store.QuestionQuery{Tag: "g"})
	require.NoError(t, err)
	assert.Empty(t, none)

	a1 := seedAnswer(t, s, q1, bob)
	seedAnswer(t, s, q1, alice)
	require.NoError(t, s.InsertVote(ctx, &models.Vote{UserID: alice.ID, AnswerID: a1.ID, Value: 1}))
	require.NoError(t, s.InsertVote(ctx, &models.Vote{UserID: bob.ID, AnswerID: a1.ID, Value: 1}))
	_, err = s.AcceptAnswer(ctx, q1.ID, a1.ID)
	require.NoError(t, err)

	stats, err := s.QuestionStats(ctx, q1.ID, q2.ID)
	require.NoError(t, err)
	assert.Equal(t, store.QuestionStats{Answers: 2, Votes: 2, HasAccepted: true}, stats[q1.ID])
	assert.Equal(t, store.QuestionStats{}, stats[q2.ID])

	top, err := s.ListQuestions(ctx, store.QuestionQuery{TopFirst: true})
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, q1.ID, top[0].ID)
}

func testVotes(t *testing.T, s store.Store) {
	ctx := context.Background()
	alice := Seed(t, s, "alice")
	bob := Seed(t, s, "bob")
	q := seedQuestion(t, s, alice, "Vote target")
	a := seedAnswer(t, s, q, bob)

	_, err := s.GetVote(ctx, alice.ID, a.ID)
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)

	require.NoError(t, s.InsertVote(ctx, &models.Vote{UserID: alice.ID, AnswerID: a.ID, Value: 1}))
	err = s.InsertVote(ctx, &models.Vote{UserID: alice.ID, AnswerID: a.ID, Value: -1})
	assert.ErrorIs(t, err, domainerrors.ErrConstraintViolation)
	require.NoError(t, s.InsertVote(ctx, &models.Vote{UserID: bob.ID, AnswerID: a.ID, Value: -1}))
	require.NoError(t, s.InsertVote(ctx, &models.Vote{UserID: bob.ID + alice.ID + 100, AnswerID: a.ID, Value: 1}))

	sums, err := s.SumVotes(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, sums[a.ID])

	mine, err := s.UserVotes(ctx, bob.ID, a.ID)
	require.NoError(t, err)
	assert.Equal(t, map[int]int{a.ID: -1}, mine)

	n, err := s.DeleteVote(ctx, bob.ID, a.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	n, err = s.DeleteVote(ctx, bob.ID, a.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)

	mine, err = s.UserVotes(ctx, bob.ID, a.ID)
	require.NoError(t, err)
	assert.Empty(t, mine)
}

func testAccept(t *testing.T, s store.Store) {
	ctx := context.Background()
	alice := Seed(t, s, "alice")
	bob := Seed(t, s, "bob")
	q := seedQuestion(t, s, alice, "Accept target")
	other := seedQuestion(t, s, alice, "Another question")
	a1 := seedAnswer(t, s, q, bob)
	a2 := seedAnswer(t, s, q, bob)
	foreign := seedAnswer(t, s, other, bob)

	_, err := s.AcceptAnswer(ctx, q.ID, a1.ID)
	require.NoError(t, err)
	_, err = s.AcceptAnswer(ctx, q.ID, a2.ID)
	require.NoError(t, err)

	answers, err := s.ListAnswers(ctx, q.ID)
	require.NoError(t, err)
	accepted := 0
	for _, a := range answers {
		if a.IsAccepted {
			accepted++
			assert.Equal(t, a2.ID, a.ID)
		}
	}
	assert.Equal(t, 1, accepted)

	_, err = s.AcceptAnswer(ctx, q.ID, foreign.ID)
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)
	_, err = s.AcceptAnswer(ctx, q.ID, foreign.ID+1000)
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)

	got, err := s.GetAnswer(ctx, a2.ID)
	require.NoError(t, err)
	assert.True(t, got.IsAccepted)
}

func testCascade(t *testing.T, s store.Store) {
	ctx := context.Background()
	alice := Seed(t, s, "alice")
	bob := Seed(t, s, "bob")
	q := seedQuestion(t, s, alice, "Doomed")
	a := seedAnswer(t, s, q, bob)
	require.NoError(t, s.InsertVote(ctx, &models.Vote{UserID: alice.ID, AnswerID: a.ID, Value: 1}))
	c := models.Comment{AnswerID: a.ID, UserID: alice.ID, Content: "thanks"}
	require.NoError(t, s.CreateComment(ctx, &c))

	require.NoError(t, s.DeleteQuestion(ctx, q.ID))

	_, err := s.GetQuestion(ctx, q.ID)
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)
	_, err = s.GetAnswer(ctx, a.ID)
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)
	_, err = s.GetComment(ctx, c.ID)
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)
	_, err = s.GetVote(ctx, alice.ID, a.ID)
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)

	assert.ErrorIs(t, s.DeleteQuestion(ctx, q.ID), domainerrors.ErrNotFound)
	assert.ErrorIs(t, s.DeleteAnswer(ctx, a.ID), domainerrors.ErrNotFound)
}

func testComments(t *testing.T, s store.Store) {
	ctx := context.Background()
	alice := Seed(t, s, "alice")
	q := seedQuestion(t, s, alice, "Commented")
	a := seedAnswer(t, s, q, alice)

	for _, text := range []string{"first", "second"} {
		c := models.Comment{AnswerID: a.ID, UserID: alice.ID, Content: text}
		require.NoError(t, s.CreateComment(ctx, &c))
	}
	comments, err := s.ListComments(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, comments, 2)
	assert.Equal(t, "first", comments[0].Content)

	require.NoError(t, s.DeleteComment(ctx, comments[0].ID))
	comments, err = s.ListComments(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.Equal(t, "second", comments[0].Content)
}

func testNotifications(t *testing.T, s store.Store) {
	ctx := context.Background()
	alice := Seed(t, s, "alice")
	bob := Seed(t, s, "bob")

	for i := 0; i < 3; i++ {
		n := models.Notification{UserID: alice.ID, Type: models.NotificationTypeAnswer, Message: "bob answered", Link: "/questions/1"}
		require.NoError(t, s.CreateNotification(ctx, &n))
	}
	other := models.Notification{UserID: bob.ID, Type: models.NotificationTypeAnswer, Message: "alice answered"}
	require.NoError(t, s.CreateNotification(ctx, &other))

	list, err := s.ListNotifications(ctx, alice.ID, 2)
	require.NoError(t, err)
	require.Len(t, list, 2)

	unread, err := s.CountUnread(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, unread)

	n, err := s.MarkNotificationRead(ctx, list[0].ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	n, err = s.MarkNotificationRead(ctx, list[0].ID)
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)

	unread, err = s.CountUnread(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, unread)

	got, err := s.GetNotification(ctx, list[0].ID)
	require.NoError(t, err)
	assert.True(t, got.Read)
}

func testRollback(t *testing.T, s store.Store) {
	ctx := context.Background()
	alice := Seed(t, s, "alice")
	q := seedQuestion(t, s, alice, "Rollback")
	a := seedAnswer(t, s, q, alice)

	boom := errors.New("boom")
	err := s.Transaction(ctx, func(tx store.Store) error {
		if err := tx.InsertVote(ctx, &models.Vote{UserID: alice.ID, AnswerID: a.ID, Value: 1}); err != nil {
			return err
		}
		if _, err := tx.AcceptAnswer(ctx, q.ID, a.ID); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = s.GetVote(ctx, alice.ID, a.ID)
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)
	got, err := s.GetAnswer(ctx, a.ID)
	require.NoError(t, err)
	assert.False(t, got.IsAccepted)

	err = s.Transaction(ctx, func(tx store.Store) error {
		return tx.InsertVote(ctx, &models.Vote{UserID: alice.ID, AnswerID: a.ID, Value: -1})
	})
	require.NoError(t, err)
	v, err := s.GetVote(ctx, alice.ID, a.ID)
	require.NoError(t, err)
	assert.Equal(t, -1, v.Value)
}
