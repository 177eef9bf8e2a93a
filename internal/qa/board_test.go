package qa

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/emilythestrangee/stackit/backend/internal/domain/errors"
	"github.com/emilythestrangee/stackit/backend/internal/models"
	"github.com/emilythestrangee/stackit/backend/internal/store"
	"github.com/emilythestrangee/stackit/backend/internal/store/memory"
)

func TestAskNormalizesTags(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, memory.New(), nil)

	q, err := f.board.Ask(ctx, f.alice, models.CreateQuestionRequest{
		Title: "  Channels vs mutexes  ",
		Tags:  []string{" Go", "go", "", "Concurrency "},
	})
	require.NoError(t, err)
	assert.Equal(t, "Channels vs mutexes", q.Title)
	assert.Equal(t, []string{"go", "concurrency"}, q.Tags)
	assert.Equal(t, "alice", q.Author)

	tests := []struct {
		name string
		req  models.CreateQuestionRequest
	}{
		{"empty title", models.CreateQuestionRequest{Title: "   "}},
		{"long title", models.CreateQuestionRequest{Title: strings.Repeat("x", 301)}},
		{"too many tags", models.CreateQuestionRequest{Title: "t", Tags: []string{"a", "b", "c", "d", "e", "f"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.board.Ask(ctx, f.alice, tt.req)
			assert.ErrorIs(t, err, domainerrors.ErrInvalidInput)
		})
	}

	_, err = f.board.Ask(ctx, nil, models.CreateQuestionRequest{Title: "anon"})
	assert.ErrorIs(t, err, domainerrors.ErrUnauthenticated)
}

func TestListQuestions(t *testing.T) {
	eachBackend(t, func(t *testing.T, st store.Store) {
		ctx := context.Background()
		f := newFixture(t, st, nil)
		older := f.ask(t, f.alice, "Embedding static files", "go", "embed")
		popular := f.ask(t, f.bob, "Context cancellation", "go")
		newest := f.ask(t, f.carol, "Rust lifetimes", "rust")

		a := f.answer(t, f.dave, popular)
		_, err := f.votes.CastVote(ctx, f.alice, a.ID, 1)
		require.NoError(t, err)
		_, err = f.votes.CastVote(ctx, f.carol, a.ID, 1)
		require.NoError(t, err)
		_, err = f.accept.AcceptAnswer(ctx, f.bob, popular.ID, a.ID)
		require.NoError(t, err)

		recent, err := f.board.ListQuestions(ctx, ListQuery{})
		require.NoError(t, err)
		require.Len(t, recent, 3)
		assert.Equal(t, newest.ID, recent[0].ID)

		top, err := f.board.ListQuestions(ctx, ListQuery{Sort: SortTop})
		require.NoError(t, err)
		require.Len(t, top, 3)
		assert.Equal(t, popular.ID, top[0].ID)
		assert.Equal(t, 2, top[0].Votes)
		assert.Equal(t, 1, top[0].Answers)
		assert.True(t, top[0].HasAccepted)
		assert.Equal(t, newest.ID, top[1].ID, "ties fall back to recency")

		tagged, err := f.board.ListQuestions(ctx, ListQuery{Tag: "GO"})
		require.NoError(t, err)
		require.Len(t, tagged, 2)

		found, err := f.board.ListQuestions(ctx, ListQuery{Search: "static"})
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, older.ID, found[0].ID)

		limited, err := f.board.ListQuestions(ctx, ListQuery{Limit: 1})
		require.NoError(t, err)
		assert.Len(t, limited, 1)

		_, err = f.board.ListQuestions(ctx, ListQuery{Sort: "hot"})
		assert.ErrorIs(t, err, domainerrors.ErrInvalidInput)
	})
}

func TestListQuestionsFiltersTagsBeforeLimit(t *testing.T) {
	eachBackend(t, func(t *testing.T, st store.Store) {
		ctx := context.Background()
		f := newFixture(t, st, nil)
		tagged := f.ask(t, f.alice, "Worker pools", "go")
		newer := f.ask(t, f.alice, "Select with timeouts", "go")
		f.ask(t, f.bob, "Gopher art", "golang")
		f.ask(t, f.bob, "Wildcards", "g%")
		f.ask(t, f.carol, "Borrow checker", "rust")

		a := f.answer(t, f.dave, tagged)
		_, err := f.votes.CastVote(ctx, f.bob, a.ID, 1)
		require.NoError(t, err)

		recent, err := f.board.ListQuestions(ctx, ListQuery{Tag: "go", Limit: 1})
		require.NoError(t, err)
		require.Len(t, recent, 1)
		assert.Equal(t, newer.ID, recent[0].ID)

		top, err := f.board.ListQuestions(ctx, ListQuery{Tag: "go", Sort: SortTop, Limit: 1})
		require.NoError(t, err)
		require.Len(t, top, 1)
		assert.Equal(t, tagged.ID, top[0].ID)

		literal, err := f.board.ListQuestions(ctx, ListQuery{Tag: "g%"})
		require.NoError(t, err)
		require.Len(t, literal, 1)
		assert.Equal(t, "Wildcards", literal[0].Title)
	})
}

func TestQuestionDetailForViewer(t *testing.T) {
	eachBackend(t, func(t *testing.T, st store.Store) {
		ctx := context.Background()
		f := newFixture(t, st, nil)
		q := f.ask(t, f.alice, "Detail")
		first := f.answer(t, f.bob, q)
		second := f.answer(t, f.carol, q)
		_, err := f.votes.CastVote(ctx, f.dave, first.ID, -1)
		require.NoError(t, err)

		detail, err := f.board.Question(ctx, f.dave, q.ID)
		require.NoError(t, err)
		assert.Equal(t, q.ID, detail.ID)
		assert.Equal(t, 2, detail.Answers)
		require.Len(t, detail.AnswerViews, 2)
		assert.Equal(t, second.ID, detail.AnswerViews[0].ID, "newest answer first")
		assert.Equal(t, -1, detail.AnswerViews[1].Votes)
		assert.Equal(t, -1, detail.AnswerViews[1].UserVote)

		anon, err := f.board.ListAnswers(ctx, nil, q.ID)
		require.NoError(t, err)
		for _, view := range anon {
			assert.Zero(t, view.UserVote)
		}

		_, err = f.board.Question(ctx, nil, q.ID+1000)
		assert.ErrorIs(t, err, domainerrors.ErrNotFound)
	})
}

func TestPostAnswerValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, memory.New(), nil)
	q := f.ask(t, f.alice, "Empty answers")

	for _, content := range []string{"", "   ", "<p></p>", " <p></p> "} {
		_, err := f.board.PostAnswer(ctx, f.bob, q.ID, content)
		assert.ErrorIs(t, err, domainerrors.ErrInvalidInput, "%q", content)
	}
	_, err := f.board.PostAnswer(ctx, f.bob, q.ID+1000, "orphan")
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)
	_, err = f.board.PostAnswer(ctx, nil, q.ID, "anon")
	assert.ErrorIs(t, err, domainerrors.ErrUnauthenticated)
}

func TestDeletePermissions(t *testing.T) {
	eachBackend(t, func(t *testing.T, st store.Store) {
		ctx := context.Background()
		f := newFixture(t, st, nil)
		q := f.ask(t, f.alice, "Moderated")
		a := f.answer(t, f.bob, q)
		c, err := f.board.AddComment(ctx, f.carol, a.ID, "nice")
		require.NoError(t, err)
		_, err = f.votes.CastVote(ctx, f.carol, a.ID, 1)
		require.NoError(t, err)

		assert.ErrorIs(t, f.board.DeleteComment(ctx, f.bob, c.ID), domainerrors.ErrUnauthorized)
		assert.ErrorIs(t, f.board.DeleteAnswer(ctx, f.alice, a.ID), domainerrors.ErrUnauthorized)
		assert.ErrorIs(t, f.board.DeleteQuestion(ctx, f.alice, q.ID), domainerrors.ErrUnauthorized, "authors cannot delete questions")
		assert.ErrorIs(t, f.board.DeleteQuestion(ctx, nil, q.ID), domainerrors.ErrUnauthenticated)

		require.NoError(t, f.board.DeleteComment(ctx, f.carol, c.ID))
		require.NoError(t, f.board.DeleteAnswer(ctx, f.admin, a.ID))

		tally, err := f.votes.Tally(ctx, a.ID)
		require.NoError(t, err)
		assert.Zero(t, tally)

		f.answer(t, f.carol, q)
		require.NoError(t, f.board.DeleteQuestion(ctx, f.admin, q.ID))
		_, err = f.board.Question(ctx, nil, q.ID)
		assert.ErrorIs(t, err, domainerrors.ErrNotFound)
		assert.ErrorIs(t, f.board.DeleteQuestion(ctx, f.admin, q.ID), domainerrors.ErrNotFound)
	})
}

func TestComments(t *testing.T) {
	eachBackend(t, func(t *testing.T, st store.Store) {
		ctx := context.Background()
		f := newFixture(t, st, nil)
		q := f.ask(t, f.alice, "Discussed")
		a := f.answer(t, f.bob, q)

		_, err := f.board.AddComment(ctx, f.alice, a.ID, "first")
		require.NoError(t, err)
		_, err = f.board.AddComment(ctx, f.carol, a.ID, "second")
		require.NoError(t, err)

		_, err = f.board.AddComment(ctx, f.carol, a.ID, "  ")
		assert.ErrorIs(t, err, domainerrors.ErrInvalidInput)
		_, err = f.board.AddComment(ctx, nil, a.ID, "anon")
		assert.ErrorIs(t, err, domainerrors.ErrUnauthenticated)
		_, err = f.board.AddComment(ctx, f.carol, a.ID+1000, "lost")
		assert.ErrorIs(t, err, domainerrors.ErrNotFound)

		comments, err := f.board.ListComments(ctx, a.ID)
		require.NoError(t, err)
		require.Len(t, comments, 2)
		assert.Equal(t, "first", comments[0].Content)
		assert.Equal(t, "second", comments[1].Content)
	})
}

func TestProfile(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, memory.New(), nil)
	f.ask(t, f.alice, "One")
	f.ask(t, f.alice, "Two")
	f.ask(t, f.bob, "Not hers")

	profile, err := f.board.Profile(ctx, f.alice.UserID)
	require.NoError(t, err)
	assert.Equal(t, "alice", profile.User.Username)
	assert.Len(t, profile.Questions, 2)

	_, err = f.board.Profile(ctx, 9999)
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)
}
