package qa

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/emilythestrangee/stackit/backend/internal/auth"
	domainerrors "github.com/emilythestrangee/stackit/backend/internal/domain/errors"
	"github.com/emilythestrangee/stackit/backend/internal/store"
	"github.com/emilythestrangee/stackit/backend/internal/store/memory"
)

var errUnavailable = fmt.Errorf("connection reset: %w", domainerrors.ErrStoreUnavailable)

// surfacedConflict drops the errors a racing vote may legitimately report:
// both attempts colliding on the unique index, or the database aborting one
// side of a deadlock. Either way the transaction rolled back as a whole.
func surfacedConflict(err error) error {
	if errors.Is(err, domainerrors.ErrConstraintViolation) || errors.Is(err, domainerrors.ErrStoreUnavailable) {
		return nil
	}
	return err
}

func TestCastVoteToggleOff(t *testing.T) {
	eachBackend(t, func(t *testing.T, st store.Store) {
		ctx := context.Background()
		f := newFixture(t, st, nil)
		q := f.ask(t, f.alice, "Toggle")
		a := f.answer(t, f.bob, q)

		res, err := f.votes.CastVote(ctx, f.carol, a.ID, 1)
		require.NoError(t, err)
		assert.Equal(t, 1, res.UserVote)
		assert.Equal(t, 1, res.Votes)

		res, err = f.votes.CastVote(ctx, f.carol, a.ID, 1)
		require.NoError(t, err)
		assert.Equal(t, 0, res.UserVote)
		assert.Equal(t, 0, res.Votes)

		vote, err := f.votes.UserVote(ctx, f.carol.UserID, a.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, vote)
		_, err = st.GetVote(ctx, f.carol.UserID, a.ID)
		assert.ErrorIs(t, err, domainerrors.ErrNotFound)
	})
}

func TestCastVoteReplacesPreviousValue(t *testing.T) {
	eachBackend(t, func(t *testing.T, st store.Store) {
		ctx := context.Background()
		f := newFixture(t, st, nil)
		q := f.ask(t, f.alice, "Replace")
		r1 := f.answer(t, f.bob, q)

		tally, err := f.votes.Tally(ctx, r1.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, tally)

		res, err := f.votes.CastVote(ctx, f.dave, r1.ID, 1)
		require.NoError(t, err)
		assert.Equal(t, 1, res.Votes)

		res, err = f.votes.CastVote(ctx, f.dave, r1.ID, -1)
		require.NoError(t, err)
		assert.Equal(t, -1, res.UserVote)
		assert.Equal(t, -1, res.Votes)

		mine, err := st.UserVotes(ctx, f.dave.UserID, r1.ID)
		require.NoError(t, err)
		assert.Equal(t, map[int]int{r1.ID: -1}, mine)
	})
}

func TestCastVoteRejectsAnonymousAndBadInput(t *testing.T) {
	eachBackend(t, func(t *testing.T, st store.Store) {
		ctx := context.Background()
		f := newFixture(t, st, nil)
		q := f.ask(t, f.alice, "Guarded")
		a := f.answer(t, f.bob, q)

		_, err := f.votes.CastVote(ctx, nil, a.ID, 1)
		assert.ErrorIs(t, err, domainerrors.ErrUnauthenticated)

		for _, value := range []int{0, 2, -3} {
			_, err = f.votes.CastVote(ctx, f.carol, a.ID, value)
			assert.ErrorIs(t, err, domainerrors.ErrInvalidInput, "value %d", value)
		}

		_, err = f.votes.CastVote(ctx, f.carol, a.ID+1000, 1)
		assert.ErrorIs(t, err, domainerrors.ErrNotFound)

		tally, err := f.votes.Tally(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, tally)
	})
}

func TestTallyMatchesStoredVotesUnderConcurrency(t *testing.T) {
	eachBackend(t, func(t *testing.T, st store.Store) {
		ctx := context.Background()
		f := newFixture(t, st, nil)
		q := f.ask(t, f.alice, "Busy answer")
		a := f.answer(t, f.bob, q)

		voters := []*auth.Identity{f.alice, f.bob, f.carol, f.dave, f.admin}
		var g errgroup.Group
		for i, voter := range voters {
			for round := 0; round < 5; round++ {
				value := 1
				if (i+round)%2 == 0 {
					value = -1
				}
				g.Go(func() error {
					_, err := f.votes.CastVote(ctx, voter, a.ID, value)
					return surfacedConflict(err)
				})
			}
		}
		require.NoError(t, g.Wait())

		want := 0
		for _, voter := range voters {
			v, err := f.votes.UserVote(ctx, voter.UserID, a.ID)
			require.NoError(t, err)
			assert.Contains(t, []int{-1, 0, 1}, v)
			want += v
		}
		tally, err := f.votes.Tally(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, want, tally)
	})
}

func TestSameUserConcurrentVotesKeepOneRow(t *testing.T) {
	eachBackend(t, func(t *testing.T, st store.Store) {
		ctx := context.Background()
		f := newFixture(t, st, nil)
		q := f.ask(t, f.alice, "Double click")
		a := f.answer(t, f.bob, q)

		var g errgroup.Group
		for i := 0; i < 20; i++ {
			value := 1 - 2*(i%2)
			g.Go(func() error {
				_, err := f.votes.CastVote(ctx, f.carol, a.ID, value)
				return surfacedConflict(err)
			})
		}
		require.NoError(t, g.Wait())

		mine, err := st.UserVotes(ctx, f.carol.UserID, a.ID)
		require.NoError(t, err)
		assert.LessOrEqual(t, len(mine), 1)

		tally, err := f.votes.Tally(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, mine[a.ID], tally)
	})
}

func TestCastVoteRetriesConstraintViolationOnce(t *testing.T) {
	ctx := context.Background()
	flt := &faults{insertVoteFailures: 1, insertVoteErr: fmt.Errorf("insert: %w", domainerrors.ErrConstraintViolation)}
	f := newFixture(t, faultyStore{Store: memory.New(), f: flt}, nil)
	q := f.ask(t, f.alice, "Collision")
	a := f.answer(t, f.bob, q)

	res, err := f.votes.CastVote(ctx, f.carol, a.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Votes)
	assert.Equal(t, 2, flt.insertVoteCalls)

	flt.insertVoteFailures = 2
	flt.insertVoteCalls = 0
	_, err = f.votes.CastVote(ctx, f.dave, a.ID, -1)
	assert.ErrorIs(t, err, domainerrors.ErrConstraintViolation)
	assert.Equal(t, 2, flt.insertVoteCalls)

	tally, err := f.votes.Tally(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, tally)
}

func TestCastVoteSurfacesFailedInsertAfterDelete(t *testing.T) {
	ctx := context.Background()
	flt := &faults{}
	f := newFixture(t, faultyStore{Store: memory.New(), f: flt}, nil)
	q := f.ask(t, f.alice, "Half written")
	a := f.answer(t, f.bob, q)

	_, err := f.votes.CastVote(ctx, f.carol, a.ID, 1)
	require.NoError(t, err)

	flt.insertVoteFailures = 1
	flt.insertVoteErr = errUnavailable
	flt.insertVoteCalls = 0
	_, err = f.votes.CastVote(ctx, f.carol, a.ID, -1)
	assert.ErrorIs(t, err, domainerrors.ErrStoreUnavailable)
	assert.Equal(t, 1, flt.insertVoteCalls, "writes are not retried")

	// the delete rolled back with the failed insert
	vote, err := f.votes.UserVote(ctx, f.carol.UserID, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, vote)
}

func TestTallyRetriesUnavailableStore(t *testing.T) {
	ctx := context.Background()
	flt := &faults{}
	f := newFixture(t, faultyStore{Store: memory.New(), f: flt}, nil)
	q := f.ask(t, f.alice, "Flaky")
	a := f.answer(t, f.bob, q)
	_, err := f.votes.CastVote(ctx, f.carol, a.ID, 1)
	require.NoError(t, err)

	flt.sumFailures = 2
	tally, err := f.votes.Tally(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, tally)

	flt.sumFailures = 3
	_, err = f.votes.Tally(ctx, a.ID)
	assert.ErrorIs(t, err, domainerrors.ErrStoreUnavailable)
}
