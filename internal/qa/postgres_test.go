package qa

import (
	"testing"
	"time"

	"github.com/emilythestrangee/stackit/backend/internal/store"
	"github.com/emilythestrangee/stackit/backend/internal/store/gormstore"
	"github.com/emilythestrangee/stackit/backend/internal/testutil"
)

// TestPostgresInvariants reruns the concurrency properties where row locks
// and the partial unique index actually come into play.
func TestPostgresInvariants(t *testing.T) {
	db := testutil.Postgres(t)
	open := func(t *testing.T) store.Store {
		testutil.Truncate(t, db)
		return gormstore.New(db, 5*time.Second, quiet)
	}

	saved := backends
	backends = []backend{{"postgres", open}}
	t.Cleanup(func() { backends = saved })

	t.Run("ToggleOff", TestCastVoteToggleOff)
	t.Run("Replace", TestCastVoteReplacesPreviousValue)
	t.Run("TallyUnderConcurrency", TestTallyMatchesStoredVotesUnderConcurrency)
	t.Run("SameUserConcurrency", TestSameUserConcurrentVotesKeepOneRow)
	t.Run("LastAcceptWins", TestAcceptAnswerLastAcceptWins)
	t.Run("AcceptRefusals", TestAcceptAnswerRefusals)
	t.Run("ConcurrentAccepts", TestConcurrentAcceptsConvergeToOne)
	t.Run("Notifications", TestAnswerNotifiesQuestionAuthor)
	t.Run("Cascade", TestDeletePermissions)
}
