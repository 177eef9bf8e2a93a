package qa

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/emilythestrangee/stackit/backend/internal/auth"
	"github.com/emilythestrangee/stackit/backend/internal/models"
	"github.com/emilythestrangee/stackit/backend/internal/notify"
	"github.com/emilythestrangee/stackit/backend/internal/store"
	"github.com/emilythestrangee/stackit/backend/internal/store/gormstore"
	"github.com/emilythestrangee/stackit/backend/internal/store/memory"
	"github.com/emilythestrangee/stackit/backend/internal/store/storetest"
	"github.com/emilythestrangee/stackit/backend/internal/testutil"
)

var quiet = slog.New(slog.DiscardHandler)

var testRetry = Retry{Attempts: 2, Initial: time.Millisecond, Max: 5 * time.Millisecond}

type backend struct {
	name string
	open func(t *testing.T) store.Store
}

// backends are the stores every service test runs against.
var backends = []backend{
	{"memory", func(t *testing.T) store.Store { return memory.New() }},
	{"sqlite", func(t *testing.T) store.Store {
		return gormstore.New(testutil.SQLite(t), 5*time.Second, quiet)
	}},
}

func eachBackend(t *testing.T, fn func(t *testing.T, st store.Store)) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) { fn(t, b.open(t)) })
	}
}

type fixture struct {
	store    store.Store
	votes    *VoteLedger
	accept   *AcceptanceController
	emitter  *NotificationEmitter
	outbox   *Outbox
	board    *Board
	failures *recorder

	alice, bob, carol, dave *auth.Identity
	admin                   *auth.Identity
}

func newFixture(t *testing.T, st store.Store, dispatcher notify.Dispatcher) *fixture {
	t.Helper()
	f := &fixture{store: st, failures: &recorder{}}
	f.votes = NewVoteLedger(st, testRetry, quiet)
	f.accept = NewAcceptanceController(st, quiet)
	f.emitter = NewNotificationEmitter(st, dispatcher, testRetry, quiet)
	f.emitter.OnError(f.failures.record)
	f.outbox = NewOutbox(f.emitter, 16, quiet)
	f.outbox.Start(context.Background())
	t.Cleanup(f.outbox.Close)
	f.board = NewBoard(st, f.votes, f.outbox, testRetry, quiet)

	f.alice = auth.IdentityOf(storetest.Seed(t, st, "alice"))
	f.bob = auth.IdentityOf(storetest.Seed(t, st, "bob"))
	f.carol = auth.IdentityOf(storetest.Seed(t, st, "carol"))
	f.dave = auth.IdentityOf(storetest.Seed(t, st, "dave"))

	root := models.User{Username: "root", Email: "root@example.com", Password: "x", Role: models.RoleAdmin}
	require.NoError(t, st.CreateUser(context.Background(), &root))
	f.admin = auth.IdentityOf(root)
	return f
}

func (f *fixture) ask(t *testing.T, author *auth.Identity, title string, tags ...string) models.Question {
	t.Helper()
	q, err := f.board.Ask(context.Background(), author, models.CreateQuestionRequest{Title: title, Description: "body of " + title, Tags: tags})
	require.NoError(t, err)
	return q
}

func (f *fixture) answer(t *testing.T, author *auth.Identity, q models.Question) models.Answer {
	t.Helper()
	a, err := f.board.PostAnswer(context.Background(), author, q.ID, "<p>an answer by "+author.Username+"</p>")
	require.NoError(t, err)
	return a
}

// flush waits until every queued notification is written.
func (f *fixture) flush() {
	f.outbox.Close()
}

func (f *fixture) accepted(t *testing.T, questionID int) []int {
	t.Helper()
	answers, err := f.store.ListAnswers(context.Background(), questionID)
	require.NoError(t, err)
	var ids []int
	for _, a := range answers {
		if a.IsAccepted {
			ids = append(ids, a.ID)
		}
	}
	return ids
}

type recorder struct {
	mu   sync.Mutex
	errs []error
}

func (r *recorder) record(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

func (r *recorder) all() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.errs...)
}

// faults injects store failures; it is shared by a faultyStore and the
// transactions it opens.
type faults struct {
	mu                    sync.Mutex
	sumFailures           int
	insertVoteFailures    int
	insertVoteErr         error
	insertVoteCalls       int
	createNotificationErr error
}

type faultyStore struct {
	store.Store
	f *faults
}

func (s faultyStore) Transaction(ctx context.Context, fn func(tx store.Store) error) error {
	return s.Store.Transaction(ctx, func(tx store.Store) error {
		return fn(faultyStore{Store: tx, f: s.f})
	})
}

func (s faultyStore) SumVotes(ctx context.Context, answerIDs ...int) (map[int]int, error) {
	s.f.mu.Lock()
	if s.f.sumFailures > 0 {
		s.f.sumFailures--
		s.f.mu.Unlock()
		return nil, errUnavailable
	}
	s.f.mu.Unlock()
	return s.Store.SumVotes(ctx, answerIDs...)
}

func (s faultyStore) InsertVote(ctx context.Context, vote *models.Vote) error {
	s.f.mu.Lock()
	s.f.insertVoteCalls++
	if s.f.insertVoteFailures > 0 {
		s.f.insertVoteFailures--
		err := s.f.insertVoteErr
		s.f.mu.Unlock()
		return err
	}
	s.f.mu.Unlock()
	return s.Store.InsertVote(ctx, vote)
}

func (s faultyStore) CreateNotification(ctx context.Context, n *models.Notification) error {
	s.f.mu.Lock()
	err := s.f.createNotificationErr
	s.f.mu.Unlock()
	if err != nil {
		return err
	}
	return s.Store.CreateNotification(ctx, n)
}

type sentNotification struct {
	recipient models.User
	n         models.Notification
}

type fakeDispatcher struct {
	mu   sync.Mutex
	sent []sentNotification
	err  error
}

func (d *fakeDispatcher) Dispatch(_ context.Context, recipient models.User, n models.Notification) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.sent = append(d.sent, sentNotification{recipient: recipient, n: n})
	return nil
}
