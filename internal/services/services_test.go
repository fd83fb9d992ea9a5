package services

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"envelopes/internal/amqp"
	"envelopes/internal/cache"
	"envelopes/internal/core"
	"envelopes/internal/fill"
	"envelopes/internal/importer"
	"envelopes/internal/ledger"
	"envelopes/internal/store"
	"envelopes/internal/store/memory"
)

type seqGen struct{ n int }

func (g *seqGen) NewID() string {
	g.n++
	return "id" + strconv.Itoa(g.n)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []amqp.LedgerEvent
	err    error
	closed bool
}

func (p *recordingPublisher) Publish(_ context.Context, ev *amqp.LedgerEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, *ev)
	return p.err
}

func (p *recordingPublisher) Close() error {
	p.closed = true
	return nil
}

func (p *recordingPublisher) kinds() []amqp.EventKind {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []amqp.EventKind
	for _, ev := range p.events {
		out = append(out, ev.Kind)
	}
	return out
}

var (
	checking    = core.Bucket{ID: "account/chk", Name: "Checking", Type: core.Account}
	unallocated = core.Bucket{ID: "envelope/unalloc", Name: core.UnallocatedName, Type: core.Envelope}
	food        = core.Bucket{ID: "envelope/food", Name: "Food", Type: core.Envelope, Extra: core.EnvelopeExtra{Target: 4000, Interval: core.Weekly}}
	fun         = core.Bucket{ID: "envelope/fun", Name: "Fun", Type: core.Envelope, Extra: core.EnvelopeExtra{Target: 1000, Interval: core.Monthly}}
)

var today = core.NewDate(2024, 3, 10)

type fixture struct {
	store   *memory.Store
	pub     *recordingPublisher
	ledger  *LedgerService
	fills   *FillService
	imports *ImportService
	buckets *BucketService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := memory.NewSeeded([]core.Bucket{checking, unallocated, food, fun})
	pub := &recordingPublisher{}
	gen := &seqGen{}
	clock := core.FixedClock{At: today.Time}
	l := NewLedgerService(st, pub, cache.NewLRUCache[[]ledger.Balance](4, time.Minute))
	return &fixture{
		store:   st,
		pub:     pub,
		ledger:  l,
		fills:   NewFillService(l, gen, clock),
		imports: NewImportService(l, gen),
		buckets: NewBucketService(l, gen),
	}
}

func bankTxn(t *testing.T, id, payee string, cat core.Bucket, amount core.Pennies) core.BankTxn {
	t.Helper()
	b := core.NewBankTxn(core.NewDate(2024, 3, 1))
	b.ID = id
	b.Payee = payee
	b.From = checking.Ref()
	b.AddCategory(core.EnvelopeEvent{Name: cat.Name, ID: cat.ID, Amount: amount})
	txn, err := b.Build()
	require.NoError(t, err)
	return txn
}

func (f *fixture) seedIncomeAndSpend(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.ledger.Save(ctx, bankTxn(t, "t1", "Employer", unallocated, 10000)))
	require.NoError(t, f.ledger.Save(ctx, bankTxn(t, "t2", "Grocer", food, -1200)))
}

func balanceMap(bs []ledger.Balance) map[string]core.Pennies {
	out := make(map[string]core.Pennies)
	for _, b := range bs {
		out[b.ID] = b.Balance
	}
	return out
}

func TestLedgerService_SaveAndBalances(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedIncomeAndSpend(t)

	got, err := f.ledger.Balances(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]core.Pennies{
		"account/chk":      8800,
		"envelope/unalloc": 10000,
		"envelope/food":    -1200,
		"envelope/fun":     0,
	}, balanceMap(got))
	assert.Equal(t, []string{"Checking", core.UnallocatedName, "Food", "Fun"}, names(got))

	envs, err := f.ledger.BalancesOf(ctx, core.Envelope)
	require.NoError(t, err)
	assert.Equal(t, core.Pennies(8800), ledger.Total(envs))

	assert.Equal(t, []amqp.EventKind{amqp.EventTxnSaved, amqp.EventTxnSaved}, f.pub.kinds())
}

func names(bs []ledger.Balance) []string {
	var out []string
	for _, b := range bs {
		out = append(out, b.Name)
	}
	return out
}

func TestLedgerService_CacheInvalidatedOnWrite(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedIncomeAndSpend(t)

	first, err := f.ledger.Balances(ctx)
	require.NoError(t, err)
	first[0].Balance = 999999 // callers cannot poison the cache

	again, err := f.ledger.Balances(ctx)
	require.NoError(t, err)
	assert.Equal(t, core.Pennies(8800), balanceMap(again)["account/chk"])

	require.NoError(t, f.ledger.Delete(ctx, "t2"))
	after, err := f.ledger.Balances(ctx)
	require.NoError(t, err)
	assert.Equal(t, core.Pennies(10000), balanceMap(after)["account/chk"])
	assert.Equal(t, amqp.EventTxnDeleted, f.pub.kinds()[2])
}

// pausingStore holds the first ListTxns call after it has read the
// journal, until release is closed.
type pausingStore struct {
	*memory.Store
	once    sync.Once
	read    chan struct{}
	release chan struct{}
}

func (s *pausingStore) ListTxns(ctx context.Context) ([]core.Transaction, error) {
	txns, err := s.Store.ListTxns(ctx)
	s.once.Do(func() {
		close(s.read)
		<-s.release
	})
	return txns, err
}

func TestLedgerService_ConcurrentWriteDuringCompute(t *testing.T) {
	ctx := context.Background()
	st := &pausingStore{
		Store:   memory.NewSeeded([]core.Bucket{checking, food}),
		read:    make(chan struct{}),
		release: make(chan struct{}),
	}
	l := NewLedgerService(st, nil, cache.NewLRUCache[[]ledger.Balance](4, time.Minute))

	done := make(chan error, 1)
	go func() {
		_, err := l.Balances(ctx)
		done <- err
	}()

	<-st.read
	require.NoError(t, l.Save(ctx, bankTxn(t, "t1", "Grocer", food, -700)))
	close(st.release)
	require.NoError(t, <-done)

	after, err := l.Balances(ctx)
	require.NoError(t, err)
	assert.Equal(t, core.Pennies(-700), balanceMap(after)["account/chk"])
}

func TestLedgerService_SaveRejectsInvalid(t *testing.T) {
	f := newFixture(t)
	b := core.NewBankTxn(today)
	b.ID = "bad"
	err := f.ledger.Save(context.Background(), b.Draft())

	var verr *core.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{core.MsgPayeeMissing, core.MsgAccountMissing, core.MsgNoCategories}, verr.Messages)
	assert.Empty(t, f.pub.kinds())
}

func TestLedgerService_PublishFailureDoesNotFailSave(t *testing.T) {
	f := newFixture(t)
	f.pub.err = errors.New("circuit breaker is open")
	require.NoError(t, f.ledger.Save(context.Background(), bankTxn(t, "t1", "Employer", unallocated, 500)))

	_, err := f.ledger.Get(context.Background(), "t1")
	require.NoError(t, err)
}

func TestLedgerService_ListAndDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedIncomeAndSpend(t)

	all, err := f.ledger.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = f.ledger.List(ctx, "expense")
	assert.ErrorIs(t, err, core.ErrUnknownType)

	forChecking, err := f.ledger.ListForAccount(ctx, "account/chk")
	require.NoError(t, err)
	assert.Len(t, forChecking, 2)

	err = f.ledger.Delete(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestLedgerService_Close(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.ledger.Close())
	assert.True(t, f.pub.closed)

	empty := &LedgerService{}
	assert.NoError(t, empty.Close())
}

func TestFillService_PlanSaveLoadDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedIncomeAndSpend(t)

	plan, err := f.fills.Plan(ctx, fill.ModePeriodic)
	require.NoError(t, err)
	assert.Equal(t, unallocated.ID, plan.UnallocatedID)
	assert.Equal(t, core.Pennies(10000), plan.Unallocated)
	assert.Equal(t, core.Pennies(5000), plan.Remaining)
	require.Len(t, plan.Proposals, 2)
	assert.True(t, plan.Proposals[0].Due)

	proposals := append(plan.Proposals, fill.Proposal{EnvelopeID: "envelope/none", Amount: 0})
	group, fills, err := f.fills.SaveGroup(ctx, "", core.Date{}, proposals)
	require.NoError(t, err)
	require.Len(t, fills, 2)
	assert.Equal(t, "fill/2024-03-10/id1", group)

	bal, err := f.ledger.Balances(ctx)
	require.NoError(t, err)
	m := balanceMap(bal)
	assert.Equal(t, core.Pennies(5000), m[unallocated.ID])
	assert.Equal(t, core.Pennies(2800), m[food.ID])
	assert.Equal(t, core.Pennies(1000), m[fun.ID])
	assert.Equal(t, core.Pennies(8800), m[checking.ID])

	// A second plan sees the fresh fills.
	plan, err = f.fills.Plan(ctx, fill.ModePeriodic)
	require.NoError(t, err)
	for _, p := range plan.Proposals {
		assert.False(t, p.Due, p.Name)
	}

	loaded, err := f.fills.LoadGroup(ctx, group)
	require.NoError(t, err)
	assert.ElementsMatch(t, []fill.Proposal{
		{EnvelopeID: food.ID, Name: "Food", Amount: 4000},
		{EnvelopeID: fun.ID, Name: "Fun", Amount: 1000},
	}, loaded)

	// Saving the same group again replaces it.
	_, fills, err = f.fills.SaveGroup(ctx, group, today, []fill.Proposal{{EnvelopeID: food.ID, Amount: 100}})
	require.NoError(t, err)
	require.Len(t, fills, 1)
	loaded, err = f.fills.LoadGroup(ctx, group)
	require.NoError(t, err)
	assert.Len(t, loaded, 1)

	n, err := f.fills.DeleteGroup(ctx, group)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	_, err = f.fills.LoadGroup(ctx, group)
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = f.fills.DeleteGroup(ctx, group)
	assert.ErrorIs(t, err, store.ErrNotFound)

	assert.Contains(t, f.pub.kinds(), amqp.EventFillSaved)
	assert.Contains(t, f.pub.kinds(), amqp.EventFillDeleted)
}

func TestFillService_ZeroOut(t *testing.T) {
	f := newFixture(t)
	f.seedIncomeAndSpend(t)
	plan, err := f.fills.Plan(context.Background(), fill.ModeZeroOut)
	require.NoError(t, err)
	for _, p := range plan.Proposals {
		if p.EnvelopeID == food.ID {
			assert.Equal(t, core.Pennies(1200), p.Amount)
		}
	}
	assert.Equal(t, core.Pennies(8800), plan.Remaining)
}

func TestFillService_RequiresUnallocated(t *testing.T) {
	st := memory.NewSeeded([]core.Bucket{checking, food})
	l := NewLedgerService(st, nil, nil)
	fs := NewFillService(l, &seqGen{}, core.FixedClock{At: today.Time})

	_, err := fs.Plan(context.Background(), fill.ModePeriodic)
	assert.ErrorIs(t, err, fill.ErrNoUnallocated)
	_, _, err = fs.SaveGroup(context.Background(), "", today, []fill.Proposal{{EnvelopeID: food.ID, Amount: 1}})
	assert.ErrorIs(t, err, fill.ErrNoUnallocated)
}

func TestImportService(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rows := []importer.Row{
		{Date: "2024-03-01", Amount: "-12.00", Account: "Checking", Name: "Grocer", Envelope: "Food"},
		{Date: "2024-03-02", Amount: "-50.00", Account: "Checking", Notes: importer.NotesAccountTransfer},
		{Date: "2024-03-02", Amount: "50.00", Account: "Savings", Notes: importer.NotesAccountTransfer},
		{Date: "2024-03-03", Amount: "-7.00", Account: "Checking", Notes: importer.NotesAccountTransfer},
		{Date: "2024-03-04", Amount: "-10.00", Account: importer.AccountNone, Envelope: "Food"},
		{Date: "bad", Amount: "-1.00", Account: "Checking", Name: "Nowhere", Envelope: "Travel"},
	}

	res, err := f.imports.Import(ctx, rows)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Imported)
	assert.Len(t, res.Unmatched, 1)
	assert.Len(t, res.Rejected, 1)
	assert.Len(t, res.RejectedMessages(), 1)
	assert.Empty(t, res.Invalid)
	require.Len(t, res.CreatedBuckets, 1)
	assert.Equal(t, "Savings", res.CreatedBuckets[0].Name)
	assert.Equal(t, core.Account, res.CreatedBuckets[0].Type)

	bal, err := f.ledger.Balances(ctx)
	require.NoError(t, err)
	m := balanceMap(bal)
	assert.Equal(t, core.Pennies(-1200-5000), m[checking.ID])
	assert.Equal(t, core.Pennies(5000), m[res.CreatedBuckets[0].ID])
	assert.Equal(t, core.Pennies(-1200), m[food.ID])
	assert.Equal(t, amqp.EventImportDone, f.pub.kinds()[len(f.pub.kinds())-1])
}

func TestImportService_InvalidTransactionsCreateNoBuckets(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rows := []importer.Row{
		{Date: "2024-03-05", Amount: "-20.00", Account: "Vault", Notes: importer.NotesAccountTransfer},
		{Date: "2024-03-05", Amount: "20.00", Account: "Vault", Notes: importer.NotesAccountTransfer},
	}

	res, err := f.imports.Import(ctx, rows)
	require.NoError(t, err)
	assert.Zero(t, res.Imported)
	require.Len(t, res.Invalid, 1)
	assert.Empty(t, res.CreatedBuckets)

	buckets, err := f.store.ListBuckets(ctx)
	require.NoError(t, err)
	for _, b := range buckets {
		assert.NotEqual(t, "Vault", b.Name)
	}
}

func TestBucketService(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	saved, err := f.buckets.Save(ctx, core.Bucket{Name: "  Travel ", Type: core.Envelope, Extra: core.EnvelopeExtra{Interval: core.Annually}})
	require.NoError(t, err)
	assert.Equal(t, "envelope/id1", saved.ID)
	assert.Equal(t, "Travel", saved.Name)

	_, err = f.buckets.Save(ctx, core.Bucket{Name: "X", Type: "piggy"})
	assert.ErrorIs(t, err, core.ErrInvalidBucketType)

	withTags := food
	withTags.Tags = map[string]string{"group": "essentials"}
	n, err := f.buckets.SaveTags(ctx, []core.Bucket{withTags, fun})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := f.store.GetBucket(ctx, food.ID)
	require.NoError(t, err)
	assert.Equal(t, "essentials", got.Tags["group"])
	assert.Equal(t, food.Extra, got.Extra)

	n, err = f.buckets.SaveTags(ctx, []core.Bucket{withTags})
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = f.buckets.SaveTags(ctx, []core.Bucket{{ID: "envelope/ghost"}})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSnapshotProcessor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedIncomeAndSpend(t)

	p := NewSnapshotProcessor(f.ledger, SnapshotProcessorConfig{Interval: time.Hour})
	assert.False(t, p.IsRunning())
	assert.NoError(t, p.Stop(ctx))

	p.now = func() time.Time { return time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC) }
	snap, err := p.TakeSnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, core.Pennies(8800), balanceMap(snap.Balances)[checking.ID])

	latest, err := f.store.LatestSnapshot(ctx)
	require.NoError(t, err)
	assert.True(t, latest.TakenAt.Equal(snap.TakenAt))

	require.NoError(t, p.Start(ctx))
	assert.True(t, p.IsRunning())
	assert.Error(t, p.Start(ctx))

	stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, p.Stop(stopCtx))
	assert.False(t, p.IsRunning())
}

func TestDefaultSnapshotProcessorConfig(t *testing.T) {
	cfg := DefaultSnapshotProcessorConfig()
	assert.Equal(t, 15*time.Minute, cfg.Interval)
	assert.Equal(t, 96, cfg.Keep)

	p := NewSnapshotProcessor(nil, SnapshotProcessorConfig{})
	assert.Equal(t, 15*time.Minute, p.config.Interval)
}
