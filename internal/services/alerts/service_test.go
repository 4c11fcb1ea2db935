package alerts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"esgwatch/internal/adapters/memory"
	"esgwatch/internal/domain"
	"esgwatch/internal/ports"
)

var t0 = time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

type recordingPublisher struct {
	mu       sync.Mutex
	subjects []string
	fail     bool
}

func (p *recordingPublisher) Publish(subject string, _ any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subjects = append(p.subjects, subject)
	if p.fail {
		return errors.New("bus down")
	}
	return nil
}

type recordingNotifier struct {
	mu      sync.Mutex
	got     []ports.Escalation
	err     error
	release chan struct{}
	ctxErr  error
}

func (n *recordingNotifier) NotifyEscalation(ctx context.Context, e ports.Escalation) error {
	if n.release != nil {
		<-n.release
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.got = append(n.got, e)
	n.ctxErr = ctx.Err()
	return n.err
}

func (n *recordingNotifier) deliveries() []ports.Escalation {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]ports.Escalation(nil), n.got...)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newService(t *testing.T, clock *time.Time, opts ...Option) (*Service, *memory.Store, *recordingPublisher) {
	t.Helper()
	store := memory.NewStore().WithClock(func() time.Time { return *clock })
	pub := &recordingPublisher{}
	seq := 0
	opts = append([]Option{
		WithClock(func() time.Time { return *clock }),
		WithIDGenerator(func() string { seq++; return fmt.Sprintf("alert-%d", seq) }),
	}, opts...)
	return New(store, pub, quietLogger(), opts...), store, pub
}

func draft(supplier, category string, sev domain.Severity) domain.AlertDraft {
	return domain.AlertDraft{SupplierID: supplier, Title: category + " issue", Category: category, Severity: sev}
}

func TestCreateAssignsDefaultsAndDeduplicates(t *testing.T) {
	now := t0
	svc, _, pub := newService(t, &now)
	ctx := context.Background()

	first, err := svc.Create(ctx, draft("s1", "environmental", domain.SeverityHigh))
	require.NoError(t, err)
	assert.True(t, first.Created)
	assert.Equal(t, domain.StatusOpen, first.Alert.Status)
	assert.Equal(t, t0, first.Alert.DetectedAt)
	assert.Equal(t, t0.Add(3*24*time.Hour), first.Alert.DueDate)

	again, err := svc.Create(ctx, draft("s1", "environmental", domain.SeverityCritical))
	require.NoError(t, err)
	assert.False(t, again.Created)
	assert.Equal(t, first.Alert.ID, again.Alert.ID)

	assert.Equal(t, []string{SubjectCreated}, pub.subjects)
}

func TestCreateRejectsMissingFields(t *testing.T) {
	now := t0
	svc, _, _ := newService(t, &now)
	_, err := svc.Create(context.Background(), domain.AlertDraft{Title: "x"})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestAdmitAllCountsCreatedAndExisting(t *testing.T) {
	now := t0
	svc, _, _ := newService(t, &now)
	created, existing, err := svc.AdmitAll(context.Background(), []domain.AlertDraft{
		draft("s1", "environmental", domain.SeverityHigh),
		draft("s1", "environmental", domain.SeverityHigh),
		draft("s2", "social", domain.SeverityMedium),
		{Title: "no supplier"},
	})
	assert.Equal(t, 2, created)
	assert.Equal(t, 1, existing)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestResolveTwiceConflicts(t *testing.T) {
	now := t0
	svc, _, _ := newService(t, &now)
	ctx := context.Background()
	adm, err := svc.Create(ctx, draft("s1", "governance", domain.SeverityMedium))
	require.NoError(t, err)

	now = t0.Add(5 * time.Hour)
	resolved, err := svc.Resolve(ctx, adm.Alert.ID, "alice", "fixed")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusResolved, resolved.Status)
	require.NotNil(t, resolved.ResolvedAt)
	assert.Equal(t, now, *resolved.ResolvedAt)
	h, ok := resolved.ResolutionHours()
	require.True(t, ok)
	assert.Equal(t, 5.0, h)

	_, err = svc.Resolve(ctx, adm.Alert.ID, "bob", "again")
	var te *domain.TransitionError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, domain.StatusResolved, te.From)
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestResolvedAlertIsNeverOverdue(t *testing.T) {
	now := t0
	svc, _, _ := newService(t, &now)
	ctx := context.Background()
	adm, err := svc.Create(ctx, draft("s1", "social", domain.SeverityCritical))
	require.NoError(t, err)

	now = t0.Add(72 * time.Hour)
	got, err := svc.Get(ctx, adm.Alert.ID)
	require.NoError(t, err)
	assert.True(t, got.IsOverdue(now))
	assert.Equal(t, 2, got.DaysOverdue(now))

	resolved, err := svc.Resolve(ctx, adm.Alert.ID, "alice", "")
	require.NoError(t, err)
	assert.False(t, resolved.IsOverdue(now))
	assert.Equal(t, 0, resolved.DaysOverdue(now))
}

func TestFullLifecyclePublishesEachStep(t *testing.T) {
	now := t0
	svc, _, pub := newService(t, &now)
	ctx := context.Background()
	adm, err := svc.Create(ctx, draft("s1", "environmental", domain.SeverityLow))
	require.NoError(t, err)
	id := adm.Alert.ID

	_, err = svc.Start(ctx, id)
	require.NoError(t, err)
	esc, err := svc.Escalate(ctx, id, "cso@example.com", "no response")
	require.NoError(t, err)
	require.NoError(t, esc.CheckInvariants())
	res, err := svc.Resolve(ctx, id, "cso", "done")
	require.NoError(t, err)
	assert.Nil(t, res.EscalatedAt)
	require.NoError(t, res.CheckInvariants())
	closed, err := svc.Close(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusClosed, closed.Status)
	assert.Equal(t, int64(5), closed.Version)

	title := "changed"
	_, err = svc.Update(ctx, id, domain.AlertPatch{Title: &title})
	assert.ErrorIs(t, err, domain.ErrConflict)

	assert.Equal(t, []string{SubjectCreated, SubjectStarted, SubjectEscalated, SubjectResolved, SubjectClosed}, pub.subjects)
}

func TestEscalateNotifies(t *testing.T) {
	now := t0
	n := &recordingNotifier{}
	svc, _, _ := newService(t, &now, WithNotifier(n))
	ctx := context.Background()
	adm, err := svc.Create(ctx, draft("s1", "environmental", domain.SeverityHigh))
	require.NoError(t, err)

	_, err = svc.Escalate(ctx, adm.Alert.ID, "board", "repeat offender")
	require.NoError(t, err)
	svc.WaitNotifications()
	got := n.deliveries()
	require.Len(t, got, 1)
	assert.Equal(t, "board", got[0].To)
	assert.Equal(t, "repeat offender", got[0].Reason)
	assert.Equal(t, "high", got[0].Severity)

	// a failing notifier does not fail the escalation
	n.mu.Lock()
	n.err = errors.New("webhook down")
	n.mu.Unlock()
	_, err = svc.Escalate(ctx, adm.Alert.ID, "board", "still open")
	require.NoError(t, err)
	svc.WaitNotifications()
	assert.Len(t, n.deliveries(), 2)
}

func TestEscalateDoesNotWaitForDelivery(t *testing.T) {
	now := t0
	n := &recordingNotifier{release: make(chan struct{})}
	svc, _, _ := newService(t, &now, WithNotifier(n))
	ctx, cancel := context.WithCancel(context.Background())
	adm, err := svc.Create(ctx, draft("s1", "environmental", domain.SeverityHigh))
	require.NoError(t, err)

	esc, err := svc.Escalate(ctx, adm.Alert.ID, "board", "slow webhook")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusEscalated, esc.Status)
	assert.Empty(t, n.deliveries())

	// the request ending must not cancel delivery
	cancel()
	close(n.release)
	svc.WaitNotifications()
	require.Len(t, n.deliveries(), 1)
	n.mu.Lock()
	assert.NoError(t, n.ctxErr)
	n.mu.Unlock()
}

func TestUpdateCategoryOntoOpenAlertConflicts(t *testing.T) {
	now := t0
	svc, store, _ := newService(t, &now)
	ctx := context.Background()
	env, err := svc.Create(ctx, draft("s1", "environmental", domain.SeverityHigh))
	require.NoError(t, err)
	social, err := svc.Create(ctx, draft("s1", "social", domain.SeverityMedium))
	require.NoError(t, err)

	category := "environmental"
	_, err = svc.Update(ctx, social.Alert.ID, domain.AlertPatch{Category: &category})
	require.ErrorIs(t, err, domain.ErrConflict)

	unchanged, err := svc.Get(ctx, social.Alert.ID)
	require.NoError(t, err)
	assert.Equal(t, "social", unchanged.Category)
	assert.Equal(t, social.Alert.Version, unchanged.Version)

	open, err := store.ListAlerts(ctx, domain.AlertFilter{SupplierID: "s1", Category: "environmental", Statuses: []domain.AlertStatus{domain.StatusOpen}})
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, env.Alert.ID, open[0].ID)

	// once the environmental alert is resolved the category is free
	_, err = svc.Resolve(ctx, env.Alert.ID, "ops", "")
	require.NoError(t, err)
	moved, err := svc.Update(ctx, social.Alert.ID, domain.AlertPatch{Category: &category})
	require.NoError(t, err)
	assert.Equal(t, "environmental", moved.Category)

	again, err := svc.Create(ctx, draft("s1", "environmental", domain.SeverityLow))
	require.NoError(t, err)
	assert.False(t, again.Created)
	assert.Equal(t, social.Alert.ID, again.Alert.ID)
}

func TestPublishFailureDoesNotFailCall(t *testing.T) {
	now := t0
	svc, _, pub := newService(t, &now)
	pub.fail = true
	adm, err := svc.Create(context.Background(), draft("s1", "environmental", domain.SeverityHigh))
	require.NoError(t, err)
	assert.True(t, adm.Created)
}

func TestUpdateUnknownAlert(t *testing.T) {
	now := t0
	svc, _, _ := newService(t, &now)
	_, err := svc.Start(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestConcurrentResolveHasOneWinner(t *testing.T) {
	now := t0
	svc, _, _ := newService(t, &now)
	ctx := context.Background()
	adm, err := svc.Create(ctx, draft("s1", "environmental", domain.SeverityHigh))
	require.NoError(t, err)

	const n = 16
	var wins, conflicts atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.Resolve(ctx, adm.Alert.ID, fmt.Sprintf("user-%d", i), "")
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, domain.ErrConflict):
				conflicts.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
	assert.Equal(t, int32(n-1), conflicts.Load())
}

// staleRepo always loses the compare-and-swap.
type staleRepo struct {
	ports.AlertRepository
	updates atomic.Int32
}

func (r *staleRepo) UpdateAlert(context.Context, domain.ComplianceAlert, int64) (domain.ComplianceAlert, error) {
	r.updates.Add(1)
	return domain.ComplianceAlert{}, domain.ErrStaleVersion
}

func TestStaleWritesAreRetriedThenConflict(t *testing.T) {
	store := memory.NewStore()
	a, err := domain.NewAlert("a1", draft("s1", "environmental", domain.SeverityHigh), t0)
	require.NoError(t, err)
	_, _, err = store.AdmitAlert(context.Background(), a)
	require.NoError(t, err)

	repo := &staleRepo{AlertRepository: store}
	svc := New(repo, nil, quietLogger(), WithRetryPolicy(RetryPolicy{
		MaxRetries:      3,
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
	}))

	_, err = svc.Start(context.Background(), "a1")
	assert.ErrorIs(t, err, domain.ErrConflict)
	assert.NotErrorIs(t, err, domain.ErrStaleVersion)
	assert.Equal(t, int32(4), repo.updates.Load())
}

func TestListFiltersAndSorts(t *testing.T) {
	now := t0
	svc, _, _ := newService(t, &now)
	ctx := context.Background()
	for i, sev := range []domain.Severity{domain.SeverityLow, domain.SeverityCritical, domain.SeverityMedium} {
		now = t0.Add(time.Duration(i) * time.Hour)
		_, err := svc.Create(ctx, draft(fmt.Sprintf("s%d", i), "environmental", sev))
		require.NoError(t, err)
	}
	out, err := svc.List(ctx, domain.AlertFilter{Sort: domain.SortBySeverity, Desc: true}, false)
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, domain.SeverityCritical, out[0].Alert.Severity)
	assert.Equal(t, domain.SeverityLow, out[2].Alert.Severity)
	assert.Nil(t, out[0].Supplier)
}

func TestListIncludesSuppliersWhenAsked(t *testing.T) {
	now := t0
	svc, store, _ := newService(t, &now)
	ctx := context.Background()
	require.NoError(t, store.SaveSupplier(ctx, domain.Supplier{Record: domain.Record{ID: "s1"}, Name: "Acme", Active: true, RiskTier: domain.RiskHigh}))
	_, err := svc.Create(ctx, draft("s1", "environmental", domain.SeverityHigh))
	require.NoError(t, err)
	_, err = svc.Create(ctx, draft("s1", "social", domain.SeverityLow))
	require.NoError(t, err)
	_, err = svc.Create(ctx, draft("ghost", "social", domain.SeverityLow))
	require.NoError(t, err)

	out, err := svc.List(ctx, domain.AlertFilter{Sort: domain.SortBySupplier}, true)
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Nil(t, out[0].Supplier, "unknown supplier stays unloaded")
	require.NotNil(t, out[1].Supplier)
	assert.Equal(t, "Acme", out[1].Supplier.Name)
	assert.Equal(t, domain.RiskHigh, out[1].Supplier.RiskTier)
	assert.Same(t, out[1].Supplier, out[2].Supplier)
}
