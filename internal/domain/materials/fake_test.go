package materials

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"sitetrack/internal/core/apperror"
	"sitetrack/internal/core/id"
	"sitetrack/internal/core/types"
	"sitetrack/internal/domain"
)

// memoryRepo is an in-memory Repository. Reads return copies so that only
// explicit writes change stored state, like a real database.
type memoryRepo struct {
	mu      sync.Mutex
	batches map[id.ID]*Batch
	order   []id.ID
	events  []UsageEvent

	failAppend error
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{batches: make(map[id.ID]*Batch)}
}

func cloneBatch(b *Batch) *Batch {
	c := *b
	c.UsageEvents = nil
	if b.DeletedAt != nil {
		t := *b.DeletedAt
		c.DeletedAt = &t
	}
	return &c
}

func (r *memoryRepo) eventsOf(batchID id.ID) []UsageEvent {
	out := []UsageEvent{}
	for _, e := range r.events {
		if e.BatchID == batchID {
			out = append(out, e)
		}
	}
	slices.SortStableFunc(out, func(a, b UsageEvent) int {
		if c := a.Date.Compare(b.Date); c != 0 {
			return c
		}
		return id.Compare(a.ID, b.ID)
	})
	return out
}

func (r *memoryRepo) live(match func(*Batch) bool) []*Batch {
	var out []*Batch
	for _, bid := range r.order {
		b := r.batches[bid]
		if b.DeletedAt == nil && match(b) {
			out = append(out, cloneBatch(b))
		}
	}
	return out
}

type repoState struct {
	batches map[id.ID]*Batch
	order   []id.ID
	events  []UsageEvent
}

func (r *memoryRepo) snapshot() repoState {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := repoState{batches: make(map[id.ID]*Batch, len(r.batches))}
	for k, v := range r.batches {
		s.batches[k] = cloneBatch(v)
	}
	s.order = slices.Clone(r.order)
	s.events = slices.Clone(r.events)
	return s
}

func (r *memoryRepo) restore(s repoState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = s.batches
	r.order = s.order
	r.events = s.events
}

func (r *memoryRepo) Create(ctx context.Context, b *Batch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches[b.ID] = cloneBatch(b)
	r.order = append(r.order, b.ID)
	return nil
}

func (r *memoryRepo) GetByID(ctx context.Context, batchID id.ID) (*Batch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.batches[batchID]
	if !ok || b.DeletedAt != nil {
		return nil, apperror.NewNotFound(AuditEntityBatch, batchID.String())
	}
	c := cloneBatch(b)
	c.UsageEvents = r.eventsOf(batchID)
	return c, nil
}

func (r *memoryRepo) GetByIDForUpdate(ctx context.Context, batchID id.ID) (*Batch, error) {
	b, err := r.GetByID(ctx, batchID)
	if err != nil {
		return nil, err
	}
	b.UsageEvents = nil
	return b, nil
}

func (r *memoryRepo) List(ctx context.Context, f ListFilter) (domain.ListResult[Batch], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := r.live(func(b *Batch) bool {
		if f.MaterialCode != "" && b.MaterialCode != f.MaterialCode {
			return false
		}
		if f.ProjectID != nil && b.ProjectID != *f.ProjectID {
			return false
		}
		if f.Status != "" && b.Status != f.Status {
			return false
		}
		if f.OnlyInStock && !b.RemainingQuantity.IsPositive() {
			return false
		}
		if f.Search != "" && !strings.Contains(strings.ToLower(b.Name), strings.ToLower(f.Search)) {
			return false
		}
		return true
	})
	SortFIFO(all)

	res := domain.NewListResult[Batch](f.ListFilter)
	res.TotalCount = int64(len(all))
	for i, b := range all {
		if i < f.Offset {
			continue
		}
		if len(res.Items) == f.Limit {
			break
		}
		res.Items = append(res.Items, *b)
	}
	return res, nil
}

func (r *memoryRepo) ListByProject(ctx context.Context, projectID id.ID) ([]*Batch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Batch
	for _, bid := range r.order {
		b := r.batches[bid]
		if b.ProjectID == projectID {
			c := cloneBatch(b)
			c.UsageEvents = r.eventsOf(bid)
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *memoryRepo) LockAvailableByCode(ctx context.Context, code string) ([]*Batch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.live(func(b *Batch) bool {
		return b.MaterialCode == code && b.RemainingQuantity.IsPositive()
	})
	SortFIFO(out)
	return out, nil
}

func (r *memoryRepo) LockByCode(ctx context.Context, code string) ([]*Batch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.live(func(b *Batch) bool { return b.MaterialCode == code }), nil
}

func (r *memoryRepo) UpdateRemaining(ctx context.Context, batches []*Batch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range batches {
		stored, ok := r.batches[b.ID]
		if !ok || stored.Version != b.Version {
			return apperror.NewConcurrentModification(AuditEntityBatch, b.ID.String())
		}
		stored.RemainingQuantity = b.RemainingQuantity
		stored.Version++
		b.Version = stored.Version
	}
	return nil
}

func (r *memoryRepo) AppendUsageEvents(ctx context.Context, events []UsageEvent) error {
	if r.failAppend != nil {
		return r.failAppend
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, events...)
	return nil
}

func (r *memoryRepo) Update(ctx context.Context, b *Batch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.batches[b.ID]
	if !ok || stored.Version != b.Version {
		return apperror.NewConcurrentModification(AuditEntityBatch, b.ID.String())
	}
	c := cloneBatch(b)
	c.Version++
	r.batches[b.ID] = c
	b.Version = c.Version
	return nil
}

func (r *memoryRepo) UpdateStatusByCode(ctx context.Context, code string, status Status, zero bool) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, b := range r.batches {
		if b.MaterialCode != code || b.DeletedAt != nil {
			continue
		}
		b.Status = status
		if zero {
			b.RemainingQuantity = 0
		}
		b.Version++
		n++
	}
	return n, nil
}

func (r *memoryRepo) SoftDelete(ctx context.Context, ids []id.ID, at time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, bid := range ids {
		if b, ok := r.batches[bid]; ok && b.DeletedAt == nil {
			t := at
			b.DeletedAt = &t
			n++
		}
	}
	return n, nil
}

func (r *memoryRepo) SumRemaining(ctx context.Context, code string) (types.Quantity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return TotalRemaining(r.live(func(b *Batch) bool { return b.MaterialCode == code })), nil
}

func (r *memoryRepo) SumConsumed(ctx context.Context, code string) (types.Quantity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var total types.Quantity
	for _, e := range r.events {
		if b, ok := r.batches[e.BatchID]; ok && b.MaterialCode == code {
			total += e.Quantity
		}
	}
	return total, nil
}

func (r *memoryRepo) Summaries(ctx context.Context, f SummaryFilter) ([]Summary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	byCode := map[string]*Summary{}
	var codes []string
	for _, b := range r.live(func(b *Batch) bool { return f.ProjectID == nil || b.ProjectID == *f.ProjectID }) {
		s, ok := byCode[b.MaterialCode]
		if !ok {
			s = &Summary{MaterialCode: b.MaterialCode, Name: b.Name}
			byCode[b.MaterialCode] = s
			codes = append(codes, b.MaterialCode)
		}
		s.Batches++
		s.Delivered += b.DeliveredQuantity
		s.Available += b.RemainingQuantity
		for _, e := range r.eventsOf(b.ID) {
			s.Consumed += e.Quantity
		}
	}
	slices.Sort(codes)
	out := make([]Summary, 0, len(codes))
	for _, c := range codes {
		out = append(out, *byCode[c])
	}
	return out, nil
}

// snapshotTx rolls the memory repo back when fn fails.
type snapshotTx struct {
	repo  *memoryRepo
	calls int
}

func (m *snapshotTx) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	m.calls++
	saved := m.repo.snapshot()
	if err := fn(ctx); err != nil {
		m.repo.restore(saved)
		return err
	}
	return nil
}

type fakeProjects map[id.ID]bool

func (p fakeProjects) Exists(ctx context.Context, projectID id.ID) (bool, error) {
	return p[projectID], nil
}

type auditEntry struct {
	entityType, entityID, action string
	changes                      map[string]any
}

type fakeAuditor struct {
	entries []auditEntry
	fail    error
}

func (a *fakeAuditor) Record(ctx context.Context, entityType, entityID, action string, changes map[string]any) error {
	if a.fail != nil {
		return a.fail
	}
	a.entries = append(a.entries, auditEntry{entityType, entityID, action, changes})
	return nil
}

type fakeObserver struct{ outcomes []string }

func (o *fakeObserver) ObserveConsumption(code, outcome string, quantity float64, batches int, elapsed time.Duration) {
	o.outcomes = append(o.outcomes, outcome)
}

type publishedEvent struct {
	aggregateID, eventType string
}

type fakeEvents struct {
	published []publishedEvent
	fail      error
}

func (e *fakeEvents) Publish(ctx context.Context, aggregateType, aggregateID, eventType string, payload any) error {
	if e.fail != nil {
		return e.fail
	}
	e.published = append(e.published, publishedEvent{aggregateID, eventType})
	return nil
}
