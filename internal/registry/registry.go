package registry

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"gorm.io/gorm"

	"pushreg-backend/internal/model"
)

// ErrWriteFailed wraps any rejected registry write. Callers report the
// operation as failed; the next feed-triggered reconciliation pass
// re-attempts if state still requires it, so no retry happens here.
var ErrWriteFailed = errors.New("registry write failed")

// ErrNotFound is returned when the targeted record does not exist.
var ErrNotFound = errors.New("registration not found")

// SnapshotFunc receives the full current set of a user's registration
// records on every change, including changes caused by the subscriber's
// own writes.
type SnapshotFunc func([]model.Registration)

// Registry is the durable, subscribable store of registration records.
// All operations are scoped to a user.
type Registry interface {
	Create(ctx context.Context, rec *model.Registration) (uint, error)
	Update(ctx context.Context, id uint, fields map[string]any) error
	Delete(ctx context.Context, id uint) error
	ListByUser(ctx context.Context, userID string) ([]model.Registration, error)
	// SubscribeToUserRecords registers fn for live snapshots of the user's
	// records. The returned function cancels the subscription. Snapshots
	// are delivered serially per subscriber; if deliveries fall behind,
	// intermediate snapshots are skipped in favor of the latest one, which
	// is safe because each snapshot is full state, not a diff.
	SubscribeToUserRecords(userID string, fn SnapshotFunc) (cancel func())
}

// gormRegistry implements Registry on a gorm database, with an in-process
// broadcaster for the live feed.
type gormRegistry struct {
	db *gorm.DB

	mu   sync.Mutex
	subs map[string][]*subscriber
}

// NewGormRegistry creates a new gorm-backed registry.
func NewGormRegistry(db *gorm.DB) Registry {
	return &gormRegistry{
		db:   db,
		subs: make(map[string][]*subscriber),
	}
}

type subscriber struct {
	fn   SnapshotFunc
	ch   chan []model.Registration
	done chan struct{}
}

func (s *subscriber) run() {
	for {
		select {
		case snap := <-s.ch:
			s.fn(snap)
		case <-s.done:
			return
		}
	}
}

// offer queues a snapshot, replacing any undelivered one.
func (s *subscriber) offer(snap []model.Registration) {
	for {
		select {
		case s.ch <- snap:
			return
		default:
			select {
			case <-s.ch:
			default:
			}
		}
	}
}

func (r *gormRegistry) Create(ctx context.Context, rec *model.Registration) (uint, error) {
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	if rec.RefreshedAt.IsZero() {
		rec.RefreshedAt = now
	}
	if rec.Status == "" {
		rec.Status = model.StatusActive
	}
	if err := r.db.WithContext(ctx).Create(rec).Error; err != nil {
		return 0, fmt.Errorf("%w: create: %v", ErrWriteFailed, err)
	}
	r.broadcast(rec.UserID)
	return rec.ID, nil
}

func (r *gormRegistry) Update(ctx context.Context, id uint, fields map[string]any) error {
	var rec model.Registration
	if err := r.db.WithContext(ctx).First(&rec, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("%w: lookup %d: %v", ErrWriteFailed, id, err)
	}
	if err := r.db.WithContext(ctx).Model(&model.Registration{}).Where("id = ?", id).Updates(fields).Error; err != nil {
		return fmt.Errorf("%w: update %d: %v", ErrWriteFailed, id, err)
	}
	r.broadcast(rec.UserID)
	return nil
}

func (r *gormRegistry) Delete(ctx context.Context, id uint) error {
	var rec model.Registration
	if err := r.db.WithContext(ctx).First(&rec, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Deleting an already-deleted record is a no-op, to keep
			// repair actions idempotent.
			return nil
		}
		return fmt.Errorf("%w: lookup %d: %v", ErrWriteFailed, id, err)
	}
	if err := r.db.WithContext(ctx).Delete(&model.Registration{}, id).Error; err != nil {
		return fmt.Errorf("%w: delete %d: %v", ErrWriteFailed, id, err)
	}
	r.broadcast(rec.UserID)
	return nil
}

func (r *gormRegistry) ListByUser(ctx context.Context, userID string) ([]model.Registration, error) {
	var recs []model.Registration
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id").
		Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("failed to list registrations for user %s: %w", userID, err)
	}
	return recs, nil
}

func (r *gormRegistry) SubscribeToUserRecords(userID string, fn SnapshotFunc) func() {
	sub := &subscriber{
		fn:   fn,
		ch:   make(chan []model.Registration, 1),
		done: make(chan struct{}),
	}

	r.mu.Lock()
	r.subs[userID] = append(r.subs[userID], sub)
	r.mu.Unlock()

	go sub.run()

	// Deliver the initial snapshot so the subscriber starts from current
	// state rather than waiting for the first write.
	if snap, err := r.ListByUser(context.Background(), userID); err == nil {
		sub.offer(snap)
	} else {
		log.Printf("Error loading initial snapshot for user %s: %v", userID, err)
	}

	return func() {
		r.mu.Lock()
		subs := r.subs[userID]
		for i, s := range subs {
			if s == sub {
				r.subs[userID] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
		r.mu.Unlock()
		close(sub.done)
	}
}

// broadcast re-reads the user's records and offers the snapshot to every
// subscriber of that user, including the one whose write caused it.
func (r *gormRegistry) broadcast(userID string) {
	snap, err := r.ListByUser(context.Background(), userID)
	if err != nil {
		log.Printf("Error loading snapshot for user %s: %v", userID, err)
		return
	}

	r.mu.Lock()
	subs := append([]*subscriber(nil), r.subs[userID]...)
	r.mu.Unlock()

	for _, sub := range subs {
		sub.offer(snap)
	}
}

// ReapAbandoned deletes records that were marked for deletion but whose
// owning device never reconnected to perform the local teardown. Records
// older than the cutoff are removed outright; their delivery tokens are
// assumed long dead. Returns the number of removed records.
func ReapAbandoned(ctx context.Context, db *gorm.DB, reg Registry, cutoff time.Time) (int, error) {
	var stale []model.Registration
	if err := db.WithContext(ctx).
		Where("status = ? AND refreshed_at < ?", model.StatusMarkedForDeletion, cutoff).
		Find(&stale).Error; err != nil {
		return 0, fmt.Errorf("failed to list abandoned registrations: %w", err)
	}

	reaped := 0
	for _, rec := range stale {
		if err := reg.Delete(ctx, rec.ID); err != nil {
			log.Printf("Error reaping abandoned registration %d: %v", rec.ID, err)
			continue
		}
		reaped++
	}
	return reaped, nil
}
