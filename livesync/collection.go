// Package livesync implements the one pattern every feature area of the
// app shares: an owner-scoped, sorted collection with live
// subscriptions. Each entity kind instantiates the generic Collection
// with its own table, sort key and validation rules instead of
// re-implementing subscribe/add/update/delete per feature.
package livesync

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/visionboard/backend/utils"
)

// Record is a user-owned row with an opaque store-assigned id.
type Record interface {
	// SetIdentity stamps id, owner and creation time at Add.
	SetIdentity(id, owner string, at time.Time)
	RecordID() string
	RecordOwner() string
	// Normalize trims and validates user input before any store call.
	Normalize() error
	// Valid reports whether a stored row carries its required fields;
	// invalid rows are dropped from deliveries, not errors.
	Valid() bool
}

// Filter narrows a query beyond the always-applied owner scope, e.g.
// the to-do scope tag.
type Filter func(*gorm.DB) *gorm.DB

// Config describes one entity kind.
type Config struct {
	// Kind names the entity for notification channels and logs.
	Kind string
	// Table is the backing table; two kinds may share a row shape but
	// never a table.
	Table      string
	SortColumn string
	SortDesc   bool
}

// Delivery is one subscription push: the full current ordered list, or
// a terminal error explaining why no further lists will arrive.
type Delivery[T Record] struct {
	Items []T
	Err   error
}

// Collection is an owner-scoped, sorted, live collection of T.
type Collection[T Record] struct {
	db       *gorm.DB
	notifier Notifier
	log      *zap.SugaredLogger
	cfg      Config
	blank    func() T
}

// NewCollection wires a collection for one entity kind. blank allocates
// an empty record and exists so single-row lookups and deletes have a
// typed destination.
func NewCollection[T Record](db *gorm.DB, notifier Notifier, log *zap.SugaredLogger, cfg Config, blank func() T) *Collection[T] {
	return &Collection[T]{db: db, notifier: notifier, log: log, cfg: cfg, blank: blank}
}

// Kind returns the configured entity kind.
func (c *Collection[T]) Kind() string { return c.cfg.Kind }

// List returns the owner's current rows ordered by the configured sort
// key, ties broken by id so ordering stays deterministic across
// deliveries with identical timestamps. Rows missing required fields
// are silently dropped.
func (c *Collection[T]) List(ctx context.Context, ownerID string, filters ...Filter) ([]T, error) {
	dir := "ASC"
	if c.cfg.SortDesc {
		dir = "DESC"
	}
	q := c.db.WithContext(ctx).Table(c.cfg.Table).
		Where("owner_id = ?", ownerID).
		Order(fmt.Sprintf("%s %s", c.cfg.SortColumn, dir)).
		Order("id ASC")
	for _, f := range filters {
		q = f(q)
	}

	var rows []T
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", utils.ErrStoreRead, err)
	}

	items := make([]T, 0, len(rows))
	for _, r := range rows {
		if r.Valid() {
			items = append(items, r)
		}
	}
	return items, nil
}

// Get returns one of the owner's rows by id.
func (c *Collection[T]) Get(ctx context.Context, ownerID, id string) (T, error) {
	item := c.blank()
	err := c.db.WithContext(ctx).Table(c.cfg.Table).
		Where("id = ? AND owner_id = ?", id, ownerID).
		First(item).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return item, fmt.Errorf("%w: %s %s", utils.ErrNotFound, c.cfg.Kind, id)
		}
		return item, fmt.Errorf("%w: %v", utils.ErrStoreRead, err)
	}
	return item, nil
}

// Add validates the record, assigns a fresh id and creation timestamp,
// persists it and notifies subscribers. Validation failures reject the
// call before anything touches the store.
func (c *Collection[T]) Add(ctx context.Context, ownerID string, item T) error {
	if err := item.Normalize(); err != nil {
		return err
	}
	item.SetIdentity(uuid.NewString(), ownerID, time.Now())
	if err := c.db.WithContext(ctx).Table(c.cfg.Table).Create(item).Error; err != nil {
		return fmt.Errorf("%w: %v", utils.ErrStoreWrite, err)
	}
	c.publish(ctx, ownerID)
	return nil
}

// Update merges only the named fields; omitted fields are never
// touched, and a nil value clears an optional attribute.
func (c *Collection[T]) Update(ctx context.Context, ownerID, id string, fields map[string]any) error {
	if len(fields) == 0 {
		return fmt.Errorf("%w: no fields to update", utils.ErrValidation)
	}
	res := c.db.WithContext(ctx).Table(c.cfg.Table).
		Where("id = ? AND owner_id = ?", id, ownerID).
		Updates(fields)
	if res.Error != nil {
		return fmt.Errorf("%w: %v", utils.ErrStoreWrite, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s %s", utils.ErrNotFound, c.cfg.Kind, id)
	}
	c.publish(ctx, ownerID)
	return nil
}

// Remove deletes the record and notifies subscribers; later deliveries
// never include the id again.
func (c *Collection[T]) Remove(ctx context.Context, ownerID, id string) error {
	res := c.db.WithContext(ctx).Table(c.cfg.Table).
		Where("id = ? AND owner_id = ?", id, ownerID).
		Delete(c.blank())
	if res.Error != nil {
		return fmt.Errorf("%w: %v", utils.ErrStoreWrite, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s %s", utils.ErrNotFound, c.cfg.Kind, id)
	}
	c.publish(ctx, ownerID)
	return nil
}

// Subscribe opens a standing subscription for the owner's list. The
// full current list is delivered immediately and again after every
// change notification. The returned cancel is idempotent; once it
// returns no further deliveries are made and the underlying
// subscription is released. A query failure ends the stream with a
// terminal error delivery instead of serving stale data.
func (c *Collection[T]) Subscribe(ctx context.Context, ownerID string, filters ...Filter) (<-chan Delivery[T], func(), error) {
	signal, stop, err := c.notifier.Subscribe(ctx, Channel(c.cfg.Kind, ownerID))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", utils.ErrStoreRead, err)
	}

	innerCtx, cancelCtx := context.WithCancel(ctx)
	out := make(chan Delivery[T])
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			cancelCtx()
			stop()
		})
	}

	go func() {
		defer close(out)

		send := func(d Delivery[T]) bool {
			select {
			case out <- d:
				return true
			case <-innerCtx.Done():
				return false
			}
		}
		deliver := func() bool {
			items, err := c.List(innerCtx, ownerID, filters...)
			if err != nil {
				c.log.Warnw("live query failed, ending subscription",
					"kind", c.cfg.Kind, "owner", ownerID, "err", err)
				send(Delivery[T]{Err: err})
				return false
			}
			return send(Delivery[T]{Items: items})
		}

		if !deliver() {
			return
		}
		for {
			select {
			case <-innerCtx.Done():
				return
			case _, ok := <-signal:
				if !ok {
					return
				}
				if !deliver() {
					return
				}
			}
		}
	}()

	return out, cancel, nil
}

func (c *Collection[T]) publish(ctx context.Context, ownerID string) {
	if err := c.notifier.Publish(ctx, Channel(c.cfg.Kind, ownerID)); err != nil {
		c.log.Warnw("change notification publish failed",
			"kind", c.cfg.Kind, "owner", ownerID, "err", err)
	}
}
