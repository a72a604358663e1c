package repositories

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"

	"hostelpg/internal/core/domain"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"
)

// Entity is a gorm model partitioned by hostel
type Entity[T any] interface {
	*T
	domain.Tenanted
	SetTenantID(id string)
	EntityID() string
	SetEntityID(id string)
}

// Scoped is the tenant-partitioned store for one entity type.
// Every method takes a domain.Scope; there is no unscoped read or write.
type Scoped[T any, P Entity[T]] struct {
	db     *gorm.DB
	feed   *ChangeFeed
	logger *zap.Logger
	table  string

	schemaOnce sync.Once
	schema     *schema.Schema
	schemaErr  error
}

// NewScoped creates a scoped repository for T
func NewScoped[T any, P Entity[T]](db *gorm.DB, feed *ChangeFeed, logger *zap.Logger) *Scoped[T, P] {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Scoped[T, P]{db: db, feed: feed, logger: logger}

	var zero T
	if t, ok := any(zero).(schema.Tabler); ok {
		r.table = t.TableName()
	} else if t, ok := any(P(&zero)).(schema.Tabler); ok {
		r.table = t.TableName()
	}
	return r
}

// Table returns the table backing the repository
func (r *Scoped[T, P]) Table() string {
	return r.table
}

func checkScope(scope domain.Scope) error {
	if !scope.Valid() {
		return domain.ErrNoTenant
	}
	return nil
}

func (r *Scoped[T, P]) scoped(ctx context.Context, scope domain.Scope) *gorm.DB {
	return r.db.WithContext(ctx).Model(P(new(T))).
		Where(clause.Eq{Column: clause.Column{Name: tenantColumn}, Value: scope.HostelID()})
}

func (r *Scoped[T, P]) publish(scope domain.Scope, id, op string) {
	if r.feed == nil {
		return
	}
	r.feed.Publish(Change{Table: r.table, HostelID: scope.HostelID(), ID: id, Op: op})
}

// Create stamps the scope's hostel on entity and inserts it.
// An entity already carrying another hostel is rejected.
func (r *Scoped[T, P]) Create(ctx context.Context, scope domain.Scope, entity P) error {
	if err := checkScope(scope); err != nil {
		return err
	}
	if supplied := entity.TenantID(); supplied != "" && supplied != scope.HostelID() {
		return &domain.TenantMismatchError{Session: scope.HostelID(), Supplied: supplied}
	}
	entity.SetTenantID(scope.HostelID())
	if entity.EntityID() == "" {
		entity.SetEntityID(uuid.NewString())
	}

	if err := r.db.WithContext(ctx).Create(entity).Error; err != nil {
		return err
	}
	r.publish(scope, entity.EntityID(), OpCreate)
	return nil
}

// Get returns one entity of the scope's hostel
func (r *Scoped[T, P]) Get(ctx context.Context, scope domain.Scope, id string) (P, error) {
	if err := checkScope(scope); err != nil {
		return nil, err
	}
	entity := P(new(T))
	err := r.scoped(ctx, scope).Where(clause.Eq{Column: clause.PrimaryColumn, Value: id}).First(entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return entity, nil
}

// Find runs q within the scope. When the index q relies on is missing it
// degrades to an unordered query sorted and windowed in memory.
func (r *Scoped[T, P]) Find(ctx context.Context, scope domain.Scope, q Query) ([]P, error) {
	if err := checkScope(scope); err != nil {
		return nil, err
	}
	if err := q.validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}

	items, err := r.findIndexed(ctx, scope, q)
	if errors.Is(err, ErrIndexRequired) {
		r.logger.Warn("composite index missing, sorting client-side",
			zap.String("table", r.table), zap.String("index", q.Index))
		return r.findUnindexed(ctx, scope, q)
	}
	return items, err
}

func (r *Scoped[T, P]) findIndexed(ctx context.Context, scope domain.Scope, q Query) ([]P, error) {
	if q.OrderBy != "" && q.Index != "" && !r.db.Migrator().HasIndex(P(new(T)), q.Index) {
		return nil, ErrIndexRequired
	}

	tx := r.filtered(ctx, scope, q.Filters)
	if q.OrderBy != "" {
		tx = tx.Order(clause.OrderByColumn{Column: clause.Column{Name: q.OrderBy}, Desc: q.Desc})
	}
	if q.Offset > 0 {
		tx = tx.Offset(q.Offset)
	}
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}

	var items []P
	if err := tx.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *Scoped[T, P]) findUnindexed(ctx context.Context, scope domain.Scope, q Query) ([]P, error) {
	var items []P
	if err := r.filtered(ctx, scope, q.Filters).Find(&items).Error; err != nil {
		return nil, err
	}

	if q.OrderBy != "" {
		s, err := r.parsedSchema()
		if err != nil {
			return nil, err
		}
		field := s.LookUpField(q.OrderBy)
		if field == nil {
			return nil, fmt.Errorf("%w: unknown order field %q", domain.ErrInvalidInput, q.OrderBy)
		}

		keys := make([]interface{}, len(items))
		for i, item := range items {
			keys[i], _ = field.ValueOf(ctx, reflect.ValueOf(item).Elem())
		}
		sortByValues(items, keys, q.Desc)
	}
	return window(items, q.Offset, q.Limit), nil
}

func (r *Scoped[T, P]) filtered(ctx context.Context, scope domain.Scope, filters []Filter) *gorm.DB {
	tx := r.scoped(ctx, scope)
	for _, f := range filters {
		tx = tx.Where(f.expression())
	}
	return tx
}

func (r *Scoped[T, P]) parsedSchema() (*schema.Schema, error) {
	r.schemaOnce.Do(func() {
		stmt := &gorm.Statement{DB: r.db}
		r.schemaErr = stmt.Parse(P(new(T)))
		r.schema = stmt.Schema
	})
	return r.schema, r.schemaErr
}

// Count counts entities of the scope matching filters
func (r *Scoped[T, P]) Count(ctx context.Context, scope domain.Scope, filters ...Filter) (int64, error) {
	if err := checkScope(scope); err != nil {
		return 0, err
	}
	if err := (Query{Filters: filters}).validate(); err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	var total int64
	err := r.filtered(ctx, scope, filters).Count(&total).Error
	return total, err
}

// Update applies patch to one entity of the scope
func (r *Scoped[T, P]) Update(ctx context.Context, scope domain.Scope, id string, patch map[string]interface{}) error {
	ok, err := r.CompareAndUpdate(ctx, scope, id, nil, patch)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrNotFound
	}
	return nil
}

// CompareAndUpdate applies patch only when every column in expect still holds
// its expected value. It reports false when nothing matched.
func (r *Scoped[T, P]) CompareAndUpdate(ctx context.Context, scope domain.Scope, id string, expect, patch map[string]interface{}) (bool, error) {
	if err := checkScope(scope); err != nil {
		return false, err
	}
	if len(patch) == 0 {
		return false, fmt.Errorf("%w: empty patch", domain.ErrInvalidInput)
	}
	if v, ok := patch[tenantColumn]; ok && v != scope.HostelID() {
		return false, &domain.TenantMismatchError{Session: scope.HostelID(), Supplied: fmt.Sprint(v)}
	}

	tx := r.scoped(ctx, scope).Where(clause.Eq{Column: clause.PrimaryColumn, Value: id})
	for col, v := range expect {
		tx = tx.Where(clause.Eq{Column: clause.Column{Name: col}, Value: v})
	}

	result := tx.Updates(patch)
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected == 0 {
		return false, nil
	}
	r.publish(scope, id, OpUpdate)
	return true, nil
}

// Delete removes one entity of the scope
func (r *Scoped[T, P]) Delete(ctx context.Context, scope domain.Scope, id string) error {
	if err := checkScope(scope); err != nil {
		return err
	}
	result := r.db.WithContext(ctx).
		Where(clause.Eq{Column: clause.Column{Name: tenantColumn}, Value: scope.HostelID()}).
		Where(clause.Eq{Column: clause.PrimaryColumn, Value: id}).
		Delete(P(new(T)))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	r.publish(scope, id, OpDelete)
	return nil
}

// Subscribe streams a fresh snapshot of q on start and after every write to
// the scope's partition of this table. The channel closes when ctx is done.
func (r *Scoped[T, P]) Subscribe(ctx context.Context, scope domain.Scope, q Query) (<-chan []P, error) {
	if err := checkScope(scope); err != nil {
		return nil, err
	}
	if r.feed == nil {
		return nil, errors.New("subscribe requires a change feed")
	}

	initial, err := r.Find(ctx, scope, q)
	if err != nil {
		return nil, err
	}

	listenerID, changes := r.feed.Register(r.table, scope.HostelID())
	out := make(chan []P, 1)
	out <- initial

	go func() {
		defer close(out)
		defer r.feed.Unregister(listenerID)

		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-changes:
				if !ok {
					return
				}
				snapshot, err := r.Find(ctx, scope, q)
				if err != nil {
					if ctx.Err() == nil {
						r.logger.Warn("subscription refresh failed", zap.String("table", r.table), zap.Error(err))
					}
					continue
				}
				// keep only the newest snapshot for slow readers
				select {
				case <-out:
				default:
				}
				select {
				case out <- snapshot:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}
