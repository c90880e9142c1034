package modules

import (
	"context"
	"time"

	"emperror.dev/errors"
	"gorm.io/gorm"

	"github.com/andr3so7/folio/internal/models"
)

var (
	// ErrModuleNotFound is returned when a toggle targets a module name
	// that does not exist. A toggle never creates records.
	ErrModuleNotFound = errors.New("modules: module does not exist")

	// ErrQueryTimeout is returned when a read exceeds the configured
	// maximum execution time.
	ErrQueryTimeout = errors.New("modules: query exceeded execution deadline")

	// ErrStoreUnavailable wraps any other failure of the backing store.
	ErrStoreUnavailable = errors.New("modules: backing store unavailable")
)

// Store provides persistent access to module records. Durability is
// delegated entirely to the backing database; this layer only surfaces its
// errors in a stable form.
type Store struct {
	db           *gorm.DB
	queryTimeout time.Duration
}

func NewStore(db *gorm.DB, queryTimeout time.Duration) *Store {
	return &Store{db: db, queryTimeout: queryTimeout}
}

// FindAll returns every module record ordered by name. The query is bounded
// by the store's execution deadline; exceeding it fails the call with
// ErrQueryTimeout rather than stalling the request.
func (s *Store) FindAll(ctx context.Context) ([]models.Module, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	var mods []models.Module
	if err := s.db.WithContext(ctx).Order("name asc").Find(&mods).Error; err != nil {
		return nil, s.wrap(err, "failed to list modules")
	}
	return mods, nil
}

// Toggle atomically inverts a module's active and blocked flags and stamps
// the audit fields. The inversion happens inside a single UPDATE against
// the stored value, never against a client-supplied one, so two concurrent
// togglers cannot lose an update. Returns the post-update record, or
// ErrModuleNotFound when no record carries the given name.
func (s *Store) Toggle(ctx context.Context, name string, actorID string) (*models.Module, error) {
	res := s.db.WithContext(ctx).Model(&models.Module{}).
		Where("name = ?", name).
		Updates(map[string]interface{}{
			"is_active":        gorm.Expr("NOT is_active"),
			"is_blocked":       gorm.Expr("NOT is_blocked"),
			"last_modified_at": time.Now().UTC(),
			"last_modified_by": actorID,
		})
	if res.Error != nil {
		return nil, s.wrap(res.Error, "failed to toggle module")
	}
	if res.RowsAffected == 0 {
		return nil, ErrModuleNotFound
	}

	var m models.Module
	if err := s.db.WithContext(ctx).Where("name = ?", name).First(&m).Error; err != nil {
		return nil, s.wrap(err, "failed to read module after toggle")
	}
	return &m, nil
}

// Count returns the number of module records. It exists as a lightweight
// liveness probe for the keep-alive tasks and the ping endpoint.
func (s *Store) Count(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	var n int64
	if err := s.db.WithContext(ctx).Model(&models.Module{}).Count(&n).Error; err != nil {
		return 0, s.wrap(err, "failed to count modules")
	}
	return n, nil
}

// wrap maps driver errors onto the store's stable error set while keeping
// the original error text available for logs.
func (s *Store) wrap(err error, msg string) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return errors.WithMessage(ErrQueryTimeout, msg)
	}
	return errors.WithMessagef(ErrStoreUnavailable, "%s: %s", msg, err)
}
