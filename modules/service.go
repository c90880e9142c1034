package modules

import (
	"context"
	"time"

	"emperror.dev/errors"
	"github.com/apex/log"
	gocache "github.com/patrickmn/go-cache"

	"github.com/andr3so7/folio/internal/models"
)

// cacheKeyModules is the canonical key under which the full module listing
// is cached. Every write path invalidates exactly this key.
const cacheKeyModules = "modules:all"

// EventModuleStatusChanged is pushed to every realtime subscriber when a
// toggle succeeds.
const EventModuleStatusChanged = "moduleStatusChanged"

// ErrUnauthenticated is returned when a state-changing operation arrives
// without a verified actor identity. It is raised before the store is
// touched.
var ErrUnauthenticated = errors.New("modules: operation requires an authenticated actor")

// Broadcaster fans a module event out to connected realtime subscribers.
// Delivery is best effort and never blocks the caller.
type Broadcaster interface {
	Publish(event string, payload interface{})
}

// StatusChange is the realtime payload describing a toggled module.
type StatusChange struct {
	ModuleName     string    `json:"moduleName"`
	IsActive       bool      `json:"isActive"`
	IsBlocked      bool      `json:"isBlocked"`
	LastModifiedAt time.Time `json:"lastModifiedAt"`
	LastModifiedBy string    `json:"lastModifiedBy"`
}

// Snapshot is the result of a module listing, marking whether it was served
// from the cache or read fresh from the store.
type Snapshot struct {
	Data   []models.Module
	Cached bool
}

// Service orchestrates module reads and toggles: cached reads against the
// store, cache invalidation on writes, and realtime fan-out of changes. It
// is the only entry point used by the request layer.
type Service struct {
	store *Store
	cache *gocache.Cache
	hub   Broadcaster
}

// NewService wires the service with its collaborators. The cache's default
// TTL bounds read staleness; its janitor interval controls the background
// sweep of expired entries.
func NewService(store *Store, cache *gocache.Cache, hub Broadcaster) *Service {
	return &Service{store: store, cache: cache, hub: hub}
}

// GetAll returns every module, served from the cache when a fresh entry
// exists. On a miss the store is read and the result cached with the
// default TTL. Store failures propagate without touching the cache.
func (s *Service) GetAll(ctx context.Context) (*Snapshot, error) {
	if v, ok := s.cache.Get(cacheKeyModules); ok {
		return &Snapshot{Data: v.([]models.Module), Cached: true}, nil
	}

	mods, err := s.store.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	s.cache.Set(cacheKeyModules, mods, gocache.DefaultExpiration)
	return &Snapshot{Data: mods, Cached: false}, nil
}

// Toggle flips a module's flags on behalf of actorID. On success the cached
// listing is dropped before returning, so a subsequent read can never
// observe pre-toggle state, and the change is published to all realtime
// subscribers. A missing actor fails before the store is touched; a failed
// store call has no side effects.
func (s *Service) Toggle(ctx context.Context, name string, actorID string) (*models.Module, error) {
	if actorID == "" {
		return nil, ErrUnauthenticated
	}

	m, err := s.store.Toggle(ctx, name, actorID)
	if err != nil {
		return nil, err
	}

	s.cache.Delete(cacheKeyModules)

	if s.hub != nil {
		s.hub.Publish(EventModuleStatusChanged, StatusChange{
			ModuleName:     m.Name,
			IsActive:       m.IsActive,
			IsBlocked:      m.IsBlocked,
			LastModifiedAt: m.LastModifiedAt,
			LastModifiedBy: m.LastModifiedBy,
		})
	}

	log.WithFields(log.Fields{
		"module":    m.Name,
		"is_active": m.IsActive,
		"actor":     actorID,
	}).Info("module toggled")
	return m, nil
}

// StatusMap returns the name to isActive mapping across all modules. It is
// the point-in-time snapshot sent to newly connected realtime subscribers
// and shares the listing cache with GetAll.
func (s *Service) StatusMap(ctx context.Context) (map[string]bool, error) {
	snap, err := s.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(snap.Data))
	for _, m := range snap.Data {
		out[m.Name] = m.IsActive
	}
	return out, nil
}

// Count proxies the store's liveness probe for callers that only hold the
// service.
func (s *Service) Count(ctx context.Context) (int64, error) {
	return s.store.Count(ctx)
}
