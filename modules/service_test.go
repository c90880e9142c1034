package modules

import (
	"context"
	"sync"
	"testing"
	"time"

	"emperror.dev/errors"
	gocache "github.com/patrickmn/go-cache"
)

type recordingBroadcaster struct {
	mu     sync.Mutex
	events []string
	last   interface{}
}

func (r *recordingBroadcaster) Publish(event string, payload interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	r.last = payload
}

func (r *recordingBroadcaster) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func newTestService(t *testing.T, ttl, sweep time.Duration) (*Service, *Store, *recordingBroadcaster) {
	t.Helper()
	store, db := newTestStore(t)
	seedModule(t, db, "contactForm", true, false)
	seedModule(t, db, "nasaGallery", false, false)

	hub := &recordingBroadcaster{}
	svc := NewService(store, gocache.New(ttl, sweep), hub)
	return svc, store, hub
}

func TestServiceGetAllCachesResult(t *testing.T) {
	svc, _, _ := newTestService(t, 30*time.Second, time.Minute)
	ctx := context.Background()

	first, err := svc.GetAll(ctx)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if first.Cached {
		t.Fatal("first read must come from the store")
	}

	second, err := svc.GetAll(ctx)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !second.Cached {
		t.Fatal("second read within the TTL must be served from the cache")
	}
	if len(second.Data) != len(first.Data) {
		t.Fatalf("cached read returned %d modules, fresh read %d", len(second.Data), len(first.Data))
	}
}

func TestServiceToggleInvalidatesCache(t *testing.T) {
	svc, _, _ := newTestService(t, 30*time.Second, time.Minute)
	ctx := context.Background()

	if _, err := svc.GetAll(ctx); err != nil {
		t.Fatalf("warm-up read failed: %v", err)
	}

	if _, err := svc.Toggle(ctx, "contactForm", "7"); err != nil {
		t.Fatalf("toggle failed: %v", err)
	}

	// The read that follows a toggle must be fresh and must already see
	// the flipped value, never the cached pre-toggle state.
	snap, err := svc.GetAll(ctx)
	if err != nil {
		t.Fatalf("post-toggle read failed: %v", err)
	}
	if snap.Cached {
		t.Fatal("read after a toggle must not be served from the cache")
	}
	for _, m := range snap.Data {
		if m.Name == "contactForm" && m.IsActive {
			t.Fatal("post-toggle read returned the stale pre-toggle state")
		}
	}
}

func TestServiceToggleRequiresActor(t *testing.T) {
	svc, _, hub := newTestService(t, 30*time.Second, time.Minute)

	_, err := svc.Toggle(context.Background(), "contactForm", "")
	if !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
	if hub.count() != 0 {
		t.Fatal("an unauthenticated toggle must not publish anything")
	}
}

func TestServiceTogglePublishesChange(t *testing.T) {
	svc, _, hub := newTestService(t, 30*time.Second, time.Minute)

	m, err := svc.Toggle(context.Background(), "contactForm", "7")
	if err != nil {
		t.Fatalf("toggle failed: %v", err)
	}

	if hub.count() != 1 {
		t.Fatalf("expected exactly one published event, got %d", hub.count())
	}
	if hub.events[0] != EventModuleStatusChanged {
		t.Fatalf("expected event %q, got %q", EventModuleStatusChanged, hub.events[0])
	}
	change, ok := hub.last.(StatusChange)
	if !ok {
		t.Fatalf("expected StatusChange payload, got %T", hub.last)
	}
	if change.ModuleName != "contactForm" || change.IsActive != m.IsActive || change.IsBlocked != m.IsBlocked {
		t.Fatalf("payload does not match the toggled record: %+v", change)
	}
}

func TestServiceToggleUnknownLeavesCacheAlone(t *testing.T) {
	svc, _, hub := newTestService(t, 30*time.Second, time.Minute)
	ctx := context.Background()

	if _, err := svc.GetAll(ctx); err != nil {
		t.Fatalf("warm-up read failed: %v", err)
	}
	if _, err := svc.Toggle(ctx, "doesNotExist", "7"); !errors.Is(err, ErrModuleNotFound) {
		t.Fatalf("expected ErrModuleNotFound, got %v", err)
	}

	snap, err := svc.GetAll(ctx)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if !snap.Cached {
		t.Fatal("a failed toggle must not invalidate the cache")
	}
	if hub.count() != 0 {
		t.Fatal("a failed toggle must not publish anything")
	}
}

func TestServiceCacheLazyExpiry(t *testing.T) {
	// Long sweep interval: expiry here can only come from the read path.
	svc, _, _ := newTestService(t, 40*time.Millisecond, time.Hour)
	ctx := context.Background()

	if _, err := svc.GetAll(ctx); err != nil {
		t.Fatalf("warm-up read failed: %v", err)
	}
	time.Sleep(60 * time.Millisecond)

	snap, err := svc.GetAll(ctx)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if snap.Cached {
		t.Fatal("an entry past its TTL must not be served, even without a sweep")
	}
}

func TestServiceCacheBackgroundSweep(t *testing.T) {
	store, db := newTestStore(t)
	seedModule(t, db, "contactForm", true, false)

	c := gocache.New(20*time.Millisecond, 10*time.Millisecond)
	svc := NewService(store, c, nil)

	if _, err := svc.GetAll(context.Background()); err != nil {
		t.Fatalf("warm-up read failed: %v", err)
	}
	if c.ItemCount() != 1 {
		t.Fatalf("expected 1 cached entry, got %d", c.ItemCount())
	}

	// No reads happen here; only the janitor can reclaim the entry.
	time.Sleep(80 * time.Millisecond)
	if c.ItemCount() != 0 {
		t.Fatalf("expected the sweep to reclaim the expired entry, found %d", c.ItemCount())
	}
}

func TestServiceStatusMap(t *testing.T) {
	svc, _, _ := newTestService(t, 30*time.Second, time.Minute)

	m, err := svc.StatusMap(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(m) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(m))
	}
	if !m["contactForm"] || m["nasaGallery"] {
		t.Fatalf("unexpected snapshot: %v", m)
	}
}
