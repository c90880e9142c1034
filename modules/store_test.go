package modules

import (
	"context"
	"sync"
	"testing"
	"time"

	"emperror.dev/errors"
	"github.com/apex/log"
	"github.com/apex/log/handlers/discard"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/andr3so7/folio/internal/models"
)

func init() {
	log.SetHandler(discard.New())
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	// A fresh :memory: database exists per connection; pin the pool to one
	// so every query sees the same schema.
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&models.Module{}, &models.User{}); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

func seedModule(t *testing.T, db *gorm.DB, name string, active, blocked bool) {
	t.Helper()
	m := models.Module{Name: name, DisplayName: name, IsActive: active, IsBlocked: blocked}
	if err := db.Create(&m).Error; err != nil {
		t.Fatalf("failed to seed module %q: %v", name, err)
	}
}

func newTestStore(t *testing.T) (*Store, *gorm.DB) {
	db := newTestDB(t)
	return NewStore(db, 5*time.Second), db
}

func TestStoreFindAll(t *testing.T) {
	s, db := newTestStore(t)
	seedModule(t, db, "contactForm", true, false)
	seedModule(t, db, "nasaGallery", false, true)

	mods, err := s.FindAll(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(mods) != 2 {
		t.Fatalf("expected 2 modules, got %d", len(mods))
	}
	if mods[0].Name != "contactForm" || mods[1].Name != "nasaGallery" {
		t.Fatalf("expected name-ordered result, got %q then %q", mods[0].Name, mods[1].Name)
	}
}

func TestStoreToggleFlipsBothFlags(t *testing.T) {
	s, db := newTestStore(t)
	seedModule(t, db, "contactForm", true, false)

	m, err := s.Toggle(context.Background(), "contactForm", "42")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if m.IsActive || !m.IsBlocked {
		t.Fatalf("expected isActive=false isBlocked=true, got %v/%v", m.IsActive, m.IsBlocked)
	}
	if m.LastModifiedBy != "42" {
		t.Fatalf("expected audit actor 42, got %q", m.LastModifiedBy)
	}
	if m.LastModifiedAt.IsZero() {
		t.Fatal("expected lastModifiedAt to be stamped")
	}
}

func TestStoreToggleInvolution(t *testing.T) {
	s, db := newTestStore(t)
	seedModule(t, db, "nasaGallery", true, false)

	if _, err := s.Toggle(context.Background(), "nasaGallery", "1"); err != nil {
		t.Fatalf("first toggle failed: %v", err)
	}
	m, err := s.Toggle(context.Background(), "nasaGallery", "1")
	if err != nil {
		t.Fatalf("second toggle failed: %v", err)
	}
	if !m.IsActive || m.IsBlocked {
		t.Fatalf("two toggles must restore the original flags, got active=%v blocked=%v", m.IsActive, m.IsBlocked)
	}
}

func TestStoreToggleUnknownModule(t *testing.T) {
	s, db := newTestStore(t)
	seedModule(t, db, "contactForm", true, false)

	_, err := s.Toggle(context.Background(), "doesNotExist", "1")
	if !errors.Is(err, ErrModuleNotFound) {
		t.Fatalf("expected ErrModuleNotFound, got %v", err)
	}

	// A failed toggle must never create a record.
	var n int64
	if err := db.Model(&models.Module{}).Count(&n).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 module after failed toggle, got %d", n)
	}
}

func TestStoreToggleConcurrent(t *testing.T) {
	s, db := newTestStore(t)
	seedModule(t, db, "globalControl", true, false)

	const togglers = 8
	var wg sync.WaitGroup
	for i := 0; i < togglers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Toggle(context.Background(), "globalControl", "1"); err != nil {
				t.Errorf("toggle failed: %v", err)
			}
		}()
	}
	wg.Wait()

	// An even number of successful toggles must land back on the initial
	// state; a lost update would leave it flipped.
	var m models.Module
	if err := db.Where("name = ?", "globalControl").First(&m).Error; err != nil {
		t.Fatalf("failed to read module: %v", err)
	}
	if !m.IsActive || m.IsBlocked {
		t.Fatalf("expected active=true blocked=false after %d toggles, got %v/%v", togglers, m.IsActive, m.IsBlocked)
	}
}

func TestStoreCount(t *testing.T) {
	s, db := newTestStore(t)
	seedModule(t, db, "a", true, false)
	seedModule(t, db, "b", true, false)

	n, err := s.Count(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if n != 2 {
		t.Fatalf("expected count 2, got %d", n)
	}
}

func TestStoreFindAllTimeout(t *testing.T) {
	db := newTestDB(t)
	s := NewStore(db, time.Nanosecond)

	_, err := s.FindAll(context.Background())
	if !errors.Is(err, ErrQueryTimeout) {
		t.Fatalf("expected ErrQueryTimeout, got %v", err)
	}
}
