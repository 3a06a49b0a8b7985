package badger

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/bobmcallan/folium/internal/common"
	"github.com/bobmcallan/folium/internal/interfaces"
	"github.com/bobmcallan/folium/internal/models"
)

// --- Test helpers ---

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	store, err := NewStore(testLogger(), filepath.Join(dir, "badger"))
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func testLogger() *common.Logger {
	return common.NewLogger("error")
}

func newTestHolding(id, userID string, purchased time.Time) *models.Holding {
	return &models.Holding{
		ID:             id,
		UserID:         userID,
		Name:           "Holding " + id,
		Category:       models.CategoryETF,
		Ticker:         "VWCE.DE",
		Currency:       "EUR",
		Quantity:       2,
		PurchasePrice:  100,
		PurchaseDate:   purchased,
		InitialValue:   200,
		CurrentValue:   220,
		DailyChangePct: models.Float64Ptr(0.012),
	}
}

// --- Store tests ---

func TestStore_OpenClose(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(testLogger(), filepath.Join(dir, "badger"))
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	if store.DB() == nil {
		t.Fatal("expected non-nil DB")
	}
	if store.Path() != filepath.Join(dir, "badger") {
		t.Errorf("unexpected path %s", store.Path())
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
}

func TestStore_SchemaStampedAndKept(t *testing.T) {
	path := filepath.Join(t.TempDir(), "badger")

	store, err := NewStore(testLogger(), path)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	if store.Schema() != SchemaVersion {
		t.Errorf("schema = %d, want %d", store.Schema(), SchemaVersion)
	}
	created := store.CreatedAt()
	if created.IsZero() {
		t.Fatal("expected creation time to be recorded")
	}
	store.Close()

	reopened, err := NewStore(testLogger(), path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()
	if !reopened.CreatedAt().Equal(created) {
		t.Errorf("creation time changed on reopen: %v != %v", reopened.CreatedAt(), created)
	}
}

func TestStore_RejectsNewerSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "badger")

	store, err := NewStore(testLogger(), path)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	if err := store.DB().Upsert(metaKey, &storeMeta{Schema: SchemaVersion + 1}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	store.Close()

	_, err = NewStore(testLogger(), path)
	if !errors.Is(err, ErrSchemaTooNew) {
		t.Fatalf("expected ErrSchemaTooNew, got %v", err)
	}

	// a failed open releases the directory, so a newer build could still use it
	db, err := NewStore(testLogger(), path)
	if !errors.Is(err, ErrSchemaTooNew) || db != nil {
		t.Fatalf("expected second ErrSchemaTooNew, got %v", err)
	}
}

func TestStore_CloseTwice(t *testing.T) {
	store := newTestStore(t)
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("second Close should be a no-op: %v", err)
	}
}

func TestStore_CloseNilDB(t *testing.T) {
	store := &Store{}
	if err := store.Close(); err != nil {
		t.Fatalf("Close on nil DB should not error: %v", err)
	}
}

// --- Holding storage tests ---

func TestHoldingStorage_CreateGet(t *testing.T) {
	store := newTestStore(t)
	hs := NewHoldingStorage(store, testLogger())
	ctx := context.Background()

	h := newTestHolding("h1", "alice", time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC))
	if err := hs.Create(ctx, h); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if h.CreatedAt.IsZero() || h.UpdatedAt.IsZero() {
		t.Error("expected timestamps to be set on create")
	}

	got, err := hs.Get(ctx, "alice", "h1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Name != "Holding h1" || got.Quantity != 2 || got.CurrentValue != 220 {
		t.Errorf("unexpected holding: %+v", got)
	}
	if got.DailyChangePct == nil || *got.DailyChangePct != 0.012 {
		t.Errorf("daily change pct not round-tripped: %v", got.DailyChangePct)
	}
	if !got.PurchaseDate.Equal(h.PurchaseDate) {
		t.Errorf("purchase date = %v, want %v", got.PurchaseDate, h.PurchaseDate)
	}
}

func TestHoldingStorage_CreateDuplicate(t *testing.T) {
	hs := NewHoldingStorage(newTestStore(t), testLogger())
	ctx := context.Background()

	if err := hs.Create(ctx, newTestHolding("h1", "alice", time.Now())); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := hs.Create(ctx, newTestHolding("h1", "alice", time.Now())); err == nil {
		t.Fatal("expected error for duplicate id")
	}
}

func TestHoldingStorage_CreateWithoutID(t *testing.T) {
	hs := NewHoldingStorage(newTestStore(t), testLogger())

	err := hs.Create(context.Background(), newTestHolding("", "alice", time.Now()))
	if !errors.Is(err, models.ErrInvalidHolding) {
		t.Fatalf("expected ErrInvalidHolding, got %v", err)
	}
}

func TestHoldingStorage_GetNotFound(t *testing.T) {
	hs := NewHoldingStorage(newTestStore(t), testLogger())

	_, err := hs.Get(context.Background(), "alice", "missing")
	if !errors.Is(err, interfaces.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestHoldingStorage_UserScoping(t *testing.T) {
	hs := NewHoldingStorage(newTestStore(t), testLogger())
	ctx := context.Background()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for _, h := range []*models.Holding{
		newTestHolding("a1", "alice", base),
		newTestHolding("a2", "alice", base.AddDate(0, 2, 0)),
		newTestHolding("b1", "bob", base.AddDate(0, 1, 0)),
	} {
		if err := hs.Create(ctx, h); err != nil {
			t.Fatalf("Create %s failed: %v", h.ID, err)
		}
	}

	list, err := hs.List(ctx, "alice")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 holdings for alice, got %d", len(list))
	}
	if list[0].ID != "a2" || list[1].ID != "a1" {
		t.Errorf("expected most recent purchase first, got %s, %s", list[0].ID, list[1].ID)
	}

	if _, err := hs.Get(ctx, "alice", "b1"); !errors.Is(err, interfaces.ErrNotFound) {
		t.Errorf("alice should not see bob's holding, got %v", err)
	}
	if err := hs.Delete(ctx, "alice", "b1"); !errors.Is(err, interfaces.ErrNotFound) {
		t.Errorf("alice should not delete bob's holding, got %v", err)
	}

	empty, err := hs.List(ctx, "carol")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("expected no holdings for carol, got %d", len(empty))
	}
}

func TestHoldingStorage_Update(t *testing.T) {
	hs := NewHoldingStorage(newTestStore(t), testLogger())
	ctx := context.Background()

	h := newTestHolding("h1", "alice", time.Now())
	if err := hs.Create(ctx, h); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	created := h.CreatedAt

	h.Quantity = 5
	h.CreatedAt = time.Time{}
	if err := hs.Update(ctx, h); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	got, err := hs.Get(ctx, "alice", "h1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Quantity != 5 {
		t.Errorf("Quantity = %v, want 5", got.Quantity)
	}
	if !got.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt changed: %v → %v", created, got.CreatedAt)
	}

	missing := newTestHolding("nope", "alice", time.Now())
	if err := hs.Update(ctx, missing); !errors.Is(err, interfaces.ErrNotFound) {
		t.Errorf("expected ErrNotFound updating missing holding, got %v", err)
	}
}

func TestHoldingStorage_Delete(t *testing.T) {
	hs := NewHoldingStorage(newTestStore(t), testLogger())
	ctx := context.Background()

	if err := hs.Create(ctx, newTestHolding("h1", "alice", time.Now())); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := hs.Delete(ctx, "alice", "h1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := hs.Get(ctx, "alice", "h1"); !errors.Is(err, interfaces.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if err := hs.Delete(ctx, "alice", "h1"); !errors.Is(err, interfaces.ErrNotFound) {
		t.Errorf("expected ErrNotFound deleting twice, got %v", err)
	}
}
