package history

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func openTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "history", "history.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Logf("close sqlite: %v", err)
		}
	})
	return store
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	store := openTestSQLite(t)
	ctx := context.Background()

	missing, err := store.Find(ctx, "c1", "getTenderState")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if missing.IsSome() {
		t.Fatalf("expected no record before save")
	}

	date := time.Date(2026, 10, 16, 9, 30, 0, 123, time.UTC)
	rec := Record{CommandID: "c1", Action: "getTenderState", Date: date, Payload: `{"status":"success"}`}
	if err := store.Save(ctx, rec); err != nil {
		t.Fatalf("save: %v", err)
	}

	found, err := store.Find(ctx, "c1", "getTenderState")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	got, ok := found.Get()
	if !ok {
		t.Fatalf("expected record after save")
	}
	if got.Payload != rec.Payload || !got.Date.Equal(date) {
		t.Fatalf("unexpected record: %+v", got)
	}
}

func TestSQLiteStoreRejectsDuplicate(t *testing.T) {
	store := openTestSQLite(t)
	ctx := context.Background()
	rec := Record{CommandID: "c1", Action: "a", Date: time.Now(), Payload: "first"}

	if err := store.Save(ctx, rec); err != nil {
		t.Fatalf("save: %v", err)
	}
	rec.Payload = "second"
	if err := store.Save(ctx, rec); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	found, err := store.Find(ctx, "c1", "a")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got, _ := found.Get(); got.Payload != "first" {
		t.Fatalf("expected first payload to remain, got %q", got.Payload)
	}
}

func TestSQLiteStoreKeysByAction(t *testing.T) {
	store := openTestSQLite(t)
	ctx := context.Background()

	if err := store.Save(ctx, Record{CommandID: "c1", Action: "a", Date: time.Now(), Payload: "a"}); err != nil {
		t.Fatalf("save a: %v", err)
	}
	if err := store.Save(ctx, Record{CommandID: "c1", Action: "b", Date: time.Now(), Payload: "b"}); err != nil {
		t.Fatalf("save b: %v", err)
	}
	found, err := store.Find(ctx, "c1", "b")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got, _ := found.Get(); got.Payload != "b" {
		t.Fatalf("unexpected payload %q", got.Payload)
	}
}
