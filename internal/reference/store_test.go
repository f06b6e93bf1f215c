package reference

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ramahrk/data-pipeline/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	return store
}

func TestStore_PutGetCustomer(t *testing.T) {
	store := newTestStore(t)

	rec := models.Record{"id": "c-1", "email": "ada@example.com", "extra": "kept"}
	if err := store.PutCustomer(rec); err != nil {
		t.Fatalf("PutCustomer failed: %v", err)
	}

	got, ok := store.GetCustomer("c-1")
	if !ok {
		t.Fatal("Expected customer to be found")
	}
	if got.String("email") != "ada@example.com" || got.String("extra") != "kept" {
		t.Errorf("Round trip lost fields: %v", got)
	}

	if _, ok := store.GetCustomer("missing"); ok {
		t.Error("Expected missing id to return false")
	}
	if _, ok := store.GetCustomer(""); ok {
		t.Error("Expected empty id to return false")
	}
}

func TestStore_PutOverwrites(t *testing.T) {
	store := newTestStore(t)

	if err := store.PutCustomer(models.Record{"id": "c-1", "email": "old@example.com"}); err != nil {
		t.Fatalf("PutCustomer failed: %v", err)
	}
	if err := store.PutCustomer(models.Record{"id": "c-1", "email": "new@example.com"}); err != nil {
		t.Fatalf("PutCustomer failed: %v", err)
	}

	got, _ := store.GetCustomer("c-1")
	if got.String("email") != "new@example.com" {
		t.Errorf("Expected last write to win, got %q", got.String("email"))
	}
}

func TestStore_PutWithoutKey(t *testing.T) {
	store := newTestStore(t)

	err := store.PutCustomer(models.Record{"email": "ada@example.com"})
	if !errors.Is(err, ErrMissingKey) {
		t.Errorf("Expected ErrMissingKey, got %v", err)
	}

	err = store.PutProduct(models.Record{"name": "Widget"})
	if !errors.Is(err, ErrMissingKey) {
		t.Errorf("Expected ErrMissingKey, got %v", err)
	}
}

func TestStore_PutGetProduct(t *testing.T) {
	store := newTestStore(t)

	if err := store.PutProduct(models.Record{"sku": "SKU-1", "price": "2.50"}); err != nil {
		t.Fatalf("PutProduct failed: %v", err)
	}
	got, ok := store.GetProduct("SKU-1")
	if !ok || got.String("price") != "2.50" {
		t.Errorf("Unexpected product: %v ok=%v", got, ok)
	}
}

func TestStore_FindCustomersByEmail(t *testing.T) {
	store := newTestStore(t)

	for _, rec := range []models.Record{
		{"id": "c-1", "email": "shared@example.com"},
		{"id": "c-2", "email": "shared@example.com"},
		{"id": "c-3", "email": "other@example.com"},
	} {
		if err := store.PutCustomer(rec); err != nil {
			t.Fatalf("PutCustomer failed: %v", err)
		}
	}

	matches := store.FindCustomersByEmail("shared@example.com")
	if len(matches) != 2 {
		t.Fatalf("Expected 2 matches, got %d", len(matches))
	}

	if got := store.FindCustomersByEmail("none@example.com"); len(got) != 0 {
		t.Errorf("Expected no matches, got %v", got)
	}
}

func TestStore_ScanSkipsCorruptFiles(t *testing.T) {
	store := newTestStore(t)

	if err := store.PutCustomer(models.Record{"id": "c-1", "email": "ada@example.com"}); err != nil {
		t.Fatalf("PutCustomer failed: %v", err)
	}
	corrupt := filepath.Join(store.Root(), "customers", "bad.json")
	if err := os.WriteFile(corrupt, []byte("{nope"), 0o644); err != nil {
		t.Fatalf("Failed to plant corrupt file: %v", err)
	}

	matches := store.ScanCustomers(func(models.Record) bool { return true })
	if len(matches) != 1 {
		t.Errorf("Expected corrupt file skipped, got %d matches", len(matches))
	}
}
