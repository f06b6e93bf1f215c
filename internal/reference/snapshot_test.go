package reference

import (
	"path/filepath"
	"testing"

	"github.com/ramahrk/data-pipeline/internal/models"
	"github.com/ramahrk/data-pipeline/internal/partition"
)

func writeProductFile(t *testing.T, base, date string, hour int, lines ...string) {
	t.Helper()
	dir := partition.WriteDir(base, date, hour)
	w, err := partition.NewLineWriter(partition.DataFile(dir, models.DatasetProducts))
	if err != nil {
		t.Fatalf("Failed to create product file: %v", err)
	}
	for _, line := range lines {
		if err := w.WriteLine([]byte(line)); err != nil {
			t.Fatalf("Failed to write line: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Failed to close writer: %v", err)
	}
}

func TestWriteAndLoadProductSnapshot(t *testing.T) {
	store := newTestStore(t)

	err := store.WriteProductSnapshot([]models.Record{
		{"sku": "SKU-1", "price": "2.50"},
		{"sku": "SKU-2", "price": "3.00"},
	})
	if err != nil {
		t.Fatalf("WriteProductSnapshot failed: %v", err)
	}
	if !store.HasProductSnapshot() {
		t.Fatal("Expected snapshot to exist")
	}

	snap, err := store.LoadProductSnapshot()
	if err != nil {
		t.Fatalf("LoadProductSnapshot failed: %v", err)
	}
	if len(snap) != 2 || snap["SKU-1"].String("price") != "2.50" {
		t.Errorf("Unexpected snapshot: %v", snap)
	}
}

func TestWriteProductSnapshot_OverwritesWholeFile(t *testing.T) {
	store := newTestStore(t)

	if err := store.WriteProductSnapshot([]models.Record{{"sku": "SKU-1"}}); err != nil {
		t.Fatalf("WriteProductSnapshot failed: %v", err)
	}
	// A later write from a different hour replaces everything.
	if err := store.WriteProductSnapshot([]models.Record{{"sku": "SKU-2"}}); err != nil {
		t.Fatalf("WriteProductSnapshot failed: %v", err)
	}

	snap, err := store.LoadProductSnapshot()
	if err != nil {
		t.Fatalf("LoadProductSnapshot failed: %v", err)
	}
	if _, ok := snap["SKU-1"]; ok {
		t.Error("Expected SKU-1 stomped by the overwrite")
	}
	if _, ok := snap["SKU-2"]; !ok {
		t.Error("Expected SKU-2 present")
	}
}

func TestLoadProductSnapshot_MissingIsEmpty(t *testing.T) {
	store := newTestStore(t)

	snap, err := store.LoadProductSnapshot()
	if err != nil {
		t.Fatalf("LoadProductSnapshot failed: %v", err)
	}
	if len(snap) != 0 {
		t.Errorf("Expected empty snapshot, got %v", snap)
	}
}

func TestLoadAllProductsForDate_LaterHourWins(t *testing.T) {
	input := t.TempDir()
	date := "2024-03-02"

	writeProductFile(t, input, date, 3,
		`{"sku":"SKU-1","price":"1.00"}`,
		`{"sku":"SKU-2","price":"9.00"}`,
	)
	writeProductFile(t, input, date, 11,
		`{"sku":"SKU-1","price":"2.00"}`,
	)

	merged := LoadAllProductsForDate(input, date)
	if len(merged) != 2 {
		t.Fatalf("Expected 2 SKUs, got %d", len(merged))
	}
	if merged["SKU-1"].String("price") != "2.00" {
		t.Errorf("Expected hour 11 to win for SKU-1, got %q", merged["SKU-1"].String("price"))
	}
	if merged["SKU-2"].String("price") != "9.00" {
		t.Errorf("Expected SKU-2 retained, got %q", merged["SKU-2"].String("price"))
	}
}

func TestLoadCustomersByID_MissingFileIsEmpty(t *testing.T) {
	snap, err := LoadCustomersByID(filepath.Join(t.TempDir(), "customers.json.gz"))
	if err != nil {
		t.Fatalf("LoadCustomersByID failed: %v", err)
	}
	if len(snap) != 0 {
		t.Errorf("Expected empty snapshot, got %v", snap)
	}
}
