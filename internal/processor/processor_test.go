package processor

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ramahrk/data-pipeline/internal/anonymize"
	"github.com/ramahrk/data-pipeline/internal/config"
	"github.com/ramahrk/data-pipeline/internal/metrics"
	"github.com/ramahrk/data-pipeline/internal/models"
	"github.com/ramahrk/data-pipeline/internal/partition"
	"github.com/ramahrk/data-pipeline/internal/reference"
	"github.com/ramahrk/data-pipeline/internal/validation"
)

func newTestProcessors(t *testing.T) (*Processors, *reference.Store, config.PathsConfig) {
	t.Helper()

	root := t.TempDir()
	paths := config.PathsConfig{
		Input:      filepath.Join(root, "input"),
		Output:     filepath.Join(root, "output"),
		Quarantine: filepath.Join(root, "quarantine"),
		Reference:  filepath.Join(root, "reference"),
	}

	store, err := reference.NewStore(paths.Reference)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	return New(paths, store, metrics.NewRegistry()), store, paths
}

func writeInputFile(t *testing.T, paths config.PathsConfig, date string, hour int, dataset string, lines ...string) string {
	t.Helper()
	dir := partition.WriteDir(paths.Input, date, hour)
	path := partition.DataFile(dir, dataset)
	w, err := partition.NewLineWriter(path)
	if err != nil {
		t.Fatalf("Failed to create input file: %v", err)
	}
	for _, line := range lines {
		if err := w.WriteLine([]byte(line)); err != nil {
			t.Fatalf("Failed to write line: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Failed to close writer: %v", err)
	}
	return path
}

func readRecords(t *testing.T, path string) []models.Record {
	t.Helper()
	var records []models.Record
	err := partition.EachLine(path, func(line []byte) error {
		rec, err := models.ParseRecord(line)
		if err != nil {
			return err
		}
		records = append(records, rec)
		return nil
	})
	if err != nil {
		t.Fatalf("Failed to read %s: %v", path, err)
	}
	return records
}

func TestProcessCustomers_RoutesAndMirrors(t *testing.T) {
	p, store, paths := newTestProcessors(t)

	input := writeInputFile(t, paths, "2024-03-02", 9, models.DatasetCustomers,
		`{"id":"c-1","first_name":"Ada","last_name":"Lovelace","email":"ada@example.com"}`,
		`{"id":"c-2","first_name":"Grace","last_name":"","email":"invalid-email"}`,
	)

	stats, err := p.ProcessCustomers(input, "")
	if err != nil {
		t.Fatalf("ProcessCustomers failed: %v", err)
	}
	if stats.Processed != 2 || stats.Valid != 1 || stats.Invalid != 1 {
		t.Errorf("Unexpected stats: %+v", stats)
	}

	outDir := filepath.Join(paths.Output, "date=2024-03-02", "hour=09")
	valid := readRecords(t, partition.DataFile(outDir, models.DatasetCustomers))
	if len(valid) != 1 || valid[0].String("id") != "c-1" {
		t.Errorf("Unexpected output records: %v", valid)
	}

	quarDir := filepath.Join(paths.Quarantine, "date=2024-03-02", "hour=09")
	invalid := readRecords(t, partition.DataFile(quarDir, "customers_invalid"))
	if len(invalid) != 1 {
		t.Fatalf("Expected 1 quarantined record, got %d", len(invalid))
	}
	errs, ok := invalid[0][models.FieldErrors].([]any)
	if !ok || len(errs) != 2 {
		t.Errorf("Expected 2 error reasons attached, got %v", invalid[0][models.FieldErrors])
	}

	// Valid and invalid records both land in the reference store.
	if _, ok := store.GetCustomer("c-1"); !ok {
		t.Error("Expected c-1 mirrored")
	}
	if _, ok := store.GetCustomer("c-2"); !ok {
		t.Error("Expected invalid c-2 mirrored")
	}
}

func TestProcessCustomers_ParseFailureCountsInvalid(t *testing.T) {
	p, _, paths := newTestProcessors(t)

	input := writeInputFile(t, paths, "2024-03-02", 9, models.DatasetCustomers,
		`{broken`,
		`{"id":"c-1","first_name":"Ada","last_name":"Lovelace","email":"ada@example.com"}`,
	)

	stats, err := p.ProcessCustomers(input, "")
	if err != nil {
		t.Fatalf("ProcessCustomers failed: %v", err)
	}
	if stats.Processed != 2 || stats.Valid != 1 || stats.Invalid != 1 {
		t.Errorf("Unexpected stats: %+v", stats)
	}

	// Unparseable lines cannot be quarantined as records; no quarantine file.
	quarFile := filepath.Join(paths.Quarantine, "date=2024-03-02", "hour=09", "customers_invalid.json.gz")
	if _, err := os.Stat(quarFile); !os.IsNotExist(err) {
		t.Errorf("Expected no quarantine file, got %v", err)
	}
}

func TestProcessCustomers_MissingInputFails(t *testing.T) {
	p, _, paths := newTestProcessors(t)

	missing := filepath.Join(paths.Input, "date=2024-03-02", "hour=09", "customers.json.gz")
	if _, err := p.ProcessCustomers(missing, ""); err == nil {
		t.Fatal("Expected error for missing input file")
	}
}

func TestProcessCustomers_EmptyPartitionStillWritesStats(t *testing.T) {
	p, _, paths := newTestProcessors(t)

	input := writeInputFile(t, paths, "2024-03-02", 9, models.DatasetCustomers)

	stats, err := p.ProcessCustomers(input, "")
	if err != nil {
		t.Fatalf("ProcessCustomers failed: %v", err)
	}
	if stats.Processed != 0 {
		t.Errorf("Unexpected stats: %+v", stats)
	}

	outDir := filepath.Join(paths.Output, "date=2024-03-02", "hour=09")
	got, found, err := models.ReadStatsFile(outDir, models.DatasetCustomers)
	if err != nil || !found {
		t.Fatalf("Expected stats file for empty partition: found=%v err=%v", found, err)
	}
	if got.Processed != 0 {
		t.Errorf("Unexpected persisted stats: %+v", got)
	}
}

func TestProcessProducts_SnapshotCarriesOnlyValid(t *testing.T) {
	p, store, paths := newTestProcessors(t)

	input := writeInputFile(t, paths, "2024-03-02", 9, models.DatasetProducts,
		`{"sku":"SKU-1","name":"Widget","price":"2.50","category":"tools","popularity":0.8}`,
		`{"sku":"SKU-2","name":"Gadget","price":"-1.00","category":"tools","popularity":0.5}`,
	)

	stats, err := p.ProcessProducts(input, "")
	if err != nil {
		t.Fatalf("ProcessProducts failed: %v", err)
	}
	if stats.Valid != 1 || stats.Invalid != 1 {
		t.Errorf("Unexpected stats: %+v", stats)
	}

	snap, err := store.LoadProductSnapshot()
	if err != nil {
		t.Fatalf("LoadProductSnapshot failed: %v", err)
	}
	if _, ok := snap["SKU-1"]; !ok {
		t.Error("Expected SKU-1 in snapshot")
	}
	if _, ok := snap["SKU-2"]; ok {
		t.Error("Rejected product must not reach the snapshot")
	}

	if _, ok := store.GetProduct("SKU-1"); !ok {
		t.Error("Expected SKU-1 reference entry")
	}
	if _, ok := store.GetProduct("SKU-2"); ok {
		t.Error("Rejected product must not reach the store")
	}
}

func TestProcessTransactions_QuarantinesUnnormalizable(t *testing.T) {
	p, _, paths := newTestProcessors(t)

	input := writeInputFile(t, paths, "2024-03-02", 9, models.DatasetTransactions,
		`{"amount":12.5,"note":"no ids anywhere"}`,
	)

	stats, err := p.ProcessTransactions(input, "", validation.TransactionContext{})
	if err != nil {
		t.Fatalf("ProcessTransactions failed: %v", err)
	}
	if stats.Invalid != 1 || stats.Valid != 0 {
		t.Errorf("Unexpected stats: %+v", stats)
	}

	quarDir := filepath.Join(paths.Quarantine, "date=2024-03-02", "hour=09")
	invalid := readRecords(t, partition.DataFile(quarDir, "transactions_invalid"))
	if len(invalid) != 1 {
		t.Fatalf("Expected 1 quarantined record, got %d", len(invalid))
	}
	errs, _ := invalid[0][models.FieldErrors].([]any)
	if len(errs) != 1 || errs[0] != "Could not normalize transaction structure" {
		t.Errorf("Unexpected errors: %v", invalid[0][models.FieldErrors])
	}
	// The raw upstream payload survives quarantine.
	if invalid[0]["note"] != "no ids anywhere" {
		t.Errorf("Raw fields lost: %v", invalid[0])
	}
}

func TestProcessTransactions_TagsOutputWithSource(t *testing.T) {
	p, store, paths := newTestProcessors(t)

	if err := store.PutProduct(models.Record{"sku": "SKU-1", "price": "2.50"}); err != nil {
		t.Fatalf("PutProduct failed: %v", err)
	}

	input := writeInputFile(t, paths, "2024-03-02", 9, models.DatasetTransactions,
		`{"transaction_id":"t-1","customer_id":"c-1","sku":"SKU-1","quantity":2,"total_cost":"5.00"}`,
	)

	stats, err := p.ProcessTransactions(input, "", validation.TransactionContext{})
	if err != nil {
		t.Fatalf("ProcessTransactions failed: %v", err)
	}
	if stats.Valid != 1 {
		t.Fatalf("Unexpected stats: %+v", stats)
	}

	outDir := filepath.Join(paths.Output, "date=2024-03-02", "hour=09")
	valid := readRecords(t, partition.DataFile(outDir, models.DatasetTransactions))
	if valid[0].SourceFile() != input {
		t.Errorf("Expected source tag %q, got %q", input, valid[0].SourceFile())
	}
}

func TestApplyErasureRequests_Classification(t *testing.T) {
	p, store, paths := newTestProcessors(t)

	if err := store.PutCustomer(models.Record{
		"id": "c-1", "first_name": "Ada", "last_name": "Lovelace", "email": "ada@example.com",
	}); err != nil {
		t.Fatalf("PutCustomer failed: %v", err)
	}

	input := writeInputFile(t, paths, "2024-03-01", 0, models.DatasetErasureRequests,
		`{"customer-id":"c-1","email":"ada@example.com"}`,
		`{"customer-id":"","email":"invalid-email"}`,
		`{"customer-id":"ghost"}`,
		`{broken`,
	)

	stats, err := p.ApplyErasureRequests(input, "")
	if err != nil {
		t.Fatalf("ApplyErasureRequests failed: %v", err)
	}

	if stats.Processed != 4 {
		t.Errorf("Expected 4 processed, got %d", stats.Processed)
	}
	// The matching request and the zero-match request both succeed; the
	// sentinel shape and the unparseable line are the failures.
	if stats.Successful != 2 || stats.Failed != 2 {
		t.Errorf("Unexpected classification: %+v", stats)
	}
	if stats.RecordsAnonymized != 1 {
		t.Errorf("Expected 1 record anonymized, got %d", stats.RecordsAnonymized)
	}

	rec, _ := store.GetCustomer("c-1")
	if rec.String("first_name") != anonymize.Marker {
		t.Errorf("Expected c-1 anonymized, got %v", rec)
	}

	// Erasure writes stats into the request's own partition, no quarantine.
	outDir := filepath.Join(paths.Output, "date=2024-03-01", "hour=00")
	got, found, err := models.ReadStatsFile(outDir, models.DatasetErasureRequests)
	if err != nil || !found {
		t.Fatalf("Expected erasure stats: found=%v err=%v", found, err)
	}
	if got.Successful != 2 {
		t.Errorf("Unexpected persisted stats: %+v", got)
	}
}

func TestApplyErasureRequests_SentinelRequiresEmptyIDKey(t *testing.T) {
	p, _, paths := newTestProcessors(t)

	// Only the first shape carries the explicit empty customer-id; the
	// omitted-key and null-key shapes are ordinary email-only lookups.
	input := writeInputFile(t, paths, "2024-03-01", 0, models.DatasetErasureRequests,
		`{"customer-id":"","email":"invalid-email"}`,
		`{"email":"invalid-email"}`,
		`{"customer-id":null,"email":"invalid-email"}`,
	)

	stats, err := p.ApplyErasureRequests(input, "")
	if err != nil {
		t.Fatalf("ApplyErasureRequests failed: %v", err)
	}

	if stats.Successful != 2 || stats.Failed != 1 {
		t.Errorf("Unexpected classification: %+v", stats)
	}
	if stats.RecordsAnonymized != 0 {
		t.Errorf("Expected no anonymized records, got %d", stats.RecordsAnonymized)
	}
}

func TestPartitionParts_UnknownFallback(t *testing.T) {
	p, _, _ := newTestProcessors(t)

	datePart, hourPart := p.partitionParts("/tmp/blob-1234.json.gz")
	if datePart != "date=unknown" || hourPart != "hour=unknown" {
		t.Errorf("Expected unknown fallback, got %s/%s", datePart, hourPart)
	}

	datePart, hourPart = p.partitionParts(`C:\data\date=2024-03-02\hour=07\transactions.json.gz`)
	if datePart != "date=2024-03-02" || hourPart != "hour=07" {
		t.Errorf("Expected windows path parsed, got %s/%s", datePart, hourPart)
	}
}
