package reference

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ramahrk/data-pipeline/internal/logging"
	"github.com/ramahrk/data-pipeline/internal/models"
	"github.com/ramahrk/data-pipeline/internal/partition"
)

// SnapshotFile is the merged per-date product reference file name.
const SnapshotFile = "products.json.gz"

// ProductSnapshot is an in-memory SKU-keyed view of product reference data,
// passed into transaction validation so it does not re-read the store per
// record.
type ProductSnapshot map[string]models.Record

// CustomerSnapshot is an in-memory id-keyed view of customer records.
type CustomerSnapshot map[string]models.Record

// WriteProductSnapshot overwrites the merged product reference file with the
// given records. Whole-file overwrite is the contract: the orchestrator
// rebuilds the snapshot from every hourly source of a date, so reprocessing
// one hour in isolation stomps the other hours' contributions.
func (s *Store) WriteProductSnapshot(products []models.Record) error {
	w, err := partition.NewLineWriter(filepath.Join(s.root, SnapshotFile))
	if err != nil {
		return fmt.Errorf("open product snapshot: %w", err)
	}
	for _, p := range products {
		line, err := json.Marshal(p)
		if err != nil {
			w.Close()
			return fmt.Errorf("marshal product %s: %w", p.String("sku"), err)
		}
		if err := w.WriteLine(line); err != nil {
			w.Close()
			return fmt.Errorf("write product snapshot: %w", err)
		}
	}
	return w.Close()
}

// HasProductSnapshot reports whether the merged reference file exists.
func (s *Store) HasProductSnapshot() bool {
	info, err := os.Stat(filepath.Join(s.root, SnapshotFile))
	return err == nil && !info.IsDir()
}

// LoadProductSnapshot reads the merged product reference file. A missing
// file yields an empty snapshot.
func (s *Store) LoadProductSnapshot() (ProductSnapshot, error) {
	path := filepath.Join(s.root, SnapshotFile)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return ProductSnapshot{}, nil
	}
	return LoadProductsBySKU(path)
}

// LoadProductsBySKU loads one gzip line-delimited product file into a
// SKU-keyed snapshot. Records without a sku are skipped.
func LoadProductsBySKU(path string) (ProductSnapshot, error) {
	snap := ProductSnapshot{}
	err := partition.EachLine(path, func(line []byte) error {
		rec, err := models.ParseRecord(line)
		if err != nil {
			// Reference files are written by this pipeline; a bad line is
			// worth a warning but not worth failing the whole load.
			logging.Warn("Invalid JSON in product file", "file", path)
			return nil
		}
		if sku := rec.String("sku"); sku != "" {
			snap[sku] = rec
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// LoadCustomersByID loads one gzip line-delimited customer file into an
// id-keyed snapshot.
func LoadCustomersByID(path string) (CustomerSnapshot, error) {
	snap := CustomerSnapshot{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return snap, nil
	}
	err := partition.EachLine(path, func(line []byte) error {
		rec, err := models.ParseRecord(line)
		if err != nil {
			return nil
		}
		if id := rec.String("id"); id != "" {
			snap[id] = rec
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// LoadAllProductsForDate merges the product files of every hourly partition
// for the date, ascending hour order. When the same SKU appears in several
// hours the later-processed hour wins.
func LoadAllProductsForDate(inputBase, date string) ProductSnapshot {
	merged := ProductSnapshot{}
	for _, hour := range partition.Hours(inputBase, date) {
		dir, ok := partition.Locate(inputBase, date, hour)
		if !ok {
			continue
		}
		file := partition.DataFile(dir, models.DatasetProducts)
		if _, err := os.Stat(file); err != nil {
			continue
		}
		hourly, err := LoadProductsBySKU(file)
		if err != nil {
			logging.Warn("Failed to load product data", "file", file, "error", err)
			continue
		}
		for sku, rec := range hourly {
			merged[sku] = rec
		}
	}
	if len(merged) == 0 {
		logging.Warn("No product reference files found", "date", date)
	}
	return merged
}
