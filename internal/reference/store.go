// Package reference implements the durable key-value store holding the
// latest known customer and product records. Customers are keyed by id,
// products by SKU; entries are never deleted, only overwritten (erasure
// mutates fields in place so re-application stays idempotent).
package reference

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ramahrk/data-pipeline/internal/logging"
	"github.com/ramahrk/data-pipeline/internal/models"
)

// ErrMissingKey reports a put whose record does not carry its identifying
// key. It fails that single write only, never the surrounding batch.
var ErrMissingKey = errors.New("record missing identifying key")

const (
	customersDir = "customers"
	productsDir  = "products"
)

// Store is a file-backed key-value store rooted at a reference directory:
// {root}/customers/{id}.json and {root}/products/{sku}.json. Every put is
// persisted immediately; there is no write buffering and no isolation
// between concurrent writers. The pipeline runs as a single active instance,
// which is the only reason this is acceptable.
type Store struct {
	root string
	log  *logging.Logger
}

// NewStore opens (creating if needed) the reference store at root. A root
// that cannot be created is a fatal setup error for the whole run.
func NewStore(root string) (*Store, error) {
	for _, sub := range []string{customersDir, productsDir} {
		if err := os.MkdirAll(filepath.Join(root, sub), 0755); err != nil {
			return nil, fmt.Errorf("create reference dir %s: %w", sub, err)
		}
	}
	return &Store{
		root: root,
		log:  logging.With("component", "reference"),
	}, nil
}

// Root returns the store's base directory.
func (s *Store) Root() string {
	return s.root
}

// GetCustomer looks up a customer by id. Not-found is (nil, false), not an
// error.
func (s *Store) GetCustomer(id string) (models.Record, bool) {
	return s.read(customersDir, id)
}

// PutCustomer writes a customer record keyed by its "id" field, overwriting
// any existing entry.
func (s *Store) PutCustomer(rec models.Record) error {
	id := rec.String("id")
	if id == "" {
		return fmt.Errorf("put customer: %w", ErrMissingKey)
	}
	return s.write(customersDir, id, rec)
}

// GetProduct looks up a product by SKU.
func (s *Store) GetProduct(sku string) (models.Record, bool) {
	return s.read(productsDir, sku)
}

// PutProduct writes a product record keyed by its "sku" field.
func (s *Store) PutProduct(rec models.Record) error {
	sku := rec.String("sku")
	if sku == "" {
		return fmt.Errorf("put product: %w", ErrMissingKey)
	}
	return s.write(productsDir, sku, rec)
}

// ScanCustomers returns every stored customer matching the predicate. The
// scan is O(n) in stored customers; acceptable because the store is bounded
// by the customer population, but a known scaling limit.
func (s *Store) ScanCustomers(pred func(models.Record) bool) []models.Record {
	dir := filepath.Join(s.root, customersDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	var matches []models.Record
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			continue
		}
		var rec models.Record
		if err := json.Unmarshal(data, &rec); err != nil {
			s.log.Warn("Invalid JSON in customer file", "file", entry.Name())
			continue
		}
		if pred(rec) {
			matches = append(matches, rec)
		}
	}
	return matches
}

// FindCustomersByEmail returns every customer whose email matches exactly.
func (s *Store) FindCustomersByEmail(email string) []models.Record {
	return s.ScanCustomers(func(rec models.Record) bool {
		return rec.String("email") == email
	})
}

func (s *Store) keyPath(kind, key string) string {
	return filepath.Join(s.root, kind, key+".json")
}

func (s *Store) read(kind, key string) (models.Record, bool) {
	if key == "" {
		return nil, false
	}
	data, err := os.ReadFile(s.keyPath(kind, key))
	if err != nil {
		return nil, false
	}
	var rec models.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		s.log.Warn("Invalid JSON in reference file", "kind", kind, "key", key)
		return nil, false
	}
	return rec, true
}

func (s *Store) write(kind, key string, rec models.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal %s %s: %w", kind, key, err)
	}
	if err := os.WriteFile(s.keyPath(kind, key), data, 0644); err != nil {
		return fmt.Errorf("write %s %s: %w", kind, key, err)
	}
	return nil
}
