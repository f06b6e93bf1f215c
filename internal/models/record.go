// Package models defines the record shapes flowing through the pipeline.
// Upstream producers emit loosely-shaped JSON objects, so the canonical
// in-flight representation is a Record map; typed accessors cover the fields
// the pipeline actually interprets, and everything else passes through
// untouched (quarantined records must retain their original payload).
package models

import "encoding/json"

// Record is one line-delimited JSON object from a partition file or a bus
// message value.
type Record map[string]any

// Dataset names as they appear in partition file names and bus topics.
const (
	DatasetCustomers       = "customers"
	DatasetProducts        = "products"
	DatasetTransactions    = "transactions"
	DatasetErasureRequests = "erasure-requests"
)

// Datasets lists all dataset names in processing order.
var Datasets = []string{
	DatasetCustomers,
	DatasetProducts,
	DatasetTransactions,
	DatasetErasureRequests,
}

// Metadata fields the pipeline attaches to records.
const (
	FieldErrors       = "_errors"
	FieldSourceFile   = "_source_file"
	FieldAnonymized   = "_anonymized"
	FieldAnonymizedAt = "_anonymized_at"
)

// ParseRecord decodes one JSON line into a Record.
func ParseRecord(line []byte) (Record, error) {
	var r Record
	if err := json.Unmarshal(line, &r); err != nil {
		return nil, err
	}
	return r, nil
}

// Marshal encodes the record as one JSON line.
func (r Record) Marshal() ([]byte, error) {
	return json.Marshal(r)
}

// String returns the value of key as a string, or "" when absent or not a
// string.
func (r Record) String(key string) string {
	s, _ := r[key].(string)
	return s
}

// Has reports whether key is present with a non-nil value.
func (r Record) Has(key string) bool {
	v, ok := r[key]
	return ok && v != nil
}

// IsEmpty reports whether key is absent, nil, or the empty string.
// Numeric zero is not empty: a quantity of 0 is present but invalid.
func (r Record) IsEmpty(key string) bool {
	v, ok := r[key]
	if !ok || v == nil {
		return true
	}
	if s, isStr := v.(string); isStr {
		return s == ""
	}
	return false
}

// SetErrors attaches validation error reasons to the record.
func (r Record) SetErrors(errs []string) {
	r[FieldErrors] = errs
}

// SourceFile returns the embedded source-partition tag, if any.
func (r Record) SourceFile() string {
	return r.String(FieldSourceFile)
}

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Customer identifies the fields of a customer record.
type Customer struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

// CustomerFromRecord extracts the typed customer view of a record.
func CustomerFromRecord(r Record) Customer {
	return Customer{
		ID:        r.String("id"),
		FirstName: r.String("first_name"),
		LastName:  r.String("last_name"),
		Email:     r.String("email"),
	}
}

// Product identifies the fields of a product record. Price and popularity
// stay as raw values because validation parses them as decimals.
type Product struct {
	SKU        string `json:"sku"`
	Name       string `json:"name"`
	Price      any    `json:"price"`
	Popularity any    `json:"popularity"`
	Category   string `json:"category"`
}

// ProductFromRecord extracts the typed product view of a record.
func ProductFromRecord(r Record) Product {
	return Product{
		SKU:        r.String("sku"),
		Name:       r.String("name"),
		Price:      r["price"],
		Popularity: r["popularity"],
		Category:   r.String("category"),
	}
}

// ErasureRequest identifies the fields of an erasure request. The upstream
// key uses a hyphen ("customer-id"), unlike every other dataset.
type ErasureRequest struct {
	CustomerID string `json:"customer-id"`
	Email      string `json:"email"`
}

// ErasureFromRecord extracts the typed erasure view of a record.
func ErasureFromRecord(r Record) ErasureRequest {
	return ErasureRequest{
		CustomerID: r.String("customer-id"),
		Email:      r.String("email"),
	}
}
