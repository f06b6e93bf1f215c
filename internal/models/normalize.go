package models

import (
	"sort"
	"strings"
)

// Transaction field names after normalization.
var transactionFields = []string{"transaction_id", "customer_id", "sku", "quantity", "total_cost"}

// NormalizationError reports a transaction whose shape could not be mapped
// onto the canonical field set. The raw record is attached so the caller can
// quarantine it unchanged.
type NormalizationError struct {
	Raw    Record
	Reason string
}

func (e *NormalizationError) Error() string {
	return "transaction normalization failed: " + e.Reason
}

// NormalizeTransaction maps the heterogeneous transaction shapes emitted by
// upstream producers onto the canonical field set. The fallback priority per
// field is fixed and deliberate:
//
//	transaction_id: "transaction_id" > "id" > any string field ending in "id"/"_id"
//	customer_id:    "customer_id" > customer.id > "user_id" > any string field
//	                starting with "customer"/"user" > literal "unknown"
//	line items:     purchases.products[0] > items[0] > top-level sku/quantity/total_cost
//
// A record already carrying all five canonical fields is returned unchanged.
// Guessing never goes past these lists; anything else is a NormalizationError.
func NormalizeTransaction(tx Record) (Record, error) {
	complete := true
	for _, f := range transactionFields {
		if !tx.Has(f) {
			complete = false
			break
		}
	}
	if complete {
		return tx, nil
	}

	normalized := Record{}

	id, ok := normalizeTransactionID(tx)
	if !ok {
		return nil, &NormalizationError{Raw: tx, Reason: "no usable transaction id"}
	}
	normalized["transaction_id"] = id
	normalized["customer_id"] = normalizeCustomerID(tx)

	if !normalizeLineItem(tx, normalized) {
		return nil, &NormalizationError{Raw: tx, Reason: "no usable line item"}
	}

	return normalized, nil
}

func normalizeTransactionID(tx Record) (string, bool) {
	if v, ok := tx["transaction_id"].(string); ok {
		return v, true
	}
	if v, ok := tx["id"].(string); ok {
		return v, true
	}
	// Last-resort guess over the remaining fields in a stable order.
	for _, key := range sortedKeys(tx) {
		v, isStr := tx[key].(string)
		if !isStr {
			continue
		}
		if strings.HasSuffix(key, "id") || strings.HasSuffix(key, "_id") {
			return v, true
		}
	}
	return "", false
}

func normalizeCustomerID(tx Record) string {
	if v, ok := tx["customer_id"].(string); ok {
		return v
	}
	if customer, ok := tx["customer"].(map[string]any); ok {
		if v, ok := customer["id"].(string); ok {
			return v
		}
	}
	if v, ok := tx["user_id"].(string); ok {
		return v
	}
	for _, key := range sortedKeys(tx) {
		v, isStr := tx[key].(string)
		if !isStr {
			continue
		}
		if strings.HasPrefix(key, "customer") || strings.HasPrefix(key, "user") {
			return v
		}
	}
	return "unknown"
}

// normalizeLineItem fills sku, quantity and total_cost from the first line
// item found. Multi-item payloads contribute only their first item; that
// matches the upstream contract for these producers.
func normalizeLineItem(tx, normalized Record) bool {
	if purchases, ok := tx["purchases"].(map[string]any); ok {
		if products, ok := purchases["products"].([]any); ok && len(products) > 0 {
			if item, ok := products[0].(map[string]any); ok {
				fillFromItem(Record(item), normalized)
				return true
			}
		}
	}
	if items, ok := tx["items"].([]any); ok && len(items) > 0 {
		if item, ok := items[0].(map[string]any); ok {
			fillFromItem(Record(item), normalized)
			return true
		}
	}
	if tx.Has("sku") {
		normalized["sku"] = tx["sku"]
		normalized["quantity"] = valueOr(tx, "quantity", float64(1))
		if tx.Has("total_cost") {
			normalized["total_cost"] = tx["total_cost"]
		} else {
			normalized["total_cost"] = valueOr(tx, "price", float64(0))
		}
		return true
	}
	return false
}

func fillFromItem(item, normalized Record) {
	sku := item.String("sku")
	if sku == "" {
		sku = item.String("product_id")
	}
	if sku == "" {
		sku = "unknown"
	}
	normalized["sku"] = sku

	qty := valueOr(item, "quantity", float64(1))
	normalized["quantity"] = qty

	switch {
	case item.Has("total"):
		normalized["total_cost"] = item["total"]
	case item.Has("price"):
		price, pok := item["price"].(float64)
		q, qok := qty.(float64)
		if pok && qok {
			normalized["total_cost"] = price * q
		} else {
			normalized["total_cost"] = float64(0)
		}
	default:
		normalized["total_cost"] = float64(0)
	}
}

func valueOr(r Record, key string, fallback any) any {
	if r.Has(key) {
		return r[key]
	}
	return fallback
}

func sortedKeys(r Record) []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
