// Package validation holds the per-kind structural, referential and
// arithmetic rules. Validators return human-readable error reasons; an empty
// slice means the record is accepted.
package validation

import (
	"fmt"
	"regexp"

	"github.com/shopspring/decimal"

	"github.com/ramahrk/data-pipeline/internal/logging"
	"github.com/ramahrk/data-pipeline/internal/models"
	"github.com/ramahrk/data-pipeline/internal/reference"
)

// costTolerance is the absolute tolerance for the transaction cost check.
var costTolerance = decimal.RequireFromString("0.01")

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// IsValidEmail reports whether email matches the standard local@domain.tld
// shape.
func IsValidEmail(email string) bool {
	if email == "" {
		return false
	}
	return emailPattern.MatchString(email)
}

// ValidateCustomer checks that id, first_name, last_name and email are all
// present and non-empty, and that the email is well-formed.
func ValidateCustomer(customer models.Record) []string {
	var errs []string

	for _, field := range []string{"id", "first_name", "last_name", "email"} {
		if customer.IsEmpty(field) {
			errs = append(errs, "Missing required field: "+field)
		}
	}

	if email := customer.String("email"); email != "" {
		if !IsValidEmail(email) {
			errs = append(errs, "Invalid email format")
		}
	}

	return errs
}

// ValidateProduct checks that all product fields are populated, that price
// parses as a positive decimal and popularity as a positive number. Parse
// failures are reported as format errors, never silently coerced.
func ValidateProduct(product models.Record) []string {
	var errs []string

	for _, field := range []string{"sku", "name", "price", "category", "popularity"} {
		if !product.Has(field) {
			errs = append(errs, "Missing required field: "+field)
		}
	}

	if product.Has("price") {
		price, err := toDecimal(product["price"])
		switch {
		case err != nil:
			errs = append(errs, "Invalid price format")
		case !price.IsPositive():
			errs = append(errs, "Price must be positive")
		}
	}

	if product.Has("popularity") {
		popularity, err := toDecimal(product["popularity"])
		switch {
		case err != nil:
			errs = append(errs, "Invalid popularity format")
		case !popularity.IsPositive():
			errs = append(errs, "Popularity must be greater than 0")
		}
	}

	return errs
}

// TransactionContext carries the reference data a transaction check consults.
// Snapshots take priority; the store is the fallback when a snapshot is not
// supplied. Both may be nil/empty, in which case referential checks degrade
// to warnings or are skipped.
type TransactionContext struct {
	Products  reference.ProductSnapshot
	Customers reference.CustomerSnapshot
	Store     *reference.Store
}

func (c TransactionContext) lookupCustomer(id string) (models.Record, bool) {
	if c.Customers != nil {
		if rec, ok := c.Customers[id]; ok {
			return rec, true
		}
	}
	if c.Store != nil {
		return c.Store.GetCustomer(id)
	}
	return nil, false
}

func (c TransactionContext) lookupProduct(sku string) (models.Record, bool) {
	if c.Products != nil {
		rec, ok := c.Products[sku]
		return rec, ok
	}
	if c.Store != nil {
		return c.Store.GetProduct(sku)
	}
	return nil, false
}

// ValidateTransaction checks the canonical transaction fields and, when the
// referenced product is resolvable, that total_cost equals price × quantity
// within an absolute tolerance of 0.01 using exact decimal arithmetic.
//
// Referential leniency is deliberate: a missing customer only logs a warning
// and a missing product skips the cost check, because reference data may
// simply not have arrived yet.
func ValidateTransaction(tx models.Record, ctx TransactionContext) []string {
	var errs []string

	for _, field := range []string{"transaction_id", "customer_id", "sku", "quantity", "total_cost"} {
		if !tx.Has(field) {
			errs = append(errs, "Missing required field: "+field)
		}
	}

	// Without the basic fields there is nothing referential to check.
	if len(errs) > 0 {
		return errs
	}

	customerID := tx.String("customer_id")
	if _, found := ctx.lookupCustomer(customerID); !found {
		logging.Warn("Customer not found for transaction",
			"customer_id", customerID,
			"transaction_id", tx.String("transaction_id"))
	}

	sku := tx.String("sku")
	product, found := ctx.lookupProduct(sku)
	if !found {
		// Reference data not yet available; processing continues.
		logging.Warn("Product not found for transaction",
			"sku", sku,
			"transaction_id", tx.String("transaction_id"))
		return errs
	}

	price, perr := toDecimal(product["price"])
	quantity, qerr := toDecimal(tx["quantity"])
	actual, aerr := toDecimal(tx["total_cost"])
	if perr != nil || qerr != nil || aerr != nil {
		return append(errs, "Invalid cost or quantity format")
	}

	expected := price.Mul(quantity)
	if expected.Sub(actual).Abs().GreaterThan(costTolerance) {
		errs = append(errs, fmt.Sprintf("Total cost %s does not match expected cost %s", actual, expected))
	}

	return errs
}

// ValidateErasureRequest checks that at least one of customer-id or email is
// present, and that a present email is well-formed.
func ValidateErasureRequest(request models.Record) []string {
	var errs []string

	if request.IsEmpty("customer-id") && request.IsEmpty("email") {
		errs = append(errs, "Erasure request must include at least one of customer-id or email")
	}

	if email := request.String("email"); email != "" {
		if !IsValidEmail(email) {
			errs = append(errs, "Invalid email format")
		}
	}

	return errs
}

// toDecimal converts the mixed numeric encodings upstream producers emit
// (JSON numbers decode as float64, some feeds quote them as strings) into an
// exact decimal. Anything else is a format error.
func toDecimal(v any) (decimal.Decimal, error) {
	switch n := v.(type) {
	case float64:
		return decimal.NewFromFloat(n), nil
	case int:
		return decimal.NewFromInt(int64(n)), nil
	case int64:
		return decimal.NewFromInt(n), nil
	case string:
		return decimal.NewFromString(n)
	default:
		return decimal.Decimal{}, fmt.Errorf("not a number: %T", v)
	}
}
