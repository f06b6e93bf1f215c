// Package anonymize implements deterministic pseudo-identity generation and
// the reference-store mutation performed for erasure requests.
package anonymize

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/ramahrk/data-pipeline/internal/logging"
	"github.com/ramahrk/data-pipeline/internal/models"
	"github.com/ramahrk/data-pipeline/internal/reference"
)

// Marker replaces first and last names on anonymized records.
const Marker = "ANONYMIZED"

// AnonymousEmail derives a stable pseudonymous email for an identifier. The
// same id always yields the same address, which is what makes re-applying an
// erasure request idempotent.
func AnonymousEmail(id string) string {
	sum := sha256.Sum256([]byte(id))
	return "anon_" + hex.EncodeToString(sum[:])[:8] + "@example.com"
}

// Anonymizer resolves erasure targets in the reference store and overwrites
// their identifying fields in place. Keys are preserved forever.
type Anonymizer struct {
	store *reference.Store
	now   func() time.Time
	log   *logging.Logger
}

// New creates an Anonymizer backed by the given store.
func New(store *reference.Store) *Anonymizer {
	return &Anonymizer{
		store: store,
		now:   time.Now,
		log:   logging.With("component", "anonymize"),
	}
}

// Apply anonymizes every customer matching the request's id or email and
// returns the number of records updated. A request matching zero customers
// returns 0; that is a successful outcome, not a failure.
func (a *Anonymizer) Apply(customerID, email string) int {
	if customerID == "" && email == "" {
		a.log.Warn("Erasure request carries neither customer id nor email")
		return 0
	}

	// Union of the id lookup and the email scan, de-duplicated by id so a
	// customer matched both ways counts once.
	candidates := make(map[string]models.Record)

	if customerID != "" {
		if rec, ok := a.store.GetCustomer(customerID); ok {
			if id := rec.String("id"); id != "" {
				candidates[id] = rec
			}
		}
	}

	if email != "" {
		for _, rec := range a.store.FindCustomersByEmail(email) {
			if id := rec.String("id"); id != "" {
				candidates[id] = rec
			}
		}
	}

	count := 0
	for id, rec := range candidates {
		rec["email"] = AnonymousEmail(id)
		rec["first_name"] = Marker
		rec["last_name"] = Marker
		rec[models.FieldAnonymized] = true
		rec[models.FieldAnonymizedAt] = a.now().Format(time.RFC3339)

		if err := a.store.PutCustomer(rec); err != nil {
			a.log.Error("Failed to update anonymized customer", "customer_id", id, "error", err)
			continue
		}
		count++
		a.log.Info("Anonymized customer", "customer_id", id)
	}

	return count
}
