package processor

import (
	"errors"
	"time"

	"github.com/ramahrk/data-pipeline/internal/models"
	"github.com/ramahrk/data-pipeline/internal/partition"
	"github.com/ramahrk/data-pipeline/internal/reference"
	"github.com/ramahrk/data-pipeline/internal/validation"
)

// ProcessCustomers processes one partition of customer records. sourceFile
// is the original source-partition path when inputFile is a transient blob
// (streaming); pass "" in batch mode to fall back to inputFile.
//
// Every successfully parsed record carrying an id is mirrored into the
// reference store before its validity is decided. That is intentional:
// rejected records must still be resolvable when an erasure request for them
// arrives later.
func (p *Processors) ProcessCustomers(inputFile, sourceFile string) (models.ProcessingStats, error) {
	start := time.Now()
	sourcePath := sourceFile
	if sourcePath == "" {
		sourcePath = inputFile
	}
	p.log.Info("Processing customers", "input", inputFile, "source", sourcePath)

	stats := models.ProcessingStats{}
	outputDir, quarantineDir, err := p.outputDirs(sourcePath)
	if err != nil {
		return stats, err
	}

	var valid, invalid []models.Record

	err = partition.EachLine(inputFile, func(line []byte) error {
		stats.Processed++
		p.met.RecordsProcessed.WithLabelValues(models.DatasetCustomers).Inc()

		customer, perr := models.ParseRecord(line)
		if perr != nil {
			stats.Invalid++
			p.met.RecordsInvalid.WithLabelValues(models.DatasetCustomers).Inc()
			p.log.Error("Invalid JSON in customer record", "line", stats.Processed)
			return nil
		}

		if errs := validation.ValidateCustomer(customer); len(errs) > 0 {
			customer.SetErrors(errs)
			invalid = append(invalid, customer)
			stats.Invalid++
			p.met.RecordsInvalid.WithLabelValues(models.DatasetCustomers).Inc()
			p.log.Warn("Invalid customer record", "id", customer.String("id"))
		} else {
			valid = append(valid, customer)
			stats.Valid++
			p.met.RecordsValid.WithLabelValues(models.DatasetCustomers).Inc()
		}

		if customer.String("id") != "" {
			if err := p.store.PutCustomer(customer); err != nil {
				// A write without a key fails just that write; valid ids
				// can still fail on IO, which is also per-record.
				if !errors.Is(err, reference.ErrMissingKey) {
					p.log.Error("Failed to mirror customer into reference store",
						"id", customer.String("id"), "error", err)
				}
			}
		}
		return nil
	})
	if err != nil {
		// Unreadable partition: abort this processor, siblings continue.
		return stats, err
	}

	stats.ProcessingTimeSecs = time.Since(start).Seconds()
	p.met.ProcessingDuration.WithLabelValues(models.DatasetCustomers).Observe(stats.ProcessingTimeSecs)

	if err := p.writePartitionOutput(models.DatasetCustomers, outputDir, quarantineDir, valid, invalid, stats); err != nil {
		return stats, err
	}
	return stats, nil
}
