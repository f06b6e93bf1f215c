package processor

import (
	"errors"
	"time"

	"github.com/ramahrk/data-pipeline/internal/models"
	"github.com/ramahrk/data-pipeline/internal/partition"
	"github.com/ramahrk/data-pipeline/internal/validation"
)

// ProcessTransactions processes one partition of transaction records.
// Records are normalized onto the canonical field set first; a record whose
// shape cannot be normalized is quarantined as-is. The validation context
// carries the date-level product snapshot and customer view so referential
// checks do not re-read the store per record.
func (p *Processors) ProcessTransactions(inputFile, sourceFile string, ctx validation.TransactionContext) (models.ProcessingStats, error) {
	start := time.Now()
	sourcePath := sourceFile
	if sourcePath == "" {
		sourcePath = inputFile
	}
	p.log.Info("Processing transactions", "input", inputFile, "source", sourcePath)

	if ctx.Store == nil {
		ctx.Store = p.store
	}

	stats := models.ProcessingStats{}
	outputDir, quarantineDir, err := p.outputDirs(sourcePath)
	if err != nil {
		return stats, err
	}

	var valid, invalid []models.Record

	err = partition.EachLine(inputFile, func(line []byte) error {
		stats.Processed++
		p.met.RecordsProcessed.WithLabelValues(models.DatasetTransactions).Inc()

		tx, perr := models.ParseRecord(line)
		if perr != nil {
			stats.Invalid++
			p.met.RecordsInvalid.WithLabelValues(models.DatasetTransactions).Inc()
			p.log.Error("Invalid JSON in transaction record", "line", stats.Processed)
			return nil
		}

		normalized, nerr := models.NormalizeTransaction(tx)
		if nerr != nil {
			var normErr *models.NormalizationError
			raw := tx
			if errors.As(nerr, &normErr) {
				raw = normErr.Raw
			}
			raw.SetErrors([]string{"Could not normalize transaction structure"})
			invalid = append(invalid, raw)
			stats.Invalid++
			p.met.RecordsInvalid.WithLabelValues(models.DatasetTransactions).Inc()
			p.log.Warn("Unnormalizable transaction", "id", tx.String("transaction_id"))
			return nil
		}
		normalized[models.FieldSourceFile] = sourcePath

		if errs := validation.ValidateTransaction(normalized, ctx); len(errs) > 0 {
			normalized.SetErrors(errs)
			invalid = append(invalid, normalized)
			stats.Invalid++
			p.met.RecordsInvalid.WithLabelValues(models.DatasetTransactions).Inc()
			p.log.Warn("Invalid transaction record", "id", normalized.String("transaction_id"))
		} else {
			valid = append(valid, normalized)
			stats.Valid++
			p.met.RecordsValid.WithLabelValues(models.DatasetTransactions).Inc()
		}
		return nil
	})
	if err != nil {
		return stats, err
	}

	stats.ProcessingTimeSecs = time.Since(start).Seconds()
	p.met.ProcessingDuration.WithLabelValues(models.DatasetTransactions).Observe(stats.ProcessingTimeSecs)

	if err := p.writePartitionOutput(models.DatasetTransactions, outputDir, quarantineDir, valid, invalid, stats); err != nil {
		return stats, err
	}
	return stats, nil
}
