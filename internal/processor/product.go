package processor

import (
	"time"

	"github.com/ramahrk/data-pipeline/internal/models"
	"github.com/ramahrk/data-pipeline/internal/partition"
	"github.com/ramahrk/data-pipeline/internal/validation"
)

// ProcessProducts processes one partition of product records. Validated
// records are written to the per-SKU reference entries and to the merged
// snapshot file.
//
// The snapshot write is a whole-file overwrite of this invocation's valid
// records. Correct merge state for a date therefore requires the
// orchestrator to reprocess all of that date's hours together; reprocessing
// a single hour alone stomps the other hours' contributions.
func (p *Processors) ProcessProducts(inputFile, sourceFile string) (models.ProcessingStats, error) {
	start := time.Now()
	sourcePath := sourceFile
	if sourcePath == "" {
		sourcePath = inputFile
	}
	p.log.Info("Processing products", "input", inputFile, "source", sourcePath)

	stats := models.ProcessingStats{}
	outputDir, quarantineDir, err := p.outputDirs(sourcePath)
	if err != nil {
		return stats, err
	}

	var valid, invalid []models.Record

	err = partition.EachLine(inputFile, func(line []byte) error {
		stats.Processed++
		p.met.RecordsProcessed.WithLabelValues(models.DatasetProducts).Inc()

		product, perr := models.ParseRecord(line)
		if perr != nil {
			stats.Invalid++
			p.met.RecordsInvalid.WithLabelValues(models.DatasetProducts).Inc()
			p.log.Error("Invalid JSON in product record", "line", stats.Processed)
			return nil
		}

		if errs := validation.ValidateProduct(product); len(errs) > 0 {
			product.SetErrors(errs)
			invalid = append(invalid, product)
			stats.Invalid++
			p.met.RecordsInvalid.WithLabelValues(models.DatasetProducts).Inc()
			p.log.Warn("Invalid product record", "sku", product.String("sku"))
			return nil
		}

		valid = append(valid, product)
		stats.Valid++
		p.met.RecordsValid.WithLabelValues(models.DatasetProducts).Inc()

		if err := p.store.PutProduct(product); err != nil {
			p.log.Error("Failed to write product reference entry",
				"sku", product.String("sku"), "error", err)
		}
		return nil
	})
	if err != nil {
		return stats, err
	}

	if err := p.store.WriteProductSnapshot(valid); err != nil {
		p.log.Warn("Failed to write merged product reference file", "error", err)
	}

	stats.ProcessingTimeSecs = time.Since(start).Seconds()
	p.met.ProcessingDuration.WithLabelValues(models.DatasetProducts).Observe(stats.ProcessingTimeSecs)

	if err := p.writePartitionOutput(models.DatasetProducts, outputDir, quarantineDir, valid, invalid, stats); err != nil {
		return stats, err
	}
	return stats, nil
}
