// Package pipeline orchestrates batch processing. Each date runs the fixed
// stage sequence ScanPartitions → LoadProductReference → ProcessProducts →
// ProcessCustomers → ProcessTransactions → ApplyErasure → EmitStats → Done.
// Transitions are sequential and unconditional: a failing stage is logged
// and counted, and the following stages still run. Output already written by
// earlier stages is never rolled back.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/ramahrk/data-pipeline/internal/config"
	"github.com/ramahrk/data-pipeline/internal/logging"
	"github.com/ramahrk/data-pipeline/internal/metrics"
	"github.com/ramahrk/data-pipeline/internal/models"
	"github.com/ramahrk/data-pipeline/internal/partition"
	"github.com/ramahrk/data-pipeline/internal/processor"
	"github.com/ramahrk/data-pipeline/internal/reference"
	"github.com/ramahrk/data-pipeline/internal/validation"
)

// DefaultErasureLagDays is how many days erasure enforcement trails
// ingestion when not configured otherwise: requests recorded on day D are
// applied while processing day D+1. The lag is a deliberate compliance
// window, not an accident of directory scanning.
const DefaultErasureLagDays = 1

// Orchestrator runs the batch pipeline over dates.
type Orchestrator struct {
	cfg   *config.Config
	procs *processor.Processors
	met   *metrics.Registry
	log   *logging.Logger
}

// New creates an orchestrator.
func New(cfg *config.Config, procs *processor.Processors, met *metrics.Registry) *Orchestrator {
	return &Orchestrator{
		cfg:   cfg,
		procs: procs,
		met:   met,
		log:   logging.With("component", "pipeline"),
	}
}

// Run processes every date in [startDate, endDate], inclusive. Empty dates
// default to today. Cancellation is honored between dates and between
// stages; the in-flight partition always finishes.
func (o *Orchestrator) Run(ctx context.Context, startDate, endDate string, hour *int) error {
	if startDate == "" {
		startDate = time.Now().Format(partition.DateFormat)
	}
	if endDate == "" {
		endDate = startDate
	}

	start, err := time.Parse(partition.DateFormat, startDate)
	if err != nil {
		return fmt.Errorf("invalid start date %q: %w", startDate, err)
	}
	end, err := time.Parse(partition.DateFormat, endDate)
	if err != nil {
		return fmt.Errorf("invalid end date %q: %w", endDate, err)
	}

	o.log.Info("Starting pipeline run", "start_date", startDate, "end_date", endDate)

	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if err := ctx.Err(); err != nil {
			o.log.Warn("Pipeline run interrupted", "error", err)
			return err
		}
		o.ProcessDate(ctx, d.Format(partition.DateFormat), hour)
	}
	return nil
}

// stage is one step of the per-date state machine.
type stage struct {
	name string
	run  func() error
}

// ProcessDate runs the full stage sequence for one date. A nil hour
// processes every hour found under the date.
func (o *Orchestrator) ProcessDate(ctx context.Context, date string, hour *int) {
	o.log.Info("Processing date", "date", date, "hour", hourLabel(hour))

	var (
		products  reference.ProductSnapshot
		customers = reference.CustomerSnapshot{}
	)

	stages := []stage{
		{"ScanPartitions", func() error {
			available := partition.Scan(o.cfg.Paths.Input, date, hour)
			if len(available) == 0 {
				o.log.Warn("No data files found", "date", date, "hour", hourLabel(hour))
			}
			return nil
		}},
		{"LoadProductReference", func() error {
			products = reference.LoadAllProductsForDate(o.cfg.Paths.Input, date)
			return nil
		}},
		{"ProcessProducts", func() error {
			return o.processDataset(date, hour, models.DatasetProducts, func(file string) error {
				_, err := o.procs.ProcessProducts(file, "")
				return err
			})
		}},
		{"ProcessCustomers", func() error {
			return o.processDataset(date, hour, models.DatasetCustomers, func(file string) error {
				if _, err := o.procs.ProcessCustomers(file, ""); err != nil {
					return err
				}
				hourly, err := reference.LoadCustomersByID(file)
				if err != nil {
					return err
				}
				for id, rec := range hourly {
					customers[id] = rec
				}
				return nil
			})
		}},
		{"ProcessTransactions", func() error {
			txCtx := validation.TransactionContext{
				Products:  products,
				Customers: customers,
				Store:     o.procs.Store(),
			}
			return o.processDataset(date, hour, models.DatasetTransactions, func(file string) error {
				_, err := o.procs.ProcessTransactions(file, "", txCtx)
				return err
			})
		}},
		{"ApplyErasure", func() error {
			return o.applyPreviousDayErasure(date)
		}},
		{"EmitStats", func() error {
			return o.emitDateSummary(date, hour)
		}},
	}

	for _, s := range stages {
		if err := ctx.Err(); err != nil {
			o.log.Warn("Date processing interrupted", "date", date, "stage", s.name)
			return
		}
		if err := s.run(); err != nil {
			o.met.StageErrors.Inc()
			o.log.Error("Stage failed", "date", date, "stage", s.name, "error", err)
			// Later stages still run: no partial-failure rollback.
		}
	}

	o.log.Info("Date processed", "date", date)
}

// processDataset runs fn over the dataset's file in every matching hourly
// partition, ascending hour order. Per-hour failures are logged and the
// remaining hours continue.
func (o *Orchestrator) processDataset(date string, hour *int, dataset string, fn func(file string) error) error {
	var hours []int
	if hour != nil {
		hours = []int{*hour}
	} else {
		hours = partition.Hours(o.cfg.Paths.Input, date)
	}

	var lastErr error
	for _, h := range hours {
		dir, ok := partition.Locate(o.cfg.Paths.Input, date, h)
		if !ok {
			continue
		}
		file := partition.DataFile(dir, dataset)
		if _, err := os.Stat(file); err != nil {
			continue
		}
		if err := fn(file); err != nil {
			o.met.StageErrors.Inc()
			o.log.Error("Failed to process partition file",
				"dataset", dataset, "file", file, "error", err)
			lastErr = err
		}
	}
	return lastErr
}

// applyPreviousDayErasure applies every erasure-request partition recorded
// erasureLagDays before the date being processed, against the reference
// store as mutated by the current date's customer processing.
func (o *Orchestrator) applyPreviousDayErasure(date string) error {
	// Zero is a valid configured lag (same-day enforcement on replay and
	// backfill runs); only a negative value falls back to the default.
	lag := o.cfg.Pipeline.ErasureLagDays
	if lag < 0 {
		lag = DefaultErasureLagDays
	}

	day, err := time.Parse(partition.DateFormat, date)
	if err != nil {
		return fmt.Errorf("invalid date %q: %w", date, err)
	}
	prevDate := day.AddDate(0, 0, -lag).Format(partition.DateFormat)

	var lastErr error
	for _, h := range partition.Hours(o.cfg.Paths.Input, prevDate) {
		dir, ok := partition.Locate(o.cfg.Paths.Input, prevDate, h)
		if !ok {
			continue
		}
		file := partition.DataFile(dir, models.DatasetErasureRequests)
		if _, err := os.Stat(file); err != nil {
			continue
		}
		if _, err := o.procs.ApplyErasureRequests(file, ""); err != nil {
			o.met.StageErrors.Inc()
			o.log.Error("Failed to apply erasure requests", "file", file, "error", err)
			lastErr = err
		}
	}
	return lastErr
}

func hourLabel(hour *int) string {
	if hour == nil {
		return "all"
	}
	return fmt.Sprintf("%d", *hour)
}
