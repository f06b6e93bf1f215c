// Package processor implements the per-partition record processors. Each
// processor streams one partition's gzip line-delimited records, validates
// (or anonymizes) them, routes accepted records to the output area and
// rejected ones to quarantine, and always emits a stats file, even for a
// zero-record or wholly failed partition, so callers can tell "nothing
// found" from "everything invalid".
package processor

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ramahrk/data-pipeline/internal/anonymize"
	"github.com/ramahrk/data-pipeline/internal/config"
	"github.com/ramahrk/data-pipeline/internal/logging"
	"github.com/ramahrk/data-pipeline/internal/metrics"
	"github.com/ramahrk/data-pipeline/internal/models"
	"github.com/ramahrk/data-pipeline/internal/partition"
	"github.com/ramahrk/data-pipeline/internal/reference"
)

// Processors bundles the per-dataset processing entry points. The same
// instance serves both the batch orchestrator and the stream batcher; that
// is what guarantees one processing semantics for both ingestion paths.
type Processors struct {
	paths config.PathsConfig
	store *reference.Store
	anon  *anonymize.Anonymizer
	met   *metrics.Registry
	log   *logging.Logger
}

// New creates the processor set.
func New(paths config.PathsConfig, store *reference.Store, met *metrics.Registry) *Processors {
	return &Processors{
		paths: paths,
		store: store,
		anon:  anonymize.New(store),
		met:   met,
		log:   logging.With("component", "processor"),
	}
}

// Store exposes the backing reference store.
func (p *Processors) Store() *reference.Store {
	return p.store
}

// partitionParts extracts the date= and hour= path elements from a source
// path. Streaming hands us the original `_source_file` tag here, so output
// partitions always mirror the source partition regardless of ingestion
// path. Unresolvable paths land under date=unknown/hour=unknown rather than
// failing the partition.
func (p *Processors) partitionParts(sourcePath string) (datePart, hourPart string) {
	datePart, hourPart = "date=unknown", "hour=unknown"

	normalized := strings.ReplaceAll(sourcePath, "\\", "/")
	for _, part := range strings.Split(normalized, "/") {
		switch {
		case strings.HasPrefix(part, "date="):
			datePart = part
		case strings.HasPrefix(part, "hour="):
			hourPart = part
		}
	}

	if datePart == "date=unknown" || hourPart == "hour=unknown" {
		p.log.Error("Source path missing date= or hour= element", "path", sourcePath)
	}
	return datePart, hourPart
}

// outputDirs resolves and creates the output and quarantine directories
// mirroring the source partition.
func (p *Processors) outputDirs(sourcePath string) (outputDir, quarantineDir string, err error) {
	datePart, hourPart := p.partitionParts(sourcePath)

	outputDir = filepath.Join(p.paths.Output, datePart, hourPart)
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", "", fmt.Errorf("create output dir: %w", err)
	}

	quarantineDir = filepath.Join(p.paths.Quarantine, datePart, hourPart)
	if err := os.MkdirAll(quarantineDir, 0755); err != nil {
		return "", "", fmt.Errorf("create quarantine dir: %w", err)
	}

	return outputDir, quarantineDir, nil
}

// writeRecords writes records as gzip line-delimited JSON to path.
func writeRecords(path string, records []models.Record) error {
	w, err := partition.NewLineWriter(path)
	if err != nil {
		return err
	}
	for _, rec := range records {
		line, err := json.Marshal(rec)
		if err != nil {
			w.Close()
			return fmt.Errorf("marshal record: %w", err)
		}
		if err := w.WriteLine(line); err != nil {
			w.Close()
			return err
		}
	}
	return w.Close()
}

// writePartitionOutput writes the accepted records, the quarantined records
// (only when there are any), and the stats file for one dataset partition.
func (p *Processors) writePartitionOutput(dataset, outputDir, quarantineDir string, valid, invalid []models.Record, stats models.ProcessingStats) error {
	if err := writeRecords(partition.DataFile(outputDir, dataset), valid); err != nil {
		return fmt.Errorf("write output: %w", err)
	}

	if len(invalid) > 0 {
		quarantineFile := partition.DataFile(quarantineDir, dataset+"_invalid")
		if err := writeRecords(quarantineFile, invalid); err != nil {
			return fmt.Errorf("write quarantine: %w", err)
		}
	}

	if err := stats.WriteFile(outputDir, dataset); err != nil {
		return fmt.Errorf("write stats: %w", err)
	}

	p.log.Info("Partition processed",
		"dataset", dataset,
		"processed", stats.Processed,
		"valid", stats.Valid,
		"invalid", stats.Invalid)
	return nil
}
