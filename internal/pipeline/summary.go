package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ramahrk/data-pipeline/internal/models"
	"github.com/ramahrk/data-pipeline/internal/partition"
)

// emitDateSummary folds the per-hour, per-dataset stats files written under
// the output tree into one aggregated summary at
// {output}/stats/stats_{date}_{hour|all}.json.
func (o *Orchestrator) emitDateSummary(date string, hour *int) error {
	summary := models.DateSummary{
		Date:      date,
		Hour:      hour,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	var hours []int
	if hour != nil {
		hours = []int{*hour}
	} else {
		hours = partition.Hours(o.cfg.Paths.Output, date)
	}

	for _, h := range hours {
		dir, ok := partition.Locate(o.cfg.Paths.Output, date, h)
		if !ok {
			continue
		}
		for _, dataset := range models.Datasets {
			stats, found, err := models.ReadStatsFile(dir, dataset)
			if err != nil {
				o.log.Warn("Skipping unreadable stats file",
					"dataset", dataset, "dir", dir, "error", err)
				continue
			}
			if found {
				summary.Add(dataset, stats)
			}
		}
	}

	statsDir := filepath.Join(o.cfg.Paths.Output, "stats")
	if err := os.MkdirAll(statsDir, 0o755); err != nil {
		return fmt.Errorf("failed to create stats directory: %w", err)
	}

	name := fmt.Sprintf("stats_%s_%s.json", date, hourLabel(hour))
	path := filepath.Join(statsDir, name)

	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write summary file: %w", err)
	}

	o.log.Info("Wrote date summary", "path", path,
		"datasets", len(summary.DatasetsProcessed))
	return nil
}
