package models

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// ProcessingStats summarizes one processor invocation over one partition.
// It is created fresh per invocation, persisted once processing completes,
// and never mutated afterwards.
type ProcessingStats struct {
	Processed          int     `json:"processed"`
	Valid              int     `json:"valid"`
	Invalid            int     `json:"invalid"`
	Anonymized         int     `json:"anonymized,omitempty"`
	Successful         int     `json:"successful,omitempty"`
	Failed             int     `json:"failed,omitempty"`
	RecordsAnonymized  int     `json:"records_anonymized,omitempty"`
	ProcessingTimeSecs float64 `json:"processing_time"`
}

// WriteFile persists the stats as <dataset>_stats.json inside dir.
func (s ProcessingStats) WriteFile(dir, dataset string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, dataset+"_stats.json"), data, 0644)
}

// ReadStatsFile loads a previously written stats file. Missing files return
// (zero, false, nil) so callers can treat absence as "nothing processed".
func ReadStatsFile(dir, dataset string) (ProcessingStats, bool, error) {
	data, err := os.ReadFile(filepath.Join(dir, dataset+"_stats.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return ProcessingStats{}, false, nil
		}
		return ProcessingStats{}, false, err
	}
	var s ProcessingStats
	if err := json.Unmarshal(data, &s); err != nil {
		return ProcessingStats{}, false, err
	}
	return s, true, nil
}

// DateSummary aggregates stats across every dataset and hour of one date.
type DateSummary struct {
	Date              string   `json:"date"`
	Hour              *int     `json:"hour"`
	Timestamp         string   `json:"timestamp"`
	DatasetsProcessed []string `json:"datasets_processed"`
	TotalRecords      int      `json:"total_records"`
	ValidRecords      int      `json:"valid_records"`
	InvalidRecords    int      `json:"invalid_records"`
	AnonymizedRecords int      `json:"anonymized_records"`
}

// Add folds one dataset's stats into the summary.
func (d *DateSummary) Add(dataset string, s ProcessingStats) {
	seen := false
	for _, name := range d.DatasetsProcessed {
		if name == dataset {
			seen = true
			break
		}
	}
	if !seen {
		d.DatasetsProcessed = append(d.DatasetsProcessed, dataset)
	}
	d.TotalRecords += s.Processed
	d.ValidRecords += s.Valid
	d.InvalidRecords += s.Invalid
	switch dataset {
	case DatasetCustomers:
		d.AnonymizedRecords += s.Anonymized
	case DatasetErasureRequests:
		d.AnonymizedRecords += s.RecordsAnonymized
	}
}
