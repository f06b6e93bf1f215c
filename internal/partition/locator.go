// Package partition resolves logical (date, hour) keys to the physical
// partition layout {base}/date=YYYY-MM-DD/hour={H|HH}/<dataset>.json.gz.
// Both hour encodings are accepted on read; writers always emit the
// zero-padded form.
package partition

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/ramahrk/data-pipeline/internal/logging"
	"github.com/ramahrk/data-pipeline/internal/models"
)

// DateFormat is the calendar date layout used in partition paths.
const DateFormat = "2006-01-02"

// FormatHour returns the canonical zero-padded hour directory name.
func FormatHour(hour int) string {
	return fmt.Sprintf("hour=%02d", hour)
}

// DateDir returns the date directory under base.
func DateDir(base, date string) string {
	return filepath.Join(base, "date="+date)
}

// WriteDir returns the canonical (zero-padded) partition directory for
// writers. The directory is not created.
func WriteDir(base, date string, hour int) string {
	return filepath.Join(DateDir(base, date), FormatHour(hour))
}

// Locate resolves an existing partition directory for (date, hour), trying
// the zero-padded name first and the unpadded name second. A missing
// partition is reported as ok=false, not an error: callers treat it as zero
// records.
func Locate(base, date string, hour int) (string, bool) {
	dateDir := DateDir(base, date)

	padded := filepath.Join(dateDir, fmt.Sprintf("hour=%02d", hour))
	if dirExists(padded) {
		return padded, true
	}

	unpadded := filepath.Join(dateDir, fmt.Sprintf("hour=%d", hour))
	if dirExists(unpadded) {
		return unpadded, true
	}

	return "", false
}

// ParseHourDir extracts the hour number from a directory name like
// "hour=7" or "hour=07".
func ParseHourDir(name string) (int, error) {
	raw, found := strings.CutPrefix(name, "hour=")
	if !found {
		return 0, fmt.Errorf("not an hour directory: %s", name)
	}
	hour, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid hour format: %s", name)
	}
	if hour < 0 || hour > 23 {
		return 0, fmt.Errorf("hour out of range: %s", name)
	}
	return hour, nil
}

// Hours enumerates the hour numbers that exist under the date directory,
// ascending. Duplicate entries from mixed encodings collapse onto one hour.
func Hours(base, date string) []int {
	entries, err := os.ReadDir(DateDir(base, date))
	if err != nil {
		return nil
	}

	seen := make(map[int]bool)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		hour, err := ParseHourDir(entry.Name())
		if err != nil {
			logging.Warn("Skipping unrecognized partition directory", "name", entry.Name())
			continue
		}
		seen[hour] = true
	}

	hours := make([]int, 0, len(seen))
	for h := range seen {
		hours = append(hours, h)
	}
	sort.Ints(hours)
	return hours
}

// DataFile returns the path of a dataset file inside a partition directory.
func DataFile(dir, dataset string) string {
	return filepath.Join(dir, dataset+".json.gz")
}

// Scan finds the dataset files available for (date, hour). When hour is nil
// every existing hour directory under the date is scanned and keys carry a
// "_<hour>" suffix. A missing date directory yields an empty map.
func Scan(base, date string, hour *int) map[string]string {
	available := make(map[string]string)

	if hour != nil {
		dir, ok := Locate(base, date, *hour)
		if !ok {
			logging.Warn("Partition not found", "date", date, "hour", *hour)
			return available
		}
		for _, dataset := range models.Datasets {
			file := DataFile(dir, dataset)
			if fileExists(file) {
				available[dataset] = file
			}
		}
		return available
	}

	for _, h := range Hours(base, date) {
		dir, ok := Locate(base, date, h)
		if !ok {
			continue
		}
		for _, dataset := range models.Datasets {
			file := DataFile(dir, dataset)
			if fileExists(file) {
				available[fmt.Sprintf("%s_%d", dataset, h)] = file
			}
		}
	}
	return available
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
