// loadgen replays partitioned batch files onto the message bus so the
// streaming service can be exercised against realistic data. Every line is
// tagged with the partition file it came from before publishing, which is
// what lets the consumer route records back into the right output partition.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/ramahrk/data-pipeline/internal/config"
	"github.com/ramahrk/data-pipeline/internal/logging"
	"github.com/ramahrk/data-pipeline/internal/models"
	"github.com/ramahrk/data-pipeline/internal/partition"
	"github.com/ramahrk/data-pipeline/internal/queue"
)

const publishChunkSize = 500

func main() {
	// Parse flags
	configPath := flag.String("config", "", "Path to configuration file")
	date := flag.String("date", "", "Date to replay (YYYY-MM-DD, default: today)")
	hourFlag := flag.Int("hour", -1, "Single hour to replay (0-23, default: all hours)")
	dataset := flag.String("dataset", "", "Single dataset to replay (default: all)")
	flag.Parse()

	cfg := config.LoadOrDefault(*configPath)

	logger, err := logging.NewFromConfig(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logging.SetGlobal(logger)

	if *date == "" {
		*date = time.Now().Format(partition.DateFormat)
	}
	var hour *int
	if *hourFlag >= 0 {
		if *hourFlag > 23 {
			logger.Fatal("Invalid hour", "hour", *hourFlag)
		}
		hour = hourFlag
	}

	datasets := models.Datasets
	if *dataset != "" {
		datasets = []string{*dataset}
	}

	pub, err := queue.NewPublisher(cfg.Queue)
	if err != nil {
		logger.Fatal("Failed to create publisher", "error", err)
	}
	defer func() { _ = pub.Close() }()

	runID := uuid.NewString()
	logger.Info("Replaying partitions to the bus",
		"run_id", runID, "date", *date, "queue_type", cfg.Queue.Type)

	ctx := context.Background()
	total := 0
	for _, ds := range datasets {
		n, err := replayDataset(ctx, pub, cfg.Paths.Input, *date, hour, ds)
		if err != nil {
			logger.Error("Failed to replay dataset", "dataset", ds, "error", err)
			continue
		}
		logger.Info("Dataset replayed", "dataset", ds, "messages", n)
		total += n
	}

	logger.Info("Replay complete", "run_id", runID, "messages", total)
}

// replayDataset publishes every line of the dataset's partition files for
// the date, tagged with its source file, in chunks.
func replayDataset(ctx context.Context, pub queue.Publisher, input, date string, hour *int, dataset string) (int, error) {
	var hours []int
	if hour != nil {
		hours = []int{*hour}
	} else {
		hours = partition.Hours(input, date)
	}

	total := 0
	for _, h := range hours {
		dir, ok := partition.Locate(input, date, h)
		if !ok {
			continue
		}
		file := partition.DataFile(dir, dataset)
		if _, err := os.Stat(file); err != nil {
			continue
		}

		var pending []queue.Message
		flush := func() error {
			if len(pending) == 0 {
				return nil
			}
			if _, err := pub.PublishBatch(ctx, pending); err != nil {
				return err
			}
			total += len(pending)
			pending = pending[:0]
			return nil
		}

		err := partition.EachLine(file, func(line []byte) error {
			rec, err := models.ParseRecord(line)
			if err != nil {
				// Cannot tag a line that does not parse.
				logging.Warn("Skipping malformed line", "file", file, "error", err)
				return nil
			}
			rec[models.FieldSourceFile] = file

			tagged, err := rec.Marshal()
			if err != nil {
				return err
			}
			pending = append(pending, queue.NewMessage(dataset, tagged))
			if len(pending) >= publishChunkSize {
				return flush()
			}
			return nil
		})
		if err != nil {
			return total, err
		}
		if err := flush(); err != nil {
			return total, err
		}
	}
	return total, nil
}
