// Package streaming adapts the batch processors to the message bus. The
// batcher accumulates a bounded batch, groups messages by topic and source
// partition, materializes each group to a transient gzip blob, and runs the
// blob through the same processors the batch pipeline uses. Offsets are
// committed only after the whole batch is processed, so a crash mid-batch
// redelivers it (at-least-once). Reference-store upserts absorb the replay;
// appended partition output does not.
package streaming

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/ramahrk/data-pipeline/internal/config"
	"github.com/ramahrk/data-pipeline/internal/logging"
	"github.com/ramahrk/data-pipeline/internal/metrics"
	"github.com/ramahrk/data-pipeline/internal/models"
	"github.com/ramahrk/data-pipeline/internal/partition"
	"github.com/ramahrk/data-pipeline/internal/processor"
	"github.com/ramahrk/data-pipeline/internal/queue"
	"github.com/ramahrk/data-pipeline/internal/reference"
	"github.com/ramahrk/data-pipeline/internal/validation"
)

// Fetch failures retry with doubling delay between these bounds; the delay
// resets after the first successful fetch.
const (
	fetchRetryMin = 100 * time.Millisecond
	fetchRetryMax = 5 * time.Second
)

// processingOrder puts reference datasets before the transactions that look
// them up, and erasure last.
var processingOrder = []string{
	models.DatasetProducts,
	models.DatasetCustomers,
	models.DatasetTransactions,
	models.DatasetErasureRequests,
}

// Batcher consumes record streams and feeds them through the batch
// processors.
type Batcher struct {
	sub   queue.Subscriber
	procs *processor.Processors
	met   *metrics.Registry
	log   *logging.Logger

	batchSize   int
	batchWindow time.Duration
	workDir     string

	// In-process snapshots used for transaction validation, grown as
	// product and customer messages flow through.
	products  reference.ProductSnapshot
	customers reference.CustomerSnapshot
}

// New creates a batcher subscribed to all dataset topics. The work
// directory holding transient batch blobs is removed on Close.
func New(cfg *config.Config, sub queue.Subscriber, procs *processor.Processors, met *metrics.Registry) (*Batcher, error) {
	workDir, err := os.MkdirTemp("", "stream-batches-")
	if err != nil {
		return nil, fmt.Errorf("failed to create work directory: %w", err)
	}

	if err := sub.Subscribe(models.Datasets...); err != nil {
		os.RemoveAll(workDir)
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}

	return &Batcher{
		sub:         sub,
		procs:       procs,
		met:         met,
		log:         logging.With("component", "streaming"),
		batchSize:   cfg.Queue.BatchSize,
		batchWindow: cfg.Queue.BatchWindow,
		workDir:     workDir,
		products:    reference.ProductSnapshot{},
		customers:   reference.CustomerSnapshot{},
	}, nil
}

// Run fetches and processes batches until the context is cancelled.
func (b *Batcher) Run(ctx context.Context) error {
	b.log.Info("Streaming consumer started",
		"batch_size", b.batchSize, "batch_window", b.batchWindow)

	retryDelay := fetchRetryMin
	for {
		if err := ctx.Err(); err != nil {
			b.log.Info("Streaming consumer stopping", "reason", err)
			return nil
		}

		batch, err := b.sub.Fetch(ctx, b.batchSize, b.batchWindow)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			b.log.Error("Failed to fetch batch", "error", err, "retry_in", retryDelay)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(retryDelay):
			}
			retryDelay *= 2
			if retryDelay > fetchRetryMax {
				retryDelay = fetchRetryMax
			}
			continue
		}
		retryDelay = fetchRetryMin
		if len(batch) == 0 {
			continue
		}

		b.met.MessagesConsumed.Add(float64(len(batch)))
		b.ProcessBatch(batch)

		if err := b.sub.Commit(ctx, batch); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			b.log.Error("Failed to commit batch", "error", err)
		}
	}
}

// group is one topic's records from one source partition file.
type group struct {
	dataset    string
	sourceFile string
	records    []models.Record
}

// ProcessBatch groups the messages and runs every group through the
// matching processor. Group failures are logged; the rest of the batch
// still processes so the commit is not held hostage by one bad partition.
func (b *Batcher) ProcessBatch(batch []queue.Message) {
	groups := b.groupMessages(batch)

	for _, g := range groups {
		if err := b.processGroup(g); err != nil {
			b.met.StageErrors.Inc()
			b.log.Error("Failed to process message group",
				"dataset", g.dataset, "source_file", g.sourceFile, "error", err)
		}
	}
}

// groupMessages parses and buckets messages by topic then source file, in
// deterministic processing order. Unparseable messages and messages with no
// source tag are dropped with a warning; they still commit with the batch.
func (b *Batcher) groupMessages(batch []queue.Message) []group {
	byKey := make(map[string]map[string][]models.Record)

	for _, msg := range batch {
		rec, err := models.ParseRecord(msg.Value)
		if err != nil {
			b.log.Warn("Skipping unparseable message", "topic", msg.Topic, "error", err)
			continue
		}

		sourceFile := rec.SourceFile()
		if sourceFile == "" {
			b.log.Warn("Skipping message without source file tag", "topic", msg.Topic)
			continue
		}

		if byKey[msg.Topic] == nil {
			byKey[msg.Topic] = make(map[string][]models.Record)
		}
		byKey[msg.Topic][sourceFile] = append(byKey[msg.Topic][sourceFile], rec)

		b.updateSnapshots(msg.Topic, rec)
	}

	var groups []group
	for _, dataset := range processingOrder {
		sources := byKey[dataset]
		keys := make([]string, 0, len(sources))
		for k := range sources {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			groups = append(groups, group{dataset: dataset, sourceFile: k, records: sources[k]})
		}
	}
	return groups
}

// updateSnapshots keeps the in-process reference views current so
// transactions streaming in the same batch can resolve them.
func (b *Batcher) updateSnapshots(dataset string, rec models.Record) {
	switch dataset {
	case models.DatasetProducts:
		if sku := rec.String("sku"); sku != "" {
			b.products[sku] = rec
		}
	case models.DatasetCustomers:
		if id := rec.String("id"); id != "" {
			b.customers[id] = rec
		}
	}
}

// processGroup writes the group to a transient blob and runs the processor
// for its dataset. The blob is removed afterwards regardless of outcome.
func (b *Batcher) processGroup(g group) error {
	blob := filepath.Join(b.workDir, fmt.Sprintf("%s-%s.json.gz", g.dataset, uuid.NewString()))

	if err := b.writeBlob(blob, g.records); err != nil {
		return fmt.Errorf("failed to write batch blob: %w", err)
	}
	defer os.Remove(blob)

	b.log.Debug("Processing message group", "dataset", g.dataset,
		"source_file", g.sourceFile, "records", len(g.records))

	var err error
	switch g.dataset {
	case models.DatasetProducts:
		_, err = b.procs.ProcessProducts(blob, g.sourceFile)
	case models.DatasetCustomers:
		_, err = b.procs.ProcessCustomers(blob, g.sourceFile)
	case models.DatasetTransactions:
		txCtx := validation.TransactionContext{
			Products:  b.products,
			Customers: b.customers,
			Store:     b.procs.Store(),
		}
		_, err = b.procs.ProcessTransactions(blob, g.sourceFile, txCtx)
	case models.DatasetErasureRequests:
		_, err = b.procs.ApplyErasureRequests(blob, g.sourceFile)
	default:
		err = fmt.Errorf("unknown dataset topic: %s", g.dataset)
	}
	return err
}

func (b *Batcher) writeBlob(path string, records []models.Record) error {
	w, err := partition.NewLineWriter(path)
	if err != nil {
		return err
	}

	for _, rec := range records {
		line, err := rec.Marshal()
		if err != nil {
			w.Close()
			return err
		}
		if err := w.WriteLine(line); err != nil {
			w.Close()
			return err
		}
	}
	return w.Close()
}

// Close removes the transient work directory. The subscriber is owned by
// the caller and closed separately.
func (b *Batcher) Close() error {
	return os.RemoveAll(b.workDir)
}
