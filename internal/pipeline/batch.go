package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/opsledger/receiptd/internal/export"
)

const defaultBatchWorkers = 4

// Input is one receipt to process.
type Input struct {
	Filename string
	Data     []byte
}

// Outcome is the per-receipt result. Exactly one of Receipt and Err is
// set.
type Outcome struct {
	SourceFile string
	Receipt    *ParsedReceipt
	Err        error
}

// Summary aggregates a batch run.
type Summary struct {
	Processed int
	Failed    int
	Enhanced  int
}

// Batch runs inputs through the processor with a bounded worker pool.
// One receipt's failure never aborts the batch; its Outcome carries the
// error instead. Transient analysis failures are retried here with
// jittered backoff. Outcomes preserve input order.
type Batch struct {
	processor *Processor
	workers   int
	retry     RetryConfig
	logger    *zap.Logger
}

// NewBatch wires a batch runner. workers <= 0 selects the default.
func NewBatch(processor *Processor, workers int, logger *zap.Logger) *Batch {
	if workers <= 0 {
		workers = defaultBatchWorkers
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Batch{
		processor: processor,
		workers:   workers,
		retry:     DefaultOCRRetryConfig,
		logger:    logger,
	}
}

// Run processes every input and returns per-receipt outcomes plus the
// aggregate summary. Run returns early only when ctx is cancelled.
func (b *Batch) Run(ctx context.Context, inputs []Input) ([]Outcome, Summary) {
	outcomes := make([]Outcome, len(inputs))

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < b.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				outcomes[i] = b.runOne(ctx, inputs[i])
			}
		}()
	}

dispatch:
	for i := range inputs {
		select {
		case jobs <- i:
		case <-ctx.Done():
			break dispatch
		}
	}
	close(jobs)
	wg.Wait()

	var summary Summary
	for i := range outcomes {
		if outcomes[i].Receipt == nil && outcomes[i].Err == nil {
			// not dispatched before cancellation
			outcomes[i] = Outcome{SourceFile: inputs[i].Filename, Err: ctx.Err()}
		}
		switch {
		case outcomes[i].Err != nil:
			summary.Failed++
		default:
			summary.Processed++
			if outcomes[i].Receipt.Enhanced {
				summary.Enhanced++
			}
		}
	}
	return outcomes, summary
}

func (b *Batch) runOne(ctx context.Context, in Input) Outcome {
	receipt, err := WithRetry(ctx, b.retry, func(ctx context.Context) (*ParsedReceipt, error) {
		return b.processor.Process(ctx, in.Data, in.Filename)
	})
	if err != nil {
		b.logger.Warn("receipt failed", zap.String("file", in.Filename), zap.Error(err))
		return Outcome{SourceFile: in.Filename, Err: err}
	}
	b.logger.Info("receipt processed",
		zap.String("file", in.Filename),
		zap.String("merchant", receipt.MerchantName),
		zap.String("category", string(receipt.Category)),
		zap.Float64("confidence", receipt.Confidence),
		zap.Bool("enhanced", receipt.Enhanced))
	return Outcome{SourceFile: in.Filename, Receipt: receipt}
}

// Rows converts successful outcomes into export rows, assigning each a
// fresh id and the shared processing timestamp.
func Rows(outcomes []Outcome, processedAt time.Time) []export.Row {
	rows := make([]export.Row, 0, len(outcomes))
	for _, o := range outcomes {
		if o.Err != nil {
			continue
		}
		rows = append(rows, o.Receipt.ToRow(uuid.NewString(), o.SourceFile, processedAt))
	}
	return rows
}
