package ddbload

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	DefaultCapacityUnitsPerSecond = 1000
	DefaultCooldown               = time.Second

	defaultUnprocessedStartingDelay = 2 * time.Second
	readItemSizeKB                  = 1
)

// SequentialOption configures the load-balanced bulk operations.
type SequentialOption struct {
	// BatchSize is the number of requests per call inside a super-batch.
	BatchSize int
	// NumberIndices divides the capacity budget. A write to a table with
	// global secondary indexes consumes capacity on each of them.
	NumberIndices int
	// CapacityUnitsPerSecond is the WCU or RCU budget of one super-batch.
	CapacityUnitsPerSecond float64
	// RequestBackOff is applied to every single call.
	RequestBackOff *RequestBackOff
	// UnprocessedBackOff drives the rounds on leftovers of a super-batch.
	// Defaults to 5 attempts starting at 2s with full jitter.
	UnprocessedBackOff *RequestBackOff
	// Cooldown is the pause between two super-batches.
	Cooldown       time.Duration
	MaxConcurrency int
	Logger         *zap.Logger
	WriteCallback  func(WriteOutcome)
	ReadCallback   func(ReadOutcome)

	timer backoff.Timer
}

func (o *SequentialOption) settle(max int) (SequentialOption, error) {
	var s SequentialOption
	if o != nil {
		s = *o
	}
	if s.NumberIndices == 0 {
		s.NumberIndices = 1
	}
	if s.NumberIndices < 0 {
		return s, errors.Wrapf(ErrInvalidOption, "number of indices must be positive, got %d", s.NumberIndices)
	}
	if s.CapacityUnitsPerSecond == 0 {
		s.CapacityUnitsPerSecond = DefaultCapacityUnitsPerSecond
	}
	if s.CapacityUnitsPerSecond < 0 {
		return s, errors.Wrapf(ErrInvalidOption, "capacity units per second must be positive, got %v", s.CapacityUnitsPerSecond)
	}
	if s.Cooldown == 0 {
		s.Cooldown = DefaultCooldown
	}
	if s.Cooldown < 0 {
		return s, errors.Wrapf(ErrInvalidOption, "cooldown must not be negative, got %v", s.Cooldown)
	}

	var ub RequestBackOff
	if s.UnprocessedBackOff != nil {
		ub = *s.UnprocessedBackOff
	}
	ub = ub.withDefaults(defaultUnprocessedStartingDelay)
	if err := ub.validate(); err != nil {
		return s, err
	}
	cond := ub.ErrorCondition
	ub.ErrorCondition = func(err error) bool {
		return isUnprocessedError(err) || cond(err)
	}
	s.UnprocessedBackOff = &ub
	s.Logger = orDefaultLogger(s.Logger)

	p, err := s.parallel().settle(max)
	if err != nil {
		return s, err
	}
	s.BatchSize = p.BatchSize
	s.RequestBackOff = p.RequestBackOff

	return s, nil
}

func (s SequentialOption) parallel() *ParallelOption {
	return &ParallelOption{
		BatchSize:      s.BatchSize,
		RequestBackOff: s.RequestBackOff,
		MaxConcurrency: s.MaxConcurrency,
		Logger:         s.Logger,
		WriteCallback:  s.WriteCallback,
		ReadCallback:   s.ReadCallback,
	}
}

// superBatchSize is the number of requests one super-batch may carry.
func (s SequentialOption) superBatchSize(itemSizeKB float64) float64 {
	return s.CapacityUnitsPerSecond / float64(s.NumberIndices) / itemSizeKB
}

// Report summarizes a load-balanced bulk operation.
type Report struct {
	SuperBatches int
	// RetryRounds counts the rounds spent on leftovers, across super-batches.
	RetryRounds int
	// Processed counts the requests applied, or keys resolved.
	Processed int
	// Items holds the items read, in super-batch order.
	Items []Item
	// PendingWrites and PendingReads are set when an error stops the
	// operation. They hold every request not confirmed processed: the
	// leftovers of the failing super-batch, including whole batches of
	// failed calls, followed by the super-batches never started. Processed
	// plus the pending count always equals the input count.
	PendingWrites BatchWriteMap
	PendingReads  BatchReadMap
}

type roundState int

const (
	statePending roundState = iota
	stateInFlight
	statePartiallyFailed
	stateExhausted
	stateDone
)

func (s roundState) String() string {
	switch s {
	case statePending:
		return "pending"
	case stateInFlight:
		return "in-flight"
	case statePartiallyFailed:
		return "partially-failed"
	case stateExhausted:
		return "exhausted"
	case stateDone:
		return "done"
	default:
		return "unknown"
	}
}

type counted interface {
	Count() int
}

// superBatch drives one super-batch from Pending to Done or Exhausted.
type superBatch[M counted, O outcome] struct {
	op      string
	name    string
	opt     SequentialOption
	report  *Report
	log     *zap.Logger
	state   roundState
	run     func(ctx context.Context, m M) ([]O, error)
	pending func(o []O) M
	collect func(o []O)
	residue func(m M) *UnprocessedError

	// left holds what the last round did not confirm.
	left M
}

func (b *superBatch[M, O]) transit(to roundState, fields ...zap.Field) {
	b.state = to
	b.log.Debug("super-batch state", append(fields, stateField(to))...)
}

// round issues b.left once and replaces it with what the round did not
// confirm. A failing call keeps its whole batch in b.left.
func (b *superBatch[M, O]) round(ctx context.Context) error {
	b.transit(stateInFlight, countField(b.left.Count()))
	outcomes, err := b.run(ctx, b.left)
	b.collect(outcomes)
	if len(outcomes) > 0 {
		b.left = b.pending(outcomes)
	}
	return err
}

func (b *superBatch[M, O]) drain(ctx context.Context, m M) error {
	b.left = m
	b.transit(statePending, countField(m.Count()))

	if err := b.round(ctx); err != nil {
		return err
	}
	if b.left.Count() == 0 {
		b.transit(stateDone)
		return nil
	}
	b.transit(statePartiallyFailed, countField(b.left.Count()))

	b.log.Info("processing unprocessed",
		operationField(b.name),
		countField(b.left.Count()))

	err := backOffExecution(ctx, b.name, *b.opt.UnprocessedBackOff, b.log, b.opt.timer, func(attempt int) error {
		b.report.RetryRounds++
		incRetryRound(b.op)

		if err := b.round(ctx); err != nil {
			return err
		}
		if b.left.Count() == 0 {
			b.transit(stateDone)
			return nil
		}
		b.transit(statePartiallyFailed, countField(b.left.Count()))
		return b.residue(b.left)
	})
	if err != nil && isUnprocessedError(err) {
		b.transit(stateExhausted, countField(b.left.Count()))
	}
	return err
}

// unfinished merges the leftovers of a failed super-batch and the
// super-batches after it into into.
func unfinished[M interface{ merge(M) }](into, left M, rest []M) M {
	into.merge(left)
	for _, m := range rest {
		into.merge(m)
	}
	return into
}

// BatchWriteSequential writes requests in super-batches sized to the
// capacity budget. Each super-batch runs through BatchWriteParallel, its
// leftovers are retried with UnprocessedBackOff and the next one starts
// after Cooldown. If a super-batch still has leftovers when the attempts run
// out, an *UnprocessedError carrying them is returned and the remaining
// super-batches are not started. On any error Report.PendingWrites holds
// everything not written.
func BatchWriteSequential(ctx context.Context, client BatchWriteAPI, requests BatchWriteMap, opt *SequentialOption) (*Report, error) {
	s, err := opt.settle(MaxBatchWriteSize)
	if err != nil {
		return nil, err
	}

	itemSizeKB, err := AverageItemSizeKB(requests)
	if err != nil {
		return nil, err
	}
	size := s.superBatchSize(itemSizeKB)
	supers := BatchWriteRequests(requests, size)

	s.Logger.Info("write started",
		countField(requests.Count()),
		zap.Float64("item-size-kb", itemSizeKB),
		zap.Int("super-batch-size", batchSize(size)),
		zap.Int("super-batches", len(supers)))

	report := &Report{}
	p := s.parallel()
	for i, m := range supers {
		b := &superBatch[BatchWriteMap, WriteOutcome]{
			op:     opWrite,
			name:   "BatchWriteSequential",
			opt:    s,
			report: report,
			log:    s.Logger.With(superBatchField(i, len(supers))),
			run: func(ctx context.Context, m BatchWriteMap) ([]WriteOutcome, error) {
				return BatchWriteParallel(ctx, client, m, p)
			},
			pending: pendingWrites,
			collect: func(outcomes []WriteOutcome) {
				for _, o := range outcomes {
					report.Processed += o.Processed()
				}
			},
			residue: func(m BatchWriteMap) *UnprocessedError {
				return &UnprocessedError{Writes: m}
			},
		}
		if err := runSuperBatch(ctx, b, m, i, len(supers), report); err != nil {
			report.PendingWrites = unfinished(BatchWriteMap{}, b.left, supers[i+1:])
			return report, err
		}
	}

	return report, nil
}

// BatchGetSequential reads keys in super-batches the way
// BatchWriteSequential writes. Every item counts as 1 KB. Every super-batch
// is processed and Report.Items keeps their order.
func BatchGetSequential(ctx context.Context, client BatchGetAPI, requests BatchReadMap, opt *SequentialOption) (*Report, error) {
	s, err := opt.settle(MaxBatchReadSize)
	if err != nil {
		return nil, err
	}

	size := s.superBatchSize(readItemSizeKB)
	supers := BatchReadRequests(requests, size)

	s.Logger.Info("read started",
		countField(requests.Count()),
		zap.Int("super-batch-size", batchSize(size)),
		zap.Int("super-batches", len(supers)))

	report := &Report{}
	for i, m := range supers {
		b := newReadSuperBatch(client, s, report, "BatchGetSequential", s.Logger.With(superBatchField(i, len(supers))))
		if err := runSuperBatch(ctx, b, m, i, len(supers), report); err != nil {
			report.PendingReads = unfinished(BatchReadMap{}, b.left, supers[i+1:])
			return report, err
		}
	}

	return report, nil
}

// BatchGetParallelRetry reads all keys in one parallel round and retries the
// leftovers with UnprocessedBackOff. There is no capacity budget or cooldown.
func BatchGetParallelRetry(ctx context.Context, client BatchGetAPI, requests BatchReadMap, opt *SequentialOption) (*Report, error) {
	s, err := opt.settle(MaxBatchReadSize)
	if err != nil {
		return nil, err
	}

	report := &Report{}
	if requests.Count() == 0 {
		return report, nil
	}
	b := newReadSuperBatch(client, s, report, "BatchGetParallelRetry", s.Logger)
	if err := b.drain(ctx, requests); err != nil {
		report.PendingReads = unfinished(BatchReadMap{}, b.left, nil)
		return report, err
	}
	return report, nil
}

func newReadSuperBatch(client BatchGetAPI, s SequentialOption, report *Report, name string, log *zap.Logger) *superBatch[BatchReadMap, ReadOutcome] {
	p := s.parallel()
	return &superBatch[BatchReadMap, ReadOutcome]{
		op:     opRead,
		name:   name,
		opt:    s,
		report: report,
		log:    log,
		run: func(ctx context.Context, m BatchReadMap) ([]ReadOutcome, error) {
			return BatchGetParallel(ctx, client, m, p)
		},
		pending: pendingReads,
		collect: func(outcomes []ReadOutcome) {
			items, _ := FoldReadOutcomes(outcomes)
			report.Items = append(report.Items, items...)
			for _, o := range outcomes {
				report.Processed += o.Processed()
			}
		},
		residue: func(m BatchReadMap) *UnprocessedError {
			return &UnprocessedError{Reads: m}
		},
	}
}

func runSuperBatch[M counted, O outcome](ctx context.Context, b *superBatch[M, O], m M, i, total int, report *Report) error {
	incSuperBatch(b.op)
	b.log.Debug("super-batch started", countField(m.Count()))

	if err := b.drain(ctx, m); err != nil {
		b.log.Error("super-batch failed", stateField(b.state), zap.Error(err))
		return err
	}
	report.SuperBatches++
	b.log.Debug("super-batch finished", countField(m.Count()))

	if i == total-1 {
		return nil
	}
	return sleepContext(ctx, b.opt.Cooldown)
}
