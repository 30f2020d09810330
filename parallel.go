package ddbload

import (
	"context"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const defaultRequestStartingDelay = time.Second

// ParallelOption configures BatchWriteParallel and BatchGetParallel.
type ParallelOption struct {
	// BatchSize is the number of requests per call. Defaults to
	// MaxBatchWriteSize for writes and MaxBatchReadSize for reads.
	BatchSize int
	// RequestBackOff is applied to every call. The starting delay of the
	// i-th call is StartingDelay*(i+1) so retries of a burst spread out.
	RequestBackOff *RequestBackOff
	// MaxConcurrency bounds the calls in flight. Zero means no bound.
	MaxConcurrency int
	// AllOrNothing cancels the remaining calls on the first error and
	// returns it. By default every call settles first and a throttled
	// call hands its whole batch back as unprocessed.
	AllOrNothing bool
	Logger       *zap.Logger
	// WriteCallback and ReadCallback receive every settled outcome. Calls
	// are serialized.
	WriteCallback func(WriteOutcome)
	ReadCallback  func(ReadOutcome)
}

func (o *ParallelOption) settle(max int) (ParallelOption, error) {
	var s ParallelOption
	if o != nil {
		s = *o
	}
	if s.BatchSize == 0 {
		s.BatchSize = max
	}
	if s.BatchSize < 0 || s.BatchSize > max {
		return s, errors.Wrapf(ErrInvalidOption, "batch size must be in 1..%d, got %d", max, s.BatchSize)
	}
	if s.MaxConcurrency < 0 {
		return s, errors.Wrapf(ErrInvalidOption, "max concurrency must not be negative, got %d", s.MaxConcurrency)
	}

	var rb RequestBackOff
	if s.RequestBackOff != nil {
		rb = *s.RequestBackOff
	}
	rb = rb.withDefaults(defaultRequestStartingDelay)
	if err := rb.validate(); err != nil {
		return s, err
	}
	s.RequestBackOff = &rb
	s.Logger = orDefaultLogger(s.Logger)

	return s, nil
}

// WriteOutcome is the settled result of one BatchWriteItem call.
type WriteOutcome struct {
	Index    int
	Requests BatchWriteMap
	// Unprocessed holds the requests the call did not apply.
	Unprocessed      BatchWriteMap
	ConsumedCapacity []types.ConsumedCapacity
	Err              error
}

// Processed returns the number of requests the call applied.
func (o WriteOutcome) Processed() int {
	if o.Err != nil {
		return 0
	}
	return o.Requests.Count() - o.Unprocessed.Count()
}

func (o WriteOutcome) failure() error { return o.Err }

// ReadOutcome is the settled result of one BatchGetItem call.
type ReadOutcome struct {
	Index            int
	Requests         BatchReadMap
	Items            []Item
	Unprocessed      BatchReadMap
	ConsumedCapacity []types.ConsumedCapacity
	Err              error
}

// Processed returns the number of keys the call resolved.
func (o ReadOutcome) Processed() int {
	if o.Err != nil {
		return 0
	}
	return o.Requests.Count() - o.Unprocessed.Count()
}

func (o ReadOutcome) failure() error { return o.Err }

type outcome interface {
	WriteOutcome | ReadOutcome
	failure() error
}

// BatchWriteParallel splits requests into calls of opt.BatchSize and issues
// them concurrently. Outcomes are returned in submission order.
func BatchWriteParallel(ctx context.Context, client BatchWriteAPI, requests BatchWriteMap, opt *ParallelOption) ([]WriteOutcome, error) {
	s, err := opt.settle(MaxBatchWriteSize)
	if err != nil {
		return nil, err
	}
	batches := BatchWriteRequests(requests, float64(s.BatchSize))

	return runParallel(ctx, len(batches), s, s.WriteCallback, func(ctx context.Context, i int) WriteOutcome {
		return writeBatch(ctx, client, i, batches[i], s)
	})
}

// BatchGetParallel is BatchWriteParallel for reads.
func BatchGetParallel(ctx context.Context, client BatchGetAPI, requests BatchReadMap, opt *ParallelOption) ([]ReadOutcome, error) {
	s, err := opt.settle(MaxBatchReadSize)
	if err != nil {
		return nil, err
	}
	batches := BatchReadRequests(requests, float64(s.BatchSize))

	return runParallel(ctx, len(batches), s, s.ReadCallback, func(ctx context.Context, i int) ReadOutcome {
		return getBatch(ctx, client, i, batches[i], s)
	})
}

func runParallel[O outcome](
	ctx context.Context,
	n int,
	s ParallelOption,
	callback func(O),
	call func(ctx context.Context, i int) O,
) ([]O, error) {
	if n == 0 {
		return nil, nil
	}

	var (
		outcomes = make([]O, n)
		mu       sync.Mutex
		errs     = make([]error, n)
	)
	settled := func(i int, o O) {
		outcomes[i] = o
		if callback != nil {
			mu.Lock()
			callback(o)
			mu.Unlock()
		}
	}

	if s.AllOrNothing {
		g, gctx := errgroup.WithContext(ctx)
		if s.MaxConcurrency > 0 {
			g.SetLimit(s.MaxConcurrency)
		}
		for i := 0; i < n; i++ {
			i := i
			g.Go(func() error {
				o := call(gctx, i)
				settled(i, o)
				return o.failure()
			})
		}
		return outcomes, g.Wait()
	}

	var g errgroup.Group
	if s.MaxConcurrency > 0 {
		g.SetLimit(s.MaxConcurrency)
	}
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			o := call(ctx, i)
			settled(i, o)
			if err := o.failure(); err != nil {
				errs[i] = errors.Wrapf(err, "batch %d", i)
			}
			return nil
		})
	}
	_ = g.Wait()

	return outcomes, multierr.Combine(errs...)
}

func callBackOff(s ParallelOption, i int) RequestBackOff {
	p := *s.RequestBackOff
	p.StartingDelay = p.StartingDelay * time.Duration(i+1)
	return p
}

func writeBatch(ctx context.Context, client BatchWriteAPI, i int, batch BatchWriteMap, s ParallelOption) WriteOutcome {
	out := WriteOutcome{Index: i, Requests: batch}

	err := backOffExecution(ctx, "BatchWriteParallel", callBackOff(s, i), s.Logger, nil, func(attempt int) error {
		res, err := client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems:           batch,
			ReturnConsumedCapacity: types.ReturnConsumedCapacityIndexes,
		})
		if err != nil {
			incBatchRequest(opWrite, errorResult(err))
			return err
		}
		out.Unprocessed = nonEmptyWrites(res.UnprocessedItems)
		out.ConsumedCapacity = append(out.ConsumedCapacity, res.ConsumedCapacity...)
		recordCapacity(opWrite, res.ConsumedCapacity)
		if len(out.Unprocessed) > 0 {
			incBatchRequest(opWrite, resultUnprocessed)
		} else {
			incBatchRequest(opWrite, resultOK)
		}
		return nil
	})

	if err != nil && !s.AllOrNothing && IsThrottlingError(err) {
		s.Logger.Warn("throttled batch handed back as unprocessed",
			operationField("BatchWriteParallel"),
			batchField(i),
			countField(batch.Count()),
			errorCodeField(err))
		out.Unprocessed = batch
		err = nil
	}
	out.Err = err

	return out
}

func getBatch(ctx context.Context, client BatchGetAPI, i int, batch BatchReadMap, s ParallelOption) ReadOutcome {
	out := ReadOutcome{Index: i, Requests: batch}

	err := backOffExecution(ctx, "BatchGetParallel", callBackOff(s, i), s.Logger, nil, func(attempt int) error {
		res, err := client.BatchGetItem(ctx, &dynamodb.BatchGetItemInput{
			RequestItems:           batch,
			ReturnConsumedCapacity: types.ReturnConsumedCapacityIndexes,
		})
		if err != nil {
			incBatchRequest(opRead, errorResult(err))
			return err
		}
		for _, table := range sortedTables(res.Responses) {
			out.Items = append(out.Items, res.Responses[table]...)
		}
		out.Unprocessed = nonEmptyReads(res.UnprocessedKeys)
		out.ConsumedCapacity = append(out.ConsumedCapacity, res.ConsumedCapacity...)
		recordCapacity(opRead, res.ConsumedCapacity)
		if len(out.Unprocessed) > 0 {
			incBatchRequest(opRead, resultUnprocessed)
		} else {
			incBatchRequest(opRead, resultOK)
		}
		return nil
	})

	if err != nil && !s.AllOrNothing && IsThrottlingError(err) {
		s.Logger.Warn("throttled batch handed back as unprocessed",
			operationField("BatchGetParallel"),
			batchField(i),
			countField(batch.Count()),
			errorCodeField(err))
		out.Unprocessed = batch
		err = nil
	}
	out.Err = err

	return out
}

func errorResult(err error) string {
	if IsThrottlingError(err) {
		return resultThrottled
	}
	return resultError
}

func recordCapacity(op string, cc []types.ConsumedCapacity) {
	for _, c := range cc {
		addConsumedCapacity(op, aws.ToString(c.TableName), aws.ToFloat64(c.CapacityUnits))
	}
}

func nonEmptyWrites(m map[string][]types.WriteRequest) BatchWriteMap {
	out := BatchWriteMap{}
	for table, reqs := range m {
		if len(reqs) > 0 {
			out[table] = reqs
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func nonEmptyReads(m map[string]types.KeysAndAttributes) BatchReadMap {
	out := BatchReadMap{}
	for table, ka := range m {
		if len(ka.Keys) > 0 {
			out[table] = ka
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
