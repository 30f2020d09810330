package ddbload

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// PartitionPlaceholder is replaced with the partition number by
// QueryAllPartitions.
const PartitionPlaceholder = "%part%"

// PageOption controls how QueryAll and ScanAll walk through pages.
type PageOption struct {
	// MaxLimit stops the walk once that many items are gathered. The
	// LastEvaluatedKey of the result allows resuming. Zero reads everything.
	MaxLimit int
	// Callback receives every page before filtering.
	Callback func(items []Item) error
	// Filter narrows a page down. Only kept items count towards MaxLimit.
	Filter func(items []Item) []Item
	// Discard drops items after Callback and Filter, for walks that only
	// stream pages.
	Discard bool
	Logger  *zap.Logger
}

type PageResult struct {
	Items []Item
	// Count is the number of items kept, also when Discard is set.
	Count            int
	Pages            int
	LastEvaluatedKey Item
}

type page struct {
	items   []Item
	lastKey Item
}

type fetchPage func(ctx context.Context, startKey Item, limit *int32) (page, error)

func paginate(ctx context.Context, op string, startKey Item, limit *int32, opt *PageOption, fetch fetchPage) (*PageResult, error) {
	var o PageOption
	if opt != nil {
		o = *opt
	}
	if o.MaxLimit < 0 {
		return nil, errors.Wrapf(ErrInvalidOption, "max limit must not be negative, got %d", o.MaxLimit)
	}
	log := orDefaultLogger(o.Logger)

	res := &PageResult{}
	for {
		l := limit
		remaining := o.MaxLimit - res.Count
		if o.MaxLimit > 0 && l == nil {
			l = aws.Int32(int32(remaining))
		}

		p, err := fetch(ctx, startKey, l)
		if err != nil {
			incBatchRequest(op, errorResult(err))
			return res, errors.Wrapf(err, "%s page %d", op, res.Pages+1)
		}
		incBatchRequest(op, resultOK)
		res.Pages++

		if o.Callback != nil {
			if err := o.Callback(p.items); err != nil {
				return res, err
			}
		}
		items := p.items
		if o.Filter != nil {
			items = o.Filter(items)
		}
		res.Count += len(items)
		if !o.Discard {
			res.Items = append(res.Items, items...)
		}

		log.Debug("page read",
			operationField(op),
			zap.Int("page", res.Pages),
			countField(len(items)))

		if o.MaxLimit > 0 && len(items) >= remaining {
			res.LastEvaluatedKey = p.lastKey
			return res, nil
		}
		if len(p.lastKey) == 0 {
			return res, nil
		}
		startKey = p.lastKey
	}
}

// QueryAll runs input page by page until the result set is exhausted or
// opt.MaxLimit is reached. The walk starts at input.ExclusiveStartKey, so a
// LastEvaluatedKey from an earlier call resumes it. input is not modified.
func QueryAll(ctx context.Context, client QueryAPI, input *dynamodb.QueryInput, opt *PageOption) (*PageResult, error) {
	return paginate(ctx, opQuery, input.ExclusiveStartKey, input.Limit, opt, func(ctx context.Context, startKey Item, limit *int32) (page, error) {
		in := *input
		in.ExclusiveStartKey = startKey
		in.Limit = limit
		out, err := client.Query(ctx, &in)
		if err != nil {
			return page{}, err
		}
		return page{items: out.Items, lastKey: out.LastEvaluatedKey}, nil
	})
}

// ScanAll is QueryAll for scans.
func ScanAll(ctx context.Context, client ScanAPI, input *dynamodb.ScanInput, opt *PageOption) (*PageResult, error) {
	return paginate(ctx, opScan, input.ExclusiveStartKey, input.Limit, opt, func(ctx context.Context, startKey Item, limit *int32) (page, error) {
		in := *input
		in.ExclusiveStartKey = startKey
		in.Limit = limit
		out, err := client.Scan(ctx, &in)
		if err != nil {
			return page{}, err
		}
		return page{items: out.Items, lastKey: out.LastEvaluatedKey}, nil
	})
}

// partitionAttribute finds the expression attribute value that carries
// PartitionPlaceholder and is used by the key condition.
func partitionAttribute(input *dynamodb.QueryInput) (string, string, error) {
	names := make([]string, 0, len(input.ExpressionAttributeValues))
	for name := range input.ExpressionAttributeValues {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		s, ok := input.ExpressionAttributeValues[name].(*types.AttributeValueMemberS)
		if !ok || !strings.Contains(s.Value, PartitionPlaceholder) {
			continue
		}
		if strings.Contains(aws.ToString(input.KeyConditionExpression), name) {
			return name, s.Value, nil
		}
	}
	return "", "", errors.Wrapf(ErrMalformedWorkload,
		"one expression attribute value used in the key condition must contain %s", PartitionPlaceholder)
}

// QueryAllPartitions runs input once per partition 0..numberOfPartitions,
// both ends included, with PartitionPlaceholder replaced by the partition
// number. Partitions are queried concurrently and the first error cancels
// the others. Items are concatenated in partition order. opt.Callback may be
// called from several goroutines at once.
func QueryAllPartitions(ctx context.Context, client QueryAPI, input *dynamodb.QueryInput, numberOfPartitions int, opt *PageOption) ([]Item, error) {
	if numberOfPartitions < 0 {
		return nil, errors.Wrapf(ErrInvalidOption, "number of partitions must not be negative, got %d", numberOfPartitions)
	}
	name, template, err := partitionAttribute(input)
	if err != nil {
		return nil, err
	}

	results := make([][]Item, numberOfPartitions+1)
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i <= numberOfPartitions; i++ {
		i := i
		g.Go(func() error {
			values := make(map[string]types.AttributeValue, len(input.ExpressionAttributeValues))
			for k, v := range input.ExpressionAttributeValues {
				values[k] = v
			}
			values[name] = &types.AttributeValueMemberS{
				Value: strings.Replace(template, PartitionPlaceholder, strconv.Itoa(i), 1),
			}
			in := *input
			in.ExpressionAttributeValues = values

			res, err := QueryAll(gctx, client, &in, opt)
			if err != nil {
				return errors.Wrapf(err, "partition %d", i)
			}
			results[i] = res.Items
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var items []Item
	for _, r := range results {
		items = append(items, r...)
	}
	return items, nil
}
