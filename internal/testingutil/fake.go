package testingutil

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type item = map[string]types.AttributeValue

type fakeTable struct {
	name    string
	keys    []string
	gsis    int
	mode    types.BillingMode
	rcu     int64
	wcu     int64
	items   map[string]item
	ordered []string
}

func (t *fakeTable) keyString(it item) (string, bool) {
	parts := make([]string, 0, len(t.keys))
	for _, k := range t.keys {
		v, ok := it[k]
		if !ok {
			return "", false
		}
		parts = append(parts, scalarString(v))
	}
	return strings.Join(parts, "\x00"), true
}

func (t *fakeTable) put(it item) {
	k, _ := t.keyString(it)
	if _, ok := t.items[k]; !ok {
		t.ordered = append(t.ordered, k)
		sort.Strings(t.ordered)
	}
	t.items[k] = it
}

func (t *fakeTable) delete(key item) {
	k, _ := t.keyString(key)
	if _, ok := t.items[k]; !ok {
		return
	}
	delete(t.items, k)
	for i, o := range t.ordered {
		if o == k {
			t.ordered = append(t.ordered[:i], t.ordered[i+1:]...)
			break
		}
	}
}

func scalarString(v types.AttributeValue) string {
	switch v := v.(type) {
	case *types.AttributeValueMemberS:
		return v.Value
	case *types.AttributeValueMemberN:
		return v.Value
	case *types.AttributeValueMemberB:
		return string(v.Value)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// FakeDynamoDB is an in-memory stand-in for the DynamoDB operations the
// bulk layer calls. The hooks script partial failures per call; call
// numbers start at 1 and count every call of that operation.
type FakeDynamoDB struct {
	mu     sync.Mutex
	tables map[string]*fakeTable

	// WriteUnprocessed returns how many of the n requests of a table are
	// handed back unprocessed by the call. The tail of the batch is used.
	WriteUnprocessed func(call, n int) int
	// ReadUnprocessed is WriteUnprocessed for keys.
	ReadUnprocessed func(call, n int) int
	// WriteErr, ReadErr and QueryErr fail a call before it does anything.
	WriteErr func(call int) error
	ReadErr  func(call int) error
	QueryErr func(call int, input *dynamodb.QueryInput) error
	// PageSize bounds a query or scan page when the input sets no Limit.
	PageSize int

	writeCalls int
	readCalls  int
	queryCalls int
	scanCalls  int
	queries    []*dynamodb.QueryInput
	writeSizes []int
}

func NewFakeDynamoDB() *FakeDynamoDB {
	return &FakeDynamoDB{tables: map[string]*fakeTable{}}
}

// CreateTable adds a table. keys are the hash key, then the range key.
func (f *FakeDynamoDB) CreateTable(name string, gsis int, keys ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.tables[name] = &fakeTable{
		name:  name,
		keys:  keys,
		gsis:  gsis,
		mode:  types.BillingModePayPerRequest,
		items: map[string]item{},
	}
}

// Provision switches a table to provisioned capacity.
func (f *FakeDynamoDB) Provision(name string, rcu, wcu int64) {
	f.mu.Lock()
	defer f.mu.Unlock()

	t := f.tables[name]
	t.mode = types.BillingModeProvisioned
	t.rcu, t.wcu = rcu, wcu
}

// Put stores items directly.
func (f *FakeDynamoDB) Put(table string, items ...item) {
	f.mu.Lock()
	defer f.mu.Unlock()

	t := f.tables[table]
	for _, it := range items {
		t.put(it)
	}
}

// Items returns the items of a table in key order.
func (f *FakeDynamoDB) Items(table string) []item {
	f.mu.Lock()
	defer f.mu.Unlock()

	t := f.tables[table]
	out := make([]item, 0, len(t.ordered))
	for _, k := range t.ordered {
		out = append(out, t.items[k])
	}
	return out
}

func (f *FakeDynamoDB) WriteCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writeCalls
}

func (f *FakeDynamoDB) ReadCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.readCalls
}

func (f *FakeDynamoDB) QueryCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queryCalls
}

func (f *FakeDynamoDB) ScanCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.scanCalls
}

// WriteSizes returns the number of requests of every write call, in call
// order.
func (f *FakeDynamoDB) WriteSizes() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.writeSizes...)
}

// Queries returns the inputs of every query call, in call order.
func (f *FakeDynamoDB) Queries() []*dynamodb.QueryInput {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*dynamodb.QueryInput(nil), f.queries...)
}

func (f *FakeDynamoDB) table(name string) (*fakeTable, error) {
	t, ok := f.tables[name]
	if !ok {
		return nil, &types.ResourceNotFoundException{Message: aws.String("Requested resource not found: " + name)}
	}
	return t, nil
}

func clamp(u, n int) int {
	if u < 0 {
		return 0
	}
	if u > n {
		return n
	}
	return u
}

func tableNames[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for n := range m {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (f *FakeDynamoDB) BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	f.writeCalls++
	call := f.writeCalls
	if f.WriteErr != nil {
		if err := f.WriteErr(call); err != nil {
			return nil, err
		}
	}

	out := &dynamodb.BatchWriteItemOutput{UnprocessedItems: map[string][]types.WriteRequest{}}
	size := 0
	for _, name := range tableNames(params.RequestItems) {
		t, err := f.table(name)
		if err != nil {
			return nil, err
		}
		reqs := params.RequestItems[name]
		size += len(reqs)

		u := 0
		if f.WriteUnprocessed != nil {
			u = clamp(f.WriteUnprocessed(call, len(reqs)), len(reqs))
		}
		applied := reqs[:len(reqs)-u]
		for _, r := range applied {
			switch {
			case r.PutRequest != nil:
				t.put(r.PutRequest.Item)
			case r.DeleteRequest != nil:
				t.delete(r.DeleteRequest.Key)
			}
		}
		if u > 0 {
			out.UnprocessedItems[name] = append([]types.WriteRequest(nil), reqs[len(reqs)-u:]...)
		}
		out.ConsumedCapacity = append(out.ConsumedCapacity, types.ConsumedCapacity{
			TableName:     aws.String(name),
			CapacityUnits: aws.Float64(float64(len(applied))),
		})
	}
	f.writeSizes = append(f.writeSizes, size)

	return out, nil
}

func (f *FakeDynamoDB) BatchGetItem(ctx context.Context, params *dynamodb.BatchGetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchGetItemOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	f.readCalls++
	call := f.readCalls
	if f.ReadErr != nil {
		if err := f.ReadErr(call); err != nil {
			return nil, err
		}
	}

	out := &dynamodb.BatchGetItemOutput{
		Responses:       map[string][]map[string]types.AttributeValue{},
		UnprocessedKeys: map[string]types.KeysAndAttributes{},
	}
	for _, name := range tableNames(params.RequestItems) {
		t, err := f.table(name)
		if err != nil {
			return nil, err
		}
		ka := params.RequestItems[name]

		u := 0
		if f.ReadUnprocessed != nil {
			u = clamp(f.ReadUnprocessed(call, len(ka.Keys)), len(ka.Keys))
		}
		for _, key := range ka.Keys[:len(ka.Keys)-u] {
			k, _ := t.keyString(key)
			if it, ok := t.items[k]; ok {
				out.Responses[name] = append(out.Responses[name], it)
			}
		}
		if u > 0 {
			left := ka
			left.Keys = append([]map[string]types.AttributeValue(nil), ka.Keys[len(ka.Keys)-u:]...)
			out.UnprocessedKeys[name] = left
		}
	}

	return out, nil
}

// keyCondition supports "name = :value", optionally followed by a range
// key condition which is ignored.
func keyCondition(input *dynamodb.QueryInput) (string, types.AttributeValue, error) {
	expr := aws.ToString(input.KeyConditionExpression)
	first := strings.TrimSpace(strings.SplitN(expr, " AND ", 2)[0])
	parts := strings.SplitN(first, "=", 2)
	if len(parts) != 2 {
		return "", nil, fmt.Errorf("unsupported key condition %q", expr)
	}
	name := strings.TrimSpace(parts[0])
	if strings.HasPrefix(name, "#") {
		name = input.ExpressionAttributeNames[name]
	}
	v, ok := input.ExpressionAttributeValues[strings.TrimSpace(parts[1])]
	if !ok {
		return "", nil, fmt.Errorf("missing value for key condition %q", expr)
	}
	return name, v, nil
}

func (f *FakeDynamoDB) page(t *fakeTable, match func(item) bool, start item, limit *int32) ([]item, item) {
	n := f.PageSize
	if limit != nil {
		n = int(*limit)
	}
	startKey := ""
	if len(start) > 0 {
		startKey, _ = t.keyString(start)
	}

	var (
		items []item
		last  item
	)
	for _, k := range t.ordered {
		if startKey != "" && k <= startKey {
			continue
		}
		it := t.items[k]
		if !match(it) {
			continue
		}
		if n > 0 && len(items) == n {
			return items, last
		}
		items = append(items, it)
		last = map[string]types.AttributeValue{}
		for _, key := range t.keys {
			last[key] = it[key]
		}
	}
	return items, nil
}

func (f *FakeDynamoDB) Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	f.queryCalls++
	f.queries = append(f.queries, params)
	if f.QueryErr != nil {
		if err := f.QueryErr(f.queryCalls, params); err != nil {
			return nil, err
		}
	}

	t, err := f.table(aws.ToString(params.TableName))
	if err != nil {
		return nil, err
	}
	name, want, err := keyCondition(params)
	if err != nil {
		return nil, err
	}

	items, last := f.page(t, func(it item) bool {
		v, ok := it[name]
		return ok && scalarString(v) == scalarString(want)
	}, params.ExclusiveStartKey, params.Limit)

	return &dynamodb.QueryOutput{
		Items:            items,
		Count:            int32(len(items)),
		LastEvaluatedKey: last,
	}, nil
}

func (f *FakeDynamoDB) Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	f.scanCalls++
	t, err := f.table(aws.ToString(params.TableName))
	if err != nil {
		return nil, err
	}

	items, last := f.page(t, func(item) bool { return true }, params.ExclusiveStartKey, params.Limit)

	return &dynamodb.ScanOutput{
		Items:            items,
		Count:            int32(len(items)),
		LastEvaluatedKey: last,
	}, nil
}

func (f *FakeDynamoDB) DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	t, err := f.table(aws.ToString(params.TableName))
	if err != nil {
		return nil, err
	}

	desc := &types.TableDescription{
		TableName:          aws.String(t.name),
		TableStatus:        types.TableStatusActive,
		BillingModeSummary: &types.BillingModeSummary{BillingMode: t.mode},
	}
	if t.mode == types.BillingModeProvisioned {
		desc.ProvisionedThroughput = &types.ProvisionedThroughputDescription{
			ReadCapacityUnits:  aws.Int64(t.rcu),
			WriteCapacityUnits: aws.Int64(t.wcu),
		}
	}
	for i, k := range t.keys {
		kt := types.KeyTypeHash
		if i > 0 {
			kt = types.KeyTypeRange
		}
		desc.KeySchema = append(desc.KeySchema, types.KeySchemaElement{
			AttributeName: aws.String(k),
			KeyType:       kt,
		})
	}
	for i := 0; i < t.gsis; i++ {
		desc.GlobalSecondaryIndexes = append(desc.GlobalSecondaryIndexes, types.GlobalSecondaryIndexDescription{
			IndexName: aws.String(fmt.Sprintf("gsi%d", i+1)),
		})
	}

	return &dynamodb.DescribeTableOutput{Table: desc}, nil
}
