package ddbload

import (
	"math"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const (
	// MaxBatchWriteSize is the hard limit of requests in one BatchWriteItem call.
	MaxBatchWriteSize = 25
	// MaxBatchReadSize is the hard limit of keys in one BatchGetItem call.
	MaxBatchReadSize = 100
)

// batchSize turns a computed, possibly fractional, budget into a chunk size.
// The result is always at least 1 so that every workload makes progress.
func batchSize(size float64) int {
	if math.IsNaN(size) || size < 1 {
		return 1
	}
	if size >= math.MaxInt32 {
		return math.MaxInt32
	}
	return int(math.Floor(size))
}

func chunk[T any](s []T, size int) [][]T {
	if len(s) == 0 {
		return nil
	}
	chunks := make([][]T, 0, (len(s)+size-1)/size)
	for i := 0; i < len(s); i += size {
		end := i + size
		if end > len(s) {
			end = len(s)
		}
		chunks = append(chunks, s[i:end:end])
	}
	return chunks
}

// BatchWriteRequests splits requests into maps holding one table each and at
// most size requests. Tables are visited in name order and the order of
// requests within a table is kept, so the same input always gives the same
// partition.
func BatchWriteRequests(requests BatchWriteMap, size float64) []BatchWriteMap {
	n := batchSize(size)

	var batches []BatchWriteMap
	for _, table := range requests.tables() {
		for _, c := range chunk(requests[table], n) {
			batches = append(batches, BatchWriteMap{table: c})
		}
	}
	return batches
}

// BatchReadRequests is BatchWriteRequests for keys. The projection and
// consistency settings of a table are copied onto each of its chunks.
func BatchReadRequests(requests BatchReadMap, size float64) []BatchReadMap {
	n := batchSize(size)

	var batches []BatchReadMap
	for _, table := range requests.tables() {
		ka := requests[table]
		for _, c := range chunk(ka.Keys, n) {
			batches = append(batches, BatchReadMap{table: withKeys(ka, c)})
		}
	}
	return batches
}

func withKeys(ka types.KeysAndAttributes, keys []map[string]types.AttributeValue) types.KeysAndAttributes {
	return types.KeysAndAttributes{
		Keys:                     keys,
		AttributesToGet:          ka.AttributesToGet,
		ConsistentRead:           ka.ConsistentRead,
		ExpressionAttributeNames: ka.ExpressionAttributeNames,
		ProjectionExpression:     ka.ProjectionExpression,
	}
}
