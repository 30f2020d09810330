package ddbload

import (
	"encoding/json"
	"sort"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/pkg/errors"
)

// Item is a DynamoDB item or key in attribute value form.
type Item = map[string]types.AttributeValue

// BatchWriteMap maps a table name to the write requests for that table.
type BatchWriteMap map[string][]types.WriteRequest

// Count returns the number of write requests across all tables.
func (m BatchWriteMap) Count() int {
	n := 0
	for _, reqs := range m {
		n += len(reqs)
	}
	return n
}

func (m BatchWriteMap) tables() []string {
	return sortedTables(m)
}

// merge appends the requests of other to m, table by table.
func (m BatchWriteMap) merge(other BatchWriteMap) {
	for _, table := range other.tables() {
		if len(other[table]) == 0 {
			continue
		}
		m[table] = append(m[table], other[table]...)
	}
}

// BatchReadMap maps a table name to the keys to fetch from it. Per-table
// read options (projection, consistent read) travel with the keys.
type BatchReadMap map[string]types.KeysAndAttributes

// Count returns the number of keys across all tables.
func (m BatchReadMap) Count() int {
	n := 0
	for _, ka := range m {
		n += len(ka.Keys)
	}
	return n
}

func (m BatchReadMap) tables() []string {
	return sortedTables(m)
}

// merge appends the keys of other to m. A table already in m keeps its
// read options.
func (m BatchReadMap) merge(other BatchReadMap) {
	for _, table := range other.tables() {
		ka := other[table]
		if len(ka.Keys) == 0 {
			continue
		}
		cur, ok := m[table]
		if !ok {
			cur = withKeys(ka, nil)
		}
		cur.Keys = append(cur.Keys, ka.Keys...)
		m[table] = cur
	}
}

func sortedTables[V any](m map[string]V) []string {
	tables := make([]string, 0, len(m))
	for t := range m {
		tables = append(tables, t)
	}
	sort.Strings(tables)

	return tables
}

func PutRequest(item Item) types.WriteRequest {
	return types.WriteRequest{
		PutRequest: &types.PutRequest{Item: item},
	}
}

func DeleteRequest(key Item) types.WriteRequest {
	return types.WriteRequest{
		DeleteRequest: &types.DeleteRequest{Key: key},
	}
}

// NewPutRequest marshals v into a put request.
func NewPutRequest(v any) (types.WriteRequest, error) {
	item, err := attributevalue.MarshalMap(v)
	if err != nil {
		return types.WriteRequest{}, errors.Wrap(err, "marshal put item")
	}
	return PutRequest(item), nil
}

// NewDeleteRequest marshals v into a delete request. v must hold only the
// key attributes.
func NewDeleteRequest(v any) (types.WriteRequest, error) {
	key, err := attributevalue.MarshalMap(v)
	if err != nil {
		return types.WriteRequest{}, errors.Wrap(err, "marshal delete key")
	}
	return DeleteRequest(key), nil
}

// UnmarshalItems converts items returned by a read into values of type T.
func UnmarshalItems[T any](items []Item) ([]T, error) {
	out := make([]T, 0, len(items))
	if err := attributevalue.UnmarshalListOfMaps(items, &out); err != nil {
		return nil, errors.Wrap(err, "unmarshal items")
	}
	return out, nil
}

func nativeItem(item Item) (map[string]any, error) {
	native := map[string]any{}
	if err := attributevalue.UnmarshalMap(item, &native); err != nil {
		return nil, err
	}
	return native, nil
}

func nativeWriteRequest(w types.WriteRequest) (map[string]any, error) {
	switch {
	case w.PutRequest != nil:
		item, err := nativeItem(w.PutRequest.Item)
		if err != nil {
			return nil, err
		}
		return map[string]any{"PutRequest": map[string]any{"Item": item}}, nil
	case w.DeleteRequest != nil:
		key, err := nativeItem(w.DeleteRequest.Key)
		if err != nil {
			return nil, err
		}
		return map[string]any{"DeleteRequest": map[string]any{"Key": key}}, nil
	default:
		return nil, errors.Wrap(ErrMalformedWorkload, "write request has neither put nor delete")
	}
}

// ItemJSON renders an item as a JSON object of plain values.
func ItemJSON(item Item) ([]byte, error) {
	native, err := nativeItem(item)
	if err != nil {
		return nil, err
	}
	return json.Marshal(native)
}

// WriteRequestJSON renders the item of a put request, or the key of a delete
// request, as a JSON object.
func WriteRequestJSON(w types.WriteRequest) ([]byte, error) {
	switch {
	case w.PutRequest != nil:
		return ItemJSON(w.PutRequest.Item)
	case w.DeleteRequest != nil:
		return ItemJSON(w.DeleteRequest.Key)
	default:
		return nil, errors.Wrap(ErrMalformedWorkload, "write request has neither put nor delete")
	}
}
