package ddbload

import (
	"encoding/json"
	"strings"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/pkg/errors"
)

const (
	writeUnitSize = 1024 // 1KB
	readUnitSize  = 4096 // 4KB

	// ItemSizeLimit is the largest item DynamoDB accepts.
	ItemSizeLimit = 400 * 1024
)

type ItemResult struct {
	Size      int
	ReadUnit  int
	WriteUnit int
}

func unitsFor(size int, unitSize int) int {
	units := size / unitSize
	if size%unitSize > 0 {
		units++
	}
	if units == 0 {
		units = 1
	}
	return units
}

// GetItemSize returns the stored size of item and the read and write units
// one strongly consistent read or one write of it consumes.
func GetItemSize(item Item) (*ItemResult, error) {
	size := 0
	for name, v := range item {
		s, err := attributeSize(v)
		if err != nil {
			return nil, errors.Wrapf(err, "attribute %q", name)
		}
		size += len(name) + s
	}

	return &ItemResult{
		Size:      size,
		ReadUnit:  unitsFor(size, readUnitSize),
		WriteUnit: unitsFor(size, writeUnitSize),
	}, nil
}

// ItemFromJSON parses one JSON object into an item.
func ItemFromJSON(b []byte) (Item, error) {
	var v map[string]any
	if err := json.Unmarshal(b, &v); err != nil {
		return nil, errors.Wrap(err, "parse item")
	}
	item, err := attributevalue.MarshalMap(v)
	if err != nil {
		return nil, errors.Wrap(err, "marshal item")
	}
	return item, nil
}

func numberSize(n string) int {
	n = strings.TrimLeft(n, "+-")
	if i := strings.IndexAny(n, "eE"); i >= 0 {
		n = n[:i]
	}
	n = strings.Replace(n, ".", "", 1)
	n = strings.Trim(n, "0")
	if n == "" {
		return 1
	}
	return (len(n)+1)/2 + 1
}

func attributeSize(av types.AttributeValue) (int, error) {
	switch v := av.(type) {
	case *types.AttributeValueMemberS:
		return len(v.Value), nil
	case *types.AttributeValueMemberN:
		return numberSize(v.Value), nil
	case *types.AttributeValueMemberB:
		return len(v.Value), nil
	case *types.AttributeValueMemberBOOL, *types.AttributeValueMemberNULL:
		return 1, nil
	case *types.AttributeValueMemberSS:
		sum := 0
		for _, s := range v.Value {
			sum += len(s)
		}
		return sum, nil
	case *types.AttributeValueMemberNS:
		sum := 0
		for _, n := range v.Value {
			sum += numberSize(n)
		}
		return sum, nil
	case *types.AttributeValueMemberBS:
		sum := 0
		for _, b := range v.Value {
			sum += len(b)
		}
		return sum, nil
	case *types.AttributeValueMemberL:
		sum := 3
		for _, e := range v.Value {
			s, err := attributeSize(e)
			if err != nil {
				return 0, err
			}
			sum += s + 1
		}
		return sum, nil
	case *types.AttributeValueMemberM:
		sum := 3
		for k, e := range v.Value {
			s, err := attributeSize(e)
			if err != nil {
				return 0, err
			}
			sum += len(k) + s + 1
		}
		return sum, nil
	default:
		return 0, errors.Errorf("unexpected attribute value type %T", av)
	}
}
