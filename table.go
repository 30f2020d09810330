package ddbload

import (
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/pkg/errors"
)

type DDBMode = string

var (
	OnDemand    = DDBMode("OnDemand")
	Provisioned = DDBMode("Provisioned")
)

type Table struct {
	Name string
	Keys []string
	Mode DDBMode
	// Indices is the number of places a write lands: the table plus its
	// global secondary indexes. It is the default NumberIndices.
	Indices int
}

func (t *Table) Init(output *dynamodb.DescribeTableOutput) error {
	if output == nil || output.Table == nil {
		return errors.Wrap(ErrMalformedWorkload, "describe table output has no table")
	}
	t.Name = aws.ToString(output.Table.TableName)

	t.Keys = t.Keys[:0]
	for _, keyav := range output.Table.KeySchema {
		t.Keys = append(t.Keys, aws.ToString(keyav.AttributeName))
	}

	t.Mode = func() DDBMode {
		if output.Table.BillingModeSummary != nil &&
			output.Table.BillingModeSummary.BillingMode == types.BillingModePayPerRequest {
			return OnDemand
		}
		return Provisioned
	}()

	t.Indices = 1 + len(output.Table.GlobalSecondaryIndexes)

	return nil
}

// KeyOf projects item onto the key attributes of the table.
func (t *Table) KeyOf(item Item) (Item, error) {
	key := make(Item, len(t.Keys))
	for _, k := range t.Keys {
		v, ok := item[k]
		if !ok {
			return nil, errors.Wrapf(ErrMalformedWorkload, "item has no key attribute %q for table %s", k, t.Name)
		}
		key[k] = v
	}
	return key, nil
}

// ProvisionedCapacity returns the read and write capacity units of a
// provisioned table, or zeros for on-demand tables.
func ProvisionedCapacity(output *dynamodb.DescribeTableOutput) (rcu, wcu int64) {
	if output == nil || output.Table == nil || output.Table.ProvisionedThroughput == nil {
		return 0, 0
	}
	pt := output.Table.ProvisionedThroughput
	return aws.ToInt64(pt.ReadCapacityUnits), aws.ToInt64(pt.WriteCapacityUnits)
}
