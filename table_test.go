package ddbload

import (
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func describeOutput(mode types.BillingMode, gsis int) *dynamodb.DescribeTableOutput {
	desc := &types.TableDescription{
		TableName: aws.String("Orders"),
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String("pk"), KeyType: types.KeyTypeHash},
			{AttributeName: aws.String("sk"), KeyType: types.KeyTypeRange},
		},
	}
	if mode != "" {
		desc.BillingModeSummary = &types.BillingModeSummary{BillingMode: mode}
	}
	if mode != types.BillingModePayPerRequest {
		desc.ProvisionedThroughput = &types.ProvisionedThroughputDescription{
			ReadCapacityUnits:  aws.Int64(50),
			WriteCapacityUnits: aws.Int64(20),
		}
	}
	for i := 0; i < gsis; i++ {
		desc.GlobalSecondaryIndexes = append(desc.GlobalSecondaryIndexes, types.GlobalSecondaryIndexDescription{})
	}
	return &dynamodb.DescribeTableOutput{Table: desc}
}

func TestTable_Init(t *testing.T) {
	var tests = []struct {
		name    string
		output  *dynamodb.DescribeTableOutput
		mode    DDBMode
		indices int
	}{
		{"on-demand", describeOutput(types.BillingModePayPerRequest, 0), OnDemand, 1},
		{"provisioned", describeOutput(types.BillingModeProvisioned, 2), Provisioned, 3},
		{"no billing summary", describeOutput("", 1), Provisioned, 2},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			table := &Table{}
			require.NoError(t, table.Init(test.output))

			assert.Equal(t, "Orders", table.Name)
			assert.Equal(t, []string{"pk", "sk"}, table.Keys)
			assert.Equal(t, test.mode, table.Mode)
			assert.Equal(t, test.indices, table.Indices)
		})
	}
}

func TestTable_InitMalformed(t *testing.T) {
	table := &Table{}

	assert.ErrorIs(t, table.Init(nil), ErrMalformedWorkload)
	assert.ErrorIs(t, table.Init(&dynamodb.DescribeTableOutput{}), ErrMalformedWorkload)
}

func TestTable_KeyOf(t *testing.T) {
	table := &Table{}
	require.NoError(t, table.Init(describeOutput(types.BillingModePayPerRequest, 0)))

	item := Item{
		"pk":   &types.AttributeValueMemberS{Value: "order#1"},
		"sk":   &types.AttributeValueMemberS{Value: "line#1"},
		"data": &types.AttributeValueMemberS{Value: "x"},
	}

	key, err := table.KeyOf(item)
	require.NoError(t, err)
	assert.Equal(t, Item{"pk": item["pk"], "sk": item["sk"]}, key)

	_, err = table.KeyOf(Item{"pk": item["pk"]})
	assert.ErrorIs(t, err, ErrMalformedWorkload)
	assert.ErrorContains(t, err, `"sk"`)
}

func TestProvisionedCapacity(t *testing.T) {
	rcu, wcu := ProvisionedCapacity(describeOutput(types.BillingModeProvisioned, 0))
	assert.Equal(t, int64(50), rcu)
	assert.Equal(t, int64(20), wcu)

	rcu, wcu = ProvisionedCapacity(describeOutput(types.BillingModePayPerRequest, 0))
	assert.Zero(t, rcu)
	assert.Zero(t, wcu)

	rcu, wcu = ProvisionedCapacity(nil)
	assert.Zero(t, rcu)
	assert.Zero(t, wcu)
}
