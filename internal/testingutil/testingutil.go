package testingutil

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"github.com/pkg/errors"
)

const (
	RecordNum = 1000
)

var (
	pkName = "pk"
)

type Record struct {
	Pk        string `json:"pk" dynamodbav:"pk"`
	Sk        string `json:"sk" dynamodbav:"sk"`
	Number    int    `json:"number" dynamodbav:"number"`
	CreatedAt int64  `json:"createdAt" dynamodbav:"createdAt"`
	UpdatedAt int64  `json:"updatedAt" dynamodbav:"updatedAt"`
}

// Records returns n records with distinct partition keys.
func Records(n int) []Record {
	now := time.Date(2022, 6, 1, 0, 0, 0, 0, time.UTC).Unix()
	records := make([]Record, 0, n)
	for i := 0; i < n; i++ {
		records = append(records, Record{
			Pk:        fmt.Sprintf("pk-%05d", i),
			Sk:        fmt.Sprintf("sk-%05d", i),
			Number:    i,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}
	return records
}

// PutRequests marshals records into put requests.
func PutRequests(records []Record) ([]types.WriteRequest, error) {
	reqs := make([]types.WriteRequest, 0, len(records))
	for _, r := range records {
		item, err := attributevalue.MarshalMap(r)
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, types.WriteRequest{PutRequest: &types.PutRequest{Item: item}})
	}
	return reqs, nil
}

// Keys returns the partition keys of records.
func Keys(records []Record) []map[string]types.AttributeValue {
	keys := make([]map[string]types.AttributeValue, 0, len(records))
	for _, r := range records {
		keys = append(keys, map[string]types.AttributeValue{
			pkName: &types.AttributeValueMemberS{Value: r.Pk},
		})
	}
	return keys
}

// Throttling returns the error DynamoDB sends when a table runs out of
// capacity.
func Throttling() error {
	return &smithy.GenericAPIError{
		Code:    "ProvisionedThroughputExceededException",
		Message: "The level of configured provisioned throughput for the table was exceeded.",
	}
}

// Validation returns an error that must never be retried.
func Validation() error {
	return &smithy.GenericAPIError{
		Code:    "ValidationException",
		Message: "One or more parameter values were invalid.",
	}
}

type TableOption struct {
	Mode types.BillingMode
}

// CreateTable creates a table keyed by pk on a real endpoint and waits until
// it is active.
func CreateTable(ctx context.Context, client *dynamodb.Client, tableName string, opt *TableOption) error {
	mode := opt.Mode
	if mode == "" {
		mode = types.BillingModePayPerRequest
	}
	input := &dynamodb.CreateTableInput{
		TableName: &tableName,
		KeySchema: []types.KeySchemaElement{
			{AttributeName: &pkName, KeyType: types.KeyTypeHash},
		},
		BillingMode: mode,
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: &pkName, AttributeType: types.ScalarAttributeTypeS},
		},
	}
	if mode == types.BillingModeProvisioned {
		input.ProvisionedThroughput = &types.ProvisionedThroughput{
			ReadCapacityUnits:  aws.Int64(5),
			WriteCapacityUnits: aws.Int64(5),
		}
	}

	if _, err := client.CreateTable(ctx, input); err != nil {
		return err
	}

	for {
		describe, err := client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: &tableName})
		if err != nil {
			return err
		}
		if describe.Table.TableStatus == types.TableStatusActive {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
	}
}

// DeleteTable deletes a table on a real endpoint and waits until it is gone.
func DeleteTable(ctx context.Context, client *dynamodb.Client, tableName string) error {
	_, err := client.DeleteTable(ctx, &dynamodb.DeleteTableInput{TableName: &tableName})
	if err != nil {
		return err
	}

	for {
		_, err := client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: &tableName})
		if err != nil {
			var rnfe *types.ResourceNotFoundException
			if errors.As(err, &rnfe) {
				return nil
			}
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
	}
}
