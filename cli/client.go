package cli

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/pkg/errors"
	"github.com/shuntaka9576/ddbload"
)

// Client is the part of *dynamodb.Client the commands use.
type Client interface {
	ddbload.BatchAPI
	ddbload.QueryAPI
	ddbload.ScanAPI
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

func describeTable(ctx context.Context, client Client, tableName string) (*ddbload.Table, *dynamodb.DescribeTableOutput, error) {
	info, err := client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: &tableName,
	})
	if err != nil {
		return nil, nil, errors.Wrap(ErrorDescribeTable, err.Error())
	}

	table := &ddbload.Table{}
	if err := table.Init(info); err != nil {
		return nil, nil, errors.Wrap(ErrorDescribeTable, err.Error())
	}

	return table, info, nil
}
