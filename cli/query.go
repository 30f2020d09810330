package cli

import (
	"context"
	"encoding/json"
	"io"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/pkg/errors"
	"github.com/shuntaka9576/ddbload"
)

type QueryOption struct {
	TableName    string
	IndexName    string
	KeyCondition string
	// Values is a JSON object of expression attribute values, e.g.
	// {":pk":"user#%part%"}.
	Values string
	// Names is a JSON object of expression attribute names.
	Names string
	// Partitions, when positive, fans the query out over partitions
	// 0..Partitions.
	Partitions int
	Limit      int
	Client     Client
	Stdout     io.Writer
}

func (c *QueryOption) validate() error {
	if c.TableName == "" || c.KeyCondition == "" || c.Values == "" || c.Client == nil {
		return ErrorOptInputError
	}
	if c.Partitions < 0 || c.Limit < 0 {
		return errors.Wrap(ErrorOptInputError, "partitions and limit must not be negative")
	}
	if c.Stdout == nil {
		c.Stdout = os.Stdout
	}

	return nil
}

func (c *QueryOption) input() (*dynamodb.QueryInput, error) {
	var values map[string]any
	if err := json.Unmarshal([]byte(c.Values), &values); err != nil {
		return nil, errors.Wrap(ErrorOptInputError, "values: "+err.Error())
	}
	av, err := attributevalue.MarshalMap(values)
	if err != nil {
		return nil, errors.Wrap(ErrorOptInputError, "values: "+err.Error())
	}

	input := &dynamodb.QueryInput{
		TableName:                 aws.String(c.TableName),
		KeyConditionExpression:    aws.String(c.KeyCondition),
		ExpressionAttributeValues: av,
	}
	if c.IndexName != "" {
		input.IndexName = aws.String(c.IndexName)
	}
	if c.Names != "" {
		var names map[string]string
		if err := json.Unmarshal([]byte(c.Names), &names); err != nil {
			return nil, errors.Wrap(ErrorOptInputError, "names: "+err.Error())
		}
		input.ExpressionAttributeNames = names
	}

	return input, nil
}

func Query(ctx context.Context, opt *QueryOption) error {
	if err := opt.validate(); err != nil {
		return err
	}
	input, err := opt.input()
	if err != nil {
		return err
	}

	page := &ddbload.PageOption{MaxLimit: opt.Limit}

	var items []ddbload.Item
	if opt.Partitions > 0 {
		items, err = ddbload.QueryAllPartitions(ctx, opt.Client, input, opt.Partitions, page)
	} else {
		var res *ddbload.PageResult
		res, err = ddbload.QueryAll(ctx, opt.Client, input, page)
		if res != nil {
			items = res.Items
		}
	}
	if err != nil {
		return err
	}

	return writeItems(opt.Stdout, items)
}
