package integration_test

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/shuntaka9576/ddbload/cli"
	util "github.com/shuntaka9576/ddbload/internal/testingutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastProfile() *cli.Profile {
	p := &cli.Profile{}
	p.Write.CapacityUnitsPerSecond = 200
	p.Write.UnprocessedBackOff = &cli.BackOffProfile{NumOfAttempts: 5, Jitter: "full"}
	p.Read.CapacityUnitsPerSecond = 200
	return p
}

func TestCmd_WriteReadExport(t *testing.T) {
	client := localClient(t)
	createTable(t, client)

	ctx := context.Background()
	records := util.Records(util.RecordNum)
	path := writeRecords(t, records)

	var stdout bytes.Buffer
	err := cli.Write(ctx, &cli.WriteOption{
		TableName:  onDemandTable,
		FilePath:   path,
		Profile:    fastProfile(),
		Client:     client,
		Stdout:     &stdout,
		Stderr:     io.Discard,
		NoProgress: true,
	})
	require.NoError(t, err)
	assert.Contains(t, stdout.String(), "written 1000 records")

	out, err := client.Scan(ctx, &dynamodb.ScanInput{
		TableName: aws.String(onDemandTable),
		Select:    "COUNT",
	})
	require.NoError(t, err)
	assert.EqualValues(t, util.RecordNum, out.Count)

	t.Run("read", func(t *testing.T) {
		output := filepath.Join(t.TempDir(), "items.jsonl")
		err := cli.Read(ctx, &cli.ReadOption{
			TableName:  onDemandTable,
			FilePath:   path,
			Output:     output,
			Profile:    fastProfile(),
			Client:     client,
			Stderr:     io.Discard,
			NoProgress: true,
		})
		require.NoError(t, err)

		b, err := os.ReadFile(output)
		require.NoError(t, err)
		assert.Len(t, strings.Split(strings.TrimSpace(string(b)), "\n"), util.RecordNum)
	})

	t.Run("export", func(t *testing.T) {
		output := filepath.Join(t.TempDir(), "export.jsonl")
		var stderr bytes.Buffer
		err := cli.Export(ctx, &cli.ExportOption{
			TableName: onDemandTable,
			FilePath:  output,
			PageSize:  100,
			Client:    client,
			Stderr:    &stderr,
		})
		require.NoError(t, err)
		assert.Contains(t, stderr.String(), "exported 1000 records")
	})

	t.Run("delete", func(t *testing.T) {
		err := cli.Write(ctx, &cli.WriteOption{
			TableName:  onDemandTable,
			FilePath:   path,
			Delete:     true,
			Profile:    fastProfile(),
			Client:     client,
			Stdout:     io.Discard,
			Stderr:     io.Discard,
			NoProgress: true,
		})
		require.NoError(t, err)

		require.Eventually(t, func() bool {
			out, err := client.Scan(ctx, &dynamodb.ScanInput{
				TableName: aws.String(onDemandTable),
				Select:    "COUNT",
			})
			return err == nil && out.Count == 0
		}, 5*time.Second, 100*time.Millisecond)
	})
}

func TestCmd_DescribeTableError(t *testing.T) {
	client := localClient(t)

	err := cli.Write(context.Background(), &cli.WriteOption{
		TableName:  "NoSuchTable",
		FilePath:   writeRecords(t, util.Records(1)),
		Client:     client,
		Stdout:     io.Discard,
		Stderr:     io.Discard,
		NoProgress: true,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, cli.ErrorDescribeTable)
}
