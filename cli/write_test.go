package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shuntaka9576/ddbload"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrite(t *testing.T) {
	fake := newFake(t)
	var stdout, stderr bytes.Buffer

	err := Write(context.Background(), &WriteOption{
		TableName:  testTable,
		FilePath:   writeLines(t, 30),
		Client:     fake,
		Stdout:     &stdout,
		Stderr:     &stderr,
		NoProgress: true,
	})
	require.NoError(t, err)

	assert.Equal(t, "written 30 records in 1 super-batches (0 retry rounds)\n", stdout.String())
	assert.Len(t, fake.Items(testTable), 30)
	assert.Equal(t, []int{5, 25}, sortedInts(fake.WriteSizes()))
}

func TestWrite_Delete(t *testing.T) {
	fake := newFake(t)
	path := writeLines(t, 10)

	for _, del := range []bool{false, true} {
		err := Write(context.Background(), &WriteOption{
			TableName:  testTable,
			FilePath:   path,
			Delete:     del,
			Client:     fake,
			Stdout:     &bytes.Buffer{},
			NoProgress: true,
		})
		require.NoError(t, err)
	}

	assert.Empty(t, fake.Items(testTable))
	assert.Equal(t, 2, fake.WriteCalls())
}

func TestWrite_DryRun(t *testing.T) {
	fake := newFake(t)
	var stdout bytes.Buffer

	err := Write(context.Background(), &WriteOption{
		TableName: testTable,
		FilePath:  writeFile(t, "dry.jsonl", "{\"foo\":\"hoge\"}\n{\"foo\":\"hoge\"}\n"),
		DryRun:    true,
		Client:    fake,
		Stdout:    &stdout,
	})
	require.NoError(t, err)

	assert.Equal(t, "Total item size: 14.00 B\nTotal to consume: 2 WRU\n", stdout.String())
	assert.Equal(t, 0, fake.WriteCalls())
}

func TestWrite_Unprocessed(t *testing.T) {
	fake := newFake(t)
	fake.WriteUnprocessed = func(call, n int) int { return 1 }
	dir := t.TempDir()
	var stderr bytes.Buffer

	err := Write(context.Background(), &WriteOption{
		TableName: testTable,
		FilePath:  writeLines(t, 5),
		Profile: &Profile{Write: OperationProfile{
			UnprocessedBackOff: &BackOffProfile{
				NumOfAttempts: 2,
				StartingDelay: duration{time.Millisecond},
				Jitter:        "none",
			},
		}},
		OutputDir:  dir,
		Client:     fake,
		Stdout:     &bytes.Buffer{},
		Stderr:     &stderr,
		NoProgress: true,
	})

	var ue *ddbload.UnprocessedError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, 1, ue.Count())
	assert.Equal(t, 3, fake.WriteCalls())

	dumps, err := filepath.Glob(filepath.Join(dir, "unprocessed_record_"+testTable+"_*.jsonl"))
	require.NoError(t, err)
	require.Len(t, dumps, 1)

	b, err := os.ReadFile(dumps[0])
	require.NoError(t, err)
	assert.JSONEq(t, `{"pk":"pk-00004","sk":"sk-00004","number":4}`, string(bytes.TrimSpace(b)))
	assert.Contains(t, stderr.String(), "unprocessed records: 1, written to ")
}

func TestWrite_Errors(t *testing.T) {
	fake := newFake(t)

	t.Run("missing option", func(t *testing.T) {
		err := Write(context.Background(), &WriteOption{TableName: testTable, Client: fake})
		assert.ErrorIs(t, err, ErrorOptInputError)
	})

	t.Run("negative capacity", func(t *testing.T) {
		err := Write(context.Background(), &WriteOption{
			TableName:     testTable,
			FilePath:      writeLines(t, 1),
			CapacityUnits: -1,
			Client:        fake,
		})
		assert.ErrorIs(t, err, ErrorOptInputError)
	})

	t.Run("unknown table", func(t *testing.T) {
		err := Write(context.Background(), &WriteOption{
			TableName: "Missing",
			FilePath:  writeLines(t, 1),
			Client:    fake,
		})
		assert.ErrorIs(t, err, ErrorDescribeTable)
	})

	t.Run("item without key", func(t *testing.T) {
		err := Write(context.Background(), &WriteOption{
			TableName: testTable,
			FilePath:  writeFile(t, "nokey.jsonl", `{"data":"x"}`),
			Delete:    true,
			Client:    fake,
		})
		assert.ErrorIs(t, err, ddbload.ErrMalformedWorkload)
	})

	assert.Equal(t, 0, fake.WriteCalls())
}

func TestWrite_PendingFileResumes(t *testing.T) {
	fake := newFake(t)
	fake.WriteUnprocessed = func(call, n int) int { return 1 }
	dir := t.TempDir()
	var stderr bytes.Buffer

	err := Write(context.Background(), &WriteOption{
		TableName:     testTable,
		FilePath:      writeLines(t, 20),
		CapacityUnits: 10,
		Indices:       1,
		Profile: &Profile{Write: OperationProfile{
			UnprocessedBackOff: &BackOffProfile{
				NumOfAttempts: 2,
				StartingDelay: duration{time.Millisecond},
				Jitter:        "none",
			},
		}},
		OutputDir:  dir,
		Client:     fake,
		Stdout:     &bytes.Buffer{},
		Stderr:     &stderr,
		NoProgress: true,
	})

	var ue *ddbload.UnprocessedError
	require.True(t, errors.As(err, &ue))
	assert.Len(t, fake.Items(testTable), 9)
	assert.Contains(t, stderr.String(), "unprocessed records: 11, written to ")

	dumps, err := filepath.Glob(filepath.Join(dir, "unprocessed_record_"+testTable+"_*.jsonl"))
	require.NoError(t, err)
	require.Len(t, dumps, 1)

	b, err := os.ReadFile(dumps[0])
	require.NoError(t, err)
	lines := nonEmptyLines(string(b))
	require.Len(t, lines, 11)
	assert.JSONEq(t, `{"pk":"pk-00009","sk":"sk-00009","number":9}`, lines[0])
	assert.JSONEq(t, `{"pk":"pk-00019","sk":"sk-00019","number":19}`, lines[10])

	fake.WriteUnprocessed = nil
	var stdout bytes.Buffer
	err = Write(context.Background(), &WriteOption{
		TableName:  testTable,
		FilePath:   dumps[0],
		Client:     fake,
		Stdout:     &stdout,
		NoProgress: true,
	})
	require.NoError(t, err)

	assert.Equal(t, "written 11 records in 1 super-batches (0 retry rounds)\n", stdout.String())
	assert.Len(t, fake.Items(testTable), 20)
}

func TestWrite_ProvisionedCapacity(t *testing.T) {
	fake := newFake(t)
	fake.Provision(testTable, 0, 10)
	var stdout bytes.Buffer

	err := Write(context.Background(), &WriteOption{
		TableName: testTable,
		FilePath:  writeLines(t, 20),
		Profile: &Profile{Write: OperationProfile{
			Cooldown: duration{time.Millisecond},
		}},
		Client:     fake,
		Stdout:     &stdout,
		NoProgress: true,
	})
	require.NoError(t, err)

	// 10 WCU over the table and its index
	assert.Equal(t, "written 20 records in 4 super-batches (0 retry rounds)\n", stdout.String())
	assert.Equal(t, []int{5, 5, 5, 5}, fake.WriteSizes())
}
