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

func TestRead(t *testing.T) {
	fake := newFake(t)
	require.NoError(t, Write(context.Background(), &WriteOption{
		TableName:  testTable,
		FilePath:   writeLines(t, 3),
		Client:     fake,
		Stdout:     &bytes.Buffer{},
		NoProgress: true,
	}))

	// the last key does not exist, extra attributes are dropped
	keys := writeFile(t, "keys.jsonl",
		"{\"pk\":\"pk-00000\",\"ignored\":true}\n{\"pk\":\"pk-00001\"}\n\n{\"pk\":\"pk-00002\"}\n{\"pk\":\"pk-09999\"}\n")
	output := filepath.Join(t.TempDir(), "items.jsonl")
	var stderr bytes.Buffer

	err := Read(context.Background(), &ReadOption{
		TableName:      testTable,
		FilePath:       keys,
		Output:         output,
		ConsistentRead: true,
		Client:         fake,
		Stderr:         &stderr,
		NoProgress:     true,
	})
	require.NoError(t, err)

	b, err := os.ReadFile(output)
	require.NoError(t, err)
	lines := nonEmptyLines(string(b))
	require.Len(t, lines, 3)
	assert.JSONEq(t, `{"pk":"pk-00000","sk":"sk-00000","number":0}`, lines[0])
	assert.JSONEq(t, `{"pk":"pk-00002","sk":"sk-00002","number":2}`, lines[2])
	assert.Contains(t, stderr.String(), "read 3 of 4 keys, written to ")
}

func TestRead_Stdout(t *testing.T) {
	fake := newFake(t)
	require.NoError(t, Write(context.Background(), &WriteOption{
		TableName:  testTable,
		FilePath:   writeLines(t, 2),
		Client:     fake,
		Stdout:     &bytes.Buffer{},
		NoProgress: true,
	}))

	var stdout, stderr bytes.Buffer
	err := Read(context.Background(), &ReadOption{
		TableName:  testTable,
		FilePath:   writeLines(t, 2),
		Client:     fake,
		Stdout:     &stdout,
		Stderr:     &stderr,
		NoProgress: true,
	})
	require.NoError(t, err)

	assert.Len(t, nonEmptyLines(stdout.String()), 2)
	assert.Empty(t, stderr.String())
}

func TestRead_Errors(t *testing.T) {
	fake := newFake(t)

	err := Read(context.Background(), &ReadOption{TableName: testTable, Client: fake})
	assert.ErrorIs(t, err, ErrorOptInputError)

	err = Read(context.Background(), &ReadOption{
		TableName: testTable,
		FilePath:  writeFile(t, "keys.jsonl", "{\"sk\":\"a\"}\n"),
		Client:    fake,
	})
	assert.ErrorIs(t, err, ddbload.ErrMalformedWorkload)

	err = Read(context.Background(), &ReadOption{
		TableName: testTable,
		FilePath:  writeFile(t, "broken.jsonl", "{\"pk\":\"a\"}\n{\"pk\":\n"),
		Client:    fake,
	})
	assert.ErrorContains(t, err, "line 2")

	assert.Equal(t, 0, fake.ReadCalls())
}

func TestRead_Unprocessed(t *testing.T) {
	fake := newFake(t)
	require.NoError(t, Write(context.Background(), &WriteOption{
		TableName:  testTable,
		FilePath:   writeLines(t, 6),
		Client:     fake,
		Stdout:     &bytes.Buffer{},
		NoProgress: true,
	}))
	fake.ReadUnprocessed = func(call, n int) int { return 1 }

	dir := t.TempDir()
	output := filepath.Join(dir, "items.jsonl")
	var stderr bytes.Buffer

	err := Read(context.Background(), &ReadOption{
		TableName: testTable,
		FilePath:  writeLines(t, 6),
		Output:    output,
		Profile: &Profile{Read: OperationProfile{
			UnprocessedBackOff: &BackOffProfile{
				NumOfAttempts: 2,
				StartingDelay: duration{time.Millisecond},
				Jitter:        "none",
			},
		}},
		OutputDir:  dir,
		Client:     fake,
		Stderr:     &stderr,
		NoProgress: true,
	})

	var ue *ddbload.UnprocessedError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, 3, fake.ReadCalls())

	// the items read so far are kept
	b, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Len(t, nonEmptyLines(string(b)), 5)

	dumps, err := filepath.Glob(filepath.Join(dir, "unprocessed_key_"+testTable+"_*.jsonl"))
	require.NoError(t, err)
	require.Len(t, dumps, 1)
	b, err = os.ReadFile(dumps[0])
	require.NoError(t, err)
	assert.JSONEq(t, `{"pk":"pk-00005"}`, string(bytes.TrimSpace(b)))
	assert.Contains(t, stderr.String(), "unprocessed keys: 1, written to ")
}

func TestRead_ProvisionedCapacity(t *testing.T) {
	fake := newFake(t)
	fake.Provision(testTable, 5, 0)
	require.NoError(t, Write(context.Background(), &WriteOption{
		TableName:  testTable,
		FilePath:   writeLines(t, 12),
		Client:     fake,
		Stdout:     &bytes.Buffer{},
		NoProgress: true,
	}))

	var stdout bytes.Buffer
	err := Read(context.Background(), &ReadOption{
		TableName: testTable,
		FilePath:  writeLines(t, 12),
		Profile: &Profile{Read: OperationProfile{
			Cooldown: duration{time.Millisecond},
		}},
		Client:     fake,
		Stdout:     &stdout,
		NoProgress: true,
	})
	require.NoError(t, err)

	assert.Len(t, nonEmptyLines(stdout.String()), 12)
	assert.Equal(t, 3, fake.ReadCalls())
}
