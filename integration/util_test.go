package integration_test

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/shuntaka9576/ddbload"
	util "github.com/shuntaka9576/ddbload/internal/testingutil"
)

const (
	localEndpointEnv = "DDBLOAD_LOCAL_ENDPOINT"
	onDemandTable    = "DdbloadPrimaryOnDemand"
)

func localClient(t *testing.T) *dynamodb.Client {
	t.Helper()

	endpoint := os.Getenv(localEndpointEnv)
	if endpoint == "" {
		t.Skipf("%s is not set", localEndpointEnv)
	}

	client, err := ddbload.NewClientRegistry(nil).Client(context.Background(), &ddbload.ClientOption{
		Local:  endpoint,
		Region: ddbload.DefaultRegion,
	})
	if err != nil {
		t.Fatal(err)
	}

	return client
}

func createTable(t *testing.T, client *dynamodb.Client) {
	t.Helper()

	ctx := context.Background()
	if err := util.CreateTable(ctx, client, onDemandTable, &util.TableOption{}); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := util.DeleteTable(ctx, client, onDemandTable); err != nil {
			t.Error(err)
		}
	})
}

func writeRecords(t *testing.T, records []util.Record) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "records.jsonl")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for _, r := range records {
		if err := enc.Encode(r); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Flush(); err != nil {
		t.Fatal(err)
	}

	return path
}
