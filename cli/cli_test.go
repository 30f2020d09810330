package cli

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/shuntaka9576/ddbload/internal/testingutil"
	"github.com/stretchr/testify/require"
)

const testTable = "DdbloadCli"

func newFake(t *testing.T) *testingutil.FakeDynamoDB {
	t.Helper()

	fake := testingutil.NewFakeDynamoDB()
	fake.CreateTable(testTable, 1, "pk")
	return fake
}

// writeLines writes n records as JSON lines and returns the file path.
func writeLines(t *testing.T, n int) string {
	t.Helper()

	var buf bytes.Buffer
	for _, r := range testingutil.Records(n) {
		fmt.Fprintf(&buf, `{"pk":%q,"sk":%q,"number":%d}`+"\n", r.Pk, r.Sk, r.Number)
	}
	return writeFile(t, "records.jsonl", buf.String())
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func nonEmptyLines(s string) []string {
	var lines []string
	for _, l := range strings.Split(s, "\n") {
		if strings.TrimSpace(l) != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

func sortedInts(s []int) []int {
	out := append([]int(nil), s...)
	sort.Ints(out)
	return out
}
