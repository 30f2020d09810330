package cli

import (
	"bufio"
	"bytes"
	"io"
	"sort"

	"github.com/pkg/errors"
	"github.com/shuntaka9576/ddbload"
)

func newLineScanner(r io.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 2*ddbload.ItemSizeLimit)
	return scanner
}

// readItems parses a JSON lines stream. Blank lines are skipped.
func readItems(r io.Reader) ([]ddbload.Item, error) {
	var items []ddbload.Item

	scanner := newLineScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		l := bytes.TrimSpace(scanner.Bytes())
		if len(l) == 0 {
			continue
		}
		item, err := ddbload.ItemFromJSON(l)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", line)
		}
		items = append(items, item)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return items, nil
}

func writeItems(w io.Writer, items []ddbload.Item) error {
	bw := bufio.NewWriter(w)
	for _, item := range items {
		b, err := ddbload.ItemJSON(item)
		if err != nil {
			return err
		}
		if _, err := bw.Write(append(b, '\n')); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func tableNames[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
