package ddbload

import (
	"bytes"
	"encoding/json"

	"github.com/pkg/errors"
)

const kiloByte = 1024

// AverageItemSizeKB estimates the average size in KB of the items in a write
// workload. Each table's request list is serialized to JSON and divided by
// its request count, then the per-table figures are averaged. Capacity is
// charged per started KB, so the result is never below 1.
func AverageItemSizeKB(requests BatchWriteMap) (float64, error) {
	var (
		sum    float64
		tables int
	)
	for _, table := range requests.tables() {
		reqs := requests[table]
		if len(reqs) == 0 {
			continue
		}

		natives := make([]map[string]any, 0, len(reqs))
		for _, r := range reqs {
			native, err := nativeWriteRequest(r)
			if err != nil {
				return 0, errors.Wrapf(err, "estimate item size of %s", table)
			}
			natives = append(natives, native)
		}
		size, err := jsonSize(natives)
		if err != nil {
			return 0, errors.Wrapf(err, "estimate item size of %s", table)
		}

		sum += float64(size) / kiloByte / float64(len(reqs))
		tables++
	}

	if tables == 0 {
		return 1, nil
	}
	avg := sum / float64(tables)
	if avg < 1 {
		return 1, nil
	}
	return avg, nil
}

// jsonSize is the length of v as plain JSON, with <, > and & left as is.
func jsonSize(v any) (int, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return 0, err
	}
	// Encode terminates the value with a newline
	return buf.Len() - 1, nil
}
