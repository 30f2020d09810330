package ddbload

import (
	"bufio"
	"bytes"
	"io"

	"github.com/pkg/errors"
)

type SimulateOpt struct {
	Reader io.Reader
	Mode   DDBMode
}

type SimulateResult struct {
	ConsumeRRU    *int
	ConsumeWRU    *int
	ConsumeRCU    *int
	ConsumeWCU    *int
	TotalItemSize int
	Items         int
}

// Simulate reads JSON lines and sums the capacity a write and a read of
// every item would consume, without calling DynamoDB. Units are reported as
// request units for on-demand tables and capacity units for provisioned
// ones.
func Simulate(opt *SimulateOpt) (*SimulateResult, error) {
	scanner := bufio.NewScanner(opt.Reader)
	scanner.Buffer(make([]byte, 0, 64*1024), 2*ItemSizeLimit)

	totalItemSize, items := 0, 0
	rusum, wusum := 0, 0
	line := 0
	for scanner.Scan() {
		line++
		l := bytes.TrimSpace(scanner.Bytes())
		if len(l) == 0 {
			continue
		}

		item, err := ItemFromJSON(l)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", line)
		}

		itemResult, err := GetItemSize(item)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", line)
		}

		if itemResult.Size > ItemSizeLimit {
			return nil, errors.Errorf("line %d: item size %d exceeds the limit of %d", line, itemResult.Size, ItemSizeLimit)
		}

		totalItemSize += itemResult.Size
		rusum += itemResult.ReadUnit
		wusum += itemResult.WriteUnit
		items++
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "read items")
	}

	switch opt.Mode {
	case OnDemand:
		return &SimulateResult{
			ConsumeWRU:    &wusum,
			ConsumeRRU:    &rusum,
			TotalItemSize: totalItemSize,
			Items:         items,
		}, nil
	case Provisioned:
		return &SimulateResult{
			ConsumeWCU:    &wusum,
			ConsumeRCU:    &rusum,
			TotalItemSize: totalItemSize,
			Items:         items,
		}, nil
	default:
		return nil, errors.Errorf("invalid DynamoDB mode %q", opt.Mode)
	}
}
