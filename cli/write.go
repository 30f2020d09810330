package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/pkg/errors"
	"github.com/shuntaka9576/ddbload"
	"go.uber.org/zap"
)

type WriteOption struct {
	TableName string
	FilePath  string
	// Delete turns every line into a delete request for its key.
	Delete bool
	DryRun bool
	// CapacityUnits overrides the WCU budget per second. Without it and a
	// profile value, a provisioned table's WCU is used.
	CapacityUnits float64
	// Indices overrides the index count read from the table.
	Indices int
	Profile *Profile
	// OutputDir receives the unprocessed record file on failure. It holds
	// every record not written, so it can be fed back as the input file.
	// Defaults to the working directory.
	OutputDir  string
	Client     Client
	Stdout     io.Writer
	Stderr     io.Writer
	NoProgress bool
	Logger     *zap.Logger
}

func (c *WriteOption) validate() error {
	if c.FilePath == "" || c.TableName == "" || c.Client == nil {
		return ErrorOptInputError
	}
	if c.CapacityUnits < 0 || c.Indices < 0 {
		return errors.Wrap(ErrorOptInputError, "capacity units and indices must not be negative")
	}
	if c.Stdout == nil {
		c.Stdout = os.Stdout
	}
	if c.Stderr == nil {
		c.Stderr = os.Stderr
	}
	if c.Logger == nil {
		c.Logger = ddbload.Logger()
	}

	return nil
}

func Write(ctx context.Context, opt *WriteOption) error {
	if err := opt.validate(); err != nil {
		return err
	}

	f, err := os.Open(opt.FilePath)
	if err != nil {
		return err
	}
	defer f.Close()

	table, info, err := describeTable(ctx, opt.Client, opt.TableName)
	if err != nil {
		return err
	}

	if opt.DryRun {
		return simulate(f, table, opt.Stdout)
	}

	items, err := readItems(f)
	if err != nil {
		return err
	}
	requests, err := writeRequests(table, items, opt.Delete)
	if err != nil {
		return err
	}

	seq := &ddbload.SequentialOption{}
	if opt.Profile != nil {
		seq = opt.Profile.Write.SequentialOption()
	}
	if opt.CapacityUnits > 0 {
		seq.CapacityUnitsPerSecond = opt.CapacityUnits
	}
	if seq.CapacityUnitsPerSecond == 0 && table.Mode == ddbload.Provisioned {
		_, wcu := ddbload.ProvisionedCapacity(info)
		seq.CapacityUnitsPerSecond = float64(wcu)
	}
	switch {
	case opt.Indices > 0:
		seq.NumberIndices = opt.Indices
	case seq.NumberIndices == 0:
		seq.NumberIndices = table.Indices
	}
	seq.Logger = opt.Logger

	view := startProgress(opt.TableName, requests.Count(), opt.Stderr, opt.NoProgress, opt.Logger)
	seq.WriteCallback = func(o ddbload.WriteOutcome) {
		view.add(o.Processed(), o.Unprocessed.Count())
	}

	report, err := ddbload.BatchWriteSequential(ctx, opt.Client, requests, seq)
	view.stop()
	if err != nil {
		if report != nil && report.PendingWrites.Count() > 0 {
			pending := report.PendingWrites
			name, derr := dumpPending(opt.OutputDir, "record", opt.TableName, func(w io.Writer) error {
				return writeRequestLines(w, pending)
			})
			if derr != nil {
				return errors.Wrap(err, derr.Error())
			}
			fmt.Fprintf(opt.Stderr, "unprocessed records: %d, written to %s\n", pending.Count(), displayPath(name))
		}
		return err
	}

	fmt.Fprintf(opt.Stdout, "written %d records in %d super-batches (%d retry rounds)\n",
		report.Processed, report.SuperBatches, report.RetryRounds)

	return nil
}

func writeRequests(table *ddbload.Table, items []ddbload.Item, del bool) (ddbload.BatchWriteMap, error) {
	reqs := make([]types.WriteRequest, 0, len(items))
	for _, item := range items {
		if !del {
			reqs = append(reqs, ddbload.PutRequest(item))
			continue
		}
		key, err := table.KeyOf(item)
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, ddbload.DeleteRequest(key))
	}

	return ddbload.BatchWriteMap{table.Name: reqs}, nil
}

func simulate(r io.Reader, table *ddbload.Table, w io.Writer) error {
	result, err := ddbload.Simulate(&ddbload.SimulateOpt{Reader: r, Mode: table.Mode})
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Total item size: %s\n", ddbload.PrettyPrintBytes(result.TotalItemSize))

	switch table.Mode {
	case ddbload.Provisioned:
		fmt.Fprintf(w, "Total to consume: %d WCU\n", *result.ConsumeWCU)
	case ddbload.OnDemand:
		fmt.Fprintf(w, "Total to consume: %d WRU\n", *result.ConsumeWRU)
	}

	return nil
}

// dumpPending creates unprocessed_<kind>_<table>_<time>.jsonl in dir.
func dumpPending(dir, kind, tableName string, write func(w io.Writer) error) (string, error) {
	name := filepath.Join(dir, fmt.Sprintf("unprocessed_%s_%s_%s.jsonl",
		kind,
		tableName,
		time.Now().Format("20060102-150405")))

	f, err := os.Create(name)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if err := write(f); err != nil {
		return "", err
	}

	return f.Name(), nil
}

func writeRequestLines(w io.Writer, requests ddbload.BatchWriteMap) error {
	bw := bufio.NewWriter(w)
	for _, table := range tableNames(requests) {
		for _, r := range requests[table] {
			b, err := ddbload.WriteRequestJSON(r)
			if err != nil {
				return err
			}
			if _, err := bw.Write(append(b, '\n')); err != nil {
				return err
			}
		}
	}
	return bw.Flush()
}
