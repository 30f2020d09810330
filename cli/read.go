package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/pkg/errors"
	"github.com/shuntaka9576/ddbload"
	"go.uber.org/zap"
)

type ReadOption struct {
	TableName string
	// FilePath is a JSON lines file of keys. Extra attributes are dropped.
	FilePath string
	// Output is the file items are written to. Empty writes to Stdout.
	// Items read before a failure are written too.
	Output string
	// CapacityUnits overrides the RCU budget per second. Without it and a
	// profile value, a provisioned table's RCU is used.
	CapacityUnits  float64
	Indices        int
	ConsistentRead bool
	Profile        *Profile
	Client         Client
	Stdout         io.Writer
	Stderr         io.Writer
	// OutputDir receives the unprocessed key file on failure. Defaults to
	// the working directory.
	OutputDir  string
	NoProgress bool
	Logger     *zap.Logger
}

func (c *ReadOption) validate() error {
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

func Read(ctx context.Context, opt *ReadOption) error {
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

	items, err := readItems(f)
	if err != nil {
		return err
	}
	keys := make([]map[string]types.AttributeValue, 0, len(items))
	for _, item := range items {
		key, err := table.KeyOf(item)
		if err != nil {
			return err
		}
		keys = append(keys, key)
	}
	requests := ddbload.BatchReadMap{table.Name: types.KeysAndAttributes{
		Keys:           keys,
		ConsistentRead: &opt.ConsistentRead,
	}}

	seq := &ddbload.SequentialOption{}
	if opt.Profile != nil {
		seq = opt.Profile.Read.SequentialOption()
	}
	if opt.CapacityUnits > 0 {
		seq.CapacityUnitsPerSecond = opt.CapacityUnits
	}
	if seq.CapacityUnitsPerSecond == 0 && table.Mode == ddbload.Provisioned {
		rcu, _ := ddbload.ProvisionedCapacity(info)
		seq.CapacityUnitsPerSecond = float64(rcu)
	}
	if opt.Indices > 0 {
		seq.NumberIndices = opt.Indices
	}
	seq.Logger = opt.Logger

	view := startProgress(opt.TableName, len(keys), opt.Stderr, opt.NoProgress, opt.Logger)
	seq.ReadCallback = func(o ddbload.ReadOutcome) {
		view.add(o.Processed(), o.Unprocessed.Count())
	}

	report, err := ddbload.BatchGetSequential(ctx, opt.Client, requests, seq)
	view.stop()
	if report == nil {
		return err
	}
	if pending := report.PendingReads; pending.Count() > 0 {
		name, derr := dumpPending(opt.OutputDir, "key", opt.TableName, func(w io.Writer) error {
			for _, table := range tableNames(pending) {
				if err := writeItems(w, pending[table].Keys); err != nil {
					return err
				}
			}
			return nil
		})
		if derr != nil {
			return errors.Wrap(err, derr.Error())
		}
		fmt.Fprintf(opt.Stderr, "unprocessed keys: %d, written to %s\n", pending.Count(), displayPath(name))
	}

	if werr := outputItems(opt, report.Items); werr != nil {
		return werr
	}
	if err != nil {
		return err
	}

	if opt.Output != "" {
		fmt.Fprintf(opt.Stderr, "read %d of %d keys, written to %s\n", len(report.Items), len(keys), displayPath(opt.Output))
	}

	return nil
}

func outputItems(opt *ReadOption, items []ddbload.Item) error {
	w := opt.Stdout
	if opt.Output != "" {
		out, err := os.Create(opt.Output)
		if err != nil {
			return err
		}
		defer out.Close()
		w = out
	}
	if err := writeItems(w, items); err != nil {
		return errors.Wrap(err, "write items")
	}

	return nil
}
