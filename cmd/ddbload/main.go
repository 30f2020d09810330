package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/alecthomas/kong"
	"github.com/shuntaka9576/ddbload"
	"github.com/shuntaka9576/ddbload/cli"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var version = "dev"

type Globals struct {
	Local    string          `short:"L" name:"local" help:"Specify DynamoDB local endpoint. ex: (http://)localhost:8000"`
	Region   string          `short:"r" name:"region" help:"AWS region (default from the environment, else us-east-1)."`
	RoleARN  string          `name:"role-arn" help:"Assume this role for every call."`
	LogLevel string          `name:"log-level" default:"warn" enum:"debug,info,warn,error" help:"Log level (debug, info, warn, error)."`
	Profile  string          `short:"c" name:"config" type:"existingfile" help:"TOML profile with capacity and backoff settings."`
	Version  cli.VersionFlag `short:"v" name:"version" help:"print the version."`
}

var CLI struct {
	Globals
	Write struct {
		TableName string  `arg:"" name:"tableName" help:"Specifies table name to write."`
		File      string  `short:"f" name:"file" required:"" help:"Specify the jsonline file containing the records to write."`
		Delete    bool    `name:"delete" help:"Delete the records of the file by key instead of putting them."`
		DryRun    bool    `short:"d" name:"dry-run" help:"Simulate WRUs/WCUs to consume."`
		WCU       float64 `name:"wcu" help:"Write capacity units to consume per second (default: the table WCU if provisioned, else 1000)."`
		Indices   int     `name:"indices" help:"Number of indices a write lands on (default table plus its GSIs)."`
		NoUI      bool    `name:"no-progress" help:"Do not render the progress view."`
	} `cmd:"" help:"Write or delete records in super-batches sized to a capacity budget."`
	Read struct {
		TableName  string  `arg:"" name:"tableName" help:"Specifies table name to read."`
		File       string  `short:"f" name:"file" required:"" help:"Specify the jsonline file containing the keys to read."`
		Output     string  `short:"o" name:"output" help:"Specify the file to write items to (default stdout)."`
		RCU        float64 `name:"rcu" help:"Read capacity units to consume per second (default: the table RCU if provisioned, else 1000)."`
		Indices    int     `name:"indices" help:"Divisor applied to the read budget (default 1)."`
		Consistent bool    `name:"consistent" help:"Use strongly consistent reads."`
		NoUI       bool    `name:"no-progress" help:"Do not render the progress view."`
	} `cmd:"" help:"Read records by key in super-batches sized to a capacity budget."`
	Query struct {
		TableName    string `arg:"" name:"tableName" help:"Specifies table name to query."`
		Index        string `name:"index" help:"Query a secondary index."`
		KeyCondition string `name:"key-condition" required:"" help:"Key condition expression."`
		Values       string `name:"values" required:"" help:"Expression attribute values as JSON."`
		Names        string `name:"names" help:"Expression attribute names as JSON."`
		Partitions   int    `name:"partitions" help:"Query partitions 0..N, replacing %part% in the values."`
		Limit        int    `short:"l" name:"limit" help:"Stop after this many items."`
	} `cmd:"" help:"Query a table, optionally across write-sharded partitions."`
	Export struct {
		TableName string  `arg:"" name:"tableName" help:"Specify table name to export."`
		File      string  `short:"f" name:"file" help:"Specify the file path to output (default export_tableName_yyyymmdd-HHMMSS.jsonl)."`
		Limit     float64 `short:"l" name:"limit" help:"Limit the number of scanned pages per second."`
		PageSize  int     `name:"page-size" help:"Number of items per scanned page."`
		MaxItems  int     `name:"max-items" help:"Stop after this many items."`
	} `cmd:"" help:"Export DynamoDB table to a jsonline file."`
}

func newLogger(level string) (*zap.Logger, error) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

func run(ctx context.Context, kontext *kong.Context, logger *zap.Logger) error {
	var profile *cli.Profile
	if CLI.Profile != "" {
		p, err := cli.LoadProfile(CLI.Profile)
		if err != nil {
			return err
		}
		profile = p
	}

	registry := ddbload.NewClientRegistry(logger)
	client, err := registry.Client(ctx, &ddbload.ClientOption{
		Local:   CLI.Local,
		Region:  CLI.Region,
		RoleARN: CLI.RoleARN,
	})
	if err != nil {
		return err
	}

	switch kontext.Command() {
	case "write <tableName>":
		return cli.Write(ctx, &cli.WriteOption{
			TableName:     CLI.Write.TableName,
			FilePath:      CLI.Write.File,
			Delete:        CLI.Write.Delete,
			DryRun:        CLI.Write.DryRun,
			CapacityUnits: CLI.Write.WCU,
			Indices:       CLI.Write.Indices,
			Profile:       profile,
			Client:        client,
			NoProgress:    CLI.Write.NoUI,
			Logger:        logger,
		})
	case "read <tableName>":
		return cli.Read(ctx, &cli.ReadOption{
			TableName:      CLI.Read.TableName,
			FilePath:       CLI.Read.File,
			Output:         CLI.Read.Output,
			CapacityUnits:  CLI.Read.RCU,
			Indices:        CLI.Read.Indices,
			ConsistentRead: CLI.Read.Consistent,
			Profile:        profile,
			Client:         client,
			NoProgress:     CLI.Read.NoUI,
			Logger:         logger,
		})
	case "query <tableName>":
		return cli.Query(ctx, &cli.QueryOption{
			TableName:    CLI.Query.TableName,
			IndexName:    CLI.Query.Index,
			KeyCondition: CLI.Query.KeyCondition,
			Values:       CLI.Query.Values,
			Names:        CLI.Query.Names,
			Partitions:   CLI.Query.Partitions,
			Limit:        CLI.Query.Limit,
			Client:       client,
		})
	case "export <tableName>":
		return cli.Export(ctx, &cli.ExportOption{
			TableName: CLI.Export.TableName,
			FilePath:  CLI.Export.File,
			Limit:     CLI.Export.Limit,
			PageSize:  CLI.Export.PageSize,
			MaxItems:  CLI.Export.MaxItems,
			Client:    client,
			Logger:    logger,
		})
	default:
		return fmt.Errorf("unknown command %q", kontext.Command())
	}
}

func main() {
	kontext := kong.Parse(&CLI,
		kong.Name("ddbload"),
		kong.Description("Capacity aware bulk DynamoDB utility"),
		kong.Vars{"version": version},
	)

	logger, err := newLogger(CLI.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger error: %s\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	ddbload.UseLogger(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, kontext, logger); err != nil {
		var ue *ddbload.UnprocessedError
		switch {
		case errors.Is(err, cli.ErrorDescribeTable):
			fmt.Fprintf(os.Stderr, "describe table error: %s\n", err)
		case errors.As(err, &ue):
			fmt.Fprintf(os.Stderr, "gave up with %d unprocessed records\n", ue.Count())
		default:
			fmt.Fprintf(os.Stderr, "%s\n", err)
		}

		cancel()
		os.Exit(1)
	}
}
