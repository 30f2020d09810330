package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/shuntaka9576/ddbload"
	"go.uber.org/zap"
)

type ExportOption struct {
	TableName string
	// FilePath defaults to export_<table>_yyyymmdd-HHMMSS.jsonl.
	FilePath string
	// Limit is the number of pages read per second.
	Limit    float64
	PageSize int
	MaxItems int
	Client   Client
	Stderr   io.Writer
	Logger   *zap.Logger
}

func (c *ExportOption) validate() error {
	if c.TableName == "" || c.Client == nil || c.Limit < 0 || c.PageSize < 0 || c.MaxItems < 0 {
		return ErrorOptInputError
	}
	if c.Stderr == nil {
		c.Stderr = os.Stderr
	}
	if c.Logger == nil {
		c.Logger = ddbload.Logger()
	}

	return nil
}

func Export(ctx context.Context, opt *ExportOption) error {
	if err := opt.validate(); err != nil {
		return err
	}

	if _, _, err := describeTable(ctx, opt.Client, opt.TableName); err != nil {
		return err
	}

	filePath := fmt.Sprintf("export_%s_%s.jsonl", opt.TableName, time.Now().Format("20060102-150405"))
	if opt.FilePath != "" {
		filePath = opt.FilePath
	}

	f, err := os.Create(filePath)
	if err != nil {
		return err
	}
	defer f.Close()

	fmt.Fprintf(opt.Stderr, "created %s\n", displayPath(f.Name()))

	count, err := ddbload.Export(ctx, opt.Client, &ddbload.ExportOption{
		TableName:      opt.TableName,
		ScanLimit:      opt.PageSize,
		PagesPerSecond: opt.Limit,
		MaxItems:       opt.MaxItems,
		Writer:         f,
		Logger:         opt.Logger,
		Progress: func(count int) {
			fmt.Fprintf(opt.Stderr, "\rscanned records: %d", count)
		},
	})
	fmt.Fprintln(opt.Stderr)
	if err != nil {
		return err
	}

	fmt.Fprintf(opt.Stderr, "exported %d records\n", count)

	return nil
}
