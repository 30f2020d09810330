package ddbload

import (
	"bufio"
	"context"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type ExportOption struct {
	TableName string
	// ScanLimit is the page size. Zero lets DynamoDB choose.
	ScanLimit int
	// PagesPerSecond throttles the scan. Zero means unthrottled.
	PagesPerSecond float64
	// MaxItems stops the export once that many items are written. A page
	// is always written whole.
	MaxItems int
	Writer   io.Writer
	// Progress receives the running item count after each page.
	Progress func(count int)
	Logger   *zap.Logger
}

// Export scans a table and writes every item as one JSON line. It returns
// the number of items written.
func Export(ctx context.Context, client ScanAPI, opt *ExportOption) (int, error) {
	if opt == nil || opt.TableName == "" || opt.Writer == nil {
		return 0, errors.Wrap(ErrInvalidOption, "export needs a table name and a writer")
	}

	log := orDefaultLogger(opt.Logger)

	limiter := rate.NewLimiter(rate.Inf, 1)
	if opt.PagesPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opt.PagesPerSecond), 1)
	}

	input := &dynamodb.ScanInput{
		TableName: aws.String(opt.TableName),
	}
	if opt.ScanLimit > 0 {
		input.Limit = aws.Int32(int32(opt.ScanLimit))
	}

	w := bufio.NewWriter(opt.Writer)
	count := 0
	res, err := ScanAll(ctx, client, input, &PageOption{
		MaxLimit: opt.MaxItems,
		Discard:  true,
		Logger:   log,
		Callback: func(items []Item) error {
			if err := limiter.Wait(ctx); err != nil {
				return err
			}
			for _, item := range items {
				b, err := ItemJSON(item)
				if err != nil {
					return errors.Wrap(err, "encode item")
				}
				if _, err := w.Write(append(b, '\n')); err != nil {
					return errors.Wrap(err, "write item")
				}
				count++
			}
			if opt.Progress != nil {
				opt.Progress(count)
			}
			return nil
		},
	})
	if ferr := w.Flush(); err == nil && ferr != nil {
		err = errors.Wrap(ferr, "flush export")
	}
	if err != nil {
		return count, errors.Wrap(err, "export error")
	}
	log.Info("export finished",
		tableField(opt.TableName),
		countField(count),
		zap.Int("pages", res.Pages))

	return count, nil
}
