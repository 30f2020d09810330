package ddbload

import (
	"fmt"

	"github.com/aws/smithy-go"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

var (
	logger = zap.NewNop()
)

// UseLogger sets the logger used by operations whose option carries none.
func UseLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	logger = l
}

// Logger returns the package logger.
func Logger() *zap.Logger {
	return logger
}

func orDefaultLogger(l *zap.Logger) *zap.Logger {
	if l == nil {
		return logger
	}
	return l
}

func operationField(name string) zap.Field {
	return zap.String("operation", name)
}

func tableField(name string) zap.Field {
	return zap.String("table", name)
}

func attemptField(n int) zap.Field {
	return zap.Int("attempt", n)
}

func attemptsLeftField(n int) zap.Field {
	return zap.Int("attempts-left", n)
}

func countField(n int) zap.Field {
	return zap.Int("count", n)
}

func batchField(index int) zap.Field {
	return zap.Int("batch", index)
}

func superBatchField(index, total int) zap.Field {
	return zap.String("super-batch", fmt.Sprintf("%d/%d", index+1, total))
}

func stateField(s roundState) zap.Field {
	return zap.Stringer("state", s)
}

// errorCodeField returns the API error code, or "unknown" for errors that
// did not come from the service.
func errorCodeField(err error) zap.Field {
	var ae smithy.APIError
	if errors.As(err, &ae) {
		return zap.String("error-code", ae.ErrorCode())
	}
	return zap.String("error-code", "unknown")
}
