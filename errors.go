package ddbload

import (
	"fmt"

	"github.com/aws/smithy-go"
	"github.com/pkg/errors"
)

var (
	// ErrMalformedWorkload is returned when a request map or query template
	// does not have the shape an operation needs. It is never retried.
	ErrMalformedWorkload = errors.New("malformed workload")
	// ErrInvalidOption is returned by option validation.
	ErrInvalidOption = errors.New("invalid option")
)

const (
	ThrottlingException                    = "ThrottlingException"
	ProvisionedThroughputExceededException = "ProvisionedThroughputExceededException"
)

var throttlingErrorCodes = map[string]struct{}{
	ThrottlingException:                    {},
	ProvisionedThroughputExceededException: {},
}

// IsThrottlingError reports whether err is a capacity-exceeded or throttling
// error returned by DynamoDB.
func IsThrottlingError(err error) bool {
	var ae smithy.APIError
	if !errors.As(err, &ae) {
		return false
	}
	_, ok := throttlingErrorCodes[ae.ErrorCode()]

	return ok
}

// UnprocessedError carries the requests that were still unprocessed after
// the retry budget ran out. Exactly one of Writes and Reads is set.
type UnprocessedError struct {
	Writes BatchWriteMap
	Reads  BatchReadMap
}

func (e *UnprocessedError) Error() string {
	kind := "write"
	if e.Reads != nil {
		kind = "read"
	}
	return fmt.Sprintf("%d %s requests left unprocessed", e.Count(), kind)
}

// Count returns the number of residual requests.
func (e *UnprocessedError) Count() int {
	return e.Writes.Count() + e.Reads.Count()
}

func isUnprocessedError(err error) bool {
	var ue *UnprocessedError
	return errors.As(err, &ue)
}
