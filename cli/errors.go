package cli

import "github.com/pkg/errors"

var (
	ErrorDescribeTable = errors.New("describe table error")
	ErrorOptInputError = errors.New("option input error")
)
