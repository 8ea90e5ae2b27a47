package datasources

import "errors"

// Sentinel errors for connector failures. Callers branch with errors.Is;
// the analyzer converts all of them into report warnings.
var (
	ErrUnavailable  = errors.New("data source unavailable")
	ErrInvalidQuery = errors.New("invalid query")
	ErrTimeout      = errors.New("query timed out")
)
