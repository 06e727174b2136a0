package domain

import (
	"errors"
	"fmt"
)

// ErrNotReady is returned while no snapshot has been published yet.
var ErrNotReady = errors.New("data not yet available")

// TransportError reports that a source could not be fetched or its response
// could not be parsed as CSV.
type TransportError struct {
	Source SourceName
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Source, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// MalformedInputError reports a table that parsed as CSV but does not have
// the expected shape.
type MalformedInputError struct {
	Source SourceName
	Reason string
}

func (e *MalformedInputError) Error() string {
	if e.Source == "" {
		return "malformed input: " + e.Reason
	}
	return fmt.Sprintf("malformed %s input: %s", e.Source, e.Reason)
}

// UndefinedMetricError reports a metric request that has no defined answer,
// such as an unknown region or chart.
type UndefinedMetricError struct {
	Metric string
	Region string
	Reason string
}

func (e *UndefinedMetricError) Error() string {
	return fmt.Sprintf("%s for %q: %s", e.Metric, e.Region, e.Reason)
}

func malformed(source SourceName, format string, args ...any) *MalformedInputError {
	return &MalformedInputError{Source: source, Reason: fmt.Sprintf(format, args...)}
}

func unknownRegion(metric, region string) *UndefinedMetricError {
	return &UndefinedMetricError{Metric: metric, Region: region, Reason: "unknown region"}
}
