package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/KaramelBytes/personaloom/internal/cluster"
	"github.com/KaramelBytes/personaloom/internal/dataset"
	"github.com/KaramelBytes/personaloom/internal/features"
)

// Kind classifies a pipeline failure.
type Kind int

const (
	KindInternal Kind = iota
	KindEmptyInput
	KindFormat
	KindNoNumericData
	KindAborted
	KindClustering
	KindTooLarge
)

func (k Kind) String() string {
	switch k {
	case KindEmptyInput:
		return "empty_input"
	case KindFormat:
		return "format"
	case KindNoNumericData:
		return "no_numeric_data"
	case KindAborted:
		return "aborted"
	case KindClustering:
		return "clustering"
	case KindTooLarge:
		return "too_large"
	default:
		return "internal"
	}
}

// Error is the single error type returned by Run.
type Error struct {
	Kind  Kind
	Stage string
	Err   error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindEmptyInput:
		return "Excel file is empty"
	case KindNoNumericData:
		return "No numeric data found to cluster"
	case KindAborted:
		return fmt.Sprintf("upload aborted: %v", e.Err)
	}
	return e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Status is the HTTP status for the failure: 400 for caller-fixable input, 500 otherwise.
func (e *Error) Status() int {
	switch e.Kind {
	case KindTooLarge:
		return http.StatusRequestEntityTooLarge
	case KindEmptyInput, KindFormat, KindNoNumericData, KindAborted:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// classify maps a stage error onto the taxonomy. Errors already classified pass through.
func classify(stage string, err error) *Error {
	var pe *Error
	if errors.As(err, &pe) {
		return pe
	}
	var fe *dataset.FormatError
	var ce *cluster.ClusteringError
	kind := KindInternal
	switch {
	case errors.Is(err, dataset.ErrEmptyInput):
		kind = KindEmptyInput
	case errors.As(err, &fe):
		kind = KindFormat
	case errors.Is(err, features.ErrNoNumericData):
		kind = KindNoNumericData
	case errors.As(err, &ce):
		kind = KindClustering
	case errors.Is(err, ErrTooLarge):
		kind = KindTooLarge
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		kind = KindAborted
	}
	return &Error{Kind: kind, Stage: stage, Err: err}
}

// StatusOf returns the HTTP status for any error: pipeline errors report their own,
// everything else is internal.
func StatusOf(err error) int {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Status()
	}
	return http.StatusInternalServerError
}
