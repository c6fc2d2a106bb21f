// Package pipeline chains loading, encoding, scaling, clustering and summarizing
// into a single request-scoped run.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/KaramelBytes/personaloom/internal/cluster"
	"github.com/KaramelBytes/personaloom/internal/dataset"
	"github.com/KaramelBytes/personaloom/internal/features"
	"github.com/KaramelBytes/personaloom/internal/persona"
)

// Options configures one run.
type Options struct {
	// MaxClusters bounds K; the run uses min(MaxClusters, rows). Values below 1 mean 1.
	MaxClusters        int
	Seed               int64
	NInit              int
	MaxIter            int
	Tolerance          float64
	IncludeCategorical bool
	Dataset            dataset.Options
	// MaxBytes limits RunReader input; 0 means unlimited.
	MaxBytes int64
	Logger   *slog.Logger
}

// DefaultOptions returns the defaults: three personas, seed 42, ten restarts.
func DefaultOptions() Options {
	return Options{
		MaxClusters: 3,
		Seed:        cluster.DefaultSeed,
		NInit:       cluster.DefaultNInit,
		MaxIter:     cluster.DefaultMaxIter,
		Tolerance:   cluster.DefaultTol,
		Dataset:     dataset.DefaultOptions(),
	}
}

// Result is a successful run.
type Result struct {
	Table    *dataset.Table
	Personas []persona.Persona
	Clusters int
	Inertia  float64
	// Columns are the feature columns clustering ran on, in matrix order.
	Columns []string
}

// Response is the wire shape of a successful run.
type Response struct {
	Success  bool              `json:"success"`
	Personas []persona.Persona `json:"personas"`
}

// Response returns the JSON view of r.
func (r *Result) Response() Response {
	ps := r.Personas
	if ps == nil {
		ps = []persona.Persona{}
	}
	return Response{Success: true, Personas: ps}
}

// ErrTooLarge is wrapped by RunReader when input exceeds Options.MaxBytes.
var ErrTooLarge = errors.New("upload too large")

// RunReader reads the whole upload then runs the pipeline. A cancelled context or a
// transport failure during the read yields KindAborted before any computation.
func RunReader(ctx context.Context, r io.Reader, name string, opt Options) (*Result, error) {
	data, err := readAll(ctx, r, opt.MaxBytes)
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.Is(err, ErrTooLarge) || errors.As(err, &mbe) {
			return nil, &Error{Kind: KindTooLarge, Stage: "read", Err: err}
		}
		return nil, &Error{Kind: KindAborted, Stage: "read", Err: err}
	}
	return Run(ctx, data, name, opt)
}

// Run executes load -> encode -> scale -> cluster -> summarize on data.
// On failure no personas are returned and the error is a *Error.
func Run(ctx context.Context, data []byte, name string, opt Options) (*Result, error) {
	log := opt.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	if err := ctx.Err(); err != nil {
		return nil, &Error{Kind: KindAborted, Stage: "read", Err: err}
	}
	t, err := load(data, name, opt.Dataset)
	if err != nil {
		return nil, err
	}
	for _, w := range t.Warnings {
		log.Warn("dataset warning", "file", t.Name, "warning", w)
	}
	log.Debug("dataset loaded", "file", t.Name, "rows", t.Rows, "columns", len(t.Columns))
	for i := range t.Columns {
		c := &t.Columns[i]
		log.Debug("column", "file", t.Name, "name", c.Name, "kind", c.Kind.String(), "present", c.NonMissing())
	}
	if err := ctx.Err(); err != nil {
		return nil, &Error{Kind: KindAborted, Stage: "load", Err: err}
	}
	res, err := compute(t, opt)
	if err != nil {
		return nil, err
	}
	log.Debug("clustering done", "file", t.Name, "k", res.Clusters, "inertia", res.Inertia, "features", res.Columns)
	return res, nil
}

// load parses data under the same recover boundary as compute.
func load(data []byte, name string, opt dataset.Options) (t *dataset.Table, err error) {
	defer func() {
		if r := recover(); r != nil {
			t = nil
			err = &Error{Kind: KindInternal, Stage: "load", Err: fmt.Errorf("%v", r)}
		}
	}()
	t, err = dataset.Load(data, name, opt)
	if err != nil {
		return nil, classify("load", err)
	}
	return t, nil
}

// compute runs the pure stages under a recover boundary.
func compute(t *dataset.Table, opt Options) (res *Result, err error) {
	stage := "encode"
	defer func() {
		if r := recover(); r != nil {
			res = nil
			err = &Error{Kind: KindInternal, Stage: stage, Err: fmt.Errorf("%v", r)}
		}
	}()

	enc, err := features.Encode(t, features.EncodeOptions{IncludeCategorical: opt.IncludeCategorical})
	if err != nil {
		return nil, classify(stage, err)
	}
	stage = "scale"
	scaled, _ := features.Standardize(enc.Matrix)

	stage = "cluster"
	k := opt.MaxClusters
	if k < 1 {
		k = 1
	}
	if t.Rows < k {
		k = t.Rows
	}
	km := cluster.New(k,
		cluster.WithSeed(opt.Seed),
		cluster.WithNInit(opt.NInit),
		cluster.WithMaxIter(opt.MaxIter),
		cluster.WithTolerance(opt.Tolerance),
	)
	fit, err := km.Fit(scaled)
	if err != nil {
		return nil, classify(stage, err)
	}

	stage = "summarize"
	ps, err := persona.Summarize(t, fit.Labels, k)
	if err != nil {
		return nil, classify(stage, err)
	}
	return &Result{Table: t, Personas: ps, Clusters: k, Inertia: fit.Inertia, Columns: enc.Columns}, nil
}

// readAll reads r to EOF, giving up when ctx is done.
func readAll(ctx context.Context, r io.Reader, limit int64) ([]byte, error) {
	if limit > 0 {
		r = io.LimitReader(r, limit+1)
	}
	type result struct {
		data []byte
		err  error
	}
	done := make(chan result, 1)
	go func() {
		b, err := io.ReadAll(r)
		done <- result{b, err}
	}()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-done:
		if res.err != nil {
			return nil, res.err
		}
		if limit > 0 && int64(len(res.data)) > limit {
			return nil, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, limit)
		}
		return res.data, nil
	}
}
