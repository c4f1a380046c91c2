// Package batch runs the abstract interpreter over every method of a
// session in parallel.
package batch

import (
	"context"
	"errors"
	"runtime"
	"time"

	"github.com/apex/log"
	"golang.org/x/sync/errgroup"

	"github.com/daimatz/deobvm/pkg/analysis"
	"github.com/daimatz/deobvm/pkg/frame"
	"github.com/daimatz/deobvm/pkg/ir"
	"github.com/daimatz/deobvm/pkg/session"
)

// Options tunes a batch run.
type Options struct {
	// Workers bounds concurrent analyses; 0 uses GOMAXPROCS.
	Workers int
	// Timeout is the wall-clock budget per method; 0 means none.
	Timeout time.Duration
}

// Item is the outcome for one method. Exactly one of Result and Err is set
// unless the method was skipped for running out of time.
type Item struct {
	Class   *ir.Class
	Method  *ir.Method
	Result  *frame.Result
	Err     error
	Skipped bool
}

// Report lists the items in class then method order.
type Report struct {
	Items []*Item
}

// Failed returns the items whose analysis failed.
func (r *Report) Failed() []*Item {
	var out []*Item
	for _, it := range r.Items {
		if it.Err != nil {
			out = append(out, it)
		}
	}
	return out
}

// Skipped returns the items that ran out of time.
func (r *Report) Skipped() []*Item {
	var out []*Item
	for _, it := range r.Items {
		if it.Skipped {
			out = append(out, it)
		}
	}
	return out
}

// Analyze analyzes every method with code in the classes under analysis.
// Per-method failures and timeouts are recorded in the report and never
// abort the run; only cancellation of ctx does.
func Analyze(ctx context.Context, s *session.Session, opts Options) (*Report, error) {
	var items []*Item
	for _, c := range s.Classes.Classes() {
		for _, m := range c.Methods {
			if m.HasCode() {
				items = append(items, &Item{Class: c, Method: m})
			}
		}
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	a := analysis.New(s)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, it := range items {
		it := it
		g.Go(func() error {
			return analyzeOne(gctx, s.Log, a, it, opts.Timeout)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	r := &Report{Items: items}
	s.Log.WithFields(log.Fields{
		"methods": len(items),
		"failed":  len(r.Failed()),
		"skipped": len(r.Skipped()),
	}).Info("batch analysis finished")
	return r, nil
}

func analyzeOne(ctx context.Context, logger log.Interface, a *analysis.Analyzer, it *Item, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	mctx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		mctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	res, err := a.AnalyzeContext(mctx, it.Class, it.Method)
	if err == nil {
		it.Result = res
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	entry := logger.WithFields(log.Fields{
		"class":  it.Class.Name,
		"method": it.Method.Name + it.Method.Desc,
	})
	if errors.Is(err, context.DeadlineExceeded) {
		it.Skipped = true
		entry.WithField("timeout", timeout).Warn("skipping method: analysis timed out")
		return nil
	}
	it.Err = err
	entry.WithError(err).Warn("skipping method: analysis failed")
	return nil
}
