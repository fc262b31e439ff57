// Package conditions evaluates action conditions. How a single condition is
// decided is up to an injected Resolver; the Evaluator only fans the
// evaluations out and combines them.
package conditions

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/nathoo/storyscript/types"
)

// Resolver returns the current value of the boolean a condition queries.
// Implementations must be safe for concurrent use.
type Resolver interface {
	Resolve(ctx context.Context, c types.ActionCondition) (bool, error)
}

// ResolverFunc adapts a plain function to Resolver.
type ResolverFunc func(ctx context.Context, c types.ActionCondition) (bool, error)

// Resolve calls f(ctx, c).
func (f ResolverFunc) Resolve(ctx context.Context, c types.ActionCondition) (bool, error) {
	return f(ctx, c)
}

// Evaluator checks conditions with a Resolver.
type Evaluator struct {
	resolver Resolver
	timeout  time.Duration
	log      *zap.Logger
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithTimeout bounds every single evaluation. Zero means no bound beyond
// the caller's context.
func WithTimeout(d time.Duration) Option {
	return func(e *Evaluator) { e.timeout = d }
}

// WithLogger sets the logger used for evaluation diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(e *Evaluator) {
		if l != nil {
			e.log = l
		}
	}
}

// NewEvaluator returns an Evaluator that decides conditions with r.
func NewEvaluator(r Resolver, opts ...Option) *Evaluator {
	e := &Evaluator{resolver: r, log: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Check reports whether one condition holds, that is whether the queried
// boolean equals the condition's expected value.
func (e *Evaluator) Check(ctx context.Context, c types.ActionCondition) (bool, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}
	got, err := e.resolver.Resolve(ctx, c)
	if err != nil {
		return false, fmt.Errorf("evaluating %s: %w", c, err)
	}
	e.log.Debug("condition evaluated",
		zap.Stringer("condition", c),
		zap.Bool("value", got),
		zap.Bool("holds", got == c.Expected))
	return got == c.Expected, nil
}

// CheckAll evaluates every condition concurrently and returns their AND.
// All evaluations run to completion even when one is already false, so an
// interactive resolver asks every question. The order in which evaluations
// run is unspecified. An empty list holds. Any resolver error, including a
// timeout, fails the whole check.
func (e *Evaluator) CheckAll(ctx context.Context, conds []types.ActionCondition) (bool, error) {
	if len(conds) == 0 {
		return true, nil
	}

	results := make([]bool, len(conds))
	g, gctx := errgroup.WithContext(ctx)
	for i, c := range conds {
		g.Go(func() error {
			ok, err := e.Check(gctx, c)
			results[i] = ok
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return false, err
	}

	all := true
	for _, ok := range results {
		all = all && ok
	}
	return all, nil
}
