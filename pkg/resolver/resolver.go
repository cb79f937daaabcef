package resolver

import (
	"context"
	"errors"
	"io"
	"log"
	"time"

	lineage "github.com/coinlineage/lineage/pkg"
	"github.com/coinlineage/lineage/pkg/scanner"
)

// interface guard ensures Resolver implements lineage.Resolver
var _ lineage.Resolver = (*Resolver)(nil)

type Options struct {
	Workers   int
	CostLimit uint64
	// Timeout bounds each query unless the caller's context already has
	// a deadline. Zero means no bound.
	Timeout  time.Duration
	Progress func(done int, total int)
}

// Resolver answers lineage queries by matching announcement commitments
// across the spends of one block. It holds no state between queries.
type Resolver struct {
	ledger lineage.Ledger
	eval   lineage.SpendEvaluator
	opts   Options
	log    *log.Logger
}

func New(ledger lineage.Ledger, eval lineage.SpendEvaluator, opts Options, logger *log.Logger) *Resolver {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Resolver{ledger: ledger, eval: eval, opts: opts, log: logger}
}

func NewFromConfig(conf lineage.Config, ledger lineage.Ledger, eval lineage.SpendEvaluator, logger *log.Logger) *Resolver {
	return New(ledger, eval, Options{
		Workers:   conf.Resolver.Workers,
		CostLimit: conf.Resolver.CostLimit,
		Timeout:   time.Duration(conf.Resolver.QueryTimeoutSeconds) * time.Second,
	}, logger)
}

// WithProgress returns a copy of r that reports block scan progress.
func (r *Resolver) WithProgress(progress func(done int, total int)) *Resolver {
	c := *r
	c.opts.Progress = progress
	return &c
}

func (r *Resolver) newScanner() *scanner.Scanner {
	return scanner.New(r.ledger, r.eval, scanner.Options{
		Workers:   r.opts.Workers,
		CostLimit: r.opts.CostLimit,
		Progress:  r.opts.Progress,
	})
}

func (r *Resolver) withDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, has := ctx.Deadline(); has || r.opts.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.opts.Timeout)
}

// settle turns an aborted query into a timeout error; no partial results
// are returned for it.
func settle(ctx context.Context, id lineage.CoinID, err error) error {
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return lineage.WrapErr(lineage.Timeout, ctxErr, "query for %s exceeded its deadline", id)
		}
		return lineage.WrapErr(lineage.Timeout, ctxErr, "query for %s was cancelled", id)
	}
	return err
}

// coinRecord fetches the queried coin.
func (r *Resolver) coinRecord(ctx context.Context, id lineage.CoinID) (lineage.CoinRecord, error) {
	rec, err := r.ledger.GetCoinRecord(ctx, id)
	if err != nil {
		if lineage.IsNotFoundError(err) {
			return rec, lineage.WrapErr(lineage.NotFound, err, "coin %s not found", id)
		}
		return rec, err
	}
	return rec, nil
}
