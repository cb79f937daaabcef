package scanner

import (
	"context"
	"sync"
	"sync/atomic"

	lineage "github.com/coinlineage/lineage/pkg"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultWorkers   = 8
	DefaultCostLimit = uint64(11_000_000_000) // max block cost
)

type Options struct {
	Workers   int    // concurrent evaluations per block scan
	CostLimit uint64 // passed to the evaluator
	// Progress, if set, is called after each removal is evaluated.
	// Calls are serialised.
	Progress func(done int, total int)
}

// Block is one block's removals, in ledger order.
type Block struct {
	Record   lineage.BlockRecord
	Removals []lineage.CoinRecord
}

type memo struct {
	once sync.Once
	set  lineage.ConditionSet
	err  error
}

/*
 * Scanner lists the coins a block removed and evaluates their spends on
 * demand. ConditionSets are memoized for the life of the Scanner, which
 * is one query: a removal visited by several candidate matches (or the
 * parent that is also a removal of the scanned block) is evaluated once.
 */
type Scanner struct {
	ledger lineage.Ledger
	eval   lineage.SpendEvaluator
	opts   Options

	mu    sync.Mutex
	cache map[lineage.CoinID]*memo

	progressMu sync.Mutex
}

func New(ledger lineage.Ledger, eval lineage.SpendEvaluator, opts Options) *Scanner {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.CostLimit == 0 {
		opts.CostLimit = DefaultCostLimit
	}
	if scoped, ok := eval.(lineage.ScopedEvaluator); ok {
		eval = scoped.Scope()
	}
	return &Scanner{
		ledger: ledger,
		eval:   eval,
		opts:   opts,
		cache:  make(map[lineage.CoinID]*memo),
	}
}

// Open resolves the block at height and lists its removals.
func (s *Scanner) Open(ctx context.Context, height uint32) (Block, error) {
	rec, err := s.ledger.GetBlockRecord(ctx, height)
	if err != nil {
		if lineage.IsNotFoundError(err) {
			return Block{}, lineage.WrapErr(lineage.NotFound, err, "block at height %d not found", height)
		}
		return Block{}, err
	}
	_, removals, err := s.ledger.GetAdditionsAndRemovals(ctx, rec.HeaderHash)
	if err != nil {
		if lineage.IsNotFoundError(err) {
			return Block{}, lineage.WrapErr(lineage.NotFound, err, "block %s (height %d) not found", rec.HeaderHash, height)
		}
		return Block{}, err
	}
	return Block{Record: rec, Removals: removals}, nil
}

// Conditions returns the ConditionSet of a spent coin, evaluating its
// spend at the recorded spend height the first time it is asked for.
func (s *Scanner) Conditions(ctx context.Context, rec lineage.CoinRecord) (lineage.ConditionSet, error) {
	id := rec.ID()
	s.mu.Lock()
	m, found := s.cache[id]
	if !found {
		m = &memo{}
		s.cache[id] = m
	}
	s.mu.Unlock()

	m.once.Do(func() {
		m.set, m.err = s.evaluate(ctx, id, rec)
	})
	if m.err != nil && ctx.Err() != nil {
		// a cancelled evaluation is not a property of the coin; let a
		// later caller (with a live context) try again.
		s.mu.Lock()
		if s.cache[id] == m {
			delete(s.cache, id)
		}
		s.mu.Unlock()
	}
	return m.set, m.err
}

func (s *Scanner) evaluate(ctx context.Context, id lineage.CoinID, rec lineage.CoinRecord) (lineage.ConditionSet, error) {
	if !rec.Spent() {
		return lineage.ConditionSet{}, lineage.NewErr(lineage.LedgerInconsistency, "coin %s has no recorded spend", id)
	}
	spend, err := s.ledger.GetPuzzleAndSolution(ctx, id, rec.SpentBlockIndex)
	if err != nil {
		if lineage.IsNotFoundError(err) {
			return lineage.ConditionSet{}, lineage.WrapErr(lineage.LedgerInconsistency, err, "spend of %s at height %d not found", id, rec.SpentBlockIndex)
		}
		return lineage.ConditionSet{}, err
	}
	spend.Height = rec.SpentBlockIndex
	conds, err := s.eval.Evaluate(ctx, spend, s.opts.CostLimit)
	if err != nil {
		if ctx.Err() != nil {
			return lineage.ConditionSet{}, err
		}
		return lineage.ConditionSet{}, lineage.WrapErr(lineage.EvaluationFailed, err, "evaluating spend of %s at height %d", id, rec.SpentBlockIndex)
	}
	set, err := lineage.NewConditionSet(conds)
	if err != nil {
		return lineage.ConditionSet{}, lineage.WrapErr(lineage.MalformedCondition, err, "spend of %s", id)
	}
	return set, nil
}

// Collect evaluates every removal of block with a bounded pool of workers
// and gathers what match returns for each. Results are in removal order
// regardless of completion order. The first error aborts the scan.
func Collect[T any](ctx context.Context, s *Scanner, block Block, match func(removal lineage.CoinRecord, set lineage.ConditionSet) ([]T, error)) ([]T, error) {
	found := make([][]T, len(block.Removals))
	var done atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)
	for i, removal := range block.Removals {
		i, removal := i, removal
		g.Go(func() error {
			set, err := s.Conditions(gctx, removal)
			if err != nil {
				return err
			}
			matches, err := match(removal, set)
			if err != nil {
				return err
			}
			found[i] = matches
			s.progress(int(done.Add(1)), len(block.Removals))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var result []T
	for _, matches := range found {
		result = append(result, matches...)
	}
	return result, nil
}

func (s *Scanner) progress(done, total int) {
	if s.opts.Progress == nil {
		return
	}
	s.progressMu.Lock()
	defer s.progressMu.Unlock()
	s.opts.Progress(done, total)
}
