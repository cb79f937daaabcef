package lineage

import "context"

// Ledger represents read access to confirmed ledger state.
//
// Implementations report absent coins and blocks with a NotFound ErrorInfo.
// Transport retries belong here, never in the resolver.
type Ledger interface {
	GetCoinRecord(ctx context.Context, id CoinID) (CoinRecord, error)
	GetBlockRecord(ctx context.Context, height uint32) (BlockRecord, error)
	// GetAdditionsAndRemovals returns the coins a block created and the
	// coins it spent, in ledger order.
	GetAdditionsAndRemovals(ctx context.Context, headerHash Bytes32) (additions []CoinRecord, removals []CoinRecord, err error)
	// GetPuzzleAndSolution fetches the spend of a coin at its spend height.
	GetPuzzleAndSolution(ctx context.Context, id CoinID, height uint32) (CoinSpend, error)
}

// SpendEvaluator runs a coin's puzzle reveal against its solution and
// returns the conditions it emits. Spend programs are deterministic,
// so callers never retry a failed evaluation.
type SpendEvaluator interface {
	Evaluate(ctx context.Context, spend CoinSpend, costLimit uint64) ([]Condition, error)
}

// ScopedEvaluator is implemented by evaluators that keep state for the
// duration of one query. Scope is called once per query and the
// returned evaluator is dropped when the query ends.
type ScopedEvaluator interface {
	SpendEvaluator
	Scope() SpendEvaluator
}

// EvaluatedSpend is a spend together with the conditions it emitted.
type EvaluatedSpend struct {
	Spend      CoinSpend
	Conditions []Condition
}

// SpendSource reports every spend of a block with its conditions, in
// removal order. Snapshots are built from it.
type SpendSource interface {
	GetBlockSpends(ctx context.Context, height uint32) ([]EvaluatedSpend, error)
}

// Resolver answers lineage queries for a coin.
type Resolver interface {
	Children(ctx context.Context, id CoinID) (Children, error)
	Parents(ctx context.Context, id CoinID) (Parents, error)
}
