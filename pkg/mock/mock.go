// Package mock provides an in-memory ledger and spend evaluator for tests.
package mock

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	lineage "github.com/coinlineage/lineage/pkg"
	"github.com/coinlineage/lineage/pkg/chia"
)

// interface guards ensure Ledger implements the collaborator interfaces
var _ lineage.Ledger = (*Ledger)(nil)
var _ lineage.SpendEvaluator = (*Ledger)(nil)
var _ lineage.SpendSource = (*Ledger)(nil)

type spendEntry struct {
	spend lineage.CoinSpend
	conds []lineage.Condition
}

/*
 * Ledger is a mocked ledger: coins, blocks and spends are added by the
 * test, and each spend's conditions are stated up front rather than
 * computed. It doubles as the SpendEvaluator for those spends.
 */
type Ledger struct {
	mu        sync.Mutex
	coins     map[lineage.CoinID]lineage.CoinRecord
	blocks    map[uint32]lineage.BlockRecord
	heights   map[lineage.Bytes32]uint32
	additions map[uint32][]lineage.CoinID
	removals  map[uint32][]lineage.CoinID
	spends    map[lineage.CoinID]spendEntry

	// EvaluateErr fails evaluation of specific coins.
	EvaluateErr map[lineage.CoinID]error
	// EvaluateDelay, if set, delays each evaluation (honouring ctx).
	EvaluateDelay func(id lineage.CoinID) time.Duration

	LedgerCalls   atomic.Int64
	EvaluateCalls atomic.Int64
}

func NewLedger() *Ledger {
	return &Ledger{
		coins:       make(map[lineage.CoinID]lineage.CoinRecord),
		blocks:      make(map[uint32]lineage.BlockRecord),
		heights:     make(map[lineage.Bytes32]uint32),
		additions:   make(map[uint32][]lineage.CoinID),
		removals:    make(map[uint32][]lineage.CoinID),
		spends:      make(map[lineage.CoinID]spendEntry),
		EvaluateErr: make(map[lineage.CoinID]error),
	}
}

// HeaderHash is the fake header hash of the block at height.
func HeaderHash(height uint32) lineage.Bytes32 {
	var h [4]byte
	binary.BigEndian.PutUint32(h[:], height)
	var b lineage.Bytes32
	copy(b[:], chia.Sha256([]byte("block"), h[:]))
	return b
}

// PuzzleReveal is the fake puzzle reveal recorded for a coin's spend.
func PuzzleReveal(id lineage.CoinID) []byte {
	return append([]byte("puzzle:"), id[:]...)
}

func (l *Ledger) ensureBlock(height uint32) {
	if _, found := l.blocks[height]; !found {
		rec := lineage.BlockRecord{HeaderHash: HeaderHash(height), Height: height}
		l.blocks[height] = rec
		l.heights[rec.HeaderHash] = height
	}
}

// AddBlock makes an (empty) block exist at height.
func (l *Ledger) AddBlock(height uint32) lineage.BlockRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ensureBlock(height)
	return l.blocks[height]
}

// AddCoin confirms coin at height.
func (l *Ledger) AddCoin(coin lineage.Coin, height uint32, coinbase bool) lineage.CoinRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ensureBlock(height)
	rec := lineage.CoinRecord{Coin: coin, ConfirmedBlockIndex: height, Coinbase: coinbase, Timestamp: 1600000000 + uint64(height)*18}
	id := coin.ID()
	l.coins[id] = rec
	l.additions[height] = append(l.additions[height], id)
	return rec
}

// Spend spends a known coin at height with the given conditions.
// Removals are listed in the order Spend is called.
func (l *Ledger) Spend(id lineage.CoinID, height uint32, conds ...lineage.Condition) lineage.CoinRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, found := l.coins[id]
	if !found {
		panic(fmt.Sprintf("mock: spend of unknown coin %s", id))
	}
	l.ensureBlock(height)
	rec.SpentBlockIndex = height
	l.coins[id] = rec
	l.removals[height] = append(l.removals[height], id)
	l.spends[id] = spendEntry{
		spend: lineage.CoinSpend{Coin: rec.Coin, PuzzleReveal: PuzzleReveal(id), Solution: []byte("solution")},
		conds: conds,
	}
	return rec
}

func (l *Ledger) Record(id lineage.CoinID) lineage.CoinRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.coins[id]
}

func (l *Ledger) GetCoinRecord(ctx context.Context, id lineage.CoinID) (lineage.CoinRecord, error) {
	l.LedgerCalls.Add(1)
	if err := ctx.Err(); err != nil {
		return lineage.CoinRecord{}, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, found := l.coins[id]
	if !found {
		return lineage.CoinRecord{}, lineage.NewErr(lineage.NotFound, "coin record %s not found", id)
	}
	return rec, nil
}

func (l *Ledger) GetBlockRecord(ctx context.Context, height uint32) (lineage.BlockRecord, error) {
	l.LedgerCalls.Add(1)
	if err := ctx.Err(); err != nil {
		return lineage.BlockRecord{}, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, found := l.blocks[height]
	if !found {
		return lineage.BlockRecord{}, lineage.NewErr(lineage.NotFound, "block height %d not found", height)
	}
	return rec, nil
}

func (l *Ledger) GetAdditionsAndRemovals(ctx context.Context, headerHash lineage.Bytes32) ([]lineage.CoinRecord, []lineage.CoinRecord, error) {
	l.LedgerCalls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	height, found := l.heights[headerHash]
	if !found {
		return nil, nil, lineage.NewErr(lineage.NotFound, "block %s not found", headerHash)
	}
	return l.records(l.additions[height]), l.records(l.removals[height]), nil
}

func (l *Ledger) records(ids []lineage.CoinID) []lineage.CoinRecord {
	out := make([]lineage.CoinRecord, 0, len(ids))
	for _, id := range ids {
		out = append(out, l.coins[id])
	}
	return out
}

func (l *Ledger) GetPuzzleAndSolution(ctx context.Context, id lineage.CoinID, height uint32) (lineage.CoinSpend, error) {
	l.LedgerCalls.Add(1)
	if err := ctx.Err(); err != nil {
		return lineage.CoinSpend{}, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	entry, found := l.spends[id]
	if !found || l.coins[id].SpentBlockIndex != height {
		return lineage.CoinSpend{}, lineage.NewErr(lineage.NotFound, "no spend of %s at height %d", id, height)
	}
	return entry.spend, nil
}

func (l *Ledger) Evaluate(ctx context.Context, spend lineage.CoinSpend, costLimit uint64) ([]lineage.Condition, error) {
	l.EvaluateCalls.Add(1)
	id := spend.Coin.ID()
	if l.EvaluateDelay != nil {
		select {
		case <-time.After(l.EvaluateDelay(id)):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.EvaluateErr[id]; err != nil {
		return nil, err
	}
	entry, found := l.spends[id]
	if !found || !bytes.Equal(entry.spend.PuzzleReveal, spend.PuzzleReveal) {
		return nil, fmt.Errorf("mock: puzzle reveal does not belong to %s", id)
	}
	return entry.conds, nil
}

func (l *Ledger) GetBlockSpends(ctx context.Context, height uint32) ([]lineage.EvaluatedSpend, error) {
	l.LedgerCalls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, found := l.blocks[height]; !found {
		return nil, lineage.NewErr(lineage.NotFound, "block height %d not found", height)
	}
	out := []lineage.EvaluatedSpend{}
	for _, id := range l.removals[height] {
		entry := l.spends[id]
		spend := entry.spend
		spend.Height = height
		out = append(out, lineage.EvaluatedSpend{Spend: spend, Conditions: entry.conds})
	}
	return out, nil
}
