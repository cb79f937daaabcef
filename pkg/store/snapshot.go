package store

import (
	"context"

	lineage "github.com/coinlineage/lineage/pkg"
)

type SnapshotStats struct {
	Blocks int
	Coins  int
	Spends int
}

// Snapshot copies blocks from..to (inclusive) into s: each block header,
// the coins it created and spent, and every spend with the conditions it
// emitted. Removal order is preserved. Blocks may be copied in any order
// and copying a block again is harmless.
func (s SQLite) Snapshot(ctx context.Context, ledger lineage.Ledger, spends lineage.SpendSource, from uint32, to uint32, progress func(height uint32)) (stats SnapshotStats, err error) {
	for height := from; height <= to; height++ {
		if err = s.snapshotBlock(ctx, ledger, spends, height, &stats); err != nil {
			return
		}
		stats.Blocks++
		if progress != nil {
			progress(height)
		}
		if height == ^uint32(0) {
			break
		}
	}
	return
}

func (s SQLite) snapshotBlock(ctx context.Context, ledger lineage.Ledger, spends lineage.SpendSource, height uint32, stats *SnapshotStats) error {
	block, err := ledger.GetBlockRecord(ctx, height)
	if err != nil {
		return err
	}
	additions, removals, err := ledger.GetAdditionsAndRemovals(ctx, block.HeaderHash)
	if err != nil {
		return err
	}
	evaluated, err := spends.GetBlockSpends(ctx, height)
	if err != nil {
		return err
	}
	if err = s.PutBlock(block); err != nil {
		return err
	}

	// Additions are stored unspent unless already known: their spend
	// belongs to a later block and is recorded, in order, with its removals.
	for _, rec := range additions {
		_, err := s.GetCoinRecord(ctx, rec.ID())
		if err == nil {
			continue
		}
		if !lineage.IsNotFoundError(err) {
			return err
		}
		rec.SpentBlockIndex = 0
		if err = s.PutCoinRecord(rec); err != nil {
			return err
		}
		stats.Coins++
	}

	for _, rec := range removals {
		if rec.SpentBlockIndex != height {
			return lineage.NewErr(lineage.LedgerInconsistency, "removal %s of block %d is recorded as spent at %d", rec.ID(), height, rec.SpentBlockIndex)
		}
		if err = s.PutCoinRecord(rec); err != nil {
			return err
		}
		stats.Coins++
	}

	for _, e := range evaluated {
		spend := e.Spend
		spend.Height = height
		if err = s.PutSpend(spend, e.Conditions); err != nil {
			return err
		}
		stats.Spends++
	}
	return nil
}
