package resolver

import (
	"context"

	lineage "github.com/coinlineage/lineage/pkg"
	"github.com/coinlineage/lineage/pkg/scanner"
)

// Parents resolves the parent of id and the other coins spent together
// with it.
//
// The parent's coin announcements commit to sha256(parent id ++ message).
// Any removal in the block that confirmed id which asserts one of those
// commitments was an input of the same transaction as the parent.
func (r *Resolver) Parents(ctx context.Context, id lineage.CoinID) (result lineage.Parents, err error) {
	ctx, cancel := r.withDeadline(ctx)
	defer cancel()
	defer func() {
		if err = settle(ctx, id, err); err != nil {
			result = lineage.Parents{}
		}
	}()

	rec, err := r.coinRecord(ctx, id)
	if err != nil {
		return
	}
	if rec.Coinbase {
		return lineage.Parents{}, lineage.NewErr(lineage.NoParent, "coin %s has no parent (farming reward or genesis)", id)
	}

	parentID := rec.Coin.ParentCoinInfo
	parent, err := r.ledger.GetCoinRecord(ctx, parentID)
	if err != nil {
		if lineage.IsNotFoundError(err) {
			return lineage.Parents{}, lineage.WrapErr(lineage.LedgerInconsistency, err, "parent %s of coin %s not found", parentID, id)
		}
		return
	}
	if parent.SpentBlockIndex != rec.ConfirmedBlockIndex {
		return lineage.Parents{}, lineage.NewErr(lineage.LedgerInconsistency, "parent %s of coin %s was spent at height %d, but the coin was confirmed at height %d", parentID, id, parent.SpentBlockIndex, rec.ConfirmedBlockIndex)
	}

	scan := r.newScanner()
	set, err := scan.Conditions(ctx, parent)
	if err != nil {
		return
	}

	result = lineage.Parents{Coin: rec, Parent: parent, Siblings: []lineage.CoinRecord{}, Commitments: []lineage.Commitment{}}
	for _, msg := range set.Messages(lineage.CreateCoinAnnouncement) {
		c := lineage.CoinAnnouncementCommitment(parentID, msg)
		r.log.Printf("Parents: %s coin announcement %x commits to %s", parentID, msg, c)
		result.Commitments = append(result.Commitments, c)
	}
	if len(result.Commitments) == 0 {
		r.log.Printf("Parents: %s made no coin announcements; no siblings to find", parentID)
		return result, nil
	}

	result.Siblings, err = r.siblings(ctx, scan, rec.ConfirmedBlockIndex, parentID, result.Commitments)
	if err != nil {
		return
	}
	r.log.Printf("Parents: %s resolved parent %s and %d siblings", id, parentID, len(result.Siblings))
	return result, nil
}

// siblings scans the block at height for removals asserting any of the
// parent's coin announcement commitments.
func (r *Resolver) siblings(ctx context.Context, scan *scanner.Scanner, height uint32, parentID lineage.CoinID, commitments []lineage.Commitment) ([]lineage.CoinRecord, error) {
	block, err := scan.Open(ctx, height)
	if err != nil {
		return nil, err
	}
	r.log.Printf("Parents: scanning %d removals of block %s for %d commitments", len(block.Removals), block.Record.HeaderHash, len(commitments))

	siblings, err := scanner.Collect(ctx, scan, block, func(removal lineage.CoinRecord, set lineage.ConditionSet) ([]lineage.CoinRecord, error) {
		if removal.ID() == parentID {
			return nil, nil // reported as the parent
		}
		for _, asserted := range set.Messages(lineage.AssertCoinAnnouncement) {
			if lineage.MatchesAny(commitments, asserted) {
				r.log.Printf("Parents: %s asserts %x", removal.ID(), asserted)
				return []lineage.CoinRecord{removal}, nil
			}
		}
		return nil, nil
	})
	if err != nil {
		return nil, err
	}
	if siblings == nil {
		siblings = []lineage.CoinRecord{} // encoded as '[]' in JSON
	}
	return siblings, nil
}
