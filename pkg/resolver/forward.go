package resolver

import (
	"context"

	lineage "github.com/coinlineage/lineage/pkg"
	"github.com/coinlineage/lineage/pkg/scanner"
)

// Children resolves the coins produced by the spend of id.
//
// A spend that creates coins is the only source of its children. When
// the spend instead asserts a puzzle announcement, the coins come from
// the spend in the same block whose CREATE_PUZZLE_ANNOUNCEMENT produced
// the asserted commitment.
func (r *Resolver) Children(ctx context.Context, id lineage.CoinID) (result lineage.Children, err error) {
	ctx, cancel := r.withDeadline(ctx)
	defer cancel()
	defer func() {
		if err = settle(ctx, id, err); err != nil {
			result = lineage.Children{}
		}
	}()

	rec, err := r.coinRecord(ctx, id)
	if err != nil {
		return
	}
	if !rec.Spent() {
		return lineage.Children{}, lineage.NewErr(lineage.NotSpent, "coin %s is not spent", id)
	}
	r.log.Printf("Children: %s was spent at height %d", id, rec.SpentBlockIndex)

	scan := r.newScanner()
	set, err := scan.Conditions(ctx, rec)
	if err != nil {
		return
	}
	result = lineage.Children{Coin: rec, Coins: []lineage.Coin{}, Commitments: []lineage.Commitment{}}

	creates := set.Has(lineage.CreateCoin)
	announces := set.Has(lineage.CreatePuzzleAnnouncement)
	asserts := set.Has(lineage.AssertPuzzleAnnouncement)

	switch {
	case !announces && !asserts:
		// No announcement to authenticate against; CREATE_COIN is taken as is.
		result.Coins, err = set.CreatedCoins(id)
		if err != nil {
			return
		}
		r.log.Printf("Children: %s has no puzzle announcements; %d created coins returned unauthenticated", id, len(result.Coins))

	case announces:
		if !creates {
			return lineage.Children{}, lineage.NewErr(lineage.InconsistentSpend, "spend of %s creates a puzzle announcement but no coins", id)
		}
		for _, msg := range set.Messages(lineage.CreatePuzzleAnnouncement) {
			c := lineage.PuzzleAnnouncementCommitment(rec.Coin.PuzzleHash, msg)
			r.log.Printf("Children: %s puzzle announcement %x commits to %s", id, msg, c)
			result.Commitments = append(result.Commitments, c)
		}
		result.Coins, err = set.CreatedCoins(id)
		if err != nil {
			return
		}
		result.Authenticated = true

	default: // asserts only
		if creates {
			return lineage.Children{}, lineage.NewErr(lineage.InconsistentSpend, "spend of %s both asserts a puzzle announcement and creates coins", id)
		}
		asserted := set.Messages(lineage.AssertPuzzleAnnouncement)
		result.Coins, result.Commitments, err = r.announcedChildren(ctx, scan, rec, asserted)
		if err != nil {
			return
		}
		result.Authenticated = true
	}
	r.log.Printf("Children: %s resolved %d children", id, len(result.Coins))
	return result, nil
}

type announcedMatch struct {
	announcer  lineage.CoinID
	commitment lineage.Commitment
	coins      []lineage.Coin
}

// announcedChildren scans the block the coin was spent in for spends whose
// puzzle announcements produce one of the asserted commitments, and
// returns the coins those spends created.
func (r *Resolver) announcedChildren(ctx context.Context, scan *scanner.Scanner, rec lineage.CoinRecord, asserted [][]byte) ([]lineage.Coin, []lineage.Commitment, error) {
	block, err := scan.Open(ctx, rec.SpentBlockIndex)
	if err != nil {
		return nil, nil, err
	}
	r.log.Printf("Children: scanning %d removals of block %s for %d asserted puzzle announcements", len(block.Removals), block.Record.HeaderHash, len(asserted))

	matches, err := scanner.Collect(ctx, scan, block, func(removal lineage.CoinRecord, set lineage.ConditionSet) ([]announcedMatch, error) {
		for _, msg := range set.Messages(lineage.CreatePuzzleAnnouncement) {
			c := lineage.PuzzleAnnouncementCommitment(removal.Coin.PuzzleHash, msg)
			if !assertedAny(asserted, c) {
				continue
			}
			if !set.Has(lineage.CreateCoin) {
				return nil, lineage.NewErr(lineage.InconsistentSpend, "spend of %s announces asserted %s but creates no coins", removal.ID(), c)
			}
			coins, err := set.CreatedCoins(removal.ID())
			if err != nil {
				return nil, err
			}
			// one match per removal: its coins are listed once.
			return []announcedMatch{{announcer: removal.ID(), commitment: c, coins: coins}}, nil
		}
		return nil, nil
	})
	if err != nil {
		return nil, nil, err
	}

	coins := []lineage.Coin{}
	commitments := []lineage.Commitment{}
	for _, m := range matches {
		r.log.Printf("Children: %s matched by spend of %s", m.commitment, m.announcer)
		coins = append(coins, m.coins...)
		commitments = append(commitments, m.commitment)
	}
	return coins, commitments, nil
}

func assertedAny(asserted [][]byte, c lineage.Commitment) bool {
	for _, a := range asserted {
		if lineage.Matches(c, a) {
			return true
		}
	}
	return false
}
