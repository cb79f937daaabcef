package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"

	lineage "github.com/coinlineage/lineage/pkg"
	"github.com/coinlineage/lineage/pkg/chia"
)

// The node runs each block's spends itself and reports the conditions
// they emitted (get_block_spends_with_conditions). Evaluate uses that
// report for the block at the spend height, after checking the spend it
// was given is the one the node ran.

type wireOpcode uint8

// UnmarshalJSON accepts the opcode as a number or as hex ("0x33" or "33").
func (o *wireOpcode) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		raw, err := chia.HexDecode(str)
		if err != nil || len(raw) != 1 {
			return fmt.Errorf("invalid opcode %q", str)
		}
		*o = wireOpcode(raw[0])
		return nil
	}
	n, err := strconv.ParseUint(string(data), 10, 8)
	if err != nil {
		return fmt.Errorf("invalid opcode %s", string(data))
	}
	*o = wireOpcode(n)
	return nil
}

type wireCondition struct {
	Opcode wireOpcode         `json:"opcode"`
	Vars   []lineage.HexBytes `json:"vars"`
}

type spendWithConditions struct {
	CoinSpend  lineage.CoinSpend `json:"coin_spend"`
	Conditions []wireCondition   `json:"conditions"`
}

type evaluated struct {
	spend lineage.CoinSpend
	conds []lineage.Condition
}

func toConditions(wire []wireCondition) []lineage.Condition {
	conds := make([]lineage.Condition, 0, len(wire))
	for _, w := range wire {
		c := lineage.Condition{Opcode: lineage.Opcode(w.Opcode), Args: w.Vars}
		if c.Opcode == lineage.CreateCoin && len(c.Args) > 2 {
			c.Args = c.Args[:2] // drop the memo
		}
		conds = append(conds, c)
	}
	return conds
}

// GetBlockSpends implements lineage.SpendSource: every spend of the block
// at height with the conditions the node recorded for it.
func (f *FullNode) GetBlockSpends(ctx context.Context, height uint32) ([]lineage.EvaluatedSpend, error) {
	block, err := f.GetBlockRecord(ctx, height)
	if err != nil {
		return nil, err
	}
	var res struct {
		Spends []spendWithConditions `json:"block_spends_with_conditions"`
	}
	err = f.request(ctx, "get_block_spends_with_conditions", map[string]any{"header_hash": block.HeaderHash}, &res)
	if err != nil {
		return nil, err
	}
	spends := make([]lineage.EvaluatedSpend, 0, len(res.Spends))
	for _, s := range res.Spends {
		spend := s.CoinSpend
		spend.Height = height
		spends = append(spends, lineage.EvaluatedSpend{Spend: spend, Conditions: toConditions(s.Conditions)})
	}
	return spends, nil
}

func (f *FullNode) blockSpends(ctx context.Context, height uint32) (map[lineage.CoinID]evaluated, error) {
	list, err := f.GetBlockSpends(ctx, height)
	if err != nil {
		return nil, err
	}
	spends := make(map[lineage.CoinID]evaluated, len(list))
	for _, s := range list {
		spends[s.Spend.Coin.ID()] = evaluated{spend: s.Spend, conds: s.Conditions}
	}
	return spends, nil
}

func pick(spends map[lineage.CoinID]evaluated, spend lineage.CoinSpend) ([]lineage.Condition, error) {
	id := spend.Coin.ID()
	e, found := spends[id]
	if !found {
		return nil, fmt.Errorf("spend of %s not in block at height %d", id, spend.Height)
	}
	if !bytes.Equal(e.spend.PuzzleReveal, spend.PuzzleReveal) || !bytes.Equal(e.spend.Solution, spend.Solution) {
		return nil, fmt.Errorf("spend of %s does not match the spend run by the node", id)
	}
	return e.conds, nil
}

// Evaluate implements lineage.SpendEvaluator without any caching; each
// call fetches the whole block. Resolvers use Scope instead.
//
// costLimit is not applied: the node ran the spend when it validated the
// block, under the block cost limit, and reports only its conditions.
func (f *FullNode) Evaluate(ctx context.Context, spend lineage.CoinSpend, costLimit uint64) ([]lineage.Condition, error) {
	spends, err := f.blockSpends(ctx, spend.Height)
	if err != nil {
		return nil, err
	}
	return pick(spends, spend)
}

// Scope returns an evaluator that fetches each block's spends once for
// the duration of a query.
func (f *FullNode) Scope() lineage.SpendEvaluator {
	return &blockEvaluator{node: f, blocks: make(map[uint32]*blockEntry)}
}

type blockEntry struct {
	once   sync.Once
	spends map[lineage.CoinID]evaluated
	err    error
}

type blockEvaluator struct {
	node   *FullNode
	mu     sync.Mutex
	blocks map[uint32]*blockEntry
}

// Evaluate is FullNode.Evaluate with the block fetch shared across the scope.
func (b *blockEvaluator) Evaluate(ctx context.Context, spend lineage.CoinSpend, costLimit uint64) ([]lineage.Condition, error) {
	b.mu.Lock()
	entry, found := b.blocks[spend.Height]
	if !found {
		entry = &blockEntry{}
		b.blocks[spend.Height] = entry
	}
	b.mu.Unlock()

	entry.once.Do(func() {
		entry.spends, entry.err = b.node.blockSpends(ctx, spend.Height)
	})
	if entry.err != nil {
		return nil, entry.err
	}
	return pick(entry.spends, spend)
}
