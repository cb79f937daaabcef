package lineage

import (
	"fmt"

	"github.com/coinlineage/lineage/pkg/chia"
)

// Opcode identifies a spend condition.
type Opcode uint8

const (
	CreateCoin               Opcode = 51
	CreateCoinAnnouncement   Opcode = 60
	AssertCoinAnnouncement   Opcode = 61
	CreatePuzzleAnnouncement Opcode = 62
	AssertPuzzleAnnouncement Opcode = 63
)

var opcodeNames = map[Opcode]string{
	CreateCoin:               "CREATE_COIN",
	CreateCoinAnnouncement:   "CREATE_COIN_ANNOUNCEMENT",
	AssertCoinAnnouncement:   "ASSERT_COIN_ANNOUNCEMENT",
	CreatePuzzleAnnouncement: "CREATE_PUZZLE_ANNOUNCEMENT",
	AssertPuzzleAnnouncement: "ASSERT_PUZZLE_ANNOUNCEMENT",
}

func (o Opcode) String() string {
	if name, found := opcodeNames[o]; found {
		return name
	}
	return fmt.Sprintf("OPCODE_%d", uint8(o))
}

// Known is false for opcodes lineage resolution does not interpret.
func (o Opcode) Known() bool {
	_, found := opcodeNames[o]
	return found
}

// Arity is the exact argument count required of a known opcode.
func (o Opcode) Arity() int {
	switch o {
	case CreateCoin:
		return 2
	case CreateCoinAnnouncement, AssertCoinAnnouncement, CreatePuzzleAnnouncement, AssertPuzzleAnnouncement:
		return 1
	}
	return -1
}

// Condition is one condition emitted by running a spend.
type Condition struct {
	Opcode Opcode     `json:"opcode"`
	Args   []HexBytes `json:"vars"`
}

func NewCondition(op Opcode, args ...[]byte) Condition {
	c := Condition{Opcode: op, Args: make([]HexBytes, len(args))}
	for i, a := range args {
		c.Args[i] = a
	}
	return c
}

// ConditionSet groups one spend's conditions by opcode.
// Order within an opcode is the order the spend emitted them.
type ConditionSet struct {
	byOpcode map[Opcode][]Condition
	order    []Opcode // first-seen order of opcodes
}

func NewConditionSet(conds []Condition) (ConditionSet, error) {
	s := ConditionSet{byOpcode: make(map[Opcode][]Condition, len(conds))}
	for i, c := range conds {
		if want := c.Opcode.Arity(); want >= 0 && len(c.Args) != want {
			return ConditionSet{}, NewErr(MalformedCondition, "condition #%d %s has %d args, expected %d", i, c.Opcode, len(c.Args), want)
		}
		if _, seen := s.byOpcode[c.Opcode]; !seen {
			s.order = append(s.order, c.Opcode)
		}
		s.byOpcode[c.Opcode] = append(s.byOpcode[c.Opcode], c)
	}
	return s, nil
}

func (s ConditionSet) Has(op Opcode) bool {
	return len(s.byOpcode[op]) > 0
}

func (s ConditionSet) Get(op Opcode) []Condition {
	return s.byOpcode[op]
}

// Opcodes lists the opcodes present, in the order first emitted.
func (s ConditionSet) Opcodes() []Opcode {
	return s.order
}

func (s ConditionSet) Len() int {
	n := 0
	for _, c := range s.byOpcode {
		n += len(c)
	}
	return n
}

// Messages returns the single argument of every announcement condition of op.
func (s ConditionSet) Messages(op Opcode) [][]byte {
	conds := s.byOpcode[op]
	msgs := make([][]byte, 0, len(conds))
	for _, c := range conds {
		msgs = append(msgs, c.Args[0])
	}
	return msgs
}

// CreatedCoins derives the coins made by this spend's CREATE_COIN
// conditions. Every child's parent is the spending coin.
func (s ConditionSet) CreatedCoins(parent CoinID) ([]Coin, error) {
	conds := s.byOpcode[CreateCoin]
	coins := make([]Coin, 0, len(conds))
	for i, c := range conds {
		puzzleHash, err := Bytes32FromBytes(c.Args[0])
		if err != nil {
			return nil, NewErr(MalformedCondition, "CREATE_COIN #%d of %s: puzzle hash: %v", i, parent, err)
		}
		amount, err := chia.BytesToUint64(c.Args[1])
		if err != nil {
			return nil, NewErr(MalformedCondition, "CREATE_COIN #%d of %s: amount: %v", i, parent, err)
		}
		coins = append(coins, Coin{ParentCoinInfo: parent, PuzzleHash: puzzleHash, Amount: amount})
	}
	return coins, nil
}
