package lineage

import (
	"testing"

	"github.com/coinlineage/lineage/pkg/chia"
)

func TestConditionSetGrouping(t *testing.T) {
	set, err := NewConditionSet([]Condition{
		NewCondition(CreateCoinAnnouncement, []byte("first")),
		NewCondition(CreateCoin, fill(0xbb).Bytes(), chia.IntToBytes(1000)),
		NewCondition(Opcode(50), []byte("pubkey"), []byte("msg")), // AGG_SIG_ME, ignored
		NewCondition(CreateCoinAnnouncement, []byte("second")),
	})
	if err != nil {
		t.Fatalf("NewConditionSet: %v", err)
	}
	if set.Len() != 4 {
		t.Errorf("expected 4 conditions, got %d", set.Len())
	}
	msgs := set.Messages(CreateCoinAnnouncement)
	if len(msgs) != 2 || string(msgs[0]) != "first" || string(msgs[1]) != "second" {
		t.Errorf("announcement order not preserved: %q", msgs)
	}
	ops := set.Opcodes()
	if len(ops) != 3 || ops[0] != CreateCoinAnnouncement || ops[1] != CreateCoin || ops[2] != Opcode(50) {
		t.Errorf("unexpected opcode order: %v", ops)
	}
	if set.Has(AssertPuzzleAnnouncement) {
		t.Error("unexpected ASSERT_PUZZLE_ANNOUNCEMENT")
	}
	if Opcode(50).Known() || Opcode(50).String() != "OPCODE_50" {
		t.Errorf("unexpected name for unknown opcode: %s", Opcode(50))
	}
}

func TestConditionSetArity(t *testing.T) {
	bad := [][]Condition{
		{NewCondition(CreateCoin, fill(0xbb).Bytes())},
		{NewCondition(CreateCoin, fill(0xbb).Bytes(), []byte{1}, []byte("memo"))},
		{NewCondition(CreatePuzzleAnnouncement)},
		{NewCondition(AssertCoinAnnouncement, []byte{1}, []byte{2})},
	}
	for i, conds := range bad {
		if _, err := NewConditionSet(conds); !IsError(err, MalformedCondition) {
			t.Errorf("case %d: expected malformed-condition, got %v", i, err)
		}
	}
	// unknown opcodes have no arity rule
	if _, err := NewConditionSet([]Condition{NewCondition(Opcode(1))}); err != nil {
		t.Errorf("unknown opcode rejected: %v", err)
	}
}

func TestCreatedCoins(t *testing.T) {
	parent := fill(0xaa)
	set, err := NewConditionSet([]Condition{
		NewCondition(CreateCoin, fill(0xbb).Bytes(), chia.IntToBytes(1000)),
		NewCondition(CreateCoin, fill(0xcc).Bytes(), chia.IntToBytes(0)),
	})
	if err != nil {
		t.Fatalf("NewConditionSet: %v", err)
	}
	coins, err := set.CreatedCoins(parent)
	if err != nil {
		t.Fatalf("CreatedCoins: %v", err)
	}
	if len(coins) != 2 {
		t.Fatalf("expected 2 coins, got %d", len(coins))
	}
	want := Coin{ParentCoinInfo: parent, PuzzleHash: fill(0xbb), Amount: 1000}
	if coins[0] != want {
		t.Errorf("unexpected first coin: %+v", coins[0])
	}
	if coins[0].ID().String() != "0x305057db732d14a534fced00451a4122aa2a788211bf7dfc190bc9b25ccee035" {
		t.Errorf("unexpected coin id %s", coins[0].ID())
	}
	if coins[1].Amount != 0 || coins[1].PuzzleHash != fill(0xcc) {
		t.Errorf("unexpected second coin: %+v", coins[1])
	}
}

func TestCreatedCoinsMalformed(t *testing.T) {
	cases := []Condition{
		NewCondition(CreateCoin, []byte{0xbb}, chia.IntToBytes(1)),         // short puzzle hash
		NewCondition(CreateCoin, fill(0xbb).Bytes(), []byte{0x80}),         // negative amount
		NewCondition(CreateCoin, fill(0xbb).Bytes(), []byte{0x00}),      // zero, fine
	}
	for i, c := range cases {
		set, err := NewConditionSet([]Condition{c})
		if err != nil {
			t.Fatalf("case %d: NewConditionSet: %v", i, err)
		}
		_, err = set.CreatedCoins(fill(0xaa))
		if i < 2 && !IsError(err, MalformedCondition) {
			t.Errorf("case %d: expected malformed-condition, got %v", i, err)
		}
		if i == 2 && err != nil {
			t.Errorf("case %d: unexpected error %v", i, err)
		}
	}
}
