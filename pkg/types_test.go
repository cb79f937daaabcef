package lineage

import (
	"encoding/json"
	"testing"
)

func TestBytes32Hex(t *testing.T) {
	const hex = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	b, err := Bytes32FromHex(hex)
	if err != nil {
		t.Fatalf("Bytes32FromHex: %v", err)
	}
	if b != fill(0xaa) || b.String() != hex {
		t.Errorf("Bytes32FromHex: wrong value %s", b)
	}
	if _, err := Bytes32FromHex(hex[2:]); err != nil {
		t.Errorf("Bytes32FromHex: rejected hex without 0x: %v", err)
	}
	if _, err := Bytes32FromHex("0xaabb"); !IsError(err, BadRequest) {
		t.Errorf("Bytes32FromHex: expected bad-request for short hex, got %v", err)
	}
	if _, err := Bytes32FromHex("0xzz"); !IsError(err, BadRequest) {
		t.Errorf("Bytes32FromHex: expected bad-request for bad hex, got %v", err)
	}
}

func TestCoinRecordJSON(t *testing.T) {
	// shape returned by the full node RPC
	payload := `{
		"coin": {
			"parent_coin_info": "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
			"puzzle_hash": "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb",
			"amount": 1000
		},
		"confirmed_block_index": 10,
		"spent_block_index": 12,
		"spent": true,
		"coinbase": false,
		"timestamp": 1600000000
	}`
	var rec CoinRecord
	if err := json.Unmarshal([]byte(payload), &rec); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !rec.Spent() || rec.ConfirmedBlockIndex != 10 || rec.SpentBlockIndex != 12 {
		t.Errorf("unexpected record: %+v", rec)
	}
	if rec.ID().String() != "0x305057db732d14a534fced00451a4122aa2a788211bf7dfc190bc9b25ccee035" {
		t.Errorf("unexpected coin id: %s", rec.ID())
	}
}

func TestFormatAmount(t *testing.T) {
	if s := FormatAmount(1_750_000_000_000); s != "1.75 XCH (1750000000000 mojo)" {
		t.Errorf("FormatAmount: %s", s)
	}
	p := Parents{
		Parent:   CoinRecord{Coin: Coin{Amount: 1_000_000_000_000}},
		Siblings: []CoinRecord{{Coin: Coin{Amount: 500_000_000_000}}},
	}
	if s := p.Total().String(); s != "1.5" {
		t.Errorf("Parents.Total: %s", s)
	}
}
