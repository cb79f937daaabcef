package lineage

import (
	"encoding/json"
	"fmt"

	"github.com/coinlineage/lineage/pkg/chia"
)

// Bytes32 is a fixed-width hash: coin ids, puzzle hashes, header hashes.
type Bytes32 [32]byte

// CoinID is the hash of a coin's (parent id, puzzle hash, amount).
type CoinID = Bytes32

func Bytes32FromHex(str string) (Bytes32, error) {
	var b Bytes32
	raw, err := chia.HexDecode(str)
	if err != nil {
		return b, NewErr(BadRequest, "invalid hex %q: %v", str, err)
	}
	if len(raw) != len(b) {
		return b, NewErr(BadRequest, "expected 32 bytes, got %d: %q", len(raw), str)
	}
	copy(b[:], raw)
	return b, nil
}

func Bytes32FromBytes(raw []byte) (Bytes32, error) {
	var b Bytes32
	if len(raw) != len(b) {
		return b, fmt.Errorf("expected 32 bytes, got %d", len(raw))
	}
	copy(b[:], raw)
	return b, nil
}

func (b Bytes32) String() string {
	return chia.HexEncode0x(b[:])
}

func (b Bytes32) Bytes() []byte {
	return b[:]
}

func (b Bytes32) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.String())
}

func (b *Bytes32) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	v, err := Bytes32FromHex(str)
	if err != nil {
		return err
	}
	*b = v
	return nil
}

// HexBytes is a variable-length byte string that travels as 0x-hex in JSON.
type HexBytes []byte

func (h HexBytes) String() string {
	return chia.HexEncode0x(h)
}

func (h HexBytes) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.String())
}

func (h *HexBytes) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	raw, err := chia.HexDecode(str)
	if err != nil {
		return fmt.Errorf("invalid hex %q: %v", str, err)
	}
	*h = raw
	return nil
}

// Coin is a value record; its id is derived, never stored.
type Coin struct {
	ParentCoinInfo CoinID  `json:"parent_coin_info"`
	PuzzleHash     Bytes32 `json:"puzzle_hash"`
	Amount         uint64  `json:"amount"`
}

func (c Coin) ID() CoinID {
	var id CoinID
	copy(id[:], chia.CoinID(c.ParentCoinInfo[:], c.PuzzleHash[:], c.Amount))
	return id
}

// CoinRecord is the ledger's view of a coin's lifecycle.
type CoinRecord struct {
	Coin                Coin   `json:"coin"`
	ConfirmedBlockIndex uint32 `json:"confirmed_block_index"`
	SpentBlockIndex     uint32 `json:"spent_block_index"` // 0 = unspent
	Coinbase            bool   `json:"coinbase"`          // farming reward or genesis
	Timestamp           uint64 `json:"timestamp"`
}

func (r CoinRecord) ID() CoinID {
	return r.Coin.ID()
}

func (r CoinRecord) Spent() bool {
	return r.SpentBlockIndex != 0
}

type BlockRecord struct {
	HeaderHash Bytes32 `json:"header_hash"`
	Height     uint32  `json:"height"`
}

// CoinSpend is the (puzzle reveal, solution) pair that spent Coin,
// as fetched from the ledger at the coin's spend height.
type CoinSpend struct {
	Coin         Coin     `json:"coin"`
	PuzzleReveal HexBytes `json:"puzzle_reveal"`
	Solution     HexBytes `json:"solution"`
	Height       uint32   `json:"-"`
}
