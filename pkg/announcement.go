package lineage

import (
	"bytes"

	"github.com/coinlineage/lineage/pkg/chia"
)

// Commitment binds an announcing coin to its message:
// sha256(origin ++ message) with no separator, where origin is the
// puzzle hash (puzzle announcements) or the coin id (coin announcements).
// Any change here silently breaks every lineage result.
type Commitment Bytes32

func (c Commitment) String() string {
	return Bytes32(c).String()
}

func (c Commitment) MarshalJSON() ([]byte, error) {
	return Bytes32(c).MarshalJSON()
}

func (c *Commitment) UnmarshalJSON(data []byte) error {
	return (*Bytes32)(c).UnmarshalJSON(data)
}

func PuzzleAnnouncementCommitment(puzzleHash Bytes32, message []byte) Commitment {
	return commit(puzzleHash[:], message)
}

func CoinAnnouncementCommitment(coinID CoinID, message []byte) Commitment {
	return commit(coinID[:], message)
}

func commit(origin []byte, message []byte) (c Commitment) {
	copy(c[:], chia.Sha256(origin, message))
	return
}

// Matches reports whether an ASSERT_*_ANNOUNCEMENT argument is this
// commitment, byte for byte.
func Matches(c Commitment, asserted []byte) bool {
	return bytes.Equal(c[:], asserted)
}

// MatchesAny reports whether asserted equals any of commitments.
func MatchesAny(commitments []Commitment, asserted []byte) bool {
	for _, c := range commitments {
		if Matches(c, asserted) {
			return true
		}
	}
	return false
}
