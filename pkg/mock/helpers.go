package mock

import (
	lineage "github.com/coinlineage/lineage/pkg"
	"github.com/coinlineage/lineage/pkg/chia"
)

// Hash returns a Bytes32 filled with b, for readable fixtures.
func Hash(b byte) (out lineage.Bytes32) {
	for i := range out {
		out[i] = b
	}
	return
}

func CreateCoin(puzzleHash lineage.Bytes32, amount uint64) lineage.Condition {
	return lineage.NewCondition(lineage.CreateCoin, puzzleHash[:], chia.IntToBytes(amount))
}

func CreateCoinAnnouncement(msg []byte) lineage.Condition {
	return lineage.NewCondition(lineage.CreateCoinAnnouncement, msg)
}

func AssertCoinAnnouncement(c lineage.Commitment) lineage.Condition {
	return lineage.NewCondition(lineage.AssertCoinAnnouncement, c[:])
}

func CreatePuzzleAnnouncement(msg []byte) lineage.Condition {
	return lineage.NewCondition(lineage.CreatePuzzleAnnouncement, msg)
}

func AssertPuzzleAnnouncement(c lineage.Commitment) lineage.Condition {
	return lineage.NewCondition(lineage.AssertPuzzleAnnouncement, c[:])
}
