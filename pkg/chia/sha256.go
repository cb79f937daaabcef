package chia

import "crypto/sha256"

type Hash256 = []byte

// Sha256 hashes the concatenation of parts, with no separator between them.
func Sha256(parts ...[]byte) Hash256 {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
	}
	return h.Sum(nil)
}

// CoinID is sha256(parent ++ puzzle_hash ++ int(amount)), the name the
// ledger gives a coin.
func CoinID(parent []byte, puzzleHash []byte, amount uint64) Hash256 {
	return Sha256(parent, puzzleHash, IntToBytes(amount))
}
