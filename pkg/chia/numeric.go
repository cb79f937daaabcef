package chia

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

const (
	OneXCH = uint64(1_000_000_000_000) // in mojo
)

var OneXCHDec = decimal.NewFromBigInt(new(big.Int).SetUint64(OneXCH), 0)

func MojoToDecimal(mojo uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(mojo), 0).Div(OneXCHDec)
}

// IntToBytes encodes an amount the way the condition language encodes
// integers: minimal big-endian two's complement, zero is the empty atom.
func IntToBytes(val uint64) []byte {
	if val == 0 {
		return []byte{}
	}
	var buf [9]byte
	for i := 8; i > 0; i-- {
		buf[i] = byte(val)
		val >>= 8
	}
	p := 0
	// drop redundant leading zeroes, keeping one if the next byte has its high bit set.
	for p < 8 && buf[p] == 0 && buf[p+1] < 0x80 {
		p++
	}
	return buf[p:]
}

// BytesToUint64 decodes an integer atom as an unsigned amount.
// Negative values and values wider than 64 bits are rejected.
func BytesToUint64(b []byte) (uint64, error) {
	if len(b) > 0 && b[0]&0x80 != 0 {
		return 0, fmt.Errorf("negative integer atom: %x", b)
	}
	for len(b) > 0 && b[0] == 0 {
		b = b[1:]
	}
	if len(b) > 8 {
		return 0, fmt.Errorf("integer atom exceeds 64 bits: %x", b)
	}
	var val uint64
	for _, c := range b {
		val = val<<8 | uint64(c)
	}
	return val, nil
}
