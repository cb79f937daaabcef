package lineage

import (
	"fmt"

	"github.com/coinlineage/lineage/pkg/chia"
	"github.com/shopspring/decimal"
)

type CoinAmount = decimal.Decimal

var ZeroCoins = decimal.NewFromInt(0)

func MojoToXCH(mojo uint64) CoinAmount {
	return chia.MojoToDecimal(mojo)
}

// FormatAmount renders mojo as "1.5 XCH (1500000000000 mojo)".
func FormatAmount(mojo uint64) string {
	return fmt.Sprintf("%s XCH (%d mojo)", MojoToXCH(mojo).String(), mojo)
}
