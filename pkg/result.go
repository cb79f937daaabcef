package lineage

// Children is the answer to a forward query: the coins a spent coin produced.
type Children struct {
	Coin CoinRecord `json:"coin"`
	// Coins are in discovery order: block removal order, then condition order.
	Coins []Coin `json:"children"`
	// Commitments are the puzzle-announcement commitments that were
	// computed or matched while resolving.
	Commitments []Commitment `json:"commitments"`
	// Authenticated is false when the children were read straight from
	// CREATE_COIN with no announcement to cross-check them.
	Authenticated bool `json:"authenticated"`
}

func (c Children) Total() CoinAmount {
	total := ZeroCoins
	for _, coin := range c.Coins {
		total = total.Add(MojoToXCH(coin.Amount))
	}
	return total
}

// Parents is the answer to a backward query: the coin's parent and the
// other inputs spent alongside it.
type Parents struct {
	Coin   CoinRecord `json:"coin"`
	Parent CoinRecord `json:"parent"`
	// Siblings are in block removal order.
	Siblings    []CoinRecord `json:"siblings"`
	Commitments []Commitment `json:"commitments"`
}

func (p Parents) Total() CoinAmount {
	total := MojoToXCH(p.Parent.Coin.Amount)
	for _, rec := range p.Siblings {
		total = total.Add(MojoToXCH(rec.Coin.Amount))
	}
	return total
}
