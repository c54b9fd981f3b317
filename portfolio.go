package portfolio

import (
	"slices"
	"strings"
)

// Portfolio is a named group of holdings, typically one per exchange account.
type Portfolio struct {
	ID        int     `json:"id" yaml:"id"`
	Name      string  `json:"name" yaml:"name"`
	Icon      string  `json:"icon" yaml:"icon"`
	IconBg    string  `json:"iconBg" yaml:"iconBg"`
	Coins     []Coin  `json:"coins" yaml:"coins"`
	Value     float64 `json:"value" yaml:"-"`
	Change24h float64 `json:"change24h" yaml:"-"` // absolute change over 24h, in USD.
}

// Coin returns the holding with the given symbol.
func (p *Portfolio) Coin(symbol string) (*Coin, bool) {
	i := p.index(symbol)
	if i < 0 {
		return nil, false
	}
	return &p.Coins[i], true
}

func (p *Portfolio) index(symbol string) int {
	return slices.IndexFunc(p.Coins, func(c Coin) bool { return strings.EqualFold(c.Symbol, symbol) })
}

// Total returns the sum of the holdings' values.
func (p *Portfolio) Total() Money {
	total := USD(0)
	for _, c := range p.Coins {
		total = total.Add(USD(c.Value))
	}
	return total
}

// sum recomputes the portfolio value and its 24h change from the holdings.
func (p *Portfolio) sum() {
	total, change := USD(0), USD(0)
	for _, c := range p.Coins {
		v := USD(c.Value)
		total = total.Add(v)
		change = change.Add(v.Percent(c.Change24h))
	}
	p.Value = total.Float64()
	p.Change24h = change.Float64()
}

// UpdateValues recomputes every derived field of the portfolio: holdings'
// value and P&L, the portfolio value and 24h change, and each holding's
// allocation.
//
// An empty or worthless portfolio has all allocations set to 0.
func (p *Portfolio) UpdateValues() {
	for i := range p.Coins {
		p.Coins[i].revalue()
	}
	p.sum()
	total := p.Total()
	for i := range p.Coins {
		if total.IsZero() {
			p.Coins[i].Allocation = 0
			continue
		}
		p.Coins[i].Allocation = USD(p.Coins[i].Value).Ratio(total)
	}
}

// AddCoin adds a holding to the portfolio, merging it into an existing holding
// with the same symbol.
func (p *Portfolio) AddCoin(c Coin) {
	c.Symbol = strings.ToUpper(c.Symbol)
	if existing, ok := p.Coin(c.Symbol); ok {
		existing.merge(c)
	} else {
		c.revalue()
		p.Coins = append(p.Coins, c)
	}
	p.UpdateValues()
}

// RemoveCoin removes the holding with the given symbol. It reports whether a
// holding was removed.
func (p *Portfolio) RemoveCoin(symbol string) bool {
	n := len(p.Coins)
	p.Coins = slices.DeleteFunc(p.Coins, func(c Coin) bool { return strings.EqualFold(c.Symbol, symbol) })
	p.UpdateValues()
	return len(p.Coins) != n
}
