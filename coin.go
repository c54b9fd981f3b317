package portfolio

import "strings"

// Coin is a holding of one crypto asset inside a portfolio.
//
// Price and change fields come from the price feed, Balance and AvgBuyPrice
// are entered by the user, the remaining fields are derived. Field names
// match the stored JSON layout so that a book written by any client reads
// back unchanged.
type Coin struct {
	ID          string  `json:"id,omitempty" yaml:"id"` // CoinGecko id, used to refresh the price.
	Name        string  `json:"name" yaml:"name"`
	Symbol      string  `json:"symbol" yaml:"symbol"`
	Icon        string  `json:"icon,omitempty" yaml:"icon"`
	Price       float64 `json:"price" yaml:"price"`
	Change1h    float64 `json:"change1h" yaml:"change1h"`
	Change24h   float64 `json:"change24h" yaml:"change24h"`
	Change7d    float64 `json:"change7d" yaml:"change7d"`
	Balance     float64 `json:"balance" yaml:"balance"`
	AvgBuyPrice float64 `json:"avgBuyPrice,omitempty" yaml:"avgBuyPrice"`
	Value       float64 `json:"value" yaml:"value"`
	PnL         float64 `json:"pnl,omitempty" yaml:"-"`
	PnLPercent  float64 `json:"pnlPercent,omitempty" yaml:"-"`
	Allocation  float64 `json:"allocation" yaml:"allocation"`
}

// NewCoin returns a holding of balance coins priced at price.
func NewCoin(id, name, symbol string, balance, price float64) Coin {
	c := Coin{
		ID:          id,
		Name:        name,
		Symbol:      strings.ToUpper(symbol),
		Balance:     balance,
		Price:       price,
		AvgBuyPrice: price,
	}
	c.revalue()
	return c
}

// MarketValue returns balance × price.
func (c Coin) MarketValue() Money { return USD(c.Price).Mul(Q(c.Balance)) }

// Cost returns balance × average buy price.
func (c Coin) Cost() Money { return USD(c.AvgBuyPrice).Mul(Q(c.Balance)) }

// revalue recomputes the value and the profit and loss of the holding.
func (c *Coin) revalue() {
	value := c.MarketValue()
	c.Value = value.Float64()
	c.PnL, c.PnLPercent = 0, 0
	if c.AvgBuyPrice == 0 {
		return
	}
	cost := c.Cost()
	pnl := value.Sub(cost)
	c.PnL = pnl.Float64()
	if !cost.IsZero() {
		c.PnLPercent = pnl.Ratio(cost)
	}
}

// merge adds the balance of o into c.
//
// The average buy price becomes the balance-weighted average of both legs. A
// leg without a buy price does not dilute the average of the other.
func (c *Coin) merge(o Coin) {
	switch {
	case c.AvgBuyPrice == 0:
		c.AvgBuyPrice = o.AvgBuyPrice
	case o.AvgBuyPrice == 0:
	default:
		total := Q(c.Balance).Add(Q(o.Balance))
		if total.IsPositive() {
			cost := c.Cost().Add(o.Cost())
			c.AvgBuyPrice = cost.Div(total).Float64()
		}
	}
	c.Balance = Q(c.Balance).Add(Q(o.Balance)).Float64()
	if c.ID == "" {
		c.ID = o.ID
	}
	if c.Icon == "" {
		c.Icon = o.Icon
	}
	c.revalue()
}
