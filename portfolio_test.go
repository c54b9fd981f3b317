package portfolio

import (
	"math"
	"testing"
)

func near(a, b float64) bool { return math.Abs(a-b) < 1e-6 }

func TestPortfolio_UpdateValues(t *testing.T) {
	p := &Portfolio{Coins: []Coin{
		{Symbol: "BTC", Price: 100000, Balance: 0.5, Change24h: 2},
		{Symbol: "ETH", Price: 4000, Balance: 10, Change24h: -5},
		{Symbol: "DOGE", Price: 0.2, Balance: 5000},
	}}
	p.UpdateValues()

	if want := 0.5*100000 + 10*4000 + 5000*0.2; !near(p.Value, want) {
		t.Errorf("Value = %v, want %v", p.Value, want)
	}
	if want := 50000*0.02 - 40000*0.05; !near(p.Change24h, want) {
		t.Errorf("Change24h = %v, want %v", p.Change24h, want)
	}
	sum := 0.0
	for _, c := range p.Coins {
		sum += c.Allocation
	}
	if !near(sum, 100) {
		t.Errorf("sum of allocations = %v, want 100", sum)
	}
	if c, _ := p.Coin("btc"); !near(c.Allocation, 50000/91000.0*100) {
		t.Errorf("BTC allocation = %v, want %v", c.Allocation, 50000/91000.0*100)
	}
}

func TestPortfolio_UpdateValues_Empty(t *testing.T) {
	testCases := []struct {
		name  string
		coins []Coin
	}{
		{name: "no coins"},
		{name: "zero balance", coins: []Coin{{Symbol: "BTC", Price: 100000}, {Symbol: "ETH", Price: 4000}}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p := &Portfolio{Coins: tc.coins}
			p.UpdateValues()
			if p.Value != 0 || p.Change24h != 0 {
				t.Errorf("Value, Change24h = %v, %v, want 0, 0", p.Value, p.Change24h)
			}
			for _, c := range p.Coins {
				if c.Allocation != 0 || math.IsNaN(c.Allocation) {
					t.Errorf("%s allocation = %v, want 0", c.Symbol, c.Allocation)
				}
			}
		})
	}
}

func TestPortfolio_AddCoin(t *testing.T) {
	p := &Portfolio{}
	p.AddCoin(Coin{ID: "bitcoin", Name: "Bitcoin", Symbol: "btc", Price: 100, Balance: 1, AvgBuyPrice: 80})
	p.AddCoin(Coin{ID: "bitcoin", Name: "Bitcoin", Symbol: "BTC", Price: 120, Balance: 3, AvgBuyPrice: 100})
	p.AddCoin(Coin{ID: "ethereum", Name: "Ethereum", Symbol: "ETH", Price: 10, Balance: 2})

	if len(p.Coins) != 2 {
		t.Fatalf("len(Coins) = %d, want 2", len(p.Coins))
	}
	btc, ok := p.Coin("BTC")
	if !ok {
		t.Fatalf("Coin(BTC) not found")
	}
	if btc.Balance != 4 {
		t.Errorf("BTC Balance = %v, want 4", btc.Balance)
	}
	// the existing holding keeps its own price.
	if btc.Value != 400 {
		t.Errorf("BTC Value = %v, want 400", btc.Value)
	}
	if want := (80.0 + 300.0) / 4; !near(btc.AvgBuyPrice, want) {
		t.Errorf("BTC AvgBuyPrice = %v, want %v", btc.AvgBuyPrice, want)
	}
	if want := 400 - 380.0; !near(btc.PnL, want) {
		t.Errorf("BTC PnL = %v, want %v", btc.PnL, want)
	}
	if p.Value != 420 {
		t.Errorf("Value = %v, want 420", p.Value)
	}
}

func TestPortfolio_RemoveCoin(t *testing.T) {
	p := &Portfolio{}
	p.AddCoin(NewCoin("bitcoin", "Bitcoin", "BTC", 1, 100))
	p.AddCoin(NewCoin("ethereum", "Ethereum", "ETH", 1, 300))

	if !p.RemoveCoin("eth") {
		t.Fatalf("RemoveCoin(eth) = false, want true")
	}
	if p.RemoveCoin("ETH") {
		t.Errorf("RemoveCoin(ETH) twice = true, want false")
	}
	if p.Value != 100 {
		t.Errorf("Value = %v, want 100", p.Value)
	}
	if c, _ := p.Coin("BTC"); c.Allocation != 100 {
		t.Errorf("BTC allocation = %v, want 100", c.Allocation)
	}
}

func TestDefaultPortfolios(t *testing.T) {
	portfolios := DefaultPortfolios()
	if len(portfolios) != 3 {
		t.Fatalf("len(DefaultPortfolios()) = %d, want 3", len(portfolios))
	}
	names := []string{"Bing.x", "Binance", "Gate.io"}
	for i, p := range portfolios {
		if p.Name != names[i] || p.ID != i+1 {
			t.Errorf("portfolio %d = %d %q, want %d %q", i, p.ID, p.Name, i+1, names[i])
		}
		sum := 0.0
		for _, c := range p.Coins {
			sum += c.Value
			if c.ID == "" {
				t.Errorf("%s has no price feed id", c.Symbol)
			}
		}
		if !near(p.Value, sum) {
			t.Errorf("%s Value = %v, want %v", p.Name, p.Value, sum)
		}
	}
	if got := portfolios[0].Change24h; !near(got, 788.24*-3.15/100) {
		t.Errorf("Bing.x Change24h = %v, want %v", got, 788.24*-3.15/100)
	}
}
