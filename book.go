package portfolio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// StorageKey is the key under which the book is persisted.
const StorageKey = "crypto-portfolios"

// ErrPortfolioNotFound is returned when a portfolio id does not exist in the book.
var ErrPortfolioNotFound = errors.New("portfolio not found")

// KV is the key/value storage the book is persisted to.
type KV interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Quote is the latest USD price of a coin and its 24h change in percent.
type Quote struct {
	USD       float64 `json:"usd"`
	Change24h float64 `json:"usd_24h_change"`
}

// Book is the ordered list of portfolios and the currently selected one.
type Book struct {
	Portfolios []*Portfolio
	selected   int
}

// NewBook returns a book of the given portfolios, with the first one selected.
func NewBook(portfolios ...*Portfolio) *Book {
	b := &Book{Portfolios: portfolios}
	if len(portfolios) > 0 {
		b.selected = portfolios[0].ID
	}
	return b
}

// LoadBook reads the book stored under StorageKey.
//
// A missing or undecodable value yields the default portfolios, only a
// storage failure is returned as an error.
func LoadBook(ctx context.Context, kv KV) (*Book, error) {
	raw, ok, err := kv.Get(ctx, StorageKey)
	if err != nil {
		return nil, fmt.Errorf("cannot read %q: %w", StorageKey, err)
	}
	if !ok {
		return DefaultBook(), nil
	}
	var portfolios []*Portfolio
	if err := json.Unmarshal([]byte(raw), &portfolios); err != nil {
		zap.L().Warn("stored portfolios are not valid JSON, using defaults", zap.Error(err))
		return DefaultBook(), nil
	}
	return NewBook(portfolios...), nil
}

// Save writes the book verbatim under StorageKey.
func (b *Book) Save(ctx context.Context, kv KV) error {
	for _, p := range b.Portfolios {
		if p.Coins == nil {
			p.Coins = []Coin{}
		}
	}
	data, err := json.Marshal(b.Portfolios)
	if err != nil {
		return err
	}
	if err := kv.Set(ctx, StorageKey, string(data)); err != nil {
		return fmt.Errorf("cannot write %q: %w", StorageKey, err)
	}
	return nil
}

// Reset deletes the stored book and returns the default one.
func Reset(ctx context.Context, kv KV) (*Book, error) {
	if err := kv.Delete(ctx, StorageKey); err != nil {
		return nil, fmt.Errorf("cannot delete %q: %w", StorageKey, err)
	}
	return LoadBook(ctx, kv)
}

// Portfolio returns the portfolio with the given id.
func (b *Book) Portfolio(id int) (*Portfolio, error) {
	for _, p := range b.Portfolios {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%w: %d", ErrPortfolioNotFound, id)
}

// Find returns the portfolio whose name matches, case insensitively.
func (b *Book) Find(name string) (*Portfolio, error) {
	for _, p := range b.Portfolios {
		if strings.EqualFold(p.Name, name) {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrPortfolioNotFound, name)
}

// Select makes id the selected portfolio.
func (b *Book) Select(id int) error {
	if _, err := b.Portfolio(id); err != nil {
		return err
	}
	b.selected = id
	return nil
}

// Selected returns the selected portfolio, nil for an empty book.
func (b *Book) Selected() *Portfolio {
	p, err := b.Portfolio(b.selected)
	if err != nil {
		return nil
	}
	return p
}

// AddPortfolio appends an empty portfolio with the next free id.
func (b *Book) AddPortfolio(name, icon, iconBg string) *Portfolio {
	id := 0
	for _, p := range b.Portfolios {
		id = max(id, p.ID)
	}
	p := &Portfolio{ID: id + 1, Name: name, Icon: icon, IconBg: iconBg, Coins: []Coin{}}
	b.Portfolios = append(b.Portfolios, p)
	if len(b.Portfolios) == 1 {
		b.selected = p.ID
	}
	return p
}

// AddCoin adds a holding to the portfolio id.
func (b *Book) AddCoin(id int, c Coin) error {
	p, err := b.Portfolio(id)
	if err != nil {
		return err
	}
	p.AddCoin(c)
	return nil
}

// RemoveCoin removes the holding with symbol from the portfolio id.
func (b *Book) RemoveCoin(id int, symbol string) error {
	p, err := b.Portfolio(id)
	if err != nil {
		return err
	}
	if !p.RemoveCoin(symbol) {
		return fmt.Errorf("no %s holding in portfolio %q", strings.ToUpper(symbol), p.Name)
	}
	return nil
}

// IDs returns the distinct CoinGecko ids of all holdings, in book order.
func (b *Book) IDs() []string {
	seen := make(map[string]bool)
	var ids []string
	for _, p := range b.Portfolios {
		for _, c := range p.Coins {
			if c.ID == "" || seen[c.ID] {
				continue
			}
			seen[c.ID] = true
			ids = append(ids, c.ID)
		}
	}
	return ids
}

// ApplyPrices updates the price and 24h change of every holding found in
// quotes, keyed by CoinGecko id, and recomputes every portfolio.
//
// It returns the number of holdings updated.
func (b *Book) ApplyPrices(quotes map[string]Quote) int {
	n := 0
	for _, p := range b.Portfolios {
		for i := range p.Coins {
			q, ok := quotes[p.Coins[i].ID]
			if !ok {
				continue
			}
			p.Coins[i].Price = q.USD
			p.Coins[i].Change24h = q.Change24h
			n++
		}
		p.UpdateValues()
	}
	return n
}

// TotalValue returns the value of all portfolios.
func (b *Book) TotalValue() Money {
	total := USD(0)
	for _, p := range b.Portfolios {
		total = total.Add(USD(p.Value))
	}
	return total
}

// TotalChange24h returns the 24h change of all portfolios.
func (b *Book) TotalChange24h() Money {
	total := USD(0)
	for _, p := range b.Portfolios {
		total = total.Add(USD(p.Change24h))
	}
	return total
}
