package coingecko

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

const (
	listingPages   = 4
	listingPerPage = 250
)

// Listing is a coin that can be added to a portfolio.
type Listing struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Symbol    string  `json:"symbol"`
	Icon      string  `json:"icon"`
	Price     float64 `json:"price"`
	Change24h float64 `json:"change24h"`
	MarketCap float64 `json:"marketCap"`
}

// ListCoins returns the top 1000 coins by market cap.
//
// The pages are fetched concurrently, any failed page fails the listing.
func (c *Client) ListCoins(ctx context.Context) ([]Listing, error) {
	pages := make([][]Market, listingPages)
	errs := make([]error, listingPages)
	var wg sync.WaitGroup
	for i := range listingPages {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pages[i], errs[i] = c.Markets(ctx, MarketsQuery{PerPage: listingPerPage, Page: i + 1, Locale: "tr"})
		}()
	}
	wg.Wait()

	var listings []Listing
	for i, page := range pages {
		if errs[i] != nil {
			return nil, fmt.Errorf("cannot list coins page %d: %w", i+1, errs[i])
		}
		for _, m := range page {
			listings = append(listings, Listing{
				ID:        m.ID,
				Name:      m.Name,
				Symbol:    strings.ToUpper(m.Symbol),
				Icon:      m.Image,
				Price:     m.CurrentPrice,
				Change24h: m.PriceChangePercentage24h,
				MarketCap: m.MarketCap,
			})
		}
	}
	return listings, nil
}

// Lookup returns the listing matching query by id, or else by symbol.
func Lookup(listings []Listing, query string) (Listing, bool) {
	for _, l := range listings {
		if l.ID == query {
			return l, true
		}
	}
	for _, l := range listings {
		if strings.EqualFold(l.Symbol, query) {
			return l, true
		}
	}
	return Listing{}, false
}
