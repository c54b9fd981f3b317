// Package portfolio provides the types and functions to track crypto holdings
// across several exchange portfolios. It is designed to be local-first: the
// whole book of portfolios is persisted verbatim, as JSON, under a single key
// of a key/value store, so that any client can read and rewrite it.
//
// The core functionalities include:
//   - Holdings: coins identified by their CoinGecko id and symbol, with a
//     balance, an average buy price and the last known market price.
//   - Valuation: every mutation recomputes the derived value, 24h change and
//     allocation of the affected portfolio, using exact decimal arithmetic.
//   - Price refresh: latest prices fetched in bulk are applied to every
//     holding of every portfolio.
//   - History: portfolio value reconstructed over a trailing window from
//     per-coin price charts.
//
// This package serves as the foundational logic for the `dw` command-line
// tool and the market-data service.
package portfolio
