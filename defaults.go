package portfolio

import (
	_ "embed"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// DefaultPortfolios returns the seed portfolios.
//
// Seeded holdings keep their stored value and allocation, only the portfolio
// totals are computed.
func DefaultPortfolios() []*Portfolio {
	var portfolios []*Portfolio
	if err := yaml.Unmarshal(defaultsYAML, &portfolios); err != nil {
		panic("invalid embedded default portfolios: " + err.Error())
	}
	for _, p := range portfolios {
		p.sum()
	}
	return portfolios
}

// DefaultBook returns a book of the seed portfolios.
func DefaultBook() *Book { return NewBook(DefaultPortfolios()...) }
