// Package renderer formats portfolios and market data as markdown, for the
// terminal and for the assistant tools.
package renderer

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/denowallet/portfolio"
	md "github.com/nao1215/markdown"
)

func percent(v float64) string { return fmt.Sprintf("%+.2f%%", v) }

// BookMarkdown lists every portfolio with its value and the grand total.
func BookMarkdown(b *portfolio.Book) string {
	var buf bytes.Buffer
	doc := md.NewMarkdown(&buf)

	doc.H1("Portfolios")
	table := md.TableSet{
		Alignment: []md.TableAlignment{
			md.AlignRight,
			md.AlignLeft,
			md.AlignRight,
			md.AlignRight,
			md.AlignRight,
		},
		Header: []string{"ID", "Name", "Coins", "Value", "24h"},
		Rows:   [][]string{},
	}
	selected := b.Selected()
	for _, p := range b.Portfolios {
		name := p.Name
		if p == selected {
			name = md.Bold(name)
		}
		table.Rows = append(table.Rows, []string{
			strconv.Itoa(p.ID),
			name,
			strconv.Itoa(len(p.Coins)),
			portfolio.USD(p.Value).String(),
			portfolio.USD(p.Change24h).SignedString(),
		})
	}
	table.Rows = append(table.Rows, []string{
		"",
		md.Bold("Total"),
		"",
		md.Bold(b.TotalValue().String()),
		b.TotalChange24h().SignedString(),
	})
	doc.Table(table)

	return doc.String()
}

// PortfolioMarkdown details the holdings of p, largest allocation first as stored.
func PortfolioMarkdown(p *portfolio.Portfolio) string {
	var buf bytes.Buffer
	doc := md.NewMarkdown(&buf)

	doc.H1(fmt.Sprintf("%s %s", p.Icon, p.Name))
	doc.Table(md.TableSet{
		Alignment: []md.TableAlignment{md.AlignLeft, md.AlignRight},
		Header:    []string{md.Bold("Value"), md.Bold(portfolio.USD(p.Value).String())},
		Rows: [][]string{
			{"24h Change", portfolio.USD(p.Change24h).SignedString()},
		},
	})

	if len(p.Coins) == 0 {
		doc.PlainText("No coins yet.")
		return doc.String()
	}

	doc.H2("Holdings")
	table := md.TableSet{
		Alignment: []md.TableAlignment{
			md.AlignLeft,
			md.AlignLeft,
			md.AlignRight,
			md.AlignRight,
			md.AlignRight,
			md.AlignRight,
			md.AlignRight,
			md.AlignRight,
		},
		Header: []string{"Symbol", "Name", "Balance", "Price", "24h", "Value", "PnL", "Allocation"},
		Rows:   [][]string{},
	}
	for _, c := range p.Coins {
		table.Rows = append(table.Rows, []string{
			c.Symbol,
			c.Name,
			portfolio.Q(c.Balance).String(),
			portfolio.USD(c.Price).Precise(),
			percent(c.Change24h),
			portfolio.USD(c.Value).String(),
			fmt.Sprintf("%s (%s)", portfolio.USD(c.PnL).SignedString(), percent(c.PnLPercent)),
			fmt.Sprintf("%.2f%%", c.Allocation),
		})
	}
	doc.Table(table)

	return doc.String()
}
