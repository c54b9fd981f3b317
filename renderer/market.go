package renderer

import (
	"bytes"
	"fmt"

	"github.com/denowallet/portfolio"
	"github.com/denowallet/portfolio/collect"
	"github.com/denowallet/portfolio/indicator"
	md "github.com/nao1215/markdown"
)

const na = "N/A"

func price(v *float64) string {
	if v == nil {
		return na
	}
	return portfolio.USD(*v).String()
}

func number(v *float64, digits int) string {
	if v == nil {
		return na
	}
	return fmt.Sprintf("%.*f", digits, *v)
}

// TechnicalsMarkdown renders the indicators of one day.
func TechnicalsMarkdown(t indicator.Technicals) string {
	var buf bytes.Buffer
	doc := md.NewMarkdown(&buf)

	doc.H1(fmt.Sprintf("%s Technicals on %s", t.Symbol, t.Date))
	technicalsTable(doc, t)
	return doc.String()
}

func technicalsTable(doc *md.Markdown, t indicator.Technicals) {
	doc.Table(md.TableSet{
		Alignment: []md.TableAlignment{md.AlignLeft, md.AlignRight},
		Header:    []string{"Indicator", "Value"},
		Rows: [][]string{
			{"RSI (14)", number(t.RSI14, 2)},
			{"MACD", number(t.MACD, 4)},
			{"MACD Signal", number(t.MACDSignal, 4)},
			{"MACD Histogram", number(t.MACDHistogram, 4)},
			{"SMA 20", price(t.SMA20)},
			{"SMA 50", price(t.SMA50)},
			{"SMA 100", price(t.SMA100)},
			{"SMA 200", price(t.SMA200)},
			{"EMA 20", price(t.EMA20)},
			{"EMA 50", price(t.EMA50)},
			{"EMA 100", price(t.EMA100)},
			{"EMA 200", price(t.EMA200)},
			{"Bollinger Upper", price(t.BBUpper)},
			{"Bollinger Middle", price(t.BBMiddle)},
			{"Bollinger Lower", price(t.BBLower)},
		},
	})
}

// SnapshotMarkdown renders every collected part of a snapshot, skipping the
// missing ones.
func SnapshotMarkdown(s collect.Snapshot) string {
	var buf bytes.Buffer
	doc := md.NewMarkdown(&buf)

	doc.H1(fmt.Sprintf("Market on %s", s.Date))

	if m := s.Market; m != nil {
		doc.H2("Market")
		doc.Table(md.TableSet{
			Alignment: []md.TableAlignment{md.AlignLeft, md.AlignRight, md.AlignRight},
			Header:    []string{"Asset", "Price", "24h"},
			Rows: [][]string{
				{"BTC", portfolio.USD(m.BTCPrice).String(), percent(m.BTC24hChange)},
				{"ETH", portfolio.USD(m.ETHPrice).String(), percent(m.ETH24hChange)},
			},
		})
		doc.PlainText(fmt.Sprintf("BTC market cap %s, volume %s, total market cap %s.",
			portfolio.USD(m.BTCMarketCap), portfolio.USD(m.BTCVolume), portfolio.USD(m.TotalMarketCap)))
	}

	if s.Technicals != nil {
		doc.H2("Technicals")
		technicalsTable(doc, *s.Technicals)
	}

	if o := s.OnChain; o != nil {
		doc.H2("On-chain")
		doc.Table(md.TableSet{
			Alignment: []md.TableAlignment{md.AlignLeft, md.AlignRight},
			Header:    []string{"Metric", "Value"},
			Rows: [][]string{
				{"Hash rate", fmt.Sprintf("%.2f TH/s", o.HashRate/1e12)},
				{"Transactions", fmt.Sprintf("%.0f", o.TransactionCount)},
				{"Mempool", fmt.Sprintf("%.0f tx", o.MempoolSize)},
				{"Blocks mined", fmt.Sprintf("%.0f", o.BlocksMined24h)},
				{"BTC mined", fmt.Sprintf("%.2f", o.BTCMined24h)},
			},
		})
	}

	if d := s.Derivatives; d != nil {
		doc.H2("Derivatives")
		funding := na
		if d.FundingRate != nil {
			funding = fmt.Sprintf("%.4f%%", *d.FundingRate*100)
		}
		doc.Table(md.TableSet{
			Alignment: []md.TableAlignment{md.AlignLeft, md.AlignRight},
			Header:    []string{"Metric", "Value"},
			Rows: [][]string{
				{"Open interest", price(d.OpenInterest)},
				{"Funding rate", funding},
				{"Long/Short", number(d.LongShortRatio, 2)},
			},
		})
	}

	if len(s.News) > 0 {
		doc.H2("News")
		items := make([]string, 0, len(s.News))
		for _, n := range s.News {
			items = append(items, fmt.Sprintf("%s (%s, %s)", md.Link(n.Title, n.URL), n.Source, n.Sentiment))
		}
		doc.BulletList(items...)
	}

	return doc.String()
}

// HistoryMarkdown renders the value of a portfolio over a window.
func HistoryMarkdown(name string, h portfolio.History) string {
	var buf bytes.Buffer
	doc := md.NewMarkdown(&buf)

	doc.H1(fmt.Sprintf("History for %s (%s)", name, h.Window))
	doc.Table(md.TableSet{
		Alignment: []md.TableAlignment{md.AlignLeft, md.AlignRight},
		Header:    []string{md.Bold("Change"), md.Bold(percent(h.ChangePercent))},
		Rows: [][]string{
			{"First", portfolio.USD(h.First).String()},
			{"Last", portfolio.USD(h.Last).String()},
			{"High", portfolio.USD(h.High).String()},
			{"Low", portfolio.USD(h.Low).String()},
		},
	})

	table := md.TableSet{
		Alignment: []md.TableAlignment{md.AlignLeft, md.AlignRight},
		Header:    []string{"Time", "Value"},
		Rows:      [][]string{},
	}
	for _, p := range h.Points {
		table.Rows = append(table.Rows, []string{
			p.Time.UTC().Format("2006-01-02 15:04"),
			portfolio.USD(p.Value).String(),
		})
	}
	doc.Table(table)

	return doc.String()
}
