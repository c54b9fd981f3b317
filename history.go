package portfolio

import (
	"time"

	"github.com/denowallet/portfolio/date"
	"github.com/huandu/skiplist"
)

// Point is a timestamped value in USD.
type Point struct {
	Time  time.Time `json:"time"`
	Value float64   `json:"value"`
}

// History is the value of a portfolio over a trailing window.
type History struct {
	Window        string  `json:"window"`
	Points        []Point `json:"points"`
	First         float64 `json:"first"`
	Last          float64 `json:"last"`
	High          float64 `json:"high"`
	Low           float64 `json:"low"`
	ChangePercent float64 `json:"changePercent"`
}

// priceIndex answers "last known price at or before t" for one coin.
type priceIndex struct {
	list *skiplist.SkipList // unix ms, newest first
}

func newPriceIndex(chart []Point) priceIndex {
	list := skiplist.New(skiplist.Int64Desc)
	for _, p := range chart {
		list.Set(p.Time.UnixMilli(), p.Value)
	}
	return priceIndex{list: list}
}

// at returns the price in effect at t, 0 before the first point.
func (x priceIndex) at(t time.Time) float64 {
	elem := x.list.Find(t.UnixMilli())
	if elem == nil {
		return 0
	}
	return elem.Value.(float64)
}

// History reconstructs the portfolio value over w, ending at now, from one
// price chart per CoinGecko id. Current balances are assumed over the whole
// window. Points are placed on the union of the charts' timestamps.
func (p *Portfolio) History(charts map[string][]Point, w date.Window, now time.Time) History {
	since := w.Since(now)
	stamps := skiplist.New(skiplist.Int64)
	indexes := make(map[string]priceIndex, len(charts))
	for id, chart := range charts {
		indexes[id] = newPriceIndex(chart)
		for _, pt := range chart {
			if pt.Time.Before(since) || pt.Time.After(now) {
				continue
			}
			stamps.Set(pt.Time.UnixMilli(), nil)
		}
	}

	h := History{Window: w.String()}
	for e := stamps.Front(); e != nil; e = e.Next() {
		t := time.UnixMilli(e.Key().(int64)).UTC()
		total := USD(0)
		for _, c := range p.Coins {
			x, ok := indexes[c.ID]
			if !ok {
				continue
			}
			total = total.Add(USD(x.at(t)).Mul(Q(c.Balance)))
		}
		h.Points = append(h.Points, Point{Time: t, Value: total.Float64()})
	}
	if len(h.Points) == 0 {
		return h
	}

	h.First, h.Last = h.Points[0].Value, h.Points[len(h.Points)-1].Value
	h.High, h.Low = h.First, h.First
	for _, pt := range h.Points {
		h.High = max(h.High, pt.Value)
		h.Low = min(h.Low, pt.Value)
	}
	if h.First != 0 {
		h.ChangePercent = USD(h.Last).Sub(USD(h.First)).Ratio(USD(h.First))
	}
	return h
}
