package indicator

import "github.com/denowallet/portfolio/date"

// Technicals is the daily set of indicators stored for a symbol. Nil fields
// lack history.
type Technicals struct {
	Date          date.Date `json:"date" gorm:"column:date;primaryKey"`
	Symbol        string    `json:"symbol" gorm:"column:symbol"`
	RSI14         *float64  `json:"rsi_14" gorm:"column:rsi_14"`
	MACD          *float64  `json:"macd" gorm:"column:macd"`
	MACDSignal    *float64  `json:"macd_signal" gorm:"column:macd_signal"`
	MACDHistogram *float64  `json:"macd_histogram" gorm:"column:macd_histogram"`
	EMA20         *float64  `json:"ema_20" gorm:"column:ema_20"`
	EMA50         *float64  `json:"ema_50" gorm:"column:ema_50"`
	EMA100        *float64  `json:"ema_100" gorm:"column:ema_100"`
	EMA200        *float64  `json:"ema_200" gorm:"column:ema_200"`
	SMA20         *float64  `json:"sma_20" gorm:"column:sma_20"`
	SMA50         *float64  `json:"sma_50" gorm:"column:sma_50"`
	SMA100        *float64  `json:"sma_100" gorm:"column:sma_100"`
	SMA200        *float64  `json:"sma_200" gorm:"column:sma_200"`
	BBUpper       *float64  `json:"bb_upper" gorm:"column:bb_upper"`
	BBMiddle      *float64  `json:"bb_middle" gorm:"column:bb_middle"`
	BBLower       *float64  `json:"bb_lower" gorm:"column:bb_lower"`
}

func (Technicals) TableName() string { return "technical_indicators" }

func opt(v float64, ok bool) *float64 {
	if !ok {
		return nil
	}
	return &v
}

// Compute returns the indicators of prices for symbol on day.
func Compute(symbol string, day date.Date, prices []float64) Technicals {
	t := Technicals{
		Date:   day,
		Symbol: symbol,
		RSI14:  opt(RSI(prices, 14)),
		EMA20:  opt(EMA(prices, 20)),
		EMA50:  opt(EMA(prices, 50)),
		EMA100: opt(EMA(prices, 100)),
		EMA200: opt(EMA(prices, 200)),
		SMA20:  opt(SMA(prices, 20)),
		SMA50:  opt(SMA(prices, 50)),
		SMA100: opt(SMA(prices, 100)),
		SMA200: opt(SMA(prices, 200)),
	}
	if m, ok := NewMACD(prices); ok {
		t.MACD, t.MACDSignal, t.MACDHistogram = &m.Line, &m.Signal, &m.Histogram
	}
	if b, ok := Bollinger(prices, 20, 2); ok {
		t.BBUpper, t.BBMiddle, t.BBLower = &b.Upper, &b.Middle, &b.Lower
	}
	return t
}
