package agent

import (
	"fmt"
	"strings"
	"time"

	"github.com/denowallet/portfolio"
	"github.com/denowallet/portfolio/collect"
)

var (
	turkishMonths = [...]string{"Ocak", "Şubat", "Mart", "Nisan", "Mayıs", "Haziran", "Temmuz", "Ağustos", "Eylül", "Ekim", "Kasım", "Aralık"}
	turkishDays   = [...]string{"Pazar", "Pazartesi", "Salı", "Çarşamba", "Perşembe", "Cuma", "Cumartesi"}
)

// turkishDate formats t like "14 Mart 2025 Cuma".
func turkishDate(t time.Time) string {
	return fmt.Sprintf("%d %s %d %s", t.Day(), turkishMonths[t.Month()-1], t.Year(), turkishDays[t.Weekday()])
}

func usd(v float64) string { return portfolio.USD(v).String() }

func optional(v *float64, format func(float64) string) string {
	if v == nil {
		return "N/A"
	}
	return format(*v)
}

func fixed(digits int) func(float64) string {
	return func(v float64) string { return fmt.Sprintf("%.*f", digits, v) }
}

// rsiTag qualifies an RSI reading.
func rsiTag(rsi float64) string {
	switch {
	case rsi > 70:
		return "(Aşırı Alım)"
	case rsi < 30:
		return "(Aşırı Satım)"
	default:
		return "(Nötr)"
	}
}

const answerFormat = `Lütfen şu formatta yanıt ver:

## 📊 GÜNLÜK ANALİZ

### Piyasa Özeti
[2-3 cümlelik genel piyasa özeti]

### Teknik Görünüm
[Teknik indikatörlere dayalı analiz]

### Kritik Seviyeler
- Destek: [seviyeler]
- Direnç: [seviyeler]

### Genel Değerlendirme
[BOĞA/AYI/NÖTR] - [Kısa açıklama]

### Dikkat Edilmesi Gerekenler
[Önemli noktalar listesi]`

// BuildAnalysisPrompt writes the analyst prompt for the snapshot collected at now.
// Missing parts are announced as unavailable.
func BuildAnalysisPrompt(snap collect.Snapshot, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Sen deneyimli bir kripto para analistisin. Aşağıdaki verilere dayanarak bugünün (%s) Bitcoin ve kripto piyasası hakkında kapsamlı bir Türkçe analiz yaz.\n\n", turkishDate(now))

	b.WriteString("## PİYASA VERİLERİ\n")
	if m := snap.Market; m != nil {
		fmt.Fprintf(&b, "- Bitcoin Fiyatı: %s\n", usd(m.BTCPrice))
		fmt.Fprintf(&b, "- Bitcoin 24s Değişim: %%%.2f\n", m.BTC24hChange)
		fmt.Fprintf(&b, "- Bitcoin Market Değeri: $%.2fB\n", m.BTCMarketCap/1e9)
		fmt.Fprintf(&b, "- Bitcoin Hacim: $%.2fB\n", m.BTCVolume/1e9)
		fmt.Fprintf(&b, "- Ethereum Fiyatı: %s\n", usd(m.ETHPrice))
		fmt.Fprintf(&b, "- Toplam Market Değeri: $%.2fT\n", m.TotalMarketCap/1e12)
	} else {
		b.WriteString("Piyasa verileri mevcut değil.\n")
	}

	b.WriteString("\n## TEKNİK İNDİKATÖRLER\n")
	if t := snap.Technicals; t != nil {
		rsi := "N/A"
		if t.RSI14 != nil {
			rsi = fmt.Sprintf("%.2f %s", *t.RSI14, rsiTag(*t.RSI14))
		}
		fmt.Fprintf(&b, "- RSI (14): %s\n", rsi)
		fmt.Fprintf(&b, "- MACD: %s\n", optional(t.MACD, fixed(4)))
		fmt.Fprintf(&b, "- EMA 20: %s\n", optional(t.EMA20, usd))
		fmt.Fprintf(&b, "- EMA 50: %s\n", optional(t.EMA50, usd))
		fmt.Fprintf(&b, "- EMA 200: %s\n", optional(t.EMA200, usd))
		fmt.Fprintf(&b, "- Bollinger Üst: %s\n", optional(t.BBUpper, usd))
		fmt.Fprintf(&b, "- Bollinger Alt: %s\n", optional(t.BBLower, usd))
	} else {
		b.WriteString("Teknik veriler mevcut değil.\n")
	}

	b.WriteString("\n## ON-CHAIN VERİLERİ\n")
	if o := snap.OnChain; o != nil {
		fmt.Fprintf(&b, "- Hash Rate: %.2f TH/s\n", o.HashRate/1e12)
		fmt.Fprintf(&b, "- Mempool Boyutu: %.0f işlem\n", o.MempoolSize)
		fmt.Fprintf(&b, "- Günlük İşlem: %.0f\n", o.TransactionCount)
	} else {
		b.WriteString("On-chain verileri mevcut değil.\n")
	}

	b.WriteString("\n## TÜREV VERİLERİ\n")
	if d := snap.Derivatives; d != nil {
		fmt.Fprintf(&b, "- Open Interest: %s\n", optional(d.OpenInterest, func(v float64) string { return fmt.Sprintf("$%.2fB", v/1e9) }))
		fmt.Fprintf(&b, "- Funding Rate: %s\n", optional(d.FundingRate, func(v float64) string { return fmt.Sprintf("%.4f%%", v*100) }))
		fmt.Fprintf(&b, "- Long/Short Oranı: %s\n", optional(d.LongShortRatio, fixed(2)))
	} else {
		b.WriteString("Türev verileri mevcut değil.\n")
	}

	b.WriteString("\n## SON HABERLER\n")
	if len(snap.News) > 0 {
		for i, n := range snap.News {
			if i == 5 {
				break
			}
			fmt.Fprintf(&b, "- %s (%s)\n", n.Title, n.Sentiment)
		}
	} else {
		b.WriteString("Haber verisi mevcut değil.\n")
	}

	b.WriteString("\n---\n\n")
	b.WriteString(answerFormat)
	return b.String()
}
