package agent

import (
	"bytes"
	"strings"
	"time"

	"github.com/denowallet/portfolio/date"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Sentiment of an analysis.
const (
	Bullish = "bullish"
	Bearish = "bearish"
	Neutral = "neutral"
)

const (
	summaryLines = 3
	summaryRunes = 300
)

// Analysis is the daily market commentary, one per day.
type Analysis struct {
	Date      date.Date `json:"date" gorm:"column:date;primaryKey"`
	Analysis  string    `json:"analysis" gorm:"column:analysis"`
	Summary   string    `json:"summary" gorm:"column:summary"`
	Sentiment string    `json:"sentiment" gorm:"column:sentiment"`
	Timestamp time.Time `json:"timestamp" gorm:"column:created_at"`
}

func (Analysis) TableName() string { return "ai_analyses" }

// NewAnalysis derives the summary and sentiment of text generated at now.
func NewAnalysis(text string, now time.Time) Analysis {
	return Analysis{
		Date:      date.Of(now),
		Analysis:  text,
		Summary:   ExtractSummary(text),
		Sentiment: ExtractSentiment(text),
		Timestamp: now.UTC(),
	}
}

var (
	bullishWords = []string{"boğa", "bullish", "yükseliş"}
	bearishWords = []string{"ayı", "bearish", "düşüş"}
)

// ExtractSentiment looks for bullish keywords first, then bearish ones.
func ExtractSentiment(s string) string {
	lower := strings.ToLower(s)
	contains := func(words []string) bool {
		for _, w := range words {
			if strings.Contains(lower, w) {
				return true
			}
		}
		return false
	}
	switch {
	case contains(bullishWords):
		return Bullish
	case contains(bearishWords):
		return Bearish
	default:
		return Neutral
	}
}

// ExtractSummary returns the first three non-empty lines of a markdown
// document, stripped of their markup, joined by spaces and cut to 300 runes.
func ExtractSummary(s string) string {
	var parts []string
	lines := 0
	for _, line := range strings.Split(s, "\n") {
		if lines == summaryLines {
			break
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		lines++
		if t := plainText(line); t != "" {
			parts = append(parts, t)
		}
	}

	summary := []rune(strings.Join(parts, " "))
	if len(summary) > summaryRunes {
		summary = summary[:summaryRunes]
	}
	return string(summary)
}

// plainText renders one markdown line to its text, without markup.
func plainText(line string) string {
	src := []byte(line)
	root := goldmark.DefaultParser().Parse(text.NewReader(src))

	var buf bytes.Buffer
	ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n := n.(type) {
		case *ast.Text:
			buf.Write(n.Segment.Value(src))
		case *ast.String:
			buf.Write(n.Value)
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(buf.String())
}
