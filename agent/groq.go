package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/denowallet/portfolio/httpx"
)

const (
	GroqBaseURL = "https://api.groq.com"
	GroqModel   = "llama-3.3-70b-versatile"
)

// NoReply replaces an empty chat answer.
const NoReply = "Yanıt oluşturulamadı."

const chatRules = `Sen deneyimli bir kripto para analistisin. Kullanıcıların sorularını Türkçe olarak yanıtlıyorsun.

ÖNEMLİ KURALLAR:
- Kısa ve öz cevaplar ver (maksimum 3-4 paragraf)
- Somut fiyat seviyeleri ve yüzdeler kullan
- "Belki", "muhtemelen" yerine kararlı ifadeler kullan
- Yatırım tavsiyesi olmadığını hatırlat ama yine de net görüşünü bildir
`

// ChatSystemPrompt returns the system prompt, with the market context when given.
func ChatSystemPrompt(marketContext string) string {
	if strings.TrimSpace(marketContext) == "" {
		return chatRules
	}
	return chatRules + "\nGÜNCEL PİYASA DURUMU:\n" + marketContext
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Groq answers single questions through the Groq chat completions API.
type Groq struct {
	http    *httpx.Client
	baseURL string
	apiKey  string
	Model   string
}

// NewGroq returns a Groq client, h may be nil.
func NewGroq(apiKey string, h httpx.HTTPClient) (*Groq, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("groq: %w", ErrMissingKey)
	}
	c := httpx.New(60 * time.Second)
	if h != nil {
		c = c.WithHTTP(h)
	}
	return &Groq{http: c, baseURL: GroqBaseURL, apiKey: apiKey, Model: GroqModel}, nil
}

// WithBaseURL returns a copy of g calling another API root.
func (g *Groq) WithBaseURL(u string) *Groq {
	cp := *g
	cp.baseURL = strings.TrimRight(u, "/")
	return &cp
}

// Reply answers message. marketContext is optional.
func (g *Groq) Reply(ctx context.Context, message, marketContext string) (string, error) {
	req := chatRequest{
		Model: g.Model,
		Messages: []chatMessage{
			{Role: "system", Content: ChatSystemPrompt(marketContext)},
			{Role: "user", Content: message},
		},
		Temperature: 0.7,
		MaxTokens:   1024,
	}
	var resp chatResponse
	if err := g.http.PostJSON(ctx, g.baseURL+"/openai/v1/chat/completions", req, &resp, "Authorization", "Bearer "+g.apiKey); err != nil {
		return "", fmt.Errorf("groq: %w", err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return NoReply, nil
	}
	return resp.Choices[0].Message.Content, nil
}
