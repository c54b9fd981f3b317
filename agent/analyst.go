package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/denowallet/portfolio/collect"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

// AnalysisModel is the default Gemini model for the daily analysis.
const AnalysisModel = "gemini-1.5-flash"

// NoAnalysis replaces an empty model answer.
const NoAnalysis = "Analiz oluşturulamadı."

// ErrMissingKey is returned when an LLM client is built without credentials.
var ErrMissingKey = errors.New("missing API key")

// Generator is the part of genai.Models the analyst needs.
type Generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Analyst writes the daily market analysis with Gemini.
type Analyst struct {
	gen    Generator
	Model  string
	Config *genai.GenerateContentConfig
	Now    func() time.Time
}

// NewGeminiClient returns a Gemini API client.
func NewGeminiClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini: %w", ErrMissingKey)
	}
	return genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI})
}

// NewAnalyst returns an analyst generating with gen, usually client.Models.
func NewAnalyst(gen Generator) *Analyst {
	return &Analyst{
		gen:   gen,
		Model: AnalysisModel,
		Config: &genai.GenerateContentConfig{
			Temperature:     genai.Ptr[float32](0.7),
			MaxOutputTokens: 2048,
		},
	}
}

func (a *Analyst) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

// Generate asks the model to comment snap.
func (a *Analyst) Generate(ctx context.Context, snap collect.Snapshot) (Analysis, error) {
	now := a.now()
	prompt := BuildAnalysisPrompt(snap, now)
	resp, err := a.gen.GenerateContent(ctx, a.Model, genai.Text(prompt), a.Config)
	if err != nil {
		return Analysis{}, fmt.Errorf("gemini: %w", err)
	}
	text := NoAnalysis
	if t := strings.TrimSpace(firstText(resp)); t != "" {
		text = t
	}
	zap.L().Info("analysis generated", zap.String("model", a.Model), zap.Int("chars", len(text)))
	return NewAnalysis(text, now), nil
}

// firstText returns the text of the first part of the first candidate.
func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	c := resp.Candidates[0].Content
	if c == nil || len(c.Parts) == 0 || c.Parts[0] == nil {
		return ""
	}
	return c.Parts[0].Text
}
