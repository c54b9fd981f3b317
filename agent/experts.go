package agent

import (
	"context"
	"fmt"

	"github.com/denowallet/portfolio"
	"github.com/denowallet/portfolio/collect"
	"github.com/denowallet/portfolio/renderer"
	"google.golang.org/genai"
)

// ChatModel is the Gemini model used by the interactive experts.
const ChatModel = "gemini-2.5-flash"

// Sources gives the experts read access to the user's data.
type Sources struct {
	Book     func(context.Context) (*portfolio.Book, error)
	Snapshot func(context.Context) (collect.Snapshot, error)
}

func instruction(text string) *genai.Content {
	return &genai.Content{Parts: []*genai.Part{{Text: text}}}
}

// creates the facilitator
func newFacilitator(experts ...*Expert) *Expert {
	e := NewExpert("Facilitator", "")
	e.Config = &genai.GenerateContentConfig{
		Tools: []*genai.Tool{
			{FunctionDeclarations: NewDeclaration(experts)},
		},
		SystemInstruction: instruction(ChatSystemPrompt("") + `
Sen konuşmayı yöneten kolaylaştırıcısın. Araçlardaki uzmanlara soru sorarak kullanıcının isteğini çöz.
Uzmanlar önceki sorularını hatırlar. Kullanıcı portföyündeki coinlerden bahsettiğinde önce portföyü kontrol et.`),
	}
	e.Library = NewLibrary(experts)
	return e
}

// NewMarketWatcher returns an expert grounded on Google Search for recent news.
func NewMarketWatcher() *Expert {
	e := NewExpert("MarketWatcher", `Kripto piyasalarını, borsaları ve projeleri takip eden uzman.
Güncel haber veya doğrulanmış bilgi gerektiğinde ona sor.`)
	e.Config = &genai.GenerateContentConfig{
		Tools: []*genai.Tool{
			{GoogleSearch: &genai.GoogleSearch{}},
		},
		SystemInstruction: instruction(`Sen kripto para piyasaları uzmanısın. İddialarını Google Search ile doğrula,
son haberleri bul ve kullanıcının sorusuyla ilişkilendir.`),
	}
	return e
}

// NewKeeper returns the expert reading the user's portfolios and the market snapshot.
func NewKeeper(src Sources) *Expert {
	lib := []Function{portfoliosFunc(src), snapshotFunc(src)}
	e := NewExpert("Keeper", `Kullanıcının portföylerini ve günlük piyasa verilerini okuyan uzman.
Bakiyeler, değerler, dağılım, BTC teknik göstergeleri ve on-chain veriler için ona sor.`)
	e.Config = &genai.GenerateContentConfig{
		Tools: []*genai.Tool{
			{FunctionDeclarations: NewDeclaration(lib)},
		},
		SystemInstruction: instruction(`Kullanıcının portföylerinden sorumlusun. Araçları kullanarak portföyleri,
bakiyeleri ve güncel piyasa verilerini oku. Diğer uzmanların yaklaşık ifadelerini anlamaya çalış.`),
	}
	e.Library = NewLibrary(lib)
	return e
}

// Func implements a simple Function
type Func struct {
	Decl *genai.FunctionDeclaration
	Func func(ctx context.Context, id string, args map[string]any) *genai.FunctionResponse
}

func (f *Func) Declaration() *genai.FunctionDeclaration { return f.Decl }
func (f *Func) Call(ctx context.Context, id string, args map[string]any) *genai.FunctionResponse {
	return f.Func(ctx, id, args)
}

func portfoliosFunc(src Sources) *Func {
	const name = "Portfolios"
	return &Func{
		Decl: &genai.FunctionDeclaration{
			Name:        name,
			Description: "Portfolios lists the user's portfolios, or details one of them when an id is given.",
			Parameters: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"id": {
						Type:        genai.TypeInteger,
						Description: "The portfolio id. All portfolios are listed when missing.",
					},
				},
			},
			Response: &genai.Schema{
				Type:        genai.TypeString,
				Description: "A markdown document with portfolio values and holdings.",
			},
		},
		Func: func(ctx context.Context, id string, args map[string]any) *genai.FunctionResponse {
			book, err := src.Book(ctx)
			if err != nil {
				return errorResponse(id, name, fmt.Errorf("could not load portfolios: %w", err))
			}
			raw, ok := args["id"]
			if !ok {
				return outputResponse(id, name, renderer.BookMarkdown(book))
			}
			// JSON numbers decode as float64.
			n, ok := raw.(float64)
			if !ok {
				return errorResponse(id, name, fmt.Errorf("argument 'id' is not a number but %T", raw))
			}
			p, err := book.Portfolio(int(n))
			if err != nil {
				return errorResponse(id, name, err)
			}
			return outputResponse(id, name, renderer.PortfolioMarkdown(p))
		},
	}
}

func snapshotFunc(src Sources) *Func {
	const name = "Market"
	return &Func{
		Decl: &genai.FunctionDeclaration{
			Name:        name,
			Description: "Market collects today's BTC and ETH prices, BTC technical indicators, on-chain activity, derivatives and headlines.",
			Response: &genai.Schema{
				Type:        genai.TypeString,
				Description: "A markdown document with the market snapshot.",
			},
		},
		Func: func(ctx context.Context, id string, _ map[string]any) *genai.FunctionResponse {
			snap, err := src.Snapshot(ctx)
			if err != nil {
				return errorResponse(id, name, err)
			}
			return outputResponse(id, name, renderer.SnapshotMarkdown(snap))
		},
	}
}
