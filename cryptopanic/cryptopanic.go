// Package cryptopanic reads hot crypto news from the CryptoPanic API.
package cryptopanic

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/denowallet/portfolio/httpx"
)

const BaseURL = "https://cryptopanic.com/api/v1"

// Sentiment of an article, as voted by CryptoPanic users.
const (
	Positive = "positive"
	Negative = "negative"
	Neutral  = "neutral"
)

// Article is a news item.
type Article struct {
	Title       string   `json:"title"`
	Source      string   `json:"source"`
	URL         string   `json:"url"`
	Sentiment   string   `json:"sentiment"`
	Currencies  []string `json:"currencies"`
	PublishedAt string   `json:"published_at"`
}

type post struct {
	Title  string `json:"title"`
	URL    string `json:"url"`
	Source *struct {
		Title string `json:"title"`
	} `json:"source"`
	Votes struct {
		Positive int `json:"positive"`
		Negative int `json:"negative"`
	} `json:"votes"`
	Currencies []struct {
		Code string `json:"code"`
	} `json:"currencies"`
	PublishedAt string `json:"published_at"`
}

// Client calls the CryptoPanic API.
type Client struct {
	http    *httpx.Client
	baseURL string
	token   string
}

// New returns a client authenticated with token, "public" when empty.
func New(token string, h httpx.HTTPClient) *Client {
	c := &Client{http: httpx.New(15 * time.Second), baseURL: BaseURL, token: token}
	if c.token == "" {
		c.token = "public"
	}
	if h != nil {
		c.http = c.http.WithHTTP(h)
	}
	return c
}

// WithBaseURL returns a copy of c calling another API root.
func (c *Client) WithBaseURL(u string) *Client {
	cp := *c
	cp.baseURL = strings.TrimRight(u, "/")
	return &cp
}

// Hot returns at most limit hot articles about currencies.
func (c *Client) Hot(ctx context.Context, currencies []string, limit int) ([]Article, error) {
	v := url.Values{}
	v.Set("auth_token", c.token)
	v.Set("public", "true")
	v.Set("filter", "hot")
	v.Set("currencies", strings.Join(currencies, ","))
	var resp struct {
		Results []post `json:"results"`
	}
	if err := c.http.GetJSON(ctx, c.baseURL+"/posts/?"+v.Encode(), &resp); err != nil {
		return nil, err
	}
	posts := resp.Results
	if len(posts) > limit {
		posts = posts[:limit]
	}
	articles := make([]Article, 0, len(posts))
	for _, p := range posts {
		articles = append(articles, p.article())
	}
	return articles, nil
}

func (p post) article() Article {
	a := Article{
		Title:       p.Title,
		Source:      "Unknown",
		URL:         p.URL,
		Sentiment:   sentiment(p.Votes.Positive, p.Votes.Negative),
		Currencies:  make([]string, 0, len(p.Currencies)),
		PublishedAt: p.PublishedAt,
	}
	if p.Source != nil && p.Source.Title != "" {
		a.Source = p.Source.Title
	}
	for _, c := range p.Currencies {
		a.Currencies = append(a.Currencies, c.Code)
	}
	return a
}

func sentiment(positive, negative int) string {
	switch {
	case positive > negative:
		return Positive
	case negative > positive:
		return Negative
	default:
		return Neutral
	}
}
