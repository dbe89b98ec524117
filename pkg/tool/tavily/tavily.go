// Package tavily provides the web search tool backed by the Tavily API.
package tavily

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/m-mizutani/kioku/pkg/model"
	"github.com/m-mizutani/kioku/pkg/tool"
)

const tavilyEndpoint = "https://api.tavily.com/search"

type searchRequest struct {
	Query         string `json:"query"`
	IncludeAnswer bool   `json:"include_answer"`
	MaxResults    int    `json:"max_results"`
}

type searchResponse struct {
	Answer  string `json:"answer"`
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Content string `json:"content"`
	} `json:"results"`
}

type tavily struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
}

// New creates a new web search tool
func New() *tavily {
	return &tavily{
		endpoint: tavilyEndpoint,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Flags returns CLI flags for this tool
func (x *tavily) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "tavily-api-key",
			Sources:     cli.EnvVars("KIOKU_TAVILY_API_KEY"),
			Usage:       "Tavily API key for web search",
			Destination: &x.apiKey,
		},
	}
}

func (x *tavily) Name() string {
	return "web_search"
}

func (x *tavily) Kind() tool.Kind {
	return tool.KindWebSearch
}

// Run queries Tavily. A missing API key is reported as output text rather
// than an error, so the turn proceeds with that information in the prompt.
func (x *tavily) Run(ctx context.Context, query string) (string, error) {
	if x.apiKey == "" {
		return "Web search is unavailable: no Tavily API key is configured.", nil
	}

	body, err := json.Marshal(searchRequest{
		Query:         query,
		IncludeAnswer: true,
		MaxResults:    3,
	})
	if err != nil {
		return "", goerr.Wrap(err, "failed to marshal search request")
	}

	req, err := http.NewRequestWithContext(ctx, "POST", x.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", goerr.Wrap(err, "failed to create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+x.apiKey)

	resp, err := x.httpClient.Do(req)
	if err != nil {
		return "", goerr.Wrap(model.ErrTool, "failed to call search API", goerr.V("cause", err.Error()))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(resp.Body)
		return "", goerr.Wrap(model.ErrTool, "search API returned error",
			goerr.V("status", resp.StatusCode),
			goerr.V("body", string(payload)))
	}

	var result searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", goerr.Wrap(model.ErrTool, "failed to decode search response", goerr.V("cause", err.Error()))
	}

	return format(&result), nil
}

func format(result *searchResponse) string {
	if result.Answer != "" {
		return result.Answer
	}

	var lines []string
	for _, r := range result.Results {
		lines = append(lines, r.Title+": "+r.Content)
	}
	if len(lines) == 0 {
		return "No search results found."
	}
	return strings.Join(lines, "\n")
}
