package shipping

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/DoMinHoo/Du-An-Tot-Nghiep--sub000/internal/domain"
	apperrors "github.com/DoMinHoo/Du-An-Tot-Nghiep--sub000/pkg/errors"
	"github.com/DoMinHoo/Du-An-Tot-Nghiep--sub000/pkg/httpclient"
)

// HTTPDoer is the interface for executing HTTP requests.
// Both httpclient.Client and httpclient.CircuitBreakerClient satisfy this.
type HTTPDoer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// CircuitOpenFallback converts an open circuit into a structured
// service-unavailable error with a retry hint.
func CircuitOpenFallback(_ context.Context, _ error) (*http.Response, error) {
	return nil, apperrors.Unavailable("shipping fee service is temporarily unavailable, please retry shortly")
}

// Client is the narrow collaborator that quotes a shipping fee for a
// destination. The carrier integration behind it is not this engine's
// concern; failures surface as upstream errors, never as hangs.
type Client struct {
	http    HTTPDoer
	baseURL string
	logger  *slog.Logger
}

// NewClient creates a shipping-fee client against the given base URL.
func NewClient(httpClient HTTPDoer, baseURL string, logger *slog.Logger) *Client {
	return &Client{
		http:    httpClient,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}
}

type quoteRequest struct {
	District string `json:"district"`
	City     string `json:"city"`
}

type quoteResponse struct {
	Data struct {
		Fee int64 `json:"fee"`
	} `json:"data"`
}

// Quote returns the shipping fee for the given destination address.
func (c *Client) Quote(ctx context.Context, addr domain.Address) (int64, error) {
	body, err := json.Marshal(quoteRequest{District: addr.District, City: addr.City})
	if err != nil {
		return 0, fmt.Errorf("marshal quote request: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, c.baseURL+"/api/v1/shipping/quote", strings.NewReader(string(body)))
	if err != nil {
		return 0, fmt.Errorf("build quote request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, httpclient.ParseResponseError(resp, "shipping")
	}

	var quote quoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&quote); err != nil {
		return 0, fmt.Errorf("decode quote response: %w", err)
	}

	c.logger.DebugContext(ctx, "shipping fee quoted",
		slog.String("city", addr.City),
		slog.Int64("fee", quote.Data.Fee),
	)

	return quote.Data.Fee, nil
}
