package providers

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/sony/gobreaker"
)

const maxFeedBytes = 4 << 20

// FeedClient downloads the per-region forecast RSS documents.
type FeedClient struct {
	urlTemplate string
	httpCfg     HTTPClientConfig
	circuit     *gobreaker.CircuitBreaker
}

// NewFeedClient returns a client for urlTemplate, which holds one %d for the
// region id.
func NewFeedClient(client *http.Client, urlTemplate string) *FeedClient {
	return &FeedClient{
		urlTemplate: urlTemplate,
		httpCfg:     defaultHTTPConfig(client),
		circuit:     newCircuitBreaker("ims-feed"),
	}
}

// FetchRegion returns the raw feed document of a region.
func (c *FeedClient) FetchRegion(ctx context.Context, regionID int) ([]byte, error) {
	u := fmt.Sprintf(c.urlTemplate, regionID)
	buildRequest := func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/rss+xml, application/xml, text/xml")
		return req, nil
	}

	resp, err := doRequestWithResilience(ctx, c.httpCfg, c.circuit, "feed", buildRequest)
	if err != nil {
		return nil, fmt.Errorf("feed region %d: %w", regionID, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return nil, fmt.Errorf("feed region %d: read body: %w", regionID, err)
	}
	return body, nil
}
