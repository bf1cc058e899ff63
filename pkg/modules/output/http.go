package output

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/teslashibe/go-vision/internal/httpc"
	"github.com/teslashibe/go-vision/pkg/settings"
	"github.com/teslashibe/go-vision/pkg/tracking"
)

// HTTP posts each target as JSON.
type HTTP struct {
	url    string
	client *http.Client
}

// NewHTTP reads output.http.url.
func NewHTTP(_ context.Context, vc *settings.VisionConfig, logger *slog.Logger) (*HTTP, error) {
	raw, err := vc.Doc.String("output.http.url")
	if err != nil {
		return nil, err
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("output: http: bad url %q", raw)
	}
	logger.Info("http output", "url", raw)
	return NewHTTPWithClient(raw, httpc.Client), nil
}

// NewHTTPWithClient posts to endpoint with c.
func NewHTTPWithClient(endpoint string, c *http.Client) *HTTP {
	return &HTTP{url: endpoint, client: c}
}

func (h *HTTP) Name() string { return "http" }

func (h *HTTP) Deliver(ctx context.Context, data tracking.OutputData) error {
	return httpc.PostJSON(ctx, h.client, h.url, data)
}

func (h *HTTP) Close() error {
	h.client.CloseIdleConnections()
	return nil
}
