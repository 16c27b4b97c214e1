package embed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/tbourn/go-bot-builder/internal/widget"
)

// ConfigFetcher retrieves a resolved widget configuration.
type ConfigFetcher interface {
	Fetch(ctx context.Context, widgetID string) (*widget.Config, error)
}

// HTTPFetcher calls GET {BaseURL}/widget-config/{id}.
type HTTPFetcher struct {
	BaseURL string
	Client  *http.Client
}

// maxConfigBytes bounds the response body the fetcher will decode.
const maxConfigBytes = 1 << 20

// Fetch performs exactly one request. Non-2xx responses are errors carrying
// the server's {error} message when present.
func (f *HTTPFetcher) Fetch(ctx context.Context, widgetID string) (*widget.Config, error) {
	endpoint := strings.TrimRight(f.BaseURL, "/") + "/widget-config/" + url.PathEscape(widgetID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxConfigBytes))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &e) == nil && e.Error != "" {
			return nil, fmt.Errorf("widget config: %d: %s", resp.StatusCode, e.Error)
		}
		return nil, fmt.Errorf("widget config: unexpected status %d", resp.StatusCode)
	}

	var out struct {
		Widget *widget.Config `json:"widget"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("widget config: decode: %w", err)
	}
	if out.Widget == nil {
		return nil, fmt.Errorf("widget config: response has no widget")
	}
	// Only an explicit "is_active": false disables the widget.
	var active struct {
		Widget struct {
			IsActive *bool `json:"is_active"`
		} `json:"widget"`
	}
	_ = json.Unmarshal(body, &active)
	out.Widget.IsActive = active.Widget.IsActive == nil || *active.Widget.IsActive
	return out.Widget, nil
}
