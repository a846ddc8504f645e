package access

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/directfanz/interact-service/internal/config"
)

// HTTPChecker asks the platform core for a join decision.
type HTTPChecker struct {
	baseURL string
	client  *http.Client
}

func NewHTTPChecker(cfg config.AccessConfig) *HTTPChecker {
	return &HTTPChecker{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

func (c *HTTPChecker) Close() {
	c.client.CloseIdleConnections()
}

type accessDecision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

func (c *HTTPChecker) CheckAccess(ctx context.Context, streamID, userID, role string) error {
	query := url.Values{
		"user_id": {userID},
		"role":    {role},
	}
	endpoint := fmt.Sprintf("%s/internal/v1/streams/%s/access?%s",
		c.baseURL, url.PathEscape(streamID), query.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var decision accessDecision
		if err := json.NewDecoder(resp.Body).Decode(&decision); err != nil {
			return fmt.Errorf("failed to decode access response: %w", err)
		}
		if !decision.Allowed {
			if decision.Reason != "" {
				return fmt.Errorf("%w: %s", ErrDenied, decision.Reason)
			}
			return ErrDenied
		}
		return nil
	case http.StatusForbidden, http.StatusNotFound:
		// An unknown stream is treated the same as a blocked one.
		return ErrDenied
	default:
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
}
