package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Quickjump posts term to the quickjump endpoint and returns the absolute
// url of the matching host or service list.
func (c *Client) Quickjump(ctx context.Context, endpoint, term string) (string, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return "", errors.New("quickjump term is required")
	}
	resp, err := c.postForm(ctx, endpoint, url.Values{"quickjump": {term}})
	if err != nil {
		return "", err
	}
	var out struct {
		Message string `json:"message"`
		URL     string `json:"url"`
	}
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return "", fmt.Errorf("decode quickjump response: %w", err)
	}
	if out.URL == "" {
		return "", fmt.Errorf("quickjump: %s", out.Message)
	}
	return c.Resolve(out.URL), nil
}
