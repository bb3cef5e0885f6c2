// Package client talks to the sner console over HTTP: paginated list.json
// fetches, csrf-protected form posts and server-rendered forms.
package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-resty/resty/v2"

	"sner-console/internal/grid"
	"sner-console/internal/logger"
	"sner-console/internal/store"
)

// CSRFField is the form field carrying the forgery-protection token.
const CSRFField = "csrf_token"

type Client struct {
	http   *resty.Client
	base   *url.URL
	tokens TokenSource
}

type Option func(*Client)

// WithTokenSource overrides where csrf tokens come from.
func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

// New builds a client for cfg.BaseURL. The csrf token is cfg.CSRFToken when
// set, else it is read from the console's csrf-token meta tag.
func New(cfg store.Config, opts ...Option) (*Client, error) {
	raw := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if raw == "" {
		return nil, errors.New("console url is required (--url, SNER_URL or baseUrl in config)")
	}
	base, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid console url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("console url scheme must be http or https, got %q", base.Scheme)
	}
	if base.Host == "" {
		return nil, fmt.Errorf("console url must have a host, got %q", raw)
	}

	hc := resty.New().
		SetBaseURL(base.String()).
		SetTimeout(cfg.RequestTimeout()).
		SetHeader("Accept", "application/json, text/html;q=0.9").
		SetHeader("X-Requested-With", "XMLHttpRequest")
	for k, v := range cfg.Headers {
		hc.SetHeader(k, v)
	}

	c := &Client{http: hc, base: base}
	for _, o := range opts {
		o(c)
	}
	if c.tokens == nil {
		if t := strings.TrimSpace(cfg.CSRFToken); t != "" {
			c.tokens = StaticToken(t)
		} else {
			c.tokens = NewMetaToken(c, "/")
		}
	}
	return c, nil
}

func (c *Client) BaseURL() *url.URL {
	u := *c.base
	return &u
}

// Resolve turns a console path into an absolute url.
func (c *Client) Resolve(ref string) string {
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return c.base.ResolveReference(u).String()
}

// Fetch posts one paginated request to a list.json endpoint.
func (c *Client) Fetch(ctx context.Context, endpoint string, req grid.FetchRequest) (*grid.FetchResponse, error) {
	form := req.Form()
	if tok, err := c.tokens.Token(ctx); err == nil {
		form.Set(CSRFField, tok)
	} else {
		logger.FromContext(ctx).Debug("fetch without csrf token", "endpoint", endpoint, "err", err)
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetFormDataFromValues(form).
		Post(endpoint)
	if err != nil {
		return nil, transportError(err)
	}
	if err := checkResponse(resp); err != nil {
		return nil, err
	}
	page, err := grid.DecodeFetchResponse(resp.Body())
	if err != nil {
		return nil, err
	}
	logger.FromContext(ctx).Debug("page fetched", "endpoint", endpoint, "draw", page.Draw, "rows", len(page.Data), "filtered", page.RecordsFiltered)
	return page, nil
}

// SubmitForm posts fields with the csrf token attached. Any 2xx is success.
func (c *Client) SubmitForm(ctx context.Context, endpoint string, fields url.Values) error {
	_, err := c.postForm(ctx, endpoint, fields)
	return err
}

// postForm posts fields with the csrf token attached. When the console
// rejects the token (a 400 naming csrf, e.g. after the session rotated), a
// cached token is dropped and the post retried once with a fresh one.
func (c *Client) postForm(ctx context.Context, endpoint string, fields url.Values) (*resty.Response, error) {
	for attempt := 0; ; attempt++ {
		resp, err := c.postFormOnce(ctx, endpoint, fields)
		if err == nil || attempt > 0 || !csrfRejected(resp) {
			return resp, err
		}
		inv, ok := c.tokens.(interface{ Invalidate() })
		if !ok {
			return resp, err
		}
		logger.FromContext(ctx).Debug("csrf token rejected, refreshing", "endpoint", endpoint)
		inv.Invalidate()
	}
}

func (c *Client) postFormOnce(ctx context.Context, endpoint string, fields url.Values) (*resty.Response, error) {
	tok, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("csrf token: %w", err)
	}
	form := url.Values{}
	for k, v := range fields {
		form[k] = append([]string(nil), v...)
	}
	form.Set(CSRFField, tok)

	resp, err := c.http.R().
		SetContext(ctx).
		SetFormDataFromValues(form).
		Post(endpoint)
	if err != nil {
		return nil, transportError(err)
	}
	if err := checkResponse(resp); err != nil {
		return resp, err
	}
	logger.FromContext(ctx).Debug("form submitted", "endpoint", endpoint, "status", resp.StatusCode())
	return resp, nil
}

func csrfRejected(resp *resty.Response) bool {
	if resp == nil || resp.StatusCode() != http.StatusBadRequest {
		return false
	}
	return strings.Contains(strings.ToLower(string(resp.Body())), "csrf")
}

// Get fetches a console page.
func (c *Client) Get(ctx context.Context, path string) ([]byte, error) {
	resp, err := c.http.R().SetContext(ctx).Get(path)
	if err != nil {
		return nil, transportError(err)
	}
	if err := checkResponse(resp); err != nil {
		return nil, err
	}
	return resp.Body(), nil
}

func transportError(err error) error {
	switch {
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("request canceled: %w", err)
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("request timed out: %w", err)
	default:
		return fmt.Errorf("request failed: %w", err)
	}
}

func checkResponse(resp *resty.Response) error {
	if resp.StatusCode() < http.StatusBadRequest {
		return nil
	}
	return &ServerError{Status: resp.StatusCode(), Message: parseErrorMessage(resp.Body())}
}
