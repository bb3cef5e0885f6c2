package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"golang.org/x/net/html"
)

// TokenSource yields the csrf token attached to mutations.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

type StaticToken string

func (t StaticToken) Token(context.Context) (string, error) {
	if t == "" {
		return "", errors.New("empty csrf token")
	}
	return string(t), nil
}

type pageGetter interface {
	Get(ctx context.Context, path string) ([]byte, error)
}

// MetaToken reads the token from the csrf-token meta tag of a console page
// and caches it for the client's lifetime.
type MetaToken struct {
	getter pageGetter
	path   string

	mu    sync.Mutex
	token string
}

func NewMetaToken(g pageGetter, path string) *MetaToken {
	return &MetaToken{getter: g, path: path}
}

func (m *MetaToken) Token(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.token != "" {
		return m.token, nil
	}
	body, err := m.getter.Get(ctx, m.path)
	if err != nil {
		return "", fmt.Errorf("load %s: %w", m.path, err)
	}
	tok, err := ParseCSRFMeta(bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	m.token = tok
	return tok, nil
}

// Invalidate drops the cached token, e.g. after the session changed.
func (m *MetaToken) Invalidate() {
	m.mu.Lock()
	m.token = ""
	m.mu.Unlock()
}

var ErrNoCSRFMeta = errors.New("csrf-token meta tag not found")

// ParseCSRFMeta returns the content of <meta name="csrf-token">.
func ParseCSRFMeta(r io.Reader) (string, error) {
	z := html.NewTokenizer(r)
	for {
		switch z.Next() {
		case html.ErrorToken:
			if errors.Is(z.Err(), io.EOF) {
				return "", ErrNoCSRFMeta
			}
			return "", z.Err()
		case html.StartTagToken, html.SelfClosingTagToken:
			t := z.Token()
			if t.Data != "meta" {
				continue
			}
			if strings.EqualFold(attr(t.Attr, "name"), "csrf-token") {
				if c := strings.TrimSpace(attr(t.Attr, "content")); c != "" {
					return c, nil
				}
			}
		}
	}
}

func attr(attrs []html.Attribute, key string) string {
	for _, a := range attrs {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
