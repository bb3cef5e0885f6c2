package grid

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"sner-console/internal/store"
)

// ColumnRequest describes one column in a paginated fetch.
type ColumnRequest struct {
	Data       string
	Name       string
	Searchable bool
	Orderable  bool
	Search     string
}

// FetchRequest is one server-side pagination request.
type FetchRequest struct {
	Draw    int
	Start   int
	Length  int
	Search  string
	Order   []store.OrderSpec
	Columns []ColumnRequest

	// Params are sent verbatim alongside the protocol fields (e.g. filter=...).
	Params url.Values
}

// Form encodes the request the way the console's list.json endpoints parse it.
func (r FetchRequest) Form() url.Values {
	v := url.Values{}
	for k, vals := range r.Params {
		for _, x := range vals {
			v.Add(k, x)
		}
	}
	v.Set("draw", strconv.Itoa(r.Draw))
	v.Set("start", strconv.Itoa(r.Start))
	v.Set("length", strconv.Itoa(r.Length))
	v.Set("search[value]", r.Search)
	v.Set("search[regex]", "false")
	for i, c := range r.Columns {
		p := "columns[" + strconv.Itoa(i) + "]"
		v.Set(p+"[data]", c.Data)
		v.Set(p+"[name]", c.Name)
		v.Set(p+"[searchable]", strconv.FormatBool(c.Searchable))
		v.Set(p+"[orderable]", strconv.FormatBool(c.Orderable))
		v.Set(p+"[search][value]", c.Search)
		v.Set(p+"[search][regex]", "false")
	}
	for i, o := range r.Order {
		p := "order[" + strconv.Itoa(i) + "]"
		v.Set(p+"[column]", strconv.Itoa(o.Column))
		v.Set(p+"[dir]", o.Dir)
	}
	return v
}

// FetchResponse is the server's page of rows.
type FetchResponse struct {
	Draw            int    `json:"draw"`
	RecordsTotal    int    `json:"recordsTotal"`
	RecordsFiltered int    `json:"recordsFiltered"`
	Data            []Row  `json:"data"`
	Error           string `json:"error,omitempty"`
}

// DecodeFetchResponse decodes a list.json body keeping numbers as json.Number,
// so numeric ids keep their exact text form.
func DecodeFetchResponse(b []byte) (*FetchResponse, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var resp FetchResponse
	if err := dec.Decode(&resp); err != nil {
		return nil, fmt.Errorf("decode page: %w", err)
	}
	return &resp, nil
}

// Fetcher retrieves one page from a paginated endpoint.
type Fetcher interface {
	Fetch(ctx context.Context, endpoint string, req FetchRequest) (*FetchResponse, error)
}

type FetcherFunc func(ctx context.Context, endpoint string, req FetchRequest) (*FetchResponse, error)

func (f FetcherFunc) Fetch(ctx context.Context, endpoint string, req FetchRequest) (*FetchResponse, error) {
	return f(ctx, endpoint, req)
}

// FetchError is a failure reported inside an otherwise successful response.
type FetchError struct {
	Message string
}

func (e *FetchError) Error() string       { return "fetch: " + e.Message }
func (e *FetchError) UserMessage() string { return e.Message }
