// Package cms fetches localizable entries from a Strapi-style REST API.
//
// Both the v4 envelope ({"id": 1, "attributes": {...}}) and the flat v5
// shape are accepted; relation envelopes ({"data": {...}}) are unwrapped
// at every depth so that the extractor sees plain component objects.
package cms

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/minios-linux/cmsl10n/entry"
)

var json = jsoniter.Config{
	EscapeHTML: false,
	UseNumber:  true,
}.Froze()

// ErrNotFound is returned by FetchEntry when no entry has the l10nId.
var ErrNotFound = errors.New("cms: entry not found")

// ErrResponseTooLarge is returned when a response exceeds the configured
// MaxResponseBody.
var ErrResponseTooLarge = errors.New("cms: response too large")

// Defaults.
const (
	DefaultPageSize = 100
	DefaultTimeout  = 30 * time.Second
	DefaultPopulate = "deep"

	// maxPages bounds pagination against a misbehaving server.
	maxPages = 1000
	// maxErrorBody is how much of an error response is kept.
	maxErrorBody = 300
	// DefaultMaxResponseBody caps a single page response.
	DefaultMaxResponseBody = 32 << 20
)

// Source provides CMS entries.
type Source interface {
	// FetchEntries returns every localizable entry. Entries without an
	// l10nId are dropped.
	FetchEntries(ctx context.Context) ([]entry.Entry, error)
	// FetchEntry returns the entry with the given l10nId, or ErrNotFound.
	FetchEntry(ctx context.Context, l10nID string) (entry.Entry, error)
}

// StatusError is returned when the CMS answers with a non-2xx status.
type StatusError struct {
	Code int
	URL  string
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("cms: GET %s: status %d: %s", e.URL, e.Code, e.Body)
}

// Options configures a Client.
type Options struct {
	BaseURL    string
	Token      string
	Collection string
	PageSize   int
	Populate   string
	Timeout    time.Duration
	// MaxResponseBody caps the bytes read per response; defaults to
	// DefaultMaxResponseBody.
	MaxResponseBody int64
	// Proxy overrides HTTP_PROXY/HTTPS_PROXY from the environment.
	Proxy string
	// HTTPClient replaces the client built from Timeout and Proxy.
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Client is a Source backed by the CMS REST API.
type Client struct {
	base       string
	token      string
	collection string
	pageSize   int
	populate   string
	maxBody    int64
	http       *http.Client
	log        *zap.Logger
}

var _ Source = (*Client)(nil)

// New creates a Client.
func New(opts Options) *Client {
	c := &Client{
		base:       strings.TrimRight(opts.BaseURL, "/"),
		token:      opts.Token,
		collection: strings.Trim(opts.Collection, "/"),
		pageSize:   opts.PageSize,
		populate:   opts.Populate,
		maxBody:    opts.MaxResponseBody,
		http:       opts.HTTPClient,
		log:        opts.Logger,
	}
	if c.pageSize <= 0 {
		c.pageSize = DefaultPageSize
	}
	if c.populate == "" {
		c.populate = DefaultPopulate
	}
	if c.maxBody <= 0 {
		c.maxBody = DefaultMaxResponseBody
	}
	if c.http == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		c.http = makeHTTPClient(opts.Proxy, timeout)
	}
	if c.log == nil {
		c.log = zap.NewNop()
	}
	return c
}

// makeHTTPClient creates an HTTP client honouring an explicit proxy or the
// standard proxy environment variables.
func makeHTTPClient(proxyURL string, timeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if proxyURL != "" {
		if parsed, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(parsed)
		}
	} else {
		transport.Proxy = http.ProxyFromEnvironment
	}
	return &http.Client{Transport: transport, Timeout: timeout}
}

// ---------------------------------------------------------------------------
// Fetching
// ---------------------------------------------------------------------------

type listResponse struct {
	Data []any `json:"data"`
	Meta struct {
		Pagination struct {
			Page      int `json:"page"`
			PageSize  int `json:"pageSize"`
			PageCount int `json:"pageCount"`
			Total     int `json:"total"`
		} `json:"pagination"`
	} `json:"meta"`
}

// FetchEntries walks every page of the collection.
func (c *Client) FetchEntries(ctx context.Context) ([]entry.Entry, error) {
	var (
		entries []entry.Entry
		dropped int
	)
	for page := 1; page <= maxPages; page++ {
		q := c.query(page, c.pageSize)
		resp, err := c.list(ctx, q)
		if err != nil {
			return nil, err
		}
		for _, item := range resp.Data {
			e, ok := entry.NewEntry(entry.FromValue(Flatten(item)))
			if !ok {
				dropped++
				continue
			}
			entries = append(entries, e)
		}
		c.log.Debug("fetched CMS page",
			zap.Int("page", page),
			zap.Int("page_count", resp.Meta.Pagination.PageCount),
			zap.Int("items", len(resp.Data)))

		if page >= resp.Meta.Pagination.PageCount || len(resp.Data) == 0 {
			break
		}
	}
	if dropped > 0 {
		c.log.Debug("dropped CMS entries without l10nId", zap.Int("count", dropped))
	}
	return entries, nil
}

// FetchEntry fetches a single entry by l10nId.
func (c *Client) FetchEntry(ctx context.Context, l10nID string) (entry.Entry, error) {
	q := c.query(1, 1)
	q.Set("filters[l10nId][$eq]", l10nID)
	resp, err := c.list(ctx, q)
	if err != nil {
		return entry.Entry{}, err
	}
	for _, item := range resp.Data {
		if e, ok := entry.NewEntry(entry.FromValue(Flatten(item))); ok && e.L10nID == l10nID {
			return e, nil
		}
	}
	return entry.Entry{}, fmt.Errorf("%w: %s", ErrNotFound, l10nID)
}

func (c *Client) query(page, size int) url.Values {
	q := url.Values{}
	q.Set("populate", c.populate)
	q.Set("pagination[page]", strconv.Itoa(page))
	q.Set("pagination[pageSize]", strconv.Itoa(size))
	return q
}

func (c *Client) list(ctx context.Context, q url.Values) (*listResponse, error) {
	endpoint := c.base + "/api/" + c.collection + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cms request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return nil, fmt.Errorf("reading cms response: %w", err)
	}
	if int64(len(body)) > c.maxBody {
		return nil, fmt.Errorf("%w: more than %d bytes from %s", ErrResponseTooLarge, c.maxBody, c.base+"/api/"+c.collection)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Code: resp.StatusCode, URL: c.base + "/api/" + c.collection, Body: truncate(string(body), maxErrorBody)}
	}

	var out listResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("parsing cms response: %w", err)
	}
	return &out, nil
}

// ---------------------------------------------------------------------------
// Envelope flattening
// ---------------------------------------------------------------------------

// Flatten removes Strapi response envelopes from v:
//
//	{"id": 1, "attributes": {"l10nId": "x"}}  -> {"id": 1, "l10nId": "x"}
//	{"data": {...}}                          -> {...}
//
// Other values are copied unchanged.
func Flatten(v any) any {
	switch t := v.(type) {
	case map[string]any:
		if attrs, ok := t["attributes"].(map[string]any); ok {
			out := make(map[string]any, len(attrs)+1)
			for k, v := range attrs {
				out[k] = Flatten(v)
			}
			if id, ok := t["id"]; ok {
				if _, exists := out["id"]; !exists {
					out["id"] = id
				}
			}
			return out
		}
		if data, ok := t["data"]; ok && isEnvelope(t) {
			return Flatten(data)
		}
		out := make(map[string]any, len(t))
		for k, v := range t {
			out[k] = Flatten(v)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, v := range t {
			out[i] = Flatten(v)
		}
		return out
	default:
		return v
	}
}

// isEnvelope reports whether m only holds "data" and optionally "meta".
func isEnvelope(m map[string]any) bool {
	for k := range m {
		if k != "data" && k != "meta" {
			return false
		}
	}
	return true
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
