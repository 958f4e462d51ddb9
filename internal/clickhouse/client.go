// Package clickhouse is a small ClickHouse HTTP interface client: ping,
// read-only queries, the column catalog, and streaming inserts.
package clickhouse

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/jittakal/kafeventsink/internal/errors"
	"github.com/jittakal/kafeventsink/pkg/encoder"
)

// Response headers set by the server.
const (
	headerSummary       = "X-ClickHouse-Summary"
	headerExceptionCode = "X-ClickHouse-Exception-Code"
	headerUser          = "X-ClickHouse-User"
	headerKey           = "X-ClickHouse-Key"
	headerDatabase      = "X-ClickHouse-Database"
)

// Config contains ClickHouse connection configuration.
type Config struct {
	Hostname string
	Port     int
	Database string
	Username string
	Password string
	SSL      bool
	Timeout  time.Duration
	// Endpoints are extra host:port pairs sharing the insert load.
	Endpoints []string
	// Selection is "round_robin" (default) or "hash".
	Selection string
	// HashFunction names the hash used by the "hash" selection. Only
	// murmur3 is supported.
	HashFunction string
	Compression  string
}

// Client talks to ClickHouse over HTTP. It does not retry.
type Client struct {
	cfg      Config
	scheme   string
	http     *http.Client
	selector EndpointSelector
	logger   *slog.Logger
}

// NewClient creates a new ClickHouse client.
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.Hostname == "" {
		return nil, fmt.Errorf("clickhouse hostname is required")
	}
	if cfg.Database == "" {
		cfg.Database = "default"
	}
	if cfg.Username == "" {
		cfg.Username = "default"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if _, err := contentEncoding(cfg.Compression); err != nil {
		return nil, err
	}
	if cfg.HashFunction != "" && cfg.HashFunction != HashMurmur3 {
		return nil, fmt.Errorf("unsupported hash function: %s", cfg.HashFunction)
	}

	endpoints := append([]string{net.JoinHostPort(cfg.Hostname, strconv.Itoa(cfg.Port))}, cfg.Endpoints...)
	selector, err := NewEndpointSelector(cfg.Selection, endpoints)
	if err != nil {
		return nil, err
	}

	scheme := "http"
	if cfg.SSL {
		scheme = "https"
	}

	return &Client{
		cfg:      cfg,
		scheme:   scheme,
		http:     newHTTPClient(cfg),
		selector: selector,
		logger:   logger.With("component", "clickhouse"),
	}, nil
}

func newHTTPClient(cfg Config) *http.Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   16,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		// bodies are compressed explicitly through Content-Encoding
		DisableCompression: true,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
	}
	return &http.Client{
		Transport: transport,
		Timeout:   cfg.Timeout,
	}
}

// Database returns the configured database.
func (c *Client) Database() string {
	return c.cfg.Database
}

// Endpoints returns every endpoint the client may send to.
func (c *Client) Endpoints() []string {
	return c.selector.Endpoints()
}

func (c *Client) endpointURL(endpoint, path string, params url.Values) string {
	u := url.URL{Scheme: c.scheme, Host: endpoint, Path: path}
	if params != nil {
		u.RawQuery = params.Encode()
	}
	return u.String()
}

func (c *Client) authorize(req *http.Request) {
	req.Header.Set(headerUser, c.cfg.Username)
	if c.cfg.Password != "" {
		req.Header.Set(headerKey, c.cfg.Password)
	}
	req.Header.Set(headerDatabase, c.cfg.Database)
}

// Ping checks that the primary endpoint answers /ping with "Ok.".
func (c *Client) Ping(ctx context.Context) error {
	endpoint := c.selector.Endpoints()[0]
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpointURL(endpoint, "/ping", nil), nil)
	if err != nil {
		return fmt.Errorf("failed to build ping request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &errors.TransportError{Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64))
	if resp.StatusCode != http.StatusOK || strings.TrimSpace(string(body)) != "Ok." {
		return &errors.TransportError{
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(body)),
		}
	}
	return nil
}

// Query runs a read-only statement on the primary endpoint and returns the
// response body. The caller must close it.
func (c *Client) Query(ctx context.Context, sql string) (io.ReadCloser, error) {
	endpoint := c.selector.Endpoints()[0]
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.endpointURL(endpoint, "/", url.Values{"readonly": {"1"}}), strings.NewReader(sql))
	if err != nil {
		return nil, fmt.Errorf("failed to build query request: %w", err)
	}
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &errors.TransportError{Endpoint: endpoint, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, responseError(endpoint, resp)
	}
	return resp.Body, nil
}

// InsertRequest describes one streaming insert.
type InsertRequest struct {
	Table  string
	Format encoder.Format
	// Settings are sent as URL parameters, e.g. insert_quorum.
	Settings map[string]string
	// RoutingKey feeds hash endpoint selection.
	RoutingKey string
}

// Insert is an opened insert request: endpoint, URL and headers are fixed,
// the body has not been sent yet.
type Insert struct {
	client   *Client
	endpoint string
	url      string
	query    string
	encoding string
}

// NewInsert performs the insert handshake. It picks an endpoint and builds
// the request; no bytes are sent until Send.
func (c *Client) NewInsert(ctx context.Context, r InsertRequest) (*Insert, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if r.Table == "" {
		return nil, fmt.Errorf("insert table is required")
	}
	switch r.Format {
	case encoder.FormatRowBinary, encoder.FormatJSONEachRow:
	default:
		return nil, fmt.Errorf("unsupported insert format: %s", r.Format)
	}

	query := fmt.Sprintf("INSERT INTO %s.%s FORMAT %s",
		QuoteIdentifier(c.cfg.Database), QuoteIdentifier(r.Table), r.Format)

	params := url.Values{"query": {query}}
	for k, v := range r.Settings {
		params.Set(k, v)
	}

	encoding, _ := contentEncoding(c.cfg.Compression)
	endpoint := c.selector.Select(r.RoutingKey)

	return &Insert{
		client:   c,
		endpoint: endpoint,
		url:      c.endpointURL(endpoint, "/", params),
		query:    query,
		encoding: encoding,
	}, nil
}

// Endpoint returns the host:port the insert goes to.
func (i *Insert) Endpoint() string { return i.endpoint }

// Query returns the INSERT statement.
func (i *Insert) Query() string { return i.query }

// Summary is the server's progress report for a finished query.
type Summary struct {
	ReadRows     int64 `json:"read_rows,string"`
	ReadBytes    int64 `json:"read_bytes,string"`
	WrittenRows  int64 `json:"written_rows,string"`
	WrittenBytes int64 `json:"written_bytes,string"`
	ResultRows   int64 `json:"result_rows,string"`
	ResultBytes  int64 `json:"result_bytes,string"`
	ElapsedNs    int64 `json:"elapsed_ns,string"`
}

// ParseSummary decodes an X-ClickHouse-Summary header value.
func ParseSummary(v string) (Summary, error) {
	var s Summary
	if v == "" {
		return s, fmt.Errorf("empty %s header", headerSummary)
	}
	if err := json.Unmarshal([]byte(v), &s); err != nil {
		return s, fmt.Errorf("failed to parse %s: %w", headerSummary, err)
	}
	return s, nil
}

// Send streams body as the insert payload and waits for the server's
// acknowledgment. body must already be encoded with WrapWriter when
// compression is configured.
func (i *Insert) Send(ctx context.Context, body io.Reader) (Summary, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, i.url, body)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to build insert request: %w", err)
	}
	i.client.authorize(req)
	req.Header.Set("Content-Type", "application/octet-stream")
	if i.encoding != "" {
		req.Header.Set("Content-Encoding", i.encoding)
	}

	resp, err := i.client.http.Do(req)
	if err != nil {
		return Summary{}, &errors.TransportError{Endpoint: i.endpoint, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Summary{}, responseError(i.endpoint, resp)
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	summary, err := ParseSummary(resp.Header.Get(headerSummary))
	if err != nil {
		return Summary{}, &errors.TransportError{
			Endpoint:   i.endpoint,
			StatusCode: resp.StatusCode,
			Message:    err.Error(),
			Err:        err,
		}
	}
	return summary, nil
}

func responseError(endpoint string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return &errors.TransportError{
		Endpoint:   endpoint,
		StatusCode: resp.StatusCode,
		Code:       resp.Header.Get(headerExceptionCode),
		Message:    strings.TrimSpace(string(body)),
	}
}

// QuoteIdentifier backquotes a database or table name.
func QuoteIdentifier(name string) string {
	name = strings.ReplaceAll(name, `\`, `\\`)
	return "`" + strings.ReplaceAll(name, "`", "\\`") + "`"
}
