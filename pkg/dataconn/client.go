// Package dataconn is a client for the credential-gated data-connection
// backend that serves warehouse tables and the flat electoral feed.
package dataconn

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/geobrowser/internal/electoral"
	"github.com/sells-group/geobrowser/internal/fetcher"
	"github.com/sells-group/geobrowser/internal/metrics"
)

const defaultBaseURL = "http://localhost:8000"

// Endpoints.
const (
	EndpointConnect      = "/connect"
	EndpointTableData    = "/get_table_data"
	EndpointElectoral    = "/get_electoral_data"
	accountDomainSuffix  = ".snowflakecomputing.com"
	maxErrorMessageBytes = 4096
)

// Credentials are sent with Connect and never stored by the client.
type Credentials struct {
	Link     string `json:"link"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// Client talks to the data-connection backend. Calls are never retried.
type Client interface {
	Connect(ctx context.Context, creds Credentials) ([]string, error)
	TableData(ctx context.Context, table string) ([]map[string]any, error)
	ElectoralData(ctx context.Context) (*electoral.Dataset, error)
}

// ConnectivityError is the single error kind for backend failures: transport
// errors and non-2xx responses alike. Message is the upstream text verbatim.
type ConnectivityError struct {
	Op      string
	Status  int // 0 for transport failures
	Message string
	Err     error
}

func (e *ConnectivityError) Error() string {
	if e.Status != 0 {
		return "dataconn: " + e.Op + ": status " + strconv.Itoa(e.Status) + ": " + e.Message
	}
	return "dataconn: " + e.Op + ": " + e.Message
}

func (e *ConnectivityError) Unwrap() error { return e.Err }

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default backend base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithTimeout sets the per-request timeout of the default http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *httpClient) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

type httpClient struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a backend client.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// AccountFromLink extracts the account identifier from a
// https://<account>.snowflakecomputing.com link. The account must itself
// contain a region part, e.g. "xy12345.us-east-1".
func AccountFromLink(link string) (string, error) {
	if !strings.HasPrefix(link, "https://") {
		return "", eris.Errorf("dataconn: link %q must start with https://", link)
	}
	if !strings.HasSuffix(link, accountDomainSuffix) {
		return "", eris.Errorf("dataconn: link %q is not a %s address", link, accountDomainSuffix[1:])
	}
	account := strings.TrimSuffix(strings.TrimPrefix(link, "https://"), accountDomainSuffix)
	if account == "" || !strings.Contains(account, ".") {
		return "", eris.Errorf("dataconn: link %q has no account.region identifier", link)
	}
	return account, nil
}

func (c *httpClient) Connect(ctx context.Context, creds Credentials) ([]string, error) {
	if _, err := AccountFromLink(creds.Link); err != nil {
		return nil, err
	}
	body, err := json.Marshal(creds)
	if err != nil {
		return nil, eris.Wrap(err, "dataconn: marshal credentials")
	}

	zap.L().Info("dataconn: connecting", zap.String("username", creds.Username))

	var out struct {
		Tables []string `json:"tables"`
	}
	if err := c.do(ctx, "connect", http.MethodPost, EndpointConnect, bytes.NewReader(body), func(r io.Reader) error {
		return json.NewDecoder(r).Decode(&out)
	}); err != nil {
		return nil, err
	}
	if out.Tables == nil {
		out.Tables = []string{}
	}
	return out.Tables, nil
}

func (c *httpClient) TableData(ctx context.Context, table string) ([]map[string]any, error) {
	if table == "" {
		return nil, eris.New("dataconn: table name is required")
	}
	path := EndpointTableData + "?" + url.Values{"table": {table}}.Encode()

	var rows []map[string]any
	if err := c.do(ctx, "table data", http.MethodGet, path, nil, func(r io.Reader) error {
		var err error
		rows, err = fetcher.DecodeJSONField[[]map[string]any](r, "table_data")
		return err
	}); err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []map[string]any{}
	}
	return rows, nil
}

func (c *httpClient) ElectoralData(ctx context.Context) (*electoral.Dataset, error) {
	var rows []electoral.Row
	if err := c.do(ctx, "electoral data", http.MethodGet, EndpointElectoral, nil, func(r io.Reader) error {
		var err error
		rows, err = fetcher.DecodeJSONField[[]electoral.Row](r, "electoral_data")
		return err
	}); err != nil {
		return nil, err
	}
	ds, err := electoral.FromRows(rows)
	if err != nil {
		return nil, eris.Wrap(err, "dataconn: group electoral rows")
	}
	return ds, nil
}

// do sends one request and hands a 2xx body to decode. Transport errors and
// non-2xx statuses become a ConnectivityError; decode failures are plain
// errors.
func (c *httpClient) do(ctx context.Context, op, method, path string, body io.Reader, decode func(io.Reader) error) (err error) {
	defer func() {
		metrics.BackendRequestsTotal.WithLabelValues(op, metrics.Outcome(err)).Inc()
	}()

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return eris.Wrapf(err, "dataconn: create %s request", op)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return &ConnectivityError{Op: op, Message: err.Error(), Err: err}
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorMessageBytes))
		return &ConnectivityError{Op: op, Status: resp.StatusCode, Message: errorMessage(raw)}
	}

	if err := decode(resp.Body); err != nil {
		return eris.Wrapf(err, "dataconn: decode %s response", op)
	}
	return nil
}

// errorMessage returns the "detail" member of a JSON error body, or the body
// text itself.
func errorMessage(raw []byte) string {
	var detail struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(raw, &detail); err == nil && detail.Detail != "" {
		return detail.Detail
	}
	return strings.TrimSpace(string(raw))
}
