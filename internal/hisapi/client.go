// Package hisapi is the typed HTTP client for one HIS instance: metadata
// fetch/import, aggregate data values, events, and tracker bundles, plus
// pagination and the error taxonomy from spec.md §7.
package hisapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/his-sync/replicator/internal/domain/instance"
	"github.com/his-sync/replicator/pkg/logger"
)

const (
	defaultTimeout  = 30 * time.Second
	defaultBodyCap  = 32 << 20 // 32 MiB, generous for metadata/data payloads
)

// Client speaks the plain HTTP(S)+Basic-auth HIS protocol to one Instance.
type Client struct {
	baseURL  string
	username string
	password string
	http     *http.Client
	log      *logger.Logger
	bodyCap  int64
}

// New constructs a Client for the given instance. A nil httpClient falls
// back to a client with a sensible default timeout (mirrors the teacher's
// oracle.HTTPResolver default).
func New(inst instance.Instance, httpClient *http.Client, log *logger.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	if log == nil {
		log = logger.NewDefault("hisapi")
	}
	return &Client{
		baseURL:  instance.NormalizeBaseURL(inst.BaseURL),
		username: inst.Username,
		password: inst.Password,
		http:     httpClient,
		log:      log,
		bodyCap:  defaultBodyCap,
	}
}

// Kind classifies a Client error per spec.md §7's taxonomy (by kind, not by
// Go type), so callers can decide skip-vs-fail without string matching.
type Kind int

const (
	KindUnknown Kind = iota
	KindTransport
	KindAuth
	KindNotFound
	KindServer // HTTP 5xx from the remote, not a transport failure
)

// Error wraps a request failure with its Kind and, where available, the
// HTTP status code and response body.
type Error struct {
	Kind       Kind
	StatusCode int
	Body       string
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("hisapi: %v", e.Err)
	}
	return fmt.Sprintf("hisapi: status %d: %s", e.StatusCode, e.Body)
}

func (e *Error) Unwrap() error { return e.Err }

// IsNotFound reports whether err represents an HTTP 404 (spec.md §7,
// "Resource not available").
func IsNotFound(err error) bool {
	var apiErr *Error
	if ok := asAPIError(err, &apiErr); ok {
		return apiErr.Kind == KindNotFound
	}
	return false
}

// IsAuth reports whether err represents an HTTP 401/403 (fatal for the Job).
func IsAuth(err error) bool {
	var apiErr *Error
	if ok := asAPIError(err, &apiErr); ok {
		return apiErr.Kind == KindAuth
	}
	return false
}

func asAPIError(err error, target **Error) bool {
	apiErr, ok := err.(*Error)
	if ok {
		*target = apiErr
	}
	return ok
}

func classify(statusCode int) Kind {
	switch {
	case statusCode == http.StatusNotFound:
		return KindNotFound
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return KindAuth
	case statusCode >= 500:
		return KindServer
	default:
		return KindUnknown
	}
}

// get issues an authenticated GET against path with the given query values
// and returns the raw response body.
func (c *Client) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	endpoint := c.baseURL + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &Error{Kind: KindTransport, Err: fmt.Errorf("build request: %w", err)}
	}
	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("Accept", "application/json")

	return c.do(req)
}

// post issues an authenticated POST with a JSON body.
func (c *Client) post(ctx context.Context, path string, query url.Values, payload any) ([]byte, error) {
	endpoint := c.baseURL + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &Error{Kind: KindTransport, Err: fmt.Errorf("encode payload: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(string(body)))
	if err != nil {
		return nil, &Error{Kind: KindTransport, Err: fmt.Errorf("build request: %w", err)}
	}
	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	return c.do(req)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &Error{Kind: KindTransport, Err: fmt.Errorf("execute request: %w", err)}
	}
	defer resp.Body.Close()

	limited := io.LimitReader(resp.Body, c.bodyCap)
	respBody, err := io.ReadAll(limited)
	if err != nil {
		return nil, &Error{Kind: KindTransport, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return respBody, &Error{
			Kind:       classify(resp.StatusCode),
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(respBody)),
		}
	}
	return respBody, nil
}

// Probe hits system/info to confirm reachability (spec.md §4.3 step 2).
func (c *Client) Probe(ctx context.Context) error {
	_, err := c.get(ctx, "system/info", nil)
	return err
}

// PageSizeParam is the query key for page sizing, shared by all paged reads.
const PageSizeParam = "pageSize"

func intParam(v int) string { return strconv.Itoa(v) }
