package crawler

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultUserAgent = "keyword-crawler/1.0 (+https://example.com)"

// ErrNonHTML is returned by FetchHTML for responses that are not HTML.
var ErrNonHTML = errors.New("non-html content")

// StatusError is returned for responses outside the 2xx/3xx range.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string { return fmt.Sprintf("http status %d", e.Code) }

// IsNotFound reports whether err is a 404 or 410 StatusError.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && (se.Code == http.StatusNotFound || se.Code == http.StatusGone)
}

type HTTPClient struct {
	client    *http.Client
	sizeCap   int64
	userAgent string
}

// Response is a fetched body, capped at the client's size limit.
type Response struct {
	Body        io.ReadCloser
	FinalURL    string
	ContentType string
	Elapsed     time.Duration
}

func NewHTTPClient(timeout, dialTimeout time.Duration, sizeCap int64) *HTTPClient {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   dialTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	return &HTTPClient{
		client: &http.Client{
			Transport: transport,
			Timeout:   timeout,
		},
		sizeCap:   sizeCap,
		userAgent: defaultUserAgent,
	}
}

// SetUserAgent overrides the User-Agent header sent with every request.
func (h *HTTPClient) SetUserAgent(ua string) {
	if ua != "" {
		h.userAgent = ua
	}
}

// Get fetches rawURL. The caller must close the returned body.
func (h *HTTPClient) Get(ctx context.Context, rawURL, accept string) (*Response, error) {
	start := time.Now()
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid url %q", rawURL)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	req.Header.Set("Accept-Encoding", "gzip")
	req.Header.Set("User-Agent", h.userAgent)

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		resp.Body.Close()
		return nil, &StatusError{Code: resp.StatusCode, URL: rawURL}
	}

	body, err := decodeBody(resp)
	if err != nil {
		resp.Body.Close()
		return nil, err
	}
	return &Response{
		Body:        limitReadCloser{Reader: io.LimitReader(body, h.sizeCap), Closer: body},
		FinalURL:    resp.Request.URL.String(),
		ContentType: resp.Header.Get("Content-Type"),
		Elapsed:     time.Since(start),
	}, nil
}

// FetchHTML is Get restricted to HTML documents. A response without a
// Content-Type is accepted.
func (h *HTTPClient) FetchHTML(ctx context.Context, rawURL string) (*Response, error) {
	resp, err := h.Get(ctx, rawURL, "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	if err != nil {
		return nil, err
	}
	mediaType, _, _ := mime.ParseMediaType(resp.ContentType)
	if !strings.Contains(mediaType, "text/html") && !strings.Contains(mediaType, "application/xhtml+xml") && mediaType != "" {
		resp.Body.Close()
		return nil, ErrNonHTML
	}
	return resp, nil
}

// PostJSON sends in as a JSON body and decodes the JSON response into out.
// The response is decoded even for error statuses so callers can read the
// service's error message; a *StatusError is still returned in that case.
func (h *HTTPClient) PostJSON(ctx context.Context, rawURL string, header http.Header, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", h.userAgent)

	resp, err := h.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var statusErr error
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		statusErr = &StatusError{Code: resp.StatusCode, URL: rawURL}
	}
	if out != nil {
		dec := json.NewDecoder(io.LimitReader(resp.Body, h.sizeCap))
		if err := dec.Decode(out); err != nil && statusErr == nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return statusErr
}

func decodeBody(resp *http.Response) (io.ReadCloser, error) {
	if strings.EqualFold(resp.Header.Get("Content-Encoding"), "gzip") {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, err
		}
		return gzipBody{Reader: gz, raw: resp.Body}, nil
	}
	return resp.Body, nil
}

type gzipBody struct {
	*gzip.Reader
	raw io.Closer
}

func (g gzipBody) Close() error {
	g.Reader.Close()
	return g.raw.Close()
}

type limitReadCloser struct {
	io.Reader
	io.Closer
}
