package analysis

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/textproto"
	"strings"
	"time"
)

// Headers understood by the external analysis service
const (
	HeaderClientID  = "EMO-Client-ID"
	HeaderSecretKey = "EMO-Secret-Key"
	HeaderUserToken = "X-User-Token"
)

const (
	defaultPollTimeout    = 30 * time.Second
	defaultUploadField    = "bark_file"
	defaultExcerptLimit   = 1000
	maxBodyBytes          = 2 << 20
	connectTimeout        = 10 * time.Second
	tlsHandshakeTimeout   = 10 * time.Second
	expectContinueTimeout = 1 * time.Second
	keepAliveTimeout      = 30 * time.Second
	idleConnTimeout       = 90 * time.Second
	maxIdleConns          = 100
	maxIdleConnsPerHost   = 10
)

// Config is the upstream configuration injected into Submitter and Poller
type Config struct {
	SubmitURL    string
	ResultURL    string
	ClientID     string
	SecretKey    string
	Referer      string
	UploadField  string
	PollTimeout  time.Duration
	ExcerptLimit int
	PendingCodes []string
}

// Client talks to the external analysis service
type Client struct {
	cfg  Config
	http *http.Client
}

type upstreamResponse struct {
	StatusCode int
	Body       []byte
	Truncated  bool // Body was cut at maxBodyBytes
}

// NewClient creates a Client. A nil httpClient gets a tuned default transport
// without an overall timeout; the poll deadline is applied per request.
func NewClient(cfg Config, httpClient *http.Client) *Client {
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = defaultPollTimeout
	}
	if cfg.UploadField == "" {
		cfg.UploadField = defaultUploadField
	}
	if cfg.ExcerptLimit <= 0 {
		cfg.ExcerptLimit = defaultExcerptLimit
	}
	if httpClient == nil {
		httpClient = newHTTPClient()
	}
	return &Client{cfg: cfg, http: httpClient}
}

func newHTTPClient() *http.Client {
	dialer := &net.Dialer{
		Timeout:   connectTimeout,
		KeepAlive: keepAliveTimeout,
	}
	return &http.Client{
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           dialer.DialContext,
			TLSHandshakeTimeout:   tlsHandshakeTimeout,
			ExpectContinueTimeout: expectContinueTimeout,
			IdleConnTimeout:       idleConnTimeout,
			MaxIdleConns:          maxIdleConns,
			MaxIdleConnsPerHost:   maxIdleConnsPerHost,
		},
	}
}

// Config returns the upstream configuration
func (c *Client) Config() Config {
	return c.cfg
}

func (c *Client) setCredentials(req *http.Request, credential string) {
	req.Header.Set(HeaderClientID, c.cfg.ClientID)
	req.Header.Set(HeaderSecretKey, c.cfg.SecretKey)
	req.Header.Set(HeaderUserToken, credential)
}

// upload forwards the payload as a single multipart file part
func (c *Client) upload(ctx context.Context, sub Submission) (*upstreamResponse, int64, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	contentType := sub.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		quoteEscaper.Replace(c.cfg.UploadField), quoteEscaper.Replace(sub.FileName)))
	h.Set("Content-Type", contentType)

	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, 0, fmt.Errorf("create multipart part: %w", err)
	}
	written, err := io.Copy(part, sub.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("read payload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, 0, fmt.Errorf("close multipart writer: %w", err)
	}
	if written == 0 {
		return nil, 0, errEmptyPayload
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.SubmitURL, &buf)
	if err != nil {
		return nil, written, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	c.setCredentials(req, sub.Credential)

	resp, err := c.do(req)
	return resp, written, err
}

// fetchResult reads the caller's latest analysis result
func (c *Client) fetchResult(ctx context.Context, credential string) (*upstreamResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.ResultURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	c.setCredentials(req, credential)
	if c.cfg.Referer != "" {
		req.Header.Set("Referer", c.cfg.Referer)
	}
	req.Header.Set("Cache-Control", "no-cache, no-store, must-revalidate")
	req.Header.Set("Pragma", "no-cache")
	req.Header.Set("Expires", "0")

	return c.do(req)
}

func (c *Client) do(req *http.Request) (*upstreamResponse, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	truncated := len(body) > maxBodyBytes
	if truncated {
		body = body[:maxBodyBytes]
	}
	return &upstreamResponse{StatusCode: resp.StatusCode, Body: body, Truncated: truncated}, nil
}

var (
	errEmptyPayload  = errors.New("payload is empty")
	errBodyTruncated = fmt.Errorf("response body exceeds %d bytes", maxBodyBytes)
)

var quoteEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

func isSuccess(status int) bool {
	return status/100 == 2
}
