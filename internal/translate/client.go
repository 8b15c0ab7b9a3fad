// Package translate calls a MyMemory-compatible translation endpoint.
package translate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultEndpoint is the public MyMemory GET endpoint.
	DefaultEndpoint = "https://api.mymemory.translated.net/get"
	// DefaultTimeout bounds one translation request.
	DefaultTimeout = 10 * time.Second

	invalidPairMarker = "INVALID LANGUAGE PAIR"
	quotaMarker       = "MYMEMORY WARNING"
	maxResponseBytes  = 1 << 20
)

// Result is one completed translation.
type Result struct {
	Text       string `json:"text"`
	SourceCode string `json:"source"`
	TargetCode string `json:"target"`
}

// Empty reports whether r is the empty-input result.
func (r Result) Empty() bool {
	return r == Result{}
}

// Translator is the contract the session layer depends on.
type Translator interface {
	Translate(ctx context.Context, text, source, target string) (Result, error)
}

// Options configures a Client.
type Options struct {
	Endpoint   string
	Timeout    time.Duration
	Email      string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client performs translation requests.
type Client struct {
	endpoint string
	timeout  time.Duration
	email    string
	http     *http.Client
	logger   *slog.Logger
}

// New returns a Client with defaults applied to unset options.
func New(opts Options) *Client {
	endpoint := strings.TrimSpace(opts.Endpoint)
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        8,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}
	return &Client{
		endpoint: endpoint,
		timeout:  timeout,
		email:    strings.TrimSpace(opts.Email),
		http:     httpClient,
		logger:   opts.Logger,
	}
}

// Endpoint returns the configured request URL base.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Translate converts text from source to target.
//
// Whitespace-only text returns an empty Result without a request. Equal
// source and target return text unchanged without a request. Failures are
// returned as *Error, except cancellation of ctx which is returned as-is.
func (c *Client) Translate(ctx context.Context, text, source, target string) (Result, error) {
	source = strings.ToLower(strings.TrimSpace(source))
	target = strings.ToLower(strings.TrimSpace(target))

	if strings.TrimSpace(text) == "" {
		return Result{}, nil
	}
	if source == target {
		return Result{Text: text, SourceCode: source, TargetCode: target}, nil
	}

	requestID := uuid.NewString()
	langpair := source + "|" + target
	started := time.Now()

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	result, err := c.do(reqCtx, text, source, target)
	if err != nil {
		err = c.classify(ctx, reqCtx, err, source, target)
		c.log(slog.LevelWarn, "translation failed",
			"request_id", requestID,
			"langpair", langpair,
			"duration_ms", time.Since(started).Milliseconds(),
			"kind", string(KindOf(err)),
			"error", err.Error(),
		)
		return Result{}, err
	}

	c.log(slog.LevelDebug, "translation complete",
		"request_id", requestID,
		"langpair", langpair,
		"duration_ms", time.Since(started).Milliseconds(),
	)
	return result, nil
}

func (c *Client) do(ctx context.Context, text, source, target string) (Result, error) {
	query := url.Values{}
	query.Set("q", text)
	query.Set("langpair", source+"|"+target)
	if c.email != "" {
		query.Set("de", c.email)
	}

	requestURL := c.endpoint
	if strings.Contains(requestURL, "?") {
		requestURL += "&" + query.Encode()
	} else {
		requestURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return Result{}, &Error{Kind: KindGeneric, Source: source, Target: target, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Result{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return Result{}, &Error{Kind: KindServiceUnavailable, Source: source, Target: target, StatusCode: resp.StatusCode}
	}

	var payload response
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&payload); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{}, ctxErr
		}
		return Result{}, &Error{Kind: KindGeneric, Source: source, Target: target, Message: "invalid response", Err: err}
	}

	if payload.ResponseStatus != http.StatusOK {
		details := strings.TrimSpace(payload.ResponseDetails)
		if strings.Contains(strings.ToUpper(details), invalidPairMarker) {
			return Result{}, &Error{Kind: KindUnsupportedPair, Source: source, Target: target, StatusCode: int(payload.ResponseStatus)}
		}
		return Result{}, &Error{Kind: KindGeneric, Source: source, Target: target, StatusCode: int(payload.ResponseStatus), Message: details}
	}

	translated := payload.ResponseData.TranslatedText
	if strings.Contains(strings.ToUpper(translated), quotaMarker) {
		return Result{}, &Error{Kind: KindRateLimited, Source: source, Target: target}
	}

	return Result{Text: translated, SourceCode: source, TargetCode: target}, nil
}

// classify maps transport failures onto error kinds. parent is the caller's
// context and reqCtx the per-request timeout context derived from it.
func (c *Client) classify(parent, reqCtx context.Context, err error, source, target string) error {
	var terr *Error
	if errors.As(err, &terr) {
		return terr
	}

	if errors.Is(parent.Err(), context.Canceled) {
		return parent.Err()
	}

	wrap := func(kind Kind) error {
		return &Error{Kind: kind, Source: source, Target: target, Err: err}
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(reqCtx.Err(), context.DeadlineExceeded) {
		return wrap(KindTimeout)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return wrap(KindTimeout)
	}

	var dnsErr *net.DNSError
	var opErr *net.OpError
	switch {
	case errors.As(err, &dnsErr),
		errors.As(err, &opErr),
		errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.ECONNABORTED),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, io.EOF):
		return wrap(KindConnectivity)
	}

	return wrap(KindGeneric)
}

func (c *Client) log(level slog.Level, msg string, args ...any) {
	if c.logger == nil {
		return
	}
	c.logger.Log(context.Background(), level, msg, args...)
}

// response is the subset of the MyMemory payload voxlate reads.
type response struct {
	ResponseData struct {
		TranslatedText string  `json:"translatedText"`
		Match          float64 `json:"match"`
	} `json:"responseData"`
	ResponseStatus  statusCode `json:"responseStatus"`
	ResponseDetails string     `json:"responseDetails"`
}

// statusCode accepts both 200 and "200"; MyMemory sends either.
type statusCode int

func (s *statusCode) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" || raw == "" {
		*s = 0
		return nil
	}
	raw = strings.Trim(raw, `"`)
	var n int
	if _, err := fmt.Sscanf(raw, "%d", &n); err != nil {
		return fmt.Errorf("invalid responseStatus %q", raw)
	}
	*s = statusCode(n)
	return nil
}
