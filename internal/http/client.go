package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/wb-go/wbf/retry"
	"golang.org/x/time/rate"
)

// MaxBodySize caps the number of bytes read by DownloadBytes.
const MaxBodySize = 50 * 1024 * 1024

// ErrBodyTooLarge is returned when a response exceeds MaxBodySize.
var ErrBodyTooLarge = errors.New("response body too large")

// DecodeError reports a response body that did not decode into the
// requested value, including an empty body.
type DecodeError struct {
	URL string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.URL, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// StatusError reports a non-2xx response.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Code, e.URL)
}

// Options configures a Client.
type Options struct {
	// UserAgent is sent with every request.
	UserAgent string

	// Timeout bounds each catalog request (GetJSON). Zero disables it.
	Timeout time.Duration

	// RateLimit is the sustained number of requests per second shared by
	// all callers of the client. Zero disables rate limiting.
	RateLimit float64
	RateBurst int

	// Retry is applied to catalog requests only. Image downloads are
	// attempted once.
	Retry retry.Strategy
}

// DefaultOptions returns options suitable for public card APIs.
func DefaultOptions() Options {
	return Options{
		UserAgent: "TCGFetch",
		Timeout:   5 * time.Minute,
		RateLimit: 10,
		RateBurst: 5,
		Retry: retry.Strategy{
			Attempts: 3,
			Delay:    500 * time.Millisecond,
			Backoff:  2,
		},
	}
}

// Client wraps HTTP operations for the card catalog APIs and image CDNs.
//
// Client provides:
//   - A configured User-Agent header
//   - A token-bucket rate limiter shared across goroutines
//   - Retried JSON fetches for catalog pages
//   - Single-shot, size-capped image downloads with a per-fetch timeout
//
// Example usage:
//
//	client := NewClient(DefaultOptions())
//
//	var page scryfall.List
//	err := client.GetJSON(ctx, "https://api.scryfall.com/cards/search?q=set:lea", &page)
//
//	data, err := client.DownloadBytes(ctx, card.ImageURL, 30*time.Second)
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	opts       Options
}

// NewClient creates a new HTTP client with the given options.
//
// The underlying http.Client has no global timeout so that large catalog
// streams are not cut off; deadlines are applied per call instead.
func NewClient(opts Options) *Client {
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultOptions().UserAgent
	}
	if opts.Retry.Attempts <= 0 {
		opts.Retry.Attempts = 1
	}

	var limiter *rate.Limiter
	if opts.RateLimit > 0 {
		burst := opts.RateBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}

	return &Client{
		httpClient: &http.Client{},
		limiter:    limiter,
		opts:       opts,
	}
}

// UserAgent returns the User-Agent header value sent by the client.
func (c *Client) UserAgent() string {
	return c.opts.UserAgent
}

// Open performs a GET request and returns the response body for streaming.
//
// The caller must close the returned reader. Non-2xx responses are
// returned as *StatusError.
func (c *Client) Open(ctx context.Context, url string) (io.ReadCloser, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.opts.UserAgent)
	req.Header.Set("Accept", "*/*")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, &StatusError{URL: url, Code: resp.StatusCode}
	}

	return resp.Body, nil
}

// Get performs a single GET request and returns the response body as bytes.
//
// Returns an error if:
//   - The request fails
//   - The response status is not 2xx
//   - Reading the body fails
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	body, err := c.Open(ctx, url)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	return io.ReadAll(body)
}

// GetJSON fetches url and decodes the JSON body into target.
//
// Transport errors and bad statuses are retried according to
// Options.Retry. Decode errors are returned as *DecodeError and are not
// retried.
func (c *Client) GetJSON(ctx context.Context, url string, target any) error {
	var decodeErr error

	err := retry.Do(func() error {
		if err := ctx.Err(); err != nil {
			return err
		}

		reqCtx := ctx
		if c.opts.Timeout > 0 {
			var cancel context.CancelFunc
			reqCtx, cancel = context.WithTimeout(ctx, c.opts.Timeout)
			defer cancel()
		}

		body, err := c.Open(reqCtx, url)
		if err != nil {
			return err
		}
		defer body.Close()

		if err := json.NewDecoder(body).Decode(target); err != nil {
			if isDecodeError(err) {
				decodeErr = err
				return nil
			}
			return err
		}
		return nil
	}, c.opts.Retry)

	if err != nil {
		return err
	}
	if decodeErr != nil {
		return &DecodeError{URL: url, Err: decodeErr}
	}
	return nil
}

// DownloadBytes downloads a resource into memory with its own timeout.
//
// The body is capped at MaxBodySize; larger responses fail with
// ErrBodyTooLarge. A zero timeout only honours ctx.
//
// Example:
//
//	imageData, err := client.DownloadBytes(ctx, card.ImageURL, 30*time.Second)
func (c *Client) DownloadBytes(ctx context.Context, url string, timeout time.Duration) ([]byte, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	body, err := c.Open(ctx, url)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	data, err := io.ReadAll(io.LimitReader(body, MaxBodySize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > MaxBodySize {
		return nil, ErrBodyTooLarge
	}
	return data, nil
}

func isDecodeError(err error) bool {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	return errors.As(err, &syntaxErr) || errors.As(err, &typeErr) ||
		errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF)
}
