package discord

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"

	"dscraper/pkg/config"
	errs "dscraper/pkg/errors"
	"dscraper/pkg/logger"
	"dscraper/pkg/metrics"
	"dscraper/pkg/ratelimit"
	"dscraper/pkg/retry"

	"github.com/bwmarrin/discordgo"
)

const maxBodySize = 16 << 20

// Options configures a Client
type Options struct {
	BaseURL      string
	APIVersion   string
	Token        string
	Agent        string
	BrowserAgent string
	Timeout      time.Duration
	MaxRetries   int
	Backoff      *retry.ErrorTypeBackoff
	Limiter      ratelimit.Limiter
	Logger       logger.Logger
	HTTPClient   *http.Client
	// OnRateLimit is called before each back-off caused by a rate limit.
	OnRateLimit func(wait time.Duration)
}

// OptionsFromConfig maps the loaded configuration onto client options
func OptionsFromConfig(cfg *config.Config, log logger.Logger) Options {
	return Options{
		BaseURL:      cfg.Discord.BaseURL,
		APIVersion:   cfg.Discord.APIVersion,
		Token:        cfg.Discord.Token,
		Agent:        cfg.Discord.Agent,
		BrowserAgent: cfg.Download.BrowserAgent,
		Timeout:      cfg.Download.Timeout,
		MaxRetries:   cfg.RateLimit.MaxRetries,
		Backoff: retry.NewErrorTypeBackoff(
			cfg.RateLimit.RetryDelay,
			cfg.RateLimit.MaxDelay,
			cfg.RateLimit.BackoffMultiplier,
		),
		Limiter: ratelimit.PerMinute(cfg.RateLimit.RequestsPerMinute),
		Logger:  log,
	}
}

// Client talks to the Discord REST API and CDN
type Client struct {
	httpClient *http.Client
	endpoints  Endpoints
	apiHeaders http.Header
	cdnHeaders http.Header
	retrier    *retry.HTTPRetrier
	limiter    ratelimit.Limiter
	logger     logger.Logger
}

// NewClient creates a client. The header sets are fixed here and only ever copied afterwards.
func NewClient(opts Options) *Client {
	log := opts.Logger
	if log == nil {
		log = logger.GetLogger()
	}
	log = log.WithField("component", "discord")

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	limiter := opts.Limiter
	if limiter == nil {
		limiter = ratelimit.Unlimited{}
	}

	apiHeaders := http.Header{}
	apiHeaders.Set("Accept", "application/json")
	if opts.Token != "" {
		apiHeaders.Set("Authorization", opts.Token)
	}
	if opts.Agent != "" {
		apiHeaders.Set("User-Agent", opts.Agent)
	}

	cdnHeaders := http.Header{}
	if opts.BrowserAgent != "" {
		cdnHeaders.Set("User-Agent", opts.BrowserAgent)
	}

	c := &Client{
		httpClient: httpClient,
		endpoints:  NewEndpoints(opts.BaseURL, opts.APIVersion),
		apiHeaders: apiHeaders,
		cdnHeaders: cdnHeaders,
		limiter:    limiter,
		logger:     log,
	}
	c.retrier = retry.NewHTTPRetrier(opts.MaxRetries+1, opts.Backoff, log).
		WithOnRetry(func(attempt int, err error, delay time.Duration) {
			if errs.Is(err, errs.ErrorTypeRateLimit) {
				logger.LogRateLimit(c.logger, fmt.Sprintf("attempt %d", attempt), delay)
				if opts.OnRateLimit != nil {
					opts.OnRateLimit(delay)
				}
			}
		})
	return c
}

// Endpoints returns the URL builder the client uses
func (c *Client) Endpoints() Endpoints {
	return c.endpoints
}

// FetchGuild returns guild metadata
func (c *Client) FetchGuild(ctx context.Context, guildID string) (*discordgo.Guild, error) {
	var guild discordgo.Guild
	if err := c.getJSON(ctx, "guild", c.endpoints.Guild(guildID), nil, &guild); err != nil {
		return nil, err
	}
	return &guild, nil
}

// FetchChannel returns channel metadata
func (c *Client) FetchChannel(ctx context.Context, channelID string) (*discordgo.Channel, error) {
	var channel discordgo.Channel
	if err := c.getJSON(ctx, "channel", c.endpoints.Channel(channelID), nil, &channel); err != nil {
		return nil, err
	}
	return &channel, nil
}

// SearchMessages runs one search page. The Referer of the searched channel
// is sent as a per-call overlay.
func (c *Client) SearchMessages(ctx context.Context, q SearchQuery) (*SearchResponse, error) {
	overlay := http.Header{}
	overlay.Set("Referer", c.endpoints.Referer(q))

	var resp SearchResponse
	if err := c.getJSON(ctx, "search", c.endpoints.Search(q), overlay, &resp); err != nil {
		return nil, err
	}
	if resp.Messages == nil {
		return nil, errs.New(errs.ErrorTypeNotFound, "search response has no messages field")
	}
	return &resp, nil
}

// OpenAttachment starts a CDN download. The caller must close the body.
// No authorization header is sent.
func (c *Client) OpenAttachment(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	var body io.ReadCloser
	err := c.retrier.Do(ctx, func(ctx context.Context) error {
		resp, err := c.do(ctx, "cdn", rawURL, c.cdnHeaders, nil)
		if err != nil {
			return err
		}
		if err := c.checkResponseStatus(resp); err != nil {
			resp.Body.Close()
			return err
		}
		body = resp.Body
		return nil
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

func (c *Client) getJSON(ctx context.Context, kind, url string, overlay http.Header, target interface{}) error {
	return c.retrier.Do(ctx, func(ctx context.Context) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		resp, err := c.do(ctx, kind, url, c.apiHeaders, overlay)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if err := c.checkResponseStatus(resp); err != nil {
			return err
		}

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
		if err != nil {
			return errs.Wrap(errs.ErrorTypeTransport, "failed to read response body", err)
		}
		if len(body) == 0 {
			return &errs.Error{Type: errs.ErrorTypeParsing, Message: "empty response body", Code: resp.StatusCode}
		}
		if err := json.Unmarshal(body, target); err != nil {
			preview := string(body)
			if len(preview) > 200 {
				preview = preview[:200] + "..."
			}
			c.logger.WarnWithFields("failed to parse JSON response", map[string]interface{}{
				"url":          url,
				"status":       resp.StatusCode,
				"body_preview": preview,
			})
			return &errs.Error{Type: errs.ErrorTypeParsing, Message: "failed to parse JSON", Code: resp.StatusCode, Err: err}
		}
		return nil
	})
}

// do sends one GET with a copy of base merged with overlay
func (c *Client) do(ctx context.Context, kind, url string, base, overlay http.Header) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeTransport, "failed to create request", err)
	}
	req.Header = mergeHeaders(base, overlay)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	elapsed := time.Since(start)
	metrics.ObserveRequest(kind, elapsed.Seconds())

	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.logger.WarnWithFields("HTTP request failed", map[string]interface{}{
			"url":      url,
			"error":    err.Error(),
			"duration": elapsed,
		})
		return nil, errs.Wrap(errs.ErrorTypeTransport, "request failed", err)
	}

	logger.LogRequest(c.logger, req.Method, url, resp.StatusCode, elapsed)
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusAccepted {
		metrics.RecordRateLimit(kind)
	}
	return resp, nil
}

// checkResponseStatus maps the status to a typed error. 202 is how search
// says its index is not ready yet and is treated like a rate limit.
func (c *Client) checkResponseStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusAccepted:
		return &errs.Error{
			Type:       errs.ErrorTypeRateLimit,
			Message:    "search index not ready",
			Code:       resp.StatusCode,
			RetryAfter: retryAfter(resp),
		}
	case resp.StatusCode == http.StatusTooManyRequests:
		return &errs.Error{
			Type:       errs.ErrorTypeRateLimit,
			Message:    "rate limit exceeded",
			Code:       resp.StatusCode,
			RetryAfter: retryAfter(resp),
		}
	case resp.StatusCode >= 400:
		return errs.FromStatus(resp.StatusCode, http.StatusText(resp.StatusCode))
	default:
		return nil
	}
}

// retryAfter reads the wait from the Retry-After header and the JSON
// retry_after field, both in seconds, and returns the larger. The body is
// consumed.
func retryAfter(resp *http.Response) time.Duration {
	var wait float64
	if v, err := strconv.ParseFloat(resp.Header.Get("Retry-After"), 64); err == nil {
		wait = v
	}

	var body rateLimitBody
	if data, err := io.ReadAll(io.LimitReader(resp.Body, 4096)); err == nil && len(data) > 0 {
		if json.Unmarshal(data, &body) == nil {
			wait = math.Max(wait, body.RetryAfter)
		}
	}
	if wait <= 0 {
		return 0
	}
	return time.Duration(wait * float64(time.Second))
}

func mergeHeaders(base, overlay http.Header) http.Header {
	merged := base.Clone()
	for k, v := range overlay {
		merged[k] = append([]string(nil), v...)
	}
	return merged
}
