package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/bytedance/sonic"
	"github.com/robalyx/relay/internal/discord/rate"
	"github.com/robalyx/relay/pkg/utils"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// request is one prepared call, reused across attempts.
type request struct {
	method string
	url    string
	bucket string
	body   []byte
	call   *Call
}

// Execute sends a request for route, waiting out rate limits and retrying
// transient faults. Same-bucket calls run one at a time; calls in different
// buckets only wait on each other while a global rate limit is in effect.
func (c *Client) Execute(ctx context.Context, route rate.Route, call *Call) (*Response, error) {
	if call == nil {
		call = &Call{}
	}

	req := &request{
		method: route.Method(),
		url:    route.URL(c.cfg.BaseURL),
		bucket: route.Bucket(),
		call:   call,
	}
	if len(call.Query) > 0 {
		req.url += "?" + call.Query.Encode()
	}

	if call.Body != nil {
		body, err := sonic.Marshal(call.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		req.body = body
	}

	ctx, span := c.tracer.Start(ctx, "discord.request", trace.WithAttributes(
		attribute.String("http.method", req.method),
		attribute.String("discord.route", route.Path()),
		attribute.String("discord.bucket", req.bucket),
	))
	defer span.End()

	resp, err := c.execute(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.Int("http.status_code", resp.Status))
	return resp, nil
}

// execute owns the bucket for the whole call and releases it exactly once.
func (c *Client) execute(ctx context.Context, req *request) (*Response, error) {
	if err := c.waitGlobal(ctx); err != nil {
		return nil, err
	}

	handle, err := c.registry.Acquire(ctx, req.bucket)
	if err != nil {
		return nil, err
	}

	var cooldown time.Duration
	defer func() { handle.ReleaseAfter(cooldown) }()

	var resp *Response
	resp, cooldown, err = c.attempts(ctx, req)
	return resp, err
}

// attempts runs the retry loop. It returns the cooldown the bucket must observe
// after release, which is non-zero when a response drained the bucket.
func (c *Client) attempts(ctx context.Context, req *request) (*Response, time.Duration, error) {
	var (
		backOff = rate.NewLinearBackOff(c.cfg.BackoffBase, c.cfg.BackoffStep)
		last    *Response
		lastErr error
	)

	for attempt := range c.cfg.MaxAttempts {
		final := attempt == c.cfg.MaxAttempts-1

		if err := c.waitGlobal(ctx); err != nil {
			return nil, 0, err
		}
		if err := c.pace(ctx); err != nil {
			return nil, 0, err
		}

		body, contentType, err := req.encode()
		if err != nil {
			return nil, 0, fmt.Errorf("failed to encode request body: %w", err)
		}

		resp, err := c.do(ctx, req, body, contentType)
		if err != nil {
			if ctx.Err() != nil {
				return nil, 0, ctx.Err()
			}

			c.logger.Debug("Request failed to complete",
				zap.String("method", req.method),
				zap.String("url", req.url),
				zap.Int("attempt", attempt+1),
				zap.Error(err))

			last, lastErr = nil, err
			continue
		}
		last, lastErr = resp, nil

		out := c.interpreter.Interpret(resp.Status, resp.Header, resp.Body)
		c.logger.Debug("Request completed",
			zap.String("method", req.method),
			zap.String("url", req.url),
			zap.Int("status", resp.Status),
			zap.Stringer("outcome", out.Kind),
			zap.Int("attempt", attempt+1))

		switch out.Kind {
		case rate.Success:
			return resp, 0, nil

		case rate.BucketExhausted:
			c.logger.Debug("A rate limit bucket has been exhausted",
				zap.String("bucket", req.bucket),
				zap.Duration("retry", out.Cooldown))
			return resp, out.Cooldown, nil

		case rate.RateLimited:
			c.logger.Warn("We are being rate limited",
				zap.String("bucket", req.bucket),
				zap.Duration("retry_after", out.RetryAfter))
			trace.SpanFromContext(ctx).AddEvent("rate_limited", trace.WithAttributes(
				attribute.String("discord.bucket", req.bucket),
				attribute.Int64("discord.retry_after_ms", out.RetryAfter.Milliseconds()),
			))

			if final {
				return nil, out.RetryAfter, c.exhausted(req, resp)
			}
			if utils.ContextSleep(ctx, out.RetryAfter) == utils.SleepCancelled {
				return nil, out.RetryAfter, ctx.Err()
			}

		case rate.GlobalLimited:
			c.logger.Warn("Global rate limit has been hit",
				zap.String("bucket", req.bucket),
				zap.Duration("retry_after", out.RetryAfter))
			trace.SpanFromContext(ctx).AddEvent("global_rate_limited", trace.WithAttributes(
				attribute.Int64("discord.retry_after_ms", out.RetryAfter.Milliseconds()),
			))

			if final {
				c.holdGlobalAsync(ctx, out.RetryAfter)
				return nil, 0, c.exhausted(req, resp)
			}
			if err := c.holdGlobal(ctx, out.RetryAfter); err != nil {
				return nil, 0, err
			}

		case rate.TransientFault:
			if final {
				break
			}

			wait := backOff.NextBackOff()
			c.logger.Debug("Server fault, backing off",
				zap.Int("status", resp.Status),
				zap.Duration("wait", wait))

			if utils.ContextSleep(ctx, wait) == utils.SleepCancelled {
				return nil, 0, ctx.Err()
			}

		case rate.Blocked:
			return nil, 0, c.httpError(req, resp, ErrBlocked)

		case rate.ClientError, rate.ServerError:
			return nil, out.Cooldown, c.httpError(req, resp, kindForStatus(resp.Status))
		}
	}

	if lastErr != nil || last == nil {
		return nil, 0, fmt.Errorf("%w: %s %s: %w", ErrConnectionFault, req.method, req.url, lastErr)
	}

	return nil, 0, c.exhausted(req, last)
}

// exhausted builds the error for a call that ran out of attempts.
func (c *Client) exhausted(req *request, last *Response) error {
	if last.Status >= 500 {
		return c.httpError(req, last, ErrServerFault)
	}
	return c.httpError(req, last, ErrExhaustedRetries)
}

func (c *Client) httpError(req *request, resp *Response, kind error) error {
	return &HTTPError{
		Method: req.method,
		URL:    req.url,
		Status: resp.Status,
		Body:   resp.Body,
		kind:   kind,
	}
}

// waitGlobal blocks while the local gate is closed or another process
// holds the shared global limit.
func (c *Client) waitGlobal(ctx context.Context) error {
	if err := c.gate.Wait(ctx); err != nil {
		return err
	}

	if c.cfg.Shared == nil {
		return nil
	}

	remaining, err := c.cfg.Shared.Remaining(ctx)
	if err != nil {
		c.logger.Warn("Failed to check shared global rate limit", zap.Error(err))
		return nil
	}

	if remaining > 0 && utils.ContextSleep(ctx, remaining) == utils.SleepCancelled {
		return ctx.Err()
	}
	return nil
}

// holdGlobal closes the gate for d. The gate is reopened on every return path.
func (c *Client) holdGlobal(ctx context.Context, d time.Duration) error {
	c.closeGlobal(ctx, d)
	defer c.gate.Open()

	if utils.ContextSleep(ctx, d) == utils.SleepCancelled {
		return ctx.Err()
	}

	c.logger.Debug("Global rate limit is now over")
	return nil
}

// holdGlobalAsync closes the gate for d without making the caller wait.
// A timer reopens it once the window has passed.
func (c *Client) holdGlobalAsync(ctx context.Context, d time.Duration) {
	c.closeGlobal(ctx, d)

	time.AfterFunc(d, func() {
		c.gate.Open()
		c.logger.Debug("Global rate limit is now over")
	})
}

// closeGlobal shuts the local gate and publishes the window to the shared store.
func (c *Client) closeGlobal(ctx context.Context, d time.Duration) {
	c.gate.Close()

	if c.cfg.Shared != nil {
		if err := c.cfg.Shared.Hold(ctx, d); err != nil {
			c.logger.Warn("Failed to share global rate limit", zap.Error(err))
		}
	}
}

// pace applies the optional jitter pacer and request-per-second cap.
func (c *Client) pace(ctx context.Context) error {
	if err := c.pacer.Wait(ctx); err != nil {
		return err
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	return nil
}

// do performs a single attempt bounded by the configured timeout.
func (c *Client) do(ctx context.Context, req *request, body io.Reader, contentType string) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, req.method, req.url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(httpReq, req, contentType)

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return &Response{
		Status: httpResp.StatusCode,
		Header: httpResp.Header,
		Body:   data,
	}, nil
}

// setHeaders applies the browser-like header set Discord expects.
func (c *Client) setHeaders(httpReq *http.Request, req *request, contentType string) {
	h := httpReq.Header
	h.Set("Accept", "*/*")
	h.Set("Accept-Language", "en-US")
	h.Set("Cache-Control", "no-cache")
	h.Set("Origin", "https://discord.com")
	h.Set("Pragma", "no-cache")
	h.Set("Referer", "https://discord.com/channels/@me")
	h.Set("Sec-Fetch-Dest", "empty")
	h.Set("Sec-Fetch-Mode", "cors")
	h.Set("Sec-Fetch-Site", "same-origin")
	h.Set("User-Agent", c.cfg.UserAgent)
	h.Set("X-Super-Properties", c.superProps)
	h.Set("Authorization", c.cfg.Token)

	if contentType != "" {
		h.Set("Content-Type", contentType)
	}
	if req.call.Context != nil {
		h.Set("X-Context-Properties", req.call.Context.String())
	}
	if req.call.Reason != "" {
		h.Set("X-Audit-Log-Reason", url.PathEscape(req.call.Reason))
	}
}
