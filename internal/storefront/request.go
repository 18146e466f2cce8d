package storefront

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const maxErrorBody = 1 << 20

type request struct {
	op     string
	method string
	path   []string
	query  url.Values
	body   any
	header http.Header
}

// do wraps one raw request: it builds and sends it, decodes a 2xx body into
// out, and converts every other outcome into *Error.
func (c *Client) do(ctx context.Context, req request, out any) (err error) {
	ctx, span := c.tracer.Start(ctx, "storefront."+req.op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("http.request.method", req.method)),
	)
	start := time.Now()
	status := 0
	defer func() {
		outcome := "ok"
		var sfErr *Error
		if errors.As(err, &sfErr) {
			outcome = string(sfErr.Kind)
			span.SetStatus(codes.Error, sfErr.Message)
			c.logger.Warn("storefront request failed",
				zap.String("op", req.op),
				zap.String("kind", outcome),
				zap.Int("status", status),
				zap.Duration("latency", time.Since(start)),
				zap.Error(sfErr.Err),
			)
		} else {
			c.logger.Debug("storefront request completed",
				zap.String("op", req.op),
				zap.Int("status", status),
				zap.Duration("latency", time.Since(start)),
			)
		}
		if status != 0 {
			span.SetAttributes(attribute.Int("http.response.status_code", status))
		}
		c.requests.Add(ctx, 1, metric.WithAttributes(
			attribute.String("op", req.op),
			attribute.String("outcome", outcome),
		))
		span.End()
	}()

	httpReq, buildErr := c.newRequest(ctx, req)
	if buildErr != nil {
		return transportError(req.op, KindRequest, 0, buildErr)
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	httpReq = httpReq.WithContext(reqCtx)

	resp, doErr := c.http.Do(httpReq)
	if doErr != nil {
		return transportError(req.op, KindNoResponse, 0, doErr)
	}
	defer resp.Body.Close()
	status = resp.StatusCode

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return responseError(req.op, resp.StatusCode, body)
	}

	data, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return transportError(req.op, KindNoResponse, resp.StatusCode, readErr)
	}
	if out == nil {
		return nil
	}
	if decodeErr := json.Unmarshal(data, out); decodeErr != nil {
		return transportError(req.op, KindDecode, resp.StatusCode, fmt.Errorf("decode response: %w", decodeErr))
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, req request) (*http.Request, error) {
	if c.baseURL == "" {
		return nil, ErrNoBaseURL
	}
	endpoint, err := url.JoinPath(c.baseURL, req.path...)
	if err != nil {
		return nil, fmt.Errorf("build url: %w", err)
	}
	if len(req.query) > 0 {
		endpoint += "?" + req.query.Encode()
	}

	var body io.Reader
	if req.body != nil {
		payload, err := json.Marshal(req.body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for key, values := range req.header {
		for _, value := range values {
			httpReq.Header.Add(key, value)
		}
	}
	return httpReq, nil
}
