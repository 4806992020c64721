package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// maxBodyBytes bounds artifact downloads.
const maxBodyBytes = 8 << 20

// Request builds and executes a single HTTP request.
type Request interface {
	Get(ctx context.Context, url string) (*Response, error)
	SetHeader(key, value string) Request
	SetResult(result any) Request
}

// Response wraps http.Response with the buffered body.
type Response struct {
	*http.Response
	body []byte
}

// Body returns the response body as bytes.
func (r *Response) Body() []byte {
	return r.body
}

// IsError returns true if the status code indicates an error (>= 400).
func (r *Response) IsError() bool {
	return r.StatusCode >= 400
}

// ResponseErrorHandler decides whether a response is an error.
type ResponseErrorHandler func(statusCode int, body []byte) error

// Label is a key-value pair added to request metrics.
type Label struct {
	Key   string
	Value string
}

// RequestOption configures a single request.
type RequestOption func(*requestOptions)

type requestOptions struct {
	errorHandler ResponseErrorHandler
	labels       []Label
}

// WithResponseErrorHandler sets a custom error handler for responses.
func WithResponseErrorHandler(handler ResponseErrorHandler) RequestOption {
	return func(o *requestOptions) { o.errorHandler = handler }
}

// WithLabels adds metric labels to the request.
func WithLabels(labels ...Label) RequestOption {
	return func(o *requestOptions) { o.labels = labels }
}

// StatusErrorHandler treats any status >= 400 as an error.
func StatusErrorHandler(statusCode int, body []byte) error {
	if statusCode < 400 {
		return nil
	}
	snippet := body
	if len(snippet) > 200 {
		snippet = snippet[:200]
	}
	return fmt.Errorf("http status %d: %s", statusCode, snippet)
}

type requestBuilder struct {
	client         *http.Client
	requestCounter metric.Int64Counter
	providerName   string
	tracer         trace.Tracer
	headers        map[string]string
	result         any
	errorHandler   ResponseErrorHandler
	labels         []Label
}

func (r *requestBuilder) SetHeader(key, value string) Request {
	r.headers[key] = value
	return r
}

// SetResult sets a target the JSON body is decoded into.
func (r *requestBuilder) SetResult(result any) Request {
	r.result = result
	return r
}

func (r *requestBuilder) Get(ctx context.Context, url string) (*Response, error) {
	return r.execute(ctx, http.MethodGet, url)
}

func (r *requestBuilder) execute(ctx context.Context, method, url string) (*Response, error) {
	ctx, span := r.tracer.Start(ctx, "http.request",
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("http.url", url),
			attribute.String("provider", r.providerName),
		),
	)
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to create request")
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range r.headers {
		req.Header.Set(k, v)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		r.recordError(ctx, span, err)
		return nil, err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	resp.Body.Close()
	if err != nil {
		r.recordError(ctx, span, err)
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	response := &Response{Response: resp, body: body}
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if r.errorHandler != nil {
		if handlerErr := r.errorHandler(resp.StatusCode, body); handlerErr != nil {
			r.recordMetrics(ctx, false)
			span.SetStatus(codes.Error, handlerErr.Error())
			return response, handlerErr
		}
	}

	if r.result != nil && len(body) > 0 {
		if err := json.Unmarshal(body, r.result); err != nil {
			r.recordError(ctx, span, err)
			return response, fmt.Errorf("failed to decode response: %w", err)
		}
	}

	r.recordMetrics(ctx, !response.IsError())
	span.SetStatus(codes.Ok, "")
	return response, nil
}

func (r *requestBuilder) recordError(ctx context.Context, span trace.Span, err error) {
	span.RecordError(err)

	var netErr net.Error
	if errors.Is(err, context.Canceled) {
		span.SetAttributes(attribute.Bool("context.cancelled", true))
	}
	if errors.As(err, &netErr) && netErr.Timeout() {
		span.SetAttributes(attribute.Bool("request.timeout", true))
	}

	span.SetStatus(codes.Error, err.Error())
	r.recordMetrics(ctx, false)
}

func (r *requestBuilder) recordMetrics(ctx context.Context, success bool) {
	attrs := []attribute.KeyValue{
		attribute.String("provider", r.providerName),
		attribute.Bool("success", success),
	}
	for _, label := range r.labels {
		attrs = append(attrs, attribute.String(label.Key, label.Value))
	}
	r.requestCounter.Add(ctx, 1, metric.WithAttributes(attrs...))
}
