package talk

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/capitalize-ai/talkbridge/pkg/metrics"
)

// Response headers carrying chat cursors.
const (
	HeaderLastGiven      = "X-Chat-Last-Given"
	HeaderLastCommonRead = "X-Chat-Last-Common-Read"
)

// Call describes one remote call.
type Call struct {
	// Op names the call in logs, metrics and spans.
	Op     string
	Method string
	// Root and Path are joined onto the client base URL.
	Root string
	Path string
	// Params go to the query string for GET and to a form body otherwise.
	Params url.Values
	// CaptureHeaders lists response headers to return in Result.Headers.
	CaptureHeaders []string
	// URL, when set, replaces BaseURL+Root+Path.
	URL string
}

// Result is a successful call outcome.
type Result struct {
	Status int
	Data   any
	// Headers holds one entry per requested header; nil values mean the
	// server did not send it.
	Headers map[string]*string
}

// Header returns a captured header value.
func (r *Result) Header(name string) (string, bool) {
	v, ok := r.Headers[http.CanonicalHeaderKey(name)]
	if !ok || v == nil {
		return "", false
	}
	return *v, true
}

// Elements normalizes the payload into zero, one or many mappings.
func (r *Result) Elements() ([]map[string]any, error) {
	return Elements(r.Data)
}

// Object returns the payload as a single mapping.
func (r *Result) Object() (map[string]any, error) {
	if isEmpty(r.Data) {
		return map[string]any{}, nil
	}
	m, ok := asMap(r.Data)
	if !ok {
		return nil, &StructureError{Path: "data", Reason: "expected an object"}
	}
	return m, nil
}

// Query issues c through the session and decodes the envelope. Service
// failures are returned as *ServiceError. Nothing is retried.
func (c *Client) Query(ctx context.Context, call Call) (*Result, error) {
	method := call.Method
	if method == "" {
		method = http.MethodGet
	}
	op := call.Op
	if op == "" {
		op = strings.ToLower(method) + " " + call.Path
	}

	target := call.URL
	if target == "" {
		target = c.baseURL + call.Root + call.Path
	}

	req := &Request{
		Method: method,
		Header: http.Header{},
	}
	req.Header.Set("OCS-APIRequest", "true")
	req.Header.Set("Accept", "application/xml")

	if method == http.MethodGet {
		if len(call.Params) > 0 {
			sep := "?"
			if strings.Contains(target, "?") {
				sep = "&"
			}
			target += sep + call.Params.Encode()
		}
	} else if len(call.Params) > 0 {
		req.Body = []byte(call.Params.Encode())
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	req.URL = target

	ctx, span := c.tracer.Start(ctx, "talk."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("talk.path", call.Root+call.Path),
		),
	)
	defer span.End()

	start := time.Now()
	res, err := c.do(ctx, req, call.CaptureHeaders)
	elapsed := time.Since(start)

	status := "ok"
	if err != nil {
		status = errorLabel(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, status)
	} else {
		span.SetAttributes(attribute.Int("http.status_code", res.Status))
	}
	metrics.RecordTalkCall(op, method, status, elapsed.Seconds())

	c.logger.Debug("talk call",
		zap.String("op", op),
		zap.String("method", method),
		zap.String("url", call.Root+call.Path),
		zap.String("status", status),
		zap.Duration("duration", elapsed),
	)

	return res, err
}

func (c *Client) do(ctx context.Context, req *Request, capture []string) (*Result, error) {
	resp, err := c.session.Do(ctx, req)
	if err != nil {
		return nil, err
	}

	res := &Result{Status: resp.StatusCode}
	if len(capture) > 0 {
		res.Headers = make(map[string]*string, len(capture))
		for _, name := range capture {
			key := http.CanonicalHeaderKey(name)
			res.Headers[key] = nil
			if vals := resp.Header.Values(key); len(vals) > 0 {
				v := vals[0]
				res.Headers[key] = &v
			}
		}
	}

	success := resp.StatusCode >= 200 && resp.StatusCode < 300
	if resp.StatusCode == http.StatusNotModified {
		return res, nil
	}

	env, err := DecodeEnvelope(c.decoder, resp.Body)
	if err != nil {
		if !success {
			// Error pages without an envelope still carry a usable status.
			return nil, &ServiceError{
				HTTPStatus: resp.StatusCode,
				StatusCode: resp.StatusCode,
				Status:     "failure",
				Message:    http.StatusText(resp.StatusCode),
			}
		}
		return nil, err
	}

	if !success || env.Meta.Failed() {
		return nil, Classify(env.Meta, resp.StatusCode)
	}

	res.Data = env.Data
	return res, nil
}

func errorLabel(err error) string {
	var svcErr *ServiceError
	switch {
	case errors.As(err, &svcErr):
		return strconv.Itoa(svcErr.StatusCode)
	case errors.Is(err, ErrParse):
		return "parse_error"
	case errors.Is(err, ErrStructure):
		return "structure_error"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "transport_error"
	}
}
