package invoke

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/Kingmaker16/codex-os/internal/errors"
	"github.com/Kingmaker16/codex-os/internal/log"
	"github.com/Kingmaker16/codex-os/internal/metrics"
	"github.com/Kingmaker16/codex-os/internal/route"
	"github.com/Kingmaker16/codex-os/internal/version"
)

// DefaultMaxBodyBytes caps how much of a response is read.
const DefaultMaxBodyBytes int64 = 10 << 20

// HTTPOptions configure an HTTPInvoker.
type HTTPOptions struct {
	// Client defaults to a pooled client with OpenTelemetry propagation.
	Client       *http.Client
	MaxBodyBytes int64
	Logger       *log.Logger
	Metrics      *metrics.Metrics
}

// HTTPInvoker calls collaborators over HTTP. GET targets receive the
// payload as a query string and POST targets as a JSON body.
type HTTPInvoker struct {
	client       *http.Client
	maxBodyBytes int64
	logger       *log.Logger
	metrics      *metrics.Metrics
	userAgent    string
}

// NewHTTPInvoker creates an HTTPInvoker.
func NewHTTPInvoker(opts HTTPOptions) *HTTPInvoker {
	client := opts.Client
	if client == nil {
		client = NewClient()
	}
	maxBody := opts.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = DefaultMaxBodyBytes
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Nop()
	}
	return &HTTPInvoker{
		client:       client,
		maxBodyBytes: maxBody,
		logger:       logger,
		metrics:      opts.Metrics,
		userAgent:    "orchestrator/" + version.Version,
	}
}

// NewClient returns a pooled HTTP client whose transport propagates trace
// context. It sets no overall timeout; callers bound calls with contexts.
func NewClient() *http.Client {
	client := cleanhttp.DefaultPooledClient()
	client.Transport = otelhttp.NewTransport(client.Transport)
	return client
}

// Invoke implements Invoker.
func (h *HTTPInvoker) Invoke(ctx context.Context, target route.Target, payload map[string]any) (json.RawMessage, error) {
	req, err := h.newRequest(ctx, target, payload)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := h.client.Do(req)
	if err != nil {
		h.metrics.RecordServiceCall(target.Service, 0, time.Since(start))
		return nil, transportError(ctx, target, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, h.maxBodyBytes+1))
	h.metrics.RecordServiceCall(target.Service, resp.StatusCode, time.Since(start))
	if err != nil {
		return nil, transportError(ctx, target, err)
	}

	h.logger.DebugContext(ctx, "collaborator responded",
		"service", target.Service,
		"method", target.Method,
		"url", target.URL,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if int64(len(body)) > h.maxBodyBytes {
		return nil, errors.New(errors.ErrCodeInvokeDecode,
			fmt.Sprintf("%s response exceeds %d bytes", target.Service, h.maxBodyBytes))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.Wrap(errors.ErrCodeInvokeStatus,
			fmt.Sprintf("%s %s failed", target.Method, target.URL),
			&StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))})
	}

	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return json.RawMessage(`{}`), nil
	}
	if !json.Valid(body) {
		return nil, errors.New(errors.ErrCodeInvokeDecode,
			fmt.Sprintf("%s returned a non-JSON body", target.Service))
	}
	return json.RawMessage(body), nil
}

func (h *HTTPInvoker) newRequest(ctx context.Context, target route.Target, payload map[string]any) (*http.Request, error) {
	var req *http.Request
	switch target.Method {
	case http.MethodGet:
		u, err := url.Parse(target.URL)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvokeTransport, "invalid target URL", err)
		}
		query, err := EncodeQuery(payload)
		if err != nil {
			return nil, err
		}
		merged := u.Query()
		for k, vs := range query {
			merged[k] = vs
		}
		u.RawQuery = merged.Encode()
		if req, err = http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvokeTransport, "build request", err)
		}

	case http.MethodPost:
		if payload == nil {
			payload = map[string]any{}
		}
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvokeTransport, "encode payload", err)
		}
		if req, err = http.NewRequestWithContext(ctx, http.MethodPost, target.URL, bytes.NewReader(data)); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvokeTransport, "build request", err)
		}
		req.Header.Set("Content-Type", "application/json")

	default:
		return nil, errors.New(errors.ErrCodeInvokeTransport, fmt.Sprintf("unsupported method %q", target.Method))
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", h.userAgent)
	return req, nil
}

// EncodeQuery flattens a payload into query parameters. Scalars are
// written as text and objects and arrays as JSON.
func EncodeQuery(payload map[string]any) (url.Values, error) {
	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	values := make(url.Values, len(payload))
	for _, k := range keys {
		switch v := payload[k].(type) {
		case nil:
			values.Set(k, "")
		case string:
			values.Set(k, v)
		case bool:
			values.Set(k, strconv.FormatBool(v))
		case float64:
			values.Set(k, strconv.FormatFloat(v, 'f', -1, 64))
		case json.Number:
			values.Set(k, v.String())
		case int, int32, int64, uint, uint32, uint64:
			values.Set(k, fmt.Sprint(v))
		default:
			data, err := json.Marshal(v)
			if err != nil {
				return nil, errors.Wrap(errors.ErrCodeInvokeTransport, fmt.Sprintf("encode query parameter %q", k), err)
			}
			values.Set(k, string(data))
		}
	}
	return values, nil
}

func transportError(ctx context.Context, target route.Target, err error) error {
	switch {
	case stderrors.Is(ctx.Err(), context.Canceled):
		return errors.Wrap(errors.ErrCodeEngineCancelled, fmt.Sprintf("call to %s cancelled", target.Service), ctx.Err())
	case stderrors.Is(err, context.DeadlineExceeded) || stderrors.Is(ctx.Err(), context.DeadlineExceeded):
		return errors.Wrap(errors.ErrCodeInvokeTimeout, fmt.Sprintf("call to %s timed out", target.Service), context.DeadlineExceeded)
	default:
		return errors.Wrap(errors.ErrCodeInvokeTransport, fmt.Sprintf("call to %s failed", target.Service), err)
	}
}
