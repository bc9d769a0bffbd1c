package transport

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/torosent/casebench/internal/config"
	"github.com/torosent/casebench/internal/httpclient"
	"github.com/torosent/casebench/internal/metrics"
	"github.com/torosent/casebench/internal/runner"
	"github.com/torosent/casebench/internal/tracing"
)

const maxLoggedBodyBytes = 1024

// HTTP sends the case payload as the body of one request per admission.
type HTTP struct {
	*executor

	client    *http.Client
	builder   *httpclient.RequestBuilder
	payloads  *httpclient.PayloadCache
	propagate bool
}

func NewHTTP(cfg config.TransportConfig, opts Options) (*HTTP, error) {
	builder, err := httpclient.NewRequestBuilder(cfg)
	if err != nil {
		return nil, err
	}
	t := &HTTP{
		client:    httpclient.NewClient(0, opts.MaxConcurrency),
		builder:   builder,
		payloads:  httpclient.NewPayloadCache(),
		propagate: opts.Propagate,
	}
	t.executor = newExecutor(t.Name(), cfg, opts, t.do)
	return t, nil
}

func (t *HTTP) Name() string { return "http" }

func (t *HTTP) do(ctx context.Context, req runner.Request) metrics.Outcome {
	httpReq, err := t.builder.Build(ctx, t.payloads.Get(req.PayloadBytes))
	if err != nil {
		return metrics.Failure(err).WithStatus(fallbackStatusCode(err))
	}
	if t.propagate {
		tracing.InjectHTTPHeaders(ctx, httpReq.Header)
	}

	resp, err := t.client.Do(httpReq)
	if err != nil {
		outcome := metrics.Classify(err)
		outcome.Err = unwrapFmt(err)
		if outcome.Kind == metrics.OutcomeError {
			outcome = outcome.WithStatus(fallbackStatusCode(outcome.Err))
		}
		return outcome
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxLoggedBodyBytes))
		httpErr := &HTTPError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(snippet)),
		}
		return metrics.Failure(httpErr).WithStatus(strconv.Itoa(resp.StatusCode))
	}

	// The request completes when the whole response has arrived.
	if _, err := io.Copy(io.Discard, resp.Body); err != nil {
		outcome := metrics.Classify(err)
		if outcome.Kind == metrics.OutcomeError {
			outcome = outcome.WithStatus(fallbackStatusCode(err))
		}
		return outcome
	}
	return metrics.Success()
}

func (t *HTTP) Close() error {
	t.wait()
	t.client.CloseIdleConnections()
	return nil
}
