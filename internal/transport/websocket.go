package transport

import (
	"context"
	"errors"
	"net/http"
	"strings"

	gws "github.com/gorilla/websocket"

	"github.com/torosent/casebench/internal/config"
	"github.com/torosent/casebench/internal/httpclient"
	"github.com/torosent/casebench/internal/metrics"
	"github.com/torosent/casebench/internal/pool"
	"github.com/torosent/casebench/internal/runner"
	"github.com/torosent/casebench/internal/tracing"
	ws "github.com/torosent/casebench/internal/websocket"
)

// WebSocket sends the case payload as one binary frame and waits for the echo.
// Connections are reused across requests; a connection that fails a round
// trip is discarded.
type WebSocket struct {
	*executor

	cfg       config.TransportConfig
	headers   http.Header
	key       string
	conns     *pool.ConnectionPool[*ws.Client]
	payloads  *httpclient.PayloadCache
	propagate bool
}

type byteSource interface {
	Bytes() []byte
}

func NewWebSocket(cfg config.TransportConfig, opts Options) (*WebSocket, error) {
	target := strings.TrimSpace(cfg.Target)
	if target == "" {
		return nil, errors.New("target URL is required")
	}
	headers := make(http.Header)
	for k, v := range cfg.Headers {
		headers.Set(k, v)
	}
	size := cfg.PoolSize
	if size <= 0 {
		size = opts.MaxConcurrency
	}

	t := &WebSocket{
		cfg:       cfg,
		headers:   headers,
		key:       pool.MakePoolKey(target, headers),
		conns:     pool.NewConnectionPool[*ws.Client](size),
		payloads:  httpclient.NewPayloadCache(),
		propagate: opts.Propagate,
	}
	t.cfg.Target = target
	t.executor = newExecutor(t.Name(), cfg, opts, t.do)
	return t, nil
}

func (t *WebSocket) Name() string { return "websocket" }

func (t *WebSocket) newClient(ctx context.Context) func() *ws.Client {
	return func() *ws.Client {
		headers := t.headers.Clone()
		if t.propagate {
			tracing.InjectHTTPHeaders(ctx, headers)
		}
		return ws.NewClient(ws.Config{
			URL:              t.cfg.Target,
			Headers:          headers,
			HandshakeTimeout: t.cfg.HandshakeTimeout,
			VerifyEcho:       true,
		})
	}
}

func (t *WebSocket) do(ctx context.Context, req runner.Request) metrics.Outcome {
	client, err := t.conns.Acquire(ctx, t.key, t.newClient(ctx))
	if err != nil {
		return t.failure(err)
	}

	var data []byte
	if src, ok := t.payloads.Get(req.PayloadBytes).(byteSource); ok {
		data = src.Bytes()
	}
	if _, err := client.RoundTrip(ctx, ws.Message{Type: gws.BinaryMessage, Data: data}); err != nil {
		_ = client.Close()
		return t.failure(err)
	}
	_ = t.conns.Put(t.key, client)
	return metrics.Success()
}

func (t *WebSocket) failure(err error) metrics.Outcome {
	outcome := metrics.Classify(err)
	outcome.Err = unwrapFmt(err)
	if outcome.Kind == metrics.OutcomeError {
		outcome = outcome.WithStatus(websocketStatusFromError(err))
	}
	return outcome
}

func (t *WebSocket) Close() error {
	t.wait()
	return t.conns.Close()
}
