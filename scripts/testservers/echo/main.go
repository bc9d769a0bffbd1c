// Command echo serves a local target for casebench runs: the HTTP transport
// posts to /echo, the WebSocket transport connects to /ws.
package main

import (
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

type options struct {
	delay     time.Duration
	errorRate float64
}

func main() {
	port := pflag.Int("port", 8080, "Listening port")
	delay := pflag.Duration("delay", 0, "Delay added before every response")
	errorRate := pflag.Float64("error-rate", 0, "Fraction of HTTP requests answered with 503")
	pflag.Parse()

	logger, _ := zap.NewDevelopment()
	defer func() { _ = logger.Sync() }()

	if *port <= 0 {
		logger.Fatal("port must be > 0")
	}

	addr := fmt.Sprintf(":%d", *port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           newMux(options{delay: *delay, errorRate: *errorRate}, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}
	logger.Info("echo server listening", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server stopped", zap.Error(err))
		os.Exit(1)
	}
}

func newMux(opts options, logger *zap.Logger) *http.ServeMux {
	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

	mux := http.NewServeMux()
	mux.HandleFunc("/echo", func(w http.ResponseWriter, r *http.Request) {
		handleEcho(w, r, opts)
	})
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}
		go handleWebSocketConn(conn, opts.delay)
	})
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return mux
}

func handleEcho(w http.ResponseWriter, r *http.Request, opts options) {
	if opts.delay > 0 {
		select {
		case <-time.After(opts.delay):
		case <-r.Context().Done():
			return
		}
	}
	if opts.errorRate > 0 && rand.Float64() < opts.errorRate {
		_, _ = io.Copy(io.Discard, r.Body)
		http.Error(w, "injected failure", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = io.Copy(w, r.Body)
}

func handleWebSocketConn(conn *websocket.Conn, delay time.Duration) {
	defer conn.Close()
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if delay > 0 {
			time.Sleep(delay)
		}
		if err := conn.WriteMessage(msgType, data); err != nil {
			return
		}
	}
}
