package websocket

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// Helper function to create a test WebSocket server
func createTestWSServer(handler func(*websocket.Conn)) *httptest.Server {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		defer conn.Close()
		handler(conn)
	}))
}

func echo(conn *websocket.Conn) {
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if err := conn.WriteMessage(msgType, data); err != nil {
			return
		}
	}
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestWebSocketRoundTripEcho(t *testing.T) {
	server := createTestWSServer(echo)
	defer server.Close()

	client := NewClient(Config{URL: wsURL(server), VerifyEcho: true})
	ctx := context.Background()
	if err := client.Connect(ctx); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer client.Close()

	if !client.Connected() {
		t.Fatal("expected client to be connected")
	}

	payload := bytes.Repeat([]byte{0xAB}, 2048)
	for i := 0; i < 3; i++ {
		reply, err := client.RoundTrip(ctx, Message{Type: websocket.BinaryMessage, Data: payload})
		if err != nil {
			t.Fatalf("RoundTrip #%d failed: %v", i+1, err)
		}
		if reply.Type != websocket.BinaryMessage || !bytes.Equal(reply.Data, payload) {
			t.Fatalf("unexpected reply on round trip #%d", i+1)
		}
	}

	m := client.Metrics()
	if m.MessagesSent != 3 || m.MessagesReceived != 3 {
		t.Errorf("expected 3 sent and received, got %d/%d", m.MessagesSent, m.MessagesReceived)
	}
	if m.BytesSent != 3*2048 || m.BytesReceived != 3*2048 {
		t.Errorf("unexpected byte counters %d/%d", m.BytesSent, m.BytesReceived)
	}
	if m.ConnectionDuration <= 0 {
		t.Error("expected positive connection duration")
	}
}

func TestWebSocketEchoMismatch(t *testing.T) {
	server := createTestWSServer(func(conn *websocket.Conn) {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
			if err := conn.WriteMessage(websocket.BinaryMessage, []byte("other")); err != nil {
				return
			}
		}
	})
	defer server.Close()

	client := NewClient(Config{URL: wsURL(server), VerifyEcho: true})
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer client.Close()

	_, err := client.RoundTrip(context.Background(), Message{Type: websocket.BinaryMessage, Data: []byte("payload")})
	if !errors.Is(err, ErrEchoMismatch) {
		t.Fatalf("expected ErrEchoMismatch, got %v", err)
	}
	if client.Metrics().Errors != 1 {
		t.Errorf("expected 1 error, got %d", client.Metrics().Errors)
	}
}

func TestWebSocketRoundTripDeadline(t *testing.T) {
	server := createTestWSServer(func(conn *websocket.Conn) {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer server.Close()

	client := NewClient(Config{URL: wsURL(server)})
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err := client.RoundTrip(ctx, Message{Type: websocket.BinaryMessage, Data: []byte("x")})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("round trip took too long: %s", elapsed)
	}
}

func TestWebSocketRoundTripCancellation(t *testing.T) {
	server := createTestWSServer(func(conn *websocket.Conn) {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer server.Close()

	client := NewClient(Config{URL: wsURL(server)})
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(30*time.Millisecond, cancel)
	_, err := client.RoundTrip(ctx, Message{Type: websocket.BinaryMessage, Data: []byte("x")})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context canceled, got %v", err)
	}
}

func TestWebSocketConnectionError(t *testing.T) {
	client := NewClient(Config{URL: "ws://127.0.0.1:1", HandshakeTimeout: time.Second})
	if err := client.Connect(context.Background()); err == nil {
		t.Fatal("expected connection error")
	}
	if client.Metrics().Errors != 1 {
		t.Errorf("expected 1 error, got %d", client.Metrics().Errors)
	}
}

func TestWebSocketRejectedHandshakeReportsStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer server.Close()

	client := NewClient(Config{URL: wsURL(server)})
	err := client.Connect(context.Background())
	if err == nil || !strings.Contains(err.Error(), "status 403") {
		t.Fatalf("expected status 403 in error, got %v", err)
	}
}

func TestWebSocketRoundTripWithoutConnect(t *testing.T) {
	client := NewClient(Config{URL: "ws://localhost:9999"})
	if _, err := client.RoundTrip(context.Background(), Message{Type: websocket.TextMessage, Data: []byte("x")}); err == nil {
		t.Fatal("expected error when not connected")
	}
}

func TestWebSocketClose(t *testing.T) {
	server := createTestWSServer(echo)
	defer server.Close()

	client := NewClient(Config{URL: wsURL(server)})
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if client.Connected() {
		t.Fatal("expected client to be disconnected")
	}
	if err := client.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}
}

func TestWebSocketMultipleConnectError(t *testing.T) {
	server := createTestWSServer(echo)
	defer server.Close()

	client := NewClient(Config{URL: wsURL(server)})
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer client.Close()
	if err := client.Connect(context.Background()); err == nil {
		t.Fatal("expected error on second connect")
	}
}

func TestWebSocketCustomHeaders(t *testing.T) {
	got := make(chan string, 1)
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got <- r.Header.Get("X-Run")
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		echo(conn)
	}))
	defer server.Close()

	headers := http.Header{}
	headers.Set("X-Run", "nightly")
	client := NewClient(Config{URL: wsURL(server), Headers: headers})
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer client.Close()
	if h := <-got; h != "nightly" {
		t.Errorf("expected X-Run header, got %q", h)
	}
}

func TestWebSocketNewClientDefaults(t *testing.T) {
	client := NewClient(Config{URL: "ws://localhost"})
	if client.dialer.HandshakeTimeout != 30*time.Second {
		t.Errorf("expected default handshake timeout, got %s", client.dialer.HandshakeTimeout)
	}
	if client.maxMsgSize != 4*1024*1024 {
		t.Errorf("expected default max message size, got %d", client.maxMsgSize)
	}
}

func TestWebSocketConcurrentRoundTrips(t *testing.T) {
	server := createTestWSServer(echo)
	defer server.Close()

	client := NewClient(Config{URL: wsURL(server), VerifyEcho: true})
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer client.Close()

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			data := bytes.Repeat([]byte{byte(i)}, 128)
			if _, err := client.RoundTrip(context.Background(), Message{Type: websocket.BinaryMessage, Data: data}); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent round trip failed: %v", err)
	}
}
