package pool

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
)

// Poolable represents any client that can be pooled and reused.
type Poolable interface {
	Connect(ctx context.Context) error
	Close() error
}

// ConnectionPool keeps idle connections keyed by target+headers. Connections
// are handed out to one caller at a time.
type ConnectionPool[T Poolable] struct {
	mu     sync.Mutex
	pools  map[string]chan T
	size   int // max idle connections per key
	closed bool
}

// NewConnectionPool creates a new connection pool with the specified max size per key.
func NewConnectionPool[T Poolable](size int) *ConnectionPool[T] {
	if size <= 0 {
		size = 10 // default size
	}
	return &ConnectionPool[T]{
		pools: make(map[string]chan T),
		size:  size,
	}
}

func (p *ConnectionPool[T]) idle(key string) chan T {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	ch, ok := p.pools[key]
	if !ok {
		ch = make(chan T, p.size)
		p.pools[key] = ch
	}
	return ch
}

// Get takes an idle connection for key, or creates one with factory.
// If reused is false the caller must connect the client before use.
func (p *ConnectionPool[T]) Get(key string, factory func() T) (client T, reused bool) {
	ch := p.idle(key)
	if ch == nil {
		return factory(), false
	}
	select {
	case client = <-ch:
		return client, true
	default:
		return factory(), false
	}
}

// Acquire returns a connected client for key, dialing a new one when no
// idle connection is available.
func (p *ConnectionPool[T]) Acquire(ctx context.Context, key string, factory func() T) (T, error) {
	client, reused := p.Get(key, factory)
	if reused {
		return client, nil
	}
	if err := client.Connect(ctx); err != nil {
		_ = client.Close()
		var zero T
		return zero, err
	}
	return client, nil
}

// Put returns a connection to the pool for reuse. The connection is closed
// instead when the pool for key is full or the pool has been closed.
func (p *ConnectionPool[T]) Put(key string, client T) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	ch, ok := p.pools[key]
	if !ok || p.closed {
		return client.Close()
	}

	select {
	case ch <- client:
		return nil
	default:
		return client.Close()
	}
}

// Idle reports the number of idle connections held for key.
func (p *ConnectionPool[T]) Idle(key string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pools[key])
}

// Close closes all idle connections. Connections returned afterwards are
// closed by Put.
func (p *ConnectionPool[T]) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	pools := p.pools
	p.pools = make(map[string]chan T)
	p.mu.Unlock()

	var errs []string
	for _, ch := range pools {
		close(ch)
		for client := range ch {
			if err := client.Close(); err != nil {
				errs = append(errs, err.Error())
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("pool close errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// MakePoolKey generates a deterministic key from a target URL and headers.
func MakePoolKey(target string, headers http.Header) string {
	var sb strings.Builder
	sb.WriteString(target)
	sb.WriteString("|")

	// Sort keys for deterministic key generation
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		sb.WriteString(k)
		sb.WriteString("=")
		vals := headers[k]
		for i, v := range vals {
			if i > 0 {
				sb.WriteString(",")
			}
			sb.WriteString(v)
		}
		sb.WriteString(";")
	}
	return sb.String()
}
