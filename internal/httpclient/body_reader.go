package httpclient

import (
	"bytes"
	"io"
	"sync"
)

type BodySource interface {
	NewReader() (io.ReadCloser, error)
	ContentLength() (int64, bool)
}

// payloadPattern fills generated payloads. The target only sees the length.
const payloadPattern = "casebench-payload-"

// NewPayload returns a body source of exactly size bytes. A size of zero or
// less yields an empty body.
func NewPayload(size int) BodySource {
	if size <= 0 {
		return emptyBodySource{}
	}
	data := make([]byte, size)
	for i := 0; i < size; i += copy(data[i:], payloadPattern) {
	}
	return &inlineBodySource{data: data}
}

// PayloadCache shares one generated payload per size across requests.
type PayloadCache struct {
	mu       sync.Mutex
	payloads map[int]BodySource
}

func NewPayloadCache() *PayloadCache {
	return &PayloadCache{payloads: make(map[int]BodySource)}
}

// Get returns the cached payload of the given size, generating it on first use.
func (c *PayloadCache) Get(size int) BodySource {
	c.mu.Lock()
	defer c.mu.Unlock()
	if src, ok := c.payloads[size]; ok {
		return src
	}
	src := NewPayload(size)
	c.payloads[size] = src
	return src
}

type inlineBodySource struct {
	data []byte
}

func (s *inlineBodySource) NewReader() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(s.data)), nil
}

func (s *inlineBodySource) ContentLength() (int64, bool) {
	return int64(len(s.data)), true
}

// Bytes exposes the payload for transports that send it as a single frame.
func (s *inlineBodySource) Bytes() []byte {
	return s.data
}

type emptyBodySource struct{}

func (emptyBodySource) NewReader() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(nil)), nil
}

func (emptyBodySource) ContentLength() (int64, bool) {
	return 0, true
}

func (emptyBodySource) Bytes() []byte {
	return nil
}
