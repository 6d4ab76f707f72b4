package fixtures

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// JWKSServer is an httptest server serving key sets per path. It counts
// requests per path and can be told to fail a path. Unknown paths get 404.
type JWKSServer struct {
	*httptest.Server

	mu     sync.Mutex
	docs   map[string][]byte
	status map[string]int
	hits   map[string]int
}

// NewJWKSServer starts a server that is closed when the test ends.
func NewJWKSServer(t testing.TB) *JWKSServer {
	t.Helper()
	s := &JWKSServer{
		docs:   make(map[string][]byte),
		status: make(map[string]int),
		hits:   make(map[string]int),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

func (s *JWKSServer) serve(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.hits[r.URL.Path]++
	doc, ok := s.docs[r.URL.Path]
	code := s.status[r.URL.Path]
	s.mu.Unlock()

	switch {
	case code != 0:
		http.Error(w, http.StatusText(code), code)
	case !ok:
		http.NotFound(w, r)
	default:
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(doc)
	}
}

// Publish serves a JWKS with signers at path and clears any failure.
func (s *JWKSServer) Publish(t testing.TB, path string, signers ...*Signer) {
	t.Helper()
	s.PublishRaw(path, KeySet(t, signers...))
}

// PublishRaw serves doc verbatim at path and clears any failure.
func (s *JWKSServer) PublishRaw(path string, doc []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[path] = doc
	delete(s.status, path)
}

// Fail makes path answer with status.
func (s *JWKSServer) Fail(path string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status[path] = status
}

// Hits returns how many requests path has received.
func (s *JWKSServer) Hits(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[path]
}

// TotalHits returns the number of requests across all paths.
func (s *JWKSServer) TotalHits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, h := range s.hits {
		n += h
	}
	return n
}
