package server

import (
	"context"
	"net/http"
	"testing"
	"time"
)

func TestNormalizeAddr(t *testing.T) {
	cases := map[string]string{
		"":               ":8080",
		"9000":           ":9000",
		":9000":          ":9000",
		" 9001 ":         ":9001",
		"127.0.0.1:7000": "127.0.0.1:7000",
	}
	for in, want := range cases {
		if got := normalizeAddr(in); got != want {
			t.Fatalf("normalizeAddr(%q)=%q, want %q", in, got, want)
		}
	}
}

func TestServer_ShutdownBeforeRunIsClean(t *testing.T) {
	s := New("127.0.0.1:0", http.NotFoundHandler())
	if s.Addr() != "127.0.0.1:0" {
		t.Fatalf("addr=%q", s.Addr())
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if err := s.Run(); err != nil {
		t.Fatalf("run after shutdown should report a clean stop, got %v", err)
	}
}

func TestServer_NilShutdown(t *testing.T) {
	var s *Server
	if err := s.Shutdown(context.Background()); err != nil {
		t.Fatalf("nil server shutdown: %v", err)
	}
}
