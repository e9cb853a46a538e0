package runtime

import (
	"context"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDockerPinger(t *testing.T) {
	dir, err := os.MkdirTemp("", "ping")
	if err != nil {
		t.Fatalf("MkdirTemp: %v", err)
	}
	defer os.RemoveAll(dir)

	sockPath := filepath.Join(dir, "d.sock")
	listener, err := net.Listen("unix", sockPath)
	if err != nil {
		t.Skipf("unix sockets unavailable: %v", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/_ping", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("API-Version", "1.45")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	server := &http.Server{Handler: mux}
	go func() { _ = server.Serve(listener) }()
	defer server.Close()

	pinger := &DockerPinger{Timeout: 2 * time.Second}
	if err := pinger.Ping(context.Background(), Endpoint{HostPath: sockPath}); err != nil {
		t.Fatalf("Ping: %v", err)
	}

	if err := pinger.Ping(context.Background(), Endpoint{HostPath: filepath.Join(dir, "gone.sock")}); err == nil {
		t.Fatal("expected ping against a missing socket to fail")
	}
}
