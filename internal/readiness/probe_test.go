package readiness_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/railwayapp/ciboot/internal/readiness"
)

func TestHTTPProbe_Statuses(t *testing.T) {
	tests := []struct {
		name   string
		status int
		ready  bool
	}{
		{"ok", http.StatusOK, true},
		{"forbidden", http.StatusForbidden, true},
		{"not found", http.StatusNotFound, true},
		{"unavailable", http.StatusServiceUnavailable, false},
		{"internal error", http.StatusInternalServerError, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			err := readiness.NewHTTPProbe(time.Second).Check(context.Background(), server.URL+"/login")
			if tt.ready && err != nil {
				t.Errorf("expected ready, got %v", err)
			}
			if !tt.ready {
				var statusErr *readiness.StatusError
				if !errors.As(err, &statusErr) {
					t.Fatalf("expected StatusError, got %v", err)
				}
				if statusErr.StatusCode != tt.status {
					t.Errorf("expected status %d, got %d", tt.status, statusErr.StatusCode)
				}
			}
		})
	}
}

func TestHTTPProbe_DoesNotFollowRedirects(t *testing.T) {
	var followed bool
	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/broken", http.StatusFound)
	})
	mux.HandleFunc("/broken", func(w http.ResponseWriter, r *http.Request) {
		followed = true
		w.WriteHeader(http.StatusInternalServerError)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	if err := readiness.NewHTTPProbe(time.Second).Check(context.Background(), server.URL+"/login"); err != nil {
		t.Fatalf("expected redirect to count as ready, got %v", err)
	}
	if followed {
		t.Error("redirect should not be followed")
	}
}

func TestHTTPProbe_ConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	target := server.URL + "/login"
	server.Close()

	if err := readiness.NewHTTPProbe(time.Second).Check(context.Background(), target); err == nil {
		t.Fatal("expected error for a closed server")
	}
}

func TestHTTPProbe_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	if err := readiness.NewHTTPProbe(50*time.Millisecond).Check(context.Background(), server.URL); err == nil {
		t.Fatal("expected timeout error")
	}
}

func TestProbeURL(t *testing.T) {
	tests := []struct {
		base string
		path string
		want string
	}{
		{"http://localhost:8080/", "login", "http://localhost:8080/login"},
		{"http://localhost:8080", "login", "http://localhost:8080/login"},
		{"https://ci.example.com/jenkins/", "/login", "https://ci.example.com/jenkins/login"},
		{"http://localhost:8080/", "", "http://localhost:8080/"},
	}

	for _, tt := range tests {
		got, err := readiness.ProbeURL(tt.base, tt.path)
		if err != nil {
			t.Fatalf("ProbeURL(%q, %q): %v", tt.base, tt.path, err)
		}
		if got != tt.want {
			t.Errorf("ProbeURL(%q, %q) = %q, want %q", tt.base, tt.path, got, tt.want)
		}
	}

	if _, err := readiness.ProbeURL("localhost:8080", "login"); err == nil {
		t.Error("expected error for a relative service url")
	}
}
