package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeAuth answers the auth service endpoints the commands use.
type fakeAuth struct {
	mu            sync.Mutex
	paths         []string
	signupConfirm bool
}

func newFakeAuth(t *testing.T) (*fakeAuth, *httptest.Server) {
	t.Helper()
	f := &fakeAuth{}
	server := httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(server.Close)
	return f, server
}

func (f *fakeAuth) serve(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{}
	_ = json.NewDecoder(r.Body).Decode(&body)

	f.mu.Lock()
	f.paths = append(f.paths, r.URL.Path)
	confirm := f.signupConfirm
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch r.URL.Path {
	case "/auth/v1/token":
		grant := r.URL.Query().Get("grant_type")
		switch {
		case grant == "password" && body["password"] == "correct-horse":
			writeSession(w, body["email"])
		case grant == "refresh_token" && body["refresh_token"] == "refresh-1":
			writeSession(w, "ada@example.com")
		default:
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"Invalid login credentials"}`))
		}
	case "/auth/v1/signup":
		if confirm {
			_ = json.NewEncoder(w).Encode(map[string]any{"id": "user-1", "email": body["email"]})
			return
		}
		writeSession(w, body["email"])
	case "/auth/v1/user":
		if r.Header.Get("Authorization") != "Bearer access-1" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"msg":"invalid JWT"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "user-1", "email": "ada@example.com"})
	case "/auth/v1/logout":
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (f *fakeAuth) requested() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.paths...)
}

func writeSession(w http.ResponseWriter, email any) {
	_ = json.NewEncoder(w).Encode(map[string]any{
		"access_token":  "access-1",
		"refresh_token": "refresh-1",
		"token_type":    "bearer",
		"expires_in":    3600,
		"user": map[string]any{
			"id":                 "user-1",
			"email":              email,
			"email_confirmed_at": "2024-01-02T03:04:05Z",
		},
	})
}

// setupEnv points the configuration at authURL and a fresh storage file.
func setupEnv(t *testing.T, authURL string) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("AUTH_URL", authURL)
	t.Setenv("AUTH_ANON_KEY", "anon-key")
	t.Setenv("AUTH_JWT_SECRET", "")
	t.Setenv("AUTH_JWKS_URL", "")
	t.Setenv("GATE_STORAGE_DSN", "file:"+filepath.Join(dir, "gate.db"))
	t.Setenv("LOG_LEVEL", "error")
	return filepath.Join(dir, "missing.env")
}

func run(t *testing.T, envFile string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append(args, "--env-file", envFile))
	err := root.Execute()
	return out.String(), err
}

func mustRun(t *testing.T, envFile string, args ...string) string {
	t.Helper()
	out, err := run(t, envFile, args...)
	require.NoError(t, err, out)
	return out
}
