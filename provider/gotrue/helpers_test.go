package gotrue

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const testSecret = "super-secret-jwt-token-with-at-least-32-characters"

type mapJar struct {
	values  map[string]string
	written []*http.Cookie
}

func newMapJar(values map[string]string) *mapJar {
	if values == nil {
		values = map[string]string{}
	}
	return &mapJar{values: values}
}

func (j *mapJar) Get(name string) string {
	return j.values[name]
}

func (j *mapJar) Set(cookie *http.Cookie) {
	j.written = append(j.written, cookie)
	if cookie.MaxAge < 0 {
		delete(j.values, cookie.Name)
		return
	}
	j.values[cookie.Name] = cookie.Value
}

func signHS256(t *testing.T, secret string, claims jwt.MapClaims, kid string) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	if kid != "" {
		token.Header["kid"] = kid
	}
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func accessToken(t *testing.T, sub string, exp time.Time) string {
	t.Helper()
	return signHS256(t, testSecret, jwt.MapClaims{
		"sub":   sub,
		"email": sub + "@example.com",
		"role":  "authenticated",
		"iat":   exp.Add(-time.Hour).Unix(),
		"exp":   exp.Unix(),
	}, "")
}

// fakeAuthService records requests and answers the GoTrue endpoints used by
// the client.
type fakeAuthService struct {
	t *testing.T

	mu       sync.Mutex
	requests []*http.Request
	bodies   []map[string]any

	refreshStatus int
	signupConfirm bool
	userEmail     string
}

func newFakeAuthService(t *testing.T) (*fakeAuthService, *httptest.Server) {
	t.Helper()

	svc := &fakeAuthService{t: t, refreshStatus: http.StatusOK, userEmail: "ada@example.com"}
	server := httptest.NewServer(http.HandlerFunc(svc.serve))
	t.Cleanup(server.Close)
	return svc, server
}

func (s *fakeAuthService) serve(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&body)
	}

	s.mu.Lock()
	s.requests = append(s.requests, r)
	s.bodies = append(s.bodies, body)
	refreshStatus := s.refreshStatus
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")

	switch r.URL.Path {
	case "/auth/v1/token":
		switch r.URL.Query().Get("grant_type") {
		case "password":
			if body["password"] != "correct-horse" {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"Invalid login credentials"}`))
				return
			}
			s.writeSession(w, "access-1", "refresh-1")
		case "refresh_token":
			if refreshStatus != http.StatusOK {
				w.WriteHeader(refreshStatus)
				_, _ = w.Write([]byte(`{"error_code":"refresh_token_not_found","msg":"Invalid Refresh Token"}`))
				return
			}
			s.writeSession(w, "access-2", "refresh-2")
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	case "/auth/v1/signup":
		if s.signupConfirm {
			_ = json.NewEncoder(w).Encode(map[string]any{
				"id":    "user-1",
				"email": body["email"],
			})
			return
		}
		s.writeSession(w, "access-1", "refresh-1")
	case "/auth/v1/user":
		if r.Header.Get("Authorization") != "Bearer access-1" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"msg":"invalid JWT"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "user-1", "email": s.userEmail})
	case "/auth/v1/logout":
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (s *fakeAuthService) writeSession(w http.ResponseWriter, access, refresh string) {
	_ = json.NewEncoder(w).Encode(map[string]any{
		"access_token":  access,
		"refresh_token": refresh,
		"token_type":    "bearer",
		"expires_in":    3600,
		"user": map[string]any{
			"id":                 "user-1",
			"email":              s.userEmail,
			"email_confirmed_at": "2024-01-02T03:04:05Z",
		},
	})
}

func (s *fakeAuthService) paths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.requests))
	for _, r := range s.requests {
		out = append(out, r.URL.Path)
	}
	return out
}

func (s *fakeAuthService) lastRequest() (*http.Request, map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.requests) == 0 {
		return nil, nil
	}
	return s.requests[len(s.requests)-1], s.bodies[len(s.bodies)-1]
}

func (s *fakeAuthService) setRefreshStatus(status int) {
	s.mu.Lock()
	s.refreshStatus = status
	s.mu.Unlock()
}
