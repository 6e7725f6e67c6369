package gotrue

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/go-auth-gate"
)

const (
	cookiePrefix = "base64-"

	// MaxChunkSize is the largest cookie value written before the session is
	// split across name.0, name.1, ...
	MaxChunkSize = 3180

	maxChunks = 32
)

// CookieCodec reads and writes the provider session cookie in the format
// used by the browser client: "base64-" + base64url(JSON), chunked when large.
type CookieCodec struct {
	Name     string
	Path     string
	MaxAge   time.Duration
	Secure   bool
	SameSite http.SameSite
}

// Read returns nil, nil when no session cookie is present.
func (c CookieCodec) Read(jar auth.CookieJar) (*auth.ProviderSession, error) {
	raw := jar.Get(c.Name)
	if raw == "" {
		var b strings.Builder
		for i := 0; i < maxChunks; i++ {
			part := jar.Get(c.chunkName(i))
			if part == "" {
				break
			}
			b.WriteString(part)
		}
		raw = b.String()
	}
	if raw == "" {
		return nil, nil
	}
	return decodeSession(raw)
}

// Write stores session, replacing whichever layout (single or chunked) the
// jar held before.
func (c CookieCodec) Write(jar auth.CookieJar, session *auth.ProviderSession) error {
	value, err := encodeSession(session)
	if err != nil {
		return err
	}

	if len(value) <= MaxChunkSize {
		jar.Set(c.cookie(c.Name, value))
		c.clearChunks(jar, 0)
		return nil
	}

	n := 0
	for start := 0; start < len(value); start += MaxChunkSize {
		end := min(start+MaxChunkSize, len(value))
		jar.Set(c.cookie(c.chunkName(n), value[start:end]))
		n++
	}
	c.clearChunks(jar, n)
	if jar.Get(c.Name) != "" {
		jar.Set(c.expired(c.Name))
	}
	return nil
}

// Clear expires the session cookie and every chunk present in the jar.
func (c CookieCodec) Clear(jar auth.CookieJar) {
	if jar.Get(c.Name) != "" {
		jar.Set(c.expired(c.Name))
	}
	c.clearChunks(jar, 0)
}

func (c CookieCodec) clearChunks(jar auth.CookieJar, from int) {
	for i := from; i < maxChunks; i++ {
		name := c.chunkName(i)
		if jar.Get(name) == "" {
			return
		}
		jar.Set(c.expired(name))
	}
}

func (c CookieCodec) chunkName(i int) string {
	return fmt.Sprintf("%s.%d", c.Name, i)
}

func (c CookieCodec) cookie(name, value string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     c.Path,
		MaxAge:   int(c.MaxAge.Seconds()),
		Secure:   c.Secure,
		SameSite: c.SameSite,
	}
}

func (c CookieCodec) expired(name string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     c.Path,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		Secure:   c.Secure,
		SameSite: c.SameSite,
	}
}

func encodeSession(session *auth.ProviderSession) (string, error) {
	raw, err := json.Marshal(session)
	if err != nil {
		return "", auth.ErrUnableToDecodeSession.Clone().WithMetadata(map[string]any{
			"cause": err.Error(),
		})
	}
	return cookiePrefix + base64.RawURLEncoding.EncodeToString(raw), nil
}

// older clients wrote URL encoded JSON without the prefix
func decodeSession(raw string) (*auth.ProviderSession, error) {
	var payload []byte
	if rest, ok := strings.CutPrefix(raw, cookiePrefix); ok {
		decoded, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(rest, "="))
		if err != nil {
			return nil, decodeError(err)
		}
		payload = decoded
	} else {
		unescaped, err := url.QueryUnescape(raw)
		if err != nil {
			return nil, decodeError(err)
		}
		payload = []byte(unescaped)
	}

	var session auth.ProviderSession
	if err := json.Unmarshal(payload, &session); err != nil {
		return nil, decodeError(err)
	}
	if session.AccessToken == "" {
		return nil, nil
	}
	return &session, nil
}

func decodeError(err error) error {
	clone := auth.ErrUnableToDecodeSession.Clone()
	clone.Source = err
	return clone.WithMetadata(map[string]any{"cause": err.Error()})
}
