package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// Logger is the structured logger used across the gate. Arguments after the
// message are key/value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Provider is the client side of the managed auth service: it knows the
// current session and notifies listeners when it changes.
type Provider interface {
	GetSession(ctx context.Context) (*ProviderSession, error)
	OnAuthStateChange(listener AuthStateListener) Subscription
	SignOut(ctx context.Context) error
}

// Subscription is the handle returned by Provider.OnAuthStateChange.
type Subscription interface {
	Unsubscribe()
}

// SubscriptionFunc adapts a function to the Subscription interface.
type SubscriptionFunc func()

// Unsubscribe implements Subscription.
func (f SubscriptionFunc) Unsubscribe() {
	if f != nil {
		f()
	}
}

// CookieJar gives session resolvers read access to request cookies and write
// access to the outgoing response.
type CookieJar interface {
	Get(name string) string
	Set(cookie *http.Cookie)
}

// Navigator performs a full client navigation (not an in-app route change).
type Navigator interface {
	Navigate(path string)
}

// NavigatorFunc adapts a function to the Navigator interface.
type NavigatorFunc func(path string)

// Navigate implements Navigator.
func (f NavigatorFunc) Navigate(path string) {
	if f != nil {
		f(path)
	}
}

type defLogger struct{}

func (d defLogger) Debug(msg string, args ...any) {
	fmt.Print("[DBG] GATE " + line(msg, args))
}

func (d defLogger) Info(msg string, args ...any) {
	fmt.Print("[INF] GATE " + line(msg, args))
}

func (d defLogger) Warn(msg string, args ...any) {
	fmt.Print("[WRN] GATE " + line(msg, args))
}

func (d defLogger) Error(msg string, args ...any) {
	fmt.Print("[ERR] GATE " + line(msg, args))
}

// DefaultLogger returns the fallback stdout logger.
func DefaultLogger() Logger {
	return defLogger{}
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// NopLogger discards everything.
func NopLogger() Logger {
	return nopLogger{}
}

func line(msg string, args []any) string {
	var b strings.Builder
	b.WriteString(msg)
	for i := 0; i < len(args); i += 2 {
		b.WriteByte(' ')
		if i+1 < len(args) {
			fmt.Fprintf(&b, "%v=%v", args[i], args[i+1])
		} else {
			fmt.Fprintf(&b, "%v", args[i])
		}
	}
	b.WriteByte('\n')
	return b.String()
}

func normalizeLogger(l Logger) Logger {
	if l == nil {
		return defLogger{}
	}
	return l
}
