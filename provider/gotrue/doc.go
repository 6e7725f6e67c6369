// Package gotrue talks to a GoTrue compatible auth service (Supabase Auth).
//
// Client is the process side auth.Provider: it signs users in and out,
// refreshes sessions and emits auth state changes. SessionResolver is the
// request side: it decodes the session cookie, verifies or refreshes the
// access token and rewrites cookies for the route guard.
package gotrue
