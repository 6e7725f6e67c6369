// Package auth keeps a client's authenticated session in sync with a managed
// auth provider and gates page requests on it.
//
// Session store:
//   - SessionStore holds the auth flag, user, access token and raw provider
//     session plus the profile, onboarding and pending verification fields.
//     Every mutation is written through to a Storage under two fixed keys
//     (StorageKeySession, StorageKeyProfile) and Hydrate restores them on
//     start. IsInitialized is process state and is never persisted.
//
// Auth bridge:
//   - Bridge is the single subscriber to Provider auth events. Initialize
//     replaces any previous subscription, syncs the store with the current
//     session (provider failures count as signed out) and then mirrors every
//     event. A confirmed SIGNED_IN matching the pending verification email
//     clears it and schedules a full navigation home.
//
// Route guard and provider:
//   - middleware/guard is the fiber edge middleware deciding between pass
//     through, redirect to /login and redirect to /.
//   - provider/gotrue talks to the auth service and reads/writes session
//     cookies for the guard.
//
// Activity sinks:
//   - ActivitySink receives best-effort session events (sign in/out, token
//     refresh, verification). Errors are logged, never surfaced.
package auth
