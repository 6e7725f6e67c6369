package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/goliatone/go-auth-gate"
	goerrors "github.com/goliatone/go-errors"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-auth-gate/activitymap"
	"github.com/goliatone/go-auth-gate/apiclient"
	"github.com/goliatone/go-auth-gate/provider/gotrue"
	"github.com/goliatone/go-auth-gate/repository"
	"github.com/goliatone/go-auth-gate/ui"
)

// credentials is the login and signup payload.
type credentials struct {
	Email    string
	Password string
}

func (c credentials) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Email, validation.Required, is.EmailFormat),
		validation.Field(&c.Password, validation.Required, validation.Length(6, 72)),
	)
}

// clientSession is the client side wiring: durable storage, the provider
// client, the session store kept in sync by the bridge and the
// notification store.
type clientSession struct {
	cfg       auth.Config
	out       io.Writer
	logger    auth.Logger
	db        *bun.DB
	provider  *gotrue.Client
	store     *auth.SessionStore
	bridge    *auth.Bridge
	notices   *ui.Store
	navigated chan string
}

func openClientSession(ctx context.Context, e *env, out io.Writer) (*clientSession, error) {
	storage, db, err := repository.OpenSQLite(ctx, e.cfg.StorageDSN)
	if err != nil {
		return nil, err
	}

	pcfg := gotrue.ConfigFromEnv(e.cfg)
	pcfg.Storage = storage
	pcfg.Logger = e.logger
	provider, err := gotrue.NewClient(ctx, pcfg)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &clientSession{
		cfg:       e.cfg,
		out:       out,
		logger:    e.logger,
		db:        db,
		provider:  provider,
		navigated: make(chan string, 1),
	}

	s.store = auth.NewSessionStore(storage,
		auth.WithSignOuter(provider),
		auth.WithStoreLogger(e.logger),
	)
	if err := s.store.Hydrate(ctx); err != nil {
		s.Close()
		return nil, err
	}

	s.notices, err = ui.NewStore(ui.WithLogger(e.logger))
	if err != nil {
		s.Close()
		return nil, err
	}

	s.bridge, err = auth.NewBridge(provider, s.store,
		auth.WithBridgeLogger(e.logger),
		auth.WithNavigator(auth.NavigatorFunc(s.navigate)),
		auth.WithActivitySink(auth.ActivitySinkFunc(s.recordActivity)),
	)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.bridge.Initialize(ctx)
	return s, nil
}

func (s *clientSession) navigate(path string) {
	select {
	case s.navigated <- path:
	default:
	}
}

func (s *clientSession) recordActivity(_ context.Context, evt auth.ActivityEvent) error {
	rec := activitymap.Normalize(evt, activitymap.WithChannel("gate"))
	s.logger.Info("session activity",
		"verb", rec.Verb,
		"actor_id", rec.ActorID,
		"channel", rec.Channel,
		"metadata", rec.Metadata,
		"occurred_at", rec.OccurredAt,
	)
	return nil
}

// waitNavigation blocks until the bridge navigates or the redirect window
// passes.
func (s *clientSession) waitNavigation(ctx context.Context) {
	timer := time.NewTimer(2 * auth.DefaultRedirectDelay)
	defer timer.Stop()

	select {
	case path := <-s.navigated:
		fmt.Fprintf(s.out, "navigate: %s\n", path)
	case <-timer.C:
	case <-ctx.Done():
	}
}

// flush prints and dismisses pending notifications.
func (s *clientSession) flush() {
	for _, n := range s.notices.Notifications() {
		fmt.Fprintf(s.out, "[%s] %s\n", n.Type, n.Message)
		s.notices.RemoveNotification(n.ID)
	}
}

func (s *clientSession) Close() {
	if s.bridge != nil {
		s.bridge.Close()
	}
	if s.notices != nil {
		s.notices.Close()
	}
	s.provider.Close()
	_ = s.db.Close()
}

// withClientSession runs fn against an initialized client session and
// prints the notifications it produced.
func withClientSession(cmd *cobra.Command, fn func(ctx context.Context, s *clientSession) error) error {
	e, err := loadEnv(cmd)
	if err != nil {
		return err
	}
	defer e.sync()

	ctx := cmd.Context()
	s, err := openClientSession(ctx, e, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer s.Close()

	err = fn(ctx, s)
	if err != nil {
		s.notices.Error(humanMessage(err))
	}
	s.flush()
	return err
}

func humanMessage(err error) string {
	if status, ok := apiclient.StatusCode(err); ok {
		return fmt.Sprintf("request failed (%d): %s", status, apiclient.Message(err))
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr.Message != "" {
		return richErr.Message
	}
	return err.Error()
}

func newSessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Sign in, sign up and call the API as a client",
	}
	cmd.AddCommand(newLoginCmd())
	cmd.AddCommand(newSignupCmd())
	cmd.AddCommand(newLogoutCmd())
	cmd.AddCommand(newWhoamiCmd())
	cmd.AddCommand(newFetchCmd())
	return cmd
}

func newLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with email and password",
		RunE: func(cmd *cobra.Command, _ []string) error {
			creds := credentialsFromFlags(cmd)
			if err := creds.Validate(); err != nil {
				return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid credentials")
			}

			return withClientSession(cmd, func(ctx context.Context, s *clientSession) error {
				pending := s.store.PendingVerificationEmail()

				s.notices.SetLoading("auth", true)
				_, err := s.provider.SignInWithPassword(ctx, creds.Email, creds.Password)
				s.notices.SetLoading("auth", false)
				if err != nil {
					return err
				}

				name := auth.DefaultDisplayName
				if user := s.store.Snapshot().User; user != nil {
					name = user.DisplayName
				}
				s.notices.Success("signed in as " + name)
				if pending != "" && s.store.PendingVerificationEmail() == "" {
					s.notices.Info("email verified")
					s.flush()
					s.waitNavigation(ctx)
				}
				return nil
			})
		},
	}
	addCredentialFlags(cmd)
	return cmd
}

func newSignupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Register a new account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			creds := credentialsFromFlags(cmd)
			if err := creds.Validate(); err != nil {
				return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid credentials")
			}
			name, _ := cmd.Flags().GetString("name")

			return withClientSession(cmd, func(ctx context.Context, s *clientSession) error {
				var metadata map[string]any
				if name = strings.TrimSpace(name); name != "" {
					metadata = map[string]any{"display_name": name}
				}

				result, err := s.provider.SignUp(ctx, creds.Email, creds.Password, metadata)
				if err != nil {
					return err
				}

				if result.NeedsConfirmation() {
					if err := s.store.SetPendingVerification(ctx, creds.Email); err != nil {
						return err
					}
					s.notices.Info("check " + creds.Email + " to confirm your account")
					return nil
				}
				s.notices.Success("account created")
				return nil
			})
		},
	}
	addCredentialFlags(cmd)
	cmd.Flags().String("name", "", "display name")
	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and clear local state",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withClientSession(cmd, func(ctx context.Context, s *clientSession) error {
				s.store.Logout(ctx)
				s.notices.Success("signed out")
				return nil
			})
		},
	}
}

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Print the current session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withClientSession(cmd, func(ctx context.Context, s *clientSession) error {
				snap := s.store.Snapshot()
				if snap.PendingVerificationEmail != "" {
					fmt.Fprintf(s.out, "pending verification: %s\n", snap.PendingVerificationEmail)
				}
				if !snap.IsAuthenticated || snap.User == nil {
					s.notices.Warning("not signed in")
					return nil
				}
				fmt.Fprintf(s.out, "%s <%s> id=%s\n", snap.User.DisplayName, snap.User.Email, snap.User.ID)
				return nil
			})
		},
	}
}

func newFetchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch [path]",
		Short: "Call the API gateway with the session token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			method, _ := cmd.Flags().GetString("method")
			data, _ := cmd.Flags().GetString("data")
			trace, _ := cmd.Flags().GetBool("trace")

			var body any
			if data != "" {
				if err := json.Unmarshal([]byte(data), &body); err != nil {
					return goerrors.Wrap(err, goerrors.CategoryBadInput, "request body is not JSON")
				}
			}

			return withClientSession(cmd, func(ctx context.Context, s *clientSession) error {
				client, err := apiclient.New(s.cfg.APIBaseURL, s.store,
					apiclient.WithLogger(s.logger),
					apiclient.WithTrace(trace),
				)
				if err != nil {
					return err
				}

				var out json.RawMessage
				if err := client.Do(ctx, strings.ToUpper(method), args[0], body, &out); err != nil {
					return err
				}
				if len(out) > 0 {
					fmt.Fprintln(s.out, string(out))
				}
				return nil
			})
		},
	}
	cmd.Flags().StringP("method", "X", http.MethodGet, "HTTP method")
	cmd.Flags().StringP("data", "d", "", "JSON request body")
	cmd.Flags().Bool("trace", false, "log requests and responses")
	return cmd
}

func addCredentialFlags(cmd *cobra.Command) {
	cmd.Flags().String("email", "", "account email")
	cmd.Flags().String("password", "", "account password")
}

func credentialsFromFlags(cmd *cobra.Command) credentials {
	email, _ := cmd.Flags().GetString("email")
	password, _ := cmd.Flags().GetString("password")
	return credentials{Email: strings.TrimSpace(email), Password: password}
}
