package main

import (
	"os/signal"
	"strings"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/proxy"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/goliatone/go-auth-gate"
	"github.com/spf13/cobra"

	"github.com/goliatone/go-auth-gate/middleware/guard"
	"github.com/goliatone/go-auth-gate/provider/gotrue"
)

const (
	rejectedRouteCookie = "rejected_route"
	healthPath          = "/healthz"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the route guard in front of the page renderer",
		RunE:  runServe,
	}
	cmd.Flags().String("listen", "", "listen address (overrides GATE_LISTEN)")
	cmd.Flags().String("upstream", "", "page renderer URL (overrides GATE_UPSTREAM)")
	cmd.Flags().Bool("secure-cookies", false, "mark refreshed session cookies Secure")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	e, err := loadEnv(cmd)
	if err != nil {
		return err
	}
	defer e.sync()

	if listen, _ := cmd.Flags().GetString("listen"); listen != "" {
		e.cfg.Listen = listen
	}
	if upstream, _ := cmd.Flags().GetString("upstream"); upstream != "" {
		e.cfg.Upstream = upstream
	}
	secure, _ := cmd.Flags().GetBool("secure-cookies")

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pcfg := gotrue.ConfigFromEnv(e.cfg)
	pcfg.SecureCookies = secure
	pcfg.Logger = e.logger
	provider, err := gotrue.NewClient(ctx, pcfg)
	if err != nil {
		return err
	}
	defer provider.Close()

	app := newServer(e.cfg, e.logger, gotrue.NewSessionResolver(provider))

	go func() {
		<-ctx.Done()
		e.logger.Info("shutting down")
		_ = app.Shutdown()
	}()

	e.logger.Info("gate listening", "addr", e.cfg.Listen, "upstream", e.cfg.Upstream)
	return app.Listen(e.cfg.Listen)
}

func newServer(cfg auth.Config, logger auth.Logger, resolver *gotrue.SessionResolver) *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})
	app.Use(recover.New())

	app.Get(healthPath, func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})

	app.Use(guard.New(guard.Config{
		Filter: func(c *fiber.Ctx) bool {
			return c.Path() == healthPath
		},
		Resolver:            resolver,
		RejectedRouteCookie: rejectedRouteCookie,
		Logger:              logger,
	}))

	// return to the page that triggered the last login redirect
	app.Get("/auth/return", func(c *fiber.Ctx) error {
		return c.Redirect(guard.PopRejectedRoute(c, rejectedRouteCookie, auth.DefaultHomePath), fiber.StatusFound)
	})

	app.Post("/auth/signout", func(c *fiber.Ctx) error {
		resolver.ClearSession(guard.NewJar(c))
		return c.Redirect("/login", fiber.StatusSeeOther)
	})

	app.All("/*", forward(cfg.Upstream))
	return app
}

// forward proxies the request to upstream. Proxying resets the response,
// so cookies the guard already set are copied back afterwards.
func forward(upstream string) fiber.Handler {
	base := strings.TrimSuffix(upstream, "/")
	return func(c *fiber.Ctx) error {
		var cookies []string
		c.Response().Header.VisitAllCookie(func(_, value []byte) {
			cookies = append(cookies, string(value))
		})

		if err := proxy.Do(c, base+c.OriginalURL()); err != nil {
			return err
		}

		for _, cookie := range cookies {
			c.Response().Header.Add(fiber.HeaderSetCookie, cookie)
		}
		return nil
	}
}
