package guard

import (
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-auth-gate"
)

// Jar binds a fiber request/response pair to auth.CookieJar. Reads come
// from the request; writes go to the response and are mirrored onto the
// request so later reads in the same request see them.
type Jar struct {
	c *fiber.Ctx
}

var _ auth.CookieJar = Jar{}

// NewJar returns a cookie jar for c.
func NewJar(c *fiber.Ctx) Jar {
	return Jar{c: c}
}

func (j Jar) Get(name string) string {
	return strings.Clone(j.c.Cookies(name))
}

func (j Jar) Set(cookie *http.Cookie) {
	if cookie == nil {
		return
	}

	fc := &fiber.Cookie{
		Name:     cookie.Name,
		Value:    cookie.Value,
		Path:     cookie.Path,
		Domain:   cookie.Domain,
		Secure:   cookie.Secure,
		HTTPOnly: cookie.HttpOnly,
		SameSite: sameSite(cookie.SameSite),
	}

	if cookie.MaxAge < 0 {
		fc.Value = ""
		fc.MaxAge = -1
		fc.Expires = time.Unix(0, 0)
		j.c.Request().Header.DelCookie(cookie.Name)
	} else {
		fc.MaxAge = cookie.MaxAge
		fc.Expires = cookie.Expires
		j.c.Request().Header.SetCookie(cookie.Name, cookie.Value)
	}

	j.c.Cookie(fc)
}

func sameSite(s http.SameSite) string {
	switch s {
	case http.SameSiteStrictMode:
		return fiber.CookieSameSiteStrictMode
	case http.SameSiteNoneMode:
		return fiber.CookieSameSiteNoneMode
	default:
		return fiber.CookieSameSiteLaxMode
	}
}
