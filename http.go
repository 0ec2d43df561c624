package multitoken

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
)

// SessionContextKey is the fiber Locals key holding the *Session
const SessionContextKey = "multitoken.session"

// RequireToken authenticates the Authorization header and stores the Session
// in the request locals and the user context. Failures answer 401 with a
// WWW-Authenticate header.
func RequireToken(auth KeyAuthenticator, keyword string) fiber.Handler {
	if keyword == "" {
		keyword = DefaultAuthHeaderKeyword
	}

	return func(c *fiber.Ctx) error {
		key, err := ParseAuthorizationHeader(c.Get(fiber.HeaderAuthorization), keyword)
		if err != nil {
			return unauthorized(c, keyword, err)
		}

		session, err := auth.AuthenticateKey(c.UserContext(), utils.CopyString(key))
		if err != nil {
			if errors.Is(err, ErrInvalidCredential) {
				return unauthorized(c, keyword, err)
			}
			return err
		}

		c.Locals(SessionContextKey, session)
		c.SetUserContext(WithSessionContext(c.UserContext(), session))
		return c.Next()
	}
}

// SessionFromContext returns the session stored by RequireToken
func SessionFromContext(c *fiber.Ctx) (*Session, bool) {
	session, ok := c.Locals(SessionContextKey).(*Session)
	return session, ok && session != nil
}

func unauthorized(c *fiber.Ctx, keyword string, err error) error {
	c.Set(fiber.HeaderWWWAuthenticate, keyword)
	detail := ErrNotAuthenticated.Message
	if errors.Is(err, ErrInvalidCredential) {
		detail = ErrorMessage(err)
	}
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"detail": detail})
}

// ClientAddress is the first X-Forwarded-For entry, or the remote address
func ClientAddress(c *fiber.Ctx) string {
	if ips := c.IPs(); len(ips) > 0 && ips[0] != "" {
		return utils.CopyString(ips[0])
	}
	return utils.CopyString(c.IP())
}

func userAgent(c *fiber.Ctx) string {
	return utils.CopyString(c.Get(fiber.HeaderUserAgent))
}
